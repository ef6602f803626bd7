package database

// ToolInstance is one configured integration between a course and an
// external tool deployment.
type ToolInstance struct {
	ID       int64
	TypeID   int64
	CourseID int64
	Name     string

	// ConsumerKey identifies the tool on signed requests; SharedSecret signs
	// them. PreviousSecret stays valid during a rotation window and is nil
	// otherwise.
	ConsumerKey    string
	SharedSecret   string
	PreviousSecret *string

	// ServiceSalt salts the result sourcedid digests issued for this instance.
	ServiceSalt string

	// instructor-choice override flags, consulted when the tool type policy
	// is set to instructor choice
	InstructorChoiceSendName     bool
	InstructorChoiceSendEmail    bool
	InstructorChoiceAcceptGrades bool
}

// SecretCandidates returns the shared secrets to try during signature
// verification, current secret first.
func (t ToolInstance) SecretCandidates() []string {
	secrets := []string{t.SharedSecret}
	if t.PreviousSecret != nil && *t.PreviousSecret != "" {
		secrets = append(secrets, *t.PreviousSecret)
	}
	return secrets
}

// ToolTypeConfig holds the tri-state policies configured at the tool type
// level: 0 never, 1 always, 2 instructor choice.
type ToolTypeConfig struct {
	ID           int64
	Name         string
	SendName     int
	SendEmail    int
	AcceptGrades int
}

// CourseMember is one roster row for a course.
type CourseMember struct {
	UserID        int64
	FirstName     string
	LastName      string
	Email         string
	RoleShortname string

	// LastLaunchID is the member's most recent recorded launch of the tool
	// instance the roster was requested for (0 if none).
	LastLaunchID int64
}

// CourseGroup is one group a course member belongs to.
type CourseGroup struct {
	ID   int64
	Name string
}

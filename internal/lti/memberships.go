package lti

// memberships.go builds the roster listing returned by the
// readMemberships[WithGroups] service.

import "strconv"

// Role shortnames that map to the Instructor LIS role; every other shortname
// is reported as Learner.
const (
	roleInstructor = "Instructor"
	roleLearner    = "Learner"
)

// MemberRecord is one directory entry as supplied by the roster store.
type MemberRecord struct {
	UserID        int64
	FirstName     string
	LastName      string
	Email         string
	RoleShortname string

	// LaunchID is the member's most recent recorded launch of the tool
	// instance (0 when the member has never launched it). It scopes the
	// result sourcedid issued in the listing.
	LaunchID int64

	// Groups is only consulted for the WithGroups variant.
	Groups []GroupRecord
}

// GroupRecord is a course group the member belongs to.
type GroupRecord struct {
	ID   int64
	Name string
}

// MembershipPolicy bundles everything needed to decide what a membership
// listing may disclose for one tool instance.
type MembershipPolicy struct {
	InstanceID  int64
	ServiceSalt string
	Type        ToolTypePolicies
	Overrides   InstanceOverrides
}

// RoleForShortname maps a role shortname from the directory to the LIS role
// reported to the tool.
func RoleForShortname(shortname string) string {
	if shortname == "editingteacher" || shortname == "admin" {
		return roleInstructor
	}
	return roleLearner
}

// BuildMembershipsResponse assembles the success envelope for a memberships
// read.
//
// Name and email are only emitted when the tri-state disclosure policy
// (resolved against the instance overrides) allows it, and a result
// sourcedid is only issued when grade acceptance is enabled - a tool that
// may not post grades never sees a token it could try to post with.
func BuildMembershipsResponse(msg *MembershipsMessage, members []MemberRecord, policy MembershipPolicy) (*ResponseEnvelope, error) {
	messageType := "readMembershipsResponse"
	if msg.WithGroups {
		messageType = "readMembershipsWithGroupsResponse"
	}

	env := NewResponseEnvelope(CodeMajorSuccess, "read memberships", msg.MessageID, messageType)

	sendName := policy.Type.SendName.Allows(policy.Overrides.SendName)
	sendEmail := policy.Type.SendEmail.Allows(policy.Overrides.SendEmail)
	acceptGrades := policy.Type.AcceptGrades.Allows(policy.Overrides.AcceptGrades)

	memberships := &Memberships{}
	for _, m := range members {
		member := Member{
			UserID: strconv.FormatInt(m.UserID, 10),
			Roles:  RoleForShortname(m.RoleShortname),
		}

		if msg.WithGroups {
			groups := &memberGroups{}
			for _, g := range m.Groups {
				id := strconv.FormatInt(g.ID, 10)
				groups.Groups = append(groups.Groups, memberGroup{
					ID:    id,
					Title: g.Name,
					Set:   groupSet{ID: id, Title: g.Name},
				})
			}
			member.Groups = groups
		}

		if sendName {
			member.NameGiven = m.FirstName
			member.NameFamily = m.LastName
		}
		if sendEmail {
			member.Email = m.Email
		}

		if acceptGrades {
			token, err := BuildSourcedID(policy.InstanceID, m.UserID, m.LaunchID, policy.ServiceSalt).Token()
			if err != nil {
				return nil, err
			}
			member.ResultSourcedID = token
		}

		memberships.Members = append(memberships.Members, member)
	}

	env.SetMemberships(memberships)
	return env, nil
}

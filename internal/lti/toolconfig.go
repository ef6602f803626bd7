package lti

// Policy is the tri-state disclosure setting configured at the tool-type
// level. The instructor-choice state defers to a per-instance override flag.
type Policy int

const (
	PolicyNever Policy = iota
	PolicyAlways
	PolicyInstructorChoice
)

// PolicyFromInt maps the stored tool-type config value to a Policy.
// Unknown values are treated as never.
func PolicyFromInt(v int) Policy {
	switch v {
	case 1:
		return PolicyAlways
	case 2:
		return PolicyInstructorChoice
	default:
		return PolicyNever
	}
}

// Allows resolves the policy against the per-instance override flag.
func (p Policy) Allows(instructorChoice bool) bool {
	switch p {
	case PolicyAlways:
		return true
	case PolicyInstructorChoice:
		return instructorChoice
	default:
		return false
	}
}

// ToolTypePolicies are the disclosure/acceptance policies of a tool type.
type ToolTypePolicies struct {
	SendName     Policy
	SendEmail    Policy
	AcceptGrades Policy
}

// InstanceOverrides are the per-instance instructor-choice flags consulted
// when the corresponding type policy is PolicyInstructorChoice.
type InstanceOverrides struct {
	SendName     bool
	SendEmail    bool
	AcceptGrades bool
}

package domain

// Requirement is the resolved requiredness of a field for a member type.
//
// The zero value is RequirementUnconfigured: no rule exists for the field, so the
// host's default requiredness must be left alone.
type Requirement int

const (
	RequirementUnconfigured Requirement = iota
	RequirementRequired
	RequirementNotRequired
)

func (r Requirement) String() string {
	switch r {
	case RequirementRequired:
		return "required"
	case RequirementNotRequired:
		return "not_required"
	default:
		return "unconfigured"
	}
}

// Configured reports whether a rule produced this requirement.
func (r Requirement) Configured() bool { return r != RequirementUnconfigured }

// Apply returns the effective requiredness, falling back to defaultRequired when unconfigured.
func (r Requirement) Apply(defaultRequired bool) bool {
	switch r {
	case RequirementRequired:
		return true
	case RequirementNotRequired:
		return false
	default:
		return defaultRequired
	}
}

// RequirementOf converts a membership test into a configured requirement.
func RequirementOf(required bool) Requirement {
	if required {
		return RequirementRequired
	}
	return RequirementNotRequired
}

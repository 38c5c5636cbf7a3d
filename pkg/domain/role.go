package domain

import dErrors "caseflow/pkg/domain-errors"

// Role is the capacity in which an actor touches a case.
// Invariant: the value must be one of the supported roles.
//
// Usage: construct via ParseRole at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Role string

const (
	RolePolice   Role = "police"
	RoleLawyer   Role = "lawyer"
	RoleLitigant Role = "litigant"
	RoleJudge    Role = "judge"
	RoleSystem   Role = "system"
)

// validRoles is the single source of truth for valid actor roles.
var validRoles = map[Role]bool{
	RolePolice:   true,
	RoleLawyer:   true,
	RoleLitigant: true,
	RoleJudge:    true,
	RoleSystem:   true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported role %q", s)
	}
	return r, nil
}

// IsValid reports whether the role is one of the supported values.
func (r Role) IsValid() bool { return validRoles[r] }

func (r Role) String() string { return string(r) }

// Actor pairs an identity with the role and display name it acts under.
// It travels with every command so events can record who did what.
type Actor struct {
	ID   ActorID
	Role Role
	Name string
}

package model

import "fmt"

// Role is the kind of account performing an operation.
type Role string

const (
	// RoleCitizen submits reports and may close or delete their own
	// reports shortly after creation.
	RoleCitizen Role = "citizen"

	// RoleOfficial triages and resolves reports.
	RoleOfficial Role = "official"

	// RoleAdmin can do everything an official can, plus assignment and
	// unrestricted deletion.
	RoleAdmin Role = "admin"
)

// ParseRole validates a lower-case role token.
func ParseRole(token string) (Role, error) {
	r := Role(token)
	switch r {
	case RoleCitizen, RoleOfficial, RoleAdmin:
		return r, nil
	default:
		return "", NewValidationError("role", fmt.Sprintf("unknown role %q", token))
	}
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Actor is an already-authenticated identity supplied by the identity layer.
// The core never checks credentials; it only checks roles and ownership.
type Actor struct {
	// ID is the account identifier.
	ID string `json:"id"`

	// Role is the account role.
	Role Role `json:"role"`
}

// CanManageStatus reports whether the actor may edit report status directly.
func (a Actor) CanManageStatus() bool {
	switch a.Role {
	case RoleOfficial, RoleAdmin:
		return true
	case RoleCitizen:
		return false
	default:
		return false
	}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the actor submitted r.
func (a Actor) Owns(r *Report) bool {
	return r != nil && a.ID != "" && a.ID == r.ReporterID
}

package auth

import "errors"

// Role represents an authorisation tier for control-endpoint callers.
type Role string

const (
	// RoleViewer can read codec state. Overlay renderers and dashboards.
	RoleViewer Role = "viewer"

	// RoleOperator can also mute, switch profiles and open or close the
	// codec session. Studio operators and automation.
	RoleOperator Role = "operator"

	// RoleAdmin can additionally reboot the codec. A reboot drops an
	// on-air link, so it is kept off the operator role.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrForbidden    = errors.New("insufficient permissions")
)

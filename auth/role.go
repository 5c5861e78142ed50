package auth

import "strings"

// Roles recognized by the authorization gate.
const (
	RoleCitizen       = "citizen"
	RoleHeadAuthority = "head_authority"
)

// NormalizeRole maps a free-form role string onto the closed role set.
// It is the single source of truth for role semantics: lower-case, strip
// separators, then match. Every unrecognized value, including the empty
// string, is a citizen.
func NormalizeRole(role string) string {
	cleaned := strings.ToLower(strings.TrimSpace(role))
	cleaned = strings.NewReplacer("-", "", "_", "", " ", "").Replace(cleaned)
	switch cleaned {
	case "headauthority", "authorityhead", "admin":
		return RoleHeadAuthority
	default:
		return RoleCitizen
	}
}

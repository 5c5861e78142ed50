package auth

import "testing"

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		name string
		role string
		want string
	}{
		{name: "admin", role: "Admin", want: RoleHeadAuthority},
		{name: "hyphenated", role: "head-authority", want: RoleHeadAuthority},
		{name: "reversed with space", role: "Authority Head", want: RoleHeadAuthority},
		{name: "underscore", role: "head_authority", want: RoleHeadAuthority},
		{name: "upper case", role: "HEADAUTHORITY", want: RoleHeadAuthority},
		{name: "padded", role: "  admin  ", want: RoleHeadAuthority},
		{name: "empty", role: "", want: RoleCitizen},
		{name: "unknown", role: "resident", want: RoleCitizen},
		{name: "citizen", role: "citizen", want: RoleCitizen},
		{name: "near miss", role: "authority", want: RoleCitizen},
		{name: "garbage bytes", role: "\x00\xff???", want: RoleCitizen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeRole(tt.role); got != tt.want {
				t.Errorf("NormalizeRole(%q) = %q, want %q", tt.role, got, tt.want)
			}
		})
	}
}

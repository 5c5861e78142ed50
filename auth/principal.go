package auth

// Principal is the authenticated identity attached to a request after the
// resolver middleware has run. Role is always one of the normalized roles.
type Principal struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

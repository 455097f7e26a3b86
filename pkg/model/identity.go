package model

// Identity is the authenticated user's own record, returned by /api/users/me.
// Exactly one Identity exists at a time; it is held by the session gate and
// read-only for everything else.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

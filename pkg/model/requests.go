package model

// LoginRequest is the credential payload for /api/users/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued on successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// PeerRequest is the create/update payload for a peer. An empty IP asks the
// controller to auto-assign one.
type PeerRequest struct {
	PeerName string `json:"peer_name"`
	IP       string `json:"ip"`
}

// UserRequest is the create/update payload for a user account.
type UserRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	RoleID   string `json:"role_id"`
}

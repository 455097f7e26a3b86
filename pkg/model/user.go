package model

// User is a controller account that owns peers.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Peers     int    `json:"peers"`
	CreatedAt string `json:"created_at"`
}

// Role is an assignable account role.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

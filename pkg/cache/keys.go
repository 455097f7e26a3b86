package cache

// Resource keys. Mutations invalidate these; views subscribe to them.
const (
	KeyPeers    = "peers"
	KeyUsers    = "users"
	KeyRoles    = "roles"
	KeyIdentity = "user:me"
)

// KeyPeer is the key for a single peer record.
func KeyPeer(id string) string { return "peer:" + id }

// KeyUserPeers is the key for the peer list of one owning user.
func KeyUserPeers(userID string) string { return "peers:user:" + userID }

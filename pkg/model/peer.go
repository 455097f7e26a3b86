package model

// Peer describes a WireGuard peer as reported by the controller.
// RX/TX are raw byte counters and LatestHandshake is epoch seconds;
// online state and display strings are derived on read, never stored.
type Peer struct {
	ID              string `json:"id"`
	PeerName        string `json:"peer_name"`
	AssignedIP      string `json:"assigned_ip"`
	PublicKey       string `json:"public_key"`
	RX              int64  `json:"rx"`
	TX              int64  `json:"tx"`
	LatestHandshake int64  `json:"latest_handshake"`
}

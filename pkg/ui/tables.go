package ui

import (
	"encoding/json"
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"peerdesk/pkg/format"
	"peerdesk/pkg/model"
)

func newPeersTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "NAME", Width: 20},
			{Title: "IP", Width: 16},
			{Title: "STATUS", Width: 8},
			{Title: "RX", Width: 11},
			{Title: "TX", Width: 11},
			{Title: "LAST SEEN", Width: 18},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	return t
}

func peerRows(peers []model.Peer) []table.Row {
	rows := make([]table.Row, 0, len(peers))
	for _, p := range peers {
		status := offlineStyle.Render("offline")
		if format.Online(p.LatestHandshake) {
			status = onlineStyle.Render("online")
		}
		rows = append(rows, table.Row{
			p.PeerName,
			p.AssignedIP,
			status,
			format.DataSize(p.RX),
			format.DataSize(p.TX),
			format.TimeAgo(p.LatestHandshake),
		})
	}
	return rows
}

func newUsersTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "USERNAME", Width: 20},
			{Title: "ROLE", Width: 12},
			{Title: "PEERS", Width: 6},
			{Title: "CREATED", Width: 20},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	return t
}

func userRows(users []model.User) []table.Row {
	rows := make([]table.Row, 0, len(users))
	for _, u := range users {
		rows = append(rows, table.Row{
			u.Username,
			u.Role,
			strconv.Itoa(u.Peers),
			u.CreatedAt,
		})
	}
	return rows
}

// Snapshot decoders used to seed tables from the local store before the
// first fetch lands.
func decodePeers(raw []byte) (any, error) {
	var v []model.Peer
	err := json.Unmarshal(raw, &v)
	return v, err
}

func decodeUsers(raw []byte) (any, error) {
	var v []model.User
	err := json.Unmarshal(raw, &v)
	return v, err
}

func decodeRoles(raw []byte) (any, error) {
	var v []model.Role
	err := json.Unmarshal(raw, &v)
	return v, err
}

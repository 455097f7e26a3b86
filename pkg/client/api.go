package client

import (
	"context"
	"net/http"
	"strings"

	"peerdesk/pkg/model"
)

// Login exchanges credentials for a bearer token. Empty fields fail before a
// request is issued.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", &ValidationError{Field: "username", Reason: "required"}
	}
	if password == "" {
		return "", &ValidationError{Field: "password", Reason: "required"}
	}
	var resp model.LoginResponse
	req := model.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", req, false, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Me fetches the authenticated user's own record.
func (c *Client) Me(ctx context.Context) (model.Identity, error) {
	var id model.Identity
	err := c.do(ctx, http.MethodGet, "/api/users/me", nil, true, &id)
	return id, err
}

func (c *Client) Peers(ctx context.Context) ([]model.Peer, error) {
	var peers []model.Peer
	err := c.do(ctx, http.MethodGet, "/api/peers", nil, true, &peers)
	return peers, err
}

// UserPeers lists the peers owned by one user.
func (c *Client) UserPeers(ctx context.Context, userID string) ([]model.Peer, error) {
	var peers []model.Peer
	err := c.do(ctx, http.MethodGet, "/api/peers/users/"+userID, nil, true, &peers)
	return peers, err
}

func (c *Client) Peer(ctx context.Context, id string) (model.Peer, error) {
	var peer model.Peer
	err := c.do(ctx, http.MethodGet, "/api/peers/"+id, nil, true, &peer)
	return peer, err
}

func (c *Client) CreatePeer(ctx context.Context, ownerID string, req model.PeerRequest) (model.Peer, error) {
	var peer model.Peer
	err := c.do(ctx, http.MethodPost, "/api/peers/"+ownerID, req, true, &peer)
	return peer, err
}

func (c *Client) UpdatePeer(ctx context.Context, id string, req model.PeerRequest) (model.Peer, error) {
	var peer model.Peer
	err := c.do(ctx, http.MethodPut, "/api/peers/"+id, req, true, &peer)
	return peer, err
}

func (c *Client) DeletePeer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/peers/"+id, nil, true, nil)
}

// GeneratePeerConfig returns the peer's configuration document as raw text
// for download or QR presentation.
func (c *Client) GeneratePeerConfig(ctx context.Context, id string) (string, error) {
	body, err := c.doRaw(ctx, http.MethodPost, "/api/peers/generate-peer-config/"+id, nil, true)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := c.do(ctx, http.MethodGet, "/api/users", nil, true, &users)
	return users, err
}

func (c *Client) CreateUser(ctx context.Context, req model.UserRequest) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPost, "/api/users", req, true, &user)
	return user, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, req model.UserRequest) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodPut, "/api/users/"+id, req, true, &user)
	return user, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+id, nil, true, nil)
}

func (c *Client) Roles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := c.do(ctx, http.MethodGet, "/api/roles", nil, true, &roles)
	return roles, err
}

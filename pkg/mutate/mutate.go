// Package mutate executes write operations against the controller and makes
// their effects visible by invalidating the affected cache keys. The server
// stays the single source of truth: nothing here ever writes a value into the
// cache directly, so there is no optimistic state to diverge.
package mutate

import (
	"context"
	"log"

	"github.com/google/uuid"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/client"
	"peerdesk/pkg/model"
)

type Kind int

const (
	KindCreatePeer Kind = iota
	KindUpdatePeer
	KindDeletePeer
	KindGenerateConfig
	KindCreateUser
	KindUpdateUser
	KindDeleteUser
)

func (k Kind) String() string {
	switch k {
	case KindCreatePeer:
		return "create-peer"
	case KindUpdatePeer:
		return "update-peer"
	case KindDeletePeer:
		return "delete-peer"
	case KindGenerateConfig:
		return "generate-config"
	case KindCreateUser:
		return "create-user"
	case KindUpdateUser:
		return "update-user"
	case KindDeleteUser:
		return "delete-user"
	default:
		return "unknown"
	}
}

// Intent is one tagged write operation. It exists for the duration of a
// single mutation plus its cache invalidation.
type Intent struct {
	ID      string // correlation id for logs
	Kind    Kind
	PeerID  string
	OwnerID string // owning user for peer creation
	UserID  string
	Peer    *model.PeerRequest
	User    *model.UserRequest
}

func newIntent(kind Kind) Intent {
	return Intent{ID: uuid.NewString(), Kind: kind}
}

func CreatePeer(ownerID string, req model.PeerRequest) Intent {
	in := newIntent(KindCreatePeer)
	in.OwnerID = ownerID
	in.Peer = &req
	return in
}

func UpdatePeer(peerID, ownerID string, req model.PeerRequest) Intent {
	in := newIntent(KindUpdatePeer)
	in.PeerID = peerID
	in.OwnerID = ownerID
	in.Peer = &req
	return in
}

func DeletePeer(peerID, ownerID string) Intent {
	in := newIntent(KindDeletePeer)
	in.PeerID = peerID
	in.OwnerID = ownerID
	return in
}

func GenerateConfig(peerID string) Intent {
	in := newIntent(KindGenerateConfig)
	in.PeerID = peerID
	return in
}

func CreateUser(req model.UserRequest) Intent {
	in := newIntent(KindCreateUser)
	in.User = &req
	return in
}

func UpdateUser(userID string, req model.UserRequest) Intent {
	in := newIntent(KindUpdateUser)
	in.UserID = userID
	in.User = &req
	return in
}

func DeleteUser(userID string) Intent {
	in := newIntent(KindDeleteUser)
	in.UserID = userID
	return in
}

// AffectedKeys is the one place that knows which cached resources a write
// touches. Generating a config counts as a write because the controller may
// rotate the peer's keys while rendering it.
func (in Intent) AffectedKeys() []string {
	withOwner := func(keys []string) []string {
		if in.OwnerID != "" {
			keys = append(keys, cache.KeyUserPeers(in.OwnerID))
		}
		return keys
	}
	switch in.Kind {
	case KindCreatePeer:
		return withOwner([]string{cache.KeyPeers})
	case KindUpdatePeer, KindDeletePeer:
		return withOwner([]string{cache.KeyPeers, cache.KeyPeer(in.PeerID)})
	case KindGenerateConfig:
		return []string{cache.KeyPeers, cache.KeyPeer(in.PeerID)}
	case KindCreateUser, KindUpdateUser:
		return []string{cache.KeyUsers}
	case KindDeleteUser:
		// Deleting a user removes their peers too.
		return []string{cache.KeyUsers, cache.KeyPeers}
	default:
		return nil
	}
}

// Result carries whichever payload the mutation produced.
type Result struct {
	Peer   *model.Peer
	User   *model.User
	Config string // generated configuration document
}

type Coordinator struct {
	api   *client.Client
	cache *cache.Cache
}

func NewCoordinator(api *client.Client, c *cache.Cache) *Coordinator {
	return &Coordinator{api: api, cache: c}
}

// Do performs exactly one write. On success every affected key is
// invalidated so subsequent reads observe fresh server truth; on failure the
// error is returned verbatim and the cache is left untouched.
func (co *Coordinator) Do(ctx context.Context, in Intent) (Result, error) {
	res, err := co.execute(ctx, in)
	if err != nil {
		log.Printf("mutation %s kind=%s failed: %v", in.ID, in.Kind, err)
		return Result{}, err
	}
	keys := in.AffectedKeys()
	for _, key := range keys {
		co.cache.Invalidate(key)
	}
	log.Printf("mutation %s kind=%s ok; invalidated %v", in.ID, in.Kind, keys)
	return res, nil
}

func (co *Coordinator) execute(ctx context.Context, in Intent) (Result, error) {
	switch in.Kind {
	case KindCreatePeer:
		if in.Peer == nil || in.Peer.PeerName == "" {
			return Result{}, &client.ValidationError{Field: "peer_name", Reason: "required"}
		}
		peer, err := co.api.CreatePeer(ctx, in.OwnerID, *in.Peer)
		if err != nil {
			return Result{}, err
		}
		return Result{Peer: &peer}, nil
	case KindUpdatePeer:
		if in.Peer == nil || in.Peer.PeerName == "" {
			return Result{}, &client.ValidationError{Field: "peer_name", Reason: "required"}
		}
		peer, err := co.api.UpdatePeer(ctx, in.PeerID, *in.Peer)
		if err != nil {
			return Result{}, err
		}
		return Result{Peer: &peer}, nil
	case KindDeletePeer:
		return Result{}, co.api.DeletePeer(ctx, in.PeerID)
	case KindGenerateConfig:
		conf, err := co.api.GeneratePeerConfig(ctx, in.PeerID)
		if err != nil {
			return Result{}, err
		}
		return Result{Config: conf}, nil
	case KindCreateUser:
		if in.User == nil || in.User.Username == "" {
			return Result{}, &client.ValidationError{Field: "username", Reason: "required"}
		}
		user, err := co.api.CreateUser(ctx, *in.User)
		if err != nil {
			return Result{}, err
		}
		return Result{User: &user}, nil
	case KindUpdateUser:
		if in.User == nil {
			return Result{}, &client.ValidationError{Field: "user", Reason: "required"}
		}
		user, err := co.api.UpdateUser(ctx, in.UserID, *in.User)
		if err != nil {
			return Result{}, err
		}
		return Result{User: &user}, nil
	case KindDeleteUser:
		return Result{}, co.api.DeleteUser(ctx, in.UserID)
	default:
		return Result{}, &client.ValidationError{Field: "kind", Reason: "unknown mutation kind"}
	}
}

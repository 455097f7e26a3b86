// Package session guards protected views behind an identity check. The gate
// is the only writer of the process-wide Identity; the login/logout flow and
// the gate itself are the only writers of the credential.
package session

import (
	"context"
	"sync"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/client"
	"peerdesk/pkg/model"
	"peerdesk/pkg/token"
)

type State int

const (
	StateUnresolved State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

type Gate struct {
	tokens *token.Store
	api    *client.Client
	cache  *cache.Cache

	mu       sync.RWMutex
	state    State
	identity model.Identity
}

func NewGate(tokens *token.Store, api *client.Client, c *cache.Cache) *Gate {
	return &Gate{tokens: tokens, api: api, cache: c, state: StateUnresolved}
}

// Resolve evaluates the gate for one navigation into protected content. With
// no credential present it returns StateUnauthenticated without issuing a
// network call. Otherwise it rides the cached identity entry: any fetch
// failure, expired token included, clears the credential and denies. The
// outcome is terminal for this navigation; callers re-enter by calling
// Resolve again.
func (g *Gate) Resolve(ctx context.Context) State {
	if _, ok := g.tokens.Get(); !ok {
		return g.deny(false)
	}

	fetch := func(ctx context.Context) (any, error) { return g.api.Me(ctx) }
	done := make(chan cache.Entry, 1)
	entry, cancel := g.cache.Subscribe(cache.KeyIdentity, fetch, cache.Options{}, func(e cache.Entry) {
		if e.Status == cache.StatusReady || e.Status == cache.StatusError {
			select {
			case done <- e:
			default:
			}
		}
	})
	defer cancel()

	// Only a Ready snapshot is usable as-is. An Error snapshot is the
	// residue of an earlier resolve; Subscribe just (re)started or joined a
	// fetch for this key, so wait for that fresh result instead of denying
	// on the old one.
	if entry.Status != cache.StatusReady {
		select {
		case entry = <-done:
		case <-ctx.Done():
			return g.deny(false)
		}
	}

	if entry.Status == cache.StatusError {
		// Expired or rejected credentials collapse into one outcome:
		// re-authenticate.
		return g.deny(true)
	}
	id, ok := entry.Value.(model.Identity)
	if !ok {
		return g.deny(true)
	}

	g.mu.Lock()
	g.identity = id
	g.state = StateAuthenticated
	g.mu.Unlock()
	return StateAuthenticated
}

func (g *Gate) deny(clearToken bool) State {
	if clearToken {
		g.tokens.Clear()
	}
	g.mu.Lock()
	g.identity = model.Identity{}
	g.state = StateUnauthenticated
	g.mu.Unlock()
	return StateUnauthenticated
}

// State returns the most recent resolution outcome.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Identity returns the authenticated user's record. Only valid while the
// gate is StateAuthenticated.
func (g *Gate) Identity() (model.Identity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identity, g.state == StateAuthenticated
}

// Logout is the session teardown: credential gone, identity gone, cached
// resources dropped.
func (g *Gate) Logout() {
	g.tokens.Clear()
	g.cache.Reset()
	g.mu.Lock()
	g.identity = model.Identity{}
	g.state = StateUnauthenticated
	g.mu.Unlock()
}

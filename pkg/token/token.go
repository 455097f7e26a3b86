// Package token holds the process-wide bearer credential. Absence of a token
// is a valid state, not an error; an invalid or expired token is only ever
// discovered by the server rejecting it.
package token

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"peerdesk/pkg/localdb"
)

// Scope mirrors the original cookie path scope; all credentials live under "/".
const Scope = "/"

// Store is the single authority for the current credential. Writers are the
// login/logout flow and the session gate; everything else only reads.
type Store struct {
	mu    sync.RWMutex
	token string
	db    *localdb.DB
}

// NewStore loads any persisted credential from db. A nil db keeps the store
// purely in-memory.
func NewStore(db *localdb.DB) *Store {
	s := &Store{db: db}
	if db != nil {
		if tok, ok, err := db.LoadToken(Scope); err == nil && ok {
			s.token = tok
		}
	}
	return s
}

// Get returns the current credential, if any.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set stores the credential and persists it under Scope.
func (s *Store) Set(tok string) {
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	if s.db != nil {
		_ = s.db.SaveToken(Scope, tok)
	}
}

// Clear drops the credential in memory and on disk.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if s.db != nil {
		_ = s.db.ClearToken(Scope)
	}
}

// Claims is the subset of JWT claims the console displays.
type Claims struct {
	Username  string
	ExpiresAt time.Time
}

// Claims decodes the current token without verifying its signature; the
// console has no signing secret and only uses claims for display. A token the
// server would reject still surfaces as a 401, never here.
func (s *Store) Claims() (Claims, bool) {
	tok, ok := s.Get()
	if !ok {
		return Claims{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		return Claims{}, false
	}
	var out Claims
	if mc, ok := parsed.Claims.(jwt.MapClaims); ok {
		if name, ok := mc["username"].(string); ok {
			out.Username = name
		}
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, true
}

// Expired reports whether the decoded token carries an exp claim in the past.
// Best effort only; the server remains the authority.
func (s *Store) Expired() bool {
	c, ok := s.Claims()
	if !ok || c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Before(time.Now())
}

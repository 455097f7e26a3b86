package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/client"
	"peerdesk/pkg/model"
	"peerdesk/pkg/token"
)

type fixture struct {
	gate   *Gate
	tokens *token.Store
	cache  *cache.Cache
	calls  *int64
}

func newFixture(t *testing.T, handler http.HandlerFunc) fixture {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	tokens := token.NewStore(nil)
	api := client.New(srv.URL, srv.Client(), tokens)
	c := cache.New(nil)
	return fixture{gate: NewGate(tokens, api, c), tokens: tokens, cache: c, calls: &calls}
}

func TestNoCredentialDeniesWithoutNetwork(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should never be reached")
	})

	if got := f.gate.Resolve(context.Background()); got != StateUnauthenticated {
		t.Fatalf("Resolve = %v, want unauthenticated", got)
	}
	if n := atomic.LoadInt64(f.calls); n != 0 {
		t.Fatalf("gate issued %d network calls with no credential", n)
	}
	if _, ok := f.gate.Identity(); ok {
		t.Fatal("identity present while unauthenticated")
	}
}

func TestValidCredentialAuthenticates(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(model.Identity{ID: "u1", Username: "hari", Role: "admin"})
	})
	f.tokens.Set("good-token")

	if got := f.gate.Resolve(context.Background()); got != StateAuthenticated {
		t.Fatalf("Resolve = %v, want authenticated", got)
	}
	id, ok := f.gate.Identity()
	if !ok || id.Username != "hari" || id.Role != "admin" {
		t.Fatalf("identity = %+v ok=%v", id, ok)
	}
	if f.gate.State() != StateAuthenticated {
		t.Fatalf("state = %v", f.gate.State())
	}
}

func TestRejectedCredentialClearsTokenAndDenies(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"token expired"}`))
	})
	f.tokens.Set("expired-token")

	if got := f.gate.Resolve(context.Background()); got != StateUnauthenticated {
		t.Fatalf("Resolve = %v, want unauthenticated", got)
	}
	if _, ok := f.tokens.Get(); ok {
		t.Fatal("rejected credential not cleared")
	}

	// The outcome is terminal: re-resolving with the token gone must not
	// issue another request.
	before := atomic.LoadInt64(f.calls)
	if got := f.gate.Resolve(context.Background()); got != StateUnauthenticated {
		t.Fatalf("second Resolve = %v", got)
	}
	if atomic.LoadInt64(f.calls) != before {
		t.Fatal("gate retried after credential was cleared")
	}
}

func TestReloginAfterRejectedCredential(t *testing.T) {
	var accept atomic.Bool
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if !accept.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"token expired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(model.Identity{ID: "u1", Username: "hari", Role: "admin"})
	})
	f.tokens.Set("expired-token")
	if got := f.gate.Resolve(context.Background()); got != StateUnauthenticated {
		t.Fatalf("first Resolve = %v, want unauthenticated", got)
	}

	// The failed resolve leaves an Error identity entry behind; a later
	// sign-in with a good credential must wait for its own fetch rather
	// than deny on that residue.
	accept.Store(true)
	f.tokens.Set("fresh-token")
	if got := f.gate.Resolve(context.Background()); got != StateAuthenticated {
		t.Fatalf("Resolve after re-login = %v, want authenticated", got)
	}
	if _, ok := f.tokens.Get(); !ok {
		t.Fatal("fresh token was cleared")
	}
	if id, ok := f.gate.Identity(); !ok || id.Username != "hari" {
		t.Fatalf("identity = %+v ok=%v", id, ok)
	}
}

func TestSecondResolveServesCachedIdentity(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.Identity{ID: "u1", Username: "hari"})
	})
	f.tokens.Set("good-token")

	if f.gate.Resolve(context.Background()) != StateAuthenticated {
		t.Fatal("first resolve failed")
	}
	// Second navigation resolves from the cached entry without waiting.
	if f.gate.Resolve(context.Background()) != StateAuthenticated {
		t.Fatal("second resolve failed")
	}
}

func TestLogoutTeardown(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.Identity{ID: "u1", Username: "hari"})
	})
	f.tokens.Set("good-token")
	if f.gate.Resolve(context.Background()) != StateAuthenticated {
		t.Fatal("resolve failed")
	}

	f.gate.Logout()
	if _, ok := f.tokens.Get(); ok {
		t.Fatal("token survived logout")
	}
	if _, ok := f.gate.Identity(); ok {
		t.Fatal("identity survived logout")
	}
	if _, ok := f.cache.Get(cache.KeyIdentity); ok {
		t.Fatal("cache entries survived logout")
	}
	if f.gate.State() != StateUnauthenticated {
		t.Fatalf("state after logout = %v", f.gate.State())
	}
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"peerdesk/pkg/model"
	"peerdesk/pkg/token"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *token.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokens := token.NewStore(nil)
	return New(srv.URL, srv.Client(), tokens), tokens
}

func TestBearerHeaderSent(t *testing.T) {
	var gotAuth string
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(model.Identity{ID: "u1", Username: "hari"})
	}))
	tokens.Set("tok-123")

	id, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if id.Username != "hari" {
		t.Errorf("identity = %+v", id)
	}
}

func TestRequiresAuthFailsFastWithoutToken(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))

	_, err := c.Peers(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("request reached the server %d times, want 0", calls)
	}
}

func TestStructuredDetailParsed(t *testing.T) {
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"detail":"peer name already in use"}`))
	}))
	tokens.Set("tok")

	_, err := c.CreatePeer(context.Background(), "u1", model.PeerRequest{PeerName: "laptop"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Detail != "peer name already in use" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestUnparseableErrorBodyKeepsStatus(t *testing.T) {
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	tokens.Set("tok")

	_, err := c.Peers(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Detail != "" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestRejectedTokenIsUnauthenticated(t *testing.T) {
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"token expired"}`))
	}))
	tokens.Set("stale-token")

	_, err := c.Me(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestForbiddenStaysAPIError(t *testing.T) {
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"admin role required"}`))
	}))
	tokens.Set("member-token")

	// A privilege failure is not a credential failure; the caller must not
	// be pushed into re-authenticating over it.
	_, err := c.Users(context.Background())
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("403 mapped to ErrUnauthenticated: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Detail != "admin role required" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore
	tokens := token.NewStore(nil)
	tokens.Set("tok")
	c := New(srv.URL, nil, tokens)

	_, err := c.Peers(context.Background())
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want *NetworkError", err)
	}
}

func TestLoginValidation(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
	}))

	if _, err := c.Login(context.Background(), "", "pw"); err == nil {
		t.Fatal("empty username accepted")
	} else {
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "username" {
			t.Fatalf("err = %v, want username ValidationError", err)
		}
	}
	if _, err := c.Login(context.Background(), "hari", ""); err == nil {
		t.Fatal("empty password accepted")
	}
	if atomic.LoadInt64(&calls) != 0 {
		t.Fatalf("validation failures issued %d requests", calls)
	}
}

func TestLoginReturnsAccessToken(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req model.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "hari" || req.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(model.LoginResponse{AccessToken: "granted"})
	}))

	tok, err := c.Login(context.Background(), "hari", "pw")
	if err != nil || tok != "granted" {
		t.Fatalf("Login = %q, %v", tok, err)
	}
}

func TestGeneratePeerConfigReturnsRawText(t *testing.T) {
	const conf = "[Interface]\nPrivateKey = abc\n"
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/peers/generate-peer-config/p1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(conf))
	}))
	tokens.Set("tok")

	got, err := c.GeneratePeerConfig(context.Background(), "p1")
	if err != nil || got != conf {
		t.Fatalf("GeneratePeerConfig = %q, %v", got, err)
	}
}

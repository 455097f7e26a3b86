package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/token"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// fakeStream upgrades connections and lets the test push update messages.
type fakeStream struct {
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
	auth     atomic.Value // last Authorization header
}

func (f *fakeStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.auth.Store(r.Header.Get("Authorization"))
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.conns <- conn
}

func (f *fakeStream) push(t *testing.T, msg any) {
	t.Helper()
	select {
	case conn := <-f.conns:
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("push: %v", err)
		}
		f.conns <- conn
	case <-time.After(time.Second):
		t.Fatal("no live connection to push to")
	}
}

func startLive(t *testing.T, c *cache.Cache) *fakeStream {
	t.Helper()
	f := &fakeStream{conns: make(chan *websocket.Conn, 4)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	tokens := token.NewStore(nil)
	tokens.Set("tok")
	cl, err := New(srv.URL, tokens, c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cl.retry = 20 * time.Millisecond
	t.Cleanup(cl.Close)
	cl.Start()
	return f
}

func countingSubscribe(t *testing.T, c *cache.Cache, key string) *int64 {
	t.Helper()
	var calls int64
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt64(&calls, 1)
		return "v", nil
	}
	_, cancel := c.Subscribe(key, fetch, cache.Options{}, func(cache.Entry) {})
	t.Cleanup(cancel)
	waitFor(t, time.Second, func() bool { return atomic.LoadInt64(&calls) == 1 }, "initial fetch")
	return &calls
}

func TestPushedInvalidationTriggersRefetch(t *testing.T) {
	c := cache.New(nil)
	calls := countingSubscribe(t, c, cache.KeyPeers)

	f := startLive(t, c)
	waitFor(t, time.Second, func() bool { return len(f.conns) == 1 }, "client to connect")

	f.push(t, map[string]any{"type": "invalidate", "payload": map[string]any{"key": cache.KeyPeers}})
	waitFor(t, time.Second, func() bool { return atomic.LoadInt64(calls) == 2 }, "pushed invalidation to refetch")

	if got, _ := f.auth.Load().(string); got != "Bearer tok" {
		t.Fatalf("stream auth header = %q", got)
	}
}

func TestUnknownMessageIgnored(t *testing.T) {
	c := cache.New(nil)
	calls := countingSubscribe(t, c, cache.KeyUsers)

	f := startLive(t, c)
	waitFor(t, time.Second, func() bool { return len(f.conns) == 1 }, "client to connect")

	f.push(t, map[string]any{"type": "heartbeat"})
	f.push(t, map[string]any{"type": "invalidate", "payload": map[string]any{"key": ""}})
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Fatalf("ignorable messages caused %d extra fetches", got-1)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	c := cache.New(nil)
	f := startLive(t, c)
	waitFor(t, time.Second, func() bool { return len(f.conns) == 1 }, "first connection")

	conn := <-f.conns
	_ = conn.Close()
	waitFor(t, 2*time.Second, func() bool { return len(f.conns) == 1 }, "client to redial")
}

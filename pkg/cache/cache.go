// Package cache maintains one authoritative, deduplicated, optionally-polled
// copy of each controller resource for the lifetime of the console session.
//
// Invariants: at most one fetch per key is ever in flight; invalidations that
// arrive during a fetch coalesce into a single follow-up; fetch failures keep
// the previous value so a transient blip never blanks the display.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"peerdesk/pkg/localdb"
)

// DefaultPollInterval is the fixed re-fetch cadence for live collections.
const DefaultPollInterval = 10 * time.Second

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc loads the current server truth for one key.
type FetchFunc func(ctx context.Context) (any, error)

// DecodeFunc revives a persisted snapshot into the typed value.
type DecodeFunc func([]byte) (any, error)

// Entry is a point-in-time view of one cached resource. Err is only set while
// Status is StatusError; Value survives errors as stale-but-displayable data.
type Entry struct {
	Key       string
	Value     any
	FetchedAt time.Time
	Status    Status
	Err       error
}

// Options configures one subscription's key-level behavior.
type Options struct {
	// PollInterval re-fetches the key at a fixed cadence while at least one
	// subscriber remains. Zero disables polling.
	PollInterval time.Duration
	// Decode, with a state db present, seeds a never-fetched entry from its
	// persisted snapshot so the first render shows stale data immediately.
	Decode DecodeFunc
}

type entry struct {
	key       string
	fetch     FetchFunc
	value     any
	fetchedAt time.Time
	status    Status
	err       error

	inflight bool // a fetch is executing right now
	pending  bool // invalidated mid-fetch; run exactly one follow-up
	stale    bool // invalidated with no subscribers; fetch on next subscribe

	subs    map[int]func(Entry)
	nextSub int

	pollStop chan struct{}
}

func (e *entry) snapshot() Entry {
	return Entry{Key: e.key, Value: e.value, FetchedAt: e.fetchedAt, Status: e.status, Err: e.err}
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	db      *localdb.DB
}

// New builds a cache. db is optional; when present, successful fetches are
// persisted and never-fetched keys can be seeded via Options.Decode.
func New(db *localdb.DB) *Cache {
	return &Cache{entries: make(map[string]*entry), db: db}
}

// Subscribe registers fn for change notifications on key and returns the
// current entry plus an unsubscribe func. The first subscriber triggers an
// immediate fetch; later subscribers share the same entry and never cause a
// duplicate request.
func (c *Cache) Subscribe(key string, fetch FetchFunc, opts Options, fn func(Entry)) (Entry, func()) {
	c.mu.Lock()
	e := c.entries[key]
	if e == nil {
		e = &entry{key: key, status: StatusIdle, subs: make(map[int]func(Entry))}
		c.entries[key] = e
	}
	e.fetch = fetch

	if e.status == StatusIdle && e.value == nil && c.db != nil && opts.Decode != nil {
		if raw, at, ok, err := c.db.LoadSnapshot(key); err == nil && ok {
			if v, err := opts.Decode(raw); err == nil {
				e.value = v
				e.fetchedAt = at
			}
		}
	}

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	first := len(e.subs) == 1

	// A fetch already in flight covers this subscriber too; joining must
	// never cause a duplicate request.
	if !e.inflight && (first || e.stale || e.status == StatusIdle) {
		e.stale = false
		c.startFetchLocked(e)
	}
	if opts.PollInterval > 0 && e.pollStop == nil {
		e.pollStop = make(chan struct{})
		go c.pollLoop(key, opts.PollInterval, e.pollStop)
	}

	snap := e.snapshot()
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(e.subs, id)
			if len(e.subs) == 0 && e.pollStop != nil {
				close(e.pollStop)
				e.pollStop = nil
			}
			c.mu.Unlock()
		})
	}
	return snap, cancel
}

// Get returns the last known state for key without blocking or fetching.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Invalidate marks key stale. With active subscribers it triggers exactly one
// re-fetch, coalescing with any fetch already in flight; without subscribers
// it defers the fetch to the next Subscribe.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if len(e.subs) == 0 {
		e.stale = true
		return
	}
	c.startFetchLocked(e)
}

// Reset drops every entry and stops all pollers (logout/session teardown).
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.pollStop != nil {
			close(e.pollStop)
			e.pollStop = nil
		}
	}
	c.entries = make(map[string]*entry)
	if c.db != nil {
		_ = c.db.ClearSnapshots()
	}
}

// startFetchLocked serializes fetch execution per key: a call while a fetch is
// in flight records a pending flag instead of starting a second request, and
// any number of such calls collapse into one follow-up fetch.
func (c *Cache) startFetchLocked(e *entry) {
	if e.inflight {
		e.pending = true
		return
	}
	e.inflight = true
	// With no stale value to display there is nothing worth keeping a
	// settled Error status for; the refetch reads as Loading. An Error entry
	// that still holds a value keeps showing it until the refetch lands.
	if e.value == nil {
		e.status = StatusLoading
	}
	fetch := e.fetch
	key := e.key
	go func() {
		v, err := fetch(context.Background())
		c.complete(key, v, err)
	}()
}

func (c *Cache) complete(key string, v any, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		// entry evicted while the fetch ran; drop the result
		c.mu.Unlock()
		return
	}
	e.inflight = false
	if err != nil {
		e.err = err
		e.status = StatusError
	} else {
		e.value = v
		e.err = nil
		e.status = StatusReady
		e.fetchedAt = time.Now()
		if c.db != nil {
			if raw, mErr := json.Marshal(v); mErr == nil {
				_ = c.db.SaveSnapshot(key, raw, e.fetchedAt)
			}
		}
	}
	snap := e.snapshot()
	subs := make([]func(Entry), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	if e.pending {
		e.pending = false
		c.startFetchLocked(e)
	}
	c.mu.Unlock()

	// Subscribers are notified after the state transition; a departed
	// subscriber is no longer in the list and hears nothing.
	for _, fn := range subs {
		fn(snap)
	}
}

// pollLoop re-fetches key on a fixed cadence. A tick that lands while another
// fetch is in flight is skipped entirely, so polling never races a
// mutation-triggered refresh into a second concurrent request.
func (c *Cache) pollLoop(key string, every time.Duration, stop chan struct{}) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			c.mu.Lock()
			if e, ok := c.entries[key]; ok && !e.inflight && len(e.subs) > 0 {
				c.startFetchLocked(e)
			}
			c.mu.Unlock()
		}
	}
}

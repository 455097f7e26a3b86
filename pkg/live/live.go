// Package live maintains a websocket subscription to the controller's update
// stream and turns pushed change notices into cache invalidations. The
// connection is best effort: when it is down the poller still keeps entries
// fresh, just less promptly.
package live

import (
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"peerdesk/pkg/cache"
	"peerdesk/pkg/token"
)

const updatePath = "/api/ws/updates"

type message struct {
	Type    string `json:"type"`
	Payload struct {
		Key string `json:"key"`
	} `json:"payload"`
}

// Client holds a single ws connection to the controller update stream.
type Client struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	endpoint string
	tokens   *token.Store
	cache    *cache.Cache
	retry    time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func New(controller string, tokens *token.Store, c *cache.Cache) (*Client, error) {
	u, err := url.Parse(controller)
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	u.Scheme = scheme
	u.Path = updatePath
	return &Client{
		endpoint: u.String(),
		tokens:   tokens,
		cache:    c,
		retry:    5 * time.Second,
		stop:     make(chan struct{}),
	}, nil
}

func (c *Client) Start() {
	if c == nil {
		return
	}
	go c.loop()
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

func (c *Client) loop() {
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		header := http.Header{}
		if tok, ok := c.tokens.Get(); ok {
			header.Set("Authorization", "Bearer "+tok)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(c.endpoint, header)
		if err != nil {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			log.Printf("live: dial failed: %v (url=%s status=%d)", err, c.endpoint, status)
			if !c.sleep() {
				return
			}
			continue
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		log.Printf("live: connected url=%s", c.endpoint)
		c.readLoop(conn)
		log.Printf("live: disconnected, retrying in %s", c.retry)
		if !c.sleep() {
			return
		}
	}
}

func (c *Client) sleep() bool {
	select {
	case <-c.stop:
		return false
	case <-time.After(c.retry):
		return true
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "invalidate":
			if msg.Payload.Key == "" {
				continue
			}
			log.Printf("live: invalidate key=%s", msg.Payload.Key)
			c.cache.Invalidate(msg.Payload.Key)
		default:
			// Unknown message types are skipped so the stream can grow.
		}
	}
}

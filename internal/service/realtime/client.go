package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client follows a feed endpoint and reconnects after failures. Every
// reconnect receives fresh snapshots, so a Mirror fed by the client heals
// whatever it missed while disconnected.
type Client struct {
	URL     string
	Header  http.Header
	Dialer  *websocket.Dialer
	Backoff time.Duration
	// OnError is called with connection errors before each retry. Optional.
	OnError func(error)
}

// FeedURL builds the realtime endpoint URL for the given base and tables.
func FeedURL(base string, tables ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/realtime"
	q := u.Query()
	q.Set("tables", strings.Join(tables, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run delivers events to handle until ctx is cancelled.
func (c *Client) Run(ctx context.Context, handle func(ChangeEvent)) error {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	for {
		err := c.follow(ctx, dialer, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.OnError != nil && err != nil {
			c.OnError(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func (c *Client) follow(ctx context.Context, dialer *websocket.Dialer, handle func(ChangeEvent)) error {
	conn, _, err := dialer.DialContext(ctx, c.URL, c.Header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.URL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var ev ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		handle(ev)
	}
}

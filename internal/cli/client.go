package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chr1syy/maestro/internal/events/bus"
	"github.com/chr1syy/maestro/internal/process"
)

// Client talks to a running maestrod.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the daemon listening on addr (host:port or URL).
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: base, http: &http.Client{Timeout: 30 * time.Second}}
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("maestrod unreachable at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body apiError
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, body.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListProcesses returns the daemon's running processes.
func (c *Client) ListProcesses(ctx context.Context) ([]process.Info, error) {
	var body struct {
		Processes []process.Info `json:"processes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/processes", &body); err != nil {
		return nil, err
	}
	return body.Processes, nil
}

// Kill stops the process owning sessionID.
func (c *Client) Kill(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/processes/"+url.PathEscape(sessionID), nil)
}

// KillAll stops every process.
func (c *Client) KillAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/processes/kill-all", nil)
}

// Watch streams bus events until ctx is done or the connection drops.
// An empty sessionID watches every session.
func (c *Client) Watch(ctx context.Context, sessionID string, fn func(*bus.Event) error) error {
	u, err := url.Parse(c.base + "/api/v1/events")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if sessionID != "" {
		u.RawQuery = url.Values{"session_id": {sessionID}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		var ev bus.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(&ev); err != nil {
			if errors.Is(err, errStopWatch) {
				return nil
			}
			return err
		}
	}
}

var errStopWatch = errors.New("stop watching")

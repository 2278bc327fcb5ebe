package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skaldy/rtspeak/internal/config"
	"github.com/skaldy/rtspeak/internal/logging"
)

const realtimePath = "/openai/realtime"

// ErrConnect marks a failure to establish the websocket session. Connection
// failures are never retried here; callers decide.
var ErrConnect = errors.New("connect realtime endpoint")

// Client owns one websocket connection to a realtime deployment. It is
// created by Dial, serves exactly one request/response exchange, and must be
// closed on every exit path.
type Client struct {
	conn    *websocket.Conn
	events  chan Event
	readErr chan error
	done    chan struct{}
	writeMu sync.Mutex

	closeOnce sync.Once
}

// Dial validates cfg, connects to the deployment's realtime endpoint and
// starts the receive loop. Configuration errors are reported before any
// network call is made.
func Dial(ctx context.Context, cfg config.ModelConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := sessionURL(cfg)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("api-key", cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	c := &Client{
		conn:    conn,
		events:  make(chan Event, 32),
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
	}
	c.startReceiver()
	return c, nil
}

// SendResponseCreate submits the single generation request for this session.
func (c *Client) SendResponseCreate(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeResponseCreate(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("send response.create: %w", err)
	}
	return nil
}

// Next returns the next decoded event in arrival order. It returns io.EOF
// once the remote side closes the stream, and the read error otherwise.
func (c *Client) Next(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return Event{}, c.takeReadErr()
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) startReceiver() {
	go func() {
		defer close(c.events)
		for {
			messageType, data, err := c.conn.ReadMessage()
			if err != nil {
				c.setReadErr(mapReadError(err))
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			ev, err := parseEvent(data)
			if err != nil {
				c.setReadErr(err)
				return
			}
			if ev.Kind == KindOther {
				logging.Debugf("ignoring event type %q", ev.Type)
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}
	}()
}

func (c *Client) setReadErr(err error) {
	select {
	case c.readErr <- err:
	default:
	}
}

func (c *Client) takeReadErr() error {
	select {
	case err := <-c.readErr:
		return err
	default:
		return io.EOF
	}
}

// mapReadError folds the ways a stream can end into io.EOF so the consumer
// can treat "connection gone" uniformly; anything else is a real read fault.
func mapReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return fmt.Errorf("read event: %w", err)
}

// sessionURL builds the websocket URL for one deployment:
// wss://<resource>/openai/realtime?api-version=<ver>&deployment=<name>.
func sessionURL(cfg config.ModelConfig) (string, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + realtimePath
	q := u.Query()
	q.Set("api-version", cfg.APIVersion)
	q.Set("deployment", cfg.Deployment)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

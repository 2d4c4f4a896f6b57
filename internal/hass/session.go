package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// ReceiveBufferSize is the read buffer used for every session.
	ReceiveBufferSize = 16 * 1024
	// maxMessageSize bounds a single reassembled message (get_states on big
	// installations easily exceeds the receive buffer).
	maxMessageSize = 32 << 20
)

// Conn is the method set of an authenticated session. Aggregator code only
// depends on this so that tests can substitute a fake.
type Conn interface {
	Exchange(ctx context.Context, cmd Command) (*Result, error)
	Send(ctx context.Context, payload any) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens authenticated sessions.
type Dialer interface {
	Connect(ctx context.Context, hostURL, accessToken string) (Conn, error)
}

// WSDialer dials real Home Assistant servers.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

func (d WSDialer) Connect(ctx context.Context, hostURL, accessToken string) (Conn, error) {
	if d.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.HandshakeTimeout)
		defer cancel()
	}
	s, err := Connect(ctx, hostURL, accessToken)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Session is one authenticated websocket. Exchanges are strictly sequential;
// a Session must not be shared between goroutines.
type Session struct {
	conn   *websocket.Conn
	nextID atomic.Uint64
}

type authFrame struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
	Message     string `json:"message,omitempty"`
	HAVersion   string `json:"ha_version,omitempty"`
}

// WebSocketURL maps an http(s) base URL onto the ws(s) API endpoint.
func WebSocketURL(hostURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(hostURL))
	if err != nil {
		return "", fmt.Errorf("hass: invalid host url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("hass: unsupported host url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("hass: host url has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Connect dials hostURL, consumes the greeting, and authenticates with
// accessToken. On failure the socket is closed before returning.
func Connect(ctx context.Context, hostURL, accessToken string) (*Session, error) {
	wsURL, err := WebSocketURL(hostURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   ReceiveBufferSize,
		WriteBufferSize:  ReceiveBufferSize,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	conn.SetReadLimit(maxMessageSize)

	s := &Session{conn: conn}
	if err := s.authenticate(ctx, accessToken); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) authenticate(ctx context.Context, accessToken string) error {
	// Greeting (auth_required) carries nothing we need.
	if _, err := s.Receive(ctx); err != nil {
		return err
	}
	if err := s.Send(ctx, authFrame{Type: "auth", AccessToken: accessToken}); err != nil {
		return err
	}
	raw, err := s.Receive(ctx)
	if err != nil {
		return err
	}
	var resp authFrame
	if err := json.Unmarshal(raw, &resp); err != nil {
		return &AuthError{Message: "unreadable auth response"}
	}
	if resp.Type != "auth_ok" {
		return &AuthError{Type: resp.Type, Message: resp.Message}
	}
	return nil
}

// NextID returns the next correlation id of this session, starting at 1.
func (s *Session) NextID() uint64 {
	return s.nextID.Add(1)
}

// Send writes payload as a single JSON text frame.
func (s *Session) Send(ctx context.Context, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hass: encode message: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(dl)
	} else {
		_ = s.conn.SetWriteDeadline(time.Time{})
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return connErr(ctx, err)
	}
	return nil
}

// Receive blocks for exactly one message and returns its text.
func (s *Session) Receive(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(dl)
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		return nil, connErr(ctx, err)
	}
	return msg, nil
}

// Exchange sends cmd with a fresh id and waits for the result frame carrying
// the same id. Frames for other ids (events, stale answers) are skipped.
func (s *Session) Exchange(ctx context.Context, cmd Command) (*Result, error) {
	id := s.NextID()
	msg := make(map[string]any, len(cmd)+1)
	for k, v := range cmd {
		msg[k] = v
	}
	msg["id"] = id
	if err := s.Send(ctx, msg); err != nil {
		return nil, err
	}
	for {
		raw, err := s.Receive(ctx)
		if err != nil {
			return nil, err
		}
		var res Result
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("hass: decode response: %w", err)
		}
		if res.ID != id || res.Type != "result" {
			continue
		}
		return &res, nil
	}
}

// Close sends a normal closure frame (best effort) and releases the socket.
func (s *Session) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return s.conn.Close()
}

func connErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ErrConnect, ctxErr)
	}
	return fmt.Errorf("%w: %v", ErrConnect, err)
}

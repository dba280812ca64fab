package streaming

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// Default protocol limits.
const (
	DefaultConnectTimeout   = 15 * time.Second
	DefaultTerminateGrace   = 2 * time.Second
	DefaultSampleRate       = 16000
	defaultWriteWaitTimeout = 5 * time.Second
)

// Events receives session callbacks. Implementations must be fast; they are
// invoked from the single read loop goroutine in arrival order.
type Events interface {
	// OnSessionBegin fires once the service acknowledges the session.
	OnSessionBegin(msg BeginMessage)

	// OnTurn fires for every partial and final turn update.
	OnTurn(msg TurnMessage)

	// OnTermination fires when the service closes out the session.
	OnTermination(msg TerminationMessage)

	// OnError fires for protocol-level errors; the session is unusable after.
	OnError(err error)

	// OnClose fires exactly once when the socket is done, clean or not.
	OnClose()
}

// ClientConfig configures the streaming client.
type ClientConfig struct {
	// Endpoint is the websocket base URL, e.g. wss://streaming.example.com/v3/ws.
	Endpoint string

	// SampleRate of the PCM frames that will be sent (Hz).
	SampleRate int

	// ConnectTimeout bounds the wait for the Begin message.
	ConnectTimeout time.Duration

	// TerminateGrace bounds the wait after sending Terminate before the
	// socket is force-closed, so the final buffered turn is not lost.
	TerminateGrace time.Duration
}

// Client is a streaming transcription session over a single websocket.
// Connect, SendFrame and Terminate drive the session; all inbound traffic is
// delivered through the Events subscriber. The client persists nothing.
type Client struct {
	cfg    ClientConfig
	events Events
	logger logging.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	begun      chan BeginMessage
	terminated chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// NewClient creates a streaming client. Events must not be nil.
func NewClient(cfg ClientConfig, events Events, logger logging.Logger) *Client {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.TerminateGrace == 0 {
		cfg.TerminateGrace = DefaultTerminateGrace
	}
	return &Client{
		cfg:        cfg,
		events:     events,
		logger:     logger.With(logging.F("component", "streaming_client")),
		begun:      make(chan BeginMessage, 1),
		terminated: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Connect dials the endpoint with the short-lived token in the URI, starts
// the read loop, and blocks until the Begin message arrives or the connect
// timeout elapses. The token is the only authentication; there is no
// handshake message.
func (c *Client) Connect(ctx context.Context, token string) error {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid streaming endpoint: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", fmt.Sprintf("%d", c.cfg.SampleRate))
	q.Set("token", token)
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to open streaming socket: %w", err)
	}
	c.conn = conn

	go c.readLoop()

	select {
	case begin := <-c.begun:
		c.logger.Info("Streaming session established",
			logging.F("session_id", begin.ID))
		return nil
	case <-c.done:
		return fmt.Errorf("streaming socket closed before session began")
	case <-dialCtx.Done():
		c.Close()
		return fmt.Errorf("timed out waiting for session begin: %w", dialCtx.Err())
	}
}

// SendFrame transmits one raw binary PCM frame. Frames carry no envelope.
func (c *Client) SendFrame(pcm []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("streaming socket is not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(defaultWriteWaitTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

// Terminate ends the session gracefully: it sends the Terminate control
// message, waits up to the grace period for the service's Termination (which
// flushes the final buffered turn), then closes the socket. Never blocks
// longer than the grace period.
func (c *Client) Terminate() error {
	c.writeMu.Lock()
	if c.conn == nil {
		c.writeMu.Unlock()
		return fmt.Errorf("streaming socket is not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(defaultWriteWaitTimeout))
	err := c.conn.WriteJSON(terminateControl{Type: "Terminate"})
	c.writeMu.Unlock()

	if err != nil {
		c.Close()
		return fmt.Errorf("failed to send terminate: %w", err)
	}

	select {
	case <-c.terminated:
	case <-c.done:
	case <-time.After(c.cfg.TerminateGrace):
		c.logger.Warn("Termination not acknowledged within grace period")
	}

	c.Close()
	return nil
}

// Close force-closes the socket. Safe to call multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readLoop drains inbound messages and dispatches them to the subscriber.
// It exits on the first read error, which includes normal socket closure.
func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		c.events.OnClose()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.events.OnError(fmt.Errorf("streaming socket read: %w", err))
			}
			return
		}

		msg, err := DecodeInbound(data)
		if err != nil {
			c.events.OnError(err)
			continue
		}

		switch {
		case msg.Err != nil:
			// An explicit error payload aborts the session.
			c.events.OnError(msg.Err)
			c.Close()
			return
		case msg.Begin != nil:
			select {
			case c.begun <- *msg.Begin:
			default:
			}
			c.events.OnSessionBegin(*msg.Begin)
		case msg.Turn != nil:
			c.events.OnTurn(*msg.Turn)
		case msg.Termination != nil:
			select {
			case <-c.terminated:
			default:
				close(c.terminated)
			}
			c.events.OnTermination(*msg.Termination)
		}
	}
}

package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// recordingEvents captures callbacks for assertions.
type recordingEvents struct {
	mu           sync.Mutex
	begins       []BeginMessage
	turns        []TurnMessage
	terminations []TerminationMessage
	errs         []error
	closed       chan struct{}
	closeOnce    sync.Once
}

func newRecordingEvents() *recordingEvents {
	return &recordingEvents{closed: make(chan struct{})}
}

func (e *recordingEvents) OnSessionBegin(msg BeginMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.begins = append(e.begins, msg)
}

func (e *recordingEvents) OnTurn(msg TurnMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = append(e.turns, msg)
}

func (e *recordingEvents) OnTermination(msg TerminationMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terminations = append(e.terminations, msg)
}

func (e *recordingEvents) OnError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, err)
}

func (e *recordingEvents) OnClose() {
	e.closeOnce.Do(func() { close(e.closed) })
}

var upgrader = websocket.Upgrader{}

// fakeSTTServer speaks just enough of the protocol for the client tests.
func fakeSTTServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(conn, r)
	}))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestConnectWaitsForBegin(t *testing.T) {
	ts := fakeSTTServer(t, func(conn *websocket.Conn, r *http.Request) {
		require.Equal(t, "16000", r.URL.Query().Get("sample_rate"))
		require.Equal(t, "tok-123", r.URL.Query().Get("token"))

		conn.WriteJSON(BeginMessage{Type: MessageTypeBegin, ID: "sess-1", ExpiresAt: time.Now().Add(time.Hour).Unix()})

		// Hold the socket open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer ts.Close()

	events := newRecordingEvents()
	c := NewClient(ClientConfig{Endpoint: wsURL(ts)}, events, logging.NewNopLogger())

	require.NoError(t, c.Connect(context.Background(), "tok-123"))
	c.Close()

	<-events.closed
	events.mu.Lock()
	defer events.mu.Unlock()
	require.Len(t, events.begins, 1)
	require.Equal(t, "sess-1", events.begins[0].ID)
}

func TestConnectTimesOutWithoutBegin(t *testing.T) {
	ts := fakeSTTServer(t, func(conn *websocket.Conn, r *http.Request) {
		// Never send Begin.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer ts.Close()

	events := newRecordingEvents()
	c := NewClient(ClientConfig{
		Endpoint:       wsURL(ts),
		ConnectTimeout: 200 * time.Millisecond,
	}, events, logging.NewNopLogger())

	err := c.Connect(context.Background(), "tok")
	require.Error(t, err)
	require.Contains(t, err.Error(), "session begin")
}

func TestTurnAndTerminationDispatch(t *testing.T) {
	ts := fakeSTTServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteJSON(BeginMessage{Type: MessageTypeBegin, ID: "sess-2"})
		conn.WriteJSON(TurnMessage{Type: MessageTypeTurn, Transcript: "hello", EndOfTurn: false})

		// Wait for the Terminate control message, then close out the session.
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ctl map[string]string
			if json.Unmarshal(data, &ctl) == nil && ctl["type"] == "Terminate" {
				conn.WriteJSON(TerminationMessage{
					Type:                 MessageTypeTermination,
					AudioDurationSeconds: 42,
				})
				return
			}
		}
	})
	defer ts.Close()

	events := newRecordingEvents()
	c := NewClient(ClientConfig{Endpoint: wsURL(ts), TerminateGrace: time.Second}, events, logging.NewNopLogger())

	require.NoError(t, c.Connect(context.Background(), "tok"))
	require.NoError(t, c.SendFrame(make([]byte, 640)))
	require.NoError(t, c.Terminate())

	<-events.closed
	events.mu.Lock()
	defer events.mu.Unlock()
	require.Len(t, events.turns, 1)
	require.Equal(t, "hello", events.turns[0].Transcript)
	require.Len(t, events.terminations, 1)
	require.Equal(t, float64(42), events.terminations[0].AudioDurationSeconds)
}

func TestExplicitErrorAbortsSession(t *testing.T) {
	ts := fakeSTTServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteJSON(BeginMessage{Type: MessageTypeBegin, ID: "sess-3"})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"token expired"}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer ts.Close()

	events := newRecordingEvents()
	c := NewClient(ClientConfig{Endpoint: wsURL(ts)}, events, logging.NewNopLogger())

	require.NoError(t, c.Connect(context.Background(), "tok"))

	<-events.closed
	events.mu.Lock()
	defer events.mu.Unlock()
	require.NotEmpty(t, events.errs)
	require.Contains(t, events.errs[0].Error(), "token expired")
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, m *InboundMessage, err error)
	}{
		{
			name:    "begin",
			payload: `{"type":"Begin","id":"s1","expires_at":1700000000}`,
			check: func(t *testing.T, m *InboundMessage, err error) {
				require.NoError(t, err)
				require.NotNil(t, m.Begin)
				require.Equal(t, "s1", m.Begin.ID)
			},
		},
		{
			name:    "turn with words",
			payload: `{"type":"Turn","turn_order":3,"end_of_turn":true,"transcript":"hi","end_of_turn_confidence":0.9,"words":[{"text":"hi","start":10,"end":50,"confidence":0.8}]}`,
			check: func(t *testing.T, m *InboundMessage, err error) {
				require.NoError(t, err)
				require.NotNil(t, m.Turn)
				require.True(t, m.Turn.EndOfTurn)
				require.Len(t, m.Turn.Words, 1)
				require.Equal(t, int64(50), m.Turn.Words[0].End)
			},
		},
		{
			name:    "termination",
			payload: `{"type":"Termination","audio_duration_seconds":12.5,"session_duration_seconds":13.1}`,
			check: func(t *testing.T, m *InboundMessage, err error) {
				require.NoError(t, err)
				require.NotNil(t, m.Termination)
				require.Equal(t, 12.5, m.Termination.AudioDurationSeconds)
			},
		},
		{
			name:    "explicit error",
			payload: `{"error":"bad token"}`,
			check: func(t *testing.T, m *InboundMessage, err error) {
				require.NoError(t, err)
				require.Error(t, m.Err)
			},
		},
		{
			name:    "unknown type",
			payload: `{"type":"Mystery"}`,
			check: func(t *testing.T, m *InboundMessage, err error) {
				require.Error(t, err)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := DecodeInbound([]byte(tc.payload))
			tc.check(t, m, err)
		})
	}
}

func TestHTTPTokenSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Token{
			Token:     "short-lived",
			ExpiresAt: time.Now().Add(time.Minute),
		})
	}))
	defer ts.Close()

	src := NewHTTPTokenSource(ts.URL, "api-key")
	tok, err := src.StreamingToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "short-lived", tok.Token)
	require.True(t, tok.Valid(time.Now()))
	require.False(t, tok.Valid(time.Now().Add(2*time.Minute)))
}

func TestHTTPTokenSourceRejectsEmptyToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Token{})
	}))
	defer ts.Close()

	_, err := NewHTTPTokenSource(ts.URL, "k").StreamingToken(context.Background())
	require.Error(t, err)
}

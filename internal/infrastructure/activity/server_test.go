package activity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/infrastructure/middleware"
	"vidtube/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type tokenVerifier map[string]domain.ActorID

func (v tokenVerifier) VerifyIdentity(ctx context.Context, credential string) (domain.ActorID, error) {
	credential = strings.TrimPrefix(credential, "Bearer ")
	if id, ok := v[credential]; ok {
		return id, nil
	}
	return "", domain.Unauthenticated("verify_identity", "invalid access token")
}

type gauge struct{ n atomic.Int64 }

func (g *gauge) SetActivityConnections(n int) { g.n.Store(int64(n)) }

func newTestServer(t *testing.T, limiter *middleware.ConnectionLimiter) (*Server, *httptest.Server, *gauge) {
	t.Helper()
	g := &gauge{}
	s := NewServer(
		tokenVerifier{"creator-token": "creator", "viewer-token": "viewer"},
		limiter,
		g,
		Options{PingInterval: time.Second, SendBuffer: 8},
		zaptest.NewLogger(t).Sugar(),
	)
	ts := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	t.Cleanup(ts.Close)
	return s, ts, g
}

func dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var ready Message
	require.NoError(t, conn.ReadJSON(&ready))
	require.Equal(t, MessageReady, ready.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_DeliversToTargetOwnerOnly(t *testing.T) {
	s, ts, g := newTestServer(t, nil)
	creator := dial(t, ts, "creator-token")
	viewer := dial(t, ts, "viewer-token")

	assert.Equal(t, 2, s.ConnectionCount())
	assert.Equal(t, int64(2), g.n.Load())
	assert.True(t, s.IsConnected("creator"))

	ctx := context.Background()
	require.NoError(t, s.Deliver(ctx, domain.EdgeEvent{
		Applied:     domain.ToggleCreated,
		Kind:        domain.EdgeSubscription,
		Source:      "viewer",
		TargetID:    "creator",
		TargetKind:  domain.TargetActor,
		TargetOwner: "creator",
	}))
	require.NoError(t, s.Deliver(ctx, domain.EdgeEvent{
		Applied:     domain.ToggleRemoved,
		Kind:        domain.EdgeLike,
		Source:      "creator",
		TargetID:    "c1",
		TargetKind:  domain.TargetComment,
		TargetOwner: "viewer",
	}))

	msg := readMessage(t, creator)
	require.Equal(t, MessageEdge, msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, domain.EdgeSubscription, msg.Event.Kind)
	assert.Equal(t, domain.ActorID("viewer"), msg.Event.Source)

	msg = readMessage(t, viewer)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "c1", msg.Event.TargetID, "the viewer only sees events on its own content")
}

func TestServer_AnswersPing(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)
	conn := dial(t, ts, "creator-token")

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, MessagePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "subscribe"}))
	assert.Equal(t, MessageError, readMessage(t, conn).Type)
}

func TestServer_RejectsUnauthenticated(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=forged"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_ConnectionLimit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 100
	cfg.RateLimiting.WebSocket.MaxConcurrent = 1

	_, ts, _ := newTestServer(t, middleware.NewConnectionLimiter(cfg))
	dial(t, ts, "creator-token")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=creator-token"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_UnregistersOnClose(t *testing.T) {
	s, ts, g := newTestServer(t, nil)
	conn := dial(t, ts, "creator-token")
	conn.Close()

	assert.Eventually(t, func() bool {
		return s.ConnectionCount() == 0 && g.n.Load() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.IsConnected("creator"))
}

func TestServer_Shutdown(t *testing.T) {
	s, ts, _ := newTestServer(t, nil)
	conn := dial(t, ts, "creator-token")

	s.Shutdown(context.Background())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=creator-token"
	c2, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		c2.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err = c2.ReadMessage()
		c2.Close()
	}
	assert.Error(t, err, "no new feed connections after shutdown")
}

func TestServer_CheckOrigin(t *testing.T) {
	s := NewServer(tokenVerifier{}, nil, nil, Options{AllowedOrigins: []string{"https://vidtube.example"}}, zaptest.NewLogger(t).Sugar())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "https://vidtube.example")
	assert.True(t, s.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, s.checkOrigin(req))
}

func TestServer_ClosesClientsExceedingMessageRate(t *testing.T) {
	s := NewServer(
		tokenVerifier{"creator-token": "creator"},
		nil,
		nil,
		Options{PingInterval: time.Second, SendBuffer: 8, MessageRate: 0.1, MessageBurst: 1},
		zaptest.NewLogger(t).Sugar(),
	)
	ts := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	t.Cleanup(ts.Close)
	conn := dial(t, ts, "creator-token")

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, MessagePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := OptionsFromConfig(cfg)
	assert.Zero(t, opts.MessageRate)
	assert.Equal(t, cfg.Activity.PingInterval, opts.PingInterval)

	cfg.RateLimiting.Enabled = true
	opts = OptionsFromConfig(cfg)
	assert.Equal(t, cfg.RateLimiting.WebSocket.MessagesPerSecond, opts.MessageRate)
	assert.Equal(t, cfg.RateLimiting.WebSocket.Burst, opts.MessageBurst)
}

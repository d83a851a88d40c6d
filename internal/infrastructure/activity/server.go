package activity

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
	"vidtube/internal/infrastructure/middleware"
	"vidtube/pkg/config"
	apperrors "vidtube/pkg/errors"
	"vidtube/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Message is what a connected creator receives.
type Message struct {
	Type    string            `json:"type"`
	Event   *domain.EdgeEvent `json:"event,omitempty"`
	Message string            `json:"message,omitempty"`
}

const (
	MessageEdge  = "edge"
	MessagePong  = "pong"
	MessageError = "error"
	MessageReady = "ready"
)

// ConnectionObserver is told how many feed connections are open.
type ConnectionObserver interface {
	SetActivityConnections(n int)
}

type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
	AllowedOrigins []string

	// MessageRate bounds inbound frames per second per connection; zero
	// leaves them unlimited.
	MessageRate  float64
	MessageBurst int
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		PingInterval:   cfg.Activity.PingInterval,
		PongTimeout:    cfg.Activity.PongTimeout,
		SendBuffer:     cfg.Activity.SendBuffer,
		MaxMessageSize: cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		opts.MessageRate = cfg.RateLimiting.WebSocket.MessagesPerSecond
		opts.MessageBurst = cfg.RateLimiting.WebSocket.Burst
	}
	return opts
}

// Server pushes edge events to the creators they concern. A creator may hold
// several connections; each gets every event.
type Server struct {
	verifier ports.IdentityVerifier
	limiter  *middleware.ConnectionLimiter
	observer ConnectionObserver
	upgrader websocket.Upgrader
	opts     Options

	mu          sync.RWMutex
	connections map[domain.ActorID]map[*client]struct{}
	closed      bool

	logger *zap.SugaredLogger
}

type client struct {
	actor domain.ActorID
	conn  *websocket.Conn
	send  chan Message
	done  chan struct{}
	once  sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewServer builds a feed server. limiter and observer may be nil.
func NewServer(
	verifier ports.IdentityVerifier,
	limiter *middleware.ConnectionLimiter,
	observer ConnectionObserver,
	opts Options,
	logger *zap.SugaredLogger,
) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 2 * opts.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}
	if opts.MessageRate > 0 && opts.MessageBurst <= 0 {
		opts.MessageBurst = 1
	}

	s := &Server{
		verifier:    verifier,
		limiter:     limiter,
		observer:    observer,
		opts:        opts,
		connections: make(map[domain.ActorID]map[*client]struct{}),
		logger:      logger,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket authenticates the caller, then upgrades and serves the
// connection until either side closes it. Browsers cannot set headers on a
// WebSocket handshake, so the token may also come as ?token=.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	credential := r.Header.Get("Authorization")
	if credential == "" {
		credential = r.URL.Query().Get("token")
	}
	actor, err := s.verifier.VerifyIdentity(r.Context(), credential)
	if err != nil {
		writeHTTPError(w, apperrors.FromDomain(err))
		return
	}

	release := func() {}
	if s.limiter != nil {
		var appErr *apperrors.AppError
		release, appErr = s.limiter.Acquire(r)
		if appErr != nil {
			writeHTTPError(w, appErr)
			return
		}
	}
	defer release()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		actor: actor,
		conn:  conn,
		send:  make(chan Message, s.opts.SendBuffer),
		done:  make(chan struct{}),
	}
	if !s.register(c) {
		conn.Close()
		return
	}
	defer s.unregister(c)

	s.logger.Infow("creator connected to activity feed", "actor_id", actor)

	c.send <- Message{Type: MessageReady}
	go s.writeLoop(c)
	s.readLoop(c)

	s.logger.Infow("creator disconnected from activity feed", "actor_id", actor)
}

// readLoop handles client pings and detects disconnects. A client sending
// faster than MessageRate is closed with a policy violation.
func (s *Server) readLoop(c *client) {
	defer c.close()

	var inbound *rate.Limiter
	if s.opts.MessageRate > 0 {
		inbound = rate.NewLimiter(rate.Limit(s.opts.MessageRate), s.opts.MessageBurst)
	}

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from activity client", "actor_id", c.actor, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

		if inbound != nil && !inbound.Allow() {
			s.logger.Warnw("activity client exceeded message rate, disconnecting", "actor_id", c.actor)
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "message rate exceeded"),
				time.Now().Add(s.opts.WriteTimeout))
			return
		}

		reply := Message{Type: MessagePong}
		if msg.Type != "ping" {
			reply = Message{Type: MessageError, Message: "unsupported message type"}
		}
		if !s.enqueue(c, reply) {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	pingTicker := time.NewTicker(s.opts.PingInterval)
	defer pingTicker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.logger.Infow("error writing to activity client", "actor_id", c.actor, "error", err)
				return
			}
		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "actor_id", c.actor, "error", err)
				return
			}
		}
	}
}

// enqueue hands msg to the client's writer. A client that cannot keep up is
// disconnected.
func (s *Server) enqueue(c *client, msg Message) bool {
	select {
	case <-c.done:
		return false
	case c.send <- msg:
		return true
	default:
		s.logger.Warnw("activity client too slow, disconnecting", "actor_id", c.actor)
		c.close()
		return false
	}
}

// Deliver pushes an edge event to every connection of the target's owner.
// It matches events.Handler.
func (s *Server) Deliver(ctx context.Context, event domain.EdgeEvent) error {
	owner := event.TargetOwner
	if owner.IsZero() {
		return nil
	}
	_, span := tracing.TraceActivityMessage(ctx, MessageEdge, string(owner))
	defer span.End()

	s.mu.RLock()
	targets := make([]*client, 0, len(s.connections[owner]))
	for c := range s.connections[owner] {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		e := event
		s.enqueue(c, Message{Type: MessageEdge, Event: &e})
	}
	return nil
}

func (s *Server) register(c *client) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	set, ok := s.connections[c.actor]
	if !ok {
		set = make(map[*client]struct{})
		s.connections[c.actor] = set
	}
	set[c] = struct{}{}
	n := s.countLocked()
	s.mu.Unlock()

	s.observe(n)
	return true
}

func (s *Server) unregister(c *client) {
	c.close()

	s.mu.Lock()
	if set, ok := s.connections[c.actor]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(s.connections, c.actor)
		}
	}
	n := s.countLocked()
	s.mu.Unlock()

	s.observe(n)
}

func (s *Server) countLocked() int {
	n := 0
	for _, set := range s.connections {
		n += len(set)
	}
	return n
}

func (s *Server) observe(n int) {
	if s.observer != nil {
		s.observer.SetActivityConnections(n)
	}
}

// ConnectionCount is the number of open feed connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked()
}

// IsConnected reports whether actor holds at least one feed connection.
func (s *Server) IsConnected(actor domain.ActorID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections[actor]) > 0
}

// Shutdown refuses new connections and closes the open ones.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	var all []*client
	for _, set := range s.connections {
		for c := range set {
			all = append(all, c)
		}
	}
	s.mu.Unlock()

	for _, c := range all {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
	s.logger.Infow("activity feed closed", "connections", len(all))
}

func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.ConnectionCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func writeHTTPError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	json.NewEncoder(w).Encode(appErr.Body())
}

// Package realtime serves the per-project chat socket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/logging"
	"github.com/dmitrijs2005/coderoom/internal/server/aimention"
	"github.com/dmitrijs2005/coderoom/internal/server/auth"
	"github.com/dmitrijs2005/coderoom/internal/server/gate"
	"github.com/dmitrijs2005/coderoom/internal/server/metrics"
	"github.com/dmitrijs2005/coderoom/internal/server/room"
	"github.com/gorilla/websocket"
)

const (
	defaultPingPeriod = 54 * time.Second
	defaultPongWait   = 60 * time.Second
	writeWait         = 10 * time.Second
	maxMessageSize    = 1 << 20
)

type Handler struct {
	gate     *gate.Gate
	projects gate.ProjectFinder
	router   *room.Router
	ai       *aimention.Interceptor
	metrics  *metrics.Metrics
	logger   logging.Logger
	upgrader websocket.Upgrader

	pingPeriod time.Duration
	pongWait   time.Duration

	// base outlives individual connections; AI replies still reach the room
	// after the asking client has gone.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Handler)

// WithAllowedOrigin restricts the Origin header; "*" or "" allows any.
func WithAllowedOrigin(origin string) Option {
	return func(h *Handler) {
		if origin == "" || origin == "*" {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		}
	}
}

// WithKeepalive overrides the ping period and pong wait.
func WithKeepalive(ping, wait time.Duration) Option {
	return func(h *Handler) {
		h.pingPeriod = ping
		h.pongWait = wait
	}
}

func NewHandler(g *gate.Gate, projects gate.ProjectFinder, router *room.Router, ai *aimention.Interceptor, m *metrics.Metrics, logger logging.Logger, opts ...Option) *Handler {
	base, cancel := context.WithCancel(context.Background())
	h := &Handler{
		gate:     g,
		projects: projects,
		router:   router,
		ai:       ai,
		metrics:  m,
		logger:   logger.With("module", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
		base:       base,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// handshakeToken prefers the token query parameter, then the cookie and
// bearer header.
func handshakeToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return gate.TokenFromRequest(r)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := r.URL.Query().Get("projectId")

	claims, project, err := h.gate.AuthenticateProject(ctx, handshakeToken(r), projectID, h.projects)
	if err != nil {
		h.reject(ctx, w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}

	member := h.router.Join(project.ID, claims.UserID)
	h.logger.Info(ctx, "client joined room", "room", member.Room, "conn", member.ID, "user", claims.UserID)

	done := make(chan struct{})
	go h.writePump(conn, member, done)
	h.readPump(conn, member, claims)

	h.router.Leave(member)
	<-done
	h.logger.Info(ctx, "client left room", "room", member.Room, "conn", member.ID)
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	var reason, msg string
	switch {
	case errors.Is(err, common.ErrInvalidProjectID):
		reason, msg = metrics.ReasonInvalidProject, "Authentication error: Invalid project ID"
	case errors.Is(err, common.ErrTokenMissing):
		reason, msg = metrics.ReasonMissingToken, "Authentication error: Missing token"
	case gate.IsAuthError(err):
		reason, msg = metrics.ReasonInvalidToken, "Authentication error: Invalid token"
	default:
		h.logger.Error(ctx, "realtime handshake failed", "error", err)
		status = http.StatusInternalServerError
		reason, msg = metrics.ReasonInternal, "Authentication error: internal error"
	}
	h.metrics.Reject(reason)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Event: EventConnectError, Message: msg})
}

// readPump handles inbound frames in arrival order until the connection
// fails or closes.
func (h *Handler) readPump(conn *websocket.Conn, member *room.Member, claims *auth.Claims) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Warn(h.base, "websocket read error", "conn", member.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		h.handleFrame(member, claims, raw)
	}
}

func (h *Handler) handleFrame(member *room.Member, claims *auth.Claims, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Warn(h.base, "malformed frame", "conn", member.ID, "error", err)
		return
	}
	if env.Event != EventProjectMessage {
		h.logger.Debug(h.base, "ignoring event", "event", env.Event, "conn", member.ID)
		return
	}

	var data MessageData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		h.logger.Warn(h.base, "malformed project-message", "conn", member.ID, "error", err)
		return
	}

	if h.ai.Matches(data.Message) {
		h.wg.Add(1)
		go h.answer(member.Room, data.Message)
		return
	}

	payload := env.Data
	switch {
	case len(data.Sender) == 0 || string(data.Sender) == "null":
		data.Sender, _ = json.Marshal(Sender{ID: claims.UserID, Email: claims.Email})
		payload, _ = json.Marshal(data)
	case claimsAI(data.Sender):
		h.logger.Warn(h.base, "user message posed as the AI", "conn", member.ID, "user", claims.UserID)
		data.Sender, _ = json.Marshal(Sender{ID: claims.UserID, Email: claims.Email})
		payload, _ = json.Marshal(data)
	}
	frame, err := json.Marshal(Envelope{Event: EventProjectMessage, Data: payload})
	if err != nil {
		h.logger.Error(h.base, "encode relay frame", "error", err)
		return
	}

	n := h.router.Broadcast(member, frame)
	h.logger.Debug(h.base, "relayed message", "room", member.Room, "conn", member.ID, "recipients", n)
}

// answer runs one AI invocation. The reply goes to the whole room, the
// asker included.
func (h *Handler) answer(roomID, text string) {
	defer h.wg.Done()

	reply, _ := h.ai.Handle(h.base, text)
	if reply == nil {
		return
	}
	frame, err := projectMessage(reply.Raw, AISender)
	if err != nil {
		h.logger.Error(h.base, "encode ai reply", "error", err)
		return
	}
	h.router.Emit(roomID, frame)
}

// writePump is the only writer on conn.
func (h *Handler) writePump(conn *websocket.Conn, member *room.Member, done chan<- struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
		close(done)
	}()

	for {
		select {
		case frame, ok := <-member.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown cancels pending AI calls, disconnects every member and waits for
// in-flight AI goroutines or ctx.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()
	h.router.Close()

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

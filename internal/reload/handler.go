package reload

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	srverrors "github.com/conneroisu/hrserve/internal/errors"
	"github.com/conneroisu/hrserve/internal/logging"
)

const (
	// Time allowed to write the reload frame to the peer.
	writeWait = 10 * time.Second

	// MessageTypeReload is the only message type sent to browsers.
	MessageTypeReload = "reload"
)

// State is the lifecycle position of one control connection.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateAwaitingSignal
	StateNotifying
	StateClosed
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateAwaitingSignal:
		return "awaiting_signal"
	case StateNotifying:
		return "notifying"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReloadMessage encodes a reload instruction stamped with now.
func NewReloadMessage(now time.Time) []byte {
	data, err := json.Marshal(UpdateMessage{Type: MessageTypeReload, Timestamp: now})
	if err != nil {
		// UpdateMessage only holds a string and a time.
		panic(fmt.Sprintf("reload: failed to encode message: %v", err))
	}

	return data
}

// TransitionFunc observes state changes of a connection.
type TransitionFunc func(clientID uint64, from, to State)

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	// OriginPatterns lists the host patterns allowed in the Origin header.
	// Requests without an Origin header and same-host requests are always
	// accepted.
	OriginPatterns []string
	// OnTransition, if set, is called on every state change.
	OnTransition TransitionFunc
}

// Handler serves reload control connections.
type Handler struct {
	registry *Registry
	logger   logging.Logger
	errors   *srverrors.ErrorHandler
	opts     HandlerOptions
}

// NewHandler creates a handler that registers its connections in registry.
func NewHandler(registry *Registry, logger logging.Logger, opts HandlerOptions) *Handler {
	if registry == nil {
		panic("reload.NewHandler: registry cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("reload")

	return &Handler{
		registry: registry,
		logger:   logger,
		errors:   srverrors.NewErrorHandler(logger),
		opts:     opts,
	}
}

// session is the state of one connection.
type session struct {
	h        *Handler
	clientID uint64
	state    State
}

func (s *session) transition(to State) {
	from := s.state
	s.state = to
	s.h.logger.Debug(context.Background(), "Reload connection state changed",
		"client_id", s.clientID,
		"from", from.String(),
		"to", to.String())
	if s.h.opts.OnTransition != nil {
		s.h.opts.OnTransition(s.clientID, from, to)
	}
}

// ServeHTTP upgrades the request and holds the connection until one message
// arrives for it. A failed handshake answers 500 and registers nothing.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := &session{h: h, state: StateConnecting}

	uw := &upgradeWriter{ResponseWriter: w}
	conn, err := websocket.Accept(uw, r, &websocket.AcceptOptions{
		OriginPatterns:  h.opts.OriginPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.errors.Handle(r.Context(), srverrors.NewUpgradeError("websocket handshake failed", err).
			WithPath(r.URL.Path).
			WithContext("remote_addr", r.RemoteAddr))
		if !uw.wroteHeader {
			http.Error(w, "websocket handshake failed", http.StatusInternalServerError)
		}
		s.transition(StateClosed)
		return
	}

	client := h.registry.Register()
	s.clientID = client.ID()
	defer h.registry.Unregister(client.ID())
	s.transition(StateOpen)

	h.logger.Info(r.Context(), "Reload client connected",
		"client_id", client.ID(),
		"remote_addr", r.RemoteAddr,
		"clients", h.registry.Len())

	// CloseRead answers pings and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	s.transition(StateAwaitingSignal)
	msg, outcome := client.Next(ctx)
	if outcome == OutcomeClosed {
		h.registry.Unregister(client.ID())
		conn.CloseNow()
		s.transition(StateClosed)
		h.logger.Debug(r.Context(), "Reload client went away before a refresh", "client_id", client.ID())
		return
	}

	s.transition(StateNotifying)
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	err = conn.Write(writeCtx, websocket.MessageText, msg)
	cancel()
	h.registry.Unregister(client.ID())

	if err != nil {
		h.logger.Warn(r.Context(), err, "Failed to deliver reload message", "client_id", client.ID())
		conn.CloseNow()
		s.transition(StateClosed)
		return
	}

	if err := conn.Close(websocket.StatusNormalClosure, "reload"); err != nil {
		h.logger.Debug(r.Context(), "Reload connection close handshake incomplete",
			"client_id", client.ID(),
			"error", err.Error())
	}
	s.transition(StateClosed)
}

// upgradeWriter turns every error status written during the handshake into
// a 500. It keeps the underlying writer reachable so the connection can be
// hijacked.
type upgradeWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *upgradeWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code >= http.StatusBadRequest {
		code = http.StatusInternalServerError
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *upgradeWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not implement http.Hijacker", w.ResponseWriter)
	}
	return hj.Hijack()
}

func (w *upgradeWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

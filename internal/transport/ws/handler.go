package ws

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizroom/internal/app"
	"quizroom/internal/domain"
)

// Options configures WebSocket clients
type Options struct {
	AllowedOrigins        []string
	DefaultSettings       domain.RoomSettings
	BoardUpdatesPerSecond float64
	BoardBurst            int
	MessagesPerSecond     float64
	MessageBurst          int
}

func (o Options) withDefaults() Options {
	if o.BoardUpdatesPerSecond <= 0 {
		o.BoardUpdatesPerSecond = 20
	}
	if o.BoardBurst <= 0 {
		o.BoardBurst = int(o.BoardUpdatesPerSecond)
	}
	if o.MessagesPerSecond <= 0 {
		o.MessagesPerSecond = 10
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 2 * int(o.MessagesPerSecond)
	}
	if o.DefaultSettings == (domain.RoomSettings{}) {
		o.DefaultSettings = domain.DefaultRoomSettings()
	}
	return o
}

// Handler handles WebSocket connections
type Handler struct {
	registry *app.Registry
	upgrader websocket.Upgrader
	opts     Options
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(registry *app.Registry, opts Options, logger zerolog.Logger) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts:   opts,
		logger: logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests. With a roomCode query the
// connection is bound during the handshake, presenting playerId as its identity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roomCode := q.Get("roomCode")

	// Reject unknown rooms before upgrading
	if roomCode != "" {
		if _, err := h.registry.Get(roomCode); err != nil {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	client := NewClient(conn, connID, h.registry, h.opts, h.logger)

	h.logger.Info().
		Str("connection_id", connID).
		Str("room_code", roomCode).
		Bool("has_identity", q.Get("playerId") != "").
		Msg("websocket connected")

	if roomCode != "" {
		spectator, _ := strconv.ParseBool(q.Get("spectator"))
		if err := client.join(JoinRoomPayload{
			RoomCode:  roomCode,
			PlayerID:  q.Get("playerId"),
			Name:      q.Get("name"),
			Spectator: spectator,
		}); err != nil {
			client.reportError(MsgJoinRoom, err)
		}
	}

	// Start the client
	client.Run()
}

// originChecker allows every origin when the list is empty or contains "*"
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

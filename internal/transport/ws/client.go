package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"quizroom/internal/app"
	"quizroom/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Boards carry encoded drawings.
	maxMessageSize = 512 * 1024

	// Size of the send channel buffer
	sendBufferSize = 256
)

// Client represents a WebSocket client connection. It implements app.ClientConnection.
type Client struct {
	conn     *websocket.Conn
	connID   string
	registry *app.Registry
	opts     Options
	logger   zerolog.Logger

	// session and persistentID are only touched from the read pump
	session      *app.RoomSession
	persistentID string

	boardLimiter *rate.Limiter
	msgLimiter   *rate.Limiter

	send     chan []byte
	done     chan struct{}
	mu       sync.Mutex
	closed   bool
	draining bool // a final message was queued; the write pump closes after flushing it
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, connID string, registry *app.Registry, opts Options, logger zerolog.Logger) *Client {
	return &Client{
		conn:         conn,
		connID:       connID,
		registry:     registry,
		opts:         opts,
		logger:       logger.With().Str("connection_id", connID).Logger(),
		boardLimiter: rate.NewLimiter(rate.Limit(opts.BoardUpdatesPerSecond), opts.BoardBurst),
		msgLimiter:   rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessageBurst),
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
	}
}

// ConnectionID implements app.ClientConnection
func (c *Client) ConnectionID() string {
	return c.connID
}

// Send implements app.ClientConnection. A kicked event is the last message a client receives.
func (c *Client) Send(event *domain.GameEvent) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.draining {
		return nil
	}

	select {
	case c.send <- data:
	default:
		// Buffer full, message dropped
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("send buffer full, message dropped")
	}

	if event.Type == domain.EventKicked {
		c.draining = true
		close(c.send)
	}
	return nil
}

// Close implements app.ClientConnection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)
	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("websocket read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "kicked"))
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	switch msg.Type {
	case MsgPing:
		c.sendPong()
		return
	case MsgUpdateBoard:
		// Boards are high frequency and tolerate loss
		if !c.boardLimiter.Allow() {
			return
		}
	default:
		if !c.msgLimiter.Allow() {
			c.sendError(ErrCodeRateLimited, "Too many messages")
			return
		}
	}

	var err error
	switch msg.Type {
	case MsgCreateRoom:
		err = c.handleCreateRoom(msg.Payload)
	case MsgJoinRoom:
		err = c.handleJoinRoom(msg.Payload)
	case MsgStartGame:
		err = c.inRoom(func(s *app.RoomSession) error { return s.StartGame(c.connID) })
	case MsgSubmitAnswer:
		err = c.handleSubmitAnswer(msg.Payload)
	case MsgUpdateBoard:
		err = c.handleUpdateBoard(msg.Payload)
	case MsgCastVote:
		err = c.handleCastVote(msg.Payload)
	case MsgEvaluateAnswer:
		err = c.handleEvaluateAnswer(msg.Payload)
	case MsgNextRound:
		err = c.inRoom(func(s *app.RoomSession) error { return s.NextRound(c.connID) })
	case MsgEndRound:
		err = c.inRoom(func(s *app.RoomSession) error { return s.EndRoundEarly(c.connID) })
	case MsgKickPlayer:
		err = c.handleKickPlayer(msg.Payload)
	case MsgConcludeGame:
		err = c.inRoom(func(s *app.RoomSession) error { return s.Conclude(c.connID) })
	default:
		c.sendError(ErrCodeInvalidMessage, "Unknown message type")
		return
	}

	if err != nil {
		c.reportError(msg.Type, err)
	}
}

// handleCreateRoom creates a room and seats this connection as its game master
func (c *Client) handleCreateRoom(raw json.RawMessage) error {
	payload := CreateRoomPayload{Settings: c.opts.DefaultSettings}
	if err := decodePayload(raw, &payload); err != nil {
		return errInvalidPayload
	}

	created, err := c.registry.CreateRoom(payload.Name, payload.Settings, payload.Questions)
	if err != nil {
		return err
	}

	return c.bind(created.Session, domain.JoinRequest{
		ConnectionID: c.connID,
		PresentedID:  created.GameMasterToken,
		Name:         payload.Name,
	})
}

// handleJoinRoom handles a join_room message
func (c *Client) handleJoinRoom(raw json.RawMessage) error {
	var payload JoinRoomPayload
	if err := decodePayload(raw, &payload); err != nil || payload.RoomCode == "" {
		return errInvalidPayload
	}
	return c.join(payload)
}

// join resolves the room and binds this connection to a seat in it
func (c *Client) join(payload JoinRoomPayload) error {
	session, err := c.registry.Get(payload.RoomCode)
	if err != nil {
		return err
	}

	// A rejoin without credentials keeps the identity this connection is already bound to
	if payload.PlayerID == "" && session == c.session {
		payload.PlayerID = c.persistentID
	}

	return c.bind(session, domain.JoinRequest{
		ConnectionID: c.connID,
		PresentedID:  payload.PlayerID,
		Name:         payload.Name,
		Spectator:    payload.Spectator,
		Avatar:       payload.Avatar,
	})
}

// bind registers with session before joining so the identity event reaches this connection
func (c *Client) bind(session *app.RoomSession, req domain.JoinRequest) error {
	if c.session != nil && c.session != session {
		c.leave()
	}

	session.RegisterClient(c)
	res, err := session.Join(req)
	if err != nil {
		if c.session != session {
			session.UnregisterClient(c.connID)
		}
		return err
	}

	c.session = session
	c.persistentID = res.PersistentID
	c.logger.Info().
		Str("room_code", session.Code()).
		Str("player_id", res.PublicID).
		Str("role", res.Role.String()).
		Bool("reconnected", res.Reconnected).
		Msg("websocket joined room")
	return nil
}

// leave detaches this connection from its room
func (c *Client) leave() {
	if c.session == nil {
		return
	}
	c.session.UnregisterClient(c.connID)
	if err := c.session.Disconnect(c.connID); err != nil && !errors.Is(err, domain.ErrRoomClosed) {
		c.logger.Debug().Err(err).Msg("disconnect failed")
	}
	c.session = nil
	c.persistentID = ""
}

// inRoom runs fn against the joined room
func (c *Client) inRoom(fn func(s *app.RoomSession) error) error {
	if c.session == nil {
		return errNotInRoom
	}
	return fn(c.session)
}

// handleSubmitAnswer handles a submit_answer message
func (c *Client) handleSubmitAnswer(raw json.RawMessage) error {
	var payload SubmitAnswerPayload
	if err := decodePayload(raw, &payload); err != nil {
		return errInvalidPayload
	}
	return c.inRoom(func(s *app.RoomSession) error {
		return s.SubmitAnswer(c.connID, payload.RoundIndex, payload.Answer, payload.HasDrawing, payload.DrawingData)
	})
}

// handleUpdateBoard handles an update_board message
func (c *Client) handleUpdateBoard(raw json.RawMessage) error {
	var payload UpdateBoardPayload
	if err := decodePayload(raw, &payload); err != nil {
		return errInvalidPayload
	}
	return c.inRoom(func(s *app.RoomSession) error {
		return s.UpdateBoard(c.connID, payload.RoundIndex, payload.Data)
	})
}

// handleCastVote handles a cast_vote message
func (c *Client) handleCastVote(raw json.RawMessage) error {
	var payload CastVotePayload
	if err := decodePayload(raw, &payload); err != nil || payload.TargetPlayerID == "" {
		return errInvalidPayload
	}
	return c.inRoom(func(s *app.RoomSession) error {
		return s.CastVote(c.connID, payload.TargetPlayerID)
	})
}

// handleEvaluateAnswer handles an evaluate_answer message
func (c *Client) handleEvaluateAnswer(raw json.RawMessage) error {
	var payload EvaluateAnswerPayload
	if err := decodePayload(raw, &payload); err != nil || payload.TargetPlayerID == "" {
		return errInvalidPayload
	}
	return c.inRoom(func(s *app.RoomSession) error {
		return s.Evaluate(c.connID, payload.TargetPlayerID, payload.IsCorrect)
	})
}

// handleKickPlayer handles a kick_player message
func (c *Client) handleKickPlayer(raw json.RawMessage) error {
	var payload KickPlayerPayload
	if err := decodePayload(raw, &payload); err != nil || payload.TargetPlayerID == "" {
		return errInvalidPayload
	}
	return c.inRoom(func(s *app.RoomSession) error {
		return s.Kick(c.connID, payload.TargetPlayerID, payload.Reason)
	})
}

// reportError sends err back to this connection only
func (c *Client) reportError(msgType MessageType, err error) {
	if errors.Is(err, errInvalidPayload) {
		c.sendError(ErrCodeInvalidMessage, "Invalid payload")
		return
	}

	code := ErrorCode(err)
	if code == ErrCodeInternalError {
		c.logger.Error().Err(err).Str("message_type", string(msgType)).Msg("message failed")
	} else {
		c.logger.Debug().Err(err).Str("message_type", string(msgType)).Msg("message rejected")
	}
	c.sendError(code, ErrorMessage(err))
}

func (c *Client) roomCode() string {
	if c.session == nil {
		return ""
	}
	return c.session.Code()
}

// sendError sends an error message to the client
func (c *Client) sendError(code, message string) {
	c.Send(domain.NewErrorEvent(c.roomCode(), c.connID, code, message))
}

// sendPong sends a pong message in response to ping
func (c *Client) sendPong() {
	c.Send(domain.NewConnectionEvent(domain.EventPong, c.roomCode(), c.connID, nil))
}

var errInvalidPayload = errors.New("invalid payload")

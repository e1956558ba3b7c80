package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"quizroom/internal/app"
	"quizroom/internal/domain"
)

const maxCreateRoomBody = 1 << 20

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateRoomRequest is the body of POST /api/rooms. Omitted settings keep the server defaults.
type CreateRoomRequest struct {
	Name      string              `json:"name"`
	Settings  domain.RoomSettings `json:"settings"`
	Questions []domain.Question   `json:"questions"`
}

// CreateRoomResponse is the response for room creation
type CreateRoomResponse struct {
	RoomCode        string `json:"roomCode"`
	GameMasterToken string `json:"gameMasterToken"`
	InviteLink      string `json:"inviteLink"`
}

// GetRoomResponse is the response for getting room info
type GetRoomResponse struct {
	RoomCode       string       `json:"roomCode"`
	Phase          domain.Phase `json:"phase"`
	PlayerCount    int          `json:"playerCount"`
	TotalQuestions int          `json:"totalQuestions"`
	Started        bool         `json:"started"`
	IsConcluded    bool         `json:"isConcluded"`
	CanJoin        bool         `json:"canJoin"`
}

// RoomExistsResponse is the response for checking if room exists
type RoomExistsResponse struct {
	Exists bool `json:"exists"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveRooms  int `json:"activeRooms"`
	TotalPlayers int `json:"totalPlayers"`
}

// handleCreateRoom handles POST /api/rooms
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	req := CreateRoomRequest{Settings: s.defaults}
	err := json.NewDecoder(io.LimitReader(r.Body, maxCreateRoomBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	created, err := s.registry.CreateRoom(req.Name, req.Settings, req.Questions)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create room")
		s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create room")
		return
	}

	// Build invite link
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	inviteLink := scheme + "://" + r.Host + "/join/" + created.Code

	s.writeJSON(w, http.StatusCreated, &Response{
		Success: true,
		Data: &CreateRoomResponse{
			RoomCode:        created.Code,
			GameMasterToken: created.GameMasterToken,
			InviteLink:      inviteLink,
		},
	})
}

// handleGetRoom handles GET /api/rooms/{roomCode}
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupRoom(w, r)
	if !ok {
		return
	}

	snap, err := session.Snapshot()
	if err != nil {
		s.sendRoomError(w, err)
		return
	}

	players := 0
	for _, p := range snap.Players {
		if !p.IsGameMaster {
			players++
		}
	}

	s.sendSuccess(w, &GetRoomResponse{
		RoomCode:       snap.RoomCode,
		Phase:          snap.Phase,
		PlayerCount:    players,
		TotalQuestions: snap.TotalQuestions,
		Started:        snap.Started,
		IsConcluded:    snap.IsConcluded,
		CanJoin:        !snap.IsConcluded,
	})
}

// handleRoomExists handles GET /api/rooms/{roomCode}/exists
func (s *Server) handleRoomExists(w http.ResponseWriter, r *http.Request) {
	_, err := s.registry.Get(r.PathValue("roomCode"))
	exists := err == nil

	s.sendSuccess(w, &RoomExistsResponse{
		Exists: exists,
	})
}

// handleGetRecap handles GET /api/rooms/{roomCode}/recap
func (s *Server) handleGetRecap(w http.ResponseWriter, r *http.Request) {
	session, ok := s.lookupRoom(w, r)
	if !ok {
		return
	}

	recap, ok := session.Recap()
	if !ok {
		s.sendError(w, http.StatusNotFound, "RECAP_NOT_READY", "Game has not concluded")
		return
	}

	s.sendSuccess(w, recap)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveRooms:  s.registry.RoomCount(),
		TotalPlayers: s.registry.PlayerCount(),
	})
}

// lookupRoom resolves the roomCode path value, writing an error response on failure
func (s *Server) lookupRoom(w http.ResponseWriter, r *http.Request) (*app.RoomSession, bool) {
	roomCode := r.PathValue("roomCode")
	if roomCode == "" {
		s.sendError(w, http.StatusBadRequest, "MISSING_ROOM_CODE", "Room code is required")
		return nil, false
	}

	session, err := s.registry.Get(roomCode)
	if err != nil {
		s.sendRoomError(w, err)
		return nil, false
	}
	return session, true
}

func (s *Server) sendRoomError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrRoomClosed):
		s.sendError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "Room not found")
	default:
		s.logger.Error().Err(err).Msg("room lookup failed")
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.writeJSON(w, http.StatusOK, &Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}

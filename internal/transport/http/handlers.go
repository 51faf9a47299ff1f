package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"avalon/internal/app"
	"avalon/internal/domain"
	"avalon/internal/speech"
)

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// AddPlayerRequest is the body of POST /api/roster
type AddPlayerRequest struct {
	Name     string `json:"name"`
	IsAI     bool   `json:"isAi"`
	AIEngine string `json:"aiEngine,omitempty"`
}

// NameRequest carries a player name
type NameRequest struct {
	Name string `json:"name"`
}

// MessageRequest carries a chat message
type MessageRequest struct {
	Message string `json:"message"`
}

// VoteRequest carries a ballot or mission card
type VoteRequest struct {
	Vote string `json:"vote"`
}

// SpeechToggleRequest is the body of POST /api/speech
type SpeechToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// SpeechTestRequest is the body of POST /api/speech/test
type SpeechTestRequest struct {
	Text string `json:"text"`
}

// SelectionResponse reports a player's membership after a toggle
type SelectionResponse struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// defaultSpeechTest is spoken when a speech test carries no text
const defaultSpeechTest = "语音测试"

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleView handles GET /api/view
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.View()
	if err != nil {
		s.sendFailure(w, err)
		return
	}
	s.sendSuccess(w, view)
}

// handleSpeechStatus handles GET /api/speech
func (s *Server) handleSpeechStatus(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, s.speech.Status())
}

// handleSpeechToggle handles POST /api/speech
func (s *Server) handleSpeechToggle(w http.ResponseWriter, r *http.Request) {
	var req SpeechToggleRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Enabled && !s.speech.Status().Supported {
		s.sendFailure(w, speech.ErrUnsupported)
		return
	}
	s.speech.SetEnabled(req.Enabled)
	s.sendSuccess(w, s.speech.Status())
}

// handleSpeechTest handles POST /api/speech/test
func (s *Server) handleSpeechTest(w http.ResponseWriter, r *http.Request) {
	var req SpeechTestRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		req.Text = defaultSpeechTest
	}
	if err := s.speech.Test(req.Text); err != nil {
		s.sendFailure(w, err)
		return
	}
	s.sendSuccess(w, s.speech.Status())
}

// handleAddPlayer handles POST /api/roster
func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	var req AddPlayerRequest
	if !s.decode(w, r, &req) {
		return
	}

	var entry domain.RosterEntry
	err := s.session.Do(func(c *app.Controller) error {
		var err error
		entry, err = c.AddPlayer(req.Name, req.IsAI, req.AIEngine)
		return err
	})
	if err != nil {
		s.sendFailure(w, err)
		return
	}
	s.sendSuccess(w, entry)
}

// handleRemovePlayer handles DELETE /api/roster/{index}
func (s *Server) handleRemovePlayer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_INDEX", "Roster index must be a number")
		return
	}

	var entry domain.RosterEntry
	err = s.session.Do(func(c *app.Controller) error {
		var err error
		entry, err = c.RemovePlayer(index)
		return err
	})
	if err != nil {
		s.sendFailure(w, err)
		return
	}
	s.sendSuccess(w, entry)
}

// handleActingPlayer handles POST /api/acting-player
func (s *Server) handleActingPlayer(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.intent(w, func(c *app.Controller) error { return c.SetActingPlayer(req.Name) })
}

// handleChat handles POST /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.intent(w, func(c *app.Controller) error { return c.SendChat(req.Message) })
}

// handleStart handles POST /api/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.intent(w, (*app.Controller).StartGame)
}

// handleToggleSelection handles POST /api/selection/{name}
func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var selected bool
	err := s.session.Do(func(c *app.Controller) error {
		var err error
		selected, err = c.ToggleSelection(name)
		return err
	})
	if err != nil {
		s.sendFailure(w, err)
		return
	}
	s.sendSuccess(w, &SelectionResponse{Name: name, Selected: selected})
}

// handleProposeTeam handles POST /api/team
func (s *Server) handleProposeTeam(w http.ResponseWriter, r *http.Request) {
	s.intent(w, (*app.Controller).ProposeTeam)
}

// handleVoteTeam handles POST /api/vote/team
func (s *Server) handleVoteTeam(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.intent(w, func(c *app.Controller) error { return c.VoteTeam(domain.TeamVote(req.Vote)) })
}

// handleVoteMission handles POST /api/vote/mission
func (s *Server) handleVoteMission(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.intent(w, func(c *app.Controller) error { return c.VoteMission(domain.MissionVote(req.Vote)) })
}

// handleAssassinate handles POST /api/assassinate
func (s *Server) handleAssassinate(w http.ResponseWriter, r *http.Request) {
	s.intent(w, (*app.Controller).Assassinate)
}

// handleReset handles POST /api/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.intent(w, (*app.Controller).Reset)
}

// intent runs fn on the session and answers with the resulting view.
// Requests to the game server complete asynchronously; their failures
// show up as alerts, not in this response.
func (s *Server) intent(w http.ResponseWriter, fn func(c *app.Controller) error) {
	var view app.View
	err := s.session.Do(func(c *app.Controller) error {
		if err := fn(c); err != nil {
			return err
		}
		view = c.View()
		return nil
	})
	if err != nil {
		s.sendFailure(w, err)
		return
	}
	s.sendSuccess(w, view)
}

// decode reads a JSON body, answering 400 itself when it cannot
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON")
		return false
	}
	return true
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

// sendFailure maps an intent error onto a status and error code
func (s *Server) sendFailure(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.sendError(w, status, code, err.Error())
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptyName), errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest, "EMPTY_VALUE"
	case errors.Is(err, domain.ErrDuplicateName):
		return http.StatusConflict, "DUPLICATE_NAME"
	case errors.Is(err, domain.ErrRosterSize), errors.Is(err, domain.ErrRosterFull):
		return http.StatusUnprocessableEntity, "ROSTER_SIZE"
	case errors.Is(err, domain.ErrUnknownEngine):
		return http.StatusBadRequest, "UNKNOWN_ENGINE"
	case errors.Is(err, domain.ErrRosterIndex), errors.Is(err, domain.ErrUnknownPlayer):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrSelectionSize), errors.Is(err, domain.ErrNoTarget):
		return http.StatusUnprocessableEntity, "SELECTION_SIZE"
	case errors.Is(err, domain.ErrNoActingPlayer):
		return http.StatusPreconditionRequired, "NO_ACTING_PLAYER"
	case errors.Is(err, domain.ErrInvalidVote):
		return http.StatusBadRequest, "INVALID_VOTE"
	case errors.Is(err, domain.ErrInvalidPhase):
		return http.StatusConflict, "INVALID_PHASE"
	case errors.Is(err, speech.ErrUnsupported):
		return http.StatusNotImplemented, "SPEECH_UNSUPPORTED"
	case errors.Is(err, speech.ErrDisabled):
		return http.StatusConflict, "SPEECH_DISABLED"
	case errors.Is(err, app.ErrSessionClosed):
		return http.StatusServiceUnavailable, "SESSION_CLOSED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

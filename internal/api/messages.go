package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cryptomatch/match-engine/internal/chat"
	"github.com/cryptomatch/match-engine/internal/model"
)

const defaultMessageLimit = 50

// SendMessageRequest is the JSON body for POST /messages.
type SendMessageRequest struct {
	MatchID  string `json:"match_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// SendMessage handles POST /messages
// Appends to the conversation and fans out to the other member's live
// channel; delivery failure never fails the request.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}
	if req.MatchID == "" || req.SenderID == "" {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}

	msg, err := s.chat.Send(r.Context(), req.MatchID, req.SenderID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrMatchNotFound):
			writeError(w, codeMatchNotFound, http.StatusNotFound)
		case errors.Is(err, chat.ErrNotMember):
			writeError(w, codeNotMember, http.StatusForbidden)
		case errors.Is(err, chat.ErrEmptyBody):
			writeError(w, codeValidation, http.StatusUnprocessableEntity)
		default:
			writeInternal(w)
		}
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ListMessages handles GET /messages/{matchID}?limit=N
// Returns the N most recent messages in chronological order.
func (s *Server) ListMessages(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	limit := queryInt(r, "limit", defaultMessageLimit)

	msgs, err := s.chat.List(r.Context(), matchID, limit)
	if err != nil {
		if errors.Is(err, chat.ErrMatchNotFound) {
			writeError(w, codeMatchNotFound, http.StatusNotFound)
			return
		}
		writeInternal(w)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// MarkReadRequest is the JSON body for POST /messages/{matchID}/mark-read.
type MarkReadRequest struct {
	UserID string `json:"user_id"`
}

// MarkRead handles POST /messages/{matchID}/mark-read
// Advances the caller's read cursor to now.
func (s *Server) MarkRead(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}

	if err := s.chat.MarkRead(r.Context(), req.UserID, matchID, s.now().UTC()); err != nil {
		switch {
		case errors.Is(err, chat.ErrMatchNotFound):
			writeError(w, codeMatchNotFound, http.StatusNotFound)
		case errors.Is(err, chat.ErrNotMember):
			writeError(w, codeNotMember, http.StatusForbidden)
		default:
			writeInternal(w)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

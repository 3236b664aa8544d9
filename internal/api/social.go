package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/social"
)

// BroadcastSignalRequest is the JSON body for POST /signals.
type BroadcastSignalRequest struct {
	SenderID   string `json:"sender_id"`
	Token      string `json:"token"`
	SignalType string `json:"signal_type"`
	Note       string `json:"note"`
}

// BroadcastSignal handles POST /signals
// Pro-tier broadcast of a trading signal to all of the sender's matches.
func (s *Server) BroadcastSignal(w http.ResponseWriter, r *http.Request) {
	var req BroadcastSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SenderID == "" {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}

	signal, recipients, err := s.social.BroadcastSignal(r.Context(), req.SenderID, req.Token, req.SignalType, req.Note, s.now().UTC())
	if err != nil {
		s.writeSocialError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signal":     signal,
		"recipients": recipients,
	})
}

// CreateGroupRequest is the JSON body for POST /groups.
type CreateGroupRequest struct {
	CreatorID  string `json:"creator_id"`
	Name       string `json:"name"`
	TokenFocus string `json:"token_focus"`
}

// CreateGroup handles POST /groups (pro tier).
func (s *Server) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CreatorID == "" {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}

	group, err := s.social.CreateGroup(r.Context(), req.CreatorID, req.Name, req.TokenFocus, s.now().UTC())
	if err != nil {
		s.writeSocialError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// JoinGroupRequest is the JSON body for POST /groups/{groupID}/join.
type JoinGroupRequest struct {
	UserID string `json:"user_id"`
}

// JoinGroup handles POST /groups/{groupID}/join
// Existing members get a group_member_joined frame on their live channel.
func (s *Server) JoinGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	var req JoinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}

	group, err := s.social.JoinGroup(r.Context(), groupID, req.UserID)
	if err != nil {
		if errors.Is(err, social.ErrGroupNotFound) {
			writeError(w, codeNotFound, http.StatusNotFound)
			return
		}
		s.writeSocialError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// ListGroups handles GET /groups/{userID}.
func (s *Server) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	groups, err := s.social.GroupsFor(r.Context(), userID)
	if err != nil {
		writeInternal(w)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// ScheduleEventRequest is the JSON body for POST /events.
type ScheduleEventRequest struct {
	HostID      string    `json:"host_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
}

// ScheduleEvent handles POST /events (pro tier).
func (s *Server) ScheduleEvent(w http.ResponseWriter, r *http.Request) {
	var req ScheduleEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HostID == "" {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}

	event, err := s.social.ScheduleEvent(r.Context(), req.HostID, req.Title, req.Description, req.StartsAt, s.now().UTC())
	if err != nil {
		s.writeSocialError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events (public read of upcoming events).
func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.social.UpcomingEvents(r.Context(), s.now().UTC())
	if err != nil {
		writeInternal(w)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Analytics handles GET /analytics/{userID} (pro tier).
func (s *Server) Analytics(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stats, err := s.social.Stats(r.Context(), userID, s.now().UTC())
	if err != nil {
		s.writeSocialError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeSocialError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, social.ErrUpgradeRequired):
		writeJSON(w, http.StatusOK, map[string]any{"premium_required": true})
	case errors.Is(err, social.ErrValidation):
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
	default:
		writeInternal(w)
	}
}

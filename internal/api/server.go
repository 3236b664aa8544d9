// Package api exposes the HTTP/JSON surface of the match engine. Handlers
// translate between wire payloads and the domain services; business rules
// live in the service packages.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cryptomatch/match-engine/internal/chat"
	"github.com/cryptomatch/match-engine/internal/discovery"
	"github.com/cryptomatch/match-engine/internal/entitlement"
	"github.com/cryptomatch/match-engine/internal/hub"
	"github.com/cryptomatch/match-engine/internal/matching"
	"github.com/cryptomatch/match-engine/internal/social"
	"github.com/cryptomatch/match-engine/internal/store"
)

// Server wires the HTTP surface to the domain services.
type Server struct {
	store     store.Store
	oracle    *entitlement.Oracle
	gate      *entitlement.RateGate
	feeder    *discovery.Feeder
	processor *matching.Processor
	chat      *chat.Service
	social    *social.Service
	hub       *hub.Hub
	now       func() time.Time
}

// NewServer creates the HTTP server facade.
func NewServer(
	st store.Store,
	oracle *entitlement.Oracle,
	gate *entitlement.RateGate,
	feeder *discovery.Feeder,
	processor *matching.Processor,
	chatSvc *chat.Service,
	socialSvc *social.Service,
	h *hub.Hub,
) *Server {
	return &Server{
		store:     st,
		oracle:    oracle,
		gate:      gate,
		feeder:    feeder,
		processor: processor,
		chat:      chatSvc,
		social:    socialSvc,
		hub:       h,
		now:       time.Now,
	}
}

// Routes mounts every endpoint on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/discover/{userID}", s.Discover)
	r.Get("/ai-recommendations/{userID}", s.AIRecommendations)
	r.Post("/swipe", s.Swipe)
	r.Post("/rewind-swipe/{userID}", s.RewindSwipe)
	r.Get("/likes-received/{userID}", s.LikesReceived)
	r.Get("/matches/{userID}", s.Matches)
	r.Get("/matches-with-messages/{userID}", s.MatchesWithMessages)
	r.Get("/messages/{matchID}", s.ListMessages)
	r.Post("/messages", s.SendMessage)
	r.Post("/messages/{matchID}/mark-read", s.MarkRead)
	r.Get("/subscription/{userID}", s.Subscription)
	r.Post("/signals", s.BroadcastSignal)
	r.Post("/groups", s.CreateGroup)
	r.Post("/groups/{groupID}/join", s.JoinGroup)
	r.Get("/groups/{userID}", s.ListGroups)
	r.Post("/events", s.ScheduleEvent)
	r.Get("/events", s.ListEvents)
	r.Get("/analytics/{userID}", s.Analytics)

	if s.hub != nil {
		r.Get("/ws/{userID}", s.hub.HandleWS)
	}
}

// Error codes surfaced on the wire.
const (
	codeNotFound          = "not_found"
	codeProfileIncomplete = "profile_incomplete"
	codeMatchNotFound     = "match_not_found"
	codeNotMember         = "not_member"
	codeValidation        = "validation"
	codeInternal          = "internal"
)

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with a stable code.
func writeError(w http.ResponseWriter, code string, status int) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeInternal writes an opaque internal error: a timestamp and no detail.
func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": codeInternal,
		"at":    time.Now().UTC().Format(time.RFC3339),
	})
}

// remainingField renders the remaining allowance: a number for capped
// tiers, the string "unlimited" otherwise.
func remainingField(a entitlement.Allowance) any {
	if a.Unlimited {
		return "unlimited"
	}
	return a.Remaining
}

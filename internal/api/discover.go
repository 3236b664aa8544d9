package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cryptomatch/match-engine/internal/discovery"
	"github.com/cryptomatch/match-engine/internal/model"
)

const defaultFeedLimit = 10

// Discover handles GET /discover/{userID}?limit=N&filters={...}
// Feed-mode candidates: recency ordering, advanced filters for entitled
// tiers (silently ignored otherwise).
func (s *Server) Discover(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := queryInt(r, "limit", defaultFeedLimit)

	var filters *discovery.Filters
	if raw := r.URL.Query().Get("filters"); raw != "" {
		filters = &discovery.Filters{}
		if err := json.Unmarshal([]byte(raw), filters); err != nil {
			writeError(w, codeValidation, http.StatusUnprocessableEntity)
			return
		}
	}

	now := s.now().UTC()
	candidates, applied, err := s.feeder.Candidates(r.Context(), userID, limit, filters, false, now)
	if err != nil {
		s.writeFeedError(w, err)
		return
	}
	if candidates == nil {
		candidates = []discovery.Candidate{}
	}

	ent := s.oracle.Resolve(r.Context(), userID, now)
	resp := map[string]any{
		"users":               candidates,
		"has_premium_filters": ent.Features.AdvancedFilters,
	}
	if applied {
		resp["applied_filters"] = filters
	}
	writeJSON(w, http.StatusOK, resp)
}

// AIRecommendations handles GET /ai-recommendations/{userID}?limit=N
// Ranked-mode candidates: every survivor scored, ordered by compatibility.
func (s *Server) AIRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := queryInt(r, "limit", defaultFeedLimit)

	candidates, _, err := s.feeder.Candidates(r.Context(), userID, limit, nil, true, s.now().UTC())
	if err != nil {
		s.writeFeedError(w, err)
		return
	}
	if candidates == nil {
		candidates = []discovery.Candidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

// LikesReceived handles GET /likes-received/{userID}
// Entitled tiers see who liked them; free users get only a count and an
// upgrade prompt — no actor identifiers leak.
func (s *Server) LikesReceived(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()
	now := s.now().UTC()

	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		writeError(w, codeNotFound, http.StatusNotFound)
		return
	}

	likes, err := s.store.ListInboundLikes(ctx, userID)
	if err != nil {
		writeInternal(w)
		return
	}

	ent := s.oracle.Resolve(ctx, userID, now)
	if !ent.Features.SeeInboundLikes {
		writeJSON(w, http.StatusOK, map[string]any{
			"premium_required": true,
			"like_count":       len(likes),
			"upgrade_prompt":   "Upgrade to see who liked you",
		})
		return
	}

	type likedUser struct {
		model.Profile
		LikedAt string `json:"liked_at"`
	}
	likedUsers := make([]likedUser, 0, len(likes))
	for _, like := range likes {
		p, err := s.store.GetProfile(ctx, like.Actor)
		if err != nil {
			continue
		}
		discovery.FreshenStatus(ctx, s.store, p, now)
		likedUsers = append(likedUsers, likedUser{Profile: *p, LikedAt: like.At.UTC().Format("2006-01-02T15:04:05Z")})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"premium_required": false,
		"liked_users":      likedUsers,
		"total_likes":      len(likes),
	})
}

func (s *Server) writeFeedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, discovery.ErrUserNotFound):
		writeError(w, codeNotFound, http.StatusNotFound)
	case errors.Is(err, discovery.ErrProfileIncomplete):
		writeError(w, codeProfileIncomplete, http.StatusBadRequest)
	default:
		writeInternal(w)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

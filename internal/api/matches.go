package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cryptomatch/match-engine/internal/discovery"
	"github.com/cryptomatch/match-engine/internal/entitlement"
	"github.com/cryptomatch/match-engine/internal/matching"
	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

// SwipeRequest is the JSON body for POST /swipe.
type SwipeRequest struct {
	SwiperID string `json:"swiper_id"`
	TargetID string `json:"target_id"`
	Action   string `json:"action"` // "like" or "pass"
}

// Swipe handles POST /swipe
// Records the decision; a mutual like returns the match. Cap exhaustion and
// duplicates come back in-band with HTTP 200, never as transport errors.
func (s *Server) Swipe(w http.ResponseWriter, r *http.Request) {
	var req SwipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}
	if req.SwiperID == "" || req.TargetID == "" {
		writeError(w, codeValidation, http.StatusUnprocessableEntity)
		return
	}

	now := s.now().UTC()
	result, err := s.processor.Decide(r.Context(), req.SwiperID, req.TargetID, req.Action, now)
	if err != nil {
		switch {
		case errors.Is(err, matching.ErrSelfDecision), errors.Is(err, matching.ErrInvalidVerdict):
			writeError(w, codeValidation, http.StatusUnprocessableEntity)
		case errors.Is(err, matching.ErrUserNotFound):
			writeError(w, codeNotFound, http.StatusNotFound)
		default:
			writeInternal(w)
		}
		return
	}

	isPremium := result.Allowance.Unlimited

	switch result.Outcome {
	case matching.OutcomeRateLimited:
		writeJSON(w, http.StatusOK, map[string]any{
			"error":            "daily_limit_reached",
			"upgrade_required": true,
		})
	case matching.OutcomeDuplicate:
		writeJSON(w, http.StatusOK, map[string]any{
			"matched":          false,
			"duplicate":        true,
			"swipes_remaining": remainingField(result.Allowance),
			"is_premium":       isPremium,
		})
	case matching.OutcomeMatched:
		writeJSON(w, http.StatusOK, map[string]any{
			"matched":          true,
			"match_id":         result.Match.ID,
			"swipes_remaining": remainingField(result.Allowance),
			"is_premium":       isPremium,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"matched":          false,
			"swipes_remaining": remainingField(result.Allowance),
			"is_premium":       isPremium,
		})
	}
}

// RewindSwipe handles POST /rewind-swipe/{userID}
// Undoes the last decision for entitled tiers; free users get an in-band
// premium_required refusal.
func (s *Server) RewindSwipe(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	reversed, err := s.processor.Reverse(r.Context(), userID, s.now().UTC())
	if err != nil {
		if errors.Is(err, matching.ErrUpgradeRequired) {
			writeJSON(w, http.StatusOK, map[string]any{"premium_required": true})
			return
		}
		writeInternal(w)
		return
	}
	if reversed == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"rewound_user":   reversed.Subject,
		"action_rewound": reversed.Verdict,
	})
}

// matchView is one row of the matches listing: the match plus the other
// member's profile projection.
type matchView struct {
	model.Match
	OtherUser *model.Profile `json:"other_user"`
}

// enrichedMatchView adds the conversation summary for the requester.
type enrichedMatchView struct {
	matchView
	LatestMessage *model.Message `json:"latest_message"`
	UnreadCount   int            `json:"unread_count"`
}

// Matches handles GET /matches/{userID}
// Matches ordered by last_activity_at descending.
func (s *Server) Matches(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	views, err := s.matchViews(r, userID)
	if err != nil {
		s.writeMatchListError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// MatchesWithMessages handles GET /matches-with-messages/{userID}
// As Matches, each row enriched with the latest message and the
// requester's unread count.
func (s *Server) MatchesWithMessages(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	views, err := s.matchViews(r, userID)
	if err != nil {
		s.writeMatchListError(w, err)
		return
	}

	enriched := make([]enrichedMatchView, 0, len(views))
	for _, v := range views {
		ev := enrichedMatchView{matchView: v}
		if latest, err := s.store.LatestMessage(ctx, v.ID); err == nil {
			ev.LatestMessage = latest
		}
		if unread, err := s.store.CountUnread(ctx, v.ID, userID); err == nil {
			ev.UnreadCount = unread
		}
		enriched = append(enriched, ev)
	}
	writeJSON(w, http.StatusOK, enriched)
}

func (s *Server) matchViews(r *http.Request, userID string) ([]matchView, error) {
	ctx := r.Context()
	now := s.now().UTC()

	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		return nil, store.ErrNotFound
	}

	matches, err := s.store.ListMatches(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]matchView, 0, len(matches))
	for _, m := range matches {
		other, err := s.store.GetProfile(ctx, m.Other(userID))
		if err != nil {
			continue
		}
		discovery.FreshenStatus(ctx, s.store, other, now)
		views = append(views, matchView{Match: m, OtherUser: other})
	}
	return views, nil
}

func (s *Server) writeMatchListError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, codeNotFound, http.StatusNotFound)
		return
	}
	writeInternal(w)
}

// Subscription handles GET /subscription/{userID}
// Entitlements snapshot including current swipe limits.
func (s *Server) Subscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()
	now := s.now().UTC()

	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		writeError(w, codeNotFound, http.StatusNotFound)
		return
	}

	ent := s.oracle.Resolve(ctx, userID, now)
	allowance, err := s.gate.Check(ctx, userID, now)
	if err != nil {
		writeInternal(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  userID,
		"tier":     ent.Tier,
		"features": ent.Features,
		"swipe_limits": map[string]any{
			"cap":       capField(ent),
			"used":      allowance.Used,
			"remaining": remainingField(allowance),
		},
	})
}

func capField(ent entitlement.Entitlements) any {
	if ent.Features.UnlimitedDecisions {
		return "unlimited"
	}
	return ent.DailyCap
}

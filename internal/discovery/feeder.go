// Package discovery produces the candidate feed: ordered, filtered streams
// of complete profiles the requester has not yet decided on, optionally
// ranked by compatibility.
package discovery

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cryptomatch/match-engine/internal/compat"
	"github.com/cryptomatch/match-engine/internal/entitlement"
	"github.com/cryptomatch/match-engine/internal/metrics"
	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

// Errors surfaced by the feeder.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrProfileIncomplete = errors.New("profile incomplete")
)

// Filters are the advanced discovery filters. They apply only when the
// requester's tier carries advanced_filters; otherwise they are silently
// ignored. Unknown fields in the wire payload are dropped by the decoder.
type Filters struct {
	PortfolioSize     string   `json:"portfolio_size,omitempty"`
	TradingExperience string   `json:"trading_experience,omitempty"`
	PreferredTokens   []string `json:"preferred_tokens,omitempty"`
	YearsMin          int      `json:"years_min,omitempty"`
	Location          string   `json:"location,omitempty"`
}

func (f *Filters) empty() bool {
	return f == nil || (f.PortfolioSize == "" && f.TradingExperience == "" &&
		len(f.PreferredTokens) == 0 && f.YearsMin == 0 && f.Location == "")
}

// Candidate is a surfaced profile, with compatibility attached in ranked mode.
type Candidate struct {
	model.Profile
	Compatibility *compat.Result `json:"ai_compatibility,omitempty"`
}

// Feeder builds candidate streams for requesters.
type Feeder struct {
	store  store.Store
	oracle *entitlement.Oracle
}

// NewFeeder creates a candidate feeder.
func NewFeeder(st store.Store, oracle *entitlement.Oracle) *Feeder {
	return &Feeder{store: st, oracle: oracle}
}

// Candidates returns up to limit candidates for the requester. Ranked mode
// scores every survivor and orders by compatibility; feed mode orders by
// recency (activity for priority tiers, account age otherwise). Each
// returned candidate gets a profile-view analytics tick, best-effort.
func (f *Feeder) Candidates(ctx context.Context, requesterID string, limit int, filters *Filters, ranked bool, now time.Time) ([]Candidate, bool, error) {
	requester, err := f.store.GetProfile(ctx, requesterID)
	if err != nil {
		return nil, false, ErrUserNotFound
	}
	FreshenStatus(ctx, f.store, requester, now)
	if !requester.ProfileComplete {
		return nil, false, ErrProfileIncomplete
	}

	ent := f.oracle.Resolve(ctx, requesterID, now)
	filtered := ent.Features.AdvancedFilters && !filters.empty()

	decided, err := f.store.DecidedSubjects(ctx, requesterID)
	if err != nil {
		return nil, false, err
	}

	profiles, err := f.store.ListCompleteProfiles(ctx)
	if err != nil {
		return nil, false, err
	}

	var out []Candidate
	for i := range profiles {
		p := &profiles[i]
		if p.UserID == requesterID || decided[p.UserID] {
			continue
		}
		if filtered && !matchesFilters(p, filters) {
			continue
		}
		FreshenStatus(ctx, f.store, p, now)

		c := Candidate{Profile: *p}
		if ranked {
			score := compat.Score(requester, p)
			c.Compatibility = &score
		}
		out = append(out, c)
	}

	if ranked {
		sort.Slice(out, func(i, j int) bool {
			if out[i].Compatibility.Percent != out[j].Compatibility.Percent {
				return out[i].Compatibility.Percent > out[j].Compatibility.Percent
			}
			if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
				return out[i].LastActivityAt.After(out[j].LastActivityAt)
			}
			return out[i].UserID < out[j].UserID
		})
	} else if ent.Features.PriorityDiscovery {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
				return out[i].LastActivityAt.After(out[j].LastActivityAt)
			}
			return out[i].UserID < out[j].UserID
		})
	} else {
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].UserID < out[j].UserID
		})
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	for i := range out {
		// Counter tick only; a failed write never fails the feed.
		f.store.IncrementStat(ctx, out[i].UserID, "profile_views", 1)
		metrics.ProfileViewsTotal.Inc()
	}
	return out, filtered, nil
}

func matchesFilters(p *model.Profile, f *Filters) bool {
	if f.PortfolioSize != "" && p.PortfolioSize != f.PortfolioSize {
		return false
	}
	if f.TradingExperience != "" && p.TradingExperience != f.TradingExperience {
		return false
	}
	if len(f.PreferredTokens) > 0 && !intersects(p.PreferredTokens, f.PreferredTokens) {
		return false
	}
	if f.YearsMin > 0 && p.YearsTrading < f.YearsMin {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(p.Location), strings.ToLower(f.Location)) {
		return false
	}
	return true
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

// FreshenStatus applies the lazy offline downgrade: a profile idle for more
// than 30 minutes reads as offline, and the transition is persisted in-line.
func FreshenStatus(ctx context.Context, st store.Store, p *model.Profile, now time.Time) {
	if p.UserStatus == model.StatusOffline {
		return
	}
	if now.Sub(p.LastActivityAt) > model.OfflineAfter {
		p.UserStatus = model.StatusOffline
		st.SetUserStatus(ctx, p.UserID, model.StatusOffline)
	}
}

// Package entitlement derives tier feature bundles from subscription records
// and enforces the free-tier daily decision cap.
package entitlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

// FreeDailyCap is the free tier's decision allowance per UTC day.
const FreeDailyCap = 20

// Features is the per-tier feature bundle.
type Features struct {
	UnlimitedDecisions bool `json:"unlimited_decisions"`
	SeeInboundLikes    bool `json:"see_inbound_likes"`
	ReverseDecision    bool `json:"reverse_decision"`
	PriorityDiscovery  bool `json:"priority_discovery"`
	AdvancedFilters    bool `json:"advanced_filters"`
	SendSignals        bool `json:"send_signals"`
	CreateGroups       bool `json:"create_groups"`
	ScheduleEvents     bool `json:"schedule_events"`
	ViewAnalytics      bool `json:"view_analytics"`
	ConnectPortfolio   bool `json:"connect_portfolio"`
}

// Entitlements is the resolved bundle for one user at one instant.
// DailyCap is 0 when decisions are unlimited.
type Entitlements struct {
	Tier     string   `json:"tier"`
	Features Features `json:"features"`
	DailyCap int      `json:"daily_cap"`
}

// featuresByTier is the tier table. free gets nothing; basic_premium gets the
// discovery and decision features; pro_trader gets everything.
var featuresByTier = map[string]Features{
	model.TierFree: {},
	model.TierBasicPremium: {
		UnlimitedDecisions: true,
		SeeInboundLikes:    true,
		ReverseDecision:    true,
		PriorityDiscovery:  true,
		AdvancedFilters:    true,
	},
	model.TierProTrader: {
		UnlimitedDecisions: true,
		SeeInboundLikes:    true,
		ReverseDecision:    true,
		PriorityDiscovery:  true,
		AdvancedFilters:    true,
		SendSignals:        true,
		CreateGroups:       true,
		ScheduleEvents:     true,
		ViewAnalytics:      true,
		ConnectPortfolio:   true,
	},
}

// Oracle resolves entitlements from the subscription read-side. Expired paid
// subscriptions self-heal to free on read; no background job exists.
type Oracle struct {
	store store.Store
}

// NewOracle creates an entitlement oracle backed by the given store.
func NewOracle(st store.Store) *Oracle {
	return &Oracle{store: st}
}

// Resolve returns the user's entitlements at now. A missing subscription
// synthesizes the free tier. Failure to persist a self-heal is logged and
// ignored; the returned bundle already reflects the healed state.
func (o *Oracle) Resolve(ctx context.Context, userID string, now time.Time) Entitlements {
	sub, err := o.store.GetSubscription(ctx, userID)
	if err != nil {
		return forTier(model.TierFree)
	}

	tier := sub.Tier
	if _, known := featuresByTier[tier]; !known {
		tier = model.TierFree
	}

	if tier != model.TierFree && !sub.ExpiresAt.IsZero() && sub.ExpiresAt.Before(now) {
		healed := *sub
		healed.Tier = model.TierFree
		healed.Status = model.SubExpired
		if err := o.store.UpsertSubscription(ctx, &healed); err != nil {
			slog.Warn("subscription self-heal write failed", "user", userID, "err", err)
		}
		tier = model.TierFree
	}

	return forTier(tier)
}

func forTier(tier string) Entitlements {
	e := Entitlements{Tier: tier, Features: featuresByTier[tier]}
	if !e.Features.UnlimitedDecisions {
		e.DailyCap = FreeDailyCap
	}
	return e
}

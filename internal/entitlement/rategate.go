package entitlement

import (
	"context"
	"time"

	"github.com/cryptomatch/match-engine/internal/store"
)

// Allowance is the rate gate's answer for one user at one instant.
// Remaining is meaningful only when Unlimited is false.
type Allowance struct {
	Allowed   bool
	Unlimited bool
	Cap       int
	Used      int
	Remaining int
}

// RateGate computes remaining daily decisions. It carries no state of its
// own: usage is the count of today's decisions in the log, so reversals
// naturally refund allowance.
type RateGate struct {
	store  store.Store
	oracle *Oracle
}

// NewRateGate creates a rate gate over the given store and oracle.
func NewRateGate(st store.Store, oracle *Oracle) *RateGate {
	return &RateGate{store: st, oracle: oracle}
}

// Check returns the user's allowance at now. The day boundary is UTC
// midnight; there is no grace period.
func (g *RateGate) Check(ctx context.Context, userID string, now time.Time) (Allowance, error) {
	ent := g.oracle.Resolve(ctx, userID, now)
	if ent.Features.UnlimitedDecisions {
		return Allowance{Allowed: true, Unlimited: true}, nil
	}

	from := now.UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	used, err := g.store.CountDecisionsInWindow(ctx, userID, from, to)
	if err != nil {
		return Allowance{}, err
	}

	remaining := ent.DailyCap - used
	if remaining < 0 {
		remaining = 0
	}
	return Allowance{
		Allowed:   remaining > 0,
		Cap:       ent.DailyCap,
		Used:      used,
		Remaining: remaining,
	}, nil
}

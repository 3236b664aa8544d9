// Package matching implements the decision processor: recording swipe
// verdicts, detecting mutual likes to form matches, and reversing the last
// decision for entitled users.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cryptomatch/match-engine/internal/entitlement"
	"github.com/cryptomatch/match-engine/internal/hub"
	"github.com/cryptomatch/match-engine/internal/metrics"
	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

// Decision outcomes.
type Outcome string

const (
	OutcomeAccepted    Outcome = "accepted"
	OutcomeMatched     Outcome = "matched"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeDuplicate   Outcome = "duplicate"
)

// Validation errors surfaced by Decide and Reverse.
var (
	ErrSelfDecision    = errors.New("actor and subject must differ")
	ErrInvalidVerdict  = errors.New("verdict must be like or pass")
	ErrUserNotFound    = errors.New("user not found")
	ErrUpgradeRequired = errors.New("feature requires a premium tier")
)

// DecideResult is the outcome of one decision attempt. Match is set when
// Outcome is matched; Allowance reflects the state after the decision.
type DecideResult struct {
	Outcome   Outcome
	Match     *model.Match
	Allowance entitlement.Allowance
}

// Processor records decisions and maintains the derived projections (match
// registry, inbound-like index, reversal frames). All mutation for one
// unordered pair is serialized on the pair key.
type Processor struct {
	store  store.Store
	oracle *entitlement.Oracle
	gate   *entitlement.RateGate
	hub    *hub.Hub // nil disables live notifications
	pairs  *pairLock
}

// NewProcessor creates a decision processor. Pass nil for h if live
// notifications are not needed.
func NewProcessor(st store.Store, oracle *entitlement.Oracle, gate *entitlement.RateGate, h *hub.Hub) *Processor {
	return &Processor{
		store:  st,
		oracle: oracle,
		gate:   gate,
		hub:    h,
		pairs:  newPairLock(),
	}
}

// Decide records actor's verdict on subject. Repeating a decided pair
// returns OutcomeDuplicate with no state change; an exhausted daily cap
// returns OutcomeRateLimited with no state change.
func (p *Processor) Decide(ctx context.Context, actor, subject, verdict string, now time.Time) (*DecideResult, error) {
	if actor == subject {
		return nil, ErrSelfDecision
	}
	if verdict != model.VerdictLike && verdict != model.VerdictPass {
		return nil, ErrInvalidVerdict
	}
	if _, err := p.store.GetProfile(ctx, actor); err != nil {
		return nil, fmt.Errorf("actor %s: %w", actor, ErrUserNotFound)
	}
	if _, err := p.store.GetProfile(ctx, subject); err != nil {
		return nil, fmt.Errorf("subject %s: %w", subject, ErrUserNotFound)
	}

	key := model.PairKey(actor, subject)
	p.pairs.Lock(key)
	defer p.pairs.Unlock(key)

	allowance, err := p.gate.Check(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	if !allowance.Allowed {
		metrics.RateLimitRejections.Inc()
		return &DecideResult{Outcome: OutcomeRateLimited, Allowance: allowance}, nil
	}

	decision := &model.Decision{
		ID:      uuid.New().String(),
		Actor:   actor,
		Subject: subject,
		Verdict: verdict,
		At:      now,
	}
	if err := p.store.InsertDecision(ctx, decision); err != nil {
		if errors.Is(err, store.ErrDuplicateDecision) {
			return &DecideResult{Outcome: OutcomeDuplicate, Allowance: allowance}, nil
		}
		return nil, err
	}

	metrics.SwipesTotal.WithLabelValues(verdict).Inc()
	p.store.IncrementStat(ctx, actor, "decisions", 1)
	p.store.TouchProfile(ctx, actor, now)

	// Depth-1 undo stack: the newest decision evicts any prior frame.
	if err := p.store.SetReversalFrame(ctx, actor, decision); err != nil {
		slog.Warn("reversal frame write failed", "actor", actor, "err", err)
	}

	result := &DecideResult{Outcome: OutcomeAccepted}
	if verdict == model.VerdictLike {
		if err := p.store.UpsertInboundLike(ctx, &model.InboundLike{Subject: subject, Actor: actor, At: now}); err != nil {
			slog.Warn("inbound-like index write failed", "actor", actor, "subject", subject, "err", err)
		}
		p.store.IncrementStat(ctx, subject, "likes_received", 1)

		match, err := p.maybeMatch(ctx, actor, subject, now)
		if err != nil {
			return nil, err
		}
		if match != nil {
			result.Outcome = OutcomeMatched
			result.Match = match
		}
	}

	// Re-read the gate so the caller sees the post-decision remaining.
	allowance, err = p.gate.Check(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	result.Allowance = allowance

	slog.Info("decision recorded",
		"actor", actor,
		"subject", subject,
		"verdict", verdict,
		"outcome", result.Outcome,
	)
	return result, nil
}

// maybeMatch creates the match when the reciprocal like exists. Runs under
// the pair lock; the store's pair uniqueness constraint is the second line
// of defense, so a concurrent duplicate resolves to the existing match.
func (p *Processor) maybeMatch(ctx context.Context, actor, subject string, now time.Time) (*model.Match, error) {
	reciprocal, err := p.store.GetDecision(ctx, subject, actor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if reciprocal.Verdict != model.VerdictLike {
		return nil, nil
	}

	match := &model.Match{
		ID:             uuid.New().String(),
		UserA:          actor,
		UserB:          subject,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := p.store.CreateMatch(ctx, match); err != nil {
		if errors.Is(err, store.ErrDuplicateMatch) {
			return p.store.GetMatchByPair(ctx, actor, subject)
		}
		return nil, err
	}

	metrics.MatchesTotal.Inc()
	p.store.IncrementStat(ctx, actor, "matches", 1)
	p.store.IncrementStat(ctx, subject, "matches", 1)

	slog.Info("match created", "match_id", match.ID, "user_a", actor, "user_b", subject)

	if p.hub != nil {
		p.hub.Send(actor, hub.Frame{Type: hub.FrameNewMatch, MatchID: match.ID, UserID: subject, Match: match})
		p.hub.Send(subject, hub.Frame{Type: hub.FrameNewMatch, MatchID: match.ID, UserID: actor, Match: match})
	}
	return match, nil
}

// Reverse undoes the user's most recent decision, tearing down the match
// and its messages if the decision had completed a mutual like. Returns
// (nil, nil) when there is nothing to reverse.
func (p *Processor) Reverse(ctx context.Context, userID string, now time.Time) (*model.Decision, error) {
	ent := p.oracle.Resolve(ctx, userID, now)
	if !ent.Features.ReverseDecision {
		return nil, ErrUpgradeRequired
	}

	frame, err := p.store.PopReversalFrame(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	key := model.PairKey(frame.Actor, frame.Subject)
	p.pairs.Lock(key)
	defer p.pairs.Unlock(key)

	if err := p.store.DeleteDecision(ctx, frame.Actor, frame.Subject); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Already gone; the frame was stale.
			return nil, nil
		}
		return nil, err
	}
	p.store.IncrementStat(ctx, userID, "decisions", -1)

	if frame.Verdict == model.VerdictLike {
		if err := p.store.DeleteInboundLike(ctx, frame.Subject, frame.Actor); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("inbound-like index delete failed", "actor", frame.Actor, "subject", frame.Subject, "err", err)
		}
		p.store.IncrementStat(ctx, frame.Subject, "likes_received", -1)

		match, err := p.store.GetMatchByPair(ctx, frame.Actor, frame.Subject)
		if err == nil {
			if err := p.store.DeleteMatch(ctx, match.ID); err != nil {
				return nil, err
			}
			p.store.IncrementStat(ctx, frame.Actor, "matches", -1)
			p.store.IncrementStat(ctx, frame.Subject, "matches", -1)
			slog.Info("match torn down by reversal", "match_id", match.ID, "user", userID)
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	slog.Info("decision reversed", "actor", frame.Actor, "subject", frame.Subject, "verdict", frame.Verdict)
	return frame, nil
}

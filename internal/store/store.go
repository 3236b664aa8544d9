// Package store defines the persistence interface for the match engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cryptomatch/match-engine/internal/model"
)

// Sentinel errors surfaced by every implementation. Uniqueness violations
// map to the Duplicate* errors so callers can treat retries as no-ops.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateDecision = errors.New("decision already exists for pair")
	ErrDuplicateMatch    = errors.New("match already exists for pair")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer for profile and subscription
// reads.
type Store interface {
	// --- Profiles ---

	// UpsertProfile creates or replaces a profile. Implementations must
	// recompute the completion flag before persisting.
	UpsertProfile(ctx context.Context, p *model.Profile) error

	// GetProfile retrieves a profile by user id. The caller applies the
	// lazy offline downgrade; the store returns the record as persisted.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)

	// ListCompleteProfiles returns all profiles with profile_complete=true.
	ListCompleteProfiles(ctx context.Context) ([]model.Profile, error)

	// SetUserStatus persists a status transition (active/offline).
	SetUserStatus(ctx context.Context, userID, status string) error

	// TouchProfile bumps last_activity_at and marks the user active.
	TouchProfile(ctx context.Context, userID string, at time.Time) error

	// --- Decision log ---

	// InsertDecision appends a decision. Returns ErrDuplicateDecision if
	// the (actor, subject) pair was already decided.
	InsertDecision(ctx context.Context, d *model.Decision) error

	// GetDecision retrieves the decision actor made about subject.
	GetDecision(ctx context.Context, actor, subject string) (*model.Decision, error)

	// DeleteDecision removes the decision for (actor, subject).
	DeleteDecision(ctx context.Context, actor, subject string) error

	// DecidedSubjects returns the set of subjects the actor has decided on.
	DecidedSubjects(ctx context.Context, actor string) (map[string]bool, error)

	// CountDecisionsInWindow counts decisions by actor with at in [from, to).
	CountDecisionsInWindow(ctx context.Context, actor string, from, to time.Time) (int, error)

	// --- Match registry ---

	// CreateMatch persists a match. Returns ErrDuplicateMatch if a match
	// for the unordered pair already exists.
	CreateMatch(ctx context.Context, m *model.Match) error

	// GetMatch retrieves a match by id.
	GetMatch(ctx context.Context, id string) (*model.Match, error)

	// GetMatchByPair retrieves the match for an unordered user pair.
	GetMatchByPair(ctx context.Context, a, b string) (*model.Match, error)

	// ListMatches returns a user's matches ordered by last_activity_at desc.
	ListMatches(ctx context.Context, userID string) ([]model.Match, error)

	// TouchMatch bumps a match's last_activity_at.
	TouchMatch(ctx context.Context, id string, at time.Time) error

	// DeleteMatch removes a match along with its messages and read cursors.
	DeleteMatch(ctx context.Context, id string) error

	// --- Conversations ---

	// InsertMessage appends a message to a match's log.
	InsertMessage(ctx context.Context, m *model.Message) error

	// ListMessages returns the last limit messages in chronological order.
	// limit <= 0 means no cap.
	ListMessages(ctx context.Context, matchID string, limit int) ([]model.Message, error)

	// LatestMessage returns the newest message in a match, or ErrNotFound.
	LatestMessage(ctx context.Context, matchID string) (*model.Message, error)

	// CountUnread counts messages in the match not sent by userID and newer
	// than the user's read cursor (all of them when no cursor exists).
	CountUnread(ctx context.Context, matchID, userID string) (int, error)

	// UpsertReadCursor advances the cursor to at; an older at is a no-op,
	// so the cursor is monotonic.
	UpsertReadCursor(ctx context.Context, userID, matchID string, at time.Time) error

	// --- Inbound-like index ---

	// UpsertInboundLike records that actor liked subject.
	UpsertInboundLike(ctx context.Context, like *model.InboundLike) error

	// DeleteInboundLike removes the index row for (subject, actor).
	DeleteInboundLike(ctx context.Context, subject, actor string) error

	// ListInboundLikes returns who liked subject, newest first.
	ListInboundLikes(ctx context.Context, subject string) ([]model.InboundLike, error)

	// --- Subscriptions (entitlement read-side) ---

	// GetSubscription retrieves a user's subscription or ErrNotFound.
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)

	// UpsertSubscription persists a subscription record (self-heal writes
	// go through here; callers tolerate failure).
	UpsertSubscription(ctx context.Context, sub *model.Subscription) error

	// --- Reversal frames (depth 1 per user) ---

	// SetReversalFrame stores the user's undo frame, replacing any prior one.
	SetReversalFrame(ctx context.Context, userID string, d *model.Decision) error

	// PopReversalFrame removes and returns the user's undo frame, or
	// ErrNotFound when empty.
	PopReversalFrame(ctx context.Context, userID string) (*model.Decision, error)

	// --- Groups and events ---

	// CreateGroup persists a new group with the creator as first member.
	CreateGroup(ctx context.Context, g *model.Group) error

	// GetGroup retrieves a group by id.
	GetGroup(ctx context.Context, id string) (*model.Group, error)

	// AddGroupMember appends a member; adding an existing member is a no-op.
	AddGroupMember(ctx context.Context, groupID, userID string) error

	// ListGroupsForUser returns groups the user belongs to, newest first.
	ListGroupsForUser(ctx context.Context, userID string) ([]model.Group, error)

	// CreateEvent persists a scheduled event.
	CreateEvent(ctx context.Context, e *model.Event) error

	// ListUpcomingEvents returns events with starts_at >= now, soonest first.
	ListUpcomingEvents(ctx context.Context, now time.Time) ([]model.Event, error)

	// --- Analytics counters ---

	// IncrementStat adds delta to one of a user's counters. Field is one of
	// "profile_views", "likes_received", "matches", "decisions".
	IncrementStat(ctx context.Context, userID, field string, delta int64) error

	// GetStats returns a user's counters (zero-valued when none recorded).
	GetStats(ctx context.Context, userID string) (*model.UserStats, error)
}

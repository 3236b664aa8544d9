package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cryptomatch/match-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for profile and subscription reads. Writes go to the primary store
// and invalidate the cache. The TTL must stay at or below 60 seconds so the
// subscription self-heal-on-expiry is observed promptly.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	if ttl > time.Minute {
		ttl = time.Minute
	}
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

func profileKey(id string) string      { return fmt.Sprintf("profile:%s", id) }
func subscriptionKey(id string) string { return fmt.Sprintf("subscription:%s", id) }

// --- Profiles (read-through) ---

func (s *CachedStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	if err := s.primary.UpsertProfile(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, profileKey(p.UserID))
	return nil
}

func (s *CachedStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	data, err := s.rdb.Get(ctx, profileKey(userID)).Bytes()
	if err == nil {
		var p model.Profile
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, profileKey(userID), data, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) SetUserStatus(ctx context.Context, userID, status string) error {
	if err := s.primary.SetUserStatus(ctx, userID, status); err != nil {
		return err
	}
	s.rdb.Del(ctx, profileKey(userID))
	return nil
}

func (s *CachedStore) TouchProfile(ctx context.Context, userID string, at time.Time) error {
	if err := s.primary.TouchProfile(ctx, userID, at); err != nil {
		return err
	}
	s.rdb.Del(ctx, profileKey(userID))
	return nil
}

// --- Subscriptions (read-through) ---

func (s *CachedStore) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	data, err := s.rdb.Get(ctx, subscriptionKey(userID)).Bytes()
	if err == nil {
		var sub model.Subscription
		if json.Unmarshal(data, &sub) == nil {
			return &sub, nil
		}
	}

	sub, err := s.primary.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(sub); err == nil {
		s.rdb.Set(ctx, subscriptionKey(userID), data, s.ttl)
	}
	return sub, nil
}

func (s *CachedStore) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := s.primary.UpsertSubscription(ctx, sub); err != nil {
		return err
	}
	s.rdb.Del(ctx, subscriptionKey(sub.UserID))
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListCompleteProfiles(ctx context.Context) ([]model.Profile, error) {
	return s.primary.ListCompleteProfiles(ctx)
}

func (s *CachedStore) InsertDecision(ctx context.Context, d *model.Decision) error {
	return s.primary.InsertDecision(ctx, d)
}

func (s *CachedStore) GetDecision(ctx context.Context, actor, subject string) (*model.Decision, error) {
	return s.primary.GetDecision(ctx, actor, subject)
}

func (s *CachedStore) DeleteDecision(ctx context.Context, actor, subject string) error {
	return s.primary.DeleteDecision(ctx, actor, subject)
}

func (s *CachedStore) DecidedSubjects(ctx context.Context, actor string) (map[string]bool, error) {
	return s.primary.DecidedSubjects(ctx, actor)
}

func (s *CachedStore) CountDecisionsInWindow(ctx context.Context, actor string, from, to time.Time) (int, error) {
	return s.primary.CountDecisionsInWindow(ctx, actor, from, to)
}

func (s *CachedStore) CreateMatch(ctx context.Context, m *model.Match) error {
	return s.primary.CreateMatch(ctx, m)
}

func (s *CachedStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	return s.primary.GetMatch(ctx, id)
}

func (s *CachedStore) GetMatchByPair(ctx context.Context, a, b string) (*model.Match, error) {
	return s.primary.GetMatchByPair(ctx, a, b)
}

func (s *CachedStore) ListMatches(ctx context.Context, userID string) ([]model.Match, error) {
	return s.primary.ListMatches(ctx, userID)
}

func (s *CachedStore) TouchMatch(ctx context.Context, id string, at time.Time) error {
	return s.primary.TouchMatch(ctx, id, at)
}

func (s *CachedStore) DeleteMatch(ctx context.Context, id string) error {
	return s.primary.DeleteMatch(ctx, id)
}

func (s *CachedStore) InsertMessage(ctx context.Context, m *model.Message) error {
	return s.primary.InsertMessage(ctx, m)
}

func (s *CachedStore) ListMessages(ctx context.Context, matchID string, limit int) ([]model.Message, error) {
	return s.primary.ListMessages(ctx, matchID, limit)
}

func (s *CachedStore) LatestMessage(ctx context.Context, matchID string) (*model.Message, error) {
	return s.primary.LatestMessage(ctx, matchID)
}

func (s *CachedStore) CountUnread(ctx context.Context, matchID, userID string) (int, error) {
	return s.primary.CountUnread(ctx, matchID, userID)
}

func (s *CachedStore) UpsertReadCursor(ctx context.Context, userID, matchID string, at time.Time) error {
	return s.primary.UpsertReadCursor(ctx, userID, matchID, at)
}

func (s *CachedStore) UpsertInboundLike(ctx context.Context, like *model.InboundLike) error {
	return s.primary.UpsertInboundLike(ctx, like)
}

func (s *CachedStore) DeleteInboundLike(ctx context.Context, subject, actor string) error {
	return s.primary.DeleteInboundLike(ctx, subject, actor)
}

func (s *CachedStore) ListInboundLikes(ctx context.Context, subject string) ([]model.InboundLike, error) {
	return s.primary.ListInboundLikes(ctx, subject)
}

func (s *CachedStore) SetReversalFrame(ctx context.Context, userID string, d *model.Decision) error {
	return s.primary.SetReversalFrame(ctx, userID, d)
}

func (s *CachedStore) PopReversalFrame(ctx context.Context, userID string) (*model.Decision, error) {
	return s.primary.PopReversalFrame(ctx, userID)
}

func (s *CachedStore) CreateGroup(ctx context.Context, g *model.Group) error {
	return s.primary.CreateGroup(ctx, g)
}

func (s *CachedStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	return s.primary.GetGroup(ctx, id)
}

func (s *CachedStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	return s.primary.AddGroupMember(ctx, groupID, userID)
}

func (s *CachedStore) ListGroupsForUser(ctx context.Context, userID string) ([]model.Group, error) {
	return s.primary.ListGroupsForUser(ctx, userID)
}

func (s *CachedStore) CreateEvent(ctx context.Context, e *model.Event) error {
	return s.primary.CreateEvent(ctx, e)
}

func (s *CachedStore) ListUpcomingEvents(ctx context.Context, now time.Time) ([]model.Event, error) {
	return s.primary.ListUpcomingEvents(ctx, now)
}

func (s *CachedStore) IncrementStat(ctx context.Context, userID, field string, delta int64) error {
	return s.primary.IncrementStat(ctx, userID, field, delta)
}

func (s *CachedStore) GetStats(ctx context.Context, userID string) (*model.UserStats, error) {
	return s.primary.GetStats(ctx, userID)
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cryptomatch/match-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu            sync.RWMutex
	profiles      map[string]*model.Profile
	decisions     map[string]*model.Decision // key: actor:subject
	matches       map[string]*model.Match    // key: match id
	matchByPair   map[string]string          // pair key -> match id
	messages      map[string][]model.Message // key: match id
	cursors       map[string]*model.ReadCursor
	inboundLikes  map[string][]model.InboundLike // key: subject
	subscriptions map[string]*model.Subscription
	frames        map[string]*model.Decision
	groups        map[string]*model.Group
	events        []model.Event
	stats         map[string]*model.UserStats
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:      make(map[string]*model.Profile),
		decisions:     make(map[string]*model.Decision),
		matches:       make(map[string]*model.Match),
		matchByPair:   make(map[string]string),
		messages:      make(map[string][]model.Message),
		cursors:       make(map[string]*model.ReadCursor),
		inboundLikes:  make(map[string][]model.InboundLike),
		subscriptions: make(map[string]*model.Subscription),
		frames:        make(map[string]*model.Decision),
		groups:        make(map[string]*model.Group),
		stats:         make(map[string]*model.UserStats),
	}
}

func decisionKey(actor, subject string) string { return actor + ":" + subject }
func cursorKey(userID, matchID string) string  { return userID + ":" + matchID }

// --- Profiles ---

func (s *MemoryStore) UpsertProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.PreferredTokens = append([]string(nil), p.PreferredTokens...)
	cp.LookingFor = append([]string(nil), p.LookingFor...)
	cp.RecomputeComplete()
	s.profiles[p.UserID] = &cp
	p.ProfileComplete = cp.ProfileComplete
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListCompleteProfiles(_ context.Context) ([]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Profile
	for _, p := range s.profiles {
		if p.ProfileComplete {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetUserStatus(_ context.Context, userID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.UserStatus = status
	return nil
}

func (s *MemoryStore) TouchProfile(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.LastActivityAt = at
	p.UserStatus = model.StatusActive
	return nil
}

// --- Decision log ---

func (s *MemoryStore) InsertDecision(_ context.Context, d *model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := decisionKey(d.Actor, d.Subject)
	if _, exists := s.decisions[key]; exists {
		return ErrDuplicateDecision
	}
	cp := *d
	s.decisions[key] = &cp
	return nil
}

func (s *MemoryStore) GetDecision(_ context.Context, actor, subject string) (*model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.decisions[decisionKey(actor, subject)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) DeleteDecision(_ context.Context, actor, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := decisionKey(actor, subject)
	if _, ok := s.decisions[key]; !ok {
		return ErrNotFound
	}
	delete(s.decisions, key)
	return nil
}

func (s *MemoryStore) DecidedSubjects(_ context.Context, actor string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool)
	for _, d := range s.decisions {
		if d.Actor == actor {
			out[d.Subject] = true
		}
	}
	return out, nil
}

func (s *MemoryStore) CountDecisionsInWindow(_ context.Context, actor string, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, d := range s.decisions {
		if d.Actor == actor && !d.At.Before(from) && d.At.Before(to) {
			n++
		}
	}
	return n, nil
}

// --- Match registry ---

func (s *MemoryStore) CreateMatch(_ context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := model.PairKey(m.UserA, m.UserB)
	if _, exists := s.matchByPair[pair]; exists {
		return ErrDuplicateMatch
	}
	cp := *m
	s.matches[m.ID] = &cp
	s.matchByPair[pair] = m.ID
	return nil
}

func (s *MemoryStore) GetMatch(_ context.Context, id string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) GetMatchByPair(_ context.Context, a, b string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.matchByPair[model.PairKey(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.matches[id]
	return &cp, nil
}

func (s *MemoryStore) ListMatches(_ context.Context, userID string) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Match
	for _, m := range s.matches {
		if m.Member(userID) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) TouchMatch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	m.LastActivityAt = at
	return nil
}

func (s *MemoryStore) DeleteMatch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.matchByPair, model.PairKey(m.UserA, m.UserB))
	delete(s.matches, id)
	delete(s.messages, id)
	delete(s.cursors, cursorKey(m.UserA, id))
	delete(s.cursors, cursorKey(m.UserB, id))
	return nil
}

// --- Conversations ---

func (s *MemoryStore) InsertMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[m.MatchID] = append(s.messages[m.MatchID], *m)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, matchID string, limit int) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[matchID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]model.Message(nil), msgs...), nil
}

func (s *MemoryStore) LatestMessage(_ context.Context, matchID string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[matchID]
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	cp := msgs[len(msgs)-1]
	return &cp, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, matchID, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var since time.Time
	if c, ok := s.cursors[cursorKey(userID, matchID)]; ok {
		since = c.LastReadAt
	}
	n := 0
	for _, m := range s.messages[matchID] {
		if m.Sender != userID && m.At.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpsertReadCursor(_ context.Context, userID, matchID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cursorKey(userID, matchID)
	if c, ok := s.cursors[key]; ok {
		if at.After(c.LastReadAt) {
			c.LastReadAt = at
		}
		return nil
	}
	s.cursors[key] = &model.ReadCursor{UserID: userID, MatchID: matchID, LastReadAt: at}
	return nil
}

// --- Inbound-like index ---

func (s *MemoryStore) UpsertInboundLike(_ context.Context, like *model.InboundLike) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	likes := s.inboundLikes[like.Subject]
	for i := range likes {
		if likes[i].Actor == like.Actor {
			likes[i].At = like.At
			return nil
		}
	}
	s.inboundLikes[like.Subject] = append(likes, *like)
	return nil
}

func (s *MemoryStore) DeleteInboundLike(_ context.Context, subject, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	likes := s.inboundLikes[subject]
	for i := range likes {
		if likes[i].Actor == actor {
			s.inboundLikes[subject] = append(likes[:i], likes[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListInboundLikes(_ context.Context, subject string) ([]model.InboundLike, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]model.InboundLike(nil), s.inboundLikes[subject]...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		return out[i].Actor < out[j].Actor
	})
	return out, nil
}

// --- Subscriptions ---

func (s *MemoryStore) GetSubscription(_ context.Context, userID string) (*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) UpsertSubscription(_ context.Context, sub *model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sub
	s.subscriptions[sub.UserID] = &cp
	return nil
}

// --- Reversal frames ---

func (s *MemoryStore) SetReversalFrame(_ context.Context, userID string, d *model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	s.frames[userID] = &cp
	return nil
}

func (s *MemoryStore) PopReversalFrame(_ context.Context, userID string) (*model.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.frames[userID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.frames, userID)
	cp := *d
	return &cp, nil
}

// --- Groups and events ---

func (s *MemoryStore) CreateGroup(_ context.Context, g *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	s.groups[g.ID] = &cp
	return nil
}

func (s *MemoryStore) GetGroup(_ context.Context, id string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	return &cp, nil
}

func (s *MemoryStore) AddGroupMember(_ context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	for _, m := range g.Members {
		if m == userID {
			return nil
		}
	}
	g.Members = append(g.Members, userID)
	return nil
}

func (s *MemoryStore) ListGroupsForUser(_ context.Context, userID string) ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Group
	for _, g := range s.groups {
		for _, m := range g.Members {
			if m == userID {
				cp := *g
				cp.Members = append([]string(nil), g.Members...)
				out = append(out, cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) ListUpcomingEvents(_ context.Context, now time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Event
	for _, e := range s.events {
		if !e.StartsAt.Before(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- Analytics counters ---

func (s *MemoryStore) IncrementStat(_ context.Context, userID, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[userID]
	if !ok {
		st = &model.UserStats{UserID: userID}
		s.stats[userID] = st
	}
	switch field {
	case "profile_views":
		st.ProfileViews += delta
	case "likes_received":
		st.LikesReceived += delta
	case "matches":
		st.Matches += delta
	case "decisions":
		st.Decisions += delta
	}
	return nil
}

func (s *MemoryStore) GetStats(_ context.Context, userID string) (*model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.stats[userID]; ok {
		cp := *st
		return &cp, nil
	}
	return &model.UserStats{UserID: userID}, nil
}

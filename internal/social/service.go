// Package social implements the pro-tier surfaces: trading-signal
// broadcast, trading groups, scheduled events, and per-user analytics.
package social

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cryptomatch/match-engine/internal/entitlement"
	"github.com/cryptomatch/match-engine/internal/hub"
	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

// Errors surfaced by the social service.
var (
	ErrUpgradeRequired = errors.New("feature requires a premium tier")
	ErrValidation      = errors.New("invalid request")
	ErrGroupNotFound   = errors.New("group not found")
)

// Service gates the pro-trader features behind the entitlement oracle.
type Service struct {
	store  store.Store
	oracle *entitlement.Oracle
	hub    *hub.Hub // nil disables live delivery
}

// NewService creates the social service.
func NewService(st store.Store, oracle *entitlement.Oracle, h *hub.Hub) *Service {
	return &Service{store: st, oracle: oracle, hub: h}
}

// BroadcastSignal fans a trading signal out to the live channels of every
// user the sender is matched with. Delivery is best-effort; the returned
// count is the number of matches targeted, not confirmed deliveries.
func (s *Service) BroadcastSignal(ctx context.Context, senderID, token, signalType, note string, now time.Time) (*model.TradingSignal, int, error) {
	ent := s.oracle.Resolve(ctx, senderID, now)
	if !ent.Features.SendSignals {
		return nil, 0, ErrUpgradeRequired
	}
	if strings.TrimSpace(token) == "" || strings.TrimSpace(signalType) == "" {
		return nil, 0, ErrValidation
	}

	signal := &model.TradingSignal{
		ID:         uuid.New().String(),
		Sender:     senderID,
		Token:      token,
		SignalType: signalType,
		Note:       note,
		At:         now,
	}

	matches, err := s.store.ListMatches(ctx, senderID)
	if err != nil {
		return nil, 0, err
	}
	if s.hub != nil {
		for _, m := range matches {
			s.hub.Send(m.Other(senderID), hub.Frame{Type: hub.FrameTradingSignal, Signal: signal})
		}
	}

	slog.Info("trading signal broadcast", "sender", senderID, "token", token, "recipients", len(matches))
	return signal, len(matches), nil
}

// CreateGroup creates a trading group with the creator as first member.
func (s *Service) CreateGroup(ctx context.Context, creatorID, name, tokenFocus string, now time.Time) (*model.Group, error) {
	ent := s.oracle.Resolve(ctx, creatorID, now)
	if !ent.Features.CreateGroups {
		return nil, ErrUpgradeRequired
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrValidation
	}

	group := &model.Group{
		ID:         uuid.New().String(),
		Creator:    creatorID,
		Name:       name,
		TokenFocus: tokenFocus,
		Members:    []string{creatorID},
		CreatedAt:  now,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}
	slog.Info("group created", "group_id", group.ID, "creator", creatorID, "name", name)
	return group, nil
}

// JoinGroup adds the user to the group and notifies the existing members.
// Joining a group you already belong to is a no-op.
func (s *Service) JoinGroup(ctx context.Context, groupID, userID string) (*model.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, ErrGroupNotFound
	}

	already := false
	for _, m := range group.Members {
		if m == userID {
			already = true
			break
		}
	}
	if err := s.store.AddGroupMember(ctx, groupID, userID); err != nil {
		return nil, err
	}

	if !already && s.hub != nil {
		for _, m := range group.Members {
			s.hub.Send(m, hub.Frame{Type: hub.FrameGroupMemberJoined, GroupID: groupID, UserID: userID})
		}
	}
	return s.store.GetGroup(ctx, groupID)
}

// GroupsFor lists the groups the user belongs to, newest first.
func (s *Service) GroupsFor(ctx context.Context, userID string) ([]model.Group, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

// ScheduleEvent creates a scheduled trading event.
func (s *Service) ScheduleEvent(ctx context.Context, hostID, title, description string, startsAt, now time.Time) (*model.Event, error) {
	ent := s.oracle.Resolve(ctx, hostID, now)
	if !ent.Features.ScheduleEvents {
		return nil, ErrUpgradeRequired
	}
	if strings.TrimSpace(title) == "" || startsAt.Before(now) {
		return nil, ErrValidation
	}

	event := &model.Event{
		ID:          uuid.New().String(),
		Host:        hostID,
		Title:       title,
		Description: description,
		StartsAt:    startsAt,
		CreatedAt:   now,
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	slog.Info("event scheduled", "event_id", event.ID, "host", hostID, "starts_at", startsAt)
	return event, nil
}

// UpcomingEvents lists events that have not started yet, soonest first.
func (s *Service) UpcomingEvents(ctx context.Context, now time.Time) ([]model.Event, error) {
	return s.store.ListUpcomingEvents(ctx, now)
}

// Stats returns the per-user analytics counters, gated by view_analytics.
func (s *Service) Stats(ctx context.Context, userID string, now time.Time) (*model.UserStats, error) {
	ent := s.oracle.Resolve(ctx, userID, now)
	if !ent.Features.ViewAnalytics {
		return nil, ErrUpgradeRequired
	}
	return s.store.GetStats(ctx, userID)
}

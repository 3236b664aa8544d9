// Package chat implements the conversation store surface: appending
// messages inside a match, listing history, and read-cursor bookkeeping.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cryptomatch/match-engine/internal/hub"
	"github.com/cryptomatch/match-engine/internal/metrics"
	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

// Errors surfaced by the conversation service.
var (
	ErrMatchNotFound = errors.New("match not found")
	ErrNotMember     = errors.New("sender is not a member of the match")
	ErrEmptyBody     = errors.New("message body is empty")
)

// Service owns messages and read cursors. Appends serialize per match via
// the store; sends never fail on notification delivery.
type Service struct {
	store store.Store
	hub   *hub.Hub // nil disables live delivery
	now   func() time.Time
}

// NewService creates a conversation service. Pass nil for h to disable
// live delivery.
func NewService(st store.Store, h *hub.Hub) *Service {
	return &Service{store: st, hub: h, now: time.Now}
}

// Send appends a message to the match, bumps the match's last activity,
// and fans the message out to the other member's live channel. It is the
// single send path: HTTP and WebSocket frames both land here.
func (s *Service) Send(ctx context.Context, matchID, senderID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyBody
	}

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, ErrMatchNotFound
	}
	if !match.Member(senderID) {
		return nil, ErrNotMember
	}

	now := s.now().UTC()
	msg := &model.Message{
		ID:      uuid.New().String(),
		MatchID: matchID,
		Sender:  senderID,
		Body:    content,
		At:      now,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.store.TouchMatch(ctx, matchID, now); err != nil {
		slog.Warn("match activity bump failed", "match", matchID, "err", err)
	}
	s.store.TouchProfile(ctx, senderID, now)
	metrics.MessagesTotal.Inc()

	if s.hub != nil {
		s.hub.Send(match.Other(senderID), hub.Frame{
			Type:    hub.FrameChatMessage,
			MatchID: matchID,
			Message: msg,
		})
	}
	return msg, nil
}

// List returns the last limit messages of a match in chronological order.
func (s *Service) List(ctx context.Context, matchID string, limit int) ([]model.Message, error) {
	if _, err := s.store.GetMatch(ctx, matchID); err != nil {
		return nil, ErrMatchNotFound
	}
	return s.store.ListMessages(ctx, matchID, limit)
}

// MarkRead advances the user's read cursor for the match to at. The cursor
// is monotonic: an older timestamp never moves it backwards.
func (s *Service) MarkRead(ctx context.Context, userID, matchID string, at time.Time) error {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return ErrMatchNotFound
	}
	if !match.Member(userID) {
		return ErrNotMember
	}
	return s.store.UpsertReadCursor(ctx, userID, matchID, at)
}

// Unread returns the user's unread count for the match: messages from the
// other member newer than the cursor, or all of them when no cursor exists.
func (s *Service) Unread(ctx context.Context, matchID, userID string) (int, error) {
	return s.store.CountUnread(ctx, matchID, userID)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cryptomatch/match-engine/internal/model"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestMemory_ProfileCompletionDerived(t *testing.T) {
	st := NewMemoryStore()
	p := &model.Profile{
		UserID:            "u1",
		TradingExperience: model.ExperienceBeginner,
		PreferredTokens:   []string{"DeFi"},
		TradingStyle:      "HODLer",
		PortfolioSize:     "<$1K",
	}
	if err := st.UpsertProfile(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if !p.ProfileComplete {
		t.Error("upsert should recompute completion on the caller's struct")
	}

	p.PortfolioSize = ""
	if err := st.UpsertProfile(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ProfileComplete {
		t.Error("clearing a required field should clear completion")
	}
}

func TestMemory_DecisionUniquePerPair(t *testing.T) {
	st := NewMemoryStore()
	d := &model.Decision{ID: "d1", Actor: "a", Subject: "b", Verdict: model.VerdictLike, At: testNow}
	if err := st.InsertDecision(context.Background(), d); err != nil {
		t.Fatal(err)
	}

	dup := &model.Decision{ID: "d2", Actor: "a", Subject: "b", Verdict: model.VerdictPass, At: testNow}
	if err := st.InsertDecision(context.Background(), dup); !errors.Is(err, ErrDuplicateDecision) {
		t.Fatalf("expected ErrDuplicateDecision, got %v", err)
	}

	// The reverse direction is a distinct pair entry.
	rev := &model.Decision{ID: "d3", Actor: "b", Subject: "a", Verdict: model.VerdictLike, At: testNow}
	if err := st.InsertDecision(context.Background(), rev); err != nil {
		t.Fatalf("reverse direction should insert, got %v", err)
	}
}

func TestMemory_MatchUniquePerUnorderedPair(t *testing.T) {
	st := NewMemoryStore()
	m := &model.Match{ID: "m1", UserA: "a", UserB: "b", CreatedAt: testNow, LastActivityAt: testNow}
	if err := st.CreateMatch(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	// Same pair in the opposite order collides.
	swapped := &model.Match{ID: "m2", UserA: "b", UserB: "a", CreatedAt: testNow, LastActivityAt: testNow}
	if err := st.CreateMatch(context.Background(), swapped); !errors.Is(err, ErrDuplicateMatch) {
		t.Fatalf("expected ErrDuplicateMatch, got %v", err)
	}

	got, err := st.GetMatchByPair(context.Background(), "b", "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "m1" {
		t.Errorf("pair lookup should be order-independent, got %s", got.ID)
	}
}

func TestMemory_DeleteMatchCascades(t *testing.T) {
	st := NewMemoryStore()
	m := &model.Match{ID: "m1", UserA: "a", UserB: "b", CreatedAt: testNow, LastActivityAt: testNow}
	if err := st.CreateMatch(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	err := st.InsertMessage(context.Background(), &model.Message{ID: "msg1", MatchID: "m1", Sender: "a", Body: "x", At: testNow})
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertReadCursor(context.Background(), "a", "m1", testNow); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteMatch(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}

	if _, err := st.GetMatchByPair(context.Background(), "a", "b"); !errors.Is(err, ErrNotFound) {
		t.Error("pair index entry should be gone")
	}
	msgs, err := st.ListMessages(context.Background(), "m1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages should cascade, got %d", len(msgs))
	}

	// The pair can match again afterwards.
	again := &model.Match{ID: "m2", UserA: "a", UserB: "b", CreatedAt: testNow, LastActivityAt: testNow}
	if err := st.CreateMatch(context.Background(), again); err != nil {
		t.Errorf("pair should be free to re-match, got %v", err)
	}
}

func TestMemory_ListMatchesOrder(t *testing.T) {
	st := NewMemoryStore()
	for i, other := range []string{"b", "c", "d"} {
		m := &model.Match{
			ID:             fmt.Sprintf("m%d", i),
			UserA:          "a",
			UserB:          other,
			CreatedAt:      testNow,
			LastActivityAt: testNow.Add(time.Duration(i) * time.Minute),
		}
		if err := st.CreateMatch(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := st.ListMatches(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 || matches[0].ID != "m2" || matches[2].ID != "m0" {
		t.Errorf("expected most recently active first, got %+v", matches)
	}
}

func TestMemory_ReadCursorMonotonic(t *testing.T) {
	st := NewMemoryStore()
	later := testNow.Add(time.Hour)

	if err := st.UpsertReadCursor(context.Background(), "a", "m1", later); err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertReadCursor(context.Background(), "a", "m1", testNow); err != nil {
		t.Fatal(err)
	}

	err := st.InsertMessage(context.Background(), &model.Message{
		ID: "msg1", MatchID: "m1", Sender: "b", Body: "x", At: testNow.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	n, err := st.CountUnread(context.Background(), "m1", "a")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("cursor must not move backwards; expected 0 unread, got %d", n)
	}
}

func TestMemory_ListMessagesLimit(t *testing.T) {
	st := NewMemoryStore()
	for i := 0; i < 5; i++ {
		err := st.InsertMessage(context.Background(), &model.Message{
			ID:      fmt.Sprintf("msg%d", i),
			MatchID: "m1",
			Sender:  "a",
			Body:    "x",
			At:      testNow.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := st.ListMessages(context.Background(), "m1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].ID != "msg3" || msgs[1].ID != "msg4" {
		t.Errorf("expected the last two in order, got %+v", msgs)
	}

	// Zero means everything.
	msgs, err = st.ListMessages(context.Background(), "m1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 5 {
		t.Errorf("expected all messages, got %d", len(msgs))
	}
}

func TestMemory_InboundLikesNewestFirst(t *testing.T) {
	st := NewMemoryStore()
	for i, actor := range []string{"x", "y", "z"} {
		err := st.UpsertInboundLike(context.Background(), &model.InboundLike{
			Subject: "a",
			Actor:   actor,
			At:      testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	likes, err := st.ListInboundLikes(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(likes) != 3 || likes[0].Actor != "z" || likes[2].Actor != "x" {
		t.Errorf("expected newest like first, got %+v", likes)
	}

	if err := st.DeleteInboundLike(context.Background(), "a", "y"); err != nil {
		t.Fatal(err)
	}
	if likes, _ = st.ListInboundLikes(context.Background(), "a"); len(likes) != 2 {
		t.Errorf("expected 2 likes after withdrawal, got %+v", likes)
	}
}

func TestMemory_StatsZeroValued(t *testing.T) {
	st := NewMemoryStore()

	stats, err := st.GetStats(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if stats.UserID != "nobody" || stats.ProfileViews != 0 {
		t.Errorf("expected zero-valued stats for unknown user, got %+v", stats)
	}

	if err := st.IncrementStat(context.Background(), "a", "matches", 1); err != nil {
		t.Fatal(err)
	}
	if err := st.IncrementStat(context.Background(), "a", "matches", -1); err != nil {
		t.Fatal(err)
	}
	stats, err = st.GetStats(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Matches != 0 {
		t.Errorf("increments should sum to zero, got %d", stats.Matches)
	}
}

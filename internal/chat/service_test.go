package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(st store.Store) *Service {
	svc := NewService(st, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func seedMatch(t *testing.T, st store.Store, id, a, b string) {
	t.Helper()
	for _, u := range []string{a, b} {
		err := st.UpsertProfile(context.Background(), &model.Profile{
			UserID:            u,
			DisplayName:       u,
			TradingExperience: model.ExperienceIntermediate,
			PreferredTokens:   []string{"DeFi"},
			TradingStyle:      "Swing Trader",
			PortfolioSize:     "$10K-$100K",
		})
		if err != nil {
			t.Fatalf("seed profile %s: %v", u, err)
		}
	}
	err := st.CreateMatch(context.Background(), &model.Match{
		ID: id, UserA: a, UserB: b, CreatedAt: testNow, LastActivityAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed match %s: %v", id, err)
	}
}

func TestSend_AppendsAndBumpsActivity(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st)
	seedMatch(t, st, "m1", "alice", "bob")

	msg, err := svc.Send(context.Background(), "m1", "alice", "gm, how's the DeFi bag?")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" || msg.Sender != "alice" || !msg.At.Equal(testNow) {
		t.Errorf("unexpected message: %+v", msg)
	}

	m, err := st.GetMatch(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !m.LastActivityAt.Equal(testNow) {
		t.Errorf("send should bump match activity, got %v", m.LastActivityAt)
	}
}

func TestSend_Rejections(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st)
	seedMatch(t, st, "m1", "alice", "bob")

	if _, err := svc.Send(context.Background(), "m1", "alice", "   "); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody for whitespace, got %v", err)
	}
	if _, err := svc.Send(context.Background(), "nope", "alice", "hi"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
	if _, err := svc.Send(context.Background(), "m1", "mallory", "hi"); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember for outsider, got %v", err)
	}
}

func TestList_LastNChronological(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st)
	seedMatch(t, st, "m1", "alice", "bob")

	for i := 0; i < 5; i++ {
		err := st.InsertMessage(context.Background(), &model.Message{
			ID:      fmt.Sprintf("msg%d", i),
			MatchID: "m1",
			Sender:  "alice",
			Body:    fmt.Sprintf("message %d", i),
			At:      testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := svc.List(context.Background(), "m1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "msg2" || msgs[2].ID != "msg4" {
		t.Errorf("expected last 3 in order, got %v then %v", msgs[0].ID, msgs[2].ID)
	}

	if _, err := svc.List(context.Background(), "nope", 10); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestUnread_CountsOnlyOtherPartySinceCursor(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st)
	seedMatch(t, st, "m1", "alice", "bob")

	times := make([]time.Time, 4)
	for i := range times {
		times[i] = testNow.Add(time.Duration(i) * time.Minute)
	}
	send := func(id, sender string, at time.Time) {
		err := st.InsertMessage(context.Background(), &model.Message{
			ID: id, MatchID: "m1", Sender: sender, Body: "x", At: at,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	send("m-1", "bob", times[0])
	send("m-2", "bob", times[1])
	send("m-3", "alice", times[2])
	send("m-4", "bob", times[3])

	// No cursor: everything from bob is unread, own messages never count.
	n, err := svc.Unread(context.Background(), "m1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 unread, got %d", n)
	}

	if err := svc.MarkRead(context.Background(), "alice", "m1", times[1]); err != nil {
		t.Fatal(err)
	}
	if n, _ = svc.Unread(context.Background(), "m1", "alice"); n != 1 {
		t.Errorf("expected 1 unread after cursor, got %d", n)
	}
}

func TestMarkRead_Monotonic(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st)
	seedMatch(t, st, "m1", "alice", "bob")

	later := testNow.Add(time.Hour)
	if err := svc.MarkRead(context.Background(), "alice", "m1", later); err != nil {
		t.Fatal(err)
	}
	// A stale client replay must not rewind the cursor.
	if err := svc.MarkRead(context.Background(), "alice", "m1", testNow); err != nil {
		t.Fatal(err)
	}

	err := st.InsertMessage(context.Background(), &model.Message{
		ID: "msg1", MatchID: "m1", Sender: "bob", Body: "x", At: testNow.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := svc.Unread(context.Background(), "m1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rewound cursor would make this unread; expected 0, got %d", n)
	}
}

func TestMarkRead_Rejections(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st)
	seedMatch(t, st, "m1", "alice", "bob")

	if err := svc.MarkRead(context.Background(), "alice", "nope", testNow); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("expected ErrMatchNotFound, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), "mallory", "m1", testNow); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

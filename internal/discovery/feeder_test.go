package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptomatch/match-engine/internal/entitlement"
	"github.com/cryptomatch/match-engine/internal/model"
	"github.com/cryptomatch/match-engine/internal/store"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestFeeder(st store.Store) *Feeder {
	return NewFeeder(st, entitlement.NewOracle(st))
}

type profileOpt func(*model.Profile)

func seedProfile(t *testing.T, st store.Store, userID string, opts ...profileOpt) {
	t.Helper()
	p := &model.Profile{
		UserID:            userID,
		DisplayName:       userID,
		TradingExperience: model.ExperienceIntermediate,
		YearsTrading:      3,
		PreferredTokens:   []string{"DeFi"},
		TradingStyle:      "Swing Trader",
		PortfolioSize:     "$10K-$100K",
		UserStatus:        model.StatusActive,
		LastActivityAt:    testNow,
		CreatedAt:         testNow,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := st.UpsertProfile(context.Background(), p); err != nil {
		t.Fatalf("seed profile %s: %v", userID, err)
	}
}

func seedPremium(t *testing.T, st store.Store, userID string) {
	t.Helper()
	err := st.UpsertSubscription(context.Background(), &model.Subscription{
		UserID: userID,
		Tier:   model.TierBasicPremium,
		Status: model.SubActive,
	})
	if err != nil {
		t.Fatalf("seed subscription %s: %v", userID, err)
	}
}

func ids(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.UserID
	}
	return out
}

func TestCandidates_ExcludesSelfIncompleteAndDecided(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "me")
	seedProfile(t, st, "fresh")
	seedProfile(t, st, "decided")
	seedProfile(t, st, "draft", func(p *model.Profile) { p.TradingStyle = "" })
	err := st.InsertDecision(context.Background(), &model.Decision{
		ID: "d1", Actor: "me", Subject: "decided", Verdict: model.VerdictPass, At: testNow,
	})
	if err != nil {
		t.Fatal(err)
	}

	cands, filtered, err := f.Candidates(context.Background(), "me", 0, nil, false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if filtered {
		t.Error("no filters requested, filtered should be false")
	}
	if got := ids(cands); len(got) != 1 || got[0] != "fresh" {
		t.Errorf("expected only the undecided complete stranger, got %v", got)
	}
}

func TestCandidates_RequesterChecks(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "draft", func(p *model.Profile) { p.PortfolioSize = "" })

	if _, _, err := f.Candidates(context.Background(), "ghost", 0, nil, false, testNow); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, _, err := f.Candidates(context.Background(), "draft", 0, nil, false, testNow); !errors.Is(err, ErrProfileIncomplete) {
		t.Errorf("expected ErrProfileIncomplete, got %v", err)
	}
}

func TestCandidates_FreeOrdersByAccountAge(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "me")
	seedProfile(t, st, "older", func(p *model.Profile) { p.CreatedAt = testNow.Add(-48 * time.Hour) })
	seedProfile(t, st, "newer", func(p *model.Profile) { p.CreatedAt = testNow.Add(-time.Hour) })

	cands, _, err := f.Candidates(context.Background(), "me", 0, nil, false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(cands); len(got) != 2 || got[0] != "older" || got[1] != "newer" {
		t.Errorf("free feed should order oldest account first, got %v", got)
	}
}

func TestCandidates_PriorityOrdersByActivity(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "me")
	seedPremium(t, st, "me")
	seedProfile(t, st, "idle", func(p *model.Profile) {
		p.CreatedAt = testNow.Add(-48 * time.Hour)
		p.LastActivityAt = testNow.Add(-20 * time.Minute)
	})
	seedProfile(t, st, "busy", func(p *model.Profile) {
		p.CreatedAt = testNow.Add(-time.Hour)
		p.LastActivityAt = testNow.Add(-time.Minute)
	})

	cands, _, err := f.Candidates(context.Background(), "me", 0, nil, false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(cands); len(got) != 2 || got[0] != "busy" || got[1] != "idle" {
		t.Errorf("priority feed should order by recent activity, got %v", got)
	}
}

func TestCandidates_RankedAttachesAndOrdersByCompatibility(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "me")
	seedProfile(t, st, "twin") // identical profile scores high
	seedProfile(t, st, "opposite", func(p *model.Profile) {
		p.TradingExperience = model.ExperienceExpert
		p.YearsTrading = 10
		p.PreferredTokens = []string{"Memecoins"}
		p.TradingStyle = "Scalper"
		p.RiskTolerance = model.RiskYOLO
	})

	cands, _, err := f.Candidates(context.Background(), "me", 0, nil, true, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].UserID != "twin" {
		t.Errorf("highest compatibility should lead, got %v", ids(cands))
	}
	for _, c := range cands {
		if c.Compatibility == nil {
			t.Errorf("ranked mode must attach compatibility for %s", c.UserID)
		}
	}
	if cands[0].Compatibility.Percent < cands[1].Compatibility.Percent {
		t.Error("ranked feed out of order")
	}
}

func TestCandidates_FiltersGatedByTier(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "me")
	seedProfile(t, st, "whale", func(p *model.Profile) { p.PortfolioSize = "$1M+" })
	seedProfile(t, st, "shrimp")

	filters := &Filters{PortfolioSize: "$1M+"}

	// Free tier: filters silently ignored.
	cands, filtered, err := f.Candidates(context.Background(), "me", 0, filters, false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if filtered {
		t.Error("free tier must not apply advanced filters")
	}
	if len(cands) != 2 {
		t.Errorf("free tier should see everyone, got %v", ids(cands))
	}

	// Premium: filters apply.
	seedPremium(t, st, "me")
	cands, filtered, err = f.Candidates(context.Background(), "me", 0, filters, false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if !filtered {
		t.Error("premium tier should apply filters")
	}
	if got := ids(cands); len(got) != 1 || got[0] != "whale" {
		t.Errorf("expected only the whale, got %v", got)
	}
}

func TestCandidates_LimitAndViewCounters(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "me")
	seedProfile(t, st, "a", func(p *model.Profile) { p.CreatedAt = testNow.Add(-3 * time.Hour) })
	seedProfile(t, st, "b", func(p *model.Profile) { p.CreatedAt = testNow.Add(-2 * time.Hour) })
	seedProfile(t, st, "c", func(p *model.Profile) { p.CreatedAt = testNow.Add(-time.Hour) })

	cands, _, err := f.Candidates(context.Background(), "me", 2, nil, false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(cands); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected first two oldest accounts, got %v", got)
	}

	// Only surfaced candidates get a view tick.
	for user, want := range map[string]int64{"a": 1, "b": 1, "c": 0} {
		stats, err := st.GetStats(context.Background(), user)
		if err != nil {
			t.Fatal(err)
		}
		if stats.ProfileViews != want {
			t.Errorf("%s: expected %d profile views, got %d", user, want, stats.ProfileViews)
		}
	}
}

func TestCandidates_StaleProfilesReadOffline(t *testing.T) {
	st := store.NewMemoryStore()
	f := newTestFeeder(st)
	seedProfile(t, st, "me")
	seedProfile(t, st, "stale", func(p *model.Profile) { p.LastActivityAt = testNow.Add(-time.Hour) })

	cands, _, err := f.Candidates(context.Background(), "me", 0, nil, false, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].UserStatus != model.StatusOffline {
		t.Fatalf("idle candidate should read offline, got %+v", cands)
	}

	// The downgrade is persisted, not just decorated.
	p, err := st.GetProfile(context.Background(), "stale")
	if err != nil {
		t.Fatal(err)
	}
	if p.UserStatus != model.StatusOffline {
		t.Errorf("offline downgrade should persist, got %q", p.UserStatus)
	}
}

func TestMatchesFilters(t *testing.T) {
	p := &model.Profile{
		PortfolioSize:     "$10K-$100K",
		TradingExperience: model.ExperienceAdvanced,
		PreferredTokens:   []string{"DeFi", "NFTs"},
		YearsTrading:      4,
		Location:          "Lisbon, Portugal",
	}

	cases := []struct {
		name string
		f    Filters
		want bool
	}{
		{"all match", Filters{PortfolioSize: "$10K-$100K", YearsMin: 3}, true},
		{"portfolio mismatch", Filters{PortfolioSize: "$1M+"}, false},
		{"token intersect", Filters{PreferredTokens: []string{"NFTs", "Memecoins"}}, true},
		{"token disjoint", Filters{PreferredTokens: []string{"Memecoins"}}, false},
		{"years under min", Filters{YearsMin: 5}, false},
		{"location substring case-insensitive", Filters{Location: "lisbon"}, true},
		{"location mismatch", Filters{Location: "Berlin"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchesFilters(p, &tc.f); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// Package model defines the core domain types shared across the match engine.
package model

import "time"

// Trading experience levels in ascending order.
const (
	ExperienceBeginner     = "Beginner"
	ExperienceIntermediate = "Intermediate"
	ExperienceAdvanced     = "Advanced"
	ExperienceExpert       = "Expert"
)

// Risk tolerance levels in ascending order.
const (
	RiskConservative = "Conservative"
	RiskModerate     = "Moderate"
	RiskAggressive   = "Aggressive"
	RiskYOLO         = "YOLO"
)

// Decision verdicts.
const (
	VerdictLike = "like"
	VerdictPass = "pass"
)

// User activity statuses.
const (
	StatusActive  = "active"
	StatusOffline = "offline"
)

// OfflineAfter is the inactivity window after which a profile reads as offline.
const OfflineAfter = 30 * time.Minute

// Profile is a trader's matchable profile. Display fields beyond what
// matching reads live with the profile-service collaborator, not here.
type Profile struct {
	UserID            string    `json:"user_id" db:"user_id"`
	DisplayName       string    `json:"display_name" db:"display_name"`
	Bio               string    `json:"bio,omitempty" db:"bio"`
	Location          string    `json:"location,omitempty" db:"location"`
	TradingExperience string    `json:"trading_experience" db:"trading_experience"`
	YearsTrading      int       `json:"years_trading" db:"years_trading"`
	PreferredTokens   []string  `json:"preferred_tokens" db:"preferred_tokens"`
	TradingStyle      string    `json:"trading_style" db:"trading_style"`
	PortfolioSize     string    `json:"portfolio_size" db:"portfolio_size"`
	RiskTolerance     string    `json:"risk_tolerance" db:"risk_tolerance"`
	TradingHours      string    `json:"trading_hours" db:"trading_hours"`
	CommStyle         string    `json:"communication_style" db:"communication_style"`
	TradingPlatform   string    `json:"preferred_trading_platform" db:"preferred_trading_platform"`
	CommPlatform      string    `json:"preferred_communication_platform" db:"preferred_communication_platform"`
	LookingFor        []string  `json:"looking_for" db:"looking_for"`
	ProfileComplete   bool      `json:"profile_complete" db:"profile_complete"`
	UserStatus        string    `json:"user_status" db:"user_status"`
	LastActivityAt    time.Time `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// RecomputeComplete derives the completion flag from the record. Must be
// called on every mutation; the flag is never set directly.
func (p *Profile) RecomputeComplete() {
	p.ProfileComplete = p.TradingExperience != "" &&
		len(p.PreferredTokens) >= 1 &&
		p.TradingStyle != "" &&
		p.PortfolioSize != ""
}

// Decision is an immutable verdict by one user on another's profile.
// At most one exists per (actor, subject); actor never equals subject.
type Decision struct {
	ID      string    `json:"decision_id" db:"id"`
	Actor   string    `json:"actor" db:"actor"`
	Subject string    `json:"subject" db:"subject"`
	Verdict string    `json:"verdict" db:"verdict"`
	At      time.Time `json:"at" db:"at"`
}

// Match is an unordered pair of mutually-liked users. The pair key is the
// two user ids sorted and joined; it carries the uniqueness constraint.
type Match struct {
	ID             string    `json:"match_id" db:"id"`
	UserA          string    `json:"user_a" db:"user_a"`
	UserB          string    `json:"user_b" db:"user_b"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at" db:"last_activity_at"`
}

// PairKey returns the canonical key for an unordered user pair.
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// Other returns the member of the match that is not u.
func (m *Match) Other(u string) string {
	if m.UserA == u {
		return m.UserB
	}
	return m.UserA
}

// Member reports whether u belongs to the match.
func (m *Match) Member(u string) bool {
	return m.UserA == u || m.UserB == u
}

// Message is one chat message inside a match.
type Message struct {
	ID      string    `json:"message_id" db:"id"`
	MatchID string    `json:"match_id" db:"match_id"`
	Sender  string    `json:"sender_id" db:"sender"`
	Body    string    `json:"content" db:"body"`
	At      time.Time `json:"at" db:"at"`
}

// ReadCursor separates read from unread messages for one user in one match.
// Absence means everything from the other party is unread.
type ReadCursor struct {
	UserID     string    `json:"user_id" db:"user_id"`
	MatchID    string    `json:"match_id" db:"match_id"`
	LastReadAt time.Time `json:"last_read_at" db:"last_read_at"`
}

// InboundLike is the secondary-index row: actor liked subject at a time.
// Derived from like Decisions; kept consistent with the decision log.
type InboundLike struct {
	Subject string    `json:"subject" db:"subject"`
	Actor   string    `json:"actor" db:"actor"`
	At      time.Time `json:"at" db:"at"`
}

// Subscription tiers.
const (
	TierFree         = "free"
	TierBasicPremium = "basic_premium"
	TierProTrader    = "pro_trader"
)

// Subscription statuses.
const (
	SubActive    = "active"
	SubCancelled = "cancelled"
	SubExpired   = "expired"
)

// Subscription is the billing read-side record. A zero ExpiresAt means the
// subscription never expires.
type Subscription struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Tier      string    `json:"tier" db:"tier"`
	Status    string    `json:"status" db:"status"`
	ExpiresAt time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// TradingSignal is a pro-tier broadcast to a user's matches.
type TradingSignal struct {
	ID         string    `json:"signal_id" db:"id"`
	Sender     string    `json:"sender_id" db:"sender"`
	Token      string    `json:"token" db:"token"`
	SignalType string    `json:"signal_type" db:"signal_type"` // "buy", "sell", "watch"
	Note       string    `json:"note,omitempty" db:"note"`
	At         time.Time `json:"at" db:"at"`
}

// Group is a pro-tier trading group chat.
type Group struct {
	ID         string    `json:"group_id" db:"id"`
	Creator    string    `json:"creator_id" db:"creator"`
	Name       string    `json:"name" db:"name"`
	TokenFocus string    `json:"token_focus,omitempty" db:"token_focus"`
	Members    []string  `json:"members" db:"members"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Event is a pro-tier scheduled trading event.
type Event struct {
	ID          string    `json:"event_id" db:"id"`
	Host        string    `json:"host_id" db:"host"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	StartsAt    time.Time `json:"starts_at" db:"starts_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// UserStats are the per-user analytics counters.
type UserStats struct {
	UserID        string `json:"user_id" db:"user_id"`
	ProfileViews  int64  `json:"profile_views" db:"profile_views"`
	LikesReceived int64  `json:"likes_received" db:"likes_received"`
	Matches       int64  `json:"matches" db:"matches"`
	Decisions     int64  `json:"decisions" db:"decisions"`
}

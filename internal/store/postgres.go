package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptomatch/match-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Uniqueness constraints on decisions (actor, subject) and matches
// (pair_key) back the idempotence and single-match invariants.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// schema is applied idempotently on startup.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id                          TEXT PRIMARY KEY,
	display_name                     TEXT NOT NULL DEFAULT '',
	bio                              TEXT NOT NULL DEFAULT '',
	location                         TEXT NOT NULL DEFAULT '',
	trading_experience               TEXT NOT NULL DEFAULT '',
	years_trading                    INT  NOT NULL DEFAULT 0,
	preferred_tokens                 TEXT[] NOT NULL DEFAULT '{}',
	trading_style                    TEXT NOT NULL DEFAULT '',
	portfolio_size                   TEXT NOT NULL DEFAULT '',
	risk_tolerance                   TEXT NOT NULL DEFAULT '',
	trading_hours                    TEXT NOT NULL DEFAULT '',
	communication_style              TEXT NOT NULL DEFAULT '',
	preferred_trading_platform       TEXT NOT NULL DEFAULT '',
	preferred_communication_platform TEXT NOT NULL DEFAULT '',
	looking_for                      TEXT[] NOT NULL DEFAULT '{}',
	profile_complete                 BOOLEAN NOT NULL DEFAULT FALSE,
	user_status                      TEXT NOT NULL DEFAULT 'active',
	last_activity_at                 TIMESTAMPTZ NOT NULL,
	created_at                       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS decisions (
	id      TEXT PRIMARY KEY,
	actor   TEXT NOT NULL,
	subject TEXT NOT NULL,
	verdict TEXT NOT NULL,
	at      TIMESTAMPTZ NOT NULL,
	UNIQUE (actor, subject)
);
CREATE INDEX IF NOT EXISTS decisions_actor_at ON decisions (actor, at);
CREATE TABLE IF NOT EXISTS matches (
	id               TEXT PRIMARY KEY,
	pair_key         TEXT NOT NULL UNIQUE,
	user_a           TEXT NOT NULL,
	user_b           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	last_activity_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id       TEXT PRIMARY KEY,
	match_id TEXT NOT NULL,
	sender   TEXT NOT NULL,
	body     TEXT NOT NULL,
	at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_match_at ON messages (match_id, at);
CREATE TABLE IF NOT EXISTS read_cursors (
	user_id      TEXT NOT NULL,
	match_id     TEXT NOT NULL,
	last_read_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, match_id)
);
CREATE TABLE IF NOT EXISTS inbound_likes (
	subject TEXT NOT NULL,
	actor   TEXT NOT NULL,
	at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (subject, actor)
);
CREATE TABLE IF NOT EXISTS subscriptions (
	user_id    TEXT PRIMARY KEY,
	tier       TEXT NOT NULL,
	status     TEXT NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS reversal_frames (
	user_id          TEXT PRIMARY KEY,
	decision_id      TEXT NOT NULL,
	actor            TEXT NOT NULL,
	subject          TEXT NOT NULL,
	verdict          TEXT NOT NULL,
	decided_at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS groups (
	id          TEXT PRIMARY KEY,
	creator     TEXT NOT NULL,
	name        TEXT NOT NULL,
	token_focus TEXT NOT NULL DEFAULT '',
	members     TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	host        TEXT NOT NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	starts_at   TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS user_stats (
	user_id        TEXT PRIMARY KEY,
	profile_views  BIGINT NOT NULL DEFAULT 0,
	likes_received BIGINT NOT NULL DEFAULT 0,
	matches        BIGINT NOT NULL DEFAULT 0,
	decisions      BIGINT NOT NULL DEFAULT 0
);
`

// EnsureSchema applies the schema. Safe to call on every startup. The
// statements run one at a time; the extended protocol rejects batches.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a 23505 unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const profileColumns = `user_id, display_name, bio, location, trading_experience,
	years_trading, preferred_tokens, trading_style, portfolio_size,
	risk_tolerance, trading_hours, communication_style,
	preferred_trading_platform, preferred_communication_platform,
	looking_for, profile_complete, user_status, last_activity_at, created_at`

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.UserID, &p.DisplayName, &p.Bio, &p.Location,
		&p.TradingExperience, &p.YearsTrading, &p.PreferredTokens,
		&p.TradingStyle, &p.PortfolioSize, &p.RiskTolerance, &p.TradingHours,
		&p.CommStyle, &p.TradingPlatform, &p.CommPlatform, &p.LookingFor,
		&p.ProfileComplete, &p.UserStatus, &p.LastActivityAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// --- Profiles ---

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	p.RecomputeComplete()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		 ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			location = EXCLUDED.location,
			trading_experience = EXCLUDED.trading_experience,
			years_trading = EXCLUDED.years_trading,
			preferred_tokens = EXCLUDED.preferred_tokens,
			trading_style = EXCLUDED.trading_style,
			portfolio_size = EXCLUDED.portfolio_size,
			risk_tolerance = EXCLUDED.risk_tolerance,
			trading_hours = EXCLUDED.trading_hours,
			communication_style = EXCLUDED.communication_style,
			preferred_trading_platform = EXCLUDED.preferred_trading_platform,
			preferred_communication_platform = EXCLUDED.preferred_communication_platform,
			looking_for = EXCLUDED.looking_for,
			profile_complete = EXCLUDED.profile_complete,
			user_status = EXCLUDED.user_status,
			last_activity_at = EXCLUDED.last_activity_at`,
		p.UserID, p.DisplayName, p.Bio, p.Location, p.TradingExperience,
		p.YearsTrading, p.PreferredTokens, p.TradingStyle, p.PortfolioSize,
		p.RiskTolerance, p.TradingHours, p.CommStyle, p.TradingPlatform,
		p.CommPlatform, p.LookingFor, p.ProfileComplete, p.UserStatus,
		p.LastActivityAt, p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return p, nil
}

func (s *PostgresStore) ListCompleteProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE profile_complete ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetUserStatus(ctx context.Context, userID, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET user_status = $2 WHERE user_id = $1`, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchProfile(ctx context.Context, userID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET last_activity_at = $2, user_status = 'active' WHERE user_id = $1`,
		userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Decision log ---

func (s *PostgresStore) InsertDecision(ctx context.Context, d *model.Decision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions (id, actor, subject, verdict, at) VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.Actor, d.Subject, d.Verdict, d.At)
	if isUniqueViolation(err) {
		return ErrDuplicateDecision
	}
	return err
}

func (s *PostgresStore) GetDecision(ctx context.Context, actor, subject string) (*model.Decision, error) {
	var d model.Decision
	err := s.pool.QueryRow(ctx,
		`SELECT id, actor, subject, verdict, at FROM decisions WHERE actor = $1 AND subject = $2`,
		actor, subject).
		Scan(&d.ID, &d.Actor, &d.Subject, &d.Verdict, &d.At)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) DeleteDecision(ctx context.Context, actor, subject string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM decisions WHERE actor = $1 AND subject = $2`, actor, subject)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DecidedSubjects(ctx context.Context, actor string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject FROM decisions WHERE actor = $1`, actor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, err
		}
		out[subject] = true
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountDecisionsInWindow(ctx context.Context, actor string, from, to time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM decisions WHERE actor = $1 AND at >= $2 AND at < $3`,
		actor, from, to).Scan(&n)
	return n, err
}

// --- Match registry ---

func (s *PostgresStore) CreateMatch(ctx context.Context, m *model.Match) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO matches (id, pair_key, user_a, user_b, created_at, last_activity_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, model.PairKey(m.UserA, m.UserB), m.UserA, m.UserB, m.CreatedAt, m.LastActivityAt)
	if isUniqueViolation(err) {
		return ErrDuplicateMatch
	}
	return err
}

func (s *PostgresStore) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	return s.matchQuery(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetMatchByPair(ctx context.Context, a, b string) (*model.Match, error) {
	return s.matchQuery(ctx, `pair_key = $1`, model.PairKey(a, b))
}

func (s *PostgresStore) matchQuery(ctx context.Context, where string, arg any) (*model.Match, error) {
	var m model.Match
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_a, user_b, created_at, last_activity_at FROM matches WHERE `+where, arg).
		Scan(&m.ID, &m.UserA, &m.UserB, &m.CreatedAt, &m.LastActivityAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, userID string) ([]model.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_a, user_b, created_at, last_activity_at
		 FROM matches WHERE user_a = $1 OR user_b = $1
		 ORDER BY last_activity_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		if err := rows.Scan(&m.ID, &m.UserA, &m.UserB, &m.CreatedAt, &m.LastActivityAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TouchMatch(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE matches SET last_activity_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMatch removes the match and its conversation atomically.
func (s *PostgresStore) DeleteMatch(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE match_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM read_cursors WHERE match_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Conversations ---

func (s *PostgresStore) InsertMessage(ctx context.Context, m *model.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, match_id, sender, body, at) VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.MatchID, m.Sender, m.Body, m.At)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, matchID string, limit int) ([]model.Message, error) {
	q := `SELECT id, match_id, sender, body, at FROM messages WHERE match_id = $1 ORDER BY at, id`
	args := []any{matchID}
	if limit > 0 {
		// Last limit rows, returned oldest first.
		q = `SELECT id, match_id, sender, body, at FROM (
			SELECT id, match_id, sender, body, at FROM messages
			WHERE match_id = $1 ORDER BY at DESC, id DESC LIMIT $2
		) recent ORDER BY at, id`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.MatchID, &m.Sender, &m.Body, &m.At); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LatestMessage(ctx context.Context, matchID string) (*model.Message, error) {
	var m model.Message
	err := s.pool.QueryRow(ctx,
		`SELECT id, match_id, sender, body, at FROM messages
		 WHERE match_id = $1 ORDER BY at DESC, id DESC LIMIT 1`, matchID).
		Scan(&m.ID, &m.MatchID, &m.Sender, &m.Body, &m.At)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) CountUnread(ctx context.Context, matchID, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages m
		 WHERE m.match_id = $1 AND m.sender <> $2
		   AND m.at > COALESCE(
			(SELECT last_read_at FROM read_cursors WHERE user_id = $2 AND match_id = $1),
			'epoch'::TIMESTAMPTZ)`,
		matchID, userID).Scan(&n)
	return n, err
}

func (s *PostgresStore) UpsertReadCursor(ctx context.Context, userID, matchID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO read_cursors (user_id, match_id, last_read_at) VALUES ($1,$2,$3)
		 ON CONFLICT (user_id, match_id)
		 DO UPDATE SET last_read_at = GREATEST(read_cursors.last_read_at, EXCLUDED.last_read_at)`,
		userID, matchID, at)
	return err
}

// --- Inbound-like index ---

func (s *PostgresStore) UpsertInboundLike(ctx context.Context, like *model.InboundLike) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO inbound_likes (subject, actor, at) VALUES ($1,$2,$3)
		 ON CONFLICT (subject, actor) DO UPDATE SET at = EXCLUDED.at`,
		like.Subject, like.Actor, like.At)
	return err
}

func (s *PostgresStore) DeleteInboundLike(ctx context.Context, subject, actor string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM inbound_likes WHERE subject = $1 AND actor = $2`, subject, actor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListInboundLikes(ctx context.Context, subject string) ([]model.InboundLike, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject, actor, at FROM inbound_likes
		 WHERE subject = $1 ORDER BY at DESC, actor`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InboundLike
	for rows.Next() {
		var like model.InboundLike
		if err := rows.Scan(&like.Subject, &like.Actor, &like.At); err != nil {
			return nil, err
		}
		out = append(out, like)
	}
	return out, rows.Err()
}

// --- Subscriptions ---

func (s *PostgresStore) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	var sub model.Subscription
	var expires *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, tier, status, expires_at FROM subscriptions WHERE user_id = $1`, userID).
		Scan(&sub.UserID, &sub.Tier, &sub.Status, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if expires != nil {
		sub.ExpiresAt = *expires
	}
	return &sub, nil
}

func (s *PostgresStore) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	var expires *time.Time
	if !sub.ExpiresAt.IsZero() {
		expires = &sub.ExpiresAt
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (user_id, tier, status, expires_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier, status = EXCLUDED.status, expires_at = EXCLUDED.expires_at`,
		sub.UserID, sub.Tier, sub.Status, expires)
	return err
}

// --- Reversal frames ---

func (s *PostgresStore) SetReversalFrame(ctx context.Context, userID string, d *model.Decision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reversal_frames (user_id, decision_id, actor, subject, verdict, decided_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (user_id) DO UPDATE SET
			decision_id = EXCLUDED.decision_id, actor = EXCLUDED.actor,
			subject = EXCLUDED.subject, verdict = EXCLUDED.verdict,
			decided_at = EXCLUDED.decided_at`,
		userID, d.ID, d.Actor, d.Subject, d.Verdict, d.At)
	return err
}

func (s *PostgresStore) PopReversalFrame(ctx context.Context, userID string) (*model.Decision, error) {
	var d model.Decision
	err := s.pool.QueryRow(ctx,
		`DELETE FROM reversal_frames WHERE user_id = $1
		 RETURNING decision_id, actor, subject, verdict, decided_at`, userID).
		Scan(&d.ID, &d.Actor, &d.Subject, &d.Verdict, &d.At)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// --- Groups and events ---

func (s *PostgresStore) CreateGroup(ctx context.Context, g *model.Group) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO groups (id, creator, name, token_focus, members, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		g.ID, g.Creator, g.Name, g.TokenFocus, g.Members, g.CreatedAt)
	return err
}

func (s *PostgresStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	var g model.Group
	err := s.pool.QueryRow(ctx,
		`SELECT id, creator, name, token_focus, members, created_at FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Creator, &g.Name, &g.TokenFocus, &g.Members, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *PostgresStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE groups SET members = array_append(members, $2)
		 WHERE id = $1 AND NOT ($2 = ANY (members))`, groupID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the group does not exist or the user is already a member.
		if _, err := s.GetGroup(ctx, groupID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) ListGroupsForUser(ctx context.Context, userID string) ([]model.Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, creator, name, token_focus, members, created_at
		 FROM groups WHERE $1 = ANY (members) ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Creator, &g.Name, &g.TokenFocus, &g.Members, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, host, title, description, starts_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.Host, e.Title, e.Description, e.StartsAt, e.CreatedAt)
	return err
}

func (s *PostgresStore) ListUpcomingEvents(ctx context.Context, now time.Time) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, host, title, description, starts_at, created_at
		 FROM events WHERE starts_at >= $1 ORDER BY starts_at, id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Host, &e.Title, &e.Description, &e.StartsAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Analytics counters ---

// statColumns guards IncrementStat against arbitrary column names.
var statColumns = map[string]bool{
	"profile_views":  true,
	"likes_received": true,
	"matches":        true,
	"decisions":      true,
}

func (s *PostgresStore) IncrementStat(ctx context.Context, userID, field string, delta int64) error {
	if !statColumns[field] {
		return fmt.Errorf("unknown stat field %q", field)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_stats (user_id, `+field+`) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET `+field+` = user_stats.`+field+` + $2`,
		userID, delta)
	return err
}

func (s *PostgresStore) GetStats(ctx context.Context, userID string) (*model.UserStats, error) {
	var st model.UserStats
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, profile_views, likes_received, matches, decisions
		 FROM user_stats WHERE user_id = $1`, userID).
		Scan(&st.UserID, &st.ProfileViews, &st.LikesReceived, &st.Matches, &st.Decisions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.UserStats{UserID: userID}, nil
		}
		return nil, err
	}
	return &st, nil
}

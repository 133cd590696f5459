package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"riftwalker/internal/progress"
)

// ErrNotFound is returned when no record exists for the requested key.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS progress (
	player_id        TEXT NOT NULL,
	theme_id         TEXT NOT NULL,
	level            INTEGER NOT NULL DEFAULT 1,
	current_xp       INTEGER NOT NULL DEFAULT 0,
	integrity_bonus  INTEGER NOT NULL DEFAULT 0,
	willpower_bonus  INTEGER NOT NULL DEFAULT 0,
	aptitude_bonus   INTEGER NOT NULL DEFAULT 0,
	resilience_bonus INTEGER NOT NULL DEFAULT 0,
	traits           TEXT NOT NULL DEFAULT '[]',
	boon_pending     INTEGER NOT NULL DEFAULT 0,
	updated_at       INTEGER NOT NULL,
	PRIMARY KEY (player_id, theme_id)
);
CREATE TABLE IF NOT EXISTS saves (
	save_id    TEXT NOT NULL,
	player_id  TEXT NOT NULL,
	theme_id   TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (player_id, theme_id)
);
CREATE TABLE IF NOT EXISTS shards (
	player_id   TEXT NOT NULL,
	theme_id    TEXT NOT NULL,
	shard_id    TEXT NOT NULL,
	title       TEXT NOT NULL,
	body        TEXT NOT NULL,
	unlocked_at INTEGER NOT NULL,
	PRIMARY KEY (player_id, theme_id, shard_id)
);
`

// Store provides SQLite-backed persistence.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at the given path. ":memory:" opens an
// ephemeral in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		clean := filepath.Clean(path)
		if dir := filepath.Dir(clean); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		dsn = clean + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nowMillis() int64 {
	return time.Now().UTC().UnixMilli()
}

// FetchProgress returns the leveling record for a (player, theme) pair, or
// ErrNotFound for a brand new character.
func (s *Store) FetchProgress(ctx context.Context, playerID, themeID string) (*progress.UserThemeProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT level, current_xp, integrity_bonus, willpower_bonus,
		       aptitude_bonus, resilience_bonus, traits, boon_pending
		FROM progress WHERE player_id = ? AND theme_id = ?`, playerID, themeID)
	return scanProgress(row)
}

func scanProgress(row *sql.Row) (*progress.UserThemeProgress, error) {
	var p progress.UserThemeProgress
	var traits string
	var pending int
	err := row.Scan(&p.Level, &p.CurrentXP, &p.IntegrityBonus, &p.WillpowerBonus,
		&p.AptitudeBonus, &p.ResilienceBonus, &traits, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan progress: %w", err)
	}
	if err := json.Unmarshal([]byte(traits), &p.AcquiredTraits); err != nil {
		return nil, fmt.Errorf("unmarshal traits: %w", err)
	}
	p.BoonPending = pending != 0
	return &p, nil
}

// SaveProgress upserts the leveling record.
func (s *Store) SaveProgress(ctx context.Context, playerID, themeID string, p *progress.UserThemeProgress) error {
	traits, err := json.Marshal(nonNilStrings(p.AcquiredTraits))
	if err != nil {
		return fmt.Errorf("marshal traits: %w", err)
	}
	pending := 0
	if p.BoonPending {
		pending = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress (player_id, theme_id, level, current_xp, integrity_bonus,
			willpower_bonus, aptitude_bonus, resilience_bonus, traits, boon_pending, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, theme_id) DO UPDATE SET
			level = excluded.level,
			current_xp = excluded.current_xp,
			integrity_bonus = excluded.integrity_bonus,
			willpower_bonus = excluded.willpower_bonus,
			aptitude_bonus = excluded.aptitude_bonus,
			resilience_bonus = excluded.resilience_bonus,
			traits = excluded.traits,
			boon_pending = excluded.boon_pending,
			updated_at = excluded.updated_at`,
		playerID, themeID, p.Level, p.CurrentXP, p.IntegrityBonus,
		p.WillpowerBonus, p.AptitudeBonus, p.ResilienceBonus, string(traits), pending, nowMillis())
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// ApplyBoon applies a level-up choice transactionally: the level increments,
// the payload effect lands, the pending flag clears, and the authoritative
// record is returned. An invalid payload leaves the record untouched.
func (s *Store) ApplyBoon(ctx context.Context, playerID, themeID string, payload BoonPayload) (*progress.UserThemeProgress, error) {
	current, err := s.FetchProgress(ctx, playerID, themeID)
	if err != nil {
		return nil, fmt.Errorf("fetch progress for boon: %w", err)
	}

	next := *current
	next.AcquiredTraits = append([]string{}, current.AcquiredTraits...)
	switch payload.Kind {
	case BoonMaxAttributeIncrease:
		switch payload.Field {
		case "integrity":
			next.IntegrityBonus += payload.Value
		case "willpower":
			next.WillpowerBonus += payload.Value
		default:
			return nil, fmt.Errorf("boon %s: unknown field %q", payload.Kind, payload.Field)
		}
	case BoonAttributeEnhancement:
		switch payload.Field {
		case "aptitude":
			next.AptitudeBonus += payload.Value
		case "resilience":
			next.ResilienceBonus += payload.Value
		default:
			return nil, fmt.Errorf("boon %s: unknown field %q", payload.Kind, payload.Field)
		}
	case BoonNewTrait:
		if payload.TraitKey == "" {
			return nil, fmt.Errorf("boon %s: missing trait key", payload.Kind)
		}
		next.AcquiredTraits = append(next.AcquiredTraits, payload.TraitKey)
	default:
		return nil, fmt.Errorf("unknown boon kind %q", payload.Kind)
	}
	next.Level++
	next.BoonPending = false

	if err := s.SaveProgress(ctx, playerID, themeID, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// SaveGameState upserts the full session snapshot for a (player, theme) pair.
// A fresh save id is assigned when none is set.
func (s *Store) SaveGameState(ctx context.Context, state SaveState) error {
	if state.PlayerID == "" || state.ThemeID == "" {
		return fmt.Errorf("save state requires player and theme ids")
	}
	if state.SaveID == "" {
		state.SaveID = uuid.NewString()
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal save state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saves (save_id, player_id, theme_id, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (player_id, theme_id) DO UPDATE SET
			save_id = excluded.save_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		state.SaveID, state.PlayerID, state.ThemeID, string(payload), nowMillis())
	if err != nil {
		return fmt.Errorf("save game state: %w", err)
	}
	return nil
}

// LoadGameState returns the persisted snapshot, or ErrNotFound.
func (s *Store) LoadGameState(ctx context.Context, playerID, themeID string) (*SaveState, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM saves WHERE player_id = ? AND theme_id = ?`,
		playerID, themeID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game state: %w", err)
	}
	var state SaveState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("unmarshal save state: %w", err)
	}
	return &state, nil
}

// ListSaves returns the theme ids that have a saved session for the player.
func (s *Store) ListSaves(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT theme_id FROM saves WHERE player_id = ? ORDER BY updated_at DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()
	var themes []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan save row: %w", err)
		}
		themes = append(themes, id)
	}
	return themes, rows.Err()
}

// UnlockShard records a lore fragment for the player. Re-unlocking an
// existing shard is a no-op.
func (s *Store) UnlockShard(ctx context.Context, playerID, themeID string, shard Shard) error {
	if shard.ID == "" {
		return fmt.Errorf("shard id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shards (player_id, theme_id, shard_id, title, body, unlocked_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (player_id, theme_id, shard_id) DO NOTHING`,
		playerID, themeID, shard.ID, shard.Title, shard.Body, nowMillis())
	if err != nil {
		return fmt.Errorf("unlock shard: %w", err)
	}
	return nil
}

// ActiveShards returns every shard the player has unlocked for the theme, in
// unlock order.
func (s *Store) ActiveShards(ctx context.Context, playerID, themeID string) ([]Shard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT shard_id, title, body FROM shards
		WHERE player_id = ? AND theme_id = ? ORDER BY unlocked_at`, playerID, themeID)
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	defer rows.Close()
	var shards []Shard
	for rows.Next() {
		var sh Shard
		if err := rows.Scan(&sh.ID, &sh.Title, &sh.Body); err != nil {
			return nil, fmt.Errorf("scan shard row: %w", err)
		}
		shards = append(shards, sh)
	}
	return shards, rows.Err()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

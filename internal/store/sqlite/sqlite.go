package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pocketgarden/pocketgarden-server/internal/store"
)

// schema is applied idempotently on startup. Schema migration tooling is out
// of scope; the external tooling owns anything beyond CREATE IF NOT EXISTS.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL UNIQUE COLLATE NOCASE,
	is_admin   BOOLEAN NOT NULL DEFAULT 0,
	is_online  BOOLEAN NOT NULL DEFAULT 0,
	last_seen  DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS bans (
	user_id    INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mutes (
	user_id     INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	muted_until DATETIME,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS filter_words (
	word TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS friends (
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	friend_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, friend_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	receiver_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
	body        TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS gardens (
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	slot       INTEGER NOT NULL,
	blob       BLOB NOT NULL,
	checksum   BLOB NOT NULL,
	raw_size   INTEGER NOT NULL,
	is_public  BOOLEAN NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, slot)
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternative schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts a user row.
func (s *SQLiteStore) CreateUser(ctx context.Context, username string, isAdmin bool) (*store.User, error) {
	query := `
		INSERT INTO users (username, is_admin)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, isAdmin)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, is_admin, is_online, last_seen, created_at
		FROM users
		WHERE id = ?
	`
	user, err := s.scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username. The username column uses
// NOCASE collation, so the lookup is case-insensitive. Returns (nil, nil)
// when no user matches.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, is_admin, is_online, last_seen, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	var lastSeen sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.IsAdmin,
		&user.IsOnline,
		&lastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if lastSeen.Valid {
		user.LastSeen = lastSeen.Time
	}
	return &user, nil
}

// SetOnline updates the durable online flag and last-seen timestamp.
func (s *SQLiteStore) SetOnline(ctx context.Context, userID int64, online bool) error {
	query := `
		UPDATE users
		SET is_online = ?, last_seen = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, online, userID)
	if err != nil {
		return fmt.Errorf("update online flag: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// IsAdmin reports whether the user has the admin flag.
func (s *SQLiteStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	query := `SELECT is_admin FROM users WHERE id = ?`
	var isAdmin bool
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("user not found: %w", err)
		}
		return false, fmt.Errorf("query admin flag: %w", err)
	}
	return isAdmin, nil
}

// ==== ModerationStore implementation ====

// GetBanStatus returns the ban record for a user, or (nil, nil).
func (s *SQLiteStore) GetBanStatus(ctx context.Context, userID int64) (*store.Ban, error) {
	query := `SELECT user_id, reason, created_at FROM bans WHERE user_id = ?`
	var ban store.Ban
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&ban.UserID, &ban.Reason, &ban.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query ban: %w", err)
	}
	return &ban, nil
}

// SetBan inserts or replaces the ban record for a user.
func (s *SQLiteStore) SetBan(ctx context.Context, userID int64, reason string) error {
	query := `
		INSERT OR REPLACE INTO bans (user_id, reason)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, reason); err != nil {
		return fmt.Errorf("insert ban: %w", err)
	}
	return nil
}

// ClearBan removes any ban record for a user.
func (s *SQLiteStore) ClearBan(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bans WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return nil
}

// GetMuteStatus returns the mute record for a user, or (nil, nil).
func (s *SQLiteStore) GetMuteStatus(ctx context.Context, userID int64) (*store.Mute, error) {
	query := `SELECT user_id, muted_until, reason, created_at FROM mutes WHERE user_id = ?`
	var mute store.Mute
	var until sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&mute.UserID, &until, &mute.Reason, &mute.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query mute: %w", err)
	}
	if until.Valid {
		t := until.Time
		mute.MutedUntil = &t
	}
	return &mute, nil
}

// SetMute inserts or replaces the mute record for a user. Mutes replace
// rather than stack.
func (s *SQLiteStore) SetMute(ctx context.Context, userID int64, until *time.Time, reason string) error {
	query := `
		INSERT OR REPLACE INTO mutes (user_id, muted_until, reason)
		VALUES (?, ?, ?)
	`
	var untilArg interface{}
	if until != nil {
		untilArg = *until
	}
	if _, err := s.db.ExecContext(ctx, query, userID, untilArg, reason); err != nil {
		return fmt.Errorf("insert mute: %w", err)
	}
	return nil
}

// ClearMute removes any mute record for a user.
func (s *SQLiteStore) ClearMute(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mutes WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete mute: %w", err)
	}
	return nil
}

// ListFilterWords returns the filter-word set.
func (s *SQLiteStore) ListFilterWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM filter_words ORDER BY word`)
	if err != nil {
		return nil, fmt.Errorf("query filter words: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, fmt.Errorf("scan filter word: %w", err)
		}
		words = append(words, word)
	}
	return words, rows.Err()
}

// AddFilterWord inserts a filter word, stored lowercase.
func (s *SQLiteStore) AddFilterWord(ctx context.Context, word string) error {
	query := `INSERT OR IGNORE INTO filter_words (word) VALUES (?)`
	if _, err := s.db.ExecContext(ctx, query, strings.ToLower(word)); err != nil {
		return fmt.Errorf("insert filter word: %w", err)
	}
	return nil
}

// RemoveFilterWord deletes a filter word.
func (s *SQLiteStore) RemoveFilterWord(ctx context.Context, word string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM filter_words WHERE word = ?`, strings.ToLower(word)); err != nil {
		return fmt.Errorf("delete filter word: %w", err)
	}
	return nil
}

// ==== FriendStore implementation ====

// InsertEdge inserts or replaces the directed edge (userID -> friendID).
func (s *SQLiteStore) InsertEdge(ctx context.Context, userID, friendID int64, status store.FriendStatus) error {
	query := `
		INSERT INTO friends (user_id, friend_id, status)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, friend_id)
		DO UPDATE SET status = excluded.status, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, userID, friendID, string(status)); err != nil {
		return fmt.Errorf("insert friend edge: %w", err)
	}
	return nil
}

// UpdateEdgeStatus updates the status of the directed edge.
func (s *SQLiteStore) UpdateEdgeStatus(ctx context.Context, userID, friendID int64, status store.FriendStatus) error {
	query := `
		UPDATE friends
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND friend_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, string(status), userID, friendID)
	if err != nil {
		return fmt.Errorf("update friend edge: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("friend edge not found")
	}
	return nil
}

// GetEdge retrieves the directed edge (userID -> friendID), or (nil, nil).
func (s *SQLiteStore) GetEdge(ctx context.Context, userID, friendID int64) (*store.FriendEdge, error) {
	query := `
		SELECT user_id, friend_id, status, created_at, updated_at
		FROM friends
		WHERE user_id = ? AND friend_id = ?
	`
	return s.scanEdge(s.db.QueryRowContext(ctx, query, userID, friendID))
}

// GetEdgeBetween retrieves an edge between two users in either direction,
// or (nil, nil) when none exists.
func (s *SQLiteStore) GetEdgeBetween(ctx context.Context, a, b int64) (*store.FriendEdge, error) {
	query := `
		SELECT user_id, friend_id, status, created_at, updated_at
		FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
		LIMIT 1
	`
	return s.scanEdge(s.db.QueryRowContext(ctx, query, a, b, b, a))
}

func (s *SQLiteStore) scanEdge(row *sql.Row) (*store.FriendEdge, error) {
	var edge store.FriendEdge
	var status string
	err := row.Scan(&edge.UserID, &edge.FriendID, &status, &edge.CreatedAt, &edge.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query friend edge: %w", err)
	}
	edge.Status = store.FriendStatus(status)
	return &edge, nil
}

// DeleteEdgesBetween deletes edges in both directions.
func (s *SQLiteStore) DeleteEdgesBetween(ctx context.Context, a, b int64) (int64, error) {
	query := `
		DELETE FROM friends
		WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
	`
	result, err := s.db.ExecContext(ctx, query, a, b, b, a)
	if err != nil {
		return 0, fmt.Errorf("delete friend edges: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}

// ListAcceptedFriendIDs returns friend ids of accepted edges owned by userID.
func (s *SQLiteStore) ListAcceptedFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT friend_id
		FROM friends
		WHERE user_id = ? AND status = ?
		ORDER BY friend_id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, string(store.FriendStatusAccepted))
	if err != nil {
		return nil, fmt.Errorf("query accepted friends: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and assigns its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	var receiver interface{}
	if msg.ReceiverID != nil {
		receiver = *msg.ReceiverID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, receiver, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// GetMessage retrieves a message by ID, or (nil, nil).
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, body, created_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	var receiver sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(&msg.ID, &msg.SenderID, &receiver, &msg.Body, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	if receiver.Valid {
		r := receiver.Int64
		msg.ReceiverID = &r
	}
	return &msg, nil
}

// ==== GardenStore implementation ====

// UpsertGarden inserts or overwrites the (UserID, Slot) record.
func (s *SQLiteStore) UpsertGarden(ctx context.Context, g *store.Garden) error {
	query := `
		INSERT INTO gardens (user_id, slot, blob, checksum, raw_size, is_public, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, slot)
		DO UPDATE SET
			blob = excluded.blob,
			checksum = excluded.checksum,
			raw_size = excluded.raw_size,
			is_public = excluded.is_public,
			updated_at = excluded.updated_at
	`
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, query, g.UserID, g.Slot, g.Blob, g.Checksum, g.RawSize, g.IsPublic, g.UpdatedAt); err != nil {
		return fmt.Errorf("upsert garden: %w", err)
	}
	return nil
}

// GetGarden retrieves a garden record, or (nil, nil) when absent.
func (s *SQLiteStore) GetGarden(ctx context.Context, userID int64, slot int) (*store.Garden, error) {
	query := `
		SELECT user_id, slot, blob, checksum, raw_size, is_public, updated_at
		FROM gardens
		WHERE user_id = ? AND slot = ?
	`
	var g store.Garden
	err := s.db.QueryRowContext(ctx, query, userID, slot).Scan(
		&g.UserID,
		&g.Slot,
		&g.Blob,
		&g.Checksum,
		&g.RawSize,
		&g.IsPublic,
		&g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query garden: %w", err)
	}
	return &g, nil
}

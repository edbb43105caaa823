package store

import (
	"context"
	"time"
)

// User represents a user in the system. Accounts are created and credentialed
// by the external account service; this store holds the view the core needs.
type User struct {
	ID        int64
	Username  string
	IsAdmin   bool
	IsOnline  bool
	LastSeen  time.Time
	CreatedAt time.Time
}

// Ban blocks connection establishment entirely.
type Ban struct {
	UserID    int64
	Reason    string
	CreatedAt time.Time
}

// Mute blocks chat sends without blocking connection. A nil MutedUntil is a
// permanent mute. At most one record exists per user; setting a new one
// replaces the old.
type Mute struct {
	UserID     int64
	MutedUntil *time.Time
	Reason     string
	CreatedAt  time.Time
}

// ActiveAt reports whether the mute is in force at the given instant.
func (m *Mute) ActiveAt(now time.Time) bool {
	return m.MutedUntil == nil || m.MutedUntil.After(now)
}

// FriendStatus defines friend edge status.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
)

// FriendEdge is one directed edge of the friend graph, unique per ordered
// (UserID, FriendID) pair. An accepted friendship is two edges, one in each
// direction; a pending request is a single requester-to-target edge.
type FriendEdge struct {
	UserID    int64
	FriendID  int64
	Status    FriendStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message represents a persisted chat message. A nil ReceiverID means the
// message was a broadcast to everyone online at send time.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID *int64
	Body       string
	CreatedAt  time.Time
}

// Garden is one persisted world-state record, keyed by (UserID, Slot).
// Blob holds the lz4-compressed payload; Checksum is a blake3 hash of the
// uncompressed payload, verified on read.
type Garden struct {
	UserID    int64
	Slot      int
	Blob      []byte
	Checksum  []byte
	RawSize   int
	IsPublic  bool
	UpdatedAt time.Time
}

// UserStore handles user lookups and presence flags.
type UserStore interface {
	// CreateUser inserts a user row. Used by seeding and tests; account
	// creation itself belongs to the external account service.
	CreateUser(ctx context.Context, username string, isAdmin bool) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username, case-insensitively.
	// Returns (nil, nil) when no such user exists.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetOnline updates the durable online flag and last-seen timestamp.
	SetOnline(ctx context.Context, userID int64, online bool) error

	// IsAdmin reports whether the user has the admin flag.
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// ModerationStore exposes the ban/mute/filter records owned by the external
// moderation tooling. The core only reads them at gate time; the write
// methods exist for that tooling and for tests.
type ModerationStore interface {
	// GetBanStatus returns the ban record for a user, or (nil, nil) if the
	// user is not banned.
	GetBanStatus(ctx context.Context, userID int64) (*Ban, error)

	// SetBan inserts or replaces the ban record for a user.
	SetBan(ctx context.Context, userID int64, reason string) error

	// ClearBan removes any ban record for a user.
	ClearBan(ctx context.Context, userID int64) error

	// GetMuteStatus returns the mute record for a user, or (nil, nil) if
	// none exists. Expiry is not evaluated here; callers compare against
	// the clock.
	GetMuteStatus(ctx context.Context, userID int64) (*Mute, error)

	// SetMute inserts or replaces the mute record for a user. A nil until
	// is a permanent mute.
	SetMute(ctx context.Context, userID int64, until *time.Time, reason string) error

	// ClearMute removes any mute record for a user.
	ClearMute(ctx context.Context, userID int64) error

	// ListFilterWords returns the lowercase filter-word set.
	ListFilterWords(ctx context.Context) ([]string, error)

	// AddFilterWord inserts a filter word (stored lowercase).
	AddFilterWord(ctx context.Context, word string) error

	// RemoveFilterWord deletes a filter word.
	RemoveFilterWord(ctx context.Context, word string) error
}

// FriendStore handles friend edge persistence. Higher-level request/accept
// semantics live in the friends service; these are the edge primitives.
type FriendStore interface {
	// InsertEdge inserts or replaces the directed edge (userID -> friendID).
	InsertEdge(ctx context.Context, userID, friendID int64, status FriendStatus) error

	// UpdateEdgeStatus updates the status of the directed edge.
	UpdateEdgeStatus(ctx context.Context, userID, friendID int64, status FriendStatus) error

	// GetEdge retrieves the directed edge (userID -> friendID), or (nil, nil).
	GetEdge(ctx context.Context, userID, friendID int64) (*FriendEdge, error)

	// GetEdgeBetween retrieves an edge between two users in either
	// direction, or (nil, nil) when none exists.
	GetEdgeBetween(ctx context.Context, a, b int64) (*FriendEdge, error)

	// DeleteEdgesBetween deletes edges in both directions and returns how
	// many rows were removed.
	DeleteEdgesBetween(ctx context.Context, a, b int64) (int64, error)

	// ListAcceptedFriendIDs returns the friend ids of accepted edges whose
	// UserID side is the given user. Only that direction is trusted for
	// delivery decisions.
	ListAcceptedFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and assigns its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID, or (nil, nil).
	GetMessage(ctx context.Context, id int64) (*Message, error)
}

// GardenStore handles garden persistence.
type GardenStore interface {
	// UpsertGarden inserts or overwrites the (UserID, Slot) record.
	UpsertGarden(ctx context.Context, g *Garden) error

	// GetGarden retrieves a garden record, or (nil, nil) when absent.
	GetGarden(ctx context.Context, userID int64, slot int) (*Garden, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ModerationStore
	FriendStore
	MessageStore
	GardenStore

	// Close closes the underlying database connection.
	Close() error
}

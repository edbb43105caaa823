package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pocketgarden/pocketgarden-server/internal/store"
)

// BannedError terminates a connection attempt.
type BannedError struct {
	Reason string
}

func (e *BannedError) Error() string {
	if e.Reason == "" {
		return "account is banned"
	}
	return "account is banned: " + e.Reason
}

// MutedError rejects a single chat send; the connection stays open.
type MutedError struct {
	Permanent bool
	Reason    string
	Until     time.Time
}

func (e *MutedError) Error() string {
	if e.Permanent {
		return "account is permanently muted"
	}
	return fmt.Sprintf("account is muted until %s", e.Until.Format(time.RFC3339))
}

// FilteredContentError rejects a single chat send whose text matched the
// filter-word set.
type FilteredContentError struct {
	Matched []string
}

func (e *FilteredContentError) Error() string {
	return "message contains filtered content: " + strings.Join(e.Matched, ", ")
}

// Store is the read-only moderation view the gate needs.
type Store interface {
	GetBanStatus(ctx context.Context, userID int64) (*store.Ban, error)
	GetMuteStatus(ctx context.Context, userID int64) (*store.Mute, error)
	ListFilterWords(ctx context.Context) ([]string, error)
}

// Gate applies ban checks at connection time and mute/filter checks per
// message. It never owns moderation records; the store is authoritative.
type Gate struct {
	store Store
	now   func() time.Time
}

// NewGate builds a moderation gate over the given store.
func NewGate(st Store) *Gate {
	return &Gate{
		store: st,
		now:   time.Now,
	}
}

// CheckConnect gates a connection attempt. A ban rejects it; a mute does not
// (mutes restrict chat only).
func (g *Gate) CheckConnect(ctx context.Context, userID int64) error {
	ban, err := g.store.GetBanStatus(ctx, userID)
	if err != nil {
		return fmt.Errorf("query ban status: %w", err)
	}
	if ban != nil {
		return &BannedError{Reason: ban.Reason}
	}
	return nil
}

// CheckMessage gates a single chat send. Expired mutes pass. Admins bypass
// both the mute check and the filter-word scan.
func (g *Gate) CheckMessage(ctx context.Context, userID int64, isAdmin bool, text string) error {
	if isAdmin {
		return nil
	}

	mute, err := g.store.GetMuteStatus(ctx, userID)
	if err != nil {
		return fmt.Errorf("query mute status: %w", err)
	}
	if mute != nil && mute.ActiveAt(g.now()) {
		if mute.MutedUntil == nil {
			return &MutedError{Permanent: true, Reason: mute.Reason}
		}
		return &MutedError{Permanent: false, Reason: mute.Reason, Until: *mute.MutedUntil}
	}

	words, err := g.store.ListFilterWords(ctx)
	if err != nil {
		return fmt.Errorf("query filter words: %w", err)
	}
	lowered := strings.ToLower(text)
	var matched []string
	for _, word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(lowered, word) {
			matched = append(matched, word)
		}
	}
	if len(matched) > 0 {
		return &FilteredContentError{Matched: matched}
	}
	return nil
}

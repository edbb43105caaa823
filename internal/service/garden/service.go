package garden

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/pocketgarden/pocketgarden-server/internal/store"
	"lukechampine.com/blake3"
)

const (
	// DefaultSlot is used when a client omits the save slot.
	DefaultSlot = 1

	checksumSize = 32
)

var (
	// ErrNotFound is returned when no record exists for a (user, slot) key.
	ErrNotFound = errors.New("garden not found")
	// ErrCorrupt is returned when a stored blob fails its checksum.
	ErrCorrupt = errors.New("garden blob failed checksum verification")
	// ErrInvalidSlot is returned for non-positive slots.
	ErrInvalidSlot = errors.New("slot must be positive")
)

// Service persists garden world-state blobs. Blobs are lz4-compressed at
// rest with a blake3 checksum of the raw payload, verified on every read.
type Service struct {
	store store.GardenStore
}

// New creates a new garden service.
func New(st store.GardenStore) *Service {
	return &Service{store: st}
}

// Update upserts the (userID, slot) record, overwriting any previous blob.
// Slot 0 maps to DefaultSlot; negative slots are rejected.
func (s *Service) Update(ctx context.Context, userID int64, slot int, blob []byte, isPublic bool) (*store.Garden, error) {
	if slot == 0 {
		slot = DefaultSlot
	}
	if slot < 0 {
		return nil, ErrInvalidSlot
	}

	compressed, err := compress(blob)
	if err != nil {
		return nil, fmt.Errorf("compress blob: %w", err)
	}
	sum := blake3.Sum256(blob)

	rec := &store.Garden{
		UserID:    userID,
		Slot:      slot,
		Blob:      compressed,
		Checksum:  sum[:],
		RawSize:   len(blob),
		IsPublic:  isPublic,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.UpsertGarden(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist garden: %w", err)
	}
	return rec, nil
}

// Load retrieves and decompresses the (userID, slot) blob, verifying its
// checksum. Corrupt rows surface as ErrCorrupt, never as silent data.
func (s *Service) Load(ctx context.Context, userID int64, slot int) ([]byte, *store.Garden, error) {
	if slot == 0 {
		slot = DefaultSlot
	}
	rec, err := s.store.GetGarden(ctx, userID, slot)
	if err != nil {
		return nil, nil, fmt.Errorf("query garden: %w", err)
	}
	if rec == nil {
		return nil, nil, ErrNotFound
	}

	raw, err := decompress(rec.Blob, rec.RawSize)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress blob: %w", err)
	}

	sum := blake3.Sum256(raw)
	if len(rec.Checksum) != checksumSize || !bytes.Equal(sum[:], rec.Checksum) {
		return nil, nil, ErrCorrupt
	}
	return raw, rec, nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte, rawSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(compressed))
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if rawSize >= 0 && len(raw) != rawSize {
		return nil, fmt.Errorf("unexpected decompressed size %d, want %d", len(raw), rawSize)
	}
	return raw, nil
}

package snapshotstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ErrChecksumMismatch indicates a stored snapshot's payload does not match
// its recorded blake2b checksum.
var ErrChecksumMismatch = fmt.Errorf("snapshotstore: checksum mismatch")

// Repo stores and retrieves binary world snapshots.
type Repo struct {
	db *DB
}

func NewRepo(db *DB) *Repo { return &Repo{db: db} }

// Save writes one snapshot row, computing and storing its blake2b-256
// checksum.
func (r *Repo) Save(ctx context.Context, worldID uuid.UUID, frame uint32, mode uint8, payload []byte) error {
	sum := blake2b.Sum256(payload)
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO world_snapshots (world_id, frame, mode, checksum, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (world_id, frame) DO UPDATE
		   SET mode = EXCLUDED.mode, checksum = EXCLUDED.checksum, payload = EXCLUDED.payload`,
		worldID, int64(frame), int16(mode), sum[:], payload,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot for worldID at frame and verifies its checksum.
func (r *Repo) Load(ctx context.Context, worldID uuid.UUID, frame uint32) ([]byte, uint8, error) {
	var mode int16
	var checksum, payload []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT mode, checksum, payload FROM world_snapshots WHERE world_id = $1 AND frame = $2`,
		worldID, int64(frame),
	).Scan(&mode, &checksum, &payload)
	if err != nil {
		return nil, 0, fmt.Errorf("load snapshot: %w", err)
	}
	sum := blake2b.Sum256(payload)
	if string(sum[:]) != string(checksum) {
		return nil, 0, ErrChecksumMismatch
	}
	return payload, uint8(mode), nil
}

// LatestFrame returns the highest stored frame number for worldID, or 0 and
// false if none exists.
func (r *Repo) LatestFrame(ctx context.Context, worldID uuid.UUID) (uint32, bool, error) {
	var frame int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(frame), -1) FROM world_snapshots WHERE world_id = $1`,
		worldID,
	).Scan(&frame)
	if err != nil {
		return 0, false, fmt.Errorf("latest frame: %w", err)
	}
	if frame < 0 {
		return 0, false, nil
	}
	return uint32(frame), true, nil
}

package store

import (
	"context"
	"encoding/json"

	"github.com/escrowd/room-keys-server/models"
)

// VersionRepository is the persistence interface of the version registry:
// the mapping from (user, version) to backup metadata and its change counter.
//
// Version identifiers are decimal strings of a per-user monotonic counter.
// Create assigns them; they are never reused. Callers that need the
// check-latest-then-mutate sequence to be atomic must serialize Create and
// key mutations per user themselves (the service layer holds a per-user lock);
// the repository only guarantees per-statement atomicity.
type VersionRepository interface {
	// Create allocates the next version id for the user, stores the opaque
	// algorithm blob, and returns the full new record. Fails only on storage
	// errors.
	Create(ctx context.Context, userID string, algorithm json.RawMessage) (models.BackupVersion, error)

	// Update replaces the algorithm blob of an existing version and advances
	// its etag. Returns ErrVersionNotFound if the version does not exist.
	Update(ctx context.Context, userID, version string, algorithm json.RawMessage) error

	// Latest returns the most recently created version for the user, or
	// ErrVersionNotFound if the user has never created one.
	Latest(ctx context.Context, userID string) (models.BackupVersion, error)

	// Get returns the version record, or ErrVersionNotFound if absent.
	Get(ctx context.Context, userID, version string) (models.BackupVersion, error)

	// Etag returns the current etag of the version, or ErrVersionNotFound.
	Etag(ctx context.Context, userID, version string) (string, error)

	// AdvanceEtag bumps the version's etag and returns the new value.
	// Returns ErrVersionNotFound if the version does not exist.
	AdvanceEtag(ctx context.Context, userID, version string) (string, error)

	// Delete removes the version's metadata and, through the schema's
	// cascade, every key stored under it. Deleting an absent version is a
	// no-op.
	Delete(ctx context.Context, userID, version string) error
}

// KeyRepository is the persistence interface of the key store: the mapping
// from (user, version, room, session) to an opaque encrypted session payload.
//
// KeyRepository never touches etags; coupling key mutations to etag
// advancement is the caller's responsibility, which keeps this layer
// storage-only and independently testable.
type KeyRepository interface {
	// Put inserts or wholesale-replaces the given key records.
	Put(ctx context.Context, keys ...models.BackupKey) error

	// GetSession returns one session's payload, or ErrSessionNotFound.
	GetSession(ctx context.Context, userID, version, roomID, sessionID string) (models.SessionData, error)

	// GetRoom returns all sessions of a room, keyed by session id.
	// The map is empty when the room holds no sessions.
	GetRoom(ctx context.Context, userID, version, roomID string) (map[string]models.SessionData, error)

	// GetAll returns every stored key of the version, grouped by room.
	// The map is empty when the version holds no keys.
	GetAll(ctx context.Context, userID, version string) (map[string]models.RoomKeyBackup, error)

	// DeleteSession, DeleteRoom and DeleteAll remove keys at session, room
	// and version granularity. All three are idempotent: deleting something
	// absent is not an error.
	DeleteSession(ctx context.Context, userID, version, roomID, sessionID string) error
	DeleteRoom(ctx context.Context, userID, version, roomID string) error
	DeleteAll(ctx context.Context, userID, version string) error

	// Count returns the number of distinct (room, session) pairs currently
	// stored under the version. Always computed from the key table, never
	// cached.
	Count(ctx context.Context, userID, version string) (int64, error)
}

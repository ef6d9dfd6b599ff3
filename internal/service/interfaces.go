package service

import (
	"context"

	"github.com/escrowd/room-keys-server/models"
)

// BackupService is the application core of the room key backup server. It
// owns the version lifecycle, the latest-version mutation rule and the
// coupling between key mutations and etag advancement.
//
// All methods operate on behalf of a single authenticated user; userID is the
// full Matrix user id taken from the access token, never from the request
// path.
type BackupService interface {
	// CreateVersion allocates a fresh backup version holding the opaque
	// algorithm description and returns its id.
	CreateVersion(ctx context.Context, userID string, req models.BackupVersionRequest) (models.CreateVersionResponse, error)

	// UpdateVersion replaces the algorithm description of an existing
	// version. Works on any existing version, latest or not.
	UpdateVersion(ctx context.Context, userID, version string, req models.BackupVersionRequest) error

	// GetLatestVersion returns the most recently created version together
	// with its live key count and etag.
	GetLatestVersion(ctx context.Context, userID string) (models.BackupVersionResponse, error)

	// GetVersion returns one version by id together with its live key count
	// and etag.
	GetVersion(ctx context.Context, userID, version string) (models.BackupVersionResponse, error)

	// DeleteVersion removes a version and every key stored under it. Any
	// existing version may be deleted, not only the latest; deleting an
	// absent version is a no-op.
	DeleteVersion(ctx context.Context, userID, version string) error

	// PutKeys stores session keys across multiple rooms, PutRoomKeys within
	// one room, PutKey a single session. All three require version to be the
	// user's latest and advance its etag once.
	PutKeys(ctx context.Context, userID, version string, keys models.RoomKeys) (models.Changed, error)
	PutRoomKeys(ctx context.Context, userID, version, roomID string, room models.RoomKeyBackup) (models.Changed, error)
	PutKey(ctx context.Context, userID, version, roomID, sessionID string, data models.SessionData) (models.Changed, error)

	// GetKeys returns every stored key of the version, grouped by room. An
	// existing version with no keys yields an empty map, not an error.
	GetKeys(ctx context.Context, userID, version string) (models.RoomKeys, error)

	// GetRoomKeys returns the stored sessions of one room, GetKey a single
	// session payload.
	GetRoomKeys(ctx context.Context, userID, version, roomID string) (models.RoomKeyBackup, error)
	GetKey(ctx context.Context, userID, version, roomID, sessionID string) (models.SessionData, error)

	// DeleteKeys, DeleteRoomKeys and DeleteKey remove keys at version, room
	// and session granularity. Like the writes, they require version to be
	// the latest and advance its etag once.
	DeleteKeys(ctx context.Context, userID, version string) (models.Changed, error)
	DeleteRoomKeys(ctx context.Context, userID, version, roomID string) (models.Changed, error)
	DeleteKey(ctx context.Context, userID, version, roomID, sessionID string) (models.Changed, error)
}

// AuthService verifies access tokens presented by clients.
type AuthService interface {
	// ParseToken validates a raw bearer token and returns the decoded token
	// carrying the Matrix user id it was issued to.
	ParseToken(ctx context.Context, tokenString string) (models.Token, error)
}

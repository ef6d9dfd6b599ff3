package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/im7mortal/kmutex"

	"github.com/escrowd/room-keys-server/internal/logger"
	"github.com/escrowd/room-keys-server/internal/store"
	"github.com/escrowd/room-keys-server/models"
)

// backupService is the concrete implementation of BackupService.
//
// The check-latest-then-mutate sequence spans several SQL statements, so the
// service serializes all version-creating, version-deleting and key-mutating
// calls of one user behind a per-user keyed mutex. Requests of different
// users never contend.
type backupService struct {
	versionRepository store.VersionRepository
	keyRepository     store.KeyRepository

	// userLock keys on the Matrix user id.
	userLock *kmutex.Kmutex

	logger *logger.Logger
}

// NewBackupService constructs a BackupService wired to the given
// repositories.
func NewBackupService(versions store.VersionRepository, keys store.KeyRepository, logger *logger.Logger) BackupService {
	return &backupService{
		versionRepository: versions,
		keyRepository:     keys,
		userLock:          kmutex.New(),
		logger:            logger,
	}
}

// CreateVersion allocates the next version id for the user. The new version
// immediately becomes the latest one, freezing all previous versions for key
// writes.
func (b *backupService) CreateVersion(ctx context.Context, userID string, req models.BackupVersionRequest) (models.CreateVersionResponse, error) {
	log := logger.FromContext(ctx)

	if !isValidJSONObject(req.Algorithm) {
		log.Error().Str("user_id", userID).Msg("invalid backup algorithm payload")
		return models.CreateVersionResponse{}, ErrInvalidDataProvided
	}

	b.userLock.Lock(userID)
	defer b.userLock.Unlock(userID)

	created, err := b.versionRepository.Create(ctx, userID, req.Algorithm)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("backup version creation failed")
		return models.CreateVersionResponse{}, fmt.Errorf("backup version creation failed: %w", err)
	}
	log.Info().Str("user_id", userID).Str("version", created.Version).Msg("backup version created")

	return models.CreateVersionResponse{Version: created.Version}, nil
}

// UpdateVersion replaces the algorithm description of an existing version.
// Unlike key writes this is allowed on any version, but it still counts as a
// mutation: the repository advances the etag in the same statement.
func (b *backupService) UpdateVersion(ctx context.Context, userID, version string, req models.BackupVersionRequest) error {
	log := logger.FromContext(ctx)

	if !isValidJSONObject(req.Algorithm) {
		log.Error().Str("user_id", userID).Msg("invalid backup algorithm payload")
		return ErrInvalidDataProvided
	}

	err := b.versionRepository.Update(ctx, userID, version, req.Algorithm)
	if errors.Is(err, store.ErrVersionNotFound) {
		return ErrBackupNotFound
	}
	if err != nil {
		log.Err(err).Str("user_id", userID).Str("version", version).Msg("backup version update failed")
		return fmt.Errorf("backup version update failed: %w", err)
	}

	return nil
}

// GetLatestVersion returns the user's most recent version with its live key
// count.
func (b *backupService) GetLatestVersion(ctx context.Context, userID string) (models.BackupVersionResponse, error) {
	version, err := b.versionRepository.Latest(ctx, userID)
	if errors.Is(err, store.ErrVersionNotFound) {
		return models.BackupVersionResponse{}, ErrBackupNotFound
	}
	if err != nil {
		return models.BackupVersionResponse{}, fmt.Errorf("backup version lookup failed: %w", err)
	}

	return b.versionResponse(ctx, userID, version)
}

// GetVersion returns one version by id with its live key count.
func (b *backupService) GetVersion(ctx context.Context, userID, version string) (models.BackupVersionResponse, error) {
	found, err := b.versionRepository.Get(ctx, userID, version)
	if errors.Is(err, store.ErrVersionNotFound) {
		return models.BackupVersionResponse{}, ErrBackupNotFound
	}
	if err != nil {
		return models.BackupVersionResponse{}, fmt.Errorf("backup version lookup failed: %w", err)
	}

	return b.versionResponse(ctx, userID, found)
}

// versionResponse assembles the wire representation of a version record. The
// count is always derived from the key table at call time, never cached on
// the version row.
func (b *backupService) versionResponse(ctx context.Context, userID string, version models.BackupVersion) (models.BackupVersionResponse, error) {
	count, err := b.keyRepository.Count(ctx, userID, version.Version)
	if err != nil {
		return models.BackupVersionResponse{}, fmt.Errorf("backup key count failed: %w", err)
	}

	return models.BackupVersionResponse{
		Algorithm: version.Algorithm,
		Count:     count,
		Etag:      version.Etag,
		Version:   version.Version,
	}, nil
}

// DeleteVersion removes a version and, through the storage cascade, every key
// under it. Old versions may be deleted while a newer one stays live, and
// deleting an already-absent version succeeds silently.
func (b *backupService) DeleteVersion(ctx context.Context, userID, version string) error {
	log := logger.FromContext(ctx)

	b.userLock.Lock(userID)
	defer b.userLock.Unlock(userID)

	if err := b.versionRepository.Delete(ctx, userID, version); err != nil {
		log.Err(err).Str("user_id", userID).Str("version", version).Msg("backup version deletion failed")
		return fmt.Errorf("backup version deletion failed: %w", err)
	}
	log.Info().Str("user_id", userID).Str("version", version).Msg("backup version deleted")

	return nil
}

// PutKeys stores session keys across multiple rooms in the given version.
func (b *backupService) PutKeys(ctx context.Context, userID, version string, keys models.RoomKeys) (models.Changed, error) {
	records := make([]models.BackupKey, 0)
	for roomID, room := range keys.Rooms {
		records = append(records, flattenRoom(userID, version, roomID, room)...)
	}

	return b.mutateKeys(ctx, userID, version, func(ctx context.Context) error {
		return b.keyRepository.Put(ctx, records...)
	})
}

// PutRoomKeys stores session keys of a single room.
func (b *backupService) PutRoomKeys(ctx context.Context, userID, version, roomID string, room models.RoomKeyBackup) (models.Changed, error) {
	records := flattenRoom(userID, version, roomID, room)

	return b.mutateKeys(ctx, userID, version, func(ctx context.Context) error {
		return b.keyRepository.Put(ctx, records...)
	})
}

// PutKey stores a single session key.
func (b *backupService) PutKey(ctx context.Context, userID, version, roomID, sessionID string, data models.SessionData) (models.Changed, error) {
	if !isValidJSONObject(data) {
		return models.Changed{}, ErrInvalidDataProvided
	}

	record := models.BackupKey{
		UserID:    userID,
		Version:   version,
		RoomID:    roomID,
		SessionID: sessionID,
		KeyData:   data,
	}

	return b.mutateKeys(ctx, userID, version, func(ctx context.Context) error {
		return b.keyRepository.Put(ctx, record)
	})
}

// GetKeys returns every stored key of the version, grouped by room. The
// version itself must exist; a version without keys yields an empty rooms
// map.
func (b *backupService) GetKeys(ctx context.Context, userID, version string) (models.RoomKeys, error) {
	if _, err := b.versionRepository.Get(ctx, userID, version); err != nil {
		if errors.Is(err, store.ErrVersionNotFound) {
			return models.RoomKeys{}, ErrBackupNotFound
		}
		return models.RoomKeys{}, fmt.Errorf("backup version lookup failed: %w", err)
	}

	rooms, err := b.keyRepository.GetAll(ctx, userID, version)
	if err != nil {
		return models.RoomKeys{}, fmt.Errorf("backup keys lookup failed: %w", err)
	}

	return models.RoomKeys{Rooms: rooms}, nil
}

// GetRoomKeys returns the stored sessions of one room. A room with no stored
// sessions is reported as not found rather than as an empty container.
func (b *backupService) GetRoomKeys(ctx context.Context, userID, version, roomID string) (models.RoomKeyBackup, error) {
	sessions, err := b.keyRepository.GetRoom(ctx, userID, version, roomID)
	if err != nil {
		return models.RoomKeyBackup{}, fmt.Errorf("room keys lookup failed: %w", err)
	}
	if len(sessions) == 0 {
		return models.RoomKeyBackup{}, ErrKeyNotFound
	}

	return models.RoomKeyBackup{Sessions: sessions}, nil
}

// GetKey returns a single session key payload.
func (b *backupService) GetKey(ctx context.Context, userID, version, roomID, sessionID string) (models.SessionData, error) {
	data, err := b.keyRepository.GetSession(ctx, userID, version, roomID, sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session key lookup failed: %w", err)
	}

	return data, nil
}

// DeleteKeys removes every key of the version.
func (b *backupService) DeleteKeys(ctx context.Context, userID, version string) (models.Changed, error) {
	return b.mutateKeys(ctx, userID, version, func(ctx context.Context) error {
		return b.keyRepository.DeleteAll(ctx, userID, version)
	})
}

// DeleteRoomKeys removes every key of one room.
func (b *backupService) DeleteRoomKeys(ctx context.Context, userID, version, roomID string) (models.Changed, error) {
	return b.mutateKeys(ctx, userID, version, func(ctx context.Context) error {
		return b.keyRepository.DeleteRoom(ctx, userID, version, roomID)
	})
}

// DeleteKey removes a single session key.
func (b *backupService) DeleteKey(ctx context.Context, userID, version, roomID, sessionID string) (models.Changed, error) {
	return b.mutateKeys(ctx, userID, version, func(ctx context.Context) error {
		return b.keyRepository.DeleteSession(ctx, userID, version, roomID, sessionID)
	})
}

// mutateKeys runs one key mutation under the latest-version rule: it takes
// the user's lock, verifies version is the most recently created one, applies
// the mutation, advances the etag once and reports the new etag together with
// the live key count. A user with no versions at all fails the same check,
// since then no requested version can be the latest. Deleting keys that are
// already absent still advances the etag; the request is a mutation even when
// the storage ends up unchanged.
func (b *backupService) mutateKeys(ctx context.Context, userID, version string, mutate func(ctx context.Context) error) (models.Changed, error) {
	log := logger.FromContext(ctx)

	b.userLock.Lock(userID)
	defer b.userLock.Unlock(userID)

	latest, err := b.versionRepository.Latest(ctx, userID)
	if errors.Is(err, store.ErrVersionNotFound) {
		// No versions means no latest, so the requested version cannot be it.
		log.Debug().
			Str("user_id", userID).
			Str("version", version).
			Msg("key mutation rejected, user has no backup versions")
		return models.Changed{}, ErrNotLatestBackup
	}
	if err != nil {
		return models.Changed{}, fmt.Errorf("backup version lookup failed: %w", err)
	}
	if latest.Version != version {
		log.Debug().
			Str("user_id", userID).
			Str("version", version).
			Str("latest", latest.Version).
			Msg("key mutation rejected for non-latest version")
		return models.Changed{}, ErrNotLatestBackup
	}

	if err = mutate(ctx); err != nil {
		log.Err(err).Str("user_id", userID).Str("version", version).Msg("backup key mutation failed")
		return models.Changed{}, fmt.Errorf("backup key mutation failed: %w", err)
	}

	etag, err := b.versionRepository.AdvanceEtag(ctx, userID, version)
	if err != nil {
		return models.Changed{}, fmt.Errorf("backup etag advancement failed: %w", err)
	}

	count, err := b.keyRepository.Count(ctx, userID, version)
	if err != nil {
		return models.Changed{}, fmt.Errorf("backup key count failed: %w", err)
	}

	return models.Changed{Count: count, Etag: etag}, nil
}

// flattenRoom turns the nested wire format of one room into flat key records.
func flattenRoom(userID, version, roomID string, room models.RoomKeyBackup) []models.BackupKey {
	records := make([]models.BackupKey, 0, len(room.Sessions))
	for sessionID, data := range room.Sessions {
		records = append(records, models.BackupKey{
			UserID:    userID,
			Version:   version,
			RoomID:    roomID,
			SessionID: sessionID,
			KeyData:   data,
		})
	}

	return records
}

// isValidJSONObject reports whether raw is a JSON object. Algorithm
// descriptions and session payloads are stored opaquely but must at least be
// well-formed objects, both for the JSONB column and for faithful replay to
// other clients.
func isValidJSONObject(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil
}

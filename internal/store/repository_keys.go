package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/escrowd/room-keys-server/models"
)

// PostgresKeyRepository implements [KeyRepository] on top of the shared
// PostgreSQL handle.
type PostgresKeyRepository struct {
	*DB
}

// NewPostgresKeyRepository constructs a [PostgresKeyRepository] backed by db.
func NewPostgresKeyRepository(db *DB) *PostgresKeyRepository {
	return &PostgresKeyRepository{DB: db}
}

// Put upserts the given key records in a single multi-row statement. All
// records must carry the same user and version; the caller assembles them
// from one request body, so that holds by construction.
func (r *PostgresKeyRepository) Put(ctx context.Context, keys ...models.BackupKey) error {
	log := r.logger.With().Str("func", "PostgresKeyRepository.Put").Logger()

	if len(keys) == 0 {
		return nil
	}

	seq, ok := parseVersion(keys[0].Version)
	if !ok {
		return ErrVersionNotFound
	}

	query, args, err := buildPutKeysQuery(seq, keys)
	if err != nil {
		log.Err(err).Msg("failed to build keys upsert query")
		return err
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to upsert backup keys")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	log.Debug().Int("keys", len(keys)).Msg("backup keys stored")

	return nil
}

// GetSession returns the payload of one stored session key.
func (r *PostgresKeyRepository) GetSession(ctx context.Context, userID, version, roomID, sessionID string) (models.SessionData, error) {
	log := r.logger.With().Str("func", "PostgresKeyRepository.GetSession").Logger()

	seq, ok := parseVersion(version)
	if !ok {
		return nil, ErrSessionNotFound
	}

	var keyData []byte
	err := r.QueryRowContext(ctx, getSessionKey, userID, seq, roomID, sessionID).Scan(&keyData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to read session key")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return keyData, nil
}

// GetRoom returns every stored session of one room, keyed by session id.
func (r *PostgresKeyRepository) GetRoom(ctx context.Context, userID, version, roomID string) (map[string]models.SessionData, error) {
	log := r.logger.With().Str("func", "PostgresKeyRepository.GetRoom").Logger()

	sessions := make(map[string]models.SessionData)

	seq, ok := parseVersion(version)
	if !ok {
		return sessions, nil
	}

	rows, err := r.QueryContext(ctx, getRoomKeys, userID, seq, roomID)
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to query room keys")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sessionID string
			keyData   []byte
		)
		if err = rows.Scan(&sessionID, &keyData); err != nil {
			log.Err(err).Msg("failed to scan room key row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		sessions[sessionID] = keyData
	}
	if err = rows.Err(); err != nil {
		log.Err(err).Msg("room key rows iteration failed")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return sessions, nil
}

// GetAll returns every stored key of the version, grouped by room.
func (r *PostgresKeyRepository) GetAll(ctx context.Context, userID, version string) (map[string]models.RoomKeyBackup, error) {
	log := r.logger.With().Str("func", "PostgresKeyRepository.GetAll").Logger()

	rooms := make(map[string]models.RoomKeyBackup)

	seq, ok := parseVersion(version)
	if !ok {
		return rooms, nil
	}

	rows, err := r.QueryContext(ctx, getAllKeys, userID, seq)
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to query backup keys")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			roomID    string
			sessionID string
			keyData   []byte
		)
		if err = rows.Scan(&roomID, &sessionID, &keyData); err != nil {
			log.Err(err).Msg("failed to scan backup key row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}

		room, exists := rooms[roomID]
		if !exists {
			room = models.RoomKeyBackup{Sessions: make(map[string]models.SessionData)}
		}
		room.Sessions[sessionID] = keyData
		rooms[roomID] = room
	}
	if err = rows.Err(); err != nil {
		log.Err(err).Msg("backup key rows iteration failed")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return rooms, nil
}

// DeleteSession removes one session key. Absent keys are ignored.
func (r *PostgresKeyRepository) DeleteSession(ctx context.Context, userID, version, roomID, sessionID string) error {
	return r.deleteScoped(ctx, "PostgresKeyRepository.DeleteSession", userID, version, roomID, sessionID)
}

// DeleteRoom removes every session key of one room. Absent rooms are ignored.
func (r *PostgresKeyRepository) DeleteRoom(ctx context.Context, userID, version, roomID string) error {
	return r.deleteScoped(ctx, "PostgresKeyRepository.DeleteRoom", userID, version, roomID, "")
}

// DeleteAll removes every key of the version. A version without keys is left
// untouched without error.
func (r *PostgresKeyRepository) DeleteAll(ctx context.Context, userID, version string) error {
	return r.deleteScoped(ctx, "PostgresKeyRepository.DeleteAll", userID, version, "", "")
}

func (r *PostgresKeyRepository) deleteScoped(ctx context.Context, funcName, userID, version, roomID, sessionID string) error {
	log := r.logger.With().Str("func", funcName).Logger()

	seq, ok := parseVersion(version)
	if !ok {
		return nil
	}

	query, args, err := buildDeleteKeysQuery(userID, seq, roomID, sessionID)
	if err != nil {
		log.Err(err).Msg("failed to build keys delete query")
		return err
	}

	if _, err = r.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to delete backup keys")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// Count returns the number of stored (room, session) pairs of the version.
// The value is always derived from the key table at call time.
func (r *PostgresKeyRepository) Count(ctx context.Context, userID, version string) (int64, error) {
	log := r.logger.With().Str("func", "PostgresKeyRepository.Count").Logger()

	seq, ok := parseVersion(version)
	if !ok {
		return 0, nil
	}

	var count int64
	if err := r.QueryRowContext(ctx, countKeys, userID, seq).Scan(&count); err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to count backup keys")
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return count, nil
}

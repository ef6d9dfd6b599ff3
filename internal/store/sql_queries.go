package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/escrowd/room-keys-server/models"
)

const (
	// createVersion allocates the next per-user version number and stores the
	// algorithm blob in one statement. The aggregate subquery yields exactly
	// one row even for a user with no versions yet, so the INSERT always
	// inserts exactly one record.
	createVersion = `
		INSERT INTO backup_versions (user_id, version, algorithm)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2
		FROM backup_versions
		WHERE user_id = $1
		RETURNING version, etag, created_at;`

	getLatestVersion = `
		SELECT version, algorithm, etag, created_at
		FROM backup_versions
		WHERE user_id = $1
		ORDER BY version DESC
		LIMIT 1;`

	getVersion = `
		SELECT version, algorithm, etag, created_at
		FROM backup_versions
		WHERE user_id = $1 AND version = $2;`

	updateVersionAlgorithm = `
		UPDATE backup_versions
		SET algorithm = $3, etag = etag + 1
		WHERE user_id = $1 AND version = $2
		RETURNING etag;`

	getVersionEtag = `
		SELECT etag
		FROM backup_versions
		WHERE user_id = $1 AND version = $2;`

	advanceVersionEtag = `
		UPDATE backup_versions
		SET etag = etag + 1
		WHERE user_id = $1 AND version = $2
		RETURNING etag;`

	// Keys are removed by the ON DELETE CASCADE foreign key.
	deleteVersion = `
		DELETE FROM backup_versions
		WHERE user_id = $1 AND version = $2;`

	getSessionKey = `
		SELECT key_data
		FROM backup_keys
		WHERE user_id = $1 AND version = $2 AND room_id = $3 AND session_id = $4;`

	getRoomKeys = `
		SELECT session_id, key_data
		FROM backup_keys
		WHERE user_id = $1 AND version = $2 AND room_id = $3
		ORDER BY session_id;`

	getAllKeys = `
		SELECT room_id, session_id, key_data
		FROM backup_keys
		WHERE user_id = $1 AND version = $2
		ORDER BY room_id, session_id;`

	countKeys = `
		SELECT count(*)
		FROM backup_keys
		WHERE user_id = $1 AND version = $2;`
)

// buildPutKeysQuery builds a multi-row upsert for the given key records.
// Re-submitting an existing (user, version, room, session) identity replaces
// the payload wholesale — last write wins, no merge semantics.
func buildPutKeysQuery(seq int64, keys []models.BackupKey) (string, []any, error) {
	builder := sq.Insert("backup_keys").
		Columns("user_id", "version", "room_id", "session_id", "key_data").
		PlaceholderFormat(sq.Dollar).
		Suffix(`ON CONFLICT (user_id, version, room_id, session_id)
			DO UPDATE SET key_data = EXCLUDED.key_data, updated_at = now()`)

	for _, key := range keys {
		builder = builder.Values(key.UserID, seq, key.RoomID, key.SessionID, []byte(key.KeyData))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}

// buildDeleteKeysQuery builds a delete scoped to a whole version, one room,
// or one session, depending on which of roomID and sessionID are non-empty.
// An empty sessionID with a non-empty roomID deletes the room; both empty
// deletes every key of the version.
func buildDeleteKeysQuery(userID string, seq int64, roomID, sessionID string) (string, []any, error) {
	builder := sq.Delete("backup_keys").
		PlaceholderFormat(sq.Dollar).
		Where(sq.Eq{"user_id": userID, "version": seq})

	if roomID != "" {
		builder = builder.Where(sq.Eq{"room_id": roomID})
	}
	if sessionID != "" {
		builder = builder.Where(sq.Eq{"session_id": sessionID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return query, args, nil
}

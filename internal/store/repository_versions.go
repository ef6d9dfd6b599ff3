package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/escrowd/room-keys-server/models"
)

// PostgresVersionRepository implements [VersionRepository] on top of the
// shared PostgreSQL handle.
type PostgresVersionRepository struct {
	*DB
}

// NewPostgresVersionRepository constructs a [PostgresVersionRepository]
// backed by db.
func NewPostgresVersionRepository(db *DB) *PostgresVersionRepository {
	return &PostgresVersionRepository{DB: db}
}

// parseVersion converts a wire-format version id into the stored counter
// value. Version ids are produced exclusively by Create, so anything that is
// not a positive decimal integer can never match a stored row; callers treat
// a false result the same way as a missing version.
func parseVersion(version string) (int64, bool) {
	seq, err := strconv.ParseInt(version, 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}

	return seq, true
}

// Create allocates the next version id for the user and stores the algorithm
// blob. The id sequence is per-user and strictly increasing; ids of deleted
// versions are never handed out again because the counter is derived from
// MAX(version), not from row count.
func (r *PostgresVersionRepository) Create(ctx context.Context, userID string, algorithm json.RawMessage) (models.BackupVersion, error) {
	log := r.logger.With().Str("func", "PostgresVersionRepository.Create").Logger()

	var (
		seq       int64
		etag      int64
		createdAt time.Time
	)
	err := r.QueryRowContext(ctx, createVersion, userID, []byte(algorithm)).Scan(&seq, &etag, &createdAt)
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to insert backup version")
		return models.BackupVersion{}, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	version := models.BackupVersion{
		UserID:    userID,
		Version:   strconv.FormatInt(seq, 10),
		Algorithm: algorithm,
		Etag:      strconv.FormatInt(etag, 10),
		CreatedAt: createdAt,
	}
	log.Debug().Str("version", version.Version).Msg("backup version created")

	return version, nil
}

// Update replaces the algorithm blob of an existing version and advances its
// etag in the same statement.
func (r *PostgresVersionRepository) Update(ctx context.Context, userID, version string, algorithm json.RawMessage) error {
	log := r.logger.With().Str("func", "PostgresVersionRepository.Update").Logger()

	seq, ok := parseVersion(version)
	if !ok {
		return ErrVersionNotFound
	}

	var etag int64
	err := r.QueryRowContext(ctx, updateVersionAlgorithm, userID, seq, []byte(algorithm)).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVersionNotFound
	}
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to update backup version")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

// Latest returns the highest-numbered version of the user.
func (r *PostgresVersionRepository) Latest(ctx context.Context, userID string) (models.BackupVersion, error) {
	return r.scanVersion(ctx, "PostgresVersionRepository.Latest", getLatestVersion, userID)
}

// Get returns one version of the user by id.
func (r *PostgresVersionRepository) Get(ctx context.Context, userID, version string) (models.BackupVersion, error) {
	seq, ok := parseVersion(version)
	if !ok {
		return models.BackupVersion{}, ErrVersionNotFound
	}

	return r.scanVersion(ctx, "PostgresVersionRepository.Get", getVersion, userID, seq)
}

func (r *PostgresVersionRepository) scanVersion(ctx context.Context, funcName, query string, args ...any) (models.BackupVersion, error) {
	log := r.logger.With().Str("func", funcName).Logger()

	var (
		seq       int64
		algorithm []byte
		etag      int64
		createdAt time.Time
	)
	err := r.QueryRowContext(ctx, query, args...).Scan(&seq, &algorithm, &etag, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BackupVersion{}, ErrVersionNotFound
	}
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to read backup version")
		return models.BackupVersion{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	userID, _ := args[0].(string)

	return models.BackupVersion{
		UserID:    userID,
		Version:   strconv.FormatInt(seq, 10),
		Algorithm: algorithm,
		Etag:      strconv.FormatInt(etag, 10),
		CreatedAt: createdAt,
	}, nil
}

// Etag returns the current change counter of the version.
func (r *PostgresVersionRepository) Etag(ctx context.Context, userID, version string) (string, error) {
	log := r.logger.With().Str("func", "PostgresVersionRepository.Etag").Logger()

	seq, ok := parseVersion(version)
	if !ok {
		return "", ErrVersionNotFound
	}

	var etag int64
	err := r.QueryRowContext(ctx, getVersionEtag, userID, seq).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrVersionNotFound
	}
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to read backup version etag")
		return "", fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return strconv.FormatInt(etag, 10), nil
}

// AdvanceEtag bumps the change counter of the version and returns the new
// value as a decimal string.
func (r *PostgresVersionRepository) AdvanceEtag(ctx context.Context, userID, version string) (string, error) {
	log := r.logger.With().Str("func", "PostgresVersionRepository.AdvanceEtag").Logger()

	seq, ok := parseVersion(version)
	if !ok {
		return "", ErrVersionNotFound
	}

	var etag int64
	err := r.QueryRowContext(ctx, advanceVersionEtag, userID, seq).Scan(&etag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrVersionNotFound
	}
	if err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to advance backup version etag")
		return "", fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return strconv.FormatInt(etag, 10), nil
}

// Delete removes the version row; the foreign key cascade removes its keys.
// Deleting an absent or malformed version id succeeds without effect.
func (r *PostgresVersionRepository) Delete(ctx context.Context, userID, version string) error {
	log := r.logger.With().Str("func", "PostgresVersionRepository.Delete").Logger()

	seq, ok := parseVersion(version)
	if !ok {
		return nil
	}

	if _, err := r.ExecContext(ctx, deleteVersion, userID, seq); err != nil {
		log.Err(err).Str("pg_code", postgresError(err)).Msg("failed to delete backup version")
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return nil
}

package store

import (
	"context"
	"fmt"

	"github.com/escrowd/room-keys-server/internal/config"
	"github.com/escrowd/room-keys-server/internal/logger"
)

// Storages bundles the repositories handed to the service layer.
type Storages struct {
	VersionRepository VersionRepository
	KeyRepository     KeyRepository
}

// NewStorages connects to PostgreSQL, applies the embedded migrations and
// returns the repository bundle.
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	db, err := NewConnectPostgres(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err = db.Migrate(); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &Storages{
		VersionRepository: NewPostgresVersionRepository(db),
		KeyRepository:     NewPostgresKeyRepository(db),
	}, nil
}

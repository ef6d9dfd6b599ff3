package service

import (
	"github.com/escrowd/room-keys-server/internal/config"
	"github.com/escrowd/room-keys-server/internal/logger"
	"github.com/escrowd/room-keys-server/internal/store"
)

type Services struct {
	AuthService   AuthService
	BackupService BackupService
}

func NewServices(storages *store.Storages, cfg config.StructuredConfig, logger *logger.Logger) *Services {
	return &Services{
		AuthService:   NewAuthService(cfg.App, logger),
		BackupService: NewBackupService(storages.VersionRepository, storages.KeyRepository, logger),
	}
}

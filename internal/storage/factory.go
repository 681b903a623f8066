// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"

	"github.com/lunarloc/lacreplay/internal/config"
	gormstorage "github.com/lunarloc/lacreplay/internal/storage/gorm"
)

// NewBackend creates an export backend based on configuration.
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "sqlite":
		return gormstorage.New(sqlite.Open(cfg.SqlitePath), log), nil
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
		)
		return gormstorage.New(postgres.Open(dsn), log), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// Package gormstorage persists replayed session telemetry through GORM,
// against SQLite or Postgres depending on the dialector it is built with.
package gormstorage

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lunarloc/lacreplay/pkg/core"
)

// Backend writes session telemetry to a relational database.
type Backend struct {
	dialector gorm.Dialector
	db        *gorm.DB
	log       zerolog.Logger
	sessionID uint
}

// New creates a backend over a GORM dialector. Call Init to connect and
// migrate the schema.
func New(dialector gorm.Dialector, log zerolog.Logger) *Backend {
	return &Backend{
		dialector: dialector,
		log:       log,
	}
}

// Init connects to the database and migrates the export schema.
func (b *Backend) Init() error {
	db, err := gorm.Open(b.dialector, &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return fmt.Errorf("failed to open export database: %w", err)
	}

	err = db.AutoMigrate(
		&core.SessionRecord{},
		&core.FrameState{},
		&core.CameraState{},
		&core.CustomRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate export schema: %w", err)
	}

	b.db = db
	b.log.Debug().Msg("export database ready")
	return nil
}

// Close releases the underlying connection.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// BeginSession creates the session row and assigns its ID to s. Telemetry
// recorded afterwards is attributed to this session.
func (b *Backend) BeginSession(s *core.SessionRecord) error {
	if b.db == nil {
		return errors.New("backend not initialized")
	}
	if err := b.db.Create(s).Error; err != nil {
		return fmt.Errorf("failed to create session row: %w", err)
	}
	b.sessionID = s.ID
	return nil
}

// EndSession finishes the current session.
func (b *Backend) EndSession() error {
	if b.sessionID == 0 {
		return errors.New("no session in progress")
	}
	b.log.Debug().Uint("session", b.sessionID).Msg("session export complete")
	b.sessionID = 0
	return nil
}

// RecordFrameState persists one global frame table row.
func (b *Backend) RecordFrameState(fs *core.FrameState) error {
	if b.sessionID == 0 {
		return errors.New("no session in progress")
	}
	fs.SessionID = b.sessionID
	return b.db.Create(fs).Error
}

// RecordCameraState persists one per-camera frame table row.
func (b *Backend) RecordCameraState(cs *core.CameraState) error {
	if b.sessionID == 0 {
		return errors.New("no session in progress")
	}
	cs.SessionID = b.sessionID
	return b.db.Create(cs).Error
}

// RecordCustomRows persists the rows of a custom record table in one batch.
func (b *Backend) RecordCustomRows(rows []*core.CustomRow) error {
	if b.sessionID == 0 {
		return errors.New("no session in progress")
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		row.SessionID = b.sessionID
	}
	return b.db.Create(rows).Error
}

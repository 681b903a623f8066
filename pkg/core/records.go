// pkg/core/records.go
package core

import (
	"time"

	"gorm.io/datatypes"
)

// SessionRecord is the top-level row persisted per exported session.
type SessionRecord struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	CreatedAt   time.Time      `json:"createdAt"`
	ArchivePath string         `json:"archivePath"`
	Initial     datatypes.JSON `json:"initial"`
	FrameCount  int            `json:"frameCount"`
	PathLength  float64        `json:"pathLength"`
	Polyline    string         `json:"polyline"`
}

// FrameState is one global frame table row flattened for export.
type FrameState struct {
	ID           uint       `json:"id" gorm:"primarykey"`
	SessionID    uint       `json:"sessionId" gorm:"index"`
	Frame        int        `json:"frame" gorm:"index"`
	MissionTime  float64    `json:"missionTime"`
	Position     Position3D `json:"position" gorm:"embedded;embeddedPrefix:pos_"`
	Rotation     Rotation3D `json:"rotation" gorm:"embedded;embeddedPrefix:rot_"`
	AccelX       float64    `json:"accelX"`
	AccelY       float64    `json:"accelY"`
	AccelZ       float64    `json:"accelZ"`
	GyroX        float64    `json:"gyroX"`
	GyroY        float64    `json:"gyroY"`
	GyroZ        float64    `json:"gyroZ"`
	Power        float64    `json:"power"`
	LinearSpeed  float64    `json:"linearSpeed"`
	AngularSpeed float64    `json:"angularSpeed"`
	CoverAngle   float64    `json:"coverAngle"`
}

// CameraState is one per-camera frame table row flattened for export.
type CameraState struct {
	ID        uint    `json:"id" gorm:"primarykey"`
	SessionID uint    `json:"sessionId" gorm:"index"`
	Camera    string  `json:"camera" gorm:"index"`
	Frame     int     `json:"frame" gorm:"index"`
	Enabled   bool    `json:"enabled"`
	Light     float64 `json:"light"`
	Grayscale string  `json:"grayscale"` // image asset file name, empty if not recorded
	Semantic  string  `json:"semantic"`
}

// CustomRow is one row of a named custom record table, stored schemaless.
type CustomRow struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	SessionID uint           `json:"sessionId" gorm:"index"`
	Name      string         `json:"name" gorm:"index"`
	Position  int            `json:"position"`
	Data      datatypes.JSON `json:"data"`
}

// internal/storage/storage.go
package storage

import "github.com/lunarloc/lacreplay/pkg/core"

// Backend is the interface all telemetry export implementations must
// satisfy. The reader stack itself never writes; export is a tool-side
// sink fed by replaying an archive.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (assigns ID to the passed pointer)
	BeginSession(s *core.SessionRecord) error
	EndSession() error

	// Telemetry recording
	RecordFrameState(fs *core.FrameState) error
	RecordCameraState(cs *core.CameraState) error
	RecordCustomRows(rows []*core.CustomRow) error
}

// pkg/core/errors.go
package core

import "errors"

// Error taxonomy for archive reading and playback. Callers test with
// errors.Is; every error returned by the readers wraps exactly one of these.
var (
	// ErrNotFound is returned when a structurally required file, table,
	// record or column is missing.
	ErrNotFound = errors.New("not found")

	// ErrParse is returned when a required table or record is malformed.
	ErrParse = errors.New("parse failure")

	// ErrOutOfRange is returned when a frame index is not part of the
	// session's global frame-index set.
	ErrOutOfRange = errors.New("frame index out of range")

	// ErrFrameNotFound signals that a camera simply has no row at a frame.
	// This is the expected "no data this frame" condition, not an anomaly.
	ErrFrameNotFound = errors.New("no camera data at frame")

	// ErrImageNotFound signals that an image asset does not exist for a
	// (camera, frame, channel) triple. Always recoverable.
	ErrImageNotFound = errors.New("no image at frame")

	// ErrDecode is returned when an image asset exists but its payload
	// cannot be decoded. Distinct from ErrImageNotFound.
	ErrDecode = errors.New("image decode failure")
)

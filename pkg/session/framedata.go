// Package session reads the synchronized data streams of one recorded LAC
// traverse: the global frame table, per-camera frame tables, image assets
// and custom record tables, all joined by the integer frame index.
package session

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/lunarloc/lacreplay/internal/archive"
	"github.com/lunarloc/lacreplay/internal/config"
	"github.com/lunarloc/lacreplay/internal/table"
	"github.com/lunarloc/lacreplay/pkg/core"
)

// FrameDataReader loads the tabular streams of a session into queryable
// frame-indexed containers. It performs no image I/O. Read-only after Load;
// multiple consumers may query one reader concurrently.
type FrameDataReader struct {
	store *archive.Store
	log   zerolog.Logger

	initial      *core.Initial
	metadata     map[string]any
	frames       *table.Table
	cameraFrames map[string]*table.Table
	customs      map[string]*table.Table
}

// NewFrameDataReader creates a reader over an opened archive store. Call
// Load before querying.
func NewFrameDataReader(store *archive.Store, log zerolog.Logger) *FrameDataReader {
	return &FrameDataReader{
		store:        store,
		log:          log,
		cameraFrames: make(map[string]*table.Table),
		customs:      make(map[string]*table.Table),
	}
}

// Load parses the initial record, the metadata record, the global frame
// table and every discovered per-camera and custom table. The initial
// record and the global frame table are required; failures there abort the
// load. A malformed optional table is skipped with a warning so one broken
// stream cannot take down the whole session.
func (r *FrameDataReader) Load() error {
	initial, err := config.LoadInitial(r.store.InitialPath())
	if err != nil {
		return err
	}
	r.initial = initial

	r.metadata, err = config.LoadMetadata(r.store.MetadataPath())
	if err != nil {
		r.log.Warn().Err(err).Msg("metadata record unavailable")
		r.metadata = map[string]any{}
	}

	r.frames, err = r.loadTable(r.store.FramesPath())
	if err != nil {
		return fmt.Errorf("global frame table: %w", err)
	}

	for _, camera := range r.store.Cameras() {
		tbl, err := r.loadTable(r.store.CameraTablePath(camera))
		if err != nil {
			// Some cameras never produce frames; their table may be
			// missing or empty.
			r.log.Warn().Err(err).Str("camera", camera).Msg("skipping camera frame table")
			continue
		}
		r.cameraFrames[camera] = tbl
	}

	for _, name := range r.store.Customs() {
		tbl, err := r.loadTable(r.store.CustomPath(name))
		if err != nil {
			r.log.Warn().Err(err).Str("record", name).Msg("skipping custom record table")
			continue
		}
		r.customs[name] = tbl
	}

	r.log.Debug().
		Int("frames", r.frames.Len()).
		Int("cameras", len(r.cameraFrames)).
		Int("customRecords", len(r.customs)).
		Msg("session tables loaded")
	return nil
}

func (r *FrameDataReader) loadTable(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, core.ErrNotFound)
	}
	defer f.Close()

	tbl, err := table.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}

// Initial returns the session's initial record.
func (r *FrameDataReader) Initial() *core.Initial {
	return r.initial
}

// Metadata returns the session's metadata record.
func (r *FrameDataReader) Metadata() map[string]any {
	return r.metadata
}

// Frames returns the global frame table. Callers must treat it as
// read-only; the reader owns the canonical copy.
func (r *FrameDataReader) Frames() *table.Table {
	return r.frames
}

// CameraFrames returns every successfully loaded per-camera frame table,
// keyed by camera name.
func (r *FrameDataReader) CameraFrames() map[string]*table.Table {
	return r.cameraFrames
}

// Custom returns a named custom record table.
func (r *FrameDataReader) Custom(name string) (*table.Table, error) {
	tbl, ok := r.customs[name]
	if !ok {
		return nil, fmt.Errorf("custom record %q: %w", name, core.ErrNotFound)
	}
	return tbl, nil
}

// Frame returns the global frame table row at an exact frame index.
func (r *FrameDataReader) Frame(index int) (table.Row, error) {
	row, ok := r.frames.Frame(index)
	if !ok {
		return nil, fmt.Errorf("frame %d: %w", index, core.ErrFrameNotFound)
	}
	return row, nil
}

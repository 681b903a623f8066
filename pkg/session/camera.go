package session

import (
	"errors"
	"fmt"
	"image"
	"os"

	// Image assets are PNG or JPEG files; register both decoders.
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"

	"github.com/lunarloc/lacreplay/internal/archive"
	"github.com/lunarloc/lacreplay/internal/table"
	"github.com/lunarloc/lacreplay/pkg/core"
)

// FrameInput is the per-frame input bundle the simulation host hands a live
// agent: one entry per camera, one image per recorded channel. Cameras and
// channels with no data at a frame are absent, never nil.
type FrameInput map[string]map[core.Channel]image.Image

// CameraDataReader composes a FrameDataReader with on-demand image loading.
// Image decode is a pure function of (camera, frame, channel); nothing is
// cached, re-decoding the same asset is idempotent.
type CameraDataReader struct {
	store *archive.Store
	data  *FrameDataReader
	log   zerolog.Logger
}

// NewCameraDataReader creates a reader over an opened archive store,
// including the FrameDataReader it composes. Call Load before querying.
func NewCameraDataReader(store *archive.Store, log zerolog.Logger) *CameraDataReader {
	return &CameraDataReader{
		store: store,
		data:  NewFrameDataReader(store, log),
		log:   log,
	}
}

// Load loads the composed FrameDataReader.
func (c *CameraDataReader) Load() error {
	return c.data.Load()
}

// FrameData returns the composed FrameDataReader.
func (c *CameraDataReader) FrameData() *FrameDataReader {
	return c.data
}

// Cameras returns the declared camera names in sorted order.
func (c *CameraDataReader) Cameras() []string {
	return c.data.Initial().CameraNames()
}

// Frame returns a camera's frame table row at an exact frame index. A
// camera with no row at the index fails with core.ErrFrameNotFound: the
// expected "camera has no data this frame" signal, not an anomaly. An
// unknown camera fails with core.ErrNotFound.
func (c *CameraDataReader) Frame(camera string, index int) (table.Row, error) {
	tbl, ok := c.data.CameraFrames()[camera]
	if !ok {
		return nil, fmt.Errorf("camera %q: %w", camera, core.ErrNotFound)
	}
	row, ok := tbl.Frame(index)
	if !ok {
		return nil, fmt.Errorf("camera %q frame %d: %w", camera, index, core.ErrFrameNotFound)
	}
	return row, nil
}

// FrameAtOrBefore returns the camera row with the largest frame index at or
// before index: the camera's state as of that frame. Fails with
// core.ErrFrameNotFound before the camera's first row.
func (c *CameraDataReader) FrameAtOrBefore(camera string, index int) (table.Row, error) {
	tbl, ok := c.data.CameraFrames()[camera]
	if !ok {
		return nil, fmt.Errorf("camera %q: %w", camera, core.ErrNotFound)
	}
	row, ok := tbl.FrameAtOrBefore(index)
	if !ok {
		return nil, fmt.Errorf("camera %q frame %d: %w", camera, index, core.ErrFrameNotFound)
	}
	return row, nil
}

// Image decodes the image asset for a (camera, frame, channel) triple. An
// absent asset fails with core.ErrImageNotFound (recoverable absence); a
// present but corrupt asset fails with core.ErrDecode.
func (c *CameraDataReader) Image(camera string, index int, channel core.Channel) (image.Image, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("channel %q: %w", channel, core.ErrNotFound)
	}

	cfg, ok := c.data.Initial().Cameras[camera]
	if !ok {
		return nil, fmt.Errorf("camera %q: %w", camera, core.ErrNotFound)
	}
	if channel == core.ChannelSemantic && !cfg.UseSemantic {
		return nil, fmt.Errorf("camera %q has no semantic channel: %w", camera, core.ErrImageNotFound)
	}

	row, err := c.Frame(camera, index)
	if err != nil {
		if errors.Is(err, core.ErrFrameNotFound) || errors.Is(err, core.ErrNotFound) {
			// No camera data at this frame means no image either.
			return nil, fmt.Errorf("camera %q frame %d: %w", camera, index, core.ErrImageNotFound)
		}
		return nil, err
	}

	// The camera table row carries the asset file name per channel column;
	// fall back to the conventional name for rows without one.
	fileName, err := row.String(string(channel))
	if err != nil || fileName == "" {
		fileName = archive.ImageFileName(camera, channel, index)
	}

	f, err := os.Open(c.store.ImagePath(camera, channel, fileName))
	if err != nil {
		return nil, fmt.Errorf("camera %q frame %d channel %s: %w", camera, index, channel, core.ErrImageNotFound)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("camera %q frame %d channel %s: %w: %v", camera, index, channel, core.ErrDecode, err)
	}
	return img, nil
}

// InputData assembles the simulator-style input bundle for a frame. Every
// declared camera is attempted independently for each of its channels:
// absent frames and channels are omitted silently, decode failures are
// collected and returned alongside whatever did load, so one camera's
// corrupt data never hides another camera's images.
func (c *CameraDataReader) InputData(index int) (FrameInput, error) {
	input := make(FrameInput)
	var decodeErrs []error

	for camera, cfg := range c.data.Initial().Cameras {
		channels := []core.Channel{core.ChannelGrayscale}
		if cfg.UseSemantic {
			channels = append(channels, core.ChannelSemantic)
		}
		for _, channel := range channels {
			img, err := c.Image(camera, index, channel)
			if err != nil {
				if errors.Is(err, core.ErrImageNotFound) || errors.Is(err, core.ErrFrameNotFound) || errors.Is(err, core.ErrNotFound) {
					continue
				}
				c.log.Warn().Err(err).Str("camera", camera).Int("frame", index).Msg("image decode failed")
				decodeErrs = append(decodeErrs, err)
				continue
			}
			if input[camera] == nil {
				input[camera] = make(map[core.Channel]image.Image)
			}
			input[camera][channel] = img
		}
	}
	return input, errors.Join(decodeErrs...)
}

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarloc/lacreplay/pkg/core"
)

func TestCameraDataReader_Cameras(t *testing.T) {
	reader := openReader(t, defaultFixture(t))
	assert.Equal(t, []string{"Back", "Front"}, reader.Cameras())
}

func TestCameraDataReader_Frame(t *testing.T) {
	reader := openReader(t, defaultFixture(t))

	row, err := reader.Frame("Front", 2)
	require.NoError(t, err)
	light, err := row.Float("light_intensity")
	require.NoError(t, err)
	assert.Equal(t, 0.9, light)

	// Frame 1 is in the global table but Front skipped it: expected
	// absence, not an anomaly.
	_, err = reader.Frame("Front", 1)
	assert.ErrorIs(t, err, core.ErrFrameNotFound)

	_, err = reader.Frame("Nonexistent", 0)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrFrameNotFound)
}

func TestCameraDataReader_FrameAtOrBefore(t *testing.T) {
	reader := openReader(t, defaultFixture(t))

	row, err := reader.FrameAtOrBefore("Front", 1)
	require.NoError(t, err)
	frame, err := row.Int("frame")
	require.NoError(t, err)
	assert.Equal(t, 0, frame, "frame 1 falls back to the row at frame 0")

	_, err = reader.FrameAtOrBefore("Front", -1)
	assert.ErrorIs(t, err, core.ErrFrameNotFound)
}

func TestCameraDataReader_Image(t *testing.T) {
	reader := openReader(t, defaultFixture(t))

	img, err := reader.Image("Front", 2, core.ChannelGrayscale)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	// Decoding is idempotent: a second call yields the same pixels.
	again, err := reader.Image("Front", 2, core.ChannelGrayscale)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), again.Bounds())
	assert.Equal(t, img.At(0, 0), again.At(0, 0))

	sem, err := reader.Image("Front", 0, core.ChannelSemantic)
	require.NoError(t, err)
	assert.NotNil(t, sem)
}

func TestCameraDataReader_Image_Absence(t *testing.T) {
	reader := openReader(t, defaultFixture(t))

	// No camera row at this frame.
	_, err := reader.Image("Front", 1, core.ChannelGrayscale)
	assert.ErrorIs(t, err, core.ErrImageNotFound)

	// Semantic never recorded for Back.
	_, err = reader.Image("Back", 0, core.ChannelSemantic)
	assert.ErrorIs(t, err, core.ErrImageNotFound)

	_, err = reader.Image("Front", 0, "thermal")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCameraDataReader_Image_CorruptIsDecodeError(t *testing.T) {
	f := defaultFixture(t)
	front := f.cameras["Front"]
	front.images["grayscale/Front_grayscale_2.png"] = []byte("definitely not a png")
	f.cameras["Front"] = front

	reader := openReader(t, f)

	_, err := reader.Image("Front", 2, core.ChannelGrayscale)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDecode)
	assert.NotErrorIs(t, err, core.ErrImageNotFound, "corruption and absence are distinct")
}

func TestCameraDataReader_InputData(t *testing.T) {
	reader := openReader(t, defaultFixture(t))

	input, err := reader.InputData(2)
	require.NoError(t, err)

	require.Contains(t, input, "Front")
	assert.Contains(t, input["Front"], core.ChannelGrayscale)
	assert.Contains(t, input["Front"], core.ChannelSemantic)

	require.Contains(t, input, "Back")
	assert.Contains(t, input["Back"], core.ChannelGrayscale)
	assert.NotContains(t, input["Back"], core.ChannelSemantic)
}

func TestCameraDataReader_InputData_OmitsAbsentCameras(t *testing.T) {
	reader := openReader(t, defaultFixture(t))

	// Front has no row at frame 1; only Back contributes.
	input, err := reader.InputData(1)
	require.NoError(t, err)
	assert.NotContains(t, input, "Front")
	assert.Contains(t, input, "Back")
}

func TestCameraDataReader_InputData_IsolatesDecodeFailures(t *testing.T) {
	f := defaultFixture(t)
	dir := f.write(t)
	// Corrupt one of Front's assets after writing.
	corrupt := filepath.Join(dir, "cameras", "Front", "grayscale", "Front_grayscale_2.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0o644))

	reader := openReaderAt(t, dir)

	input, err := reader.InputData(2)
	require.Error(t, err, "decode corruption propagates")
	assert.ErrorIs(t, err, core.ErrDecode)

	// Back's data and Front's intact semantic channel still came through.
	assert.Contains(t, input, "Back")
	require.Contains(t, input, "Front")
	assert.Contains(t, input["Front"], core.ChannelSemantic)
	assert.NotContains(t, input["Front"], core.ChannelGrayscale)
}

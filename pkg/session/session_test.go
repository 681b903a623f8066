package session

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lunarloc/lacreplay/internal/archive"
)

// fixture describes a synthetic session archive for tests.
type fixture struct {
	initial string
	frames  string
	cameras map[string]cameraFixture
	customs map[string]string
}

type cameraFixture struct {
	table  string
	images map[string][]byte // channel/fileName -> payload
}

const testInitial = `fiducials = true
rover = [1.0, 2.0, 0.5, 0.0, 0.0, 1.57]
lander = [0.0, 0.0, 0.0, 0.0, 0.0, 0.0]

[cameras.Front]
use_semantic = true
light_intensity = 0.8

[cameras.Back]
use_semantic = false
light_intensity = 0.2
`

// pngBytes encodes a tiny solid-color PNG.
func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// write materializes the fixture under a temp dir and returns its root.
func (f fixture) write(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "initial.toml"), []byte(f.initial), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.toml"), []byte("sim_version = \"1.0\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frames.csv"), []byte(f.frames), 0o644))

	for camera, cf := range f.cameras {
		camDir := filepath.Join(dir, "cameras", camera)
		require.NoError(t, os.MkdirAll(camDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(camDir, camera+"_frames.csv"), []byte(cf.table), 0o644))
		for rel, payload := range cf.images {
			path := filepath.Join(camDir, filepath.FromSlash(rel))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, payload, 0o644))
		}
	}
	for name, data := range f.customs {
		path := filepath.Join(dir, "custom", name+".csv")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
	return dir
}

// defaultFixture builds the archive used across reader tests: frames
// [0,1,2], camera Front with rows at [0,2] only, camera Back at [0,1,2]
// without semantic, one custom table.
func defaultFixture(t *testing.T) fixture {
	return fixture{
		initial: testInitial,
		frames: "frame,mission_time,power,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z," +
			"linear_speed,angular_speed,cover_angle,x,y,z,roll,pitch,yaw\n" +
			"0,0.0,100,0.1,0.2,9.8,0.01,0.02,0.03,0.5,0.1,0.0,1.0,2.0,0.5,0.0,0.0,1.57\n" +
			"1,0.1,99.5,0.1,0.2,9.8,0.01,0.02,0.03,0.6,0.1,0.0,1.1,2.1,0.5,0.0,0.0,1.60\n" +
			"2,0.2,99.0,0.1,0.2,9.8,0.01,0.02,0.03,0.7,0.1,5.0,1.2,2.2,0.5,0.0,0.0,1.63\n",
		cameras: map[string]cameraFixture{
			"Front": {
				table: "frame,enable,light_intensity,grayscale,semantic," +
					"camera_x,camera_y,camera_z,camera_roll,camera_pitch,camera_yaw\n" +
					"0,True,0.8,Front_grayscale_0.png,Front_semantic_0.png,0.1,0.0,0.3,0.0,0.0,0.0\n" +
					"2,True,0.9,Front_grayscale_2.png,Front_semantic_2.png,0.1,0.0,0.3,0.0,0.1,0.0\n",
				images: map[string][]byte{
					"grayscale/Front_grayscale_0.png": pngBytes(t, color.Gray{Y: 10}),
					"grayscale/Front_grayscale_2.png": pngBytes(t, color.Gray{Y: 20}),
					"semantic/Front_semantic_0.png":   pngBytes(t, color.RGBA{R: 255, A: 255}),
					"semantic/Front_semantic_2.png":   pngBytes(t, color.RGBA{G: 255, A: 255}),
				},
			},
			"Back": {
				table: "frame,enable,light_intensity,grayscale\n" +
					"0,True,0.2,Back_grayscale_0.png\n" +
					"1,True,0.2,Back_grayscale_1.png\n" +
					"2,False,0.2,Back_grayscale_2.png\n",
				images: map[string][]byte{
					"grayscale/Back_grayscale_0.png": pngBytes(t, color.Gray{Y: 30}),
					"grayscale/Back_grayscale_1.png": pngBytes(t, color.Gray{Y: 40}),
					"grayscale/Back_grayscale_2.png": pngBytes(t, color.Gray{Y: 50}),
				},
			},
		},
		customs: map[string]string{
			"odometry": "step,dist\n0,0.0\n1,0.12\n",
		},
	}
}

// openReader opens a store over the fixture and returns a loaded
// CameraDataReader. The store is closed via test cleanup.
func openReader(t *testing.T, f fixture) *CameraDataReader {
	t.Helper()
	return openReaderAt(t, f.write(t))
}

// openReaderAt is openReader over an already materialized session root.
func openReaderAt(t *testing.T, dir string) *CameraDataReader {
	t.Helper()
	store, err := archive.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reader := NewCameraDataReader(store, zerolog.Nop())
	require.NoError(t, reader.Load())
	return reader
}

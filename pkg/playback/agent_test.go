package playback

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarloc/lacreplay/pkg/core"
)

const agentInitial = `fiducials = false
rover = [1.0, 2.0, 0.5, 0.0, 0.0, 1.57]
lander = [0.0, 0.0, 0.0, 0.1, 0.2, 0.3]

[cameras.Front]
use_semantic = true
light_intensity = 0.8

[cameras.Spare]
use_semantic = false
light_intensity = 0.4
`

// frames [0,1,2]; camera Front has rows only at [0,2]; camera Spare never
// produced data at all.
func writeAgentArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 2, 2))))
	sem := bytes.Buffer{}
	require.NoError(t, png.Encode(&sem, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	files := map[string][]byte{
		"initial.toml":  []byte(agentInitial),
		"metadata.toml": []byte("sim_version = \"1.0\"\n"),
		"frames.csv": []byte("frame,mission_time,power,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z," +
			"linear_speed,angular_speed,cover_angle,x,y,z,roll,pitch,yaw\n" +
			"0,0.0,100,0.1,0.2,9.8,0.01,0.02,0.03,0.5,0.1,0.0,1.0,2.0,0.5,0.0,0.0,1.57\n" +
			"1,0.1,99.5,0.1,0.2,9.8,0.01,0.02,0.03,0.6,0.1,0.0,1.1,2.1,0.5,0.0,0.0,1.60\n" +
			"2,0.2,99.0,0.1,0.2,9.8,0.01,0.02,0.03,0.7,0.2,5.0,1.2,2.2,0.5,0.0,0.0,1.63\n"),
		"cameras/Front/Front_frames.csv": []byte("frame,enable,light_intensity,grayscale,semantic," +
			"camera_x,camera_y,camera_z,camera_roll,camera_pitch,camera_yaw\n" +
			"0,True,0.8,Front_grayscale_0.png,Front_semantic_0.png,0.1,0.0,0.3,0.0,0.0,0.0\n" +
			"2,True,0.9,Front_grayscale_2.png,Front_semantic_2.png,0.1,0.0,0.3,0.0,0.1,0.0\n"),
		"cameras/Front/grayscale/Front_grayscale_0.png": img.Bytes(),
		"cameras/Front/grayscale/Front_grayscale_2.png": img.Bytes(),
		"cameras/Front/semantic/Front_semantic_0.png":   sem.Bytes(),
		"cameras/Front/semantic/Front_semantic_2.png":   sem.Bytes(),
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

func openAgent(t *testing.T) *Agent {
	t.Helper()
	agent, err := Open(writeAgentArchive(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { agent.Close() })
	return agent
}

func TestOpen_StartsAtFirstFrame(t *testing.T) {
	agent := openAgent(t)
	assert.Equal(t, 0, agent.Frame())
	assert.False(t, agent.AtEnd())
}

func TestAgent_SetFrame(t *testing.T) {
	agent := openAgent(t)

	require.NoError(t, agent.SetFrame(2))
	assert.Equal(t, 2, agent.Frame())

	// Idempotent: repeating the jump leaves identical state.
	require.NoError(t, agent.SetFrame(2))
	assert.Equal(t, 2, agent.Frame())
	mt, err := agent.MissionTime()
	require.NoError(t, err)
	assert.Equal(t, 0.2, mt)
}

func TestAgent_SetFrame_OutOfRange(t *testing.T) {
	agent := openAgent(t)

	for _, index := range []int{-1, 3, 99} {
		err := agent.SetFrame(index)
		require.Error(t, err, "index %d", index)
		assert.ErrorIs(t, err, core.ErrOutOfRange)
	}
	// A failed jump leaves the cursor untouched.
	assert.Equal(t, 0, agent.Frame())
}

func TestAgent_StepFrame_ReachesEnd(t *testing.T) {
	agent := openAgent(t)

	// Three distinct frames: exactly two steps to the end.
	steps := 0
	for !agent.AtEnd() {
		agent.StepFrame()
		steps++
		require.LessOrEqual(t, steps, 10, "runaway stepping loop")
	}
	assert.Equal(t, 2, steps)
	assert.Equal(t, 2, agent.Frame())

	// Stepping past the end is a no-op, not an error.
	assert.Equal(t, 2, agent.StepFrame())
	assert.Equal(t, 2, agent.Frame())
	assert.True(t, agent.AtEnd())
}

func TestAgent_CursorDelegationIsExact(t *testing.T) {
	agent := openAgent(t)

	require.NoError(t, agent.SetFrame(1))
	mt, err := agent.MissionTime()
	require.NoError(t, err)
	assert.Equal(t, 0.1, mt)

	pose, err := agent.Pose()
	require.NoError(t, err)
	assert.Equal(t, 1.1, pose.Position.X)
	assert.Equal(t, 1.60, pose.Rotation.Yaw)

	imu, err := agent.IMUData()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 9.8, 0.01, 0.02, 0.03}, imu)

	power, err := agent.CurrentPower()
	require.NoError(t, err)
	assert.Equal(t, 99.5, power)

	speed, err := agent.LinearSpeed()
	require.NoError(t, err)
	assert.Equal(t, 0.6, speed)
}

func TestAgent_InputData_FollowsCursor(t *testing.T) {
	agent := openAgent(t)

	// Front skipped frame 1: its entry is absent, no error raised.
	require.NoError(t, agent.SetFrame(1))
	input, err := agent.InputData()
	require.NoError(t, err)
	assert.NotContains(t, input, "Front")

	require.NoError(t, agent.SetFrame(2))
	input, err = agent.InputData()
	require.NoError(t, err)
	require.Contains(t, input, "Front")
	assert.Contains(t, input["Front"], core.ChannelGrayscale)
	assert.Contains(t, input["Front"], core.ChannelSemantic)
}

func TestAgent_InitialAccessors(t *testing.T) {
	agent := openAgent(t)

	assert.False(t, agent.UseFiducials())

	sensors := agent.Sensors()
	require.Contains(t, sensors, "Front")
	assert.True(t, sensors["Front"].UseSemantic)

	pos := agent.InitialPosition()
	assert.Equal(t, core.Position3D{X: 1.0, Y: 2.0, Z: 0.5}, pos.Position)
	assert.Equal(t, 1.57, pos.Rotation.Yaw)

	lander := agent.InitialLanderPosition()
	assert.Equal(t, 0.3, lander.Rotation.Yaw)
}

func TestAgent_CameraAccessors(t *testing.T) {
	agent := openAgent(t)

	// Frame 1: Front's state holds from its row at frame 0.
	require.NoError(t, agent.SetFrame(1))
	assert.True(t, agent.CameraState("Front"))
	assert.Equal(t, 0.8, agent.LightState("Front"))
	assert.Equal(t, 0.1, agent.CameraPose("Front").Position.X)

	require.NoError(t, agent.SetFrame(2))
	assert.Equal(t, 0.9, agent.LightState("Front"))
	assert.Equal(t, 0.1, agent.CameraPose("Front").Rotation.Pitch)
}

func TestAgent_CameraAccessors_NeverEnabledCamera(t *testing.T) {
	agent := openAgent(t)

	// Spare is declared but produced no table: accessors fall back.
	assert.False(t, agent.CameraState("Spare"))
	assert.Equal(t, 0.4, agent.LightState("Spare"), "initial config intensity")
	assert.Equal(t, core.Transform{}, agent.CameraPose("Spare"))
}

func TestAgent_TelemetryConformance(t *testing.T) {
	// The agent shims the host's query surface structurally.
	var telemetry Telemetry = openAgent(t)
	assert.NotNil(t, telemetry)
}

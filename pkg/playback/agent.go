// Package playback replays a recorded LAC traverse through the query
// surface a live agent exposes to the simulation host. The only mutable
// state in the whole reader stack is the agent's frame cursor.
package playback

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lunarloc/lacreplay/internal/archive"
	"github.com/lunarloc/lacreplay/internal/table"
	"github.com/lunarloc/lacreplay/pkg/core"
	"github.com/lunarloc/lacreplay/pkg/session"
)

// Telemetry is the query surface the simulation host expects from an
// agent, live or replayed. *Agent satisfies it structurally; no host type
// is extended.
type Telemetry interface {
	InputData() (session.FrameInput, error)
	IMUData() ([]float64, error)
	MissionTime() (float64, error)
	CurrentPower() (float64, error)
	LinearSpeed() (float64, error)
	AngularSpeed() (float64, error)
	RadiatorCoverAngle() (float64, error)
	Pose() (core.Transform, error)
	LightState(camera string) float64
	CameraState(camera string) bool
	CameraPose(camera string) core.Transform
	UseFiducials() bool
	Sensors() map[string]core.CameraConfig
	InitialPosition() core.Transform
	InitialLanderPosition() core.Transform
}

// Agent is a stateful cursor over a CameraDataReader. The cursor ranges
// over the global frame table's index set; it is advanced only by explicit
// SetFrame/StepFrame calls, never by any background process.
type Agent struct {
	store   *archive.Store // owned when constructed via Open, nil otherwise
	cameras *session.CameraDataReader
	data    *session.FrameDataReader
	log     zerolog.Logger

	frame    int
	row      table.Row
	maxFrame int
}

var _ Telemetry = (*Agent)(nil)

// NewAgent creates an agent over a loaded CameraDataReader, positioned at
// the session's first frame. A session with an empty global frame table
// cannot be replayed and fails with core.ErrNotFound.
func NewAgent(cameras *session.CameraDataReader, log zerolog.Logger) (*Agent, error) {
	data := cameras.FrameData()

	min, ok := data.Frames().MinFrame()
	if !ok {
		return nil, fmt.Errorf("session has no frames: %w", core.ErrNotFound)
	}
	max, _ := data.Frames().MaxFrame()

	row, err := data.Frame(min)
	if err != nil {
		return nil, err
	}

	return &Agent{
		cameras:  cameras,
		data:     data,
		log:      log,
		frame:    min,
		row:      row,
		maxFrame: max,
	}, nil
}

// Open opens an archive (extracted directory or packed .tar.gz), loads its
// tables and returns an agent positioned at the first frame. Close releases
// the underlying store.
func Open(path string, log zerolog.Logger) (*Agent, error) {
	store, err := archive.Open(path)
	if err != nil {
		return nil, err
	}

	cameras := session.NewCameraDataReader(store, log)
	if err := cameras.Load(); err != nil {
		store.Close()
		return nil, err
	}

	agent, err := NewAgent(cameras, log)
	if err != nil {
		store.Close()
		return nil, err
	}
	agent.store = store
	return agent, nil
}

// Close releases the underlying archive store when the agent owns one.
func (a *Agent) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Frame returns the cursor's current frame index.
func (a *Agent) Frame() int {
	return a.frame
}

// SetFrame jumps the cursor to an exact frame index. An index not present
// in the global frame table fails with core.ErrOutOfRange; there is no
// snapping, downstream per-camera lookups depend on exact index matching.
func (a *Agent) SetFrame(index int) error {
	row, ok := a.data.Frames().Frame(index)
	if !ok {
		return fmt.Errorf("frame %d: %w", index, core.ErrOutOfRange)
	}
	a.frame = index
	a.row = row
	return nil
}

// StepFrame advances the cursor to the next frame index in ascending
// order and returns the new index. At the last frame the cursor stays put
// and the unchanged index is returned; callers polling in a loop terminate
// via AtEnd, not error handling.
func (a *Agent) StepFrame() int {
	next := a.data.Frames().NextFrame(a.frame)
	if next != a.frame {
		if row, ok := a.data.Frames().Frame(next); ok {
			a.frame = next
			a.row = row
		}
	}
	return a.frame
}

// AtEnd reports whether the cursor sits on the session's last frame.
func (a *Agent) AtEnd() bool {
	return a.frame == a.maxFrame
}

// InputData returns the per-camera image bundle at the current frame.
func (a *Agent) InputData() (session.FrameInput, error) {
	return a.cameras.InputData(a.frame)
}

// UseFiducials reports whether the session was recorded with fiducial
// markers enabled.
func (a *Agent) UseFiducials() bool {
	return a.data.Initial().Fiducials
}

// Sensors returns the per-camera configuration of the session.
func (a *Agent) Sensors() map[string]core.CameraConfig {
	return a.data.Initial().Cameras
}

// InitialPosition returns the rover's starting pose.
func (a *Agent) InitialPosition() core.Transform {
	return core.TransformFromSlice(a.data.Initial().Rover)
}

// InitialLanderPosition returns the lander's pose.
func (a *Agent) InitialLanderPosition() core.Transform {
	return core.TransformFromSlice(a.data.Initial().Lander)
}

// MissionTime returns the simulation time at the current frame.
func (a *Agent) MissionTime() (float64, error) {
	return a.row.Float("mission_time")
}

// CurrentPower returns the rover's battery charge at the current frame.
func (a *Agent) CurrentPower() (float64, error) {
	return a.row.Float("power")
}

// IMUData returns the six IMU readings at the current frame: accelerometer
// x/y/z then gyroscope x/y/z.
func (a *Agent) IMUData() ([]float64, error) {
	cols := []string{"accel_x", "accel_y", "accel_z", "gyro_x", "gyro_y", "gyro_z"}
	data := make([]float64, 0, len(cols))
	for _, col := range cols {
		v, err := a.row.Float(col)
		if err != nil {
			return nil, err
		}
		data = append(data, v)
	}
	return data, nil
}

// LinearSpeed returns the rover's linear speed at the current frame.
func (a *Agent) LinearSpeed() (float64, error) {
	return a.row.Float("linear_speed")
}

// AngularSpeed returns the rover's angular speed at the current frame.
func (a *Agent) AngularSpeed() (float64, error) {
	return a.row.Float("angular_speed")
}

// RadiatorCoverAngle returns the radiator cover angle at the current frame.
func (a *Agent) RadiatorCoverAngle() (float64, error) {
	return a.row.Float("cover_angle")
}

// Pose returns the rover's ground-truth transform at the current frame.
func (a *Agent) Pose() (core.Transform, error) {
	var t core.Transform
	var err error
	if t.Position.X, err = a.row.Float("x"); err != nil {
		return core.Transform{}, err
	}
	if t.Position.Y, err = a.row.Float("y"); err != nil {
		return core.Transform{}, err
	}
	if t.Position.Z, err = a.row.Float("z"); err != nil {
		return core.Transform{}, err
	}
	if t.Rotation.Roll, err = a.row.Float("roll"); err != nil {
		return core.Transform{}, err
	}
	if t.Rotation.Pitch, err = a.row.Float("pitch"); err != nil {
		return core.Transform{}, err
	}
	if t.Rotation.Yaw, err = a.row.Float("yaw"); err != nil {
		return core.Transform{}, err
	}
	return t, nil
}

// cameraRow returns the camera's state row as of the current frame.
func (a *Agent) cameraRow(camera string) (table.Row, bool) {
	row, err := a.cameras.FrameAtOrBefore(camera, a.frame)
	if err != nil {
		return nil, false
	}
	return row, true
}

// LightState returns the camera's light intensity as of the current frame.
// A camera that never produced rows reports its configured initial
// intensity.
func (a *Agent) LightState(camera string) float64 {
	if row, ok := a.cameraRow(camera); ok {
		if v, err := row.Float("light_intensity"); err == nil {
			return v
		}
	}
	return a.data.Initial().Cameras[camera].LightIntensity
}

// CameraState reports whether the camera is enabled as of the current
// frame. A camera with no data yet is off.
func (a *Agent) CameraState(camera string) bool {
	row, ok := a.cameraRow(camera)
	if !ok {
		return false
	}
	enabled, err := row.Bool("enable")
	if err != nil {
		return false
	}
	return enabled
}

// CameraPose returns the camera's mount transform as of the current frame,
// or the identity transform when the camera has no data yet.
func (a *Agent) CameraPose(camera string) core.Transform {
	row, ok := a.cameraRow(camera)
	if !ok {
		return core.Transform{}
	}
	var t core.Transform
	var err error
	if t.Position.X, err = row.Float("camera_x"); err != nil {
		return core.Transform{}
	}
	if t.Position.Y, err = row.Float("camera_y"); err != nil {
		return core.Transform{}
	}
	if t.Position.Z, err = row.Float("camera_z"); err != nil {
		return core.Transform{}
	}
	if t.Rotation.Roll, err = row.Float("camera_roll"); err != nil {
		return core.Transform{}
	}
	if t.Rotation.Pitch, err = row.Float("camera_pitch"); err != nil {
		return core.Transform{}
	}
	if t.Rotation.Yaw, err = row.Float("camera_yaw"); err != nil {
		return core.Transform{}
	}
	return t
}

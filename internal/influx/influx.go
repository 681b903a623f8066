// Package influx publishes replayed traverse telemetry to InfluxDB so a
// recorded session can be inspected on the same dashboards a live run
// feeds.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/lunarloc/lacreplay/pkg/core"
)

// Manager handles the InfluxDB connection and asynchronous writes.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Bucket  string
	Logger  zerolog.Logger
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
	}
}

// Connect establishes a connection to InfluxDB using the influx.* keys of
// the tool configuration.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		return fmt.Errorf("failed to reach InfluxDB: %v", err)
	}

	m.Bucket = viper.GetString("influx.bucket")
	m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), m.Bucket)
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.Bucket).Msg("InfluxDB client initialized")
	return nil
}

// WriteFrameState publishes one frame's telemetry. sessionTag identifies
// the replayed archive so multiple replays can share a bucket. Writes are
// batched by the client; Close flushes the tail.
func (m *Manager) WriteFrameState(sessionTag string, fs *core.FrameState) {
	if !m.IsValid {
		return
	}

	p := influxdb2.NewPointWithMeasurement("traverse_frame").
		AddTag("session", sessionTag).
		AddField("frame", fs.Frame).
		AddField("mission_time", fs.MissionTime).
		AddField("x", fs.Position.X).
		AddField("y", fs.Position.Y).
		AddField("z", fs.Position.Z).
		AddField("roll", fs.Rotation.Roll).
		AddField("pitch", fs.Rotation.Pitch).
		AddField("yaw", fs.Rotation.Yaw).
		AddField("accel_x", fs.AccelX).
		AddField("accel_y", fs.AccelY).
		AddField("accel_z", fs.AccelZ).
		AddField("gyro_x", fs.GyroX).
		AddField("gyro_y", fs.GyroY).
		AddField("gyro_z", fs.GyroZ).
		AddField("power", fs.Power).
		AddField("linear_speed", fs.LinearSpeed).
		AddField("angular_speed", fs.AngularSpeed).
		SetTime(time.Now())

	m.Writer.WritePoint(p)
}

// Close flushes pending writes and shuts the client down.
func (m *Manager) Close() {
	if m.Client == nil {
		return
	}
	if m.Writer != nil {
		m.Writer.Flush()
	}
	m.Client.Close()
	m.IsValid = false
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"

	"github.com/lunarloc/lacreplay/internal/archive"
	"github.com/lunarloc/lacreplay/internal/config"
	"github.com/lunarloc/lacreplay/internal/influx"
	"github.com/lunarloc/lacreplay/internal/logging"
	intOtel "github.com/lunarloc/lacreplay/internal/otel"
	"github.com/lunarloc/lacreplay/internal/storage"
	"github.com/lunarloc/lacreplay/internal/table"
	"github.com/lunarloc/lacreplay/internal/traverse"
	"github.com/lunarloc/lacreplay/pkg/core"
	"github.com/lunarloc/lacreplay/pkg/playback"
	"github.com/lunarloc/lacreplay/pkg/session"
)

// openSession opens an archive and loads its tables. The caller closes the
// returned store.
func openSession(path string) (*archive.Store, *session.CameraDataReader, error) {
	store, err := archive.Open(path)
	if err != nil {
		return nil, nil, err
	}
	cameras := session.NewCameraDataReader(store, Logger)
	if err := cameras.Load(); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, cameras, nil
}

// runInfo summarizes an archive: frame range, cameras, custom tables and
// the traverse ground-track length.
func runInfo(path string) error {
	store, cameras, err := openSession(path)
	if err != nil {
		return err
	}
	defer store.Close()

	data := cameras.FrameData()
	frames := data.Frames()

	fmt.Printf("archive: %s\n", path)
	fmt.Printf("frames:  %d", frames.Len())
	if min, ok := frames.MinFrame(); ok {
		max, _ := frames.MaxFrame()
		fmt.Printf(" (index %d..%d)", min, max)
	}
	fmt.Println()

	fmt.Printf("fiducials: %v\n", data.Initial().Fiducials)
	fmt.Printf("rover:     %v\n", data.Initial().Rover)
	fmt.Printf("lander:    %v\n", data.Initial().Lander)

	fmt.Printf("cameras (%d):\n", len(data.Initial().Cameras))
	for _, name := range data.Initial().CameraNames() {
		cfg := data.Initial().Cameras[name]
		rows := 0
		if tbl, ok := data.CameraFrames()[name]; ok {
			rows = tbl.Len()
		}
		fmt.Printf("  %-12s %dx%d semantic=%v rows=%d\n",
			name, cfg.Width, cfg.Height, cfg.UseSemantic, rows)
	}

	customs := store.Customs()
	fmt.Printf("custom tables (%d):\n", len(customs))
	for _, name := range customs {
		tbl, err := data.Custom(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-12s rows=%d\n", name, tbl.Len())
	}

	if ls, err := traverse.Path(frames); err == nil {
		fmt.Printf("path length: %.3f\n", traverse.Length(ls))
	} else if !errors.Is(err, traverse.ErrTooShort) {
		Logger.Warn().Err(err).Msg("could not derive traverse path")
	}

	if len(data.Metadata()) > 0 {
		out, _ := json.MarshalIndent(data.Metadata(), "", "  ")
		fmt.Printf("metadata: %s\n", out)
	}
	return nil
}

// runReplay steps an agent through every frame of the archive, publishing
// per-frame telemetry to InfluxDB and replay counters to the metrics sink
// when those are enabled.
func runReplay(path string) error {
	agent, err := playback.Open(path, Logger)
	if err != nil {
		return err
	}
	defer agent.Close()

	influxMgr := influx.NewManager(Logger)
	if viper.GetBool("influx.enabled") {
		if err := influxMgr.Connect(); err != nil {
			Logger.Warn().Err(err).Msg("InfluxDB unavailable, telemetry will not be published")
		}
		defer influxMgr.Close()
	}

	otelProvider, metricsFile, err := newMetricsProvider()
	if err != nil {
		return err
	}
	if metricsFile != nil {
		defer metricsFile.Close()
	}
	defer otelProvider.Shutdown(context.Background())

	meter := otelProvider.Meter("lacreplay/replay")
	framesReplayed, _ := meter.Int64Counter("replay.frames",
		metric.WithDescription("Frames stepped through during replay"))
	imagesDecoded, _ := meter.Int64Counter("replay.images_decoded",
		metric.WithDescription("Image assets decoded during replay"))
	decodeFailures, _ := meter.Int64Counter("replay.decode_failures",
		metric.WithDescription("Image assets that failed to decode"))

	ctx := context.Background()
	sessionTag := path

	for {
		frame := agent.Frame()

		fs, err := frameState(frame, agent)
		if err != nil {
			Logger.Warn().Err(err).Int("frame", frame).Msg("incomplete frame telemetry")
		} else {
			influxMgr.WriteFrameState(sessionTag, fs)
		}

		input, err := agent.InputData()
		if err != nil {
			Logger.Warn().Err(err).Int("frame", frame).Msg("image decode failures at frame")
			decodeFailures.Add(ctx, decodeFailureCount(err))
		}
		for _, channels := range input {
			imagesDecoded.Add(ctx, int64(len(channels)))
		}

		framesReplayed.Add(ctx, 1)

		if agent.AtEnd() {
			break
		}
		agent.StepFrame()
	}

	if err := otelProvider.Flush(context.Background()); err != nil {
		Logger.Warn().Err(err).Msg("metric flush failed")
	}
	Logger.Info().Str("archive", path).Msg("replay complete")
	return nil
}

// decodeFailureCount reports how many individual asset failures err
// carries. InputData joins per-asset decode errors into one error.
func decodeFailureCount(err error) int64 {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return int64(len(joined.Unwrap()))
	}
	return 1
}

// newMetricsProvider builds the OTel provider from the metrics.* config
// keys. When metrics are disabled it returns a no-op provider and a nil
// file.
func newMetricsProvider() (*intOtel.Provider, *os.File, error) {
	cfg := intOtel.Config{
		Enabled:     viper.GetBool("metrics.enabled"),
		ServiceName: "lacreplay",
	}
	if !cfg.Enabled {
		p, err := intOtel.New(cfg)
		return p, nil, err
	}

	metricsPath := logging.LogFilePath(viper.GetString("logsDir"), "lacreplay.metrics", sessionStart)
	f, err := os.OpenFile(metricsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metrics file %s: %v", metricsPath, err)
	}
	cfg.MetricWriter = f

	p, err := intOtel.New(cfg)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return p, f, nil
}

// runExport replays the archive's tables into the configured database
// backend: one session row plus flattened frame, camera and custom rows.
func runExport(path string) error {
	store, cameras, err := openSession(path)
	if err != nil {
		return err
	}
	defer store.Close()

	data := cameras.FrameData()
	frames := data.Frames()

	backend, err := storage.NewBackend(config.Storage(), Logger)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return err
	}
	defer backend.Close()

	initialJSON, err := json.Marshal(data.Initial().Raw)
	if err != nil {
		return fmt.Errorf("failed to encode initial record: %w", err)
	}

	rec := &core.SessionRecord{
		ArchivePath: path,
		Initial:     initialJSON,
		FrameCount:  frames.Len(),
	}
	if ls, err := traverse.Path(frames); err == nil {
		rec.PathLength = traverse.Length(ls)
		if poly, err := traverse.EncodePolyline(ls); err == nil {
			rec.Polyline = poly
		}
	}

	if err := backend.BeginSession(rec); err != nil {
		return err
	}

	for _, index := range frames.Frames() {
		row, ok := frames.Frame(index)
		if !ok {
			continue
		}
		fs, err := frameStateFromRow(index, row)
		if err != nil {
			Logger.Warn().Err(err).Int("frame", index).Msg("skipping incomplete frame row")
			continue
		}
		if err := backend.RecordFrameState(fs); err != nil {
			return err
		}
	}

	for camera, tbl := range data.CameraFrames() {
		for _, index := range tbl.Frames() {
			row, ok := tbl.Frame(index)
			if !ok {
				continue
			}
			if err := backend.RecordCameraState(cameraStateFromRow(camera, index, row)); err != nil {
				return err
			}
		}
	}

	for _, name := range store.Customs() {
		tbl, err := data.Custom(name)
		if err != nil {
			continue
		}
		rows := make([]*core.CustomRow, 0, tbl.Len())
		for pos := 0; pos < tbl.Len(); pos++ {
			row, ok := tbl.Row(pos)
			if !ok {
				continue
			}
			payload, err := json.Marshal(row)
			if err != nil {
				continue
			}
			rows = append(rows, &core.CustomRow{
				Name:     name,
				Position: pos,
				Data:     payload,
			})
		}
		if err := backend.RecordCustomRows(rows); err != nil {
			return err
		}
	}

	if err := backend.EndSession(); err != nil {
		return err
	}

	Logger.Info().
		Str("archive", path).
		Uint("session", rec.ID).
		Int("frames", rec.FrameCount).
		Msg("export complete")
	return nil
}

// frameState flattens the agent's current-frame telemetry into a record.
func frameState(frame int, agent *playback.Agent) (*core.FrameState, error) {
	fs := &core.FrameState{Frame: frame}
	var err error

	if fs.MissionTime, err = agent.MissionTime(); err != nil {
		return nil, err
	}
	pose, err := agent.Pose()
	if err != nil {
		return nil, err
	}
	fs.Position = pose.Position
	fs.Rotation = pose.Rotation

	imu, err := agent.IMUData()
	if err != nil {
		return nil, err
	}
	fs.AccelX, fs.AccelY, fs.AccelZ = imu[0], imu[1], imu[2]
	fs.GyroX, fs.GyroY, fs.GyroZ = imu[3], imu[4], imu[5]

	if fs.Power, err = agent.CurrentPower(); err != nil {
		return nil, err
	}
	if fs.LinearSpeed, err = agent.LinearSpeed(); err != nil {
		return nil, err
	}
	if fs.AngularSpeed, err = agent.AngularSpeed(); err != nil {
		return nil, err
	}
	if fs.CoverAngle, err = agent.RadiatorCoverAngle(); err != nil {
		return nil, err
	}
	return fs, nil
}

// frameStateFromRow flattens one global frame table row into a record.
func frameStateFromRow(index int, row table.Row) (*core.FrameState, error) {
	fs := &core.FrameState{Frame: index}

	floats := []struct {
		col string
		dst *float64
	}{
		{"mission_time", &fs.MissionTime},
		{"x", &fs.Position.X},
		{"y", &fs.Position.Y},
		{"z", &fs.Position.Z},
		{"roll", &fs.Rotation.Roll},
		{"pitch", &fs.Rotation.Pitch},
		{"yaw", &fs.Rotation.Yaw},
		{"accel_x", &fs.AccelX},
		{"accel_y", &fs.AccelY},
		{"accel_z", &fs.AccelZ},
		{"gyro_x", &fs.GyroX},
		{"gyro_y", &fs.GyroY},
		{"gyro_z", &fs.GyroZ},
		{"power", &fs.Power},
		{"linear_speed", &fs.LinearSpeed},
		{"angular_speed", &fs.AngularSpeed},
		{"cover_angle", &fs.CoverAngle},
	}
	for _, f := range floats {
		v, err := row.Float(f.col)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return fs, nil
}

// cameraStateFromRow flattens one per-camera table row into a record.
// Camera tables vary by recording configuration, so every column is
// optional here.
func cameraStateFromRow(camera string, index int, row table.Row) *core.CameraState {
	cs := &core.CameraState{Camera: camera, Frame: index}
	if enabled, err := row.Bool("enable"); err == nil {
		cs.Enabled = enabled
	}
	if light, err := row.Float("light_intensity"); err == nil {
		cs.Light = light
	}
	if name, err := row.String(string(core.ChannelGrayscale)); err == nil {
		cs.Grayscale = name
	}
	if name, err := row.String(string(core.ChannelSemantic)); err == nil {
		cs.Semantic = name
	}
	return cs
}

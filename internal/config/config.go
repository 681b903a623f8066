package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/lunarloc/lacreplay/pkg/core"
)

// requiredInitialKeys are the keys every initial record must carry.
var requiredInitialKeys = []string{"fiducials", "lander", "rover", "cameras"}

// LoadInitial parses the session's initial record (TOML). A missing file
// fails with core.ErrNotFound, a malformed or incomplete record with
// core.ErrParse; both are fatal at session-open time.
func LoadInitial(path string) (*core.Initial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("initial record %s: %w", path, core.ErrNotFound)
		}
		return nil, fmt.Errorf("initial record %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("initial record %s: %w: %v", path, core.ErrParse, err)
	}

	for _, key := range requiredInitialKeys {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("initial record %s: missing key %q: %w", path, key, core.ErrParse)
		}
	}

	rover, err := floatSlice(v.Get("rover"))
	if err != nil {
		return nil, fmt.Errorf("initial record %s: rover pose: %w: %v", path, core.ErrParse, err)
	}
	lander, err := floatSlice(v.Get("lander"))
	if err != nil {
		return nil, fmt.Errorf("initial record %s: lander pose: %w: %v", path, core.ErrParse, err)
	}

	// viper folds map keys to lower case. Camera names are the join key
	// into the archive's case-preserved directory names and per-camera
	// tables, so the cameras table and the raw view come from a
	// case-preserving TOML pass instead.
	var doc struct {
		Cameras map[string]core.CameraConfig `toml:"cameras"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("initial record %s: cameras: %w: %v", path, core.ErrParse, err)
	}

	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("initial record %s: %w: %v", path, core.ErrParse, err)
	}

	return &core.Initial{
		Fiducials: v.GetBool("fiducials"),
		Rover:     rover,
		Lander:    lander,
		Cameras:   doc.Cameras,
		Raw:       raw,
	}, nil
}

// LoadMetadata parses the session's metadata record (TOML). Metadata is an
// optional key-value store; callers decide how to treat a load failure.
func LoadMetadata(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("metadata record %s: %w: %v", path, core.ErrParse, err)
	}
	return v.AllSettings(), nil
}

// floatSlice converts a decoded TOML array into a float slice. TOML
// readers hand back []any with mixed int64/float64 elements.
func floatSlice(value any) ([]float64, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", value)
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		switch n := item.(type) {
		case float64:
			out = append(out, n)
		case float32:
			out = append(out, float64(n))
		case int64:
			out = append(out, float64(n))
		case int:
			out = append(out, float64(n))
		default:
			return nil, fmt.Errorf("element %d: expected a number, got %T", i, item)
		}
	}
	return out, nil
}

// StorageConfig selects and parameterizes a telemetry export backend.
type StorageConfig struct {
	Type       string // "sqlite" or "postgres"
	SqlitePath string
	Host       string
	Port       string
	Username   string
	Password   string
	Database   string
}

// LoadTool reads the CLI configuration file and sets default values.
// configDir is the directory containing lacreplay.cfg.json. A missing file
// leaves the defaults in place.
func LoadTool(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./laclogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "lac-telemetry")
	viper.SetDefault("influx.bucket", "traverse_data")

	viper.SetDefault("metrics.enabled", false)

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlitePath", "./lacreplay.db")
	viper.SetDefault("storage.db.host", "localhost")
	viper.SetDefault("storage.db.port", "5432")
	viper.SetDefault("storage.db.username", "postgres")
	viper.SetDefault("storage.db.password", "postgres")
	viper.SetDefault("storage.db.database", "lacreplay")

	viper.SetConfigName("lacreplay.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}
	return nil
}

// Storage returns the export backend settings from the tool configuration.
func Storage() StorageConfig {
	return StorageConfig{
		Type:       viper.GetString("storage.type"),
		SqlitePath: viper.GetString("storage.sqlitePath"),
		Host:       viper.GetString("storage.db.host"),
		Port:       viper.GetString("storage.db.port"),
		Username:   viper.GetString("storage.db.username"),
		Password:   viper.GetString("storage.db.password"),
		Database:   viper.GetString("storage.db.database"),
	}
}

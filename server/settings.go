package contour

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix for environment overrides, e.g. CONTOUR_ADDR
const EnvPrefix = "CONTOUR"

// Setting keys
const (
	KeyAddr          = "addr"
	KeyCharts        = "charts"
	KeyFrameInterval = "frame_interval"
	KeyFetchInterval = "fetch_interval"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
	KeyRecordFrames  = "record_frames"
	KeyRecordBatch   = "record_batch"
	KeyBadgerPath    = "badger_path"
	KeySVGDir        = "svg_dir"
	KeyOTel          = "otel"
)

var ErrInvalidSetting = errors.New("invalid setting")

// Settings for the long running commands
type Settings struct {
	Addr          string
	Charts        string // chart definitions file, empty for the demo charts
	FrameInterval time.Duration
	FetchInterval time.Duration
	LogLevel      string
	LogFormat     string
	RecordFrames  bool
	RecordBatch   int
	BadgerPath    string
	SVGDir        string
	OTel          string
}

// NewViper has every default set and reads CONTOUR_* from the environment
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyAddr, ":8090")
	v.SetDefault(KeyCharts, "")
	v.SetDefault(KeyFrameInterval, 50*time.Millisecond)
	v.SetDefault(KeyFetchInterval, 10*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyRecordFrames, false)
	v.SetDefault(KeyRecordBatch, 64)
	v.SetDefault(KeyBadgerPath, "./contour_frames")
	v.SetDefault(KeySVGDir, "")
	v.SetDefault(KeyOTel, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads an optional settings file into v and validates the result
func LoadSettings(v *viper.Viper, file string) (Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			slog.Error("Could not read settings", slog.String("file", file), slog.Any("Error", err))
			return Settings{}, err
		}
		slog.Info("Settings loaded", slog.String("file", v.ConfigFileUsed()))
	}

	s := Settings{
		Addr:          v.GetString(KeyAddr),
		Charts:        v.GetString(KeyCharts),
		FrameInterval: v.GetDuration(KeyFrameInterval),
		FetchInterval: v.GetDuration(KeyFetchInterval),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFormat:     v.GetString(KeyLogFormat),
		RecordFrames:  v.GetBool(KeyRecordFrames),
		RecordBatch:   v.GetInt(KeyRecordBatch),
		BadgerPath:    v.GetString(KeyBadgerPath),
		SVGDir:        v.GetString(KeySVGDir),
		OTel:          v.GetString(KeyOTel),
	}
	return s, s.Validate()
}

func (s Settings) Validate() error {
	if s.FrameInterval <= 0 {
		return fmt.Errorf("%s %v: %w", KeyFrameInterval, s.FrameInterval, ErrInvalidSetting)
	}
	if s.FetchInterval <= 0 {
		return fmt.Errorf("%s %v: %w", KeyFetchInterval, s.FetchInterval, ErrInvalidSetting)
	}
	if s.RecordBatch <= 0 {
		return fmt.Errorf("%s %d: %w", KeyRecordBatch, s.RecordBatch, ErrInvalidSetting)
	}
	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%s %q: %w", KeyLogFormat, s.LogFormat, ErrInvalidSetting)
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error onto slog levels
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%s %q: %w", KeyLogLevel, s, ErrInvalidSetting)
	}
	return level, nil
}

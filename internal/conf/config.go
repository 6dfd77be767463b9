// Package conf loads and validates sightline settings.
package conf

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/obstacle"
)

//go:embed config.yaml
var defaultConfigYAML []byte

// Settings is the root of the configuration tree.
type Settings struct {
	Debug bool `yaml:"debug" mapstructure:"debug"`

	Logging logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`

	Detection  DetectionSettings  `yaml:"detection" mapstructure:"detection"`
	Alerts     AlertSettings      `yaml:"alerts" mapstructure:"alerts"`
	Speech     SpeechSettings     `yaml:"speech" mapstructure:"speech"`
	Session    SessionSettings    `yaml:"session" mapstructure:"session"`
	Engine     EngineSettings     `yaml:"engine" mapstructure:"engine"`
	API        APISettings        `yaml:"api" mapstructure:"api"`
	Journal    JournalSettings    `yaml:"journal" mapstructure:"journal"`
	MQTT       MQTTSettings       `yaml:"mqtt" mapstructure:"mqtt"`
	Transcript TranscriptSettings `yaml:"transcript" mapstructure:"transcript"`
	Telemetry  TelemetrySettings  `yaml:"telemetry" mapstructure:"telemetry"`
}

// DetectionSettings holds the class table and the selection geometry.
type DetectionSettings struct {
	// Classes replaces the built-in class table when non-empty. It must
	// contain a "default" profile.
	Classes  []obstacle.ClassProfile `yaml:"classes,omitempty" mapstructure:"classes"`
	Geometry GeometrySettings        `yaml:"geometry" mapstructure:"geometry"`
	Weights  WeightSettings          `yaml:"weights" mapstructure:"weights"`
	Position PositionSettings        `yaml:"position" mapstructure:"position"`
}

// GeometrySettings mirrors obstacle.Geometry.
type GeometrySettings struct {
	LeftSplit           float32 `yaml:"left_split" mapstructure:"left_split"`
	RightSplit          float32 `yaml:"right_split" mapstructure:"right_split"`
	GroundBottomZone    float32 `yaml:"ground_bottom_zone" mapstructure:"ground_bottom_zone"`
	GroundCompactHeight float32 `yaml:"ground_compact_height" mapstructure:"ground_compact_height"`
	GroundWideWidth     float32 `yaml:"ground_wide_width" mapstructure:"ground_wide_width"`
	VeryCloseHeight     float32 `yaml:"very_close_height" mapstructure:"very_close_height"`
	CloseHeight         float32 `yaml:"close_height" mapstructure:"close_height"`
	MediumHeight        float32 `yaml:"medium_height" mapstructure:"medium_height"`
	HighUpCenterY       float32 `yaml:"high_up_center_y" mapstructure:"high_up_center_y"`
	LowDownCenterY      float32 `yaml:"low_down_center_y" mapstructure:"low_down_center_y"`
}

// WeightSettings are the priority score coefficients.
type WeightSettings struct {
	Area      float32 `yaml:"area" mapstructure:"area"`
	Relevance float32 `yaml:"relevance" mapstructure:"relevance"`
	Position  float32 `yaml:"position" mapstructure:"position"`
	Closeness float32 `yaml:"closeness" mapstructure:"closeness"`
}

// PositionSettings shape the position term of the score.
type PositionSettings struct {
	Center         float32 `yaml:"center" mapstructure:"center"`
	Side           float32 `yaml:"side" mapstructure:"side"`
	FloorBonus     float32 `yaml:"floor_bonus" mapstructure:"floor_bonus"`
	ElevationBase  float32 `yaml:"elevation_base" mapstructure:"elevation_base"`
	ElevationRange float32 `yaml:"elevation_range" mapstructure:"elevation_range"`
}

// AlertSettings control debouncing and the display prefix.
type AlertSettings struct {
	HistoryTTL Duration `yaml:"history_ttl" mapstructure:"history_ttl"`
	TopN       int      `yaml:"top_n" mapstructure:"top_n"`
}

// SpeechSettings select the speaker and tune the utterance queue.
type SpeechSettings struct {
	Speaker string          `yaml:"speaker" mapstructure:"speaker"` // console or http
	Queue   QueueSettings   `yaml:"queue" mapstructure:"queue"`
	Console ConsoleSettings `yaml:"console" mapstructure:"console"`
	HTTP    HTTPSettings    `yaml:"http" mapstructure:"http"`
}

// QueueSettings mirrors speech.QueueConfig.
type QueueSettings struct {
	MaxPending int      `yaml:"max_pending" mapstructure:"max_pending"`
	StaleAfter Duration `yaml:"stale_after" mapstructure:"stale_after"`
	Cooldown   Duration `yaml:"cooldown" mapstructure:"cooldown"`
	MinGap     Duration `yaml:"min_gap" mapstructure:"min_gap"`
	Watchdog   Duration `yaml:"watchdog" mapstructure:"watchdog"`
}

// ConsoleSettings tune the simulated speech duration of the console speaker.
type ConsoleSettings struct {
	Base    Duration `yaml:"base" mapstructure:"base"`
	PerWord Duration `yaml:"per_word" mapstructure:"per_word"`
}

// HTTPSettings point the HTTP speaker at an external TTS daemon.
type HTTPSettings struct {
	Endpoint string   `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SessionSettings configure scan sessions.
type SessionSettings struct {
	AutoStart         bool     `yaml:"auto_start" mapstructure:"auto_start"`
	GracePeriod       Duration `yaml:"grace_period" mapstructure:"grace_period"`
	CompletionMessage string   `yaml:"completion_message" mapstructure:"completion_message"`
}

// EngineSettings size the engine's internal buffers.
type EngineSettings struct {
	ControlBuffer int      `yaml:"control_buffer" mapstructure:"control_buffer"`
	SinkBuffer    int      `yaml:"sink_buffer" mapstructure:"sink_buffer"`
	SinkTimeout   Duration `yaml:"sink_timeout" mapstructure:"sink_timeout"`
}

// APISettings configure the HTTP API.
type APISettings struct {
	Enabled         bool     `yaml:"enabled" mapstructure:"enabled"`
	Host            string   `yaml:"host" mapstructure:"host"`
	Port            string   `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	BodyLimit       string   `yaml:"body_limit" mapstructure:"body_limit"`
	ReadTimeout     Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	FrameDedupTTL   Duration `yaml:"frame_dedup_ttl" mapstructure:"frame_dedup_ttl"`
	FrameRate       float64  `yaml:"frame_rate" mapstructure:"frame_rate"`
	FrameBurst      int      `yaml:"frame_burst" mapstructure:"frame_burst"`
}

// JournalSettings configure the alert journal.
type JournalSettings struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Type    string `yaml:"type" mapstructure:"type"` // sqlite or mysql
	SQLite  struct {
		Path string `yaml:"path" mapstructure:"path"`
	} `yaml:"sqlite" mapstructure:"sqlite"`
	MySQL struct {
		Username string `yaml:"username" mapstructure:"username"`
		Password string `yaml:"password" mapstructure:"password"`
		Host     string `yaml:"host" mapstructure:"host"`
		Port     string `yaml:"port" mapstructure:"port"`
		Database string `yaml:"database" mapstructure:"database"`
	} `yaml:"mysql" mapstructure:"mysql"`
}

// MQTTSettings configure the MQTT event publisher.
type MQTTSettings struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	Broker            string   `yaml:"broker" mapstructure:"broker"`
	ClientID          string   `yaml:"client_id" mapstructure:"client_id"`
	Username          string   `yaml:"username" mapstructure:"username"`
	Password          string   `yaml:"password" mapstructure:"password"`
	Topic             string   `yaml:"topic" mapstructure:"topic"`
	QoS               int      `yaml:"qos" mapstructure:"qos"`
	Retain            bool     `yaml:"retain" mapstructure:"retain"`
	ReconnectCooldown Duration `yaml:"reconnect_cooldown" mapstructure:"reconnect_cooldown"`
	ConnectTimeout    Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	PublishTimeout    Duration `yaml:"publish_timeout" mapstructure:"publish_timeout"`
}

// TranscriptSettings size the rolling transcript.
type TranscriptSettings struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"` // bytes
}

// TelemetrySettings configure the metrics endpoint and error reporting.
type TelemetrySettings struct {
	Enabled bool           `yaml:"enabled" mapstructure:"enabled"`
	Listen  string         `yaml:"listen" mapstructure:"listen"`
	Sentry  SentrySettings `yaml:"sentry" mapstructure:"sentry"`
}

// SentrySettings configure Sentry error reporting.
type SentrySettings struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	DSN         string  `yaml:"dsn" mapstructure:"dsn"`
	Environment string  `yaml:"environment" mapstructure:"environment"`
	SampleRate  float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

var (
	settingsMutex    sync.RWMutex
	settingsInstance *Settings
)

// Load reads the configuration through the global viper instance and
// stores the result for GetSettings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := LoadFrom(viper.GetViper())
	if err != nil {
		return nil, err
	}
	settingsInstance = settings
	return settings, nil
}

// LoadFrom initializes v, reads the configuration file it locates and
// decodes and validates the result. searchPaths replaces the default
// search directories. Without a config file the embedded defaults are used.
func LoadFrom(v *viper.Viper, searchPaths ...string) (*Settings, error) {
	if err := initViper(v, searchPaths); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "init-viper").
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings, viper.DecodeHook(decodeHook())); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return settings, nil
}

// initViper sets defaults, environment bindings and reads the config file.
func initViper(v *viper.Viper, paths []string) error {
	// SetConfigName clears a file set with SetConfigFile, so an explicit
	// --config file is captured first and skips the search paths.
	explicit := v.ConfigFileUsed()
	v.SetConfigType("yaml")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		if len(paths) == 0 {
			var err error
			if paths, err = GetDefaultConfigPaths(); err != nil {
				return err
			}
		}
		for _, path := range paths {
			v.AddConfigPath(path)
		}
	}

	setDefaultConfig(v)
	if err := bindEnvVars(v); err != nil {
		GetLogger().Warn("environment overrides", logger.Error(err))
	}

	err := v.ReadInConfig()
	if err == nil {
		GetLogger().Info("loaded config file", logger.String("path", v.ConfigFileUsed()))
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return err
	}
	GetLogger().Info("no config file found, using built-in defaults")
	return v.ReadConfig(bytes.NewReader(defaultConfigYAML))
}

// GetSettings returns the settings stored by Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfigYAML returns the embedded default configuration file.
func DefaultConfigYAML() []byte {
	return bytes.Clone(defaultConfigYAML)
}

// WriteDefaultConfig writes the embedded default configuration to path. An
// existing file is left alone.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists: %s", path).
			Component("conf").
			Category(errors.CategoryConflict).
			Build()
	}
	return writeFileAtomic(path, defaultConfigYAML)
}

// EncodeYAML renders the effective settings.
func (s *Settings) EncodeYAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileParsing).
			Context("operation", "marshal-yaml").
			Build()
	}
	return data, nil
}

// SaveYAMLConfig writes settings to configPath through a temporary file so
// a crash never leaves a truncated config behind.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := settings.EncodeYAML()
	if err != nil {
		return err
	}
	return writeFileAtomic(configPath, data)
}

func writeFileAtomic(path string, data []byte) error {
	wrap := func(err error, op string) error {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", op).
			Context("path", path).
			Build()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrap(err, "create-config-dir")
	}
	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return wrap(err, "create-temp-file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return wrap(err, "write-temp-file")
	}
	if err := tmp.Close(); err != nil {
		return wrap(err, "close-temp-file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return wrap(err, "rename-temp-file")
	}
	return nil
}

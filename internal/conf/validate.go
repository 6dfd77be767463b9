package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/sightline-go/internal/obstacle"
)

// ValidationError collects every problem found in a Settings tree.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks the whole tree and returns a ValidationError
// listing every failing section.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	add := func(section string, err error) {
		if err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %v", section, err))
		}
	}

	add("logging", validateLogging(settings))
	add("detection", validateDetection(&settings.Detection))
	add("alerts", validateAlerts(&settings.Alerts))
	add("speech", validateSpeech(&settings.Speech))
	add("session", validateSession(&settings.Session))
	add("engine", validateEngine(&settings.Engine))
	if settings.API.Enabled {
		add("api", settings.APIConfig().Validate())
	}
	if settings.Journal.Enabled {
		add("journal", validateJournal(&settings.Journal))
	}
	if settings.MQTT.Enabled {
		add("mqtt", validateMQTT(&settings.MQTT))
	}
	add("transcript", validateTranscript(&settings.Transcript))
	add("telemetry", validateTelemetry(&settings.Telemetry))

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

var logLevels = []string{"trace", "debug", "info", "warn", "warning", "error"}

func validLogLevel(level string) bool {
	return slices.Contains(logLevels, strings.ToLower(level))
}

func validateLogging(settings *Settings) error {
	var errs []string
	cfg := settings.Logging
	if cfg.DefaultLevel != "" && !validLogLevel(cfg.DefaultLevel) {
		errs = append(errs, fmt.Sprintf("unknown default_level %q", cfg.DefaultLevel))
	}
	for module, level := range cfg.ModuleLevels {
		if !validLogLevel(level) {
			errs = append(errs, fmt.Sprintf("unknown level %q for module %s", level, module))
		}
	}
	if tz := cfg.Timezone; tz != "" && tz != "Local" && tz != "UTC" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Sprintf("invalid timezone %q", tz))
		}
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Enabled && cfg.FileOutput.Path == "" {
		errs = append(errs, "file_output.path is required when file output is enabled")
	}
	return joinErrs(errs)
}

func validateDetection(settings *DetectionSettings) error {
	if len(settings.Classes) > 0 {
		if _, err := obstacle.NewClassTable(settings.Classes); err != nil {
			return err
		}
	}
	return settings.ObstacleConfig().Validate()
}

func validateAlerts(settings *AlertSettings) error {
	var errs []string
	if settings.HistoryTTL <= 0 {
		errs = append(errs, "history_ttl must be positive")
	}
	if settings.TopN < 1 {
		errs = append(errs, "top_n must be at least 1")
	}
	return joinErrs(errs)
}

func validateSpeech(settings *SpeechSettings) error {
	var errs []string
	switch settings.Speaker {
	case SpeakerConsole:
	case SpeakerHTTP:
		if err := validateEnvURL(settings.HTTP.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("http.endpoint: %v", err))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown speaker %q", settings.Speaker))
	}
	if err := settings.QueueConfig().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if settings.Console.Base < 0 || settings.Console.PerWord < 0 {
		errs = append(errs, "console durations must not be negative")
	}
	return joinErrs(errs)
}

func validateSession(settings *SessionSettings) error {
	if settings.GracePeriod <= 0 {
		return fmt.Errorf("grace_period must be positive")
	}
	return nil
}

func validateEngine(settings *EngineSettings) error {
	var errs []string
	if settings.ControlBuffer < 1 {
		errs = append(errs, "control_buffer must be at least 1")
	}
	if settings.SinkBuffer < 1 {
		errs = append(errs, "sink_buffer must be at least 1")
	}
	if settings.SinkTimeout <= 0 {
		errs = append(errs, "sink_timeout must be positive")
	}
	return joinErrs(errs)
}

func validateJournal(settings *JournalSettings) error {
	switch settings.Type {
	case JournalSQLite:
		if settings.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	case JournalMySQL:
		m := settings.MySQL
		if m.Host == "" || m.Database == "" || m.Username == "" {
			return fmt.Errorf("mysql requires host, database and username")
		}
	default:
		return fmt.Errorf("unknown journal type %q", settings.Type)
	}
	return nil
}

func validateMQTT(settings *MQTTSettings) error {
	var errs []string
	u, err := url.Parse(settings.Broker)
	switch {
	case settings.Broker == "":
		errs = append(errs, "broker is required")
	case err != nil:
		errs = append(errs, fmt.Sprintf("invalid broker URL: %v", err))
	case !slices.Contains([]string{"tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss"}, u.Scheme):
		errs = append(errs, fmt.Sprintf("unsupported broker scheme %q", u.Scheme))
	}
	if settings.Topic == "" {
		errs = append(errs, "topic is required")
	}
	if settings.QoS < 0 || settings.QoS > 2 {
		errs = append(errs, "qos must be 0, 1 or 2")
	}
	return joinErrs(errs)
}

func validateTranscript(settings *TranscriptSettings) error {
	if settings.Capacity < 64 {
		return fmt.Errorf("capacity must be at least 64 bytes")
	}
	return nil
}

func validateTelemetry(settings *TelemetrySettings) error {
	var errs []string
	if settings.Enabled && settings.Listen == "" {
		errs = append(errs, "listen is required when telemetry is enabled")
	}
	if s := settings.Sentry; s.Enabled {
		if err := validateEnvURL(s.DSN); err != nil {
			errs = append(errs, fmt.Sprintf("sentry.dsn: %v", err))
		}
		if s.SampleRate < 0 || s.SampleRate > 1 {
			errs = append(errs, "sentry.sample_rate must be between 0 and 1")
		}
	}
	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, ", "))
}

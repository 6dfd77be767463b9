package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/sightline-go/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. SIGHTLINE_API_PORT.
const EnvPrefix = "SIGHTLINE"

// envBinding ties a config key to an explicitly named environment variable.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

// getEnvBindings lists the variables that are validated before use. Any
// other key is still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "SIGHTLINE_DEBUG", validateEnvBool},
		{"logging.default_level", "SIGHTLINE_LOG_LEVEL", validateEnvLogLevel},
		{"speech.speaker", "SIGHTLINE_SPEAKER", validateEnvSpeaker},
		{"speech.http.endpoint", "SIGHTLINE_TTS_ENDPOINT", validateEnvURL},
		{"speech.queue.cooldown", "SIGHTLINE_SPEECH_COOLDOWN", validateEnvDuration},
		{"alerts.history_ttl", "SIGHTLINE_HISTORY_TTL", validateEnvDuration},
		{"api.port", "SIGHTLINE_API_PORT", validateEnvPort},
		{"journal.mysql.password", "SIGHTLINE_MYSQL_PASSWORD", nil},
		{"mqtt.broker", "SIGHTLINE_MQTT_BROKER", validateEnvURL},
		{"mqtt.password", "SIGHTLINE_MQTT_PASSWORD", nil},
		{"telemetry.sentry.dsn", "SIGHTLINE_SENTRY_DSN", validateEnvURL},
	}
}

// bindEnvVars enables SIGHTLINE_ overrides for every key and binds the
// named variables. Invalid values are reported but not fatal; validation
// of the decoded settings rejects them later.
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return errors.Newf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	return err
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

func validateEnvSpeaker(value string) error {
	switch value {
	case SpeakerConsole, SpeakerHTTP:
		return nil
	}
	return fmt.Errorf("must be %q or %q", SpeakerConsole, SpeakerHTTP)
}

func validateEnvLogLevel(value string) error {
	if !validLogLevel(value) {
		return fmt.Errorf("unknown log level")
	}
	return nil
}

package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/sightline-go/internal/api"
	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/history"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/mqtt"
	"github.com/tphakala/sightline-go/internal/obstacle"
	"github.com/tphakala/sightline-go/internal/speech"
	"github.com/tphakala/sightline-go/internal/transcript"
)

// Speaker backends.
const (
	SpeakerConsole = "console"
	SpeakerHTTP    = "http"
)

// Journal backends.
const (
	JournalSQLite = "sqlite"
	JournalMySQL  = "mysql"
)

const (
	DefaultConsoleBase    = 400 * time.Millisecond
	DefaultConsolePerWord = 250 * time.Millisecond
	DefaultSpeakerTimeout = 5 * time.Second
	DefaultTelemetryAddr  = "127.0.0.1:9090"
	DefaultJournalPath    = "data/sightline.db"
)

// setDefaultConfig sets the default value of every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Logging
	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	// Detection geometry and scoring
	g := obstacle.DefaultGeometry()
	v.SetDefault("detection.geometry.left_split", g.LeftSplit)
	v.SetDefault("detection.geometry.right_split", g.RightSplit)
	v.SetDefault("detection.geometry.ground_bottom_zone", g.GroundBottomZone)
	v.SetDefault("detection.geometry.ground_compact_height", g.GroundCompactHeight)
	v.SetDefault("detection.geometry.ground_wide_width", g.GroundWideWidth)
	v.SetDefault("detection.geometry.very_close_height", g.VeryCloseHeight)
	v.SetDefault("detection.geometry.close_height", g.CloseHeight)
	v.SetDefault("detection.geometry.medium_height", g.MediumHeight)
	v.SetDefault("detection.geometry.high_up_center_y", g.HighUpCenterY)
	v.SetDefault("detection.geometry.low_down_center_y", g.LowDownCenterY)

	w := obstacle.DefaultWeights()
	v.SetDefault("detection.weights.area", w.Area)
	v.SetDefault("detection.weights.relevance", w.Relevance)
	v.SetDefault("detection.weights.position", w.Position)
	v.SetDefault("detection.weights.closeness", w.Closeness)

	p := obstacle.DefaultPositionWeights()
	v.SetDefault("detection.position.center", p.Center)
	v.SetDefault("detection.position.side", p.Side)
	v.SetDefault("detection.position.floor_bonus", p.FloorBonus)
	v.SetDefault("detection.position.elevation_base", p.ElevationBase)
	v.SetDefault("detection.position.elevation_range", p.ElevationRange)

	// Alerts
	v.SetDefault("alerts.history_ttl", history.DefaultTTL.String())
	v.SetDefault("alerts.top_n", engine.DefaultTopN)

	// Speech
	v.SetDefault("speech.speaker", SpeakerConsole)
	v.SetDefault("speech.queue.max_pending", speech.DefaultMaxPending)
	v.SetDefault("speech.queue.stale_after", speech.DefaultStaleAfter.String())
	v.SetDefault("speech.queue.cooldown", speech.DefaultCooldown.String())
	v.SetDefault("speech.queue.min_gap", speech.DefaultMinGap.String())
	v.SetDefault("speech.queue.watchdog", speech.DefaultWatchdog.String())
	v.SetDefault("speech.console.base", DefaultConsoleBase.String())
	v.SetDefault("speech.console.per_word", DefaultConsolePerWord.String())
	v.SetDefault("speech.http.endpoint", "")
	v.SetDefault("speech.http.timeout", DefaultSpeakerTimeout.String())

	// Sessions
	v.SetDefault("session.auto_start", false)
	v.SetDefault("session.grace_period", engine.DefaultGracePeriod.String())
	v.SetDefault("session.completion_message", engine.DefaultCompletionMessage)

	// Engine buffers
	v.SetDefault("engine.control_buffer", engine.DefaultControlBuffer)
	v.SetDefault("engine.sink_buffer", engine.DefaultSinkBuffer)
	v.SetDefault("engine.sink_timeout", engine.DefaultSinkTimeout.String())

	// HTTP API
	a := api.DefaultConfig()
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", a.Host)
	v.SetDefault("api.port", a.Port)
	v.SetDefault("api.allowed_origins", a.AllowedOrigins)
	v.SetDefault("api.body_limit", a.BodyLimit)
	v.SetDefault("api.read_timeout", a.ReadTimeout.String())
	v.SetDefault("api.write_timeout", a.WriteTimeout.String())
	v.SetDefault("api.idle_timeout", a.IdleTimeout.String())
	v.SetDefault("api.shutdown_timeout", a.ShutdownTimeout.String())
	v.SetDefault("api.frame_dedup_ttl", a.FrameDedupTTL.String())
	v.SetDefault("api.frame_rate", a.FrameRate)
	v.SetDefault("api.frame_burst", a.FrameBurst)

	// Journal
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.type", JournalSQLite)
	v.SetDefault("journal.sqlite.path", DefaultJournalPath)
	v.SetDefault("journal.mysql.username", "")
	v.SetDefault("journal.mysql.password", "")
	v.SetDefault("journal.mysql.host", "localhost")
	v.SetDefault("journal.mysql.port", "3306")
	v.SetDefault("journal.mysql.database", "sightline")

	// MQTT
	m := mqtt.DefaultConfig()
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", m.ClientID)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", m.Topic)
	v.SetDefault("mqtt.qos", int(m.QoS))
	v.SetDefault("mqtt.retain", m.Retain)
	v.SetDefault("mqtt.reconnect_cooldown", m.ReconnectCooldown.String())
	v.SetDefault("mqtt.connect_timeout", m.ConnectTimeout.String())
	v.SetDefault("mqtt.publish_timeout", m.PublishTimeout.String())

	// Transcript
	v.SetDefault("transcript.capacity", transcript.DefaultCapacity)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", DefaultTelemetryAddr)
	v.SetDefault("telemetry.sentry.enabled", false)
	v.SetDefault("telemetry.sentry.dsn", "")
	v.SetDefault("telemetry.sentry.environment", "production")
	v.SetDefault("telemetry.sentry.sample_rate", 1.0)
}

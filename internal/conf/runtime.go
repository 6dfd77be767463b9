package conf

import (
	"maps"

	"github.com/tphakala/sightline-go/internal/api"
	"github.com/tphakala/sightline-go/internal/datastore"
	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/mqtt"
	"github.com/tphakala/sightline-go/internal/obstacle"
	"github.com/tphakala/sightline-go/internal/speech"
)

// ObstacleConfig converts the detection section.
func (d *DetectionSettings) ObstacleConfig() obstacle.Config {
	g, w, p := d.Geometry, d.Weights, d.Position
	return obstacle.Config{
		Geometry: obstacle.Geometry{
			LeftSplit:           g.LeftSplit,
			RightSplit:          g.RightSplit,
			GroundBottomZone:    g.GroundBottomZone,
			GroundCompactHeight: g.GroundCompactHeight,
			GroundWideWidth:     g.GroundWideWidth,
			VeryCloseHeight:     g.VeryCloseHeight,
			CloseHeight:         g.CloseHeight,
			MediumHeight:        g.MediumHeight,
			HighUpCenterY:       g.HighUpCenterY,
			LowDownCenterY:      g.LowDownCenterY,
		},
		Weights: obstacle.Weights{
			Area:      w.Area,
			Relevance: w.Relevance,
			Position:  w.Position,
			Closeness: w.Closeness,
		},
		Position: obstacle.PositionWeights{
			Center:         p.Center,
			Side:           p.Side,
			FloorBonus:     p.FloorBonus,
			ElevationBase:  p.ElevationBase,
			ElevationRange: p.ElevationRange,
		},
	}
}

// ClassTable builds the configured class table, falling back to the
// built-in profiles.
func (d *DetectionSettings) ClassTable() (*obstacle.ClassTable, error) {
	profiles := d.Classes
	if len(profiles) == 0 {
		profiles = obstacle.DefaultProfiles()
	}
	return obstacle.NewClassTable(profiles)
}

// Selector builds the selector described by the detection section.
func (d *DetectionSettings) Selector() (*obstacle.Selector, error) {
	table, err := d.ClassTable()
	if err != nil {
		return nil, err
	}
	return obstacle.NewSelector(table, d.ObstacleConfig()), nil
}

// QueueConfig converts the speech queue section.
func (s *SpeechSettings) QueueConfig() speech.QueueConfig {
	q := s.Queue
	return speech.QueueConfig{
		MaxPending: q.MaxPending,
		StaleAfter: q.StaleAfter.Std(),
		Cooldown:   q.Cooldown.Std(),
		MinGap:     q.MinGap.Std(),
		Watchdog:   q.Watchdog.Std(),
	}
}

// ConsoleOptions converts the console speaker section.
func (s *SpeechSettings) ConsoleOptions() speech.ConsoleOptions {
	return speech.ConsoleOptions{Base: s.Console.Base.Std(), PerWord: s.Console.PerWord.Std()}
}

// EngineConfig assembles the engine configuration.
func (s *Settings) EngineConfig() engine.Config {
	return engine.Config{
		HistoryTTL:        s.Alerts.HistoryTTL.Std(),
		Queue:             s.Speech.QueueConfig(),
		TopN:              s.Alerts.TopN,
		ControlBuffer:     s.Engine.ControlBuffer,
		SinkBuffer:        s.Engine.SinkBuffer,
		SinkTimeout:       s.Engine.SinkTimeout.Std(),
		GracePeriod:       s.Session.GracePeriod.Std(),
		CompletionMessage: s.Session.CompletionMessage,
		AutoStart:         s.Session.AutoStart,
	}
}

// APIConfig converts the api section.
func (s *Settings) APIConfig() *api.Config {
	a := s.API
	return &api.Config{
		Host:            a.Host,
		Port:            a.Port,
		AllowedOrigins:  append([]string(nil), a.AllowedOrigins...),
		ReadTimeout:     a.ReadTimeout.Std(),
		WriteTimeout:    a.WriteTimeout.Std(),
		IdleTimeout:     a.IdleTimeout.Std(),
		ShutdownTimeout: a.ShutdownTimeout.Std(),
		BodyLimit:       a.BodyLimit,
		FrameDedupTTL:   a.FrameDedupTTL.Std(),
		FrameRate:       a.FrameRate,
		FrameBurst:      a.FrameBurst,
		Debug:           s.Debug,
	}
}

// JournalConfig converts the journal section.
func (s *Settings) JournalConfig() datastore.Config {
	j := s.Journal
	return datastore.Config{
		Type:   j.Type,
		SQLite: datastore.SQLiteConfig{Path: j.SQLite.Path},
		MySQL: datastore.MySQLConfig{
			Username: j.MySQL.Username,
			Password: j.MySQL.Password,
			Host:     j.MySQL.Host,
			Port:     j.MySQL.Port,
			Database: j.MySQL.Database,
		},
		Debug: s.Debug,
	}
}

// MQTTConfig converts the mqtt section.
func (s *Settings) MQTTConfig() mqtt.Config {
	m := s.MQTT
	cfg := mqtt.DefaultConfig()
	cfg.Broker = m.Broker
	cfg.ClientID = m.ClientID
	cfg.Username = m.Username
	cfg.Password = m.Password
	cfg.Topic = m.Topic
	cfg.QoS = byte(m.QoS)
	cfg.Retain = m.Retain
	cfg.ReconnectCooldown = m.ReconnectCooldown.Std()
	cfg.ConnectTimeout = m.ConnectTimeout.Std()
	cfg.PublishTimeout = m.PublishTimeout.Std()
	return cfg
}

// LoggingConfig returns a copy of the logging section. Debug raises the
// default level to debug.
func (s *Settings) LoggingConfig() *logger.LoggingConfig {
	cfg := s.Logging
	cfg.ModuleLevels = maps.Clone(s.Logging.ModuleLevels)
	if s.Logging.Console != nil {
		c := *s.Logging.Console
		cfg.Console = &c
	}
	if s.Logging.FileOutput != nil {
		f := *s.Logging.FileOutput
		cfg.FileOutput = &f
	}
	if s.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			cfg.Console.Level = "debug"
		}
	}
	return &cfg
}

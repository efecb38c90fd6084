// ABOUTME: YAML configuration parsing, environment overrides, and validation
// ABOUTME: Defines structure for multi-station folder radio configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultMetaInt = 16000

var ErrInvalid = errors.New("invalid config")

var stationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Config struct {
	Listen   ListenConfig    `yaml:"listen"`
	Stations []StationConfig `yaml:"stations"`
	Logging  LoggingConfig   `yaml:"logging"`

	// DefaultStation is served at /stream. Empty means the first station.
	DefaultStation string `yaml:"default_station"`
}

type ListenConfig struct {
	Host string `yaml:"host" env:"RADIO_HOST"`
	Port int    `yaml:"port" env:"RADIO_PORT"`
}

type StationConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Dir         string   `yaml:"dir"`
	Extensions  []string `yaml:"extensions"`
	ContentType string   `yaml:"content_type"`
	BitrateKbps int      `yaml:"bitrate_kbps"`
	MetaInt     *int     `yaml:"metaint"`
	ChunkMs     int      `yaml:"chunk_ms"`
	RetryMs     int      `yaml:"retry_delay_ms"`
	SettleMs    int      `yaml:"settle_delay_ms"`
	WriteMs     int      `yaml:"write_timeout_ms"`
	Watch       *bool    `yaml:"watch"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"RADIO_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"RADIO_LOG_JSON"`
}

func (s StationConfig) ChunkDuration() time.Duration {
	return time.Duration(s.ChunkMs) * time.Millisecond
}

func (s StationConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryMs) * time.Millisecond
}

func (s StationConfig) SettleDelay() time.Duration {
	return time.Duration(s.SettleMs) * time.Millisecond
}

func (s StationConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteMs) * time.Millisecond
}

// IcyMetaInt is the ICY metadata interval in bytes. Unset means the
// default; an explicit 0 turns ICY metadata off.
func (s StationConfig) IcyMetaInt() int {
	if s.MetaInt == nil {
		return DefaultMetaInt
	}
	return *s.MetaInt
}

// WatchEnabled reports whether the library directory should be watched for
// changes. Defaults to true.
func (s StationConfig) WatchEnabled() bool {
	return s.Watch == nil || *s.Watch
}

// Load reads the YAML file at path, applies RADIO_* environment overrides and
// defaults, then validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Listen.Host == "" {
		c.Listen.Host = "0.0.0.0"
	}
	if c.Listen.Port == 0 {
		c.Listen.Port = 8000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	for i := range c.Stations {
		st := &c.Stations[i]
		if st.Name == "" {
			st.Name = st.ID
		}
		if len(st.Extensions) == 0 {
			st.Extensions = []string{".mp3"}
		}
		if st.ContentType == "" {
			st.ContentType = "audio/mpeg"
		}
		if st.BitrateKbps == 0 {
			st.BitrateKbps = 128
		}
		if st.ChunkMs == 0 {
			st.ChunkMs = 100
		}
		if st.RetryMs == 0 {
			st.RetryMs = 5000
		}
		if st.SettleMs == 0 {
			st.SettleMs = 100
		}
		if st.WriteMs == 0 {
			st.WriteMs = 2000
		}
	}
}

func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("%w: listen.port %d out of range", ErrInvalid, c.Listen.Port)
	}
	if len(c.Stations) == 0 {
		return fmt.Errorf("%w: no stations configured", ErrInvalid)
	}

	seen := make(map[string]struct{}, len(c.Stations))
	for i, st := range c.Stations {
		if !stationIDPattern.MatchString(st.ID) {
			return fmt.Errorf("%w: stations[%d].id %q must match %s", ErrInvalid, i, st.ID, stationIDPattern)
		}
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("%w: duplicate station id %q", ErrInvalid, st.ID)
		}
		seen[st.ID] = struct{}{}

		if st.Dir == "" {
			return fmt.Errorf("%w: station %q has no dir", ErrInvalid, st.ID)
		}
		if st.BitrateKbps < 0 || st.ChunkMs < 0 || st.RetryMs < 0 || st.SettleMs < 0 || st.WriteMs < 0 || st.IcyMetaInt() < 0 {
			return fmt.Errorf("%w: station %q has a negative setting", ErrInvalid, st.ID)
		}
	}

	if c.DefaultStation != "" {
		if _, ok := seen[c.DefaultStation]; !ok {
			return fmt.Errorf("%w: default_station %q is not a configured station", ErrInvalid, c.DefaultStation)
		}
	}

	return nil
}

package relay

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/haggisnet/haggisnet/internal/core/observability/log"
)

// Config holds relay server configuration.
type Config struct {
	// Network settings
	ListenAddr string `yaml:"listen_addr"`

	// Message settings
	MaxMessageSize  int64         `yaml:"max_message_size"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Room settings
	RoomIdleTimeout time.Duration `yaml:"room_idle_timeout"`

	// Logging
	LogLevel log.Level `yaml:"log_level"`
}

// DefaultConfig returns default relay configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		MaxMessageSize:  64 * 1024,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		RoomIdleTimeout: 24 * time.Hour,
		LogLevel:        log.LevelInfo,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return config, nil
}

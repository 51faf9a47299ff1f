package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all client configuration
type Config struct {
	Server  ServerConfig
	Control ControlConfig
	Speech  SpeechConfig
	Game    GameConfig
	Logging LoggingConfig
}

// ServerConfig describes the game server the client talks to
type ServerConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

// ControlConfig holds the local control API settings
type ControlConfig struct {
	Port string
	Host string
	Env  string // "development" or "production"
}

// SpeechConfig holds text-to-speech settings
type SpeechConfig struct {
	Enabled    bool
	Engine     string // "" detects espeak-ng, espeak or say
	Language   string
	Pacing     time.Duration
	VoicesFile string
}

// GameConfig holds game-related client settings
type GameConfig struct {
	ActingPlayer string
	SnapshotLag  time.Duration
	RosterFile   string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with defaults.
// Variables from a .env file in the working directory are loaded first;
// real environment variables win over the file.
func Load() *Config {
	_ = LoadDotEnv(".env")

	return &Config{
		Server: ServerConfig{
			BaseURL:        getEnv("AVALON_SERVER", "http://localhost:8000"),
			RequestTimeout: getEnvDuration("AVALON_REQUEST_TIMEOUT", 15*time.Second),
			ReconnectMin:   getEnvDuration("AVALON_RECONNECT_MIN", 500*time.Millisecond),
			ReconnectMax:   getEnvDuration("AVALON_RECONNECT_MAX", 10*time.Second),
		},
		Control: ControlConfig{
			Port: getEnv("PORT", "8090"),
			Host: getEnv("HOST", "127.0.0.1"),
			Env:  getEnv("ENV", "development"),
		},
		Speech: SpeechConfig{
			Enabled:    getEnvBool("AVALON_SPEECH", true),
			Engine:     getEnv("AVALON_TTS_ENGINE", ""),
			Language:   getEnv("AVALON_TTS_LANG", "zh"),
			Pacing:     getEnvDuration("AVALON_SPEECH_PACING", 300*time.Millisecond),
			VoicesFile: getEnv("AVALON_VOICES", ""),
		},
		Game: GameConfig{
			ActingPlayer: getEnv("AVALON_PLAYER", ""),
			SnapshotLag:  getEnvDuration("AVALON_SNAPSHOT_LAG", 500*time.Millisecond),
			RosterFile:   getEnv("AVALON_ROSTER", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// LoadDotEnv loads variables from path without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", c.Server.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server url %q: scheme must be http or https", c.Server.BaseURL)
	}
	if c.Server.ReconnectMin <= 0 || c.Server.ReconnectMax < c.Server.ReconnectMin {
		return fmt.Errorf("invalid reconnect backoff %v..%v", c.Server.ReconnectMin, c.Server.ReconnectMax)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Control.Env == "development"
}

// GetAddr returns the control API address in host:port format
func (c *Config) GetAddr() string {
	return c.Control.Host + ":" + c.Control.Port
}

// EventsURL returns the websocket URL events are pushed on
func (c *Config) EventsURL() string {
	base := strings.TrimSuffix(c.Server.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws"
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns an environment variable as a bool or a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("750ms") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms := getEnvInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

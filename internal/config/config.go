// internal/config/config.go
//
// Process configuration.
// Values come from the environment (optionally seeded from a .env file by
// main); every field has a default so a bare `gamesession serve` runs a
// complete single-binary stack with an embedded NATS server.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Picker names accepted by ENGINE_PICKER.
const (
	PickerRandom = "random"
	PickerDaily  = "daily"
	PickerFixed  = "fixed"
)

// Config is the full service configuration.
type Config struct {
	Port      string `env:"PORT" envDefault:"5175"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	DBPath         string `env:"DB_PATH" envDefault:"./data/gamesession.db"`
	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"7"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"token"`
	ClientOrigin   string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	NodeEnv        string `env:"NODE_ENV" envDefault:"development"`

	// NATSURL selects an external broker; empty runs an embedded one.
	NATSURL       string `env:"NATS_URL"`
	EngineSubject string `env:"ENGINE_SUBJECT" envDefault:"gamesession.engine.check"`
	EventsSubject string `env:"EVENTS_SUBJECT" envDefault:"gamesession.events"`

	TimeoutBlocks int           `env:"GAME_TIMEOUT_BLOCKS" envDefault:"200"`
	BlockDuration time.Duration `env:"GAME_BLOCK_DURATION" envDefault:"3s"`

	EnginePicker string `env:"ENGINE_PICKER" envDefault:"random"`
	EngineAnswer string `env:"ENGINE_ANSWER" envDefault:"horse"`
	DailySalt    string `env:"DAILY_SALT" envDefault:"dev-salt"`

	AnswersFile string `env:"WORDS_ANSWERS_FILE"`
	AllowedFile string `env:"WORDS_ALLOWED_FILE"`

	CheckWaitTimeout time.Duration `env:"CHECK_WAIT_TIMEOUT" envDefault:"15s"`
	CheckRatePerSec  float64       `env:"CHECK_RATE_PER_SEC" envDefault:"5"`
	CheckRateBurst   int           `env:"CHECK_RATE_BURST" envDefault:"10"`

	// DebugToken unlocks /debug/sessions; empty disables it.
	DebugToken string `env:"DEBUG_TOKEN"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.TimeoutBlocks <= 0 {
		return fmt.Errorf("GAME_TIMEOUT_BLOCKS must be positive, got %d", c.TimeoutBlocks)
	}
	if c.BlockDuration <= 0 {
		return fmt.Errorf("GAME_BLOCK_DURATION must be positive, got %s", c.BlockDuration)
	}
	switch strings.ToLower(c.EnginePicker) {
	case PickerRandom, PickerDaily, PickerFixed:
	default:
		return fmt.Errorf("ENGINE_PICKER must be random, daily or fixed, got %q", c.EnginePicker)
	}
	if c.EngineSubject == "" || c.EventsSubject == "" {
		return fmt.Errorf("ENGINE_SUBJECT and EVENTS_SUBJECT must be set")
	}
	if c.CheckRateBurst < 1 {
		return fmt.Errorf("CHECK_RATE_BURST must be at least 1, got %d", c.CheckRateBurst)
	}
	return nil
}

// GameTimeout is the game horizon: TimeoutBlocks blocks of BlockDuration.
func (c Config) GameTimeout() time.Duration {
	return time.Duration(c.TimeoutBlocks) * c.BlockDuration
}

// JWTTTL is the issued token lifetime.
func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTExpiresDays) * 24 * time.Hour
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c Config) SecureCookies() bool { return c.NodeEnv == "production" }

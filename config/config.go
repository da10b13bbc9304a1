// Package config aggregates application configuration on top of the core
// bot configuration: database, AI generator, content sheets, decks and
// program libraries.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/makbot/core/config"
	coredatabase "github.com/m3rciful/makbot/core/database"
)

// AIConfig holds settings for the chat-completions text generator.
type AIConfig struct {
	APIKey  string `yaml:"api_key" envconfig:"XAI_API_KEY"`
	BaseURL string `yaml:"base_url" envconfig:"XAI_BASE_URL"`
	Model   string `yaml:"model" envconfig:"XAI_MODEL"`
}

// SheetsConfig points at the Google Sheets worksheet holding program content.
type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file" envconfig:"GOOGLE_SHEETS_CREDENTIALS"`
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	ReadRange       string `yaml:"read_range" envconfig:"SHEETS_READ_RANGE"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" envconfig:"SHEETS_CACHE_TTL_SECONDS"`
}

// CardsConfig describes the card deck: image directory and deck size.
type CardsConfig struct {
	Dir      string `yaml:"dir" envconfig:"CARDS_DIR"`
	DeckSize int    `yaml:"deck_size" envconfig:"CARDS_DECK_SIZE"`
}

// BotConfig carries bot-wide behaviour knobs.
type BotConfig struct {
	Timezone string `yaml:"timezone" envconfig:"TIMEZONE"`
	// UnlimitedUsers bypass the once-per-day card guard.
	UnlimitedUsers []int64 `yaml:"unlimited_users" envconfig:"NO_CARD_LIMIT_USERS"`
}

// ProfileConfig controls the user profile builder.
type ProfileConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" envconfig:"PROFILE_TTL_SECONDS"`
}

// ProgramsConfig lists the known scheduled programs by kind (id -> title).
type ProgramsConfig struct {
	Tutorials map[string]string `yaml:"tutorials"`
	Marathons map[string]string `yaml:"marathons"`
}

// Config is the full application configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	AI       AIConfig            `yaml:"ai"`
	Sheets   SheetsConfig        `yaml:"sheets"`
	Cards    CardsConfig         `yaml:"cards"`
	Bot      BotConfig           `yaml:"bot"`
	Profile  ProfileConfig       `yaml:"profile"`
	Programs ProgramsConfig      `yaml:"programs"`
}

// CoreConfig exposes the embedded core configuration for the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Location resolves the configured timezone. Normalize guarantees validity.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Bot.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Unlimited reports whether the user is on the no-daily-limit allow-list.
func (c *Config) Unlimited(userID int64) bool {
	for _, id := range c.Bot.UnlimitedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if strings.TrimSpace(cfg.AI.BaseURL) == "" {
		cfg.AI.BaseURL = "https://api.x.ai/v1"
	}
	if strings.TrimSpace(cfg.AI.Model) == "" {
		cfg.AI.Model = "grok-2-1212"
	}

	if cfg.Sheets.CacheTTLSeconds <= 0 {
		cfg.Sheets.CacheTTLSeconds = 300
	}
	if strings.TrimSpace(cfg.Sheets.ReadRange) == "" {
		cfg.Sheets.ReadRange = "Sheet1!A2:K"
	}

	if strings.TrimSpace(cfg.Cards.Dir) == "" {
		cfg.Cards.Dir = "cards"
	}
	if cfg.Cards.DeckSize <= 0 {
		cfg.Cards.DeckSize = 52
	}

	if strings.TrimSpace(cfg.Bot.Timezone) == "" {
		cfg.Bot.Timezone = "Europe/Moscow"
	}
	if _, err := time.LoadLocation(cfg.Bot.Timezone); err != nil {
		return fmt.Errorf("invalid bot.timezone %q: %w", cfg.Bot.Timezone, err)
	}

	if cfg.Profile.TTLSeconds <= 0 {
		cfg.Profile.TTLSeconds = 1800
	}
	return nil
}

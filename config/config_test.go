package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Core.Telegram.Token = "123:abc"
	cfg.AI.APIKey = "xai-test"
	return cfg
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, "https://api.x.ai/v1", cfg.AI.BaseURL)
	assert.Equal(t, "grok-2-1212", cfg.AI.Model)
	assert.Equal(t, 300, cfg.Sheets.CacheTTLSeconds)
	assert.Equal(t, "Sheet1!A2:K", cfg.Sheets.ReadRange)
	assert.Equal(t, "cards", cfg.Cards.Dir)
	assert.Equal(t, 52, cfg.Cards.DeckSize)
	assert.Equal(t, "Europe/Moscow", cfg.Bot.Timezone)
	assert.Equal(t, 1800, cfg.Profile.TTLSeconds)
}

func TestNormalizeRequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.AI.APIKey = "  "
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRejectsBadTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Bot.Timezone = "Mars/Olympus"
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Model = "grok-3"
	cfg.Cards.DeckSize = 78
	cfg.Bot.Timezone = "UTC"
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, "grok-3", cfg.AI.Model)
	assert.Equal(t, 78, cfg.Cards.DeckSize)
	assert.Equal(t, "UTC", cfg.Bot.Timezone)
}

func TestUnlimited(t *testing.T) {
	cfg := validConfig()
	cfg.Bot.UnlimitedUsers = []int64{42, 99}

	assert.True(t, cfg.Unlimited(42))
	assert.True(t, cfg.Unlimited(99))
	assert.False(t, cfg.Unlimited(7))
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := validConfig()
	cfg.Bot.Timezone = "garbage"
	assert.Equal(t, "UTC", cfg.Location().String())
}

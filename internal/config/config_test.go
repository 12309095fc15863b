package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", path)
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	writeConfig(t, `
discord_token: from-file
prefix: "?"
owner_ids: ["1", "2"]
wizard:
  timeout_seconds: 60
giveaway:
  emoji: "🎉"
`)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("WIZARD_DELETE_BATCH_SIZE", "500")
	t.Setenv("LEVELS_TOP_LIMIT", "25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DiscordToken)
	assert.Equal(t, "?", cfg.Prefix)
	assert.Equal(t, []string{"1", "2"}, cfg.OwnerIDs)
	assert.Equal(t, time.Minute, cfg.Wizard.Timeout())
	assert.Equal(t, 100, cfg.Wizard.DeleteBatchSize)
	assert.Equal(t, "🎉", cfg.Giveaway.Emoji)
	assert.Equal(t, "⭐", cfg.Starboard.Emoji)
	assert.Equal(t, 25, cfg.Levels.TopLimit)
	assert.Equal(t, 5*time.Second, cfg.CommandCooldown())
}

func TestLoadOwnerIDsFromEnv(t *testing.T) {
	writeConfig(t, "discord_token: token\n")
	t.Setenv("OWNER_IDS", "10,20,30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "20", "30"}, cfg.OwnerIDs)
}

func TestLoadRequiresToken(t *testing.T) {
	writeConfig(t, "prefix: '!'\n")
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != zapcore.DebugLevel {
		t.Fatalf("expected debug level")
	}
	if parseLevel("verbose") != zapcore.InfoLevel {
		t.Fatalf("unknown levels should fall back to info")
	}
}

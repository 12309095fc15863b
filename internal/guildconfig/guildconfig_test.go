package guildconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"guildwarden/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftDotPaths(t *testing.T) {
	draft := NewDraft()
	draft.Set("id", "g1")
	draft.Set("starboard.channel_id", "c9")
	draft.Set("starboard.enabled", true)

	value, ok := draft.Get("starboard.channel_id")
	require.True(t, ok)
	assert.Equal(t, "c9", value)
	minimum, ok := draft.Get("starboard.minimum")
	require.True(t, ok)
	assert.Equal(t, 3, minimum)
	assert.False(t, draft.Has("welcome_role"))
	assert.Equal(t, []string{"welcome_role", "rules_channel"}, draft.Missing([]string{"id", "welcome_role", "rules_channel"}))
}

func TestCommitRewritesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guilds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"prefix":"!","owner_ids":["o1"],"allowed_level_channels":["old"],"guilds":[]}`), 0o600))

	registry, err := Load(path)
	require.NoError(t, err)
	assert.False(t, registry.Has("g1"))
	assert.Equal(t, "!", registry.Prefix("?"))
	assert.True(t, registry.IsOwner("o1"))

	draft := NewDraft()
	draft.Set("id", "g1")
	draft.Set("general_channel", "c-general")
	draft.Set("access_level_roles", []string{"r0", "r1", "r2", "r3"})
	draft.Set("webhooks", []platform.Webhook{{ID: "w1", Name: "audit-logs", Token: "t"}})
	cfg, err := registry.Commit(draft)
	require.NoError(t, err)
	assert.Equal(t, "g1", cfg.ID)
	assert.Equal(t, 3, cfg.Starboard.Minimum)
	assert.True(t, registry.Has("g1"))
	assert.True(t, registry.LevelChannelAllowed("c-general"))
	assert.True(t, registry.LevelChannelAllowed("old"))
	assert.False(t, registry.LevelChannelAllowed("c-other"))

	hook, ok := cfg.Webhook("audit-logs")
	require.True(t, ok)
	assert.Equal(t, "w1", hook.ID)

	_, err = registry.Commit(draft)
	assert.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Guilds, 1)
	assert.Equal(t, "g1", doc.Guilds[0]["id"])
	assert.Equal(t, "!", doc.Prefix)

	reloaded, err := Load(path)
	require.NoError(t, err)
	got, ok := reloaded.Get("g1")
	require.True(t, ok)
	assert.Equal(t, []string{"r0", "r1", "r2", "r3"}, got.AccessLevelRoles)
}

func TestCommitKeepsOpenLevelAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guilds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"allowed_level_channels":[],"guilds":[]}`), 0o600))
	registry, err := Load(path)
	require.NoError(t, err)

	draft := NewDraft()
	draft.Set("id", "g1")
	draft.Set("general_channel", "c-general")
	_, err = registry.Commit(draft)
	require.NoError(t, err)
	assert.True(t, registry.LevelChannelAllowed("c-general"))
	assert.True(t, registry.LevelChannelAllowed("c-other"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Empty(t, doc.AllowedLevelChannels)
}

func TestLoadMissingFile(t *testing.T) {
	registry, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, registry.All())
}

func TestAddOwnersIsNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guilds.json")
	registry, err := Load(path)
	require.NoError(t, err)
	registry.AddOwners("op1", "", "op1")
	assert.True(t, registry.IsOwner("op1"))
	assert.False(t, registry.IsOwner(""))

	draft := NewDraft()
	draft.Set("id", "g2")
	_, err = registry.Commit(draft)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, reloaded.IsOwner("op1"))
}

func TestHasAccessLevel(t *testing.T) {
	cfg := GuildConfig{AccessLevelRoles: []string{"owner", "admin", "mod", "trainee"}}
	assert.True(t, cfg.HasAccessLevel([]string{"admin"}, LevelModerator))
	assert.False(t, cfg.HasAccessLevel([]string{"trainee"}, LevelModerator))
	assert.True(t, cfg.HasAccessLevel([]string{"trainee"}, LevelTrainee))
}

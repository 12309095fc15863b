// Package guildconfig owns the per-guild configuration document written by
// the setup wizard.
package guildconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"guildwarden/internal/platform"
)

var ErrExists = errors.New("guildconfig: guild already configured")

// Access levels index GuildConfig.AccessLevelRoles.
const (
	LevelOwner = iota
	LevelAdmin
	LevelModerator
	LevelTrainee
)

var AccessLevelNames = []string{"Owner", "Admin", "Moderator", "Trainee"}

type Starboard struct {
	Enabled      bool   `json:"enabled"`
	ChannelID    string `json:"channel_id,omitempty"`
	Minimum      int    `json:"minimum"`
	ReactionOnly bool   `json:"reaction_only"`
}

type GuildConfig struct {
	ID                    string             `json:"id"`
	MFAModeration         bool               `json:"mfa_moderation"`
	AccessLevelRoles      []string           `json:"access_level_roles"`
	StaffServer           string             `json:"staff-server"`
	FilePermissionsRole   string             `json:"file_permissions_role"`
	WelcomeRole           string             `json:"welcome_role,omitempty"`
	PartnerRewardsChannel string             `json:"partner_rewards_channel"`
	RulesChannel          string             `json:"rules_channel"`
	Starboard             Starboard          `json:"starboard"`
	GeneralChannel        string             `json:"general_channel"`
	LockdownChannel       string             `json:"lockdown_channel,omitempty"`
	Webhooks              []platform.Webhook `json:"webhooks"`
	StaffServerCategory   string             `json:"staff_server_category,omitempty"`
	ReportsChannel        string             `json:"reports_channel,omitempty"`
	StaffCommandsChannel  string             `json:"staff_commands_channel,omitempty"`
	PunishmentChannel     string             `json:"punishment_channel,omitempty"`
	PartnershipChannels   []string           `json:"partnership_channels"`
	ReportRegex           []string           `json:"report_regex"`
	ShopItems             []json.RawMessage  `json:"shop_items"`
}

func (c GuildConfig) Webhook(name string) (platform.Webhook, bool) {
	for _, hook := range c.Webhooks {
		if hook.Name == name {
			return hook, true
		}
	}
	return platform.Webhook{}, false
}

// HasAccessLevel reports whether any of roles is configured at level or a
// more privileged one.
func (c GuildConfig) HasAccessLevel(roles []string, level int) bool {
	for i := 0; i <= level && i < len(c.AccessLevelRoles); i++ {
		if slices.Contains(roles, c.AccessLevelRoles[i]) {
			return true
		}
	}
	return false
}

// Document is the on-disk layout: bot-wide settings plus one object per
// configured guild.
type Document struct {
	Prefix               string           `json:"prefix,omitempty"`
	OwnerIDs             []string         `json:"owner_ids"`
	AllowedLevelChannels []string         `json:"allowed_level_channels"`
	Guilds               []map[string]any `json:"guilds"`
}

func decode(raw map[string]any) (GuildConfig, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return GuildConfig{}, err
	}
	var cfg GuildConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return GuildConfig{}, err
	}
	if cfg.ID == "" {
		return GuildConfig{}, errors.New("guild config without id")
	}
	return cfg, nil
}

// Registry is the single owner of the loaded configuration.
type Registry struct {
	mu     sync.RWMutex
	path   string
	doc    Document
	guilds map[string]GuildConfig
	// operators come from the process config and are never written back.
	operators []string
}

// Load reads path; a missing file yields an empty document.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, guilds: make(map[string]GuildConfig)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guild config: %w", err)
	}
	if err := json.Unmarshal(data, &r.doc); err != nil {
		return nil, fmt.Errorf("parse guild config: %w", err)
	}
	for i, raw := range r.doc.Guilds {
		cfg, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("guild config %d: %w", i, err)
		}
		r.guilds[cfg.ID] = cfg
	}
	return r, nil
}

func (r *Registry) Get(guildID string) (GuildConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.guilds[guildID]
	return cfg, ok
}

func (r *Registry) Has(guildID string) bool {
	_, ok := r.Get(guildID)
	return ok
}

func (r *Registry) All() []GuildConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]GuildConfig, 0, len(r.guilds))
	for _, cfg := range r.guilds {
		out = append(out, cfg)
	}
	return out
}

func (r *Registry) Prefix(fallback string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.doc.Prefix != "" {
		return r.doc.Prefix
	}
	return fallback
}

// AddOwners grants bot owner rights to ids for the lifetime of the process.
func (r *Registry) AddOwners(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if id != "" && !slices.Contains(r.operators, id) {
			r.operators = append(r.operators, id)
		}
	}
}

func (r *Registry) IsOwner(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.doc.OwnerIDs, userID) || slices.Contains(r.operators, userID)
}

// LevelChannelAllowed reports whether messages in channelID earn XP. An empty
// allowlist admits every channel.
func (r *Registry) LevelChannelAllowed(channelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.doc.AllowedLevelChannels) == 0 || slices.Contains(r.doc.AllowedLevelChannels, channelID)
}

// Commit turns draft into a persisted guild configuration and rewrites the
// whole document. When levelling is restricted to an allowlist, the general
// channel joins it.
func (r *Registry) Commit(draft *Draft) (GuildConfig, error) {
	raw := draft.Map()
	cfg, err := decode(raw)
	if err != nil {
		return GuildConfig{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.guilds[cfg.ID]; exists {
		return GuildConfig{}, ErrExists
	}

	next := r.doc
	next.Guilds = append(slices.Clone(r.doc.Guilds), raw)
	next.AllowedLevelChannels = slices.Clone(r.doc.AllowedLevelChannels)
	if len(next.AllowedLevelChannels) > 0 && cfg.GeneralChannel != "" && !slices.Contains(next.AllowedLevelChannels, cfg.GeneralChannel) {
		next.AllowedLevelChannels = append(next.AllowedLevelChannels, cfg.GeneralChannel)
	}
	if err := write(r.path, next); err != nil {
		return GuildConfig{}, err
	}
	r.doc = next
	r.guilds[cfg.ID] = cfg
	return cfg, nil
}

func write(path string, doc Document) error {
	if doc.OwnerIDs == nil {
		doc.OwnerIDs = []string{}
	}
	if doc.AllowedLevelChannels == nil {
		doc.AllowedLevelChannels = []string{}
	}
	data, err := json.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("encode guild config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".guilds-*.json")
	if err != nil {
		return fmt.Errorf("write guild config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write guild config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write guild config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

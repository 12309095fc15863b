// Package starboard mirrors starred messages into a guild's starboard
// channel and keeps their star counts in sync.
package starboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/platform"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

type Config struct {
	Emoji string
}

func DefaultConfig() Config {
	return Config{Emoji: "⭐"}
}

type Module struct {
	store     *storage.Store
	transport platform.Transport
	configs   *guildconfig.Registry
	audit     *audit.Logger
	logger    *zap.Logger
	config    Config
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*messageLock
}

type messageLock struct {
	sync.Mutex
	refs int
}

func New(store *storage.Store, transport platform.Transport, configs *guildconfig.Registry, cfg Config, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{
		store:     store,
		transport: transport,
		configs:   configs,
		audit:     auditLogger,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
		locks:     make(map[string]*messageLock),
	}
}

// lock serializes every read-modify-write of one message's starrers. The
// returned func releases it.
func (m *Module) lock(messageID string) func() {
	m.mu.Lock()
	l, ok := m.locks[messageID]
	if !ok {
		l = &messageLock{}
		m.locks[messageID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, messageID)
		}
		m.mu.Unlock()
	}
}

type ReactionEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
	Added     bool
}

// AddStar records userID as a starrer. It is a no-op when the user already
// starred the message; changed reports whether anything was written.
func (m *Module) AddStar(ctx context.Context, star storage.Star, userID string) (storage.Star, bool, error) {
	if slices.Contains(star.Users, userID) {
		return star, false, nil
	}
	users := append(slices.Clone(star.Users), userID)
	return m.replace(ctx, star, users)
}

// RemoveStar drops userID from the starrers, a no-op when absent.
func (m *Module) RemoveStar(ctx context.Context, star storage.Star, userID string) (storage.Star, bool, error) {
	idx := slices.Index(star.Users, userID)
	if idx == -1 {
		return star, false, nil
	}
	users := slices.Delete(slices.Clone(star.Users), idx, idx+1)
	return m.replace(ctx, star, users)
}

// RefreshStars replaces the starrers with the current reaction snapshot and
// re-renders unconditionally.
func (m *Module) RefreshStars(ctx context.Context, star storage.Star) (storage.Star, error) {
	reactors, err := m.transport.ReactionUsers(ctx, star.ChannelID, star.MessageID, m.config.Emoji)
	if err != nil {
		return star, fmt.Errorf("fetch star reactions: %w", err)
	}
	users := make([]string, 0, len(reactors))
	for _, user := range reactors {
		if !slices.Contains(users, user.ID) {
			users = append(users, user.ID)
		}
	}
	updated, _, err := m.replace(ctx, star, users)
	return updated, err
}

// Refresh reconciles a guild's starboard entry with the live reactions on its
// message. Entries of other guilds are reported as not found.
func (m *Module) Refresh(ctx context.Context, guildID, messageID string) (storage.Star, error) {
	defer m.lock(messageID)()
	star, err := m.store.Star(ctx, messageID)
	if err != nil {
		return storage.Star{}, err
	}
	if star.GuildID != guildID {
		return storage.Star{}, storage.ErrStarNotFound
	}
	return m.RefreshStars(ctx, star)
}

func (m *Module) replace(ctx context.Context, star storage.Star, users []string) (storage.Star, bool, error) {
	if err := m.store.SetStarUsers(ctx, star.MessageID, users); err != nil {
		return star, false, fmt.Errorf("update star users: %w", err)
	}
	star.Users = users
	if err := m.render(ctx, star); err != nil {
		return star, true, err
	}
	m.audit.Log(ctx, audit.LevelInfo, star.GuildID, star.AuthorID, audit.EventStarboardSynced, fmt.Sprintf("message=%s stars=%d", star.MessageID, len(users)))
	return star, true, nil
}

func (m *Module) render(ctx context.Context, star storage.Star) error {
	cfg, ok := m.configs.Get(star.GuildID)
	if !ok || cfg.Starboard.ChannelID == "" {
		return nil
	}
	original, err := m.transport.Message(ctx, star.ChannelID, star.MessageID)
	if err != nil {
		return fmt.Errorf("fetch starred message: %w", err)
	}
	if _, err := m.transport.EditMessage(ctx, cfg.Starboard.ChannelID, star.StarboardID, Render(len(star.Users), m.config.Emoji, original)); err != nil {
		return fmt.Errorf("update starboard message: %w", err)
	}
	return nil
}

// HandleReaction routes a reaction change. The first reaction that brings a
// message to the guild minimum posts it to the starboard.
func (m *Module) HandleReaction(ctx context.Context, ev ReactionEvent) error {
	if ev.Emoji != m.config.Emoji {
		return nil
	}
	cfg, ok := m.configs.Get(ev.GuildID)
	if !ok || !cfg.Starboard.Enabled || cfg.Starboard.ChannelID == "" || ev.ChannelID == cfg.Starboard.ChannelID {
		return nil
	}

	defer m.lock(ev.MessageID)()
	star, err := m.store.Star(ctx, ev.MessageID)
	if errors.Is(err, storage.ErrStarNotFound) {
		if !ev.Added {
			return nil
		}
		return m.create(ctx, cfg, ev)
	}
	if err != nil {
		return fmt.Errorf("load star: %w", err)
	}
	if ev.Added {
		_, _, err = m.AddStar(ctx, star, ev.UserID)
	} else {
		_, _, err = m.RemoveStar(ctx, star, ev.UserID)
	}
	return err
}

func (m *Module) create(ctx context.Context, cfg guildconfig.GuildConfig, ev ReactionEvent) error {
	reactors, err := m.transport.ReactionUsers(ctx, ev.ChannelID, ev.MessageID, m.config.Emoji)
	if err != nil {
		return fmt.Errorf("fetch star reactions: %w", err)
	}
	var users []string
	for _, user := range reactors {
		if !slices.Contains(users, user.ID) {
			users = append(users, user.ID)
		}
	}
	if len(users) < cfg.Starboard.Minimum {
		return nil
	}

	original, err := m.transport.Message(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		return fmt.Errorf("fetch starred message: %w", err)
	}
	posted, err := m.transport.SendMessage(ctx, cfg.Starboard.ChannelID, Render(len(users), m.config.Emoji, original))
	if err != nil {
		return fmt.Errorf("post starboard message: %w", err)
	}
	star := storage.Star{
		MessageID:   ev.MessageID,
		GuildID:     ev.GuildID,
		ChannelID:   ev.ChannelID,
		AuthorID:    original.Author.ID,
		StarboardID: posted.ID,
		Users:       users,
		CreatedAt:   m.now(),
	}
	if err := m.store.CreateStar(ctx, star); err != nil {
		return fmt.Errorf("persist star: %w", err)
	}
	m.logger.Debug("starboard entry created", zap.String("guild_id", ev.GuildID), zap.String("message_id", ev.MessageID), zap.Int("stars", len(users)))
	return nil
}

func Render(count int, emoji string, msg platform.Message) string {
	return fmt.Sprintf("%s **%d** <#%s>\n%s\n- %s", emoji, count, msg.ChannelID, msg.Content, msg.Author.Tag())
}

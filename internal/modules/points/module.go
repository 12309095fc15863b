// Package points owns vault transfers and message levelling.
package points

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"guildwarden/internal/cmderr"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/platform"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

// Need is the XP required to advance from level to level+1.
func Need(level int64) int64 {
	return 5*level*level + 50*level + 100
}

type Config struct {
	MinXP      int64
	MaxXP      int64
	XPCooldown time.Duration
	TopLimit   int
}

func DefaultConfig() Config {
	return Config{MinXP: 15, MaxXP: 25, XPCooldown: time.Minute, TopLimit: 10}
}

type Module struct {
	store  *storage.Store
	audit  *audit.Logger
	logger *zap.Logger
	config Config

	mu     sync.Mutex
	locked map[string]struct{}
	lastXP map[string]time.Time

	now func() time.Time
	rng func(n int64) int64
}

func New(store *storage.Store, cfg Config, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{
		store:  store,
		audit:  auditLogger,
		logger: logger,
		config: cfg,
		locked: make(map[string]struct{}),
		lastXP: make(map[string]time.Time),
		now:    time.Now,
		rng:    rand.Int63n,
	}
}

// Locked reports whether userID is a party to a transfer in flight.
func (m *Module) Locked(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locked[userID]
	return ok
}

func (m *Module) lock(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locked[userID]; ok {
		return false
	}
	m.locked[userID] = struct{}{}
	return true
}

func (m *Module) unlock(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, userID)
}

// Transfer moves amount from the sender's vault to the recipient's. Both
// users are locked for the duration so neither can join another transfer.
func (m *Module) Transfer(ctx context.Context, guildID string, from, to platform.User, amount int64) (storage.Points, storage.Points, error) {
	if from.ID == to.ID {
		return storage.Points{}, storage.Points{}, cmderr.MentionUser()
	}
	if amount < 1 {
		return storage.Points{}, storage.Points{}, cmderr.InvalidNumber(1)
	}
	if !m.lock(from.ID) {
		return storage.Points{}, storage.Points{}, cmderr.LockedPoints(true)
	}
	defer m.unlock(from.ID)
	if !m.lock(to.ID) {
		return storage.Points{}, storage.Points{}, cmderr.LockedPoints(false)
	}
	defer m.unlock(to.ID)

	sender, recipient, err := m.store.TransferPoints(ctx, from.ID, to.ID, amount)
	if errors.Is(err, storage.ErrInsufficientPoints) {
		return storage.Points{}, storage.Points{}, cmderr.NotEnoughPoints(amount)
	}
	if err != nil {
		return storage.Points{}, storage.Points{}, fmt.Errorf("transfer points: %w", err)
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, from.ID, audit.EventPointsTransferred, fmt.Sprintf("to=%s amount=%d", to.ID, amount))
	return sender, recipient, nil
}

func (m *Module) Balance(ctx context.Context, userID string) (storage.Points, error) {
	return m.store.Points(ctx, userID)
}

// AwardMessage grants XP for a message unless the author was rewarded
// within the cooldown. leveled is set when the award crossed a level.
func (m *Module) AwardMessage(ctx context.Context, userID string) (storage.Level, bool, error) {
	now := m.now()
	m.mu.Lock()
	if last, ok := m.lastXP[userID]; ok && now.Sub(last) < m.config.XPCooldown {
		m.mu.Unlock()
		return storage.Level{}, false, nil
	}
	m.lastXP[userID] = now
	m.mu.Unlock()

	xp := m.config.MinXP
	if spread := m.config.MaxXP - m.config.MinXP; spread > 0 {
		xp += m.rng(spread + 1)
	}
	level, leveled, err := m.store.AddXP(ctx, userID, xp, Need)
	if err != nil {
		return storage.Level{}, false, fmt.Errorf("award xp: %w", err)
	}
	if leveled {
		m.logger.Debug("level up", zap.String("user_id", userID), zap.Int64("level", level.Level))
	}
	return level, leveled, nil
}

func (m *Module) Level(ctx context.Context, userID string) (storage.Level, error) {
	return m.store.Level(ctx, userID)
}

func (m *Module) Top(ctx context.Context) ([]storage.Level, error) {
	return m.store.TopLevels(ctx, m.config.TopLimit)
}

// RenderLevel is the level card for a user.
func RenderLevel(user platform.User, level storage.Level) string {
	return fmt.Sprintf("**%s**\nLevel **%d**\nXP: **%d**/**%d**", user.Tag(), level.Level, level.XP, Need(level.Level))
}

func RenderLevelUp(user platform.User, level int64) string {
	return fmt.Sprintf("Congrats %s, you're now level %d.", user.Mention(), level)
}

// RenderTop numbers levels from 1. names maps user ids to tags.
func RenderTop(levels []storage.Level, names map[string]string) string {
	var out string
	for i, level := range levels {
		name := level.UserID
		if tag, ok := names[level.UserID]; ok {
			name = tag
		}
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("**#%d** - %s Level %d", i+1, name, level.Level)
	}
	return out
}

func RenderTransfer(to platform.User, amount int64) string {
	return fmt.Sprintf("Transferred **%d** points to %s.", amount, to.Tag())
}

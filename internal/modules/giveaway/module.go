// Package giveaway runs reaction giveaways: start, scheduled end, manual end
// and restoring pending timers after a restart.
package giveaway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"guildwarden/internal/cmderr"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/platform"
	"guildwarden/internal/storage"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

type Config struct {
	Emoji   string
	Workers int
}

func DefaultConfig() Config {
	return Config{Emoji: "🎁", Workers: 8}
}

type Module struct {
	store     *storage.Store
	transport platform.Transport
	configs   *guildconfig.Registry
	audit     *audit.Logger
	logger    *zap.Logger
	config    Config

	clock Clock
	rng   func(n int) int

	mu     sync.Mutex
	timers map[string]Timer
}

func New(store *storage.Store, transport platform.Transport, configs *guildconfig.Registry, cfg Config, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Module{
		store:     store,
		transport: transport,
		configs:   configs,
		audit:     auditLogger,
		logger:    logger,
		config:    cfg,
		clock:     realClock{},
		rng:       rand.Intn,
		timers:    make(map[string]Timer),
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

func (m *Module) WithRand(rng func(n int) int) {
	m.rng = rng
}

type StartRequest struct {
	GuildID            string
	ChannelID          string
	CreatedBy          string
	Prize              string
	Duration           time.Duration
	MessageRequirement *int64
	Requirement        *string
}

// Start announces a giveaway, persists it and arms its end timer.
func (m *Module) Start(ctx context.Context, req StartRequest) (storage.Giveaway, error) {
	start := m.clock.Now()
	g := storage.Giveaway{
		GuildID:            req.GuildID,
		ChannelID:          req.ChannelID,
		CreatedBy:          req.CreatedBy,
		Prize:              req.Prize,
		Start:              start,
		End:                start.Add(req.Duration),
		MessageRequirement: req.MessageRequirement,
		Requirement:        req.Requirement,
	}
	msg, err := m.transport.SendMessage(ctx, req.ChannelID, RenderStart(g, m.config.Emoji))
	if err != nil {
		return storage.Giveaway{}, fmt.Errorf("announce giveaway: %w", err)
	}
	g.MessageID = msg.ID
	if err := m.transport.AddReaction(ctx, req.ChannelID, msg.ID, m.config.Emoji); err != nil {
		m.logger.Warn("giveaway reaction failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
	if err := m.store.CreateGiveaway(ctx, g); err != nil {
		return storage.Giveaway{}, fmt.Errorf("persist giveaway: %w", err)
	}
	m.schedule(g)
	m.audit.Log(ctx, audit.LevelInfo, g.GuildID, g.CreatedBy, audit.EventGiveawayStarted, fmt.Sprintf("message=%s prize=%q", g.MessageID, g.Prize))
	return g, nil
}

// Restore arms timers for every undecided giveaway. Overdue ones end as
// soon as their timer fires.
func (m *Module) Restore(ctx context.Context) (int, error) {
	pending, err := m.store.PendingGiveaways(ctx)
	if err != nil {
		return 0, fmt.Errorf("load pending giveaways: %w", err)
	}
	for _, g := range pending {
		m.schedule(g)
	}
	return len(pending), nil
}

func (m *Module) schedule(g storage.Giveaway) {
	delay := g.End.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	messageID := g.MessageID

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.timers[messageID]; ok {
		existing.Stop()
	}
	m.timers[messageID] = m.clock.AfterFunc(delay, func() {
		m.endScheduled(messageID)
	})
}

// Scheduled reports whether an end timer is armed for messageID.
func (m *Module) Scheduled(messageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[messageID]
	return ok
}

func (m *Module) cancel(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.timers[messageID]; ok {
		timer.Stop()
		delete(m.timers, messageID)
	}
}

func (m *Module) endScheduled(messageID string) {
	ctx := context.Background()
	m.mu.Lock()
	delete(m.timers, messageID)
	m.mu.Unlock()

	g, err := m.store.Giveaway(ctx, messageID)
	if err != nil {
		m.logger.Error("scheduled giveaway end failed", zap.String("message_id", messageID), zap.Error(err))
		return
	}
	if g.Decided() {
		return
	}
	if _, err := m.End(ctx, g); err != nil {
		m.logger.Error("scheduled giveaway end failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

// EndByID ends the giveaway announced by messageID ahead of its timer.
func (m *Module) EndByID(ctx context.Context, messageID string) (Outcome, error) {
	g, err := m.store.Giveaway(ctx, messageID)
	if errors.Is(err, storage.ErrGiveawayNotFound) {
		return Outcome{}, cmderr.GiveawayNotFound(messageID)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load giveaway: %w", err)
	}
	if g.Decided() {
		return Outcome{}, cmderr.GiveawayEnded()
	}
	return m.End(ctx, g)
}

type Outcome struct {
	Giveaway storage.Giveaway
	Eligible []platform.User
	Winner   *platform.User
}

// End picks a winner among the reaction entrants that meet the message
// requirement. It does not check whether g was already decided.
func (m *Module) End(ctx context.Context, g storage.Giveaway) (Outcome, error) {
	entrants, err := m.transport.ReactionUsers(ctx, g.ChannelID, g.MessageID, m.config.Emoji)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch giveaway entries: %w", err)
	}
	bot := m.transport.BotUser()
	entrants = slices.DeleteFunc(entrants, func(u platform.User) bool { return u.ID == bot.ID })

	eligible, err := m.eligible(ctx, g, entrants)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Giveaway: g, Eligible: eligible}
	winners := []string{}
	if len(eligible) > 0 {
		winner := eligible[m.rng(len(eligible))]
		outcome.Winner = &winner
		winners = append(winners, winner.ID)
	}
	if err := m.store.SetGiveawayWinners(ctx, g.MessageID, winners); err != nil {
		return Outcome{}, fmt.Errorf("record giveaway winners: %w", err)
	}
	outcome.Giveaway.Winners = winners
	m.cancel(g.MessageID)

	if _, err := m.transport.EditMessage(ctx, g.ChannelID, g.MessageID, RenderEnded(outcome.Giveaway, outcome.Winner)); err != nil {
		m.logger.Warn("giveaway edit failed", zap.String("message_id", g.MessageID), zap.Error(err))
	}
	if _, err := m.transport.SendMessage(ctx, g.ChannelID, RenderResult(outcome.Giveaway, outcome.Winner)); err != nil {
		m.logger.Warn("giveaway announcement failed", zap.String("message_id", g.MessageID), zap.Error(err))
	}
	m.audit.Log(ctx, audit.LevelInfo, g.GuildID, g.CreatedBy, audit.EventGiveawayEnded, fmt.Sprintf("message=%s eligible=%d winners=%v", g.MessageID, len(eligible), winners))
	return outcome, nil
}

// eligible keeps the entrants with at least the required number of
// messages in the guild's general channel since the giveaway started.
func (m *Module) eligible(ctx context.Context, g storage.Giveaway, entrants []platform.User) ([]platform.User, error) {
	if g.MessageRequirement == nil || len(entrants) == 0 {
		return entrants, nil
	}
	required := *g.MessageRequirement
	cfg, ok := m.configs.Get(g.GuildID)
	if !ok {
		return nil, cmderr.NoConfig()
	}

	var (
		mu     sync.Mutex
		counts = make(map[string]int64, len(entrants))
		p      = pool.New().WithContext(ctx).WithMaxGoroutines(m.config.Workers).WithCancelOnError()
	)
	for _, entrant := range entrants {
		userID := entrant.ID
		p.Go(func(ctx context.Context) error {
			count, err := m.store.CountMessagesSince(ctx, cfg.GeneralChannel, userID, g.Start)
			if err != nil {
				return fmt.Errorf("count messages of %s: %w", userID, err)
			}
			mu.Lock()
			counts[userID] = count
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	var out []platform.User
	for _, entrant := range entrants {
		if counts[entrant.ID] >= required {
			out = append(out, entrant)
		}
	}
	return out, nil
}

func RenderStart(g storage.Giveaway, emoji string) string {
	lines := []string{
		fmt.Sprintf("🎉 **GIVEAWAY** 🎉\nPrize: **%s**", g.Prize),
		fmt.Sprintf("React with %s to enter!", emoji),
		fmt.Sprintf("Ends at: %s", g.End.UTC().Format("02/01/2006 15:04 PM")),
	}
	if g.MessageRequirement != nil {
		lines = append(lines, fmt.Sprintf("Requirement: %d messages", *g.MessageRequirement))
	}
	if g.Requirement != nil {
		lines = append(lines, "Requirement: "+*g.Requirement)
	}
	return strings.Join(lines, "\n")
}

func RenderEnded(g storage.Giveaway, winner *platform.User) string {
	lines := []string{
		fmt.Sprintf("🎉 **GIVEAWAY ENDED** 🎉\nPrize: **%s**", g.Prize),
		fmt.Sprintf("Ended at: %s", g.End.UTC().Format("02/01/2006 15:04 PM")),
	}
	if winner != nil {
		lines = append(lines, "Winner: "+winner.Tag())
	} else {
		lines = append(lines, "Winner: nobody")
	}
	return strings.Join(lines, "\n")
}

func RenderResult(g storage.Giveaway, winner *platform.User) string {
	if winner == nil {
		if g.MessageRequirement != nil {
			return fmt.Sprintf("There were no eligible entries for **%s**, nobody met the message requirement.", g.Prize)
		}
		return fmt.Sprintf("There were no entries for **%s**, so there is no winner.", g.Prize)
	}
	return fmt.Sprintf("Congratulations %s, you won **%s**!", winner.Mention(), g.Prize)
}

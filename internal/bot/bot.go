package bot

import (
	"context"
	"fmt"
	"time"

	"guildwarden/internal/config"
	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/modules/starboard"
	"guildwarden/internal/platform"
	"guildwarden/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	openInitialInterval = 2 * time.Second
	openMaxInterval     = time.Minute
	openMaxElapsed      = 5 * time.Minute
	retentionInterval   = 24 * time.Hour
)

// NewSession builds the gateway session with the intents the bot relies on.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	return session, nil
}

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	session   *discordgo.Session
	router    *Router
	store     *storage.Store
	giveaways *giveaway.Module

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, session *discordgo.Session, router *Router, store *storage.Store, giveaways *giveaway.Module) *Bot {
	return &Bot{
		cfg:       cfg,
		logger:    logger,
		session:   session,
		router:    router,
		store:     store,
		giveaways: giveaways,
		done:      make(chan struct{}),
	}
}

// Start connects to the gateway, retrying with exponential backoff, then
// re-arms giveaways that were running when the process last stopped.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageUpdate)
	b.session.AddHandler(b.onMessageDeleteBulk)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)

	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(openInitialInterval),
		backoff.WithMaxInterval(openMaxInterval),
		backoff.WithMaxElapsedTime(openMaxElapsed),
	)
	err := backoff.RetryNotify(b.session.Open, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		b.logger.Warn("gateway connect failed, retrying", zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	restored, err := b.giveaways.Restore(ctx)
	if err != nil {
		b.logger.Error("failed to restore giveaways", zap.Error(err))
	} else if restored > 0 {
		b.logger.Info("giveaways restored", zap.Int("count", restored))
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.retentionLoop(loopCtx)
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
		select {
		case <-b.done:
		case <-ctx.Done():
		}
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) retentionLoop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil && ctx.Err() == nil {
			b.logger.Warn("audit log cleanup failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil {
		return
	}
	b.router.HandleMessage(context.Background(), platform.FromMessage(msg.Message))
}

func (b *Bot) onMessageUpdate(session *discordgo.Session, msg *discordgo.MessageUpdate) {
	if msg.Message == nil || msg.Author == nil {
		return
	}
	b.router.HandleEdit(context.Background(), platform.FromMessage(msg.Message))
}

func (b *Bot) onMessageDeleteBulk(session *discordgo.Session, event *discordgo.MessageDeleteBulk) {
	b.router.HandleBulkDelete(context.Background(), event.Messages)
}

func (b *Bot) onReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	b.router.HandleReaction(context.Background(), reactionEvent(event.MessageReaction, true))
}

func (b *Bot) onReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	b.router.HandleReaction(context.Background(), reactionEvent(event.MessageReaction, false))
}

func reactionEvent(reaction *discordgo.MessageReaction, added bool) starboard.ReactionEvent {
	return starboard.ReactionEvent{
		GuildID:   reaction.GuildID,
		ChannelID: reaction.ChannelID,
		MessageID: reaction.MessageID,
		UserID:    reaction.UserID,
		Emoji:     reaction.Emoji.Name,
		Added:     added,
	}
}

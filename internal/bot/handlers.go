package bot

import (
	"context"

	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/points"
	"guildwarden/internal/modules/starboard"
	"guildwarden/internal/platform"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg platform.Message) (bool, error)
}

type Reactions interface {
	HandleReaction(ctx context.Context, ev starboard.ReactionEvent) error
}

// Router turns gateway events into calls on the feature modules. It is
// independent of the gateway library so it can be driven from tests.
type Router struct {
	transport  platform.Transport
	store      *storage.Store
	configs    *guildconfig.Registry
	collector  *platform.Collector
	dispatcher Dispatcher
	points     *points.Module
	reactions  Reactions
	logger     *zap.Logger
}

func NewRouter(transport platform.Transport, store *storage.Store, configs *guildconfig.Registry, collector *platform.Collector, dispatcher Dispatcher, pointsModule *points.Module, reactions Reactions, logger *zap.Logger) *Router {
	return &Router{
		transport:  transport,
		store:      store,
		configs:    configs,
		collector:  collector,
		dispatcher: dispatcher,
		points:     pointsModule,
		reactions:  reactions,
		logger:     logger,
	}
}

// HandleMessage feeds a new message through, in order, pending wizard
// replies, the message log, levelling and command dispatch. A message
// consumed as a wizard reply goes no further.
func (r *Router) HandleMessage(ctx context.Context, msg platform.Message) {
	if msg.Author.Bot || msg.GuildID == "" {
		return
	}
	if r.collector.Offer(msg) {
		return
	}

	if err := r.store.RecordMessage(ctx, storage.MessageRecord{
		ID:        msg.ID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.Author.ID,
		SentAt:    msg.Timestamp,
	}); err != nil {
		r.logger.Warn("failed to record message", zap.String("message_id", msg.ID), zap.Error(err))
	}

	if r.configs.LevelChannelAllowed(msg.ChannelID) {
		r.award(ctx, msg)
	}

	if _, err := r.dispatcher.Dispatch(ctx, msg); err != nil {
		r.logger.Debug("command failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (r *Router) award(ctx context.Context, msg platform.Message) {
	level, leveled, err := r.points.AwardMessage(ctx, msg.Author.ID)
	if err != nil {
		r.logger.Warn("failed to award xp", zap.String("user_id", msg.Author.ID), zap.Error(err))
		return
	}
	if !leveled {
		return
	}
	if _, err := r.transport.SendMessage(ctx, msg.ChannelID, points.RenderLevelUp(msg.Author, level.Level)); err != nil {
		r.logger.Warn("failed to announce level up", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}
}

// HandleEdit dispatches an edited message so that commands can refuse
// edited invocations. Edits are not offered to the collector.
func (r *Router) HandleEdit(ctx context.Context, msg platform.Message) {
	if msg.Author.Bot || msg.GuildID == "" || msg.Content == "" {
		return
	}
	msg.Edited = true
	if _, err := r.dispatcher.Dispatch(ctx, msg); err != nil {
		r.logger.Debug("command failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

// HandleBulkDelete drops purged messages from the message log.
func (r *Router) HandleBulkDelete(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := r.store.DeleteMessages(ctx, ids); err != nil {
		r.logger.Warn("failed to forget deleted messages", zap.Int("messages", len(ids)), zap.Error(err))
	}
}

func (r *Router) HandleReaction(ctx context.Context, ev starboard.ReactionEvent) {
	if ev.GuildID == "" || ev.UserID == r.transport.BotUser().ID {
		return
	}
	if err := r.reactions.HandleReaction(ctx, ev); err != nil {
		r.logger.Warn("failed to handle reaction", zap.String("message_id", ev.MessageID), zap.Error(err))
	}
}

package audit

import (
	"context"
	"time"

	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

const (
	EventCaseCreated       = "case_created"
	EventActionFailed      = "action_failed"
	EventRelayFailed       = "relay_failed"
	EventConfigCommitted   = "config_committed"
	EventWizardAborted     = "wizard_aborted"
	EventPointsTransferred = "points_transferred"
	EventGiveawayStarted   = "giveaway_started"
	EventGiveawayEnded     = "giveaway_ended"
	EventStarboardSynced   = "starboard_synced"
)

// Logger records domain events in the audit_logs table and mirrors them to
// the process log.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	if l == nil {
		return
	}
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: l.now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit persist failed", zap.String("event", event), zap.Error(err))
		}
	}
	l.logger.Info("audit", zap.String("level", level), zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details))
}

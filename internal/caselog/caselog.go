// Package caselog records moderation cases and relays them to the staff
// audit trail.
package caselog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/platform"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

const AuditWebhook = "audit-logs"

type Action string

const (
	Ban     Action = "BAN"
	SoftBan Action = "SOFT_BAN"
	Kick    Action = "KICK"
	Mute    Action = "MUTE"
	Warn    Action = "WARN"
)

func (a Action) Verb() string {
	switch a {
	case Ban, SoftBan:
		return "Banned"
	case Kick:
		return "Kicked"
	case Mute:
		return "Muted"
	case Warn:
		return "Warned"
	default:
		return string(a)
	}
}

// Title is the display form, "SOFT_BAN" becomes "Soft ban".
func (a Action) Title() string {
	lower := strings.ToLower(strings.ReplaceAll(string(a), "_", " "))
	if lower == "" {
		return ""
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// Extras is an insertion-ordered string map.
type Extras struct {
	items []storage.Extra
}

func (e *Extras) Set(name, value string) {
	for i := range e.items {
		if e.items[i].Name == name {
			e.items[i].Value = value
			return
		}
	}
	e.items = append(e.items, storage.Extra{Name: name, Value: value})
}

func (e *Extras) Get(name string) (string, bool) {
	for _, item := range e.items {
		if item.Name == name {
			return item.Value, true
		}
	}
	return "", false
}

func (e *Extras) Items() []storage.Extra {
	return append([]storage.Extra(nil), e.items...)
}

func (e *Extras) Len() int {
	return len(e.items)
}

type Entry struct {
	GuildID          string
	Action           Action
	Moderator        platform.User
	Users            []platform.User
	Reason           string
	Extras           Extras
	ContextMessageID string
}

// AuditLine is the justification attached to the platform action.
func AuditLine(action Action, moderator platform.User, id int64) string {
	return fmt.Sprintf("%s by %s: Case %d", action.Verb(), moderator.Tag(), id)
}

type Log struct {
	store     *storage.Store
	transport platform.Transport
	configs   *guildconfig.Registry
	audit     *audit.Logger
	logger    *zap.Logger
	now       func() time.Time
}

func New(store *storage.Store, transport platform.Transport, configs *guildconfig.Registry, auditLogger *audit.Logger, logger *zap.Logger) *Log {
	return &Log{store: store, transport: transport, configs: configs, audit: auditLogger, logger: logger, now: time.Now}
}

func (l *Log) WithClock(now func() time.Time) {
	l.now = now
}

// Create allocates the next case id, persists the case with its audit line
// and relays it. A failed relay is logged and does not fail the case.
func (l *Log) Create(ctx context.Context, entry Entry) (storage.Case, error) {
	userIDs := make([]string, 0, len(entry.Users))
	for _, user := range entry.Users {
		userIDs = append(userIDs, user.ID)
	}
	record := storage.Case{
		GuildID:          entry.GuildID,
		Action:           string(entry.Action),
		ModeratorID:      entry.Moderator.ID,
		UserIDs:          userIDs,
		Reason:           entry.Reason,
		Extras:           entry.Extras.Items(),
		ContextMessageID: entry.ContextMessageID,
		CreatedAt:        l.now(),
	}

	id, err := l.store.CreateCase(ctx, record, func(id int64) string {
		return AuditLine(entry.Action, entry.Moderator, id)
	})
	if err != nil {
		return storage.Case{}, fmt.Errorf("create case: %w", err)
	}
	record.ID = id
	record.AuditLine = AuditLine(entry.Action, entry.Moderator, id)

	l.audit.Log(ctx, audit.LevelInfo, entry.GuildID, entry.Moderator.ID, audit.EventCaseCreated, fmt.Sprintf("case %d %s %s", id, entry.Action, strings.Join(userIDs, ",")))
	l.relay(ctx, record, entry)
	return record, nil
}

func (l *Log) relay(ctx context.Context, record storage.Case, entry Entry) {
	cfg, ok := l.configs.Get(entry.GuildID)
	if !ok {
		return
	}
	content := RenderRelay(record, entry)

	var err error
	if hook, ok := cfg.Webhook(AuditWebhook); ok {
		err = l.transport.ExecuteWebhook(ctx, hook, content)
	} else if cfg.PunishmentChannel != "" {
		_, err = l.transport.SendMessage(ctx, cfg.PunishmentChannel, content)
	} else {
		return
	}
	if err != nil {
		l.logger.Warn("case relay failed", zap.String("guild_id", entry.GuildID), zap.Int64("case_id", record.ID), zap.Error(err))
		l.audit.Log(ctx, audit.LevelWarn, entry.GuildID, entry.Moderator.ID, audit.EventRelayFailed, fmt.Sprintf("case %d: %v", record.ID, err))
	}
}

// RenderRelay is the staff audit trail message for a case.
func RenderRelay(record storage.Case, entry Entry) string {
	tags := make([]string, 0, len(entry.Users))
	for _, user := range entry.Users {
		tags = append(tags, user.Tag())
	}
	punished := "User punished"
	if len(tags) > 1 {
		punished = "Users punished"
	}
	lines := []string{
		fmt.Sprintf("**Case %d** | %s", record.ID, entry.Action.Title()),
		"Moderator: " + entry.Moderator.Tag(),
		punished + ": " + strings.Join(tags, ", "),
	}
	for _, extra := range record.Extras {
		lines = append(lines, extra.Name+": "+extra.Value)
	}
	lines = append(lines, "Reason: "+record.Reason)
	return strings.Join(lines, "\n")
}

const historyTimeLayout = "02/01/2006 15:04 PM"

// RenderHistory formats cases one line each, followed by their extras.
// moderators maps moderator ids to tags; unknown ids are shown raw.
func RenderHistory(cases []storage.Case, moderators map[string]string) []string {
	var lines []string
	for _, c := range cases {
		moderator := c.ModeratorID
		if tag, ok := moderators[c.ModeratorID]; ok {
			moderator = tag
		}
		lines = append(lines, fmt.Sprintf("%d: %s %s (%s): %s", c.ID, Action(c.Action).Title(), moderator, c.CreatedAt.UTC().Format(historyTimeLayout), c.Reason))
		for _, extra := range c.Extras {
			lines = append(lines, extra.Name+": "+extra.Value)
		}
	}
	return lines
}

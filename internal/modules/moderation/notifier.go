package moderation

import (
	"context"
	"fmt"

	"guildwarden/internal/caselog"
	"guildwarden/internal/platform"
)

// Delivery is the outcome of a best-effort notification. Callers may drop it.
type Delivery struct {
	UserID string
	Err    error
}

func (d Delivery) Delivered() bool {
	return d.Err == nil
}

type Notifier interface {
	Notify(ctx context.Context, user platform.User, content string) Delivery
}

// DirectNotifier sends notifications as direct messages.
type DirectNotifier struct {
	transport platform.Transport
}

func NewDirectNotifier(transport platform.Transport) *DirectNotifier {
	return &DirectNotifier{transport: transport}
}

func (n *DirectNotifier) Notify(ctx context.Context, user platform.User, content string) Delivery {
	return Delivery{UserID: user.ID, Err: n.transport.DirectMessage(ctx, user.ID, content)}
}

func punishmentNotice(guild platform.Guild, action caselog.Action, reason string) string {
	name := guild.Name
	if name == "" {
		name = guild.ID
	}
	return fmt.Sprintf("You have been %s from **%s** for: %s", noticeVerb(action), name, reason)
}

func noticeVerb(action caselog.Action) string {
	switch action {
	case caselog.SoftBan:
		return "soft banned"
	case caselog.Kick:
		return "kicked"
	default:
		return "banned"
	}
}

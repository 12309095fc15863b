package commands

import (
	"context"

	"guildwarden/internal/args"
	"guildwarden/internal/command"
	"guildwarden/internal/modules/moderation"
	"guildwarden/internal/perm"

	"go.uber.org/zap"
)

type Ban struct {
	deps Deps
}

func (b *Ban) Name() string { return "ban" }

func (b *Ban) Aliases() []command.Alias {
	return []command.Alias{
		{Name: "🔨"},
		{Name: "🍌"},
		{Name: "softban", Args: "--soft=true"},
		{Name: "soft-ban", Args: "--soft=true"},
		{Name: "ban7", Args: "--days=7"},
		{Name: "ban-7", Args: "--days=7"},
	}
}

func (b *Ban) Flags() args.Options { return moderation.BanFlags }

func (b *Ban) Permission() perm.Predicate { return staffAccess(perm.Administrator) }

func (b *Ban) Run(ctx context.Context, c *command.Context) (string, error) {
	return runModeration(ctx, b.deps, c, moderation.ActionBan)
}

type Kick struct {
	deps Deps
}

func (k *Kick) Name() string { return "kick" }

func (k *Kick) Aliases() []command.Alias { return nil }

func (k *Kick) Flags() args.Options { return moderation.KickFlags }

func (k *Kick) Permission() perm.Predicate { return staffAccess(perm.Administrator) }

func (k *Kick) Run(ctx context.Context, c *command.Context) (string, error) {
	return runModeration(ctx, k.deps, c, moderation.ActionKick)
}

// runModeration removes the invocation and hands it to the pipeline, which
// posts its own summary.
func runModeration(ctx context.Context, deps Deps, c *command.Context, action moderation.Action) (string, error) {
	if err := deps.Transport.DeleteMessage(ctx, c.Message.ChannelID, c.Message.ID); err != nil {
		deps.Logger.Debug("failed to delete moderation invocation", zap.String("message_id", c.Message.ID), zap.Error(err))
	}
	_, err := deps.Moderation.Run(ctx, moderation.Request{
		Action:     action,
		Guild:      c.Guild,
		Moderator:  c.Author(),
		Actor:      c.Actor,
		ChannelID:  c.Message.ChannelID,
		MessageID:  c.Message.ID,
		Invocation: c.Invocation,
	})
	return "", err
}

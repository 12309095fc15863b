package commands

import (
	"context"
	"strings"

	"guildwarden/internal/args"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/command"
	"guildwarden/internal/perm"
	"guildwarden/internal/wizard"
)

var botConfigModes = []string{"setup"}

// BotConfig starts the setup wizard. Only bot owners may run it.
type BotConfig struct {
	deps Deps
}

func (b *BotConfig) Name() string { return "botconfig" }

func (b *BotConfig) Aliases() []command.Alias { return nil }

func (b *BotConfig) Flags() args.Options { return args.Options{} }

func (b *BotConfig) Permission() perm.Predicate {
	return perm.Dynamic(0, func(actor perm.Context, _ *perm.Context) perm.Tri {
		if b.deps.Configs.IsOwner(actor.UserID) {
			return perm.Allow
		}
		return perm.Deny
	})
}

func (b *BotConfig) Run(ctx context.Context, c *command.Context) (string, error) {
	mode := strings.ToLower(c.Invocation.Arg(0))
	if mode != "setup" {
		return "", cmderr.InvalidMode(c.Invocation.Arg(0), botConfigModes)
	}
	_, err := b.deps.Wizard.Run(ctx, wizard.Request{
		Guild:     c.Guild,
		ChannelID: c.Message.ChannelID,
		UserID:    c.Author().ID,
		Edited:    c.Message.Edited,
	})
	return "", err
}

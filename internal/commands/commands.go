// Package commands holds the concrete prefix commands of the bot.
package commands

import (
	"context"
	"slices"

	"guildwarden/internal/analytics"
	"guildwarden/internal/command"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/giveaway"
	"guildwarden/internal/modules/moderation"
	"guildwarden/internal/modules/points"
	"guildwarden/internal/modules/starboard"
	"guildwarden/internal/perm"
	"guildwarden/internal/platform"
	"guildwarden/internal/resolve"
	"guildwarden/internal/storage"
	"guildwarden/internal/wizard"

	"go.uber.org/zap"
)

// Deps is what the commands run against.
type Deps struct {
	Transport  platform.Transport
	Resolver   *resolve.Resolver
	Configs    *guildconfig.Registry
	Store      *storage.Store
	Moderation *moderation.Module
	Points     *points.Module
	Giveaways  *giveaway.Module
	Starboard  *starboard.Module
	Wizard     *wizard.Wizard
	Analytics  *analytics.Service
	Logger     *zap.Logger
}

// All builds every command.
func All(deps Deps) []command.Command {
	return []command.Command{
		&Ban{deps: deps},
		&Kick{deps: deps},
		&BotConfig{deps: deps},
		&Transfer{deps: deps},
		&PointsBalance{deps: deps},
		&Level{deps: deps},
		&Top{deps: deps},
		&History{deps: deps},
		&ModStats{deps: deps},
		&Giveaway{deps: deps},
		&Star{deps: deps},
	}
}

// staffAccess admits members holding any configured access level role below
// owner; everyone else falls back to the predicate mask.
func staffAccess(mask int64) perm.Predicate {
	return perm.ConfigDynamic(mask, func(actor perm.Context, _ *perm.Context) perm.Tri {
		roles := actor.Config.AccessLevelRoles
		if len(roles) > 1 && slices.ContainsFunc(roles[1:], actor.HasRole) {
			return perm.Allow
		}
		return perm.Abstain
	})
}

// userTags looks up display tags for ids; unknown ids are left out.
func userTags(ctx context.Context, deps Deps, guildID string, ids []string) map[string]string {
	tags := make(map[string]string, len(ids))
	for _, id := range ids {
		if _, ok := tags[id]; ok {
			continue
		}
		user, err := deps.Resolver.User(ctx, guildID, id)
		if err != nil {
			deps.Logger.Debug("user lookup failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		tags[id] = user.Tag()
	}
	return tags
}

// targetUser resolves the first argument as a user, defaulting to the author
// when it is absent.
func targetUser(ctx context.Context, deps Deps, c *command.Context) (platform.User, bool, error) {
	token := c.Invocation.Arg(0)
	if token == "" {
		return c.Author(), true, nil
	}
	entity, ok, err := deps.Resolver.Resolve(ctx, token, resolve.KindUser, c.Guild.ID)
	if err != nil || !ok {
		return platform.User{}, false, err
	}
	user, err := deps.Resolver.User(ctx, c.Guild.ID, entity.ID)
	if err != nil {
		return platform.User{}, false, err
	}
	return user, true, nil
}

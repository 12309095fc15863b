// Package perm evaluates command permission predicates against the role
// hierarchy of a guild.
package perm

import (
	"context"
	"fmt"
	"slices"

	"guildwarden/internal/guildconfig"
	"guildwarden/internal/platform"

	"github.com/bwmarrin/discordgo"
)

const (
	Administrator  int64 = discordgo.PermissionAdministrator
	BanMembers     int64 = discordgo.PermissionBanMembers
	KickMembers    int64 = discordgo.PermissionKickMembers
	ManageServer   int64 = discordgo.PermissionManageServer
	ManageMessages int64 = discordgo.PermissionManageMessages
)

type Tri int

const (
	Abstain Tri = iota
	Allow
	Deny
)

// Context is what a predicate knows about one member of a guild.
type Context struct {
	GuildID     string
	UserID      string
	OwnerID     string
	Roles       []string
	TopPosition int
	Permissions int64
	// Config is nil when the guild has not been configured.
	Config *guildconfig.GuildConfig
}

func (c Context) IsOwner() bool {
	return c.OwnerID != "" && c.UserID == c.OwnerID
}

func (c Context) HasRole(roleID string) bool {
	return slices.Contains(c.Roles, roleID)
}

type DynamicFunc func(actor Context, target *Context) Tri

// Predicate is either a static capability mask or a dynamic function with
// the mask as fallback when the function abstains.
type Predicate struct {
	Mask        int64
	Dynamic     DynamicFunc
	NeedsConfig bool
}

func Static(mask int64) Predicate {
	return Predicate{Mask: mask}
}

func Dynamic(mask int64, fn DynamicFunc) Predicate {
	return Predicate{Mask: mask, Dynamic: fn}
}

// ConfigDynamic is a dynamic predicate that reads the guild configuration.
// Unconfigured guilds are denied without calling fn.
func ConfigDynamic(mask int64, fn DynamicFunc) Predicate {
	return Predicate{Mask: mask, Dynamic: fn, NeedsConfig: true}
}

// AccessLevel allows members holding a configured access level role at or
// above level and otherwise falls back to mask.
func AccessLevel(level int, mask int64) Predicate {
	return ConfigDynamic(mask, func(actor Context, _ *Context) Tri {
		if actor.Config.HasAccessLevel(actor.Roles, level) {
			return Allow
		}
		return Abstain
	})
}

func Evaluate(p Predicate, actor Context, target *Context) bool {
	if p.Dynamic != nil {
		if p.NeedsConfig && actor.Config == nil {
			return false
		}
		switch p.Dynamic(actor, target) {
		case Allow:
			return true
		case Deny:
			return false
		}
	}
	return HasMask(actor, p.Mask)
}

func HasMask(actor Context, mask int64) bool {
	if actor.IsOwner() || actor.Permissions&Administrator != 0 {
		return true
	}
	return actor.Permissions&mask == mask
}

// Manageable reports whether actor may take a destructive action on target.
// Rank is required even for the guild owner.
func Manageable(actor, target Context) bool {
	if target.IsOwner() {
		return false
	}
	if target.TopPosition >= actor.TopPosition {
		return false
	}
	return actor.IsOwner() || actor.TopPosition > target.TopPosition
}

// Build assembles the context of member in guild. The @everyone role shares
// the guild's id and always contributes its permissions.
func Build(ctx context.Context, transport platform.Transport, guild platform.Guild, member platform.Member, cfg *guildconfig.GuildConfig) (Context, error) {
	roles, err := transport.Roles(ctx, guild.ID)
	if err != nil {
		return Context{}, fmt.Errorf("build permission context: %w", err)
	}
	out := Context{
		GuildID: guild.ID,
		UserID:  member.User.ID,
		OwnerID: guild.OwnerID,
		Roles:   member.Roles,
		Config:  cfg,
	}
	for _, role := range roles {
		if role.ID == guild.ID {
			out.Permissions |= role.Permissions
			continue
		}
		if !slices.Contains(member.Roles, role.ID) {
			continue
		}
		out.Permissions |= role.Permissions
		if role.Position > out.TopPosition {
			out.TopPosition = role.Position
		}
	}
	return out, nil
}

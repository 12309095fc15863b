package wizard

import (
	"context"
	"fmt"

	"guildwarden/internal/platform"
)

type Kind int

const (
	KindBoolean Kind = iota
	KindRole
	KindChannel
	KindGuildID
	KindRoles
	KindChannelID
)

// DefaultFunc looks up a value for an item without asking. ok is false when
// nothing suitable exists.
type DefaultFunc func(ctx context.Context, transport platform.Transport, guild platform.Guild) (value string, ok bool, err error)

type Item struct {
	Key         string
	Name        string
	Description string
	Kind        Kind
	// Count is the exact number of roles a KindRoles answer must carry.
	Count    int
	Default  DefaultFunc
	Optional bool
}

// Items is the configuration dialogue, asked in order.
var Items = []Item{
	{
		Key:         "mfa_moderation",
		Name:        "2FA Moderation",
		Description: "Requires two factor authentication be enabled to use moderation commands.",
		Kind:        KindBoolean,
	},
	{
		Key:         "access_level_roles",
		Name:        "Access Level Roles",
		Description: "Owner, Admin, Moderator, and Trainee roles.",
		Kind:        KindRoles,
		Count:       4,
	},
	{
		Key:         StaffServerKey,
		Name:        "Staff Server ID",
		Description: "The Staff Server ID.",
		Kind:        KindGuildID,
	},
	{
		Key:         "id",
		Name:        "Guild ID",
		Description: "The ID of the guild",
		Kind:        KindGuildID,
		Default:     currentGuild,
	},
	{
		Key:         "file_permissions_role",
		Name:        "File Permissions Role",
		Description: "The role that file (mostly image) permissions are locked to.",
		Kind:        KindRole,
	},
	{
		Key:         "welcome_role",
		Name:        "Welcome Role",
		Description: "The welcome role that is pinged when members join.",
		Kind:        KindRole,
		Default:     roleNamed("Welcome"),
		Optional:    true,
	},
	{
		Key:         "partner_rewards_channel",
		Name:        "Partnership Rewards Channel",
		Description: "The partnership rewards channel.",
		Kind:        KindChannel,
		Default:     channelNamed("partner-rewards"),
	},
	{
		Key:         "rules_channel",
		Name:        "Rules Channel",
		Description: "The rules channel.",
		Kind:        KindChannel,
		Default:     channelNamed("rules"),
	},
	{
		Key:         StarboardChannelKey,
		Name:        "Starboard Channel",
		Description: "The starboard channel.",
		Kind:        KindChannel,
		Default:     channelNamed("starboard"),
		Optional:    true,
	},
	{
		Key:         "general_channel",
		Name:        "General Channel",
		Description: "The general channel.",
		Kind:        KindChannel,
		Default:     channelNamed("general"),
	},
	{
		Key:         "lockdown_channel",
		Name:        "Lockdown Channel",
		Description: "The channel everyone sees when the server is in lockdown.",
		Kind:        KindChannel,
		Default:     channelNamed("lockdown"),
		Optional:    true,
	},
}

const (
	StaffServerKey      = "staff-server"
	StarboardChannelKey = "starboard.channel_id"
)

func currentGuild(_ context.Context, _ platform.Transport, guild platform.Guild) (string, bool, error) {
	return guild.ID, guild.ID != "", nil
}

func roleNamed(name string) DefaultFunc {
	return func(ctx context.Context, transport platform.Transport, guild platform.Guild) (string, bool, error) {
		roles, err := transport.Roles(ctx, guild.ID)
		if err != nil {
			return "", false, fmt.Errorf("list roles: %w", err)
		}
		for _, role := range roles {
			if role.Name == name {
				return role.ID, true, nil
			}
		}
		return "", false, nil
	}
}

func channelNamed(name string) DefaultFunc {
	return func(ctx context.Context, transport platform.Transport, guild platform.Guild) (string, bool, error) {
		channels, err := transport.Channels(ctx, guild.ID)
		if err != nil {
			return "", false, fmt.Errorf("list channels: %w", err)
		}
		for _, channel := range channels {
			if channel.Name == name {
				return channel.ID, true, nil
			}
		}
		return "", false, nil
	}
}

func (k Kind) guidance(count int) string {
	switch k {
	case KindBoolean:
		return "y/n"
	case KindRole:
		return "role name/mention/id"
	case KindChannel:
		return "channel mention/name/id"
	case KindGuildID:
		return "Guild ID"
	case KindChannelID:
		return "channel ID"
	case KindRoles:
		return fmt.Sprintf("%d roles seperated by a comma", count)
	default:
		return ""
	}
}

// Prompt is the question posted for item.
func Prompt(item Item) string {
	text := fmt.Sprintf("What would you like the %s to be? (%s)\n%s", item.Name, item.Kind.guidance(item.Count), item.Description)
	if item.Default != nil {
		text += "\nA default was not found."
	}
	if item.Optional {
		text += "\nType `n` if you do not want this"
	}
	return text
}

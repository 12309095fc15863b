package platform

import "context"

// BulkDeleteLimit is the most message ids a single bulk delete call accepts.
const BulkDeleteLimit = 100

// Transport is everything the core needs from the chat platform. Every call
// goes over the network and may fail.
type Transport interface {
	SendMessage(ctx context.Context, channelID, content string) (Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) (Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	BulkDelete(ctx context.Context, channelID string, messageIDs []string) error
	Message(ctx context.Context, channelID, messageID string) (Message, error)

	CreateChannel(ctx context.Context, guildID string, data ChannelCreate) (Channel, error)
	CreateWebhook(ctx context.Context, channelID, name, avatarURL string) (Webhook, error)
	ExecuteWebhook(ctx context.Context, hook Webhook, content string) error

	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]User, error)

	Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	Unban(ctx context.Context, guildID, userID string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	IsBanned(ctx context.Context, guildID, userID string) (bool, error)

	Guild(ctx context.Context, guildID string) (Guild, error)
	Guilds(ctx context.Context) ([]Guild, error)
	Member(ctx context.Context, guildID, userID string) (Member, error)
	SearchMembers(ctx context.Context, guildID, query string, limit int) ([]Member, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	Channel(ctx context.Context, channelID string) (Channel, error)
	User(ctx context.Context, userID string) (User, error)
	DirectMessage(ctx context.Context, userID, content string) error

	BotUser() User
}

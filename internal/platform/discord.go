package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Transport on top of a discordgo session.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (Message, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return Message{}, wrap("send message", err)
	}
	return fromMessage(msg), nil
}

func (d *Discord) EditMessage(ctx context.Context, channelID, messageID, content string) (Message, error) {
	msg, err := d.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	if err != nil {
		return Message{}, wrap("edit message", err)
	}
	return fromMessage(msg), nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return wrap("delete message", d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (d *Discord) BulkDelete(ctx context.Context, channelID string, messageIDs []string) error {
	if len(messageIDs) > BulkDeleteLimit {
		return fmt.Errorf("bulk delete: %d ids exceeds limit of %d", len(messageIDs), BulkDeleteLimit)
	}
	return wrap("bulk delete", d.session.ChannelMessagesBulkDelete(channelID, messageIDs, discordgo.WithContext(ctx)))
}

func (d *Discord) Message(ctx context.Context, channelID, messageID string) (Message, error) {
	msg, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return Message{}, wrap("fetch message", err)
	}
	return fromMessage(msg), nil
}

func (d *Discord) CreateChannel(ctx context.Context, guildID string, data ChannelCreate) (Channel, error) {
	channel, err := d.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     data.Name,
		Type:     toChannelType(data.Type),
		ParentID: data.ParentID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return Channel{}, wrap("create channel", err)
	}
	return fromChannel(channel), nil
}

func (d *Discord) CreateWebhook(ctx context.Context, channelID, name, avatarURL string) (Webhook, error) {
	hook, err := d.session.WebhookCreate(channelID, name, avatarURL, discordgo.WithContext(ctx))
	if err != nil {
		return Webhook{}, wrap("create webhook", err)
	}
	return Webhook{ID: hook.ID, Name: hook.Name, Token: hook.Token}, nil
}

func (d *Discord) ExecuteWebhook(ctx context.Context, hook Webhook, content string) error {
	_, err := d.session.WebhookExecute(hook.ID, hook.Token, false, &discordgo.WebhookParams{Content: content}, discordgo.WithContext(ctx))
	return wrap("execute webhook", err)
}

func (d *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return wrap("add reaction", d.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)))
}

func (d *Discord) ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]User, error) {
	var (
		users []User
		after string
	)
	for {
		page, err := d.session.MessageReactions(channelID, messageID, emoji, 100, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap("fetch reactions", err)
		}
		for _, user := range page {
			users = append(users, fromUser(user))
		}
		if len(page) < 100 {
			return users, nil
		}
		after = page[len(page)-1].ID
	}
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return wrap("ban", d.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx)))
}

func (d *Discord) Unban(ctx context.Context, guildID, userID string) error {
	return wrap("unban", d.session.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx)))
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return wrap("kick", d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)))
}

func (d *Discord) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := d.session.GuildBan(guildID, userID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	if errors.Is(wrap("", err), ErrNotFound) {
		return false, nil
	}
	return false, wrap("fetch ban", err)
}

func (d *Discord) Guild(ctx context.Context, guildID string) (Guild, error) {
	guild, err := d.session.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, err = d.session.Guild(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return Guild{}, wrap("fetch guild", err)
		}
	}
	return fromGuild(guild), nil
}

func (d *Discord) Guilds(ctx context.Context) ([]Guild, error) {
	_ = ctx
	d.session.State.RLock()
	defer d.session.State.RUnlock()
	guilds := make([]Guild, 0, len(d.session.State.Guilds))
	for _, guild := range d.session.State.Guilds {
		guilds = append(guilds, fromGuild(guild))
	}
	return guilds, nil
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (Member, error) {
	member, err := d.session.State.Member(guildID, userID)
	if err != nil || member == nil {
		member, err = d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return Member{}, wrap("fetch member", err)
		}
	}
	return fromMember(guildID, member), nil
}

func (d *Discord) SearchMembers(ctx context.Context, guildID, query string, limit int) ([]Member, error) {
	found, err := d.session.GuildMembersSearch(guildID, query, limit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("search members", err)
	}
	members := make([]Member, 0, len(found))
	for _, member := range found {
		members = append(members, fromMember(guildID, member))
	}
	return members, nil
}

func (d *Discord) Roles(ctx context.Context, guildID string) ([]Role, error) {
	found, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("fetch roles", err)
	}
	roles := make([]Role, 0, len(found))
	for _, role := range found {
		roles = append(roles, Role{ID: role.ID, Name: role.Name, Position: role.Position, Permissions: role.Permissions})
	}
	return roles, nil
}

func (d *Discord) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	found, err := d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("fetch channels", err)
	}
	channels := make([]Channel, 0, len(found))
	for _, channel := range found {
		channels = append(channels, fromChannel(channel))
	}
	return channels, nil
}

func (d *Discord) Channel(ctx context.Context, channelID string) (Channel, error) {
	channel, err := d.session.State.Channel(channelID)
	if err != nil || channel == nil {
		channel, err = d.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return Channel{}, wrap("fetch channel", err)
		}
	}
	return fromChannel(channel), nil
}

func (d *Discord) User(ctx context.Context, userID string) (User, error) {
	user, err := d.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return User{}, wrap("fetch user", err)
	}
	return fromUser(user), nil
}

func (d *Discord) DirectMessage(ctx context.Context, userID, content string) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return wrap("open dm", err)
	}
	_, err = d.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
	return wrap("send dm", err)
}

func (d *Discord) BotUser() User {
	if d.session.State == nil || d.session.State.User == nil {
		return User{}
	}
	return fromUser(d.session.State.User)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func fromUser(user *discordgo.User) User {
	if user == nil {
		return User{}
	}
	return User{ID: user.ID, Username: user.Username, Discriminator: user.Discriminator, Bot: user.Bot}
}

func fromMember(guildID string, member *discordgo.Member) Member {
	if member == nil {
		return Member{GuildID: guildID}
	}
	return Member{GuildID: guildID, User: fromUser(member.User), Nick: member.Nick, Roles: member.Roles}
}

func fromGuild(guild *discordgo.Guild) Guild {
	out := Guild{ID: guild.ID, Name: guild.Name, OwnerID: guild.OwnerID}
	if guild.Icon != "" {
		out.IconURL = discordgo.EndpointGuildIcon(guild.ID, guild.Icon)
	}
	return out
}

func fromChannel(channel *discordgo.Channel) Channel {
	out := Channel{ID: channel.ID, GuildID: channel.GuildID, Name: channel.Name, ParentID: channel.ParentID}
	switch channel.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		out.Type = ChannelText
	case discordgo.ChannelTypeGuildCategory:
		out.Type = ChannelCategory
	case discordgo.ChannelTypeGuildVoice:
		out.Type = ChannelVoice
	default:
		out.Type = ChannelOther
	}
	return out
}

func fromMessage(msg *discordgo.Message) Message {
	if msg == nil {
		return Message{}
	}
	return Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		Author:    fromUser(msg.Author),
		Content:   msg.Content,
		Edited:    msg.EditedTimestamp != nil,
		Timestamp: msg.Timestamp,
	}
}

// FromMessage converts a gateway message into the platform representation.
func FromMessage(msg *discordgo.Message) Message {
	return fromMessage(msg)
}

func toChannelType(kind ChannelType) discordgo.ChannelType {
	switch kind {
	case ChannelCategory:
		return discordgo.ChannelTypeGuildCategory
	case ChannelVoice:
		return discordgo.ChannelTypeGuildVoice
	default:
		return discordgo.ChannelTypeGuildText
	}
}

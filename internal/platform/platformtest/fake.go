// Package platformtest provides an in-memory chat platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"guildwarden/internal/platform"
)

type Sent struct {
	ChannelID string
	MessageID string
	Content   string
}

type Ban struct {
	GuildID    string
	UserID     string
	Reason     string
	DeleteDays int
}

type Fake struct {
	mu sync.Mutex

	Bot      platform.User
	GuildMap map[string]platform.Guild
	RoleMap  map[string][]platform.Role
	ChanMap  map[string][]platform.Channel
	Members  map[string]map[string]platform.Member
	Users    map[string]platform.User
	Bans     map[string]map[string]bool
	Reacts   map[string][]platform.User

	Messages     []Sent
	Edits        []Sent
	Deleted      []string
	BulkCalls    [][]string
	DMs          []Sent
	WebhookPosts []Sent
	BanCalls     []Ban
	UnbanCalls   []string
	KickCalls    []string
	Created      []platform.Channel
	Webhooks     []platform.Webhook

	FailDM            bool
	FailCreateChannel bool
	FailBanOf         map[string]bool
	nextID            int
}

func New() *Fake {
	return &Fake{
		Bot:       platform.User{ID: "900000000000000001", Username: "warden", Bot: true},
		GuildMap:  make(map[string]platform.Guild),
		RoleMap:   make(map[string][]platform.Role),
		ChanMap:   make(map[string][]platform.Channel),
		Members:   make(map[string]map[string]platform.Member),
		Users:     make(map[string]platform.User),
		Bans:      make(map[string]map[string]bool),
		Reacts:    make(map[string][]platform.User),
		FailBanOf: make(map[string]bool),
		nextID:    500000000000000000,
	}
}

func (f *Fake) id() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

func (f *Fake) AddGuild(guild platform.Guild) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GuildMap[guild.ID] = guild
}

func (f *Fake) AddRole(guildID string, role platform.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RoleMap[guildID] = append(f.RoleMap[guildID], role)
}

func (f *Fake) AddChannel(channel platform.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChanMap[channel.GuildID] = append(f.ChanMap[channel.GuildID], channel)
}

func (f *Fake) AddMember(member platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Members[member.GuildID] == nil {
		f.Members[member.GuildID] = make(map[string]platform.Member)
	}
	f.Members[member.GuildID][member.User.ID] = member
	f.Users[member.User.ID] = member.User
}

func (f *Fake) AddUser(user platform.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Users[user.ID] = user
}

func (f *Fake) SetBanned(guildID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Bans[guildID] == nil {
		f.Bans[guildID] = make(map[string]bool)
	}
	f.Bans[guildID][userID] = true
}

func (f *Fake) SetReactions(channelID, messageID, emoji string, users []platform.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reacts[channelID+"/"+messageID+"/"+emoji] = users
}

func (f *Fake) SentTo(channelID string) []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Sent
	for _, sent := range f.Messages {
		if sent.ChannelID == channelID {
			out = append(out, sent)
		}
	}
	return out
}

func (f *Fake) SendMessage(ctx context.Context, channelID, content string) (platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.Messages = append(f.Messages, Sent{ChannelID: channelID, MessageID: id, Content: content})
	return platform.Message{ID: id, ChannelID: channelID, Author: f.Bot, Content: content, Timestamp: time.Now()}, nil
}

func (f *Fake) EditMessage(ctx context.Context, channelID, messageID, content string) (platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, Sent{ChannelID: channelID, MessageID: messageID, Content: content})
	return platform.Message{ID: messageID, ChannelID: channelID, Author: f.Bot, Content: content}, nil
}

func (f *Fake) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, messageID)
	return nil
}

func (f *Fake) BulkDelete(ctx context.Context, channelID string, messageIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(messageIDs) > platform.BulkDeleteLimit {
		return fmt.Errorf("bulk delete of %d ids", len(messageIDs))
	}
	f.BulkCalls = append(f.BulkCalls, append([]string(nil), messageIDs...))
	f.Deleted = append(f.Deleted, messageIDs...)
	return nil
}

func (f *Fake) Message(ctx context.Context, channelID, messageID string) (platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sent := range f.Messages {
		if sent.ChannelID == channelID && sent.MessageID == messageID {
			return platform.Message{ID: messageID, ChannelID: channelID, Author: f.Bot, Content: sent.Content}, nil
		}
	}
	return platform.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *Fake) CreateChannel(ctx context.Context, guildID string, data platform.ChannelCreate) (platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreateChannel {
		return platform.Channel{}, fmt.Errorf("create channel %q: missing permissions", data.Name)
	}
	channel := platform.Channel{ID: f.id(), GuildID: guildID, Name: data.Name, Type: data.Type, ParentID: data.ParentID}
	f.Created = append(f.Created, channel)
	f.ChanMap[guildID] = append(f.ChanMap[guildID], channel)
	return channel, nil
}

func (f *Fake) CreateWebhook(ctx context.Context, channelID, name, avatarURL string) (platform.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hook := platform.Webhook{ID: f.id(), Name: name, Token: "token-" + name}
	f.Webhooks = append(f.Webhooks, hook)
	return hook, nil
}

func (f *Fake) ExecuteWebhook(ctx context.Context, hook platform.Webhook, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WebhookPosts = append(f.WebhookPosts, Sent{ChannelID: hook.ID, Content: content})
	return nil
}

func (f *Fake) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := channelID + "/" + messageID + "/" + emoji
	for _, user := range f.Reacts[key] {
		if user.ID == f.Bot.ID {
			return nil
		}
	}
	f.Reacts[key] = append(f.Reacts[key], f.Bot)
	return nil
}

func (f *Fake) ReactionUsers(ctx context.Context, channelID, messageID, emoji string) ([]platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.User(nil), f.Reacts[channelID+"/"+messageID+"/"+emoji]...), nil
}

func (f *Fake) Ban(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBanOf[userID] {
		return fmt.Errorf("ban %s: missing permissions", userID)
	}
	f.BanCalls = append(f.BanCalls, Ban{GuildID: guildID, UserID: userID, Reason: reason, DeleteDays: deleteDays})
	if f.Bans[guildID] == nil {
		f.Bans[guildID] = make(map[string]bool)
	}
	f.Bans[guildID][userID] = true
	return nil
}

func (f *Fake) Unban(ctx context.Context, guildID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UnbanCalls = append(f.UnbanCalls, userID)
	delete(f.Bans[guildID], userID)
	return nil
}

func (f *Fake) Kick(ctx context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KickCalls = append(f.KickCalls, userID)
	delete(f.Members[guildID], userID)
	return nil
}

func (f *Fake) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Bans[guildID][userID], nil
}

func (f *Fake) Guild(ctx context.Context, guildID string) (platform.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	guild, ok := f.GuildMap[guildID]
	if !ok {
		return platform.Guild{}, platform.ErrNotFound
	}
	return guild, nil
}

func (f *Fake) Guilds(ctx context.Context) ([]platform.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	guilds := make([]platform.Guild, 0, len(f.GuildMap))
	for _, guild := range f.GuildMap {
		guilds = append(guilds, guild)
	}
	return guilds, nil
}

func (f *Fake) Member(ctx context.Context, guildID, userID string) (platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.Members[guildID][userID]
	if !ok {
		return platform.Member{}, platform.ErrNotFound
	}
	return member, nil
}

func (f *Fake) SearchMembers(ctx context.Context, guildID, query string, limit int) ([]platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Member
	query = strings.ToLower(query)
	for _, member := range f.Members[guildID] {
		if strings.HasPrefix(strings.ToLower(member.User.Username), query) || strings.HasPrefix(strings.ToLower(member.Nick), query) {
			out = append(out, member)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Role(nil), f.RoleMap[guildID]...), nil
}

func (f *Fake) Channels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Channel(nil), f.ChanMap[guildID]...), nil
}

func (f *Fake) Channel(ctx context.Context, channelID string) (platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, channels := range f.ChanMap {
		for _, channel := range channels {
			if channel.ID == channelID {
				return channel, nil
			}
		}
	}
	return platform.Channel{}, platform.ErrNotFound
}

func (f *Fake) User(ctx context.Context, userID string) (platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.Users[userID]
	if !ok {
		return platform.User{}, platform.ErrNotFound
	}
	return user, nil
}

func (f *Fake) DirectMessage(ctx context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDM {
		return fmt.Errorf("cannot send messages to this user")
	}
	f.DMs = append(f.DMs, Sent{ChannelID: userID, Content: content})
	return nil
}

func (f *Fake) BotUser() platform.User {
	return f.Bot
}

var _ platform.Transport = (*Fake)(nil)

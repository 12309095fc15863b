// Package resolve turns user-supplied references into platform entities.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"guildwarden/internal/cmderr"
	"guildwarden/internal/platform"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/sync/singleflight"
)

type Kind int

const (
	KindRole Kind = iota + 1
	KindChannel
	KindUser
	KindGuild
)

func (k Kind) String() string {
	switch k {
	case KindRole:
		return "role"
	case KindChannel:
		return "channel"
	case KindUser:
		return "user"
	case KindGuild:
		return "guild"
	default:
		return "unknown"
	}
}

type Entity struct {
	Kind Kind
	ID   string
	Name string
}

// Grammar describes how a platform writes references inline. Each pattern
// must capture the numeric id as its first group.
type Grammar struct {
	User    *regexp.Regexp
	Role    *regexp.Regexp
	Channel *regexp.Regexp
}

var DiscordGrammar = Grammar{
	User:    regexp.MustCompile(`^<@!?(\d+)>$`),
	Role:    regexp.MustCompile(`^<@&(\d+)>$`),
	Channel: regexp.MustCompile(`^<#(\d+)>$`),
}

func (g Grammar) pattern(kind Kind) *regexp.Regexp {
	switch kind {
	case KindUser:
		return g.User
	case KindRole:
		return g.Role
	case KindChannel:
		return g.Channel
	default:
		return nil
	}
}

// IsID reports whether token has the shape of a platform snowflake.
func IsID(token string) bool {
	if len(token) < 17 || len(token) > 20 {
		return false
	}
	_, err := snowflake.Parse(token)
	return err == nil
}

type Resolver struct {
	transport platform.Transport
	grammar   Grammar
	group     singleflight.Group
}

func New(transport platform.Transport) *Resolver {
	return &Resolver{transport: transport, grammar: DiscordGrammar}
}

func (r *Resolver) WithGrammar(grammar Grammar) {
	r.grammar = grammar
}

// Mention extracts the id from a mention of the given kind.
func (r *Resolver) Mention(token string, kind Kind) (string, bool) {
	pattern := r.grammar.pattern(kind)
	if pattern == nil {
		return "", false
	}
	match := pattern.FindStringSubmatch(strings.TrimSpace(token))
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Resolve looks token up as a mention, then as a raw id, then as a
// case-insensitive name within scope (a guild id; ignored for guilds).
// A missing entity is reported through ok, never as an error; err is only
// set when the platform could not be queried.
func (r *Resolver) Resolve(ctx context.Context, token string, kind Kind, scope string) (Entity, bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Entity{}, false, nil
	}
	switch kind {
	case KindUser:
		return r.resolveUser(ctx, token, scope)
	case KindRole:
		return r.resolveListed(ctx, token, kind, scope, r.roles)
	case KindChannel:
		return r.resolveListed(ctx, token, kind, scope, r.channels)
	case KindGuild:
		return r.resolveListed(ctx, token, kind, scope, r.guilds)
	default:
		return Entity{}, false, fmt.Errorf("resolve: unknown kind %d", kind)
	}
}

func (r *Resolver) resolveListed(ctx context.Context, token string, kind Kind, scope string, list func(context.Context, string) ([]Entity, error)) (Entity, bool, error) {
	entities, err := list(ctx, scope)
	if err != nil {
		return Entity{}, false, err
	}

	if id, ok := r.Mention(token, kind); ok {
		entity, found := byID(entities, id)
		return entity, found, nil
	}
	if IsID(token) {
		if entity, found := byID(entities, token); found {
			return entity, true, nil
		}
	}
	entity, found := byName(entities, token)
	return entity, found, nil
}

func (r *Resolver) resolveUser(ctx context.Context, token, guildID string) (Entity, bool, error) {
	if id, ok := r.Mention(token, KindUser); ok {
		return r.userByID(ctx, guildID, id)
	}
	if IsID(token) {
		entity, found, err := r.userByID(ctx, guildID, token)
		if err != nil || found {
			return entity, found, err
		}
	}

	members, err := r.transport.SearchMembers(ctx, guildID, token, 10)
	if err != nil {
		return Entity{}, false, err
	}
	var matches []Entity
	for _, member := range members {
		if strings.EqualFold(member.User.Username, token) || (member.Nick != "" && strings.EqualFold(member.Nick, token)) {
			matches = append(matches, Entity{Kind: KindUser, ID: member.User.ID, Name: member.User.Tag()})
		}
	}
	if len(matches) != 1 {
		return Entity{}, false, nil
	}
	return matches[0], true, nil
}

func (r *Resolver) userByID(ctx context.Context, guildID, id string) (Entity, bool, error) {
	user, err := r.User(ctx, guildID, id)
	if errors.Is(err, platform.ErrNotFound) {
		return Entity{}, false, nil
	}
	if err != nil {
		return Entity{}, false, err
	}
	return Entity{Kind: KindUser, ID: user.ID, Name: user.Tag()}, true, nil
}

// User fetches a user, preferring the guild member record.
func (r *Resolver) User(ctx context.Context, guildID, id string) (platform.User, error) {
	if guildID != "" {
		member, err := r.transport.Member(ctx, guildID, id)
		if err == nil {
			return member.User, nil
		}
		if !errors.Is(err, platform.ErrNotFound) {
			return platform.User{}, err
		}
	}
	return r.transport.User(ctx, id)
}

// LeadingUsers consumes the user references at the start of tokens and
// returns them with the number of tokens consumed. A reference that does not
// point at a known user fails the whole lookup.
func (r *Resolver) LeadingUsers(ctx context.Context, tokens []string, guildID string) ([]platform.User, int, error) {
	var (
		users []platform.User
		seen  = make(map[string]bool)
	)
	consumed := 0
	for _, token := range tokens {
		id, ok := r.Mention(token, KindUser)
		if !ok {
			if !IsID(token) {
				break
			}
			id = token
		}
		consumed++
		user, err := r.User(ctx, guildID, id)
		if errors.Is(err, platform.ErrNotFound) {
			return nil, consumed, cmderr.ResolveID(id)
		}
		if err != nil {
			return nil, consumed, err
		}
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		users = append(users, user)
	}
	return users, consumed, nil
}

func (r *Resolver) roles(ctx context.Context, guildID string) ([]Entity, error) {
	value, err, _ := r.group.Do("roles:"+guildID, func() (any, error) {
		roles, err := r.transport.Roles(ctx, guildID)
		if err != nil {
			return nil, err
		}
		entities := make([]Entity, 0, len(roles))
		for _, role := range roles {
			entities = append(entities, Entity{Kind: KindRole, ID: role.ID, Name: role.Name})
		}
		return entities, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return value.([]Entity), nil
}

func (r *Resolver) channels(ctx context.Context, guildID string) ([]Entity, error) {
	value, err, _ := r.group.Do("channels:"+guildID, func() (any, error) {
		channels, err := r.transport.Channels(ctx, guildID)
		if err != nil {
			return nil, err
		}
		entities := make([]Entity, 0, len(channels))
		for _, channel := range channels {
			entities = append(entities, Entity{Kind: KindChannel, ID: channel.ID, Name: channel.Name})
		}
		return entities, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return value.([]Entity), nil
}

func (r *Resolver) guilds(ctx context.Context, _ string) ([]Entity, error) {
	guilds, err := r.transport.Guilds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}
	entities := make([]Entity, 0, len(guilds))
	for _, guild := range guilds {
		entities = append(entities, Entity{Kind: KindGuild, ID: guild.ID, Name: guild.Name})
	}
	return entities, nil
}

func byID(entities []Entity, id string) (Entity, bool) {
	for _, entity := range entities {
		if entity.ID == id {
			return entity, true
		}
	}
	return Entity{}, false
}

func byName(entities []Entity, name string) (Entity, bool) {
	var (
		match Entity
		count int
	)
	for _, entity := range entities {
		if strings.EqualFold(entity.Name, name) {
			match = entity
			count++
		}
	}
	if count != 1 {
		return Entity{}, false
	}
	return match, true
}

package command

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"guildwarden/internal/args"
	"guildwarden/internal/cmderr"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/perm"
	"guildwarden/internal/platform"
	"guildwarden/internal/platform/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID   = "100000000000000001"
	channelID = "300000000000000001"
)

type stub struct {
	name    string
	aliases []Alias
	mask    int64
	reply   string
	err     error
	calls   []*Context
}

func (s *stub) Name() string               { return s.name }
func (s *stub) Aliases() []Alias           { return s.aliases }
func (s *stub) Permission() perm.Predicate { return perm.Static(s.mask) }

func (s *stub) Flags() args.Options {
	return args.Options{Flags: []args.FlagSpec{{Name: "soft", Type: args.Boolean}}}
}

func (s *stub) Run(ctx context.Context, c *Context) (string, error) {
	s.calls = append(s.calls, c)
	return s.reply, s.err
}

type fixture struct {
	dispatcher *Dispatcher
	fake       *platformtest.Fake
	now        time.Time
	user       platform.User
	admin      platform.User
}

func newFixture(t *testing.T, commands ...Command) *fixture {
	t.Helper()
	fake := platformtest.New()
	fake.AddGuild(platform.Guild{ID: guildID, Name: "Guild", OwnerID: "owner"})
	fake.AddRole(guildID, platform.Role{ID: guildID, Name: "@everyone"})
	fake.AddRole(guildID, platform.Role{ID: "admin-role", Name: "Admin", Position: 5, Permissions: perm.Administrator})
	user := platform.User{ID: "400000000000000001", Username: "member"}
	admin := platform.User{ID: "400000000000000002", Username: "boss"}
	fake.AddMember(platform.Member{GuildID: guildID, User: user})
	fake.AddMember(platform.Member{GuildID: guildID, User: admin, Roles: []string{"admin-role"}})

	registry := NewRegistry()
	require.NoError(t, registry.Register(commands...))
	configs, err := guildconfig.Load(filepath.Join(t.TempDir(), "guilds.json"))
	require.NoError(t, err)

	f := &fixture{fake: fake, now: time.Unix(1_700_000_000, 0), user: user, admin: admin}
	f.dispatcher = NewDispatcher(registry, fake, configs, DefaultConfig(), zap.NewNop())
	f.dispatcher.WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) send(author platform.User, content string) (bool, error) {
	return f.dispatcher.Dispatch(context.Background(), platform.Message{
		ID:        "600000000000000001",
		ChannelID: channelID,
		GuildID:   guildID,
		Author:    author,
		Content:   content,
	})
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	cmd := &stub{name: "ping"}
	f := newFixture(t, cmd)

	for _, content := range []string{"hello", "!unknown thing", "?ping"} {
		handled, err := f.send(f.user, content)
		require.NoError(t, err)
		assert.False(t, handled, content)
	}
	bot := f.user
	bot.Bot = true
	handled, _ := f.send(bot, "!ping")
	assert.False(t, handled)
	assert.Empty(t, cmd.calls)
}

func TestDispatchAliasAppendsArgs(t *testing.T) {
	cmd := &stub{name: "ban", aliases: []Alias{{Name: "softban", Args: "--soft=true"}}, reply: "done"}
	f := newFixture(t, cmd)

	handled, err := f.send(f.user, "!SoftBan <@1> spam --soft=false")
	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, cmd.calls, 1)
	call := cmd.calls[0]
	assert.True(t, call.Invocation.Flags.Bool("soft"))
	assert.Equal(t, []string{"<@1>", "spam"}, call.Invocation.Tokens)
	assert.Equal(t, "SoftBan", call.Alias)
	assert.Nil(t, call.Config)

	sent := f.fake.SentTo(channelID)
	require.Len(t, sent, 1)
	assert.Equal(t, "done", sent[0].Content)
}

func TestDispatchDeniesWithoutPermission(t *testing.T) {
	cmd := &stub{name: "kick", mask: perm.KickMembers}
	f := newFixture(t, cmd)

	_, err := f.send(f.user, "!kick someone")
	assert.Equal(t, cmderr.Permission, cmderr.KindOf(err))
	assert.Empty(t, cmd.calls)
	sent := f.fake.SentTo(channelID)
	require.Len(t, sent, 1)
	assert.Equal(t, cmderr.InsufficientPermissions().Message, sent[0].Content)

	_, err = f.send(f.admin, "!kick someone")
	require.NoError(t, err)
	assert.Len(t, cmd.calls, 1)
}

func TestDispatchCooldown(t *testing.T) {
	cmd := &stub{name: "top"}
	f := newFixture(t, cmd)

	_, err := f.send(f.user, "!top")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Second)
	_, err = f.send(f.user, "!top")
	cmdErr, ok := cmderr.As(err)
	require.True(t, ok)
	assert.Equal(t, cmderr.CodeCooldown, cmdErr.Code)
	assert.Equal(t, "Please wait 3 seconds before using this command again.", cmdErr.Message)

	_, err = f.send(f.admin, "!top")
	require.NoError(t, err)

	f.now = f.now.Add(4 * time.Second)
	_, err = f.send(f.user, "!top")
	require.NoError(t, err)
	assert.Len(t, cmd.calls, 3)
}

func TestDispatchRejectsUnknownFlagOnClosedCommand(t *testing.T) {
	cmd := &closedStub{stub: stub{name: "transfer"}}
	f := newFixture(t, cmd)

	_, err := f.send(f.user, "!transfer --force=yes")
	cmdErr, ok := cmderr.As(err)
	require.True(t, ok)
	assert.Equal(t, cmderr.CodeInvalidFlag, cmdErr.Code)
	assert.Empty(t, cmd.calls)
}

type closedStub struct {
	stub
}

func (c *closedStub) Flags() args.Options {
	return args.Options{Closed: true}
}

func TestDispatchUnexpectedErrorIsRelayed(t *testing.T) {
	cmd := &stub{name: "top", err: errors.New("database is locked")}
	f := newFixture(t, cmd)
	f.dispatcher.WithErrorWebhook(platform.Webhook{ID: "hook", Token: "t"})

	_, err := f.send(f.user, "!top")
	require.Error(t, err)
	sent := f.fake.SentTo(channelID)
	require.Len(t, sent, 1)
	assert.Equal(t, "Something went wrong while running that command.", sent[0].Content)
	require.Len(t, f.fake.WebhookPosts, 1)
	assert.Contains(t, f.fake.WebhookPosts[0].Content, "database is locked")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stub{name: "level", aliases: []Alias{{Name: "rank"}}}))
	err := registry.Register(&stub{name: "Rank"})
	assert.Error(t, err)

	cmd, appended, ok := registry.Lookup("RANK")
	require.True(t, ok)
	assert.Equal(t, "level", cmd.Name())
	assert.Empty(t, appended)
}

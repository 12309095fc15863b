package perm

import (
	"context"
	"testing"

	"guildwarden/internal/guildconfig"
	"guildwarden/internal/platform"
	"guildwarden/internal/platform/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticMask(t *testing.T) {
	predicate := Static(BanMembers)
	assert.True(t, Evaluate(predicate, Context{Permissions: BanMembers | KickMembers}, nil))
	assert.False(t, Evaluate(predicate, Context{Permissions: KickMembers}, nil))
	assert.True(t, Evaluate(predicate, Context{Permissions: Administrator}, nil))
	assert.True(t, Evaluate(predicate, Context{UserID: "o", OwnerID: "o"}, nil))
}

func TestDynamicAbstainFallsBackToMask(t *testing.T) {
	calls := 0
	predicate := Dynamic(BanMembers, func(actor Context, target *Context) Tri {
		calls++
		if actor.HasRole("vip") {
			return Allow
		}
		if actor.HasRole("muted") {
			return Deny
		}
		return Abstain
	})

	assert.True(t, Evaluate(predicate, Context{Roles: []string{"vip"}}, nil))
	assert.False(t, Evaluate(predicate, Context{Roles: []string{"muted"}, Permissions: Administrator}, nil))
	assert.True(t, Evaluate(predicate, Context{Permissions: BanMembers}, nil))
	assert.False(t, Evaluate(predicate, Context{}, nil))
	assert.Equal(t, 4, calls)
}

func TestConfigPredicateDeniesWithoutConfig(t *testing.T) {
	predicate := AccessLevel(guildconfig.LevelModerator, 0)
	assert.False(t, Evaluate(predicate, Context{Roles: []string{"mod"}, Permissions: Administrator}, nil))

	cfg := &guildconfig.GuildConfig{AccessLevelRoles: []string{"owner", "admin", "mod", "trainee"}}
	assert.True(t, Evaluate(predicate, Context{Roles: []string{"mod"}, Config: cfg}, nil))
	// Abstains for trainees, and the empty mask then allows.
	assert.True(t, Evaluate(AccessLevel(guildconfig.LevelModerator, 0), Context{Roles: []string{"trainee"}, Config: cfg}, nil))
	assert.False(t, Evaluate(AccessLevel(guildconfig.LevelModerator, BanMembers), Context{Roles: []string{"trainee"}, Config: cfg}, nil))
}

func TestManageable(t *testing.T) {
	actor := Context{UserID: "a", OwnerID: "o", TopPosition: 5}
	assert.True(t, Manageable(actor, Context{UserID: "t", OwnerID: "o", TopPosition: 3}))
	assert.False(t, Manageable(actor, Context{UserID: "t", OwnerID: "o", TopPosition: 5}))
	assert.False(t, Manageable(actor, Context{UserID: "t", OwnerID: "o", TopPosition: 7}))
	assert.False(t, Manageable(actor, Context{UserID: "o", OwnerID: "o", TopPosition: 0}))

	owner := Context{UserID: "o", OwnerID: "o", TopPosition: 2}
	assert.True(t, Manageable(owner, Context{UserID: "t", OwnerID: "o", TopPosition: 1}))
	assert.False(t, Manageable(owner, Context{UserID: "t", OwnerID: "o", TopPosition: 2}))
}

func TestBuild(t *testing.T) {
	fake := platformtest.New()
	guild := platform.Guild{ID: "g", OwnerID: "o"}
	fake.AddRole("g", platform.Role{ID: "g", Name: "@everyone", Position: 0, Permissions: 1 << 10})
	fake.AddRole("g", platform.Role{ID: "mod", Name: "Moderator", Position: 4, Permissions: BanMembers})
	fake.AddRole("g", platform.Role{ID: "helper", Name: "Helper", Position: 2, Permissions: KickMembers})
	fake.AddRole("g", platform.Role{ID: "admin", Name: "Admin", Position: 9, Permissions: Administrator})

	got, err := Build(context.Background(), fake, guild, platform.Member{GuildID: "g", User: platform.User{ID: "u"}, Roles: []string{"mod", "helper"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TopPosition)
	assert.Equal(t, BanMembers|KickMembers|1<<10, got.Permissions)
	assert.False(t, got.IsOwner())
	assert.Nil(t, got.Config)
}

package giveaway

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"guildwarden/internal/cmderr"
	"guildwarden/internal/guildconfig"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/platform"
	"guildwarden/internal/platform/platformtest"
	"guildwarden/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTimer struct {
	stopped bool
	fn      func()
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	pending := append([]*fakeTimer{}, f.timers...)
	f.timers = nil
	f.mu.Unlock()
	for _, timer := range pending {
		if !timer.stopped {
			timer.fn()
		}
	}
}

const (
	guildID   = "g1"
	channelID = "giveaways"
	general   = "general"
)

func newModule(t *testing.T) (*Module, *platformtest.Fake, *storage.Store, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	registry, err := guildconfig.Load(filepath.Join(t.TempDir(), "guilds.json"))
	require.NoError(t, err)
	draft := guildconfig.NewDraft()
	draft.Set("id", guildID)
	draft.Set("general_channel", general)
	_, err = registry.Commit(draft)
	require.NoError(t, err)

	fake := platformtest.New()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	module := New(store, fake, registry, DefaultConfig(), audit.NewLogger(store, zap.NewNop()), zap.NewNop())
	module.WithClock(clock)
	return module, fake, store, clock
}

func recordMessages(t *testing.T, store *storage.Store, userID string, count int, at time.Time) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.NoError(t, store.RecordMessage(context.Background(), storage.MessageRecord{
			ID:        fmt.Sprintf("%s-%d", userID, i),
			GuildID:   guildID,
			ChannelID: general,
			UserID:    userID,
			SentAt:    at,
		}))
	}
}

func TestEndFiltersByMessageRequirement(t *testing.T) {
	module, fake, store, clock := newModule(t)
	ctx := context.Background()
	required := int64(5)

	g, err := module.Start(ctx, StartRequest{
		GuildID:            guildID,
		ChannelID:          channelID,
		CreatedBy:          "host",
		Prize:              "Nitro",
		Duration:           time.Hour,
		MessageRequirement: &required,
	})
	require.NoError(t, err)
	assert.True(t, module.Scheduled(g.MessageID))

	u4 := platform.User{ID: "u4", Username: "four"}
	u5 := platform.User{ID: "u5", Username: "five"}
	u6 := platform.User{ID: "u6", Username: "six"}
	fake.SetReactions(channelID, g.MessageID, "🎁", []platform.User{fake.Bot, u4, u5, u6})
	after := clock.Now().Add(time.Second)
	recordMessages(t, store, u4.ID, 4, after)
	recordMessages(t, store, u5.ID, 5, after)
	recordMessages(t, store, u6.ID, 6, after)

	var sizes []int
	module.WithRand(func(n int) int {
		sizes = append(sizes, n)
		return n - 1
	})

	outcome, err := module.EndByID(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, sizes)
	require.Len(t, outcome.Eligible, 2)
	assert.Equal(t, []string{u5.ID, u6.ID}, []string{outcome.Eligible[0].ID, outcome.Eligible[1].ID})
	require.NotNil(t, outcome.Winner)
	assert.Equal(t, u6.ID, outcome.Winner.ID)
	assert.False(t, module.Scheduled(g.MessageID))

	stored, err := store.Giveaway(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []string{u6.ID}, stored.Winners)

	_, err = module.EndByID(ctx, g.MessageID)
	cmdErr, ok := cmderr.As(err)
	require.True(t, ok)
	assert.Equal(t, cmderr.CodeGiveawayEnded, cmdErr.Code)
}

func TestEndNeverPicksUnderRequirement(t *testing.T) {
	for pick := 0; pick < 2; pick++ {
		module, fake, store, clock := newModule(t)
		ctx := context.Background()
		required := int64(5)
		g, err := module.Start(ctx, StartRequest{GuildID: guildID, ChannelID: channelID, Prize: "Role", Duration: time.Hour, MessageRequirement: &required})
		require.NoError(t, err)

		fake.SetReactions(channelID, g.MessageID, "🎁", []platform.User{{ID: "u4"}, {ID: "u5"}, {ID: "u6"}})
		after := clock.Now().Add(time.Second)
		recordMessages(t, store, "u4", 4, after)
		recordMessages(t, store, "u5", 5, after)
		recordMessages(t, store, "u6", 6, after)

		choice := pick
		module.WithRand(func(n int) int { return choice % n })
		outcome, err := module.EndByID(ctx, g.MessageID)
		require.NoError(t, err)
		require.NotNil(t, outcome.Winner)
		assert.NotEqual(t, "u4", outcome.Winner.ID)
	}
}

func TestScheduledEndWithoutEntries(t *testing.T) {
	module, fake, store, clock := newModule(t)
	ctx := context.Background()

	g, err := module.Start(ctx, StartRequest{GuildID: guildID, ChannelID: channelID, Prize: "Sticker", Duration: time.Minute})
	require.NoError(t, err)

	clock.Advance(time.Minute)

	stored, err := store.Giveaway(ctx, g.MessageID)
	require.NoError(t, err)
	assert.True(t, stored.Decided())
	assert.Empty(t, stored.Winners)
	assert.False(t, module.Scheduled(g.MessageID))

	sent := fake.SentTo(channelID)
	require.Len(t, sent, 2)
	assert.Equal(t, "There were no entries for **Sticker**, so there is no winner.", sent[1].Content)
}

func TestManualEndCancelsTimer(t *testing.T) {
	module, fake, store, clock := newModule(t)
	ctx := context.Background()

	g, err := module.Start(ctx, StartRequest{GuildID: guildID, ChannelID: channelID, Prize: "Shirt", Duration: time.Hour})
	require.NoError(t, err)
	fake.SetReactions(channelID, g.MessageID, "🎁", []platform.User{{ID: "u1", Username: "one"}})

	_, err = module.EndByID(ctx, g.MessageID)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	stored, err := store.Giveaway(ctx, g.MessageID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, stored.Winners)
	assert.Len(t, fake.SentTo(channelID), 2)
}

func TestRestoreSchedulesPending(t *testing.T) {
	module, _, store, clock := newModule(t)
	ctx := context.Background()

	require.NoError(t, store.CreateGiveaway(ctx, storage.Giveaway{
		MessageID: "m1",
		GuildID:   guildID,
		ChannelID: channelID,
		Prize:     "Pending",
		Start:     clock.Now().Add(-time.Hour),
		End:       clock.Now().Add(time.Hour),
	}))
	require.NoError(t, store.CreateGiveaway(ctx, storage.Giveaway{
		MessageID: "m2",
		GuildID:   guildID,
		ChannelID: channelID,
		Prize:     "Done",
		Start:     clock.Now().Add(-time.Hour),
		End:       clock.Now().Add(-time.Minute),
	}))
	require.NoError(t, store.SetGiveawayWinners(ctx, "m2", []string{}))

	restored, err := module.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.True(t, module.Scheduled("m1"))
	assert.False(t, module.Scheduled("m2"))
}

func TestEndUnknownGiveaway(t *testing.T) {
	module, _, _, _ := newModule(t)
	_, err := module.EndByID(context.Background(), "missing")
	assert.Equal(t, cmderr.NotFound, cmderr.KindOf(err))
}

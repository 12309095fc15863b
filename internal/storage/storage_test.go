package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrateTwice(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRebind(t *testing.T) {
	store := &Store{dialect: dialectPostgres}
	assert.Equal(t, "SELECT a FROM b WHERE c = $1 AND d = $2", store.rebind("SELECT a FROM b WHERE c = ? AND d = ?"))
	store.dialect = dialectSQLite
	assert.Equal(t, "c = ?", store.rebind("c = ?"))
}

func TestCreateCaseConcurrentIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 50
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.CreateCase(ctx, Case{GuildID: "g1", Action: "BAN", ModeratorID: "m", UserIDs: []string{"u"}, Reason: "r", CreatedAt: time.Now()}, nil)
			assert.NoError(t, err)
			mu.Lock()
			ids = append(ids, id)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	require.Len(t, ids, workers)
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, id)
		}
	}

	other, err := store.CreateCase(ctx, Case{GuildID: "g2", Action: "KICK", ModeratorID: "m", Reason: "r", CreatedAt: time.Now()}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestCaseRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Unix(1700000000, 0)

	id, err := store.CreateCase(ctx, Case{
		GuildID:          "g1",
		Action:           "SOFT_BAN",
		ModeratorID:      "mod",
		UserIDs:          []string{"u2", "u1"},
		Reason:           "spam",
		Extras:           []Extra{{Name: "Days of Messages Deleted", Value: "7"}, {Name: "Note", Value: "n"}},
		ContextMessageID: "msg",
		CreatedAt:        created,
	}, func(id int64) string { return fmt.Sprintf("Banned by mod: Case %d", id) })
	require.NoError(t, err)

	got, err := store.Case(ctx, "g1", id)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, got.UserIDs)
	assert.Equal(t, "Days of Messages Deleted", got.Extras[0].Name)
	assert.Equal(t, "Note", got.Extras[1].Name)
	assert.Equal(t, "msg", got.ContextMessageID)
	assert.Equal(t, "Banned by mod: Case 1", got.AuditLine)
	assert.True(t, created.Equal(got.CreatedAt))

	history, err := store.CasesForUser(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "spam", history[0].Reason)

	_, err = store.Case(ctx, "g1", 99)
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestTransferPoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddVault(ctx, "a", 40))

	_, _, err := store.TransferPoints(ctx, "a", "b", 50)
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected insufficient points, got %v", err)
	}
	a, err := store.Points(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(40), a.Vault)
	b, err := store.Points(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Vault)

	from, to, err := store.TransferPoints(ctx, "a", "b", 15)
	require.NoError(t, err)
	assert.Equal(t, int64(25), from.Vault)
	assert.Equal(t, int64(15), to.Vault)
}

func TestAddXP(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	need := func(level int64) int64 { return 100 }

	level, leveled, err := store.AddXP(ctx, "u", 60, need)
	require.NoError(t, err)
	assert.False(t, leveled)
	assert.Equal(t, int64(60), level.XP)

	level, leveled, err = store.AddXP(ctx, "u", 250, need)
	require.NoError(t, err)
	assert.True(t, leveled)
	assert.Equal(t, int64(3), level.Level)
	assert.Equal(t, int64(10), level.XP)

	_, _, err = store.AddXP(ctx, "v", 120, need)
	require.NoError(t, err)
	top, err := store.TopLevels(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u", top[0].UserID)
}

func TestGiveawayWinnersNullVersusEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	requirement := int64(5)
	require.NoError(t, store.CreateGiveaway(ctx, Giveaway{
		MessageID: "m1", GuildID: "g", ChannelID: "c", CreatedBy: "u", Prize: "nitro",
		Start: time.Unix(100, 0), End: time.Unix(200, 0), MessageRequirement: &requirement,
	}))

	g, err := store.Giveaway(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, g.Decided())
	require.NotNil(t, g.MessageRequirement)
	assert.Equal(t, int64(5), *g.MessageRequirement)
	assert.Nil(t, g.Requirement)

	pending, err := store.PendingGiveaways(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, store.SetGiveawayWinners(ctx, "m1", nil))
	g, err = store.Giveaway(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, g.Decided())
	assert.Empty(t, g.Winners)

	pending, err = store.PendingGiveaways(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStars(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateStar(ctx, Star{MessageID: "m", GuildID: "g", ChannelID: "c", AuthorID: "a", StarboardID: "s", Users: []string{"u1"}, CreatedAt: time.Now()}))
	require.NoError(t, store.SetStarUsers(ctx, "m", nil))

	star, err := store.Star(ctx, "m")
	require.NoError(t, err)
	assert.Empty(t, star.Users)

	_, err = store.Star(ctx, "missing")
	assert.ErrorIs(t, err, ErrStarNotFound)
}

func TestMessageLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Unix(1000, 0)
	for i, id := range []string{"1", "2", "3"} {
		require.NoError(t, store.RecordMessage(ctx, MessageRecord{ID: id, GuildID: "g", ChannelID: "general", UserID: "u", SentAt: start.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, store.RecordMessage(ctx, MessageRecord{ID: "4", GuildID: "g", ChannelID: "other", UserID: "u", SentAt: start.Add(time.Minute)}))

	count, err := store.CountMessagesSince(ctx, "general", "u", start)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, store.DeleteMessages(ctx, []string{"2", "3"}))
	count, err = store.CountMessagesSince(ctx, "general", "u", start.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMessageLedgerSubSecond(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	since := time.UnixMilli(1_000_250)
	require.NoError(t, store.RecordMessage(ctx, MessageRecord{ID: "before", GuildID: "g", ChannelID: "general", UserID: "u", SentAt: since.Add(-200 * time.Millisecond)}))
	require.NoError(t, store.RecordMessage(ctx, MessageRecord{ID: "same", GuildID: "g", ChannelID: "general", UserID: "u", SentAt: since}))
	require.NoError(t, store.RecordMessage(ctx, MessageRecord{ID: "after", GuildID: "g", ChannelID: "general", UserID: "u", SentAt: since.Add(300 * time.Millisecond)}))

	count, err := store.CountMessagesSince(ctx, "general", "u", since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAuditLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddAuditLog(ctx, AuditLog{GuildID: "g", Level: "INFO", Event: "case_created", CreatedAt: time.Now()}))
	require.NoError(t, store.AddAuditLog(ctx, AuditLog{GuildID: "g", Level: "INFO", Event: "old", CreatedAt: time.Now().AddDate(0, 0, -30)}))
	require.NoError(t, store.CleanupAuditLogs(ctx, 14))

	logs, err := store.ListAuditLogs(ctx, "g", time.Now().AddDate(-1, 0, 0))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "case_created", logs[0].Event)
}

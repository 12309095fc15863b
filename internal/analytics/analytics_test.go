package analytics

import (
	"context"
	"testing"
	"time"

	"guildwarden/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate())

	ctx := context.Background()
	now := time.Now()
	for _, entry := range []storage.AuditLog{
		{GuildID: "g", UserID: "m1", Level: "INFO", Event: "case_created", CreatedAt: now},
		{GuildID: "g", UserID: "m1", Level: "INFO", Event: "case_created", CreatedAt: now},
		{GuildID: "g", UserID: "m2", Level: "INFO", Event: "case_created", CreatedAt: now},
		{GuildID: "g", UserID: "m2", Level: "WARN", Event: "relay_failed", CreatedAt: now},
		{GuildID: "other", UserID: "m3", Level: "INFO", Event: "case_created", CreatedAt: now},
	} {
		require.NoError(t, store.AddAuditLog(ctx, entry))
	}

	report, err := New(store).Report(ctx, "g", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.ByLevel["INFO"])
	assert.Equal(t, 1, report.ByEvent["relay_failed"])

	ranked := Ranked(report.Moderators)
	require.Len(t, ranked, 2)
	assert.Equal(t, Count{Key: "m1", Count: 2}, ranked[0])
	assert.Equal(t, Count{Key: "m2", Count: 1}, ranked[1])
}

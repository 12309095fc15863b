package audit

import (
	"context"
	"testing"
	"time"

	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

func TestLogPersists(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := NewLogger(store, zap.NewNop())
	logger.Log(context.Background(), LevelInfo, "g1", "u1", EventCaseCreated, "case 1")

	logs, err := store.ListAuditLogs(context.Background(), "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 1 || logs[0].Event != EventCaseCreated {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger
	logger.Log(context.Background(), LevelInfo, "g", "u", EventCaseCreated, "")
}

package analytics

import (
	"context"
	"sort"
	"time"

	"guildwarden/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total   int
	ByLevel map[string]int
	ByEvent map[string]int
	// Moderators counts case_created events per acting user.
	Moderators map[string]int
}

type Count struct {
	Key   string
	Count int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByEvent: make(map[string]int), Moderators: make(map[string]int)}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if log.Event == "case_created" && log.UserID != "" {
			report.Moderators[log.UserID]++
		}
	}
	return report, nil
}

// Ranked orders counts descending, ties by key.
func Ranked(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for key, count := range counts {
		out = append(out, Count{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

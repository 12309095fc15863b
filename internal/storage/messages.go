package storage

import (
	"context"
	"strings"
	"time"
)

type MessageRecord struct {
	ID        string
	GuildID   string
	ChannelID string
	UserID    string
	SentAt    time.Time
}

func (s *Store) RecordMessage(ctx context.Context, msg MessageRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO messages (id, guild_id, channel_id, user_id, sent_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`), msg.ID, msg.GuildID, msg.ChannelID, msg.UserID, msg.SentAt.UnixMilli())
	return err
}

// CountMessagesSince counts userID's messages in channelID sent strictly
// after since. sent_at holds Unix milliseconds.
func (s *Store) CountMessagesSince(ctx context.Context, channelID, userID string, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*) FROM messages WHERE sent_at > ? AND channel_id = ? AND user_id = ?
	`), since.UnixMilli(), channelID, userID).Scan(&count)
	return count, err
}

func (s *Store) DeleteMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM messages WHERE id IN (`+placeholders+`)`), args...)
	return err
}

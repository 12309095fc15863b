package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrStarNotFound = errors.New("storage: star not found")

type Star struct {
	MessageID   string
	GuildID     string
	ChannelID   string
	AuthorID    string
	StarboardID string
	Users       []string
	CreatedAt   time.Time
}

func (s *Store) CreateStar(ctx context.Context, star Star) error {
	users, err := json.Marshal(nonNilStrings(star.Users))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO stars (message_id, guild_id, channel_id, author_id, starboard_id, users, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), star.MessageID, star.GuildID, star.ChannelID, star.AuthorID, star.StarboardID, string(users), star.CreatedAt.Unix())
	return err
}

func (s *Store) Star(ctx context.Context, messageID string) (Star, error) {
	var (
		star    = Star{MessageID: messageID}
		users   string
		created int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT guild_id, channel_id, author_id, starboard_id, users, created_at FROM stars WHERE message_id = ?
	`), messageID).Scan(&star.GuildID, &star.ChannelID, &star.AuthorID, &star.StarboardID, &users, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Star{}, ErrStarNotFound
	}
	if err != nil {
		return Star{}, err
	}
	star.CreatedAt = time.Unix(created, 0)
	if err := json.Unmarshal([]byte(users), &star.Users); err != nil {
		return Star{}, err
	}
	return star, nil
}

func (s *Store) SetStarUsers(ctx context.Context, messageID string, users []string) error {
	data, err := json.Marshal(nonNilStrings(users))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`UPDATE stars SET users = ? WHERE message_id = ?`), string(data), messageID)
	return err
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

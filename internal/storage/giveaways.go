package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrGiveawayNotFound = errors.New("storage: giveaway not found")

type Giveaway struct {
	MessageID          string
	GuildID            string
	ChannelID          string
	CreatedBy          string
	Prize              string
	Start              time.Time
	End                time.Time
	MessageRequirement *int64
	Requirement        *string
	// Winners is nil until the giveaway has been decided.
	Winners []string
}

func (g Giveaway) Decided() bool {
	return g.Winners != nil
}

func (s *Store) CreateGiveaway(ctx context.Context, g Giveaway) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO giveaways (message_id, guild_id, channel_id, created_by, prize, start_at, end_at, message_requirement, requirement, winners)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`), g.MessageID, g.GuildID, g.ChannelID, g.CreatedBy, g.Prize, g.Start.Unix(), g.End.Unix(), nullInt(g.MessageRequirement), nullString(g.Requirement))
	return err
}

func (s *Store) Giveaway(ctx context.Context, messageID string) (Giveaway, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT message_id, guild_id, channel_id, created_by, prize, start_at, end_at, message_requirement, requirement, winners
		FROM giveaways WHERE message_id = ?
	`), messageID)
	g, err := scanGiveaway(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Giveaway{}, ErrGiveawayNotFound
	}
	return g, err
}

// PendingGiveaways lists giveaways without a decided outcome.
func (s *Store) PendingGiveaways(ctx context.Context) ([]Giveaway, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, guild_id, channel_id, created_by, prize, start_at, end_at, message_requirement, requirement, winners
		FROM giveaways WHERE winners IS NULL ORDER BY end_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetGiveawayWinners records the outcome; an empty slice means nobody won.
func (s *Store) SetGiveawayWinners(ctx context.Context, messageID string, winners []string) error {
	if winners == nil {
		winners = []string{}
	}
	data, err := json.Marshal(winners)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`UPDATE giveaways SET winners = ? WHERE message_id = ?`), string(data), messageID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGiveaway(row rowScanner) (Giveaway, error) {
	var (
		g            Giveaway
		start, end   int64
		requirement  sql.NullString
		messageCount sql.NullInt64
		winners      sql.NullString
	)
	if err := row.Scan(&g.MessageID, &g.GuildID, &g.ChannelID, &g.CreatedBy, &g.Prize, &start, &end, &messageCount, &requirement, &winners); err != nil {
		return Giveaway{}, err
	}
	g.Start = time.Unix(start, 0)
	g.End = time.Unix(end, 0)
	if messageCount.Valid {
		value := messageCount.Int64
		g.MessageRequirement = &value
	}
	if requirement.Valid {
		value := requirement.String
		g.Requirement = &value
	}
	if winners.Valid {
		g.Winners = []string{}
		if err := json.Unmarshal([]byte(winners.String), &g.Winners); err != nil {
			return Giveaway{}, err
		}
	}
	return g, nil
}

func nullInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

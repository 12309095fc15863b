package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type Extra struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Case struct {
	GuildID          string
	ID               int64
	Action           string
	ModeratorID      string
	UserIDs          []string
	Reason           string
	Extras           []Extra
	ContextMessageID string
	AuditLine        string
	CreatedAt        time.Time
}

var ErrCaseNotFound = errors.New("storage: case not found")

// CreateCase allocates the next case id for the guild and inserts the row in
// one transaction. The counter is bumped in the database, so concurrent
// callers never observe the same id. When auditLine is set it renders the
// audit line from the allocated id and the line commits with the case;
// otherwise c.AuditLine is stored as given.
func (s *Store) CreateCase(ctx context.Context, c Case, auditLine func(id int64) string) (int64, error) {
	extras, err := json.Marshal(nonNilExtras(c.Extras))
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx, s.rebind(`
		INSERT INTO case_counters (guild_id, last_id) VALUES (?, 1)
		ON CONFLICT(guild_id) DO UPDATE SET last_id = case_counters.last_id + 1
		RETURNING last_id
	`), c.GuildID).Scan(&id)
	if err != nil {
		return 0, err
	}

	if auditLine != nil {
		c.AuditLine = auditLine(id)
	}

	var contextID any
	if c.ContextMessageID != "" {
		contextID = c.ContextMessageID
	}
	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO cases (guild_id, id, action, moderator_id, reason, extras, context_message_id, audit_line, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), c.GuildID, id, c.Action, c.ModeratorID, c.Reason, string(extras), contextID, c.AuditLine, c.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}

	for i, userID := range c.UserIDs {
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO case_users (guild_id, case_id, position, user_id) VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`), c.GuildID, id, i, userID)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) Case(ctx context.Context, guildID string, id int64) (Case, error) {
	c := Case{GuildID: guildID, ID: id}
	var (
		extras    string
		contextID sql.NullString
		created   int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT action, moderator_id, reason, extras, context_message_id, audit_line, created_at
		FROM cases WHERE guild_id = ? AND id = ?
	`), guildID, id).Scan(&c.Action, &c.ModeratorID, &c.Reason, &extras, &contextID, &c.AuditLine, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Case{}, ErrCaseNotFound
	}
	if err != nil {
		return Case{}, err
	}
	c.ContextMessageID = contextID.String
	c.CreatedAt = time.Unix(created, 0)
	if err := json.Unmarshal([]byte(extras), &c.Extras); err != nil {
		return Case{}, err
	}
	users, err := s.caseUsers(ctx, guildID, id)
	if err != nil {
		return Case{}, err
	}
	c.UserIDs = users
	return c, nil
}

// CasesForUser lists every case naming userID, oldest first.
func (s *Store) CasesForUser(ctx context.Context, guildID, userID string) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT case_id FROM case_users WHERE guild_id = ? AND user_id = ? ORDER BY case_id
	`), guildID, userID)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	cases := make([]Case, 0, len(ids))
	for _, id := range ids {
		c, err := s.Case(ctx, guildID, id)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (s *Store) CountCases(ctx context.Context, guildID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM cases WHERE guild_id = ?`), guildID).Scan(&count)
	return count, err
}

func (s *Store) caseUsers(ctx context.Context, guildID string, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT user_id FROM case_users WHERE guild_id = ? AND case_id = ? ORDER BY position
	`), guildID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

func nonNilExtras(extras []Extra) []Extra {
	if extras == nil {
		return []Extra{}
	}
	return extras
}

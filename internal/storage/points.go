package storage

import (
	"context"
	"database/sql"
	"errors"
)

var ErrInsufficientPoints = errors.New("storage: insufficient points")

type Points struct {
	UserID string
	Amount int64
	Vault  int64
}

type Level struct {
	UserID string
	Level  int64
	XP     int64
}

func (s *Store) Points(ctx context.Context, userID string) (Points, error) {
	p := Points{UserID: userID}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT amount, vault FROM points WHERE user_id = ?`), userID).Scan(&p.Amount, &p.Vault)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	return p, err
}

func (s *Store) AddVault(ctx context.Context, userID string, delta int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO points (user_id, amount, vault) VALUES (?, 0, ?)
		ON CONFLICT(user_id) DO UPDATE SET vault = points.vault + excluded.vault
	`), userID, delta)
	return err
}

// TransferPoints moves amount from one vault to another. Either both
// balances change or neither does.
func (s *Store) TransferPoints(ctx context.Context, fromID, toID string, amount int64) (from Points, to Points, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Points{}, Points{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, userID := range []string{fromID, toID} {
		_, err = tx.ExecContext(ctx, s.rebind(`
			INSERT INTO points (user_id, amount, vault) VALUES (?, 0, 0)
			ON CONFLICT(user_id) DO NOTHING
		`), userID)
		if err != nil {
			return Points{}, Points{}, err
		}
	}

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE points SET vault = vault - ? WHERE user_id = ? AND vault >= ?`), amount, fromID, amount)
	if err != nil {
		return Points{}, Points{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Points{}, Points{}, err
	}
	if affected == 0 {
		err = ErrInsufficientPoints
		return Points{}, Points{}, err
	}
	if _, err = tx.ExecContext(ctx, s.rebind(`UPDATE points SET vault = vault + ? WHERE user_id = ?`), amount, toID); err != nil {
		return Points{}, Points{}, err
	}

	from, to = Points{UserID: fromID}, Points{UserID: toID}
	if err = tx.QueryRowContext(ctx, s.rebind(`SELECT amount, vault FROM points WHERE user_id = ?`), fromID).Scan(&from.Amount, &from.Vault); err != nil {
		return Points{}, Points{}, err
	}
	if err = tx.QueryRowContext(ctx, s.rebind(`SELECT amount, vault FROM points WHERE user_id = ?`), toID).Scan(&to.Amount, &to.Vault); err != nil {
		return Points{}, Points{}, err
	}
	if err = tx.Commit(); err != nil {
		return Points{}, Points{}, err
	}
	return from, to, nil
}

func (s *Store) Level(ctx context.Context, userID string) (Level, error) {
	l := Level{UserID: userID}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT level, xp FROM levels WHERE user_id = ?`), userID).Scan(&l.Level, &l.XP)
	if errors.Is(err, sql.ErrNoRows) {
		return l, nil
	}
	return l, err
}

// AddXP adds xp and promotes while the stored xp covers need(level). It
// reports whether the user gained at least one level.
func (s *Store) AddXP(ctx context.Context, userID string, xp int64, need func(level int64) int64) (result Level, leveled bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Level{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result = Level{UserID: userID}
	scanErr := tx.QueryRowContext(ctx, s.rebind(`SELECT level, xp FROM levels WHERE user_id = ?`), userID).Scan(&result.Level, &result.XP)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return Level{}, false, err
	}

	result.XP += xp
	for result.XP >= need(result.Level) {
		result.XP -= need(result.Level)
		result.Level++
		leveled = true
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO levels (user_id, level, xp) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET level = excluded.level, xp = excluded.xp
	`), userID, result.Level, result.XP)
	if err != nil {
		return Level{}, false, err
	}
	if err = tx.Commit(); err != nil {
		return Level{}, false, err
	}
	return result, leveled, nil
}

func (s *Store) TopLevels(ctx context.Context, limit int) ([]Level, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT user_id, level, xp FROM levels ORDER BY level DESC, xp DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.UserID, &l.Level, &l.XP); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

package db

import (
	"context"
	"fmt"
	"time"

	"cleanproof/backend/model"
)

// appendLedgerEntry relies on the unique (owner, cause_type, cause_id) key;
// an ignored insert means the cause was already paid.
func appendLedgerEntry(ctx context.Context, ex execer, e *model.LedgerEntry, at time.Time) (bool, error) {
	result, err := ex.ExecContext(ctx,
		`INSERT IGNORE INTO points_ledger
		(owner, amount, reason, location_id, month_key, cause_type, cause_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Owner, e.Amount, string(e.Reason), nullInt64(e.LocationID), e.Month,
		string(e.CauseType), e.CauseID, at)
	if err != nil {
		return false, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) (bool, error) {
	at := e.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return appendLedgerEntry(ctx, s.db, e, at)
}

func (s *Store) SumPoints(ctx context.Context, owner, month string) (int, error) {
	if month == "" {
		return s.count(ctx, "SELECT COALESCE(SUM(amount), 0) FROM points_ledger WHERE owner = ?", owner)
	}
	return s.count(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM points_ledger WHERE owner = ? AND month_key = ?", owner, month)
}

func (s *Store) TopByMonth(ctx context.Context, month string, limit int) ([]model.LeaderboardRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner, SUM(amount) AS points FROM points_ledger
		WHERE month_key = ? GROUP BY owner
		ORDER BY points DESC, owner ASC LIMIT ?`, month, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []model.LeaderboardRow{}
	for rows.Next() {
		var r model.LeaderboardRow
		if err := rows.Scan(&r.Owner, &r.Points); err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

func (s *Store) CountAbove(ctx context.Context, month string, points int) (int, error) {
	return s.count(ctx,
		`SELECT COUNT(*) FROM (
			SELECT owner FROM points_ledger WHERE month_key = ?
			GROUP BY owner HAVING SUM(amount) > ?
		) AS above`, month, points)
}

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cleanproof/backend/ledger"
	"cleanproof/backend/model"
)

func (s *Store) DirtyFingerprintUsed(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM dirty_reports WHERE fingerprint = ?", fingerprint)
	return n > 0, err
}

// InsertDirtyReport maps unique violations onto domain errors: the
// (owner, location, date) key to AlreadyReportedToday and the fingerprint
// key to DuplicateEvidence.
func (s *Store) InsertDirtyReport(ctx context.Context, r *model.DirtyReport) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO dirty_reports (owner, location_id, evidence_ref, fingerprint, report_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Owner, r.LocationID, r.EvidenceRef, nullString(r.Fingerprint), r.ReportDate, r.CreatedAt)
	switch {
	case duplicateKey(err, "dirty_fingerprint_index"):
		return 0, model.DuplicateEvidence(r.Fingerprint)
	case duplicateKey(err, ""):
		return 0, model.AlreadyReportedToday(r.LocationID, r.ReportDate)
	case err != nil:
		return 0, fmt.Errorf("failed to insert dirty report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

func distinctReporters(ctx context.Context, q querier, locationID int64, since time.Time) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT owner FROM dirty_reports
		WHERE location_id = ? AND created_at >= ? ORDER BY owner`, locationID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []string{}
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		ret = append(ret, owner)
	}
	return ret, rows.Err()
}

func (s *Store) DistinctReporters(ctx context.Context, locationID int64, since time.Time) ([]string, error) {
	return distinctReporters(ctx, s.db, locationID, since)
}

func guardiansOf(ctx context.Context, q querier, locationID int64) ([]model.GuardianSubscription, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT user_id, location_id, device_token FROM guardian_subscriptions WHERE location_id = ?", locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []model.GuardianSubscription{}
	for rows.Next() {
		var g model.GuardianSubscription
		if err := rows.Scan(&g.UserID, &g.LocationID, &g.DeviceToken); err != nil {
			return nil, err
		}
		ret = append(ret, g)
	}
	return ret, rows.Err()
}

// ConfirmDirty serializes transitions of one location on its row lock. The
// status and the reporter count are re-read under the lock, so of two
// concurrent crossings only the first writes anything.
func (s *Store) ConfirmDirty(ctx context.Context, c model.DirtyConfirmation) (*model.ConsensusEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var (
		status  string
		cleaned sql.NullTime
	)
	err = tx.QueryRowContext(ctx,
		"SELECT status, last_cleaned_at FROM locations WHERE id = ? FOR UPDATE", c.LocationID).
		Scan(&status, &cleaned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rollback(tx, model.NotFound("location", fmt.Sprint(c.LocationID)))
	}
	if err != nil {
		return nil, rollback(tx, err)
	}
	if model.Status(status) == model.StatusDirty {
		return nil, rollback(tx, nil)
	}

	since := c.Since
	if cleaned.Valid && cleaned.Time.After(since) {
		since = cleaned.Time
	}
	reporters, err := distinctReporters(ctx, tx, c.LocationID, since)
	if err != nil {
		return nil, rollback(tx, err)
	}
	if len(reporters) < c.Threshold {
		return nil, rollback(tx, nil)
	}

	reportersJSON, err := json.Marshal(reporters)
	if err != nil {
		return nil, rollback(tx, err)
	}
	result, err := tx.ExecContext(ctx,
		"INSERT INTO consensus_events (location_id, reporters, created_at) VALUES (?, ?, ?)",
		c.LocationID, string(reportersJSON), c.At)
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to insert consensus event: %w", err))
	}
	eventID, err := result.LastInsertId()
	if err != nil {
		return nil, rollback(tx, err)
	}

	locationID := c.LocationID
	for _, owner := range reporters {
		e := &model.LedgerEntry{
			Owner:      owner,
			Amount:     c.Points,
			Reason:     model.ReasonDirtyConfirmation,
			LocationID: &locationID,
			Month:      c.Month,
			CauseType:  model.CauseConsensusEvent,
			CauseID:    eventID,
		}
		if err := ledger.Validate(e); err != nil {
			return nil, rollback(tx, err)
		}
		if _, err := appendLedgerEntry(ctx, tx, e, c.At); err != nil {
			return nil, rollback(tx, err)
		}
	}

	guardians, err := guardiansOf(ctx, tx, c.LocationID)
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to get guardians: %w", err))
	}
	for _, g := range guardians {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (user_id, location_id, consensus_event_id, title, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			g.UserID, c.LocationID, eventID, c.Title, c.Body, c.At); err != nil {
			return nil, rollback(tx, fmt.Errorf("failed to insert notification: %w", err))
		}
	}

	result, err = tx.ExecContext(ctx,
		"UPDATE locations SET status = 'dirty' WHERE id = ? AND status <> 'dirty'", c.LocationID)
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to mark location %d dirty: %w", c.LocationID, err))
	}
	warnUnlessOne(result, "mark location dirty")

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit consensus event: %w", err)
	}
	return &model.ConsensusEvent{
		ID:         eventID,
		LocationID: c.LocationID,
		Reporters:  reporters,
		Guardians:  guardians,
	}, nil
}

package db

import (
	"context"
	"fmt"

	"cleanproof/backend/ledger"
	"cleanproof/backend/model"
)

func (s *Store) CleanupFingerprintUsed(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.count(ctx,
		"SELECT COUNT(*) FROM cleanup_reports WHERE before_fingerprint = ? OR after_fingerprint = ?",
		fingerprint, fingerprint)
	return n > 0, err
}

func (s *Store) HasAcceptedReport(ctx context.Context, owner string, locationID int64) (bool, error) {
	n, err := s.count(ctx,
		"SELECT COUNT(*) FROM cleanup_reports WHERE owner = ? AND location_id = ? AND verified = true",
		owner, locationID)
	return n > 0, err
}

// SaveCleanupReport writes the report, then the award and the clean status
// when award is set. The status update is the last statement of the
// transaction. Both fingerprints are checked again under lock, so a
// concurrent claim reusing the same evidence gets DuplicateEvidence.
func (s *Store) SaveCleanupReport(ctx context.Context, r *model.CleanupReport, award *model.LedgerEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var used int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cleanup_reports
		WHERE before_fingerprint IN (?, ?) OR after_fingerprint IN (?, ?) FOR UPDATE`,
		r.BeforeFingerprint, r.AfterFingerprint, r.BeforeFingerprint, r.AfterFingerprint).Scan(&used); err != nil {
		return 0, rollback(tx, fmt.Errorf("failed to lock fingerprints: %w", err))
	}
	if used > 0 {
		return 0, rollback(tx, model.DuplicateEvidence(r.AfterFingerprint))
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO cleanup_reports
		(owner, location_id, before_ref, before_fingerprint, after_ref, after_fingerprint,
		before_at, after_at, verified, low_confidence, image_signal, distance_m, elapsed_min)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Owner, r.LocationID, r.BeforeRef, r.BeforeFingerprint, r.AfterRef, r.AfterFingerprint,
		r.BeforeAt, r.AfterAt, r.Verified, r.LowConfidence, string(r.ImageSignal), r.DistanceMeters, r.ElapsedMinutes)
	if duplicateKey(err, "after_fingerprint_index") {
		return 0, rollback(tx, model.DuplicateEvidence(r.AfterFingerprint))
	}
	if err != nil {
		return 0, rollback(tx, fmt.Errorf("failed to insert cleanup report: %w", err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, rollback(tx, err)
	}
	r.ID = id

	if award != nil {
		award.CauseID = id
		if err := ledger.Validate(award); err != nil {
			return 0, rollback(tx, err)
		}
		if _, err := appendLedgerEntry(ctx, tx, award, r.AfterAt); err != nil {
			return 0, rollback(tx, err)
		}
		result, err := tx.ExecContext(ctx,
			"UPDATE locations SET status = 'clean', last_cleaned_at = ? WHERE id = ?",
			r.AfterAt, r.LocationID)
		if err != nil {
			return 0, rollback(tx, fmt.Errorf("failed to mark location %d clean: %w", r.LocationID, err))
		}
		warnUnlessOne(result, "mark location clean")
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup report: %w", err)
	}
	return id, nil
}

// CleanupReportsByOwner is the caller's history, newest first.
func (s *Store) CleanupReportsByOwner(ctx context.Context, owner string, limit int) ([]model.CleanupReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, location_id, before_ref, before_fingerprint, after_ref, after_fingerprint,
		before_at, after_at, verified, low_confidence, image_signal, distance_m, elapsed_min, created_at
		FROM cleanup_reports WHERE owner = ? ORDER BY id DESC LIMIT ?`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []model.CleanupReport{}
	for rows.Next() {
		var (
			r      model.CleanupReport
			signal string
		)
		if err := rows.Scan(&r.ID, &r.Owner, &r.LocationID, &r.BeforeRef, &r.BeforeFingerprint,
			&r.AfterRef, &r.AfterFingerprint, &r.BeforeAt, &r.AfterAt, &r.Verified, &r.LowConfidence,
			&signal, &r.DistanceMeters, &r.ElapsedMinutes, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ImageSignal = model.Signal(signal)
		ret = append(ret, r)
	}
	return ret, rows.Err()
}

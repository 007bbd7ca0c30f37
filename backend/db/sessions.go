package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cleanproof/backend/model"
)

func (s *Store) PendingFingerprintUsed(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM pending_sessions WHERE fingerprint = ?", fingerprint)
	return n > 0, err
}

func (s *Store) CreateSession(ctx context.Context, ps *model.PendingSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_sessions
		(id, owner, location_id, evidence_ref, fingerprint, latitude, longitude, accuracy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ps.ID, ps.Owner, ps.LocationID, ps.EvidenceRef, ps.Fingerprint,
		ps.Fix.Latitude, ps.Fix.Longitude, ps.Fix.Accuracy, ps.CreatedAt)
	if duplicateKey(err, "pending_fingerprint_index") {
		return model.DuplicateEvidence(ps.Fingerprint)
	}
	return err
}

// ConsumeSession locks, reads and deletes the row in one transaction. Of two
// concurrent callers only one sees a deleted row.
func (s *Store) ConsumeSession(ctx context.Context, id, owner string) (*model.PendingSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var ps model.PendingSession
	err = tx.QueryRowContext(ctx,
		`SELECT id, owner, location_id, evidence_ref, fingerprint, latitude, longitude, accuracy, created_at
		FROM pending_sessions WHERE id = ? AND owner = ? FOR UPDATE`, id, owner).
		Scan(&ps.ID, &ps.Owner, &ps.LocationID, &ps.EvidenceRef, &ps.Fingerprint,
			&ps.Fix.Latitude, &ps.Fix.Longitude, &ps.Fix.Accuracy, &ps.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rollback(tx, nil)
	}
	if err != nil {
		return nil, rollback(tx, err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM pending_sessions WHERE id = ? AND owner = ?", id, owner)
	if err != nil {
		return nil, rollback(tx, err)
	}
	if n, err := result.RowsAffected(); err != nil || n != 1 {
		return nil, rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session consumption: %w", err)
	}
	ps.CreatedAt = ps.CreatedAt.UTC()
	return &ps, nil
}

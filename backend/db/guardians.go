package db

import (
	"context"

	"fmt"

	"cleanproof/backend/model"
)

// Subscribe is an upsert; a second subscription replaces the device token.
func (s *Store) Subscribe(ctx context.Context, g model.GuardianSubscription) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO guardian_subscriptions (user_id, location_id, device_token) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE device_token = VALUES(device_token)`,
		g.UserID, g.LocationID, g.DeviceToken); err != nil {
		return fmt.Errorf("failed to subscribe %s to location %d: %w", g.UserID, g.LocationID, err)
	}
	return nil
}

// Unsubscribe reports whether a subscription was removed.
func (s *Store) Unsubscribe(ctx context.Context, userID string, locationID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM guardian_subscriptions WHERE user_id = ? AND location_id = ?", userID, locationID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

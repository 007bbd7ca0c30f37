package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cleanproof/backend/model"
)

const locationColumns = "id, latitude, longitude, grid_key, status, last_cleaned_at, created_at"

func scanLocation(sc interface{ Scan(...interface{}) error }) (*model.Location, error) {
	var (
		l       model.Location
		status  string
		cleaned sql.NullTime
	)
	if err := sc.Scan(&l.ID, &l.Latitude, &l.Longitude, &l.GridKey, &status, &cleaned, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Status = model.Status(status)
	if cleaned.Valid {
		t := cleaned.Time.UTC()
		l.LastCleanedAt = &t
	}
	return &l, nil
}

// GetLocation returns nil, nil when there is no such location.
func (s *Store) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+locationColumns+" FROM locations WHERE id = ?", id)
	l, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// UpsertLocation relies on the unique grid_key. LAST_INSERT_ID(id) makes the
// existing row's id available when the insert hits the key.
func (s *Store) UpsertLocation(ctx context.Context, gridKey string, exact model.Coordinates) (*model.Location, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (latitude, longitude, grid_key) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`,
		exact.Latitude, exact.Longitude, gridKey)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	l, err := s.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("location %d vanished after upsert", id)
	}
	return l, nil
}

// LocationsInBounds returns locations inside a viewport, most recently
// created first.
func (s *Store) LocationsInBounds(ctx context.Context, latMin, lonMin, latMax, lonMax float64, limit int) ([]model.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+locationColumns+` FROM locations
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY id DESC LIMIT ?`,
		latMin, latMax, lonMin, lonMax, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := []model.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *l)
	}
	return ret, rows.Err()
}

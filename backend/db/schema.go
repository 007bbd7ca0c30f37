package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

var tables = []struct {
	name string
	ddl  string
}{
	{"locations", `
	CREATE TABLE IF NOT EXISTS locations(
		id INT NOT NULL AUTO_INCREMENT,
		latitude FLOAT NOT NULL,
		longitude FLOAT NOT NULL,
		grid_key VARCHAR(32) NOT NULL,
		status ENUM('clean', 'pending', 'dirty') NOT NULL DEFAULT 'pending',
		last_cleaned_at TIMESTAMP NULL DEFAULT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE INDEX grid_key_index (grid_key),
		INDEX status_index (status)
	)`},
	{"pending_sessions", `
	CREATE TABLE IF NOT EXISTS pending_sessions(
		id CHAR(36) NOT NULL,
		owner VARCHAR(255) NOT NULL,
		location_id INT NOT NULL,
		evidence_ref VARCHAR(1024) NOT NULL,
		fingerprint CHAR(64) NOT NULL,
		latitude FLOAT NOT NULL,
		longitude FLOAT NOT NULL,
		accuracy FLOAT NOT NULL,
		created_at TIMESTAMP(3) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE INDEX pending_fingerprint_index (fingerprint),
		INDEX owner_index (owner)
	)`},
	{"cleanup_reports", `
	CREATE TABLE IF NOT EXISTS cleanup_reports(
		id INT NOT NULL AUTO_INCREMENT,
		owner VARCHAR(255) NOT NULL,
		location_id INT NOT NULL,
		before_ref VARCHAR(1024) NOT NULL,
		before_fingerprint CHAR(64) NOT NULL,
		after_ref VARCHAR(1024) NOT NULL,
		after_fingerprint CHAR(64) NOT NULL,
		before_at TIMESTAMP(3) NOT NULL,
		after_at TIMESTAMP(3) NOT NULL,
		verified BOOL NOT NULL DEFAULT false,
		low_confidence BOOL NOT NULL DEFAULT false,
		image_signal ENUM('pass', 'fail', 'unavailable') NOT NULL,
		distance_m FLOAT NOT NULL,
		elapsed_min FLOAT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		INDEX before_fingerprint_index (before_fingerprint),
		UNIQUE INDEX after_fingerprint_index (after_fingerprint),
		INDEX owner_location_index (owner, location_id)
	)`},
	{"dirty_reports", `
	CREATE TABLE IF NOT EXISTS dirty_reports(
		id INT NOT NULL AUTO_INCREMENT,
		owner VARCHAR(255) NOT NULL,
		location_id INT NOT NULL,
		evidence_ref VARCHAR(1024) NOT NULL,
		fingerprint CHAR(64) NULL DEFAULT NULL,
		report_date DATE NOT NULL,
		created_at TIMESTAMP(3) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE INDEX owner_location_date_index (owner, location_id, report_date),
		UNIQUE INDEX dirty_fingerprint_index (fingerprint),
		INDEX location_created_index (location_id, created_at)
	)`},
	{"consensus_events", `
	CREATE TABLE IF NOT EXISTS consensus_events(
		id INT NOT NULL AUTO_INCREMENT,
		location_id INT NOT NULL,
		reporters JSON NOT NULL,
		created_at TIMESTAMP(3) NOT NULL,
		PRIMARY KEY (id),
		INDEX location_index (location_id)
	)`},
	{"points_ledger", `
	CREATE TABLE IF NOT EXISTS points_ledger(
		id INT NOT NULL AUTO_INCREMENT,
		owner VARCHAR(255) NOT NULL,
		amount INT NOT NULL,
		reason ENUM('cleanup', 'repeat_cleanup', 'dirty_confirmation') NOT NULL,
		location_id INT NULL DEFAULT NULL,
		month_key CHAR(7) NOT NULL,
		cause_type ENUM('cleanup_report', 'consensus_event') NOT NULL,
		cause_id INT NOT NULL,
		created_at TIMESTAMP(3) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE INDEX owner_cause_index (owner, cause_type, cause_id),
		INDEX month_owner_index (month_key, owner)
	)`},
	{"guardian_subscriptions", `
	CREATE TABLE IF NOT EXISTS guardian_subscriptions(
		user_id VARCHAR(255) NOT NULL,
		location_id INT NOT NULL,
		device_token VARCHAR(512) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE INDEX user_location_index (user_id, location_id),
		INDEX location_index (location_id)
	)`},
	{"notifications", `
	CREATE TABLE IF NOT EXISTS notifications(
		id INT NOT NULL AUTO_INCREMENT,
		user_id VARCHAR(255) NOT NULL,
		location_id INT NOT NULL,
		consensus_event_id INT NOT NULL,
		title VARCHAR(255) NOT NULL,
		body VARCHAR(1024) NOT NULL,
		created_at TIMESTAMP(3) NOT NULL,
		PRIMARY KEY (id),
		INDEX user_index (user_id),
		INDEX event_index (consensus_event_id)
	)`},
}

// EnsureSchema creates the tables if they don't exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	log.Info("Initializing database schema...")
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", t.name, err)
		}
		log.Debugf("Table %s created/verified", t.name)
	}
	log.Info("Database schema initialization completed")
	return nil
}

package model

import (
	"time"
)

// Status is the public state of a location.
type Status string

const (
	StatusClean   Status = "clean"
	StatusPending Status = "pending"
	StatusDirty   Status = "dirty"
)

// Signal is the three-valued outcome of an external trust signal.
type Signal string

const (
	SignalPass        Signal = "pass"
	SignalFail        Signal = "fail"
	SignalUnavailable Signal = "unavailable"
)

// Reason codes for ledger entries
type Reason string

const (
	ReasonCleanup           Reason = "cleanup"
	ReasonRepeatCleanup     Reason = "repeat_cleanup"
	ReasonDirtyConfirmation Reason = "dirty_confirmation"
)

// CauseType names the table a ledger entry's cause lives in.
type CauseType string

const (
	CauseCleanupReport  CauseType = "cleanup_report"
	CauseConsensusEvent CauseType = "consensus_event"
)

// Coordinates is a WGS84 point in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fix is a GPS fix with the accuracy radius reported by the device, in metres.
type Fix struct {
	Coordinates
	Accuracy float64 `json:"accuracy"`
}

// Location is a grid-deduplicated physical place.
type Location struct {
	ID            int64      `json:"id" db:"id"`
	Latitude      float64    `json:"latitude" db:"latitude"`
	Longitude     float64    `json:"longitude" db:"longitude"`
	GridKey       string     `json:"grid_key" db:"grid_key"`
	Status        Status     `json:"status" db:"status"`
	LastCleanedAt *time.Time `json:"last_cleaned_at,omitempty" db:"last_cleaned_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// PendingSession is an open "before" capture waiting for its "after" capture.
type PendingSession struct {
	ID          string    `json:"id" db:"id"`
	Owner       string    `json:"owner" db:"owner"`
	LocationID  int64     `json:"location_id" db:"location_id"`
	EvidenceRef string    `json:"evidence_ref" db:"evidence_ref"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Fix         Fix       `json:"fix"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CleanupReport is the immutable audit record of one before/after claim.
type CleanupReport struct {
	ID                int64     `json:"id" db:"id"`
	Owner             string    `json:"owner" db:"owner"`
	LocationID        int64     `json:"location_id" db:"location_id"`
	BeforeRef         string    `json:"before_ref" db:"before_ref"`
	BeforeFingerprint string    `json:"before_fingerprint" db:"before_fingerprint"`
	AfterRef          string    `json:"after_ref" db:"after_ref"`
	AfterFingerprint  string    `json:"after_fingerprint" db:"after_fingerprint"`
	BeforeAt          time.Time `json:"before_at" db:"before_at"`
	AfterAt           time.Time `json:"after_at" db:"after_at"`
	Verified          bool      `json:"verified" db:"verified"`
	LowConfidence     bool      `json:"low_confidence" db:"low_confidence"`
	ImageSignal       Signal    `json:"image_signal" db:"image_signal"`
	DistanceMeters    float64   `json:"distance_m" db:"distance_m"`
	ElapsedMinutes    float64   `json:"elapsed_min" db:"elapsed_min"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// DirtyReport is one user's claim that a location is dirty on a given day.
type DirtyReport struct {
	ID          int64     `json:"id" db:"id"`
	Owner       string    `json:"owner" db:"owner"`
	LocationID  int64     `json:"location_id" db:"location_id"`
	EvidenceRef string    `json:"evidence_ref" db:"evidence_ref"`
	Fingerprint string    `json:"fingerprint,omitempty" db:"fingerprint"`
	ReportDate  string    `json:"report_date" db:"report_date"` // YYYY-MM-DD, server UTC
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// LedgerEntry is one immutable point-earning event.
type LedgerEntry struct {
	ID         int64     `json:"id" db:"id"`
	Owner      string    `json:"owner" db:"owner"`
	Amount     int       `json:"amount" db:"amount"`
	Reason     Reason    `json:"reason" db:"reason"`
	LocationID *int64    `json:"location_id,omitempty" db:"location_id"`
	Month      string    `json:"month" db:"month_key"` // YYYY-MM
	CauseType  CauseType `json:"cause_type" db:"cause_type"`
	CauseID    int64     `json:"cause_id" db:"cause_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// GuardianSubscription ties a user's device to a location they watch.
type GuardianSubscription struct {
	UserID      string `json:"user_id" db:"user_id"`
	LocationID  int64  `json:"location_id" db:"location_id"`
	DeviceToken string `json:"-" db:"device_token"`
}

// Notification is the persisted copy of one fan-out entry.
type Notification struct {
	ID               int64     `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	LocationID       int64     `json:"location_id" db:"location_id"`
	ConsensusEventID int64     `json:"consensus_event_id" db:"consensus_event_id"`
	Title            string    `json:"title" db:"title"`
	Body             string    `json:"body" db:"body"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// DirtyConfirmation is everything written when a location crosses the
// consensus threshold.
// The store recounts reporters since Since under the location lock and
// writes nothing when fewer than Threshold remain or the location is
// already dirty.
type DirtyConfirmation struct {
	LocationID int64
	Since      time.Time
	Threshold  int
	Points     int
	Month      string
	Title      string
	Body       string
	At         time.Time
}

// ConsensusEvent is the outcome of a committed dirty confirmation.
type ConsensusEvent struct {
	ID         int64
	LocationID int64
	Reporters  []string
	Guardians  []GuardianSubscription
}

// LeaderboardRow is one user's points for a month.
type LeaderboardRow struct {
	Owner  string `json:"owner"`
	Points int    `json:"points"`
}

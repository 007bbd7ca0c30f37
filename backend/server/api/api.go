package api

import "time"

type OpenSessionArgs struct {
	LocationID  int64   `json:"location_id"`
	EvidenceRef string  `json:"evidence_ref" binding:"required"`
	Fingerprint string  `json:"fingerprint" binding:"required"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Accuracy    float64 `json:"accuracy"`
}

type OpenSessionResp struct {
	SessionID  string    `json:"session_id"`
	LocationID int64     `json:"location_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// CleanupArgs is the "after" capture. Client timestamps are not accepted.
type CleanupArgs struct {
	SessionID   string  `json:"session_id" binding:"required"`
	EvidenceRef string  `json:"evidence_ref" binding:"required"`
	Fingerprint string  `json:"fingerprint" binding:"required"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Accuracy    float64 `json:"accuracy"`
}

// DirtyArgs may omit the coordinates when location_id is set.
type DirtyArgs struct {
	LocationID  int64   `json:"location_id"`
	EvidenceRef string  `json:"evidence_ref" binding:"required"`
	Fingerprint string  `json:"fingerprint"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type GuardianArgs struct {
	LocationID  int64  `json:"location_id" binding:"required"`
	DeviceToken string `json:"device_token" binding:"required"`
}

type PointsResp struct {
	Month    string `json:"month"`
	Monthly  int    `json:"monthly"`
	Lifetime int    `json:"lifetime"`
}

type ErrorResp struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

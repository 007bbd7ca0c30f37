// Package session owns the lifecycle of a "before" capture. A session is
// stamped with server time when opened and deleted exactly once when the
// matching "after" capture consumes it.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cleanproof/backend/dedup"
	"cleanproof/backend/model"

	"github.com/apex/log"
	"github.com/google/uuid"
)

type Store interface {
	PendingFingerprintUsed(ctx context.Context, fingerprint string) (bool, error)
	CreateSession(ctx context.Context, s *model.PendingSession) error
	// ConsumeSession deletes and returns the session for (id, owner) in one
	// atomic step. It returns nil, nil when no such row was deleted.
	ConsumeSession(ctx context.Context, id, owner string) (*model.PendingSession, error)
}

type Deduplicator interface {
	Check(ctx context.Context, fingerprint string) error
}

type LocationResolver interface {
	Resolve(ctx context.Context, id int64, at *model.Coordinates) (*model.Location, error)
}

// OpenRequest is a "before" claim.
type OpenRequest struct {
	Owner       string
	LocationID  int64
	EvidenceRef string
	Fingerprint string
	Fix         model.Fix
}

type Tracker struct {
	store     Store
	dedup     Deduplicator
	locations LocationResolver
	now       func() time.Time
	newID     func() string
}

func NewTracker(store Store, d Deduplicator, locations LocationResolver) *Tracker {
	return &Tracker{
		store:     store,
		dedup:     d,
		locations: locations,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Open validates the before claim and records a new pending session. The
// creation time is taken from the server clock.
func (t *Tracker) Open(ctx context.Context, req OpenRequest) (*model.PendingSession, error) {
	if req.Owner == "" {
		return nil, model.InvalidArgument("owner is required")
	}
	if strings.TrimSpace(req.EvidenceRef) == "" {
		return nil, model.InvalidArgument("evidence reference is required")
	}
	if req.Fix.Accuracy < 0 {
		return nil, model.InvalidArgument("accuracy must not be negative")
	}
	fp := dedup.Normalize(req.Fingerprint)
	if err := t.dedup.Check(ctx, fp); err != nil {
		return nil, err
	}
	pending, err := t.store.PendingFingerprintUsed(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending fingerprints: %w", err)
	}
	if pending {
		return nil, model.DuplicateEvidence(fp)
	}

	loc, err := t.locations.Resolve(ctx, req.LocationID, &req.Fix.Coordinates)
	if err != nil {
		return nil, err
	}

	s := &model.PendingSession{
		ID:          t.newID(),
		Owner:       req.Owner,
		LocationID:  loc.ID,
		EvidenceRef: req.EvidenceRef,
		Fingerprint: fp,
		Fix:         req.Fix,
		CreatedAt:   t.now().UTC(),
	}
	if err := t.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.WithFields(log.Fields{"session": s.ID, "owner": s.Owner, "location": s.LocationID}).Info("Session opened")
	return s, nil
}

// Consume returns the session and removes it. A missing session, one owned by
// another user, or one already consumed all yield NotFound.
func (t *Tracker) Consume(ctx context.Context, id, owner string) (*model.PendingSession, error) {
	if id == "" || owner == "" {
		return nil, model.NotFound("session", id)
	}
	s, err := t.store.ConsumeSession(ctx, id, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to consume session %s: %w", id, err)
	}
	if s == nil {
		return nil, model.NotFound("session", id)
	}
	return s, nil
}

// Package consensus counts independent dirty reports and flips a location to
// dirty once enough distinct users agree within the trailing window.
package consensus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cleanproof/backend/dedup"
	"cleanproof/backend/ledger"
	"cleanproof/backend/metrics"
	"cleanproof/backend/model"
	"cleanproof/backend/notify"

	"github.com/apex/log"
)

const dateLayout = "2006-01-02"

type Store interface {
	DirtyFingerprintUsed(ctx context.Context, fingerprint string) (bool, error)
	// InsertDirtyReport returns AlreadyReportedToday when the owner already
	// reported the location on r.ReportDate.
	InsertDirtyReport(ctx context.Context, r *model.DirtyReport) (int64, error)
	DistinctReporters(ctx context.Context, locationID int64, since time.Time) ([]string, error)
	// ConfirmDirty writes the whole transition in one transaction, or returns
	// nil, nil when the locked row shows it is not due.
	ConfirmDirty(ctx context.Context, c model.DirtyConfirmation) (*model.ConsensusEvent, error)
}

type LocationResolver interface {
	Resolve(ctx context.Context, id int64, at *model.Coordinates) (*model.Location, error)
}

type Notifier interface {
	NotifyDirty(ctx context.Context, ev *model.ConsensusEvent, title, body string) error
}

type Config struct {
	Threshold int
	Window    time.Duration
	Points    int
}

// DirtyClaim is one "this location is dirty" report. Coordinates are
// optional when LocationID is set.
type DirtyClaim struct {
	Owner       string
	LocationID  int64
	Coordinates *model.Coordinates
	EvidenceRef string
	Fingerprint string
}

type Progress struct {
	LocationID        int64 `json:"location_id"`
	DistinctReporters int   `json:"distinct_reporters"`
	Required          int   `json:"required"`
	ThresholdMet      bool  `json:"threshold_met"`
	Transitioned      bool  `json:"transitioned"`
}

type Counter struct {
	store     Store
	locations LocationResolver
	notifier  Notifier
	cfg       Config
	now       func() time.Time
}

func NewCounter(store Store, locations LocationResolver, notifier Notifier, cfg Config) *Counter {
	return &Counter{
		store:     store,
		locations: locations,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Report records a dirty claim and recounts the location.
func (c *Counter) Report(ctx context.Context, claim DirtyClaim) (*Progress, error) {
	p, err := c.report(ctx, claim)
	result := "accepted"
	if err != nil {
		result = "error"
		if kind := model.KindOf(err); kind != "" {
			result = string(kind)
		}
	}
	metrics.DirtyReports.WithLabelValues(result).Inc()
	return p, err
}

// windowStart is the older bound of the count: the trailing window, cut at
// the last accepted cleanup.
func (c *Counter) windowStart(now time.Time, loc *model.Location) time.Time {
	since := now.Add(-c.cfg.Window)
	if loc.LastCleanedAt != nil && loc.LastCleanedAt.After(since) {
		since = loc.LastCleanedAt.UTC()
	}
	return since
}

func (c *Counter) report(ctx context.Context, claim DirtyClaim) (*Progress, error) {
	if claim.Owner == "" {
		return nil, model.InvalidArgument("owner is required")
	}
	if strings.TrimSpace(claim.EvidenceRef) == "" {
		return nil, model.InvalidArgument("evidence reference is required")
	}

	loc, err := c.locations.Resolve(ctx, claim.LocationID, claim.Coordinates)
	if err != nil {
		return nil, err
	}

	fp := dedup.Normalize(claim.Fingerprint)
	if err := dedup.ValidLength(fp); err != nil {
		return nil, err
	}
	if fp != "" {
		used, err := c.store.DirtyFingerprintUsed(ctx, fp)
		if err != nil {
			return nil, fmt.Errorf("failed to check dirty fingerprint: %w", err)
		}
		if used {
			return nil, model.DuplicateEvidence(fp)
		}
	}

	now := c.now().UTC()
	r := &model.DirtyReport{
		Owner:       claim.Owner,
		LocationID:  loc.ID,
		EvidenceRef: claim.EvidenceRef,
		Fingerprint: fp,
		ReportDate:  now.Format(dateLayout),
		CreatedAt:   now,
	}
	if _, err := c.store.InsertDirtyReport(ctx, r); err != nil {
		return nil, err
	}

	since := c.windowStart(now, loc)
	reporters, err := c.store.DistinctReporters(ctx, loc.ID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count reporters for location %d: %w", loc.ID, err)
	}

	p := &Progress{
		LocationID:        loc.ID,
		DistinctReporters: len(reporters),
		Required:          c.cfg.Threshold,
		ThresholdMet:      len(reporters) >= c.cfg.Threshold,
	}
	if !p.ThresholdMet || loc.Status == model.StatusDirty {
		return p, nil
	}

	title, body := notify.DirtyAlert(loc.ID, len(reporters))
	ev, err := c.store.ConfirmDirty(ctx, model.DirtyConfirmation{
		LocationID: loc.ID,
		Since:      since,
		Threshold:  c.cfg.Threshold,
		Points:     c.cfg.Points,
		Month:      ledger.MonthKey(now),
		Title:      title,
		Body:       body,
		At:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm location %d dirty: %w", loc.ID, err)
	}
	if ev == nil {
		return p, nil
	}

	p.Transitioned = true
	metrics.ConsensusTransitions.Inc()
	metrics.PointsAwarded.WithLabelValues(string(model.ReasonDirtyConfirmation)).
		Add(float64(c.cfg.Points * len(ev.Reporters)))
	log.WithFields(log.Fields{
		"location":  loc.ID,
		"event":     ev.ID,
		"reporters": len(ev.Reporters),
		"guardians": len(ev.Guardians),
	}).Info("Location confirmed dirty")

	// The transition is committed; a lost notification does not undo it.
	if c.notifier != nil {
		if err := c.notifier.NotifyDirty(ctx, ev, title, body); err != nil {
			log.WithError(err).WithField("location", loc.ID).Error("Failed to fan out dirty alert")
		}
	}
	return p, nil
}

// Package trust turns a consumed before-session and an after-claim into one
// accept-or-flag decision.
//
// Hard signals (evidence reuse, elapsed time, distance) reject the claim
// outright. Soft signals (GPS accuracy, visual similarity) only decide
// between verified and flagged for review; a flagged claim is a successful
// outcome that earns no points.
package trust

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cleanproof/backend/dedup"
	"cleanproof/backend/geo"
	"cleanproof/backend/ledger"
	"cleanproof/backend/metrics"
	"cleanproof/backend/model"
	"cleanproof/backend/similarity"
	"cleanproof/backend/timewindow"

	"github.com/apex/log"
)

type Store interface {
	HasAcceptedReport(ctx context.Context, owner string, locationID int64) (bool, error)
	// SaveCleanupReport inserts the report and, when award is non-nil, the
	// ledger entry caused by it and the clean status of the location, in one
	// transaction with the status update last. It returns the report id, or
	// DuplicateEvidence when either fingerprint was stored meanwhile.
	SaveCleanupReport(ctx context.Context, r *model.CleanupReport, award *model.LedgerEntry) (int64, error)
}

type Deduplicator interface {
	Check(ctx context.Context, fingerprint string) error
}

type Scorer interface {
	Compare(ctx context.Context, beforeRef, afterRef string) (similarity.Verdict, error)
}

type Points struct {
	Base   int
	Repeat int
}

// AfterClaim is the "after" half of a cleanup claim.
type AfterClaim struct {
	EvidenceRef string
	Fingerprint string
	Fix         model.Fix
}

// Result is returned for both verified and flagged claims.
type Result struct {
	ReportID       int64        `json:"report_id"`
	Verified       bool         `json:"verified"`
	LowConfidence  bool         `json:"low_confidence"`
	PointsAwarded  int          `json:"points_awarded"`
	ImageSignal    model.Signal `json:"image_signal"`
	DistanceMeters float64      `json:"distance_m"`
	ElapsedMinutes float64      `json:"elapsed_min"`
}

type Evaluator struct {
	store   Store
	dedup   Deduplicator
	matcher *geo.Matcher
	window  timewindow.Guard
	scorer  Scorer
	policy  similarity.Policy
	points  Points
	now     func() time.Time
}

func NewEvaluator(store Store, d Deduplicator, matcher *geo.Matcher, window timewindow.Guard,
	scorer Scorer, policy similarity.Policy, points Points) *Evaluator {
	return &Evaluator{
		store:   store,
		dedup:   d,
		matcher: matcher,
		window:  window,
		scorer:  scorer,
		policy:  policy,
		points:  points,
		now:     time.Now,
	}
}

// Evaluate runs every trust check against a session that the caller has
// already consumed.
func (e *Evaluator) Evaluate(ctx context.Context, s *model.PendingSession, after AfterClaim) (*Result, error) {
	res, err := e.evaluate(ctx, s, after)
	outcome := "error"
	switch {
	case err == nil && res.Verified:
		outcome = "verified"
	case err == nil:
		outcome = "flagged"
	case model.KindOf(err) != "":
		outcome = string(model.KindOf(err))
	}
	metrics.CleanupEvaluations.WithLabelValues(outcome).Inc()
	return res, err
}

func (e *Evaluator) evaluate(ctx context.Context, s *model.PendingSession, after AfterClaim) (*Result, error) {
	if strings.TrimSpace(after.EvidenceRef) == "" {
		return nil, model.InvalidArgument("evidence reference is required")
	}
	if after.Fix.Accuracy < 0 {
		return nil, model.InvalidArgument("accuracy must not be negative")
	}
	if !geo.ValidCoordinates(after.Fix.Coordinates) {
		return nil, model.InvalidArgument("invalid coordinates %f,%f", after.Fix.Latitude, after.Fix.Longitude)
	}
	now := e.now().UTC()

	// Evidence reuse, including replaying the before photo as the after.
	fp := dedup.Normalize(after.Fingerprint)
	if fp != "" && fp == s.Fingerprint {
		return nil, model.DuplicateEvidence(fp)
	}
	if err := e.dedup.Check(ctx, fp); err != nil {
		return nil, err
	}

	// Server-clock elapsed time.
	elapsed, err := e.window.Check(s.CreatedAt, now)
	if err != nil {
		return nil, err
	}

	// Distance between the two captures.
	match, err := e.matcher.Match(s.Fix, after.Fix)
	if err != nil {
		return nil, err
	}

	// Advisory visual comparison.
	verdict, err := e.scorer.Compare(ctx, s.EvidenceRef, after.EvidenceRef)
	if err != nil {
		if !errors.Is(err, model.ErrCollaboratorUnavailable) {
			return nil, err
		}
		log.WithError(err).WithField("session", s.ID).Warn("Similarity check unavailable, applying policy")
		verdict.Signal = model.SignalUnavailable
	}
	metrics.SimilaritySignals.WithLabelValues(string(verdict.Signal)).Inc()

	verified := !match.LowConfidence && e.policy.Passed(verdict.Signal)

	report := &model.CleanupReport{
		Owner:             s.Owner,
		LocationID:        s.LocationID,
		BeforeRef:         s.EvidenceRef,
		BeforeFingerprint: s.Fingerprint,
		AfterRef:          after.EvidenceRef,
		AfterFingerprint:  fp,
		BeforeAt:          s.CreatedAt,
		AfterAt:           now,
		Verified:          verified,
		LowConfidence:     match.LowConfidence,
		ImageSignal:       verdict.Signal,
		DistanceMeters:    match.DistanceMeters,
		ElapsedMinutes:    elapsed,
	}

	// Points only for verified claims.
	var award *model.LedgerEntry
	if verified {
		repeat, err := e.store.HasAcceptedReport(ctx, s.Owner, s.LocationID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up prior reports: %w", err)
		}
		locationID := s.LocationID
		award = &model.LedgerEntry{
			Owner:      s.Owner,
			Amount:     e.points.Base,
			Reason:     model.ReasonCleanup,
			LocationID: &locationID,
			Month:      ledger.MonthKey(now),
			CauseType:  model.CauseCleanupReport,
		}
		if repeat {
			award.Amount = e.points.Repeat
			award.Reason = model.ReasonRepeatCleanup
		}
	}

	// The audit record is kept whatever the outcome.
	id, err := e.store.SaveCleanupReport(ctx, report, award)
	if err != nil {
		return nil, fmt.Errorf("failed to save cleanup report: %w", err)
	}

	res := &Result{
		ReportID:       id,
		Verified:       verified,
		LowConfidence:  match.LowConfidence,
		ImageSignal:    verdict.Signal,
		DistanceMeters: match.DistanceMeters,
		ElapsedMinutes: elapsed,
	}
	if award != nil {
		res.PointsAwarded = award.Amount
		metrics.PointsAwarded.WithLabelValues(string(award.Reason)).Add(float64(award.Amount))
	}

	log.WithFields(log.Fields{
		"report":         id,
		"owner":          s.Owner,
		"location":       s.LocationID,
		"verified":       verified,
		"low_confidence": match.LowConfidence,
		"image_signal":   verdict.Signal,
		"distance_m":     fmt.Sprintf("%.1f", match.DistanceMeters),
		"elapsed_min":    fmt.Sprintf("%.1f", elapsed),
	}).Info("Cleanup claim evaluated")

	return res, nil
}

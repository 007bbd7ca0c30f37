// Package ledger is the append-only record of point-earning events. Totals
// and leaderboards are sums over entries, so a monthly reset is only a
// filter on month_key and history stays queryable.
package ledger

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"cleanproof/backend/model"
)

const monthLayout = "2006-01"

var monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthKey is the YYYY-MM partition of t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

func ValidMonth(month string) bool {
	return monthRe.MatchString(month)
}

type Store interface {
	// AppendLedgerEntry inserts e unless an entry with the same owner and
	// cause already exists. It reports whether a row was written.
	AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) (bool, error)
	// SumPoints sums an owner's entries; an empty month means all months.
	SumPoints(ctx context.Context, owner, month string) (int, error)
	TopByMonth(ctx context.Context, month string, limit int) ([]model.LeaderboardRow, error)
	// CountAbove counts owners whose monthly total is strictly above points.
	CountAbove(ctx context.Context, month string, points int) (int, error)
}

type Ledger struct {
	store Store
}

func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Validate checks that an entry can be causally reconstructed.
func Validate(e *model.LedgerEntry) error {
	if e.Owner == "" {
		return model.InvalidArgument("ledger entry owner is required")
	}
	if e.Amount == 0 {
		return model.InvalidArgument("ledger entry amount must not be zero")
	}
	if !ValidMonth(e.Month) {
		return model.InvalidArgument("invalid month key %q", e.Month)
	}
	switch e.CauseType {
	case model.CauseCleanupReport, model.CauseConsensusEvent:
	default:
		return model.InvalidArgument("unknown cause type %q", e.CauseType)
	}
	if e.CauseID <= 0 {
		return model.InvalidArgument("ledger entry must reference its cause")
	}
	return nil
}

// Append is the only write primitive. Re-appending the same cause for the
// same owner is a no-op.
func (l *Ledger) Append(ctx context.Context, e *model.LedgerEntry) (bool, error) {
	if err := Validate(e); err != nil {
		return false, err
	}
	written, err := l.store.AppendLedgerEntry(ctx, e)
	if err != nil {
		return false, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return written, nil
}

// TotalFor is the owner's lifetime total.
func (l *Ledger) TotalFor(ctx context.Context, owner string) (int, error) {
	return l.store.SumPoints(ctx, owner, "")
}

// MonthlyTotalFor is the owner's total for one month.
func (l *Ledger) MonthlyTotalFor(ctx context.Context, owner, month string) (int, error) {
	if !ValidMonth(month) {
		return 0, model.InvalidArgument("invalid month key %q", month)
	}
	return l.store.SumPoints(ctx, owner, month)
}

// Place is one leaderboard line.
type Place struct {
	Place  int    `json:"place"`
	Owner  string `json:"owner"`
	Points int    `json:"points"`
	IsYou  bool   `json:"is_you"`
}

type Leaderboard struct {
	Month   string  `json:"month"`
	Records []Place `json:"records"`
}

// Leaderboard returns the top entries for a month. When me is not among
// them, a final record with the caller's own place is appended.
func (l *Ledger) Leaderboard(ctx context.Context, month string, limit int, me string) (*Leaderboard, error) {
	if !ValidMonth(month) {
		return nil, model.InvalidArgument("invalid month key %q", month)
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.store.TopByMonth(ctx, month, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top scores: %w", err)
	}

	ret := &Leaderboard{Month: month, Records: []Place{}}
	hasYou := false
	for i, r := range rows {
		ret.Records = append(ret.Records, Place{
			Place:  i + 1,
			Owner:  r.Owner,
			Points: r.Points,
			IsYou:  r.Owner == me,
		})
		if r.Owner == me {
			hasYou = true
		}
	}
	if hasYou || me == "" {
		return ret, nil
	}

	mine, err := l.store.SumPoints(ctx, me, month)
	if err != nil {
		return nil, fmt.Errorf("failed to get points for %s: %w", me, err)
	}
	if mine == 0 {
		return ret, nil
	}
	above, err := l.store.CountAbove(ctx, month, mine)
	if err != nil {
		return nil, fmt.Errorf("failed to rank %s: %w", me, err)
	}
	place := above + 1
	if place <= len(rows) {
		// Tied with the last printed row but cut by the limit.
		place = len(rows) + 1
	}
	ret.Records = append(ret.Records, Place{Place: place, Owner: me, Points: mine, IsYou: true})
	return ret, nil
}

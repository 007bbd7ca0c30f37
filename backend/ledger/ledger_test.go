package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"cleanproof/backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type memStore struct {
	entries []model.LedgerEntry
}

func (m *memStore) AppendLedgerEntry(ctx context.Context, e *model.LedgerEntry) (bool, error) {
	for _, x := range m.entries {
		if x.Owner == e.Owner && x.CauseType == e.CauseType && x.CauseID == e.CauseID {
			return false, nil
		}
	}
	m.entries = append(m.entries, *e)
	return true, nil
}

func (m *memStore) SumPoints(ctx context.Context, owner, month string) (int, error) {
	sum := 0
	for _, e := range m.entries {
		if e.Owner == owner && (month == "" || e.Month == month) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (m *memStore) totals(month string) map[string]int {
	t := map[string]int{}
	for _, e := range m.entries {
		if e.Month == month {
			t[e.Owner] += e.Amount
		}
	}
	return t
}

func (m *memStore) TopByMonth(ctx context.Context, month string, limit int) ([]model.LeaderboardRow, error) {
	rows := []model.LeaderboardRow{}
	for owner, pts := range m.totals(month) {
		rows = append(rows, model.LeaderboardRow{Owner: owner, Points: pts})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Owner < rows[j].Owner
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memStore) CountAbove(ctx context.Context, month string, points int) (int, error) {
	n := 0
	for _, pts := range m.totals(month) {
		if pts > points {
			n++
		}
	}
	return n, nil
}

func entry(owner string, amount int, month string, cause int64) *model.LedgerEntry {
	return &model.LedgerEntry{
		Owner:     owner,
		Amount:    amount,
		Reason:    model.ReasonCleanup,
		Month:     month,
		CauseType: model.CauseCleanupReport,
		CauseID:   cause,
	}
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-10", MonthKey(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)))
	// 23:30 on Oct 31 in UTC-5 is already November in UTC.
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "2026-11", MonthKey(time.Date(2026, 10, 31, 23, 30, 0, 0, est)))
	assert.True(t, ValidMonth("2026-01"))
	assert.False(t, ValidMonth("2026-13"))
	assert.False(t, ValidMonth("26-01"))
}

func TestAppendValidatesAndIsIdempotent(t *testing.T) {
	store := &memStore{}
	l := New(store)
	ctx := context.Background()

	written, err := l.Append(ctx, entry("alice", 10, "2026-10", 1))
	require.NoError(t, err)
	assert.True(t, written)

	written, err = l.Append(ctx, entry("alice", 10, "2026-10", 1))
	require.NoError(t, err)
	assert.False(t, written, "same cause is appended once")

	for name, e := range map[string]*model.LedgerEntry{
		"no owner":  entry("", 10, "2026-10", 2),
		"zero":      entry("alice", 0, "2026-10", 2),
		"bad month": entry("alice", 10, "2026/10", 2),
		"no cause":  entry("alice", 10, "2026-10", 0),
		"bad cause": {Owner: "alice", Amount: 1, Month: "2026-10", CauseType: "gift", CauseID: 3},
	} {
		_, err := l.Append(ctx, e)
		assert.True(t, errors.Is(err, model.ErrInvalidArgument), name)
	}
	assert.Len(t, store.entries, 1)
}

func TestMonthlyTotalsAreNonDestructive(t *testing.T) {
	store := &memStore{}
	l := New(store)
	ctx := context.Background()

	rapid.Check(t, func(t *rapid.T) {
		store.entries = nil
		months := []string{"2026-08", "2026-09", "2026-10"}
		owners := []string{"alice", "bob"}
		n := rapid.IntRange(0, 40).Draw(t, "n").(int)
		for i := 0; i < n; i++ {
			owner := rapid.SampledFrom(owners).Draw(t, "owner").(string)
			month := rapid.SampledFrom(months).Draw(t, "month").(string)
			amount := rapid.IntRange(1, 20).Draw(t, "amount").(int)
			if _, err := l.Append(ctx, entry(owner, amount, month, int64(i+1))); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		for _, owner := range owners {
			lifetime := 0
			for _, month := range months {
				want := 0
				for _, e := range store.entries {
					if e.Owner == owner && e.Month == month {
						want += e.Amount
					}
				}
				got, err := l.MonthlyTotalFor(ctx, owner, month)
				if err != nil || got != want {
					t.Fatalf("%s %s: got %d (%v), want %d", owner, month, got, err, want)
				}
				lifetime += want
			}
			total, err := l.TotalFor(ctx, owner)
			if err != nil || total != lifetime {
				t.Fatalf("%s lifetime: got %d (%v), want %d", owner, total, err, lifetime)
			}
		}
	})
}

func TestLeaderboard(t *testing.T) {
	store := &memStore{}
	l := New(store)
	ctx := context.Background()

	cause := int64(0)
	add := func(owner string, amount int, month string) {
		cause++
		_, err := l.Append(ctx, entry(owner, amount, month, cause))
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		add(fmt.Sprintf("user%d", i), 100-i*10, "2026-10")
	}
	add("me", 45, "2026-10")
	add("me", 500, "2026-09")

	board, err := l.Leaderboard(ctx, "2026-10", 3, "me")
	require.NoError(t, err)
	require.Len(t, board.Records, 4)
	assert.Equal(t, Place{Place: 1, Owner: "user0", Points: 100}, board.Records[0])
	assert.Equal(t, Place{Place: 6, Owner: "me", Points: 45, IsYou: true}, board.Records[3],
		"last month's points do not count this month")

	board, err = l.Leaderboard(ctx, "2026-09", 3, "me")
	require.NoError(t, err)
	assert.Equal(t, []Place{{Place: 1, Owner: "me", Points: 500, IsYou: true}}, board.Records)

	board, err = l.Leaderboard(ctx, "2026-07", 3, "me")
	require.NoError(t, err)
	assert.Empty(t, board.Records)

	_, err = l.Leaderboard(ctx, "October", 3, "me")
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

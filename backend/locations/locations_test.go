package locations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cleanproof/backend/geo"
	"cleanproof/backend/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	byID   map[int64]*model.Location
	byGrid map[string]*model.Location
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[int64]*model.Location{}, byGrid: map[string]*model.Location{}}
}

func (f *fakeStore) GetLocation(ctx context.Context, id int64) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeStore) UpsertLocation(ctx context.Context, key string, exact model.Coordinates) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if loc, ok := f.byGrid[key]; ok {
		return loc, nil
	}
	loc := &model.Location{
		ID:        int64(len(f.byID) + 1),
		Latitude:  exact.Latitude,
		Longitude: exact.Longitude,
		GridKey:   key,
		Status:    model.StatusPending,
	}
	f.byID[loc.ID] = loc
	f.byGrid[key] = loc
	return loc, nil
}

func newResolver(store Store) *Resolver {
	return NewResolver(store, geo.Grid{Decimals: 4}, geo.NewMatcher(500, 50))
}

func TestResolveCreatesPendingCellOnce(t *testing.T) {
	store := newFakeStore()
	r := newResolver(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loc, err := r.Resolve(ctx, 0, &model.Coordinates{Latitude: 13.08271 + float64(i)*0.000001, Longitude: 80.2707})
			if assert.NoError(t, err) {
				ids[i] = loc.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, store.byID, 1)
	assert.Equal(t, model.StatusPending, store.byID[ids[0]].Status)
	assert.Equal(t, "13.0827:80.2707", store.byID[ids[0]].GridKey)
}

func TestResolveByID(t *testing.T) {
	store := newFakeStore()
	store.byID[7] = &model.Location{ID: 7, Latitude: 13.0827, Longitude: 80.2707, Status: model.StatusDirty}
	r := newResolver(store)
	ctx := context.Background()

	loc, err := r.Resolve(ctx, 7, &model.Coordinates{Latitude: 13.0828, Longitude: 80.2708})
	require.NoError(t, err)
	assert.Equal(t, int64(7), loc.ID)

	_, err = r.Resolve(ctx, 8, &model.Coordinates{Latitude: 13.0828, Longitude: 80.2708})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = r.Resolve(ctx, 7, &model.Coordinates{Latitude: 13.1827, Longitude: 80.2707})
	assert.True(t, errors.Is(err, model.ErrGeoMismatch), "claims far from a known location are rejected")

	_, err = r.Resolve(ctx, 7, &model.Coordinates{Latitude: 95, Longitude: 80.2707})
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestResolveWithoutCoordinates(t *testing.T) {
	store := newFakeStore()
	store.byID[7] = &model.Location{ID: 7, Latitude: 13.0827, Longitude: 80.2707, Status: model.StatusClean}
	r := newResolver(store)
	ctx := context.Background()

	loc, err := r.Resolve(ctx, 7, nil)
	require.NoError(t, err, "a known location needs no coordinates")
	assert.Equal(t, int64(7), loc.ID)

	_, err = r.Resolve(ctx, 0, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	assert.Empty(t, store.byGrid, "no location row is created without coordinates")
}

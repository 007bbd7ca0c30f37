// Package locations resolves claims to grid-deduplicated location rows.
package locations

import (
	"context"
	"fmt"
	"strconv"

	"cleanproof/backend/geo"
	"cleanproof/backend/model"
)

type Store interface {
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
	// UpsertLocation returns the row for gridKey, creating it in pending
	// status when it does not exist yet. Concurrent callers converge on one
	// row through the unique key.
	UpsertLocation(ctx context.Context, gridKey string, exact model.Coordinates) (*model.Location, error)
}

type Resolver struct {
	store   Store
	grid    geo.Grid
	matcher *geo.Matcher
}

func NewResolver(store Store, grid geo.Grid, matcher *geo.Matcher) *Resolver {
	return &Resolver{store: store, grid: grid, matcher: matcher}
}

// Resolve returns the location a claim targets. A non-zero id must exist;
// when coordinates come with it they must lie within the geo ceiling of the
// location. Without an id the coordinates are required and the claim's grid
// cell is looked up or created.
func (r *Resolver) Resolve(ctx context.Context, id int64, at *model.Coordinates) (*model.Location, error) {
	if at != nil && !geo.ValidCoordinates(*at) {
		return nil, model.InvalidArgument("invalid coordinates %f,%f", at.Latitude, at.Longitude)
	}
	if id != 0 {
		loc, err := r.store.GetLocation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get location %d: %w", id, err)
		}
		if loc == nil {
			return nil, model.NotFound("location", strconv.FormatInt(id, 10))
		}
		if at != nil {
			if err := r.matcher.Within(model.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}, *at); err != nil {
				return nil, err
			}
		}
		return loc, nil
	}
	if at == nil {
		return nil, model.InvalidArgument("coordinates are required without a location id")
	}

	cell := r.grid.Cell(*at)
	loc, err := r.store.UpsertLocation(ctx, cell.Key(), *at)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert location %s: %w", cell.Key(), err)
	}
	return loc, nil
}

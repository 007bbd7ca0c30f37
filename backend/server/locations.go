package server

import (
	"net/http"
	"strconv"

	"cleanproof/backend/cluster"
	"cleanproof/backend/model"

	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"
)

const maxLocations = 1000

func parseViewPort(c *gin.Context) (latMin, lonMin, latMax, lonMax float64, err error) {
	values := make([]float64, 4)
	for i, key := range []string{"latmin", "lonmin", "latmax", "lonmax"} {
		s, ok := c.GetQuery(key)
		if !ok {
			return 0, 0, 0, 0, model.InvalidArgument("%s is required", key)
		}
		if values[i], err = strconv.ParseFloat(s, 64); err != nil {
			return 0, 0, 0, 0, model.InvalidArgument("parsing %s: %v", key, err)
		}
	}
	latMin, lonMin, latMax, lonMax = values[0], values[1], values[2], values[3]
	if latMin > latMax || lonMin > lonMax {
		return 0, 0, 0, 0, model.InvalidArgument("empty viewport")
	}
	return latMin, lonMin, latMax, lonMax, nil
}

// GetLocations returns the public status of locations in a viewport as a
// GeoJSON FeatureCollection of points. With cluster=true dense areas are
// reported as a single point carrying count and dirty properties.
func (h *Handlers) GetLocations(c *gin.Context) {
	latMin, lonMin, latMax, lonMax, err := parseViewPort(c)
	if err != nil {
		respondError(c, EndPointLocations, err)
		return
	}

	locs, err := h.store.LocationsInBounds(c.Request.Context(), latMin, lonMin, latMax, lonMax, maxLocations)
	if err != nil {
		respondError(c, EndPointLocations, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	if c.Query("cluster") == "true" {
		cl := cluster.New(cluster.ViewPort{LatMin: latMin, LonMin: lonMin, LatMax: latMax, LonMax: lonMax})
		for _, l := range locs {
			cl.Add(l)
		}
		for _, g := range cl.Clusters() {
			if g.Location != nil {
				fc.AddFeature(locationFeature(g.Location))
				continue
			}
			f := geojson.NewPointFeature([]float64{g.Longitude, g.Latitude})
			f.SetProperty("count", g.Count)
			f.SetProperty("dirty", g.Dirty)
			fc.AddFeature(f)
		}
		c.JSON(http.StatusOK, fc)
		return
	}

	for i := range locs {
		fc.AddFeature(locationFeature(&locs[i]))
	}
	c.JSON(http.StatusOK, fc)
}

func locationFeature(l *model.Location) *geojson.Feature {
	f := geojson.NewPointFeature([]float64{l.Longitude, l.Latitude})
	f.ID = l.ID
	f.SetProperty("status", string(l.Status))
	if l.LastCleanedAt != nil {
		f.SetProperty("last_cleaned_at", l.LastCleanedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return f
}

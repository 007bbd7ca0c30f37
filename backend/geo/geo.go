// Package geo matches GPS fixes against each other and collapses nearby
// coordinates into grid cells.
package geo

import (
	"cleanproof/backend/model"

	"github.com/golang/geo/s2"
	"github.com/shopspring/decimal"
)

const EarthRadiusMeters = 6371000.0

// Distance is the great-circle distance in metres on a spherical earth.
// s2.LatLng.Distance uses the haversine formula.
func Distance(a, b model.Coordinates) float64 {
	la := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	lb := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return la.Distance(lb).Radians() * EarthRadiusMeters
}

// Matcher holds the distance ceiling and the accuracy threshold.
type Matcher struct {
	CeilingMeters           float64
	AccuracyThresholdMeters float64
}

func NewMatcher(ceilingMeters, accuracyThresholdMeters float64) *Matcher {
	return &Matcher{
		CeilingMeters:           ceilingMeters,
		AccuracyThresholdMeters: accuracyThresholdMeters,
	}
}

// Match is the outcome of comparing two fixes.
type Match struct {
	DistanceMeters float64
	LowConfidence  bool
}

// LowConfidence reports whether a fix's accuracy radius is too wide to
// trust. NaN counts as too wide.
func (m *Matcher) LowConfidence(accuracy float64) bool {
	return !(accuracy <= m.AccuracyThresholdMeters)
}

// Match returns a GeoMismatch error when the fixes are farther apart than the
// ceiling. Wide accuracy radii only set LowConfidence.
func (m *Matcher) Match(a, b model.Fix) (Match, error) {
	d := Distance(a.Coordinates, b.Coordinates)
	if d > m.CeilingMeters {
		return Match{DistanceMeters: d}, model.GeoMismatch(d, m.CeilingMeters)
	}
	return Match{
		DistanceMeters: d,
		LowConfidence:  m.LowConfidence(a.Accuracy) || m.LowConfidence(b.Accuracy),
	}, nil
}

// Within checks a single point against a reference point without any
// accuracy considerations.
func (m *Matcher) Within(ref, p model.Coordinates) error {
	if d := Distance(ref, p); d > m.CeilingMeters {
		return model.GeoMismatch(d, m.CeilingMeters)
	}
	return nil
}

// Grid rounds coordinates to a fixed number of decimal places.
type Grid struct {
	Decimals int32
}

// Cell is a rounded coordinate pair.
type Cell struct {
	Lat decimal.Decimal
	Lng decimal.Decimal
}

func (g Grid) Cell(c model.Coordinates) Cell {
	return Cell{
		Lat: decimal.NewFromFloat(c.Latitude).Round(g.Decimals),
		Lng: decimal.NewFromFloat(c.Longitude).Round(g.Decimals),
	}
}

// Key is the unique database key of the cell.
func (c Cell) Key() string {
	return c.Lat.String() + ":" + c.Lng.String()
}

func (c Cell) Coordinates() model.Coordinates {
	return model.Coordinates{
		Latitude:  c.Lat.InexactFloat64(),
		Longitude: c.Lng.InexactFloat64(),
	}
}

// ValidCoordinates reports whether c is a point on the globe.
func ValidCoordinates(c model.Coordinates) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

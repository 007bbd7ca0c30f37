// Package cluster groups location pins into S2 cells so a zoomed-out map
// viewport receives a bounded number of features.
package cluster

import (
	"cleanproof/backend/model"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const (
	expectedCells       = 16
	minLevel            = 2
	maxLevel            = 18
	minPinsToCluster    = 10
	weightDiffThreshold = 8
)

// ViewPort is a lat/lng bounding box in degrees.
type ViewPort struct {
	LatMin, LonMin, LatMax, LonMax float64
}

func (vp ViewPort) center() s2.LatLng {
	return s2.LatLngFromDegrees((vp.LatMin+vp.LatMax)/2, (vp.LonMin+vp.LonMax)/2)
}

// Cluster is either a single location (Location set, Count 1) or a group of
// more than minPinsToCluster locations.
type Cluster struct {
	Latitude  float64
	Longitude float64
	Count     int64
	Dirty     int64
	Location  *model.Location
}

type unit struct {
	count       int64
	dirty       int64
	containment [4]bool // one per child cell
	pin         s2.Point
	members     []*model.Location
}

type Clusterer struct {
	level int
	cells map[s2.CellID][]*model.Location
	units map[s2.CellID]*unit
}

// BaseLevel is the S2 level at which roughly expectedCells cells cover vp.
func BaseLevel(vp ViewPort) int {
	minLL := s2.LatLngFromDegrees(vp.LatMin, vp.LonMin)
	maxLL := s2.LatLngFromDegrees(vp.LatMax, vp.LonMax)
	rect := s2.Rect{
		Lat: r1.Interval{Lo: minLL.Lat.Radians(), Hi: maxLL.Lat.Radians()},
		Lng: s1.Interval{Lo: minLL.Lng.Radians(), Hi: maxLL.Lng.Radians()},
	}
	area := rect.Area()

	center := s2.CellIDFromLatLng(vp.center())
	for lv := maxLevel; lv >= minLevel; lv-- {
		if area/s2.CellFromCellID(center.Parent(lv)).ApproxArea() < expectedCells {
			return lv
		}
	}
	return minLevel
}

func New(vp ViewPort) *Clusterer {
	return &Clusterer{
		level: BaseLevel(vp),
		cells: make(map[s2.CellID][]*model.Location),
		units: make(map[s2.CellID]*unit),
	}
}

func (c *Clusterer) Add(l model.Location) {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(l.Latitude, l.Longitude)).Parent(maxLevel)
	c.cells[cell] = append(c.cells[cell], &l)
}

// Clusters aggregates everything added so far.
func (c *Clusterer) Clusters() []Cluster {
	c.aggregate()
	ret := make([]Cluster, 0, len(c.units))
	for _, u := range c.units {
		if u.count <= minPinsToCluster {
			for _, l := range u.members {
				ret = append(ret, single(l))
			}
			continue
		}
		ll := s2.LatLngFromPoint(u.pin)
		ret = append(ret, Cluster{
			Latitude:  ll.Lat.Degrees(),
			Longitude: ll.Lng.Degrees(),
			Count:     u.count,
			Dirty:     u.dirty,
		})
	}
	return ret
}

func single(l *model.Location) Cluster {
	cl := Cluster{Latitude: l.Latitude, Longitude: l.Longitude, Count: 1, Location: l}
	if l.Status == model.StatusDirty {
		cl.Dirty = 1
	}
	return cl
}

func dirtyCount(ls []*model.Location) int64 {
	n := int64(0)
	for _, l := range ls {
		if l.Status == model.StatusDirty {
			n++
		}
	}
	return n
}

// centroid ignores children much lighter than the heaviest one.
func centroid(parent s2.CellID, children []*unit) s2.Point {
	maxWeight := int64(0)
	for _, u := range children {
		if u.count > maxWeight {
			maxWeight = u.count
		}
	}
	pins := make([]s2.Point, 0, len(children))
	for _, u := range children {
		if maxWeight/u.count < weightDiffThreshold {
			pins = append(pins, u.pin)
		}
	}
	switch len(pins) {
	case 1:
		return pins[0]
	case 2:
		return s2.PlanarCentroid(pins[0], pins[0], pins[1])
	case 3:
		return s2.PlanarCentroid(pins[0], pins[1], pins[2])
	}
	return s2.PointFromLatLng(parent.LatLng())
}

// step merges the units one level up, down to the base level.
func (c *Clusterer) step(level int) {
	if level < c.level {
		return
	}
	next := make(map[s2.CellID]*unit)
	for cell, u := range c.units {
		p := cell.Parent(level)
		existing, ok := next[p]
		if !ok {
			next[p] = &unit{count: u.count, dirty: u.dirty, members: u.members}
		} else {
			merged := &unit{
				count:       existing.count + u.count,
				dirty:       existing.dirty + u.dirty,
				containment: existing.containment,
			}
			if merged.count <= minPinsToCluster {
				merged.members = append(existing.members, u.members...)
			}
			next[p] = merged
		}
		next[p].containment[cell.ChildPosition(level+1)] = true
	}

	for parent, pu := range next {
		children := make([]*unit, 0, 4)
		for i, present := range pu.containment {
			if !present {
				continue
			}
			if cu, ok := c.units[parent.Children()[i]]; ok {
				children = append(children, cu)
			}
		}
		pu.pin = centroid(parent, children)
	}
	c.units = next
	c.step(level - 1)
}

func (c *Clusterer) aggregate() {
	c.units = make(map[s2.CellID]*unit, len(c.cells))
	for cell, ls := range c.cells {
		u := &unit{
			count:       int64(len(ls)),
			dirty:       dirtyCount(ls),
			containment: [4]bool{true, true, true, true},
			pin:         s2.PointFromLatLng(cell.LatLng()),
		}
		if len(ls) <= minPinsToCluster {
			u.members = ls
		}
		c.units[cell] = u
	}
	c.step(maxLevel - 1)
}

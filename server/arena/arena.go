// Package arena holds the server's view of a map: one fixed spawn point per
// seat and the cover geometry used for line-of-sight checks. Cover lives in
// a resolv space on the top-down X/Z plane; walls are treated as full height.
package arena

import (
	"math"
	"sort"

	"github.com/kvartborg/vector"
	"github.com/solarlune/resolv"

	"github.com/mueseralex/tactical-arena-shooter/shared/gamemath"
)

const tagCover = "cover"

// Seat is a player slot in a match and its spawn point.
type Seat struct {
	Index    int
	Position gamemath.Vec3
}

// Cover is an axis-aligned wall footprint on the X/Z plane.
type Cover struct {
	X, Z, W, D float64
}

// Arena is immutable after construction.
type Arena struct {
	Name   string
	Width  int
	Depth  int
	Seats  []Seat
	Space  *resolv.Space
	covers int
}

// New builds an arena from its seats and cover footprints. Seats are ordered
// by index so seat assignment is deterministic.
func New(name string, width, depth int, seats []Seat, cover []Cover) *Arena {
	sorted := append([]Seat(nil), seats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	space := resolv.NewSpace(width, depth, 1, 1)
	for _, c := range cover {
		// Cell bounds are padded by one so partial cells are still registered;
		// the shape keeps the exact footprint.
		obj := resolv.NewObject(c.X, c.Z, c.W+1, c.D+1, tagCover)
		obj.SetShape(resolv.NewRectangle(0, 0, c.W, c.D))
		space.Add(obj)
	}

	return &Arena{
		Name:   name,
		Width:  width,
		Depth:  depth,
		Seats:  sorted,
		Space:  space,
		covers: len(cover),
	}
}

// Default is an open arena with two facing seats and no cover, used when no
// map is configured.
func Default() *Arena {
	return New("open", 64, 64, []Seat{
		{Index: 0, Position: gamemath.Vec3{X: 8, Y: 0, Z: 32}},
		{Index: 1, Position: gamemath.Vec3{X: 56, Y: 0, Z: 32}},
	}, nil)
}

// Spawn returns the spawn point for a seat. Seats beyond the map's list wrap
// around so a two-seat map can still host any seat index.
func (a *Arena) Spawn(seat int) gamemath.Vec3 {
	if len(a.Seats) == 0 {
		return gamemath.Vec3{}
	}
	if seat < 0 {
		seat = 0
	}
	return a.Seats[seat%len(a.Seats)].Position
}

// HasCover reports whether the arena has any cover geometry.
func (a *Arena) HasCover() bool {
	return a.covers > 0
}

// LineOfSight reports whether the segment from one point to another crosses
// no cover footprint. A segment with an end inside cover is blocked. Cover
// outside the map bounds is ignored.
func (a *Arena) LineOfSight(from, to gamemath.Vec3) bool {
	if a.Space == nil {
		return true
	}

	line := resolv.NewLine(from.X, from.Z, to.X, to.Z)
	for _, obj := range a.coverAlong(from, to) {
		rect, ok := obj.Shape.(*resolv.ConvexPolygon)
		if !ok {
			continue
		}
		if line.Intersection(0, 0, rect) != nil {
			return false
		}
		if rect.PointInside(vector.Vector{from.X, from.Z}) || rect.PointInside(vector.Vector{to.X, to.Z}) {
			return false
		}
	}
	return true
}

// coverAlong collects the cover registered in the cells under the segment's
// bounding box.
func (a *Arena) coverAlong(from, to gamemath.Vec3) []*resolv.Object {
	x1, z1 := a.Space.WorldToSpace(math.Min(from.X, to.X), math.Min(from.Z, to.Z))
	x2, z2 := a.Space.WorldToSpace(math.Max(from.X, to.X), math.Max(from.Z, to.Z))

	seen := make(map[*resolv.Object]bool)
	var found []*resolv.Object
	for cz := z1; cz <= z2; cz++ {
		for cx := x1; cx <= x2; cx++ {
			cell := a.Space.Cell(cx, cz)
			if cell == nil || !cell.ContainsTags(tagCover) {
				continue
			}
			for _, obj := range cell.Objects {
				if !seen[obj] && obj.HasTags(tagCover) {
					seen[obj] = true
					found = append(found, obj)
				}
			}
		}
	}
	return found
}

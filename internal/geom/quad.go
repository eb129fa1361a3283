// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package geom

import (
	"fmt"
	"math"
	"sort"
)

// A quadrilateral, vertices in the order top-left, bottom-left, bottom-right, top-right.
// Edge i runs from vertex i to vertex (i+1)%4, so the edges are left, bottom, right and top.
type Quad [4]Point2D

// Vertex indices
const (
	TopLeft     = 0
	BottomLeft  = 1
	BottomRight = 2
	TopRight    = 3
)

// Edge indices
const (
	EdgeLeft   = 0
	EdgeBottom = 1
	EdgeRight  = 2
	EdgeTop    = 3
)

// Relative tolerance for collinear and coincident vertices
const DegeneracyTolerance = 1e-9

func (q Quad) String() string {
	return fmt.Sprintf("[%v %v %v %v]", q[0], q[1], q[2], q[3])
}

// Returns the rectangle with the given extent in quad vertex order, anchored at the origin
func RectQuad(width, height float64) Quad {
	return Quad{{0, 0}, {0, height}, {width, height}, {width, 0}}
}

// Returns start and end point of the given edge
func (q Quad) Edge(i int) (a, b Point2D) {
	return q[i], q[(i+1)%4]
}

// Returns the midpoints of the straight edges, the default curve handles
func (q Quad) Midpoints() (m [4]Point2D) {
	for i := range m {
		a, b := q.Edge(i)
		m[i] = Lerp2D(a, b, 0.5)
	}
	return m
}

func (q Quad) Centroid() Point2D {
	c := Point2D{}
	for _, p := range q {
		c = Add2D(c, p)
	}
	return Scale2D(c, 0.25)
}

// Natural width: average length of the top and bottom edges
func (q Quad) Width() float64 {
	return 0.5 * (Dist2D(q[TopLeft], q[TopRight]) + Dist2D(q[BottomLeft], q[BottomRight]))
}

// Natural height: average length of the left and right edges
func (q Quad) Height() float64 {
	return 0.5 * (Dist2D(q[TopLeft], q[BottomLeft]) + Dist2D(q[TopRight], q[BottomRight]))
}

// Largest distance between any two vertices
func (q Quad) Diameter() float64 {
	d := 0.0
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if dij := Dist2D(q[i], q[j]); dij > d || math.IsNaN(dij) {
				d = dij
			}
		}
	}
	return d
}

// Returns true if vertices are non-finite or coincident, or any three of them are collinear.
// Such a quad cannot anchor a projective transform.
func (q Quad) IsDegenerate() bool {
	for _, p := range q {
		if !p.IsFinite() {
			return true
		}
	}
	d := q.Diameter()
	if !(d > 0) || math.IsInf(d, 0) {
		return true
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if Dist2D(q[i], q[j]) <= DegeneracyTolerance*d {
				return true
			}
		}
	}
	areaTol := DegeneracyTolerance * d * d
	for skip := 0; skip < 4; skip++ {
		var tri [3]Point2D
		k := 0
		for i, p := range q {
			if i != skip {
				tri[k] = p
				k++
			}
		}
		if math.Abs(Cross2D(tri[0], tri[1], tri[2])) <= areaTol {
			return true
		}
	}
	return false
}

// Reorders four points into quad vertex order by their angle around the centroid.
// The vertex closest to the top left, i.e. with smallest x+y, comes first.
func OrderByAngle(pts [4]Point2D) Quad {
	c := Quad(pts).Centroid()
	sorted := pts
	// screen coordinates with y pointing down: descending angles run TL, BL, BR, TR
	sort.SliceStable(sorted[:], func(i, j int) bool {
		ai := math.Atan2(sorted[i].Y-c.Y, sorted[i].X-c.X)
		aj := math.Atan2(sorted[j].Y-c.Y, sorted[j].X-c.X)
		return ai > aj
	})

	first := 0
	for i, p := range sorted {
		if p.X+p.Y < sorted[first].X+sorted[first].Y {
			first = i
		}
	}
	var q Quad
	for i := range q {
		q[i] = sorted[(first+i)%4]
	}
	return q
}

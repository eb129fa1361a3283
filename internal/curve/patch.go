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

package curve

import (
	"github.com/mlnoga/rectify/internal/geom"
)

// A Coons patch mapping the unit square onto a quadrilateral with curved edges.
// u runs from the left edge to the right edge, v from the top edge to the bottom edge.
type Patch struct {
	Quad    geom.Quad
	Handles [4]geom.Point2D
	Mode    Mode

	// edge curves and their samples, in quad winding order. Top and right
	// run against u and v and are evaluated at 1-u and 1-v.
	top, bottom, left, right         Edge
	topPl, bottomPl, leftPl, rightPl Polyline
}

// Creates a patch over the given quad, with edges bent through the given handles.
// Nil handles mean straight edges. Each edge is sampled once into a polyline with
// the given number of samples.
func NewPatch(q geom.Quad, handles *[4]geom.Point2D, mode Mode, samples int) *Patch {
	p := &Patch{Quad: q, Mode: mode}
	if handles != nil {
		p.Handles = *handles
	} else {
		p.Handles = q.Midpoints()
	}
	h := p.Handles

	// Quad edges wind TL, BL, BR, TR
	p.left = NewEdge(mode, q[geom.TopLeft], h[geom.EdgeLeft], q[geom.BottomLeft])
	p.bottom = NewEdge(mode, q[geom.BottomLeft], h[geom.EdgeBottom], q[geom.BottomRight])
	p.right = NewEdge(mode, q[geom.BottomRight], h[geom.EdgeRight], q[geom.TopRight])
	p.top = NewEdge(mode, q[geom.TopRight], h[geom.EdgeTop], q[geom.TopLeft])

	p.leftPl = SampleEdge(p.left, samples)
	p.bottomPl = SampleEdge(p.bottom, samples)
	p.rightPl = SampleEdge(p.right, samples)
	p.topPl = SampleEdge(p.top, samples)
	return p
}

// Evaluates the patch at (u,v) using the sampled edge polylines:
// (1-v)*top(u) + v*bottom(u) + (1-u)*left(v) + u*right(v) - bilinear(u,v)
func (p *Patch) Coons(u, v float64) geom.Point2D {
	return coons(p.Quad, u, v,
		p.topPl.At(1-u), p.bottomPl.At(u), p.leftPl.At(v), p.rightPl.At(1-v))
}

// Evaluates the patch at (u,v) on the continuous edge curves instead of their samples
func (p *Patch) CoonsExact(u, v float64) geom.Point2D {
	return coons(p.Quad, u, v,
		p.top.Eval(1-u), p.bottom.Eval(u), p.left.Eval(v), p.right.Eval(1-v))
}

func coons(q geom.Quad, u, v float64, top, bottom, left, right geom.Point2D) geom.Point2D {
	b := Bilinear(q, u, v)
	mu, mv := 1-u, 1-v
	return geom.Point2D{
		X: mv*top.X + v*bottom.X + mu*left.X + u*right.X - b.X,
		Y: mv*top.Y + v*bottom.Y + mu*left.Y + u*right.Y - b.Y,
	}
}

// Bilinear interpolation of the quad corners. (0,0) is top left, (1,1) bottom right.
func Bilinear(q geom.Quad, u, v float64) geom.Point2D {
	tl, bl, br, tr := q[geom.TopLeft], q[geom.BottomLeft], q[geom.BottomRight], q[geom.TopRight]
	mu, mv := 1-u, 1-v
	return geom.Point2D{
		X: mu*mv*tl.X + u*mv*tr.X + mu*v*bl.X + u*v*br.X,
		Y: mu*mv*tl.Y + u*mv*tr.Y + mu*v*bl.Y + u*v*br.Y,
	}
}

// Returns true if no handles are given, or every handle lies within eps of its edge midpoint
func IsStraight(q geom.Quad, handles *[4]geom.Point2D, eps float64) bool {
	if handles == nil {
		return true
	}
	mid := q.Midpoints()
	for i, h := range handles {
		if !h.IsFinite() || geom.Dist2D(h, mid[i]) > eps {
			return false
		}
	}
	return true
}

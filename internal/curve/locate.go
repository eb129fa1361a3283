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
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/rectify/internal/geom"
	"gonum.org/v1/gonum/optimize"
)

// Finds the patch coordinates (u,v) whose image lies closest to the source point p.
// Starts from the straight-edge projective estimate and refines on the continuous
// patch surface with Nelder-Mead. Returns the remaining distance in source pixels.
func (p *Patch) Locate(pt geom.Point2D) (u, v, residual float64, err error) {
	if !pt.IsFinite() {
		return 0, 0, 0, errors.New(fmt.Sprintf("cannot locate non-finite point %v", pt))
	}

	x0 := []float64{0.5, 0.5}
	if h, err := geom.SolveHomography(p.Quad, geom.RectQuad(1, 1)); err == nil {
		if guess := h.Apply(pt); guess.IsFinite() {
			x0[0], x0[1] = clamp01(guess.X), clamp01(guess.Y)
		}
	}

	// Keep the search inside the unit square with a quadratic penalty scaled to the patch
	d := p.Quad.Diameter()
	penaltyScale := math.Max(1, d*d)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			cu, cv := clamp01(x[0]), clamp01(x[1])
			dist := geom.Dist2DSquared(p.CoonsExact(cu, cv), pt)
			du, dv := x[0]-cu, x[1]-cv
			return dist + penaltyScale*(du*du+dv*dv)
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, 0, 0, err
	}

	u, v = clamp01(result.X[0]), clamp01(result.X[1])
	residual = geom.Dist2D(p.CoonsExact(u, v), pt)
	return u, v, residual, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

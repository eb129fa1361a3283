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
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/rectify/internal/linalg"
)

// A 2D projective transformation, stored as a row-major 3x3 matrix.
// H[8] is the scale term and is fixed to 1 by SolveHomography.
type Homography [9]float64

// Determinants at or below this fraction of their Hadamard bound are singular
const DeterminantTolerance = 1e-10

var ErrOriginAtInfinity = errors.New("the image origin maps to infinity, cannot fix h8 to 1")

// The quadrilaterals handed to SolveHomography cannot anchor a projective transform
type DegenerateCorrespondenceError struct {
	Which string // "source" or "destination"
	Quad  Quad
	Err   error // underlying solver error, if any
}

func (e *DegenerateCorrespondenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("degenerate %s quadrilateral %v: %s", e.Which, e.Quad, e.Err.Error())
	}
	return fmt.Sprintf("degenerate %s quadrilateral %v: coincident or collinear vertices", e.Which, e.Quad)
}

func (e *DegenerateCorrespondenceError) Unwrap() error { return e.Err }

func IdentityHomography() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func (h Homography) String() string {
	return fmt.Sprintf("[%.5g %.5g %.5g; %.5g %.5g %.5g; %.5g %.5g %.5g]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}

// Calculates the projective transform mapping each src vertex onto the corresponding dst vertex.
// Both quads are first normalized to their centroid and a mean vertex distance of sqrt(2),
// so the result does not depend on how far the quads sit from the image origin. Each
// correspondence contributes two rows to an 8x8 linear system, with h8 fixed to 1.
func SolveHomography(src, dst Quad) (Homography, error) {
	if src.IsDegenerate() {
		return Homography{}, &DegenerateCorrespondenceError{Which: "source", Quad: src}
	}
	if dst.IsDegenerate() {
		return Homography{}, &DegenerateCorrespondenceError{Which: "destination", Quad: dst}
	}
	ts, _ := normalizer(src)
	td, tdInv := normalizer(dst)

	a := make([][]float64, 8)
	b := make([]float64, 8)
	for i := 0; i < 4; i++ {
		s, d := ts.Apply(src[i]), td.Apply(dst[i])
		sx, sy := s.X, s.Y
		dx, dy := d.X, d.Y
		// dx = (h0 sx + h1 sy + h2) / (h6 sx + h7 sy + 1)
		a[2*i] = []float64{sx, sy, 1, 0, 0, 0, -sx * dx, -sy * dx}
		b[2*i] = dx
		// dy = (h3 sx + h4 sy + h5) / (h6 sx + h7 sy + 1)
		a[2*i+1] = []float64{0, 0, 0, sx, sy, 1, -sx * dy, -sy * dy}
		b[2*i+1] = dy
	}

	x, err := linalg.Solve(a, b)
	if err != nil {
		return Homography{}, &DegenerateCorrespondenceError{Which: "source", Quad: src, Err: err}
	}
	hn := Homography{x[0], x[1], x[2], x[3], x[4], x[5], x[6], x[7], 1}

	h := tdInv.Mul(hn).Mul(ts)
	scale := h[8]
	if scale == 0 {
		return Homography{}, &DegenerateCorrespondenceError{Which: "source", Quad: src, Err: ErrOriginAtInfinity}
	}
	for i := range h {
		h[i] /= scale
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return Homography{}, &DegenerateCorrespondenceError{Which: "source", Quad: src, Err: ErrOriginAtInfinity}
		}
	}
	h[8] = 1
	return h, nil
}

// Returns the similarity moving the quad centroid to the origin and the mean
// vertex distance to sqrt(2), and its inverse. The quad must not be degenerate.
func normalizer(q Quad) (t, inv Homography) {
	c := q.Centroid()
	d := 0.0
	for _, p := range q {
		d += Dist2D(p, c)
	}
	s := 4 * math.Sqrt2 / d
	t = Homography{s, 0, -s * c.X, 0, s, -s * c.Y, 0, 0, 1}
	inv = Homography{1 / s, 0, c.X, 0, 1 / s, c.Y, 0, 0, 1}
	return t, inv
}

// Applies the transformation to the given point. Points mapped to infinity yield
// infinite or NaN coordinates, callers must check.
func (h Homography) Apply(p Point2D) Point2D {
	denom := h[6]*p.X + h[7]*p.Y + h[8]
	return Point2D{
		(h[0]*p.X + h[1]*p.Y + h[2]) / denom,
		(h[3]*p.X + h[4]*p.Y + h[5]) / denom,
	}
}

// Inverts the transformation via the adjugate matrix and the determinant
func (h Homography) Invert() (Homography, error) {
	a, b, c := h[0], h[1], h[2]
	d, e, f := h[3], h[4], h[5]
	g, hh, i := h[6], h[7], h[8]

	// cofactors, transposed
	A := e*i - f*hh
	B := c*hh - b*i
	C := b*f - c*e
	D := f*g - d*i
	E := a*i - c*g
	F := c*d - a*f
	G := d*hh - e*g
	H := b*g - a*hh
	I := a*e - b*d

	det := a*A + b*D + c*G

	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Homography{}, errors.New(fmt.Sprintf("cannot invert non-finite homography %v", h))
		}
	}
	// |det| is at most the product of the row norms, and of the column norms.
	// The smaller bound is unaffected by large translation terms.
	rows := math.Hypot(math.Hypot(a, b), c) * math.Hypot(math.Hypot(d, e), f) * math.Hypot(math.Hypot(g, hh), i)
	cols := math.Hypot(math.Hypot(a, d), g) * math.Hypot(math.Hypot(b, e), hh) * math.Hypot(math.Hypot(c, f), i)
	if math.Abs(det) <= DeterminantTolerance*math.Min(rows, cols) {
		return Homography{}, &linalg.SingularMatrixError{Col: -1, Pivot: det}
	}

	inv := 1 / det
	return Homography{
		A * inv, B * inv, C * inv,
		D * inv, E * inv, F * inv,
		G * inv, H * inv, I * inv,
	}, nil
}

// Returns the composition h*g, which applies g first and h second
func (h Homography) Mul(g Homography) (r Homography) {
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += h[row*3+k] * g[k*3+col]
			}
			r[row*3+col] = sum
		}
	}
	return r
}

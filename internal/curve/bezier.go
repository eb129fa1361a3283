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

// Package curve models quadrilateral edges bent by midpoint handles, and the
// Coons patch spanned by four such edges.
package curve

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mlnoga/rectify/internal/geom"
)

// Fixed distance of cubic control points from the handle, as a fraction of the way to the vertex
const CubicHandleAlpha = 0.5

// Default number of samples per edge polyline
const DefaultSamples = 100

// Edge curve model
type Mode int

const (
	ModeCubic Mode = iota
	ModeQuadratic
)

var modeNames = []string{"cubic", "quad"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Parses a mode from its name. Accepts "cubic", "quad" and "quadratic"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cubic", "":
		return ModeCubic, nil
	case "quad", "quadratic":
		return ModeQuadratic, nil
	}
	return ModeCubic, errors.New(fmt.Sprintf("unknown curve mode '%s'", s))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMode(string(text))
	return err
}

// A parametric edge curve, evaluated for t in [0,1]
type Edge interface {
	Eval(t float64) geom.Point2D
	Start() geom.Point2D
	End() geom.Point2D
}

// A quadratic Bezier curve from P0 to P2 with control point P1
type QuadBez struct {
	P0, P1, P2 geom.Point2D
}

// Creates an edge from p0 to p2 which uses the handle m directly as control point
func NewQuadEdge(p0, m, p2 geom.Point2D) QuadBez {
	return QuadBez{P0: p0, P1: m, P2: p2}
}

func (q QuadBez) Eval(t float64) geom.Point2D {
	mt := 1.0 - t
	// (1-t)^2 * P0 + 2(1-t)t * P1 + t^2 * P2
	return geom.Point2D{
		X: mt*mt*q.P0.X + 2*mt*t*q.P1.X + t*t*q.P2.X,
		Y: mt*mt*q.P0.Y + 2*mt*t*q.P1.Y + t*t*q.P2.Y,
	}
}

func (q QuadBez) Start() geom.Point2D { return q.P0 }
func (q QuadBez) End() geom.Point2D   { return q.P2 }

// A cubic Bezier curve from P0 to P3 with control points P1 and P2
type CubicBez struct {
	P0, P1, P2, P3 geom.Point2D
}

// Creates an edge from p0 to p3 bent through handle m. The control points sit
// on the lines from m towards either vertex, CubicHandleAlpha of the way.
func NewCubicEdge(p0, m, p3 geom.Point2D) CubicBez {
	c1 := geom.Add2D(m, geom.Scale2D(geom.Sub2D(p0, m), CubicHandleAlpha))
	c2 := geom.Add2D(m, geom.Scale2D(geom.Sub2D(p3, m), CubicHandleAlpha))
	return CubicBez{P0: p0, P1: c1, P2: c2, P3: p3}
}

func (c CubicBez) Eval(t float64) geom.Point2D {
	mt := 1.0 - t
	mt2 := mt * mt
	mt3 := mt2 * mt
	t2 := t * t
	t3 := t2 * t

	// (1-t)^3 * P0 + 3(1-t)^2*t * P1 + 3(1-t)*t^2 * P2 + t^3 * P3
	return geom.Point2D{
		X: mt3*c.P0.X + 3*mt2*t*c.P1.X + 3*mt*t2*c.P2.X + t3*c.P3.X,
		Y: mt3*c.P0.Y + 3*mt2*t*c.P1.Y + 3*mt*t2*c.P2.Y + t3*c.P3.Y,
	}
}

func (c CubicBez) Start() geom.Point2D { return c.P0 }
func (c CubicBez) End() geom.Point2D   { return c.P3 }

// Creates the edge curve of the given mode from p0 to p1, bent through handle m
func NewEdge(mode Mode, p0, m, p1 geom.Point2D) Edge {
	if mode == ModeQuadratic {
		return NewQuadEdge(p0, m, p1)
	}
	return NewCubicEdge(p0, m, p1)
}

// A curve approximated by equidistant parameter samples
type Polyline []geom.Point2D

// Samples the edge at n equidistant parameter values including both ends.
// Values of n below 2 are raised to 2.
func SampleEdge(e Edge, n int) Polyline {
	if n < 2 {
		n = 2
	}
	pl := make(Polyline, n)
	pl[0], pl[n-1] = e.Start(), e.End()
	scale := 1.0 / float64(n-1)
	for i := 1; i < n-1; i++ {
		pl[i] = e.Eval(float64(i) * scale)
	}
	return pl
}

// Returns the sample at index floor(t*(N-1)), clamped to the valid range.
// This is a nearest-sample lookup, not an arc length parameterization.
func (pl Polyline) At(t float64) geom.Point2D {
	n := len(pl)
	if n == 0 {
		return geom.Point2D{}
	}
	if math.IsNaN(t) {
		return pl[0]
	}
	// absorb round-off from u=x/(w-1) and similar, so t=1 hits the last sample
	f := math.Floor(t*float64(n-1) + 1e-9)
	if f <= 0 {
		return pl[0]
	}
	if f >= float64(n-1) {
		return pl[n-1]
	}
	return pl[int(f)]
}

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
	"strconv"
	"strings"
)

// A 2-dimensional point with floating point coordinates.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point2D) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

// Returns true if both coordinates are neither NaN nor infinite
func (p Point2D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Returns the euclidian distance between the two given points
func Dist2D(a, b Point2D) float64 {
	return math.Sqrt(Dist2DSquared(a, b))
}

// Returns the squared euclidian distance between the two given points
func Dist2DSquared(a, b Point2D) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

func Add2D(a, b Point2D) Point2D {
	return Point2D{a.X + b.X, a.Y + b.Y}
}

func Sub2D(a, b Point2D) Point2D {
	return Point2D{a.X - b.X, a.Y - b.Y}
}

func Scale2D(a Point2D, s float64) Point2D {
	return Point2D{a.X * s, a.Y * s}
}

// Linear interpolation from a (t=0) to b (t=1)
func Lerp2D(a, b Point2D, t float64) Point2D {
	return Point2D{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

// Z component of the cross product of (a-o) and (b-o). Twice the signed triangle area
func Cross2D(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// Parses a point from the form "x,y"
func ParsePoint2D(s string) (p Point2D, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return p, errors.New(fmt.Sprintf("point '%s' is not of the form x,y", s))
	}
	if p.X, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return p, err
	}
	if p.Y, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return p, err
	}
	if !p.IsFinite() {
		return p, errors.New(fmt.Sprintf("point '%s' is not finite", s))
	}
	return p, nil
}

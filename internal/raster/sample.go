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

package raster

import (
	"math"
)

// Coordinates within this distance of an integer snap to it, absorbing solver round-off
// at pixel centers and at the image border
const BorderSnap = 1e-9

// Checks whether (x,y) lies in [0,width)x[0,height). NaN is out of bounds.
// Returns the coordinates with round-off around integers snapped away, so a point
// a hair left of the right border is still outside, and one a hair above the top is inside.
func InBounds(b *Buffer, x, y float64) (sx, sy float64, ok bool) {
	x, y = snap(x), snap(y)
	if !(x >= 0 && x < float64(b.Width) && y >= 0 && y < float64(b.Height)) {
		return x, y, false
	}
	return x, y, true
}

func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) <= BorderSnap {
		return r
	}
	return v
}

// Samples the buffer at fractional coordinates with bilinear interpolation.
// The right and bottom neighbours are clamped to the last column and row.
// The caller must check InBounds first, coordinates outside the buffer panic.
func SampleBilinear(b *Buffer, x, y float64) (p Pixel) {
	fx, fy := math.Floor(x), math.Floor(y)
	x0, y0 := int(fx), int(fy)
	x1, y1 := x0+1, y0+1
	if x1 > b.Width-1 {
		x1 = b.Width - 1
	}
	if y1 > b.Height-1 {
		y1 = b.Height - 1
	}
	dx, dy := x-fx, y-fy

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	o00, o10 := b.Offset(x0, y0), b.Offset(x1, y0)
	o01, o11 := b.Offset(x0, y1), b.Offset(x1, y1)
	d := b.Pix
	for c := 0; c < 4; c++ {
		v := float64(d[o00+c])*w00 + float64(d[o10+c])*w10 + float64(d[o01+c])*w01 + float64(d[o11+c])*w11
		p[c] = roundToUint8(v)
	}
	return p
}

// Rounds to the nearest integer and clamps to [0,255]
func roundToUint8(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

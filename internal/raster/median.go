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

// Applies a 3x3 median filter to each color channel, leaving alpha untouched.
// Copies over the outermost rows and columns unchanged. Returns a new buffer.
func Median3x3(src *Buffer) *Buffer {
	res := src.Clone()
	if src.Width < 3 || src.Height < 3 {
		return res
	}

	var gathered [9]uint8
	stride := src.Width * 4
	d := src.Pix
	for y := 1; y < src.Height-1; y++ {
		for x := 1; x < src.Width-1; x++ {
			o := src.Offset(x, y)
			for c := 0; c < 3; c++ {
				i := o + c - stride - 4
				gathered[0], gathered[1], gathered[2] = d[i], d[i+4], d[i+8]
				i += stride
				gathered[3], gathered[4], gathered[5] = d[i], d[i+4], d[i+8]
				i += stride
				gathered[6], gathered[7], gathered[8] = d[i], d[i+4], d[i+8]
				res.Pix[o+c] = MedianUint8Slice9(&gathered)
			}
		}
	}
	return res
}

// Calculates the median of nine values with a 30 min/max sorting network.
// Modifies the elements in place.
// From https://stackoverflow.com/questions/45453537/optimal-9-element-sorting-network-that-reduces-to-an-optimal-median-of-9-network
func MedianUint8Slice9(a *[9]uint8) uint8 {
	if a[0] > a[1] { // swap(a,0,1)
		a[0], a[1] = a[1], a[0]
	}
	if a[3] > a[4] { // swap(a,3,4)
		a[3], a[4] = a[4], a[3]
	}
	if a[6] > a[7] { // swap(a,6,7)
		a[6], a[7] = a[7], a[6]
	}
	if a[1] > a[2] { // swap(a,1,2)
		a[1], a[2] = a[2], a[1]
	}
	if a[4] > a[5] { // swap(a,4,5)
		a[4], a[5] = a[5], a[4]
	}
	if a[7] > a[8] { // swap(a,7,8)
		a[7], a[8] = a[8], a[7]
	}
	if a[0] > a[1] { // swap(a,0,1)
		a[0], a[1] = a[1], a[0]
	}
	if a[3] > a[4] { // swap(a,3,4)
		a[3], a[4] = a[4], a[3]
	}
	if a[6] > a[7] { // swap(a,6,7)
		a[6], a[7] = a[7], a[6]
	}
	if a[0] > a[3] { // max (a,0,3)
		a[3] = a[0]
	}
	if a[3] > a[6] { // max (a,3,6)
		a[6] = a[3]
	}
	if a[1] > a[4] { // swap(a,1,4)
		a[1], a[4] = a[4], a[1]
	}
	if a[4] > a[7] { // min (a,4,7)
		a[4] = a[7]
	}
	if a[1] > a[4] { // max (a,1,4)
		a[4] = a[1]
	}
	if a[5] > a[8] { // min (a,5,8)
		a[5] = a[8]
	}
	if a[2] > a[5] { // min (a,2,5)
		a[2] = a[5]
	}
	if a[2] > a[4] { // swap(a,2,4)
		a[2], a[4] = a[4], a[2]
	}
	if a[4] > a[6] { // min (a,4,6)
		a[4] = a[6]
	}
	if a[2] > a[4] { // max (a,2,4)
		a[4] = a[2]
	}
	return a[4]
}

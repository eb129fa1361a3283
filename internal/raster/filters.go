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
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// A post filter. Returns a new buffer and leaves the source untouched
type Filter func(src *Buffer) *Buffer

// Converts colors to grayscale luma with weights 0.299, 0.587 and 0.114
func BW(src *Buffer) *Buffer {
	res := src.Clone()
	d := res.Pix
	for i := 0; i < len(d); i += 4 {
		avg := clampByte(0.299*float64(d[i]) + 0.587*float64(d[i+1]) + 0.114*float64(d[i+2]))
		d[i], d[i+1], d[i+2] = avg, avg, avg
	}
	return res
}

// Posterizes each color channel to the given number of levels
func Quantize(levels int) Filter {
	if levels < 1 {
		levels = 1
	}
	step := 256 / float64(levels)
	var lut [256]uint8
	for v := range lut {
		lut[v] = clampByte(math.Floor(float64(v)/256*float64(levels)) * step)
	}
	return func(src *Buffer) *Buffer {
		res := src.Clone()
		d := res.Pix
		for i := 0; i < len(d); i += 4 {
			d[i], d[i+1], d[i+2] = lut[d[i]], lut[d[i+1]], lut[d[i+2]]
		}
		return res
	}
}

// Reduces each color channel to one bit with Floyd-Steinberg error diffusion
func Dither(src *Buffer) *Buffer {
	res := src.Clone()
	d := res.Pix
	w, h := res.Width, res.Height

	distribute := func(x, y int, err [3]float64, factor float64) {
		if x < 0 || x >= w || y >= h {
			return
		}
		o := res.Offset(x, y)
		for c := 0; c < 3; c++ {
			d[o+c] = clampByte(float64(d[o+c]) + err[c]*factor)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := res.Offset(x, y)
			var err [3]float64
			for c := 0; c < 3; c++ {
				old := float64(d[o+c])
				nu := math.Floor(old/255+0.5) * 255
				d[o+c] = uint8(nu)
				err[c] = old - nu
			}
			distribute(x+1, y, err, 7.0/16)
			distribute(x-1, y+1, err, 3.0/16)
			distribute(x, y+1, err, 5.0/16)
			distribute(x+1, y+1, err, 1.0/16)
		}
	}
	return res
}

// Replaces each block of size x size pixels with the color of its top left pixel
func Pixelate(size int) Filter {
	if size < 1 {
		size = 1
	}
	return func(src *Buffer) *Buffer {
		res := src.Clone()
		for y := 0; y < res.Height; y += size {
			for x := 0; x < res.Width; x += size {
				o := res.Offset(x, y)
				r, g, b := res.Pix[o], res.Pix[o+1], res.Pix[o+2]
				for yi := y; yi < y+size && yi < res.Height; yi++ {
					for xi := x; xi < x+size && xi < res.Width; xi++ {
						i := res.Offset(xi, yi)
						res.Pix[i], res.Pix[i+1], res.Pix[i+2] = r, g, b
					}
				}
			}
		}
		return res
	}
}

// Reduces contrast by blending each color channel towards mid gray. A factor of 1 keeps the image
func Washout(factor float64) Filter {
	var lut [256]uint8
	for v := range lut {
		lut[v] = clampByte(float64(v)*factor + 128*(1-factor))
	}
	return func(src *Buffer) *Buffer {
		res := src.Clone()
		d := res.Pix
		for i := 0; i < len(d); i += 4 {
			d[i], d[i+1], d[i+2] = lut[d[i]], lut[d[i+1]], lut[d[i+2]]
		}
		return res
	}
}

// Rounds half to even and clamps to [0,255], like a clamped byte canvas
func clampByte(v float64) uint8 {
	v = math.RoundToEven(v)
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// Filter constructors by name. Each takes one optional numeric parameter
var filterFactories = map[string]func(param float64, hasParam bool) (Filter, error){
	"bw": func(float64, bool) (Filter, error) { return BW, nil },
	"quantize": func(p float64, ok bool) (Filter, error) {
		if !ok {
			p = 4
		}
		if p < 1 || p > 256 || p != math.Floor(p) {
			return nil, errors.New(fmt.Sprintf("quantize levels %g not an integer in [1,256]", p))
		}
		return Quantize(int(p)), nil
	},
	"dither": func(float64, bool) (Filter, error) { return Dither, nil },
	"pixelate": func(p float64, ok bool) (Filter, error) {
		if !ok {
			p = 4
		}
		if p < 1 || p != math.Floor(p) {
			return nil, errors.New(fmt.Sprintf("pixelate size %g not a positive integer", p))
		}
		return Pixelate(int(p)), nil
	},
	"washout": func(p float64, ok bool) (Filter, error) {
		if !ok {
			p = 0.5
		}
		if p < 0 || p > 1 {
			return nil, errors.New(fmt.Sprintf("washout factor %g not in [0,1]", p))
		}
		return Washout(p), nil
	},
	"median": func(float64, bool) (Filter, error) { return Median3x3, nil },
}

// Returns the sorted names of all known filters
func FilterNames() []string {
	names := make([]string, 0, len(filterFactories))
	for n := range filterFactories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Creates a filter from a name and an optional parameter
func NewFilter(name string, param float64, hasParam bool) (Filter, error) {
	factory, ok := filterFactories[strings.ToLower(name)]
	if !ok {
		return nil, errors.New(fmt.Sprintf("unknown filter '%s', known are %s", name, strings.Join(FilterNames(), ", ")))
	}
	return factory(param, hasParam)
}

// Parses a filter chain of the form "name[:param],name[:param]..." such as "median,quantize:8"
func ParseFilters(s string) ([]Filter, error) {
	var filters []Filter
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, paramStr, hasParam := strings.Cut(item, ":")
		param := 0.0
		if hasParam {
			var err error
			if param, err = strconv.ParseFloat(paramStr, 64); err != nil {
				return nil, errors.New(fmt.Sprintf("invalid parameter in filter '%s'", item))
			}
		}
		f, err := NewFilter(name, param, hasParam)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// Applies the filters in order
func ApplyFilters(src *Buffer, filters []Filter) *Buffer {
	res := src
	for _, f := range filters {
		res = f(res)
	}
	return res
}

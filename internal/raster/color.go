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
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Default checkerboard colors and cell size for transparency previews
const (
	CheckerColor1 = "#ffffff"
	CheckerColor2 = "#cccccc"
	CheckerCell   = 20
)

// Parses a color given as "transparent", "#rgb", "#rrggbb" or "#rrggbbaa"
func ParseColor(s string) (Pixel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" || s == "none" {
		return Transparent, nil
	}

	alpha := uint8(255)
	if len(s) == 9 && s[0] == '#' {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Transparent, errors.New(fmt.Sprintf("invalid alpha in color '%s'", s))
		}
		alpha, s = uint8(a), s[:7]
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return Transparent, errors.New(fmt.Sprintf("invalid color '%s': %s", s, err.Error()))
	}
	r, g, b := c.RGB255()
	return Pixel{r, g, b, alpha}, nil
}

// Formats the pixel as "#rrggbbaa"
func (p Pixel) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", p[0], p[1], p[2], p[3])
}

// Creates a checkerboard of square cells in two alternating colors, starting with c1 at the top left
func Checkerboard(width, height, cell int, c1, c2 Pixel) *Buffer {
	if cell < 1 {
		cell = 1
	}
	b := NewBuffer(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (x/cell+y/cell)%2 == 0 {
				b.Set(x, y, c1)
			} else {
				b.Set(x, y, c2)
			}
		}
	}
	return b
}

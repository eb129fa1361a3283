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

// Package atlas composes extracted textures onto an output canvas at given placements.
package atlas

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/mlnoga/rectify/internal/raster"
	"golang.org/x/image/draw"
)

// Position and size of a texture on the canvas. Zero width or height means natural size
type Placement struct {
	ID     int `json:"id" yaml:"id"`
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// A texture with its placement
type Tile struct {
	Placement
	Texture *raster.Buffer
}

// Returns the target rectangle of the tile on the canvas
func (t Tile) Rect() image.Rectangle {
	w, h := t.Width, t.Height
	if w <= 0 {
		w = t.Texture.Width
	}
	if h <= 0 {
		h = t.Texture.Height
	}
	return image.Rect(t.X, t.Y, t.X+w, t.Y+h)
}

// Canvas background kinds
type BackgroundKind int

const (
	BackgroundTransparent BackgroundKind = iota
	BackgroundSolid
	BackgroundChecker
)

// A canvas background
type Background struct {
	Kind   BackgroundKind
	Color1 raster.Pixel
	Color2 raster.Pixel
	Cell   int
}

// Parses a background from "transparent", a color like "#e0e0e0",
// or "checker[:color1:color2[:cell]]"
func ParseBackground(s string) (bg Background, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "transparent") || strings.EqualFold(s, "none") {
		return Background{Kind: BackgroundTransparent}, nil
	}

	parts := strings.Split(s, ":")
	if !strings.EqualFold(parts[0], "checker") {
		c, err := raster.ParseColor(s)
		if err != nil {
			return bg, err
		}
		return Background{Kind: BackgroundSolid, Color1: c}, nil
	}

	bg = Background{Kind: BackgroundChecker, Cell: raster.CheckerCell}
	c1, c2 := raster.CheckerColor1, raster.CheckerColor2
	switch len(parts) {
	case 1:
	case 3, 4:
		c1, c2 = parts[1], parts[2]
		if len(parts) == 4 {
			if bg.Cell, err = strconv.Atoi(parts[3]); err != nil || bg.Cell < 1 {
				return bg, errors.New(fmt.Sprintf("invalid checker cell size '%s'", parts[3]))
			}
		}
	default:
		return bg, errors.New(fmt.Sprintf("invalid checker background '%s'", s))
	}
	if bg.Color1, err = raster.ParseColor(c1); err != nil {
		return bg, err
	}
	if bg.Color2, err = raster.ParseColor(c2); err != nil {
		return bg, err
	}
	return bg, nil
}

// Renders the background into a new buffer of the given size
func (bg Background) Render(width, height int) *raster.Buffer {
	switch bg.Kind {
	case BackgroundSolid:
		b := raster.NewBuffer(width, height)
		b.Fill(bg.Color1)
		return b
	case BackgroundChecker:
		return raster.Checkerboard(width, height, bg.Cell, bg.Color1, bg.Color2)
	}
	return raster.NewBuffer(width, height)
}

// Returns the smallest canvas size containing all tiles
func Bounds(tiles []Tile) (width, height int) {
	for _, t := range tiles {
		r := t.Rect()
		if r.Max.X > width {
			width = r.Max.X
		}
		if r.Max.Y > height {
			height = r.Max.Y
		}
	}
	return width, height
}

// Places textures left to right in a single row at natural size, separated by gap pixels
func Strip(textures []*raster.Buffer, gap int) []Tile {
	tiles := make([]Tile, len(textures))
	x := 0
	for i, tex := range textures {
		tiles[i] = Tile{Placement: Placement{ID: i, X: x}, Texture: tex}
		if tex != nil {
			x += tex.Width + gap
		}
	}
	return tiles
}

// Composes tiles onto a new canvas over the background, in order. Tiles whose placement
// size differs from the texture size are scaled with a Catmull-Rom kernel.
// Zero width or height sizes the canvas to fit all tiles.
func Compose(width, height int, bg Background, tiles []Tile) (*raster.Buffer, error) {
	for i, t := range tiles {
		if t.Texture == nil {
			return nil, errors.New(fmt.Sprintf("tile %d has no texture", i))
		}
		if t.X < 0 || t.Y < 0 {
			return nil, errors.New(fmt.Sprintf("tile %d placed at negative offset %d,%d", i, t.X, t.Y))
		}
	}
	if width <= 0 || height <= 0 {
		bw, bh := Bounds(tiles)
		if width <= 0 {
			width = bw
		}
		if height <= 0 {
			height = bh
		}
	}
	if width <= 0 || height <= 0 {
		return nil, errors.New(fmt.Sprintf("empty canvas %dx%d", width, height))
	}

	canvas := bg.Render(width, height)
	dst := canvas.ToNRGBA()
	for _, t := range tiles {
		src := t.Texture.ToNRGBA()
		r := t.Rect()
		if r.Dx() == t.Texture.Width && r.Dy() == t.Texture.Height {
			draw.Draw(dst, r, src, image.Point{}, draw.Over)
		} else {
			draw.CatmullRom.Scale(dst, r, src, src.Bounds(), draw.Over, nil)
		}
	}
	return canvas, nil
}

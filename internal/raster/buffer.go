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

// Package raster holds RGBA pixel buffers, the bilinear resampler, image codecs
// and post filters for extracted textures.
package raster

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// An RGBA pixel with non-premultiplied 8-bit channels
type Pixel [4]uint8

// Transparent black, emitted for samples outside the source image
var Transparent = Pixel{0, 0, 0, 0}

// A raster image of RGBA pixels, stored row-major with 4 bytes per pixel
// and without alpha premultiplication.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// Creates a new buffer of the given size, filled with transparent black
func NewBuffer(width, height int) *Buffer {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("raster: negative buffer size %dx%d", width, height))
	}
	if height > 0 && width > math.MaxInt/4/height {
		panic(fmt.Sprintf("raster: buffer size %dx%d overflows", width, height))
	}
	return &Buffer{Width: width, Height: height, Pix: make([]uint8, width*height*4)}
}

// Returns the offset of the first channel of pixel (x,y)
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * 4
}

func (b *Buffer) At(x, y int) (p Pixel) {
	o := b.Offset(x, y)
	copy(p[:], b.Pix[o:o+4])
	return p
}

func (b *Buffer) Set(x, y int, p Pixel) {
	o := b.Offset(x, y)
	copy(b.Pix[o:o+4], p[:])
}

// Sets every pixel to the given value
func (b *Buffer) Fill(p Pixel) {
	for o := 0; o < len(b.Pix); o += 4 {
		copy(b.Pix[o:o+4], p[:])
	}
}

// Returns a deep copy of the buffer
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]uint8, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

func (b *Buffer) DimensionsToString() string {
	return fmt.Sprintf("%dx%d", b.Width, b.Height)
}

// Converts any image into a new buffer, anchored at the origin
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && n.Stride == 4*bounds.Dx() && len(n.Pix) == 4*bounds.Dx()*bounds.Dy() {
		b := &Buffer{Width: bounds.Dx(), Height: bounds.Dy(), Pix: make([]uint8, len(n.Pix))}
		copy(b.Pix, n.Pix)
		return b
	}
	b := NewBuffer(bounds.Dx(), bounds.Dy())
	dst := b.ToNRGBA()
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return b
}

// Returns an image view on the buffer, sharing its pixel memory
func (b *Buffer) ToNRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: 4 * b.Width,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

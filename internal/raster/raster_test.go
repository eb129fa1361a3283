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
	"bytes"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func randomBuffer(w, h int) *Buffer {
	rng := fastrand.RNG{}
	b := NewBuffer(w, h)
	for i := range b.Pix {
		b.Pix[i] = uint8(rng.Uint32n(256))
	}
	return b
}

func TestSampleBilinearAtPixels(t *testing.T) {
	b := randomBuffer(7, 5)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if got, want := SampleBilinear(b, float64(x), float64(y)), b.At(x, y); got != want {
				t.Errorf("sample(%d,%d)=%v; want %v", x, y, got, want)
			}
		}
	}
}

func TestSampleBilinearBlend(t *testing.T) {
	b := NewBuffer(2, 2)
	b.Set(0, 0, Pixel{0, 0, 0, 0})
	b.Set(1, 0, Pixel{255, 100, 10, 255})
	b.Set(0, 1, Pixel{0, 200, 0, 255})
	b.Set(1, 1, Pixel{255, 0, 20, 255})

	tcs := []struct {
		X, Y float64
		Want Pixel
	}{
		{0.5, 0, Pixel{128, 50, 5, 128}},
		{0, 0.5, Pixel{0, 100, 0, 128}},
		{0.5, 0.5, Pixel{128, 75, 8, 191}},
		{0.25, 0, Pixel{64, 25, 3, 64}},
		// right and bottom neighbours clamp to the last column and row
		{1.5, 0, Pixel{255, 100, 10, 255}},
		{1.5, 1.5, Pixel{255, 0, 20, 255}},
	}
	for _, tc := range tcs {
		if got := SampleBilinear(b, tc.X, tc.Y); got != tc.Want {
			t.Errorf("sample(%f,%f)=%v; want %v", tc.X, tc.Y, got, tc.Want)
		}
	}
}

func TestInBounds(t *testing.T) {
	b := NewBuffer(4, 3)
	tcs := []struct {
		X, Y   float64
		Want   bool
		SX, SY float64
	}{
		{0, 0, true, 0, 0},
		{3.999, 2.999, true, 3.999, 2.999},
		{-1e-10, -5e-10, true, 0, 0},
		{-1e-8, 0, false, -1e-8, 0},
		{4, 0, false, 4, 0},
		{0, 3, false, 0, 3},
		{-1, 1, false, -1, 1},
		{4 - 1e-12, 0, false, 4, 0},
		{2 + 1e-12, 3 - 1e-10, false, 2, 3},
		{2 - 1e-12, 1 + 1e-10, true, 2, 1},
		{math.NaN(), 1, false, 0, 1},
		{1, math.Inf(1), false, 1, 0},
	}
	for _, tc := range tcs {
		sx, sy, ok := InBounds(b, tc.X, tc.Y)
		if ok != tc.Want {
			t.Errorf("InBounds(%f,%f)=%v; want %v", tc.X, tc.Y, ok, tc.Want)
		}
		if ok && (sx != tc.SX || sy != tc.SY) {
			t.Errorf("InBounds(%f,%f) snapped to (%f,%f); want (%f,%f)", tc.X, tc.Y, sx, sy, tc.SX, tc.SY)
		}
	}
}

func TestBufferBasics(t *testing.T) {
	b := NewBuffer(3, 2)
	if len(b.Pix) != 24 {
		t.Fatalf("len=%d; want 24", len(b.Pix))
	}
	p := Pixel{1, 2, 3, 4}
	b.Set(2, 1, p)
	if got := b.At(2, 1); got != p {
		t.Errorf("At=%v; want %v", got, p)
	}
	c := b.Clone()
	c.Set(2, 1, Transparent)
	if got := b.At(2, 1); got != p {
		t.Errorf("clone aliases original, At=%v; want %v", got, p)
	}
	if s := b.DimensionsToString(); s != "3x2" {
		t.Errorf("dims=%s; want 3x2", s)
	}
}

func TestFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 12, 21))
	img.SetRGBA(10, 20, color.RGBA{128, 0, 0, 128})
	img.SetRGBA(11, 20, color.RGBA{1, 2, 3, 255})
	b := FromImage(img)
	if b.Width != 2 || b.Height != 1 {
		t.Fatalf("size=%s; want 2x1", b.DimensionsToString())
	}
	if got, want := b.At(0, 0), (Pixel{255, 0, 0, 128}); got != want {
		t.Errorf("At(0,0)=%v; want %v", got, want)
	}
	if got, want := b.At(1, 0), (Pixel{1, 2, 3, 255}); got != want {
		t.Errorf("At(1,0)=%v; want %v", got, want)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	b := randomBuffer(9, 4)
	for _, format := range []string{"png", "tiff"} {
		var buf bytes.Buffer
		if err := b.Write(&buf, format); err != nil {
			t.Fatalf("%s: write err=%v", format, err)
		}
		c, gotFormat, err := Read(&buf)
		if err != nil {
			t.Fatalf("%s: read err=%v", format, err)
		}
		if gotFormat != format {
			t.Errorf("format=%s; want %s", gotFormat, format)
		}
		if !bytes.Equal(b.Pix, c.Pix) {
			t.Errorf("%s: pixels differ after round trip", format)
		}
	}
	if err := b.Write(&bytes.Buffer{}, "xcf"); err == nil {
		t.Errorf("xcf: err=nil; want error")
	}
}

func TestFormatFromFileName(t *testing.T) {
	tcs := []struct {
		Name, Want string
		Err        bool
	}{
		{"out.png", "png", false},
		{"a/b/OUT.JPG", "jpeg", false},
		{"x.jpeg", "jpeg", false},
		{"x.tif", "tiff", false},
		{"x.tiff", "tiff", false},
		{"x.bmp", "bmp", false},
		{"x.fits", "", true},
		{"noext", "", true},
	}
	for _, tc := range tcs {
		got, err := FormatFromFileName(tc.Name)
		if got != tc.Want || (err != nil) != tc.Err {
			t.Errorf("FormatFromFileName(%s)=%s,%v; want %s, error %v", tc.Name, got, err, tc.Want, tc.Err)
		}
	}
}

func TestParseColor(t *testing.T) {
	tcs := []struct {
		S    string
		Want Pixel
		Err  bool
	}{
		{"#e0e0e0", Pixel{224, 224, 224, 255}, false},
		{"#FFF", Pixel{255, 255, 255, 255}, false},
		{"#ff000080", Pixel{255, 0, 0, 128}, false},
		{"transparent", Transparent, false},
		{"  None ", Transparent, false},
		{"bogus", Transparent, true},
		{"#ff0000zz", Transparent, true},
	}
	for _, tc := range tcs {
		got, err := ParseColor(tc.S)
		if got != tc.Want || (err != nil) != tc.Err {
			t.Errorf("ParseColor(%q)=%v,%v; want %v, error %v", tc.S, got, err, tc.Want, tc.Err)
		}
	}
	if s := (Pixel{224, 224, 224, 255}).String(); s != "#e0e0e0ff" {
		t.Errorf("String=%s; want #e0e0e0ff", s)
	}
}

func TestCheckerboard(t *testing.T) {
	c1, c2 := Pixel{255, 255, 255, 255}, Pixel{204, 204, 204, 255}
	b := Checkerboard(5, 4, 2, c1, c2)
	tcs := []struct {
		X, Y int
		Want Pixel
	}{
		{0, 0, c1}, {1, 1, c1}, {2, 0, c2}, {0, 2, c2}, {2, 2, c1}, {4, 3, c2},
	}
	for _, tc := range tcs {
		if got := b.At(tc.X, tc.Y); got != tc.Want {
			t.Errorf("At(%d,%d)=%v; want %v", tc.X, tc.Y, got, tc.Want)
		}
	}
}

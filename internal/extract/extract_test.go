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

package extract

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/mlnoga/rectify/internal/curve"
	"github.com/mlnoga/rectify/internal/geom"
	"github.com/mlnoga/rectify/internal/linalg"
	"github.com/mlnoga/rectify/internal/raster"
	"github.com/valyala/fastrand"
)

var white, black = raster.Pixel{255, 255, 255, 255}, raster.Pixel{0, 0, 0, 255}

func opaqueRandom(w, h int) *raster.Buffer {
	rng := fastrand.RNG{}
	b := raster.NewBuffer(w, h)
	for i := range b.Pix {
		if i%4 == 3 {
			b.Pix[i] = 255
		} else {
			b.Pix[i] = uint8(rng.Uint32n(256))
		}
	}
	return b
}

func TestOutputSize(t *testing.T) {
	opts := DefaultOptions()
	tcs := []struct {
		Q       geom.Quad
		Upscale float64
		W, H    int
	}{
		{geom.RectQuad(100, 50), 1, 100, 50},
		{geom.RectQuad(100, 50), 100, 2048, 2048},
		{geom.RectQuad(100, 50), 0.01, 16, 16},
		{geom.RectQuad(100, 50), 0.5, 50, 25},
		{geom.RectQuad(10.5, 20.4), 1, 16, 20},
		{geom.RectQuad(30.5, 20.4), 1, 31, 20},
		{geom.Quad{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 30, Y: 20}, {X: 20, Y: 0}}, 1, 26, 16},
	}
	for i, tc := range tcs {
		opts.Upscale = tc.Upscale
		w, h, err := OutputSize(tc.Q, opts)
		if err != nil || w != tc.W || h != tc.H {
			t.Errorf("case %d: size=%dx%d err=%v; want %dx%d nil", i, w, h, err, tc.W, tc.H)
		}
	}
}

func TestOutputSizeInvalid(t *testing.T) {
	opts := DefaultOptions()
	tcs := []geom.Quad{
		{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}},
		{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0.1, Y: 0}, {X: 0.1, Y: 0}},
		{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: math.NaN(), Y: 0}},
		{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: math.Inf(1), Y: 0}},
	}
	for i, q := range tcs {
		_, _, err := OutputSize(q, opts)
		var ios *InvalidOutputSizeError
		if !errors.As(err, &ios) {
			t.Errorf("case %d: err=%v; want *InvalidOutputSizeError", i, err)
		}
		if _, err := ExtractTexture(context.Background(), Request{Vertices: q}, raster.NewBuffer(4, 4), opts); !errors.As(err, &ios) {
			t.Errorf("case %d: extract err=%v; want *InvalidOutputSizeError", i, err)
		}
	}
}

// Bilinear reference computed independently of the raster package
func referenceSample(src *raster.Buffer, x, y float64) (p raster.Pixel) {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	x1, y1 := x0+1, y0+1
	if x1 >= src.Width {
		x1 = src.Width - 1
	}
	if y1 >= src.Height {
		y1 = src.Height - 1
	}
	dx, dy := x-float64(x0), y-float64(y0)
	a, b, c, d := src.At(x0, y0), src.At(x1, y0), src.At(x0, y1), src.At(x1, y1)
	for i := range p {
		v := float64(a[i])*(1-dx)*(1-dy) + float64(b[i])*dx*(1-dy) + float64(c[i])*(1-dx)*dy + float64(d[i])*dx*dy
		p[i] = uint8(math.Round(v))
	}
	return p
}

func TestExtractCheckerboard(t *testing.T) {
	src := raster.Checkerboard(4, 4, 1, white, black)
	opts := DefaultOptions()
	opts.MinSize, opts.MaxSize, opts.Upscale = 8, 8, 2
	req := Request{Vertices: geom.Quad{{X: 0, Y: 0}, {X: 0, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 0}}}

	out, err := ExtractTexture(context.Background(), req, src, opts)
	if err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	if out.Width != 8 || out.Height != 8 {
		t.Fatalf("size=%s; want 8x8", out.DimensionsToString())
	}

	// output pixel (x,y) samples source location (3x/7, 3y/7)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			got := out.At(x, y)
			want := referenceSample(src, 3*float64(x)/7, 3*float64(y)/7)
			for c := range got {
				if d := int(got[c]) - int(want[c]); d < -1 || d > 1 {
					t.Errorf("At(%d,%d)=%v; want %v", x, y, got, want)
					break
				}
			}
			if got[3] != 255 {
				t.Errorf("At(%d,%d) alpha=%d; want 255", x, y, got[3])
			}
		}
	}

	// corners hit source pixels exactly
	corners := []struct{ X, Y, SX, SY int }{{0, 0, 0, 0}, {0, 7, 0, 3}, {7, 7, 3, 3}, {7, 0, 3, 0}}
	for _, c := range corners {
		if got, want := out.At(c.X, c.Y), src.At(c.SX, c.SY); got != want {
			t.Errorf("corner At(%d,%d)=%v; want %v", c.X, c.Y, got, want)
		}
	}
}

// A quad around the full 4x4 image at twice the size. The right and bottom edges of
// the quad lie on the image border at x=4 and y=4, which is outside the half-open
// pixel range, so the last output column and row are transparent.
func TestExtractFullImageUpscaled(t *testing.T) {
	src := raster.Checkerboard(4, 4, 1, white, black)
	opts := DefaultOptions()
	opts.MinSize, opts.Upscale = 1, 2
	req := Request{Vertices: geom.RectQuad(4, 4)}

	out, err := ExtractTexture(context.Background(), req, src, opts)
	if err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	if out.Width != 8 || out.Height != 8 {
		t.Fatalf("size=%s; want 8x8", out.DimensionsToString())
	}

	// output pixel (x,y) samples source location (4x/7, 4y/7)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			got := out.At(x, y)
			if x == 7 || y == 7 {
				if got != raster.Transparent {
					t.Errorf("border At(%d,%d)=%v; want transparent", x, y, got)
				}
				continue
			}
			want := referenceSample(src, 4*float64(x)/7, 4*float64(y)/7)
			for c := range got {
				if d := int(got[c]) - int(want[c]); d < -1 || d > 1 {
					t.Errorf("At(%d,%d)=%v; want %v", x, y, got, want)
					break
				}
			}
		}
	}
	// the top left pixel of each 2x2 block takes mostly the color of its source pixel
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			got, want := out.At(2*i, 2*j), src.At(i, j)
			if d := int(got[0]) - int(want[0]); d <= -128 || d >= 128 {
				t.Errorf("block (%d,%d)=%v; want close to %v", i, j, got, want)
			}
		}
	}
	if got, want := out.At(0, 0), src.At(0, 0); got != want {
		t.Errorf("At(0,0)=%v; want %v", got, want)
	}
}

// A region far from the image origin, as in a small crop of a large photo
func TestExtractLargeOffset(t *testing.T) {
	src := opaqueRandom(3600, 500)
	opts := DefaultOptions()
	opts.MinSize, opts.MaxSize = 500, 500
	req := Request{Vertices: geom.Quad{{X: 3000, Y: 0}, {X: 3000, Y: 499}, {X: 3499, Y: 499}, {X: 3499, Y: 0}}}

	out, err := ExtractTexture(context.Background(), req, src, opts)
	if err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	for y := 0; y < out.Height; y += 7 {
		for x := 0; x < out.Width; x += 7 {
			if got, want := out.At(x, y), src.At(3000+x, y); got != want {
				t.Fatalf("At(%d,%d)=%v; want %v", x, y, got, want)
			}
		}
	}
}

func TestExtractIdentity(t *testing.T) {
	src := opaqueRandom(20, 20)
	opts := DefaultOptions()
	opts.MinSize, opts.MaxSize = 20, 20
	req := Request{Vertices: geom.RectQuad(19, 19)}
	out, err := ExtractTexture(context.Background(), req, src, opts)
	if err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	if !bytes.Equal(out.Pix, src.Pix) {
		t.Errorf("identity extraction differs from source")
	}
}

func TestExtractMidpointHandlesAreStraight(t *testing.T) {
	src := opaqueRandom(64, 48)
	q := geom.Quad{{X: 5, Y: 3}, {X: 2, Y: 40}, {X: 60, Y: 45}, {X: 55, Y: 8}}
	mid := q.Midpoints()
	opts := DefaultOptions()

	straight, err := ExtractTexture(context.Background(), Request{Vertices: q}, src, opts)
	if err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	withHandles, err := ExtractTexture(context.Background(), Request{Vertices: q, Handles: &mid}, src, opts)
	if err != nil {
		t.Fatalf("err=%v; want nil", err)
	}
	if !bytes.Equal(straight.Pix, withHandles.Pix) {
		t.Errorf("midpoint handles change the result")
	}
	if !(Request{Vertices: q, Handles: &mid}).IsStraight() {
		t.Errorf("midpoint handles: IsStraight=false; want true")
	}
}

func TestExtractCurvedOutOfBounds(t *testing.T) {
	src := opaqueRandom(20, 20)
	q := geom.Quad{{X: 2, Y: 2}, {X: 2, Y: 17}, {X: 17, Y: 17}, {X: 17, Y: 2}}
	handles := q.Midpoints()
	handles[geom.EdgeTop] = geom.Point2D{X: 9.5, Y: -30}

	for _, mode := range []curve.Mode{curve.ModeCubic, curve.ModeQuadratic} {
		opts := DefaultOptions()
		opts.Mode = mode
		req := Request{Vertices: q, Handles: &handles}
		if req.IsStraight() {
			t.Fatalf("pulled handle: IsStraight=true; want false")
		}
		out, err := ExtractTexture(context.Background(), req, src, opts)
		if err != nil {
			t.Fatalf("%v: err=%v; want nil", mode, err)
		}

		patch := curve.NewPatch(q, &handles, mode, opts.Samples)
		outside := 0
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				p := patch.Coons(float64(x)/float64(out.Width-1), float64(y)/float64(out.Height-1))
				_, _, ok := raster.InBounds(src, p.X, p.Y)
				alpha := out.At(x, y)[3]
				if !ok {
					outside++
					if out.At(x, y) != raster.Transparent {
						t.Errorf("%v: At(%d,%d)=%v maps outside to %v; want transparent", mode, x, y, out.At(x, y), p)
					}
				} else if alpha != 255 {
					t.Errorf("%v: At(%d,%d) alpha=%d maps inside to %v; want 255", mode, x, y, alpha, p)
				}
			}
		}
		if outside == 0 {
			t.Errorf("%v: no output pixels outside the source; want some", mode)
		}
		if a := out.At(out.Width/2, 0)[3]; a != 0 {
			t.Errorf("%v: top center alpha=%d; want 0", mode, a)
		}
		if got, want := out.At(0, 0), src.At(2, 2); got != want {
			t.Errorf("%v: top left=%v; want %v", mode, got, want)
		}
	}
}

func TestExtractDegenerate(t *testing.T) {
	src := opaqueRandom(30, 30)
	tcs := []geom.Quad{
		{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 0, Y: 20}, {X: 10, Y: 0}},
		{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 5, Y: 5}},
		{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 0, Y: 10}, {X: 10, Y: 0}},
	}
	for i, q := range tcs {
		out, err := ExtractTexture(context.Background(), Request{Vertices: q}, src, DefaultOptions())
		var dce *geom.DegenerateCorrespondenceError
		if !errors.As(err, &dce) {
			t.Errorf("case %d: err=%v; want *DegenerateCorrespondenceError", i, err)
		}
		if out != nil {
			t.Errorf("case %d: out=%v; want nil", i, out)
		}
	}

	if _, err := SolveHomography(tcs[0], geom.RectQuad(1, 1)); err == nil {
		t.Errorf("SolveHomography err=nil; want error")
	}
	var sme *linalg.SingularMatrixError
	if _, err := (geom.Homography{}).Invert(); !errors.As(err, &sme) {
		t.Errorf("invert zero err=%v; want *SingularMatrixError", err)
	}
}

func TestExtractSinglePixel(t *testing.T) {
	src := opaqueRandom(10, 10)
	q := geom.Quad{{X: 3, Y: 4}, {X: 3, Y: 8}, {X: 7, Y: 8}, {X: 7, Y: 4}}
	opts := DefaultOptions()
	opts.MinSize, opts.MaxSize = 1, 1

	handles := q.Midpoints()
	handles[geom.EdgeBottom].Y += 1
	for _, h := range []*[4]geom.Point2D{nil, &handles} {
		out, err := ExtractTexture(context.Background(), Request{Vertices: q, Handles: h}, src, opts)
		if err != nil {
			t.Fatalf("err=%v; want nil", err)
		}
		if got, want := out.At(0, 0), src.At(3, 4); got != want {
			t.Errorf("handles %v: pixel=%v; want %v", h, got, want)
		}
	}
}

func TestExtractThreadsAgree(t *testing.T) {
	src := opaqueRandom(200, 150)
	q := geom.Quad{{X: 10, Y: 12}, {X: 5, Y: 140}, {X: 190, Y: 130}, {X: 180, Y: 3}}
	handles := q.Midpoints()
	handles[geom.EdgeLeft].X -= 8
	handles[geom.EdgeRight].X += 6

	for _, h := range []*[4]geom.Point2D{nil, &handles} {
		opts := DefaultOptions()
		opts.MaxThreads = 1
		serial, err := ExtractTexture(context.Background(), Request{Vertices: q, Handles: h}, src, opts)
		if err != nil {
			t.Fatalf("err=%v; want nil", err)
		}
		opts.MaxThreads = 8
		for _, rows := range []int{0, 1, 7, 1000} {
			opts.ChunkRows = rows
			parallel, err := ExtractTexture(context.Background(), Request{Vertices: q, Handles: h}, src, opts)
			if err != nil {
				t.Fatalf("err=%v; want nil", err)
			}
			if !bytes.Equal(serial.Pix, parallel.Pix) {
				t.Errorf("serial and parallel results differ with %d rows per chunk", rows)
			}
		}
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := ExtractTexture(ctx, Request{Vertices: geom.RectQuad(50, 50)}, opaqueRandom(64, 64), DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err=%v; want %v", err, context.Canceled)
	}
	if out != nil {
		t.Errorf("out=%v; want nil", out)
	}
}

func TestExtractBadInput(t *testing.T) {
	q := geom.RectQuad(50, 50)
	if _, err := ExtractTexture(context.Background(), Request{Vertices: q}, nil, DefaultOptions()); err != ErrNoSource {
		t.Errorf("nil source: err=%v; want %v", err, ErrNoSource)
	}

	bad := make([]Options, 8)
	for i := range bad {
		bad[i] = DefaultOptions()
	}
	bad[0].MinSize = 0
	bad[1].MaxSize = 8
	bad[2].Upscale = math.NaN()
	bad[3].Samples = 1
	bad[4].MaxSize = 1 << 31
	bad[5].Samples = MaxSamples + 1
	bad[6].ChunkRows = -1
	bad[7].MaxThreads = -1
	for i, opts := range bad {
		if _, err := ExtractTexture(context.Background(), Request{Vertices: q}, raster.NewBuffer(4, 4), opts); err == nil {
			t.Errorf("options %d: err=nil; want error", i)
		}
	}

	handles := q.Midpoints()
	handles[0].X = math.Inf(-1)
	if _, err := ExtractTexture(context.Background(), Request{Vertices: q, Handles: &handles}, raster.NewBuffer(4, 4), DefaultOptions()); err != ErrNonFiniteHandles {
		t.Errorf("handles: err=%v; want %v", err, ErrNonFiniteHandles)
	}
}

func TestOutputSizeLimits(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSize = MaxOutputSize
	if err := opts.Validate(); err != nil {
		t.Errorf("maxSize %d: err=%v; want nil", MaxOutputSize, err)
	}

	// without validation, a huge quad and maxSize must still not yield a buffer size that overflows
	opts.MaxSize = 1 << 40
	huge := geom.RectQuad(3e9, 3e9)
	var ios *InvalidOutputSizeError
	if _, _, err := OutputSize(huge, opts); !errors.As(err, &ios) {
		t.Errorf("huge quad: err=%v; want *InvalidOutputSizeError", err)
	}

	opts.MaxSize = 1 << 31
	handles := huge.Midpoints()
	handles[geom.EdgeTop].Y -= 1e9
	req := Request{Vertices: huge, Handles: &handles}
	if out, err := ExtractTexture(context.Background(), req, raster.NewBuffer(4, 4), opts); err == nil || out != nil {
		t.Errorf("maxSize 2^31: out=%v err=%v; want nil and an error", out, err)
	}

	opts = DefaultOptions()
	w, h, err := OutputSizeWithin(geom.RectQuad(100, 50), opts, 20000)
	if err != nil || w != 100 || h != 50 {
		t.Errorf("within budget: size=%dx%d err=%v; want 100x50 nil", w, h, err)
	}
	if _, _, err := OutputSizeWithin(geom.RectQuad(100, 50), opts, 19999); !errors.As(err, &ios) || ios.Bytes != 20000 {
		t.Errorf("over budget: err=%v; want *InvalidOutputSizeError for 20000 bytes", err)
	}
	if _, _, err := OutputSizeWithin(geom.RectQuad(100, 50), opts, 0); err != nil {
		t.Errorf("no budget: err=%v; want nil", err)
	}
}

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

// Package extract rectifies a quadrilateral region of a source image, optionally
// with curved edges, into a rectangular texture.
package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/mlnoga/rectify/internal/curve"
	"github.com/mlnoga/rectify/internal/geom"
	"github.com/mlnoga/rectify/internal/raster"
)

// Handles closer than this to their edge midpoint, relative to the quad size, count as straight
const StraightTolerance = 1e-9

// Rows of output pixels handed to one goroutine, unless the options say otherwise
const DefaultChunkRows = 16

// Upper bounds for the options. A texture of MaxOutputSize squared takes 4 GiB
const MaxOutputSize = 1 << 15
const MaxSamples = 1 << 16

// Bounds and resolution of the computed output texture
type Options struct {
	MinSize    int        `json:"minSize" yaml:"minSize"`
	MaxSize    int        `json:"maxSize" yaml:"maxSize"`
	Upscale    float64    `json:"upscale" yaml:"upscale"`
	Samples    int        `json:"samples" yaml:"samples"`
	Mode       curve.Mode `json:"curve" yaml:"curve"`
	MaxThreads int        `json:"maxThreads" yaml:"maxThreads"` // 0 means GOMAXPROCS
	ChunkRows  int        `json:"chunkRows" yaml:"chunkRows"`   // 0 means DefaultChunkRows
}

func DefaultOptions() Options {
	return Options{
		MinSize: 16,
		MaxSize: 2048,
		Upscale: 1,
		Samples: curve.DefaultSamples,
		Mode:    curve.ModeCubic,
	}
}

// Returns an error if the options cannot produce a texture
func (o Options) Validate() error {
	if o.MinSize < 1 {
		return errors.New(fmt.Sprintf("minimum size %d must be positive", o.MinSize))
	}
	if o.MaxSize < o.MinSize {
		return errors.New(fmt.Sprintf("maximum size %d below minimum size %d", o.MaxSize, o.MinSize))
	}
	if o.MaxSize > MaxOutputSize {
		return errors.New(fmt.Sprintf("maximum size %d above the limit of %d", o.MaxSize, MaxOutputSize))
	}
	if !(o.Upscale > 0) || math.IsInf(o.Upscale, 0) {
		return errors.New(fmt.Sprintf("upscale factor %g must be positive and finite", o.Upscale))
	}
	if o.Samples < 2 || o.Samples > MaxSamples {
		return errors.New(fmt.Sprintf("%d samples per edge, need 2 to %d", o.Samples, MaxSamples))
	}
	if o.MaxThreads < 0 {
		return errors.New(fmt.Sprintf("negative thread limit %d", o.MaxThreads))
	}
	if o.ChunkRows < 0 {
		return errors.New(fmt.Sprintf("negative rows per chunk %d", o.ChunkRows))
	}
	return nil
}

// A region to extract. Vertices are in source pixel coordinates, in the order
// top left, bottom left, bottom right, top right. Handles bend edge i, which runs
// from vertex i to vertex i+1. Nil handles mean straight edges.
type Request struct {
	Vertices geom.Quad        `json:"vertices" yaml:"vertices"`
	Handles  *[4]geom.Point2D `json:"handles,omitempty" yaml:"handles,omitempty"`
}

// Returns true if the request has no handles, or all handles sit on their edge midpoints
func (r Request) IsStraight() bool {
	return curve.IsStraight(r.Vertices, r.Handles, StraightTolerance*math.Max(1, r.Vertices.Diameter()))
}

// The output dimensions computed for a quad are not usable
type InvalidOutputSizeError struct {
	Width, Height float64 // unclamped, rounded natural size times upscale factor
	Bytes, Budget int64   // set if the texture does not fit the memory budget
}

func (e *InvalidOutputSizeError) Error() string {
	if e.Budget > 0 {
		return fmt.Sprintf("output size %gx%g needs %d MiB, above the budget of %d MiB", e.Width, e.Height, e.Bytes>>20, e.Budget>>20)
	}
	return fmt.Sprintf("invalid output size %gx%g", e.Width, e.Height)
}

var ErrNoSource = errors.New("no source image")
var ErrNonFiniteHandles = errors.New("edge handles contain NaN or infinite coordinates")

// Computes the output texture size from the averaged opposite edge lengths of the quad,
// times the upscale factor, rounded and clamped to the configured bounds.
func OutputSize(q geom.Quad, opts Options) (w, h int, err error) {
	rawW := math.Round(q.Width() * opts.Upscale)
	rawH := math.Round(q.Height() * opts.Upscale)
	if !(rawW > 0) || !(rawH > 0) || math.IsInf(rawW, 0) || math.IsInf(rawH, 0) {
		return 0, 0, &InvalidOutputSizeError{Width: rawW, Height: rawH}
	}
	w, h = clampSize(rawW, opts), clampSize(rawH, opts)
	if w > MaxOutputSize || h > MaxOutputSize {
		return 0, 0, &InvalidOutputSizeError{Width: float64(w), Height: float64(h)}
	}
	return w, h, nil
}

// Returns the memory taken by a texture of the given size
func TextureBytes(w, h int) int64 {
	return int64(w) * int64(h) * 4
}

// Computes the output size like OutputSize, and fails with an *InvalidOutputSizeError
// if the texture takes more than budget bytes. A budget of 0 means no limit.
func OutputSizeWithin(q geom.Quad, opts Options, budget int64) (w, h int, err error) {
	if w, h, err = OutputSize(q, opts); err != nil {
		return 0, 0, err
	}
	if bytes := TextureBytes(w, h); budget > 0 && bytes > budget {
		return 0, 0, &InvalidOutputSizeError{Width: float64(w), Height: float64(h), Bytes: bytes, Budget: budget}
	}
	return w, h, nil
}

func clampSize(raw float64, opts Options) int {
	if raw < float64(opts.MinSize) {
		return opts.MinSize
	}
	if raw > float64(opts.MaxSize) {
		return opts.MaxSize
	}
	return int(raw)
}

// Computes the projective transform between two quads. See geom.SolveHomography
func SolveHomography(src, dst geom.Quad) (geom.Homography, error) {
	return geom.SolveHomography(src, dst)
}

// Maps an output pixel to its source image location
type mapper func(x, y int) geom.Point2D

// Extracts the region outlined by the request from the source image into a new
// rectangular texture. Straight regions are mapped with a projective transform,
// curved ones with a Coons patch. Output pixels mapping outside the source are
// transparent. All errors are detected before any pixel is sampled. Cancelling
// the context aborts between rows and returns the context error.
func ExtractTexture(ctx context.Context, req Request, src *raster.Buffer, opts Options) (*raster.Buffer, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	w, h, err := OutputSize(req.Vertices, opts)
	if err != nil {
		return nil, err
	}

	var m mapper
	if req.IsStraight() {
		if m, err = homographyMapper(req.Vertices, w, h); err != nil {
			return nil, err
		}
	} else {
		for _, p := range req.Handles {
			if !p.IsFinite() {
				return nil, ErrNonFiniteHandles
			}
		}
		m = patchMapper(req, w, h, opts)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dst := raster.NewBuffer(w, h)
	if err := resample(ctx, dst, src, m, opts.MaxThreads, opts.ChunkRows); err != nil {
		return nil, err
	}
	return dst, nil
}

// Maps output pixels through the inverse of the transform from the quad to the output rectangle
func homographyMapper(q geom.Quad, w, h int) (mapper, error) {
	// a single pixel wide output samples along the left or top edge
	dstW, dstH := math.Max(float64(w-1), 1), math.Max(float64(h-1), 1)
	hom, err := geom.SolveHomography(q, geom.RectQuad(dstW, dstH))
	if err != nil {
		return nil, err
	}
	inv, err := hom.Invert()
	if err != nil {
		return nil, &geom.DegenerateCorrespondenceError{Which: "source", Quad: q, Err: err}
	}
	return func(x, y int) geom.Point2D {
		return inv.Apply(geom.Point2D{X: float64(x), Y: float64(y)})
	}, nil
}

// Maps output pixels through the Coons patch spanned by the curved edges
func patchMapper(req Request, w, h int, opts Options) mapper {
	patch := curve.NewPatch(req.Vertices, req.Handles, opts.Mode, opts.Samples)
	// a single pixel wide output samples at u=0 or v=0
	du, dv := math.Max(float64(w-1), 1), math.Max(float64(h-1), 1)
	return func(x, y int) geom.Point2D {
		return patch.Coons(float64(x)/du, float64(y)/dv)
	}
}

// Fills the destination by sampling the source at mapped locations, in parallel chunks of rows
func resample(ctx context.Context, dst, src *raster.Buffer, m mapper, maxThreads, chunkRows int) error {
	if maxThreads <= 0 {
		maxThreads = runtime.GOMAXPROCS(0)
	}
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	limiter := make(chan bool, maxThreads)
	for y0 := 0; y0 < dst.Height; y0 += chunkRows {
		if ctx.Err() != nil {
			break
		}
		y1 := y0 + chunkRows
		if y1 > dst.Height {
			y1 = dst.Height
		}
		limiter <- true
		go func(y0, y1 int) {
			defer func() { <-limiter }()
			for y := y0; y < y1; y++ {
				if ctx.Err() != nil {
					return
				}
				resampleRow(dst, src, m, y)
			}
		}(y0, y1)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	return ctx.Err()
}

func resampleRow(dst, src *raster.Buffer, m mapper, y int) {
	for x := 0; x < dst.Width; x++ {
		p := m(x, y)
		sx, sy, ok := raster.InBounds(src, p.X, p.Y)
		if !ok {
			dst.Set(x, y, raster.Transparent)
			continue
		}
		dst.Set(x, y, raster.SampleBilinear(src, sx, sy))
	}
}

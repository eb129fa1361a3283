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

package ops

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mlnoga/rectify/internal/extract"
)

// Extracts one texture per region from each source image. Takes n inputs,
// produces n*len(Regions) outputs, numbered consecutively
type OpExtract struct {
	OpBase
	Regions []extract.Request `json:"regions"`
	Options extract.Options   `json:"options"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpExtractDefaults() }) } // register the operator for JSON decoding

func NewOpExtractDefaults() *OpExtract { return NewOpExtract(nil, extract.DefaultOptions()) }

func NewOpExtract(regions []extract.Request, opts extract.Options) *OpExtract {
	return &OpExtract{
		OpBase:  OpBase{Type: "extract", Active: true},
		Regions: regions,
		Options: opts,
	}
}

// Unmarshal from JSON, using default values for options not given
func (op *OpExtract) UnmarshalJSON(data []byte) error {
	type defaults OpExtract
	def := defaults(*NewOpExtractDefaults())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpExtract(def)
	return nil
}

func (op *OpExtract) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return nil, errors.New(fmt.Sprintf("%s operator with no source image", op.Type))
	}
	if len(op.Regions) == 0 {
		return nil, errors.New(fmt.Sprintf("%s operator with no regions", op.Type))
	}
	if err := op.Options.Validate(); err != nil {
		return nil, err
	}
	for i, r := range op.Regions {
		if _, _, err := extract.OutputSizeWithin(r.Vertices, op.Options, int64(c.BudgetMB)<<20); err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
	}

	// bound the textures being resampled at once by the memory budget
	mbPerTexture := int((extract.TextureBytes(op.Options.MaxSize, op.Options.MaxSize) + 1<<20 - 1) >> 20)
	limiter := make(chan bool, c.Concurrency(mbPerTexture))

	outs = make([]Promise, 0, len(ins)*len(op.Regions))
	for _, in := range ins {
		src := Memoize(in) // all regions share one materialized source
		for i := range op.Regions {
			outs = append(outs, op.makePromise(src, len(outs), i, limiter, c))
		}
	}
	return outs, nil
}

func (op *OpExtract) makePromise(src Promise, id, region int, limiter chan bool, c *Context) Promise {
	return func() (t *Texture, err error) {
		s, err := src()
		if err != nil {
			return nil, err
		}
		limiter <- true
		defer func() { <-limiter }()
		return op.Apply(s, id, region, c)
	}
}

// Extracts the given region from the source texture into a new texture with the given id
func (op *OpExtract) Apply(src *Texture, id, region int, c *Context) (t *Texture, err error) {
	req := op.Regions[region]
	opts := op.Options
	if opts.MaxThreads == 0 {
		opts.MaxThreads = c.MaxThreads
	}
	if opts.ChunkRows == 0 {
		if w, _, err := extract.OutputSize(req.Vertices, opts); err == nil {
			opts.ChunkRows = c.ChunkRows(w)
		}
	}
	b, err := extract.ExtractTexture(c.context(), req, src.Buffer, opts)
	if err != nil {
		return nil, fmt.Errorf("%d: error extracting region %d from %s: %w", id, region, src.FileName, err)
	}
	shape := "curved"
	if req.IsStraight() {
		shape = "straight"
	}
	fmt.Fprintf(c.Log, "%d: Extracted %s pixel texture from %s region %d %v of %s\n",
		id, b.DimensionsToString(), shape, region, req.Vertices, src.FileName)
	return &Texture{ID: id, FileName: src.FileName, Buffer: b, Region: &req}, nil
}

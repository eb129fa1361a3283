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

	"github.com/mlnoga/rectify/internal/atlas"
	"github.com/mlnoga/rectify/internal/raster"
)

// Composes all input textures onto one canvas. Takes n inputs, produces one output.
// Without placements, textures are laid out left to right separated by Gap pixels.
// With placements, each texture is drawn at the placement carrying its ID, and
// textures without a placement are skipped.
type OpAtlas struct {
	OpBase
	ID         int               `json:"id"`
	Width      int               `json:"width"`  // 0 fits all tiles
	Height     int               `json:"height"` // 0 fits all tiles
	Background string            `json:"background"`
	Gap        int               `json:"gap"`
	Placements []atlas.Placement `json:"placements"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpAtlasDefault() }) } // register the operator for JSON decoding

func NewOpAtlasDefault() *OpAtlas { return NewOpAtlas("transparent", 0) }

func NewOpAtlas(background string, gap int) *OpAtlas {
	return &OpAtlas{
		OpBase:     OpBase{Type: "atlas", Active: true},
		Background: background,
		Gap:        gap,
	}
}

func (op *OpAtlas) UnmarshalJSON(data []byte) error {
	type defaults OpAtlas
	def := defaults(*NewOpAtlasDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpAtlas(def)
	return nil
}

func (op *OpAtlas) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return nil, errors.New(fmt.Sprintf("%s operator with no inputs", op.Type))
	}
	if op.Gap < 0 {
		return nil, errors.New(fmt.Sprintf("%s operator with negative gap %d", op.Type, op.Gap))
	}
	bg, err := atlas.ParseBackground(op.Background)
	if err != nil {
		return nil, err
	}
	out := func() (t *Texture, err error) {
		ts, err := MaterializeAll(ins, c.MaxThreads, false)
		if err != nil {
			return nil, err
		}
		return op.Apply(ts, bg, c)
	}
	return []Promise{out}, nil
}

func (op *OpAtlas) Apply(ts []*Texture, bg atlas.Background, c *Context) (t *Texture, err error) {
	tiles := op.tiles(ts, c)
	b, err := atlas.Compose(op.Width, op.Height, bg, tiles)
	if err != nil {
		return nil, errors.New(fmt.Sprintf("%d: error composing atlas: %s", op.ID, err.Error()))
	}
	fmt.Fprintf(c.Log, "%d: Composed %d textures into %s pixel atlas\n", op.ID, len(tiles), b.DimensionsToString())
	return &Texture{ID: op.ID, FileName: "atlas", Buffer: b}, nil
}

func (op *OpAtlas) tiles(ts []*Texture, c *Context) []atlas.Tile {
	if len(op.Placements) == 0 {
		bufs := make([]*raster.Buffer, len(ts))
		for i, t := range ts {
			bufs[i] = t.Buffer
		}
		tiles := atlas.Strip(bufs, op.Gap)
		for i := range tiles {
			tiles[i].ID = ts[i].ID
		}
		return tiles
	}

	byID := make(map[int]*Texture, len(ts))
	for _, t := range ts {
		byID[t.ID] = t
	}
	tiles := make([]atlas.Tile, 0, len(op.Placements))
	for _, p := range op.Placements {
		t, ok := byID[p.ID]
		if !ok {
			fmt.Fprintf(c.Log, "%d: No texture for placement id %d, skipping\n", op.ID, p.ID)
			continue
		}
		tiles = append(tiles, atlas.Tile{Placement: p, Texture: t.Buffer})
	}
	return tiles
}

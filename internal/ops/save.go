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
	"strings"

	"github.com/mlnoga/rectify/internal/raster"
)

// Applies a chain of named filters such as "median,quantize:8" to each texture.
// Takes n inputs, produces n outputs
type OpFilter struct {
	OpUnaryBase
	Filters string          `json:"filters"`
	filters []raster.Filter // parsed by MakePromises
}

func init() { SetOperatorFactory(func() Operator { return NewOpFilterDefault() }) } // register the operator for JSON decoding

// Active unless decoded JSON says otherwise. An empty chain is a no-op
func NewOpFilterDefault() *OpFilter {
	op := NewOpFilter("")
	op.Active = true
	return op
}

func NewOpFilter(filters string) *OpFilter {
	op := &OpFilter{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "filter", Active: filters != ""}},
		Filters:     filters,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

func (op *OpFilter) UnmarshalJSON(data []byte) error {
	type defaults OpFilter
	def := defaults(*NewOpFilterDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFilter(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Parses the filter chain before any promise is created, so syntax errors surface early
func (op *OpFilter) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if op.filters, err = raster.ParseFilters(op.Filters); err != nil {
		return nil, err
	}
	return op.OpUnaryBase.MakePromises(ins, c)
}

func (op *OpFilter) Apply(t *Texture, c *Context) (result *Texture, err error) {
	if len(op.filters) == 0 {
		return t, nil
	}
	fmt.Fprintf(c.Log, "%d: Applying filters %s\n", t.ID, op.Filters)
	res := *t
	res.Buffer = raster.ApplyFilters(t.Buffer, op.filters)
	return &res, nil
}

// Saves given promise under a given filename, with pattern expansion for %d based on the texture id.
// Takes one input, produces one output (the materialized but unchanged input)
type OpSave struct {
	OpUnaryBase
	FilePattern string `json:"filePattern"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

// Active unless decoded JSON says otherwise. An empty pattern is a no-op
func NewOpSaveDefault() *OpSave {
	op := NewOpSave("")
	op.Active = true
	return op
}

func NewOpSave(filenamePattern string) *OpSave {
	op := &OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: filenamePattern != ""}},
		FilePattern: filenamePattern,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return op
}

func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def := defaults(*NewOpSaveDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSave(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Checks the output path and suffix before any promise is created
func (op *OpSave) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if op.FilePattern != "" {
		if err := c.checkPath(op.FilePattern); err != nil {
			return nil, err
		}
		if _, err := raster.FormatFromFileName(op.FilePattern); err != nil {
			return nil, err
		}
	}
	return op.OpUnaryBase.MakePromises(ins, c)
}

// Returns the file name for the given texture id
func (op *OpSave) FileName(id int) string {
	if strings.Contains(op.FilePattern, "%") {
		return fmt.Sprintf(op.FilePattern, id)
	}
	return op.FilePattern
}

func (op *OpSave) Apply(t *Texture, c *Context) (result *Texture, err error) {
	if !op.Active || op.FilePattern == "" {
		return t, nil
	}
	fileName := op.FileName(t.ID)
	fmt.Fprintf(c.Log, "%d: Writing %s pixel texture to %s\n", t.ID, t.DimensionsToString(), fileName)
	if err := t.Buffer.WriteFile(fileName); err != nil {
		return nil, errors.New(fmt.Sprintf("%d: Error writing to file %s: %s", t.ID, fileName, err.Error()))
	}
	return t, nil
}

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

// Package ops chains texture operations (load, extract, filter, save, atlas)
// into lazily evaluated, JSON-configurable pipelines.
package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/klauspost/cpuid"
	"github.com/mlnoga/rectify/internal/extract"
	"github.com/mlnoga/rectify/internal/raster"
	"github.com/pbnjay/memory"
)

// An execution context for operators
type Context struct {
	Log        io.Writer
	MemoryMB   int             // memory.TotalMemory()/1024/1024
	BudgetMB   int             // MemoryMB*7/10, shared by textures in flight
	MaxThreads int             // goroutine limit, GOMAXPROCS by default
	CacheBytes int             // L2 cache size, sets the rows resampled per goroutine
	CPU        string          // brand name and core counts, for the log
	SafePaths  bool            // restrict file access to relative paths below the working directory
	Ctx        context.Context // cancels running extractions, nil means never
}

func NewContext(log io.Writer) *Context {
	memoryMB := int(memory.TotalMemory() / 1024 / 1024)
	return &Context{
		Log:        log,
		MemoryMB:   memoryMB,
		BudgetMB:   memoryMB * 7 / 10,
		MaxThreads: runtime.GOMAXPROCS(0),
		CacheBytes: cpuid.CPU.Cache.L2,
		CPU: fmt.Sprintf("%s with %d physical and %d logical cores, %d KiB L2 cache, AVX2 %v",
			cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.Cache.L2/1024, cpuid.CPU.AVX2()),
	}
}

func (c *Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// Returns the number of tasks which may run concurrently, if each needs the given MiB of memory.
// Never more than MaxThreads, never less than one
func (c *Context) Concurrency(mbPerTask int) int {
	n := c.MaxThreads
	if mbPerTask > 0 && c.BudgetMB > 0 && c.BudgetMB/mbPerTask < n {
		n = c.BudgetMB / mbPerTask
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Cache size assumed if the CPU does not report one, and the largest chunk of rows
const (
	defaultCacheBytes = 256 * 1024
	maxChunkRows      = 256
)

// Returns how many rows of a texture with the given width one goroutine resamples
// at a time, so that a chunk of output fits into half of the L2 cache
func (c *Context) ChunkRows(width int) int {
	cache := c.CacheBytes
	if cache <= 0 {
		cache = defaultCacheBytes
	}
	if width < 1 {
		width = 1
	}
	rows := cache / 2 / (4 * width)
	if rows < 1 {
		return 1
	}
	if rows > maxChunkRows {
		return maxChunkRows
	}
	return rows
}

// An image flowing through a pipeline: a loaded source, or an extracted texture
type Texture struct {
	ID       int
	FileName string
	Buffer   *raster.Buffer
	Region   *extract.Request // where the texture was extracted from, nil for sources
}

func (t *Texture) DimensionsToString() string { return t.Buffer.DimensionsToString() }

// A promise for a texture. Returns a materialized texture, or an error
type Promise func() (t *Texture, err error)

// Wraps a promise so the first call materializes it, and all calls share the result
func Memoize(p Promise) Promise {
	var once sync.Once
	var t *Texture
	var err error
	return func() (*Texture, error) {
		once.Do(func() { t, err = p() })
		return t, err
	}
}

// Materializes all promises with given concurrency limit
func MaterializeAll(ins []Promise, maxThreads int, forget bool) (outs []*Texture, err error) {
	if len(ins) == 0 {
		return nil, nil
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	if !forget {
		outs = make([]*Texture, len(ins))
	}
	limiter := make(chan bool, maxThreads)
	errs := make(chan error, len(ins))
	for i, in := range ins {
		limiter <- true
		go func(i int, theIn Promise) {
			defer func() { <-limiter }()
			t, err := theIn() // materialize the promise
			if !forget && err == nil {
				outs[i] = t
			}
			errs <- err
		}(i, in)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}
	for i := 0; i < len(ins); i++ { // collect errors
		e := <-errs
		if e != nil {
			if err == nil {
				err = e
			} else {
				err = errors.New(fmt.Sprintf("%s; %s", err.Error(), e.Error()))
			}
		}
	}
	return RemoveNils(outs), err
}

// Remove nils from an array of textures, editing the underlying array in place
func RemoveNils(ts []*Texture) []*Texture {
	o := 0
	for i := 0; i < len(ts); i++ {
		if ts[i] != nil {
			ts[o] = ts[i]
			o++
		}
	}
	for i := o; i < len(ts); i++ {
		ts[i] = nil
	}
	return ts[:o]
}

// A texture operator: takes n promises as inputs,
// and produces m promises as output or an error
type Operator interface {
	GetType() string
	IsActive() bool
	MakePromises(ins []Promise, c *Context) (outs []Promise, err error)
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool  { return op.Active }

// Factory method for operators. For JSON serializing/deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type
var operatorFactories = map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers a given type string for a given type of Operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	op := f()
	t := op.GetType()
	if GetOperatorFactory(t) != nil {
		panic(fmt.Sprintf("error: re-registering operator key %s\n", t))
	}
	operatorFactories[t] = f
}

// Decodes a single operator from JSON, dispatching on its type field
func UnmarshalOperator(raw []byte) (Operator, error) {
	var base OpBase
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, err
	}
	factory := GetOperatorFactory(base.Type)
	if factory == nil {
		return nil, errors.New(fmt.Sprintf("Unknown operator type '%s' in raw JSON message '%s'", base.Type, string(raw)))
	}
	op := factory()
	if err := json.Unmarshal(raw, op); err != nil {
		return nil, err
	}
	return op, nil
}

// Abstract base type for unary operators, which apply themselves to each of n inputs
// individually and return n outputs. Subtypes assign their own method to Apply
type OpUnaryBase struct {
	OpBase
	Apply func(t *Texture, c *Context) (tOut *Texture, err error) `json:"-"`
}

func (op *OpUnaryBase) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return nil, errors.New(fmt.Sprintf("%s operator with %d inputs", op.Type, len(ins)))
	}
	outs = make([]Promise, len(ins))
	for i, in := range ins {
		outs[i] = op.MakePromise(in, c)
	}
	return outs, nil
}

func (op *OpUnaryBase) MakePromise(in Promise, c *Context) (out Promise) {
	return func() (t *Texture, err error) {
		if t, err = in(); err != nil { // materialize input promise
			return nil, err
		}
		if !op.Active {
			return t, nil
		}
		return op.Apply(t, c)
	}
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func isPathAllowed(p string) bool {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return false // relative paths only
	}
	if strings.Contains(p, "..") {
		return false // no going outside the tree
	}
	return true
}

// Checks a path against the context's file access restrictions
func (c *Context) checkPath(p string) error {
	if c.SafePaths && !isPathAllowed(p) {
		return errors.New(fmt.Sprintf("file name '%s' outside current directory tree, aborting", p))
	}
	return nil
}

// Applies a sequence of operators to a promise. Number of inputs, outputs as per the chained steps
type OpSequence struct {
	OpBase
	Steps    []Operator        `json:"-"`     // the actual steps
	StepsRaw []json.RawMessage `json:"steps"` // helper for unmarshaling
}

func init() { SetOperatorFactory(func() Operator { return NewOpSequenceDefault() }) } // register the operator for JSON decoding

func NewOpSequenceDefault() *OpSequence { return NewOpSequence() }

func NewOpSequence(steps ...Operator) *OpSequence {
	return &OpSequence{
		OpBase: OpBase{Type: "seq", Active: true},
		Steps:  steps,
	}
}

// Unmarshals a sequence of polymorphic operators from JSON.
// Uses temporary op.StepsRaw inspired by https://alexkappa.medium.com/json-polymorphism-in-go-4cade1e58ed1
func (op *OpSequence) UnmarshalJSON(b []byte) error {
	type alias OpSequence
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}
	for _, raw := range op.StepsRaw {
		step, err := UnmarshalOperator(raw)
		if err != nil {
			return err
		}
		op.Steps = append(op.Steps, step)
	}
	op.StepsRaw = nil
	return nil
}

// Appends one or more operators to the existing sequence
func (op *OpSequence) Append(steps ...Operator) {
	op.Steps = append(op.Steps, steps...)
}

// Marshals a sequence with polymorphic operators to JSON.
// Uses the actual op.Steps with label "steps", and ignores op.StepsRaw
func (op *OpSequence) MarshalJSON() (bs []byte, err error) {
	buf := bytes.Buffer{}
	buf.WriteString("{\"type\":")
	inner, err := json.Marshal(op.Type)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	fmt.Fprintf(&buf, ", \"active\":%v, \"steps\":", op.Active)
	steps := op.Steps
	if steps == nil {
		steps = []Operator{}
	}
	inner, err = json.Marshal(steps)
	if err != nil {
		return nil, err
	}
	buf.Write(inner)
	buf.WriteRune('}')
	return buf.Bytes(), nil
}

func (op *OpSequence) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if !op.Active {
		return ins, nil
	}
	return op.applyRecursive(op.Steps, ins, c)
}

func (op *OpSequence) applyRecursive(steps []Operator, ins []Promise, c *Context) (outs []Promise, err error) {
	if len(steps) == 0 {
		return ins, nil
	}
	if steps[0].IsActive() {
		if ins, err = steps[0].MakePromises(ins, c); err != nil {
			return nil, err
		}
	}
	return op.applyRecursive(steps[1:], ins, c)
}

// Runs the sequence to completion, materializing all outputs with the context's concurrency limit
func (op *OpSequence) Run(c *Context) (outs []*Texture, err error) {
	promises, err := op.MakePromises(nil, c)
	if err != nil {
		return nil, err
	}
	return MaterializeAll(promises, c.MaxThreads, false)
}

// Applies a single operator to each input. Takes n inputs, produces n outputs
type OpForEach struct {
	OpBase
	Operation    Operator        `json:"-"`
	OperationRaw json.RawMessage `json:"operation"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpForEachDefault() }) } // register the operator for JSON decoding

// Active unless decoded JSON says otherwise
func NewOpForEachDefault() *OpForEach {
	op := NewOpForEach(nil)
	op.Active = true
	return op
}

func NewOpForEach(operation Operator) *OpForEach {
	return &OpForEach{
		OpBase:    OpBase{Type: "forEach", Active: operation != nil},
		Operation: operation,
	}
}

func (op *OpForEach) UnmarshalJSON(b []byte) error {
	type alias OpForEach
	if err := json.Unmarshal(b, (*alias)(op)); err != nil {
		return err
	}
	if len(op.OperationRaw) == 0 || string(op.OperationRaw) == "null" {
		op.Operation = nil
		return nil
	}
	inner, err := UnmarshalOperator(op.OperationRaw)
	if err != nil {
		return err
	}
	op.Operation, op.OperationRaw = inner, nil
	return nil
}

func (op *OpForEach) MarshalJSON() (bs []byte, err error) {
	inner, err := json.Marshal(op.Operation)
	if err != nil {
		return nil, err
	}
	type alias OpForEach
	a := alias(*op)
	a.OperationRaw = inner
	return json.Marshal(&a)
}

// Applies the operation to each input individually
func (op *OpForEach) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) == 0 {
		return ins, nil
	}
	if op.Operation == nil {
		return nil, errors.New(fmt.Sprintf("%s operator has no operation to apply", op.Type))
	}
	for _, in := range ins {
		out, err := op.Operation.MakePromises([]Promise{in}, c)
		if err != nil {
			return nil, err
		}
		if len(out) != 1 {
			return nil, errors.New(fmt.Sprintf("%s operator needs exactly one promise from embedded operation", op.Type))
		}
		outs = append(outs, out[0])
	}
	return outs, nil
}

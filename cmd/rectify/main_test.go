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

package main

import (
	"strings"
	"testing"

	"github.com/mlnoga/rectify/internal/extract"
	"github.com/mlnoga/rectify/internal/geom"
	"github.com/mlnoga/rectify/internal/ops"
)

func TestParseRegions(t *testing.T) {
	args := strings.Fields("0,0 0,10 10,10 10,0 / 20,0 20,10 30,10 30,0 19,5 25,12 31,5 25,-2")
	regions, err := parseRegions(args, false)
	if err != nil || len(regions) != 2 {
		t.Fatalf("regions=%d err=%v; want 2 nil", len(regions), err)
	}
	if regions[0].Handles != nil || regions[0].Vertices[2] != (geom.Point2D{X: 10, Y: 10}) {
		t.Errorf("region 0=%v; want straight with BR 10,10", regions[0])
	}
	if regions[1].Handles == nil || regions[1].Handles[3] != (geom.Point2D{X: 25, Y: -2}) {
		t.Errorf("region 1 handles=%v; want top handle 25,-2", regions[1].Handles)
	}

	sorted, err := parseRegions(strings.Fields("10,10 0,0 10,0 0,10"), true)
	want := geom.Quad{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}}
	if err != nil || sorted[0].Vertices != want {
		t.Errorf("sorted=%v err=%v; want %v", sorted, err, want)
	}

	for _, s := range []string{"", "0,0 0,10 10,10", "0,0 0,10 10,10 10,0 /", "0,0 0,10 x 10,0"} {
		if _, err := parseRegions(strings.Fields(s), false); err == nil {
			t.Errorf("parseRegions(%q) err=nil; want error", s)
		}
	}
	curved := strings.Fields("0,0 0,10 10,10 10,0 -1,5 5,11 11,5 5,-1")
	if _, err := parseRegions(curved, true); err == nil {
		t.Errorf("sorting a curved region: err=nil; want error")
	}
}

func TestExtractSequence(t *testing.T) {
	regions := make([]extract.Request, 2)
	*out, *atlasOut = "tex.png", "atlas.png"
	defer func() { *out, *atlasOut = "texture%d.png", "" }()

	seq := extractSequence("src.png", regions, extract.DefaultOptions())
	types := []string{"load", "extract", "filter", "save", "atlas", "save"}
	if len(seq.Steps) != len(types) {
		t.Fatalf("%d steps; want %d", len(seq.Steps), len(types))
	}
	for i, typ := range types {
		if got := seq.Steps[i].GetType(); got != typ {
			t.Errorf("step %d=%s; want %s", i, got, typ)
		}
	}
	if got := seq.Steps[3].(*ops.OpSave).FilePattern; got != "tex%d.png" {
		t.Errorf("pattern=%s; want tex%%d.png", got)
	}
	if seq.Steps[2].IsActive() {
		t.Errorf("empty filter chain is active")
	}
}

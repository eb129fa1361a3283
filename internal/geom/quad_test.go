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

package geom

import (
	"math"
	"testing"
)

func TestQuadIsDegenerate(t *testing.T) {
	tcs := []struct {
		Q    Quad
		Want bool
	}{
		{RectQuad(10, 10), false},
		{RectQuad(1e-3, 1e-3), false},
		{Quad{{12, 7}, {3, 95}, {120, 130}, {99, 2}}, false},
		{Quad{}, true},
		{Quad{{0, 0}, {0, 10}, {0, 10}, {10, 0}}, true},
		{Quad{{0, 0}, {0, 10}, {0, 20}, {10, 0}}, true},
		{Quad{{0, 0}, {0, 10}, {10, 10}, {math.NaN(), 0}}, true},
		{Quad{{0, 0}, {0, 10}, {10, 10}, {math.Inf(1), 0}}, true},
	}
	for i, tc := range tcs {
		if got := tc.Q.IsDegenerate(); got != tc.Want {
			t.Errorf("case %d: IsDegenerate(%v)=%v; want %v", i, tc.Q, got, tc.Want)
		}
	}
}

func TestQuadSize(t *testing.T) {
	q := Quad{{0, 0}, {0, 10}, {30, 20}, {20, 0}}
	if w, want := q.Width(), 0.5*(20+math.Sqrt(30*30+10*10)); math.Abs(w-want) > 1e-12 {
		t.Errorf("width=%f; want %f", w, want)
	}
	if h, want := q.Height(), 0.5*(10+math.Sqrt(10*10+20*20)); math.Abs(h-want) > 1e-12 {
		t.Errorf("height=%f; want %f", h, want)
	}
	m := q.Midpoints()
	wantM := [4]Point2D{{0, 5}, {15, 15}, {25, 10}, {10, 0}}
	for i := range m {
		if m[i] != wantM[i] {
			t.Errorf("midpoint %d=%v; want %v", i, m[i], wantM[i])
		}
	}
	if c := q.Centroid(); c != (Point2D{12.5, 7.5}) {
		t.Errorf("centroid=%v; want (12.5, 7.5)", c)
	}
}

func TestOrderByAngle(t *testing.T) {
	want := Quad{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
	perms := [][4]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}}
	for _, perm := range perms {
		var pts [4]Point2D
		for i, j := range perm {
			pts[i] = want[j]
		}
		if got := OrderByAngle(pts); got != want {
			t.Errorf("OrderByAngle(%v)=%v; want %v", pts, got, want)
		}
	}

	skewed := [4]Point2D{{95, 4}, {2, 3}, {110, 80}, {7, 90}}
	wantSkewed := Quad{{2, 3}, {7, 90}, {110, 80}, {95, 4}}
	if got := OrderByAngle(skewed); got != wantSkewed {
		t.Errorf("OrderByAngle(%v)=%v; want %v", skewed, got, wantSkewed)
	}
}

func TestParsePoint2D(t *testing.T) {
	p, err := ParsePoint2D(" 1.5, -2")
	if err != nil || p != (Point2D{1.5, -2}) {
		t.Errorf("p=%v err=%v; want (1.5, -2) nil", p, err)
	}
	for _, s := range []string{"", "1", "1,2,3", "a,2", "1,NaN"} {
		if _, err := ParsePoint2D(s); err == nil {
			t.Errorf("ParsePoint2D(%q) err=nil; want error", s)
		}
	}
}

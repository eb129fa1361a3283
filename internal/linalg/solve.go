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

// Package linalg solves the small dense linear systems needed to fit projective transforms.
package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Pivots at or below this magnitude count as zero, after rows and columns are scaled to a largest entry of 1
const PivotTolerance = 1e-10

var ErrDimensionMismatch = errors.New("linalg: coefficient matrix and vector dimensions do not match")
var ErrNonFinite = errors.New("linalg: system contains NaN or infinite coefficients")

// A linear system without a numerically stable solution.
// Col is the elimination column where the pivot vanished, or -1 if the
// failure was detected on the determinant as a whole.
type SingularMatrixError struct {
	Col   int
	Pivot float64
}

func (e *SingularMatrixError) Error() string {
	if e.Col < 0 {
		return fmt.Sprintf("singular matrix: determinant %.4g", e.Pivot)
	}
	return fmt.Sprintf("singular matrix: pivot %.4g in column %d", e.Pivot, e.Col)
}

// Solves the square system a*x=b with an LU decomposition using partial pivoting.
// Rows and then columns are equilibrated first, so the pivot check does not depend
// on the units of the unknowns. Fails with a *SingularMatrixError if any pivot is
// too small, never returns a zero-filled guess.
func Solve(a [][]float64, b []float64) (x []float64, err error) {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil, ErrDimensionMismatch
	}
	for _, r := range a {
		if len(r) != n {
			return nil, ErrDimensionMismatch
		}
		if !allFinite(r) {
			return nil, ErrNonFinite
		}
	}
	if !allFinite(b) {
		return nil, ErrNonFinite
	}

	data := make([]float64, n*n)
	rhs := make([]float64, n)
	for row, r := range a {
		s := maxAbs(r)
		if s == 0 {
			s = 1
		}
		for col, v := range r {
			data[row*n+col] = v / s
		}
		rhs[row] = b[row] / s
	}
	colScale := make([]float64, n)
	for col := range colScale {
		s := 0.0
		for row := 0; row < n; row++ {
			s = math.Max(s, math.Abs(data[row*n+col]))
		}
		if s == 0 {
			s = 1
		}
		colScale[col] = s
		for row := 0; row < n; row++ {
			data[row*n+col] /= s
		}
	}

	var lu mat.LU
	lu.Factorize(mat.NewDense(n, n, data))

	// Inspect the pivots on the diagonal of U before trusting the solution
	var u mat.TriDense
	lu.UTo(&u)
	for i := 0; i < n; i++ {
		p := u.At(i, i)
		if math.IsNaN(p) || math.Abs(p) <= PivotTolerance {
			return nil, &SingularMatrixError{Col: i, Pivot: p}
		}
	}

	var res mat.VecDense
	if err := lu.SolveVecTo(&res, false, mat.NewVecDense(n, rhs)); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, &SingularMatrixError{Col: -1, Pivot: lu.Det()}
		}
		return nil, err
	}

	x = make([]float64, n)
	for i := range x {
		x[i] = res.AtVec(i) / colScale[i]
	}
	if !allFinite(x) {
		return nil, &SingularMatrixError{Col: -1, Pivot: lu.Det()}
	}
	return x, nil
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func maxAbs(vs []float64) (m float64) {
	for _, v := range vs {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

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


package ewa

// A normalized output grid for one channel
type Output[A Float] struct {
	Name    string
	Data    []A     // normalized values, Fill where insufficient weight
	Weights []A     // weight sum per cell, or best weight in maximum weight mode
	Fill    A
	Valid   int     // number of non-fill cells
}

// Fraction of cells holding a value
func (o *Output[A]) Coverage() float64 {
	if len(o.Data)==0 { return 0 }
	return float64(o.Valid)/float64(len(o.Data))
}

// Normalizes accumulation buffers into dst and returns the number of valid cells.
// Cells with weight sum below sumMin receive fill. In maximum weight mode, cells
// holding any positive weight receive their best value. The buffers are not modified.
func Normalize[A Float](dst, accum, weights []A, maxWeight bool, sumMin float64, fill A) (valid int) {
	if maxWeight {
		for i, w:=range weights {
			if w>0 {
				dst[i]=accum[i]
				valid++
			} else {
				dst[i]=fill
			}
		}
		return valid
	}
	min:=A(sumMin)
	for i, w:=range weights {
		if w>=min && w>0 {
			dst[i]=accum[i]/w
			valid++
		} else {
			dst[i]=fill
		}
	}
	return valid
}

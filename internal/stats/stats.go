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


package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"github.com/ssec/polar2grid-sub004/internal/qsort"
)

// Basic statistics over the non-fill cells of a grid
type Stats struct {
	Cells    int
	Valid    int
	Min      float64
	Max      float64
	Mean     float64
	StdDev   float64
	Median   float64
}

// Calculates statistics of data, ignoring fill values and NaN
func New[T ~float32 | ~float64](data []T, fill T) *Stats {
	s:=&Stats{Cells:len(data)}
	valid:=make([]float64, 0, len(data))
	for _, v:=range data {
		if v==fill || v!=v { continue }
		valid=append(valid, float64(v))
	}
	s.Valid=len(valid)
	if s.Valid==0 {
		s.Min, s.Max, s.Mean, s.StdDev, s.Median=math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Min, s.Max=floats.Min(valid), floats.Max(valid)
	if s.Valid>1 {
		s.Mean, s.StdDev=stat.MeanStdDev(valid, nil)
	} else {
		s.Mean=valid[0]
	}
	s.Median=qsort.QSelectMedian(valid)
	return s
}

// Fraction of valid cells
func (s *Stats) Coverage() float64 {
	if s.Cells==0 { return 0 }
	return float64(s.Valid)/float64(s.Cells)
}

func (s *Stats) String() string {
	return fmt.Sprintf("Valid %d/%d (%.1f%%) Min %.6g Max %.6g Mean %.6g StdDev %.6g Median %.6g",
		s.Valid, s.Cells, 100*s.Coverage(), s.Min, s.Max, s.Mean, s.StdDev, s.Median)
}

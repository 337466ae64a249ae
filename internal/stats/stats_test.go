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
	"math"
	"testing"
)

func TestStats(t *testing.T) {
	data:=[]float32{-999, 1, 2, float32(math.NaN()), 3, 4, -999}
	s:=New(data, -999)
	if s.Cells!=7 || s.Valid!=4 { t.Errorf("cells=%d valid=%d; want 7 4", s.Cells, s.Valid) }
	if s.Min!=1 || s.Max!=4 { t.Errorf("min=%v max=%v; want 1 4", s.Min, s.Max) }
	if s.Mean!=2.5 || s.Median!=2.5 { t.Errorf("mean=%v median=%v; want 2.5 2.5", s.Mean, s.Median) }
	if want:=math.Sqrt(5.0/3); math.Abs(s.StdDev-want)>1e-12 { t.Errorf("stddev=%v; want %v", s.StdDev, want) }
	if c:=s.Coverage(); math.Abs(c-4.0/7)>1e-12 { t.Errorf("coverage=%v; want %v", c, 4.0/7) }
}

func TestStatsEmpty(t *testing.T) {
	s:=New([]float64{math.NaN(), math.NaN()}, -1)
	if s.Valid!=0 || !math.IsNaN(s.Mean) { t.Errorf("stats=%+v; want no valid cells", s) }
	if s.Coverage()!=0 { t.Errorf("coverage=%v; want 0", s.Coverage()) }
}

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

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/valyala/fastrand"
	"github.com/ssec/polar2grid-sub004/internal/ll2cr"
)

const fill=-999

// Builds a column/row map from parallel arrays
func newMap(rows, cols, gridCols, gridRows int, col, row []float64) *ll2cr.ColRowMap {
	return &ll2cr.ColRowMap{Rows:rows, Cols:cols, GridCols:gridCols, GridRows:gridRows, Col:col, Row:row}
}

// An affine swath geometry, slightly rotated and sheared
func affineMap(rows, cols, gridCols, gridRows int) *ll2cr.ColRowMap {
	col, row:=make([]float64, rows*cols), make([]float64, rows*cols)
	for r:=0; r<rows; r++ {
		for c:=0; c<cols; c++ {
			col[r*cols+c]=3+0.9*float64(c)+0.2*float64(r)
			row[r*cols+c]=2+1.1*float64(r)+0.1*float64(c)
		}
	}
	return newMap(rows, cols, gridCols, gridRows, col, row)
}

func randomChannel(name string, n int) Channel[float32] {
	data:=make([]float32, n)
	for i:=range data { data[i]=float32(fastrand.Uint32n(1000)) }
	return Channel[float32]{Name:name, Data:data, Fill:fill}
}

func resample(t *testing.T, p Params, cfg Config, cols, rows int, m *ll2cr.ColRowMap, chans ...Channel[float32]) []*Output[float64] {
	t.Helper()
	r, err:=NewResampler[float32, float64](p, cols, rows, cfg)
	if err!=nil { t.Fatalf("NewResampler: %v", err) }
	if _, err:=r.Accumulate(context.Background(), m, chans); err!=nil { t.Fatalf("Accumulate: %v", err) }
	outs, err:=r.Finalize()
	if err!=nil { t.Fatalf("Finalize: %v", err) }
	return outs
}

func sameOutputs(t *testing.T, label string, got, want []float64, tol float64) {
	t.Helper()
	for i:=range want {
		g, w:=got[i], want[i]
		if g==w { continue }
		if math.Abs(g-w)>tol*math.Max(1, math.Abs(w)) {
			t.Errorf("%s: cell %d=%v; want %v", label, i, g, w)
			return
		}
	}
}


func TestWeightTable(t *testing.T) {
	wt, err:=NewWeightTable(10000, 0.01, 1.5)
	if err!=nil { t.Fatalf("NewWeightTable: %v", err) }
	if w:=wt.Weight(0); w!=1 { t.Errorf("Weight(0)=%v; want 1", w) }
	if w:=wt.weights[wt.Len()-1]; math.Abs(w-0.01)>1e-9 { t.Errorf("last entry=%v; want 0.01", w) }
	for i:=1; i<wt.Len(); i++ {
		if wt.weights[i]>wt.weights[i-1] {
			t.Fatalf("weights[%d]=%v > weights[%d]=%v", i, wt.weights[i], i-1, wt.weights[i-1])
		}
	}
	if w:=wt.Weight(wt.QMax()); w!=0 { t.Errorf("Weight(qmax)=%v; want 0", w) }
	if w:=wt.Weight(-0.1); w!=0 { t.Errorf("Weight(-0.1)=%v; want 0", w) }
	if w:=wt.Weight(math.NaN()); w!=0 { t.Errorf("Weight(NaN)=%v; want 0", w) }
	if w:=wt.Weight(wt.QMax()*0.999); !(w>0.01 && w<0.011) { t.Errorf("Weight(0.999 qmax)=%v; want just above 0.01", w) }

	for _, c:=range []struct{ n int; wmin, dmax float64 }{{1, 0.01, 1}, {100, 0, 1}, {100, 1, 1}, {100, 0.01, 0}} {
		if _, err:=NewWeightTable(c.n, c.wmin, c.dmax); err==nil {
			t.Errorf("NewWeightTable(%v) err=nil; want error", c)
		}
	}
}

func TestEllipseSet(t *testing.T) {
	cases:=[]struct{
		name               string
		ux, vx, uy, vy     float64
		dmax, delta        float64
		want               Ellipse
	}{
		{"unit",     1, 0, 0, 1,  1, 10, Ellipse{A:1, B:0, C:1, F:1, UDel:1, VDel:1, Valid:true}},
		{"distance", 1, 0, 0, 1,  2, 10, Ellipse{A:1, B:0, C:1, F:4, UDel:2, VDel:2, Valid:true}},
		{"clamped", 50, 0, 0, 1,  1, 10, Ellipse{A:1.0/2500, B:0, C:1, F:1, UDel:10, VDel:1, Valid:true}},
		{"singular", 1, 1, 2, 2,  1, 10, Ellipse{}},
		{"zero",     0, 0, 0, 0,  1, 10, Ellipse{}},
		{"nan",      math.NaN(), 0, 0, 1, 1, 10, Ellipse{}},
	}
	for _, c:=range cases {
		var e Ellipse
		e.set(c.ux, c.vx, c.uy, c.vy, c.dmax, c.delta)
		if e.Valid!=c.want.Valid {
			t.Errorf("%s: Valid=%v; want %v", c.name, e.Valid, c.want.Valid)
			continue
		}
		got :=[]float64{e.A, e.B, e.C, e.F, e.UDel, e.VDel}
		want:=[]float64{c.want.A, c.want.B, c.want.C, c.want.F, c.want.UDel, c.want.VDel}
		for i:=range got {
			if math.Abs(got[i]-want[i])>1e-12 {
				t.Errorf("%s: ellipse=%+v; want %+v", c.name, e, c.want)
				break
			}
		}
	}
}

func TestSpillBoundedByDeltaMax(t *testing.T) {
	wt, err:=NewWeightTable(10000, 0.01, 1)
	if err!=nil { t.Fatalf("NewWeightTable: %v", err) }
	cases:=[]struct{
		name           string
		ux, vy         float64   // along-scan and cross-scan spacing
		col, row       float64
		alongColumns   bool
	}{
		{"columns", 10, 1,  5.5, 3,   true},
		{"rows",    1,  10, 3,   5.5, false},
	}
	for _, c:=range cases {
		var e Ellipse
		e.set(c.ux, 0, 0, c.vy, 1, 2)
		if !e.Valid { t.Fatalf("%s: ellipse not valid", c.name) }
		m:=newMap(1, 1, 12, 12, []float64{c.col}, []float64{c.row})
		el:=&Ellipses{Rows:1, Cols:1, RowsPerScan:1, Precision:PerPixel, E:[]Ellipse{e}}
		ch:=[]Channel[float32]{{Name:"x", Data:[]float32{1}, Fill:fill}}
		acc:=NewAccumulator[float64](1, 12, 12, 0, false)
		accumulate(acc, m, el, wt, ch, 0, 1)

		for i, w:=range acc.Weights[0] {
			off:=float64(i%12)-c.col
			if !c.alongColumns { off=float64(i/12)-c.row }
			if math.Abs(off)>2 && w!=0 {
				t.Errorf("%s: cell %d at offset %v has weight %v beyond delta 2", c.name, i, off, w)
			}
		}
		lo, hi:=3*12+4, 3*12+7
		if !c.alongColumns { lo, hi=4*12+3, 7*12+3 }
		if acc.Weights[0][lo]==0 || math.Abs(acc.Weights[0][lo]-acc.Weights[0][hi])>1e-12 {
			t.Errorf("%s: weights at offsets -1.5 and 1.5 are %v and %v; want equal and positive",
			         c.name, acc.Weights[0][lo], acc.Weights[0][hi])
		}
	}
}

func TestOffGridMatchesSearchBox(t *testing.T) {
	p:=DefaultParams()
	p.WeightDeltaMax=2
	r, err:=NewResampler[float32, float64](p, 8, 8, Config{})
	if err!=nil { t.Fatalf("NewResampler: %v", err) }
	defer r.Close()

	e:=Ellipse{A:1.0/100, C:1, F:1, UDel:2, VDel:1, Valid:true}
	el:=&Ellipses{Rows:1, Cols:2, RowsPerScan:1, Precision:PerPixel, E:[]Ellipse{e, e}}
	// first pixel reaches column 7 at offset 2, second one only would at offset 2.5
	m:=newMap(1, 2, 8, 8, []float64{9, 9.5}, []float64{3, 3})
	ch:=[]Channel[float32]{{Name:"x", Data:[]float32{1, 1}, Fill:fill}}
	st:=r.countPixels(m, el, ch)
	if st.Used!=1 || st.OffGrid!=1 {
		t.Errorf("Used=%d OffGrid=%d; want 1 and 1", st.Used, st.OffGrid)
	}

	acc:=NewAccumulator[float64](1, 8, 8, 0, false)
	accumulate(acc, newMap(1, 1, 8, 8, []float64{9.5}, []float64{3}), &Ellipses{Rows:1, Cols:1, RowsPerScan:1,
	           Precision:PerPixel, E:[]Ellipse{e}}, r.Table, ch[1:], 0, 1)
	for i, w:=range acc.Weights[0] {
		if w!=0 { t.Errorf("cell %d got weight %v from an off-grid pixel", i, w) }
	}
}

func TestScenarioTwoPixels(t *testing.T) {
	m:=newMap(1, 2, 4, 4, []float64{1.5, 2.5}, []float64{1.5, 1.5})
	p:=DefaultParams()
	p.WeightDistanceMax=1
	p.WeightDeltaMax=2
	ch:=Channel[float32]{Name:"c", Data:[]float32{10, 20}, Fill:fill}
	out:=resample(t, p, Config{}, 4, 4, m, ch)[0]

	between:=out.Data[1*4+2]
	if !(between>10 && between<20) {
		t.Errorf("cell (2,1)=%v; want strictly between 10 and 20", between)
	}
	if v:=out.Data[1*4+1]; math.Abs(v-10)>1e-9 { t.Errorf("cell (1,1)=%v; want 10", v) }
	if v:=out.Data[2*4+3]; math.Abs(v-20)>1e-9 { t.Errorf("cell (3,2)=%v; want 20", v) }
	for _, cell:=range [][2]int{{0, 0}, {0, 1}, {0, 3}, {3, 0}, {3, 3}, {2, 3}} {
		if v:=out.Data[cell[1]*4+cell[0]]; v!=fill {
			t.Errorf("cell %v=%v; want fill", cell, v)
		}
	}
	if out.Valid!=6 { t.Errorf("Valid=%d; want 6", out.Valid) }
}

func TestExactCellCenters(t *testing.T) {
	m:=newMap(2, 2, 2, 2, []float64{0, 1, 0, 1}, []float64{0, 0, 1, 1})
	ch:=Channel[float32]{Name:"c", Data:[]float32{1.25, 2.5, 3.75, 5}, Fill:fill}
	for _, prec:=range []Precision{PerScan, PerPixel} {
		p:=DefaultParams()
		p.Precision=prec
		out:=resample(t, p, Config{}, 2, 2, m, ch)[0]
		for i, want:=range ch.Data {
			if out.Data[i]!=float64(want) { t.Errorf("%v: cell %d=%v; want %v", prec, i, out.Data[i], want) }
			if out.Weights[i]!=1 { t.Errorf("%v: weight %d=%v; want 1", prec, i, out.Weights[i]) }
		}
	}
}

func TestAllFill(t *testing.T) {
	m:=affineMap(4, 5, 12, 12)
	data:=make([]float32, 20)
	for i:=range data { data[i]=fill }
	data[7]=float32(math.NaN())
	for _, maxWeight:=range []bool{false, true} {
		p:=DefaultParams()
		p.MaximumWeightMode=maxWeight
		out:=resample(t, p, Config{}, 12, 12, m, Channel[float32]{Name:"c", Data:data, Fill:fill})[0]
		if out.Valid!=0 { t.Errorf("maxWeight=%v: Valid=%d; want 0", maxWeight, out.Valid) }
		for i, v:=range out.Data {
			if v!=fill { t.Fatalf("maxWeight=%v: cell %d=%v; want fill", maxWeight, i, v) }
		}
	}
}

func TestMonotonicInDistance(t *testing.T) {
	m:=affineMap(6, 8, 16, 16)
	ch:=randomChannel("c", 48)
	last:=0
	for _, dmax:=range []float64{0.3, 0.5, 1, 1.5, 2, 3} {
		p:=DefaultParams()
		p.WeightDistanceMax=dmax
		out:=resample(t, p, Config{}, 16, 16, m, ch)[0]
		if out.Valid<last { t.Errorf("dmax=%v: Valid=%d; want >=%d", dmax, out.Valid, last) }
		last=out.Valid
	}
	if last==0 { t.Errorf("no valid cells") }
}

func TestFinalizeIdempotent(t *testing.T) {
	m:=affineMap(6, 8, 16, 16)
	r, err:=NewResampler[float32, float64](DefaultParams(), 16, 16, Config{Threads:3})
	if err!=nil { t.Fatalf("NewResampler: %v", err) }
	if _, err:=r.Accumulate(context.Background(), m, []Channel[float32]{randomChannel("c", 48)}); err!=nil {
		t.Fatalf("Accumulate: %v", err)
	}
	a, _:=r.Finalize()
	b, _:=r.Finalize()
	for i:=range a[0].Data {
		if a[0].Data[i]!=b[0].Data[i] || a[0].Weights[i]!=b[0].Weights[i] {
			t.Fatalf("cell %d: %v/%v then %v/%v", i, a[0].Data[i], a[0].Weights[i], b[0].Data[i], b[0].Weights[i])
		}
	}
	if a[0].Valid!=b[0].Valid { t.Errorf("Valid %d then %d", a[0].Valid, b[0].Valid) }
}

func TestReverseOrder(t *testing.T) {
	m:=affineMap(9, 7, 16, 16)
	p:=DefaultParams()
	p.RowsPerScan=3
	el:=ComputeEllipses(m, &p, nil)
	wt, _:=NewWeightTableFromParams(&p)
	chans:=[]Channel[float32]{randomChannel("a", 63), randomChannel("b", 63)}

	fwd:=NewAccumulator[float64](2, 16, 16, 0, false)
	accumulate(fwd, m, el, wt, chans, 0, m.Rows)
	rev:=NewAccumulator[float64](2, 16, 16, 0, false)
	for r:=m.Rows-1; r>=0; r-- { accumulate(rev, m, el, wt, chans, r, r+1) }

	for ch:=0; ch<2; ch++ {
		a, b:=make([]float64, 256), make([]float64, 256)
		Normalize(a, fwd.Accum[ch], fwd.Weights[ch], false, Epsilon, fill)
		Normalize(b, rev.Accum[ch], rev.Weights[ch], false, Epsilon, fill)
		sameOutputs(t, "reverse", b, a, 1e-12)
	}
}

func TestStrategiesAgree(t *testing.T) {
	m:=affineMap(40, 30, 50, 60)
	chans:=[]Channel[float32]{randomChannel("a", 1200), randomChannel("b", 1200)}
	p:=DefaultParams()
	p.RowsPerScan=4
	p.WeightDistanceMax=1.5
	want:=resample(t, p, Config{Strategy:Sequential}, 50, 60, m, chans...)

	cfgs:=[]Config{
		{Strategy:PartitionGrid,  Threads:4, ChunkRows:7},
		{Strategy:PrivateBuffers, Threads:4, ChunkRows:3},
		{Strategy:Auto,           Threads:3, MemoryMB:64},
		{Strategy:Auto,           Threads:3, MemoryMB:0},
	}
	for _, cfg:=range cfgs {
		got:=resample(t, p, cfg, 50, 60, m, chans...)
		for ch:=range want {
			sameOutputs(t, cfg.Strategy.String(), got[ch].Data, want[ch].Data, 1e-9)
			if got[ch].Valid!=want[ch].Valid {
				t.Errorf("%v: Valid=%d; want %d", cfg.Strategy, got[ch].Valid, want[ch].Valid)
			}
		}
	}
}

func TestStrategiesAgreeMaximumWeight(t *testing.T) {
	// irregular lattice
	m:=affineMap(40, 30, 50, 60)
	for i:=range m.Col {
		m.Col[i]+=float64(fastrand.Uint32n(1000))*1e-5
		m.Row[i]+=float64(fastrand.Uint32n(1000))*1e-5
	}
	chans:=[]Channel[float32]{randomChannel("a", 1200), randomChannel("b", 1200)}
	chans[1].Data[17], chans[1].Data[600]=fill, fill
	p:=DefaultParams()
	p.RowsPerScan=4
	p.WeightDistanceMax=1.5
	p.MaximumWeightMode=true
	want:=resample(t, p, Config{Strategy:Sequential}, 50, 60, m, chans...)
	if want[0].Valid==0 { t.Fatalf("no valid cells") }

	cfgs:=[]Config{
		{Strategy:PartitionGrid,  Threads:4, ChunkRows:7},
		{Strategy:PrivateBuffers, Threads:4, ChunkRows:3},
	}
	for _, cfg:=range cfgs {
		got:=resample(t, p, cfg, 50, 60, m, chans...)
		for ch:=range want {
			sameOutputs(t, cfg.Strategy.String()+" "+want[ch].Name, got[ch].Data, want[ch].Data, 0)
			sameOutputs(t, cfg.Strategy.String()+" weights "+want[ch].Name, got[ch].Weights, want[ch].Weights, 0)
			if got[ch].Valid!=want[ch].Valid {
				t.Errorf("%v: Valid=%d; want %d", cfg.Strategy, got[ch].Valid, want[ch].Valid)
			}
		}
	}
}

func TestPrecisionModesAgreeOnUniformSwath(t *testing.T) {
	col, row:=make([]float64, 25), make([]float64, 25)
	for r:=0; r<5; r++ {
		for c:=0; c<5; c++ {
			col[r*5+c], row[r*5+c]=0.3+0.8*float64(c), 0.2+0.8*float64(r)
		}
	}
	m:=newMap(5, 5, 6, 6, col, row)
	ch:=randomChannel("c", 25)
	p:=DefaultParams()
	scan:=resample(t, p, Config{}, 6, 6, m, ch)
	p.Precision=PerPixel
	pixel:=resample(t, p, Config{}, 6, 6, m, ch)
	sameOutputs(t, "precision", pixel[0].Data, scan[0].Data, 1e-9)
}

func TestMaximumWeight(t *testing.T) {
	p:=DefaultParams()
	wt, _:=NewWeightTableFromParams(&p)
	qLight:=-math.Log(0.3)/wt.Alpha()
	qHeavy:=-math.Log(0.8)/wt.Alpha()
	if w:=wt.Weight(qLight); math.Abs(w-0.3)>2e-3 { t.Fatalf("light weight=%v; want 0.3", w) }
	if w:=wt.Weight(qHeavy); math.Abs(w-0.8)>2e-3 { t.Fatalf("heavy weight=%v; want 0.8", w) }

	// two pixels left and right of cell (1,1), unit circle footprints
	m:=newMap(1, 2, 3, 3, []float64{1+math.Sqrt(qLight), 1-math.Sqrt(qHeavy)}, []float64{1, 1})
	unit:=Ellipse{A:1, C:1, F:1, UDel:1, VDel:1, Valid:true}
	el:=&Ellipses{Rows:1, Cols:2, RowsPerScan:1, Precision:PerPixel, E:[]Ellipse{unit, unit}}

	cases:=[]struct{
		name  string
		data  []float32
		want  float64
	}{
		{"heavy wins",      []float32{3, 7},    7},
		{"fill skipped",    []float32{3, fill}, 3},
	}
	for _, c:=range cases {
		ch:=[]Channel[float32]{{Name:"class", Data:c.data, Fill:fill}}
		for _, reverse:=range []bool{false, true} {
			acc:=NewAccumulator[float64](1, 3, 3, 0, true)
			if reverse {
				accumulate(acc, m, el, wt, ch, 0, 1)
			} else {
				// same pixels, heavy one first
				m2:=newMap(1, 2, 3, 3, []float64{m.Col[1], m.Col[0]}, []float64{1, 1})
				ch2:=[]Channel[float32]{{Name:"class", Data:[]float32{c.data[1], c.data[0]}, Fill:fill}}
				accumulate(acc, m2, el, wt, ch2, 0, 1)
			}
			out:=make([]float64, 9)
			Normalize(out, acc.Accum[0], acc.Weights[0], true, Epsilon, fill)
			if out[1*3+1]!=c.want {
				t.Errorf("%s reverse=%v: cell (1,1)=%v; want %v", c.name, reverse, out[1*3+1], c.want)
			}
		}
	}
}

func TestCancelKeepsEarlierSwaths(t *testing.T) {
	m:=affineMap(12, 10, 20, 20)
	for _, s:=range []Strategy{Sequential, PartitionGrid, PrivateBuffers} {
		r, err:=NewResampler[float32, float64](DefaultParams(), 20, 20, Config{Strategy:s, Threads:2, ChunkRows:2})
		if err!=nil { t.Fatalf("NewResampler: %v", err) }
		chans:=[]Channel[float32]{randomChannel("c", 120)}
		if _, err:=r.Accumulate(context.Background(), m, chans); err!=nil { t.Fatalf("Accumulate: %v", err) }
		before, _:=r.Finalize()

		ctx, cancel:=context.WithCancel(context.Background())
		cancel()
		if _, err:=r.Accumulate(ctx, m, []Channel[float32]{randomChannel("c", 120)}); err!=context.Canceled {
			t.Errorf("%v: Accumulate(cancelled)=%v; want %v", s, err, context.Canceled)
		}
		after, _:=r.Finalize()
		sameOutputs(t, s.String(), after[0].Data, before[0].Data, 0)
		if r.Stats().Swaths!=1 { t.Errorf("%v: Swaths=%d; want 1", s, r.Stats().Swaths) }
		r.Close()
	}
}

func TestIncrementalSwaths(t *testing.T) {
	m:=affineMap(6, 8, 16, 16)
	ch:=randomChannel("c", 48)
	r, err:=NewResampler[float32, float64](DefaultParams(), 16, 16, Config{})
	if err!=nil { t.Fatalf("NewResampler: %v", err) }
	for i:=0; i<2; i++ {
		if _, err:=r.Accumulate(context.Background(), m, []Channel[float32]{ch}); err!=nil { t.Fatalf("Accumulate: %v", err) }
	}
	twice, _:=r.Finalize()
	once:=resample(t, DefaultParams(), Config{}, 16, 16, m, ch)
	sameOutputs(t, "incremental", twice[0].Data, once[0].Data, 1e-9)
	st:=r.Stats()
	if st.Swaths!=2 || st.Pixels!=96 { t.Errorf("stats=%+v; want 2 swaths of 48 pixels", st) }
}

func TestShapeErrors(t *testing.T) {
	m:=affineMap(3, 3, 8, 8)
	r, err:=NewResampler[float32, float64](DefaultParams(), 8, 8, Config{})
	if err!=nil { t.Fatalf("NewResampler: %v", err) }
	bad:=Channel[float32]{Name:"c", Data:make([]float32, 8)}
	if _, err:=r.Accumulate(context.Background(), m, []Channel[float32]{bad}); errors.Cause(err)!=ErrShapeMismatch {
		t.Errorf("short channel: %v; want %v", err, ErrShapeMismatch)
	}
	other:=affineMap(3, 3, 9, 8)
	if _, err:=r.Accumulate(context.Background(), other, []Channel[float32]{randomChannel("c", 9)}); errors.Cause(err)!=ErrShapeMismatch {
		t.Errorf("grid mismatch: %v; want %v", err, ErrShapeMismatch)
	}
	if _, err:=NewResampler[float32, float64](DefaultParams(), 0, 8, Config{}); errors.Cause(err)!=ErrShapeMismatch {
		t.Errorf("empty grid: %v; want %v", err, ErrShapeMismatch)
	}
	p:=DefaultParams()
	p.WeightDistanceMax=0
	if _, err:=NewResampler[float32, float64](p, 8, 8, Config{}); err==nil {
		t.Errorf("zero distance: err=nil; want error")
	}
}

func TestSkippedScanIsLogged(t *testing.T) {
	m:=affineMap(4, 3, 10, 10)
	for i:=6; i<12; i++ { m.Col[i], m.Row[i]=5, 5 } // second scan collapsed onto one point
	p:=DefaultParams()
	p.RowsPerScan=2
	var log bytes.Buffer
	el:=ComputeEllipses(m, &p, &log)
	if el.Scans!=2 || el.Skipped!=1 { t.Errorf("scans=%d skipped=%d; want 2 1", el.Scans, el.Skipped) }
	if !strings.Contains(log.String(), "Warning: scan 1") {
		t.Errorf("log=%q; want warning for scan 1", log.String())
	}
	for c:=0; c<3; c++ {
		if !el.At(0, c).Valid { t.Errorf("scan 0 column %d unusable", c) }
		if el.At(3, c).Valid  { t.Errorf("scan 1 column %d usable", c) }
	}
}

func TestIntegerPixels(t *testing.T) {
	m:=newMap(2, 2, 2, 2, []float64{0, 1, 0, 1}, []float64{0, 0, 1, 1})
	r, err:=NewResampler[uint16, float32](DefaultParams(), 2, 2, Config{})
	if err!=nil { t.Fatalf("NewResampler: %v", err) }
	ch:=Channel[uint16]{Name:"counts", Data:[]uint16{100, 0, 300, 400}, Fill:0}
	if _, err:=r.Accumulate(context.Background(), m, []Channel[uint16]{ch}); err!=nil { t.Fatalf("Accumulate: %v", err) }
	outs, _:=r.Finalize()
	want:=[]float32{100, 0, 300, 400}
	for i, w:=range want {
		if outs[0].Data[i]!=w { t.Errorf("cell %d=%v; want %v", i, outs[0].Data[i], w) }
	}
	if outs[0].Valid!=3 { t.Errorf("Valid=%d; want 3", outs[0].Valid) }
	if st:=r.Stats(); st.FillSamples[0]!=1 { t.Errorf("fill samples=%v; want [1]", st.FillSamples) }
}

func TestParamsJSONDefaults(t *testing.T) {
	var p Params
	if err:=p.UnmarshalJSON([]byte(`{"weightDeltaMax":40,"precision":"pixel"}`)); err!=nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	want:=DefaultParams()
	want.WeightDeltaMax=40
	want.Precision=PerPixel
	if p!=want { t.Errorf("params=%+v; want %+v", p, want) }
	if p.SumMin()!=Epsilon { t.Errorf("SumMin()=%v; want %v", p.SumMin(), Epsilon) }
}

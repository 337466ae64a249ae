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
	"math"

	"gonum.org/v1/gonum/floats"
	"github.com/ssec/polar2grid-sub004/internal/ll2cr"
	"github.com/ssec/polar2grid-sub004/internal/pool"
)

// Swath sample types
type Pixel interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

// Accumulator precisions
type Float interface {
	~float32 | ~float64
}

// One channel of swath samples, row-major and shaped like the swath geolocation
type Channel[P Pixel] struct {
	Name string
	Data []P
	Fill P      // declared fill value. NaN is always fill for floating point samples
}

func (c *Channel[P]) isFill(v P) bool {
	return v==c.Fill || v!=v
}

// Per-channel accumulation buffers over a band of grid rows. In the default mode
// Accum holds the weighted value sum and Weights the weight sum. In maximum
// weight mode Accum holds the best value so far and Weights its weight.
type Accumulator[A Float] struct {
	Cols, Rows int     // band width and height
	RowOffset  int     // first grid row covered by the band
	MaxWeight  bool
	Accum      [][]A
	Weights    [][]A
}

var pool32=pool.New[float32]()
var pool64=pool.New[float64]()

// Returns the buffer pool for the accumulator precision
func buffers[A Float]() *pool.Sized[A] {
	if p, ok:=any(pool32).(*pool.Sized[A]); ok { return p }
	if p, ok:=any(pool64).(*pool.Sized[A]); ok { return p }
	return nil
}

// Creates zeroed accumulation buffers for the given number of channels over grid rows [rowOffset, rowOffset+rows)
func NewAccumulator[A Float](channels, cols, rows, rowOffset int, maxWeight bool) *Accumulator[A] {
	acc:=&Accumulator[A]{Cols:cols, Rows:rows, RowOffset:rowOffset, MaxWeight:maxWeight,
	                     Accum:make([][]A, channels), Weights:make([][]A, channels)}
	p:=buffers[A]()
	for c:=0; c<channels; c++ {
		if p!=nil {
			acc.Accum[c], acc.Weights[c]=p.Get(cols*rows), p.Get(cols*rows)
		} else {
			acc.Accum[c], acc.Weights[c]=make([]A, cols*rows), make([]A, cols*rows)
		}
	}
	return acc
}

// Returns the buffers to the pool. The accumulator must not be used afterwards
func (acc *Accumulator[A]) Release() {
	p:=buffers[A]()
	for c:=range acc.Accum {
		if p!=nil {
			p.Put(acc.Accum[c])
			p.Put(acc.Weights[c])
		}
		acc.Accum[c], acc.Weights[c]=nil, nil
	}
}

// Clears all buffers
func (acc *Accumulator[A]) Reset() {
	for c:=range acc.Accum {
		for i:=range acc.Accum[c] { acc.Accum[c][i], acc.Weights[c][i]=0, 0 }
	}
}

// Adds the contributions collected in o, whose band must lie within acc
func (acc *Accumulator[A]) Merge(o *Accumulator[A]) {
	start:=(o.RowOffset-acc.RowOffset)*acc.Cols
	for c:=range acc.Accum {
		accum, weights:=acc.Accum[c][start:start+len(o.Accum[c])], acc.Weights[c][start:start+len(o.Weights[c])]
		if acc.MaxWeight {
			for i, w:=range o.Weights[c] {
				if w>weights[i] { weights[i], accum[i]=w, o.Accum[c][i] }
			}
			continue
		}
		addTo(accum,   o.Accum[c])
		addTo(weights, o.Weights[c])
	}
}

// Elementwise dst+=src, via gonum for float64
func addTo[A Float](dst, src []A) {
	if d, ok:=any(dst).([]float64); ok {
		floats.Add(d, any(src).([]float64))
		return
	}
	for i, v:=range src { dst[i]+=v }
}


// Accumulates swath rows [rowLo, rowHi) into the accumulator band. Samples are
// skipped when their location or footprint is unusable or they are fill.
// The band clips each footprint, so disjoint bands can be filled concurrently.
func accumulate[P Pixel, A Float](acc *Accumulator[A], m *ll2cr.ColRowMap, el *Ellipses, wt *WeightTable,
	                              chans []Channel[P], rowLo, rowHi int) {
	bandLo, bandHi:=acc.RowOffset, acc.RowOffset+acc.Rows-1
	vals :=make([]A, len(chans))
	valid:=make([]bool, len(chans))

	for r:=rowLo; r<rowHi; r++ {
		for c:=0; c<m.Cols; c++ {
			i:=r*m.Cols+c
			u0, v0:=m.Col[i], m.Row[i]
			if math.IsNaN(u0) || math.IsNaN(v0) { continue }
			e:=el.At(r, c)
			if !e.Valid { continue }

			iv1, iv2:=int(math.Ceil(v0-e.VDel)), int(math.Floor(v0+e.VDel))
			if iv1<bandLo { iv1=bandLo }
			if iv2>bandHi { iv2=bandHi }
			if iv1>iv2 { continue }
			iu1, iu2:=int(math.Ceil(u0-e.UDel)), int(math.Floor(u0+e.UDel))
			if iu1<0 { iu1=0 }
			if iu2>=acc.Cols { iu2=acc.Cols-1 }
			if iu1>iu2 { continue }

			some:=false
			for ch:=range chans {
				v:=chans[ch].Data[i]
				valid[ch]=!chans[ch].isFill(v)
				vals[ch]=A(v)
				some=some || valid[ch]
			}
			if !some { continue }

			ddq  :=2*e.A
			u    :=float64(iu1)-u0
			a2up1:=e.A*(2*u+1)
			bu   :=e.B*u
			au2  :=e.A*u*u
			for iv:=iv1; iv<=iv2; iv++ {
				v :=float64(iv)-v0
				dq:=a2up1+e.B*v
				q :=(e.C*v+bu)*v+au2
				base:=(iv-acc.RowOffset)*acc.Cols
				for iu:=iu1; iu<=iu2; iu++ {
					if q>=0 && q<e.F {
						w:=A(wt.at(q))
						cell:=base+iu
						for ch:=range chans {
							if !valid[ch] { continue }
							if acc.MaxWeight {
								if w>acc.Weights[ch][cell] {
									acc.Weights[ch][cell]=w
									acc.Accum[ch][cell]=vals[ch]
								}
							} else {
								acc.Accum[ch][cell]  +=vals[ch]*w
								acc.Weights[ch][cell]+=w
							}
						}
					}
					q +=dq
					dq+=ddq
				}
			}
		}
	}
}

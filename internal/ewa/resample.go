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
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/ll2cr"
)

var ErrShapeMismatch=errors.New("array shape mismatch")

// How an accumulation pass is spread over threads
type Strategy int

const (
	Auto           Strategy = iota // private buffers if they fit in memory, else partition grid
	Sequential                     // single thread
	PartitionGrid                  // each thread owns a band of grid rows and scans the whole swath
	PrivateBuffers                 // each thread accumulates swath chunks into its own full grid, reduced afterwards
)

var strategyNames=[]string{"auto", "sequential", "partition", "private"}

func (s Strategy) String() string {
	if s<0 || int(s)>=len(strategyNames) { return fmt.Sprintf("Strategy(%d)", int(s)) }
	return strategyNames[s]
}

func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Strategy) UnmarshalText(b []byte) error {
	n:=strings.ToLower(string(b))
	for i, name:=range strategyNames {
		if name==n { *s=Strategy(i); return nil }
	}
	return errors.Errorf("unknown strategy '%s'", n)
}

// Execution settings of a resampler
type Config struct {
	Strategy  Strategy
	Threads   int        // maximum worker goroutines, <1 means 1
	MemoryMB  int        // memory available for private buffers, 0 disables them under Auto
	ChunkRows int        // swath rows per work item and cancellation check, 0=default
	Log       io.Writer  // progress and warnings, may be nil
}

const defaultChunkRows=64

// Counts of swath pixels by how they were treated
type Stats struct {
	Swaths       int
	Pixels       int
	Used         int     // located pixels with a usable footprint touching the grid
	NoLocation   int     // geolocation fill, out of range or rejected by the projection
	Unusable     int     // degenerate footprint geometry
	OffGrid      int     // footprint entirely outside the grid
	FillSamples  []int   // per channel, fill samples among used pixels
	Scans        int
	SkippedScans int
}

func (s *Stats) Add(o Stats) {
	s.Swaths      +=o.Swaths
	s.Pixels      +=o.Pixels
	s.Used        +=o.Used
	s.NoLocation  +=o.NoLocation
	s.Unusable    +=o.Unusable
	s.OffGrid     +=o.OffGrid
	s.Scans       +=o.Scans
	s.SkippedScans+=o.SkippedScans
	if len(s.FillSamples)<len(o.FillSamples) {
		s.FillSamples=append(s.FillSamples, make([]int, len(o.FillSamples)-len(s.FillSamples))...)
	}
	for i, f:=range o.FillSamples { s.FillSamples[i]+=f }
}

// Resamples any number of swaths with a common set of channels onto a grid of given shape.
// Swath pixels are of type P, accumulation and output of type A.
type Resampler[P Pixel, A Float] struct {
	Params Params
	Table  *WeightTable
	Config Config

	cols, rows int
	names      []string
	fills      []P
	acc        *Accumulator[A]
	stats      Stats
}

// Creates a resampler for a cols x rows grid. Fails on invalid parameters or grid shape
func NewResampler[P Pixel, A Float](p Params, cols, rows int, cfg Config) (*Resampler[P, A], error) {
	if err:=p.Validate(); err!=nil { return nil, err }
	if cols<=0 || rows<=0 {
		return nil, errors.Wrapf(ErrShapeMismatch, "grid shape %dx%d", cols, rows)
	}
	wt, err:=NewWeightTableFromParams(&p)
	if err!=nil { return nil, err }
	if cfg.Threads<1 { cfg.Threads=1 }
	if cfg.ChunkRows<1 { cfg.ChunkRows=defaultChunkRows }
	return &Resampler[P, A]{Params:p, Table:wt, Config:cfg, cols:cols, rows:rows}, nil
}

// Accumulated statistics over all swaths so far
func (r *Resampler[P, A]) Stats() Stats { return r.stats }

func (r *Resampler[P, A]) logf(format string, args ...interface{}) {
	if r.Config.Log!=nil { fmt.Fprintf(r.Config.Log, format, args...) }
}

// Checks the swath map and channels against the grid and earlier swaths
func (r *Resampler[P, A]) check(m *ll2cr.ColRowMap, chans []Channel[P]) error {
	if m.GridCols!=r.cols || m.GridRows!=r.rows {
		return errors.Wrapf(ErrShapeMismatch, "swath mapped to %dx%d grid, resampling onto %dx%d", m.GridCols, m.GridRows, r.cols, r.rows)
	}
	n:=m.Rows*m.Cols
	if len(m.Col)!=n || len(m.Row)!=n {
		return errors.Wrapf(ErrShapeMismatch, "column/row map of %d/%d entries for %dx%d swath", len(m.Col), len(m.Row), m.Cols, m.Rows)
	}
	if len(chans)==0 {
		return errors.New("no channels to resample")
	}
	if r.names!=nil && len(chans)!=len(r.names) {
		return errors.Wrapf(ErrShapeMismatch, "%d channels, earlier swaths had %d", len(chans), len(r.names))
	}
	for i, c:=range chans {
		if len(c.Data)!=n {
			return errors.Wrapf(ErrShapeMismatch, "channel %s has %d samples for %dx%d swath", c.Name, len(c.Data), m.Cols, m.Rows)
		}
		if r.names!=nil && c.Name!=r.names[i] {
			return errors.Wrapf(ErrShapeMismatch, "channel %d is %s, earlier swaths had %s", i, c.Name, r.names[i])
		}
	}
	return nil
}

// Accumulates one swath into the grid. Returns statistics for this swath.
// If the context is cancelled, the partial contributions of this swath are
// discarded, the grid keeps the state from earlier swaths and ctx.Err() is returned.
func (r *Resampler[P, A]) Accumulate(ctx context.Context, m *ll2cr.ColRowMap, chans []Channel[P]) (Stats, error) {
	if err:=r.check(m, chans); err!=nil { return Stats{}, err }
	if r.names==nil {
		r.names=make([]string, len(chans))
		r.fills=make([]P, len(chans))
		for i, c:=range chans { r.names[i], r.fills[i]=c.Name, c.Fill }
		r.acc=NewAccumulator[A](len(chans), r.cols, r.rows, 0, r.Params.MaximumWeightMode)
	}

	el:=ComputeEllipses(m, &r.Params, r.Config.Log)
	st:=r.countPixels(m, el, chans)

	strategy:=r.choose(m, len(chans))
	var err error
	switch strategy {
	case PartitionGrid:
		err=r.partitionGrid(ctx, m, el, chans)
	case PrivateBuffers:
		err=r.privateBuffers(ctx, m, el, chans)
	default:
		err=r.sequential(ctx, m, el, chans)
	}
	if err!=nil { return st, err }

	r.stats.Add(st)
	r.logf("Swath %d: %d pixels, %d used, %d without location, %d unusable footprints, %d off grid, %d/%d scans skipped (%s, %d threads)\n",
		r.stats.Swaths, st.Pixels, st.Used, st.NoLocation, st.Unusable, st.OffGrid, st.SkippedScans, st.Scans, strategy, r.Config.Threads)
	return st, nil
}

// Classifies all swath pixels for logging and metrics
func (r *Resampler[P, A]) countPixels(m *ll2cr.ColRowMap, el *Ellipses, chans []Channel[P]) Stats {
	st:=Stats{Swaths:1, Pixels:m.Rows*m.Cols, FillSamples:make([]int, len(chans)), Scans:el.Scans, SkippedScans:el.Skipped}
	for row:=0; row<m.Rows; row++ {
		for col:=0; col<m.Cols; col++ {
			i:=row*m.Cols+col
			if !m.Valid(i) { st.NoLocation++; continue }
			e:=el.At(row, col)
			if !e.Valid { st.Unusable++; continue }
			u0, v0:=m.Col[i], m.Row[i]
			if math.Floor(u0+e.UDel)<0 || math.Ceil(u0-e.UDel)>=float64(r.cols) ||
			   math.Floor(v0+e.VDel)<0 || math.Ceil(v0-e.VDel)>=float64(r.rows) {
				st.OffGrid++
				continue
			}
			st.Used++
			for ch:=range chans {
				if chans[ch].isFill(chans[ch].Data[i]) { st.FillSamples[ch]++ }
			}
		}
	}
	return st
}

// Resolves the Auto strategy from thread count and memory budget
func (r *Resampler[P, A]) choose(m *ll2cr.ColRowMap, channels int) Strategy {
	s:=r.Config.Strategy
	if r.Config.Threads<=1 || m.Rows<2 { return Sequential }
	if s!=Auto { return s }

	var zero A
	gridBytes:=int64(r.cols)*int64(r.rows)*int64(channels)*2*int64(unsafe.Sizeof(zero))
	budget:=int64(r.Config.MemoryMB)*1024*1024/2
	if int64(r.Config.Threads)*gridBytes<=budget { return PrivateBuffers }
	return PartitionGrid
}

// Splits swath rows into work items of at most ChunkRows rows
func (r *Resampler[P, A]) chunks(rows, parts int) (chunkRows, numChunks int) {
	chunkRows=r.Config.ChunkRows
	if parts>1 {
		if perPart:=(rows+parts-1)/parts; perPart<chunkRows { chunkRows=perPart }
	}
	if chunkRows<1 { chunkRows=1 }
	return chunkRows, (rows+chunkRows-1)/chunkRows
}

func (r *Resampler[P, A]) sequential(ctx context.Context, m *ll2cr.ColRowMap, el *Ellipses, chans []Channel[P]) error {
	scratch:=NewAccumulator[A](len(chans), r.cols, r.rows, 0, r.Params.MaximumWeightMode)
	defer scratch.Release()
	chunkRows, numChunks:=r.chunks(m.Rows, 1)
	for c:=0; c<numChunks; c++ {
		if err:=ctx.Err(); err!=nil { return err }
		lo, hi:=c*chunkRows, (c+1)*chunkRows
		if hi>m.Rows { hi=m.Rows }
		accumulate(scratch, m, el, r.Table, chans, lo, hi)
	}
	r.acc.Merge(scratch)
	return nil
}

// Each worker owns a band of grid rows and scans the full swath, keeping only
// footprints that reach into its band
func (r *Resampler[P, A]) partitionGrid(ctx context.Context, m *ll2cr.ColRowMap, el *Ellipses, chans []Channel[P]) error {
	threads:=r.Config.Threads
	if threads>r.rows { threads=r.rows }
	bandRows:=(r.rows+threads-1)/threads
	numBands:=(r.rows+bandRows-1)/bandRows
	bands:=make([]*Accumulator[A], numBands)
	chunkRows, numChunks:=r.chunks(m.Rows, 1)

	sem:=make(chan bool, threads)
	for b:=0; b<numBands; b++ {
		sem <- true
		go func(b int) {
			defer func() { <-sem }()
			lo, h:=b*bandRows, bandRows
			if lo+h>r.rows { h=r.rows-lo }
			band:=NewAccumulator[A](len(chans), r.cols, h, lo, r.Params.MaximumWeightMode)
			bands[b]=band
			for c:=0; c<numChunks; c++ {
				if ctx.Err()!=nil { return }
				sLo, sHi:=c*chunkRows, (c+1)*chunkRows
				if sHi>m.Rows { sHi=m.Rows }
				accumulate(band, m, el, r.Table, chans, sLo, sHi)
			}
		}(b)
	}
	for i:=0; i<cap(sem); i++ {  // wait for goroutines to finish
		sem <- true
	}

	defer func() {
		for _, band:=range bands { band.Release() }
	}()
	if err:=ctx.Err(); err!=nil { return err }
	for _, band:=range bands { r.acc.Merge(band) }
	return nil
}

// Each worker accumulates swath chunks into a private full grid; the private
// grids are summed afterwards
func (r *Resampler[P, A]) privateBuffers(ctx context.Context, m *ll2cr.ColRowMap, el *Ellipses, chans []Channel[P]) error {
	chunkRows, numChunks:=r.chunks(m.Rows, r.Config.Threads)
	workers:=r.Config.Threads
	if workers>numChunks { workers=numChunks }

	// contiguous chunk ranges per worker, merged in swath order, so equal
	// maximum weights resolve to the earliest swath row as in sequential mode
	perWorker:=(numChunks+workers-1)/workers
	privates:=make([]*Accumulator[A], workers)
	sem:=make(chan bool, workers)
	for w:=0; w<workers; w++ {
		sem <- true
		go func(w int) {
			defer func() { <-sem }()
			priv:=NewAccumulator[A](len(chans), r.cols, r.rows, 0, r.Params.MaximumWeightMode)
			privates[w]=priv
			first, last:=w*perWorker, (w+1)*perWorker
			if last>numChunks { last=numChunks }
			for c:=first; c<last; c++ {
				if ctx.Err()!=nil { return }
				lo, hi:=c*chunkRows, (c+1)*chunkRows
				if hi>m.Rows { hi=m.Rows }
				accumulate(priv, m, el, r.Table, chans, lo, hi)
			}
		}(w)
	}
	for i:=0; i<cap(sem); i++ {  // wait for goroutines to finish
		sem <- true
	}

	defer func() {
		for _, priv:=range privates { priv.Release() }
	}()
	if err:=ctx.Err(); err!=nil { return err }
	for _, priv:=range privates { r.acc.Merge(priv) }
	return nil
}

// Normalizes the accumulated grid into one output per channel, using up to
// Config.Threads goroutines. Accumulation state is left untouched, so Finalize
// may be called repeatedly and accumulation may continue afterwards.
func (r *Resampler[P, A]) Finalize() ([]*Output[A], error) {
	if r.acc==nil { return nil, errors.New("nothing accumulated") }
	sumMin:=r.Params.SumMin()
	outs:=make([]*Output[A], len(r.names))
	for ch:=range r.names {
		n:=r.cols*r.rows
		o:=&Output[A]{Name:r.names[ch], Data:make([]A, n), Weights:make([]A, n), Fill:A(r.fills[ch])}
		copy(o.Weights, r.acc.Weights[ch])

		threads:=r.Config.Threads
		if threads>r.rows { threads=r.rows }
		bandRows:=(r.rows+threads-1)/threads
		numBands:=(r.rows+bandRows-1)/bandRows
		valids:=make([]int, numBands)
		sem:=make(chan bool, threads)
		for b:=0; b<numBands; b++ {
			sem <- true
			go func(b int) {
				defer func() { <-sem }()
				lo, hi:=b*bandRows*r.cols, (b+1)*bandRows*r.cols
				if hi>n { hi=n }
				valids[b]=Normalize(o.Data[lo:hi], r.acc.Accum[ch][lo:hi], r.acc.Weights[ch][lo:hi],
				                    r.Params.MaximumWeightMode, sumMin, o.Fill)
			}(b)
		}
		for i:=0; i<cap(sem); i++ {  // wait for goroutines to finish
			sem <- true
		}
		for _, v:=range valids { o.Valid+=v }
		outs[ch]=o
	}
	return outs, nil
}

// Releases the accumulation buffers
func (r *Resampler[P, A]) Close() {
	if r.acc!=nil { r.acc.Release() }
	r.acc=nil
	r.names, r.fills=nil, nil
}

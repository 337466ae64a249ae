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


package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/ewa"
	"github.com/ssec/polar2grid-sub004/internal/grid"
	"github.com/ssec/polar2grid-sub004/internal/ll2cr"
	"github.com/ssec/polar2grid-sub004/internal/logging"
	"github.com/ssec/polar2grid-sub004/internal/metrics"
	"github.com/ssec/polar2grid-sub004/internal/output"
	"github.com/ssec/polar2grid-sub004/internal/policy"
	"github.com/ssec/polar2grid-sub004/internal/proj"
)

// Resamples the channels of one or more swaths onto a grid and writes the results.
// Parameters come from the policy file for reader, sensor and product, unless
// given explicitly.
type OpResample struct {
	OpBase
	Swaths       []SwathFiles    `json:"swaths"`
	Grid         grid.Definition `json:"grid"`
	PolicyFile   string          `json:"policy,omitempty"`
	Reader       string          `json:"reader,omitempty"`
	Sensor       string          `json:"sensor,omitempty"`
	Product      string          `json:"product,omitempty"`
	Params       *ewa.Params     `json:"params,omitempty"`   // replaces the policy selection if set
	Fill         *float64        `json:"fill,omitempty"`     // channel fill value, overrides the policy
	Strategy     ewa.Strategy    `json:"strategy"`
	Float64      bool            `json:"float64"`            // accumulate in float64 instead of float32
	Output       string          `json:"output"`             // file name pattern, %s expands to the channel name
	Weights      bool            `json:"weights"`            // also write weight sums where the format allows
	GridCoverage float64         `json:"gridCoverage"`       // minimum fraction of valid cells for a channel to be written
}

func init() { SetOperatorFactory(func() Operator { return NewOpResampleDefault()}) } // register the operator for JSON decoding

func NewOpResampleDefault() *OpResample {
	return &OpResample{
		OpBase       : OpBase{Type: "resample", Active: true},
		Strategy     : ewa.Auto,
		GridCoverage : 0.1,
	}
}

// Unmarshal with defaults for fields not present in the JSON
func (op *OpResample) UnmarshalJSON(data []byte) error {
	type defaults OpResample
	def:=defaults(*NewOpResampleDefault())
	if err:=json.Unmarshal(data, &def); err!=nil { return err }
	*op=OpResample(def)
	return nil
}

// Checks the job for completeness before any file is read
func (op *OpResample) validate(c *Context) error {
	if len(op.Swaths)==0 { return errors.New("no swaths given") }
	if op.Output=="" { return errors.New("no output file pattern given") }
	if _, err:=output.FormatOf(op.Output); err!=nil { return err }
	if !(op.GridCoverage>=0 && op.GridCoverage<=1) {
		return errors.Errorf("grid coverage %g outside [0,1]", op.GridCoverage)
	}
	if err:=op.Grid.Validate(); err!=nil { return err }

	names:=op.Swaths[0].Channels
	if len(names)==0 { return errors.New("no channels given") }
	for i, s:=range op.Swaths {
		if len(s.Channels)!=len(names) {
			return errors.Errorf("swath %d has %d channels, swath 0 has %d", i, len(s.Channels), len(names))
		}
		for j, ch:=range s.Channels {
			if ch.Name!=names[j].Name {
				return errors.Errorf("swath %d channel %d is %s, swath 0 has %s", i, j, ch.Name, names[j].Name)
			}
		}
		for _, f:=range s.files() {
			if err:=c.checkPath(f); err!=nil { return err }
		}
	}
	if op.PolicyFile!="" {
		if err:=c.checkPath(op.PolicyFile); err!=nil { return err }
	}
	return c.checkPath(op.Output)
}

// Selects resampling parameters and the channel fill value
func (op *OpResample) params(c *Context) (ewa.Params, *float64, error) {
	pol:=&policy.Policy{}
	if op.PolicyFile!="" {
		var err error
		if pol, err=policy.Load(op.PolicyFile); err!=nil { return ewa.Params{}, nil, err }
	}
	sel, err:=pol.Lookup(op.Reader, op.Sensor, op.Product)
	if err!=nil { return ewa.Params{}, nil, err }
	params, fill:=sel.Params, sel.Fill
	if op.Params!=nil {
		params=*op.Params
		if err:=params.Validate(); err!=nil { return params, nil, err }
	} else if len(sel.Rules)>0 {
		fmt.Fprintf(c.Log, "Applied policy rules %v for %s/%s/%s\n", sel.Rules, op.Reader, op.Sensor, op.Product)
	}
	if op.Fill!=nil { fill=op.Fill }
	return params, fill, nil
}

// Runs the job: resample, drop channels below the coverage threshold, write the rest
func (op *OpResample) Run(ctx context.Context, c *Context) error {
	start:=time.Now()
	defer metrics.ObserveDuration(start)

	grids, err:=op.Apply(ctx, c)
	if err!=nil { return err }
	kept:=op.checkCoverage(grids, c.Log)
	if len(kept)==0 {
		return errors.Errorf("no channel covers at least %.1f%% of grid %s", 100*op.GridCoverage, op.Grid.Name)
	}
	if _, err:=output.Save(op.Output, kept, op.Weights, c.Log); err!=nil { return err }
	for _, g:=range kept { metrics.ObserveValid(g.Name, g.Valid) }
	fmt.Fprintf(c.Log, "Resampled %d of %d channels in %s. %s\n", len(kept), len(grids), time.Since(start), logging.MemString())
	return nil
}

// Returns the grids meeting the coverage threshold, logging statistics for all
func (op *OpResample) checkCoverage(grids []*output.Grid, logWriter io.Writer) (kept []*output.Grid) {
	for _, g:=range grids {
		fmt.Fprintf(logWriter, "%s: %v\n", g.Name, g.Stats())
		if g.Coverage()<op.GridCoverage {
			fmt.Fprintf(logWriter, "Warning: %s covers %.1f%% of the grid, below %.1f%%, not writing\n",
				g.Name, 100*g.Coverage(), 100*op.GridCoverage)
			continue
		}
		kept=append(kept, g)
	}
	return kept
}

// Loads, projects and resamples all swaths, returning one grid per channel
func (op *OpResample) Apply(ctx context.Context, c *Context) ([]*output.Grid, error) {
	if op.Float64 { return resample[float64](ctx, op, c) }
	return resample[float32](ctx, op, c)
}

func resample[A ewa.Float](ctx context.Context, op *OpResample, c *Context) ([]*output.Grid, error) {
	if err:=op.validate(c); err!=nil { return nil, err }
	params, fill, err:=op.params(c)
	if err!=nil { return nil, err }
	pr, err:=proj.New(op.Grid.Proj4)
	if err!=nil { return nil, errors.Wrapf(err, "grid %s", op.Grid.Name) }

	promises:=make([]Promise[*swathData], len(op.Swaths))
	for i:=range op.Swaths {
		i:=i
		promises[i]=func() (*swathData, error) { return op.Swaths[i].load(i, fill, c) }
	}
	swaths, err:=MaterializeAll(promises, c.MaxThreads)
	if err!=nil { return nil, err }

	projected, def, err:=projectAll(swaths, pr, op.Grid, c)
	if err!=nil { return nil, err }

	chans:=len(swaths[0].chans)
	cfg:=ewa.Config{Strategy:op.Strategy, Threads:c.MaxThreads, MemoryMB:c.ResampleMB,
	                ChunkRows:c.ChunkRows(swaths[0].geo.Cols, chans, 4), Log:c.Log}
	r, err:=ewa.NewResampler[float32, A](params, def.Width, def.Height, cfg)
	if err!=nil { return nil, err }
	defer r.Close()

	for i, s:=range swaths {
		m, err:=projected[i].ColRow(&def)
		if err!=nil { return nil, err }
		projected[i]=nil
		st, err:=r.Accumulate(ctx, m, s.chans)
		if err!=nil { return nil, errors.Wrapf(err, "swath %d", s.id) }
		metrics.ObservePixels(st)
	}

	outs, err:=r.Finalize()
	if err!=nil { return nil, err }
	grids:=make([]*output.Grid, len(outs))
	for i, o:=range outs { grids[i]=output.FromOutput(o, def) }
	return grids, nil
}

// Projects all swaths and resolves a dynamic grid from the union of their extents
func projectAll(swaths []*swathData, pr proj.Projection, g grid.Definition, c *Context) ([]*ll2cr.Projected, grid.Definition, error) {
	projected:=make([]*ll2cr.Projected, len(swaths))
	bbox:=grid.EmptyBBox()
	for i, s:=range swaths {
		p, err:=ll2cr.Project(s.geo, pr, c.MaxThreads)
		if err!=nil { return nil, g, errors.Wrapf(err, "swath %d", s.id) }
		shifted:=""
		if p.Shifted { shifted=", shifted across the antimeridian" }
		fmt.Fprintf(c.Log, "%d: Projected %d of %d pixels, %d fill, %d rejected%s\n",
			s.id, p.Valid(), p.Rows*p.Cols, p.Fill, p.Failed, shifted)
		projected[i]=p
		bbox=bbox.Union(p.BBox)
	}
	def, err:=g.Resolve(bbox)
	if err!=nil { return nil, g, err }
	fmt.Fprintf(c.Log, "Grid %v\n", &def)
	return projected, def, nil
}

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

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/grid"
	"github.com/ssec/polar2grid-sub004/internal/proj"
)

// Projects swath geolocation only and reports the resolved grid and its corners
type OpBBox struct {
	OpBase
	Swaths []SwathFiles    `json:"swaths"`
	Grid   grid.Definition `json:"grid"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpBBoxDefault()}) } // register the operator for JSON decoding

func NewOpBBoxDefault() *OpBBox {
	return &OpBBox{OpBase: OpBase{Type: "bbox", Active: true}}
}

// Returns the grid resolved from the swath extents
func (op *OpBBox) Apply(c *Context) (grid.Definition, error) {
	if len(op.Swaths)==0 { return op.Grid, errors.New("no swaths given") }
	if err:=op.Grid.Validate(); err!=nil { return op.Grid, err }
	pr, err:=proj.New(op.Grid.Proj4)
	if err!=nil { return op.Grid, errors.Wrapf(err, "grid %s", op.Grid.Name) }

	promises:=make([]Promise[*swathData], len(op.Swaths))
	for i:=range op.Swaths {
		i:=i
		promises[i]=func() (*swathData, error) {
			geo, err:=op.Swaths[i].loadGeo(i, c)
			if err!=nil { return nil, err }
			return &swathData{id:i, geo:geo}, nil
		}
	}
	swaths, err:=MaterializeAll(promises, c.MaxThreads)
	if err!=nil { return op.Grid, err }
	_, def, err:=projectAll(swaths, pr, op.Grid, c)
	return def, err
}

// Logs the resolved grid as JSON, followed by the lon/lat of its corner cells
func (op *OpBBox) Run(ctx context.Context, c *Context) error {
	def, err:=op.Apply(c)
	if err!=nil { return err }
	pr, err:=proj.New(def.Proj4)
	if err!=nil { return err }
	b, err:=json.MarshalIndent(&def, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(c.Log, "%s\n", b)
	corners, err:=def.Corners(pr)
	if err!=nil { return err }
	for i, name:=range []string{"upper left", "upper right", "lower right", "lower left"} {
		fmt.Fprintf(c.Log, "%-12s lon %.6f lat %.6f\n", name, corners[i][0], corners[i][1])
	}
	return nil
}

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


package grid

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/proj"
)

var ErrCellSize  =errors.New("grid cell size must be positive and finite")
var ErrUnresolved=errors.New("dynamic grid shape has not been resolved")

// A uniform rectangular target grid in a map projection.
// Cell centers lie on integer column and row coordinates. The origin is the
// center of the upper left cell, rows increase downward.
type Definition struct {
	Name       string  `json:"name"       yaml:"name"`
	Proj4      string  `json:"proj4"      yaml:"proj4"`
	CellWidth  float64 `json:"cellWidth"  yaml:"cell_width"`   // projection units per column, >0
	CellHeight float64 `json:"cellHeight" yaml:"cell_height"`  // projection units per row, >0
	OriginX    float64 `json:"originX"    yaml:"origin_x"`
	OriginY    float64 `json:"originY"    yaml:"origin_y"`
	Width      int     `json:"width"      yaml:"width"`        // columns, 0=dynamic
	Height     int     `json:"height"     yaml:"height"`       // rows, 0=dynamic
}

// Returns true if the grid shape is to be derived from the data extent
func (d *Definition) IsDynamic() bool {
	return d.Width<=0 || d.Height<=0
}

// Checks static properties of the grid definition. Dynamic grids pass.
func (d *Definition) Validate() error {
	if d.Proj4=="" {
		return errors.Errorf("grid %s: missing projection", d.Name)
	}
	if !(d.CellWidth>0) || !(d.CellHeight>0) || math.IsInf(d.CellWidth, 0) || math.IsInf(d.CellHeight, 0) {
		return errors.Wrapf(ErrCellSize, "grid %s: cell size %gx%g", d.Name, d.CellWidth, d.CellHeight)
	}
	if !d.IsDynamic() && (math.IsNaN(d.OriginX) || math.IsNaN(d.OriginY)) {
		return errors.Errorf("grid %s: origin is not a number", d.Name)
	}
	return nil
}

// Validates the definition and fails for dynamic grids that were never resolved
func (d *Definition) CheckResolved() error {
	if err:=d.Validate(); err!=nil { return err }
	if d.IsDynamic() { return errors.Wrapf(ErrUnresolved, "grid %s", d.Name) }
	return nil
}

// Returns a copy of a dynamic grid sized to cover the given projected bounding box.
// Static grids are returned unchanged.
func (d Definition) Resolve(b BBox) (Definition, error) {
	if err:=d.Validate(); err!=nil { return d, err }
	if !d.IsDynamic() { return d, nil }
	if b.Empty() { return d, errors.Wrapf(ErrUnresolved, "grid %s: no valid swath coordinates", d.Name) }

	d.OriginX=b.MinX
	d.OriginY=b.MaxY
	d.Width  =int(math.Floor((b.MaxX-b.MinX)/d.CellWidth ))+1
	d.Height =int(math.Floor((b.MaxY-b.MinY)/d.CellHeight))+1
	return d, nil
}

// Converts projected coordinates to continuous column and row
func (d *Definition) ColRow(x, y float64) (col, row float64) {
	return (x-d.OriginX)/d.CellWidth, (d.OriginY-y)/d.CellHeight
}

// Returns the projected coordinates of the center of the given cell
func (d *Definition) Center(col, row float64) (x, y float64) {
	return d.OriginX+col*d.CellWidth, d.OriginY-row*d.CellHeight
}

// Number of cells
func (d *Definition) Cells() int {
	if d.IsDynamic() { return 0 }
	return d.Width*d.Height
}

// Returns lon/lat of the upper left, upper right, lower right and lower left cell centers
func (d *Definition) Corners(p proj.Projection) (corners [4][2]float64, err error) {
	if err=d.CheckResolved(); err!=nil { return corners, err }
	cr:=[4][2]float64{{0, 0}, {float64(d.Width-1), 0}, {float64(d.Width-1), float64(d.Height-1)}, {0, float64(d.Height-1)}}
	for i, c:=range cr {
		x, y:=d.Center(c[0], c[1])
		lon, lat, err:=p.Inverse(x, y)
		if err!=nil { return corners, errors.Wrapf(err, "grid %s: corner %d", d.Name, i) }
		corners[i]=[2]float64{lon, lat}
	}
	return corners, nil
}

func (d *Definition) String() string {
	shape:="dynamic"
	if !d.IsDynamic() { shape=fmt.Sprintf("%dx%d", d.Width, d.Height) }
	return fmt.Sprintf("%s %s cells %gx%g origin (%g,%g) '%s'", d.Name, shape, d.CellWidth, d.CellHeight, d.OriginX, d.OriginY, d.Proj4)
}


// An axis-aligned bounding box in projection coordinates
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Returns an empty bounding box, to be extended with points
func EmptyBBox() BBox {
	return BBox{MinX:math.Inf(1), MinY:math.Inf(1), MaxX:math.Inf(-1), MaxY:math.Inf(-1)}
}

func (b BBox) Empty() bool {
	return !(b.MinX<=b.MaxX) || !(b.MinY<=b.MaxY)
}

// Grows the box to include the given point
func (b *BBox) Extend(x, y float64) {
	if x<b.MinX { b.MinX=x }
	if x>b.MaxX { b.MaxX=x }
	if y<b.MinY { b.MinY=y }
	if y>b.MaxY { b.MaxY=y }
}

// Returns the smallest box enclosing both
func (b BBox) Union(o BBox) BBox {
	if o.Empty() { return b }
	if b.Empty() { return o }
	b.Extend(o.MinX, o.MinY)
	b.Extend(o.MaxX, o.MaxY)
	return b
}

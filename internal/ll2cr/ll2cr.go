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


// Package ll2cr maps swath longitude/latitude arrays to continuous
// grid column/row coordinates.
package ll2cr

import (
	"math"

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/grid"
	"github.com/ssec/polar2grid-sub004/internal/proj"
)

var ErrShapeMismatch=errors.New("array shape mismatch")

// Geolocation of a swath. Arrays are row-major, Rows scan lines by Cols pixels
type Swath struct {
	Rows, Cols int
	Lon, Lat   []float64
	Fill       float64   // declared fill value for both arrays. NaN is always treated as fill
}

// Checks array sizes against the declared shape
func (s *Swath) Validate() error {
	n:=s.Rows*s.Cols
	if s.Rows<=0 || s.Cols<=0 {
		return errors.Wrapf(ErrShapeMismatch, "swath shape %dx%d", s.Cols, s.Rows)
	}
	if len(s.Lon)!=n || len(s.Lat)!=n {
		return errors.Wrapf(ErrShapeMismatch, "swath %dx%d has %d longitudes and %d latitudes", s.Cols, s.Rows, len(s.Lon), len(s.Lat))
	}
	return nil
}

func (s *Swath) isFill(lon, lat float64) bool {
	return lon==s.Fill || lat==s.Fill || math.IsNaN(lon) || math.IsNaN(lat) ||
	       math.Abs(lat)>90 || math.Abs(lon)>360
}

// Swath coordinates in projection space. Invalid pixels hold NaN
type Projected struct {
	Rows, Cols int
	X, Y       []float64
	BBox       grid.BBox    // extent of all valid points
	Fill       int          // pixels with fill or out of range geolocation
	Failed     int          // pixels the projection rejected
	Shifted    bool         // negative longitudes were moved by +360 to avoid the antimeridian
}

// Number of pixels with valid projected coordinates
func (p *Projected) Valid() int {
	return p.Rows*p.Cols-p.Fill-p.Failed
}

// Projects the swath geolocation with the given projection, using up to
// the given number of threads. Per pixel failures become NaN entries.
func Project(s *Swath, pr proj.Projection, threads int) (*Projected, error) {
	if err:=s.Validate(); err!=nil { return nil, err }
	if threads<1 { threads=1 }

	n:=s.Rows*s.Cols
	p:=&Projected{Rows:s.Rows, Cols:s.Cols, X:make([]float64, n), Y:make([]float64, n), BBox:grid.EmptyBBox()}
	p.Shifted=pr.IsLatLong() && crossesAntimeridian(s)

	type partial struct {
		bbox         grid.BBox
		fill, failed int
	}
	rowsPerChunk:=(s.Rows+threads-1)/threads
	numChunks:=(s.Rows+rowsPerChunk-1)/rowsPerChunk
	partials:=make([]partial, numChunks)

	sem:=make(chan bool, threads)
	for c:=0; c<numChunks; c++ {
		sem <- true
		go func(c int) {
			defer func() { <-sem }()
			part:=partial{bbox:grid.EmptyBBox()}
			start, end:=c*rowsPerChunk*s.Cols, (c+1)*rowsPerChunk*s.Cols
			if end>n { end=n }
			for i:=start; i<end; i++ {
				lon, lat:=s.Lon[i], s.Lat[i]
				if s.isFill(lon, lat) {
					p.X[i], p.Y[i]=math.NaN(), math.NaN()
					part.fill++
					continue
				}
				if p.Shifted && lon<0 { lon+=360 }
				x, y, err:=pr.Forward(lon, lat)
				if err!=nil || math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
					p.X[i], p.Y[i]=math.NaN(), math.NaN()
					part.failed++
					continue
				}
				p.X[i], p.Y[i]=x, y
				part.bbox.Extend(x, y)
			}
			partials[c]=part
		}(c)
	}
	for i:=0; i<cap(sem); i++ {  // wait for goroutines to finish
		sem <- true
	}

	for _, part:=range partials {
		p.BBox=p.BBox.Union(part.bbox)
		p.Fill+=part.fill
		p.Failed+=part.failed
	}
	return p, nil
}

// Swaths over the dateline have valid longitudes near both -180 and +180
func crossesAntimeridian(s *Swath) bool {
	minLon, maxLon:=math.Inf(1), math.Inf(-1)
	for i, lon:=range s.Lon {
		if s.isFill(lon, s.Lat[i]) { continue }
		if lon<minLon { minLon=lon }
		if lon>maxLon { maxLon=lon }
	}
	return maxLon-minLon>180 && minLon<0
}


// Continuous grid coordinates for each swath pixel, same shape as the swath.
// NaN marks pixels without a usable location. Read-only once created.
type ColRowMap struct {
	Rows, Cols         int        // swath shape
	GridCols, GridRows int        // target grid shape
	Col, Row           []float64
}

// Returns true if swath pixel i has a usable grid location
func (m *ColRowMap) Valid(i int) bool {
	return !math.IsNaN(m.Col[i]) && !math.IsNaN(m.Row[i])
}

// Number of pixels with usable grid locations
func (m *ColRowMap) CountValid() (n int) {
	for i:=range m.Col {
		if m.Valid(i) { n++ }
	}
	return n
}

// Converts projected coordinates into column/row coordinates of the given grid.
// The grid must be resolved.
func (p *Projected) ColRow(g *grid.Definition) (*ColRowMap, error) {
	if err:=g.CheckResolved(); err!=nil { return nil, err }
	n:=p.Rows*p.Cols
	m:=&ColRowMap{Rows:p.Rows, Cols:p.Cols, GridCols:g.Width, GridRows:g.Height,
	              Col:make([]float64, n), Row:make([]float64, n)}
	for i:=0; i<n; i++ {
		x, y:=p.X[i], p.Y[i]
		if math.IsNaN(x) || math.IsNaN(y) {
			m.Col[i], m.Row[i]=math.NaN(), math.NaN()
			continue
		}
		m.Col[i], m.Row[i]=g.ColRow(x, y)
	}
	return m, nil
}

// Maps a single swath onto the grid. Dynamic grids are resolved from the swath extent;
// the resolved grid is returned alongside the map.
func Map(s *Swath, pr proj.Projection, g grid.Definition, threads int) (*ColRowMap, grid.Definition, error) {
	if err:=g.Validate(); err!=nil { return nil, g, err }
	p, err:=Project(s, pr, threads)
	if err!=nil { return nil, g, err }
	if g, err=g.Resolve(p.BBox); err!=nil { return nil, g, err }
	m, err:=p.ColRow(&g)
	return m, g, err
}

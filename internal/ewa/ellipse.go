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
	"fmt"
	"io"
	"math"

	"github.com/ssec/polar2grid-sub004/internal/ll2cr"
)

// Relative tolerance below which a Jacobian determinant counts as singular
const singularTolerance=1e-12

// Footprint of a swath pixel in grid cell units: the cell at offset (u,v) from
// the pixel center is inside iff q=A*u*u + B*u*v + C*v*v < F.
// UDel and VDel bound the search box in columns and rows.
type Ellipse struct {
	A, B, C, F float64
	UDel, VDel float64
	Valid      bool
}

// Derives the ellipse from along-scan (ux,vx) and cross-scan (uy,vy) grid cell
// spacings of neighboring swath pixels
func (e *Ellipse) set(ux, vx, uy, vy, distanceMax, deltaMax float64) {
	ux*=distanceMax; vx*=distanceMax
	uy*=distanceMax; vy*=distanceMax
	qmax:=distanceMax*distanceMax

	jac:=ux*vy-uy*vx
	if math.IsNaN(jac) || math.IsInf(jac, 0) || jac==0 ||
	   math.Abs(jac)<=singularTolerance*(math.Abs(ux*vy)+math.Abs(uy*vx)) {
		*e=Ellipse{}
		return
	}
	fScale:=qmax/(jac*jac)
	a:=(vx*vx+vy*vy)*fScale
	b:=-2*(ux*vx+uy*vy)*fScale
	c:=(ux*ux+uy*uy)*fScale
	d:=4*a*c-b*b
	if !(d>0) || math.IsInf(d, 0) {
		*e=Ellipse{}
		return
	}
	d=4*qmax/d
	uDel, vDel:=math.Sqrt(c*d), math.Sqrt(a*d)
	if !(uDel<=deltaMax) { uDel=deltaMax }
	if !(vDel<=deltaMax) { vDel=deltaMax }
	*e=Ellipse{A:a, B:b, C:c, F:qmax, UDel:uDel, VDel:vDel, Valid:true}
}

// Footprint ellipses for one swath, either one per column of each scan or one per pixel
type Ellipses struct {
	Rows, Cols  int
	RowsPerScan int
	Precision   Precision
	E           []Ellipse
	Scans       int   // number of scans
	Skipped     int   // scans skipped for lack of usable geometry
}

// Returns the ellipse governing the given swath pixel
func (el *Ellipses) At(row, col int) *Ellipse {
	if el.Precision==PerPixel { return &el.E[row*el.Cols+col] }
	return &el.E[(row/el.RowsPerScan)*el.Cols+col]
}

// Number of usable ellipses
func (el *Ellipses) CountValid() (n int) {
	for i:=range el.E {
		if el.E[i].Valid { n++ }
	}
	return n
}

// Derives footprint ellipses for all pixels of the mapped swath. Scans without
// usable neighbor geometry are skipped with a warning to the log.
func ComputeEllipses(m *ll2cr.ColRowMap, p *Params, logWriter io.Writer) *Ellipses {
	rps:=p.RowsPerScan
	if rps<=0 || rps>m.Rows { rps=m.Rows }
	el:=&Ellipses{Rows:m.Rows, Cols:m.Cols, RowsPerScan:rps, Precision:p.Precision}
	el.Scans=(m.Rows+rps-1)/rps
	if p.Precision==PerPixel {
		el.E=make([]Ellipse, m.Rows*m.Cols)
	} else {
		el.E=make([]Ellipse, el.Scans*m.Cols)
	}

	for s:=0; s<el.Scans; s++ {
		first:=s*rps
		rows:=rps
		if first+rows>m.Rows { rows=m.Rows-first }

		var usable, located int
		if p.Precision==PerPixel {
			usable, located=pixelEllipses(m, first, rows, p, el.E[first*m.Cols:(first+rows)*m.Cols])
		} else {
			usable, located=scanEllipses(m, first, rows, p, el.E[s*m.Cols:(s+1)*m.Cols])
		}
		if usable==0 && located>0 {
			el.Skipped++
			if logWriter!=nil {
				fmt.Fprintf(logWriter, "Warning: scan %d has no usable geometry, skipping %d located pixels\n", s, located)
			}
		}
	}
	return el
}

// One ellipse per column of a scan: along-scan spacing from the row closest to the
// middle of the scan, cross-scan spacing from the first and last located rows.
// Returns the number of usable ellipses and of located pixels in the scan.
func scanEllipses(m *ll2cr.ColRowMap, first, rows int, p *Params, out []Ellipse) (usable, located int) {
	for r:=first; r<first+rows; r++ {
		for c:=0; c<m.Cols; c++ {
			if m.Valid(r*m.Cols+c) { located++ }
		}
	}
	mid:=first+rows/2
	for c:=0; c<m.Cols; c++ {
		ux, vx, okX:=0.0, 0.0, false
		for k:=0; k<rows && !okX; k++ {  // mid, mid-1, mid+1, mid-2, ...
			r:=mid+(k+1)/2
			if k%2==1 { r=mid-(k+1)/2 }
			if r<first || r>=first+rows { continue }
			ux, vx, okX=alongScan(m, r, c, true)
		}
		uy, vy, okY:=crossScan(m, first, rows, c)
		if !completeFootprint(&ux, &vx, okX, &uy, &vy, okY, rows, m.Cols) {
			out[c]=Ellipse{}
			continue
		}
		out[c].set(ux, vx, uy, vy, p.WeightDistanceMax, p.WeightDeltaMax)
		if out[c].Valid { usable++ }
	}
	return usable, located
}

// One ellipse per pixel of a scan, from forward differences to the next column and
// next row of the same scan, or backward differences at the far edges.
func pixelEllipses(m *ll2cr.ColRowMap, first, rows int, p *Params, out []Ellipse) (usable, located int) {
	for r:=first; r<first+rows; r++ {
		for c:=0; c<m.Cols; c++ {
			e:=&out[(r-first)*m.Cols+c]
			if !m.Valid(r*m.Cols+c) { *e=Ellipse{}; continue }
			located++
			ux, vx, okX:=alongScan(m, r, c, false)
			uy, vy, okY:=crossNeighbor(m, first, rows, r, c)
			if !completeFootprint(&ux, &vx, okX, &uy, &vy, okY, rows, m.Cols) {
				*e=Ellipse{}
				continue
			}
			e.set(ux, vx, uy, vy, p.WeightDistanceMax, p.WeightDeltaMax)
			if e.Valid { usable++ }
		}
	}
	return usable, located
}

// Fills in a missing spacing vector by rotating the available one by 90 degrees,
// which assumes a square footprint. Only applies where the swath geometry has no
// neighbor in that direction at all. Returns false if the footprint stays incomplete.
func completeFootprint(ux, vx *float64, okX bool, uy, vy *float64, okY bool, rows, cols int) bool {
	switch {
	case okX && okY:
		return true
	case okX && rows==1:
		*uy, *vy= -*vx, *ux
		return true
	case okY && cols==1:
		*ux, *vx= *vy, -*uy
		return true
	}
	return false
}

// Grid spacing between neighboring pixels along the scan line at (r,c).
// Central differences when requested and available, else forward or backward.
func alongScan(m *ll2cr.ColRowMap, r, c int, central bool) (du, dv float64, ok bool) {
	i:=r*m.Cols+c
	left :=c>0        && m.Valid(i-1)
	right:=c<m.Cols-1 && m.Valid(i+1)
	here :=m.Valid(i)
	switch {
	case central && left && right:
		return (m.Col[i+1]-m.Col[i-1])/2, (m.Row[i+1]-m.Row[i-1])/2, true
	case here && right:
		return m.Col[i+1]-m.Col[i], m.Row[i+1]-m.Row[i], true
	case here && left:
		return m.Col[i]-m.Col[i-1], m.Row[i]-m.Row[i-1], true
	}
	return 0, 0, false
}

// Average grid spacing between consecutive rows of column c, from the first and
// last located rows of the scan
func crossScan(m *ll2cr.ColRowMap, first, rows, c int) (du, dv float64, ok bool) {
	top, bottom:=-1, -1
	for r:=first; r<first+rows; r++ {
		if m.Valid(r*m.Cols+c) { top=r; break }
	}
	for r:=first+rows-1; r>top && top>=0; r-- {
		if m.Valid(r*m.Cols+c) { bottom=r; break }
	}
	if top<0 || bottom<0 { return 0, 0, false }
	it, ib, n:=top*m.Cols+c, bottom*m.Cols+c, float64(bottom-top)
	return (m.Col[ib]-m.Col[it])/n, (m.Row[ib]-m.Row[it])/n, true
}

// Grid spacing to the next row of the same scan at (r,c), or from the previous row at the scan's last row
func crossNeighbor(m *ll2cr.ColRowMap, first, rows, r, c int) (du, dv float64, ok bool) {
	i:=r*m.Cols+c
	if r+1<first+rows && m.Valid(i+m.Cols) {
		return m.Col[i+m.Cols]-m.Col[i], m.Row[i+m.Cols]-m.Row[i], true
	}
	if r-1>=first && m.Valid(i-m.Cols) {
		return m.Col[i]-m.Col[i-m.Cols], m.Row[i]-m.Row[i-m.Cols], true
	}
	return 0, 0, false
}

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


package proj

import (
	"math"
	"strings"

	gproj "github.com/ctessum/geom/proj"
	"github.com/pkg/errors"
)

// Geographic input coordinates are always WGS84 longitude and latitude in degrees
const wgs84LongLat="+proj=longlat +datum=WGS84 +no_defs"

// ErrOutOfDomain is returned for points the projection cannot represent
var ErrOutOfDomain=errors.New("point outside projection domain")

// A map projection between geographic lon/lat degrees and projected x/y coordinates.
// Implementations must be safe for concurrent use.
type Projection interface {
	Forward(lon, lat float64) (x, y float64, err error)
	Inverse(x, y float64) (lon, lat float64, err error)
	IsLatLong() bool
	Definition() string
}

// A projection backed by a proj4 definition string
type Proj4 struct {
	def      string               // normalized proj4 definition
	latLong  bool                 // target is geographic, coordinates pass through
	fwd, inv gproj.Transformer    // lon/lat to x/y and back. Unset for lat/long targets
}

var _ Projection=(*Proj4)(nil) // Compile time assertion: type implements the interface

// Creates a projection from a proj4 definition string, e.g. "+proj=stere +lat_0=90 +lon_0=-150 +units=m"
func New(def string) (*Proj4, error) {
	def=strings.TrimSpace(def)
	if def=="" { return nil, errors.New("empty projection definition") }

	dst, err:=gproj.Parse(def)
	if err!=nil { return nil, errors.Wrapf(err, "parsing projection '%s'", def) }
	p:=&Proj4{def:def, latLong:dst.Name=="longlat"}
	if p.latLong { return p, nil }

	src, err:=gproj.Parse(wgs84LongLat)
	if err!=nil { return nil, errors.Wrap(err, "parsing lon/lat reference") }
	if p.fwd, err=src.NewTransform(dst); err!=nil {
		return nil, errors.Wrapf(err, "creating forward transform for '%s'", def)
	}
	if p.inv, err=dst.NewTransform(src); err!=nil {
		return nil, errors.Wrapf(err, "creating inverse transform for '%s'", def)
	}
	return p, nil
}

// Projects lon/lat degrees to x/y. Lat/long targets pass coordinates through in degrees
func (p *Proj4) Forward(lon, lat float64) (x, y float64, err error) {
	if math.Abs(lat)>90 { return math.NaN(), math.NaN(), ErrOutOfDomain }
	if p.latLong { return lon, lat, nil }
	x, y, err=p.fwd(lon, lat)
	if err!=nil { return math.NaN(), math.NaN(), err }
	if !finite(x) || !finite(y) { return math.NaN(), math.NaN(), ErrOutOfDomain }
	return x, y, nil
}

// Projects x/y back to lon/lat degrees
func (p *Proj4) Inverse(x, y float64) (lon, lat float64, err error) {
	if p.latLong { return x, y, nil }
	lon, lat, err=p.inv(x, y)
	if err!=nil { return math.NaN(), math.NaN(), err }
	if !finite(lon) || !finite(lat) { return math.NaN(), math.NaN(), ErrOutOfDomain }
	return lon, lat, nil
}

func (p *Proj4) IsLatLong() bool { return p.latLong }

func (p *Proj4) Definition() string { return p.def }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

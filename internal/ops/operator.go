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
	"math"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/ewa"
	"github.com/ssec/polar2grid-sub004/internal/fits"
	"github.com/ssec/polar2grid-sub004/internal/ll2cr"
	"github.com/ssec/polar2grid-sub004/internal/stats"
)

// A job: decoded from JSON, run against an execution context
type Operator interface {
	GetType() string
	IsActive() bool
	Run(ctx context.Context, c *Context) error
}

// Base type for operators, including type information for JSON serializing/deserializing
type OpBase struct {
	Type        string `json:"type"`
	Active      bool   `json:"active"`
}

func (op *OpBase) GetType() string { return op.Type }
func (op *OpBase) IsActive() bool { return op.Active }

// Factory method for operators. For JSON deserializing
type OperatorFactory func() Operator

// Mapping from operator type strings to factory method for the type
var operatorFactories=map[string]OperatorFactory{}

// Returns the operator factory for a given type string
func GetOperatorFactory(t string) OperatorFactory {
	return operatorFactories[t]
}

// Registers a given type string for a given type of Operator, identified via an exemplar generator
func SetOperatorFactory(f OperatorFactory) {
	op:=f()
	t:=op.GetType()
	if GetOperatorFactory(t)!=nil { panic(fmt.Sprintf("error: re-registering operator key %s\n", t))}
	operatorFactories[t]=f
}

// Decodes a polymorphic operator from JSON, based on its type field
func Decode(raw []byte) (Operator, error) {
	var base OpBase
	if err:=json.Unmarshal(raw, &base); err!=nil { return nil, err }
	factory:=GetOperatorFactory(base.Type)
	if factory==nil {
		return nil, errors.Errorf("Unknown operator type '%s'", base.Type)
	}
	op:=factory()
	if err:=json.Unmarshal(raw, op); err!=nil { return nil, errors.Wrapf(err, "decoding %s operator", base.Type) }
	return op, nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func isPathAllowed(p string) bool {
	if filepath.IsAbs(p) { return false }          // relative paths only
	if strings.Contains(p, "..") { return false }  // no going outside the tree
	return true
}

func (c *Context) checkPath(p string) error {
	if c.RestrictPaths && !isPathAllowed(p) {
		return errors.Errorf("%s: file name outside current directory tree, aborting", p)
	}
	return nil
}


// Input files of one swath: geolocation and any number of co-registered channels
type SwathFiles struct {
	Lon      string        `json:"lon"`
	Lat      string        `json:"lat"`
	GeoFill  *float64      `json:"geoFill,omitempty"` // declared geolocation fill value. NaN and BLANK always are
	Channels []ChannelFile `json:"channels,omitempty"`
}

type ChannelFile struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// A swath loaded into memory
type swathData struct {
	id    int
	geo   *ll2cr.Swath
	chans []ewa.Channel[float32]
}

func (sf *SwathFiles) files() []string {
	fs:=[]string{sf.Lon, sf.Lat}
	for _, ch:=range sf.Channels { fs=append(fs, ch.File) }
	return fs
}

// Loads longitude and latitude arrays, which must be of equal 2D shape
func (sf *SwathFiles) loadGeo(id int, c *Context) (*ll2cr.Swath, error) {
	lon, err:=loadArray[float64](sf.Lon, id, c)
	if err!=nil { return nil, err }
	lat, err:=loadArray[float64](sf.Lat, id, c)
	if err!=nil { return nil, err }
	cols, rows, err:=lon.Shape()
	if err!=nil { return nil, errors.Wrap(err, sf.Lon) }
	if lc, lr, err:=lat.Shape(); err!=nil || lc!=cols || lr!=rows {
		return nil, errors.Wrapf(ll2cr.ErrShapeMismatch, "%d: latitude %s is %s, longitude is %s",
			id, sf.Lat, lat.DimensionsToString(), lon.DimensionsToString())
	}
	fill:=math.NaN()
	if sf.GeoFill!=nil { fill=*sf.GeoFill }
	return &ll2cr.Swath{Rows:rows, Cols:cols, Lon:lon.Data, Lat:lat.Data, Fill:fill}, nil
}

// Loads geolocation and channels. Channel fill is the given value, or NaN if nil
func (sf *SwathFiles) load(id int, fill *float64, c *Context) (*swathData, error) {
	geo, err:=sf.loadGeo(id, c)
	if err!=nil { return nil, err }
	s:=&swathData{id:id, geo:geo, chans:make([]ewa.Channel[float32], len(sf.Channels))}
	chFill:=float32(math.NaN())
	if fill!=nil { chFill=float32(*fill) }

	for i, cf:=range sf.Channels {
		img, err:=loadArray[float32](cf.File, id, c)
		if err!=nil { return nil, err }
		if cols, rows, err:=img.Shape(); err!=nil || cols!=geo.Cols || rows!=geo.Rows {
			return nil, errors.Wrapf(ll2cr.ErrShapeMismatch, "%d: channel %s is %s, geolocation is %dx%d",
				id, cf.Name, img.DimensionsToString(), geo.Cols, geo.Rows)
		}
		s.chans[i]=ewa.Channel[float32]{Name:cf.Name, Data:img.Data, Fill:chFill}
		fmt.Fprintf(c.Log, "%d: Loaded channel %s with %v\n", id, cf.Name, stats.New(img.Data, chFill))
	}
	return s, nil
}

// Loads a FITS array from a file
func loadArray[T fits.Float](fileName string, id int, c *Context) (*fits.Image[T], error) {
	if err:=c.checkPath(fileName); err!=nil { return nil, err }
	img, err:=fits.ReadFile[T](fileName, id, c.Log)
	if err!=nil { return nil, errors.Wrapf(err, "loading %s", fileName) }
	fmt.Fprintf(c.Log, "%d: Loaded %s array from %s\n", id, img.DimensionsToString(), fileName)
	return img, nil
}

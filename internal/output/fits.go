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


package output

import (
	"github.com/ssec/polar2grid-sub004/internal/fits"
)

// Writes a grid as a float32 FITS image, carrying the grid geometry in WCS-like
// header keys. Compresses by suffix like fits.WriteFile.
func WriteFITSFile(fileName string, g *Grid) error {
	return newFITS(g).WriteFile(fileName)
}

func newFITS(g *Grid) *fits.Image[float32] {
	img:=fits.NewImageFromNaxisn([]int32{int32(g.Def.Width), int32(g.Def.Height)}, g.Data)
	h:=&img.Header
	h.Strings["CHANNEL"]=g.Name
	h.Strings["GRIDNAME"]=g.Def.Name
	h.Strings["PROJ4"]=g.Def.Proj4
	h.Floats["CRPIX1"]=1
	h.Floats["CRPIX2"]=1
	h.Floats["CRVAL1"]=g.Def.OriginX
	h.Floats["CRVAL2"]=g.Def.OriginY
	h.Floats["CDELT1"]=g.Def.CellWidth
	h.Floats["CDELT2"]=-g.Def.CellHeight
	if g.Fill==g.Fill { h.Floats["FILLVAL"]=float64(g.Fill) }  // NaN fill needs no key
	h.Ints["NVALID"]=int32(g.Valid)
	h.History=append(h.History, "Elliptical weighted averaging resampling")
	return img
}

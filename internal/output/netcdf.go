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
	"os"

	"github.com/ctessum/cdf"
	"github.com/pkg/errors"
)

// Writes grids sharing one grid definition into a NetCDF classic file, one
// float32 variable (y, x) per channel. With weights, each channel also gets a
// <name>_weight_sum variable.
func WriteNetCDFFile(fileName string, grids []*Grid, weights bool) error {
	if len(grids)==0 { return errors.Errorf("%s: no channels to write", fileName) }
	def:=grids[0].Def
	for _, g:=range grids[1:] {
		if g.Def!=def { return errors.Errorf("%s: channels %s and %s are on different grids", fileName, grids[0].Name, g.Name) }
	}

	h:=cdf.NewHeader([]string{"y", "x"}, []int{def.Height, def.Width})
	h.AddAttribute("", "comment", "Swath data resampled by elliptical weighted averaging")
	h.AddAttribute("", "grid_name", def.Name)
	h.AddAttribute("", "proj4", def.Proj4)
	h.AddAttribute("", "x0", []float64{def.OriginX})
	h.AddAttribute("", "y0", []float64{def.OriginY})
	h.AddAttribute("", "dx", []float64{def.CellWidth})
	h.AddAttribute("", "dy", []float64{def.CellHeight})
	h.AddAttribute("", "nx", []int32{int32(def.Width)})
	h.AddAttribute("", "ny", []int32{int32(def.Height)})

	for _, g:=range grids {
		h.AddVariable(g.Name, []string{"y", "x"}, []float32{0})
		h.AddAttribute(g.Name, "_FillValue", []float32{g.Fill})
		h.AddAttribute(g.Name, "valid_cells", []int32{int32(g.Valid)})
		if weights && g.Weights!=nil {
			h.AddVariable(g.Name+"_weight_sum", []string{"y", "x"}, []float32{0})
		}
	}
	h.Define()

	return createWith(fileName, func(w *os.File) error {
		f, err:=cdf.Create(w, h) // writes the header
		if err!=nil { return err }
		for _, g:=range grids {
			if err:=writeNCF(f, g.Name, g.Data); err!=nil { return err }
			if weights && g.Weights!=nil {
				if err:=writeNCF(f, g.Name+"_weight_sum", g.Weights); err!=nil { return err }
			}
		}
		return cdf.UpdateNumRecs(w)
	})
}

func writeNCF(f *cdf.File, name string, data []float32) error {
	end:=f.Header.Lengths(name)
	n:=1
	for _, l:=range end { n*=l }
	if len(data)!=n {
		return errors.Errorf("variable %s: dims are %d but array length is %d", name, n, len(data))
	}
	start:=make([]int, len(end))
	_, err:=f.Writer(name, start, end).Write(data)
	return err
}

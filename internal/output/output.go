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


// Package output writes normalized grids to FITS, 16-bit TIFF and NetCDF files
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ssec/polar2grid-sub004/internal/ewa"
	"github.com/ssec/polar2grid-sub004/internal/grid"
	"github.com/ssec/polar2grid-sub004/internal/stats"
)

// A gridded channel ready for writing
type Grid struct {
	Name    string
	Def     grid.Definition
	Data    []float32         // row-major, Def.Width x Def.Height
	Weights []float32         // per-cell weight sums, may be nil
	Fill    float32
	Valid   int
}

// Converts a resampler output on the given grid into a writable grid
func FromOutput[A ewa.Float](o *ewa.Output[A], def grid.Definition) *Grid {
	g:=&Grid{Name:o.Name, Def:def, Fill:float32(o.Fill), Valid:o.Valid,
	         Data:make([]float32, len(o.Data)), Weights:make([]float32, len(o.Weights))}
	for i, v:=range o.Data    { g.Data[i]=float32(v) }
	for i, w:=range o.Weights { g.Weights[i]=float32(w) }
	return g
}

// Fraction of cells holding a value
func (g *Grid) Coverage() float64 {
	if len(g.Data)==0 { return 0 }
	return float64(g.Valid)/float64(len(g.Data))
}

// Statistics over the valid cells
func (g *Grid) Stats() *stats.Stats {
	return stats.New(g.Data, g.Fill)
}

// Output formats
type Format int

const (
	FITS Format = iota
	TIFF16
	NetCDF
)

// Determines the output format from the file name suffix, ignoring compression suffixes for FITS
func FormatOf(fileName string) (Format, error) {
	lower:=strings.ToLower(fileName)
	for _, c:=range []string{".gz", ".gzip", ".zst"} {
		if strings.HasSuffix(lower, c) {
			lower=strings.TrimSuffix(lower, c)
			if ext:=filepath.Ext(lower); ext!=".fits" && ext!=".fit" && ext!=".fts" {
				return 0, errors.Errorf("%s: compression only supported for FITS", fileName)
			}
			return FITS, nil
		}
	}
	switch filepath.Ext(lower) {
	case ".fits", ".fit", ".fts":
		return FITS, nil
	case ".tif", ".tiff":
		return TIFF16, nil
	case ".nc", ".nc4", ".cdf":
		return NetCDF, nil
	}
	return 0, errors.Errorf("%s: unknown output file type", fileName)
}

// Expands a file name pattern for a channel. Every %s is replaced by the channel name
func Expand(pattern, name string) string {
	return strings.ReplaceAll(pattern, "%s", name)
}

// Writes all grids according to the file name pattern. Patterns with %s produce one
// file per channel. A NetCDF pattern without %s collects all channels in one file;
// other formats require %s when there is more than one channel.
// Returns the names of the files written.
func Save(pattern string, grids []*Grid, weights bool, logWriter io.Writer) (fileNames []string, err error) {
	format, err:=FormatOf(pattern)
	if err!=nil { return nil, err }
	perChannel:=strings.Contains(pattern, "%s")

	if !perChannel && format==NetCDF {
		if err:=WriteNetCDFFile(pattern, grids, weights); err!=nil { return nil, err }
		fmt.Fprintf(logWriter, "Wrote %d channels to %s\n", len(grids), pattern)
		return []string{pattern}, nil
	}
	if !perChannel && len(grids)>1 {
		return nil, errors.Errorf("%s: pattern needs %%s to write %d channels", pattern, len(grids))
	}

	for _, g:=range grids {
		fileName:=Expand(pattern, g.Name)
		switch format {
		case FITS:
			err=WriteFITSFile(fileName, g)
		case TIFF16:
			err=WriteTIFF16File(fileName, g)
		case NetCDF:
			err=WriteNetCDFFile(fileName, []*Grid{g}, weights)
		}
		if err!=nil { return fileNames, errors.Wrapf(err, "writing %s", g.Name) }
		fmt.Fprintf(logWriter, "Wrote %s %dx%d to %s\n", g.Name, g.Def.Width, g.Def.Height, fileName)
		fileNames=append(fileNames, fileName)
	}
	return fileNames, nil
}

// Creates or truncates a file and hands it to the writer function
func createWith(fileName string, write func(f *os.File) error) error {
	f, err:=os.Create(fileName)
	if err!=nil { return err }
	if err:=write(f); err!=nil {
		f.Close()
		return err
	}
	return f.Close()
}

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
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"golang.org/x/image/tiff"
	"github.com/ssec/polar2grid-sub004/internal/fits"
	"github.com/ssec/polar2grid-sub004/internal/grid"
)

func testGrids() []*Grid {
	def:=grid.Definition{Name:"test", Proj4:"+proj=longlat +datum=WGS84", CellWidth:0.5, CellHeight:0.5,
	                     OriginX:10, OriginY:50, Width:3, Height:2}
	return []*Grid{
		{Name:"i04", Def:def, Data:[]float32{-999, 1, 2, 3, 4, 5}, Weights:[]float32{0, 1, 1, 1, 1, 2}, Fill:-999, Valid:5},
		{Name:"i05", Def:def, Data:[]float32{7, 7, 7, -999, -999, -999}, Weights:[]float32{1, 1, 1, 0, 0, 0}, Fill:-999, Valid:3},
	}
}

func TestFormatOf(t *testing.T) {
	tcs:=[]struct {
		name string
		want Format
		ok   bool
	}{
		{"out_%s.fits", FITS, true},
		{"out.FITS.gz", FITS, true},
		{"out.fit.zst", FITS, true},
		{"out.tif", TIFF16, true},
		{"out.nc", NetCDF, true},
		{"out.tif.gz", 0, false},
		{"out.png", 0, false},
	}
	for _, tc:=range tcs {
		got, err:=FormatOf(tc.name)
		if (err==nil)!=tc.ok || (tc.ok && got!=tc.want) {
			t.Errorf("FormatOf(%s)=%v,%v; want %v ok=%v", tc.name, got, err, tc.want, tc.ok)
		}
	}
}

func TestSaveFITS(t *testing.T) {
	dir:=t.TempDir()
	grids:=testGrids()
	names, err:=Save(filepath.Join(dir, "out_%s.fits.gz"), grids, false, io.Discard)
	if err!=nil { t.Fatal(err) }
	if len(names)!=2 || filepath.Base(names[1])!="out_i05.fits.gz" { t.Fatalf("names=%v", names) }

	img, err:=fits.ReadFile[float32](names[0], 0, io.Discard)
	if err!=nil { t.Fatal(err) }
	for i, v:=range grids[0].Data {
		if img.Data[i]!=v { t.Errorf("data[%d]=%v; want %v", i, img.Data[i], v) }
	}
	if img.Header.Floats["CDELT2"]!=-0.5 || img.Header.Floats["CRVAL1"]!=10 {
		t.Errorf("CDELT2=%v CRVAL1=%v; want -0.5 10", img.Header.Floats["CDELT2"], img.Header.Floats["CRVAL1"])
	}
	if img.Header.Ints["NVALID"]!=5 { t.Errorf("NVALID=%d; want 5", img.Header.Ints["NVALID"]) }
}

func TestSaveNeedsPattern(t *testing.T) {
	dir:=t.TempDir()
	if _, err:=Save(filepath.Join(dir, "out.tif"), testGrids(), false, io.Discard); err==nil {
		t.Errorf("expected error for two channels without %%s")
	}
}

func TestTIFF16(t *testing.T) {
	dir:=t.TempDir()
	g:=testGrids()[0]
	fileName:=filepath.Join(dir, "out.tif")
	if err:=WriteTIFF16File(fileName, g); err!=nil { t.Fatal(err) }

	f, err:=os.Open(fileName)
	if err!=nil { t.Fatal(err) }
	defer f.Close()
	img, err:=tiff.Decode(f)
	if err!=nil { t.Fatal(err) }
	gray, ok:=img.(*image.Gray16)
	if !ok { t.Fatalf("decoded %T; want *image.Gray16", img) }
	want:=[]uint16{0, 1, 16384, 32768, 49151, 65535}
	for i, w:=range want {
		got:=gray.Gray16At(i%3, i/3).Y
		if math.Abs(float64(got)-float64(w))>1 { t.Errorf("pixel %d=%d; want %d", i, got, w) }
	}
}

func TestNetCDF(t *testing.T) {
	dir:=t.TempDir()
	grids:=testGrids()
	fileName:=filepath.Join(dir, "out.nc")
	if _, err:=Save(fileName, grids, true, io.Discard); err!=nil { t.Fatal(err) }

	ff, err:=os.Open(fileName)
	if err!=nil { t.Fatal(err) }
	defer ff.Close()
	f, err:=cdf.Open(ff)
	if err!=nil { t.Fatal(err) }

	for _, g:=range grids {
		for name, want:=range map[string][]float32{g.Name:g.Data, g.Name+"_weight_sum":g.Weights} {
			if l:=f.Header.Lengths(name); len(l)!=2 || l[0]!=2 || l[1]!=3 {
				t.Errorf("%s: lengths=%v; want [2 3]", name, l)
				continue
			}
			r:=f.Reader(name, nil, nil)
			buf:=r.Zero(len(want))
			if _, err:=r.Read(buf); err!=nil { t.Fatalf("%s: %v", name, err) }
			got:=buf.([]float32)
			for i:=range want {
				if got[i]!=want[i] { t.Errorf("%s[%d]=%v; want %v", name, i, got[i], want[i]) }
			}
		}
	}
}

func TestNetCDFLengthMismatch(t *testing.T) {
	grids:=testGrids()
	grids[0].Data=grids[0].Data[:4]
	err:=WriteNetCDFFile(filepath.Join(t.TempDir(), "short.nc"), grids, false)
	if err==nil || !strings.Contains(err.Error(), "array length is 4") {
		t.Errorf("err=%v; want array length mismatch", err)
	}
}

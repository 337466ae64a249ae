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


package fits

import (
	"fmt"
	"strings"
	"unsafe"
)

// In-memory sample precisions
type Float interface {
	~float32 | ~float64
}

// A FITS image. Used for swath geolocation, swath channels and gridded output.
// Spec here:   https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// Primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image[T Float] struct {
	ID       int         // Sequential ID number, for log output
	FileName string      // Original file name, if any, for log output.

	Header Header        // The header with all keys, values, comments, history entries etc.
	Bitpix int32         // Bits per pixel value from the header. Positive values are integral, negative floating.
	Naxisn []int32       // Axis dimensions. Most quickly varying dimension first (i.e. X,Y)
	Pixels int32         // Number of pixels in the image. Product of Naxisn[]

	Data   []T           // The image data, scaled by BZERO/BSCALE. BLANK values become NaN
}

// Creates a FITS image initialized with empty header
func NewImage[T Float]() *Image[T] {
	return &Image[T]{
		Header:  NewHeader(),
	}
}

// Creates a FITS image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn[T Float](naxisn []int32, data []T) *Image[T] {
	numPixels:=int32(1)
	for _, naxis:=range naxisn {
		numPixels*=naxis
	}
	if data==nil {
		data=make([]T, numPixels)
	}
	return &Image[T]{
		Header:   NewHeader(),
		Bitpix:   bitpixOf[T](),
		Naxisn:   append([]int32(nil), naxisn...), // clone slice
		Pixels:   numPixels,
		Data:     data,
	}
}

// Width and height of a two-dimensional image
func (f *Image[T]) Shape() (width, height int, err error) {
	if len(f.Naxisn)!=2 {
		return 0, 0, fmt.Errorf("%d: expected 2 axes, got %d", f.ID, len(f.Naxisn))
	}
	return int(f.Naxisn[0]), int(f.Naxisn[1]), nil
}

func (f *Image[T]) DimensionsToString() string {
	b:=strings.Builder{}
	for i, naxis:=range f.Naxisn {
		if i>0 { b.WriteString("x") }
		fmt.Fprintf(&b, "%d", naxis)
	}
	return b.String()
}

// Floating point BITPIX for the in-memory precision
func bitpixOf[T Float]() int32 {
	var zero T
	if unsafe.Sizeof(zero)==4 { return -32 }
	return -64
}

// FITS header data
type Header struct {
	Bools    map[string]bool
	Ints     map[string]int32
	Floats   map[string]float64
	Strings  map[string]string
	Dates    map[string]string
	Comments []string
	History  []string
	End      bool
	Length   int32
}

// Creates a FITS header initialized with empty maps and arrays
func NewHeader() Header {
	return Header{
		Bools:   make(map[string]bool),
		Ints:    make(map[string]int32),
		Floats:  make(map[string]float64),
		Strings: make(map[string]string),
		Dates:   make(map[string]string),
		Comments:make([]string,0),
		History: make([]string,0),
		End:     false,
	}
}

const fitsBlockSize  int = 2880       // Block size of FITS header and data units
const HeaderLineSize int =   80       // Line size of a FITS header

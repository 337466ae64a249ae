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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reParser *regexp.Regexp = compileRE() // Regexp parser for FITS header lines

// Reads a FITS image from the file with the given name. Decompresses .gz/.gzip and .zst
func ReadFile[T Float](fileName string, id int, logWriter io.Writer) (*Image[T], error) {
	r, err:=openReader(fileName)
	if err!=nil { return nil, err }
	defer r.Close()

	img:=NewImage[T]()
	img.ID, img.FileName=id, fileName
	if err:=img.Read(r, true, logWriter); err!=nil { return nil, err }
	return img, nil
}

func (fits *Image[T]) PopHeaderInt32(key string) (res int32, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

func (fits *Image[T]) PopHeaderInt32OrFloat(key string) (res float64, err error) {
	if val, ok := fits.Header.Ints[key]; ok {
		delete(fits.Header.Ints, key)
		return float64(val), nil
	} else if val, ok := fits.Header.Floats[key]; ok {
		delete(fits.Header.Floats, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", fits.ID, key)
}

// Reads header and, if readData is set, the primary data array
func (fits *Image[T]) Read(f io.Reader, readData bool, logWriter io.Writer) (err error) {
	err = fits.Header.read(f, fits.ID, logWriter)
	if err != nil {
		return err
	}

	// check mandatory fields as per standard
	if !fits.Header.Bools["SIMPLE"] {
		return fmt.Errorf("%d: Not a valid FITS file; SIMPLE=T missing in header", fits.ID)
	}
	delete(fits.Header.Bools, "SIMPLE")

	if fits.Bitpix, err = fits.PopHeaderInt32("BITPIX"); err != nil {
		return err
	}
	var naxis int32
	if naxis, err = fits.PopHeaderInt32("NAXIS"); err != nil {
		return err
	}
	fits.Naxisn = make([]int32, naxis)
	fits.Pixels = int32(1)
	for i := int32(1); i <= naxis; i++ {
		name := "NAXIS" + strconv.FormatInt(int64(i), 10)
		var nai int32
		if nai, err = fits.PopHeaderInt32(name); err != nil {
			return err
		}
		fits.Naxisn[i-1] = nai
		fits.Pixels *= int32(nai)
	}

	if !readData {
		return nil
	}
	return fits.readData(f, logWriter)
}

// Reads image data, converting from network byte order to T and applying BZERO, BSCALE and BLANK
func (fits *Image[T]) readData(r io.Reader, logWriter io.Writer) error {
	bzero, err:=fits.PopHeaderInt32OrFloat("BZERO")
	if err!=nil { bzero=0 }
	bscale, err:=fits.PopHeaderInt32OrFloat("BSCALE")
	if err!=nil { bscale=1 }
	blank, blankErr:=fits.PopHeaderInt32("BLANK")
	hasBlank:=blankErr==nil && fits.Bitpix>0

	var decode func(b []byte) float64
	switch fits.Bitpix {
	case 8:
		decode=func(b []byte) float64 { return float64(b[0]) }
	case 16:
		decode=func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) }
	case 32:
		decode=func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) }
	case 64:
		decode=func(b []byte) float64 { return float64(int64(binary.BigEndian.Uint64(b))) }
	case -32:
		decode=func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) }
	case -64:
		decode=func(b []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(b)) }
	default:
		return fmt.Errorf("%d: Unknown BITPIX value %d", fits.ID, fits.Bitpix)
	}
	if fits.Bitpix==-64 && bitpixOf[T]()==-32 {
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting float64 to float32 values\n", fits.ID)
	}

	bytesPerValue:=int(fits.Bitpix)/8
	if bytesPerValue<0 { bytesPerValue=-bytesPerValue }
	fits.Data=make([]T, int(fits.Pixels))
	buf:=make([]byte, bufLen-bufLen%bytesPerValue)

	for dataIndex:=0; dataIndex<len(fits.Data); {
		values:=len(fits.Data)-dataIndex
		if values>len(buf)/bytesPerValue { values=len(buf)/bytesPerValue }
		if _, err:=io.ReadFull(r, buf[:values*bytesPerValue]); err!=nil {
			return fmt.Errorf("%d: %s", fits.ID, err.Error())
		}
		for i:=0; i<values; i++ {
			raw:=decode(buf[i*bytesPerValue:])
			if hasBlank && raw==float64(blank) {
				fits.Data[dataIndex+i]=T(math.NaN())
				continue
			}
			fits.Data[dataIndex+i]=T(raw*bscale+bzero)
		}
		dataIndex+=values
	}
	fits.Bitpix=bitpixOf[T]()  // reflect in-memory representation
	return nil
}

const bufLen int = 16 * 1024 // input buffer length for reading from file

func (h *Header) read(r io.Reader, id int, logWriter io.Writer) error {
	buf := make([]byte, fitsBlockSize)

	for h.Length = 0; !h.End; {
		// read next header unit
		bytesRead, err := io.ReadFull(r, buf)
		if err != nil || bytesRead != fitsBlockSize {
			return fmt.Errorf("%d: reading header: %v", id, err)
		}
		h.Length += int32(bytesRead)

		// parse all lines in this header unit
		for lineNo := 0; lineNo < fitsBlockSize/HeaderLineSize && !h.End; lineNo++ {
			line := buf[lineNo*HeaderLineSize : (lineNo+1)*HeaderLineSize]
			subValues := reParser.FindSubmatch(line)
			if subValues == nil {
				fmt.Fprintf(logWriter, "%d: Warning:Cannot parse '%s', ignoring\n", id, string(line))
			} else {
				subNames := reParser.SubexpNames()
				h.readLine(subNames, subValues, id, lineNo, logWriter)
			}
		}
	}
	return nil
}

func (h *Header) readLine(subNames []string, subValues [][]byte, id, lineNo int, logWriter io.Writer) {
	key := ""
	// ignore index 0 which is the whole line
	for i := 1; i < len(subNames); i++ {
		if subValues[i] != nil && len(subNames[i]) == 1 {
			switch c := subNames[i][0]; c {
			case byte('E'): // end line
				h.End = true
			case byte('H'): // history line
				h.History = append(h.History, strings.TrimRight(string(subValues[i]), " "))
			case byte('C'): // comment line
				h.Comments = append(h.Comments, strings.TrimRight(string(subValues[i]), " "))
			case byte('k'): // key
				key = string(subValues[i])
			case byte('b'): // boolean
				if len(subValues[i]) > 0 {
					v := subValues[i][0]
					h.Bools[key] = v == byte('t') || v == byte('T')
				}
			case byte('i'): // int
				val, err := strconv.ParseInt(string(subValues[i]), 10, 64)
				if err == nil {
					h.Ints[key] = int32(val)
				}
			case byte('f'): // float
				val, err := strconv.ParseFloat(string(subValues[i]), 64)
				if err == nil {
					h.Floats[key] = val
				}
			case byte('s'): // string
				h.Strings[key] = string(subValues[i])
			case byte('d'): // date
				h.Dates[key] = string(subValues[i])
			case byte('c'): // comment
				// ignore value comments
			default:
				fmt.Fprintf(logWriter, "%d:%d:Warning:Unknown token '%s'\n", id, lineNo, string(c))
			}
		}
	}
}

// Build regexp parser for FITS header lines
func compileRE() *regexp.Regexp {
	white := "\\s+"
	whiteOpt := "\\s*"
	whiteLine := white

	hist := "HISTORY"
	rest := ".*"
	histLine := hist + white + "(?P<H>" + rest + ")"

	commKey := "COMMENT"
	commLine := commKey + white + "(?P<C>" + rest + ")"

	end := "(?P<E>END)"
	endLine := end + whiteOpt

	key := "(?P<k>[A-Z0-9_-]+)"
	equals := "="

	boo := "(?P<b>[TF])"
	inte := "(?P<i>[+-]?[0-9]+)"
	floa := "(?P<f>[+-]?[0-9]*\\.[0-9]*(?:[ED][-+]?[0-9]+)?)"
	stri := "'(?P<s>[^']*)'"
	date := "(?P<d>[0-9]{1,4}-?[012][0-9]-?[0123][0-9]T[012][0-9]:?[0-5][0-9]:?[0-5][0-9].?[0-9]*)"
	val := "(?:" + boo + "|" + inte + "|" + floa + "|" + stri + "|" + date + ")"

	commOpt := "(?:/(?P<c>.*))?"
	keyLine := key + whiteOpt + equals + whiteOpt + val + whiteOpt + commOpt

	lineRe := "^(?:" + whiteLine + "|" + histLine + "|" + commLine + "|" + keyLine + "|" + endLine + ")$"
	return regexp.MustCompile(lineRe)
}

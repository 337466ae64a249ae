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
	"os"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Opens the named file for reading, decompressing by suffix
func openReader(fileName string) (io.ReadCloser, error) {
	f, err:=os.Open(fileName)
	if err!=nil { return nil, err }
	lower:=strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".gzip"):
		gz, err:=gzip.NewReader(f)
		if err!=nil { f.Close(); return nil, errors.Wrap(err, fileName) }
		return &stackedReadCloser{gz, []io.Closer{gz, f}}, nil
	case strings.HasSuffix(lower, ".zst"):
		dec, err:=zstd.NewReader(f)
		if err!=nil { f.Close(); return nil, errors.Wrap(err, fileName) }
		rc:=dec.IOReadCloser()
		return &stackedReadCloser{rc, []io.Closer{rc, f}}, nil
	}
	return f, nil
}

// Creates or truncates the named file for writing, compressing by suffix
func openWriter(fileName string) (io.WriteCloser, error) {
	f, err:=os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err!=nil { return nil, err }
	lower:=strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".gz") || strings.HasSuffix(lower, ".gzip"):
		gz:=gzip.NewWriter(f)
		return &stackedWriteCloser{gz, []io.Closer{gz, f}}, nil
	case strings.HasSuffix(lower, ".zst"):
		enc, err:=zstd.NewWriter(f)
		if err!=nil { f.Close(); return nil, errors.Wrap(err, fileName) }
		return &stackedWriteCloser{enc, []io.Closer{enc, f}}, nil
	}
	return f, nil
}

// Reader closing a chain of streams, innermost first
type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReadCloser) Close() (err error) {
	for _, c:=range s.closers {
		if e:=c.Close(); e!=nil && err==nil { err=e }
	}
	return err
}

// Writer flushing and closing a chain of streams, outermost first
type stackedWriteCloser struct {
	io.Writer
	closers []io.Closer
}

func (s *stackedWriteCloser) Close() (err error) {
	for _, c:=range s.closers {
		if e:=c.Close(); e!=nil && err==nil { err=e }
	}
	return err
}

// Writes an in-memory FITS image to a file with given filename.
// Creates/overwrites the file if necessary. Compresses .gz/.gzip and .zst
func (fits *Image[T]) WriteFile(fileName string) error {
	w, err:=openWriter(fileName)
	if err!=nil { return err }
	if err:=fits.Write(w); err!=nil {
		w.Close()
		return errors.Wrap(err, fileName)
	}
	return w.Close()
}

// Writes an in-memory FITS image to an io.Writer. NaNs are preserved,
// which FITS readers treat as undefined floating point values.
func (fits *Image[T]) Write(f io.Writer) error {
	bitpix:=bitpixOf[T]()

	// Build header in string buffer
	sb:=strings.Builder{}
	writeBool(&sb, "SIMPLE", true, "    FITS standard 4.0")
	if bitpix==-32 {
		writeInt32(&sb, "BITPIX", bitpix, "    32-bit floating point")
	} else {
		writeInt32(&sb, "BITPIX", bitpix, "    64-bit floating point")
	}
	writeInt32(&sb, "NAXIS",  int32(len(fits.Naxisn)), "[1] Number of axis")
	for i:=0; i<len(fits.Naxisn); i++ {
		writeInt32(&sb, fmt.Sprintf("NAXIS%d",i+1), fits.Naxisn[i], "[1] Axis size")
	}
	fits.Header.write(&sb)
	writeEnd(&sb)

	// Pad current header block with spaces if necessary
	if bytesInHeaderBlock:=sb.Len()%fitsBlockSize; bytesInHeaderBlock>0 {
		sb.WriteString(strings.Repeat(" ", fitsBlockSize-bytesInHeaderBlock))
	}

	// Write header block(s)
	if _, err:=io.WriteString(f, sb.String()); err!=nil { return err }

	// Write payload data and pad the final data block with zeros
	n, err:=writeFloatArray(f, fits.Data)
	if err!=nil { return err }
	if rem:=n%fitsBlockSize; rem>0 {
		_, err=f.Write(make([]byte, fitsBlockSize-rem))
	}
	return err
}

// Writes the user-defined keys of a header in sorted order, followed by comments and history
func (h *Header) write(w io.Writer) {
	for _, k:=range sortedKeys(h.Bools)   { writeBool   (w, k, h.Bools[k],   "") }
	for _, k:=range sortedKeys(h.Ints)    { writeInt32  (w, k, h.Ints[k],    "") }
	for _, k:=range sortedKeys(h.Floats)  { writeFloat64(w, k, h.Floats[k],  "") }
	for _, k:=range sortedKeys(h.Strings) { writeString (w, k, h.Strings[k], "") }
	for _, k:=range sortedKeys(h.Dates)   { writeString (w, k, h.Dates[k],   "") }
	for _, c:=range h.Comments { writeText(w, "COMMENT", c) }
	for _, c:=range h.History  { writeText(w, "HISTORY", c) }
}

func sortedKeys[V any](m map[string]V) []string {
	keys:=make([]string, 0, len(m))
	for k:=range m { keys=append(keys, k) }
	sort.Strings(keys)
	return keys
}

// Writes a FITS header boolean value
func writeBool(w io.Writer, key string, value bool, comment string) {
	if len(key)>8 { key=key[0:8] }
	if len(comment)>47 { comment=comment[0:47] }
	v:="F"
	if value { v="T" }
	fmt.Fprintf(w, "%-8s= %20s / %-47s", key, v, comment)
}

// Writes a FITS header int32 value
func writeInt32(w io.Writer, key string, value int32, comment string) {
	if len(key)>8 { key=key[0:8] }
	if len(comment)>47 { comment=comment[0:47] }
	fmt.Fprintf(w, "%-8s= %20d / %-47s", key, value, comment)
}

// Writes a FITS header float64 value. Always carries a decimal point or exponent, so readers parse it as float
func writeFloat64(w io.Writer, key string, value float64, comment string) {
	if len(key)>8 { key=key[0:8] }
	if len(comment)>47 { comment=comment[0:47] }
	s:=strings.ToUpper(fmt.Sprintf("%.15G", value))
	if !strings.ContainsAny(s, ".E") { s+="." }
	if strings.Contains(s, "E") && !strings.Contains(s, ".") { s=strings.Replace(s, "E", ".E", 1) }
	fmt.Fprintf(w, "%-8s= %20s / %-47s", key, s, comment)
}

// Writes a FITS header string value, truncated to a single line
func writeString(w io.Writer, key, value, comment string) {
	if len(key)>8 { key=key[0:8] }

	// escape ' characters
	value=strings.ReplaceAll(value, "'", "''")
	if len(value)>68 { value=value[:68] }
	if strings.HasSuffix(value, "'") && !strings.HasSuffix(value, "''") { value=value[:len(value)-1] }

	line:=fmt.Sprintf("%-8s= '%-8s'", key, value)
	if pad:=HeaderLineSize-len(line); pad>3 && comment!="" {
		if len(comment)>pad-3 { comment=comment[:pad-3] }
		line+=" / "+comment
	}
	fmt.Fprintf(w, "%-80s", line)
}

// Writes a COMMENT or HISTORY record
func writeText(w io.Writer, key, text string) {
	if len(text)>72 { text=text[:72] }
	fmt.Fprintf(w, "%-8s%-72s", key, text)
}

// Writes a FITS header end record
func writeEnd(w io.Writer) {
	fmt.Fprintf(w, "END%s", strings.Repeat(" ", HeaderLineSize-3))
}

// Writes FITS binary body data in network byte order, using the precision of T.
// Returns the number of bytes written
func writeFloatArray[T Float](w io.Writer, data []T) (int, error) {
	bytesPerValue:=-int(bitpixOf[T]())/8
	perBlock:=bufLen/bytesPerValue
	buf:=make([]byte, bufLen)
	total:=0

	for block:=0; block<len(data); block+=perBlock {
		size:=len(data)-block
		if size>perBlock { size=perBlock }

		for offset:=0; offset<size; offset++ {
			d:=data[block+offset]
			o:=offset*bytesPerValue
			if bytesPerValue==4 {
				binary.BigEndian.PutUint32(buf[o:], math.Float32bits(float32(d)))
			} else {
				binary.BigEndian.PutUint64(buf[o:], math.Float64bits(float64(d)))
			}
		}
		n, err:=w.Write(buf[:size*bytesPerValue])
		total+=n
		if err!=nil { return total, err }
	}
	return total, nil
}

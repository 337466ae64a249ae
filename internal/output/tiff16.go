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
	"bufio"
	"image"
	"image/color"
	"io"
	"os"

	"golang.org/x/image/tiff"
)

// Write a grid to 16-bit grayscale TIFF, scaling valid cells from their minimum
// and maximum to 1..65535. Fill cells become 0.
func WriteTIFF16File(fileName string, g *Grid) error {
	return createWith(fileName, func(f *os.File) error {
		writer:=bufio.NewWriter(f)
		if err:=WriteTIFF16(writer, g); err!=nil { return err }
		return writer.Flush()
	})
}

// Write a grid to 16-bit grayscale TIFF, see WriteTIFF16File
func WriteTIFF16(writer io.Writer, g *Grid) error {
	width, height:=g.Def.Width, g.Def.Height
	img:=image.NewGray16(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})

	s:=g.Stats()
	min, max:=float32(s.Min), float32(s.Max)
	scale:=float32(0)
	if s.Valid>0 && max>min { scale=65534/(max-min) }

	for y:=0; y<height; y++ {
		yoffset:=y*width
		for x:=0; x<width; x++ {
			v:=g.Data[yoffset+x]
			if v==g.Fill || v!=v {
				img.SetGray16(x, y, color.Gray16{0})
				continue
			}
			gray:=float32(65535)
			if scale>0 { gray=1+(v-min)*scale }
			if gray<1 { gray=1 }
			if gray>65535 { gray=65535 }
			img.SetGray16(x, y, color.Gray16{uint16(gray+0.5)})
		}
	}

	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

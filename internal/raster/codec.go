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

package raster

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Default JPEG quality for WriteFile
const DefaultJPEGQuality = 95

// Reads an image file in any registered format into a new buffer.
// Returns the buffer and the name of the detected format.
func ReadFile(fileName string) (b *Buffer, format string, err error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()
	return Read(bufio.NewReader(file))
}

// Decodes an image in any registered format into a new buffer
func Read(r io.Reader) (b *Buffer, format string, err error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", err
	}
	return FromImage(img), format, nil
}

// Writes the buffer to a file, choosing the encoding from the file name suffix
func (b *Buffer) WriteFile(fileName string) error {
	format, err := FormatFromFileName(fileName)
	if err != nil {
		return err
	}

	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := b.Write(writer, format); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// Encodes the buffer in the given format: png, jpeg, tiff or bmp
func (b *Buffer) Write(w io.Writer, format string) error {
	img := b.ToNRGBA()
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg":
		// JPEG has no alpha channel. Transparent pixels turn black
		return jpeg.Encode(w, img, &jpeg.Options{Quality: DefaultJPEGQuality})
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "bmp":
		return bmp.Encode(w, img)
	}
	return errors.New(fmt.Sprintf("unknown output format '%s'", format))
}

// Maps a file name suffix to the name of its encoding
func FormatFromFileName(fileName string) (string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return "png", nil
	case ".jpg", ".jpeg":
		return "jpeg", nil
	case ".tif", ".tiff":
		return "tiff", nil
	case ".bmp":
		return "bmp", nil
	}
	return "", errors.New(fmt.Sprintf("unknown suffix for output file '%s'", fileName))
}

package session

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/womat/debug"
	"github.com/womat/tools"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// hide the lock status before and after reading the display
const cmdDisplay = cmdUnlock + ";:DISP?;" + cmdUnlock

// Display reads the screen of the instrument
func (s *Session) Display() (image.Image, error) {
	data, err := s.queryBlock(cmdDisplay)
	if err != nil {
		return nil, err
	}

	return decodeDisplay(data)
}

// SaveDisplay saves the screen of the instrument to a file, the format
// is taken from the extension: png, bmp, tif, tiff, jpg, jpeg or gif
func (s *Session) SaveDisplay(filename string) (err error) {
	var img image.Image
	var f *os.File

	format := strings.ToLower(filepath.Ext(filename))
	if !supportedFormat(format) {
		return errors.New("utg962.SaveDisplay: " + UnsupportedFormat)
	}

	if img, err = s.Display(); err != nil {
		return
	}

	if f, err = os.Create(filename); err != nil {
		return
	}

	if err = Encode(f, img, format); err != nil {
		_ = f.Close()
		return
	}

	debug.DebugLog.Printf("display saved to %v", filename)
	return f.Close()
}

// decodeDisplay parses the BMP sent by the instrument. It is flipped
// horizontally and red and green are swapped.
func decodeDisplay(data []byte) (image.Image, error) {
	src, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	debug.DebugLog.Printf("display %vx%v", b.Dx(), b.Dy())

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			dst.SetNRGBA(b.Max.X-1-x, y-b.Min.Y, color.NRGBA{R: c.G, G: c.R, B: c.B, A: 0xff})
		}
	}

	return dst, nil
}

func supportedFormat(ext string) bool {
	return tools.In(ext, ".png", ".bmp", ".tif", ".tiff", ".jpg", ".jpeg", ".gif")
}

// Encode writes an image in the format of a file extension, e.g. ".png"
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case ".gif":
		return gif.Encode(w, img, nil)
	}

	return errors.New("utg962.Encode: " + UnsupportedFormat)
}

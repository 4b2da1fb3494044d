// Package codec converts image files to and from the flat interleaved RGB buffers the
// reconstruction engine works on. BMP, PNG and JPEG are supported.
package codec

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

var (
	ErrDecode = errors.New("codec: cannot decode image")
	ErrEncode = errors.New("codec: cannot encode image")
)

// Image is a row-major RGB buffer, three bytes per pixel.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed width x height image.
func New(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]byte, width*height*3)}
}

func (m *Image) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", m.Width, m.Height)
	}
	if len(m.Pix) != m.Width*m.Height*3 {
		return fmt.Errorf("buffer has %d bytes, %dx%d RGB needs %d", len(m.Pix), m.Width, m.Height, m.Width*m.Height*3)
	}
	return nil
}

// FromImage flattens any image.Image into RGB, dropping alpha.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	m := New(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			m.Pix[i], m.Pix[i+1], m.Pix[i+2] = c.R, c.G, c.B
			i += 3
		}
	}
	return m
}

// RGBA expands m into an opaque image.RGBA for the standard encoders.
func (m *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for p := 0; p < m.Width*m.Height; p++ {
		out.Pix[p*4] = m.Pix[p*3]
		out.Pix[p*4+1] = m.Pix[p*3+1]
		out.Pix[p*4+2] = m.Pix[p*3+2]
		out.Pix[p*4+3] = 0xFF
	}
	return out
}

// Decode reads and flattens the image at path.
func Decode(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	defer f.Close()
	m, err := DecodeReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// DecodeReader flattens an image in any registered format.
func DecodeReader(r io.Reader) (*Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromImage(src), nil
}

// Format names an output encoding.
type Format string

const (
	BMP  Format = "bmp"
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// FormatFor picks the format from a file extension, defaulting to BMP.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG
	case ".jpg", ".jpeg":
		return JPEG
	}
	return BMP
}

// Encode writes m to path in the format implied by its extension.
// JPEG is lossy, so a JPEG written here will not reproduce m byte for byte.
func Encode(m *Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncode, path, err)
	}
	if err := EncodeWriter(f, m, FormatFor(path)); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrEncode, path, err)
	}
	return nil
}

func EncodeWriter(w io.Writer, m *Image, format Format) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	var err error
	switch format {
	case PNG:
		err = png.Encode(w, m.RGBA())
	case JPEG:
		err = jpeg.Encode(w, m.RGBA(), &jpeg.Options{Quality: 100})
	case BMP:
		err = bmp.Encode(w, m.RGBA())
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}

package epaper

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
)

var (
	ErrEmptyImage = errors.New("epaper: image has no pixels")
	// ErrPixelCount is returned by EncodeBWR when the pixel count is not a
	// multiple of eight.
	ErrPixelCount = errors.New("epaper: pixel count must be a multiple of 8")
)

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
	FormatMono Format = "mono"
	FormatBWR  Format = "bwr"
)

// ParseFormat accepts the format names and the "jpg" alias, case-insensitively.
func ParseFormat(s string) (Format, bool) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatJPEG, FormatBMP, FormatMono, FormatBWR:
		return f, true
	case "jpg":
		return FormatJPEG, true
	}
	return "", false
}

func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatMono:
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// Encode writes img to w in format f, quantizing first for the panel formats.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatMono:
		out, err := EncodeMono(ToMono(img), IsMonoInk)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case FormatBWR:
		out, err := EncodeBWR(ToBWR(img), IsBWRBlack, IsBWRRed)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	return fmt.Errorf("epaper: unsupported format %q", f)
}

// EncodeMono packs img row by row, eight pixels per byte with the leftmost
// pixel in the most significant bit. Bits start set and are cleared for ink;
// the last byte of a row is padded with set bits when the width is not a
// multiple of eight. The result is a C array literal body: "{", one line of
// "0xNN" bytes per image row, "}".
func EncodeMono(img image.Image, isInk func(color.Color) bool) ([]byte, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	if isInk == nil {
		isInk = IsMonoInk
	}
	var out bytes.Buffer
	out.WriteString("{\n")
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x += 8 {
			v := byte(0xFF)
			for bit := 0; bit < 8 && x+bit < b.Max.X; bit++ {
				if isInk(img.At(x+bit, y)) {
					v &^= 0x80 >> bit
				}
			}
			fmt.Fprintf(&out, "0x%02X", v)
			switch {
			case x+8 < b.Max.X:
				out.WriteString(", ")
			case y+1 < b.Max.Y:
				out.WriteString(",\n")
			default:
				out.WriteString("\n")
			}
		}
	}
	out.WriteString("}")
	return out.Bytes(), nil
}

// EncodeBWR emits two bytes per eight pixels: the black plane byte, then the
// red plane byte, most significant bit first. A black bit is set when the
// pixel is not black, a red bit when it is not red. Pixels are visited in
// column-major order: index i is the pixel (i / height, i % height).
func EncodeBWR(img image.Image, isBlack, isRed func(color.Color) bool) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h
	if n == 0 {
		return nil, ErrEmptyImage
	}
	if n%8 != 0 {
		return nil, ErrPixelCount
	}
	out := make([]byte, 0, n/4)
	for i := 0; i < n; i += 8 {
		var black, red byte
		for k := 0; k < 8; k++ {
			p := i + k
			c := img.At(b.Min.X+p/h, b.Min.Y+p%h)
			mask := byte(0x80) >> k
			if !isBlack(c) {
				black |= mask
			}
			if !isRed(c) {
				red |= mask
			}
		}
		out = append(out, black, red)
	}
	return out, nil
}

// Package epaper turns rendered dashboard screenshots into the formats
// e-paper panels consume: 1-bit mono, three-color black/white/red planes and
// the usual PNG, JPEG and BMP files.
package epaper

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Red is the third ink of black/white/red panels.
var Red = color.RGBA{R: 0xff, A: 0xff}

// BWRPalette is white, black and red, in that order.
var BWRPalette = color.Palette{color.White, color.Black, Red}

// ToMono thresholds img into a 1-bit image with its origin at (0, 0). A bit
// is on (paper) when the pixel is bright.
func ToMono(img image.Image) *image1bit.VerticalLSB {
	b := img.Bounds()
	out := image1bit.NewVerticalLSB(image.Rect(0, 0, b.Dx(), b.Dy()))
	// Transparent pixels stay paper.
	draw.Draw(out, out.Bounds(), &image.Uniform{C: image1bit.On}, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// IsMonoInk reports whether c prints black on a mono panel.
func IsMonoInk(c color.Color) bool {
	return image1bit.BitModel.Convert(c).(image1bit.Bit) == image1bit.Off
}

// ToBWR maps every pixel to the nearest of white, black and red.
func ToBWR(img image.Image) *image.Paletted {
	b := img.Bounds()
	out := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), BWRPalette)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func IsBWRBlack(c color.Color) bool { return BWRPalette.Index(c) == 1 }

func IsBWRRed(c color.Color) bool { return BWRPalette.Index(c) == 2 }

// Resize scales img to size. Images already at size are returned as is.
func Resize(img image.Image, size image.Point) image.Image {
	b := img.Bounds()
	if b.Dx() == size.X && b.Dy() == size.Y {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

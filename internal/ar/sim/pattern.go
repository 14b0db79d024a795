package sim

import (
	"image"
	"image/color"
)

// Checkerboard returns a size x size grayscale image of alternating squares,
// which always passes registration for size >= MinSide.
func Checkerboard(size, square int) image.Image {
	if square <= 0 {
		square = 8
	}
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/square+y/square)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// Flat returns a uniform image that never passes registration.
func Flat(size int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

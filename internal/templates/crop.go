package templates

import (
	"image"
	"math"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/disintegration/imaging"
)

// Crop cuts the normalized region out of img. Coordinates outside 0..1 are
// clamped to the image.
func Crop(img image.Image, region invoice.Region) image.Image {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	px := func(v, size float64) int {
		return int(math.Round(math.Max(0, math.Min(1, v)) * size))
	}
	rect := image.Rect(
		b.Min.X+px(region.Box[0], w), b.Min.Y+px(region.Box[1], h),
		b.Min.X+px(region.Box[2], w), b.Min.Y+px(region.Box[3], h),
	)
	return imaging.Crop(img, rect)
}

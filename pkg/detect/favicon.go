package detect

import (
	"image"
	"image/color"
	"math/bits"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// AverageHash computes a 64-bit perceptual hash: the image is reduced to an
// 8x8 grayscale grid and each bit records whether its cell is brighter than
// the grid mean. Near-identical icons differ in only a few bits even across
// resizes and recompression.
func AverageHash(img image.Image) uint64 {
	const side = 8
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var cells [side * side]uint64
	for cy := 0; cy < side; cy++ {
		for cx := 0; cx < side; cx++ {
			// Sample the center of each cell. Favicons are tiny; full box
			// averaging buys nothing over center sampling at this scale.
			px := bounds.Min.X + (cx*w+w/2)/side
			py := bounds.Min.Y + (cy*h+h/2)/side
			cells[cy*side+cx] = uint64(grayLevel(img.At(px, py)))
		}
	}

	var sum uint64
	for _, c := range cells {
		sum += c
	}
	mean := sum / (side * side)

	var hash uint64
	for i, c := range cells {
		if c > mean {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func grayLevel(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	// ITU-R BT.601 luma, on 16-bit channel values
	y := (299*r + 587*g + 114*b) / 1000
	return uint8(y >> 8)
}

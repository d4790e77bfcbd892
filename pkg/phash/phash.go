// Package phash computes 64-bit difference hashes for listing photos.
package phash

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
)

const (
	hashWidth  = 9
	hashHeight = 8
)

// FromBytes decodes an image and returns its difference hash. Returns 0 when
// the payload is not a decodable image; callers treat a zero hash as absent.
func FromBytes(data []byte) uint64 {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	return FromImage(img)
}

// FromImage computes the row-wise dHash: the image is reduced to a 9x8
// grayscale grid and each bit records whether a pixel's right neighbour is
// brighter than the pixel.
func FromImage(img image.Image) uint64 {
	grid := downsample(img)

	var hash uint64
	for y := 0; y < hashHeight; y++ {
		for x := 0; x < hashWidth-1; x++ {
			hash <<= 1
			if grid[y][x+1] > grid[y][x] {
				hash |= 1
			}
		}
	}
	return hash
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func downsample(img image.Image) [hashHeight][hashWidth]uint32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var grid [hashHeight][hashWidth]uint32
	if w == 0 || h == 0 {
		return grid
	}

	cellW := w / hashWidth
	cellH := h / hashHeight
	if cellW == 0 {
		cellW = 1
	}
	if cellH == 0 {
		cellH = 1
	}

	for gy := 0; gy < hashHeight; gy++ {
		for gx := 0; gx < hashWidth; gx++ {
			var sum, n uint32
			x0 := bounds.Min.X + gx*w/hashWidth
			y0 := bounds.Min.Y + gy*h/hashHeight
			for y := y0; y < y0+cellH && y < bounds.Max.Y; y++ {
				for x := x0; x < x0+cellW && x < bounds.Max.X; x++ {
					r, g, b, _ := img.At(x, y).RGBA()
					// luma approximation on 16-bit channels
					sum += uint32((299*r + 587*g + 114*b) / 1000 >> 8)
					n++
				}
			}
			if n > 0 {
				grid[gy][gx] = sum / n
			}
		}
	}
	return grid
}

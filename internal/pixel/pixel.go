// Package pixel holds buffer-level helpers for RGB images that need no codec.
package pixel

import (
	"image"
	"math"

	"github.com/andresmejia3/facecheck/internal/types"
)

// NormU8 is the Euclidean norm of pix with the sum of squares accumulated in
// an 8-bit register, so it wraps modulo 256. Reference values for the demo
// images were recorded this way and only match under the same arithmetic.
func NormU8(pix []byte) float64 {
	var acc uint8
	for _, p := range pix {
		acc += p * p
	}
	return math.Sqrt(float64(acc))
}

// Norm is the true Euclidean norm of pix.
func Norm(pix []byte) float64 {
	var sum float64
	for _, p := range pix {
		v := float64(p)
		sum += v * v
	}
	return math.Sqrt(sum)
}

// ToNRGBA wraps an RGB buffer as an opaque image.NRGBA.
func ToNRGBA(img types.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, j := 0, 0; i+2 < len(img.Pix); i, j = i+3, j+4 {
		out.Pix[j] = img.Pix[i]
		out.Pix[j+1] = img.Pix[i+1]
		out.Pix[j+2] = img.Pix[i+2]
		out.Pix[j+3] = 255
	}
	return out
}

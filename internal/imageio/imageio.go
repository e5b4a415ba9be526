// Package imageio decodes image files into RGB buffers through OpenCV.
package imageio

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/andresmejia3/facecheck/internal/types"
)

// ErrLoadImage is returned when OpenCV cannot decode a file.
var ErrLoadImage = errors.New("unable to load image")

// LoadRGB reads path and converts OpenCV's BGR channel order to RGB.
func LoadRGB(path string) (types.Image, error) {
	bgr := gocv.IMRead(path, gocv.IMReadColor)
	defer bgr.Close()
	if bgr.Empty() {
		return types.Image{}, fmt.Errorf("%w: %s", ErrLoadImage, path)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	return FromMat(rgb)
}

// FromMat copies a continuous 8-bit 3-channel Mat into an Image.
func FromMat(m gocv.Mat) (types.Image, error) {
	if m.Type() != gocv.MatTypeCV8UC3 {
		return types.Image{}, fmt.Errorf("unsupported mat type %v", m.Type())
	}
	img := types.Image{Width: m.Cols(), Height: m.Rows(), Pix: m.ToBytes()}
	if !img.Valid() {
		return types.Image{}, errors.New("mat is not continuous")
	}
	return img, nil
}

// ToMat wraps an RGB buffer in a new Mat. The caller owns the Mat.
func ToMat(img types.Image) (gocv.Mat, error) {
	if !img.Valid() {
		return gocv.Mat{}, errors.New("invalid image buffer")
	}
	return gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
}

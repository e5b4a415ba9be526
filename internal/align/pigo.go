package align

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/andresmejia3/facecheck/internal/pixel"
	"github.com/andresmejia3/facecheck/internal/types"
)

// PigoParams tunes the cascade scan.
type PigoParams struct {
	MinSize      int     `yaml:"minSize"`
	MaxSize      int     `yaml:"maxSize"`
	ShiftFactor  float64 `yaml:"shiftFactor"`
	ScaleFactor  float64 `yaml:"scaleFactor"`
	IoUThreshold float64 `yaml:"iouThreshold"`
	MinQuality   float32 `yaml:"minQuality"`
}

// DefaultPigoParams are the values recommended by the pigo authors for face cascades.
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// PigoDetector is a pure Go face detector.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
}

// NewPigoDetector unpacks the binary cascade at cascadePath.
func NewPigoDetector(cascadePath string, params PigoParams) (*PigoDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read pigo cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack pigo cascade: %w", err)
	}
	if params == (PigoParams{}) {
		params = DefaultPigoParams()
	}
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// LargestBox runs the cascade and keeps the biggest detection above MinQuality.
func (d *PigoDetector) LargestBox(img types.Image) (types.BoundingBox, bool, error) {
	if !img.Valid() {
		return types.BoundingBox{}, false, fmt.Errorf("invalid image buffer")
	}

	maxSize := d.params.MaxSize
	if m := min(img.Width, img.Height); maxSize <= 0 || maxSize > m {
		maxSize = m
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(pixel.ToNRGBA(img)),
			Rows:   img.Height,
			Cols:   img.Width,
			Dim:    img.Width,
		},
	}

	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)

	return largest(dets, d.params.MinQuality, img.Width, img.Height)
}

// largest converts pigo's (row, col, scale) squares to clipped boxes and returns the biggest.
func largest(dets []pigo.Detection, minQ float32, w, h int) (types.BoundingBox, bool, error) {
	var best types.BoundingBox
	found := false
	for _, det := range dets {
		if det.Q < minQ {
			continue
		}
		half := det.Scale / 2
		bb := types.BoundingBox{
			Left:   max(det.Col-half, 0),
			Top:    max(det.Row-half, 0),
			Right:  min(det.Col+half, w),
			Bottom: min(det.Row+half, h),
		}
		if bb.Area() > best.Area() {
			best = bb
			found = true
		}
	}
	return best, found, nil
}

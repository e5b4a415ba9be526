// Package pipeline chains image loading, alignment and embedding.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/andresmejia3/facecheck/internal/pixel"
	"github.com/andresmejia3/facecheck/internal/types"
	"github.com/andresmejia3/facecheck/internal/utils"
)

// LoadFunc decodes an image file into RGB.
type LoadFunc func(path string) (types.Image, error)

// Aligner finds and normalizes faces.
type Aligner interface {
	LargestFaceBoundingBox(img types.Image) (types.BoundingBox, error)
	Align(imgDim int, img types.Image, bb types.BoundingBox) (types.AlignedFace, error)
}

// Embedder maps an aligned face to a representation.
type Embedder interface {
	Forward(face types.AlignedFace) (types.Rep, error)
}

// Pipeline is image -> largest face -> aligned thumbnail -> rep.
type Pipeline struct {
	Load    LoadFunc
	Aligner Aligner
	Net     Embedder
	ImgDim  int
}

// Measurement captures every intermediate value the harness asserts on.
type Measurement struct {
	Path         string
	Width        int
	Height       int
	RGBNorm      float64 // uint8-accumulated, see pixel.NormU8
	RGBNormTrue  float64
	Box          types.BoundingBox
	AlignedNorm  float64 // uint8-accumulated
	AlignedTrue  float64
	Rep          types.Rep
	CosineToOnes float64
}

func (p *Pipeline) validate() error {
	if p.Load == nil || p.Aligner == nil || p.Net == nil {
		return errors.New("pipeline is missing a stage")
	}
	if p.ImgDim <= 0 {
		return fmt.Errorf("invalid image dimension %d", p.ImgDim)
	}
	return nil
}

// Measure runs the full pipeline on path.
func (p *Pipeline) Measure(path string) (Measurement, error) {
	m := Measurement{Path: path}
	if err := p.validate(); err != nil {
		return m, err
	}

	// 1. Decode
	img, err := p.Load(path)
	if err != nil {
		return m, err
	}
	m.Width, m.Height = img.Width, img.Height
	m.RGBNorm = pixel.NormU8(img.Pix)
	m.RGBNormTrue = pixel.Norm(img.Pix)

	// 2. Detect
	m.Box, err = p.Aligner.LargestFaceBoundingBox(img)
	if err != nil {
		return m, fmt.Errorf("%s: %w", path, err)
	}

	// 3. Align
	face, err := p.Aligner.Align(p.ImgDim, img, m.Box)
	if err != nil {
		return m, fmt.Errorf("align %s: %w", path, err)
	}
	m.AlignedNorm = pixel.NormU8(face.Pix)
	m.AlignedTrue = pixel.Norm(face.Pix)

	// 4. Embed
	m.Rep, err = p.Net.Forward(face)
	if err != nil {
		return m, fmt.Errorf("forward %s: %w", path, err)
	}
	m.CosineToOnes = utils.CosineDist(m.Rep, utils.Ones(len(m.Rep)))
	return m, nil
}

// Rep returns the representation of the largest face in path.
func (p *Pipeline) Rep(path string) (types.Rep, types.BoundingBox, error) {
	m, err := p.Measure(path)
	if err != nil {
		return nil, m.Box, err
	}
	return m.Rep, m.Box, nil
}

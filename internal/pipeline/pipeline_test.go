package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/facecheck/internal/types"
)

type stubAligner struct {
	box    types.BoundingBox
	boxErr error
	face   types.AlignedFace
}

func (s stubAligner) LargestFaceBoundingBox(types.Image) (types.BoundingBox, error) {
	return s.box, s.boxErr
}

func (s stubAligner) Align(int, types.Image, types.BoundingBox) (types.AlignedFace, error) {
	return s.face, nil
}

type stubNet struct{ rep types.Rep }

func (s stubNet) Forward(types.AlignedFace) (types.Rep, error) { return s.rep, nil }

func loader(img types.Image) LoadFunc {
	return func(string) (types.Image, error) { return img, nil }
}

func TestMeasure(t *testing.T) {
	rep := make(types.Rep, types.RepSize)
	rep[0] = 1
	p := &Pipeline{
		Load: loader(types.Image{Width: 1, Height: 1, Pix: []byte{3, 4, 0}}),
		Aligner: stubAligner{
			box:  types.BoundingBox{Left: 1, Top: 2, Right: 3, Bottom: 4},
			face: types.AlignedFace{Image: types.Image{Width: 1, Height: 1, Pix: []byte{16, 1, 0}}},
		},
		Net:    stubNet{rep: rep},
		ImgDim: 1,
	}

	m, err := p.Measure("img.jpg")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, m.RGBNorm, 1e-12)
	assert.InDelta(t, 1.0, m.AlignedNorm, 1e-12) // 256 wraps to 0, plus 1
	assert.InDelta(t, 5.0, m.RGBNormTrue, 1e-12)
	assert.InDelta(t, math.Sqrt(257), m.AlignedTrue, 1e-12)
	assert.Equal(t, types.BoundingBox{Left: 1, Top: 2, Right: 3, Bottom: 4}, m.Box)
	// cos(e0, ones) = 1/sqrt(128)
	assert.InDelta(t, 1-1/math.Sqrt(128), m.CosineToOnes, 1e-12)
}

func TestMeasureErrors(t *testing.T) {
	loadErr := errors.New("unable to load image: x.jpg")
	p := &Pipeline{
		Load:    func(string) (types.Image, error) { return types.Image{}, loadErr },
		Aligner: stubAligner{},
		Net:     stubNet{},
		ImgDim:  96,
	}
	_, err := p.Measure("x.jpg")
	assert.ErrorIs(t, err, loadErr)

	noFace := errors.New("no face detected")
	p.Load = loader(types.Image{Width: 1, Height: 1, Pix: []byte{0, 0, 0}})
	p.Aligner = stubAligner{boxErr: noFace}
	_, _, err = p.Rep("x.jpg")
	assert.ErrorIs(t, err, noFace)
	assert.Contains(t, err.Error(), "x.jpg")

	_, err = (&Pipeline{}).Measure("x.jpg")
	assert.Error(t, err)
}

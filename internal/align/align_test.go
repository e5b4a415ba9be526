package align

import (
	"errors"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/facecheck/internal/types"
)

type fakeBoxes struct {
	bb  types.BoundingBox
	ok  bool
	err error
}

func (f fakeBoxes) LargestBox(types.Image) (types.BoundingBox, bool, error) { return f.bb, f.ok, f.err }

type fakeWarp struct{ calls int }

func (f *fakeWarp) Align(dim int, _ types.Image, _ types.BoundingBox) (types.AlignedFace, error) {
	f.calls++
	return types.AlignedFace{Image: types.Image{Width: dim, Height: dim, Pix: make([]byte, dim*dim*3)}}, nil
}

func TestLargestFaceBoundingBox(t *testing.T) {
	want := types.BoundingBox{Left: 341, Top: 193, Right: 1006, Bottom: 859}
	a := NewWith(fakeBoxes{bb: want, ok: true}, &fakeWarp{})

	got, err := a.LargestFaceBoundingBox(types.Image{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLargestFaceBoundingBox_NoFace(t *testing.T) {
	a := NewWith(fakeBoxes{}, &fakeWarp{})
	_, err := a.LargestFaceBoundingBox(types.Image{})
	assert.ErrorIs(t, err, ErrNoFace)
}

func TestLargestFaceBoundingBox_BackendError(t *testing.T) {
	boom := errors.New("boom")
	a := NewWith(fakeBoxes{err: boom}, &fakeWarp{})
	_, err := a.LargestFaceBoundingBox(types.Image{})
	assert.ErrorIs(t, err, boom)
}

func TestAlignValidation(t *testing.T) {
	warp := &fakeWarp{}
	a := NewWith(fakeBoxes{}, warp)

	_, err := a.Align(0, types.Image{}, types.BoundingBox{Right: 1, Bottom: 1})
	assert.Error(t, err)
	_, err = a.Align(96, types.Image{}, types.BoundingBox{})
	assert.Error(t, err)
	assert.Zero(t, warp.calls, "invalid requests must not reach the engine")

	face, err := a.Align(96, types.Image{}, types.BoundingBox{Right: 10, Bottom: 10})
	require.NoError(t, err)
	assert.Equal(t, 96, face.Width)
	assert.Equal(t, 1, warp.calls)
	a.Close() // no engine owned, must not panic
}

func TestLargestPigoDetection(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 50, Col: 50, Scale: 20, Q: 10},
		{Row: 100, Col: 100, Scale: 80, Q: 9},
		{Row: 60, Col: 60, Scale: 200, Q: 1}, // below quality
	}
	bb, ok, err := largest(dets, 5, 120, 120)
	require.NoError(t, err)
	require.True(t, ok)
	// Clipped to the image on the right/bottom
	assert.Equal(t, types.BoundingBox{Left: 60, Top: 60, Right: 120, Bottom: 120}, bb)

	_, ok, _ = largest(nil, 5, 10, 10)
	assert.False(t, ok)
}

func TestNewPigoDetector_MissingCascade(t *testing.T) {
	_, err := NewPigoDetector("does/not/exist", PigoParams{})
	assert.Error(t, err)
}

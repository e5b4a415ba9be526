// Package align finds and normalizes faces using a pretrained landmark model.
//
// The landmark model is hosted by an external align engine process (see
// package worker). Bounding boxes can alternatively come from an in-process
// pigo cascade, in which case the engine is only used for the warp.
package align

import (
	"context"
	"errors"
	"fmt"

	"github.com/andresmejia3/facecheck/internal/types"
	"github.com/andresmejia3/facecheck/internal/worker"
)

// ErrNoFace is returned when no face is detected in an image.
var ErrNoFace = errors.New("no face detected")

// Detector backends.
const (
	DetectorEngine = "engine"
	DetectorPigo   = "pigo"
)

// BoxDetector finds the largest face in an image.
type BoxDetector interface {
	LargestBox(img types.Image) (types.BoundingBox, bool, error)
}

// Warper produces aligned thumbnails.
type Warper interface {
	Align(dim int, img types.Image, bb types.BoundingBox) (types.AlignedFace, error)
}

// Config binds an aligner to its models.
type Config struct {
	Engine      worker.Config
	Detector    string // DetectorEngine (default) or DetectorPigo
	PigoCascade string
	PigoParams  PigoParams
}

// Aligner is the face-alignment front end used by the pipeline and the demos.
type Aligner struct {
	boxes  BoxDetector
	warp   Warper
	engine *worker.AlignEngine
}

// New starts the align engine for cfg.Engine.LandmarkPath.
func New(ctx context.Context, cfg Config) (*Aligner, error) {
	eng, err := worker.NewAlignEngine(ctx, 0, cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("start align engine: %w", err)
	}

	a := &Aligner{boxes: eng, warp: eng, engine: eng}

	switch cfg.Detector {
	case "", DetectorEngine:
	case DetectorPigo:
		det, err := NewPigoDetector(cfg.PigoCascade, cfg.PigoParams)
		if err != nil {
			eng.Close()
			return nil, err
		}
		a.boxes = det
	default:
		eng.Close()
		return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
	}
	return a, nil
}

// NewWith assembles an aligner from explicit backends.
func NewWith(boxes BoxDetector, warp Warper) *Aligner {
	return &Aligner{boxes: boxes, warp: warp}
}

// Engine exposes the underlying process, nil for aligners built with NewWith.
func (a *Aligner) Engine() *worker.AlignEngine { return a.engine }

// LargestFaceBoundingBox returns the box with the biggest area.
func (a *Aligner) LargestFaceBoundingBox(img types.Image) (types.BoundingBox, error) {
	bb, ok, err := a.boxes.LargestBox(img)
	if err != nil {
		return types.BoundingBox{}, err
	}
	if !ok {
		return types.BoundingBox{}, ErrNoFace
	}
	return bb, nil
}

// Align returns an imgDim x imgDim thumbnail of the face inside bb.
func (a *Aligner) Align(imgDim int, img types.Image, bb types.BoundingBox) (types.AlignedFace, error) {
	if imgDim <= 0 {
		return types.AlignedFace{}, fmt.Errorf("invalid image dimension %d", imgDim)
	}
	if bb.Area() == 0 {
		return types.AlignedFace{}, fmt.Errorf("empty bounding box %+v", bb)
	}
	return a.warp.Align(imgDim, img, bb)
}

// Close stops the engine if this aligner owns one.
func (a *Aligner) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
}

package check

import (
	"context"
	"time"

	"github.com/andresmejia3/facecheck/internal/config"
	"github.com/andresmejia3/facecheck/internal/pipeline"
	"github.com/andresmejia3/facecheck/internal/utils"
)

// PipelineCheck asserts the reference values of a full pipeline pass.
type PipelineCheck struct {
	Pipeline  *pipeline.Pipeline
	ImagePath string
	Expect    config.Pipeline
}

func (c *PipelineCheck) Name() string { return "pipeline" }

// Run never stops at the first mismatch so every deviation is reported at once.
func (c *PipelineCheck) Run(ctx context.Context) Result {
	start := time.Now()
	res := Result{Name: c.Name()}

	m, err := c.Pipeline.Measure(c.ImagePath)
	if err != nil {
		res.Err = err
		return res.finish(start)
	}

	if !utils.IsClose(m.RGBNorm, c.Expect.RGBNorm) {
		res.failf("rgb norm = %.6g, want %.6g", m.RGBNorm, c.Expect.RGBNorm)
	}
	want := c.Expect.Box
	if m.Box.Left != want.Left {
		res.failf("bbox left = %d, want %d", m.Box.Left, want.Left)
	}
	if m.Box.Right != want.Right {
		res.failf("bbox right = %d, want %d", m.Box.Right, want.Right)
	}
	if m.Box.Top != want.Top {
		res.failf("bbox top = %d, want %d", m.Box.Top, want.Top)
	}
	if m.Box.Bottom != want.Bottom {
		res.failf("bbox bottom = %d, want %d", m.Box.Bottom, want.Bottom)
	}
	if !utils.IsClose(m.AlignedNorm, c.Expect.AlignedNorm) {
		res.failf("aligned norm = %.6g, want %.6g", m.AlignedNorm, c.Expect.AlignedNorm)
	}
	if !utils.IsClose(m.CosineToOnes, c.Expect.CosineToOnes) {
		res.failf("cosine distance to ones = %.16g, want %.16g", m.CosineToOnes, c.Expect.CosineToOnes)
	}
	return res.finish(start)
}

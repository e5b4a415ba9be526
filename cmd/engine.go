package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/facecheck/internal/align"
	"github.com/andresmejia3/facecheck/internal/config"
	"github.com/andresmejia3/facecheck/internal/embed"
	"github.com/andresmejia3/facecheck/internal/imageio"
	"github.com/andresmejia3/facecheck/internal/pipeline"
	"github.com/andresmejia3/facecheck/internal/utils"
	"github.com/andresmejia3/facecheck/internal/worker"
)

// faceEngine owns the two pretrained models for the lifetime of a command.
type faceEngine struct {
	*pipeline.Pipeline
	aligner *align.Aligner
	net     *embed.TorchNet
}

// newFaceEngine is swapped in tests to run commands without the models.
var newFaceEngine = startFaceEngine

// startFaceEngine binds an aligner to the landmark model and a network to the network model.
func startFaceEngine(ctx context.Context, cfg *config.Config) (*faceEngine, error) {
	timeout, _ := config.ParseTimeout(cfg.Align.Timeout) // validated on load

	fmt.Fprintln(os.Stderr, "🚀 Starting align engine...")
	aligner, err := align.New(ctx, align.Config{
		Engine: worker.Config{
			Command:      cfg.Align.Engine,
			LandmarkPath: cfg.Resolve(cfg.Models.Landmark),
			ReadTimeout:  timeout,
		},
		Detector:    cfg.Align.Detector,
		PigoCascade: cfg.Resolve(cfg.Models.PigoCascade),
		PigoParams:  cfg.Align.Pigo,
	})
	if err != nil {
		utils.ShowError("Failed to start align engine", err, nil)
		return nil, err
	}

	fmt.Fprintln(os.Stderr, "🧠 Loading embedding network...")
	net, err := embed.NewTorchNet(cfg.Resolve(cfg.Models.Network), cfg.ImgDim)
	if err != nil {
		aligner.Close()
		utils.ShowError("Failed to load network", err, nil)
		return nil, err
	}

	Log.WithField("detector", cfg.Align.Detector).Debug("face engine ready")
	return &faceEngine{
		Pipeline: &pipeline.Pipeline{
			Load:    imageio.LoadRGB,
			Aligner: aligner,
			Net:     net,
			ImgDim:  cfg.ImgDim,
		},
		aligner: aligner,
		net:     net,
	}, nil
}

// engineCmd returns the engine process for crash log dumps.
func (e *faceEngine) engineCmd() *utils.SafeCommand {
	if e.aligner == nil {
		return nil
	}
	if eng := e.aligner.Engine(); eng != nil {
		return eng.Cmd
	}
	return nil
}

func (e *faceEngine) Close() {
	if e.aligner != nil {
		e.aligner.Close()
	}
	if e.net != nil {
		e.net.Close()
	}
}

// fail reports err along with whatever the engine wrote to stderr.
func (e *faceEngine) fail(context string, err error) {
	utils.ShowError(context, err, e.engineCmd())
}

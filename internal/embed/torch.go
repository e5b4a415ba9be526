// Package embed runs the pretrained face embedding network.
package embed

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/andresmejia3/facecheck/internal/imageio"
	"github.com/andresmejia3/facecheck/internal/types"
)

// TorchNet is an nn4-style Torch7 network loaded through OpenCV's dnn module.
type TorchNet struct {
	net    gocv.Net
	imgDim int
	mu     sync.Mutex
}

// NewTorchNet loads the network at modelPath. Faces passed to Forward must be imgDim x imgDim.
func NewTorchNet(modelPath string, imgDim int) (*TorchNet, error) {
	if imgDim <= 0 {
		return nil, fmt.Errorf("invalid image dimension %d", imgDim)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("network model: %w", err)
	}

	net := gocv.ReadNetFromTorch(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load torch network %s", modelPath)
	}
	return &TorchNet{net: net, imgDim: imgDim}, nil
}

// Forward returns the representation of an aligned RGB face.
func (n *TorchNet) Forward(face types.AlignedFace) (types.Rep, error) {
	if face.Width != n.imgDim || face.Height != n.imgDim {
		return nil, fmt.Errorf("aligned face is %dx%d, network expects %dx%d",
			face.Width, face.Height, n.imgDim, n.imgDim)
	}

	mat, err := imageio.ToMat(face.Image)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	// Pixels scaled to [0,1]; the face is already RGB so no channel swap.
	blob := gocv.BlobFromImage(mat, 1.0/255, image.Pt(n.imgDim, n.imgDim), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	n.mu.Lock()
	defer n.mu.Unlock()

	n.net.SetInput(blob, "")
	out := n.net.Forward("")
	defer out.Close()

	if out.Total() != types.RepSize {
		return nil, fmt.Errorf("network produced %d values, want %d", out.Total(), types.RepSize)
	}

	flat := out.Reshape(1, 1)
	defer flat.Close()

	rep := make(types.Rep, types.RepSize)
	for i := range rep {
		rep[i] = float64(flat.GetFloatAt(0, i))
	}
	return rep, nil
}

// Close releases the network.
func (n *TorchNet) Close() error {
	return n.net.Close()
}

package types

// RepSize is the length of an embedding produced by the nn4 family of networks.
const RepSize = 128

// Image is a row-major, three-channel RGB pixel buffer.
type Image struct {
	Width  int
	Height int
	Pix    []byte // len == Width*Height*3
}

// Valid reports whether the buffer length matches the dimensions.
func (im Image) Valid() bool {
	return im.Width > 0 && im.Height > 0 && len(im.Pix) == im.Width*im.Height*3
}

// BoundingBox is a face rectangle in image coordinates (right/bottom exclusive).
type BoundingBox struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

func (b BoundingBox) Width() int  { return b.Right - b.Left }
func (b BoundingBox) Height() int { return b.Bottom - b.Top }

// Area returns 0 for degenerate boxes.
func (b BoundingBox) Area() int {
	if b.Width() <= 0 || b.Height() <= 0 {
		return 0
	}
	return b.Width() * b.Height()
}

// AlignedFace is a square face thumbnail produced by the aligner.
type AlignedFace struct {
	Image
}

// Rep is a face embedding.
type Rep []float64

// Sample pairs a representation with its identity label.
type Sample struct {
	Label string
	Path  string
	Rep   Rep
}

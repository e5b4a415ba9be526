package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/andresmejia3/facecheck/internal/types"
	"github.com/andresmejia3/facecheck/internal/utils" // Using the SafeCommand wrapper
)

// Engine operations.
const (
	OpLargestBox byte = 1
	OpAlign      byte = 2
)

const (
	statusOK    byte = 0
	statusError byte = 1
)

// ErrEngine is wrapped by every error reported by the engine itself.
var ErrEngine = errors.New("engine error")

// Config describes how to launch an align engine.
type Config struct {
	Command      []string      // argv; the landmark model path is appended as the last argument
	LandmarkPath string        // pretrained landmark model handed to the engine
	ReadTimeout  time.Duration // 0 disables the per-call deadline
}

// AlignEngine is a long-lived child process hosting the landmark model.
type AlignEngine struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
	timeout  time.Duration
	mu       sync.Mutex
	broken   error // set once the stream may be out of sync
}

// NewAlignEngine starts the engine and hands it a side-channel pipe for responses.
func NewAlignEngine(ctx context.Context, id int, cfg Config) (*AlignEngine, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("align engine command is empty")
	}
	if _, err := os.Stat(cfg.LandmarkPath); err != nil {
		return nil, fmt.Errorf("landmark model: %w", err)
	}

	// 1. Initialize the SafeCommand
	args := append(append([]string{}, cfg.Command[1:]...), cfg.LandmarkPath)
	eng := utils.NewSafeCommand(ctx, cfg.Command[0], args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	eng.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := eng.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := eng.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("engine %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &AlignEngine{
		ID:       id,
		Cmd:      eng,
		Stdin:    stdin,
		DataPipe: r,
		timeout:  cfg.ReadTimeout,
	}, nil
}

// communicate sends one request and returns the payload following a status OK byte.
// Any transport failure leaves the stream out of sync (a late reply or half a
// frame may still arrive), so the engine is killed and every later call fails.
func (e *AlignEngine) communicate(data []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broken != nil {
		return nil, fmt.Errorf("%w: engine %d is unusable after: %v", ErrEngine, e.ID, e.broken)
	}

	if e.timeout > 0 {
		if f, ok := e.DataPipe.(*os.File); ok {
			_ = f.SetReadDeadline(time.Now().Add(e.timeout))
		}
	}

	// Protocol: [Length][Data]
	if err := binary.Write(e.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, e.fail(err)
	}
	if _, err := e.Stdin.Write(data); err != nil {
		return nil, e.fail(err)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(e.DataPipe, header); err != nil {
		return nil, e.fail(err) // This is where we catch an engine that died during startup
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen == 0 {
		return nil, e.fail(errors.New("empty engine response"))
	}
	resp := make([]byte, respLen)
	if _, err := io.ReadFull(e.DataPipe, resp); err != nil {
		return nil, e.fail(err)
	}

	switch resp[0] {
	case statusOK:
		return resp[1:], nil
	case statusError:
		body := bytes.NewReader(resp[1:])
		var msgLen uint32
		if err := binary.Read(body, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("%w: unreadable message", ErrEngine)
		}
		msg := make([]byte, msgLen)
		if _, err := io.ReadFull(body, msg); err != nil {
			return nil, fmt.Errorf("%w: truncated message", ErrEngine)
		}
		return nil, fmt.Errorf("%w: %s", ErrEngine, msg)
	default:
		return nil, e.fail(fmt.Errorf("unknown engine status %d", resp[0]))
	}
}

// fail marks the engine broken and kills the process. Callers hold e.mu.
func (e *AlignEngine) fail(err error) error {
	e.broken = err
	if e.Cmd != nil && e.Cmd.Process != nil {
		_ = e.Cmd.Process.Kill()
	}
	return err
}

func writeImage(buf *bytes.Buffer, img types.Image) {
	binary.Write(buf, binary.BigEndian, uint32(img.Width))
	binary.Write(buf, binary.BigEndian, uint32(img.Height))
	buf.Write(img.Pix)
}

// LargestBox asks the engine for the largest detected face. ok is false when no face was found.
func (e *AlignEngine) LargestBox(img types.Image) (bb types.BoundingBox, ok bool, err error) {
	if !img.Valid() {
		return bb, false, errors.New("invalid image buffer")
	}

	req := new(bytes.Buffer)
	req.WriteByte(OpLargestBox)
	writeImage(req, img)

	resp, err := e.communicate(req.Bytes())
	if err != nil {
		return bb, false, err
	}

	// Protocol: [Found] [Left Top Right Bottom]
	body := bytes.NewReader(resp)
	found, err := body.ReadByte()
	if err != nil {
		return bb, false, fmt.Errorf("short box response: %w", err)
	}
	if found == 0 {
		return bb, false, nil
	}
	var box [4]int32
	if err := binary.Read(body, binary.BigEndian, &box); err != nil {
		return bb, false, fmt.Errorf("short box response: %w", err)
	}
	return types.BoundingBox{
		Left:   int(box[0]),
		Top:    int(box[1]),
		Right:  int(box[2]),
		Bottom: int(box[3]),
	}, true, nil
}

// Align asks the engine for a dim x dim aligned thumbnail of the face inside bb.
func (e *AlignEngine) Align(dim int, img types.Image, bb types.BoundingBox) (types.AlignedFace, error) {
	if !img.Valid() {
		return types.AlignedFace{}, errors.New("invalid image buffer")
	}

	req := new(bytes.Buffer)
	req.WriteByte(OpAlign)
	binary.Write(req, binary.BigEndian, uint32(dim))
	binary.Write(req, binary.BigEndian, [4]int32{int32(bb.Left), int32(bb.Top), int32(bb.Right), int32(bb.Bottom)})
	writeImage(req, img)

	resp, err := e.communicate(req.Bytes())
	if err != nil {
		return types.AlignedFace{}, err
	}

	// Protocol: [Dim] [Pixels]
	body := bytes.NewReader(resp)
	var gotDim uint32
	if err := binary.Read(body, binary.BigEndian, &gotDim); err != nil {
		return types.AlignedFace{}, fmt.Errorf("short align response: %w", err)
	}
	if int(gotDim) != dim {
		return types.AlignedFace{}, fmt.Errorf("engine aligned to %d, want %d", gotDim, dim)
	}
	pix := make([]byte, dim*dim*3)
	if _, err := io.ReadFull(body, pix); err != nil {
		return types.AlignedFace{}, fmt.Errorf("short align response: %w", err)
	}
	return types.AlignedFace{Image: types.Image{Width: dim, Height: dim, Pix: pix}}, nil
}

// Close stops the engine. Closing stdin is the engine's signal to exit.
func (e *AlignEngine) Close() {
	e.Stdin.Close()
	e.DataPipe.Close()
	if e.Cmd != nil {
		e.Cmd.Wait()
	}
}

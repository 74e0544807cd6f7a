package embed

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// DNN implements Embedder with OpenCV's dnn module. The activations of
// OutputLayer (typically the pooled layer before the classifier head) are
// flattened into the embedding.
type DNN struct {
	config Config
	net    gocv.Net
	mu     sync.Mutex
	closed bool
}

// NewDNN loads the network described by config.
func NewDNN(config Config) (*DNN, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("embedder model path is empty")
	}
	if _, err := os.Stat(config.Model); err != nil {
		return nil, fmt.Errorf("embedder model: %w", err)
	}
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}
	if config.Scale == 0 {
		config.Scale = DefaultConfig().Scale
	}

	net := gocv.ReadNet(config.Model, config.ModelConfig)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("failed to load network from %s", config.Model)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}

	return &DNN{config: config, net: net}, nil
}

// Embed runs a forward pass on the frame and returns a copy of the output activations.
func (d *DNN) Embed(frame *gocv.Mat) (Embedding, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	size := image.Pt(d.config.InputSize, d.config.InputSize)
	mean := gocv.NewScalar(d.config.Mean, d.config.Mean, d.config.Mean, 0)

	blob := gocv.BlobFromImage(*frame, d.config.Scale, size, mean, d.config.SwapRB, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward(d.config.OutputLayer)
	defer out.Close()

	if out.Empty() {
		return nil, fmt.Errorf("network produced no output")
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read activations: %w", err)
	}

	// data aliases the Mat's memory, which is released on return.
	return Embedding(data).Clone(), nil
}

// Close releases the network.
func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// Package embed turns camera frames into fixed-length feature vectors.
package embed

import (
	"errors"
	"math"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when asked to embed a nil or empty frame.
var ErrEmptyFrame = errors.New("empty frame")

// Embedding is a fixed-length feature vector describing one frame.
// Embeddings are treated as immutable once produced.
type Embedding []float32

// Dim returns the dimensionality of the embedding.
func (e Embedding) Dim() int {
	return len(e)
}

// Clone returns a copy that does not share storage with e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Norm returns the Euclidean length of the embedding.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Embedder defines the interface for frame embedding implementations.
type Embedder interface {
	// Embed computes the feature vector of a frame. Visually similar frames
	// must map to embeddings that are close under cosine or Euclidean distance.
	Embed(frame *gocv.Mat) (Embedding, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Config holds options for the DNN embedder.
type Config struct {
	// Model is the path to the network weights (ONNX, Caffe, TensorFlow, ...).
	Model string

	// ModelConfig is the optional network description file for formats that
	// split weights and topology.
	ModelConfig string

	// OutputLayer names the layer whose activations form the embedding.
	// Empty selects the network's default output.
	OutputLayer string

	// InputSize is the square input resolution expected by the network.
	InputSize int

	// Scale and Mean normalise pixel values: (pixel - Mean) * Scale.
	Scale float64
	Mean  float64

	// SwapRB converts OpenCV's BGR order to RGB before inference.
	SwapRB bool
}

// DefaultConfig returns the preprocessing used by MobileNet-family models.
func DefaultConfig() Config {
	return Config{
		InputSize: 224,
		Scale:     1.0 / 127.5,
		Mean:      127.5,
		SwapRB:    true,
	}
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Activation names a layer's element-wise output function.
type Activation string

const (
	Linear Activation = "linear"
	ReLU   Activation = "relu"
)

// Layer is a fully connected layer: out[j] = act(sum_i Weights[j][i]*in[i] + Bias[j]).
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation Activation  `json:"activation"`
}

// DenseNetwork is a frozen feed-forward regressor exported by the offline
// training job. It maps an InputSize window to one scalar.
type DenseNetwork struct {
	Name      string  `json:"name"`
	InputSize int     `json:"input_size"`
	Layers    []Layer `json:"layers"`
}

// LoadDenseNetwork decodes and validates a network artifact.
func LoadDenseNetwork(r io.Reader) (*DenseNetwork, error) {
	var n DenseNetwork
	if err := json.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := n.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %q: %w", n.Name, err)
	}
	return &n, nil
}

// LoadDenseNetworkFile reads a network artifact from disk.
func LoadDenseNetworkFile(path string) (*DenseNetwork, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	return LoadDenseNetwork(f)
}

func (n *DenseNetwork) validate() error {
	if n.InputSize <= 0 {
		return errors.New("input_size must be positive")
	}
	if len(n.Layers) == 0 {
		return errors.New("no layers")
	}
	width := n.InputSize
	for li, l := range n.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Bias) {
			return fmt.Errorf("layer %d: %d weight rows, %d biases", li, len(l.Weights), len(l.Bias))
		}
		for ri, row := range l.Weights {
			if len(row) != width {
				return fmt.Errorf("layer %d row %d: width %d, want %d", li, ri, len(row), width)
			}
		}
		switch l.Activation {
		case Linear, ReLU, "":
		default:
			return fmt.Errorf("layer %d: unknown activation %q", li, l.Activation)
		}
		width = len(l.Weights)
	}
	if width != 1 {
		return fmt.Errorf("output width %d, want 1", width)
	}
	return nil
}

// WindowSize returns the expected input length.
func (n *DenseNetwork) WindowSize() int {
	return n.InputSize
}

// Predict runs a forward pass. The network is read-only during inference, so
// concurrent calls are safe.
func (n *DenseNetwork) Predict(input []float64) (float64, error) {
	if len(input) != n.InputSize {
		return 0, fmt.Errorf("input length %d, want %d", len(input), n.InputSize)
	}
	act := input
	for _, l := range n.Layers {
		next := make([]float64, len(l.Weights))
		for j, row := range l.Weights {
			sum := l.Bias[j]
			for i, w := range row {
				sum += w * act[i]
			}
			if l.Activation == ReLU {
				sum = math.Max(0, sum)
			}
			next[j] = sum
		}
		act = next
	}
	return act[0], nil
}

package model

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/couchcryptid/aq-forecast-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDenseNetworkFile(t *testing.T) {
	n, err := LoadDenseNetworkFile("testdata/persistence.json")
	require.NoError(t, err)
	assert.Equal(t, 7, n.WindowSize())

	out, err := n.Predict([]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, out, 1e-12)
}

func TestDenseNetwork_ReLUHiddenLayer(t *testing.T) {
	n := &DenseNetwork{
		InputSize: 2,
		Layers: []Layer{
			{Weights: [][]float64{{1, 0}, {0, -1}}, Bias: []float64{0, 0}, Activation: ReLU},
			{Weights: [][]float64{{2, 3}}, Bias: []float64{0.5}, Activation: Linear},
		},
	}
	require.NoError(t, n.validate())

	out, err := n.Predict([]float64{1, 4})
	require.NoError(t, err)
	// hidden = [relu(1), relu(-4)] = [1, 0]; out = 2*1 + 3*0 + 0.5
	assert.InDelta(t, 2.5, out, 1e-12)
}

func TestLoadDenseNetwork_ShapeValidation(t *testing.T) {
	cases := map[string]string{
		"no layers":      `{"input_size": 7, "layers": []}`,
		"bad input size": `{"input_size": 0, "layers": [{"weights": [[1]], "bias": [0]}]}`,
		"row width":      `{"input_size": 2, "layers": [{"weights": [[1]], "bias": [0]}]}`,
		"bias mismatch":  `{"input_size": 1, "layers": [{"weights": [[1]], "bias": [0, 1]}]}`,
		"output width":   `{"input_size": 1, "layers": [{"weights": [[1], [1]], "bias": [0, 0]}]}`,
		"activation":     `{"input_size": 1, "layers": [{"weights": [[1]], "bias": [0], "activation": "tanh"}]}`,
		"not json":       `{`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadDenseNetwork(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

type recordingPredictor struct {
	mu     sync.Mutex
	inputs [][]float64
	out    float64
	err    error
}

func (r *recordingPredictor) WindowSize() int { return 3 }

func (r *recordingPredictor) Predict(input []float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, input)
	input[0] = -1 // a misbehaving model must not reach the caller's window
	return r.out, r.err
}

func TestAdapter_CopiesWindow(t *testing.T) {
	p := &recordingPredictor{out: 0.4}
	a := NewAdapter(p, observability.NewMetricsForTesting())

	window := []float64{0.1, 0.2, 0.3}
	out, err := a.Predict(context.Background(), window)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, out, 1e-12)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, window)
}

func TestAdapter_WindowLength(t *testing.T) {
	a := NewAdapter(&recordingPredictor{}, nil)
	_, err := a.Predict(context.Background(), []float64{1})
	require.Error(t, err)
	assert.Equal(t, 3, a.WindowSize())
}

func TestAdapter_PredictorError(t *testing.T) {
	a := NewAdapter(&recordingPredictor{err: errors.New("boom")}, nil)
	_, err := a.Predict(context.Background(), []float64{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAdapter_CancelledContext(t *testing.T) {
	p := &recordingPredictor{}
	a := NewAdapter(p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Predict(ctx, []float64{1, 2, 3})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.inputs)
}

// Package classifier maps face representations to identity labels.
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/andresmejia3/facecheck/internal/types"
)

// Model is a multinomial logistic (softmax) classifier.
type Model struct {
	Labels  []string    `json:"labels"`
	Weights [][]float64 `json:"weights"` // one row per label
	Bias    []float64   `json:"bias"`
}

// TrainOptions controls gradient descent.
type TrainOptions struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainOptions works well for unit-length 128-d reps.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Epochs: 500, LearningRate: 0.5, L2: 1e-4}
}

// Train fits a model with full-batch gradient descent. Results are deterministic.
func Train(samples []types.Sample, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 {
		return nil, errors.New("no training samples")
	}
	if opts.Epochs <= 0 || opts.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid training options %+v", opts)
	}

	dim := len(samples[0].Rep)
	index := map[string]int{}
	for _, s := range samples {
		if len(s.Rep) != dim {
			return nil, fmt.Errorf("sample %q has %d dimensions, want %d", s.Path, len(s.Rep), dim)
		}
		index[s.Label] = 0
	}
	if len(index) < 2 {
		return nil, fmt.Errorf("need at least 2 labels, got %d", len(index))
	}

	labels := make([]string, 0, len(index))
	for l := range index {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for i, l := range labels {
		index[l] = i
	}

	m := &Model{
		Labels:  labels,
		Weights: make([][]float64, len(labels)),
		Bias:    make([]float64, len(labels)),
	}
	for i := range m.Weights {
		m.Weights[i] = make([]float64, dim)
	}

	n := float64(len(samples))
	gradW := make([][]float64, len(labels))
	for i := range gradW {
		gradW[i] = make([]float64, dim)
	}
	gradB := make([]float64, len(labels))

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for k := range gradW {
			clear(gradW[k])
		}
		clear(gradB)

		for _, s := range samples {
			p := m.proba(s.Rep)
			y := index[s.Label]
			for k := range p {
				diff := p[k]
				if k == y {
					diff -= 1
				}
				gradB[k] += diff
				for j, x := range s.Rep {
					gradW[k][j] += diff * x
				}
			}
		}

		for k := range m.Weights {
			m.Bias[k] -= opts.LearningRate * gradB[k] / n
			for j := range m.Weights[k] {
				g := gradW[k][j]/n + opts.L2*m.Weights[k][j]
				m.Weights[k][j] -= opts.LearningRate * g
			}
		}
	}
	return m, nil
}

func (m *Model) proba(rep []float64) []float64 {
	scores := make([]float64, len(m.Labels))
	maxScore := math.Inf(-1)
	for k, w := range m.Weights {
		s := m.Bias[k]
		for j, x := range rep {
			s += w[j] * x
		}
		scores[k] = s
		if s > maxScore {
			maxScore = s
		}
	}
	// Shift by the max score to keep exp() finite.
	var sum float64
	for k := range scores {
		scores[k] = math.Exp(scores[k] - maxScore)
		sum += scores[k]
	}
	for k := range scores {
		scores[k] /= sum
	}
	return scores
}

// PredictProba returns one probability per label, in Labels order.
func (m *Model) PredictProba(rep types.Rep) ([]float64, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if len(rep) != len(m.Weights[0]) {
		return nil, fmt.Errorf("rep has %d dimensions, model expects %d", len(rep), len(m.Weights[0]))
	}
	return m.proba(rep), nil
}

// Predict returns the most probable label and its probability.
func (m *Model) Predict(rep types.Rep) (string, float64, error) {
	p, err := m.PredictProba(rep)
	if err != nil {
		return "", 0, err
	}
	best := 0
	for k := range p {
		if p[k] > p[best] {
			best = k
		}
	}
	return m.Labels[best], p[best], nil
}

func (m *Model) validate() error {
	if len(m.Labels) == 0 || len(m.Weights) != len(m.Labels) || len(m.Bias) != len(m.Labels) {
		return errors.New("malformed classifier model")
	}
	dim := len(m.Weights[0])
	for _, w := range m.Weights {
		if len(w) != dim || dim == 0 {
			return errors.New("malformed classifier model")
		}
	}
	return nil
}

// Save writes the model as JSON.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse classifier model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

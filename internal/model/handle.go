package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Brownie44l1/plantcare-api/internal/imaging"
	"github.com/Brownie44l1/plantcare-api/internal/labels"
)

// Handle is a loaded classifier together with its metadata and label table.
// It is never mutated after construction and may be shared between goroutines.
type Handle struct {
	classifier Classifier
	meta       Metadata
	table      labels.Table
}

// Prediction is the result of one forward pass.
type Prediction struct {
	Index  int
	Scores []float32
}

// NewHandle wraps c. meta must already be valid.
func NewHandle(c Classifier, meta Metadata) (*Handle, error) {
	if c == nil {
		return nil, errors.New("nil classifier")
	}
	table, err := meta.Table()
	if err != nil {
		return nil, err
	}
	return &Handle{classifier: c, meta: meta, table: table}, nil
}

func (h *Handle) Metadata() Metadata { return h.meta }

func (h *Handle) Labels() labels.Table { return h.table }

func (h *Handle) ImageSpec() imaging.Spec { return h.meta.ImageSpec() }

// Predict scores a single preprocessed input and picks the top class.
// The call blocks until inference finishes; ctx is only checked beforehand.
func (h *Handle) Predict(ctx context.Context, input []float32) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if want := h.meta.InputSize(); len(input) != want {
		return Prediction{}, fmt.Errorf("expected %d values, got %d", want, len(input))
	}
	scores, err := h.classifier.Classify(input)
	if err != nil {
		return Prediction{}, err
	}
	if len(scores) != h.table.Len() {
		return Prediction{}, fmt.Errorf("%w: got %d scores for %d labels", ErrScoreCount, len(scores), h.table.Len())
	}
	idx := Argmax(scores)
	if best := float64(scores[idx]); math.IsNaN(best) || math.IsInf(best, 0) {
		return Prediction{}, fmt.Errorf("%w: top score is %v", ErrNoValidScore, best)
	}
	return Prediction{Index: idx, Scores: scores}, nil
}

func (h *Handle) Close() error { return h.classifier.Close() }

// Argmax returns the index of the largest score. Ties go to the lowest
// index and NaN never wins. It returns 0 for an empty slice.
func Argmax(scores []float32) int {
	best := -1
	for i, v := range scores {
		if v != v {
			continue
		}
		if best < 0 || v > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/plantcare-api/internal/diagnosis"
	"github.com/Brownie44l1/plantcare-api/internal/imaging"
	"github.com/Brownie44l1/plantcare-api/internal/labels"
	"github.com/Brownie44l1/plantcare-api/internal/metrics"
	"github.com/Brownie44l1/plantcare-api/internal/model"
)

// ErrInvalidImage marks a request whose upload could not be decoded.
var ErrInvalidImage = errors.New("invalid image")

// ModelProvider hands out the shared model handle.
type ModelProvider interface {
	Get() (*model.Handle, error)
	Ready() bool
}

// Detector runs uploaded images through the classifier.
type Detector struct {
	models ModelProvider
	log    zerolog.Logger
}

func NewDetector(models ModelProvider, log zerolog.Logger) *Detector {
	return &Detector{models: models, log: log}
}

// Ready reports whether the model is loaded.
func (d *Detector) Ready() bool { return d.models.Ready() }

// Labels returns the label table of the loaded model.
func (d *Detector) Labels() (labels.Table, error) {
	h, err := d.models.Get()
	if err != nil {
		return labels.Table{}, err
	}
	return h.Labels(), nil
}

// InputSize returns how many values a raw tensor prediction needs.
func (d *Detector) InputSize() (int, error) {
	h, err := d.models.Get()
	if err != nil {
		return 0, err
	}
	return h.Metadata().InputSize(), nil
}

// Predict decodes data and returns the index of the best scoring class.
func (d *Detector) Predict(ctx context.Context, data []byte) (int, error) {
	p, _, err := d.run(ctx, data)
	if err != nil {
		return 0, err
	}
	return p.Index, nil
}

// Diagnose decodes data, classifies it and formats the result.
func (d *Detector) Diagnose(ctx context.Context, data []byte) (*diagnosis.Diagnosis, error) {
	start := time.Now()
	p, h, err := d.run(ctx, data)
	if err != nil {
		return nil, err
	}
	return d.finish(h, p, start)
}

// DiagnoseTensor classifies an already preprocessed input tensor.
func (d *Detector) DiagnoseTensor(ctx context.Context, input []float32) (*diagnosis.Diagnosis, error) {
	start := time.Now()
	h, err := d.models.Get()
	if err != nil {
		return nil, err
	}
	p, err := h.Predict(ctx, input)
	if err != nil {
		metrics.ObserveFailure("inference")
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	return d.finish(h, p, start)
}

func (d *Detector) run(ctx context.Context, data []byte) (model.Prediction, *model.Handle, error) {
	h, err := d.models.Get()
	if err != nil {
		return model.Prediction{}, nil, err
	}

	img, format, err := imaging.Decode(data)
	if err != nil {
		metrics.ObserveFailure("decode")
		return model.Prediction{}, nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	d.log.Debug().Str("format", format).
		Int("width", img.Bounds().Dx()).Int("height", img.Bounds().Dy()).
		Msg("image decoded")

	input, err := imaging.Tensor(img, h.ImageSpec())
	if err != nil {
		metrics.ObserveFailure("preprocess")
		return model.Prediction{}, nil, fmt.Errorf("failed to preprocess image: %w", err)
	}

	p, err := h.Predict(ctx, input)
	if err != nil {
		metrics.ObserveFailure("inference")
		return model.Prediction{}, nil, fmt.Errorf("prediction failed: %w", err)
	}
	return p, h, nil
}

func (d *Detector) finish(h *model.Handle, p model.Prediction, start time.Time) (*diagnosis.Diagnosis, error) {
	diag, err := diagnosis.New(h.Labels(), p.Index, p.Scores)
	if err != nil {
		metrics.ObserveFailure("label")
		return nil, err
	}
	dur := time.Since(start)
	metrics.ObservePrediction(diag.PlantType, diag.Healthy, dur)
	d.log.Info().
		Str("diagnosis_id", diag.ID).
		Str("label", diag.Label).
		Float32("confidence", diag.Confidence).
		Dur("dur", dur).
		Msg("diagnosis")
	return diag, nil
}

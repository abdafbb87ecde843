package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/plantcare-api/internal/diagnosis"
	"github.com/Brownie44l1/plantcare-api/internal/model"
)

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(input []float32) ([]float32, error) {
	args := m.Called(input)
	if s, ok := args.Get(0).([]float32); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClassifier) Close() error { return m.Called().Error(0) }

func newDetector(t *testing.T, c model.Classifier) *Detector {
	t.Helper()
	loader := model.NewLoader(func() (*model.Handle, error) {
		return model.NewHandle(c, model.DefaultMetadata())
	}, zerolog.Nop())
	return NewDetector(loader, zerolog.Nop())
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.NRGBA{R: 40, G: 160, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func scoresFor(i int) []float32 {
	s := make([]float32, 38)
	for j := range s {
		s[j] = 0.001
	}
	s[i] = 0.9
	return s
}

func TestPredictReturnsValidIndex(t *testing.T) {
	c := new(mockClassifier)
	c.On("Classify", mock.MatchedBy(func(in []float32) bool {
		return len(in) == 128*128*3 && in[0] == 40 && in[1] == 160 && in[2] == 60
	})).Return(scoresFor(37), nil)

	d := newDetector(t, c)
	idx, err := d.Predict(context.Background(), leafPNG(t))
	require.NoError(t, err)
	assert.Equal(t, 37, idx)
	assert.True(t, d.Ready())
	c.AssertExpectations(t)
}

func TestDiagnoseDisease(t *testing.T) {
	c := new(mockClassifier)
	c.On("Classify", mock.Anything).Return(scoresFor(20), nil)

	d := newDetector(t, c)
	diag, err := d.Diagnose(context.Background(), leafPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "Potato", diag.PlantType)
	assert.Equal(t, "Early blight", diag.Condition)
	assert.Equal(t, diagnosis.StatusDisease, diag.Status)
	assert.InDelta(t, 0.9, diag.Confidence, 1e-6)
}

func TestDiagnoseTensor(t *testing.T) {
	c := new(mockClassifier)
	c.On("Classify", mock.Anything).Return(scoresFor(37), nil)

	d := newDetector(t, c)
	n, err := d.InputSize()
	require.NoError(t, err)

	diag, err := d.DiagnoseTensor(context.Background(), make([]float32, n))
	require.NoError(t, err)
	assert.True(t, diag.Healthy)
	assert.Equal(t, "Tomato", diag.PlantType)

	_, err = d.DiagnoseTensor(context.Background(), make([]float32, 3))
	assert.Error(t, err)
}

func TestUndecodableInput(t *testing.T) {
	c := new(mockClassifier)
	d := newDetector(t, c)

	for _, data := range [][]byte{nil, {}, []byte("GIF89a not really")} {
		_, err := d.Predict(context.Background(), data)
		assert.ErrorIs(t, err, ErrInvalidImage)
	}
	c.AssertNotCalled(t, "Classify", mock.Anything)
}

func TestInferenceErrorIsReturned(t *testing.T) {
	c := new(mockClassifier)
	c.On("Classify", mock.Anything).Return(nil, errors.New("onnx: bad input"))

	d := newDetector(t, c)
	_, err := d.Diagnose(context.Background(), leafPNG(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidImage)
	assert.ErrorContains(t, err, "onnx: bad input")
}

func TestNaNScoresAreAnInferenceError(t *testing.T) {
	scores := make([]float32, 38)
	for i := range scores {
		scores[i] = float32(math.NaN())
	}
	c := new(mockClassifier)
	c.On("Classify", mock.Anything).Return(scores, nil)

	d := newDetector(t, c)
	_, err := d.Diagnose(context.Background(), leafPNG(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNoValidScore)
	assert.NotErrorIs(t, err, ErrInvalidImage)
}

func TestModelLoadFailure(t *testing.T) {
	loader := model.NewLoader(func() (*model.Handle, error) {
		return nil, model.ErrArtifactMissing
	}, zerolog.Nop())
	d := NewDetector(loader, zerolog.Nop())

	_, err := d.Predict(context.Background(), leafPNG(t))
	assert.ErrorIs(t, err, model.ErrArtifactMissing)
	_, err = d.Labels()
	assert.ErrorIs(t, err, model.ErrArtifactMissing)
	assert.False(t, d.Ready())
}

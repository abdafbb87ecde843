package diagnosis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/plantcare-api/internal/labels"
)

func indexOf(t *testing.T, name string) int {
	t.Helper()
	for i, l := range labels.Default().Labels() {
		if string(l) == name {
			return i
		}
	}
	t.Fatalf("label %q not in table", name)
	return -1
}

func TestNewDiseaseScenario(t *testing.T) {
	idx := indexOf(t, "Potato___Early_blight")
	d, err := New(labels.Default(), idx, nil)
	require.NoError(t, err)

	assert.Equal(t, "Potato", d.PlantType)
	assert.Equal(t, "Early blight", d.Condition)
	assert.False(t, d.Healthy)
	assert.Equal(t, StatusDisease, d.Status)
	assert.Equal(t, diseaseAdvice, d.Advice)
	assert.Empty(t, d.Top)

	_, err = uuid.Parse(d.ID)
	assert.NoError(t, err)
}

func TestNewHealthyScenario(t *testing.T) {
	idx := indexOf(t, "Tomato___healthy")
	d, err := New(labels.Default(), idx, nil)
	require.NoError(t, err)

	assert.Equal(t, "Tomato", d.PlantType)
	assert.Equal(t, "healthy", d.Condition)
	assert.True(t, d.Healthy)
	assert.Equal(t, StatusHealthy, d.Status)
	assert.Equal(t, healthyAdvice, d.Advice)
}

func TestNewRoutesEveryLabel(t *testing.T) {
	tbl := labels.Default()
	for i, l := range tbl.Labels() {
		d, err := New(tbl, i, nil)
		require.NoError(t, err)
		assert.Equal(t, l.IsHealthy(), d.Healthy, string(l))
		if d.Healthy {
			assert.Equal(t, StatusHealthy, d.Status)
		} else {
			assert.Equal(t, StatusDisease, d.Status)
		}
	}
}

func TestNewAdviceIsNotShared(t *testing.T) {
	d, err := New(labels.Default(), 0, nil)
	require.NoError(t, err)
	d.Advice[0] = "changed"
	assert.Equal(t, "Remove affected leaves", diseaseAdvice[0])
}

func TestNewOutOfRange(t *testing.T) {
	_, err := New(labels.Default(), 38, nil)
	assert.ErrorIs(t, err, labels.ErrOutOfRange)
}

func TestNewTopScores(t *testing.T) {
	tbl := labels.Default()
	scores := make([]float32, tbl.Len())
	scores[5] = 0.7
	scores[2] = 0.2
	scores[9] = 0.05
	scores[30] = 0.05

	d, err := New(tbl, 5, scores)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, d.Confidence, 1e-6)
	require.Len(t, d.Top, 3)
	assert.Equal(t, []int{5, 2, 9}, []int{d.Top[0].Index, d.Top[1].Index, d.Top[2].Index})
	assert.Equal(t, "Cherry_(including_sour)___Powdery_mildew", d.Top[0].Label)
}

func TestNewSkipsNonFiniteScores(t *testing.T) {
	tbl := labels.Default()
	scores := make([]float32, tbl.Len())
	scores[0] = float32(math.NaN())
	scores[3] = float32(math.Inf(-1))
	scores[20] = 0.9
	scores[7] = 0.05

	d, err := New(tbl, 20, scores)
	require.NoError(t, err)
	require.NotEmpty(t, d.Top)
	assert.Equal(t, 20, d.Top[0].Index)
	for _, cs := range d.Top {
		assert.NotContains(t, []int{0, 3}, cs.Index)
	}

	_, err = json.Marshal(d)
	assert.NoError(t, err)
}

func TestNewNaNConfidence(t *testing.T) {
	tbl := labels.Default()
	scores := make([]float32, tbl.Len())
	scores[2] = float32(math.NaN())

	d, err := New(tbl, 2, scores)
	require.NoError(t, err)
	assert.Zero(t, d.Confidence)
	_, err = json.Marshal(d)
	assert.NoError(t, err)
}

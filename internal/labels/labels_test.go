package labels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableShape(t *testing.T) {
	tbl := Default()
	require.Equal(t, DefaultSize, tbl.Len())

	for i, l := range tbl.Labels() {
		plant, cond, err := l.Split()
		require.NoError(t, err, "label %d", i)
		assert.NotEmpty(t, plant)
		assert.NotEmpty(t, cond)
	}
}

func TestLookupIsStable(t *testing.T) {
	tbl := Default()
	for i := 0; i < tbl.Len(); i++ {
		a, err := tbl.Lookup(i)
		require.NoError(t, err)
		b, err := tbl.Lookup(i)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}

	first, _ := tbl.Lookup(0)
	last, _ := tbl.Lookup(37)
	assert.Equal(t, Label("Apple___Apple_scab"), first)
	assert.Equal(t, Label("Tomato___healthy"), last)
}

func TestLookupOutOfRange(t *testing.T) {
	tbl := Default()
	for _, i := range []int{-1, 38, 1000} {
		_, err := tbl.Lookup(i)
		assert.ErrorIs(t, err, ErrOutOfRange)
	}
}

func TestLabelsReturnsCopy(t *testing.T) {
	tbl := Default()
	ls := tbl.Labels()
	ls[0] = "Mutated___label"
	l, _ := tbl.Lookup(0)
	assert.Equal(t, Label("Apple___Apple_scab"), l)
}

func TestHealthyRoutingExhaustive(t *testing.T) {
	healthy := 0
	for _, l := range Default().Labels() {
		want := strings.Contains(strings.ToLower(string(l)), "healthy")
		assert.Equal(t, want, l.IsHealthy(), string(l))
		if l.IsHealthy() {
			healthy++
		}
	}
	assert.Equal(t, 12, healthy)
}

func TestDisplayScenarios(t *testing.T) {
	cases := []struct {
		label     Label
		plant     string
		condition string
		healthy   bool
	}{
		{"Potato___Early_blight", "Potato", "Early blight", false},
		{"Tomato___healthy", "Tomato", "healthy", true},
		{"Corn_(maize)___Cercospora_leaf_spot Gray_leaf_spot", "Corn_(maize)", "Cercospora leaf spot Gray leaf spot", false},
		{"Pepper,_bell___healthy", "Pepper,_bell", "healthy", true},
		{"Corn_(maize)___Common_rust_", "Corn_(maize)", "Common rust ", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.label), func(t *testing.T) {
			assert.Equal(t, tc.plant, tc.label.Plant())
			assert.Equal(t, tc.condition, tc.label.Condition())
			assert.Equal(t, tc.healthy, tc.label.IsHealthy())
		})
	}
}

func TestSplitMalformed(t *testing.T) {
	for _, l := range []Label{"", "Tomato", "Tomato___", "___healthy", "a___b___c"} {
		_, _, err := l.Split()
		assert.ErrorIs(t, err, ErrMalformed, string(l))
		assert.Empty(t, l.Condition())
	}
}

func TestNewTableRejects(t *testing.T) {
	_, err := NewTable(nil)
	assert.Error(t, err)

	_, err = NewTable([]string{"Apple___healthy", "Apple"})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewTable([]string{"Apple___healthy", "Apple___healthy"})
	assert.ErrorContains(t, err, "duplicates")
}

func TestTableEqual(t *testing.T) {
	a, err := NewTable(defaultNames)
	require.NoError(t, err)
	assert.True(t, a.Equal(Default()))

	b, err := NewTable([]string{"Apple___healthy"})
	require.NoError(t, err)
	assert.False(t, b.Equal(Default()))
}

func TestPlants(t *testing.T) {
	assert.Equal(t, []string{
		"Apple", "Blueberry", "Cherry", "Corn", "Grape", "Orange", "Peach",
		"Pepper", "Potato", "Raspberry", "Soybean", "Squash", "Strawberry", "Tomato",
	}, Default().Plants())
}

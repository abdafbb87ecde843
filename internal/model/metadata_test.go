package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/plantcare-api/internal/imaging"
)

func TestDefaultMetadataIsValid(t *testing.T) {
	meta := DefaultMetadata()
	require.NoError(t, meta.Validate())
	assert.Equal(t, 128*128*3, meta.InputSize())
	assert.Equal(t, imaging.DefaultSpec(), meta.ImageSpec())
}

func TestParseMetadataFillsDefaults(t *testing.T) {
	meta, err := ParseMetadata([]byte(`{"input_shape":[1,128,128,3]}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultMetadata(), meta)
}

func TestParseMetadataNCHW(t *testing.T) {
	raw := `{
		"input_name": "pixel_values",
		"output_name": "logits",
		"input_shape": [1, 3, 64, 64],
		"output_shape": [1, 2],
		"classes": ["Tomato___healthy", "Tomato___Late_blight"],
		"layout": "nchw",
		"scale": 0.00392156862,
		"interpolation": "bilinear"
	}`
	meta, err := ParseMetadata([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 64, meta.ImageSize)
	assert.Equal(t, "pixel_values", meta.InputName)
	assert.Equal(t, imaging.LayoutNCHW, meta.ImageSpec().Layout)

	tbl, err := meta.Table()
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestParseMetadataRejects(t *testing.T) {
	cases := map[string]string{
		"not json":            `{`,
		"bad layout":          `{"layout":"hwc"}`,
		"malformed class":     `{"classes":["Tomato"]}`,
		"duplicate classes":   `{"classes":["A___b","A___b"],"output_shape":[1,2]}`,
		"shape mismatch":      `{"output_shape":[1,10]}`,
		"batch of two":        `{"input_shape":[2,128,128,3]}`,
		"grayscale":           `{"input_shape":[1,128,128,1]}`,
		"size mismatch":       `{"image_size":224}`,
		"negative scale":      `{"scale":-1}`,
		"unknown interpolate": `{"interpolation":"sinc"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadMetadataFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "model_metadata.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"image_size":128}`), 0o644))
	meta, err := LoadMetadata(p)
	require.NoError(t, err)
	assert.Len(t, meta.Classes, 38)

	_, err = LoadMetadata(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShippedMetadataMatchesBuiltinTable(t *testing.T) {
	meta, err := LoadMetadata(filepath.Join("..", "..", "models", "model_metadata.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMetadata(), meta)
}

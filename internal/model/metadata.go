package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Brownie44l1/plantcare-api/internal/imaging"
	"github.com/Brownie44l1/plantcare-api/internal/labels"
)

//go:embed metadata.schema.json
var metadataSchema string

const metadataSchemaURL = "plantcare://model/metadata.schema.json"

var compiledSchema = jsonschema.MustCompileString(metadataSchemaURL, metadataSchema)

// Metadata describes the model artifact: tensor names and shapes, the
// preprocessing it expects, and the class ordering of its output.
type Metadata struct {
	InputName     string   `json:"input_name,omitempty"`
	OutputName    string   `json:"output_name,omitempty"`
	InputShape    []int64  `json:"input_shape"`
	OutputShape   []int64  `json:"output_shape"`
	Classes       []string `json:"classes"`
	ImageSize     int      `json:"image_size"`
	Layout        string   `json:"layout,omitempty"`
	Scale         float32  `json:"scale,omitempty"`
	Interpolation string   `json:"interpolation,omitempty"`
}

// DefaultMetadata describes the plant disease classifier.
func DefaultMetadata() Metadata {
	return Metadata{
		InputName:     "input",
		OutputName:    "output",
		InputShape:    []int64{1, 128, 128, 3},
		OutputShape:   []int64{1, labels.DefaultSize},
		Classes:       labels.Default().Strings(),
		ImageSize:     128,
		Layout:        string(imaging.LayoutNHWC),
		Scale:         1,
		Interpolation: "nearest",
	}
}

// LoadMetadata reads and validates a metadata file. Fields the file leaves
// out take their DefaultMetadata values.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(raw)
}

// ParseMetadata validates raw against the metadata schema and decodes it.
func ParseMetadata(raw []byte) (Metadata, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Metadata{}, fmt.Errorf("metadata does not match schema: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	meta.fillDefaults()
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func (m *Metadata) fillDefaults() {
	def := DefaultMetadata()
	if m.InputName == "" {
		m.InputName = def.InputName
	}
	if m.OutputName == "" {
		m.OutputName = def.OutputName
	}
	if m.Layout == "" {
		m.Layout = def.Layout
	}
	if m.Scale == 0 {
		m.Scale = def.Scale
	}
	if m.Interpolation == "" {
		m.Interpolation = def.Interpolation
	}
	if len(m.Classes) == 0 {
		m.Classes = def.Classes
	}
	if len(m.InputShape) == 0 {
		m.InputShape = def.InputShape
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
	if m.ImageSize == 0 {
		if h, _, ok := m.spatial(); ok {
			m.ImageSize = int(h)
		}
	}
}

// spatial returns the height and width encoded in InputShape for the layout.
func (m Metadata) spatial() (h, w int64, ok bool) {
	if len(m.InputShape) != 4 {
		return 0, 0, false
	}
	if imaging.Layout(m.Layout) == imaging.LayoutNCHW {
		return m.InputShape[2], m.InputShape[3], m.InputShape[1] == 3
	}
	return m.InputShape[1], m.InputShape[2], m.InputShape[3] == 3
}

// Validate checks that shapes, preprocessing and classes agree with each other.
func (m Metadata) Validate() error {
	h, w, ok := m.spatial()
	if !ok {
		return fmt.Errorf("input shape %v is not a single-batch RGB image for layout %s", m.InputShape, m.Layout)
	}
	if m.InputShape[0] != 1 {
		return fmt.Errorf("input batch size must be 1, got %d", m.InputShape[0])
	}
	if h != w || int(h) != m.ImageSize {
		return fmt.Errorf("input shape %v does not match image_size %d", m.InputShape, m.ImageSize)
	}
	if len(m.OutputShape) != 2 || m.OutputShape[0] != 1 {
		return fmt.Errorf("output shape %v is not a single-batch score vector", m.OutputShape)
	}
	if int(m.OutputShape[1]) != len(m.Classes) {
		return fmt.Errorf("model scores %d classes but metadata lists %d", m.OutputShape[1], len(m.Classes))
	}
	if err := m.ImageSpec().Validate(); err != nil {
		return err
	}
	if _, err := labels.NewTable(m.Classes); err != nil {
		return fmt.Errorf("invalid class list: %w", err)
	}
	return nil
}

// ImageSpec returns the preprocessing the model input requires.
func (m Metadata) ImageSpec() imaging.Spec {
	return imaging.Spec{
		Width:         m.ImageSize,
		Height:        m.ImageSize,
		Layout:        imaging.Layout(m.Layout),
		Scale:         m.Scale,
		Interpolation: m.Interpolation,
	}
}

// Table returns the label table in model output order.
func (m Metadata) Table() (labels.Table, error) {
	return labels.NewTable(m.Classes)
}

// InputSize is the number of values in one input tensor.
func (m Metadata) InputSize() int {
	n := 1
	for _, d := range m.InputShape {
		n *= int(d)
	}
	return n
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

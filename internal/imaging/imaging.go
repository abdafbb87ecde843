package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/nfnt/resize"
)

// ErrDecode is returned when the input is not a decodable JPEG or PNG image.
var ErrDecode = errors.New("invalid image format, supported: JPEG, PNG")

// Layout is the memory order of the model input.
type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

const channels = 3

// Spec describes the tensor a model expects.
type Spec struct {
	Width         int
	Height        int
	Layout        Layout
	Scale         float32
	Interpolation string
}

// DefaultSpec matches the plant disease classifier: 128x128 RGB, channels
// last, raw 0-255 pixel values, nearest neighbour resampling.
func DefaultSpec() Spec {
	return Spec{Width: 128, Height: 128, Layout: LayoutNHWC, Scale: 1, Interpolation: "nearest"}
}

// Size returns the number of float32 values in one tensor.
func (s Spec) Size() int { return s.Width * s.Height * channels }

func (s Spec) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid input size %dx%d", s.Width, s.Height)
	}
	if s.Layout != LayoutNHWC && s.Layout != LayoutNCHW {
		return fmt.Errorf("unknown layout %q", s.Layout)
	}
	if _, err := ParseInterpolation(s.Interpolation); err != nil {
		return err
	}
	return nil
}

// ParseInterpolation maps a name to a resize interpolation function.
func ParseInterpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(name) {
	case "", "nearest":
		return resize.NearestNeighbor, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchell":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3", "lanczos":
		return resize.Lanczos3, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q", name)
	}
}

// Decode decodes a JPEG or PNG image.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// Tensor resizes img to spec.Width x spec.Height, ignoring aspect ratio,
// and returns its RGB values in spec.Layout order.
func Tensor(img image.Image, spec Spec) ([]float32, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	interp, _ := ParseInterpolation(spec.Interpolation)
	scale := spec.Scale
	if scale == 0 {
		scale = 1
	}

	resized := resize.Resize(uint(spec.Width), uint(spec.Height), img, interp)
	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width != spec.Width || height != spec.Height {
		return nil, fmt.Errorf("resize produced %dx%d, want %dx%d", width, height, spec.Width, spec.Height)
	}

	plane := width * height
	out := make([]float32, channels*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			r := float32(c.R) * scale
			g := float32(c.G) * scale
			b := float32(c.B) * scale

			px := y*width + x
			if spec.Layout == LayoutNCHW {
				out[px] = r
				out[plane+px] = g
				out[2*plane+px] = b
			} else {
				out[px*channels] = r
				out[px*channels+1] = g
				out[px*channels+2] = b
			}
		}
	}
	return out, nil
}

// Preprocess decodes data and converts it to a tensor.
func Preprocess(data []byte, spec Spec) ([]float32, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Tensor(img, spec)
}

// Package visualization renders smoothed grids as grayscale slice images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
)

// Viewer renders slices of a regular grid of smoothed values. Values are
// stored row-major with the last axis varying fastest, the order produced
// by grid.Grid.Points.
type Viewer struct {
	// values holds one smoothed estimate per grid node
	values []float64

	// nodes along the x, y and z axes; a 2-D grid has depth 1
	width  int
	height int
	depth  int

	// finite value range used for normalisation
	lo, hi float64
}

// NewViewer creates a viewer over a 2-D or 3-D grid of values
func NewViewer(values []float64, shape ...int) (*Viewer, error) {
	var w, h, d int
	switch len(shape) {
	case 2:
		w, h, d = shape[0], shape[1], 1
	case 3:
		w, h, d = shape[0], shape[1], shape[2]
	default:
		return nil, fmt.Errorf("only 2-D and 3-D grids can be viewed, got %d axes", len(shape))
	}
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, fmt.Errorf("grid shape %v must be positive", shape)
	}
	if len(values) != w*h*d {
		return nil, fmt.Errorf("grid shape %v needs %d values, got %d", shape, w*h*d, len(values))
	}

	v := &Viewer{
		values: values,
		width:  w,
		height: h,
		depth:  d,
		lo:     math.Inf(1),
		hi:     math.Inf(-1),
	}
	for _, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		v.lo = math.Min(v.lo, x)
		v.hi = math.Max(v.hi, x)
	}
	return v, nil
}

// at returns the value at grid node (x, y, z)
func (v *Viewer) at(x, y, z int) float64 {
	return v.values[(x*v.height+y)*v.depth+z]
}

// gray maps a value onto the 16-bit range; NaN and infinities are black
func (v *Viewer) gray(x float64) color.Gray16 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return color.Gray16{}
	}
	if v.hi <= v.lo {
		return color.Gray16{Y: 0x8000}
	}
	scaled := (x - v.lo) / (v.hi - v.lo) * 65535
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(scaled))))}
}

// ExtractSlice extracts a 2D slice of the grid normal to the given axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Slice in the YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}

		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.at(position, y, z)))
			}
		}

	case "y", "Y":
		// Slice in the XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.at(x, position, z)))
			}
		}

	case "z", "Z":
		// Slice in the XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}

		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.at(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the given axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

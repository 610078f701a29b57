package cpu

import (
	"math"

	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// globalAverage averages every channel over the image into a 1x1 output.
func globalAverage(a *kernelArgs) error {
	if err := a.expect(1, 0); err != nil {
		return err
	}
	in, is := a.inputs[0], a.sizes[0]
	C := is.Channels
	if a.outSize.Count() != C {
		return errors.Errorf("cpu: global average of %s into %s", is, a.outSize)
	}
	sums := make([]float64, C)
	for i, v := range in {
		sums[i%C] += float64(v)
	}
	pixels := float64(is.Width * is.Height)
	for c, s := range sums {
		a.out[c] = float32(s / pixels)
	}
	return nil
}

// instanceNorm normalizes each channel with its own mean and variance over the image:
//
//	out = (x - mean_c) / sqrt(var_c + epsilon) * scale[c] + shift[c]
func instanceNorm(a *kernelArgs) error {
	if err := a.expect(1, 2); err != nil {
		return err
	}
	in, C := a.inputs[0], a.outSize.Channels
	scale, shift := a.weights[0], a.weights[1]
	if err := backend.CheckLen("instance norm scale", len(scale), C); err != nil {
		return err
	}
	if err := backend.CheckLen("instance norm shift", len(shift), C); err != nil {
		return err
	}
	pixels := len(in) / C
	mean := make([]float64, C)
	variance := make([]float64, C)
	for i, v := range in {
		mean[i%C] += float64(v)
	}
	for c := range mean {
		mean[c] /= float64(pixels)
	}
	for i, v := range in {
		d := float64(v) - mean[i%C]
		variance[i%C] += d * d
	}
	for i, v := range in {
		c := i % C
		std := math.Sqrt(variance[c]/float64(pixels) + float64(a.params.Epsilon))
		a.out[i] = activate(a.params.Activation, float32((float64(v)-mean[c])/std)*scale[c]+shift[c])
	}
	return nil
}

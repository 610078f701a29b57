package cpu

import (
	"math"

	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// add sums two images of the same size, then applies the activation.
func add(a *kernelArgs) error {
	if err := a.expect(2, 0); err != nil {
		return err
	}
	if a.sizes[0] != a.sizes[1] || a.sizes[0] != a.outSize {
		return errors.Errorf("cpu: add of %s and %s into %s", a.sizes[0], a.sizes[1], a.outSize)
	}
	for i := range a.out {
		a.out[i] = activate(a.params.Activation, a.inputs[0][i]+a.inputs[1][i])
	}
	return nil
}

// batchNorm normalizes with fixed per-channel statistics:
//
//	out = (x - mean[c]) * scale[c] / sqrt(variance[c] + epsilon) + offset[c]
func batchNorm(a *kernelArgs) error {
	if err := a.expect(1, 4); err != nil {
		return err
	}
	C := a.outSize.Channels
	for i, name := range []string{"mean", "variance", "scale", "offset"} {
		if err := backend.CheckLen("batch norm "+name, len(a.weights[i]), C); err != nil {
			return err
		}
	}
	mean, variance, scale, offset := a.weights[0], a.weights[1], a.weights[2], a.weights[3]
	factor := make([]float32, C)
	for c := range factor {
		factor[c] = scale[c] / float32(math.Sqrt(float64(variance[c]+a.params.Epsilon)))
	}
	for i, v := range a.inputs[0] {
		c := i % C
		a.out[i] = activate(a.params.Activation, (v-mean[c])*factor[c]+offset[c])
	}
	return nil
}

package cpu

import (
	"math"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

func activate(act backend.Activation, v float32) float32 {
	switch act {
	case backend.ActivationRelu:
		return max(v, 0)
	case backend.ActivationRelu6:
		return min(max(v, 0), 6)
	case backend.ActivationTanh:
		return float32(math.Tanh(float64(v)))
	case backend.ActivationSigmoid:
		return float32(1 / (1 + math.Exp(-float64(v))))
	}
	return v
}

// neuron applies the activation elementwise.
func neuron(a *kernelArgs) error {
	if err := a.expect(1, 0); err != nil {
		return err
	}
	if err := backend.CheckLen("neuron output", a.outSize.Count(), len(a.inputs[0])); err != nil {
		return err
	}
	for i, v := range a.inputs[0] {
		a.out[i] = activate(a.params.Activation, v)
	}
	return nil
}

// softmax normalizes the channels of each pixel.
func softmax(a *kernelArgs) error {
	if err := a.expect(1, 0); err != nil {
		return err
	}
	in, C := a.inputs[0], a.outSize.Channels
	if err := backend.CheckLen("softmax output", a.outSize.Count(), len(in)); err != nil {
		return err
	}
	for base := 0; base < len(in); base += C {
		pixel := in[base : base+C]
		m := float32(math.Inf(-1))
		for _, v := range pixel {
			m = max(m, v)
		}
		var sum float64
		for c, v := range pixel {
			e := math.Exp(float64(v - m))
			a.out[base+c] = float32(e)
			sum += e
		}
		for c := range pixel {
			a.out[base+c] = float32(float64(a.out[base+c]) / sum)
		}
	}
	return nil
}

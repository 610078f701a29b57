package cpu

import (
	"math"
)

// maxPool takes the maximum of each window. Windows are clipped to the input, so padding
// never wins.
//
// Example (2x2 window, stride 2, one channel):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func maxPool(a *kernelArgs) error {
	return pool(a, func(window []float32) float32 {
		m := float32(math.Inf(-1))
		for _, v := range window {
			m = max(m, v)
		}
		return m
	})
}

// avgPool averages each window over the taps that fall inside the input.
func avgPool(a *kernelArgs) error {
	return pool(a, func(window []float32) float32 {
		var sum float32
		for _, v := range window {
			sum += v
		}
		return sum / float32(len(window))
	})
}

func pool(a *kernelArgs, reduce func([]float32) float32) error {
	if err := a.expect(1, 0); err != nil {
		return err
	}
	in, is, os, p := a.inputs[0], a.sizes[0], a.outSize, a.params
	window := make([]float32, 0, p.KernelHeight*p.KernelWidth)
	for y := 0; y < os.Height; y++ {
		for x := 0; x < os.Width; x++ {
			for c := 0; c < os.Channels; c++ {
				window = window[:0]
				for kh := 0; kh < p.KernelHeight; kh++ {
					for kw := 0; kw < p.KernelWidth; kw++ {
						if v, ok := at(in, is, x*p.StrideX-p.PadLeft+kw, y*p.StrideY-p.PadTop+kh, c); ok {
							window = append(window, v)
						}
					}
				}
				var v float32
				if len(window) > 0 {
					v = reduce(window)
				}
				a.out[(y*os.Width+x)*os.Channels+c] = v
			}
		}
	}
	return nil
}

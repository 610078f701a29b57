package cpu

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/parallel"
)

// convolution computes a 2D convolution over an HWC image.
//
// Weights: OHWI filter [out][kernelH][kernelW][in], bias [out].
//
//	out[y, x, o] = act(bias[o] + Σ in[y*sy - padTop + kh, x*sx - padLeft + kw, i] * w[o, kh, kw, i])
//
// Taps outside the input read as zero.
func convolution(a *kernelArgs) error {
	if err := a.expect(1, 2); err != nil {
		return err
	}
	in, is, os, p := a.inputs[0], a.sizes[0], a.outSize, a.params
	w, bias := a.weights[0], a.weights[1]
	I, O := is.Channels, os.Channels
	KH, KW := p.KernelHeight, p.KernelWidth
	if err := backend.CheckLen("convolution weights", len(w), O*KH*KW*I); err != nil {
		return err
	}
	if err := backend.CheckLen("convolution bias", len(bias), O); err != nil {
		return err
	}

	parallel.ForPixels(os.Height, os.Width, func(y, x int) {
		for o := 0; o < O; o++ {
			sum := bias[o]
			for kh := 0; kh < KH; kh++ {
				iy := y*p.StrideY - p.PadTop + kh
				if iy < 0 || iy >= is.Height {
					continue
				}
				for kw := 0; kw < KW; kw++ {
					ix := x*p.StrideX - p.PadLeft + kw
					if ix < 0 || ix >= is.Width {
						continue
					}
					src := in[(iy*is.Width+ix)*I:]
					filter := w[((o*KH+kh)*KW+kw)*I:]
					for i := 0; i < I; i++ {
						sum += src[i] * filter[i]
					}
				}
			}
			a.out[(y*os.Width+x)*O+o] = activate(p.Activation, sum)
		}
	}, a.parallel)
	return nil
}

// depthwiseConvolution convolves every input channel with its own filters.
//
// Weights: IOWH filter [in][multiplier][kernelW][kernelH], bias [in*multiplier]. Output
// channel i*multiplier + m is input channel i convolved with filter (i, m).
func depthwiseConvolution(a *kernelArgs) error {
	if err := a.expect(1, 2); err != nil {
		return err
	}
	in, is, os, p := a.inputs[0], a.sizes[0], a.outSize, a.params
	w, bias := a.weights[0], a.weights[1]
	I := is.Channels
	M := os.Channels / I
	KH, KW := p.KernelHeight, p.KernelWidth
	if err := backend.CheckLen("depthwise output channels", os.Channels, I*M); err != nil {
		return err
	}
	if err := backend.CheckLen("depthwise weights", len(w), I*M*KW*KH); err != nil {
		return err
	}
	if err := backend.CheckLen("depthwise bias", len(bias), I*M); err != nil {
		return err
	}

	parallel.ForPixels(os.Height, os.Width, func(y, x int) {
		for i := 0; i < I; i++ {
			for m := 0; m < M; m++ {
				o := i*M + m
				sum := bias[o]
				for kh := 0; kh < KH; kh++ {
					for kw := 0; kw < KW; kw++ {
						v, ok := at(in, is, x*p.StrideX-p.PadLeft+kw, y*p.StrideY-p.PadTop+kh, i)
						if !ok {
							continue
						}
						sum += v * w[kh+KH*(kw+KW*(m+M*i))]
					}
				}
				a.out[(y*os.Width+x)*os.Channels+o] = activate(p.Activation, sum)
			}
		}
	}, a.parallel)
	return nil
}

// fullyConnected multiplies the flattened input by an (out, in) matrix.
//
// Weights: matrix [out][in], bias [out]. The output is a 1x1xout image.
func fullyConnected(a *kernelArgs) error {
	if err := a.expect(1, 2); err != nil {
		return err
	}
	in, os := a.inputs[0], a.outSize
	w, bias := a.weights[0], a.weights[1]
	In, O := len(in), os.Count()
	if err := backend.CheckLen("fully connected weights", len(w), O*In); err != nil {
		return err
	}
	if err := backend.CheckLen("fully connected bias", len(bias), O); err != nil {
		return err
	}
	for o := 0; o < O; o++ {
		sum := bias[o]
		row := w[o*In : (o+1)*In]
		for j, v := range in {
			sum += v * row[j]
		}
		a.out[o] = activate(a.params.Activation, sum)
	}
	return nil
}

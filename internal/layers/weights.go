package layers

// Weight layout transforms. Imported graphs store convolution filters as HWIO
// [height][width][in][out] and dense matrices as [in][out]; the kernels read OHWI filters,
// IOWH depthwise filters and [out][in] matrices. Every transform is a bijection on the flat
// buffer and has an inverse.

// HWIOToOHWI reorders a convolution filter:
//
//	ohwi[i + I*(w + W*(h + H*o))] = hwio[o + O*(i + I*(w + W*h))]
func HWIOToOHWI(hwio []float32, H, W, I, O int) []float32 {
	ohwi := make([]float32, len(hwio))
	for h := 0; h < H; h++ {
		for w := 0; w < W; w++ {
			for i := 0; i < I; i++ {
				for o := 0; o < O; o++ {
					ohwi[i+I*(w+W*(h+H*o))] = hwio[o+O*(i+I*(w+W*h))]
				}
			}
		}
	}
	return ohwi
}

// OHWIToHWIO is the inverse of HWIOToOHWI.
func OHWIToHWIO(ohwi []float32, H, W, I, O int) []float32 {
	hwio := make([]float32, len(ohwi))
	for h := 0; h < H; h++ {
		for w := 0; w < W; w++ {
			for i := 0; i < I; i++ {
				for o := 0; o < O; o++ {
					hwio[o+O*(i+I*(w+W*h))] = ohwi[i+I*(w+W*(h+H*o))]
				}
			}
		}
	}
	return hwio
}

// HWIOToIOWH reorders a depthwise filter, where O is the channel multiplier:
//
//	iowh[h + H*(w + W*(o + O*i))] = hwio[o + O*(i + I*(w + W*h))]
func HWIOToIOWH(hwio []float32, H, W, I, O int) []float32 {
	iowh := make([]float32, len(hwio))
	for h := 0; h < H; h++ {
		for w := 0; w < W; w++ {
			for i := 0; i < I; i++ {
				for o := 0; o < O; o++ {
					iowh[h+H*(w+W*(o+O*i))] = hwio[o+O*(i+I*(w+W*h))]
				}
			}
		}
	}
	return iowh
}

// IOWHToHWIO is the inverse of HWIOToIOWH.
func IOWHToHWIO(iowh []float32, H, W, I, O int) []float32 {
	hwio := make([]float32, len(iowh))
	for h := 0; h < H; h++ {
		for w := 0; w < W; w++ {
			for i := 0; i < I; i++ {
				for o := 0; o < O; o++ {
					hwio[o+O*(i+I*(w+W*h))] = iowh[h+H*(w+W*(o+O*i))]
				}
			}
		}
	}
	return hwio
}

// InOutToOutIn transposes an [in][out] matrix.
func InOutToOutIn(m []float32, in, out int) []float32 {
	return transpose(m, in, out)
}

// OutInToInOut is the inverse of InOutToOutIn.
func OutInToInOut(m []float32, in, out int) []float32 {
	return transpose(m, out, in)
}

func transpose(m []float32, rows, cols int) []float32 {
	t := make([]float32, len(m))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			t[c*rows+r] = m[r*cols+c]
		}
	}
	return t
}

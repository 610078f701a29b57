package cpu

import (
	"github.com/pkg/errors"
)

// copyKernel writes the input into the output starting at (OffsetX, OffsetY, OffsetC). The
// rest of the output is left untouched, so several copies can assemble one image.
func copyKernel(a *kernelArgs) error {
	if err := a.expect(1, 0); err != nil {
		return err
	}
	in, is, os, p := a.inputs[0], a.sizes[0], a.outSize, a.params
	if p.OffsetX+is.Width > os.Width || p.OffsetY+is.Height > os.Height || p.OffsetC+is.Channels > os.Channels {
		return errors.Errorf("cpu: copy of %s at (%d,%d,%d) overflows %s", is, p.OffsetX, p.OffsetY, p.OffsetC, os)
	}
	for y := 0; y < is.Height; y++ {
		for x := 0; x < is.Width; x++ {
			src := in[(y*is.Width+x)*is.Channels:][:is.Channels]
			dst := ((y+p.OffsetY)*os.Width + x + p.OffsetX) * os.Channels
			copy(a.out[dst+p.OffsetC:], src)
		}
	}
	return nil
}

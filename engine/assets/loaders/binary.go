package loaders

import (
	"fmt"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// BinaryLoader stores the raw bytes unchanged. With the "align" param set to
// 4 the data must be a whole number of 32-bit words, as SPIR-V bytecode is.
type BinaryLoader struct{}

func (bl *BinaryLoader) Import(src codec.Source) (ir.Asset, error) {
	if align, err := intParam(src, "align", 1); err != nil {
		return nil, err
	} else if align > 1 && len(src.Data)%align != 0 {
		return nil, fmt.Errorf("%s: size %d is not a multiple of %d", src.Path, len(src.Data), align)
	}
	data := make([]byte, len(src.Data))
	copy(data, src.Data)
	return &ir.Blob{Data: data}, nil
}

package assets

import (
	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/loaders"
)

// NewRegistry returns a frozen registry with the built-in codecs and the
// default importers.
func NewRegistry() (*codec.Registry, error) {
	r := codec.NewRegistry()
	if err := codec.RegisterBuiltinCodecs(r); err != nil {
		return nil, err
	}
	if err := loaders.RegisterDefaults(r); err != nil {
		return nil, err
	}
	r.Freeze()
	return r, nil
}

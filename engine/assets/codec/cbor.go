package codec

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// encMode uses Core Deterministic Encoding: sorted map keys and the
// shortest integer forms, so equal IR always yields identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		// a corrupted length prefix must not allocate gigabytes
		MaxArrayElements: 1 << 27,
		MaxMapPairs:      1 << 20,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with the deterministic encoder.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// cborCodec encodes the IR struct T behind its pointer type PT.
type cborCodec[T any, PT interface {
	*T
	ir.Asset
}] struct {
	kind ir.Kind
}

func (c cborCodec[T, PT]) encode(asset ir.Asset) ([]byte, error) {
	v, ok := asset.(PT)
	if !ok || v == nil {
		return nil, fmt.Errorf("%s codec cannot encode %T", c.kind, asset)
	}
	return encMode.Marshal(v)
}

func (c cborCodec[T, PT]) decode(data []byte) (ir.Asset, error) {
	var v T
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%s codec: %w", c.kind, err)
	}
	return PT(&v), nil
}

func registerCBOR[T any, PT interface {
	*T
	ir.Asset
}](r *Registry, kind ir.Kind) error {
	c := cborCodec[T, PT]{kind: kind}
	return r.RegisterCodec(kind, c.encode, c.decode)
}

// RegisterBuiltinCodecs registers the CBOR codec of every IR kind.
func RegisterBuiltinCodecs(r *Registry) error {
	for _, reg := range []func(*Registry) error{
		func(r *Registry) error { return registerCBOR[ir.Texture](r, ir.KindTexture) },
		func(r *Registry) error { return registerCBOR[ir.Mesh](r, ir.KindMesh) },
		func(r *Registry) error { return registerCBOR[ir.Audio](r, ir.KindAudio) },
		func(r *Registry) error { return registerCBOR[ir.Shader](r, ir.KindShader) },
		func(r *Registry) error { return registerCBOR[ir.Material](r, ir.KindMaterial) },
		func(r *Registry) error { return registerCBOR[ir.Font](r, ir.KindFont) },
		func(r *Registry) error { return registerCBOR[ir.Dictionary](r, ir.KindDictionary) },
		func(r *Registry) error { return registerCBOR[ir.Blob](r, ir.KindBlob) },
		func(r *Registry) error { return registerCBOR[ir.Cubemap](r, ir.KindCubemap) },
		func(r *Registry) error { return registerCBOR[ir.Notes](r, ir.KindNotes) },
	} {
		if err := reg(r); err != nil {
			return err
		}
	}
	return nil
}

var (
	builtinOnce sync.Once
	builtin     *Registry
)

// Builtin returns a frozen registry holding only the built-in codecs. It is
// enough to decode containers; importers are registered elsewhere.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		builtin = NewRegistry()
		if err := RegisterBuiltinCodecs(builtin); err != nil {
			panic("codec: builtin registration failed: " + err.Error())
		}
		builtin.Freeze()
	})
	return builtin
}

package ir

// Blob carries opaque bytes the engine interprets elsewhere.
type Blob struct {
	Data []byte `cbor:"data"`
}

func (b *Blob) Kind() Kind { return KindBlob }

func (b *Blob) MemoryUsage() int { return len(b.Data) }

package ir

import "time"

// Audio holds decoded PCM as interleaved float32 samples in [-1, 1].
type Audio struct {
	SampleRate uint32    `cbor:"sample_rate"`
	Channels   uint8     `cbor:"channels"`
	Samples    []float32 `cbor:"samples"`
}

func (a *Audio) Kind() Kind { return KindAudio }

func (a *Audio) MemoryUsage() int { return len(a.Samples) * 4 }

func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / int(a.Channels)
}

func (a *Audio) Duration() time.Duration {
	if a.SampleRate == 0 {
		return 0
	}
	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

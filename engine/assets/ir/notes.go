package ir

import (
	"fmt"
	"time"
)

type NoteEventType uint8

const (
	NoteOn   NoteEventType = 1
	NoteOff  NoteEventType = 2
	NoteIdle NoteEventType = 3
)

func (t NoteEventType) String() string {
	switch t {
	case NoteOn:
		return "on"
	case NoteOff:
		return "off"
	case NoteIdle:
		return "idle"
	}
	return fmt.Sprintf("note_event(%d)", uint8(t))
}

// NoteEvent is one step of a note sequence. Channel, Note and Velocity are
// MIDI ranged; Idle is only set on NoteIdle events.
type NoteEvent struct {
	Type     NoteEventType `cbor:"type"`
	Channel  uint8         `cbor:"channel,omitempty"`
	Note     uint8         `cbor:"note,omitempty"`
	Velocity uint8         `cbor:"velocity,omitempty"`
	// milliseconds
	Idle float32 `cbor:"idle,omitempty"`
}

// Notes is a sequence of note events played by the synthesizer in order.
type Notes struct {
	Events []NoteEvent `cbor:"events"`
}

func (n *Notes) Kind() Kind { return KindNotes }

func (n *Notes) MemoryUsage() int { return len(n.Events) * 8 }

// Duration is the total idle time of the sequence.
func (n *Notes) Duration() time.Duration {
	var ms float64
	for _, e := range n.Events {
		if e.Type == NoteIdle {
			ms += float64(e.Idle)
		}
	}
	return time.Duration(ms * float64(time.Millisecond))
}

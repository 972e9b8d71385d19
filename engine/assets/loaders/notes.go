package loaders

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

// NotesLoader imports plain text note sequences, one event per line:
//
//	# comment
//	on   <channel> <note> <velocity>
//	off  <channel> <note>
//	idle <milliseconds>
type NotesLoader struct{}

func (nl *NotesLoader) Import(src codec.Source) (ir.Asset, error) {
	notes := &ir.Notes{}
	scanner := bufio.NewScanner(bytes.NewReader(src.Data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		ev, err := parseNoteEvent(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", src.Path, lineNo, err)
		}
		notes.Events = append(notes.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func parseNoteEvent(fields []string) (ir.NoteEvent, error) {
	args := fields[1:]
	switch strings.ToLower(fields[0]) {
	case "on":
		v, err := midiArgs(args, 3)
		if err != nil {
			return ir.NoteEvent{}, err
		}
		return ir.NoteEvent{Type: ir.NoteOn, Channel: v[0], Note: v[1], Velocity: v[2]}, nil
	case "off":
		v, err := midiArgs(args, 2)
		if err != nil {
			return ir.NoteEvent{}, err
		}
		return ir.NoteEvent{Type: ir.NoteOff, Channel: v[0], Note: v[1]}, nil
	case "idle":
		if len(args) != 1 {
			return ir.NoteEvent{}, fmt.Errorf("idle takes 1 argument, got %d", len(args))
		}
		ms, err := strconv.ParseFloat(args[0], 32)
		if err != nil || ms < 0 {
			return ir.NoteEvent{}, fmt.Errorf("invalid idle time %q", args[0])
		}
		return ir.NoteEvent{Type: ir.NoteIdle, Idle: float32(ms)}, nil
	}
	return ir.NoteEvent{}, fmt.Errorf("unknown note event %q", fields[0])
}

// midiArgs parses n 7-bit values.
func midiArgs(args []string, n int) ([]uint8, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	out := make([]uint8, n)
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 8)
		if err != nil || v > 127 {
			return nil, fmt.Errorf("invalid value %q, expected 0..127", a)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

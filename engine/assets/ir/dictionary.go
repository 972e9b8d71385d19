package ir

import "fmt"

type ValueType uint8

const (
	ValueString ValueType = iota + 1
	ValueInt
	ValueUint
	ValueFloat
	ValueBool
	ValueArray
	ValueMap
)

func (t ValueType) String() string {
	switch t {
	case ValueString:
		return "string"
	case ValueInt:
		return "int"
	case ValueUint:
		return "uint"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueArray:
		return "array"
	case ValueMap:
		return "map"
	}
	return fmt.Sprintf("value(%d)", uint8(t))
}

// Value is a typed node of a dictionary tree. Only the field selected by
// Type is meaningful.
type Value struct {
	Type   ValueType   `cbor:"t"`
	String string      `cbor:"s,omitempty"`
	Int    int64       `cbor:"i,omitempty"`
	Uint   uint64      `cbor:"u,omitempty"`
	Float  float64     `cbor:"f,omitempty"`
	Bool   bool        `cbor:"b,omitempty"`
	Array  []Value     `cbor:"a,omitempty"`
	Map    []DictEntry `cbor:"m,omitempty"`
}

func StringValue(s string) Value  { return Value{Type: ValueString, String: s} }
func IntValue(i int64) Value      { return Value{Type: ValueInt, Int: i} }
func UintValue(u uint64) Value    { return Value{Type: ValueUint, Uint: u} }
func FloatValue(f float64) Value  { return Value{Type: ValueFloat, Float: f} }
func BoolValue(b bool) Value      { return Value{Type: ValueBool, Bool: b} }
func ArrayValue(v ...Value) Value { return Value{Type: ValueArray, Array: v} }
func MapValue(e ...DictEntry) Value {
	return Value{Type: ValueMap, Map: e}
}

func (v Value) memoryUsage() int {
	n := 32 + len(v.String)
	for _, a := range v.Array {
		n += a.memoryUsage()
	}
	for _, e := range v.Map {
		n += len(e.Key) + e.Value.memoryUsage()
	}
	return n
}

type DictEntry struct {
	Key   string `cbor:"k"`
	Value Value  `cbor:"v"`
}

// Dictionary is an ordered key/value tree, typically game data tables.
type Dictionary struct {
	Entries []DictEntry `cbor:"entries"`
}

func (d *Dictionary) Kind() Kind { return KindDictionary }

func (d *Dictionary) MemoryUsage() int {
	n := 0
	for _, e := range d.Entries {
		n += len(e.Key) + e.Value.memoryUsage()
	}
	return n
}

// Lookup walks nested maps following path.
func (d *Dictionary) Lookup(path ...string) (Value, bool) {
	entries := d.Entries
	for i, key := range path {
		var found *Value
		for j := range entries {
			if entries[j].Key == key {
				found = &entries[j].Value
				break
			}
		}
		if found == nil {
			return Value{}, false
		}
		if i == len(path)-1 {
			return *found, true
		}
		if found.Type != ValueMap {
			return Value{}, false
		}
		entries = found.Map
	}
	return Value{}, false
}

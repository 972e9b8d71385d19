package ir

import (
	"fmt"
	"strings"
)

// Kind tags the concrete type of an IR asset. The numeric values are part of
// the container format and must never be reordered.
type Kind uint16

const (
	KindUnknown    Kind = 0
	KindTexture    Kind = 1
	KindMesh       Kind = 2
	KindAudio      Kind = 3
	KindShader     Kind = 4
	KindMaterial   Kind = 5
	KindFont       Kind = 6
	KindDictionary Kind = 7
	KindBlob       Kind = 8
	KindCubemap    Kind = 9
	KindNotes      Kind = 10
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindTexture:    "texture",
	KindMesh:       "mesh",
	KindAudio:      "audio",
	KindShader:     "shader",
	KindMaterial:   "material",
	KindFont:       "font",
	KindDictionary: "dictionary",
	KindBlob:       "blob",
	KindCubemap:    "cubemap",
	KindNotes:      "notes",
}

// Kinds lists every known kind except KindUnknown, in numeric order.
func Kinds() []Kind {
	return []Kind{KindTexture, KindMesh, KindAudio, KindShader, KindMaterial, KindFont, KindDictionary, KindBlob, KindCubemap, KindNotes}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint16(k))
}

// Valid reports whether k is a known, non-unknown kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok && k != KindUnknown
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s && k != KindUnknown {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown asset kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Asset is an in-memory, engine-ready intermediate representation. Values are
// treated as immutable once built.
type Asset interface {
	Kind() Kind
	// MemoryUsage approximates the resident size in bytes.
	MemoryUsage() int
}

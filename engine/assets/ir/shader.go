package ir

import (
	"fmt"
	"strings"
)

type ShaderStage uint8

const (
	ShaderStageVertex   ShaderStage = 0x01
	ShaderStageGeometry ShaderStage = 0x02
	ShaderStageFragment ShaderStage = 0x04
	ShaderStageCompute  ShaderStage = 0x08
)

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageFragment:
		return "fragment"
	case ShaderStageCompute:
		return "compute"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

func ParseShaderStage(s string) (ShaderStage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vertex", "vert", "vs":
		return ShaderStageVertex, nil
	case "geometry", "geom", "gs":
		return ShaderStageGeometry, nil
	case "fragment", "frag", "pixel", "fs":
		return ShaderStageFragment, nil
	case "compute", "comp", "cs":
		return ShaderStageCompute, nil
	}
	return 0, fmt.Errorf("unknown shader stage %q", s)
}

/**
 * @brief Preprocessed shader sources, one per stage. Includes are already
 * resolved; compilation happens in the renderer.
 */
type Shader struct {
	/** @brief Free-form options forwarded to the shader compiler (defines, target). */
	CompileOptions map[string]string      `cbor:"options"`
	Sources        map[ShaderStage][]byte `cbor:"sources"`
}

func (s *Shader) Kind() Kind { return KindShader }

func (s *Shader) MemoryUsage() int {
	n := 0
	for _, src := range s.Sources {
		n += len(src)
	}
	for k, v := range s.CompileOptions {
		n += len(k) + len(v)
	}
	return n
}

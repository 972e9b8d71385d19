package ir

import "github.com/spaghettifunk/dawn/engine/core"

/**
 * @brief Material properties. Texture maps and the shader are referenced by
 * asset id and must be declared dependencies of the material.
 */
type Material struct {
	/** @brief The shader used to draw the material. */
	Shader core.AssetID `cbor:"shader"`
	/** @brief The diffuse colour of the material. */
	DiffuseColour [4]float32 `cbor:"diffuse_colour"`
	/** @brief The shininess of the material. */
	Shininess   float32      `cbor:"shininess"`
	DiffuseMap  core.AssetID `cbor:"diffuse_map"`
	SpecularMap core.AssetID `cbor:"specular_map"`
	NormalMap   core.AssetID `cbor:"normal_map"`
}

func (m *Material) Kind() Kind { return KindMaterial }

func (m *Material) MemoryUsage() int {
	return 4*5 + len(m.Shader) + len(m.DiffuseMap) + len(m.SpecularMap) + len(m.NormalMap)
}

// References returns the non-empty asset ids the material points at.
func (m *Material) References() []core.AssetID {
	var refs []core.AssetID
	for _, id := range []core.AssetID{m.Shader, m.DiffuseMap, m.SpecularMap, m.NormalMap} {
		if id != "" {
			refs = append(refs, id)
		}
	}
	return refs
}

package loaders

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
	"github.com/spaghettifunk/dawn/engine/core"
)

// MaterialLoader imports .amt material files: `key = value` lines, `#` comments.
// Every referenced asset (shader and maps) must be a declared dependency.
type MaterialLoader struct{}

func (ml *MaterialLoader) Import(src codec.Source) (ir.Asset, error) {
	material, err := parseAMT(src)
	if err != nil {
		return nil, err
	}
	if err := validateMaterial(material); err != nil {
		return nil, err
	}
	for _, ref := range material.References() {
		if !src.HasDependency(ref) {
			return nil, fmt.Errorf("material references %q which is not a declared dependency", ref)
		}
	}
	return material, nil
}

func parseAMT(src codec.Source) (*ir.Material, error) {
	scanner := bufio.NewScanner(bytes.NewReader(src.Data))
	material := &ir.Material{
		DiffuseColour: [4]float32{1, 1, 1, 1},
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		// Split key-value pairs by the first "=" sign
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid line in %s: %q", src.Path, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "name", "version", "autorelease":
			// descriptive only, the asset id names the material
		case "shader":
			material.Shader = core.AssetID(value)
		case "diffuse_colour", "diffuse_color":
			colourValues := strings.Fields(value)
			if len(colourValues) != 4 {
				return nil, fmt.Errorf("invalid diffuse_colour, expected 4 values: %s", line)
			}
			for i, v := range colourValues {
				f, err := strconv.ParseFloat(v, 32)
				if err != nil {
					return nil, fmt.Errorf("invalid diffuse_colour value: %s", v)
				}
				material.DiffuseColour[i] = float32(f)
			}
		case "shininess":
			shininess, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid shininess value: %s", value)
			}
			material.Shininess = float32(shininess)
		case "diffuse_map_name", "diffuse_map":
			material.DiffuseMap = core.AssetID(value)
		case "specular_map_name", "specular_map":
			material.SpecularMap = core.AssetID(value)
		case "normal_map_name", "normal_map":
			material.NormalMap = core.AssetID(value)
		default:
			core.LogWarn("Unknown key '%s' found in %s. Skipping...", key, src.Path)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return material, nil
}

func validateMaterial(material *ir.Material) error {
	if material.Shader == "" {
		return fmt.Errorf("shader name is required")
	}
	for _, c := range material.DiffuseColour {
		if c < 0 || c > 1 {
			return fmt.Errorf("diffuse_colour values must be between 0.0 and 1.0")
		}
	}
	if material.Shininess < 0 {
		return fmt.Errorf("shininess must be a non-negative value")
	}
	return nil
}

package loaders

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spaghettifunk/dawn/engine/assets/codec"
	"github.com/spaghettifunk/dawn/engine/assets/ir"
)

const maxIncludeDepth = 32

var (
	includeDirective = regexp.MustCompile(`^\s*#include\s+"([^"]+)"\s*$`)
	typeDirective    = regexp.MustCompile(`^\s*#type\s+(\w+)\s*$`)
)

// ShaderLoader imports GLSL style sources. A file is split into stages by
// `#type <stage>` lines; a file without any uses the "stage" param (default
// fragment). `#include "path"` is resolved relative to the including file and
// followed by a `#line` directive so compiler errors keep pointing at the
// right line. Params prefixed with "option." become compile options.
type ShaderLoader struct {
	// ReadFile resolves includes; defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

func (sl *ShaderLoader) Import(src codec.Source) (ir.Asset, error) {
	shader := &ir.Shader{
		CompileOptions: make(map[string]string),
		Sources:        make(map[ir.ShaderStage][]byte),
	}
	for k, v := range src.Params {
		if opt, ok := strings.CutPrefix(k, "option."); ok {
			shader.CompileOptions[opt] = v
		}
	}

	sections, err := splitStages(src.Data, src.Param("stage", "fragment"))
	if err != nil {
		return nil, err
	}
	for stage, text := range sections {
		out, err := sl.preprocess(text, src.Path, 0)
		if err != nil {
			return nil, err
		}
		shader.Sources[stage] = out
	}
	if len(shader.Sources) == 0 {
		return nil, fmt.Errorf("%s: shader has no stages", src.Path)
	}
	return shader, nil
}

func splitStages(data []byte, defaultStage string) (map[ir.ShaderStage][]byte, error) {
	sections := make(map[ir.ShaderStage][]byte)
	var (
		current ir.ShaderStage
		buf     bytes.Buffer
		typed   bool
	)
	commit := func() {
		if typed && buf.Len() > 0 {
			sections[current] = append(sections[current], buf.Bytes()...)
		}
		buf.Reset()
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := typeDirective.FindStringSubmatch(line); m != nil {
			commit()
			stage, err := ir.ParseShaderStage(m[1])
			if err != nil {
				return nil, err
			}
			if _, dup := sections[stage]; dup {
				return nil, fmt.Errorf("stage %s declared twice", stage)
			}
			current, typed = stage, true
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !typed {
		stage, err := ir.ParseShaderStage(defaultStage)
		if err != nil {
			return nil, err
		}
		sections[stage] = append([]byte(nil), buf.Bytes()...)
		return sections, nil
	}
	commit()
	return sections, nil
}

func (sl *ShaderLoader) preprocess(text []byte, path string, depth int) ([]byte, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("%s: includes nested deeper than %d", path, maxIncludeDepth)
	}
	readFile := sl.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	var out bytes.Buffer
	lineNo := 0
	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		m := includeDirective.FindStringSubmatch(line)
		if m == nil {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		incPath := filepath.Join(filepath.Dir(path), m[1])
		inc, err := readFile(incPath)
		if err != nil {
			return nil, fmt.Errorf("reading include %q from %s: %w", m[1], path, err)
		}
		expanded, err := sl.preprocess(inc, incPath, depth+1)
		if err != nil {
			return nil, err
		}
		out.Write(expanded)
		fmt.Fprintf(&out, "#line %d\n", lineNo+1)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Package shaders provides the GLSL sources for the display quad and
// transitions, and loads user transition shaders from disk.
//
// A transition fragment shader receives:
//
//	uniform sampler2D tex0;     // image being faded in
//	uniform sampler2D tex1;     // image being faded out
//	uniform float normalizedur; // progress, 0 at start, >= 1 at the end
//	in vec2 uv;
//	out vec4 fragColor;
package shaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const Version = "#version 330 core\n"

// Vertex maps the 4 vertex triangle strip to clip space. v is flipped
// because image rows are uploaded top first.
const Vertex = Version + `layout(location = 0) in vec3 vertex;
out vec2 uv;

void main() {
    gl_Position = vec4(vertex, 1.0);
    uv = vec2((vertex.x + 1.0) / 2.0, 1.0 - (vertex.y + 1.0) / 2.0);
}` + "\x00"

// Display samples a single texture.
const Display = Version + `layout(location = 0) out vec4 fragColor;
uniform sampler2D tex0;
in vec2 uv;

void main() {
    fragColor = texture(tex0, uv);
}` + "\x00"

// Fade is the built-in cross-fade transition.
const Fade = Version + `layout(location = 0) out vec4 fragColor;
uniform sampler2D tex0;
uniform sampler2D tex1;
uniform float normalizedur;
in vec2 uv;

void main() {
    fragColor = mix(texture(tex1, uv), texture(tex0, uv), clamp(normalizedur, 0.0, 1.0));
}` + "\x00"

// Source is one fragment shader: built in or read from Path.
type Source struct {
	Name string
	Path string
	Code string
}

func BuiltinFade() Source {
	return Source{Name: "fade", Code: Fade}
}

// Prepare adds the version line when the file has none and terminates the
// string for the GL call.
func Prepare(code string) string {
	code = strings.TrimRight(code, "\x00")
	if !strings.HasPrefix(strings.TrimSpace(code), "#version") {
		code = Version + code
	}
	return code + "\x00"
}

// LoadFile reads one transition shader.
func LoadFile(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("load shader %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Source{}, fmt.Errorf("load shader %s: file is empty", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Source{Name: name, Path: path, Code: Prepare(string(data))}, nil
}

// LoadFiles reads every path, returning the sources that loaded and one
// error per path that did not.
func LoadFiles(paths []string) ([]Source, []error) {
	var (
		srcs []Source
		errs []error
	)
	for _, p := range paths {
		src, err := LoadFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		srcs = append(srcs, src)
	}
	return srcs, errs
}

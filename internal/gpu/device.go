// Package gpu wraps the OpenGL calls the renderer needs behind Device so the
// render loop can run against a fake in tests.
package gpu

import (
	"errors"
	"fmt"

	"github.com/wallpipe/wallpipe/internal/texture"
)

var (
	ErrUnsupportedVersion = errors.New("OpenGL 3.3 or newer is required")
	ErrCompile            = errors.New("shader compile failed")
	ErrLink               = errors.New("program link failed")
	ErrUpload             = errors.New("texture upload failed")
)

// Handles are GL object names. Zero is never a valid object.
type (
	Texture uint32
	Buffer  uint32
	Program uint32
)

// Caps is resolved once when the device is created.
type Caps struct {
	Vendor      string
	Renderer    string
	Version     string
	GLSLVersion string
	Major       int
	Minor       int

	MaxTextureSize int
	// PixelBuffers reports pixel unpack buffer support for staged uploads.
	PixelBuffers bool
}

func (c Caps) String() string {
	return fmt.Sprintf("%s %s, GL %d.%d, GLSL %s, max texture %d", c.Vendor, c.Renderer, c.Major, c.Minor, c.GLSLVersion, c.MaxTextureSize)
}

// AtLeast reports whether the context version is major.minor or newer.
func (c Caps) AtLeast(major, minor int) bool {
	return c.Major > major || (c.Major == major && c.Minor >= minor)
}

// UploadOptions select how Upload moves pixels to the texture.
type UploadOptions struct {
	// Staging is the pixel buffer to stage through; zero uploads directly
	// from host memory.
	Staging Buffer
	// Compressed asks the driver to store RGB and RGBA images compressed.
	Compressed bool
}

// Device is the set of GPU operations used by the renderer. All methods
// must be called from the goroutine that owns the context.
type Device interface {
	Caps() Caps

	CreateTexture() (Texture, error)
	DeleteTexture(Texture)
	CreateStagingBuffers(n int) ([]Buffer, error)
	DeleteBuffers([]Buffer)
	// Upload writes desc into dst level 0 and regenerates mipmaps. It does
	// not release desc.
	Upload(dst Texture, desc *texture.Descriptor, opts UploadOptions) error

	// CompileProgram links the shared vertex stage with fragment. The
	// returned error carries the driver info log.
	CompileProgram(name, fragment string) (Program, error)
	DeleteProgram(Program)
	UniformLocation(p Program, name string) int32
	UseProgram(Program)
	Uniform1i(loc int32, v int32)
	Uniform1f(loc int32, v float32)

	BindTexture(unit int, t Texture)
	Viewport(width, height int)
	Clear()
	DrawQuad()
	// DrawOverlay renders lines of text in the top left corner.
	DrawOverlay(lines []string)

	// Close frees the quad and overlay resources owned by the device.
	Close()
}

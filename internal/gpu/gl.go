package gpu

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/wallpipe/wallpipe/internal/shaders"
	"github.com/wallpipe/wallpipe/internal/texture"
)

// maxMipLevel bounds the mipmap chain generated for each image.
const maxMipLevel = 3

// fullscreen quad as a 4 vertex triangle strip in clip space
var quadVertices = []float32{
	-1.0, -1.0, 0.0,
	1.0, -1.0, 0.0,
	-1.0, 1.0, 0.0,
	1.0, 1.0, 0.0,
}

// GL implements Device on the current OpenGL context.
type GL struct {
	logger *log.Logger
	caps   Caps
	debug  bool

	vao, vbo uint32
	text     *overlay

	viewW, viewH int
}

var _ Device = (*GL)(nil)

// NewGL loads the GL entry points for the context current on the calling
// thread, resolves its capabilities and builds the shared quad. The
// overlay is only built when debug is set.
func NewGL(logger *log.Logger, debug bool) (*GL, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("initialize OpenGL: %w", err)
	}

	caps := queryCaps()
	logger.Debug("OpenGL context",
		"vendor", caps.Vendor,
		"renderer", caps.Renderer,
		"version", caps.Version,
		"glsl", caps.GLSLVersion,
		"max_texture_size", caps.MaxTextureSize,
		"pixel_buffers", caps.PixelBuffers,
	)
	if !caps.AtLeast(3, 3) {
		return nil, fmt.Errorf("%w: context is %d.%d", ErrUnsupportedVersion, caps.Major, caps.Minor)
	}

	d := &GL{logger: logger, caps: caps, debug: debug}

	gl.Disable(gl.DEPTH_TEST)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 4)
	gl.ClearColor(0.0, 0.0, 0.0, 1.0)

	gl.GenVertexArrays(1, &d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	if debug {
		text, err := newOverlay()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("debug overlay: %w", err)
		}
		d.text = text
	}
	return d, nil
}

func queryCaps() Caps {
	var c Caps
	c.Vendor = gl.GoStr(gl.GetString(gl.VENDOR))
	c.Renderer = gl.GoStr(gl.GetString(gl.RENDERER))
	c.Version = gl.GoStr(gl.GetString(gl.VERSION))
	c.GLSLVersion = gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))

	var major, minor, maxSize int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxSize)
	c.Major, c.Minor = int(major), int(minor)
	if c.Major == 0 {
		// Pre 3.0 drivers reject MAJOR_VERSION; fall back to the string.
		fmt.Sscanf(c.Version, "%d.%d", &c.Major, &c.Minor)
	}
	c.MaxTextureSize = int(maxSize)
	// Pixel buffer objects are core since 2.1.
	c.PixelBuffers = c.AtLeast(2, 1)
	return c
}

func (d *GL) Caps() Caps { return d.caps }

func (d *GL) CreateTexture() (Texture, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	if tex == 0 {
		return 0, fmt.Errorf("%w: glGenTextures returned no name", ErrUpload)
	}
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, maxMipLevel)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return Texture(tex), nil
}

func (d *GL) DeleteTexture(t Texture) {
	if t == 0 {
		return
	}
	tex := uint32(t)
	gl.DeleteTextures(1, &tex)
}

func (d *GL) CreateStagingBuffers(n int) ([]Buffer, error) {
	if !d.caps.PixelBuffers {
		return nil, fmt.Errorf("pixel buffer objects not supported by %s", d.caps.Version)
	}
	names := make([]uint32, n)
	gl.GenBuffers(int32(n), &names[0])
	bufs := make([]Buffer, n)
	for i, name := range names {
		bufs[i] = Buffer(name)
	}
	return bufs, nil
}

func (d *GL) DeleteBuffers(bufs []Buffer) {
	for _, b := range bufs {
		if b == 0 {
			continue
		}
		name := uint32(b)
		gl.DeleteBuffers(1, &name)
	}
}

func (d *GL) Upload(dst Texture, desc *texture.Descriptor, opts UploadOptions) error {
	if !desc.Valid() {
		return fmt.Errorf("%w: descriptor %s has inconsistent geometry", ErrUpload, desc.ID)
	}
	internal, format, xtype := glFormats(desc, opts.Compressed)

	// Drop stale errors so the checks below only see this upload.
	for i := 0; i < 8 && gl.GetError() != gl.NO_ERROR; i++ {
	}

	pixels := gl.Ptr(desc.Pixels)
	if opts.Staging != 0 {
		gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, uint32(opts.Staging))
		defer gl.BindBuffer(gl.PIXEL_UNPACK_BUFFER, 0)

		gl.BufferData(gl.PIXEL_UNPACK_BUFFER, desc.Size, nil, gl.STREAM_DRAW)
		if code := gl.GetError(); code != gl.NO_ERROR {
			return fmt.Errorf("%w: staging buffer allocation: GL error 0x%x", ErrUpload, code)
		}
		ptr := gl.MapBuffer(gl.PIXEL_UNPACK_BUFFER, gl.WRITE_ONLY)
		if ptr == nil {
			return fmt.Errorf("%w: map staging buffer: GL error 0x%x", ErrUpload, gl.GetError())
		}
		copy(unsafe.Slice((*byte)(ptr), desc.Size), desc.Pixels)
		if !gl.UnmapBuffer(gl.PIXEL_UNPACK_BUFFER) {
			return fmt.Errorf("%w: unmap staging buffer: GL error 0x%x", ErrUpload, gl.GetError())
		}
		if d.debug {
			d.logger.Debug("staged pixels", "id", desc.ID, "bytes", desc.Size)
		}
		pixels = gl.PtrOffset(0)
	}

	gl.BindTexture(gl.TEXTURE_2D, uint32(dst))
	defer gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, xtype, pixels)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%w: %dx%d %s: GL error 0x%x", ErrUpload, desc.Width, desc.Height, desc.InternalFormat, code)
	}
	return nil
}

func (d *GL) CompileProgram(name, fragment string) (Program, error) {
	p, err := newProgram(shaders.Vertex, fragment)
	if err != nil {
		return 0, fmt.Errorf("program %q: %w", name, err)
	}
	return Program(p), nil
}

func (d *GL) DeleteProgram(p Program) {
	if p != 0 {
		gl.DeleteProgram(uint32(p))
	}
}

func (d *GL) UniformLocation(p Program, name string) int32 {
	if !strings.HasSuffix(name, "\x00") {
		name += "\x00"
	}
	return gl.GetUniformLocation(uint32(p), gl.Str(name))
}

func (d *GL) UseProgram(p Program) { gl.UseProgram(uint32(p)) }

func (d *GL) Uniform1i(loc int32, v int32) {
	if loc >= 0 {
		gl.Uniform1i(loc, v)
	}
}

func (d *GL) Uniform1f(loc int32, v float32) {
	if loc >= 0 {
		gl.Uniform1f(loc, v)
	}
}

func (d *GL) BindTexture(unit int, t Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
}

func (d *GL) Viewport(width, height int) {
	d.viewW, d.viewH = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *GL) Clear() { gl.Clear(gl.COLOR_BUFFER_BIT) }

func (d *GL) DrawQuad() {
	gl.BindVertexArray(d.vao)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
	if d.debug {
		if code := gl.GetError(); code != gl.NO_ERROR {
			d.logger.Debug("draw", "gl_error", fmt.Sprintf("0x%x", code))
		}
	}
}

func (d *GL) DrawOverlay(lines []string) {
	if d.text == nil {
		return
	}
	d.text.draw(lines, d.viewW, d.viewH)
}

func (d *GL) Close() {
	if d.text != nil {
		d.text.delete()
		d.text = nil
	}
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
		d.vbo = 0
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		d.vao = 0
	}
}

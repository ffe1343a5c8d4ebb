package gpu

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/go-gl/gl/v3.3-core/gl"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const overlayVertexSource = `#version 330 core
layout(location = 0) in vec2 aPos;
layout(location = 1) in vec2 aTexCoord;
out vec2 TexCoord;
uniform mat4 projection;

void main() {
    gl_Position = projection * vec4(aPos, 0.0, 1.0);
    TexCoord = aTexCoord;
}` + "\x00"

const overlayFragmentSource = `#version 330 core
in vec2 TexCoord;
out vec4 FragColor;
uniform sampler2D textTexture;
uniform vec3 textColor;

void main() {
    vec4 sampled = vec4(1.0, 1.0, 1.0, texture(textTexture, TexCoord).r);
    FragColor = vec4(textColor, 1.0) * sampled;
}` + "\x00"

const (
	overlayWidth  = 512
	lineHeight    = 13
	overlayMargin = 10
)

// overlay draws text with basicfont into a single-channel texture and
// blends it over the frame.
type overlay struct {
	program    uint32
	vao        uint32
	vbo        uint32
	texture    uint32
	projection int32
	textColor  int32
}

func newOverlay() (*overlay, error) {
	program, err := newProgram(overlayVertexSource, overlayFragmentSource)
	if err != nil {
		return nil, err
	}
	o := &overlay{
		program:    program,
		projection: gl.GetUniformLocation(program, gl.Str("projection\x00")),
		textColor:  gl.GetUniformLocation(program, gl.Str("textColor\x00")),
	}

	gl.GenVertexArrays(1, &o.vao)
	gl.GenBuffers(1, &o.vbo)
	gl.BindVertexArray(o.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, o.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 6*4*4, nil, gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(2*4))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	gl.GenTextures(1, &o.texture)
	gl.BindTexture(gl.TEXTURE_2D, o.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return o, nil
}

// rasterize draws lines top to bottom into an RGBA image sized to fit them.
func rasterize(lines []string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, overlayWidth, lineHeight*len(lines)+3))
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		d.Dot = fixed.P(0, lineHeight*(i+1))
		d.DrawString(line)
	}
	return img
}

func (o *overlay) draw(lines []string, viewW, viewH int) {
	if len(lines) == 0 || viewW <= 0 || viewH <= 0 {
		return
	}
	img := rasterize(lines)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, o.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RED, int32(img.Bounds().Dx()), int32(img.Bounds().Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))

	// Orthographic projection with the origin in the top left corner.
	projection := []float32{
		2.0 / float32(viewW), 0, 0, 0,
		0, -2.0 / float32(viewH), 0, 0,
		0, 0, -1, 0,
		-1, 1, 0, 1,
	}
	gl.UseProgram(o.program)
	gl.UniformMatrix4fv(o.projection, 1, false, &projection[0])
	gl.Uniform3f(o.textColor, 1.0, 1.0, 1.0)

	x := float32(overlayMargin)
	y := float32(overlayMargin)
	w := float32(img.Bounds().Dx())
	h := float32(img.Bounds().Dy())
	vertices := []float32{
		x, y + h, 0.0, 1.0,
		x, y, 0.0, 0.0,
		x + w, y, 1.0, 0.0,
		x, y + h, 0.0, 1.0,
		x + w, y, 1.0, 0.0,
		x + w, y + h, 1.0, 1.0,
	}
	gl.BindVertexArray(o.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, o.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*4, gl.Ptr(vertices))
	gl.DrawArrays(gl.TRIANGLES, 0, 6)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.Disable(gl.BLEND)
}

func (o *overlay) delete() {
	gl.DeleteTextures(1, &o.texture)
	gl.DeleteBuffers(1, &o.vbo)
	gl.DeleteVertexArrays(1, &o.vao)
	gl.DeleteProgram(o.program)
}

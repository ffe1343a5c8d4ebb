package main

import (
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/wallpipe/wallpipe/internal/config"
)

const (
	aboutWindowTitle = "About wallpipe"
	aboutWidth       = 420
	aboutHeight      = 260
	aboutTextSize    = 12

	// Colors of the about window.
	aboutTitleColor      = "#000000"
	aboutInfoColor       = "#1F3A93"
	aboutButtonTextColor = "#FFFFFF"
	aboutButtonColor     = "#0078D4"
	aboutBackgroundColor = "#E8EEF4"
)

// parseColor parses a "#RRGGBB" string.
func parseColor(hex string) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b uint8
	if len(hex) == 6 {
		fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// aboutLayout stacks a title, info lines and a button top to bottom with
// fixed padding.
type aboutLayout struct {
	width         float32
	topPadding    float32
	spacing       float32
	lineHeight    float32
	lineSpacing   float32
	sidePadding   float32
	minButtonSize float32
}

func (l *aboutLayout) Layout(objects []fyne.CanvasObject, containerSize fyne.Size) {
	if len(objects) < 2 {
		return
	}
	y := l.topPadding
	inner := l.width - 2*l.sidePadding

	title := objects[0]
	title.Resize(fyne.NewSize(inner, 25))
	title.Move(fyne.NewPos(l.sidePadding, y))
	y += 25 + l.spacing

	for _, line := range objects[1 : len(objects)-1] {
		line.Resize(fyne.NewSize(inner, l.lineHeight))
		line.Move(fyne.NewPos(l.sidePadding, y))
		y += l.lineHeight + l.lineSpacing
	}
	y += l.spacing - l.lineSpacing

	button := objects[len(objects)-1]
	size := button.MinSize()
	if size.Width > inner {
		size.Width = inner
	}
	if size.Height < l.minButtonSize {
		size.Height = l.minButtonSize
	}
	button.Resize(size)
	button.Move(fyne.NewPos((l.width-size.Width)/2, y))
}

func (l *aboutLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	h := l.topPadding + 25 + 2*l.spacing + l.minButtonSize + l.topPadding
	if n := len(objects) - 2; n > 0 {
		h += float32(n)*(l.lineHeight+l.lineSpacing) - l.lineSpacing
	}
	return fyne.NewSize(l.width, h)
}

// styledButton is a flat colored button.
type styledButton struct {
	widget.BaseWidget
	text      string
	textColor color.Color
	bgColor   color.Color
	onTapped  func()
}

func newStyledButton(text string, textColor, bgColor color.Color, onTapped func()) *styledButton {
	b := &styledButton{
		text:      text,
		textColor: textColor,
		bgColor:   bgColor,
		onTapped:  onTapped,
	}
	b.ExtendBaseWidget(b)
	return b
}

func (b *styledButton) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(b.bgColor)
	rect.SetMinSize(fyne.NewSize(120, 32))

	text := canvas.NewText(b.text, b.textColor)
	text.Alignment = fyne.TextAlignCenter
	text.TextSize = 14

	return &styledButtonRenderer{
		button:  b,
		rect:    rect,
		text:    text,
		content: container.NewStack(rect, container.NewCenter(text)),
	}
}

func (b *styledButton) Tapped(*fyne.PointEvent) {
	if b.onTapped != nil {
		b.onTapped()
	}
}

type styledButtonRenderer struct {
	button  *styledButton
	rect    *canvas.Rectangle
	text    *canvas.Text
	content fyne.CanvasObject
}

func (r *styledButtonRenderer) Layout(size fyne.Size) { r.content.Resize(size) }

func (r *styledButtonRenderer) MinSize() fyne.Size { return r.content.MinSize() }

func (r *styledButtonRenderer) Refresh() {
	r.rect.FillColor = r.button.bgColor
	r.text.Color = r.button.textColor
	r.text.Text = r.button.text
	r.content.Refresh()
}

func (r *styledButtonRenderer) Objects() []fyne.CanvasObject { return []fyne.CanvasObject{r.content} }

func (r *styledButtonRenderer) Destroy() {}

// aboutLines describes the effective configuration and how to feed images.
func aboutLines(cfg config.Config) []string {
	transitions := "fade"
	switch {
	case cfg.NoTransition:
		transitions = "none"
	case len(cfg.Shaders) > 0:
		transitions = strings.Join(cfg.Shaders, ", ")
	}
	return []string{
		"Version " + version,
		"FIFO: " + cfg.FIFOPath,
		fmt.Sprintf("Transitions: %s (%s, %s)", transitions, cfg.TransitionOrder, cfg.TransitionDuration),
		fmt.Sprintf("Send an image: cat photo.jpg > %s", cfg.FIFOPath),
	}
}

// runAbout shows a small window with version and configuration details.
func runAbout(cfg config.Config) {
	a := app.New()
	w := a.NewWindow(aboutWindowTitle)
	w.Resize(fyne.NewSize(aboutWidth, aboutHeight))
	w.SetFixedSize(true)
	w.CenterOnScreen()

	infoColor := parseColor(aboutInfoColor)

	title := canvas.NewText("wallpipe", parseColor(aboutTitleColor))
	title.Alignment = fyne.TextAlignCenter
	title.TextSize = 18
	title.TextStyle = fyne.TextStyle{Bold: true}

	objects := []fyne.CanvasObject{container.NewCenter(title)}
	for _, line := range aboutLines(cfg) {
		text := canvas.NewText(line, infoColor)
		text.Alignment = fyne.TextAlignCenter
		text.TextSize = aboutTextSize
		objects = append(objects, container.NewCenter(text))
	}
	objects = append(objects, newStyledButton("Close", parseColor(aboutButtonTextColor), parseColor(aboutButtonColor), w.Close))

	content := container.New(&aboutLayout{
		width:         aboutWidth,
		topPadding:    15,
		spacing:       15,
		lineHeight:    20,
		lineSpacing:   5,
		sidePadding:   20,
		minButtonSize: 32,
	}, objects...)

	background := canvas.NewRectangle(parseColor(aboutBackgroundColor))
	w.SetContent(container.NewStack(background, content))
	w.ShowAndRun()
}

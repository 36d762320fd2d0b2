package renderer

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"script2video/internal/system"
)

// Portrait is one character standing on the frame.
type Portrait struct {
	Image    image.Image
	X, Y     int // anchor: bottom-center of the portrait
	Scale    float64
	Speaking bool
}

// Nonspeaking characters are drawn slightly smaller so the active speaker
// reads at a glance.
const listenerScale = 0.88

// FrameSpec describes everything composited onto one still frame.
type FrameSpec struct {
	Width, Height int
	Background    image.Image
	Portraits     []Portrait
	SubtitleLines []string
}

// SubtitleStyle carries the parsed drawing parameters.
type SubtitleStyle struct {
	Face         font.Face
	Color        color.Color
	StrokeColor  color.Color
	StrokeWidth  int
	MarginBottom int
}

// ComposeFrame renders the full frame: background stretched to cover,
// portraits back-to-front, subtitle lines centered above the bottom margin.
func ComposeFrame(spec FrameSpec, style *SubtitleStyle) *image.RGBA {
	frame := system.GetImage(image.Rect(0, 0, spec.Width, spec.Height))

	if spec.Background != nil {
		xdraw.ApproxBiLinear.Scale(frame, frame.Bounds(), spec.Background, spec.Background.Bounds(), xdraw.Src, nil)
	} else {
		xdraw.Draw(frame, frame.Bounds(), image.NewUniform(color.Black), image.Point{}, xdraw.Src)
	}

	for _, p := range spec.Portraits {
		drawPortrait(frame, p)
	}

	if style != nil && len(spec.SubtitleLines) > 0 {
		drawSubtitle(frame, spec.SubtitleLines, style)
	}

	return frame
}

func drawPortrait(frame *image.RGBA, p Portrait) {
	if p.Image == nil {
		return
	}
	scale := p.Scale
	if scale == 0 {
		scale = 1.0
	}
	if !p.Speaking {
		scale *= listenerScale
	}

	src := p.Image.Bounds()
	w := int(float64(src.Dx()) * scale)
	h := int(float64(src.Dy()) * scale)
	if w <= 0 || h <= 0 {
		return
	}

	// Anchor at bottom-center so scale changes keep feet planted.
	dst := image.Rect(p.X-w/2, p.Y-h, p.X+w-w/2, p.Y)
	xdraw.ApproxBiLinear.Scale(frame, dst, p.Image, src, xdraw.Over, nil)
}

func drawSubtitle(frame *image.RGBA, lines []string, style *SubtitleStyle) {
	lineHeight := style.Face.Metrics().Height.Ceil()
	totalHeight := lineHeight * len(lines)
	baseY := frame.Bounds().Dy() - style.MarginBottom - totalHeight + lineHeight

	for i, line := range lines {
		width := font.MeasureString(style.Face, line).Ceil()
		x := (frame.Bounds().Dx() - width) / 2
		y := baseY + i*lineHeight
		drawTextStroked(frame, line, x, y, style)
	}
}

// drawTextStroked draws the outline by stamping the text at offsets around
// the fill position, then the fill on top. Same approach as stroke_width in
// image libraries, good enough at subtitle sizes.
func drawTextStroked(frame *image.RGBA, text string, x, y int, style *SubtitleStyle) {
	drawer := &font.Drawer{Dst: frame, Face: style.Face}

	if style.StrokeWidth > 0 {
		drawer.Src = image.NewUniform(style.StrokeColor)
		for dx := -style.StrokeWidth; dx <= style.StrokeWidth; dx++ {
			for dy := -style.StrokeWidth; dy <= style.StrokeWidth; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				drawer.Dot = fixed.P(x+dx, y+dy)
				drawer.DrawString(text)
			}
		}
	}

	drawer.Src = image.NewUniform(style.Color)
	drawer.Dot = fixed.P(x, y)
	drawer.DrawString(text)
}

// ParseHexColor converts "#RRGGBB" (or "#RRGGBBAA") into a color.
func ParseHexColor(s string) (color.Color, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	var r, g, b, a uint8
	a = 0xFF
	switch len(s) {
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return nil, fmt.Errorf("invalid color %q", s)
		}
	case 8:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return nil, fmt.Errorf("invalid color %q", s)
		}
	default:
		return nil, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

// loadImage decodes a portrait or background file (PNG/JPEG/GIF/WebP).
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// savePNG writes a composed frame for ffmpeg to loop over.
func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

package subtitle

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// Measurer wraps text by rendered pixel width instead of rune count.
// The renderer also borrows its Face for drawing subtitle glyphs.
type Measurer struct {
	face font.Face
}

// NewMeasurer loads a TTF/OTF font at the given point size.
func NewMeasurer(fontPath string, size float64) (*Measurer, error) {
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", fontPath, err)
	}
	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return &Measurer{face: face}, nil
}

// Face exposes the loaded font face for drawing.
func (m *Measurer) Face() font.Face {
	return m.face
}

// Width returns the advance width of text in pixels.
func (m *Measurer) Width(text string) int {
	return font.MeasureString(m.face, text).Ceil()
}

// LineHeight returns the face's line height in pixels.
func (m *Measurer) LineHeight() int {
	return m.face.Metrics().Height.Ceil()
}

// WrapWidth breaks text into lines no wider than maxWidth pixels, with the
// same word/rune splitting rules as Wrap.
func (m *Measurer) WrapWidth(text string, maxWidth int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var lines []string
	current := ""
	flush := func() {
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
	}

	appendRunes := func(s string) {
		for _, r := range s {
			candidate := current + string(r)
			if current != "" && m.Width(candidate) > maxWidth {
				flush()
				candidate = string(r)
			}
			current = candidate
		}
	}

	words := strings.Fields(text)
	if len(words) == 1 {
		appendRunes(words[0])
		flush()
		return lines
	}

	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		switch {
		case m.Width(candidate) <= maxWidth:
			current = candidate
		case m.Width(word) > maxWidth:
			flush()
			appendRunes(word)
		default:
			flush()
			current = word
		}
	}
	flush()
	return lines
}

// Close releases the font face.
func (m *Measurer) Close() error {
	return m.face.Close()
}

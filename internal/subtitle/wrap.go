// Package subtitle turns spoken text into display lines for the subtitle
// track: rune-budget wrapping for plan compilation and pixel-accurate
// wrapping/drawing when a font is available at render time.
package subtitle

import "strings"

// DefaultMaxRunes is the default wrap budget. Chosen for full-width
// Japanese glyphs on a 1920px frame at the default font size.
const DefaultMaxRunes = 28

// Wrap breaks text into lines of at most maxRunes runes. Space-separated
// text breaks at word boundaries; text without spaces (typical Japanese)
// breaks at the rune budget. Words longer than the budget are hard-broken.
func Wrap(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	words := strings.Fields(text)
	if len(words) == 1 {
		return splitRunes(words[0], maxRunes)
	}

	var lines []string
	current := ""
	for _, word := range words {
		if current == "" {
			current = word
		} else if len([]rune(current))+1+len([]rune(word)) <= maxRunes {
			current += " " + word
		} else {
			lines = append(lines, current)
			current = word
		}
		if len([]rune(current)) > maxRunes {
			chunks := splitRunes(current, maxRunes)
			lines = append(lines, chunks[:len(chunks)-1]...)
			current = chunks[len(chunks)-1]
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// WrapText is Wrap with the lines rejoined by newlines, the form stored in
// subtitle events.
func WrapText(text string, maxRunes int) string {
	return strings.Join(Wrap(text, maxRunes), "\n")
}

func splitRunes(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}
	var out []string
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	out = append(out, string(runes))
	return out
}

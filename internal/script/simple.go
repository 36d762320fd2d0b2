package script

import (
	"regexp"
	"strings"
)

// Character name aliases accepted in the simple format.
var simpleAliases = map[string]string{
	"霊夢":    "reimu",
	"魔理沙":   "marisa",
	"ずんだもん": "zundamon",
}

var exprTagRe = regexp.MustCompile(`\[(?:表情|expr):(\w+)\]`)

// ParseSimple reads the compact one-scene script format:
//
//	@title My Video
//	@bg classroom
//	@bgm lofi
//
//	reimu: Hello! [expr:smile]
//	marisa: Hi there.
//
// Lines starting with # are comments. The result passes through the same
// validation as the YAML format.
func ParseSimple(text string) (*Script, error) {
	var (
		title      = "Untitled"
		background string
		bgm        string
		lines      []Line
	)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "@title "):
			title = strings.TrimSpace(line[len("@title "):])
		case strings.HasPrefix(line, "@bg "):
			background = strings.TrimSpace(line[len("@bg "):])
		case strings.HasPrefix(line, "@bgm "):
			bgm = strings.TrimSpace(line[len("@bgm "):])
		default:
			name, rest, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			character := strings.TrimSpace(name)
			if alias, found := simpleAliases[character]; found {
				character = alias
			} else {
				character = strings.ToLower(character)
			}

			rest = strings.TrimSpace(rest)
			expression := ""
			if m := exprTagRe.FindStringSubmatch(rest); m != nil {
				expression = m[1]
				rest = strings.TrimSpace(exprTagRe.ReplaceAllString(rest, ""))
			}

			lines = append(lines, Line{
				Character:  character,
				Text:       rest,
				Expression: expression,
			})
		}
	}

	s := &Script{
		Title: title,
		Scenes: []Scene{{
			ID:         "main",
			Background: background,
			BGM:        bgm,
			Lines:      lines,
		}},
	}
	if err := normalize(s); err != nil {
		return nil, err
	}
	return s, nil
}

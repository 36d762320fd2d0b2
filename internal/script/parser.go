package script

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

const (
	DefaultExpression = "normal"
	DefaultBGMVolume  = 0.3

	defaultWidth  = 1920
	defaultHeight = 1080
	defaultFPS    = 30
)

// Identifiers for characters, expressions and scenes: ascii letters, digits,
// underscore and dash. Asset existence is checked later, at emit time.
var identRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Parse reads a YAML script and validates it. Structural problems are
// reported as *ParseError with enough location context to point at the
// offending scene/line.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, scriptError(InvalidType, "", fmt.Sprintf("not a valid script document: %v", err))
	}
	if err := normalize(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseFile reads a YAML script from disk.
func ParseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// normalize applies documented defaults and enforces the script invariants:
// positive resolution/fps, unique scene IDs, well-formed identifiers.
func normalize(s *Script) error {
	if s.Title == "" {
		s.Title = "Untitled"
	}

	if s.Settings.Resolution == nil {
		s.Settings.Resolution = []int{defaultWidth, defaultHeight}
	}
	if len(s.Settings.Resolution) != 2 {
		return scriptError(InvalidType, "settings.resolution", "must be [width, height]")
	}
	if s.Settings.Resolution[0] <= 0 || s.Settings.Resolution[1] <= 0 {
		return scriptError(InvalidType, "settings.resolution", "width and height must be positive")
	}
	if s.Settings.FPS == 0 {
		s.Settings.FPS = defaultFPS
	}
	if s.Settings.FPS < 0 {
		return scriptError(InvalidType, "settings.fps", "must be positive")
	}
	if s.Settings.BGMVolume == 0 {
		s.Settings.BGMVolume = DefaultBGMVolume
	}

	seenIDs := make(map[string]bool)
	for i := range s.Scenes {
		scene := &s.Scenes[i]
		if scene.ID == "" {
			scene.ID = fmt.Sprintf("scene_%d", i+1)
		}
		if !identRe.MatchString(scene.ID) {
			return sceneError(InvalidType, scene.ID, i, "id", "not a valid identifier")
		}
		if seenIDs[scene.ID] {
			return sceneError(DuplicateSceneID, scene.ID, i, "id", "scene id already used")
		}
		seenIDs[scene.ID] = true

		if scene.BGMVolume == 0 {
			scene.BGMVolume = s.Settings.BGMVolume
		}
		if scene.TransitionDuration < 0 {
			return sceneError(InvalidType, scene.ID, i, "transition_duration", "must not be negative")
		}

		for j := range scene.Lines {
			if err := normalizeLine(&scene.Lines[j], scene.ID, i, j); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalizeLine(line *Line, sceneID string, sceneIndex, lineIndex int) error {
	if line.Character == "" {
		return lineError(MissingField, sceneID, sceneIndex, lineIndex, "character", "")
	}
	if !identRe.MatchString(line.Character) {
		return lineError(InvalidType, sceneID, sceneIndex, lineIndex, "character", "not a valid identifier")
	}
	if line.Text == "" {
		return lineError(MissingField, sceneID, sceneIndex, lineIndex, "text", "")
	}
	if line.Expression == "" {
		line.Expression = DefaultExpression
	}
	if !identRe.MatchString(line.Expression) {
		return lineError(InvalidType, sceneID, sceneIndex, lineIndex, "expression", "not a valid identifier")
	}
	if line.Duration < 0 {
		return lineError(InvalidType, sceneID, sceneIndex, lineIndex, "duration", "must not be negative")
	}
	if line.Speed == 0 {
		line.Speed = 1.0
	}
	if line.Speed < 0 {
		return lineError(InvalidType, sceneID, sceneIndex, lineIndex, "speed", "must be positive")
	}
	if line.Volume == 0 {
		line.Volume = 1.0
	}
	if line.PauseAfter != nil && *line.PauseAfter < 0 {
		return lineError(InvalidType, sceneID, sceneIndex, lineIndex, "pause_after", "must not be negative")
	}
	return nil
}

package script

// Script is the parsed, validated form of an authored video script.
// It is immutable after parsing; the timeline compiler only reads it.
type Script struct {
	Title    string         `yaml:"title"`
	Settings Settings       `yaml:"settings"`
	Scenes   []Scene        `yaml:"scenes"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Settings holds script-wide defaults. Scene-level values override them.
type Settings struct {
	Resolution []int   `yaml:"resolution"` // [width, height]
	FPS        int     `yaml:"fps"`
	Background string  `yaml:"background,omitempty"`
	BGM        string  `yaml:"bgm,omitempty"`
	BGMVolume  float64 `yaml:"bgm_volume,omitempty"`
}

// Scene is an ordered group of lines with optional background/BGM overrides.
type Scene struct {
	ID                 string  `yaml:"id"`
	Background         string  `yaml:"background,omitempty"`
	BGM                string  `yaml:"bgm,omitempty"`
	BGMVolume          float64 `yaml:"bgm_volume,omitempty"`
	Transition         string  `yaml:"transition,omitempty"` // fade, slide, etc.
	TransitionDuration float64 `yaml:"transition_duration,omitempty"`
	Lines              []Line  `yaml:"lines"`
}

// Line is a single spoken line. Duration is an explicit override in seconds;
// when zero the compiler asks the duration estimator instead. PauseAfter is a
// pointer so that an explicit 0 can be told apart from "use the default".
type Line struct {
	Character  string   `yaml:"character"`
	Text       string   `yaml:"text"`
	Expression string   `yaml:"expression,omitempty"`
	Duration   float64  `yaml:"duration,omitempty"`
	Speed      float64  `yaml:"speed,omitempty"`
	Pitch      float64  `yaml:"pitch,omitempty"`
	Volume     float64  `yaml:"volume,omitempty"`
	PauseAfter *float64 `yaml:"pause_after,omitempty"`
}

// Width returns the horizontal resolution.
func (s Settings) Width() int {
	if len(s.Resolution) == 2 {
		return s.Resolution[0]
	}
	return 0
}

// Height returns the vertical resolution.
func (s Settings) Height() int {
	if len(s.Resolution) == 2 {
		return s.Resolution[1]
	}
	return 0
}

// Characters returns every character identifier appearing in the script,
// in order of first appearance.
func (s *Script) Characters() []string {
	seen := make(map[string]bool)
	var out []string
	for _, scene := range s.Scenes {
		for _, line := range scene.Lines {
			if !seen[line.Character] {
				seen[line.Character] = true
				out = append(out, line.Character)
			}
		}
	}
	return out
}

// TotalLines returns the number of spoken lines across all scenes.
func (s *Script) TotalLines() int {
	n := 0
	for _, scene := range s.Scenes {
		n += len(scene.Lines)
	}
	return n
}

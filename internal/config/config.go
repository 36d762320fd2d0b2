// Package config loads config.yaml plus environment overrides and exposes
// the settings the pipeline stages need.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"script2video/internal/timeline"
)

// VoicevoxConfig locates the synthesis engine and maps characters to voices.
type VoicevoxConfig struct {
	URL            string         `yaml:"url"`
	DefaultSpeaker int            `yaml:"default_speaker"`
	Speakers       map[string]int `yaml:"speakers"`
}

// VideoConfig controls the encoder.
type VideoConfig struct {
	Encoder string `yaml:"encoder"` // empty = autodetect
	Quality int    `yaml:"quality"` // 0 = encoder default
	DPI     int    `yaml:"dpi"`     // rasterization DPI for PDF deck pages
}

// SubtitleConfig styles the subtitle track.
type SubtitleConfig struct {
	Font         string `yaml:"font"`
	FontSize     int    `yaml:"font_size"`
	Color        string `yaml:"color"`
	StrokeColor  string `yaml:"stroke_color"`
	StrokeWidth  int    `yaml:"stroke_width"`
	MarginBottom int    `yaml:"margin_bottom"`
	MaxLineRunes int    `yaml:"max_line_runes"`
}

// CharacterConfig places a character's portrait on the frame.
type CharacterConfig struct {
	DisplayName string  `yaml:"display_name"`
	Position    []int   `yaml:"position"` // [x, y] of the portrait anchor
	Scale       float64 `yaml:"scale"`
}

// PathsConfig roots the asset and output directories.
type PathsConfig struct {
	Characters  string `yaml:"characters"`
	Backgrounds string `yaml:"backgrounds"`
	BGM         string `yaml:"bgm"`
	Fonts       string `yaml:"fonts"`
	OutputAudio string `yaml:"output_audio"`
	OutputVideo string `yaml:"output_video"`
	AssetIndex  string `yaml:"asset_index"`
}

// TimingConfig holds the timeline defaults.
type TimingConfig struct {
	LinePause       float64 `yaml:"line_pause"`
	SceneTransition float64 `yaml:"scene_transition"`
	BGMFadeIn       float64 `yaml:"bgm_fade_in"`
	BGMFadeOut      float64 `yaml:"bgm_fade_out"`
}

// Config is the whole configuration document.
type Config struct {
	Voicevox   VoicevoxConfig             `yaml:"voicevox"`
	Video      VideoConfig                `yaml:"video"`
	Subtitle   SubtitleConfig             `yaml:"subtitle"`
	Characters map[string]CharacterConfig `yaml:"characters"`
	Paths      PathsConfig                `yaml:"paths"`
	Timing     TimingConfig               `yaml:"timing"`
}

// Default returns the documented defaults, used when no config.yaml exists.
func Default() *Config {
	return &Config{
		Voicevox: VoicevoxConfig{
			URL:      "http://localhost:50021",
			Speakers: map[string]int{},
		},
		Video: VideoConfig{
			DPI: 150,
		},
		Subtitle: SubtitleConfig{
			Font:         "assets/fonts/NotoSansJP-Bold.ttf",
			FontSize:     48,
			Color:        "#FFFFFF",
			StrokeColor:  "#000000",
			StrokeWidth:  3,
			MarginBottom: 80,
			MaxLineRunes: 28,
		},
		Paths: PathsConfig{
			Characters:  "assets/characters",
			Backgrounds: "assets/backgrounds",
			BGM:         "assets/bgm",
			Fonts:       "assets/fonts",
			OutputAudio: "output/audio",
			OutputVideo: "output/video",
			AssetIndex:  "output/assets.db",
		},
		Timing: TimingConfig{
			LinePause:       0.3,
			SceneTransition: 1.0,
			BGMFadeIn:       1.0,
			BGMFadeOut:      2.0,
		},
	}
}

// Load reads path (missing file means defaults), overlays it on the
// defaults, then applies environment overrides. A .env file next to the
// working directory is honored if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	_ = godotenv.Load()
	if url := os.Getenv("VOICEVOX_URL"); url != "" {
		cfg.Voicevox.URL = url
	}

	return cfg, nil
}

// SpeakerID resolves a character to its engine voice.
func (c *Config) SpeakerID(character string) int {
	if id, ok := c.Voicevox.Speakers[character]; ok {
		return id
	}
	return c.Voicevox.DefaultSpeaker
}

// CompileOptions translates the configuration into compiler options.
func (c *Config) CompileOptions() timeline.Options {
	return timeline.Options{
		LinePause:        c.Timing.LinePause,
		MaxSubtitleRunes: c.Subtitle.MaxLineRunes,
		Speakers:         c.Voicevox.Speakers,
		DefaultSpeaker:   c.Voicevox.DefaultSpeaker,
		RetryBackoff:     500 * time.Millisecond,
	}
}

// EnsureDirectories creates the output directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputAudio, c.Paths.OutputVideo} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Package timeline compiles a parsed script into a render plan: an ordered
// sequence of absolutely-timed audio/visual/subtitle events.
package timeline

import (
	"fmt"

	"script2video/internal/script"
)

// EventType discriminates the timed event union.
type EventType string

const (
	EventSpeech     EventType = "speech"
	EventSubtitle   EventType = "subtitle"
	EventExpression EventType = "expression"
	EventBackground EventType = "background"
	EventBGM        EventType = "bgm"
)

// Compositing layers, back to front.
const (
	LayerBackground = 0
	LayerCharacter  = 5
	LayerDialogue   = 10
)

// VoiceParams carries the synthesis parameters of a speech event.
type VoiceParams struct {
	SpeakerID int     `yaml:"speaker" json:"speaker"`
	Speed     float64 `yaml:"speed" json:"speed"`
	Pitch     float64 `yaml:"pitch" json:"pitch"`
	Volume    float64 `yaml:"volume" json:"volume"`
}

// Event is one timed entry on the shared timeline. Type selects which
// payload fields are meaningful:
//
//	speech:     Character, Expression, Text (raw), Voice
//	subtitle:   Character, Text (wrapped, newline-separated)
//	expression: Character, Expression
//	background: Asset
//	bgm:        Asset, Volume
type Event struct {
	ID       string    `yaml:"id" json:"id"`
	Type     EventType `yaml:"type" json:"type"`
	Start    float64   `yaml:"start" json:"start"`
	Duration float64   `yaml:"duration" json:"duration"`
	Layer    int       `yaml:"layer" json:"layer"`

	SceneID    string       `yaml:"scene,omitempty" json:"scene,omitempty"`
	Character  string       `yaml:"character,omitempty" json:"character,omitempty"`
	Expression string       `yaml:"expression,omitempty" json:"expression,omitempty"`
	Text       string       `yaml:"text,omitempty" json:"text,omitempty"`
	Asset      string       `yaml:"asset,omitempty" json:"asset,omitempty"`
	Voice      *VoiceParams `yaml:"voice,omitempty" json:"voice,omitempty"`
	Volume     float64      `yaml:"volume,omitempty" json:"volume,omitempty"`
}

// End returns the absolute end offset of the event.
func (e Event) End() float64 {
	return e.Start + e.Duration
}

// Overlaps reports whether two events share any span of time.
func (e Event) Overlaps(other Event) bool {
	return e.Start < other.End() && other.Start < e.End()
}

// RenderPlan is the compiled timeline: ordered events plus the global
// settings the rendering backend needs. Immutable once returned.
type RenderPlan struct {
	Version       string          `yaml:"version" json:"version"`
	Title         string          `yaml:"title" json:"title"`
	Settings      script.Settings `yaml:"settings" json:"settings"`
	TotalDuration float64         `yaml:"total_duration" json:"total_duration"`
	Events        []Event         `yaml:"events" json:"events"`
}

// PlanVersion is bumped when the event schema changes incompatibly.
const PlanVersion = "1.0"

// EventsByType returns the plan's events of one type, in timeline order.
func (p *RenderPlan) EventsByType(t EventType) []Event {
	var out []Event
	for _, e := range p.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// eventID builds sequential IDs like speech_0001, matching the order the
// compiler produced the events in.
func eventID(t EventType, n int) string {
	return fmt.Sprintf("%s_%04d", t, n)
}

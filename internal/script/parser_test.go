package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `
title: Test Video
settings:
  resolution: [1280, 720]
  fps: 24
  background: classroom
  bgm: lofi
scenes:
  - id: intro
    lines:
      - character: reimu
        text: "Hello everyone!"
        expression: smile
      - character: marisa
        text: "Let's get started."
  - id: body
    background: whiteboard
    lines:
      - character: reimu
        text: "Today's topic is compilers."
        duration: 4.5
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleScript))
	require.NoError(t, err)

	assert.Equal(t, "Test Video", s.Title)
	assert.Equal(t, 1280, s.Settings.Width())
	assert.Equal(t, 720, s.Settings.Height())
	assert.Equal(t, 24, s.Settings.FPS)

	require.Len(t, s.Scenes, 2)
	assert.Equal(t, "intro", s.Scenes[0].ID)
	assert.Equal(t, "whiteboard", s.Scenes[1].Background)

	require.Len(t, s.Scenes[0].Lines, 2)
	assert.Equal(t, "smile", s.Scenes[0].Lines[0].Expression)
	assert.Equal(t, DefaultExpression, s.Scenes[0].Lines[1].Expression)
	assert.Equal(t, 4.5, s.Scenes[1].Lines[0].Duration)
	assert.Equal(t, 1.0, s.Scenes[0].Lines[0].Speed)

	assert.Equal(t, []string{"reimu", "marisa"}, s.Characters())
	assert.Equal(t, 3, s.TotalLines())
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse([]byte(`scenes: [{lines: [{character: zundamon, text: hi}]}]`))
	require.NoError(t, err)

	assert.Equal(t, "Untitled", s.Title)
	assert.Equal(t, 1920, s.Settings.Width())
	assert.Equal(t, 30, s.Settings.FPS)
	assert.Equal(t, "scene_1", s.Scenes[0].ID)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind ErrorKind
	}{
		{
			name: "missing character",
			in:   `scenes: [{id: a, lines: [{text: hi}]}]`,
			kind: MissingField,
		},
		{
			name: "missing text",
			in:   `scenes: [{id: a, lines: [{character: reimu}]}]`,
			kind: MissingField,
		},
		{
			name: "duplicate scene id",
			in:   `scenes: [{id: a, lines: []}, {id: a, lines: []}]`,
			kind: DuplicateSceneID,
		},
		{
			name: "negative fps",
			in:   `{settings: {fps: -1}, scenes: []}`,
			kind: InvalidType,
		},
		{
			name: "bad resolution",
			in:   `{settings: {resolution: [0, 720]}, scenes: []}`,
			kind: InvalidType,
		},
		{
			name: "bad character identifier",
			in:   `scenes: [{id: a, lines: [{character: "re imu", text: hi}]}]`,
			kind: InvalidType,
		},
		{
			name: "negative duration",
			in:   `scenes: [{id: a, lines: [{character: reimu, text: hi, duration: -2}]}]`,
			kind: InvalidType,
		},
		{
			name: "not yaml",
			in:   "\t{{",
			kind: InvalidType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.kind, perr.Kind)
		})
	}
}

func TestParseErrorLocation(t *testing.T) {
	_, err := Parse([]byte(`scenes: [{id: a, lines: [{character: reimu, text: hi}, {character: marisa}]}]`))
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "a", perr.SceneID)
	assert.Equal(t, 0, perr.SceneIndex)
	assert.Equal(t, 1, perr.LineIndex)
	assert.Equal(t, "text", perr.Field)
}

func TestParseSimple(t *testing.T) {
	s, err := ParseSimple(`
@title Quick Test
@bg classroom
@bgm lofi

# a comment
霊夢: こんにちは！ [表情:smile]
marisa: Hey. [expr:smug]
Zundamon: Plain line.
`)
	require.NoError(t, err)

	assert.Equal(t, "Quick Test", s.Title)
	require.Len(t, s.Scenes, 1)

	scene := s.Scenes[0]
	assert.Equal(t, "classroom", scene.Background)
	assert.Equal(t, "lofi", scene.BGM)
	require.Len(t, scene.Lines, 3)

	assert.Equal(t, "reimu", scene.Lines[0].Character)
	assert.Equal(t, "こんにちは！", scene.Lines[0].Text)
	assert.Equal(t, "smile", scene.Lines[0].Expression)
	assert.Equal(t, "smug", scene.Lines[1].Expression)
	assert.Equal(t, "zundamon", scene.Lines[2].Character)
	assert.Equal(t, DefaultExpression, scene.Lines[2].Expression)
}

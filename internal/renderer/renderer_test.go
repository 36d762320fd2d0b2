package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"script2video/internal/config"
	"script2video/internal/plan"
	"script2video/internal/script"
	"script2video/internal/timeline"
)

func testPlan() *plan.SerializedPlan {
	return &plan.SerializedPlan{
		Version:       timeline.PlanVersion,
		Title:         "test",
		Settings:      script.Settings{Resolution: []int{1920, 1080}, FPS: 30},
		TotalDuration: 5.0,
		Events: []timeline.Event{
			{ID: "background_0001", Type: timeline.EventBackground, Start: 0, Duration: 5.0, Layer: timeline.LayerBackground, Asset: "room"},
			{ID: "expression_0001", Type: timeline.EventExpression, Start: 0, Layer: timeline.LayerCharacter, Character: "reimu", Expression: "normal"},
			{ID: "speech_0001", Type: timeline.EventSpeech, Start: 0, Duration: 2.0, Layer: timeline.LayerDialogue, SceneID: "intro", Character: "reimu", Expression: "normal", Text: "hello there"},
			{ID: "subtitle_0001", Type: timeline.EventSubtitle, Start: 0, Duration: 2.0, Layer: timeline.LayerDialogue, Character: "reimu", Text: "hello\nthere"},
			{ID: "expression_0002", Type: timeline.EventExpression, Start: 2.3, Layer: timeline.LayerCharacter, Character: "marisa", Expression: "smile"},
			{ID: "speech_0002", Type: timeline.EventSpeech, Start: 2.3, Duration: 2.4, Layer: timeline.LayerDialogue, SceneID: "intro", Character: "marisa", Expression: "smile", Text: "hi"},
			{ID: "subtitle_0002", Type: timeline.EventSubtitle, Start: 2.3, Duration: 2.4, Layer: timeline.LayerDialogue, Character: "marisa", Text: "hi"},
		},
	}
}

func TestBuildSegments(t *testing.T) {
	segs := buildSegments(testPlan())
	require.Len(t, segs, 2)

	first := segs[0]
	assert.Equal(t, "reimu", first.speech.Character)
	assert.Equal(t, "room", first.background)
	assert.Equal(t, "hello\nthere", first.subtitle)
	assert.InDelta(t, 2.3, first.duration, 1e-9)
	assert.Equal(t, []string{"reimu"}, first.order)

	second := segs[1]
	assert.Equal(t, "marisa", second.speech.Character)
	assert.InDelta(t, 2.7, second.duration, 1e-9)
	// Both characters are on screen once both have appeared.
	assert.Equal(t, []string{"reimu", "marisa"}, second.order)
	assert.Equal(t, "normal", second.expressions["reimu"])
	assert.Equal(t, "smile", second.expressions["marisa"])
}

func TestBuildSegmentsExpressionCarryover(t *testing.T) {
	sp := testPlan()
	// Reimu turns angry at 2.3, just before marisa's line.
	sp.Events = slices.Insert(sp.Events, 5, timeline.Event{
		ID: "expression_0003", Type: timeline.EventExpression, Start: 2.3,
		Layer: timeline.LayerCharacter, Character: "reimu", Expression: "angry",
	})

	segs := buildSegments(sp)
	require.Len(t, segs, 2)
	assert.Equal(t, "angry", segs[1].expressions["reimu"])
	assert.Equal(t, "smile", segs[1].expressions["marisa"])
}

func TestSegmentArgs(t *testing.T) {
	args := segmentArgs("frame.png", "line.wav", "seg.mp4", 2.3, 30, "libx264", 0)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-loop 1 -i frame.png")
	assert.Contains(t, joined, "-i line.wav")
	assert.Contains(t, joined, "-t 2.300")
	assert.Contains(t, joined, "-crf 23")
	assert.Contains(t, joined, "-pix_fmt yuv420p")
	assert.Equal(t, "seg.mp4", args[len(args)-1])
}

func TestSegmentArgsSilent(t *testing.T) {
	args := segmentArgs("frame.png", "", "seg.mp4", 1.0, 30, "h264_videotoolbox", 0)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "anullsrc")
	assert.Contains(t, joined, "-q:v 60")
	assert.NotContains(t, joined, "-crf")
}

func TestConcatList(t *testing.T) {
	list := concatList([]string{"/tmp/a.mp4", "/tmp/it's.mp4"})
	assert.Equal(t, "file '/tmp/a.mp4'\nfile '/tmp/it'\\''s.mp4'\n", list)
}

func TestBgmMixArgs(t *testing.T) {
	args := bgmMixArgs("in.mp4", "music.mp3", "out.mp4", 10.0, 0.3, 1.0, 2.0)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-stream_loop -1")
	assert.Contains(t, joined, "volume=0.30")
	assert.Contains(t, joined, "afade=t=out:st=8.000:d=2.0")
	assert.Contains(t, joined, "amix=inputs=2")
	assert.Contains(t, joined, "-t 10.000")
}

func TestCreditOverlayArgs(t *testing.T) {
	args := creditOverlayArgs("in.mp4", "qr.png", "out.mp4", 30.0, 6.0, "libx264", 0)
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "overlay=W-w-40:H-h-40:enable='gte(t,24.000)'")
	assert.Contains(t, joined, "-map [vout]")
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0x80, B: 0x00, A: 0xFF}, c)

	c, err = ParseHexColor("00000080")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{A: 0x80}, c)

	_, err = ParseHexColor("#FFF")
	assert.Error(t, err)
}

func TestComposeFrame(t *testing.T) {
	portrait := image.NewRGBA(image.Rect(0, 0, 10, 10))
	draw.Draw(portrait, portrait.Bounds(), image.NewUniform(color.NRGBA{R: 0xFF, A: 0xFF}), image.Point{}, draw.Src)

	frame := ComposeFrame(FrameSpec{
		Width:  64,
		Height: 36,
		Portraits: []Portrait{
			{Image: portrait, X: 32, Y: 36, Scale: 1.0, Speaking: true},
		},
	}, nil)

	// No background configured: frame starts black.
	r, g, b, _ := frame.At(1, 1).RGBA()
	assert.Zero(t, r)
	assert.Zero(t, g)
	assert.Zero(t, b)

	// Portrait anchored bottom-center lands over the center bottom.
	r, _, _, _ = frame.At(32, 30).RGBA()
	assert.NotZero(t, r)
}

func TestPortraitPlacement(t *testing.T) {
	cfg := config.Default()
	cfg.Characters = map[string]config.CharacterConfig{
		"reimu": {Position: []int{400, 1080}, Scale: 0.8},
	}
	r := New(cfg, nil, nil, slog.New(slog.DiscardHandler), Options{Encoder: "libx264"})

	x, y, scale := r.portraitPlacement("reimu", 0, 2, 1920, 1080)
	assert.Equal(t, 400, x)
	assert.Equal(t, 1080, y)
	assert.Equal(t, 0.8, scale)

	// Unconfigured characters spread evenly along the bottom.
	x, y, scale = r.portraitPlacement("marisa", 1, 2, 1920, 1080)
	assert.Equal(t, 1280, x)
	assert.Equal(t, 1080, y)
	assert.Equal(t, 1.0, scale)
}

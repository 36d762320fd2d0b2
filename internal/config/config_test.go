package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:50021", cfg.Voicevox.URL)
	assert.Equal(t, 0.3, cfg.Timing.LinePause)
	assert.Equal(t, 28, cfg.Subtitle.MaxLineRunes)
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
voicevox:
  default_speaker: 3
  speakers: {reimu: 0, zundamon: 3}
timing:
  line_pause: 0.5
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Voicevox.DefaultSpeaker)
	assert.Equal(t, 0.5, cfg.Timing.LinePause)
	// Untouched sections keep their defaults.
	assert.Equal(t, 48, cfg.Subtitle.FontSize)

	assert.Equal(t, 0, cfg.SpeakerID("reimu"))
	assert.Equal(t, 3, cfg.SpeakerID("zundamon"))
	assert.Equal(t, 3, cfg.SpeakerID("unknown"))
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("VOICEVOX_URL", "http://engine:50021")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://engine:50021", cfg.Voicevox.URL)
}

func TestCompileOptions(t *testing.T) {
	cfg := Default()
	cfg.Timing.LinePause = 0.4
	cfg.Voicevox.DefaultSpeaker = 2

	opts := cfg.CompileOptions()
	assert.Equal(t, 0.4, opts.LinePause)
	assert.Equal(t, 2, opts.DefaultSpeaker)
}

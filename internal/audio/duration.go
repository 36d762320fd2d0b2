// Package audio probes the duration of audio files: natively for WAV/MP3,
// via ffprobe for everything else.
package audio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// Duration returns the playable length of an audio file in seconds.
func Duration(path string) (float64, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeDuration(path, func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
			return wav.Decode(f)
		})
	case ".mp3":
		return decodeDuration(path, func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
			return mp3.Decode(f)
		})
	default:
		return ffprobeDuration(path)
	}
}

func decodeDuration(path string, decode func(*os.File) (beep.StreamSeekCloser, beep.Format, error)) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	streamer, format, err := decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()).Seconds(), nil
}

// ffprobeDuration shells out to ffprobe for containers beep cannot read.
func ffprobeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe", "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("ffprobe %s: unexpected output %q", filepath.Base(path), out)
	}
	return duration, nil
}

package renderer

import (
	"fmt"
	"strings"
)

// segmentArgs encodes one still frame plus one voice track into a segment.
// The frame is looped for the full duration; apad keeps audio running
// through the trailing pause after the voice ends.
func segmentArgs(framePath, audioPath, outPath string, duration float64, fps int, encoder string, quality int) []string {
	args := []string{
		"-y",
		"-loop", "1",
		"-i", framePath,
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath)
	} else {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=r=24000:cl=mono")
	}
	args = append(args,
		"-t", fmt.Sprintf("%.3f", duration),
		"-af", "apad",
		"-r", fmt.Sprintf("%d", fps),
		"-c:v", encoder,
	)
	args = append(args, qualityArgs(encoder, quality)...)
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-ar", "44100",
		"-shortest",
		outPath,
	)
	return args
}

func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		if quality == 0 {
			quality = 60
		}
		return []string{"-q:v", fmt.Sprintf("%d", quality)}
	case "h264_nvenc":
		if quality == 0 {
			quality = 23
		}
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		if quality == 0 {
			quality = 23
		}
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// concatArgs stitches the segment files listed in listPath. Segments share
// codec parameters so the streams are copied without re-encoding.
func concatArgs(listPath, outPath string) []string {
	return []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
}

// concatList renders the concat demuxer file body. Paths with quotes are
// escaped the way the demuxer expects.
func concatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	return b.String()
}

// bgmMixArgs overlays a looped music track on the voiced video: the music
// is dropped to the configured volume, faded in at the start and out before
// the end, then mixed under the voice track.
func bgmMixArgs(videoPath, bgmPath, outPath string, total, volume, fadeIn, fadeOut float64) []string {
	filter := fmt.Sprintf(
		"[1:a]volume=%.2f,afade=t=in:st=0:d=%.1f,afade=t=out:st=%.3f:d=%.1f[bgm];"+
			"[0:a][bgm]amix=inputs=2:duration=first:dropout_transition=0[aout]",
		volume, fadeIn, total-fadeOut, fadeOut)

	return []string{
		"-y",
		"-i", videoPath,
		"-stream_loop", "-1",
		"-i", bgmPath,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-t", fmt.Sprintf("%.3f", total),
		outPath,
	}
}

// creditOverlayArgs stamps the QR image in the bottom-right corner for the
// last showFor seconds of the video.
func creditOverlayArgs(videoPath, qrPath, outPath string, total, showFor float64, encoder string, quality int) []string {
	filter := fmt.Sprintf("[0:v][1:v]overlay=W-w-40:H-h-40:enable='gte(t,%.3f)'[vout]", total-showFor)

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", qrPath,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-map", "0:a?",
		"-c:v", encoder,
	}
	args = append(args, qualityArgs(encoder, quality)...)
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", "copy",
		outPath,
	)
	return args
}

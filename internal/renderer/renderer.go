// Package renderer turns a serialized render plan into an mp4. Each speech
// event becomes one segment: a single composited frame looped for the
// segment duration over the synthesized voice track. Segments encode in
// parallel, then concatenate, then the music and credit passes run on the
// stitched file.
package renderer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"script2video/internal/assets"
	"script2video/internal/config"
	"script2video/internal/plan"
	"script2video/internal/subtitle"
	"script2video/internal/system"
	"script2video/internal/timeline"
	"script2video/internal/voice"
)

// Synthesizer produces a WAV file for one line of dialogue.
type Synthesizer interface {
	SynthesizeToFile(ctx context.Context, text string, speakerID int, p voice.Params, path string) error
}

// Options tune a render run.
type Options struct {
	Workers   int    // parallel segment encoders, 0 = 4
	Encoder   string // empty = autodetect
	Quality   int
	CreditURL string // QR overlay on the closing seconds, empty = none
	KeepTemp  bool
}

// Renderer drives the pipeline. Synth may be nil, in which case segments
// get silent audio (useful for previewing layout without an engine).
type Renderer struct {
	cfg     *config.Config
	catalog assets.Catalog
	synth   Synthesizer
	logger  *slog.Logger
	opts    Options

	imgMu    sync.Mutex
	imgCache map[string]image.Image
}

func New(cfg *config.Config, catalog assets.Catalog, synth Synthesizer, logger *slog.Logger, opts Options) *Renderer {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Encoder == "" {
		opts.Encoder = system.BestH264Encoder()
	}
	return &Renderer{
		cfg:      cfg,
		catalog:  catalog,
		synth:    synth,
		logger:   logger,
		opts:     opts,
		imgCache: make(map[string]image.Image),
	}
}

// segment is the render unit: one voiced line plus the frame state active
// while it plays.
type segment struct {
	index      int
	speech     timeline.Event
	duration   float64
	background string
	subtitle   string
	// expression per character at segment start, in first-appearance order
	expressions map[string]string
	order       []string
}

// buildSegments folds the event stream back into per-line frame states.
// Events arrive sorted by start time, so a single pass with an accumulator
// reconstructs what is on screen when each speech begins.
func buildSegments(sp *plan.SerializedPlan) []segment {
	var segs []segment
	exprs := make(map[string]string)
	var order []string
	background := ""

	note := func(character, expression string) {
		if _, seen := exprs[character]; !seen {
			order = append(order, character)
		}
		exprs[character] = expression
	}

	for _, e := range sp.Events {
		switch e.Type {
		case timeline.EventBackground:
			background = e.Asset
		case timeline.EventExpression:
			note(e.Character, e.Expression)
		case timeline.EventSpeech:
			note(e.Character, e.Expression)
			segs = append(segs, segment{
				index:       len(segs),
				speech:      e,
				background:  background,
				expressions: cloneExpressions(exprs),
				order:       append([]string(nil), order...),
			})
		case timeline.EventSubtitle:
			if n := len(segs); n > 0 && segs[n-1].speech.Start == e.Start {
				segs[n-1].subtitle = e.Text
			}
		}
	}

	// Each segment runs until the next one starts; the last absorbs the
	// trailing pause.
	for i := range segs {
		if i+1 < len(segs) {
			segs[i].duration = segs[i+1].speech.Start - segs[i].speech.Start
		} else {
			segs[i].duration = sp.TotalDuration - segs[i].speech.Start
		}
	}
	return segs
}

func cloneExpressions(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Render encodes the plan into outPath.
func (r *Renderer) Render(ctx context.Context, sp *plan.SerializedPlan, outPath string) error {
	segs := buildSegments(sp)
	if len(segs) == 0 {
		return fmt.Errorf("plan has no speech events")
	}

	workDir, err := os.MkdirTemp("", "script2video-")
	if err != nil {
		return err
	}
	if !r.opts.KeepTemp {
		defer os.RemoveAll(workDir)
	}

	style, cleanup, err := r.subtitleStyle()
	if err != nil {
		// Render without subtitles rather than failing the whole run.
		r.logger.Warn("subtitles disabled", "error", err)
		style, cleanup = nil, func() {}
	}
	defer cleanup()

	r.logger.Info("rendering", "segments", len(segs), "encoder", r.opts.Encoder,
		"workers", r.opts.Workers, "duration", sp.TotalDuration)

	segPaths := make([]string, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, seg := range segs {
		g.Go(func() error {
			path, err := r.renderSegment(gctx, sp, seg, style, workDir)
			if err != nil {
				return fmt.Errorf("segment %d (scene %s): %w", seg.index, seg.speech.SceneID, err)
			}
			segPaths[seg.index] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	listPath := filepath.Join(workDir, "segments.txt")
	if err := os.WriteFile(listPath, []byte(concatList(segPaths)), 0644); err != nil {
		return err
	}
	voiced := filepath.Join(workDir, "voiced.mp4")
	if err := r.ffmpeg(ctx, concatArgs(listPath, voiced)); err != nil {
		return fmt.Errorf("concatenate: %w", err)
	}

	current := voiced

	var bgms []timeline.Event
	for _, e := range sp.Events {
		if e.Type == timeline.EventBGM {
			bgms = append(bgms, e)
		}
	}
	if len(bgms) > 0 {
		if len(bgms) > 1 {
			r.logger.Warn("multiple bgm tracks in plan, using the first for the whole video",
				"tracks", len(bgms))
		}
		mixed := filepath.Join(workDir, "mixed.mp4")
		if err := r.mixBGM(ctx, bgms[0], current, mixed, sp.TotalDuration); err != nil {
			return fmt.Errorf("mix bgm: %w", err)
		}
		current = mixed
	}

	if r.opts.CreditURL != "" {
		credited := filepath.Join(workDir, "credited.mp4")
		if err := r.overlayCredit(ctx, current, credited, sp.TotalDuration); err != nil {
			return fmt.Errorf("credit overlay: %w", err)
		}
		current = credited
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	if err := moveFile(current, outPath); err != nil {
		return err
	}
	r.logger.Info("render complete", "output", outPath)
	return nil
}

// renderSegment synthesizes the line, composes its frame and encodes the
// pair into a standalone mp4.
func (r *Renderer) renderSegment(ctx context.Context, sp *plan.SerializedPlan, seg segment, style *SubtitleStyle, workDir string) (string, error) {
	audioPath := ""
	if r.synth != nil {
		audioPath = filepath.Join(workDir, fmt.Sprintf("line_%04d.wav", seg.index))
		params := voice.Params{}
		if v := seg.speech.Voice; v != nil {
			params = voice.Params{Speed: v.Speed, Pitch: v.Pitch, Volume: v.Volume}
		}
		speakerID := 0
		if seg.speech.Voice != nil {
			speakerID = seg.speech.Voice.SpeakerID
		}
		if err := r.synth.SynthesizeToFile(ctx, seg.speech.Text, speakerID, params, audioPath); err != nil {
			return "", fmt.Errorf("synthesize: %w", err)
		}
	}

	frame, err := r.composeSegmentFrame(sp, seg, style)
	if err != nil {
		return "", err
	}
	framePath := filepath.Join(workDir, fmt.Sprintf("frame_%04d.png", seg.index))
	err = savePNG(frame, framePath)
	system.PutImage(frame)
	if err != nil {
		return "", err
	}

	segPath := filepath.Join(workDir, fmt.Sprintf("seg_%04d.mp4", seg.index))
	args := segmentArgs(framePath, audioPath, segPath, seg.duration,
		sp.Settings.FPS, r.opts.Encoder, r.opts.Quality)
	if err := r.ffmpeg(ctx, args); err != nil {
		return "", err
	}
	return segPath, nil
}

func (r *Renderer) composeSegmentFrame(sp *plan.SerializedPlan, seg segment, style *SubtitleStyle) (*image.RGBA, error) {
	width, height := sp.Settings.Width(), sp.Settings.Height()

	spec := FrameSpec{Width: width, Height: height}
	if seg.background != "" {
		bg, err := r.backgroundImage(seg.background)
		if err != nil {
			return nil, err
		}
		spec.Background = bg
	}

	for i, character := range seg.order {
		img, err := r.portraitImage(character, seg.expressions[character])
		if err != nil {
			return nil, err
		}
		x, y, scale := r.portraitPlacement(character, i, len(seg.order), width, height)
		spec.Portraits = append(spec.Portraits, Portrait{
			Image:    img,
			X:        x,
			Y:        y,
			Scale:    scale,
			Speaking: character == seg.speech.Character,
		})
	}

	if seg.subtitle != "" {
		spec.SubtitleLines = strings.Split(seg.subtitle, "\n")
	}
	return ComposeFrame(spec, style), nil
}

// portraitPlacement uses the configured position when one exists, otherwise
// spreads the cast evenly along the bottom edge.
func (r *Renderer) portraitPlacement(character string, index, count, width, height int) (x, y int, scale float64) {
	if cc, ok := r.cfg.Characters[character]; ok {
		if len(cc.Position) == 2 {
			x, y = cc.Position[0], cc.Position[1]
		}
		scale = cc.Scale
	}
	if x == 0 && y == 0 {
		x = width * (index + 1) / (count + 1)
		y = height
	}
	if scale == 0 {
		scale = 1.0
	}
	return x, y, scale
}

func (r *Renderer) backgroundImage(key string) (image.Image, error) {
	return r.cachedImage("bg:"+key, func() (image.Image, error) {
		asset, err := r.catalog.ResolveBackground(key)
		if err != nil {
			return nil, err
		}
		if asset.Page > 0 {
			return assets.RenderDeckPage(asset.Path, asset.Page, r.cfg.Video.DPI)
		}
		return loadImage(asset.Path)
	})
}

func (r *Renderer) portraitImage(character, expression string) (image.Image, error) {
	return r.cachedImage("char:"+character+"/"+expression, func() (image.Image, error) {
		asset, err := r.catalog.ResolveExpression(character, expression)
		if err != nil {
			return nil, err
		}
		return loadImage(asset.Path)
	})
}

func (r *Renderer) cachedImage(key string, load func() (image.Image, error)) (image.Image, error) {
	r.imgMu.Lock()
	defer r.imgMu.Unlock()
	if img, ok := r.imgCache[key]; ok {
		return img, nil
	}
	img, err := load()
	if err != nil {
		return nil, err
	}
	r.imgCache[key] = img
	return img, nil
}

func (r *Renderer) subtitleStyle() (*SubtitleStyle, func(), error) {
	sc := r.cfg.Subtitle
	m, err := subtitle.NewMeasurer(sc.Font, float64(sc.FontSize))
	if err != nil {
		return nil, nil, fmt.Errorf("load subtitle font: %w", err)
	}
	fill, err := ParseHexColor(sc.Color)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	stroke, err := ParseHexColor(sc.StrokeColor)
	if err != nil {
		m.Close()
		return nil, nil, err
	}
	style := &SubtitleStyle{
		Face:         m.Face(),
		Color:        fill,
		StrokeColor:  stroke,
		StrokeWidth:  sc.StrokeWidth,
		MarginBottom: sc.MarginBottom,
	}
	return style, func() { m.Close() }, nil
}

func (r *Renderer) mixBGM(ctx context.Context, bgm timeline.Event, inPath, outPath string, total float64) error {
	asset, err := r.catalog.ResolveBGM(bgm.Asset)
	if err != nil {
		return err
	}
	volume := bgm.Volume
	if volume == 0 {
		volume = 0.3
	}
	return r.ffmpeg(ctx, bgmMixArgs(inPath, asset.Path, outPath, total, volume,
		r.cfg.Timing.BGMFadeIn, r.cfg.Timing.BGMFadeOut))
}

func (r *Renderer) overlayCredit(ctx context.Context, inPath, outPath string, total float64) error {
	qrPath := filepath.Join(filepath.Dir(outPath), "credit_qr.png")
	if err := writeCreditQR(r.opts.CreditURL, qrPath); err != nil {
		return err
	}
	return r.ffmpeg(ctx, creditOverlayArgs(inPath, qrPath, outPath, total, creditShowSeconds,
		r.opts.Encoder, r.opts.Quality))
}

func (r *Renderer) ffmpeg(ctx context.Context, args []string) error {
	r.logger.Debug("ffmpeg", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(string(out), 800))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// moveFile renames, falling back to copy when the temp dir sits on another
// filesystem.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

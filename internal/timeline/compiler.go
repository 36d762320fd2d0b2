package timeline

import (
	"context"
	"time"

	"script2video/internal/script"
	"script2video/internal/subtitle"
)

// DurationEstimator maps spoken text to an expected audio duration in
// seconds. Implementations wrap the speech-synthesis engine's timing or a
// character-count heuristic.
type DurationEstimator interface {
	EstimateDuration(ctx context.Context, text string, speakerID int) (float64, error)
}

// Options control compilation. The zero value gets the documented defaults.
type Options struct {
	// LinePause is the silence inserted after each line unless the line
	// carries its own pause_after. Non-zero by default to keep consecutive
	// speech clips from colliding.
	LinePause float64

	// MaxSubtitleRunes is the wrap budget for subtitle text.
	MaxSubtitleRunes int

	// Speakers maps character identifiers to engine voice IDs; characters
	// not listed use DefaultSpeaker.
	Speakers       map[string]int
	DefaultSpeaker int

	// RetryAttempts/RetryBackoff bound the retry loop around the duration
	// estimator for transient failures.
	RetryAttempts int
	RetryBackoff  time.Duration
}

const (
	DefaultLinePause     = 0.30
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 500 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.LinePause == 0 {
		o.LinePause = DefaultLinePause
	}
	if o.MaxSubtitleRunes == 0 {
		o.MaxSubtitleRunes = subtitle.DefaultMaxRunes
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	return o
}

// compileState is the accumulator threaded through the fold: the timeline
// cursor plus the last-known expression per character and the last resolved
// background/BGM. Carried explicitly so events are pure functions of it.
type compileState struct {
	cursor         float64
	lastExpression map[string]string
	lastBackground string
	lastBGM        string
	counters       map[EventType]int
}

// Compile walks the script in document order and produces the render plan.
// The only suspension point is the duration-estimation call; the context is
// checked between lines so a caller can abort mid-script. On any failure the
// partial timeline is discarded.
func Compile(ctx context.Context, s *script.Script, est DurationEstimator, opts Options) (*RenderPlan, error) {
	opts = opts.withDefaults()

	st := compileState{
		lastExpression: make(map[string]string),
		counters:       make(map[EventType]int),
	}
	var events []Event

	emit := func(e Event) {
		st.counters[e.Type]++
		e.ID = eventID(e.Type, st.counters[e.Type])
		events = append(events, e)
	}

	for _, scene := range s.Scenes {
		background := scene.Background
		if background == "" {
			background = s.Settings.Background
		}
		if background != "" && background != st.lastBackground {
			emit(Event{
				Type:    EventBackground,
				Start:   st.cursor,
				Layer:   LayerBackground,
				SceneID: scene.ID,
				Asset:   background,
			})
			st.lastBackground = background
		}

		bgm := scene.BGM
		if bgm == "" {
			bgm = s.Settings.BGM
		}
		if bgm != "" && bgm != st.lastBGM {
			emit(Event{
				Type:    EventBGM,
				Start:   st.cursor,
				Layer:   LayerBackground,
				SceneID: scene.ID,
				Asset:   bgm,
				Volume:  scene.BGMVolume,
			})
			st.lastBGM = bgm
		}

		for i, line := range scene.Lines {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			speaker := opts.DefaultSpeaker
			if id, ok := opts.Speakers[line.Character]; ok {
				speaker = id
			}

			duration := line.Duration
			if duration == 0 {
				var err error
				duration, err = estimateWithRetry(ctx, est, line.Text, speaker, opts)
				if err != nil {
					if ctx.Err() != nil {
						return nil, ctx.Err()
					}
					return nil, &CompileError{
						Kind:      DurationUnavailable,
						SceneID:   scene.ID,
						LineIndex: i,
						Err:       err,
					}
				}
			}

			if st.lastExpression[line.Character] != line.Expression {
				emit(Event{
					Type:       EventExpression,
					Start:      st.cursor,
					Layer:      LayerCharacter,
					SceneID:    scene.ID,
					Character:  line.Character,
					Expression: line.Expression,
				})
				st.lastExpression[line.Character] = line.Expression
			}

			emit(Event{
				Type:       EventSpeech,
				Start:      st.cursor,
				Duration:   duration,
				Layer:      LayerDialogue,
				SceneID:    scene.ID,
				Character:  line.Character,
				Expression: line.Expression,
				Text:       line.Text,
				Voice: &VoiceParams{
					SpeakerID: speaker,
					Speed:     line.Speed,
					Pitch:     line.Pitch,
					Volume:    line.Volume,
				},
			})

			emit(Event{
				Type:      EventSubtitle,
				Start:     st.cursor,
				Duration:  duration,
				Layer:     LayerDialogue,
				SceneID:   scene.ID,
				Character: line.Character,
				Text:      subtitle.WrapText(line.Text, opts.MaxSubtitleRunes),
			})

			pause := opts.LinePause
			if line.PauseAfter != nil {
				pause = *line.PauseAfter
			}
			st.cursor += duration + pause
		}
	}

	// The trailing pause stays in: it gives the video breathing room before
	// the end and keeps BGM fade-out off the last syllable.
	total := st.cursor
	finalizeSpans(events, total)

	return &RenderPlan{
		Version:       PlanVersion,
		Title:         s.Title,
		Settings:      s.Settings,
		TotalDuration: total,
		Events:        events,
	}, nil
}

// estimateWithRetry asks the estimator up to opts.RetryAttempts times with a
// fixed backoff between attempts, honoring context cancellation while waiting.
func estimateWithRetry(ctx context.Context, est DurationEstimator, text string, speaker int, opts Options) (float64, error) {
	var lastErr error
	for attempt := 0; attempt < opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(opts.RetryBackoff):
			}
		}
		d, err := est.EstimateDuration(ctx, text, speaker)
		if err == nil {
			return d, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

// finalizeSpans stretches background and BGM change events to the next
// change of the same type, or to the end of the plan. Change events are
// emitted with zero duration during the walk because their extent is not
// known until the whole script has been compiled.
func finalizeSpans(events []Event, total float64) {
	for _, t := range []EventType{EventBackground, EventBGM} {
		prev := -1
		for i, e := range events {
			if e.Type != t {
				continue
			}
			if prev >= 0 {
				events[prev].Duration = e.Start - events[prev].Start
			}
			prev = i
		}
		if prev >= 0 {
			events[prev].Duration = total - events[prev].Start
		}
	}
}

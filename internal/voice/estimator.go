package voice

import "context"

// EstimateDuration derives a line's spoken duration from the engine's audio
// query without synthesizing any audio. Satisfies timeline.DurationEstimator.
func (c *Client) EstimateDuration(ctx context.Context, text string, speakerID int) (float64, error) {
	query, err := c.CreateAudioQuery(ctx, text, speakerID)
	if err != nil {
		return 0, err
	}
	return query.Duration(), nil
}

// HeuristicEstimator approximates duration from rune count, for offline
// compilation when no engine is running. The default rate is tuned for
// conversational Japanese; MinDuration keeps one-word lines readable.
type HeuristicEstimator struct {
	RunesPerSecond float64
	MinDuration    float64
}

const (
	defaultRunesPerSecond = 7.0
	defaultMinDuration    = 1.0
)

// NewHeuristicEstimator returns an estimator with the documented defaults.
func NewHeuristicEstimator() HeuristicEstimator {
	return HeuristicEstimator{
		RunesPerSecond: defaultRunesPerSecond,
		MinDuration:    defaultMinDuration,
	}
}

func (h HeuristicEstimator) EstimateDuration(_ context.Context, text string, _ int) (float64, error) {
	rate := h.RunesPerSecond
	if rate <= 0 {
		rate = defaultRunesPerSecond
	}
	min := h.MinDuration
	if min <= 0 {
		min = defaultMinDuration
	}

	d := float64(len([]rune(text))) / rate
	if d < min {
		d = min
	}
	return d, nil
}

// Package voice talks to a VOICEVOX-compatible speech synthesis engine over
// its HTTP API and derives spoken durations from its audio queries.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultBaseURL is where a locally running VOICEVOX Engine listens.
const DefaultBaseURL = "http://localhost:50021"

// ErrUnavailable marks transient engine failures (connection refused, 5xx).
// The timeline compiler retries these with bounded attempts.
var ErrUnavailable = errors.New("voice engine unavailable")

// Client is a synchronous VOICEVOX Engine API client.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the engine at baseURL (empty means the
// local default).
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Available reports whether the engine answers its /version endpoint.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.Version(ctx)
	return err == nil
}

// Version fetches the engine version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/version", nil)
	if err != nil {
		return "", err
	}
	var v string
	if err := json.Unmarshal(body, &v); err != nil {
		// Some engine builds return the bare string without JSON quoting.
		return string(bytes.TrimSpace(body)), nil
	}
	return v, nil
}

// SpeakerStyle is one selectable voice style of a speaker.
type SpeakerStyle struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Speaker is one installed voice with its styles.
type Speaker struct {
	Name   string         `json:"name"`
	UUID   string         `json:"speaker_uuid"`
	Styles []SpeakerStyle `json:"styles"`
}

// Speakers lists the voices the engine has installed.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	body, err := c.get(ctx, "/speakers", nil)
	if err != nil {
		return nil, err
	}
	var speakers []Speaker
	if err := json.Unmarshal(body, &speakers); err != nil {
		return nil, fmt.Errorf("decode speakers: %w", err)
	}
	return speakers, nil
}

// Params adjust a synthesis query. Zero values mean engine defaults
// (speed/intonation/volume 1.0, pitch 0.0).
type Params struct {
	Speed      float64
	Pitch      float64
	Intonation float64
	Volume     float64
}

// AudioQuery is the engine's synthesis query. It is kept as the raw decoded
// document because /synthesis expects the full object back, including fields
// this client does not model.
type AudioQuery map[string]any

// CreateAudioQuery asks the engine to build a synthesis query for text.
func (c *Client) CreateAudioQuery(ctx context.Context, text string, speakerID int) (AudioQuery, error) {
	q := url.Values{"text": {text}, "speaker": {strconv.Itoa(speakerID)}}
	body, err := c.post(ctx, "/audio_query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var query AudioQuery
	if err := json.Unmarshal(body, &query); err != nil {
		return nil, fmt.Errorf("decode audio query: %w", err)
	}
	return query, nil
}

// Apply writes the non-zero params into the query.
func (q AudioQuery) Apply(p Params) {
	if p.Speed != 0 {
		q["speedScale"] = p.Speed
	}
	if p.Pitch != 0 {
		q["pitchScale"] = p.Pitch
	}
	if p.Intonation != 0 {
		q["intonationScale"] = p.Intonation
	}
	if p.Volume != 0 {
		q["volumeScale"] = p.Volume
	}
}

// Duration sums the query's mora lengths (consonant + vowel, plus pause
// moras) and divides by the speed scale. This is the engine's own notion of
// how long the synthesized audio will be.
func (q AudioQuery) Duration() float64 {
	total := 0.0
	phrases, _ := q["accent_phrases"].([]any)
	for _, p := range phrases {
		phrase, _ := p.(map[string]any)
		moras, _ := phrase["moras"].([]any)
		for _, m := range moras {
			total += moraLength(m)
		}
		if pause, ok := phrase["pause_mora"]; ok && pause != nil {
			total += moraLength(pause)
		}
	}

	if speed, ok := q["speedScale"].(float64); ok && speed > 0 {
		total /= speed
	}
	return total
}

func moraLength(v any) float64 {
	mora, _ := v.(map[string]any)
	total := 0.0
	if c, ok := mora["consonant_length"].(float64); ok {
		total += c
	}
	if vl, ok := mora["vowel_length"].(float64); ok {
		total += vl
	}
	return total
}

// Synthesize renders a query into WAV audio.
func (c *Client) Synthesize(ctx context.Context, query AudioQuery, speakerID int) ([]byte, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode audio query: %w", err)
	}
	q := url.Values{"speaker": {strconv.Itoa(speakerID)}}
	return c.post(ctx, "/synthesis?"+q.Encode(), payload)
}

// TextToSpeech runs the audio_query + synthesis round trip.
func (c *Client) TextToSpeech(ctx context.Context, text string, speakerID int, p Params) ([]byte, error) {
	c.logger.Debug("synthesizing", "speaker", speakerID, "chars", len([]rune(text)))

	query, err := c.CreateAudioQuery(ctx, text, speakerID)
	if err != nil {
		return nil, err
	}
	query.Apply(p)
	return c.Synthesize(ctx, query, speakerID)
}

// SynthesizeToFile writes the synthesized WAV to path, creating parent
// directories as needed.
func (c *Client) SynthesizeToFile(ctx context.Context, text string, speakerID int, p Params, path string) error {
	data, err := c.TextToSpeech(ctx, text, speakerID, p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Client) get(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, body)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %v: %w", method, path, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, ErrUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

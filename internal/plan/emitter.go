// Package plan validates a compiled timeline against the asset catalog and
// serializes it into the backend-agnostic document handed to the renderer.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"script2video/internal/assets"
	"script2video/internal/script"
	"script2video/internal/timeline"
)

// ErrorKind classifies emission failures.
type ErrorKind string

const (
	// MissingAsset means a plan event references a character expression,
	// background or BGM the catalog cannot resolve. Emission refuses to
	// substitute a default: the output would not match the authored script.
	MissingAsset ErrorKind = "missing_asset"
)

// EmitError names the unresolvable reference.
type EmitError struct {
	Kind      ErrorKind
	AssetKind assets.Kind
	Key       string
	Err       error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emit: %s: %s %q: %v", e.Kind, e.AssetKind, e.Key, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}

// SerializedPlan is the final artifact. The ID is derived from the plan
// content, so identical compilations emit byte-identical documents.
type SerializedPlan struct {
	Version       string           `yaml:"version" json:"version"`
	ID            string           `yaml:"id" json:"id"`
	Title         string           `yaml:"title" json:"title"`
	Settings      script.Settings  `yaml:"settings" json:"settings"`
	TotalDuration float64          `yaml:"total_duration" json:"total_duration"`
	Events        []timeline.Event `yaml:"events" json:"events"`
}

// planNamespace seeds the content-derived plan IDs.
var planNamespace = uuid.MustParse("a2b8f0d4-5c31-4f3e-9b6a-7e2d8c1f0a59")

// Emit runs the final validation pass and produces the serialized plan.
// Every asset reference must resolve; emission is all-or-nothing.
func Emit(p *timeline.RenderPlan, catalog assets.Catalog) (*SerializedPlan, error) {
	if err := validateAssets(p, catalog); err != nil {
		return nil, err
	}

	events := make([]timeline.Event, len(p.Events))
	copy(events, p.Events)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start != events[j].Start {
			return events[i].Start < events[j].Start
		}
		return events[i].Layer < events[j].Layer
	})

	sp := &SerializedPlan{
		Version:       p.Version,
		Title:         p.Title,
		Settings:      p.Settings,
		TotalDuration: p.TotalDuration,
		Events:        events,
	}

	body, err := yaml.Marshal(sp)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	sp.ID = uuid.NewSHA1(planNamespace, body).String()
	return sp, nil
}

// validateAssets checks every distinct reference once.
func validateAssets(p *timeline.RenderPlan, catalog assets.Catalog) error {
	checkedExpr := make(map[string]bool)
	checkedBG := make(map[string]bool)
	checkedBGM := make(map[string]bool)

	fail := func(kind assets.Kind, key string, err error) error {
		return &EmitError{Kind: MissingAsset, AssetKind: kind, Key: key, Err: err}
	}

	for _, e := range p.Events {
		switch e.Type {
		case timeline.EventSpeech, timeline.EventExpression:
			key := e.Character + "/" + e.Expression
			if checkedExpr[key] {
				continue
			}
			checkedExpr[key] = true
			if _, err := catalog.ResolveExpression(e.Character, e.Expression); err != nil {
				if errors.Is(err, assets.ErrNotFound) {
					return fail(assets.KindCharacter, key, err)
				}
				return err
			}
		case timeline.EventBackground:
			if checkedBG[e.Asset] {
				continue
			}
			checkedBG[e.Asset] = true
			if _, err := catalog.ResolveBackground(e.Asset); err != nil {
				if errors.Is(err, assets.ErrNotFound) {
					return fail(assets.KindBackground, e.Asset, err)
				}
				return err
			}
		case timeline.EventBGM:
			if checkedBGM[e.Asset] {
				continue
			}
			checkedBGM[e.Asset] = true
			if _, err := catalog.ResolveBGM(e.Asset); err != nil {
				if errors.Is(err, assets.ErrNotFound) {
					return fail(assets.KindBGM, e.Asset, err)
				}
				return err
			}
		}
	}
	return nil
}

// Write saves a plan as YAML.
func Write(sp *SerializedPlan, path string) error {
	data, err := yaml.Marshal(sp)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads a plan written by Write.
func Read(path string) (*SerializedPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sp SerializedPlan
	if err := yaml.Unmarshal(data, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

// WriteJSON saves a plan as indented JSON, for consumers that prefer it.
func WriteJSON(sp *SerializedPlan, path string) error {
	data, err := json.MarshalIndent(sp, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

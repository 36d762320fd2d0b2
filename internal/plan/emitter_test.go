package plan

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"script2video/internal/assets"
	"script2video/internal/script"
	"script2video/internal/timeline"
)

// fakeCatalog resolves from in-memory sets.
type fakeCatalog struct {
	expressions map[string]bool // "character/expression"
	backgrounds map[string]bool
	bgm         map[string]bool
}

func (c *fakeCatalog) ResolveExpression(character, expression string) (*assets.Asset, error) {
	key := character + "/" + expression
	if !c.expressions[key] {
		return nil, fmt.Errorf("%s: %w", key, assets.ErrNotFound)
	}
	return &assets.Asset{Kind: assets.KindCharacter, Name: key}, nil
}

func (c *fakeCatalog) ResolveBackground(name string) (*assets.Asset, error) {
	if !c.backgrounds[name] {
		return nil, fmt.Errorf("%s: %w", name, assets.ErrNotFound)
	}
	return &assets.Asset{Kind: assets.KindBackground, Name: name}, nil
}

func (c *fakeCatalog) ResolveBGM(name string) (*assets.Asset, error) {
	if !c.bgm[name] {
		return nil, fmt.Errorf("%s: %w", name, assets.ErrNotFound)
	}
	return &assets.Asset{Kind: assets.KindBGM, Name: name}, nil
}

type fixedEstimator float64

func (f fixedEstimator) EstimateDuration(context.Context, string, int) (float64, error) {
	return float64(f), nil
}

func compilePlan(t *testing.T, src string) *timeline.RenderPlan {
	t.Helper()
	s, err := script.Parse([]byte(src))
	require.NoError(t, err)
	p, err := timeline.Compile(context.Background(), s, fixedEstimator(2.0), timeline.Options{})
	require.NoError(t, err)
	return p
}

const planScript = `
title: Emit Test
settings: {background: classroom, bgm: lofi}
scenes:
  - id: a
    lines:
      - {character: reimu, text: "hello", expression: smile}
      - {character: marisa, text: "hey"}
`

func fullCatalog() *fakeCatalog {
	return &fakeCatalog{
		expressions: map[string]bool{"reimu/smile": true, "marisa/normal": true},
		backgrounds: map[string]bool{"classroom": true},
		bgm:         map[string]bool{"lofi": true},
	}
}

func TestEmit(t *testing.T) {
	p := compilePlan(t, planScript)

	sp, err := Emit(p, fullCatalog())
	require.NoError(t, err)

	assert.Equal(t, timeline.PlanVersion, sp.Version)
	assert.Equal(t, "Emit Test", sp.Title)
	assert.NotEmpty(t, sp.ID)
	assert.Len(t, sp.Events, len(p.Events))

	// Events come out ordered by start offset, then layer.
	for i := 1; i < len(sp.Events); i++ {
		prev, cur := sp.Events[i-1], sp.Events[i]
		assert.True(t, prev.Start < cur.Start ||
			(prev.Start == cur.Start && prev.Layer <= cur.Layer))
	}
}

func TestEmitDeterministicID(t *testing.T) {
	sp1, err := Emit(compilePlan(t, planScript), fullCatalog())
	require.NoError(t, err)
	sp2, err := Emit(compilePlan(t, planScript), fullCatalog())
	require.NoError(t, err)

	assert.Equal(t, sp1.ID, sp2.ID)
	assert.Equal(t, sp1, sp2)
}

func TestEmitMissingExpression(t *testing.T) {
	p := compilePlan(t, planScript)

	cat := fullCatalog()
	delete(cat.expressions, "reimu/smile")

	sp, err := Emit(p, cat)
	assert.Nil(t, sp)
	require.Error(t, err)

	var eerr *EmitError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, MissingAsset, eerr.Kind)
	assert.Equal(t, assets.KindCharacter, eerr.AssetKind)
	assert.Equal(t, "reimu/smile", eerr.Key)
	assert.ErrorIs(t, err, assets.ErrNotFound)
}

func TestEmitMissingBackground(t *testing.T) {
	p := compilePlan(t, planScript)

	cat := fullCatalog()
	cat.backgrounds = nil

	_, err := Emit(p, cat)
	var eerr *EmitError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, assets.KindBackground, eerr.AssetKind)
	assert.Equal(t, "classroom", eerr.Key)
}

func TestEmitMissingBGM(t *testing.T) {
	p := compilePlan(t, planScript)

	cat := fullCatalog()
	cat.bgm = nil

	_, err := Emit(p, cat)
	var eerr *EmitError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, assets.KindBGM, eerr.AssetKind)
}

func TestWriteRead(t *testing.T) {
	sp, err := Emit(compilePlan(t, planScript), fullCatalog())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, Write(sp, path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, sp, got)
}

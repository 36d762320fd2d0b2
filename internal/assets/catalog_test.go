package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLibrary lays out a small asset tree in a temp dir.
func testLibrary(t *testing.T) *Library {
	t.Helper()
	root := t.TempDir()

	files := map[string][]byte{
		"characters/reimu/normal.png":  []byte("png-reimu-normal"),
		"characters/reimu/smile.png":   []byte("png-reimu-smile"),
		"characters/marisa/normal.png": []byte("png-marisa-normal"),
		"characters/marisa/happy.png":  []byte("png-marisa-happy"),
		"backgrounds/classroom.png":    []byte("png-classroom"),
		"backgrounds/lab.jpg":          []byte("jpg-lab"),
		"bgm/lofi.mp3":                 []byte("mp3-lofi"),
	}
	for rel, data := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, data, 0644))
	}

	return NewLibrary(
		filepath.Join(root, "characters"),
		filepath.Join(root, "backgrounds"),
		filepath.Join(root, "bgm"),
	)
}

func TestResolveExpression(t *testing.T) {
	lib := testLibrary(t)

	a, err := lib.ResolveExpression("reimu", "smile")
	require.NoError(t, err)
	assert.Equal(t, KindCharacter, a.Kind)
	assert.Equal(t, "reimu/smile", a.Name)
	assert.FileExists(t, a.Path)
}

func TestResolveExpressionAlias(t *testing.T) {
	lib := testLibrary(t)

	// marisa has happy.png; "smile" resolves through the alias list.
	a, err := lib.ResolveExpression("marisa", "smile")
	require.NoError(t, err)
	assert.Contains(t, a.Path, "happy.png")
}

func TestResolveExpressionMissing(t *testing.T) {
	lib := testLibrary(t)

	_, err := lib.ResolveExpression("reimu", "angry")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lib.ResolveExpression("nobody", "normal")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveBackground(t *testing.T) {
	lib := testLibrary(t)

	a, err := lib.ResolveBackground("classroom")
	require.NoError(t, err)
	assert.Equal(t, KindBackground, a.Kind)

	// Extension already present in the key.
	a, err = lib.ResolveBackground("lab.jpg")
	require.NoError(t, err)
	assert.Contains(t, a.Path, "lab.jpg")

	_, err = lib.ResolveBackground("space")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveBGM(t *testing.T) {
	lib := testLibrary(t)

	a, err := lib.ResolveBGM("lofi")
	require.NoError(t, err)
	assert.Equal(t, KindBGM, a.Kind)

	_, err = lib.ResolveBGM("metal")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseDeckRef(t *testing.T) {
	deck, page, ok := ParseDeckRef("slides.pdf#4")
	assert.True(t, ok)
	assert.Equal(t, "slides.pdf", deck)
	assert.Equal(t, 4, page)

	_, _, ok = ParseDeckRef("classroom")
	assert.False(t, ok)
	_, _, ok = ParseDeckRef("slides.pdf#zero")
	assert.False(t, ok)
	_, _, ok = ParseDeckRef("slides.png#2")
	assert.False(t, ok)
	_, _, ok = ParseDeckRef("slides.pdf#0")
	assert.False(t, ok)
}

func TestIndexRebuildAndLookup(t *testing.T) {
	lib := testLibrary(t)

	ix, err := OpenIndex(filepath.Join(t.TempDir(), "assets.db"), nil)
	require.NoError(t, err)
	defer ix.Close()

	ctx := context.Background()
	count, err := ix.Rebuild(ctx, lib)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	a, err := ix.Lookup(ctx, KindCharacter, "reimu/smile")
	require.NoError(t, err)
	assert.FileExists(t, a.Path)

	_, err = ix.Lookup(ctx, KindBGM, "metal")
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := ix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats[KindCharacter].Count)
	assert.Equal(t, 2, stats[KindBackground].Count)
	assert.Equal(t, 1, stats[KindBGM].Count)

	// Rebuild is idempotent.
	count, err = ix.Rebuild(ctx, lib)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

// Package assets resolves the character, background and BGM identifiers a
// render plan references into concrete files on disk.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when an identifier has no backing asset.
var ErrNotFound = errors.New("asset not found")

// Kind labels what an asset is used for.
type Kind string

const (
	KindCharacter  Kind = "character"
	KindBackground Kind = "background"
	KindBGM        Kind = "bgm"
)

// File extensions accepted per asset kind.
var kindExtensions = map[Kind][]string{
	KindCharacter:  {".png", ".webp", ".gif"},
	KindBackground: {".png", ".jpg", ".jpeg", ".webp"},
	KindBGM:        {".mp3", ".wav", ".ogg", ".m4a", ".flac"},
}

// Asset is a resolved reference. Page is set only for PDF deck backgrounds.
type Asset struct {
	Kind Kind
	Name string
	Path string
	Size int64
	Page int
}

// Catalog maps script identifiers to renderable assets. The plan emitter
// validates against it; the renderer loads through it.
type Catalog interface {
	ResolveExpression(character, expression string) (*Asset, error)
	ResolveBackground(name string) (*Asset, error)
	ResolveBGM(name string) (*Asset, error)
}

// Expression aliases: scripts may use any of the alternates.
var expressionAliases = map[string][]string{
	"normal":    {"default", "neutral"},
	"smile":     {"happy"},
	"sad":       {"cry"},
	"angry":     {"mad"},
	"surprised": {"shock"},
	"smug":      {"proud"},
}

// Library is the filesystem catalog: portrait sets under
// <characters>/<name>/<expression>.png, flat background and BGM directories.
type Library struct {
	CharactersDir  string
	BackgroundsDir string
	BGMDir         string
}

// NewLibrary builds a Library over the three asset directories.
func NewLibrary(charactersDir, backgroundsDir, bgmDir string) *Library {
	return &Library{
		CharactersDir:  charactersDir,
		BackgroundsDir: backgroundsDir,
		BGMDir:         bgmDir,
	}
}

// ResolveExpression finds the portrait image for a character/expression
// pair. Aliases are tried after the literal name. A missing expression is an
// error, never silently substituted: a wrong portrait would not match the
// authored script.
func (l *Library) ResolveExpression(character, expression string) (*Asset, error) {
	dir := filepath.Join(l.CharactersDir, character)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("character %q: %w", character, ErrNotFound)
	}

	names := append([]string{expression}, expressionAliases[expression]...)
	for _, name := range names {
		for _, ext := range kindExtensions[KindCharacter] {
			path := filepath.Join(dir, name+ext)
			if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
				return &Asset{
					Kind: KindCharacter,
					Name: character + "/" + expression,
					Path: path,
					Size: fi.Size(),
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("character %q expression %q: %w", character, expression, ErrNotFound)
}

// ResolveBackground finds a background image. Keys of the form
// "deck.pdf#3" refer to page 3 of a PDF slide deck in the backgrounds
// directory.
func (l *Library) ResolveBackground(name string) (*Asset, error) {
	if deck, page, ok := ParseDeckRef(name); ok {
		return l.resolveDeckPage(deck, page, name)
	}
	return resolveFlat(l.BackgroundsDir, name, KindBackground)
}

// ResolveBGM finds a music track by name.
func (l *Library) ResolveBGM(name string) (*Asset, error) {
	return resolveFlat(l.BGMDir, name, KindBGM)
}

// resolveFlat looks up <dir>/<name><ext> for each accepted extension; a name
// that already carries an extension is tried verbatim first.
func resolveFlat(dir, name string, kind Kind) (*Asset, error) {
	candidates := []string{filepath.Join(dir, name)}
	if filepath.Ext(name) == "" {
		candidates = candidates[:0]
		for _, ext := range kindExtensions[kind] {
			candidates = append(candidates, filepath.Join(dir, name+ext))
		}
	}

	for _, path := range candidates {
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return &Asset{Kind: kind, Name: name, Path: path, Size: fi.Size()}, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
}

package assets

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ParseDeckRef splits a "deck.pdf#3" background key into the deck filename
// and its 1-based page number.
func ParseDeckRef(key string) (deck string, page int, ok bool) {
	name, frag, found := strings.Cut(key, "#")
	if !found || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", 0, false
	}
	n, err := strconv.Atoi(frag)
	if err != nil || n < 1 {
		return "", 0, false
	}
	return name, n, true
}

// resolveDeckPage checks the deck exists and actually has the page.
func (l *Library) resolveDeckPage(deck string, page int, key string) (*Asset, error) {
	path := filepath.Join(l.BackgroundsDir, deck)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return nil, fmt.Errorf("deck %q: %w", deck, ErrNotFound)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("deck %q: %v: %w", deck, err, ErrNotFound)
	}
	defer doc.Close()

	if page > doc.NumPage() {
		return nil, fmt.Errorf("deck %q page %d of %d: %w", deck, page, doc.NumPage(), ErrNotFound)
	}

	return &Asset{
		Kind: KindBackground,
		Name: key,
		Path: path,
		Size: fi.Size(),
		Page: page,
	}, nil
}

// RenderDeckPage rasterizes one page of a PDF deck for use as background
// art. Pages are 1-based, matching the script syntax.
func RenderDeckPage(path string, page int, dpi int) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.ImageDPI(page-1, float64(dpi))
}

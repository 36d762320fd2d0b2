package assets

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS assets (
	kind       TEXT NOT NULL,
	name       TEXT NOT NULL,
	path       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	checksum   TEXT NOT NULL,
	indexed_at TEXT NOT NULL,
	PRIMARY KEY (kind, name)
);
CREATE INDEX IF NOT EXISTS idx_assets_kind ON assets(kind);
`

// Index is a SQLite cache of the asset library: what is on disk, how big it
// is and its checksum. It backs the "assets" CLI subcommand and fast lookup
// without rescanning directories.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenIndex opens (creating if needed) the index database.
func OpenIndex(dbPath string, logger *slog.Logger) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Index{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Rebuild rescans the library directories and replaces the index contents.
// Returns the number of assets indexed.
func (ix *Index) Rebuild(ctx context.Context, lib *Library) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	count := 0
	scan := func(dir string, kind Kind) error {
		if dir == "" {
			return nil
		}
		return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() || !acceptedExt(kind, path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			sum, err := fileChecksum(path)
			if err != nil {
				return err
			}

			name := indexName(dir, path, kind)
			_, err = tx.ExecContext(ctx, `
				INSERT INTO assets (kind, name, path, size, checksum, indexed_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (kind, name) DO UPDATE
				SET path=excluded.path, size=excluded.size,
				    checksum=excluded.checksum, indexed_at=excluded.indexed_at
			`, string(kind), name, path, info.Size(), sum, now)
			if err != nil {
				return err
			}
			count++
			return nil
		})
	}

	if err := scan(lib.CharactersDir, KindCharacter); err != nil {
		return 0, err
	}
	if err := scan(lib.BackgroundsDir, KindBackground); err != nil {
		return 0, err
	}
	if err := scan(lib.BGMDir, KindBGM); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if ix.logger != nil {
		ix.logger.Info("asset index rebuilt", "count", count)
	}
	return count, nil
}

// Lookup fetches one indexed asset by kind and name.
func (ix *Index) Lookup(ctx context.Context, kind Kind, name string) (*Asset, error) {
	row := ix.db.QueryRowContext(ctx,
		`SELECT kind, name, path, size FROM assets WHERE kind = ? AND name = ?`,
		string(kind), name)

	var a Asset
	var k string
	if err := row.Scan(&k, &a.Name, &a.Path, &a.Size); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
		}
		return nil, err
	}
	a.Kind = Kind(k)
	return &a, nil
}

// KindStats summarizes one asset kind for the stats report.
type KindStats struct {
	Count     int
	TotalSize int64
}

// Stats returns per-kind counts and total sizes.
func (ix *Index) Stats(ctx context.Context) (map[Kind]KindStats, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT kind, COUNT(*), COALESCE(SUM(size), 0) FROM assets GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[Kind]KindStats)
	for rows.Next() {
		var kind string
		var st KindStats
		if err := rows.Scan(&kind, &st.Count, &st.TotalSize); err != nil {
			return nil, err
		}
		stats[Kind(kind)] = st
	}
	return stats, rows.Err()
}

// indexName derives the lookup key from a file path: characters keep the
// <name>/<expression> form, flat kinds use the bare stem. PDF decks are
// indexed under their filename.
func indexName(root, path string, kind Kind) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	if kind == KindCharacter {
		return strings.TrimSuffix(rel, filepath.Ext(rel))
	}
	base := filepath.Base(rel)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		return base
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func acceptedExt(kind Kind, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if kind == KindBackground && ext == ".pdf" {
		return true
	}
	for _, e := range kindExtensions[kind] {
		if ext == e {
			return true
		}
	}
	return false
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

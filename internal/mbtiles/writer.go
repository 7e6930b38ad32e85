package mbtiles

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/noisesynth/internal/imageio"
	"github.com/MeKo-Tech/noisesynth/internal/tile"
)

// DefaultBatchSize is the number of tiles buffered before a flush.
const DefaultBatchSize = 100

const schema = `
	CREATE TABLE IF NOT EXISTS metadata (
		name TEXT NOT NULL,
		value TEXT
	);

	CREATE TABLE IF NOT EXISTS tiles (
		zoom_level INTEGER NOT NULL,
		tile_column INTEGER NOT NULL,
		tile_row INTEGER NOT NULL,
		tile_data BLOB NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row);
`

type entry struct {
	c    tile.Coords
	data []byte
}

// Writer writes tiles to an MBTiles database. It is safe for concurrent use.
type Writer struct {
	db        *sql.DB
	batch     []entry
	batchSize int
	written   int
	mu        sync.Mutex
}

// Create opens or creates the database at path, initialises the schema and
// replaces its metadata.
func Create(path string, meta Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := writeMetadata(db, meta); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		batch:     make([]entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func writeMetadata(db *sql.DB, meta Metadata) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	for k, v := range meta.rows() {
		if _, err := tx.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// WriteImage encodes img as PNG and queues it for c.
func (w *Writer) WriteImage(c tile.Coords, img image.Image) error {
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, imageio.PNG); err != nil {
		return fmt.Errorf("failed to encode tile %s: %w", c, err)
	}
	return w.WriteTile(c, buf.Bytes())
}

// WriteTile queues encoded tile data for c, flushing when the batch is full.
func (w *Writer) WriteTile(c tile.Coords, data []byte) error {
	if err := c.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, entry{c: c, data: data})
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// Flush writes buffered tiles to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// Written reports how many tiles have been committed.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.batch {
		if _, err := stmt.Exec(e.c.Z, e.c.X, tmsRow(e.c), e.data); err != nil {
			return fmt.Errorf("failed to insert tile %s: %w", e.c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.written += len(w.batch)
	w.batch = w.batch[:0]
	return nil
}

// Close flushes remaining tiles and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// tmsRow flips an XYZ row to the TMS row MBTiles stores.
func tmsRow(c tile.Coords) uint32 {
	return (uint32(1) << c.Z) - 1 - c.Y
}

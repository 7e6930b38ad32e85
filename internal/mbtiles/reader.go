package mbtiles

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/noisesynth/internal/imageio"
	"github.com/MeKo-Tech/noisesynth/internal/tile"
)

// ErrTileNotFound is returned for tiles missing from the database.
var ErrTileNotFound = errors.New("tile not found")

// Reader reads tiles from an MBTiles database.
type Reader struct {
	db *sql.DB
}

// Open opens an MBTiles database read-only.
func Open(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tiles'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("%s does not contain a tiles table", path)
	}

	return &Reader{db: db}, nil
}

// ReadTile returns the encoded data of tile c.
func (r *Reader) ReadTile(c tile.Coords) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var data []byte
	err := r.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		c.Z, c.X, tmsRow(c),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile %s: %w", c, err)
	}
	return data, nil
}

// ReadImage decodes tile c.
func (r *Reader) ReadImage(c tile.Coords) (image.Image, error) {
	data, err := r.ReadTile(c)
	if err != nil {
		return nil, err
	}
	img, _, err := imageio.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", c, err)
	}
	return img, nil
}

// Count returns the number of stored tiles.
func (r *Reader) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tiles: %w", err)
	}
	return n, nil
}

// Metadata reads the metadata table.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return parseRows(values)
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

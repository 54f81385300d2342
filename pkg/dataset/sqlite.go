package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"rloess/internal/models"
)

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./points.sqlite". For
// in-memory databases, pass ":memory:"; the pool is then limited to one
// connection, since every connection would see its own empty database.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS points (
    dataset TEXT NOT NULL,
    id      INTEGER NOT NULL,
    coords  TEXT NOT NULL,
    value   REAL,
    weight  REAL,
    PRIMARY KEY(dataset, id)
)`, `
CREATE TABLE IF NOT EXISTS fits (
    dataset TEXT NOT NULL,
    id      INTEGER NOT NULL,
    coords  TEXT NOT NULL,
    value   REAL,
    PRIMARY KEY(dataset, id)
)`,
}

// Store persists datasets and smoothing results in SQLite. Non-finite
// numbers are stored as NULL and read back as NaN.
type Store struct {
	db *sql.DB
}

// NewStore creates a SQLite-backed Store and ensures its tables exist
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("dataset: db is nil")
	}
	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			return nil, fmt.Errorf("dataset: creating schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// SaveDataset replaces the samples stored under ds.Name
func (s *Store) SaveDataset(ctx context.Context, ds *models.Dataset) error {
	if ds.Name == "" {
		return fmt.Errorf("dataset: name must be set to save a dataset")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE dataset = ?`, ds.Name); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO points(dataset, id, coords, value) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, loc := range ds.Locations {
		if _, err := stmt.ExecContext(ctx, ds.Name, i, encodeCoords(loc), nullable(ds.Values[i])); err != nil {
			return fmt.Errorf("dataset: inserting point %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadDataset reads the samples stored under name in insertion order
func (s *Store) LoadDataset(ctx context.Context, name string) (*models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT coords, value FROM points WHERE dataset = ? ORDER BY id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := &models.Dataset{Name: name}
	for rows.Next() {
		var coords string
		var value sql.NullFloat64
		if err := rows.Scan(&coords, &value); err != nil {
			return nil, err
		}
		loc, err := decodeCoords(coords)
		if err != nil {
			return nil, err
		}
		ds.Locations = append(ds.Locations, loc)
		ds.Values = append(ds.Values, fromNullable(value))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ds.Locations) == 0 {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrEmpty)
	}
	return ds, nil
}

// SaveResult replaces the estimates stored under name and records the
// final robustness weight of each stored sample.
func (s *Store) SaveResult(ctx context.Context, name string, res *models.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fits WHERE dataset = ?`, name); err != nil {
		return err
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO fits(dataset, id, coords, value) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()
	for i, q := range res.Queries {
		if _, err := ins.ExecContext(ctx, name, i, encodeCoords(q), nullable(res.Values[i])); err != nil {
			return fmt.Errorf("dataset: inserting fit %d: %w", i, err)
		}
	}

	if len(res.Weights) > 0 {
		upd, err := tx.PrepareContext(ctx, `UPDATE points SET weight = ? WHERE dataset = ? AND id = ?`)
		if err != nil {
			return err
		}
		defer upd.Close()
		for i, w := range res.Weights {
			if _, err := upd.ExecContext(ctx, nullable(w), name, i); err != nil {
				return fmt.Errorf("dataset: updating weight %d: %w", i, err)
			}
		}
	}
	return tx.Commit()
}

// LoadResult reads the estimates and weights stored under name
func (s *Store) LoadResult(ctx context.Context, name string) (*models.Result, error) {
	res := &models.Result{}

	rows, err := s.db.QueryContext(ctx, `SELECT coords, value FROM fits WHERE dataset = ? ORDER BY id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var coords string
		var value sql.NullFloat64
		if err := rows.Scan(&coords, &value); err != nil {
			return nil, err
		}
		q, err := decodeCoords(coords)
		if err != nil {
			return nil, err
		}
		res.Queries = append(res.Queries, q)
		res.Values = append(res.Values, fromNullable(value))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	wrows, err := s.db.QueryContext(ctx, `SELECT weight FROM points WHERE dataset = ? ORDER BY id`, name)
	if err != nil {
		return nil, err
	}
	defer wrows.Close()
	for wrows.Next() {
		var w sql.NullFloat64
		if err := wrows.Scan(&w); err != nil {
			return nil, err
		}
		res.Weights = append(res.Weights, fromNullable(w))
	}
	return res, wrows.Err()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// encodeCoords joins coordinates with commas; non-finite values use the
// strconv spellings NaN, +Inf and -Inf.
func encodeCoords(loc []float64) string {
	parts := make([]string, len(loc))
	for i, c := range loc {
		parts[i] = strconv.FormatFloat(c, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func decodeCoords(s string) ([]float64, error) {
	if s == "" {
		return nil, errors.New("dataset: empty coordinate list")
	}
	parts := strings.Split(s, ",")
	loc := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("dataset: bad coordinate %q: %w", p, err)
		}
		loc[i] = v
	}
	return loc, nil
}

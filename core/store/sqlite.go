package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/sqlite"
	"github.com/FocuswithJustin/standoff/internal/fileutil"
)

var schema = []string{
	`CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT
	)`,
	`CREATE TABLE resources (
		id TEXT PRIMARY KEY,
		filename TEXT,
		text TEXT NOT NULL,
		checksum TEXT NOT NULL
	)`,
	`CREATE TABLE annotations (
		seq INTEGER PRIMARY KEY,
		id TEXT UNIQUE,
		resource TEXT NOT NULL REFERENCES resources(id),
		selector TEXT NOT NULL,
		begin_offset INTEGER,
		end_offset INTEGER,
		source_file TEXT,
		source_node TEXT
	)`,
	`CREATE TABLE annotation_data (
		annotation INTEGER NOT NULL REFERENCES annotations(seq),
		id TEXT,
		dataset TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT
	)`,
	`CREATE INDEX idx_annotations_span ON annotations(resource, begin_offset, end_offset)`,
	`CREATE INDEX idx_data_key ON annotation_data(dataset, key)`,
}

// SaveSQLite exports the store to a SQLite database at path. Data values
// are stored as JSON text. The database is built next to path and moved
// into place only once the single write transaction has committed.
func (s *Store) SaveSQLite(ctx context.Context, path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tmp := fileutil.TempPath(path)
	os.Remove(tmp)
	db, err := sqlite.Open(tmp)
	if err != nil {
		return errors.NewIO("create", path, err)
	}

	err = sqlite.WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		return s.insertAll(ctx, tx)
	})
	if cerr := db.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.NewIO("write", path, err)
	}
	if err := fileutil.Commit(path); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func (s *Store) insertAll(ctx context.Context, tx *sql.Tx) error {
	meta := [][2]string{
		{"id", s.ID},
		{"run_id", s.RunID},
		{"driver", sqlite.DriverType()},
	}
	for _, kv := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("insert meta: %w", err)
		}
	}

	for _, r := range s.Resources {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resources (id, filename, text, checksum) VALUES (?, ?, ?, ?)`,
			r.ID, r.Filename, r.Text, r.Checksum); err != nil {
			return fmt.Errorf("insert resource %s: %w", r.ID, err)
		}
	}

	annStmt, err := tx.PrepareContext(ctx, `INSERT INTO annotations
		(seq, id, resource, selector, begin_offset, end_offset, source_file, source_node)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare annotations: %w", err)
	}
	defer annStmt.Close()
	dataStmt, err := tx.PrepareContext(ctx, `INSERT INTO annotation_data
		(annotation, id, dataset, key, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare data: %w", err)
	}
	defer dataStmt.Close()

	for i, a := range s.Annotations {
		seq := i + 1
		var begin, end any
		if a.Target.Kind == TextSelector {
			begin, end = a.Target.Begin, a.Target.End
		}
		var file, node any
		if a.Provenance != nil {
			file, node = a.Provenance.File, a.Provenance.Node
		}
		if _, err := annStmt.ExecContext(ctx, seq, nullable(a.ID), a.Target.Resource,
			string(a.Target.Kind), begin, end, file, node); err != nil {
			return fmt.Errorf("insert annotation %d: %w", seq, err)
		}
		for _, d := range a.Data {
			value, err := json.Marshal(d.Value)
			if err != nil {
				return fmt.Errorf("encode value of %s: %w", d.Key, err)
			}
			if _, err := dataStmt.ExecContext(ctx, seq, nullable(d.ID), d.Set, d.Key, string(value)); err != nil {
				return fmt.Errorf("insert data %s: %w", d.Key, err)
			}
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Package db keeps a DuckDB copy of every joined feature so the atlas can be
// queried with SQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/geojson"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection, creating the database file
// under DataDir/duckdb on first use.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}

		instance, initErr = Open(filepath.Join(duckdbDir, cfg.DBName+".duckdb"))
		if initErr != nil {
			return
		}

		// Optional extension; queries over the stored features work without it.
		for _, ext := range []string{"spatial"} {
			_, _ = instance.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext))
		}
	})
	return instance, initErr
}

// Open opens a database at path ("" for in-memory) and creates the schema.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(context.Background(), conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS joined_features (
	run_id        VARCHAR NOT NULL,
	dataset       VARCHAR NOT NULL,
	feature_index INTEGER NOT NULL,
	record_id     VARCHAR,
	properties    VARCHAR,
	geometry      VARCHAR,
	loaded_at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS datasets (
	run_id    VARCHAR NOT NULL,
	name      VARCHAR NOT NULL,
	kind      VARCHAR NOT NULL,
	url       VARCHAR,
	records   INTEGER,
	features  INTEGER,
	error     VARCHAR,
	loaded_at TIMESTAMP NOT NULL
);`

// Migrate creates the tables if they are missing.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// DatasetRow summarises one dataset of a run.
type DatasetRow struct {
	Name     string
	Kind     string
	URL      string
	Records  int
	Features *geojson.FeatureCollection
	Error    string
}

// StoreRun replaces the stored atlas with the datasets of one run. The swap
// happens in a single transaction so readers never see a half-written run.
func StoreRun(ctx context.Context, conn *sql.DB, runID string, loadedAt time.Time, datasets []DatasetRow) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM joined_features"); err != nil {
		return fmt.Errorf("clear features: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM datasets"); err != nil {
		return fmt.Errorf("clear datasets: %w", err)
	}

	feat, err := tx.PrepareContext(ctx,
		`INSERT INTO joined_features (run_id, dataset, feature_index, record_id, properties, geometry, loaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer feat.Close()

	for _, d := range datasets {
		n := 0
		if d.Features != nil {
			n = len(d.Features.Features)
			for i, f := range d.Features.Features {
				props, err := json.Marshal(f.Properties)
				if err != nil {
					return fmt.Errorf("%s[%d] properties: %w", d.Name, i, err)
				}
				geom, err := geometryJSON(f)
				if err != nil {
					return fmt.Errorf("%s[%d] geometry: %w", d.Name, i, err)
				}
				if _, err := feat.ExecContext(ctx, runID, d.Name, i, recordID(f), string(props), geom, loadedAt); err != nil {
					return fmt.Errorf("insert %s[%d]: %w", d.Name, i, err)
				}
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO datasets (run_id, name, kind, url, records, features, error, loaded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, d.Name, d.Kind, d.URL, d.Records, n, nullable(d.Error), loadedAt)
		if err != nil {
			return fmt.Errorf("insert dataset %s: %w", d.Name, err)
		}
	}
	return tx.Commit()
}

func geometryJSON(f *geojson.Feature) (any, error) {
	if f.Geometry == nil {
		return nil, nil
	}
	b, err := json.Marshal(geojson.NewGeometry(f.Geometry))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func recordID(f *geojson.Feature) any {
	if v, ok := f.Properties["id"].(string); ok {
		return v
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

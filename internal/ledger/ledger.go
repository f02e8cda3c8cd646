// Package ledger records completed processing runs and their spend.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/order-ocr/internal/domain"
)

// createdLayout is fixed width so created_at sorts as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one completed processing run.
type Run struct {
	ID           string
	Filename     string
	DocumentType domain.DocumentType
	Pages        int
	Items        int
	Cost         float64
	Variant      domain.RecognizerVariant
	Backend      string
	OutputPath   string
	CreatedAt    time.Time
}

// NewRun describes doc as a run recorded at now.
func NewRun(doc *domain.ProcessedDocument, variant domain.RecognizerVariant, backend, outputPath string, now time.Time) Run {
	return Run{
		ID:           uuid.NewString(),
		Filename:     doc.Filename,
		DocumentType: doc.DocumentType,
		Pages:        doc.TotalPages,
		Items:        doc.TotalItems(),
		Cost:         doc.ProcessingCost,
		Variant:      variant,
		Backend:      backend,
		OutputPath:   outputPath,
		CreatedAt:    now,
	}
}

// Totals summarizes all recorded runs.
type Totals struct {
	Runs  int
	Pages int
	Items int
	Cost  float64
}

// Store persists runs in SQLite or Postgres.
type Store struct {
	db     *sql.DB
	driver string
}

var schemas = map[string]string{
	"sqlite": `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	document_type TEXT NOT NULL,
	pages INTEGER NOT NULL,
	items INTEGER NOT NULL,
	cost REAL NOT NULL,
	variant TEXT NOT NULL,
	backend TEXT NOT NULL,
	output_path TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
	"postgres": `CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	document_type TEXT NOT NULL,
	pages INTEGER NOT NULL,
	items INTEGER NOT NULL,
	cost DOUBLE PRECISION NOT NULL,
	variant TEXT NOT NULL,
	backend TEXT NOT NULL,
	output_path TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
}

// Open connects to the ledger database and creates the schema if needed.
// driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var sqlDriver string
	switch driver {
	case "sqlite":
		sqlDriver = "sqlite3"
		if dsn == "" {
			return nil, domain.ConfigError("ledger sqlite path is empty", nil)
		}
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, domain.IOError("failed to create ledger directory", err)
			}
		}
	case "postgres":
		sqlDriver = "postgres"
		if dsn == "" {
			return nil, domain.ConfigError("ledger postgres DSN is empty; set ledger.postgres_dsn or DATABASE_URL", nil)
		}
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unsupported ledger driver: %s", driver), nil)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schemas[driver]); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $N for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record stores one run.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO runs
		(id, filename, document_type, pages, items, cost, variant, backend, output_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Filename, string(run.DocumentType), run.Pages, run.Items, run.Cost,
		string(run.Variant), run.Backend, run.OutputPath, run.CreatedAt.UTC().Format(createdLayout))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// List returns up to limit runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT
		id, filename, document_type, pages, items, cost, variant, backend, output_path, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r                      Run
			docType, variant, when string
		)
		if err := rows.Scan(&r.ID, &r.Filename, &docType, &r.Pages, &r.Items, &r.Cost,
			&variant, &r.Backend, &r.OutputPath, &when); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.DocumentType = domain.DocumentType(docType)
		r.Variant = domain.RecognizerVariant(variant)
		if r.CreatedAt, err = time.Parse(createdLayout, when); err != nil {
			return nil, fmt.Errorf("parse run time %q: %w", when, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Totals sums every recorded run.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(pages), 0), COALESCE(SUM(items), 0), COALESCE(SUM(cost), 0) FROM runs`).
		Scan(&t.Runs, &t.Pages, &t.Items, &t.Cost)
	if err != nil {
		return Totals{}, fmt.Errorf("sum runs: %w", err)
	}
	return t, nil
}

// Package sqlite is the default record store, a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"phishguard/scoring"
	"phishguard/store"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store keeps scan records in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; this also keeps :memory: on a single connection.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("[Store] sqlite ready at %s", path)
	return &Store{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	for _, r := range results {
		log.Printf("[Store] applied migration %s", r.Source.Path)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, r *store.Record) (string, error) {
	store.Prepare(r, uuid.NewString)
	row, err := store.EncodeRow(r)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans(id, kind, input, label, score, verdict, factors, explanation, details,
			artifact_key, scan_duration_ms, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Kind), r.Input, r.Verdict.Label, r.Verdict.Score, string(row.Verdict), string(row.Factors),
		nullBytes(row.Explanation), nullBytes(row.Details), r.ArtifactKey, r.ScanDurationMs, r.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert scan: %w", err)
	}
	return r.ID, nil
}

const selectColumns = `id, kind, input, verdict, explanation, details, artifact_key, scan_duration_ms, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*store.Record, error) {
	var (
		r       store.Record
		kind    string
		row     store.Row
		created int64
	)
	if err := sc.Scan(&r.ID, &kind, &r.Input, &row.Verdict, &row.Explanation, &row.Details,
		&r.ArtifactKey, &r.ScanDurationMs, &created); err != nil {
		return nil, err
	}
	r.Kind = scoring.Flow(kind)
	r.CreatedAt = time.UnixMilli(created).UTC()
	if err := store.DecodeRow(&r, row); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Get(ctx context.Context, id string) (*store.Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan %s: %w", id, err)
	}
	return r, nil
}

func whereClause(f store.Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Label != "" {
		conds = append(conds, "label = ?")
		args = append(args, f.Label)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) Find(ctx context.Context, f store.Filter, p store.Page) ([]store.Record, int, error) {
	p = p.Normalize()
	where, args := whereClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM scans`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	out := []store.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scan %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans`)
	if err != nil {
		return 0, fmt.Errorf("delete scans: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Stats(ctx context.Context, topN int) (store.Stats, error) {
	st := store.Stats{ByLabel: map[string]int{}, TopFactors: []store.FactorCount{}}

	weekAgo := s.now().Add(-7 * 24 * time.Hour).UnixMilli()
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(AVG(scan_duration_ms), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM scans
	`, weekAgo).Scan(&st.Total, &st.AvgDurationMs, &st.LastWeek)
	if err != nil {
		return st, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM scans GROUP BY label`)
	if err != nil {
		return st, fmt.Errorf("stats labels: %w", err)
	}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			rows.Close()
			return st, err
		}
		st.ByLabel[label] = n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT j.value, COUNT(*) AS c
		FROM scans, json_each(scans.factors) AS j
		WHERE j.value NOT LIKE '% unavailable: %' AND j.value <> ?
		GROUP BY j.value
		ORDER BY c DESC, j.value ASC
		LIMIT ?
	`, scoring.FactorNoDetector, store.TopN(topN))
	if err != nil {
		return st, fmt.Errorf("stats factors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fc store.FactorCount
		if err := rows.Scan(&fc.Factor, &fc.Count); err != nil {
			return st, err
		}
		st.TopFactors = append(st.TopFactors, fc)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	store.CountsToStats(&st)
	return st, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

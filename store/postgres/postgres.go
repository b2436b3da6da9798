// Package postgres stores scan records in PostgreSQL. It is selected when
// DATABASE_URL is set.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"phishguard/scoring"
	"phishguard/store"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type DB struct {
	Pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*DB)(nil)

// Connect opens a pool, pings it and applies migrations.
func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Printf("[Store] postgres ready")
	return &DB{Pool: pool, now: time.Now}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	for _, r := range results {
		log.Printf("[Store] applied migration %s", r.Source.Path)
	}
	return nil
}

func (db *DB) Save(ctx context.Context, r *store.Record) (string, error) {
	store.Prepare(r, uuid.NewString)
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return "", fmt.Errorf("record id %q: %w", r.ID, err)
	}
	row, err := store.EncodeRow(r)
	if err != nil {
		return "", err
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO scans (id, kind, input, label, score, verdict, factors, explanation, details,
			artifact_key, scan_duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, string(r.Kind), r.Input, r.Verdict.Label, r.Verdict.Score, string(row.Verdict), string(row.Factors),
		nullJSON(row.Explanation), nullJSON(row.Details), r.ArtifactKey, r.ScanDurationMs, r.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert scan: %w", err)
	}
	return r.ID, nil
}

const selectColumns = `id::text, kind, input, verdict, explanation, details, artifact_key, scan_duration_ms, created_at`

func scanRecord(row pgx.Row) (*store.Record, error) {
	var (
		r    store.Record
		kind string
		cols store.Row
	)
	if err := row.Scan(&r.ID, &kind, &r.Input, &cols.Verdict, &cols.Explanation, &cols.Details,
		&r.ArtifactKey, &r.ScanDurationMs, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Kind = scoring.Flow(kind)
	r.CreatedAt = r.CreatedAt.UTC()
	if err := store.DecodeRow(&r, cols); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) Get(ctx context.Context, id string) (*store.Record, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	r, err := scanRecord(db.Pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM scans WHERE id = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
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
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.Label != "" {
		add("label = $%d", f.Label)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (db *DB) Find(ctx context.Context, f store.Filter, p store.Page) ([]store.Record, int, error) {
	p = p.Normalize()
	where, args := whereClause(f)

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM scans`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count scans: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM scans%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		selectColumns, where, n+1, n+2)
	rows, err := db.Pool.Query(ctx, query, append(args, p.Limit, p.Offset())...)
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

func (db *DB) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return store.ErrNotFound
	}
	tag, err := db.Pool.Exec(ctx, `DELETE FROM scans WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete scan %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (db *DB) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM scans`)
	if err != nil {
		return 0, fmt.Errorf("delete scans: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (db *DB) Stats(ctx context.Context, topN int) (store.Stats, error) {
	st := store.Stats{ByLabel: map[string]int{}, TopFactors: []store.FactorCount{}}

	weekAgo := db.now().Add(-7 * 24 * time.Hour)
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(AVG(scan_duration_ms), 0)::float8,
			COUNT(*) FILTER (WHERE created_at >= $1)
		FROM scans
	`, weekAgo).Scan(&st.Total, &st.AvgDurationMs, &st.LastWeek)
	if err != nil {
		return st, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `SELECT label, COUNT(*) FROM scans GROUP BY label`)
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

	rows, err = db.Pool.Query(ctx, `
		SELECT f.value, COUNT(*) AS c
		FROM scans, jsonb_array_elements_text(scans.factors) AS f(value)
		WHERE f.value NOT LIKE '% unavailable: %' AND f.value <> $1
		GROUP BY f.value
		ORDER BY c DESC, f.value ASC
		LIMIT $2
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

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

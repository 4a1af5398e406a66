// Package postgres provides a Postgres-backed news.RecordStore.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/realtime-news-collector/internal/news"
)

const (
	defaultTable     = "news_articles"
	defaultPageLimit = 10
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// columns is the select list shared by every read; scanRecord depends on its order.
const columns = "id, title, description, keyword, pub_date, original_link, link, collected_at, " +
	"image_url, cdn_image_url, image_key, content_type, source"

// Config controls the Postgres connection pool used for news rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// NewsStore reads and writes news rows.
type NewsStore struct {
	pool  pool
	table string
}

var _ news.RecordStore = (*NewsStore)(nil)

// New creates a Postgres-backed NewsStore using the provided config.
func New(ctx context.Context, cfg Config) (*NewsStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store.postgres.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &NewsStore{pool: p, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*NewsStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &NewsStore{pool: p, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the table and its listing index when missing.
func (s *NewsStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	keyword       TEXT NOT NULL DEFAULT '',
	pub_date      TEXT NOT NULL DEFAULT '',
	original_link TEXT NOT NULL DEFAULT '',
	link          TEXT NOT NULL DEFAULT '',
	collected_at  TIMESTAMPTZ NOT NULL,
	image_url     TEXT NOT NULL DEFAULT '',
	cdn_image_url TEXT NOT NULL DEFAULT '',
	image_key     TEXT NOT NULL DEFAULT '',
	content_type  TEXT NOT NULL,
	source        TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %[1]s_content_type_collected_at_idx ON %[1]s (content_type, collected_at DESC, id DESC)`,
		s.table)
	if _, err := s.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("create index on %s: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *NewsStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// PutRecord inserts rec. A row with the same id is left untouched.
func (s *NewsStore) PutRecord(ctx context.Context, rec news.Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	var img news.Image
	if rec.Image != nil {
		img = *rec.Image
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
) ON CONFLICT (id) DO NOTHING`, s.table, columns)

	args := []any{
		rec.ID,
		rec.Title,
		rec.Description,
		rec.Keyword,
		rec.PublishedAt,
		rec.OriginalURL,
		rec.CanonicalURL,
		rec.CollectedAt,
		img.SourceURL,
		img.CDNURL,
		img.StorageKey,
		rec.ContentType,
		rec.SourceName,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert news %s: %w", rec.ID, err)
	}
	return nil
}

// ScanByField returns every row projected to id and the requested field.
func (s *NewsStore) ScanByField(ctx context.Context, field string) ([]news.Record, error) {
	if field != news.FieldPublishedAt {
		return nil, fmt.Errorf("%w: %s", news.ErrUnsupportedField, field)
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT id, pub_date FROM %s WHERE pub_date <> ''`, s.table))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", field, err)
	}
	defer rows.Close()

	var out []news.Record
	for rows.Next() {
		var rec news.Record
		if err := rows.Scan(&rec.ID, &rec.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", field, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s rows: %w", field, err)
	}
	return out, nil
}

// QueryByIndex pages through one content type using a (collected_at, id) keyset.
func (s *NewsStore) QueryByIndex(ctx context.Context, q news.IndexQuery) (news.Page, error) {
	if q.Index != news.IndexContentTypeCollectedAt {
		return news.Page{}, fmt.Errorf("%w: %s", news.ErrUnsupportedIndex, q.Index)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	cmp, order := ">", "ASC"
	if q.Descending {
		cmp, order = "<", "DESC"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE content_type = $1", columns, s.table)
	args := []any{q.Partition}
	if q.Cursor != "" {
		at, id, err := news.DecodeCursor(q.Cursor)
		if err != nil {
			return news.Page{}, err
		}
		args = append(args, at, id)
		fmt.Fprintf(&sb, " AND (collected_at, id) %s ($%d, $%d)", cmp, len(args)-1, len(args))
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		args = append(args, "%"+escapeLike(kw)+"%")
		n := len(args)
		fmt.Fprintf(&sb, ` AND (keyword ILIKE $%[1]d OR title ILIKE $%[1]d OR description ILIKE $%[1]d)`, n)
	}
	args = append(args, limit+1)
	fmt.Fprintf(&sb, " ORDER BY collected_at %[1]s, id %[1]s LIMIT $%[2]d", order, len(args))

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return news.Page{}, fmt.Errorf("query %s: %w", q.Index, err)
	}
	defer rows.Close()

	items := make([]news.Record, 0, limit+1)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return news.Page{}, err
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return news.Page{}, fmt.Errorf("query %s rows: %w", q.Index, err)
	}

	page := news.Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = news.EncodeCursor(page.Items[limit-1])
	}
	return page, nil
}

// Count returns the number of stored rows.
func (s *NewsStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

func scanRecord(rows pgx.Rows) (news.Record, error) {
	var (
		rec news.Record
		img news.Image
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Description,
		&rec.Keyword,
		&rec.PublishedAt,
		&rec.OriginalURL,
		&rec.CanonicalURL,
		&rec.CollectedAt,
		&img.SourceURL,
		&img.CDNURL,
		&img.StorageKey,
		&rec.ContentType,
		&rec.SourceName,
	); err != nil {
		return news.Record{}, fmt.Errorf("scan news row: %w", err)
	}
	rec.CollectedAt = rec.CollectedAt.UTC()
	if img.SourceURL != "" || img.CDNURL != "" {
		rec.Image = &img
	}
	return rec, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

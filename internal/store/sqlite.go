package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/fire-incident-pipeline/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteRaw is a raw record store in an embedded SQLite database.
type SQLiteRaw struct {
	db *sql.DB
}

// NewSQLiteRaw opens (or creates) the database at path and migrates it.
func NewSQLiteRaw(path string) (*SQLiteRaw, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteRaw{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteRaw) Close() error {
	return s.db.Close()
}

func (s *SQLiteRaw) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS raw_records (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		content      TEXT NOT NULL,
		timestamp    TEXT NOT NULL,
		author       TEXT NOT NULL,
		source_url   TEXT NOT NULL DEFAULT '',
		likes        INTEGER NOT NULL DEFAULT 0,
		retweets     INTEGER NOT NULL DEFAULT 0,
		replies      INTEGER NOT NULL DEFAULT 0,
		media_urls   TEXT NOT NULL DEFAULT '[]',
		origin_query TEXT NOT NULL DEFAULT '',
		ingested_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (content, timestamp, author)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate raw_records: %w", err)
	}
	return nil
}

const insertRaw = `
	INSERT INTO raw_records (content, timestamp, author, source_url, likes, retweets, replies, media_urls, origin_query)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (content, timestamp, author) DO NOTHING`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, r domain.RawRecord) (bool, error) {
	media, err := json.Marshal(r.MediaURLs)
	if err != nil {
		return false, fmt.Errorf("encode media urls: %w", err)
	}
	res, err := db.ExecContext(ctx, insertRaw,
		r.Content, r.Timestamp, r.Author, r.SourceURL,
		r.Engagement.Likes, r.Engagement.Retweets, r.Engagement.Replies,
		string(media), r.OriginQuery,
	)
	if err != nil {
		return false, fmt.Errorf("insert raw record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert raw record: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteRaw) Append(ctx context.Context, r domain.RawRecord) (bool, error) {
	return insert(ctx, s.db, r)
}

// AppendMany inserts the batch in a single transaction.
func (s *SQLiteRaw) AppendMany(ctx context.Context, batch []domain.RawRecord) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin raw batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	added := 0
	for _, r := range batch {
		ok, err := insert(ctx, tx, r)
		if err != nil {
			return 0, err
		}
		if ok {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit raw batch: %w", err)
	}
	return added, nil
}

func (s *SQLiteRaw) All(ctx context.Context) ([]domain.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content, timestamp, author, source_url, likes, retweets, replies, media_urls, origin_query
		FROM raw_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query raw records: %w", err)
	}
	defer rows.Close()

	var out []domain.RawRecord
	for rows.Next() {
		var (
			r     domain.RawRecord
			media string
		)
		if err := rows.Scan(&r.Content, &r.Timestamp, &r.Author, &r.SourceURL,
			&r.Engagement.Likes, &r.Engagement.Retweets, &r.Engagement.Replies,
			&media, &r.OriginQuery); err != nil {
			return nil, fmt.Errorf("scan raw record: %w", err)
		}
		if media != "" && media != "null" {
			if err := json.Unmarshal([]byte(media), &r.MediaURLs); err != nil {
				return nil, fmt.Errorf("decode media urls: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteRaw) Contains(ctx context.Context, key domain.Key) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM raw_records WHERE content = ? AND timestamp = ? AND author = ?`,
		key.Content, key.Timestamp, key.Author,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup raw record: %w", err)
	}
	return n > 0, nil
}

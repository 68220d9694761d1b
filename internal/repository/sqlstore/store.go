// Package sqlstore keeps records as JSON documents in a single SQL table.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"parking_network/internal/repository"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ repository.RecordStore = (*Store)(nil)

// New wraps an open database and creates the records table if missing.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS records (
		seq BIGSERIAL PRIMARY KEY,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		version BIGINT NOT NULL,
		body JSONB NOT NULL,
		UNIQUE (collection, id)
	)`
	if s.dialect == SQLite {
		ddl = `CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		UNIQUE (collection, id)
	)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
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

func unavailable(op string, err error) error {
	return fmt.Errorf("RecordStore.%s: %w: %w", op, repository.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func (s *Store) query(ctx context.Context, op, query string, args ...any) ([]repository.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	out := make([]repository.Record, 0)
	for rows.Next() {
		var rec repository.Record
		var body []byte
		if err := rows.Scan(&rec.ID, &rec.Version, &body); err != nil {
			return nil, unavailable(op+" (scanning row)", err)
		}
		rec.Body = json.RawMessage(body)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op+" (rows error)", err)
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]repository.Record, error) {
	return s.query(ctx, "List",
		`SELECT id, version, body FROM records WHERE collection = ? ORDER BY seq`, collection)
}

func (s *Store) Find(ctx context.Context, collection, field, value string) ([]repository.Record, error) {
	q := `SELECT id, version, body FROM records WHERE collection = ? AND body->>? = ? ORDER BY seq`
	args := []any{collection, field, value}
	if s.dialect == SQLite {
		q = `SELECT id, version, body FROM records WHERE collection = ? AND json_extract(body, ?) = ? ORDER BY seq`
		args = []any{collection, "$." + field, value}
	}
	return s.query(ctx, "Find", q, args...)
}

func (s *Store) Get(ctx context.Context, collection, id string) (repository.Record, error) {
	rec := repository.Record{ID: id}
	var body []byte
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT version, body FROM records WHERE collection = ? AND id = ?`), collection, id).
		Scan(&rec.Version, &body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.Record{}, repository.ErrNotFound
		}
		return repository.Record{}, unavailable("Get", err)
	}
	rec.Body = json.RawMessage(body)
	return rec, nil
}

func (s *Store) Create(ctx context.Context, collection string, rec repository.Record) (repository.Record, error) {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO records (collection, id, version, body) VALUES (?, ?, 1, ?)`),
		collection, rec.ID, string(rec.Body))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.Record{}, fmt.Errorf("%w: %s/%s", repository.ErrDuplicateEntry, collection, rec.ID)
		}
		return repository.Record{}, unavailable("Create", err)
	}
	rec.Version = 1
	return rec, nil
}

func (s *Store) Replace(ctx context.Context, collection, id string, expectedVersion int64, body json.RawMessage) (repository.Record, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE records SET body = ?, version = version + 1 WHERE collection = ? AND id = ? AND version = ?`),
		string(body), collection, id, expectedVersion)
	if err != nil {
		return repository.Record{}, unavailable("Replace", err)
	}
	if err := s.checkSwapped(ctx, res, collection, id, expectedVersion); err != nil {
		return repository.Record{}, err
	}
	return repository.Record{ID: id, Version: expectedVersion + 1, Body: body}, nil
}

func (s *Store) Patch(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]any) (repository.Record, error) {
	cur, err := s.Get(ctx, collection, id)
	if err != nil {
		return repository.Record{}, err
	}
	if cur.Version != expectedVersion {
		return repository.Record{}, fmt.Errorf("%w: %s/%s at version %d, expected %d", repository.ErrStaleWrite, collection, id, cur.Version, expectedVersion)
	}
	body, err := repository.MergeFields(cur.Body, fields)
	if err != nil {
		return repository.Record{}, fmt.Errorf("RecordStore.Patch: %w", err)
	}
	// The version guard on the UPDATE still catches a writer that slipped in
	// between the read above and this statement.
	return s.Replace(ctx, collection, id, expectedVersion, body)
}

func (s *Store) checkSwapped(ctx context.Context, res sql.Result, collection, id string, expectedVersion int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("RowsAffected", err)
	}
	if n == 1 {
		return nil
	}
	cur, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s/%s at version %d, expected %d", repository.ErrStaleWrite, collection, id, cur.Version, expectedVersion)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return unavailable("Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("Delete", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) Close(context.Context) error { return s.db.Close() }

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const kvTable = "kv"

// SQLite is a KV backed by a single SQLite table, accessed through ent's
// SQL driver and query builders.
type SQLite struct {
	db  *sql.DB
	drv *entsql.Driver
}

// OpenSQLite opens (or creates) the database at dsn, applies pragmas and
// creates the kv table.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers; SQLite allows a single writer anyway
	// and this keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &SQLite{db: db, drv: entsql.OpenDB(dialect.SQLite, db)}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	var res sql.Result
	return s.drv.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+kvTable+` (
		"key"     TEXT PRIMARY KEY,
		"value"   BLOB NOT NULL,
		"version" INTEGER NOT NULL
	)`, []any{}, &res)
}

func (s *SQLite) builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func (s *SQLite) Get(ctx context.Context, key string) (Record, error) {
	query, args := s.builder().
		Select("key", "value", "version").
		From(entsql.Table(kvTable)).
		Where(entsql.EQ("key", key)).
		Query()

	recs, err := s.query(ctx, s.drv, query, args)
	if err != nil {
		return Record{}, fmt.Errorf("get %q: %w", key, err)
	}
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return recs[0], nil
}

func (s *SQLite) Scan(ctx context.Context, prefix string) ([]Record, error) {
	query, args := s.builder().
		Select("key", "value", "version").
		From(entsql.Table(kvTable)).
		Where(entsql.HasPrefix("key", prefix)).
		OrderBy("key").
		Query()

	recs, err := s.query(ctx, s.drv, query, args)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	return recs, nil
}

func (s *SQLite) query(ctx context.Context, q dialect.ExecQuerier, query string, args []any) ([]Record, error) {
	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			version int64
		)
		if err := rows.Scan(&r.Key, &r.Value, &version); err != nil {
			return nil, err
		}
		r.Version = uint64(version)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) AtomicCommit(ctx context.Context, writes []Write) error {
	if err := checkWrites(writes); err != nil {
		return err
	}

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, w := range writes {
		if err := s.apply(ctx, tx, w); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				return errors.Join(err, fmt.Errorf("rollback: %w", rerr))
			}
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// apply executes one write inside tx. A write that matches no row at the
// expected version is a conflict.
func (s *SQLite) apply(ctx context.Context, tx dialect.Tx, w Write) error {
	var query string
	var args []any

	switch {
	case w.Delete:
		query, args = s.builder().
			Delete(kvTable).
			Where(entsql.And(
				entsql.EQ("key", w.Key),
				entsql.EQ("version", int64(w.Version)),
			)).
			Query()
	case w.Version == 0:
		query, args = s.builder().
			Insert(kvTable).
			Columns("key", "value", "version").
			Values(w.Key, nonNil(w.Value), int64(1)).
			OnConflict(entsql.ConflictColumns("key"), entsql.DoNothing()).
			Query()
	default:
		query, args = s.builder().
			Update(kvTable).
			Set("value", nonNil(w.Value)).
			Add("version", 1).
			Where(entsql.And(
				entsql.EQ("key", w.Key),
				entsql.EQ("version", int64(w.Version)),
			)).
			Query()
	}

	var res sql.Result
	if err := tx.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("write %q: %w", w.Key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write %q: rows affected: %w", w.Key, err)
	}
	if n == 0 {
		have, err := s.currentVersion(ctx, tx, w.Key)
		if err != nil {
			return err
		}
		return conflict(w.Key, w.Version, have)
	}
	return nil
}

func (s *SQLite) currentVersion(ctx context.Context, tx dialect.Tx, key string) (uint64, error) {
	query, args := s.builder().
		Select("key", "value", "version").
		From(entsql.Table(kvTable)).
		Where(entsql.EQ("key", key)).
		Query()
	recs, err := s.query(ctx, tx, query, args)
	if err != nil {
		return 0, fmt.Errorf("read version of %q: %w", key, err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	return recs[0].Version, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.drv.Close()
}

// applyPragmas configures SQLite for a single local writer.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA case_sensitive_like = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

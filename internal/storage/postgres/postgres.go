// Package postgres is an oracle substrate backed by PostgreSQL through sqlx
// and the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"stdref/internal/oracle"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stdref_admin (
		id       SMALLINT PRIMARY KEY CHECK (id = 1),
		identity TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stdref_relayers (
		identity TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS stdref_refs (
		symbol       TEXT PRIMARY KEY,
		rate         BIGINT NOT NULL,
		resolve_time BIGINT NOT NULL,
		request_id   BIGINT NOT NULL
	)`,
}

const (
	selectAdmin  = `SELECT identity FROM stdref_admin WHERE id = 1`
	upsertAdmin  = `INSERT INTO stdref_admin (id, identity) VALUES (1, $1) ON CONFLICT (id) DO UPDATE SET identity = EXCLUDED.identity`
	existsRelay  = `SELECT EXISTS (SELECT 1 FROM stdref_relayers WHERE identity = $1)`
	insertRelay  = `INSERT INTO stdref_relayers (identity) VALUES ($1) ON CONFLICT (identity) DO NOTHING`
	deleteRelay  = `DELETE FROM stdref_relayers WHERE identity = $1`
	selectDatum  = `SELECT rate, resolve_time, request_id FROM stdref_refs WHERE symbol = $1`
	upsertDatum  = `INSERT INTO stdref_refs (symbol, rate, resolve_time, request_id) VALUES ($1, $2, $3, $4) ON CONFLICT (symbol) DO UPDATE SET rate = EXCLUDED.rate, resolve_time = EXCLUDED.resolve_time, request_id = EXCLUDED.request_id`
)

// Store implements oracle.Substrate. uint64 values are stored bit-for-bit
// in BIGINT columns.
type Store struct {
	db *sqlx.DB
}

var _ oracle.Substrate = (*Store)(nil)

type datumRow struct {
	Rate        int64 `db:"rate"`
	ResolveTime int64 `db:"resolve_time"`
	RequestID   int64 `db:"request_id"`
}

// Open connects to dsn and pings it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, DriverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadAdmin(ctx context.Context) (oracle.Identity, bool, error) {
	var id string
	if err := s.db.GetContext(ctx, &id, selectAdmin); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "load admin")
	}
	return oracle.Identity(id), true, nil
}

func (s *Store) StoreAdmin(ctx context.Context, id oracle.Identity) error {
	_, err := s.db.ExecContext(ctx, upsertAdmin, string(id))
	return errors.Wrap(err, "store admin")
}

func (s *Store) HasRelayer(ctx context.Context, id oracle.Identity) (bool, error) {
	var ok bool
	if err := s.db.GetContext(ctx, &ok, existsRelay, string(id)); err != nil {
		return false, errors.Wrapf(err, "has relayer %s", id)
	}
	return ok, nil
}

func (s *Store) PutRelayer(ctx context.Context, id oracle.Identity) error {
	_, err := s.db.ExecContext(ctx, insertRelay, string(id))
	return errors.Wrapf(err, "put relayer %s", id)
}

func (s *Store) DeleteRelayer(ctx context.Context, id oracle.Identity) error {
	_, err := s.db.ExecContext(ctx, deleteRelay, string(id))
	return errors.Wrapf(err, "delete relayer %s", id)
}

func (s *Store) GetDatum(ctx context.Context, symbol oracle.Symbol) (oracle.ReferenceDatum, bool, error) {
	var row datumRow
	if err := s.db.GetContext(ctx, &row, selectDatum, string(symbol)); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return oracle.ReferenceDatum{}, false, nil
		}
		return oracle.ReferenceDatum{}, false, errors.Wrapf(err, "get datum %s", symbol)
	}
	return oracle.ReferenceDatum{
		Rate:        uint64(row.Rate),
		ResolveTime: uint64(row.ResolveTime),
		RequestID:   uint64(row.RequestID),
	}, true, nil
}

func (s *Store) PutDatum(ctx context.Context, symbol oracle.Symbol, d oracle.ReferenceDatum) error {
	_, err := s.db.ExecContext(ctx, upsertDatum,
		string(symbol), int64(d.Rate), int64(d.ResolveTime), int64(d.RequestID))
	return errors.Wrapf(err, "put datum %s", symbol)
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/db"
	"github.com/sells-group/lead-enrich/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const leadColumns = `id, first_name, last_name, email, phone, job_title, country_code, company_name, company_website, created_at, updated_at`

// Statements are prepared lazily by pgx's statement cache, so a pool can be
// opened against a database that has not been migrated yet.
const (
	queryFindLeads   = `SELECT ` + leadColumns + ` FROM leads WHERE id = ANY($1)`
	queryFindLead    = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	queryUpdatePhone = `UPDATE leads SET phone = $1, updated_at = $2 WHERE id = $3 RETURNING ` + leadColumns
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := poolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func poolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	return pgxCfg, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              BIGSERIAL PRIMARY KEY,
	first_name      TEXT NOT NULL,
	last_name       TEXT NOT NULL,
	email           TEXT NOT NULL,
	phone           TEXT,
	job_title       TEXT,
	country_code    TEXT,
	company_name    TEXT,
	company_website TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FindManyByIDs(ctx context.Context, ids []int64) ([]model.Lead, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []model.Lead{}, nil
	}

	rows, err := s.pool.Query(ctx, queryFindLeads, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find leads")
	}
	defer rows.Close()

	leads := make([]model.Lead, 0, len(ids))
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate leads")
	}
	return orderByIDs(leads, ids), nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, queryFindLead, id)
	l, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find lead %d", id)
	}
	return l, nil
}

func (s *PostgresStore) UpdatePhone(ctx context.Context, id int64, phone string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, queryUpdatePhone, phone, time.Now().UTC(), id)
	l, err := scanPgLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: update phone %d", id)
	}
	return l, nil
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.JobTitle,
		&l.CountryCode, &l.CompanyName, &l.CompanyWebsite, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	return &l, nil
}

package repo

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/google/uuid"

	"github.com/blobcache/blobcache/internal/data"
)

// PostgresRepo implements JobRepo backed by PostgreSQL. It manages a
// `jobs` table keyed by the job's UUID.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo constructs a repository using the provided DSN.
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// PostgresSettings carries the component parts of a Postgres DSN.
// Credentials and db name are URL-encoded to handle special characters.
type PostgresSettings struct {
	Host     string
	Port     string
	DB       string
	User     string
	Password string
	SSLMode  string
}

// DSN renders the settings as a postgres:// URL.
func (s PostgresSettings) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(s.User, s.Password),
		Host:   net.JoinHostPort(s.Host, s.Port),
		Path:   "/" + s.DB,
	}
	q := url.Values{}
	q.Set("sslmode", s.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *PostgresRepo) Close() error { return r.db.Close() }

func (r *PostgresRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
    id UUID PRIMARY KEY,
    gen BIGINT NOT NULL DEFAULT 0,
    source TEXT NOT NULL,
    dest TEXT NOT NULL,
    state TEXT NOT NULL,
    bytes_written BIGINT NOT NULL DEFAULT 0,
    content_length BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);
`)
	return err
}

func (r *PostgresRepo) List(ctx context.Context) (data.Jobs, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,gen,source,dest,state,bytes_written,content_length,created_at FROM jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out data.Jobs
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*data.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id,gen,source,dest,state,bytes_written,content_length,created_at FROM jobs WHERE id=$1`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, data.ErrNotFound
		}
		return nil, err
	}
	return j, nil
}

func (r *PostgresRepo) Add(ctx context.Context, job *data.Job) (*data.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO jobs (id,gen,source,dest,state,bytes_written,content_length,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		job.ID, int64(job.Gen), job.Source, job.Dest, string(job.State), job.BytesWritten, job.ContentLength, job.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, job.ID)
}

// Update serializes per-row updates using SELECT ... FOR UPDATE.
func (r *PostgresRepo) Update(ctx context.Context, id string, mutate func(*data.Job) error) (*data.Job, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `SELECT id,gen,source,dest,state,bytes_written,content_length,created_at FROM jobs WHERE id=$1 FOR UPDATE`, id)
	cur, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, data.ErrNotFound
		}
		return nil, err
	}

	next := cur.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET state=$1, bytes_written=$2, content_length=$3 WHERE id=$4`,
		string(next.State), next.BytesWritten, next.ContentLength, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanJob(rs rowScanner) (*data.Job, error) {
	var (
		id, source, dest, state string
		gen                     int64
		written, length         int64
		created                 time.Time
	)
	if err := rs.Scan(&id, &gen, &source, &dest, &state, &written, &length, &created); err != nil {
		return nil, err
	}
	return &data.Job{
		ID:            id,
		Gen:           uint64(gen),
		Source:        source,
		Dest:          dest,
		State:         data.JobState(state),
		BytesWritten:  written,
		ContentLength: length,
		CreatedAt:     created,
	}, nil
}

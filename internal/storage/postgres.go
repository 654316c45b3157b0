package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/ml-job-radar/internal/jobs"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS job_postings (
	identity_key     TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	company          TEXT NOT NULL,
	location         TEXT NOT NULL,
	link             TEXT NOT NULL,
	source           TEXT NOT NULL,
	date_posted      TEXT NOT NULL,
	salary           TEXT NOT NULL DEFAULT '',
	job_type         TEXT NOT NULL,
	relevance_score  INTEGER NOT NULL,
	match_score      INTEGER NOT NULL,
	combined_score   DOUBLE PRECISION NOT NULL,
	matching_skills  TEXT[] NOT NULL DEFAULT '{}',
	missing_skills   TEXT[] NOT NULL DEFAULT '{}',
	added_at         TIMESTAMPTZ NOT NULL
)`

const postgresInsert = `INSERT INTO job_postings (
	identity_key, title, company, location, link, source, date_posted, salary, job_type,
	relevance_score, match_score, combined_score, matching_skills, missing_skills, added_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (identity_key) DO NOTHING`

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink copies persisted postings into a job_postings table.
type PostgresSink struct {
	pool pgExecer
}

// NewPostgresSink connects, verifies the connection and ensures the table exists.
func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	sink := &PostgresSink{pool: pool}
	if err := sink.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create job_postings: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, p jobs.Posting) error {
	addedAt, err := time.Parse(time.RFC3339, p.AddedAt)
	if err != nil {
		addedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, postgresInsert,
		string(p.Key()), p.Title, p.Company, p.Location, p.Link, p.Source, p.Date, p.Salary,
		string(p.JobType), p.RelevanceScore, p.MatchScore, p.CombinedScore,
		nonNil(p.MatchingSkills), nonNil(p.MissingSkills), addedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job posting: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

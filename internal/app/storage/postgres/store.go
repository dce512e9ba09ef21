package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/domain/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.JobStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateJob(ctx context.Context, job compression.Job) (compression.Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compression_jobs (
			id, filename, quality, target_bytes, dpi_used, original_bytes,
			compressed_bytes, ratio, iterations, status, error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, job.ID, job.Filename, job.Quality, job.TargetBytes, job.DPIUsed,
		job.OriginalBytes, job.CompressedBytes, job.Ratio, job.Iterations,
		job.Status, job.Error, job.Duration.Milliseconds(), job.CreatedAt)
	if err != nil {
		return compression.Job{}, err
	}
	return job, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (compression.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, quality, target_bytes, dpi_used, original_bytes,
		       compressed_bytes, ratio, iterations, status, error, duration_ms, created_at
		FROM compression_jobs WHERE id = $1
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return compression.Job{}, storage.ErrNotFound
	}
	if err != nil {
		return compression.Job{}, err
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, limit int) ([]compression.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, quality, target_bytes, dpi_used, original_bytes,
		       compressed_bytes, ratio, iterations, status, error, duration_ms, created_at
		FROM compression_jobs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []compression.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) PurgeJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM compression_jobs WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (compression.Job, error) {
	var job compression.Job
	var durationMS int64
	err := row.Scan(&job.ID, &job.Filename, &job.Quality, &job.TargetBytes,
		&job.DPIUsed, &job.OriginalBytes, &job.CompressedBytes, &job.Ratio,
		&job.Iterations, &job.Status, &job.Error, &durationMS, &job.CreatedAt)
	if err != nil {
		return compression.Job{}, err
	}
	job.Duration = time.Duration(durationMS) * time.Millisecond
	return job, nil
}

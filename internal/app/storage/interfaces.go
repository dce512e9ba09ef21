package storage

import (
	"context"
	"errors"
	"time"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/domain/compression"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// JobStore persists compression job records.
type JobStore interface {
	CreateJob(ctx context.Context, job compression.Job) (compression.Job, error)
	GetJob(ctx context.Context, id string) (compression.Job, error)
	ListJobs(ctx context.Context, limit int) ([]compression.Job, error)
	PurgeJobsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

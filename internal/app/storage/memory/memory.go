package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/domain/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]compression.Job
}

var _ storage.JobStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{jobs: make(map[string]compression.Job)}
}

func (s *Store) CreateJob(ctx context.Context, job compression.Job) (compression.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (compression.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return compression.Job{}, storage.ErrNotFound
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, limit int) ([]compression.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]compression.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Store) PurgeJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, job := range s.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			purged++
		}
	}
	return purged, nil
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/domain/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage"
)

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	store := New()

	job, err := store.CreateJob(context.Background(), compression.Job{Filename: "a.pdf"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.ID == "" {
		t.Error("expected generated ID")
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Filename != "a.pdf" {
		t.Errorf("Filename = %q, want a.pdf", got.Filename)
	}
}

func TestGetMissingJob(t *testing.T) {
	store := New()

	if _, err := store.GetJob(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	store := New()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := store.CreateJob(context.Background(), compression.Job{
			Filename:  "f.pdf",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	jobs, err := store.ListJobs(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("len = %d, want 3", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i].CreatedAt.After(jobs[i-1].CreatedAt) {
			t.Errorf("jobs not sorted newest first at index %d", i)
		}
	}
}

func TestPurgeJobsBefore(t *testing.T) {
	store := New()
	now := time.Now().UTC()

	for _, age := range []time.Duration{1 * time.Hour, 25 * time.Hour, 48 * time.Hour} {
		_, err := store.CreateJob(context.Background(), compression.Job{
			Filename:  "f.pdf",
			CreatedAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	purged, err := store.PurgeJobsBefore(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeJobsBefore: %v", err)
	}
	if purged != 2 {
		t.Errorf("purged = %d, want 2", purged)
	}

	jobs, err := store.ListJobs(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("remaining = %d, want 1", len(jobs))
	}
}

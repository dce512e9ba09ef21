package compression

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/domain/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/metrics"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage"
	"github.com/4koushik4/pdf-compressor-backend/internal/config"
	"github.com/4koushik4/pdf-compressor-backend/internal/gs"
	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

const (
	// MaxIterations bounds the binary search toward a target size.
	MaxIterations = 8
	// MinDPI is the lowest resolution the search will downsample to.
	MinDPI = 72
	// targetTolerance stops the search once the candidate is close enough.
	targetTolerance = 10 * 1024
)

// ErrUnavailable is returned when no Ghostscript binary was found at startup.
var ErrUnavailable = errors.New("ghostscript not available on server")

// Request describes one compression invocation.
type Request struct {
	Filename string
	Data     []byte
	Quality  string
	// HasTarget distinguishes an absent target from an explicit zero one.
	// An explicit target of zero (or below) still drives the search, which
	// then converges on the smallest output the DPI floor allows.
	HasTarget   bool
	TargetBytes int64
}

// Service turns uploaded PDFs into smaller ones by driving Ghostscript.
type Service struct {
	runner  gs.Runner
	store   storage.JobStore
	presets *config.PresetsConfig
	log     *logger.Logger

	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	bytesSaved    atomic.Int64
}

// New constructs a compression service. A nil runner marks Ghostscript as
// unavailable; requests then fail at request time, never at startup.
func New(runner gs.Runner, store storage.JobStore, presets *config.PresetsConfig, log *logger.Logger) *Service {
	if presets == nil {
		presets = config.DefaultPresets()
	}
	if log == nil {
		log = logger.NewDefault("compression")
	}
	return &Service{
		runner:  runner,
		store:   store,
		presets: presets,
		log:     log,
	}
}

// Available reports whether Ghostscript was resolved at startup.
func (s *Service) Available() bool {
	return s.runner != nil
}

// NormalizeQuality coerces unknown quality names to "high", matching the
// original API's lenient behavior.
func (s *Service) NormalizeQuality(quality string) string {
	quality = strings.ToLower(strings.TrimSpace(quality))
	if _, ok := s.presets.Get(quality); !ok {
		return compression.QualityHigh
	}
	return quality
}

// Compress shrinks the request's PDF. With a target size it binary-searches
// the downsampling DPI between MinDPI and the preset resolution; otherwise a
// single pass at the preset resolution is performed.
func (s *Service) Compress(ctx context.Context, req Request) (compression.Result, error) {
	start := time.Now()

	quality := s.NormalizeQuality(req.Quality)
	preset, _ := s.presets.Get(quality)
	originalBytes := int64(len(req.Data))

	result, err := s.compress(ctx, req, quality, preset, originalBytes)
	duration := time.Since(start)

	status := compression.StatusSucceeded
	errMsg := ""
	if err != nil {
		status = compression.StatusFailed
		errMsg = err.Error()
		s.jobsFailed.Add(1)
	} else {
		s.jobsProcessed.Add(1)
		if saved := originalBytes - result.CompressedBytes; saved > 0 {
			s.bytesSaved.Add(saved)
		}
	}

	metrics.RecordCompression(quality, status, duration, originalBytes, result.CompressedBytes)
	s.recordJob(ctx, req, quality, result, status, errMsg, duration)

	if err != nil {
		return compression.Result{}, err
	}

	s.log.WithField("filename", req.Filename).
		WithField("quality", quality).
		WithField("dpi", result.DPIUsed).
		WithField("original_bytes", result.OriginalBytes).
		WithField("compressed_bytes", result.CompressedBytes).
		WithField("duration", duration.String()).
		Info("pdf compressed")
	return result, nil
}

func (s *Service) compress(ctx context.Context, req Request, quality string, preset config.QualityPreset, originalBytes int64) (compression.Result, error) {
	if s.runner == nil {
		return compression.Result{}, ErrUnavailable
	}
	if originalBytes == 0 {
		return compression.Result{}, fmt.Errorf("empty input document")
	}

	tmpDir, err := os.MkdirTemp("", "pdfcompress-*")
	if err != nil {
		return compression.Result{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(inPath, req.Data, 0o600); err != nil {
		return compression.Result{}, fmt.Errorf("stage input: %w", err)
	}

	var outPath string
	var dpiUsed, iterations int

	// A missing target, or one the input already satisfies, needs just
	// one pass at the preset resolution. Any explicit target below the
	// input size goes through the search, zero and negative included.
	if !req.HasTarget || req.TargetBytes >= originalBytes {
		outPath = filepath.Join(tmpDir, "output.pdf")
		if err := s.runner.Run(ctx, inPath, outPath, preset.DPI, preset.PDFSettings); err != nil {
			return compression.Result{}, fmt.Errorf("compression error: %w", err)
		}
		dpiUsed = preset.DPI
	} else {
		outPath, dpiUsed, iterations, err = s.searchTarget(ctx, tmpDir, inPath, preset, req.TargetBytes)
		if err != nil {
			return compression.Result{}, err
		}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return compression.Result{}, fmt.Errorf("read output: %w", err)
	}

	compressedBytes := int64(len(data))
	return compression.Result{
		Data:            data,
		DPIUsed:         dpiUsed,
		OriginalBytes:   originalBytes,
		CompressedBytes: compressedBytes,
		Ratio:           float64(compressedBytes) / float64(originalBytes),
		Iterations:      iterations,
		Quality:         quality,
		TargetBytes:     req.TargetBytes,
	}, nil
}

// searchTarget binary-searches the DPI window [MinDPI, preset.DPI] for the
// output closest to targetBytes. The search keeps the best candidate seen and
// stops early within targetTolerance or when the window closes below one DPI.
func (s *Service) searchTarget(ctx context.Context, tmpDir, inPath string, preset config.QualityPreset, targetBytes int64) (string, int, int, error) {
	low := float64(MinDPI)
	high := float64(preset.DPI)

	bestPath := ""
	bestDPI := 0
	bestDiff := int64(math.MaxInt64)
	iterations := 0

	for i := 0; i < MaxIterations; i++ {
		mid := (low + high) / 2.0
		candidate := filepath.Join(tmpDir, fmt.Sprintf("out_%d.pdf", int(mid)))

		if err := s.runner.Run(ctx, inPath, candidate, int(mid), preset.PDFSettings); err != nil {
			s.log.WithError(err).WithField("dpi", int(mid)).Warn("search pass failed")
			break
		}
		iterations++

		info, err := os.Stat(candidate)
		if err != nil {
			break
		}

		diff := info.Size() - targetBytes
		if abs := absInt64(diff); abs < bestDiff {
			bestDiff = abs
			bestPath = candidate
			bestDPI = int(mid)
		}
		if absInt64(diff) <= targetTolerance {
			break
		}
		if diff > 0 {
			high = mid
		} else {
			low = mid
		}
		if high-low < 1.0 {
			break
		}
	}

	if bestPath == "" {
		// Every search pass failed; try the floor resolution before giving up.
		fallback := filepath.Join(tmpDir, "fallback.pdf")
		if err := s.runner.Run(ctx, inPath, fallback, MinDPI, preset.PDFSettings); err != nil {
			return "", 0, iterations, fmt.Errorf("compression failed: %w", err)
		}
		return fallback, MinDPI, iterations, nil
	}

	return bestPath, bestDPI, iterations, nil
}

func (s *Service) recordJob(ctx context.Context, req Request, quality string, result compression.Result, status, errMsg string, duration time.Duration) {
	if s.store == nil {
		return
	}

	job := compression.Job{
		Filename:        req.Filename,
		Quality:         quality,
		TargetBytes:     req.TargetBytes,
		DPIUsed:         result.DPIUsed,
		OriginalBytes:   int64(len(req.Data)),
		CompressedBytes: result.CompressedBytes,
		Ratio:           result.Ratio,
		Iterations:      result.Iterations,
		Status:          status,
		Error:           errMsg,
		Duration:        duration,
	}

	if _, err := s.store.CreateJob(ctx, job); err != nil {
		s.log.WithError(err).Warn("record compression job failed")
	}
}

// GetJob returns a recorded job by identifier.
func (s *Service) GetJob(ctx context.Context, id string) (compression.Job, error) {
	if s.store == nil {
		return compression.Job{}, storage.ErrNotFound
	}
	return s.store.GetJob(ctx, id)
}

// ListJobs returns the most recent job records.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]compression.Job, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListJobs(ctx, limit)
}

// Stats reports service counters for the /info endpoint.
func (s *Service) Stats() map[string]any {
	return map[string]any{
		"jobs_processed": s.jobsProcessed.Load(),
		"jobs_failed":    s.jobsFailed.Load(),
		"bytes_saved":    s.bytesSaved.Load(),
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

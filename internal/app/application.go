package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/4koushik4/pdf-compressor-backend/internal/app/services/compression"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/services/retention"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/storage/memory"
	"github.com/4koushik4/pdf-compressor-backend/internal/app/system"
	"github.com/4koushik4/pdf-compressor-backend/internal/config"
	"github.com/4koushik4/pdf-compressor-backend/internal/gs"
	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil store defaults to the
// in-memory implementation.
type Stores struct {
	Jobs storage.JobStore
}

// Options configures application construction.
type Options struct {
	Stores  Stores
	Presets *config.PresetsConfig
	// Runner executes Ghostscript passes. Nil means the binary was not
	// found; the application still starts and reports it per request.
	Runner       gs.Runner
	GSBinary     string
	JobRetention time.Duration
	Log          *logger.Logger
}

// Application ties the domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Compression *compression.Service
	Pool        *compression.Pool
	Retention   *retention.Service

	gsBinary  string
	startTime time.Time
}

// New builds a fully initialised application.
func New(opts Options) (*Application, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Stores.Jobs == nil {
		opts.Stores.Jobs = memory.New()
	}
	if opts.JobRetention <= 0 {
		opts.JobRetention = 24 * time.Hour
	}

	manager := system.NewManager()

	compressionSvc := compression.New(opts.Runner, opts.Stores.Jobs, opts.Presets, log)
	pool := compression.NewPool(compressionSvc, log)

	retentionSvc, err := retention.New(opts.Stores.Jobs, opts.JobRetention, log)
	if err != nil {
		return nil, fmt.Errorf("configure retention: %w", err)
	}

	for _, svc := range []system.Service{pool, retentionSvc} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	if opts.Runner == nil {
		log.Warn("ghostscript not found; compression requests will be rejected")
	}

	return &Application{
		manager:     manager,
		log:         log,
		Compression: compressionSvc,
		Pool:        pool,
		Retention:   retentionSvc,
		gsBinary:    opts.GSBinary,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	a.startTime = time.Now()
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// GhostscriptBinary returns the resolved binary path, empty when missing.
func (a *Application) GhostscriptBinary() string { return a.gsBinary }

// Uptime reports how long the application has been running.
func (a *Application) Uptime() time.Duration {
	if a.startTime.IsZero() {
		return 0
	}
	return time.Since(a.startTime)
}

// Stats aggregates service counters and process resource usage for /info.
func (a *Application) Stats() map[string]any {
	stats := a.Compression.Stats()
	stats["workers"] = a.Pool.WorkerCount()
	stats["queue_depth"] = a.Pool.QueueDepth()
	stats["uptime"] = a.Uptime().String()

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			stats["rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			stats["cpu_percent"] = cpu
		}
	}
	return stats
}

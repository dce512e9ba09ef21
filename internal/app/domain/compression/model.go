package compression

import "time"

// Job status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Quality levels accepted by the compression API.
const (
	QualityHigh   = "high"
	QualityMedium = "medium"
	QualityLow    = "low"
)

// Job records one compression request and its outcome.
type Job struct {
	ID              string
	Filename        string
	Quality         string
	TargetBytes     int64
	DPIUsed         int
	OriginalBytes   int64
	CompressedBytes int64
	Ratio           float64
	Iterations      int
	Status          string
	Error           string
	Duration        time.Duration
	CreatedAt       time.Time
}

// Result is the outcome of a successful compression, including the produced
// document bytes (never persisted; streamed back to the caller).
type Result struct {
	Data            []byte
	DPIUsed         int
	OriginalBytes   int64
	CompressedBytes int64
	Ratio           float64
	Iterations      int
	Quality         string
	TargetBytes     int64
}

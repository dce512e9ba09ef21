// Package gs locates and drives the Ghostscript binary used for PDF
// recompression. Ghostscript is a native dependency of the runtime image;
// its absence is tolerated at startup and reported at request time.
package gs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/4koushik4/pdf-compressor-backend/pkg/logger"
)

// binaryCandidates are probed in order when no explicit binary is configured.
var binaryCandidates = []string{"gs", "gswin64c", "gswin32c"}

// DefaultTimeout bounds a single Ghostscript invocation.
const DefaultTimeout = 60 * time.Second

// ErrNotFound indicates no Ghostscript binary is installed on the host.
var ErrNotFound = fmt.Errorf("ghostscript binary not found in PATH")

// Runner executes one downsampling pass over a PDF file.
type Runner interface {
	Run(ctx context.Context, inputPath, outputPath string, dpi int, pdfSettings string) error
}

// Find resolves the Ghostscript binary path. An explicit path wins; otherwise
// the well-known binary names are probed on PATH.
func Find(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		path, err := exec.LookPath(explicit)
		if err != nil {
			return "", fmt.Errorf("configured ghostscript binary %q not usable: %w", explicit, err)
		}
		return path, nil
	}
	for _, name := range binaryCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// Ghostscript invokes the gs binary with the pdfwrite device.
type Ghostscript struct {
	bin     string
	timeout time.Duration
	log     *logger.Logger
}

var _ Runner = (*Ghostscript)(nil)

// New creates a Ghostscript runner for the given binary path.
func New(bin string, timeout time.Duration, log *logger.Logger) *Ghostscript {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewDefault("ghostscript")
	}
	return &Ghostscript{bin: bin, timeout: timeout, log: log}
}

// Binary returns the resolved binary path.
func (g *Ghostscript) Binary() string { return g.bin }

// Run performs one compression pass, downsampling images to the given DPI.
func (g *Ghostscript) Run(ctx context.Context, inputPath, outputPath string, dpi int, pdfSettings string) error {
	if g.bin == "" {
		return ErrNotFound
	}

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := buildArgs(inputPath, outputPath, dpi, pdfSettings)
	cmd := exec.CommandContext(runCtx, g.bin, args...)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ghostscript timed out after %s", g.timeout)
		}
		return fmt.Errorf("ghostscript failed: %w: %s", err, firstLine(output))
	}

	g.log.WithField("dpi", dpi).
		WithField("pdfsettings", pdfSettings).
		WithField("duration", time.Since(start).String()).
		Debug("ghostscript pass complete")
	return nil
}

// buildArgs assembles the pdfwrite invocation. The flag set matches the
// production compressor: bicubic downsampling for color/gray, subsampling for
// mono, duplicate image detection and full font embedding with subsetting.
func buildArgs(inputPath, outputPath string, dpi int, pdfSettings string) []string {
	return []string{
		"-dNOPAUSE",
		"-dBATCH",
		"-dQUIET",
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		fmt.Sprintf("-dPDFSETTINGS=%s", pdfSettings),
		"-dAutoRotatePages=/None",
		"-dDownsampleColorImages=true",
		"-dDownsampleGrayImages=true",
		"-dDownsampleMonoImages=true",
		"-dColorImageDownsampleType=/Bicubic",
		"-dGrayImageDownsampleType=/Bicubic",
		"-dMonoImageDownsampleType=/Subsample",
		fmt.Sprintf("-dColorImageResolution=%d", dpi),
		fmt.Sprintf("-dGrayImageResolution=%d", dpi),
		fmt.Sprintf("-dMonoImageResolution=%d", dpi),
		"-dDetectDuplicateImages=true",
		"-dEmbedAllFonts=true",
		"-dSubsetFonts=true",
		fmt.Sprintf("-sOutputFile=%s", outputPath),
		inputPath,
	}
}

func firstLine(output []byte) string {
	text := strings.TrimSpace(string(output))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

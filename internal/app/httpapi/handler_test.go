package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/4koushik4/pdf-compressor-backend/internal/app"
	"github.com/4koushik4/pdf-compressor-backend/internal/gs"
)

// shrinkRunner writes a fixed-size output regardless of input, standing in
// for a Ghostscript pass.
type shrinkRunner struct {
	outputBytes int
}

func (r shrinkRunner) Run(ctx context.Context, inputPath, outputPath string, dpi int, pdfSettings string) error {
	return os.WriteFile(outputPath, bytes.Repeat([]byte("x"), r.outputBytes), 0o600)
}

// dpiRecorder captures each requested resolution and writes outputs whose
// size tracks the DPI, keeping the search deterministic.
type dpiRecorder struct {
	mu   sync.Mutex
	dpis []int
}

func (r *dpiRecorder) Run(ctx context.Context, inputPath, outputPath string, dpi int, pdfSettings string) error {
	r.mu.Lock()
	r.dpis = append(r.dpis, dpi)
	r.mu.Unlock()
	return os.WriteFile(outputPath, bytes.Repeat([]byte("x"), dpi*1000), 0o600)
}

func newTestServer(t *testing.T, runner gs.Runner) http.Handler {
	t.Helper()

	application, err := app.New(app.Options{Runner: runner})
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() {
		if err := application.Stop(context.Background()); err != nil {
			t.Errorf("stop application: %v", err)
		}
	})

	return NewHandler(application, Config{MaxUploadBytes: 200 * 1024 * 1024}, nil)
}

func multipartPDF(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t, shrinkRunner{outputBytes: 10})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["ghostscript"] != "available" {
		t.Errorf("ghostscript check = %q, want available", resp.Checks["ghostscript"])
	}
}

func TestHealthReportsMissingGhostscript(t *testing.T) {
	handler := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Checks["ghostscript"] != "missing" {
		t.Errorf("ghostscript check = %q, want missing", resp.Checks["ghostscript"])
	}
}

func TestCompress(t *testing.T) {
	handler := newTestServer(t, shrinkRunner{outputBytes: 25})

	body, contentType := multipartPDF(t, "report.pdf", bytes.Repeat([]byte("p"), 100), map[string]string{
		"quality": "medium",
	})
	req := httptest.NewRequest(http.MethodPost, "/compress", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", got)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="compressed_report.pdf"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("X-Original-Size"); got != "100" {
		t.Errorf("X-Original-Size = %q, want 100", got)
	}
	if got := rec.Header().Get("X-Compressed-Size"); got != "25" {
		t.Errorf("X-Compressed-Size = %q, want 25", got)
	}
	if got := rec.Header().Get("X-Compression-Ratio"); got != "0.2500" {
		t.Errorf("X-Compression-Ratio = %q, want 0.2500", got)
	}
	if got := rec.Header().Get("X-Quality-Used"); got != "medium" {
		t.Errorf("X-Quality-Used = %q, want medium", got)
	}
	if got := rec.Header().Get("X-Target-Size"); got != "" {
		t.Errorf("X-Target-Size = %q, want unset", got)
	}
	if rec.Body.Len() != 25 {
		t.Errorf("body length = %d, want 25", rec.Body.Len())
	}
}

func TestCompressWithTargetSetsHeader(t *testing.T) {
	handler := newTestServer(t, shrinkRunner{outputBytes: 10})

	body, contentType := multipartPDF(t, "report.pdf", bytes.Repeat([]byte("p"), 100), map[string]string{
		"targetSizeMB": "0.5",
	})
	req := httptest.NewRequest(http.MethodPost, "/compress", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := rec.Header().Get("X-Target-Size"); got != "0.5" {
		t.Errorf("X-Target-Size = %q, want 0.5", got)
	}
}

func TestCompressZeroTargetIteratesToFloor(t *testing.T) {
	runner := &dpiRecorder{}
	handler := newTestServer(t, runner)

	body, contentType := multipartPDF(t, "doc.pdf", bytes.Repeat([]byte("p"), 100), map[string]string{
		"targetSizeMB": "0",
	})
	req := httptest.NewRequest(http.MethodPost, "/compress", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// A zero target is a real target: the search halves the [72,300] window
	// each pass and settles on the floor resolution.
	if len(runner.dpis) != 8 {
		t.Fatalf("gs invocations = %v, want 8 search passes", runner.dpis)
	}
	if runner.dpis[0] != 186 || runner.dpis[len(runner.dpis)-1] != 72 {
		t.Errorf("gs invocations = %v, want 186 first and 72 last", runner.dpis)
	}
	if got := rec.Header().Get("X-Compressed-Size"); got != "72000" {
		t.Errorf("X-Compressed-Size = %q, want 72000", got)
	}

	// The header is present but empty for a zero target.
	values := rec.Header().Values("X-Target-Size")
	if len(values) != 1 || values[0] != "" {
		t.Errorf("X-Target-Size values = %q, want one empty value", values)
	}
}

func TestCompressRejectsBadRequests(t *testing.T) {
	handler := newTestServer(t, shrinkRunner{outputBytes: 10})

	cases := []struct {
		name     string
		filename string
		fields   map[string]string
		want     string
	}{
		{name: "missing file", filename: "", want: "No file part"},
		// A filename-less part is parsed as a form value, not a file.
		{name: "blank filename", filename: "", fields: map[string]string{"file": "x"}, want: "No selected file"},
		{name: "wrong extension", filename: "notes.txt", want: "Invalid file type; PDF required"},
		{name: "bad target", filename: "doc.pdf", fields: map[string]string{"targetSizeMB": "abc"}, want: "Invalid targetSizeMB"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartPDF(t, tc.filename, []byte("data"), tc.fields)
			req := httptest.NewRequest(http.MethodPost, "/compress", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if resp["error"] != tc.want {
				t.Errorf("error = %q, want %q", resp["error"], tc.want)
			}
		})
	}
}

func TestCompressRejectsOversizedUpload(t *testing.T) {
	small := NewHandler(mustApp(t, shrinkRunner{outputBytes: 10}), Config{MaxUploadBytes: 64}, nil)

	body, contentType := multipartPDF(t, "big.pdf", bytes.Repeat([]byte("p"), 65), nil)
	req := httptest.NewRequest(http.MethodPost, "/compress", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	small.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("File too large")) {
		t.Errorf("body = %s, want file-too-large error", rec.Body.String())
	}

	// A body far past the cap is refused during the multipart parse rather
	// than spooled to disk first.
	body, contentType = multipartPDF(t, "huge.pdf", bytes.Repeat([]byte("p"), 2<<20), nil)
	req = httptest.NewRequest(http.MethodPost, "/compress", body)
	req.Header.Set("Content-Type", contentType)

	rec = httptest.NewRecorder()
	small.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("File too large")) {
		t.Errorf("body = %s, want file-too-large error", rec.Body.String())
	}
}

func TestCompressWithoutGhostscriptFails(t *testing.T) {
	handler := newTestServer(t, nil)

	body, contentType := multipartPDF(t, "doc.pdf", []byte("data"), nil)
	req := httptest.NewRequest(http.MethodPost, "/compress", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["error"] != "Ghostscript not available on server" {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestJobsEndpoints(t *testing.T) {
	handler := newTestServer(t, shrinkRunner{outputBytes: 10})

	body, contentType := multipartPDF(t, "doc.pdf", bytes.Repeat([]byte("p"), 50), nil)
	req := httptest.NewRequest(http.MethodPost, "/compress", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("compress status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var jobs []JobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if jobs[0].Filename != "doc.pdf" || jobs[0].Status != "succeeded" {
		t.Errorf("job = %+v", jobs[0])
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+jobs[0].ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/no-such-id", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd.pdf", "passwd.pdf"},
		{`C:\Users\me\file.pdf`, "file.pdf"},
		{"my file (final).pdf", "my_file_final_.pdf"},
		{"///", "document.pdf"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInfo(t *testing.T) {
	handler := newTestServer(t, shrinkRunner{outputBytes: 10})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Service != ServiceName {
		t.Errorf("service = %q, want %q", resp.Service, ServiceName)
	}
	if got := fmt.Sprintf("%v", resp.Statistics["workers"]); got != "4" {
		t.Errorf("workers = %v, want 4", resp.Statistics["workers"])
	}
}

func mustApp(t *testing.T, runner gs.Runner) *app.Application {
	t.Helper()
	application, err := app.New(app.Options{Runner: runner})
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })
	return application
}

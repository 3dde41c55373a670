// Package report snapshots the store into a YAML file and reads it back.
//
// A report holds every routing and SFC at a moment in time plus a per-status
// count. It is built from any command.Backend, so the same code exports the
// in-process store or a remote server.
//
// Key types:
//   - [Report] - the snapshot
//   - [Writer] - atomic YAML export (temp file then rename)
//   - [Reader] - YAML import
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"mockmes/internal/command"
	"mockmes/internal/routing"
	"mockmes/internal/sfc"
	"mockmes/internal/status"
)

// PathEnv overrides every other report path when set.
const PathEnv = "MOCKMES_REPORT_PATH"

// DefaultPath is used when neither the environment nor the caller names a file.
const DefaultPath = "mockmes-report.yaml"

// Report is a point-in-time snapshot of the store.
type Report struct {
	GeneratedAt time.Time         `yaml:"generated_at"`
	Source      string            `yaml:"source"`
	Summary     Summary           `yaml:"summary"`
	Routings    []routing.Routing `yaml:"routings"`
	SFCs        []sfc.Record      `yaml:"sfcs"`
}

// Summary counts the snapshot contents.
type Summary struct {
	Routings int                      `yaml:"routings"`
	SFCs     int                      `yaml:"sfcs"`
	ByStatus map[status.SFCStatus]int `yaml:"by_status"`
}

// Build reads every routing and SFC from backend.
func Build(ctx context.Context, backend command.Backend, source string, now time.Time) (*Report, error) {
	routings, err := backend.ListRoutings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routings: %w", err)
	}
	sfcs, err := backend.ListSFCs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sfcs: %w", err)
	}

	byStatus := make(map[status.SFCStatus]int)
	for _, rec := range sfcs {
		byStatus[rec.Status]++
	}

	return &Report{
		GeneratedAt: now.UTC(),
		Source:      source,
		Summary: Summary{
			Routings: len(routings),
			SFCs:     len(sfcs),
			ByStatus: byStatus,
		},
		Routings: routings,
		SFCs:     sfcs,
	}, nil
}

// ResolvePath picks the report file. Resolution order:
//  1. MOCKMES_REPORT_PATH environment variable
//  2. path, if non-empty
//  3. [DefaultPath]
func ResolvePath(path string) string {
	if env := os.Getenv(PathEnv); env != "" {
		return env
	}
	if path != "" {
		return path
	}
	return DefaultPath
}

// Writer writes reports to a filesystem.
type Writer struct {
	fs afero.Fs
}

// NewWriter creates a Writer on fs.
func NewWriter(fs afero.Fs) *Writer {
	return &Writer{fs: fs}
}

// Write stores r at path atomically: the YAML goes to a temp file that is
// then renamed over path. Missing parent directories are created.
func (w *Writer) Write(path string, r *Report) error {
	if r == nil {
		return fmt.Errorf("report is nil")
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := afero.WriteFile(w.fs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := w.fs.Rename(tmpPath, path); err != nil {
		_ = w.fs.Remove(tmpPath)
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Reader reads reports from a filesystem.
type Reader struct {
	fs afero.Fs
}

// NewReader creates a Reader on fs.
func NewReader(fs afero.Fs) *Reader {
	return &Reader{fs: fs}
}

// Read parses the report at path.
func (r *Reader) Read(path string) (*Report, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var rep Report
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &rep, nil
}

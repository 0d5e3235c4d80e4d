package restore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	logHeader = "🕒 Recovery Time Log\n====================\n\n"
	rule      = "==============================================================="
)

// Harness times restore procedures and records each one in an append-mode log
type Harness struct {
	path string
	out  io.Writer
	log  *slog.Logger
	now  func() time.Time
}

// NewHarness truncates the log file at path and writes the header
func NewHarness(path string, out io.Writer, log *slog.Logger) (*Harness, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.WriteFile(path, []byte(logHeader), 0o644); err != nil {
		return nil, fmt.Errorf("failed to create restore log: %w", err)
	}
	return &Harness{path: path, out: out, log: log, now: time.Now}, nil
}

// Time runs fn between two clock readings and appends exactly one result
// block, whether or not fn failed. Failures are logged, never returned.
func (h *Harness) Time(ctx context.Context, name string, fn func(ctx context.Context) error) time.Duration {
	h.write(fmt.Sprintf("▶️ Restoring %s...\n", name))

	start := h.now()
	err := fn(ctx)
	duration := h.now().Sub(start)

	if err != nil {
		h.log.Warn("restore reported errors", "backend", name, "error", err)
	}
	h.write(Block(name, duration))
	return duration
}

// Done records the end of the run
func (h *Harness) Done() {
	h.write("✅ All restores completed.\n")
}

// Path returns the log file location
func (h *Harness) Path() string {
	return h.path
}

// Block formats the log entry for one finished restore
func Block(name string, d time.Duration) string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "✅ %s restored in %.2f seconds.\n", name, d.Seconds())
	b.WriteString(rule + "\n\n")
	return b.String()
}

// write prints msg and appends it to the log file
func (h *Harness) write(msg string) {
	fmt.Fprint(h.out, msg)

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		h.log.Error("failed to open restore log", "path", h.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(msg); err != nil {
		h.log.Error("failed to write restore log", "path", h.path, "error", err)
	}
}

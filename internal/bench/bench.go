package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"vecbench/internal/backend"
	"vecbench/internal/corpus"
)

// Op names the benchmark step an Outcome belongs to
type Op string

const (
	OpIngest Op = "ingest"
	OpVerify Op = "verify"
	OpQuick  Op = "quick"
)

// Accuracy counts top-1 matches
type Accuracy struct {
	Correct int `json:"correct" yaml:"correct"`
	Total   int `json:"total" yaml:"total"`
}

// Percent returns Correct/Total*100, or 0 when nothing was queried
func (a Accuracy) Percent() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Total) * 100
}

func (a Accuracy) String() string {
	return fmt.Sprintf("%d/%d = %.2f%%", a.Correct, a.Total, a.Percent())
}

// Outcome is the result of one step on one backend. Err is set when the
// step failed; the run carries on with the next backend either way.
type Outcome struct {
	Backend  string        `json:"backend" yaml:"backend"`
	Op       Op            `json:"op" yaml:"op"`
	Accuracy Accuracy      `json:"accuracy" yaml:"accuracy"`
	Hits     []backend.Hit `json:"hits,omitempty" yaml:"hits,omitempty"`
	Err      error         `json:"-" yaml:"-"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
}

// OK reports whether the step succeeded
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Runner drives each backend in turn and prints progress to out
type Runner struct {
	out io.Writer
	log *slog.Logger
}

// NewRunner creates a runner writing progress lines to out
func NewRunner(out io.Writer, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{out: out, log: log}
}

// Ingest loads the corpus into every backend
func (r *Runner) Ingest(ctx context.Context, backends []backend.Backend, c *corpus.Corpus) []Outcome {
	outcomes := make([]Outcome, 0, len(backends))
	for _, b := range backends {
		start := time.Now()
		err := b.Ingest(ctx, c)
		o := Outcome{
			Backend:  b.Name(),
			Op:       OpIngest,
			Accuracy: Accuracy{Total: c.Len()},
			Err:      err,
			Elapsed:  time.Since(start),
		}
		if err != nil {
			fmt.Fprintf(r.out, "❌ %s insertion failed: %v\n", b.Name(), err)
			r.log.Error("ingest failed", "backend", b.Name(), "error", err)
		} else {
			o.Accuracy.Correct = c.Len()
			fmt.Fprintf(r.out, "✅ %s insertion complete (%d vectors).\n", b.Name(), c.Len())
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Verify queries every backend with each record's own vector and counts how
// often the top-1 hit is that record
func (r *Runner) Verify(ctx context.Context, backends []backend.Backend, c *corpus.Corpus, k int) []Outcome {
	outcomes := make([]Outcome, 0, len(backends))
	for _, b := range backends {
		start := time.Now()
		acc, err := r.verifyOne(ctx, b, c, k)
		o := Outcome{
			Backend:  b.Name(),
			Op:       OpVerify,
			Accuracy: acc,
			Err:      err,
			Elapsed:  time.Since(start),
		}
		if err != nil {
			fmt.Fprintf(r.out, "❌ %s verification failed: %v\n", b.Name(), err)
			r.log.Error("verify failed", "backend", b.Name(), "error", err)
		} else {
			fmt.Fprintf(r.out, "✅ %s accuracy: %s\n", b.Name(), acc)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (r *Runner) verifyOne(ctx context.Context, b backend.Backend, c *corpus.Corpus, k int) (Accuracy, error) {
	acc := Accuracy{Total: c.Len()}
	misses := 0
	for i, rec := range c.Records {
		hits, err := b.Search(ctx, rec.Vector, k)
		if err != nil {
			// A dead connection on the first query means nothing else will work.
			if i == 0 || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return acc, err
			}
			r.log.Debug("search failed", "backend", b.Name(), "id", rec.ID, "error", err)
			misses++
			continue
		}
		if len(hits) > 0 && backend.Matches(hits[0], rec, b.MatchBy()) {
			acc.Correct++
		}
	}
	if misses > 0 {
		r.log.Warn("some searches failed", "backend", b.Name(), "failed", misses, "total", acc.Total)
	}
	return acc, nil
}

// Quick sends one freshly generated random vector to each backend and
// reports how many hits came back
func (r *Runner) Quick(ctx context.Context, backends []backend.Backend, dim, k int, rng *rand.Rand) []Outcome {
	outcomes := make([]Outcome, 0, len(backends))
	for _, b := range backends {
		start := time.Now()
		hits, err := b.Search(ctx, corpus.RandomVector(dim, rng), k)
		o := Outcome{
			Backend: b.Name(),
			Op:      OpQuick,
			Hits:    hits,
			Err:     err,
			Elapsed: time.Since(start),
		}
		if err != nil {
			fmt.Fprintf(r.out, "❌ %s verification failed: %v\n", b.Name(), err)
			r.log.Error("quick verify failed", "backend", b.Name(), "error", err)
		} else {
			fmt.Fprintf(r.out, "✅ %s search result count: %d\n", b.Name(), len(hits))
			if len(hits) > 0 {
				h := hits[0]
				fmt.Fprintf(r.out, "   First %s hit ID: %d, Score: %.4f", b.Name(), h.ID, h.Score)
				if h.Label != "" {
					fmt.Fprintf(r.out, ", Word: %s", h.Label)
				}
				fmt.Fprintln(r.out)
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// Wait pings each backend until it answers or timeout passes. Backends that
// never answer are reported and left in the list; their queries will fail
// and be reported as usual.
func (r *Runner) Wait(ctx context.Context, backends []backend.Backend, timeout, interval time.Duration) {
	for _, b := range backends {
		if err := waitOne(ctx, b, timeout, interval); err != nil {
			fmt.Fprintf(r.out, "⚠️  %s not ready: %v\n", b.Name(), err)
			continue
		}
		r.log.Debug("backend ready", "backend", b.Name())
	}
}

func waitOne(ctx context.Context, b backend.Backend, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		err := b.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(interval):
		}
	}
}

// Failed returns the outcomes that carry an error
func Failed(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"vecbench/internal/backend"
	"vecbench/internal/backend/chroma"
	"vecbench/internal/backend/pgvector"
	"vecbench/internal/backend/qdrant"
	"vecbench/internal/backend/weaviate"
	"vecbench/internal/config"
)

var defaultBackends = []string{"qdrant", "chroma", "weaviate", "pgvector"}

type opener func(cfg config.Config, log *slog.Logger) (backend.Backend, error)

var openers = map[string]opener{
	"qdrant": func(cfg config.Config, log *slog.Logger) (backend.Backend, error) {
		return qdrant.New(cfg.Qdrant, cfg.BatchSize, log)
	},
	"chroma": func(cfg config.Config, log *slog.Logger) (backend.Backend, error) {
		return chroma.New(cfg.Chroma, cfg.BatchSize, log)
	},
	"weaviate": func(cfg config.Config, log *slog.Logger) (backend.Backend, error) {
		return weaviate.New(cfg.Weaviate, cfg.BatchSize, log)
	},
	"pgvector": func(cfg config.Config, log *slog.Logger) (backend.Backend, error) {
		return pgvector.New(cfg.Postgres, log)
	},
	"memory": func(config.Config, *slog.Logger) (backend.Backend, error) {
		return backend.NewMemoryStore("memory"), nil
	},
}

// parseBackends normalizes the --backends list. Entries may be comma or
// space separated; duplicates are dropped and order is kept.
func parseBackends(raw []string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, entry := range raw {
		for _, name := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ' ' }) {
			name = strings.ToLower(name)
			if _, ok := openers[name]; !ok {
				return nil, fmt.Errorf("unknown backend %q", name)
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no backends selected")
	}
	return names, nil
}

// openBackends connects to each named backend. A backend that cannot be
// created is reported and left out so the others still run.
func openBackends(out io.Writer, names []string, cfg config.Config, log *slog.Logger) []backend.Backend {
	backends := make([]backend.Backend, 0, len(names))
	for _, name := range names {
		b, err := openers[name](cfg, log)
		if err != nil {
			fmt.Fprintf(out, "❌ Could not connect to %s: %v\n", name, err)
			log.Error("connect failed", "backend", name, "error", err)
			continue
		}
		backends = append(backends, b)
	}
	return backends
}

func closeBackends(backends []backend.Backend, log *slog.Logger) {
	for _, b := range backends {
		if err := b.Close(); err != nil {
			log.Warn("close failed", "backend", b.Name(), "error", err)
		}
	}
}

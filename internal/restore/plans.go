package restore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vecbench/internal/config"
	"vecbench/internal/health"
)

// Step is one external command of a restore
type Step struct {
	Name string
	Args []string
}

func (s Step) String() string {
	return strings.Join(append([]string{s.Name}, s.Args...), " ")
}

// Plan is the ordered list of commands that restores one backend.
// Err is set when the plan could not be fully prepared.
type Plan struct {
	Name     string
	Steps    []Step
	ReadyURL string
	Err      error
}

// Run executes every step in order. A failing step does not stop the ones
// after it; all failures come back joined.
func (p Plan) Run(ctx context.Context, r Runner) error {
	if p.Err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubprocess, p.Name, p.Err)
	}

	var errs []error
	for _, s := range p.Steps {
		if err := r.Run(ctx, s.Name, s.Args...); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrSubprocess, s, err))
		}
	}
	return errors.Join(errs...)
}

// Plans builds the restore plans for all four backends in run order
func Plans(cfg config.Config) []Plan {
	backupDir, err := filepath.Abs(cfg.Restore.BackupDir)
	if err != nil {
		backupDir = cfg.Restore.BackupDir
	}
	return []Plan{
		QdrantPlan(cfg.Qdrant, backupDir, cfg.Corpus.Dim),
		ChromaPlan(cfg.Chroma, backupDir),
		WeaviatePlan(cfg.Weaviate),
		PostgresPlan(cfg.Postgres, backupDir),
	}
}

// QdrantPlan copies a snapshot into the container, recreates the collection
// and recovers it from the snapshot
func QdrantPlan(cfg config.QdrantConfig, backupDir string, dim int) Plan {
	p := Plan{Name: "Qdrant", ReadyURL: health.URL(cfg.HTTPURL(), health.QdrantReadyPath)}

	snapshot := cfg.Snapshot
	if snapshot == "" {
		latest, err := LatestSnapshot(filepath.Join(backupDir, "qdrant"))
		if err != nil {
			p.Err = err
			return p
		}
		snapshot = latest
	}

	collectionURL := fmt.Sprintf("%s/collections/%s", cfg.HTTPURL(), cfg.Collection)
	p.Steps = []Step{
		{"docker", []string{"cp",
			filepath.Join(backupDir, "qdrant", snapshot),
			fmt.Sprintf("%s:/tmp/%s", cfg.Container, snapshot),
		}},
		curlJSON("PUT", collectionURL, map[string]any{
			"vectors": map[string]any{"size": dim, "distance": "Cosine"},
		}),
		curlJSON("PUT", collectionURL+"/snapshots/recover", map[string]any{
			"location": "file:///tmp/" + snapshot,
		}),
	}
	return p
}

// ChromaPlan stops the container, copies the backup into its data volume
// and starts it again
func ChromaPlan(cfg config.ChromaConfig, backupDir string) Plan {
	return Plan{
		Name:     "Chroma",
		ReadyURL: health.URL(cfg.BaseURL(), health.ChromaReadyPath),
		Steps: []Step{
			{"docker", []string{"stop", cfg.Container}},
			{"docker", []string{"run", "--rm",
				"-v", filepath.Join(backupDir, "chroma") + ":/backup",
				"-v", cfg.Volume + ":/data",
				"alpine", "sh", "-c", "cp -r /backup/. /data/ && chown -R 1000:1000 /data",
			}},
			{"docker", []string{"start", cfg.Container}},
		},
	}
}

// WeaviatePlan asks Weaviate to restore a backup from its backup backend
func WeaviatePlan(cfg config.WeaviateConfig) Plan {
	url := fmt.Sprintf("%s/v1/backups/%s/%s/restore", cfg.HTTPURL(), cfg.BackupBackend, cfg.BackupID)
	return Plan{
		Name:     "Weaviate",
		ReadyURL: health.URL(cfg.HTTPURL(), health.WeaviateReadyPath),
		Steps: []Step{
			curlJSON("POST", url, map[string]any{"id": cfg.BackupID}),
		},
	}
}

// PostgresPlan recreates the database and loads the dump with pg_restore
func PostgresPlan(cfg config.PostgresConfig, backupDir string) Plan {
	dumpPath := "/tmp/" + cfg.DumpFile
	pgExec := func(tool string, args ...string) Step {
		return Step{"docker", append([]string{
			"exec", "-e", "PGPASSWORD=" + cfg.Password, cfg.Container,
			tool, "-U", cfg.User,
		}, args...)}
	}
	return Plan{
		Name: "pgvector",
		Steps: []Step{
			pgExec("dropdb", cfg.Database),
			pgExec("createdb", cfg.Database),
			{"docker", []string{"cp",
				filepath.Join(backupDir, "pgvector", cfg.DumpFile),
				cfg.Container + ":" + dumpPath,
			}},
			pgExec("pg_restore", "-d", cfg.Database, dumpPath),
		},
	}
}

func curlJSON(method, url string, body map[string]any) Step {
	// Marshal cannot fail on these literal maps.
	data, _ := json.Marshal(body)
	return Step{"curl", []string{
		"-X", method, url,
		"-H", "Content-Type: application/json",
		"-d", string(data),
	}}
}

// LatestSnapshot returns the newest *.snapshot file name in dir
func LatestSnapshot(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.snapshot"))
	if err != nil {
		return "", fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no *.snapshot files in %s", dir)
	}

	type candidate struct {
		name    string
		modTime int64
	}
	candidates := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{filepath.Base(m), info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no readable snapshots in %s", dir)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime != candidates[j].modTime {
			return candidates[i].modTime > candidates[j].modTime
		}
		return candidates[i].name > candidates[j].name
	})
	return candidates[0].name, nil
}

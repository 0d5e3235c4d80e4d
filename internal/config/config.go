package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the benchmark commands read
type Config struct {
	Corpus    CorpusConfig   `mapstructure:"corpus"`
	Qdrant    QdrantConfig   `mapstructure:"qdrant"`
	Chroma    ChromaConfig   `mapstructure:"chroma"`
	Weaviate  WeaviateConfig `mapstructure:"weaviate"`
	Postgres  PostgresConfig `mapstructure:"postgres"`
	Restore   RestoreConfig  `mapstructure:"restore"`
	BatchSize int            `mapstructure:"batch_size"`
}

// CorpusConfig describes where sample vectors come from
type CorpusConfig struct {
	Path      string `mapstructure:"path"`
	Limit     int    `mapstructure:"limit"`
	Dim       int    `mapstructure:"dim"`
	RandomDim int    `mapstructure:"random_dim"`
	Seed      uint64 `mapstructure:"seed"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	GRPCPort   int    `mapstructure:"grpc_port"`
	HTTPPort   int    `mapstructure:"http_port"`
	Collection string `mapstructure:"collection"`
	Container  string `mapstructure:"container"`
	// Snapshot is the file name under <backup_dir>/qdrant. Empty picks the newest.
	Snapshot string `mapstructure:"snapshot"`
}

type ChromaConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Container  string `mapstructure:"container"`
	Volume     string `mapstructure:"volume"`
}

type WeaviateConfig struct {
	Host          string `mapstructure:"host"`
	HTTPPort      int    `mapstructure:"http_port"`
	GRPCPort      int    `mapstructure:"grpc_port"`
	Class         string `mapstructure:"class"`
	BackupBackend string `mapstructure:"backup_backend"`
	BackupID      string `mapstructure:"backup_id"`
}

type PostgresConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Database  string `mapstructure:"database"`
	Table     string `mapstructure:"table"`
	Container string `mapstructure:"container"`
	DumpFile  string `mapstructure:"dump_file"`
}

// RestoreConfig controls the timed restore run
type RestoreConfig struct {
	BackupDir    string        `mapstructure:"backup_dir"`
	LogFile      string        `mapstructure:"log_file"`
	WaitReady    bool          `mapstructure:"wait_ready"`
	ReadyTimeout time.Duration `mapstructure:"ready_timeout"`
}

// HTTPURL returns the REST base URL used by restore and readiness checks
func (c QdrantConfig) HTTPURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.HTTPPort)
}

// BaseURL returns the Chroma HTTP endpoint
func (c ChromaConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// HTTPURL returns the Weaviate REST endpoint
func (c WeaviateConfig) HTTPURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.HTTPPort)
}

// DSN returns a lib/pq connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// SetDefaults registers the values the benchmark has always run against:
// every backend on localhost with its stock port and credentials.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("corpus.path", "glove.6B.100d.txt")
	v.SetDefault("corpus.limit", 1000)
	v.SetDefault("corpus.dim", 100)
	v.SetDefault("corpus.random_dim", 128)
	v.SetDefault("corpus.seed", 42)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.grpc_port", 6334)
	v.SetDefault("qdrant.http_port", 6333)
	v.SetDefault("qdrant.collection", "test_glove")
	v.SetDefault("qdrant.container", "qdrant")
	v.SetDefault("qdrant.snapshot", "")

	v.SetDefault("chroma.host", "localhost")
	v.SetDefault("chroma.port", 8000)
	v.SetDefault("chroma.collection", "test_glove")
	v.SetDefault("chroma.container", "chroma")
	v.SetDefault("chroma.volume", "chroma_data")

	v.SetDefault("weaviate.host", "localhost")
	v.SetDefault("weaviate.http_port", 8080)
	v.SetDefault("weaviate.grpc_port", 50051)
	v.SetDefault("weaviate.class", "VectorDocGlove")
	v.SetDefault("weaviate.backup_backend", "filesystem")
	v.SetDefault("weaviate.backup_id", "backup_glove")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "password")
	v.SetDefault("postgres.database", "vectors")
	v.SetDefault("postgres.table", "items_glove")
	v.SetDefault("postgres.container", "pgvector")
	v.SetDefault("postgres.dump_file", "pgvector.dump")

	v.SetDefault("restore.backup_dir", "./backups")
	v.SetDefault("restore.log_file", "restore_timings.log")
	v.SetDefault("restore.wait_ready", false)
	v.SetDefault("restore.ready_timeout", 2*time.Minute)

	v.SetDefault("batch_size", 256)
}

// Load decodes the viper state into a Config and validates it
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no backend could run with
func (c Config) Validate() error {
	var errs []error
	if c.Corpus.Limit <= 0 {
		errs = append(errs, fmt.Errorf("corpus.limit must be positive, got %d", c.Corpus.Limit))
	}
	if c.Corpus.Dim <= 0 {
		errs = append(errs, fmt.Errorf("corpus.dim must be positive, got %d", c.Corpus.Dim))
	}
	if c.Corpus.RandomDim <= 0 {
		errs = append(errs, fmt.Errorf("corpus.random_dim must be positive, got %d", c.Corpus.RandomDim))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.Qdrant.Collection == "" || c.Chroma.Collection == "" || c.Weaviate.Class == "" || c.Postgres.Table == "" {
		errs = append(errs, errors.New("collection, class and table names must not be empty"))
	}
	return errors.Join(errs...)
}

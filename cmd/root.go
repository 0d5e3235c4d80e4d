package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vecbench/internal/bench"
	"vecbench/internal/config"
	"vecbench/internal/report"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vecbench",
	Short: "vecbench - load, verify and restore-time vector databases",
	Long: `vecbench is a command-line tool for exercising vector databases running on
localhost. It loads word-embedding vectors into Qdrant, Chroma, Weaviate and
pgvector, checks that every inserted vector comes back as its own nearest
neighbour, and times how long a backup restore takes for each backend.

Features:
- Ingest GloVe vectors or seeded random vectors
- Verify top-1 round-trip accuracy per backend
- Quick smoke test with a single random query
- Time backup restores into restore_timings.log
- Report results as a table, JSON or YAML`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vecbench.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringP("output", "o", string(report.FormatText), "summary format: text, json or yaml")
	rootCmd.PersistentFlags().StringSliceP("backends", "b", defaultBackends, "backends to run against (qdrant, chroma, weaviate, pgvector, memory)")
	rootCmd.PersistentFlags().String("corpus", "glove.6B.100d.txt", "word-embedding text file to load")
	rootCmd.PersistentFlags().IntP("limit", "n", 1000, "number of corpus lines to read")
	rootCmd.PersistentFlags().Int("batch-size", 256, "records per insert request")
	rootCmd.PersistentFlags().Uint64("seed", 42, "seed for the --random corpus of ingest and verify")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("backends", rootCmd.PersistentFlags().Lookup("backends"))
	viper.BindPFlag("corpus.path", rootCmd.PersistentFlags().Lookup("corpus"))
	viper.BindPFlag("corpus.limit", rootCmd.PersistentFlags().Lookup("limit"))
	viper.BindPFlag("batch_size", rootCmd.PersistentFlags().Lookup("batch-size"))
	viper.BindPFlag("corpus.seed", rootCmd.PersistentFlags().Lookup("seed"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".vecbench")
	}

	viper.SetEnvPrefix("VECBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setup loads the typed configuration and builds the logger shared by every command
func setup() (config.Config, *slog.Logger, error) {
	log, err := newLogger(viper.GetString("log_level"))
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	return slog.New(handler), nil
}

func outputFormat() (report.Format, error) {
	f := report.Format(strings.ToLower(viper.GetString("output")))
	switch f {
	case report.FormatText, report.FormatJSON, report.FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q", f)
}

// finish prints the summary for a run. Backend failures were already
// reported line by line and do not fail the command.
func finish(cmd *cobra.Command, outcomes []bench.Outcome, format report.Format, log *slog.Logger) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	if err := report.Render(out, outcomes, format); err != nil {
		return err
	}
	if failed := bench.Failed(outcomes); len(failed) > 0 {
		log.Warn("some backends failed", "failed", len(failed), "total", len(outcomes))
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %d of %d operations failed\n", len(failed), len(outcomes))
	}
	return nil
}

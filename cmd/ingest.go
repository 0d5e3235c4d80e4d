package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vecbench/internal/bench"
	"vecbench/internal/corpus"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the corpus into every selected backend",
	Long: `Load word-embedding vectors and insert them into each selected backend.
Existing collections, classes and tables with the configured names are dropped
and recreated first.

A backend that fails is reported and the remaining ones still run.

Examples:
  vecbench ingest
  vecbench ingest --corpus glove.6B.100d.txt -n 5000
  vecbench ingest --random --backends qdrant,chroma
  vecbench ingest --backends memory --verify`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Bool("random", false, "Insert seeded random vectors instead of the corpus file")
	ingestCmd.Flags().Bool("verify", false, "Run a full verification right after ingesting")
	ingestCmd.Flags().IntP("top-k", "k", 1, "Neighbours to request per query with --verify")
}

func runIngest(cmd *cobra.Command, args []string) error {
	random, _ := cmd.Flags().GetBool("random")
	verify, _ := cmd.Flags().GetBool("verify")
	topK, _ := cmd.Flags().GetInt("top-k")

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	format, err := outputFormat()
	if err != nil {
		return err
	}
	names, err := parseBackends(viper.GetStringSlice("backends"))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	var c *corpus.Corpus
	if random {
		c = corpus.Random(cfg.Corpus.Limit, cfg.Corpus.RandomDim, cfg.Corpus.Seed)
		fmt.Fprintf(out, "🎲 Generated %d random vectors (dim %d, seed %d).\n", c.Len(), c.Dim, cfg.Corpus.Seed)
	} else {
		// A missing corpus stops the run before any backend is touched.
		if err := corpus.Check(cfg.Corpus.Path); err != nil {
			return err
		}
		c, err = corpus.Load(cfg.Corpus.Path, cfg.Corpus.Limit, cfg.Corpus.Dim, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📚 Loaded %d GloVe vectors.\n", c.Len())
	}

	backends := openBackends(out, names, cfg, log)
	defer closeBackends(backends, log)

	ctx := cmd.Context()
	runner := bench.NewRunner(out, log)
	outcomes := runner.Ingest(ctx, backends, c)
	if verify {
		outcomes = append(outcomes, runner.Verify(ctx, backends, c, topK)...)
	}

	return finish(cmd, outcomes, format, log)
}

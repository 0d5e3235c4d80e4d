package cmd

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vecbench/internal/bench"
	"vecbench/internal/config"
	"vecbench/internal/corpus"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that ingested vectors come back as their own nearest neighbour",
	Long: `Query every selected backend with each corpus vector and count how often
the top hit is the record that vector belongs to.

With --quick, send a single random query per backend instead and print the
result count and first hit. This is the smoke test to run after a restore.

Examples:
  vecbench verify
  vecbench verify --random --backends qdrant
  vecbench verify --quick --wait
  vecbench verify -o json`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().IntP("top-k", "k", 1, "Neighbours to request per query")
	verifyCmd.Flags().Bool("random", false, "Verify against the seeded random corpus instead of the corpus file")
	verifyCmd.Flags().BoolP("quick", "q", false, "Send one random query per backend")
	verifyCmd.Flags().Int("dim", 0, "Query dimensionality for --quick (default corpus.dim, or corpus.random_dim with --random)")
	verifyCmd.Flags().Bool("wait", false, "Ping each backend until it answers before querying")
	verifyCmd.Flags().Duration("wait-timeout", 30*time.Second, "How long --wait waits per backend")
}

func runVerify(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")
	random, _ := cmd.Flags().GetBool("random")
	quick, _ := cmd.Flags().GetBool("quick")
	dim, _ := cmd.Flags().GetInt("dim")
	wait, _ := cmd.Flags().GetBool("wait")
	waitTimeout, _ := cmd.Flags().GetDuration("wait-timeout")

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
	if topK <= 0 {
		return fmt.Errorf("top-k must be positive, got %d", topK)
	}

	out := cmd.OutOrStdout()

	var c *corpus.Corpus
	if !quick {
		if random {
			c = corpus.Random(cfg.Corpus.Limit, cfg.Corpus.RandomDim, cfg.Corpus.Seed)
		} else {
			if err := corpus.Check(cfg.Corpus.Path); err != nil {
				return err
			}
			if c, err = corpus.Load(cfg.Corpus.Path, cfg.Corpus.Limit, cfg.Corpus.Dim, log); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "🔍 Verifying %d vectors per backend (top-%d)...\n", c.Len(), topK)
	}

	backends := openBackends(out, names, cfg, log)
	defer closeBackends(backends, log)

	ctx := cmd.Context()
	runner := bench.NewRunner(out, log)
	if wait {
		runner.Wait(ctx, backends, waitTimeout, time.Second)
	}

	var outcomes []bench.Outcome
	if quick {
		if !cmd.Flags().Changed("top-k") {
			topK = 5
		}
		dim = quickDim(cfg.Corpus, random, dim)
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		outcomes = runner.Quick(ctx, backends, dim, topK, rng)
	} else {
		outcomes = runner.Verify(ctx, backends, c, topK)
	}

	return finish(cmd, outcomes, format, log)
}

// quickDim picks the query dimensionality for a quick check: an explicit
// --dim, else the dimensionality the matching ingest used
func quickDim(cfg config.CorpusConfig, random bool, dim int) int {
	switch {
	case dim > 0:
		return dim
	case random:
		return cfg.RandomDim
	default:
		return cfg.Dim
	}
}

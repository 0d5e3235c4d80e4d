package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vecbench/internal/health"
	"vecbench/internal/restore"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore each backend from backup and time it",
	Long: `Restore every selected backend from the files under the backup directory
and record how long each restore took in the timing log.

The log is recreated on every run. Each restore appends one block, whether or
not its commands succeeded; failing commands are logged and the next restore
still runs.

Requires docker and curl on PATH.

Examples:
  vecbench restore
  vecbench restore --backup-dir /srv/backups --wait-ready
  vecbench restore --backends qdrant,weaviate`,
	Args: cobra.NoArgs,
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().String("backup-dir", "./backups", "Directory holding qdrant/, chroma/ and pgvector/ backups")
	restoreCmd.Flags().String("log-file", "restore_timings.log", "Timing log to (re)create")
	restoreCmd.Flags().Bool("wait-ready", false, "Include time until the service reports ready in each measurement")
	restoreCmd.Flags().Duration("ready-timeout", 2*time.Minute, "Longest time --wait-ready waits per backend")

	viper.BindPFlag("restore.backup_dir", restoreCmd.Flags().Lookup("backup-dir"))
	viper.BindPFlag("restore.log_file", restoreCmd.Flags().Lookup("log-file"))
	viper.BindPFlag("restore.wait_ready", restoreCmd.Flags().Lookup("wait-ready"))
	viper.BindPFlag("restore.ready_timeout", restoreCmd.Flags().Lookup("ready-timeout"))
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	names, err := parseBackends(viper.GetStringSlice("backends"))
	if err != nil {
		return err
	}

	plans := selectPlans(restore.Plans(cfg), names)
	if len(plans) == 0 {
		return fmt.Errorf("no restore procedure for backends %v", names)
	}

	out := cmd.OutOrStdout()
	harness, err := restore.NewHarness(cfg.Restore.LogFile, out, log)
	if err != nil {
		return err
	}

	runner := &restore.ExecRunner{Stdout: out, Stderr: cmd.ErrOrStderr(), Log: log}
	prober := health.NewProber(5 * time.Second)

	ctx := cmd.Context()
	for _, p := range plans {
		harness.Time(ctx, p.Name, func(ctx context.Context) error {
			err := p.Run(ctx, runner)
			if cfg.Restore.WaitReady && p.ReadyURL != "" {
				waitCtx, cancel := context.WithTimeout(ctx, cfg.Restore.ReadyTimeout)
				defer cancel()
				if werr := prober.WaitReady(waitCtx, p.ReadyURL, time.Second); werr != nil {
					err = errors.Join(err, werr)
				}
			}
			return err
		})
	}
	harness.Done()

	log.Info("restore timings written", "path", harness.Path())
	return nil
}

// selectPlans keeps the plans whose backend is in names, in plan order.
// Names without a restore procedure, such as memory, are skipped.
func selectPlans(plans []restore.Plan, names []string) []restore.Plan {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var selected []restore.Plan
	for _, p := range plans {
		if want[strings.ToLower(p.Name)] {
			selected = append(selected, p)
		}
	}
	return selected
}

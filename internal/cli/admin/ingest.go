package admin

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragbot/internal/cli"
	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/jobs"
	"github.com/cloo-solutions/ragbot/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	var namespace = cli.NewNamespaceValue("")

	cmd := &cobra.Command{
		Use:     "ingest",
		Aliases: []string{"build"},
		Short:   "Build namespace indexes from the corpus directories",
		Long: `Extracts, chunks and embeds every document under the configured corpus
directory of each namespace (RAGBOT_CORPUS_DIRS), then atomically replaces
that namespace's index.

With --every the rebuild repeats on the given interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			noMigrate, _ := cmd.Flags().GetBool("no-migrate")
			d, err := newDeps(ctx, cfg, log, depsOptions{migrate: !noMigrate})
			if err != nil {
				return err
			}
			defer d.Close()

			corpus, err := d.corpus()
			if err != nil {
				return err
			}
			if ns := namespace.Namespace(); ns != "" {
				root, ok := corpus[ns]
				if !ok {
					return fmt.Errorf("no corpus directory configured for %s", ns)
				}
				corpus = map[domain.Namespace]string{ns: root}
			}

			job := jobs.NewIngestJob(d.indexBuilder(), corpus, log)

			every, _ := cmd.Flags().GetDuration("every")
			if every > 0 {
				worker := jobs.NewWorker(job, every, jobs.WithImmediateRun(), jobs.WithLogger(log))
				worker.Start(ctx)
				return nil
			}

			results, err := job.RunOnce(ctx)
			printBuildResults(cmd.OutOrStdout(), results)
			return err
		},
	}

	cmd.Flags().Var(namespace, "namespace", "Only rebuild this namespace (nec|wattmonk)")
	cmd.Flags().Duration("every", 0, "Repeat the rebuild on this interval")
	cmd.Flags().Bool("no-migrate", false, "Skip database migrations for the pgvector backend")

	return cmd
}

func printBuildResults(out io.Writer, results []service.BuildResult) {
	for _, r := range results {
		fmt.Fprintf(out, "%s: files=%d chunks=%d\n", r.Namespace, r.Files, r.Chunks)
	}
}

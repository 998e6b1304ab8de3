package admin

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/ragbot/internal/cli"
	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/service"
)

// SearchCmd queries a local index without starting the server.
func SearchCmd() *cobra.Command {
	var (
		namespace = cli.NewNamespaceValue(domain.NamespaceNEC)
		topK      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an index directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			d, err := newDeps(cmd.Context(), cfg, log, depsOptions{})
			if err != nil {
				return err
			}
			defer d.Close()

			hits, err := service.NewRetriever(d.embedder, d.index).Search(cmd.Context(), args[0], namespace.Namespace(), topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for i, h := range hits {
				fmt.Fprintf(out, "%d. %s  score=%.3f\n", i+1, h.Source, h.Score)
				fmt.Fprintf(out, "   %s\n", strings.ReplaceAll(truncate(h.Text, 200), "\n", " "))
			}
			return nil
		},
	}

	cmd.Flags().VarP(namespace, "namespace", "n", "Namespace to search (nec|wattmonk)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", service.DefaultTopK, "Maximum number of results")

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/ragbot/internal/cli"
	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/spf13/cobra"
)

// SearchRequest mirrors the /search request body.
type SearchRequest struct {
	Query     string `json:"query"`
	Namespace string `json:"namespace"`
	TopK      int    `json:"top_k,omitempty"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		namespace = cli.NewNamespaceValue(domain.NamespaceNEC)
		topK      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a namespace index",
		Long:  "Runs retrieval only against one namespace and prints the matching chunks.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			c := NewAPIClientWithCmd(cmd)

			resp, err := c.Post(cmd.Context(), "/search", SearchRequest{
				Query:     args[0],
				Namespace: namespace.String(),
				TopK:      topK,
			})
			if err != nil {
				return err
			}

			var sources []domain.Source
			if err := json.Unmarshal(resp.Data, &sources); err != nil {
				return fmt.Errorf("failed to parse search response: %w", err)
			}

			if outputJSON {
				return printJSON(cmd.OutOrStdout(), sources)
			}
			printSources(cmd.OutOrStdout(), sources)
			return nil
		},
	}

	cmd.Flags().VarP(namespace, "namespace", "n", "Namespace to search (nec|wattmonk)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Maximum number of results")

	return cmd
}

// NamespacesCmd creates the namespaces command.
func NamespacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "List indexed namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			c := NewAPIClientWithCmd(cmd)

			resp, err := c.Get(cmd.Context(), "/namespaces")
			if err != nil {
				return err
			}

			var stats []domain.IndexStats
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("failed to parse namespaces response: %w", err)
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			for _, st := range stats {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s chunks=%d\n", st.Namespace, st.Chunks)
			}
			return nil
		},
	}
}

func printSources(out io.Writer, sources []domain.Source) {
	if len(sources) == 0 {
		fmt.Fprintln(out, "No results.")
		return
	}
	for i, s := range sources {
		fmt.Fprintf(out, "%d. %s  score=%.3f  id=%s\n", i+1, s.Source, s.Score, s.ChunkID)
		fmt.Fprintf(out, "   %s\n", strings.ReplaceAll(s.Snippet, "\n", " "))
	}
}

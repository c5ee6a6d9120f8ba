package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fathom-ai/fathom-go/internal/logging"
)

// NewSearchCmd constructs the `fathom search` command, which runs one query
// through the full retrieval pipeline and prints the results.
func NewSearchCmd() *cobra.Command {
	var limit int
	var showParents bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the ingested documents",
		Long: `Run a query through the hybrid retrieval pipeline.

The query is optionally expanded by the configured LLM (keyword variants
plus a hypothetical answer for dense retrieval), retrieved from the BM25
and vector indexes concurrently, fused with Reciprocal Rank Fusion, and
re-scored by the cross-encoder when one is configured. Every optional
backend degrades gracefully: with nothing but the SQLite store available
the command still answers from the lexical index.

Examples:
  fathom search "how do I reduce replication lag"
  fathom search --json "rotation policy for service credentials"
  fathom search -n 3 --parents "quarterly planning schedule"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			comps, err := buildSearchComponents(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer comps.close()

			query := strings.Join(args, " ")
			resp, err := comps.pipeline.Search(ctx, query)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp) //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}

			if len(resp.Results) == 0 {
				fmt.Println("no results")
				return nil
			}

			shown := resp.Results
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			for _, res := range shown {
				fmt.Printf("%2d. [%.4f] %s\n", res.FinalRank, res.Score, singleLine(res.Text))
				if showParents && res.ParentContext != "" {
					fmt.Printf("    context: %s\n", singleLine(res.ParentContext))
				}
			}
			fmt.Printf("\n%d result(s) in %dms (lexical %d, dense %d, fused %d)\n",
				resp.Stats.ResultCount, resp.Stats.TotalMS,
				resp.Stats.LexicalCount, resp.Stats.DenseCount, resp.Stats.FusedCount)
			if resp.Stats.ExpansionDegraded {
				fmt.Println("note: query expansion degraded — raw query only")
			}
			if resp.Stats.RerankDegraded {
				fmt.Println("note: cross-encoder degraded — fusion ordering used")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results to print")
	cmd.Flags().BoolVar(&showParents, "parents", false, "Print the surrounding parent context for each result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")

	return cmd
}

// singleLine collapses whitespace so each result renders on one line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docpipe/docpipe/internal/query"
	"github.com/docpipe/docpipe/internal/retriever"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Search the knowledge base",
	Long:  `Processes a natural-language question and retrieves the best-matching chunks with their source attribution.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQueryCmd,
}

func init() {
	queryCmd.Flags().Int("limit", 0, "maximum number of results (defaults to config)")
	queryCmd.Flags().String("project", "", "restrict to one project")
	queryCmd.Flags().String("category", "", "restrict to one category")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	p, err := openPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	project, _ := cmd.Flags().GetString("project")
	category, _ := cmd.Flags().GetString("category")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	processed, err := p.stages.Processor.Process(args[0], query.Metadata{
		Project:  project,
		Category: category,
	})
	if err != nil {
		return err
	}

	params := retriever.FromQuery(processed)
	if limit > 0 {
		params.MaxResults = limit
	}

	results, err := p.stages.Retriever.Retrieve(context.Background(), processed, params)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Query classified as %s", processed.Classification)
	if len(processed.Intents) > 0 {
		fmt.Printf(" (intents: %v)", processed.Intents)
	}
	fmt.Println()
	for _, r := range results {
		fmt.Printf("\n%2d. [%.3f] %s (seq %d)\n", r.Rank, r.Score, r.Title, r.Seq)
		fmt.Printf("    %s\n", r.Content)
	}
	return nil
}

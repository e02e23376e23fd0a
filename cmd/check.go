package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docpipe/docpipe/internal/dedup"
	"github.com/docpipe/docpipe/internal/document"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check a document for duplicates before ingesting",
	Long: `Compares a document against the stored knowledge base and reports
similar assets with their classification. Advisory only: nothing is
blocked or stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Float64("threshold", 0, "combined-score threshold (defaults to config)")
	checkCmd.Flags().String("project", "", "restrict comparison to one project")
	checkCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	text, err := document.DecodeText(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	threshold, _ := cmd.Flags().GetFloat64("threshold")
	if threshold == 0 {
		threshold = cfg.Dedup.Threshold
	}
	project, _ := cmd.Flags().GetString("project")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	var scope *dedup.Scope
	if project != "" {
		scope = &dedup.Scope{Project: project}
	}

	candidates, err := p.stages.Detector.Check(context.Background(), text, dedup.Metadata{
		Title:        filepath.Base(args[0]),
		DocumentHash: document.HashBytes(data),
	}, threshold, scope)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(candidates)
	}

	if len(candidates) == 0 {
		fmt.Println("No similar documents found.")
		return nil
	}
	fmt.Printf("Found %d similar asset(s):\n", len(candidates))
	for _, c := range candidates {
		fmt.Printf("  %-20s %.3f  %s (%s)\n", c.Classification, c.CombinedScore, c.Title, c.AssetID)
	}
	return nil
}

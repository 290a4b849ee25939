package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/output"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/searchmetrics"
)

func newEvaluateCmd() *cobra.Command {
	var judgmentsPath string
	var k int

	cmd := &cobra.Command{
		Use:   "evaluate <query>",
		Short: "Compute nDCG/Recall/Precision/MRR@k for a query against relevance judgments",
		Long: `Runs the query through the search pipeline and scores the ranked results
against a judgments file (a JSON object of resource id -> relevance grade
in [0,3]), implementing §4.4's four evaluation metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args[0], judgmentsPath, k)
		},
	}

	cmd.Flags().StringVar(&judgmentsPath, "judgments", "", "path to a JSON {id: grade} judgments file (required)")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "cutoff rank for all four metrics")
	_ = cmd.MarkFlagRequired("judgments")

	return cmd
}

func runEvaluate(cmd *cobra.Command, query, judgmentsPath string, k int) error {
	out := output.New(cmd.OutOrStdout())

	data, err := os.ReadFile(judgmentsPath)
	if err != nil {
		return fmt.Errorf("reading judgments file: %w", err)
	}
	var judgments searchmetrics.Judgments
	if err := json.Unmarshal(data, &judgments); err != nil {
		return fmt.Errorf("parsing judgments file: %w", err)
	}

	metrics, err := current.core.Evaluate(cmd.Context(), query, judgments, k)
	if err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}

	out.Statusf("", "nDCG@%d:      %.4f", k, metrics.NDCG)
	out.Statusf("", "Recall@%d:    %.4f", k, metrics.Recall)
	out.Statusf("", "Precision@%d: %.4f", k, metrics.Precision)
	out.Statusf("", "MRR@%d:       %.4f", k, metrics.MRR)
	return nil
}

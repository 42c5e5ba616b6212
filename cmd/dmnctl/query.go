package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/processgpt/dmnrules/internal/tool"
	"github.com/processgpt/dmnrules/rules"
)

var queryFlags struct {
	facts  string
	format string
}

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Answer a question against an owner's decision tables",
	Long: `Load the owner's decision tables, select the relevant table for the query and
evaluate it. Inputs are read from --facts first, then from the query text.

Examples:
  dmnctl query --tenant acme --owner alice "creditScore 720 income 50000"
  dmnctl query --tenant acme --owner alice --facts '{"creditScore": 720}' "loan risk"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryFlags.facts, "facts", "", "JSON object of known facts")
	queryCmd.Flags().StringVar(&queryFlags.format, "format", "text", "output format: text, json")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var facts map[string]any
	if queryFlags.facts != "" {
		if err := json.Unmarshal([]byte(queryFlags.facts), &facts); err != nil {
			return fmt.Errorf("--facts must be a JSON object: %w", err)
		}
	}

	manager, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := manager.RunQuery(ctx, owner, tenant, rules.Query{Text: strings.Join(args, " "), Facts: facts})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if queryFlags.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "outcome: %s\n", result.Outcome)
	if result.Applied() {
		fmt.Fprintln(out, tool.FormatEvaluation(result.Evaluation))
	}
	for _, line := range result.Explanation {
		fmt.Fprintf(out, "  %s\n", line)
	}
	return nil
}

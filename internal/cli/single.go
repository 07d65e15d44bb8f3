package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"thermopipe/internal/pipeline"
	"thermopipe/internal/toolexec"
)

var singleNotation bool

var singleCmd = &cobra.Command{
	Use:   "single <identifier>",
	Short: "Run the pipeline for one molecule",
	Long: `Process a single molecule through the full pipeline: structure
retrieval, format conversion, conformer search, quantum calculation and
storage. The identifier is a compound name by default; pass --smiles to
supply structural notation instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tools := toolexec.NewToolchain(cfg, logger)
		orch := pipeline.NewOrchestrator(tools, openStore(), cfg, logger)

		req := pipeline.Request{Identifier: args[0], Notation: singleNotation}
		outcome := orch.Run(cmd.Context(), req)

		switch outcome.Kind {
		case pipeline.OutcomePersisted:
			fmt.Printf("%s %s\n", okStyle().Render("✓ persisted"), outcome.Identifier)
			fmt.Printf("  key:        %s\n", outcome.Key)
			if outcome.Row != nil {
				fmt.Printf("  pm7_energy: %g kcal/mol\n", outcome.Row.PM7Energy)
				fmt.Printf("  formula:    %s (%d heavy atoms)\n", outcome.Row.Formula, outcome.Row.HeavyAtoms)
			}
			return nil
		case pipeline.OutcomeSkipped:
			fmt.Printf("%s %s (key %s already stored)\n",
				hintStyle().Render("– skipped"), outcome.Identifier, outcome.Key)
			return nil
		default:
			fmt.Printf("%s %s\n", errStyle().Render("✗ failed"), outcome.Identifier)
			fmt.Printf("  stage: %s\n", outcome.Stage)
			fmt.Printf("  kind:  %s\n", outcome.FailureKind)
			fmt.Printf("  error: %s\n", outcome.Message)
			return fmt.Errorf("pipeline failed at %s", outcome.Stage)
		}
	},
}

func init() {
	singleCmd.Flags().BoolVar(&singleNotation, "smiles", false, "treat the identifier as structural notation")
}

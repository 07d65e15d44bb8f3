package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"thermopipe/internal/analysis"
)

var reportMissing int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show coverage of the reference dataset",
	Long: `Compare the computed-results database against the configured
reference database and report how many reference molecules have been
computed so far.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.ReferencePath == "" {
			return fmt.Errorf("no reference database configured (database.reference_db_path)")
		}

		cov, err := analysis.CoverageReport(cfg.Database.ReferencePath, openStore(), reportMissing)
		if err != nil {
			return err
		}

		if !cov.ReferenceExists {
			fmt.Printf("%s reference database %s does not exist\n",
				errStyle().Render("✗"), cfg.Database.ReferencePath)
		}
		fmt.Printf("Reference molecules: %d\n", cov.ReferenceTotal)
		fmt.Printf("Computed molecules:  %d (%d outside the reference set)\n", cov.ComputedTotal, cov.Extra)
		fmt.Printf("Coverage:            %d/%d (%.1f%%)\n", cov.Common, cov.ReferenceTotal, cov.Percent)

		if reportMissing > 0 && cov.MissingTotal > 0 {
			fmt.Printf("\nMissing (%d of %d):\n", len(cov.MissingKeys), cov.MissingTotal)
			for _, key := range cov.MissingKeys {
				fmt.Printf("  %s\n", key)
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVarP(&reportMissing, "missing", "m", 0, "list up to N missing reference keys")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"thermopipe/internal/toolexec"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the configured external programs are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		tools := toolexec.NewToolchain(cfg, logger)

		failures := 0
		for _, res := range tools.Check(cmd.Context()) {
			if res.Err != nil {
				failures++
				fmt.Printf("%s %-16s %s: %v\n", errStyle().Render("✗"), res.Name, res.Tool, res.Err)
				fmt.Printf("  %s\n", hintStyle().Render("install it or fix the executables section of the config"))
				continue
			}
			fmt.Printf("%s %-16s %s\n", okStyle().Render("✓"), res.Name, res.Tool)
		}

		if failures > 0 {
			return fmt.Errorf("%d executable(s) unavailable", failures)
		}
		return nil
	},
}

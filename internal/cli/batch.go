package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"thermopipe/internal/pipeline"
)

var (
	batchFile     string
	batchNotation bool
	batchWorkers  int
	batchPlain    bool
	batchJSON     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [identifiers...]",
	Short: "Run the pipeline for many molecules",
	Long: `Process a collection of molecules. Identifiers come from the
arguments and/or --file (one per line, blank lines and # comments are
skipped). One molecule's failure never aborts the batch; the final
report lists every persisted, skipped and failed entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		requests, err := gatherRequests(args)
		if err != nil {
			return err
		}
		if len(requests) == 0 {
			return fmt.Errorf("no identifiers given: pass arguments or --file")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		runner := newBatchRunner(batchWorkers)

		var report *pipeline.Report
		if !batchPlain && !batchJSON && term.IsTerminal(int(os.Stdout.Fd())) {
			report, err = runBatchWithProgress(ctx, runner, requests)
			if err != nil {
				return err
			}
		} else {
			report = runner.Run(ctx, requests)
		}

		if batchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printReport(report)
		return nil
	},
}

// gatherRequests merges command-line identifiers with the identifier file.
func gatherRequests(args []string) ([]pipeline.Request, error) {
	var requests []pipeline.Request
	for _, id := range args {
		requests = append(requests, pipeline.Request{Identifier: id, Notation: batchNotation})
	}

	if batchFile == "" {
		return requests, nil
	}
	f, err := os.Open(batchFile)
	if err != nil {
		return nil, fmt.Errorf("open identifier file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		requests = append(requests, pipeline.Request{Identifier: line, Notation: batchNotation})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read identifier file: %w", err)
	}
	return requests, nil
}

// printReport renders the human-readable batch summary.
func printReport(report *pipeline.Report) {
	p, s, f := report.Counts()
	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(timeRound)

	fmt.Printf("\nBatch %s finished in %s\n", report.RunID, elapsed)
	fmt.Printf("  %s %d persisted\n", okStyle().Render("✓"), p)
	fmt.Printf("  %s %d skipped\n", hintStyle().Render("–"), s)
	fmt.Printf("  %s %d failed\n", errStyle().Render("✗"), f)

	for _, entry := range report.Failed {
		fmt.Printf("    %s: %s at %s: %s\n",
			entry.Identifier, entry.Kind, entry.Stage, firstLine(entry.Message))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "file with one identifier per line")
	batchCmd.Flags().BoolVar(&batchNotation, "smiles", false, "treat identifiers as structural notation")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "concurrent molecules (default from config)")
	batchCmd.Flags().BoolVar(&batchPlain, "plain", false, "disable the live progress display")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print the report as JSON")
}

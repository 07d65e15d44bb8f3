package toolexec

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
)

// HeatOfFormationPattern matches the labeled PM7 result line in a MOPAC
// output file, e.g.
//
//	FINAL HEAT OF FORMATION =        -57.79968 KCAL/MOL = ...
var HeatOfFormationPattern = regexp.MustCompile(
	`(?i)FINAL HEAT OF FORMATION\s*=\s*([-+]?\d+\.?\d*)\s*KCAL/MOL`)

// FirstLabeledValue scans the file line by line and returns the value from
// the first line matching the pattern. The pattern's first capture group
// must be the numeric value. A missing match is an output-parse failure
// attributed to the named tool.
func FirstLabeledValue(path string, pattern *regexp.Regexp, tool string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &Error{
			Kind: KindOutputParse,
			Tool: tool,
			Err:  fmt.Errorf("open output file: %w", err),
		}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Quantum output lines can be long; give the scanner room.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := pattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, &Error{
				Kind: KindOutputParse,
				Tool: tool,
				Err:  fmt.Errorf("labeled value %q is not numeric: %w", m[1], err),
			}
		}
		return v, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, &Error{Kind: KindOutputParse, Tool: tool, Err: fmt.Errorf("read output file: %w", err)}
	}
	return 0, &Error{
		Kind: KindOutputParse,
		Tool: tool,
		Err:  fmt.Errorf("pattern %q not found in %s", pattern, path),
	}
}

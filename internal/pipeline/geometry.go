package pipeline

import (
	"fmt"
	"sort"
	"strings"

	chem "github.com/rmera/gochem"
)

// conformerMetadata summarizes the best-conformer geometry: number of
// non-hydrogen atoms and the Hill-order molecular formula.
func conformerMetadata(xyzPath string) (heavy int, formula string, err error) {
	mol, err := chem.XYZFileRead(xyzPath)
	if err != nil {
		return 0, "", fmt.Errorf("read conformer geometry %s: %w", xyzPath, err)
	}

	counts := make(map[string]int)
	for i := 0; i < mol.Len(); i++ {
		sym := mol.Atom(i).Symbol
		counts[sym]++
		if sym != "H" {
			heavy++
		}
	}
	return heavy, hillFormula(counts), nil
}

// hillFormula renders element counts in Hill order: carbon first, then
// hydrogen, then the rest alphabetically.
func hillFormula(counts map[string]int) string {
	var order []string
	if counts["C"] > 0 {
		order = append(order, "C")
		if counts["H"] > 0 {
			order = append(order, "H")
		}
	}
	var rest []string
	for sym := range counts {
		if sym == "C" && counts["C"] > 0 {
			continue
		}
		if sym == "H" && counts["C"] > 0 {
			continue
		}
		rest = append(rest, sym)
	}
	sort.Strings(rest)
	order = append(order, rest...)

	var b strings.Builder
	for _, sym := range order {
		b.WriteString(sym)
		if counts[sym] > 1 {
			fmt.Fprintf(&b, "%d", counts[sym])
		}
	}
	return b.String()
}

// Package analysis compares the computed-results store against a
// reference dataset to report batch campaign coverage.
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"thermopipe/internal/store"
)

// Coverage summarizes how much of a reference set has been computed.
type Coverage struct {
	ReferenceExists bool
	ReferenceTotal  int
	ComputedTotal   int
	// Common counts keys present in both sets.
	Common int
	// MissingKeys are reference keys not yet computed, sorted, truncated
	// to the requested limit. MissingTotal is the untruncated count.
	MissingKeys  []string
	MissingTotal int
	// Extra counts computed keys absent from the reference set.
	Extra int
	// Percent is Common/ReferenceTotal, 0 when the reference is empty.
	Percent float64
}

// CoverageReport reads the reference file's key column and intersects it
// with the computed store. The reference file may carry any schema as
// long as it has a "smiles" column; it is never written to.
func CoverageReport(referencePath string, computed *store.Store, missingLimit int) (*Coverage, error) {
	cov := &Coverage{}

	refKeys, exists, err := readKeyColumn(referencePath)
	if err != nil {
		return nil, fmt.Errorf("reference database: %w", err)
	}
	cov.ReferenceExists = exists
	cov.ReferenceTotal = len(refKeys)

	computedKeys, err := computed.Keys()
	if err != nil {
		return nil, fmt.Errorf("computed database: %w", err)
	}
	cov.ComputedTotal = len(computedKeys)

	var missing []string
	for key := range refKeys {
		if _, ok := computedKeys[key]; ok {
			cov.Common++
		} else {
			missing = append(missing, key)
		}
	}
	for key := range computedKeys {
		if _, ok := refKeys[key]; !ok {
			cov.Extra++
		}
	}

	sort.Strings(missing)
	cov.MissingTotal = len(missing)
	if missingLimit > 0 && len(missing) > missingLimit {
		missing = missing[:missingLimit]
	}
	cov.MissingKeys = missing

	if cov.ReferenceTotal > 0 {
		cov.Percent = float64(cov.Common) / float64(cov.ReferenceTotal) * 100
	}
	return cov, nil
}

// readKeyColumn collects the values of the "smiles" column from an
// arbitrary CSV file. A missing file is an empty, non-existent set rather
// than an error: reference databases arrive separately from this tool.
func readKeyColumn(path string) (map[string]struct{}, bool, error) {
	keys := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return keys, true, nil
		}
		return nil, true, fmt.Errorf("read header: %w", err)
	}

	col := -1
	for i, name := range header {
		if name == "smiles" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, true, fmt.Errorf("no smiles column in %s", path)
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, true, fmt.Errorf("read row: %w", err)
		}
		if col < len(record) && record[col] != "" {
			keys[record[col]] = struct{}{}
		}
	}
	return keys, true, nil
}

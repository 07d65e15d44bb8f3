package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConformerMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crest_best.xyz")
	if err := os.WriteFile(path, []byte(waterXYZ), 0o644); err != nil {
		t.Fatal(err)
	}

	heavy, formula, err := conformerMetadata(path)
	if err != nil {
		t.Fatalf("conformerMetadata failed: %v", err)
	}
	if heavy != 1 {
		t.Errorf("heavy = %d, want 1", heavy)
	}
	if formula != "H2O" {
		t.Errorf("formula = %q, want H2O", formula)
	}
}

func TestHillFormula(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		want   string
	}{
		{"water", map[string]int{"O": 1, "H": 2}, "H2O"},
		{"ethanol", map[string]int{"C": 2, "H": 6, "O": 1}, "C2H6O"},
		{"carbon first then hydrogen", map[string]int{"H": 4, "C": 1}, "CH4"},
		{"no carbon sorts alphabetically", map[string]int{"O": 1, "N": 1, "H": 3}, "H3NO"},
		{"chloroform", map[string]int{"C": 1, "H": 1, "Cl": 3}, "CHCl3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hillFormula(tt.counts); got != tt.want {
				t.Errorf("hillFormula = %q, want %q", got, tt.want)
			}
		})
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"thermopipe/internal/config"
	"thermopipe/internal/molecule"
	"thermopipe/internal/store"
	"thermopipe/internal/toolexec"
)

const waterXYZ = `3
water
O    0.000000    0.000000    0.117300
H    0.000000    0.757200   -0.469200
H    0.000000   -0.757200   -0.469200
`

// fakeTools satisfies Tools without shelling out. Structure files carry
// the identifier as content so CanonicalKey can look the key up the same
// way the real canonicalizer derives it from the geometry. fail selects
// one method to error out.
type fakeTools struct {
	keys map[string]string
	fail string
	xyz  string
}

func newFakeTools() *fakeTools {
	return &fakeTools{
		keys: map[string]string{
			"water":               "O",
			"dihydrogen monoxide": "O",
			"ethanol":             "CCO",
			"CCO":                 "CCO",
			"[H]O[H]":             "O",
		},
		xyz: waterXYZ,
	}
}

func (f *fakeTools) toolErr(tool string) error {
	return &toolexec.Error{
		Kind: toolexec.KindToolNonZeroExit,
		Tool: tool,
		Err:  errors.New("exit status 1"),
	}
}

func (f *fakeTools) writeStructure(content, dir string) (string, error) {
	path := filepath.Join(dir, "structure.sdf")
	return path, os.WriteFile(path, []byte(content), 0o644)
}

func (f *fakeTools) FetchStructure(_ context.Context, identifier, dir string) (string, error) {
	if _, ok := f.keys[identifier]; !ok || f.fail == "fetch" {
		return "", f.toolErr("pubchem-sdf")
	}
	return f.writeStructure(identifier, dir)
}

func (f *fakeTools) BuildStructure(_ context.Context, notation, dir string) (string, error) {
	if _, ok := f.keys[notation]; !ok || f.fail == "build" {
		return "", f.toolErr("obabel")
	}
	return f.writeStructure(notation, dir)
}

func (f *fakeTools) CanonicalKey(_ context.Context, structurePath string) (string, error) {
	if f.fail == "canonical" {
		return "", &toolexec.Error{
			Kind: toolexec.KindOutputParse,
			Tool: "obabel",
			Err:  errors.New("no canonical notation"),
		}
	}
	content, err := os.ReadFile(structurePath)
	if err != nil {
		return "", err
	}
	key, ok := f.keys[string(content)]
	if !ok {
		return "", fmt.Errorf("no key for %q", content)
	}
	return key, nil
}

func (f *fakeTools) Convert(_ context.Context, inputPath, format string) (string, error) {
	if f.fail == "convert" {
		return "", f.toolErr("obabel")
	}
	path := inputPath[:len(inputPath)-len(filepath.Ext(inputPath))] + "." + format
	return path, os.WriteFile(path, []byte(f.xyz), 0o644)
}

func (f *fakeTools) SearchConformers(_ context.Context, _, dir string) (string, error) {
	if f.fail == "crest" {
		return "", f.toolErr("crest")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "crest_best.xyz")
	return path, os.WriteFile(path, []byte(f.xyz), 0o644)
}

func (f *fakeTools) RunQuantum(_ context.Context, _ string) (float64, error) {
	if f.fail == "mopac" {
		return 0, f.toolErr("mopac")
	}
	return -57.79968, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOrchestrator(t *testing.T, tools Tools) (*Orchestrator, *store.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.RepositoryBasePath = t.TempDir()
	st := store.Open(filepath.Join(t.TempDir(), "thermo_pm7.csv"), testLogger())
	return NewOrchestrator(tools, st, cfg, testLogger()), st
}

func TestRunPersistsByName(t *testing.T) {
	orch, st := testOrchestrator(t, newFakeTools())

	outcome := orch.Run(context.Background(), Request{Identifier: "water"})
	if outcome.Kind != OutcomePersisted {
		t.Fatalf("kind = %s, want Persisted (message: %s)", outcome.Kind, outcome.Message)
	}
	if outcome.Key != "O" {
		t.Errorf("key = %q, want %q", outcome.Key, "O")
	}
	if outcome.Row == nil {
		t.Fatal("persisted outcome without row")
	}
	if outcome.Row.PM7Energy != -57.79968 {
		t.Errorf("pm7_energy = %v, want -57.79968", outcome.Row.PM7Energy)
	}
	if outcome.Row.HeavyAtoms != 1 {
		t.Errorf("heavy_atoms = %d, want 1", outcome.Row.HeavyAtoms)
	}
	if outcome.Row.Formula != "H2O" {
		t.Errorf("formula = %q, want H2O", outcome.Row.Formula)
	}

	rows, err := st.Rows()
	if err != nil {
		t.Fatalf("read store: %v", err)
	}
	if len(rows) != 1 || rows[0].Smiles != "O" {
		t.Errorf("stored rows = %+v, want one row keyed O", rows)
	}
}

func TestRunByNotation(t *testing.T) {
	orch, _ := testOrchestrator(t, newFakeTools())

	outcome := orch.Run(context.Background(), Request{Identifier: "CCO", Notation: true})
	if outcome.Kind != OutcomePersisted {
		t.Fatalf("kind = %s, want Persisted (message: %s)", outcome.Kind, outcome.Message)
	}
	if outcome.Key != "CCO" {
		t.Errorf("key = %q, want %q", outcome.Key, "CCO")
	}
}

func TestRunSkipsDuplicateAcrossEntryPaths(t *testing.T) {
	orch, _ := testOrchestrator(t, newFakeTools())
	ctx := context.Background()

	first := orch.Run(ctx, Request{Identifier: "water"})
	if first.Kind != OutcomePersisted {
		t.Fatalf("first run: kind = %s, want Persisted", first.Kind)
	}

	// Same substance by notation canonicalizes to the same key.
	second := orch.Run(ctx, Request{Identifier: "[H]O[H]", Notation: true})
	if second.Kind != OutcomeSkipped {
		t.Fatalf("second run: kind = %s, want Skipped", second.Kind)
	}
	if second.Key != "O" {
		t.Errorf("second run: key = %q, want %q", second.Key, "O")
	}
}

func TestRunInvalidIdentifier(t *testing.T) {
	orch, _ := testOrchestrator(t, newFakeTools())

	outcome := orch.Run(context.Background(), Request{Identifier: "   "})
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("kind = %s, want Failed", outcome.Kind)
	}
	if outcome.Stage != molecule.StageNew {
		t.Errorf("stage = %s, want New", outcome.Stage)
	}
	if outcome.FailureKind != "InvalidIdentifier" {
		t.Errorf("failure kind = %q, want InvalidIdentifier", outcome.FailureKind)
	}
}

func TestRunStageFailures(t *testing.T) {
	tests := []struct {
		fail      string
		wantStage molecule.Stage
		wantKind  string
	}{
		{"fetch", molecule.StageStructureRetrieved, "ToolNonZeroExit"},
		{"canonical", molecule.StageStructureRetrieved, "OutputParseError"},
		{"convert", molecule.StageConverted, "ToolNonZeroExit"},
		{"crest", molecule.StageConformerSearched, "ToolNonZeroExit"},
		{"mopac", molecule.StageCalculated, "ToolNonZeroExit"},
	}

	for _, tt := range tests {
		t.Run(tt.fail, func(t *testing.T) {
			tools := newFakeTools()
			tools.fail = tt.fail
			orch, st := testOrchestrator(t, tools)

			outcome := orch.Run(context.Background(), Request{Identifier: "water"})
			if outcome.Kind != OutcomeFailed {
				t.Fatalf("kind = %s, want Failed", outcome.Kind)
			}
			if outcome.Stage != tt.wantStage {
				t.Errorf("stage = %s, want %s", outcome.Stage, tt.wantStage)
			}
			if outcome.FailureKind != tt.wantKind {
				t.Errorf("failure kind = %q, want %q", outcome.FailureKind, tt.wantKind)
			}

			rows, err := st.Rows()
			if err != nil {
				t.Fatalf("read store: %v", err)
			}
			if len(rows) != 0 {
				t.Errorf("failed run stored %d rows, want none", len(rows))
			}
		})
	}
}

func TestRunWorkDirFailure(t *testing.T) {
	cfg := config.Default()
	// A regular file where the repository root should be makes every
	// working-directory creation fail.
	blocked := filepath.Join(t.TempDir(), "repository")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.RepositoryBasePath = blocked

	st := store.Open(filepath.Join(t.TempDir(), "thermo_pm7.csv"), testLogger())
	orch := NewOrchestrator(newFakeTools(), st, cfg, testLogger())

	outcome := orch.Run(context.Background(), Request{Identifier: "water"})
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("kind = %s, want Failed", outcome.Kind)
	}
	if outcome.FailureKind != "WorkDirError" {
		t.Errorf("failure kind = %q, want WorkDirError", outcome.FailureKind)
	}
	if outcome.Stage != molecule.StageStructureRetrieved {
		t.Errorf("stage = %s, want StructureRetrieved", outcome.Stage)
	}
}

func TestRunBadConformerGeometry(t *testing.T) {
	tools := newFakeTools()
	tools.xyz = "this is not a geometry file\n"
	orch, _ := testOrchestrator(t, tools)

	outcome := orch.Run(context.Background(), Request{Identifier: "water"})
	if outcome.Kind != OutcomeFailed {
		t.Fatalf("kind = %s, want Failed", outcome.Kind)
	}
	if outcome.Stage != molecule.StageConformerSearched {
		t.Errorf("stage = %s, want ConformerSearched", outcome.Stage)
	}
	if outcome.FailureKind != "OutputParseError" {
		t.Errorf("failure kind = %q, want OutputParseError", outcome.FailureKind)
	}
}

package toolexec

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"thermopipe/internal/config"
)

// Toolchain implements the four external collaborators (structure fetch,
// format conversion, conformer search, quantum calculation) on top of the
// Runner. Executable names, keyword strings and timeouts come verbatim
// from configuration.
type Toolchain struct {
	run *Runner
	exe config.Executables
	kw  config.Keywords
	t   config.Timeouts
	log *slog.Logger
}

func NewToolchain(cfg config.Config, log *slog.Logger) *Toolchain {
	if log == nil {
		log = slog.Default()
	}
	return &Toolchain{
		run: NewRunner(log),
		exe: cfg.Executables,
		kw:  cfg.Keywords,
		t:   cfg.Timeouts,
		log: log,
	}
}

// FetchStructure asks the structure-database client for a 3D structure of
// the named compound and returns the path of the SDF it wrote.
func (tc *Toolchain) FetchStructure(ctx context.Context, identifier, dir string) (string, error) {
	out := filepath.Join(dir, "structure.sdf")
	return tc.run.RunExpectFile(ctx, Invocation{
		Tool:    tc.exe.Fetch,
		Args:    []string{identifier, out},
		Dir:     dir,
		Timeout: tc.t.FetchDuration(),
	}, out)
}

// BuildStructure generates a 3D structure file from a structural notation
// (SMILES) instead of fetching one by name.
func (tc *Toolchain) BuildStructure(ctx context.Context, notation, dir string) (string, error) {
	out := filepath.Join(dir, "structure.sdf")
	return tc.run.RunExpectFile(ctx, Invocation{
		Tool:    tc.exe.OpenBabel,
		Args:    []string{"-:" + notation, "-osdf", "-O", out, "--gen3d"},
		Dir:     dir,
		Timeout: tc.t.ConversionDuration(),
	}, out)
}

// CanonicalKey converts the structure file to canonical SMILES and returns
// the first token. Both retrieval paths funnel through this call, so
// chemically identical inputs always produce identical keys.
func (tc *Toolchain) CanonicalKey(ctx context.Context, structurePath string) (string, error) {
	out := replaceExt(structurePath, ".can")
	if _, err := tc.run.RunExpectFile(ctx, Invocation{
		Tool:    tc.exe.OpenBabel,
		Args:    []string{structurePath, "-ocan", "-O", out},
		Dir:     filepath.Dir(structurePath),
		Timeout: tc.t.ConversionDuration(),
	}, out); err != nil {
		return "", err
	}

	f, err := os.Open(out)
	if err != nil {
		return "", &Error{Kind: KindOutputParse, Tool: tc.exe.OpenBabel, Err: err}
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		// Canonical SMILES output format: "SMILES\tname".
		if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
			return fields[0], nil
		}
	}
	return "", &Error{
		Kind: KindOutputParse,
		Tool: tc.exe.OpenBabel,
		Err:  fmt.Errorf("no canonical notation in %s", out),
	}
}

// Convert translates a structure file into the target format, writing next
// to the input with the format's extension.
func (tc *Toolchain) Convert(ctx context.Context, inputPath, format string) (string, error) {
	out := replaceExt(inputPath, "."+strings.ToLower(format))
	return tc.run.RunExpectFile(ctx, Invocation{
		Tool:    tc.exe.OpenBabel,
		Args:    []string{inputPath, "-O", out},
		Dir:     filepath.Dir(inputPath),
		Timeout: tc.t.ConversionDuration(),
	}, out)
}

// SearchConformers runs the conformer search in its own subdirectory and
// returns the best-conformer file the engine leaves behind.
func (tc *Toolchain) SearchConformers(ctx context.Context, xyzPath, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Kind: KindUnknown, Tool: tc.exe.Crest, Err: err}
	}
	abs, err := filepath.Abs(xyzPath)
	if err != nil {
		return "", &Error{Kind: KindUnknown, Tool: tc.exe.Crest, Err: err}
	}
	args := append([]string{abs}, strings.Fields(tc.kw.Crest)...)
	return tc.run.RunExpectFile(ctx, Invocation{
		Tool:    tc.exe.Crest,
		Args:    args,
		Dir:     dir,
		Timeout: tc.t.CrestDuration(),
	}, filepath.Join(dir, "crest_best.xyz"))
}

// RunQuantum builds a MOPAC input from the XYZ geometry, runs the
// calculation and extracts the PM7 heat of formation (kcal/mol) from the
// first labeled line of the output.
func (tc *Toolchain) RunQuantum(ctx context.Context, xyzPath string) (float64, error) {
	mopPath, err := tc.writeMopacInput(xyzPath)
	if err != nil {
		return 0, err
	}

	outPath := replaceExt(mopPath, ".out")
	if _, err := tc.run.RunExpectFile(ctx, Invocation{
		Tool:    tc.exe.Mopac,
		Args:    []string{mopPath},
		Dir:     filepath.Dir(mopPath),
		Timeout: tc.t.MopacDuration(),
	}, outPath); err != nil {
		return 0, err
	}

	return FirstLabeledValue(outPath, HeatOfFormationPattern, tc.exe.Mopac)
}

// writeMopacInput turns an XYZ geometry into a .mop file: keyword line,
// title line, blank line, then one "symbol x y z" row per atom.
func (tc *Toolchain) writeMopacInput(xyzPath string) (string, error) {
	f, err := os.Open(xyzPath)
	if err != nil {
		return "", &Error{Kind: KindOutputParse, Tool: tc.exe.Mopac, Err: fmt.Errorf("read geometry: %w", err)}
	}
	defer f.Close()

	var coords []string
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if line <= 2 {
			// Atom count and comment lines.
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return "", &Error{
				Kind: KindOutputParse,
				Tool: tc.exe.Mopac,
				Err:  fmt.Errorf("malformed geometry line %d in %s", line, xyzPath),
			}
		}
		var xyz [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return "", &Error{
					Kind: KindOutputParse,
					Tool: tc.exe.Mopac,
					Err:  fmt.Errorf("bad coordinate on line %d of %s: %w", line, xyzPath, err),
				}
			}
			xyz[i] = v
		}
		coords = append(coords, fmt.Sprintf("%-2s %12.6f %12.6f %12.6f", fields[0], xyz[0], xyz[1], xyz[2]))
	}
	if err := scanner.Err(); err != nil {
		return "", &Error{Kind: KindOutputParse, Tool: tc.exe.Mopac, Err: err}
	}
	if len(coords) == 0 {
		return "", &Error{
			Kind: KindOutputParse,
			Tool: tc.exe.Mopac,
			Err:  fmt.Errorf("no atomic coordinates in %s", xyzPath),
		}
	}

	name := strings.TrimSuffix(filepath.Base(xyzPath), filepath.Ext(xyzPath))
	content := fmt.Sprintf("%s\n%s - thermopipe calculation\n\n%s\n",
		tc.kw.Mopac, name, strings.Join(coords, "\n"))

	mopPath := replaceExt(xyzPath, ".mop")
	if err := os.WriteFile(mopPath, []byte(content), 0o644); err != nil {
		return "", &Error{Kind: KindUnknown, Tool: tc.exe.Mopac, Err: err}
	}
	return mopPath, nil
}

// CheckResult is one executable availability probe.
type CheckResult struct {
	Name string
	Tool string
	Err  error
}

// Check probes every configured executable with a short call. Only a
// missing executable counts as a failure; several of these programs exit
// non-zero when called without real work.
func (tc *Toolchain) Check(ctx context.Context) []CheckResult {
	probes := []struct {
		name string
		tool string
		args []string
	}{
		{"format converter", tc.exe.OpenBabel, []string{"-V"}},
		{"conformer search", tc.exe.Crest, []string{"--version"}},
		{"quantum engine", tc.exe.Mopac, nil},
		{"structure fetch", tc.exe.Fetch, nil},
	}

	results := make([]CheckResult, 0, len(probes))
	for _, p := range probes {
		_, err := tc.run.Run(ctx, Invocation{
			Tool:    p.tool,
			Args:    p.args,
			Timeout: 10 * time.Second,
		})
		if err != nil && KindOf(err) != KindToolNotFound {
			err = nil
		}
		results = append(results, CheckResult{Name: p.name, Tool: p.tool, Err: err})
	}
	return results
}

func replaceExt(path, newExt string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + newExt
}

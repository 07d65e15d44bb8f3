package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	unsafeChars         = regexp.MustCompile(`[<>:"/\\|?*\s]`)
	multipleUnderscores = regexp.MustCompile(`_+`)
)

// sanitizeIdentifier turns a molecule identifier into a directory-safe
// name. SMILES notation in particular is full of filesystem-hostile
// characters.
func sanitizeIdentifier(identifier string) string {
	s := unsafeChars.ReplaceAllString(identifier, "_")
	s = multipleUnderscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	if s == "" {
		return "unknown_molecule"
	}
	return s
}

// prepareWorkDir creates a fresh per-run working directory under the
// repository base and returns its absolute path. The random suffix keeps
// the directory exclusive to one run: sanitizing can collapse distinct
// identifiers onto the same name, and the same identifier may be in
// flight twice across concurrent batches.
func prepareWorkDir(base, identifier string) (string, error) {
	name := fmt.Sprintf("%s-%s", sanitizeIdentifier(identifier), uuid.New().String()[:8])
	dir := filepath.Join(base, name)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve working directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create working directory %s: %w", abs, err)
	}
	return abs, nil
}

package toolexec

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies adapter failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindToolNotFound means the executable could not be located.
	KindToolNotFound
	// KindToolTimeout means the process exceeded its time bound and was killed.
	KindToolTimeout
	// KindToolNonZeroExit means the process ran and reported failure.
	KindToolNonZeroExit
	// KindOutputParse means the process succeeded but the expected output
	// file or labeled value was missing.
	KindOutputParse
)

func (k Kind) String() string {
	switch k {
	case KindToolNotFound:
		return "ToolNotFound"
	case KindToolTimeout:
		return "ToolTimeout"
	case KindToolNonZeroExit:
		return "ToolNonZeroExit"
	case KindOutputParse:
		return "OutputParseError"
	default:
		return "Unknown"
	}
}

// Error is the typed failure returned by the adapter. Captured output is
// attached so a failed batch entry can be diagnosed without re-running.
type Error struct {
	Kind   Kind
	Tool   string
	Err    error
	Stdout string
	Stderr string
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Tool, e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		fmt.Fprintf(&b, " [stderr: %s]", truncate(s, 500))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the adapter kind from an error chain.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

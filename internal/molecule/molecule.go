// Package molecule defines the record that tracks one molecule through
// the computation pipeline.
package molecule

import (
	"fmt"
	"strings"
)

// Stage is a position in the pipeline state machine.
type Stage int

const (
	StageNew Stage = iota
	StageStructureRetrieved
	StageConverted
	StageConformerSearched
	StageCalculated
	StagePersisted

	// StageFailed is terminal and reachable from any non-terminal stage.
	StageFailed
)

var stageNames = map[Stage]string{
	StageNew:                "New",
	StageStructureRetrieved: "StructureRetrieved",
	StageConverted:          "Converted",
	StageConformerSearched:  "ConformerSearched",
	StageCalculated:         "Calculated",
	StagePersisted:          "Persisted",
	StageFailed:             "Failed",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Terminal reports whether no further stages may execute.
func (s Stage) Terminal() bool {
	return s == StagePersisted || s == StageFailed
}

// Failure describes why a record left the pipeline early.
type Failure struct {
	// Kind is the error taxonomy name (ToolNonZeroExit, StoreError, ...).
	Kind string
	// Stage is the stage that was being established when the failure hit.
	Stage Stage
	// Message carries the underlying error text, including captured tool
	// output where available.
	Message string
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s at %s: %s", f.Kind, f.Stage, f.Message)
}

// Record is the evolving state of one molecule. It is created from a raw
// identifier, mutated only by the orchestrator as stages advance, and
// discarded once its outcome is reported.
type Record struct {
	// Identifier is the user-supplied name or structural notation.
	// Immutable once set.
	Identifier string

	// CanonicalKey is the canonical SMILES used for deduplication. Set
	// during structure retrieval and never changed afterwards.
	CanonicalKey string

	StructurePath string
	ConvertedPath string
	ConformerPath string

	// Properties maps property names to computed values (pm7_energy, ...).
	Properties map[string]float64

	Charge       int
	Multiplicity int
	HeavyAtoms   int
	Formula      string

	stage   Stage
	failure *Failure
}

// New creates a Record in StageNew.
func New(identifier string, charge, multiplicity int) (*Record, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("empty molecule identifier")
	}
	if multiplicity < 1 {
		return nil, fmt.Errorf("invalid spin multiplicity %d for %q", multiplicity, identifier)
	}
	return &Record{
		Identifier:   identifier,
		Properties:   make(map[string]float64),
		Charge:       charge,
		Multiplicity: multiplicity,
		stage:        StageNew,
	}, nil
}

// Stage returns the current pipeline position.
func (r *Record) Stage() Stage {
	return r.stage
}

// Failure returns the failure descriptor, or nil while the record is healthy.
func (r *Record) Failure() *Failure {
	return r.failure
}

// MustBeIn panics unless the record is in the given stage. Stage functions
// call it before doing any work: running a stage out of order is a defect
// in the orchestrator, not a runtime condition to recover from.
func (r *Record) MustBeIn(s Stage) {
	if r.stage != s {
		panic(fmt.Sprintf("state violation: %q is in stage %s, stage function requires %s",
			r.Identifier, r.stage, s))
	}
}

// Advance moves the record to the next stage. Only the single forward
// transition is legal; anything else panics.
func (r *Record) Advance(to Stage) {
	if r.stage.Terminal() || to != r.stage+1 || to == StageFailed {
		panic(fmt.Sprintf("state violation: illegal transition %s -> %s for %q",
			r.stage, to, r.Identifier))
	}
	r.stage = to
	if err := r.Validate(); err != nil {
		panic(fmt.Sprintf("state violation: %v", err))
	}
}

// Fail records the failure and moves the record to the terminal Failed
// stage. The failing stage is the one that was being established.
func (r *Record) Fail(kind string, attempted Stage, err error) {
	if r.stage.Terminal() {
		panic(fmt.Sprintf("state violation: Fail on terminal record %q (%s)", r.Identifier, r.stage))
	}
	r.failure = &Failure{Kind: kind, Stage: attempted, Message: err.Error()}
	r.stage = StageFailed
}

// Validate checks the per-stage field invariants. It runs after every
// advance; a violation means a stage function forgot to populate (or
// illegally cleared) a field.
func (r *Record) Validate() error {
	if r.Identifier == "" {
		return fmt.Errorf("record without identifier")
	}
	if r.stage >= StageStructureRetrieved && r.stage != StageFailed {
		if r.CanonicalKey == "" {
			return fmt.Errorf("%q reached %s without a canonical key", r.Identifier, r.stage)
		}
		if r.StructurePath == "" {
			return fmt.Errorf("%q reached %s without a structure file", r.Identifier, r.stage)
		}
	}
	if r.stage >= StageConverted && r.stage != StageFailed && r.ConvertedPath == "" {
		return fmt.Errorf("%q reached %s without a converted file", r.Identifier, r.stage)
	}
	if r.stage >= StageConformerSearched && r.stage != StageFailed && r.ConformerPath == "" {
		return fmt.Errorf("%q reached %s without a conformer file", r.Identifier, r.stage)
	}
	if r.stage >= StageCalculated && r.stage != StageFailed && len(r.Properties) == 0 {
		return fmt.Errorf("%q reached %s without computed properties", r.Identifier, r.stage)
	}
	return nil
}

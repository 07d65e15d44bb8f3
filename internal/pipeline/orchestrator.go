package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"thermopipe/internal/config"
	"thermopipe/internal/molecule"
	"thermopipe/internal/store"
)

// Request is one unit of batch input.
type Request struct {
	// Identifier is a compound name, or structural notation when
	// Notation is set.
	Identifier string `json:"identifier"`
	Notation   bool   `json:"notation,omitempty"`
}

// OutcomeKind is the terminal result of one orchestrator run.
type OutcomeKind int

const (
	// OutcomePersisted means a new row was stored.
	OutcomePersisted OutcomeKind = iota
	// OutcomeSkipped means the molecule's key was already stored.
	OutcomeSkipped
	// OutcomeFailed means a stage failed; Stage, FailureKind and Message
	// say where and why.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePersisted:
		return "Persisted"
	case OutcomeSkipped:
		return "Skipped"
	default:
		return "Failed"
	}
}

// Outcome is what the orchestrator reports for one molecule.
type Outcome struct {
	Kind        OutcomeKind
	Identifier  string
	Key         string
	Stage       molecule.Stage
	FailureKind string
	Message     string
	Row         *store.Row
}

// Orchestrator drives one molecule at a time through the stage sequence.
type Orchestrator struct {
	tools        Tools
	store        *store.Store
	baseDir      string
	charge       int
	multiplicity int
	log          *slog.Logger
}

func NewOrchestrator(tools Tools, st *store.Store, cfg config.Config, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		tools:        tools,
		store:        st,
		baseDir:      cfg.RepositoryBasePath,
		charge:       cfg.Defaults.Charge,
		multiplicity: cfg.Defaults.Multiplicity,
		log:          log,
	}
}

// Run executes the full stage sequence for one request. Failures are
// captured into the outcome, never raised: a caller iterating a batch can
// always continue with the next molecule. Only state violations panic.
func (o *Orchestrator) Run(ctx context.Context, req Request) Outcome {
	rec, err := molecule.New(req.Identifier, o.charge, o.multiplicity)
	if err != nil {
		return Outcome{
			Kind:        OutcomeFailed,
			Identifier:  req.Identifier,
			Stage:       molecule.StageNew,
			FailureKind: "InvalidIdentifier",
			Message:     err.Error(),
		}
	}

	workDir, err := prepareWorkDir(o.baseDir, req.Identifier)
	if err != nil {
		rec.Fail("WorkDirError", molecule.StageStructureRetrieved, err)
		return o.failedOutcome(rec)
	}

	if !o.retrieveStructure(ctx, rec, req.Notation, workDir) {
		return o.failedOutcome(rec)
	}
	if !o.convertFormat(ctx, rec) {
		return o.failedOutcome(rec)
	}
	if !o.searchConformers(ctx, rec, workDir) {
		return o.failedOutcome(rec)
	}
	if !o.computeProperty(ctx, rec) {
		return o.failedOutcome(rec)
	}

	// Cheap pre-check for early exit before the expensive-ish insert
	// lock. A concurrent insert can still race past this, so TryInsert
	// below remains the authoritative dedup decision.
	if exists, err := o.store.Contains(rec.CanonicalKey); err == nil && exists {
		o.log.Info("key already stored, skipping persist", "identifier", rec.Identifier, "key", rec.CanonicalKey)
		return Outcome{Kind: OutcomeSkipped, Identifier: rec.Identifier, Key: rec.CanonicalKey}
	}

	return o.persist(ctx, rec)
}

// persist is the final stage: exactly-once row insertion per key.
func (o *Orchestrator) persist(ctx context.Context, rec *molecule.Record) Outcome {
	rec.MustBeIn(molecule.StageCalculated)

	row := store.Row{
		Smiles:        rec.CanonicalKey,
		Identifier:    rec.Identifier,
		SDFPath:       rec.StructurePath,
		XYZPath:       rec.ConvertedPath,
		ConformerPath: rec.ConformerPath,
		PM7Energy:     rec.Properties[PropertyPM7Energy],
		Charge:        rec.Charge,
		Multiplicity:  rec.Multiplicity,
		HeavyAtoms:    rec.HeavyAtoms,
		Formula:       rec.Formula,
	}

	status, err := o.store.TryInsert(ctx, row)
	if err != nil {
		rec.Fail("StoreError", molecule.StagePersisted, fmt.Errorf("persist %q: %w", rec.CanonicalKey, err))
		return o.failedOutcome(rec)
	}
	if status == store.AlreadyExists {
		// Lost the race to a concurrent writer; a row for this molecule
		// exists, which is exactly what we wanted.
		return Outcome{Kind: OutcomeSkipped, Identifier: rec.Identifier, Key: rec.CanonicalKey}
	}

	rec.Advance(molecule.StagePersisted)
	return Outcome{
		Kind:       OutcomePersisted,
		Identifier: rec.Identifier,
		Key:        rec.CanonicalKey,
		Row:        &row,
	}
}

func (o *Orchestrator) failedOutcome(rec *molecule.Record) Outcome {
	f := rec.Failure()
	if f == nil {
		panic(fmt.Sprintf("state violation: failed outcome for %q without failure", rec.Identifier))
	}
	return Outcome{
		Kind:        OutcomeFailed,
		Identifier:  rec.Identifier,
		Key:         rec.CanonicalKey,
		Stage:       f.Stage,
		FailureKind: f.Kind,
		Message:     f.Message,
	}
}

package pipeline

import (
	"context"
	"path/filepath"

	"thermopipe/internal/molecule"
	"thermopipe/internal/toolexec"
)

// PropertyPM7Energy is the property name under which the computed heat of
// formation is recorded.
const PropertyPM7Energy = "pm7_energy"

// Each stage function checks its precondition (a violation panics: that
// is a bug in the orchestrator, not a runtime condition), performs one
// external-tool step, and either advances the record or marks it failed.
// The reported failure stage is the state the record was trying to reach.

// retrieveStructure establishes both the structure file and the record's
// canonical key. Name entry fetches from the structure database; notation
// entry builds the geometry from the notation. Both paths derive the key
// from the resulting structure file with the same canonicalizer, which is
// what keeps deduplication stable across entry paths.
func (o *Orchestrator) retrieveStructure(ctx context.Context, rec *molecule.Record, byNotation bool, workDir string) bool {
	rec.MustBeIn(molecule.StageNew)

	var path string
	var err error
	if byNotation {
		path, err = o.tools.BuildStructure(ctx, rec.Identifier, workDir)
	} else {
		path, err = o.tools.FetchStructure(ctx, rec.Identifier, workDir)
	}
	if err != nil {
		o.fail(rec, molecule.StageStructureRetrieved, err)
		return false
	}

	key, err := o.tools.CanonicalKey(ctx, path)
	if err != nil {
		o.fail(rec, molecule.StageStructureRetrieved, err)
		return false
	}

	rec.StructurePath = path
	rec.CanonicalKey = key
	rec.Advance(molecule.StageStructureRetrieved)
	o.log.Info("structure retrieved", "identifier", rec.Identifier, "key", key, "path", path)
	return true
}

// convertFormat translates the structure into the coordinate format the
// conformer search consumes.
func (o *Orchestrator) convertFormat(ctx context.Context, rec *molecule.Record) bool {
	rec.MustBeIn(molecule.StageStructureRetrieved)

	path, err := o.tools.Convert(ctx, rec.StructurePath, "xyz")
	if err != nil {
		o.fail(rec, molecule.StageConverted, err)
		return false
	}

	rec.ConvertedPath = path
	rec.Advance(molecule.StageConverted)
	return true
}

// searchConformers runs the conformer engine in its own subdirectory and
// records the best conformer plus its structural metadata.
func (o *Orchestrator) searchConformers(ctx context.Context, rec *molecule.Record, workDir string) bool {
	rec.MustBeIn(molecule.StageConverted)

	best, err := o.tools.SearchConformers(ctx, rec.ConvertedPath, filepath.Join(workDir, "crest"))
	if err != nil {
		o.fail(rec, molecule.StageConformerSearched, err)
		return false
	}

	heavy, formula, err := conformerMetadata(best)
	if err != nil {
		o.fail(rec, molecule.StageConformerSearched, &toolexec.Error{
			Kind: toolexec.KindOutputParse,
			Tool: "crest",
			Err:  err,
		})
		return false
	}

	rec.ConformerPath = best
	rec.HeavyAtoms = heavy
	rec.Formula = formula
	rec.Advance(molecule.StageConformerSearched)
	o.log.Info("conformer search finished", "identifier", rec.Identifier, "formula", formula, "heavy_atoms", heavy)
	return true
}

// computeProperty runs the quantum engine on the best conformer and
// stores the extracted scalar.
func (o *Orchestrator) computeProperty(ctx context.Context, rec *molecule.Record) bool {
	rec.MustBeIn(molecule.StageConformerSearched)

	energy, err := o.tools.RunQuantum(ctx, rec.ConformerPath)
	if err != nil {
		o.fail(rec, molecule.StageCalculated, err)
		return false
	}

	rec.Properties[PropertyPM7Energy] = energy
	rec.Advance(molecule.StageCalculated)
	o.log.Info("property computed", "identifier", rec.Identifier, "pm7_energy", energy)
	return true
}

// fail transfers an external-tool failure onto the record.
func (o *Orchestrator) fail(rec *molecule.Record, attempted molecule.Stage, err error) {
	kind := toolexec.KindOf(err).String()
	rec.Fail(kind, attempted, err)
	o.log.Warn("stage failed",
		"identifier", rec.Identifier,
		"stage", attempted,
		"kind", kind,
		"error", err)
}

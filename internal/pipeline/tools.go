// Package pipeline drives molecules through the ordered computation
// stages and aggregates batch outcomes.
package pipeline

import "context"

// Tools is the external-collaborator surface the stage functions need.
// The production implementation shells out to the configured programs;
// tests substitute in-memory fakes.
type Tools interface {
	// FetchStructure retrieves a structure file for a compound name.
	FetchStructure(ctx context.Context, identifier, dir string) (string, error)
	// BuildStructure generates a structure file from structural notation.
	BuildStructure(ctx context.Context, notation, dir string) (string, error)
	// CanonicalKey derives the canonical notation from a structure file.
	CanonicalKey(ctx context.Context, structurePath string) (string, error)
	// Convert translates a structure file into the target format.
	Convert(ctx context.Context, inputPath, format string) (string, error)
	// SearchConformers produces the best-conformer file for a geometry.
	SearchConformers(ctx context.Context, xyzPath, dir string) (string, error)
	// RunQuantum computes the PM7 heat of formation for a geometry.
	RunQuantum(ctx context.Context, xyzPath string) (float64, error)
}

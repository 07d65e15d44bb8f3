package store

import (
	"fmt"
	"strconv"
)

// headerV1 is the fixed column set. The header row doubles as the schema
// version: a store file whose first row differs is refused.
var headerV1 = []string{
	"smiles",
	"identifier",
	"sdf_path",
	"xyz_path",
	"crest_best_xyz_path",
	"pm7_energy",
	"charge",
	"multiplicity",
	"heavy_atoms",
	"formula",
}

// Row is the durable artifact of one completed pipeline run. Rows are
// created once per unique canonical key and never updated in place.
type Row struct {
	Smiles        string
	Identifier    string
	SDFPath       string
	XYZPath       string
	ConformerPath string
	PM7Energy     float64
	Charge        int
	Multiplicity  int
	HeavyAtoms    int
	Formula       string
}

// Key returns the deduplication key.
func (r Row) Key() string {
	return r.Smiles
}

func (r Row) fields() []string {
	return []string{
		r.Smiles,
		r.Identifier,
		r.SDFPath,
		r.XYZPath,
		r.ConformerPath,
		strconv.FormatFloat(r.PM7Energy, 'f', -1, 64),
		strconv.Itoa(r.Charge),
		strconv.Itoa(r.Multiplicity),
		strconv.Itoa(r.HeavyAtoms),
		r.Formula,
	}
}

func rowFromFields(fields []string) (Row, error) {
	if len(fields) != len(headerV1) {
		return Row{}, fmt.Errorf("row has %d columns, schema has %d", len(fields), len(headerV1))
	}
	energy, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return Row{}, fmt.Errorf("bad pm7_energy %q: %w", fields[5], err)
	}
	charge, err := strconv.Atoi(fields[6])
	if err != nil {
		return Row{}, fmt.Errorf("bad charge %q: %w", fields[6], err)
	}
	mult, err := strconv.Atoi(fields[7])
	if err != nil {
		return Row{}, fmt.Errorf("bad multiplicity %q: %w", fields[7], err)
	}
	heavy, err := strconv.Atoi(fields[8])
	if err != nil {
		return Row{}, fmt.Errorf("bad heavy_atoms %q: %w", fields[8], err)
	}
	return Row{
		Smiles:        fields[0],
		Identifier:    fields[1],
		SDFPath:       fields[2],
		XYZPath:       fields[3],
		ConformerPath: fields[4],
		PM7Energy:     energy,
		Charge:        charge,
		Multiplicity:  mult,
		HeavyAtoms:    heavy,
		Formula:       fields[9],
	}, nil
}

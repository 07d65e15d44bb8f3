// Package config loads and validates the thermopipe YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values. It is loaded once and passed
// explicitly into constructors; nothing reads it through globals.
type Config struct {
	Executables Executables `yaml:"executables"`
	Keywords    Keywords    `yaml:"keywords"`
	Timeouts    Timeouts    `yaml:"timeouts"`
	Database    Database    `yaml:"database"`
	Defaults    Defaults    `yaml:"defaults"`
	Batch       Batch       `yaml:"batch"`
	Logging     Logging     `yaml:"logging"`

	// RepositoryBasePath is the root under which per-molecule working
	// directories are created.
	RepositoryBasePath string `yaml:"repository_base_path"`
}

// Executables names the external programs. Values are used verbatim as
// the command, so both bare names (PATH lookup) and absolute paths work.
type Executables struct {
	OpenBabel string `yaml:"obabel"`
	Crest     string `yaml:"crest"`
	Mopac     string `yaml:"mopac"`
	// Fetch is the structure-database client: invoked as
	// `<fetch> <identifier> <output.sdf>`.
	Fetch string `yaml:"fetch"`
}

// Keywords are passed through to the tools without interpretation.
type Keywords struct {
	Crest string `yaml:"crest"`
	Mopac string `yaml:"mopac"`
}

// Timeouts are per-tool bounds in seconds. Zero disables the bound.
type Timeouts struct {
	Fetch      int `yaml:"fetch"`
	Conversion int `yaml:"conversion"`
	Crest      int `yaml:"crest"`
	Mopac      int `yaml:"mopac"`
}

func (t Timeouts) FetchDuration() time.Duration { return time.Duration(t.Fetch) * time.Second }

func (t Timeouts) ConversionDuration() time.Duration {
	return time.Duration(t.Conversion) * time.Second
}

func (t Timeouts) CrestDuration() time.Duration { return time.Duration(t.Crest) * time.Second }

func (t Timeouts) MopacDuration() time.Duration { return time.Duration(t.Mopac) * time.Second }

// Database locates the tabular stores.
type Database struct {
	// PM7Path is the computed-results store this pipeline appends to.
	PM7Path string `yaml:"pm7_db_path"`
	// ReferencePath is a read-only reference set used by coverage reports.
	ReferencePath string `yaml:"reference_db_path"`
}

// Defaults are molecular properties assumed when the input doesn't say.
type Defaults struct {
	Charge       int `yaml:"charge"`
	Multiplicity int `yaml:"multiplicity"`
}

// Batch controls the batch driver.
type Batch struct {
	// Workers is the number of molecules processed concurrently.
	Workers int `yaml:"workers"`
}

// Logging mirrors the dual console/file log setup.
type Logging struct {
	LogFile      string `yaml:"log_file"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Executables: Executables{
			OpenBabel: "obabel",
			Crest:     "crest",
			Mopac:     "mopac",
			Fetch:     "pubchem-sdf",
		},
		Keywords: Keywords{
			Crest: "--gfn2",
			Mopac: "PM7 PRECISE XYZ",
		},
		Timeouts: Timeouts{
			Fetch:      120,
			Conversion: 60,
			Crest:      3600,
			Mopac:      1800,
		},
		Database: Database{
			PM7Path: "data/thermo_pm7.csv",
		},
		Defaults: Defaults{
			Charge:       0,
			Multiplicity: 1,
		},
		Batch: Batch{
			Workers: 1,
		},
		Logging: Logging{
			LogFile:      "logs/thermopipe.log",
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		RepositoryBasePath: "repository",
	}
}

// Load reads the YAML file at path, fills defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that everything the pipeline consumes is present.
func (c Config) Validate() error {
	required := []struct{ name, val string }{
		{"executables.obabel", c.Executables.OpenBabel},
		{"executables.crest", c.Executables.Crest},
		{"executables.mopac", c.Executables.Mopac},
		{"executables.fetch", c.Executables.Fetch},
		{"database.pm7_db_path", c.Database.PM7Path},
		{"repository_base_path", c.RepositoryBasePath},
		{"logging.log_file", c.Logging.LogFile},
	}
	for _, r := range required {
		if r.val == "" {
			return fmt.Errorf("missing required setting %s", r.name)
		}
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	timeouts := []struct {
		name string
		val  int
	}{
		{"timeouts.fetch", c.Timeouts.Fetch},
		{"timeouts.conversion", c.Timeouts.Conversion},
		{"timeouts.crest", c.Timeouts.Crest},
		{"timeouts.mopac", c.Timeouts.Mopac},
	}
	for _, t := range timeouts {
		if t.val < 0 {
			return fmt.Errorf("%s must not be negative", t.name)
		}
	}
	if c.Defaults.Multiplicity < 1 {
		return fmt.Errorf("defaults.multiplicity must be at least 1, got %d", c.Defaults.Multiplicity)
	}
	return nil
}

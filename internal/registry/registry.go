// Package registry holds the declarative configuration of every source
// dataset the pipeline ingests: its join key, label, reader, and field
// mappings. One parametrized pipeline runs once per entry instead of a
// near-duplicated code block per dataset.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/carceral-ecologies/pfas-cli/internal/normalize"
)

// Format selects the ingest reader for a source.
type Format string

const (
	FormatShapefile Format = "shapefile"
	FormatCSV       Format = "csv"
	FormatXLSX      Format = "xlsx"
)

// Source describes one dataset. Paths are relative to the data dir.
type Source struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label"`
	Format Format `yaml:"format"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url,omitempty"`

	// Target marks the carceral-facility dataset every point source is
	// linked against. Exactly one source must be the target.
	Target bool `yaml:"target,omitempty"`

	// XLSX options.
	Sheet    string `yaml:"sheet,omitempty"`
	SkipRows int    `yaml:"skip_rows,omitempty"`

	// Field mappings.
	JoinKey         string `yaml:"join_key"`
	NameField       string `yaml:"name_field,omitempty"`
	LatField        string `yaml:"lat_field,omitempty"`
	LonField        string `yaml:"lon_field,omitempty"`
	DatumField      string `yaml:"datum_field,omitempty"`
	StatusField     string `yaml:"status_field,omitempty"`
	TypeField       string `yaml:"type_field,omitempty"`
	PopulationField string `yaml:"population_field,omitempty"`
	AccuracyField   string `yaml:"accuracy_field,omitempty"`
	HUC8Field       string `yaml:"huc8_field,omitempty"`

	// RequireAccuracy derives link confidence from AccuracyField.
	RequireAccuracy bool `yaml:"require_accuracy,omitempty"`

	Disabled bool `yaml:"disabled,omitempty"`
}

// NormalizeOptions maps the source's field configuration onto the
// normalizer.
func (s Source) NormalizeOptions() normalize.Options {
	opts := normalize.Options{
		SourceType:      s.Key,
		IDField:         s.JoinKey,
		NameField:       s.NameField,
		LatField:        s.LatField,
		LonField:        s.LonField,
		StatusField:     s.StatusField,
		TypeField:       s.TypeField,
		PopulationField: s.PopulationField,
		AccuracyField:   s.AccuracyField,
	}
	if s.DatumField != "" {
		opts.Classify = normalize.DatumField(s.DatumField, normalize.CRSNAD83)
	}
	return opts
}

// Load reads source definitions from a YAML file, falling back to the
// built-in defaults when the file does not exist.
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var doc struct {
		Sources []Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	if err := Validate(doc.Sources); err != nil {
		return nil, err
	}
	return doc.Sources, nil
}

// Validate checks structural invariants: unique keys, a join key per
// source, and exactly one target dataset.
func Validate(sources []Source) error {
	if len(sources) == 0 {
		return eris.New("registry: no sources defined")
	}
	seen := make(map[string]bool, len(sources))
	targets := 0
	for _, s := range sources {
		if s.Key == "" {
			return eris.New("registry: source with empty key")
		}
		if seen[s.Key] {
			return eris.Errorf("registry: duplicate source key %q", s.Key)
		}
		seen[s.Key] = true
		if s.JoinKey == "" {
			return eris.Errorf("registry: source %q has no join key", s.Key)
		}
		if s.Target {
			targets++
		}
	}
	if targets != 1 {
		return eris.Errorf("registry: expected exactly one target source, found %d", targets)
	}
	return nil
}

// Target returns the target (carceral facility) source.
func Target(sources []Source) (Source, bool) {
	for _, s := range sources {
		if s.Target {
			return s, true
		}
	}
	return Source{}, false
}

// Enabled returns the non-disabled point-source datasets, excluding the
// target.
func Enabled(sources []Source) []Source {
	var out []Source
	for _, s := range sources {
		if s.Disabled || s.Target {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Find returns the source with the given key.
func Find(sources []Source, key string) (Source, bool) {
	for _, s := range sources {
		if s.Key == key {
			return s, true
		}
	}
	return Source{}, false
}

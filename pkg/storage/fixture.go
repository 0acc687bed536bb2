package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is a YAML document of records grouped by resource
//
//	collections:
//	  - uuid: zzzzz-4zz18-000000000000001
//	    owner_uuid: zzzzz-tpzed-000000000000001
//	    portable_data_hash: acbd18db4cc2f85cedef654fccc4a4d8+3
//	    name: reads
//	jobs:
//	  - uuid: zzzzz-8i9sb-000000000000001
//	    script_parameters:
//	      input: acbd18db4cc2f85cedef654fccc4a4d8+3
//	    output: 37b51d194a7513e45b56f6524f2d51f2+3
//	links: []
//	objects: []
type Fixture struct {
	Collections []Record `yaml:"collections" json:"collections"`
	Jobs        []Record `yaml:"jobs" json:"jobs"`
	Links       []Record `yaml:"links" json:"links"`
	Objects     []Record `yaml:"objects" json:"objects"`
}

// Records returns every record of the fixture
func (fx *Fixture) Records() []Record {
	out := make([]Record, 0, len(fx.Collections)+len(fx.Jobs)+len(fx.Links)+len(fx.Objects))
	out = append(out, fx.Collections...)
	out = append(out, fx.Jobs...)
	out = append(out, fx.Links...)
	out = append(out, fx.Objects...)
	return out
}

// ParseFixture decodes YAML (or JSON, which is valid YAML) fixture data
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	for _, rec := range fx.Records() {
		normalizeRecord(rec)
	}
	return &fx, nil
}

// LoadFixture writes every record of the fixture into w
func LoadFixture(ctx context.Context, w Writer, fx *Fixture) error {
	for i, rec := range fx.Records() {
		if err := w.Put(ctx, rec); err != nil {
			return fmt.Errorf("fixture record %d (%s): %w", i, rec.UUID(), err)
		}
	}
	return nil
}

// LoadFixtureFile reads a fixture file and writes its records into w
func LoadFixtureFile(ctx context.Context, w Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture file: %w", err)
	}
	fx, err := ParseFixture(data)
	if err != nil {
		return err
	}
	return LoadFixture(ctx, w, fx)
}

// normalizeRecord converts YAML decoded values into the shapes the rest of
// the package expects (string keyed maps all the way down).
func normalizeRecord(rec Record) {
	for k, v := range rec {
		rec[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeValue(inner)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case Record:
		normalizeRecord(t)
		return map[string]any(t)
	case []any:
		for i, inner := range t {
			t[i] = normalizeValue(inner)
		}
		return t
	}
	return v
}

package provenance

import (
	"iter"
	"sort"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/storage"
)

// DefaultExcludedFields are skipped by the scanner. Logs are free text and
// any locator in them is incidental.
var DefaultExcludedFields = []string{storage.FieldLog}

// Scanner finds references embedded in a record's field values
type Scanner struct {
	exclude map[string]bool
}

// NewScanner creates a scanner that skips the given top level fields
func NewScanner(exclude ...string) *Scanner {
	s := &Scanner{exclude: make(map[string]bool, len(exclude))}
	for _, field := range exclude {
		s.exclude[field] = true
	}
	return s
}

// Scan yields the references found in rec. Fields are visited in sorted key
// order, nested maps and slices included. Each string yields at most one
// identifier: a content locator if it holds one, otherwise a collection
// object id.
func (s *Scanner) Scan(rec storage.Record) iter.Seq[locator.Identifier] {
	return func(yield func(locator.Identifier) bool) {
		for _, field := range sortedKeys(rec) {
			if s.exclude[field] {
				continue
			}
			if !scanValue(rec[field], yield) {
				return
			}
		}
	}
}

func scanValue(v any, yield func(locator.Identifier) bool) bool {
	switch val := v.(type) {
	case string:
		if id, ok := findReference(val); ok {
			return yield(id)
		}
	case map[string]any:
		for _, k := range sortedKeys(val) {
			if !scanValue(val[k], yield) {
				return false
			}
		}
	case storage.Record:
		return scanValue(map[string]any(val), yield)
	case []any:
		for _, item := range val {
			if !scanValue(item, yield) {
				return false
			}
		}
	case []string:
		for _, item := range val {
			if !scanValue(item, yield) {
				return false
			}
		}
	}
	return true
}

func findReference(s string) (locator.Identifier, bool) {
	if canonical, ok := locator.Find(s); ok {
		return locator.LocatorID(canonical), true
	}
	if id, ok := locator.FindObjectID(s, locator.IsCollectionType); ok {
		return locator.ObjectIdentifier(id), true
	}
	return locator.Identifier{}, false
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

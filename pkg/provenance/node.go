package provenance

import (
	"encoding/json"
	"sort"

	"github.com/platinummonkey/lineage/pkg/storage"
)

// Summary stands in for several readable collections sharing one locator
type Summary struct {
	PortableDataHash string `json:"portable_data_hash"`
	Name             string `json:"name"`
}

// Node is one visited entry: a full record or a Summary
type Node struct {
	Record  storage.Record
	Summary *Summary
}

// RecordNode wraps a record
func RecordNode(rec storage.Record) Node {
	return Node{Record: rec}
}

// SummaryNode builds a collapsed multi-match entry
func SummaryNode(pdh, name string) Node {
	return Node{Summary: &Summary{PortableDataHash: pdh, Name: name}}
}

// IsSummary reports whether the node collapses several records
func (n Node) IsSummary() bool {
	return n.Summary != nil
}

// DisplayName returns a label for listings
func (n Node) DisplayName() string {
	if n.Summary != nil {
		return n.Summary.Name
	}
	return n.Record.DisplayName()
}

// MarshalJSON encodes the record or the summary as a plain object
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Summary != nil {
		return json.Marshal(n.Summary)
	}
	if n.Record == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]any(n.Record))
}

// UnmarshalJSON decodes a record, or a summary when the object has exactly
// the summary keys
func (n *Node) UnmarshalJSON(data []byte) error {
	var rec storage.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	_, hasPDH := rec[storage.FieldPortableDataHash]
	_, hasName := rec[storage.FieldName]
	if len(rec) == 2 && hasPDH && hasName {
		n.Summary = &Summary{PortableDataHash: rec.PortableDataHash(), Name: rec.Name()}
		n.Record = nil
		return nil
	}
	n.Record, n.Summary = rec, nil
	return nil
}

// Visited is the result of one traversal: canonical locator or object id to
// node
type Visited map[string]Node

// Has reports whether key was visited
func (v Visited) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// Keys returns the visited keys in sorted order
func (v Visited) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

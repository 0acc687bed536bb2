package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/storage"
)

// scanRecord reads one row of t into a Record. NULL columns are omitted.
func scanRecord(rows *sql.Rows, t table) (storage.Record, error) {
	dest := make([]any, len(t.columns))
	for i, c := range t.columns {
		switch c.kind {
		case timeCol:
			dest[i] = new(sql.NullTime)
		case boolCol:
			dest[i] = new(sql.NullBool)
		default:
			dest[i] = new(sql.NullString)
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	rec := make(storage.Record, len(t.columns))
	for i, c := range t.columns {
		switch v := dest[i].(type) {
		case *sql.NullTime:
			if v.Valid {
				rec[c.name] = v.Time.UTC()
			}
		case *sql.NullBool:
			if v.Valid {
				rec[c.name] = v.Bool
			}
		case *sql.NullString:
			if !v.Valid {
				continue
			}
			if c.kind != jsonCol {
				rec[c.name] = v.String
				continue
			}
			var decoded any
			if err := json.Unmarshal([]byte(v.String), &decoded); err != nil {
				return nil, fmt.Errorf("column %s.%s: %w", t.name, c.name, err)
			}
			if c.name == t.extra {
				if attrs, ok := decoded.(map[string]any); ok {
					for k, val := range attrs {
						if _, taken := rec[k]; !taken && !t.has(k) {
							rec[k] = val
						}
					}
				}
				continue
			}
			rec[c.name] = decoded
		}
	}
	return rec, nil
}

// recordValues returns the column values to write for rec
func recordValues(rec storage.Record, t table) ([]any, error) {
	values := make([]any, len(t.columns))
	for i, c := range t.columns {
		if c.name == t.extra {
			attrs := make(map[string]any)
			for k, v := range rec {
				if !t.has(k) {
					attrs[k] = v
				}
			}
			data, err := json.Marshal(attrs)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", c.name, err)
			}
			values[i] = string(data)
			continue
		}
		if c.name == storage.FieldKind && t.extra != "" {
			values[i] = locator.ResourceName(rec.UUID())
			continue
		}

		raw, present := rec[c.name]
		switch c.kind {
		case timeCol:
			if ts, ok := rec.Time(c.name); ok {
				values[i] = ts.UTC()
			}
		case boolCol:
			values[i] = rec.Bool(c.name)
		case jsonCol:
			if !present || raw == nil {
				continue
			}
			data, err := json.Marshal(raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", c.name, err)
			}
			values[i] = string(data)
		default:
			if !present || raw == nil {
				continue
			}
			if s, ok := raw.(string); ok {
				values[i] = s
			} else {
				values[i] = fmt.Sprint(raw)
			}
		}
	}
	return values, nil
}

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/lineage/pkg/locator"
)

// ErrNotFound is returned when a record does not exist or is not readable
var ErrNotFound = errors.New("record not found")

// Record field names
const (
	FieldUUID               = "uuid"
	FieldOwnerUUID          = "owner_uuid"
	FieldKind               = "kind"
	FieldName               = "name"
	FieldPortableDataHash   = "portable_data_hash"
	FieldTrashAt            = "trash_at"
	FieldIsTrashed          = "is_trashed"
	FieldCreatedAt          = "created_at"
	FieldScript             = "script"
	FieldScriptParameters   = "script_parameters"
	FieldOutput             = "output"
	FieldLog                = "log"
	FieldDockerImageLocator = "docker_image_locator"
	FieldStartedAt          = "started_at"
	FieldFinishedAt         = "finished_at"
	FieldLinkClass          = "link_class"
	FieldHeadUUID           = "head_uuid"
	FieldTailUUID           = "tail_uuid"
	FieldProperties         = "properties"
)

// LinkClassProvenance is the only link class that participates in lineage
const LinkClassProvenance = "provenance"

// Record is a read-only projection of a store record, field name to value
type Record map[string]any

// String returns a string field, or "" when absent or not a string
func (r Record) String(field string) string {
	if s, ok := r[field].(string); ok {
		return s
	}
	return ""
}

// UUID returns the record's object id
func (r Record) UUID() string { return r.String(FieldUUID) }

// OwnerUUID returns the record's owner
func (r Record) OwnerUUID() string { return r.String(FieldOwnerUUID) }

// Name returns the record's display name field
func (r Record) Name() string { return r.String(FieldName) }

// PortableDataHash returns a collection's canonical content locator
func (r Record) PortableDataHash() string { return r.String(FieldPortableDataHash) }

// Time returns a timestamp field. Values may be time.Time or RFC 3339 strings.
func (r Record) Time(field string) (time.Time, bool) {
	switch v := r[field].(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, !v.IsZero()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Bool returns a boolean field
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// DisplayName returns a human readable label for the record. Jobs without a
// name are labelled by script and their most recent lifecycle timestamp.
func (r Record) DisplayName() string {
	if name := r.Name(); name != "" {
		return name
	}
	if locator.Classify(r.UUID()) != locator.KindJob {
		if pdh := r.PortableDataHash(); pdh != "" {
			return pdh
		}
		return r.UUID()
	}

	label := r.UUID()
	if script := r.String(FieldScript); script != "" {
		label = fmt.Sprintf("%q job", script)
	}
	if t, ok := r.Time(FieldFinishedAt); ok {
		label += " finished " + t.Format("Jan 2")
	} else if t, ok := r.Time(FieldStartedAt); ok {
		label += " started " + t.Format("Jan 2")
	} else if t, ok := r.Time(FieldCreatedAt); ok {
		label += " submitted " + t.Format("Jan 2")
	}
	return label
}

// ValidateRecord checks that a record can be stored: a well formed object id
// with a registered type code, and a valid portable_data_hash on collections.
func ValidateRecord(rec Record) error {
	uuid := rec.UUID()
	if !locator.IsObjectID(uuid) {
		return fmt.Errorf("invalid object id %q", uuid)
	}
	if locator.ResourceName(uuid) == "" {
		return fmt.Errorf("unsupported resource type %q in %s", locator.TypeCode(uuid), uuid)
	}
	if locator.TypeCode(uuid) == locator.TypeCollection {
		if _, ok := locator.Parse(rec.PortableDataHash()); !ok {
			return fmt.Errorf("collection %s: invalid portable_data_hash %q", uuid, rec.PortableDataHash())
		}
	}
	return nil
}

// Link is an explicit typed edge between two object ids
type Link struct {
	UUID       string         `json:"uuid"`
	OwnerUUID  string         `json:"owner_uuid"`
	LinkClass  string         `json:"link_class"`
	Name       string         `json:"name,omitempty"`
	TailUUID   string         `json:"tail_uuid"`
	HeadUUID   string         `json:"head_uuid"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Record returns the link as a record projection
func (l Link) Record() Record {
	rec := Record{
		FieldUUID:      l.UUID,
		FieldOwnerUUID: l.OwnerUUID,
		FieldKind:      "link",
		FieldLinkClass: l.LinkClass,
		FieldName:      l.Name,
		FieldTailUUID:  l.TailUUID,
		FieldHeadUUID:  l.HeadUUID,
	}
	if l.Properties != nil {
		rec[FieldProperties] = l.Properties
	}
	if !l.CreatedAt.IsZero() {
		rec[FieldCreatedAt] = l.CreatedAt
	}
	return rec
}

// LinkFromRecord converts a link record projection back into a Link
func LinkFromRecord(r Record) Link {
	l := Link{
		UUID:      r.UUID(),
		OwnerUUID: r.OwnerUUID(),
		LinkClass: r.String(FieldLinkClass),
		Name:      r.Name(),
		TailUUID:  r.String(FieldTailUUID),
		HeadUUID:  r.String(FieldHeadUUID),
	}
	if props, ok := r[FieldProperties].(map[string]any); ok {
		l.Properties = props
	}
	if t, ok := r.Time(FieldCreatedAt); ok {
		l.CreatedAt = t
	}
	return l
}

// JobField is a job column that lineage queries match on
type JobField string

const (
	JobOutput             JobField = FieldOutput
	JobLog                JobField = FieldLog
	JobDockerImageLocator JobField = FieldDockerImageLocator
	JobScriptParameters   JobField = FieldScriptParameters
)

// MatchOp selects how a JobQuery value is compared
type MatchOp int

const (
	// MatchEquals compares the field for string equality
	MatchEquals MatchOp = iota
	// MatchContains tests the field's JSON text for a substring
	MatchContains
)

// JobQuery is a single field predicate over job records
type JobQuery struct {
	Field JobField
	Op    MatchOp
	Value string
}

// OutputEquals matches jobs whose output is value
func OutputEquals(value string) JobQuery {
	return JobQuery{Field: JobOutput, Op: MatchEquals, Value: value}
}

// LogEquals matches jobs whose log is value
func LogEquals(value string) JobQuery {
	return JobQuery{Field: JobLog, Op: MatchEquals, Value: value}
}

// DockerImageEquals matches jobs run in the docker image stored at value
func DockerImageEquals(value string) JobQuery {
	return JobQuery{Field: JobDockerImageLocator, Op: MatchEquals, Value: value}
}

// ScriptParametersContain matches jobs whose parameters mention value
func ScriptParametersContain(value string) JobQuery {
	return JobQuery{Field: JobScriptParameters, Op: MatchContains, Value: value}
}

// Validate checks that the query names a supported field/operator pair
func (q JobQuery) Validate() error {
	if q.Value == "" {
		return fmt.Errorf("job query on %s: empty value", q.Field)
	}
	switch q.Field {
	case JobOutput, JobLog, JobDockerImageLocator:
		if q.Op != MatchEquals {
			return fmt.Errorf("job query on %s: only equality is supported", q.Field)
		}
	case JobScriptParameters:
		if q.Op != MatchContains {
			return fmt.Errorf("job query on %s: only substring match is supported", q.Field)
		}
	default:
		return fmt.Errorf("job query: unsupported field %q", q.Field)
	}
	return nil
}

// Matches evaluates the query against a job record in memory
func (q JobQuery) Matches(job Record) bool {
	switch q.Op {
	case MatchEquals:
		return job.String(string(q.Field)) == q.Value
	case MatchContains:
		return containsText(job[string(q.Field)], q.Value)
	}
	return false
}

// containsText reports whether the JSON text of v contains sub
func containsText(v any, sub string) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.Contains(s, sub)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), sub)
}

// LinkEnd selects which end of a link to match
type LinkEnd int

const (
	// LinkHead matches links whose head_uuid is the given id
	LinkHead LinkEnd = iota
	// LinkTail matches links whose tail_uuid is the given id
	LinkTail
)

func (e LinkEnd) String() string {
	if e == LinkTail {
		return FieldTailUUID
	}
	return FieldHeadUUID
}

package sqlstore

import (
	"strings"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/storage"
)

type colKind int

const (
	textCol colKind = iota
	jsonCol
	timeCol
	boolCol
)

type column struct {
	name string
	kind colKind
}

type table struct {
	name    string
	columns []column
	// extra names a JSON column holding every record field without a
	// column of its own. Tables without one drop unknown fields.
	extra string
}

var (
	collectionsTable = table{
		name: "collections",
		columns: []column{
			{storage.FieldUUID, textCol},
			{storage.FieldOwnerUUID, textCol},
			{storage.FieldPortableDataHash, textCol},
			{storage.FieldName, textCol},
			{"description", textCol},
			{"manifest_text", textCol},
			{storage.FieldProperties, jsonCol},
			{storage.FieldTrashAt, timeCol},
			{storage.FieldIsTrashed, boolCol},
			{storage.FieldCreatedAt, timeCol},
			{"modified_at", timeCol},
		},
	}

	jobsTable = table{
		name: "jobs",
		columns: []column{
			{storage.FieldUUID, textCol},
			{storage.FieldOwnerUUID, textCol},
			{storage.FieldScript, textCol},
			{"script_version", textCol},
			{"repository", textCol},
			{storage.FieldScriptParameters, jsonCol},
			{storage.FieldOutput, textCol},
			{storage.FieldLog, textCol},
			{storage.FieldDockerImageLocator, textCol},
			{"state", textCol},
			{storage.FieldCreatedAt, timeCol},
			{storage.FieldStartedAt, timeCol},
			{storage.FieldFinishedAt, timeCol},
			{"attributes", jsonCol},
		},
		extra: "attributes",
	}

	linksTable = table{
		name: "links",
		columns: []column{
			{storage.FieldUUID, textCol},
			{storage.FieldOwnerUUID, textCol},
			{storage.FieldLinkClass, textCol},
			{storage.FieldName, textCol},
			{storage.FieldTailUUID, textCol},
			{storage.FieldHeadUUID, textCol},
			{storage.FieldProperties, jsonCol},
			{storage.FieldCreatedAt, timeCol},
		},
	}

	objectsTable = table{
		name: "objects",
		columns: []column{
			{storage.FieldUUID, textCol},
			{storage.FieldOwnerUUID, textCol},
			{storage.FieldKind, textCol},
			{"attributes", jsonCol},
			{storage.FieldCreatedAt, timeCol},
		},
		extra: "attributes",
	}
)

// tableFor picks the table holding records with the given object id
func tableFor(uuid string) (table, bool) {
	switch locator.TypeCode(uuid) {
	case locator.TypeCollection:
		return collectionsTable, true
	case locator.TypeJob:
		return jobsTable, true
	case locator.TypeLink:
		return linksTable, true
	}
	if locator.ResourceName(uuid) == "" {
		return table{}, false
	}
	return objectsTable, true
}

func (t table) columnList() string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

func (t table) has(field string) bool {
	for _, c := range t.columns {
		if c.name == field {
			return true
		}
	}
	return false
}

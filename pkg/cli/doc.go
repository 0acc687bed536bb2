// Package cli implements lineage-cli, a command line client that runs
// provenance queries directly against a record store.
//
//	lineage-cli ancestors <locator|uuid>    everything the root was derived from
//	lineage-cli descendants <locator|uuid>  everything derived from the root
//	lineage-cli batch <root>... --direction up|down
//	lineage-cli parse <string>              classify a locator or object id
//	lineage-cli load --fixture f.yaml --store sqlite --dsn lineage.db
//
// Global flags select the store (--store, --dsn, --fixture), the visibility
// filter (--reader, --admin) and the output format (--format text|json).
// Diagnostics go to stderr through logrus; --verbose also logs each visited
// node.
package cli

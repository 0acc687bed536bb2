// Package provenance reconstructs data lineage from a record store.
//
// A Tracker walks the graph formed by collections, the jobs that read and
// wrote them, and explicit provenance links. The graph is never stored; it is
// discovered on each call from storage.Storage under the caller's
// visibility.Filter.
//
// # Traversal
//
// Ancestors follows edges upstream: from a content locator to the jobs whose
// output or log it is, from a job to every collection referenced in its
// fields, and from a link head to its tail. Descendants follows edges
// downstream: from a locator to the jobs that take it as a parameter or run in
// it as a docker image, from a job to its output, and from a link tail to its
// head. The empty collection locator is never expanded downstream.
//
// Both return a Visited map keyed by canonical locator or object id. A
// collection reached by id is stored under its portable data hash, so a
// collection reached both ways appears once. When several readable
// collections share a locator the entry is a Summary.
//
//	tracker := provenance.NewTracker(store, provenance.WithLogger(logger))
//	visited, err := tracker.Ancestors(ctx, filter, provenance.Entity{ID: uuid})
//
// Object ids that do not exist or that the filter hides end the branch
// without an error. A locator with no readable collection gets no entry, but
// the jobs that wrote, logged or read it are still searched. Only store
// failures and context cancellation fail a call.
//
// # Reference scanning
//
// Upstream expansion of a job scans every field except log for embedded
// references. Only the first reference in any one string is used, so a
// parameter that lists several locators in a single string contributes the
// first of them.
package provenance

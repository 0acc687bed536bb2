package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/lineage/pkg/locator"
	"github.com/platinummonkey/lineage/pkg/storage"
	"github.com/platinummonkey/lineage/pkg/visibility"
)

// QueryObserver is told the outcome of every store query
type QueryObserver interface {
	ObserveQuery(operation string, err error)
}

// Store implements storage.Storage and storage.Writer over database/sql
type Store struct {
	pool     Pool
	dialect  Dialect
	observer QueryObserver
}

// New creates a store over pool using dialect
func New(pool Pool, dialect Dialect) *Store {
	return &Store{pool: pool, dialect: dialect}
}

// SetObserver installs a query observer
func (s *Store) SetObserver(o QueryObserver) {
	s.observer = o
}

// Dialect returns the store's SQL dialect
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Migrate creates any missing tables
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Primary().ExecContext(ctx, s.dialect.Schema()); err != nil {
		return fmt.Errorf("%s: failed to apply schema: %w", s.dialect.Name(), err)
	}
	return nil
}

// GetObject implements storage.ObjectReader
func (s *Store) GetObject(ctx context.Context, f visibility.Filter, uuid string) (storage.Record, error) {
	if !locator.IsObjectID(uuid) {
		return nil, storage.ErrNotFound
	}
	t, ok := tableFor(uuid)
	if !ok {
		return nil, storage.ErrNotFound
	}

	var q query
	q.where("uuid = ?", uuid)
	if t.name == collectionsTable.name {
		q.where("NOT is_trashed")
	}
	if !s.restrict(f, &q) {
		return nil, storage.ErrNotFound
	}

	recs, err := s.selectRecords(ctx, "get_object", t, &q, "")
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, storage.ErrNotFound
	}
	return recs[0], nil
}

// CollectionsByLocator implements storage.CollectionReader
func (s *Store) CollectionsByLocator(ctx context.Context, f visibility.Filter, pdh string) ([]storage.Record, error) {
	var q query
	q.where("portable_data_hash = ?", pdh)
	q.where("NOT is_trashed")
	if !s.restrict(f, &q) {
		return nil, nil
	}
	return s.selectRecords(ctx, "collections_by_locator", collectionsTable, &q, "trash_at DESC NULLS FIRST, uuid")
}

// FindJobs implements storage.JobReader
func (s *Store) FindJobs(ctx context.Context, f visibility.Filter, jq storage.JobQuery) ([]storage.Record, error) {
	if err := jq.Validate(); err != nil {
		return nil, err
	}

	var q query
	switch jq.Op {
	case storage.MatchContains:
		q.where(s.dialect.ContainsText(string(jq.Field)), jq.Value)
	default:
		q.where(string(jq.Field)+" = ?", jq.Value)
	}
	if !s.restrict(f, &q) {
		return nil, nil
	}
	return s.selectRecords(ctx, "find_jobs", jobsTable, &q, "uuid")
}

// ProvenanceLinks implements storage.LinkReader
func (s *Store) ProvenanceLinks(ctx context.Context, f visibility.Filter, end storage.LinkEnd, uuid string) ([]storage.Link, error) {
	var q query
	q.where("link_class = ?", storage.LinkClassProvenance)
	q.where(end.String()+" = ?", uuid)
	if !s.restrict(f, &q) {
		return nil, nil
	}

	recs, err := s.selectRecords(ctx, "provenance_links", linksTable, &q, "uuid")
	if err != nil {
		return nil, err
	}
	links := make([]storage.Link, 0, len(recs))
	for _, r := range recs {
		links = append(links, storage.LinkFromRecord(r))
	}
	return links, nil
}

// Put implements storage.Writer. Existing records are replaced.
func (s *Store) Put(ctx context.Context, rec storage.Record) error {
	if err := storage.ValidateRecord(rec); err != nil {
		return err
	}
	t, _ := tableFor(rec.UUID())

	values, err := recordValues(rec, t)
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.UUID(), err)
	}

	updates := make([]string, 0, len(t.columns)-1)
	for _, c := range t.columns[1:] {
		updates = append(updates, c.name+" = excluded."+c.name)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (uuid) DO UPDATE SET %s",
		t.name,
		t.columnList(),
		strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", "),
		strings.Join(updates, ", "),
	)

	_, err = s.pool.Primary().ExecContext(ctx, s.dialect.Rebind(stmt), values...)
	s.observe("put", err)
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.UUID(), err)
	}
	return nil
}

// HealthCheck implements storage.HealthChecker
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

// Close implements storage.Storage
func (s *Store) Close() error {
	return s.pool.Close()
}

// restrict adds the visibility predicate to q. It returns false when the
// filter permits nothing, in which case no query needs to run.
func (s *Store) restrict(f visibility.Filter, q *query) bool {
	if f.Admin {
		return true
	}
	readers := make([]string, 0, len(f.Readers))
	for _, r := range f.Readers {
		if r != "" {
			readers = append(readers, r)
		}
	}
	if len(readers) == 0 {
		return false
	}

	owner, ownerArgs := s.dialect.AnyOf(storage.FieldOwnerUUID, readers)
	self, selfArgs := s.dialect.AnyOf(storage.FieldUUID, readers)
	q.where("("+owner+" OR "+self+")", append(ownerArgs, selfArgs...)...)
	return true
}

func (s *Store) selectRecords(ctx context.Context, op string, t table, q *query, orderBy string) ([]storage.Record, error) {
	stmt := "SELECT " + t.columnList() + " FROM " + t.name + q.sql()
	if orderBy != "" {
		stmt += " ORDER BY " + orderBy
	}

	recs, err := s.queryRecords(ctx, t, s.dialect.Rebind(stmt), q.args)
	s.observe(op, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", s.dialect.Name(), op, err)
	}
	return recs, nil
}

func (s *Store) queryRecords(ctx context.Context, t table, stmt string, args []any) ([]storage.Record, error) {
	rows, err := s.pool.Replica().QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows, t)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) observe(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveQuery(op, err)
	}
}

type query struct {
	clauses []string
	args    []any
}

func (q *query) where(clause string, args ...any) {
	q.clauses = append(q.clauses, clause)
	q.args = append(q.args, args...)
}

func (q *query) sql() string {
	if len(q.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.clauses, " AND ")
}

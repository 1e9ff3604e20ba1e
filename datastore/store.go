// Package datastore holds fetched data for one conversation. Records are
// addressed by id and, secondarily, by a content hash over their schema and
// source, so the same logical dataset is never held twice.
package datastore

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Source types.
const (
	SourceSQLite  = "sqlite"
	SourceDerived = "derived"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Source describes where a record's rows came from.
type Source struct {
	Type    string `json:"type"`
	Dataset string `json:"dataset,omitempty"`
	Query   string `json:"query,omitempty"`
}

// Record is one materialized result of a fetch or transform pipeline.
type Record struct {
	ID              string
	ContentHash     string
	Columns         []Column
	Rows            [][]any
	Source          Source
	Provenance      map[string]any
	TotalAvailable  int
	CurrentlyLoaded int
}

// ColumnIndex returns the position of the named column, or -1.
func (r Record) ColumnIndex(name string) int {
	return slices.IndexFunc(r.Columns, func(c Column) bool { return c.Name == name })
}

// Preview is the row-capped view of a record shown to the model.
type Preview struct {
	ID              string   `json:"id"`
	Columns         []Column `json:"columns"`
	Rows            [][]any  `json:"rows"`
	Source          Source   `json:"source"`
	TotalAvailable  int      `json:"total_available"`
	CurrentlyLoaded int      `json:"currently_loaded"`
	Truncated       bool     `json:"truncated,omitempty"`
}

// Store is safe for concurrent readers; callers still serialize turns.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	byHash  map[string]string
	order   []string
}

func New() *Store {
	return &Store{
		records: make(map[string]Record),
		byHash:  make(map[string]string),
	}
}

func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return clone(rec), true
}

// Upsert stores rec and returns the stored copy, whose ID is the effective
// id. A record with the same id is replaced in place. Failing that, a record
// with the same content hash is replaced in place and keeps its id.
// Otherwise rec is inserted, getting a fresh id if it has none.
func (s *Store) Upsert(rec Record) Record {
	rec = clone(rec)
	rec.ContentHash = ContentHash(rec)
	if rec.CurrentlyLoaded == 0 {
		rec.CurrentlyLoaded = len(rec.Rows)
	}
	if rec.TotalAvailable < rec.CurrentlyLoaded {
		rec.TotalAvailable = rec.CurrentlyLoaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.records[rec.ID]; ok && rec.ID != "" {
		delete(s.byHash, old.ContentHash)
		if other, ok := s.byHash[rec.ContentHash]; ok && other != rec.ID {
			s.removeLocked(other)
		}
		s.records[rec.ID] = rec
		s.byHash[rec.ContentHash] = rec.ID
		return clone(rec)
	}

	if existing, ok := s.byHash[rec.ContentHash]; ok {
		rec.ID = existing
		s.records[existing] = rec
		return clone(rec)
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	s.records[rec.ID] = rec
	s.byHash[rec.ContentHash] = rec.ID
	s.order = append(s.order, rec.ID)
	return clone(rec)
}

// FindByHash returns the record holding the given content hash.
func (s *Store) FindByHash(hash string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[hash]
	if !ok {
		return Record{}, false
	}
	return clone(s.records[id]), true
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false
	}
	s.removeLocked(id)
	return true
}

func (s *Store) removeLocked(id string) {
	rec := s.records[id]
	delete(s.records, id)
	if s.byHash[rec.ContentHash] == id {
		delete(s.byHash, rec.ContentHash)
	}
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
}

// List returns all records in insertion order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.records[id]))
	}
	return out
}

// Latest returns the most recently inserted record.
func (s *Store) Latest() (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return Record{}, false
	}
	return clone(s.records[s.order[len(s.order)-1]]), true
}

// ListPreview returns every record with at most maxRows rows. All columns
// are kept. A negative maxRows means no cap.
func (s *Store) ListPreview(maxRows int) []Preview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Preview, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, NewPreview(s.records[id], maxRows))
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// NewPreview builds the row-capped view of rec.
func NewPreview(rec Record, maxRows int) Preview {
	rows := rec.Rows
	truncated := false
	if maxRows >= 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
		truncated = true
	}
	return Preview{
		ID:              rec.ID,
		Columns:         slices.Clone(rec.Columns),
		Rows:            append([][]any{}, rows...),
		Source:          rec.Source,
		TotalAvailable:  rec.TotalAvailable,
		CurrentlyLoaded: rec.CurrentlyLoaded,
		Truncated:       truncated,
	}
}

func clone(rec Record) Record {
	rec.Columns = slices.Clone(rec.Columns)
	rec.Rows = slices.Clone(rec.Rows)
	return rec
}

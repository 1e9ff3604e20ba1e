package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashIgnoresRows(t *testing.T) {
	base := Record{
		Columns: []Column{{Name: "region", Type: "string"}},
		Source:  Source{Type: SourceSQLite, Dataset: "sales", Query: "SELECT region FROM sales"},
	}
	withRows := base
	withRows.Rows = [][]any{{"EMEA"}, {"APAC"}}
	withRows.TotalAvailable = 900
	withRows.ID = "different-id"

	assert.Equal(t, ContentHash(base), ContentHash(withRows))
	assert.Len(t, ContentHash(base), 64)
}

func TestContentHashSensitivity(t *testing.T) {
	base := Record{
		Columns:    []Column{{Name: "region", Type: "string"}},
		Source:     Source{Type: SourceDerived, Dataset: "sales"},
		Provenance: map[string]any{"parent": "p1", "operations": []any{map[string]any{"op": "sort"}}},
	}

	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{"column name", func(r *Record) { r.Columns = []Column{{Name: "country", Type: "string"}} }},
		{"column type", func(r *Record) { r.Columns = []Column{{Name: "region", Type: "number"}} }},
		{"source type", func(r *Record) { r.Source.Type = SourceSQLite }},
		{"source query", func(r *Record) { r.Source.Query = "SELECT 1" }},
		{"provenance", func(r *Record) { r.Provenance = map[string]any{"parent": "p2"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := base
			changed.Columns = append([]Column(nil), base.Columns...)
			tt.mutate(&changed)
			assert.NotEqual(t, ContentHash(base), ContentHash(changed))
		})
	}
}

func TestContentHashStableAcrossMapOrder(t *testing.T) {
	a := Record{Provenance: map[string]any{"a": 1, "b": 2, "c": 3}}
	b := Record{Provenance: map[string]any{"c": 3, "b": 2, "a": 1}}
	assert.Equal(t, ContentHash(a), ContentHash(b))

	// nil and empty provenance describe the same thing
	assert.Equal(t, ContentHash(Record{}), ContentHash(Record{Provenance: map[string]any{}}))
}

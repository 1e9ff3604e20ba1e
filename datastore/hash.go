package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashInput is the canonical, row-free view of a record. encoding/json sorts
// map keys, so equal inputs always serialize to equal bytes.
type hashInput struct {
	Columns    []Column       `json:"columns"`
	SourceType string         `json:"source_type"`
	Source     Source         `json:"source"`
	Provenance map[string]any `json:"provenance,omitempty"`
}

// ContentHash digests the fields that define what a record is: its schema,
// where it came from and how it was derived. Row data and counts are left
// out, so re-fetching the same query with a different limit yields the same
// hash.
func ContentHash(rec Record) string {
	in := hashInput{
		Columns:    rec.Columns,
		SourceType: rec.Source.Type,
		Source:     rec.Source,
		Provenance: rec.Provenance,
	}
	if in.Columns == nil {
		in.Columns = []Column{}
	}

	data, err := json.Marshal(in)
	if err != nil {
		// Provenance holding something unmarshalable still needs a stable key.
		data = fmt.Appendf(nil, "%#v", in)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

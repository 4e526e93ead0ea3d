/*
Package dataset provides the core data model for the insight engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for working with
  ERP records whose schema is not fixed: which fields a record carries varies
  from fetch to fetch. Records are modeled as field maps with explicit
  present/absent accessors rather than fixed structs.

KEY CONCEPTS IN THIS FILE (record.go):
  - Record: A single ERP row, field name -> value
  - Composite references: Odoo-style [id, label] pairs, normalized to scalars
  - Fingerprints: Stable hashes used to deduplicate id-less records

DESIGN PRINCIPLES:
  1. Optional schema: every accessor returns (value, ok) - no field is assumed
  2. Normalization at the edge: composite values are flattened once, at merge
     or ingestion time, never branched on throughout the codebase
  3. Day precision: all dates round-trip through the "2006-01-02" form

SEE ALSO:
  - collection.go: Named record sequences and the merge algorithm
  - snapshot.go: The six-collection dataset snapshot
  - day.go: Day-precision time type
*/
package dataset

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// =============================================================================
// RECORD - One ERP row with a dynamic field set
// =============================================================================

// Record is a single source record. Field sets vary across fetches; absent
// and nil fields are equivalent.
type Record map[string]any

// Has reports whether the field is present with a non-nil value.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// String returns the field as a string.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns the field as a float64, converting integer forms.
func (r Record) Float(field string) (float64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Day returns the field as a day-precision date. Accepts Day, time.Time and
// the textual forms the source emits ("2006-01-02", "2006-01-02 15:04:05",
// RFC 3339).
func (r Record) Day(field string) (Day, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return Day{}, false
	}
	switch t := v.(type) {
	case Day:
		return t, true
	case time.Time:
		return DayFrom(t), true
	case string:
		d, err := ParseDay(t)
		if err != nil {
			return Day{}, false
		}
		return d, true
	default:
		return Day{}, false
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// =============================================================================
// COMPOSITE REFERENCES - Odoo-style [id, label] pairs
// =============================================================================

// DecodeRef decodes a composite reference value into its id and display
// label. The source encodes many-to-one links as a two-element [id, label]
// pair; after merge normalization the same pair may arrive as its JSON string
// form. Scalar values decode to themselves with an empty label.
func DecodeRef(v any) (id any, label string, ok bool) {
	switch ref := v.(type) {
	case nil:
		return nil, "", false
	case []any:
		if len(ref) == 0 {
			return nil, "", false
		}
		id = ref[0]
		if len(ref) > 1 {
			label, _ = ref[1].(string)
		}
		return id, label, true
	case string:
		if strings.HasPrefix(ref, "[") {
			var parts []any
			if err := json.Unmarshal([]byte(ref), &parts); err == nil {
				return DecodeRef(parts)
			}
		}
		return ref, "", true
	default:
		return ref, "", true
	}
}

// ScalarID reduces an identifier value to a stable scalar string. Composite
// references reduce to their id element; numeric ids format without a
// fractional part.
func ScalarID(v any) (string, bool) {
	id, _, ok := DecodeRef(v)
	if !ok || id == nil {
		return "", false
	}
	switch n := id.(type) {
	case string:
		return n, n != ""
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	default:
		return fmt.Sprintf("%v", n), true
	}
}

// =============================================================================
// NORMALIZATION AND FINGERPRINTS
// =============================================================================

// normalized returns a copy of the record with composite (list-like) values
// flattened to their JSON string form so they can serve as merge and grouping
// keys, and with nil fields stripped.
func (r Record) normalized() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if v == nil {
			continue
		}
		if list, ok := v.([]any); ok {
			buf, err := json.Marshal(list)
			if err != nil {
				out[k] = fmt.Sprintf("%v", list)
				continue
			}
			out[k] = string(buf)
			continue
		}
		out[k] = v
	}
	return out
}

// fingerprint hashes the record's non-nil fields in a stable order. Two
// records with the same fields and values produce the same fingerprint, which
// is the dedup key for collections without an id column.
func (r Record) fingerprint() (uint64, error) {
	buf, err := json.Marshal(r.normalized())
	if err != nil {
		return 0, fmt.Errorf("fingerprint record: %w", err)
	}
	return xxhash.Sum64(buf), nil
}

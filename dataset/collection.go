/*
collection.go - Named record sequences and the merge algorithm

PURPOSE:
  A Collection is one entity type's records (projects, employees, ...).
  Merge folds an incrementally fetched delta into a previously cached
  collection without duplication or loss.

MERGE CONTRACT:
  1. Composite field values are normalized to stable strings
  2. Both sides are reindexed to the union of their field names
  3. Fields that are entirely absent on both sides are dropped
  4. With an id column on both sides: concat old then delta, dedup by id,
     the delta record wins (last-write-wins per identity)
  5. Without an id column: dedup by whole-record fingerprint, which
     tolerates re-fetching literally unchanged rows

  Any failure aborts the merge; the caller keeps the prior collection.
*/
package dataset

// FieldID is the identity column shared by most source models.
const FieldID = "id"

// Collection is a named, ordered sequence of records for one entity type.
type Collection struct {
	Name    string
	Records []Record
}

// Len returns the number of records.
func (c Collection) Len() int { return len(c.Records) }

// IsEmpty reports whether the collection has no records.
func (c Collection) IsEmpty() bool { return len(c.Records) == 0 }

// Fields returns the set of field names that carry a non-nil value on at
// least one record, in first-seen order.
func (c Collection) Fields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, r := range c.Records {
		for k, v := range r {
			if v == nil || seen[k] {
				continue
			}
			seen[k] = true
			fields = append(fields, k)
		}
	}
	return fields
}

// HasField reports whether any record carries a non-nil value for the field.
func (c Collection) HasField(field string) bool {
	for _, r := range c.Records {
		if r.Has(field) {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy: records are cloned, values shared.
func (c Collection) Clone() Collection {
	out := Collection{Name: c.Name, Records: make([]Record, len(c.Records))}
	for i, r := range c.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// =============================================================================
// MERGE
// =============================================================================

// MergeCollections folds delta into old per the merge contract above.
func MergeCollections(old, delta Collection) (Collection, error) {
	// Steps 1-3: normalize composites, reindex to the union field set,
	// drop all-nil fields. With map-backed records, normalization already
	// strips nil fields, so reindexing reduces to keeping the union of
	// whatever survives on either side.
	oldNorm := normalizeAll(old.Records)
	deltaNorm := normalizeAll(delta.Records)

	combined := make([]Record, 0, len(oldNorm)+len(deltaNorm))
	combined = append(combined, oldNorm...)
	combined = append(combined, deltaNorm...)

	merged := Collection{Name: old.Name}
	if merged.Name == "" {
		merged.Name = delta.Name
	}

	// Step 4: identity-based dedup, delta wins.
	if hasIDField(oldNorm) && hasIDField(deltaNorm) {
		index := make(map[string]int)
		for _, r := range combined {
			id, ok := ScalarID(r[FieldID])
			if !ok {
				// Records without a usable id pass through untouched.
				merged.Records = append(merged.Records, r)
				continue
			}
			if at, dup := index[id]; dup {
				merged.Records[at] = r
				continue
			}
			index[id] = len(merged.Records)
			merged.Records = append(merged.Records, r)
		}
		return merged, nil
	}

	// Step 5: fingerprint dedup for id-less collections.
	seen := make(map[uint64]bool)
	for _, r := range combined {
		fp, err := r.fingerprint()
		if err != nil {
			return Collection{}, err
		}
		if seen[fp] {
			continue
		}
		seen[fp] = true
		merged.Records = append(merged.Records, r)
	}
	return merged, nil
}

func normalizeAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.normalized()
	}
	return out
}

func hasIDField(records []Record) bool {
	if len(records) == 0 {
		return true // an empty side never vetoes identity-based dedup
	}
	for _, r := range records {
		if r.Has(FieldID) {
			return true
		}
	}
	return false
}

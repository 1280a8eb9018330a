package chunkdefs

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"nbcache/internal/notebook/location"
)

// Definition is one chunk definition as the client sent it. Only chunk_id is
// interpreted here; every other field is carried verbatim.
type Definition map[string]any

// ChunkID returns the chunk_id field, or "" when it is missing or not a string.
func (d Definition) ChunkID() string {
	id, _ := d["chunk_id"].(string)
	return strings.TrimSpace(id)
}

// ChunkIDs extracts the chunk ids of defs, skipping entries without one.
func ChunkIDs(defs []Definition) []string {
	ids := make([]string, 0, len(defs))
	for _, d := range defs {
		if id := d.ChunkID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Check rejects definitions whose chunk id cannot name a cache file.
// Definitions without a chunk id are accepted and ignored elsewhere.
func Check(defs []Definition) error {
	for _, d := range defs {
		if id := d.ChunkID(); id != "" {
			if err := location.CheckID("chunk_id", id); err != nil {
				return err
			}
		}
	}
	return nil
}

// StaleIDs returns the ids present in oldDefs but absent from newDefs,
// sorted for deterministic cleanup order. Ids that are not a single path
// element are never reported.
func StaleIDs(oldDefs, newDefs []Definition) []string {
	keep := make(map[string]struct{}, len(newDefs))
	for _, id := range ChunkIDs(newDefs) {
		keep[id] = struct{}{}
	}
	seen := map[string]struct{}{}
	var stale []string
	for _, id := range ChunkIDs(oldDefs) {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if location.CheckID("chunk_id", id) != nil {
			continue
		}
		seen[id] = struct{}{}
		stale = append(stale, id)
	}
	sort.Strings(stale)
	return stale
}

// Equal compares two definition sequences element-wise after normalizing both
// through JSON, so literal ints and decoded float64s compare equal.
func Equal(a, b []Definition) bool {
	if len(a) != len(b) {
		return false
	}
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(defs []Definition) ([]Definition, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	var out []Definition
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

package hpack

import "fmt"

// entryOverhead is the constant RFC 7541 section 4.1 adds to each dynamic
// table entry's size accounting, grounded on zeus_hpack_table_add's
// entry_size = name_len + value_len + 32 in the original's hpack.c.
const entryOverhead = 32

// DynamicTable is the per-connection HPACK dynamic table: newest entry at
// index 0, evicted from the tail once the running size exceeds maxSize.
type DynamicTable struct {
	entries []pair
	size    int
	maxSize int
}

// NewDynamicTable creates a table capped at maxSize octets (the
// SETTINGS_HEADER_TABLE_SIZE default is 4096 per spec.md section 4.6).
func NewDynamicTable(maxSize int) *DynamicTable {
	return &DynamicTable{maxSize: maxSize}
}

func entrySize(name, value string) int {
	return len(name) + len(value) + entryOverhead
}

// Add inserts a new entry at index 0, evicting from the tail until the
// table fits within maxSize. An entry larger than maxSize by itself empties
// the table entirely and is not stored, per RFC 7541 section 4.4.
func (t *DynamicTable) Add(name, value string) {
	sz := entrySize(name, value)
	if sz > t.maxSize {
		t.entries = nil
		t.size = 0
		return
	}
	t.entries = append([]pair{{name, value}}, t.entries...)
	t.size += sz
	t.evict()
}

func (t *DynamicTable) evict() {
	for t.size > t.maxSize && len(t.entries) > 0 {
		last := t.entries[len(t.entries)-1]
		t.entries = t.entries[:len(t.entries)-1]
		t.size -= entrySize(last.name, last.value)
	}
}

// SetMaxSize applies a SETTINGS_HEADER_TABLE_SIZE (or dynamic table size
// update) change, evicting entries if the new bound is smaller.
func (t *DynamicTable) SetMaxSize(maxSize int) {
	t.maxSize = maxSize
	t.evict()
}

// Len returns the number of entries currently held.
func (t *DynamicTable) Len() int {
	return len(t.entries)
}

// resolve looks up a 1-based HPACK index, where indices 1..StaticTableSize
// address the static table and everything beyond addresses the dynamic
// table (newest first), per spec.md section 4.6's index arithmetic.
func (t *DynamicTable) resolve(index int) (pair, error) {
	if index < 1 {
		return pair{}, fmt.Errorf("hpack: index %d out of range", index)
	}
	if index <= StaticTableSize {
		return staticTable[index-1], nil
	}
	dynIdx := index - StaticTableSize - 1
	if dynIdx < 0 || dynIdx >= len(t.entries) {
		return pair{}, fmt.Errorf("hpack: index %d out of range", index)
	}
	return t.entries[dynIdx], nil
}

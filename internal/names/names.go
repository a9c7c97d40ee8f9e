// Package names interns identifier strings into stable integer ids and
// hands out disjoint error-code ranges on request.
package names

// ID identifies an interned string. AbsentID is returned by Query when a
// string has never been seen, and by LookupOne for the empty string.
type ID int

const AbsentID ID = -1

// Table is an append-only, ordered set of distinct strings.
type Table struct {
	strs     []string
	index    map[string]ID
	errCount int
}

func New() *Table {
	return &Table{index: make(map[string]ID)}
}

// Lookup returns the id for each string in names, interning any string
// not already present. Empty strings are silently dropped: no id is
// produced for them and they do not appear in the returned slice.
func (t *Table) Lookup(strs []string) []ID {
	ids := make([]ID, 0, len(strs))
	for _, s := range strs {
		if s == "" {
			continue
		}
		ids = append(ids, t.intern(s))
	}
	return ids
}

// LookupOne is a convenience wrapper around Lookup for the common case
// of interning a single name.
func (t *Table) LookupOne(s string) ID {
	ids := t.Lookup([]string{s})
	if len(ids) == 0 {
		return AbsentID
	}
	return ids[0]
}

func (t *Table) intern(s string) ID {
	if id, ok := t.index[s]; ok {
		return id
	}
	id := ID(len(t.strs))
	t.strs = append(t.strs, s)
	t.index[s] = id
	return id
}

// Query returns the id bound to s, or AbsentID if s was never interned.
func (t *Table) Query(s string) ID {
	if id, ok := t.index[s]; ok {
		return id
	}
	return AbsentID
}

// String returns the string bound to id, or "" with ok=false if id is
// out of range. A negative id is a caller bug, not a data condition, and
// panics.
func (t *Table) String(id ID) (string, bool) {
	if id < 0 {
		panic("names: negative id passed to String")
	}
	if int(id) >= len(t.strs) {
		return "", false
	}
	return t.strs[id], true
}

// ErrorCodes returns a fresh, contiguous, half-open range of n unique
// error codes and advances the allocator past them, so that ranges from
// successive calls never overlap. The device, network and monitor error
// enums are fixed iota constants and do not draw from this allocator.
func (t *Table) ErrorCodes(n int) []int {
	base := t.errCount
	t.errCount += n
	codes := make([]int, n)
	for i := range codes {
		codes[i] = base + i
	}
	return codes
}

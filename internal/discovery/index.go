package discovery

import (
	"sort"

	"findb/internal/domain"
)

// Index is the insert-only set of symbols known to exist.
// Every operation normalizes to upper case.
type Index struct {
	symbols map[string]struct{}
}

// NewIndex creates an index holding the given symbols.
func NewIndex(symbols []string) *Index {
	idx := &Index{symbols: make(map[string]struct{}, len(symbols))}
	idx.AddAll(symbols)
	return idx
}

// Contains reports whether symbol is known.
func (i *Index) Contains(symbol string) bool {
	_, ok := i.symbols[domain.NormalizeSymbol(symbol)]
	return ok
}

// Add inserts symbol and reports whether it was new.
func (i *Index) Add(symbol string) bool {
	s := domain.NormalizeSymbol(symbol)
	if s == "" {
		return false
	}
	if _, ok := i.symbols[s]; ok {
		return false
	}
	i.symbols[s] = struct{}{}
	return true
}

// AddAll inserts symbols and returns how many were new.
func (i *Index) AddAll(symbols []string) int {
	added := 0
	for _, s := range symbols {
		if i.Add(s) {
			added++
		}
	}
	return added
}

// Len returns the number of known symbols.
func (i *Index) Len() int {
	return len(i.symbols)
}

// Snapshot returns all known symbols, sorted.
func (i *Index) Snapshot() []string {
	out := make([]string, 0, len(i.symbols))
	for s := range i.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

package workcode

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Directory is the static contributor name to id table. Several spellings may
// map to one id.
type Directory struct {
	byKey   map[string]int
	names   map[int]string
	highest int
}

// NewDirectory builds a Directory from name to id entries. The first name seen
// for an id (in sorted order) becomes its display name.
func NewDirectory(entries map[string]int) *Directory {
	d := &Directory{
		byKey:   make(map[string]int, len(entries)),
		names:   make(map[int]string),
		highest: -1,
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id := entries[name]
		key := NameKey(name)
		if key == "" {
			continue
		}
		d.byKey[key] = id
		if _, ok := d.names[id]; !ok {
			d.names[id] = name
		}
		if id > d.highest {
			d.highest = id
		}
	}
	return d
}

// Lookup returns the id registered for name.
func (d *Directory) Lookup(name string) (int, bool) {
	if d == nil {
		return 0, false
	}
	id, ok := d.byKey[NameKey(name)]
	return id, ok
}

// NameFor returns a display name for id.
func (d *Directory) NameFor(id int) (string, bool) {
	if d == nil {
		return "", false
	}
	name, ok := d.names[id]
	return name, ok
}

// Highest returns the largest id in the table, or -1 when empty.
func (d *Directory) Highest() int {
	if d == nil {
		return -1
	}
	return d.highest
}

// Len reports the number of distinct spellings.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byKey)
}

// NameKey folds case, strips accents and collapses whitespace so that
// "Lí-Lí Octave" and "LI-LI OCTAVE" share a key.
func NameKey(name string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		stripped = name
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}

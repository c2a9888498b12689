package workcode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"splitsheet/internal/workcode"
)

func TestDirectoryMatchesSpellingVariants(t *testing.T) {
	dir := workcode.NewDirectory(map[string]int{
		"Lí-Lí Octave":                 0,
		"LI-LI OCTAVE":                 0,
		"LIANNE MARILDA MARISA LETANG": 0,
		"JCro":                         1,
		"Princess Trinidad":            4,
	})

	for _, name := range []string{"li-li octave", "Li-Li  Octave", "LÍ-LÍ OCTAVE", "Lianne Marilda Marisa Letang"} {
		id, ok := dir.Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, 0, id, name)
	}
	_, ok := dir.Lookup("Nobody")
	assert.False(t, ok)

	assert.Equal(t, 4, dir.Highest())
	name, ok := dir.NameFor(1)
	assert.True(t, ok)
	assert.Equal(t, "JCro", name)
}

func TestEmptyDirectory(t *testing.T) {
	var dir *workcode.Directory
	assert.Equal(t, -1, dir.Highest())
	assert.Equal(t, -1, workcode.NewDirectory(nil).Highest())
	assert.Equal(t, 0, dir.Len())
}

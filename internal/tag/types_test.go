package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusBorrowed.Valid())
	assert.True(t, StatusInLibrary.Valid())
	assert.True(t, StatusInReturnStation.Valid())

	assert.False(t, Status("").Valid())
	assert.False(t, Status("checked_out").Valid())
}

func TestReaderKindValid(t *testing.T) {
	assert.True(t, KindShelf.Valid())
	assert.True(t, KindReturnStation.Valid())

	assert.False(t, ReaderKind("").Valid())
	assert.False(t, ReaderKind("kiosk").Valid())
}

func TestReaderKindStatusFor(t *testing.T) {
	assert.Equal(t, StatusInLibrary, KindShelf.StatusFor())
	assert.Equal(t, StatusInReturnStation, KindReturnStation.StatusFor())
}

func TestReaderKindLabel(t *testing.T) {
	assert.Equal(t, "shelf", KindShelf.Label())
	assert.Equal(t, "return station", KindReturnStation.Label())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "Fiction A", NormalizeName("  Fiction A\t"))
	// Case is preserved for display names.
	assert.Equal(t, "fiction a", NormalizeName("fiction a"))
}

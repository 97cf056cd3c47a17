package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_ValidateStoreName(t *testing.T) {
	v := NewValidator()

	valid := []string{"memos", "a", "A-Z_09", "store-1", strings.Repeat("x", MaxNameSize)}
	for _, name := range valid {
		assert.NoError(t, v.ValidateStoreName(name), "name %q", name)
	}

	invalid := []string{
		"",
		"a b",
		"a/b",
		"a.b",
		"../escape",
		"name\x00",
		"emoji☃",
		strings.Repeat("x", MaxNameSize+1),
	}
	for _, name := range invalid {
		assert.Error(t, v.ValidateStoreName(name), "name %q", name)
	}
}

func TestValidator_ValidateRecordID(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateRecordID("r_001"))
	assert.Error(t, v.ValidateRecordID(""))
	assert.Error(t, v.ValidateRecordID("a/b"))
}

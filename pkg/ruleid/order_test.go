package ruleid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSort_NumericNotLexical(t *testing.T) {
	ids := []string{"V-9", "V-100", "V-20"}
	Sort(ids)
	assert.Equal(t, []string{"V-9", "V-20", "V-100"}, ids)
}

func TestSort_UnparsableLast(t *testing.T) {
	ids := []string{"weird", "V-3", "SV-2r1_rule", "V-", "V-1.a", "V-1"}
	Sort(ids)
	assert.Equal(t, []string{"V-1", "V-1.a", "SV-2r1_rule", "V-3", "V-", "weird"}, ids)
}

func TestSort_CaseInsensitiveTieBreak(t *testing.T) {
	ids := []string{"V-5.b", "v-5.A", "V-5"}
	Sort(ids)
	assert.Equal(t, []string{"V-5", "v-5.A", "V-5.b"}, ids)
}

func TestNumericKey(t *testing.T) {
	tests := []struct {
		input  string
		value  uint64
		parsed bool
	}{
		{"V-225223", 225223, true},
		{"SV-225223r961038_rule", 225223, true},
		{"sv-7", 7, true},
		{"V-12.a", 12, true},
		{"V-", 0, false},
		{"", 0, false},
		{"V-99999999999999999999999", 0, false},
	}

	for _, tc := range tests {
		value, parsed := NumericKey(tc.input)
		assert.Equal(t, tc.parsed, parsed, "NumericKey(%q) parsed", tc.input)
		assert.Equal(t, tc.value, value, "NumericKey(%q) value", tc.input)
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"V-2", "v-2", " ", "V-10", "V-1", "V-10"})
	assert.Equal(t, []string{"V-1", "V-2", "V-10"}, got)
}

func TestSet(t *testing.T) {
	set := NewSet("V-1", "v-1", "V-2")
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has("V-1"))
	assert.True(t, set.Has(" v-2 "))
	assert.False(t, set.Has("V-3"))
	assert.Equal(t, []string{"V-1", "V-2"}, set.Values())
}

func TestBaseKeys(t *testing.T) {
	set := BaseKeys([]string{"SV-1r1_rule", "V-1.a", "V-3", "garbage", ""})
	assert.Equal(t, []string{"V-1", "V-3"}, set.Values())
}

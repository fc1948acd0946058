package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name        string
		source      []string
		converted   []string
		wantMissing []string
		wantMatched []string
		wantAdded   []string
	}{
		{
			name:        "variant and new rule are added",
			source:      []string{"SV-1r1_rule", "SV-2r1_rule"},
			converted:   []string{"V-1", "V-2.a", "V-3"},
			wantMissing: []string{},
			wantMatched: []string{"V-1", "V-2"},
			wantAdded:   []string{"V-2.a", "V-3"},
		},
		{
			name:        "missing in natural order",
			source:      []string{"V-100", "V-9", "V-20"},
			converted:   []string{"V-20"},
			wantMissing: []string{"V-9", "V-100"},
			wantMatched: []string{"V-20"},
			wantAdded:   []string{},
		},
		{
			name:        "case insensitive and deduplicated",
			source:      []string{"v-5", "V-5", "SV-5r2_rule"},
			converted:   []string{"v-5", "V-5.b", "V-5.B", " V-5 "},
			wantMissing: []string{},
			wantMatched: []string{"V-5"},
			wantAdded:   []string{"V-5.b"},
		},
		{
			name:        "unmappable ids ignored on both sides",
			source:      []string{"CCI-000366", "SV-7r1_rule"},
			converted:   []string{"X-1", "", "V-7"},
			wantMissing: []string{},
			wantMatched: []string{"V-7"},
			wantAdded:   []string{},
		},
		{
			name:        "empty inputs",
			wantMissing: []string{},
			wantMatched: []string{},
			wantAdded:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Compare(tt.source, tt.converted)
			assert.Equal(t, tt.wantMissing, result.Missing)
			assert.Equal(t, tt.wantMatched, result.Matched)
			assert.Equal(t, tt.wantAdded, result.Added)
		})
	}
}

func TestCompare_Partition(t *testing.T) {
	source := []string{"SV-10r1_rule", "SV-11r1_rule", "SV-12r1_rule", "V-13"}
	converted := []string{"V-11", "V-13.a", "V-13", "V-40"}

	result := Compare(source, converted)

	matched := map[string]bool{}
	for _, id := range result.Matched {
		matched[id] = true
	}
	for _, id := range result.Missing {
		assert.False(t, matched[id], "%s both missing and matched", id)
	}

	union := append(append([]string{}, result.Missing...), result.Matched...)
	assert.ElementsMatch(t, []string{"V-10", "V-11", "V-12", "V-13"}, union)
	assert.Equal(t, Summary{Source: 4, Missing: 2, Matched: 2, Added: 2}, result.Summary())
	assert.False(t, result.Identical())
}

func TestCompare_Identical(t *testing.T) {
	result := Compare([]string{"SV-1r1_rule"}, []string{"V-1"})
	assert.True(t, result.Identical())
	assert.Equal(t, "source=1 matched=1 missing=0 added=0", result.Summary().String())
}

const benchmark = `<?xml version="1.0" encoding="utf-8"?>
<Benchmark xmlns="http://checklists.nist.gov/xccdf/1.1">
  <Group id="V-1"><Rule id="SV-1r1_rule"/></Group>
  <Group id="V-2"><Rule id="SV-2r1_rule"/></Group>
</Benchmark>`

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	source := write(t, dir, "bench.xml", benchmark)
	converted := write(t, dir, "conv.xml", `<DISASTIG><Rule id="V-1"/><Rule id="V-2.a"/><Rule id="V-3"/></DISASTIG>`)

	result, err := CompareFiles(source, converted)
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, source, result.SourcePath)
	assert.Equal(t, []string{converted}, result.ConvertedPaths)
	assert.Equal(t, []string{}, result.Missing)
	assert.Equal(t, []string{"V-1", "V-2"}, result.Matched)
	assert.Equal(t, []string{"V-2.a", "V-3"}, result.Added)
}

func TestCompareFiles_MissingConvertedKeepsSource(t *testing.T) {
	dir := t.TempDir()
	source := write(t, dir, "bench.xml", benchmark)

	result, err := CompareFiles(source, filepath.Join(dir, "absent.xml"))
	require.Error(t, err)
	assert.Len(t, result.Warnings, 1)
	assert.Equal(t, []string{"V-1", "V-2"}, result.Missing)
}

func TestCompareFolder(t *testing.T) {
	dir := t.TempDir()
	source := write(t, dir, "bench.xml", benchmark)

	convertedDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(convertedDir, 0755))
	write(t, convertedDir, "Foo-MS-1.1.xml", `<DISASTIG><Rule id="V-1"/></DISASTIG>`)
	write(t, convertedDir, "Foo-DC-1.1.xml", `<DISASTIG><Rule id="V-2"/></DISASTIG>`)
	write(t, convertedDir, "Foo-MS-1.1.org.default.xml", `<OrganizationalSettings><OrganizationalSetting id="V-9"/></OrganizationalSettings>`)
	write(t, convertedDir, "settings.xml", `<OrganizationalSettings><OrganizationalSetting id="V-8"/></OrganizationalSettings>`)
	write(t, convertedDir, "notes.txt", `id="V-7"`)

	result, err := CompareAuto(source, convertedDir)
	require.NoError(t, err)
	assert.Len(t, result.ConvertedPaths, 2)
	assert.Equal(t, []string{"V-1", "V-2"}, result.Matched)
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Added)
}

func TestCompareFolder_MissingDirectory(t *testing.T) {
	_, err := CompareFolder("bench.xml", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

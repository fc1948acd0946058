package xccdf

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBenchmarkXML = `<?xml version="1.0" encoding="utf-8"?>
<Benchmark xmlns="http://checklists.nist.gov/xccdf/1.1" id="MS_Dot_Net_Framework">
  <title>Microsoft .Net Framework 4.0 Security Technical Implementation Guide</title>
  <Group id="V-225223">
    <title>SRG-APP-000456</title>
    <Rule id="SV-225223r961038_rule" severity="medium" weight="10.0">
      <title>Digital signatures assigned to strongly named assemblies must be verified.</title>
      <description>&lt;VulnDiscussion&gt;A strong name consists of the assembly's identity.&lt;/VulnDiscussion&gt;</description>
      <ident system="http://cyber.mil/legacy">V-7055</ident>
      <ident system="http://cyber.mil/cci">CCI-000366</ident>
      <fixtext fixref="F-26911r467888_fix">Remove registry key.</fixtext>
      <check system="C-26922r467887_chk">
        <check-content>Review the registry.</check-content>
      </check>
    </Rule>
  </Group>
  <Group id="V-225224">
    <Rule id="SV-225224r961038_rule" severity="high">
      <title>Second rule</title>
    </Rule>
  </Group>
</Benchmark>
`

const testConvertedXML = `<?xml version="1.0" encoding="utf-8"?>
<DISASTIG version="2.7" classification="UNCLASSIFIED" stigid="MS_Dot_Net_Framework">
  <RegistryRule dscresourcemodule="PSDscResources">
    <Rule id="V-225223" severity="medium" conversionstatus="pass" title="SRG-APP-000456" dscresource="Registry">
      <Description>Digital signatures...</Description>
      <Key>HKLM:\SOFTWARE\Microsoft\.NETFramework</Key>
    </Rule>
    <Rule id="V-225224.a" severity="high" title="Second">
      <LegacyId>V-7056</LegacyId>
    </Rule>
  </RegistryRule>
  <ManualRule>
    <Rule id="X-1">
      <RuleId>V-225230</RuleId>
      <VulnId> V-225231 </VulnId>
      <BenchmarkId>CCI-1</BenchmarkId>
    </Rule>
  </ManualRule>
</DISASTIG>
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "source", RoleSource.String())
	assert.Equal(t, "converted", RoleConverted.String())
	assert.Equal(t, "unknown", Role(9).String())
}

func TestExtractIDs_Source(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bench.xml", testBenchmarkXML)

	ids, err := ExtractIDs(path, RoleSource)
	require.NoError(t, err)
	assert.Equal(t, []string{"SV-225223r961038_rule", "SV-225224r961038_rule"}, ids)
}

func TestExtractIDs_SourcePrefixedNamespace(t *testing.T) {
	content := `<?xml version="1.0"?>
<cdf:Benchmark xmlns:cdf="http://checklists.nist.gov/xccdf/1.2">
  <cdf:Group id="V-1"><cdf:Rule id="SV-1r2_rule"/></cdf:Group>
  <cdf:Group id="V-2"><cdf:Rule id=" SV-2r2_rule "/></cdf:Group>
</cdf:Benchmark>`
	path := writeFile(t, t.TempDir(), "bench.xml", content)

	ids, err := ExtractIDs(path, RoleSource)
	require.NoError(t, err)
	assert.Equal(t, []string{"SV-1r2_rule", "SV-2r2_rule"}, ids)
}

func TestExtractIDs_SourceTruncatedFallsBackToTextScan(t *testing.T) {
	truncated := testBenchmarkXML[:strings.Index(testBenchmarkXML, "<title>Second rule")]
	path := writeFile(t, t.TempDir(), "bench.xml", truncated)

	ids, err := ExtractIDs(path, RoleSource)
	require.Error(t, err)

	var warning *ParseWarning
	require.True(t, errors.As(err, &warning))
	assert.Equal(t, RoleSource, warning.Role)
	assert.Greater(t, warning.Recovered, 0)

	assert.Contains(t, ids, "SV-225223r961038_rule")
	assert.Contains(t, ids, "SV-225224r961038_rule")
	assert.Contains(t, ids, "V-225224")
}

func TestExtractIDs_SourceGarbage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bench.xml", "<<<this is not xml")

	ids, err := ExtractIDs(path, RoleSource)
	assert.Error(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestExtractIDs_MissingFile(t *testing.T) {
	ids, err := ExtractIDs(filepath.Join(t.TempDir(), "absent.xml"), RoleSource)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.Empty(t, ids)

	ids, err = ExtractIDs(filepath.Join(t.TempDir(), "absent.xml"), RoleConverted)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.Empty(t, ids)
}

func TestExtractIDs_Converted(t *testing.T) {
	path := writeFile(t, t.TempDir(), "DotNetFramework-4-2.7.xml", testConvertedXML)

	ids, err := ExtractIDs(path, RoleConverted)
	require.NoError(t, err)
	assert.Equal(t, []string{"V-225223", "V-225224.a", "V-225230", "V-225231"}, ids)
}

func TestExtractIDs_ConvertedMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.xml", `<DISASTIG><Rule id="V-1">`)

	ids, err := ExtractIDs(path, RoleConverted)
	require.Error(t, err)

	var warning *ParseWarning
	assert.True(t, errors.As(err, &warning))
	assert.Equal(t, RoleConverted, warning.Role)
	assert.Empty(t, ids)
}

func TestScanRuleIDs_AttributeNameIgnoresCase(t *testing.T) {
	ids, err := ScanRuleIDs(strings.NewReader(`<Benchmark><Rule ID="SV-7r1_rule"/><rule Id=" SV-8r1_rule "/></Benchmark>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"SV-7r1_rule", "SV-8r1_rule"}, ids)
}

func TestExtractIDs_DeclaredWindows1252(t *testing.T) {
	content := "<?xml version=\"1.0\" encoding=\"windows-1252\"?>\n" +
		"<Benchmark><title>Caf\xe9 STIG</title><Group id=\"V-5\"><Rule id=\"SV-5r1_rule\"><title>R\xe9sum\xe9</title></Rule></Group></Benchmark>"
	path := writeFile(t, t.TempDir(), "cp1252.xml", content)

	ids, err := ExtractIDs(path, RoleSource)
	require.NoError(t, err)
	assert.Equal(t, []string{"SV-5r1_rule"}, ids)

	title, ok, err := FirstElementText(strings.NewReader(content), "title")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Café STIG", title)
}

func TestScanTextIDs(t *testing.T) {
	input := `<Group id="V-10"><Rule id='SV-10r1_rule' severity="low">
<Rule ID="sv-11r1_rule"/> <other id="CCI-1"/>`

	ids, err := ScanTextIDs(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"V-10", "SV-10r1_rule", "sv-11r1_rule"}, ids)
}

func TestIsOrganizationalSettings(t *testing.T) {
	dir := t.TempDir()
	org := writeFile(t, dir, "settings.xml", `<?xml version="1.0"?>
<!-- org settings -->
<OrganizationalSettings fullversion="2.7"><OrganizationalSetting id="V-1" /></OrganizationalSettings>`)
	rules := writeFile(t, dir, "rules.xml", testConvertedXML)

	isOrg, err := IsOrganizationalSettings(org)
	require.NoError(t, err)
	assert.True(t, isOrg)

	isOrg, err = IsOrganizationalSettings(rules)
	require.NoError(t, err)
	assert.False(t, isOrg)
}

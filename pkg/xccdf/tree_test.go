package xccdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_LocalNameLookups(t *testing.T) {
	document, err := Load([]byte(testBenchmarkXML))
	require.NoError(t, err)

	assert.True(t, document.Root.Is("benchmark"))
	groups := document.Root.ChildrenNamed("Group")
	require.Len(t, groups, 2)

	rule := groups[0].Child("Rule")
	require.NotNil(t, rule)
	assert.Same(t, groups[0], rule.Parent)

	id, ok := rule.Attr("id")
	assert.True(t, ok)
	assert.Equal(t, "SV-225223r961038_rule", id)

	severity, _ := rule.Attr("severity")
	assert.Equal(t, "medium", severity)

	assert.Equal(t, "Review the registry.", rule.Child("check").Child("check-content").Text())
	assert.Contains(t, rule.Child("description").Text(), "<VulnDiscussion>")
	assert.Len(t, rule.ChildrenNamed("ident"), 2)
}

func TestNode_InnerTextMixedContent(t *testing.T) {
	document, err := Load([]byte(`<a>one <b>two</b> three</a>`))
	require.NoError(t, err)

	assert.Equal(t, "one two three", document.Root.InnerText())
	assert.Equal(t, "one  three", document.Root.Text())
}

func TestDocument_Snippet(t *testing.T) {
	source := `<root><Rule id="V-1"><Key>x</Key></Rule><Rule id="V-2"/></root>`
	document, err := Load([]byte(source))
	require.NoError(t, err)

	first := document.Root.Find(func(n *Node) bool {
		id, _ := n.Attr("id")
		return id == "V-1"
	})
	require.NotNil(t, first)
	assert.Equal(t, `<Rule id="V-1"><Key>x</Key></Rule>`, document.Snippet(first))

	second := document.Root.Find(func(n *Node) bool {
		id, _ := n.Attr("id")
		return id == "V-2"
	})
	require.NotNil(t, second)
	assert.Equal(t, `<Rule id="V-2"/>`, document.Snippet(second))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]byte(""))
	assert.Error(t, err)

	_, err = Load([]byte(`<a><b></b>`))
	assert.Error(t, err)
}

func TestNode_NilSafe(t *testing.T) {
	var node *Node
	assert.Nil(t, node.Child("x"))
	assert.Empty(t, node.Text())
	assert.Empty(t, node.InnerText())
	_, ok := node.Attr("id")
	assert.False(t, ok)
}

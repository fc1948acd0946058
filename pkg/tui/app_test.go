package tui

import (
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/stigdiff/pkg/detail"
	"github.com/coolbeans/stigdiff/pkg/reconcile"
)

func sampleResult() reconcile.Result {
	return reconcile.Result{
		SourcePath: "/disa/U_MS_DotNet_Framework_4-0_STIG_V2R7_Manual-xccdf.xml",
		Missing:    []string{"V-4"},
		Matched:    []string{"V-1", "V-2"},
		Added:      []string{"V-2.a"},
	}
}

func fakeLookup(id string) (detail.RuleDetail, error) {
	switch id {
	case "V-404":
		return detail.RuleDetail{RuleID: id}, fmt.Errorf("%w: %s", detail.ErrRuleNotFound, id)
	case "V-500":
		return detail.RuleDetail{RuleID: id}, errors.New("disk on fire")
	}
	return detail.RuleDetail{RuleID: id, SVID: "SV-1r1_rule", Title: "Rule " + id, Found: true}, nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func sizedModel(t *testing.T, lookup DetailFunc) Model {
	t.Helper()
	m, _ := update(t, NewModel(sampleResult(), lookup), tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestNewModel_ListTitles(t *testing.T) {
	m := NewModel(sampleResult(), nil)
	assert.Equal(t, "Missing (1)", m.lists[CategoryMissing].Title)
	assert.Equal(t, "Matched (2)", m.lists[CategoryMatched].Title)
	assert.Equal(t, "Added (1)", m.lists[CategoryAdded].Title)
	assert.Len(t, m.lists[CategoryMatched].Items(), 2)
	assert.Equal(t, CategoryMissing, m.Focus())
}

func TestUpdate_FocusCycles(t *testing.T) {
	m := sizedModel(t, fakeLookup)

	m, _ = update(t, m, keyMsg("tab"))
	assert.Equal(t, CategoryMatched, m.Focus())
	m, _ = update(t, m, keyMsg("tab"))
	m, _ = update(t, m, keyMsg("tab"))
	assert.Equal(t, CategoryMissing, m.Focus())
	m, _ = update(t, m, keyMsg("shift+tab"))
	assert.Equal(t, CategoryAdded, m.Focus())
}

func TestUpdate_OpensAndClosesDetail(t *testing.T) {
	m := sizedModel(t, fakeLookup)
	m, _ = update(t, m, keyMsg("tab"))

	m, cmd := update(t, m, keyMsg("enter"))
	require.NotNil(t, cmd)
	loaded, ok := cmd().(DetailLoadedMsg)
	require.True(t, ok)
	assert.Equal(t, "V-1", loaded.Detail.RuleID)

	m, _ = update(t, m, loaded)
	assert.Equal(t, ViewDetail, m.State())
	require.NotNil(t, m.Selected())
	assert.Equal(t, "Rule V-1", m.Selected().Title)
	assert.Contains(t, m.View(), "V-1")

	m, _ = update(t, m, keyMsg("esc"))
	assert.Equal(t, ViewLists, m.State())
	assert.Nil(t, m.Selected())
}

func TestUpdate_DetailNotFoundStillShows(t *testing.T) {
	m := sizedModel(t, fakeLookup)
	m, _ = update(t, m, DetailLoadedMsg{Detail: detail.RuleDetail{RuleID: "V-404"}, Err: detail.ErrRuleNotFound})
	assert.Equal(t, ViewDetail, m.State())
	assert.False(t, m.Selected().Found)
}

func TestUpdate_DetailErrorKeepsLists(t *testing.T) {
	m := sizedModel(t, fakeLookup)
	_, err := fakeLookup("V-500")
	m, _ = update(t, m, DetailLoadedMsg{Detail: detail.RuleDetail{RuleID: "V-500"}, Err: err})
	assert.Equal(t, ViewLists, m.State())
	assert.Contains(t, m.View(), "Lookup failed: disk on fire")
}

func TestUpdate_NoLookup(t *testing.T) {
	m := sizedModel(t, nil)
	m, cmd := update(t, m, keyMsg("enter"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "not available")
}

func TestUpdate_Quit(t *testing.T) {
	m := sizedModel(t, fakeLookup)
	_, cmd := update(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestSubstringFilter(t *testing.T) {
	ranks := substringFilter("v-2", []string{"V-1", "V-2", "V-2.a"})
	require.Len(t, ranks, 2)
	assert.Equal(t, 1, ranks[0].Index)
	assert.Equal(t, 2, ranks[1].Index)
}

func TestRuleItem(t *testing.T) {
	item := RuleItem{ID: "V-9", Category: CategoryAdded}
	assert.Equal(t, "V-9", item.Title())
	assert.Equal(t, "V-9", item.FilterValue())
	assert.Equal(t, "converted only", item.Description())
	assert.Equal(t, "Added", CategoryAdded.String())
}

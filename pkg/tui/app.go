// Package tui is an interactive browser over one comparison: three lists of
// missing, matched and added ids with a Markdown detail pane per rule.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/coolbeans/stigdiff/pkg/detail"
	"github.com/coolbeans/stigdiff/pkg/reconcile"
	"github.com/coolbeans/stigdiff/pkg/report"
)

// ViewState represents the current view
type ViewState int

const (
	ViewLists ViewState = iota
	ViewDetail
)

// DetailFunc looks up the detail for one rule id.
type DetailFunc func(id string) (detail.RuleDetail, error)

// DetailLoadedMsg carries a looked-up rule detail.
type DetailLoadedMsg struct {
	Detail detail.RuleDetail
	Err    error
}

// Model is the browser model
type Model struct {
	result   reconcile.Result
	lookup   DetailFunc
	lists    [3]list.Model
	focus    Category
	view     ViewState
	viewport viewport.Model
	selected *detail.RuleDetail
	renderer *glamour.TermRenderer
	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int
	status   string
}

// NewModel creates a browser over result. lookup may be nil, in which case
// the detail pane is disabled.
func NewModel(result reconcile.Result, lookup DetailFunc) Model {
	m := Model{
		result: result,
		lookup: lookup,
		keys:   DefaultKeyMap(),
		help:   help.New(),
	}

	groups := [3][]string{result.Missing, result.Matched, result.Added}
	for i, ids := range groups {
		category := Category(i)
		delegate := list.NewDefaultDelegate()
		delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
			Foreground(categoryColor(category)).
			BorderForeground(categoryColor(category))

		l := list.New(ruleItems(ids, category), delegate, 0, 0)
		l.Title = listTitle(category, len(ids))
		l.Styles.Title = TitleStyle.Background(categoryColor(category))
		l.SetShowHelp(false)
		l.SetShowStatusBar(false)
		l.Filter = substringFilter
		m.lists[i] = l
	}
	return m
}

// Run starts the browser on the alternate screen.
func Run(result reconcile.Result, lookup DetailFunc) error {
	_, err := tea.NewProgram(NewModel(result, lookup), tea.WithAltScreen()).Run()
	return err
}

// Focus returns the focused list.
func (m Model) Focus() Category {
	return m.focus
}

// State returns the current view.
func (m Model) State() ViewState {
	return m.view
}

// Selected returns the rule shown in the detail pane, if any.
func (m Model) Selected() *detail.RuleDetail {
	return m.selected
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) loadDetail(id string) tea.Cmd {
	lookup := m.lookup
	return func() tea.Msg {
		rule, err := lookup(id)
		return DetailLoadedMsg{Detail: rule, Err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case DetailLoadedMsg:
		return m.showDetail(msg), nil

	case tea.KeyMsg:
		m.status = ""
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.view == ViewDetail {
			return m.updateDetail(msg)
		}
		return m.updateLists(msg)
	}

	if m.view == ViewLists {
		var cmd tea.Cmd
		m.lists[m.focus], cmd = m.lists[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateLists(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	current := m.lists[m.focus]
	if current.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.lists[m.focus], cmd = current.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.focus = (m.focus + 1) % 3
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.focus = (m.focus + 2) % 3
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		item, ok := current.SelectedItem().(RuleItem)
		if !ok {
			return m, nil
		}
		if m.lookup == nil {
			m.status = "Rule details are not available for this comparison"
			return m, nil
		}
		m.status = fmt.Sprintf("Loading %s...", item.ID)
		return m, m.loadDetail(item.ID)
	}

	var cmd tea.Cmd
	m.lists[m.focus], cmd = current.Update(msg)
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Quit):
		m.view = ViewLists
		m.selected = nil
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) showDetail(msg DetailLoadedMsg) Model {
	m.status = ""
	if msg.Err != nil && !errors.Is(msg.Err, detail.ErrRuleNotFound) {
		m.status = fmt.Sprintf("Lookup failed: %v", msg.Err)
		return m
	}

	rule := msg.Detail
	m.selected = &rule
	m.view = ViewDetail
	m.viewport = viewport.New(m.detailWidth(), m.detailHeight())
	m.viewport.SetContent(m.renderMarkdown(report.DetailMarkdown(rule)))
	return m
}

func (m *Model) resize() {
	columnWidth := m.width/3 - 4
	if columnWidth < 10 {
		columnWidth = 10
	}
	listHeight := m.height - 6
	if listHeight < 3 {
		listHeight = 3
	}
	for i := range m.lists {
		m.lists[i].SetSize(columnWidth, listHeight)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(m.detailWidth()-2),
	)
	if err == nil {
		m.renderer = renderer
	}
	if m.view == ViewDetail && m.selected != nil {
		m.viewport.Width = m.detailWidth()
		m.viewport.Height = m.detailHeight()
		m.viewport.SetContent(m.renderMarkdown(report.DetailMarkdown(*m.selected)))
	}
}

func (m Model) detailWidth() int {
	if m.width-4 < 40 {
		return 40
	}
	return m.width - 4
}

func (m Model) detailHeight() int {
	if m.height-4 < 5 {
		return 5
	}
	return m.height - 4
}

// renderMarkdown renders markdown with the cached renderer, falling back to
// the raw text.
func (m Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(out)
}

// View renders the view
func (m Model) View() string {
	if m.view == ViewDetail && m.selected != nil {
		return m.renderDetailView()
	}
	return m.renderListsView()
}

func (m Model) renderListsView() string {
	var b strings.Builder

	summary := m.result.Summary()
	header := fmt.Sprintf("%s  %s", TitleStyle.Render("stigdiff"), SubtitleStyle.Render(summary.String()))
	b.WriteString(header)
	b.WriteString("\n")
	if m.result.SourcePath != "" {
		b.WriteString(SubtitleStyle.Render("DISA: " + m.result.SourcePath))
		b.WriteString("\n")
	}

	columns := make([]string, len(m.lists))
	for i := range m.lists {
		style := ColumnStyle
		if Category(i) == m.focus {
			style = FocusedColumnStyle
		}
		columns[i] = style.Render(m.lists[i].View())
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, columns...))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(StatusStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.showHelp {
		b.WriteString(m.help.View(m.keys))
	} else {
		b.WriteString(SubtitleStyle.Render("tab switch list • enter details • / filter • ? help • q quit"))
	}
	return b.String()
}

func (m Model) renderDetailView() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.selected.RuleID))
	if m.selected.SVID != "" {
		b.WriteString("  ")
		b.WriteString(SubtitleStyle.Render(m.selected.SVID))
	}
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("↑/↓ scroll | q/esc back"))
	return b.String()
}

// substringFilter ranks targets containing term, case-insensitively.
func substringFilter(term string, targets []string) []list.Rank {
	var ranks []list.Rank
	term = strings.ToLower(term)
	for i, target := range targets {
		if strings.Contains(strings.ToLower(target), term) {
			ranks = append(ranks, list.Rank{Index: i})
		}
	}
	return ranks
}

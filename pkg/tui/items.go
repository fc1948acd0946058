package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
)

// Category is one of the three result lists.
type Category int

const (
	CategoryMissing Category = iota
	CategoryMatched
	CategoryAdded
)

func (c Category) String() string {
	switch c {
	case CategoryMissing:
		return "Missing"
	case CategoryMatched:
		return "Matched"
	case CategoryAdded:
		return "Added"
	}
	return ""
}

// RuleItem wraps a rule id to implement the list.Item interface
type RuleItem struct {
	ID       string
	Category Category
}

// Title returns the display title for the list
func (r RuleItem) Title() string {
	return r.ID
}

// Description returns the secondary text for the list
func (r RuleItem) Description() string {
	switch r.Category {
	case CategoryMissing:
		return "in DISA, not converted"
	case CategoryMatched:
		return "in both"
	default:
		return "converted only"
	}
}

// FilterValue returns the string used for filtering
func (r RuleItem) FilterValue() string {
	return r.ID
}

func ruleItems(ids []string, category Category) []list.Item {
	items := make([]list.Item, len(ids))
	for i, id := range ids {
		items[i] = RuleItem{ID: id, Category: category}
	}
	return items
}

func listTitle(category Category, count int) string {
	return fmt.Sprintf("%s (%d)", category, count)
}

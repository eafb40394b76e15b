package main

import (
	"github.com/sahilm/fuzzy"
)

type viewport struct {
	top    int
	height int
}

// GridBrowser keeps the album cards, the selection, the filter and the
// visible window of card rows.
type GridBrowser struct {
	cards    []Card
	visible  []int // indices into cards, in display order
	selected int   // index into visible
	query    string
	columns  int
	rows     viewport
}

func NewGridBrowser() *GridBrowser {
	return &GridBrowser{
		columns: 1,
		rows:    viewport{top: 0, height: 3},
	}
}

// SetCards replaces every card and re-applies the current filter.
func (g *GridBrowser) SetCards(cards []Card) {
	g.cards = cards
	g.applyFilter()
}

// SetFilter narrows the grid to cards whose title fuzzily matches query.
func (g *GridBrowser) SetFilter(query string) {
	if query == g.query {
		return
	}
	g.query = query
	g.applyFilter()
}

func (g *GridBrowser) Filter() string {
	return g.query
}

func (g *GridBrowser) applyFilter() {
	g.visible = g.visible[:0]
	if g.query == "" {
		for i := range g.cards {
			g.visible = append(g.visible, i)
		}
	} else {
		titles := make([]string, len(g.cards))
		for i, card := range g.cards {
			titles[i] = card.Title
		}
		for _, match := range fuzzy.Find(g.query, titles) {
			g.visible = append(g.visible, match.Index)
		}
	}
	g.selected = 0
	g.rows.top = 0
}

// Visible returns the filtered cards in display order.
func (g *GridBrowser) Visible() []Card {
	cards := make([]Card, len(g.visible))
	for i, idx := range g.visible {
		cards[i] = g.cards[idx]
	}
	return cards
}

// Window returns the cards of the rows currently on screen and the position
// of the first of them within Visible.
func (g *GridBrowser) Window() ([]Card, int) {
	visible := g.Visible()
	start := g.rows.top * g.columns
	if start > len(visible) {
		start = len(visible)
	}
	end := start + g.rows.height*g.columns
	if end > len(visible) {
		end = len(visible)
	}
	return visible[start:end], start
}

// Selected returns the catalog index of the highlighted card.
func (g *GridBrowser) Selected() (int, bool) {
	if len(g.visible) == 0 {
		return 0, false
	}
	return g.cards[g.visible[g.selected]].Index, true
}

// SelectedPosition returns the highlighted position within Visible.
func (g *GridBrowser) SelectedPosition() int {
	return g.selected
}

func (g *GridBrowser) MoveUp() {
	if g.selected > 0 {
		g.selected--
		g.adjustViewport()
	}
}

func (g *GridBrowser) MoveDown() {
	if g.selected < len(g.visible)-1 {
		g.selected++
		g.adjustViewport()
	}
}

// SetLayout sets how many cards fit on a row and how many rows fit on
// screen.
func (g *GridBrowser) SetLayout(columns, rows int) {
	if columns < 1 {
		columns = 1
	}
	if rows < 1 {
		rows = 1
	}
	g.columns = columns
	g.rows.height = rows
	g.adjustViewport()
}

func (g *GridBrowser) adjustViewport() {
	row := g.selected / g.columns
	if row < g.rows.top {
		g.rows.top = row
	} else if row >= g.rows.top+g.rows.height {
		g.rows.top = row - g.rows.height + 1
	}
	if g.rows.top < 0 {
		g.rows.top = 0
	}
}

package main

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const (
	cardWidth        = 30
	cardHeight       = 7 // rendered lines including border
	transportHeight  = 13
	visualizerWidth  = 48
	visualizerHeight = 3

	zoneProgress = "progress"
	zoneVolume   = "volume"
)

// screen is the View the controller writes to; the bubbletea model renders
// from it.
type screen struct {
	grid      *GridBrowser
	track     NowPlaying
	hasTrack  bool
	playing   bool
	progress  Progress
	loop      bool
	shuffle   bool
	highlight bool
}

func newScreen() *screen {
	return &screen{grid: NewGridBrowser()}
}

func (s *screen) RenderGrid(cards []Card) { s.grid.SetCards(cards) }

func (s *screen) ShowTrack(np NowPlaying) {
	s.track = np
	s.hasTrack = true
}

func (s *screen) ShowPlaying(playing bool) { s.playing = playing }
func (s *screen) ShowProgress(p Progress)  { s.progress = p }
func (s *screen) ShowLoop(on bool)         { s.loop = on }
func (s *screen) ShowShuffle(on bool)      { s.shuffle = on }
func (s *screen) RevealTransport()         { s.highlight = true }

// transportButton is a clickable control of the transport panel.
type transportButton struct {
	zone   string
	action Action
}

var transportButtons = []transportButton{
	{"btn-prev", ActionPrev},
	{"btn-play", ActionPlayPause},
	{"btn-stop", ActionStop},
	{"btn-next", ActionNext},
	{"btn-loop", ActionToggleLoop},
	{"btn-shuffle", ActionToggleShuffle},
}

func openZone(albumIndex int) string {
	return "open-" + strconv.Itoa(albumIndex)
}

func (m model) View() string {
	theme := m.settings.GetTheme()
	styles := m.settings.Styles()

	header := styles.Accent.PaddingLeft(2).Render(fmt.Sprintf("📼 Mixtape - %s", m.settings.GetSettings().Catalog))

	var parts []string
	parts = append(parts, header)

	if m.filter.Focused() || m.screen.grid.Filter() != "" {
		parts = append(parts, lipgloss.NewStyle().PaddingLeft(2).Render(m.filter.View()))
	} else {
		parts = append(parts, "")
	}

	parts = append(parts, m.renderGrid(theme))
	parts = append(parts, m.renderTransport(theme))

	status := m.status
	if status == "" {
		status = "⏹️  Stopped"
		if m.screen.playing {
			status = "▶️  Playing"
		} else if m.screen.hasTrack {
			status = "⏸️  Paused"
		}
	}
	statusStyle := styles.Muted
	if m.statusErr {
		statusStyle = styles.Error
	}
	parts = append(parts, statusStyle.PaddingLeft(2).Render(status))
	parts = append(parts, lipgloss.NewStyle().PaddingLeft(2).Render(m.help.View(m.keys)))

	return m.zones.Scan(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m model) renderGrid(theme Theme) string {
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))

	if m.loading {
		return lipgloss.NewStyle().PaddingLeft(2).Render(m.spinner.View() + " Loading catalog...")
	}
	if m.loadErr != nil {
		// A failed load leaves the grid empty.
		return muted.PaddingLeft(2).Render("No mixtapes.")
	}

	cards, offset := m.screen.grid.Window()
	if len(cards) == 0 {
		if m.screen.grid.Filter() != "" {
			return muted.PaddingLeft(2).Render("No album matches the filter.")
		}
		return muted.PaddingLeft(2).Render("No mixtapes.")
	}

	columns := m.gridColumns()
	selected := m.screen.grid.SelectedPosition()

	var rows []string
	for start := 0; start < len(cards); start += columns {
		end := start + columns
		if end > len(cards) {
			end = len(cards)
		}
		var row []string
		for i := start; i < end; i++ {
			row = append(row, m.renderCard(cards[i], offset+i == selected, theme))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m model) renderCard(card Card, selected bool, theme Theme) string {
	inner := cardWidth - 4

	border := lipgloss.Color(theme.Border)
	if selected {
		border = lipgloss.Color(theme.Primary)
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(cardWidth - 2).
		Padding(0, 1)

	title := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground)).Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))

	meta := []string{}
	if card.Year != "" {
		meta = append(meta, card.Year)
	}
	meta = append(meta, fmt.Sprintf("%d tracks", card.Tracks))
	if runtime := formatRuntime(card.Runtime); runtime != "" {
		meta = append(meta, runtime)
	}

	openStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Background)).
		Background(lipgloss.Color(theme.Secondary)).
		Padding(0, 1)
	if selected {
		openStyle = openStyle.Background(lipgloss.Color(theme.Primary)).Bold(true)
	}

	lines := []string{
		muted.Render(ansi.Truncate("▣ "+coverLabel(card.Cover), inner, "…")),
		title.Render(ansi.Truncate(card.Title, inner, "…")),
		muted.Render(ansi.Truncate(strings.Join(meta, " • "), inner, "…")),
		"",
		m.zones.Mark(openZone(card.Index), openStyle.Render("Open")),
	}
	return box.Render(strings.Join(lines, "\n"))
}

func coverLabel(cover string) string {
	if cover == "" {
		return "no cover"
	}
	return path.Base(strings.ReplaceAll(cover, "\\", "/"))
}

func (m model) renderTransport(theme Theme) string {
	width := m.width
	if width < 60 {
		width = 60
	}
	inner := width - 6

	border := lipgloss.Color(theme.Border)
	if m.screen.highlight {
		border = lipgloss.Color(theme.Primary)
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(width - 2).
		Padding(0, 2)

	fg := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary)).Bold(true)

	if !m.screen.hasTrack {
		return box.Render(muted.Render("Nothing loaded. Open a mixtape to start."))
	}

	np := m.screen.track
	var lines []string
	lines = append(lines, muted.Render(ansi.Truncate("▣ "+coverLabel(np.Cover)+"  "+np.Album, inner, "…")))
	lines = append(lines, accent.Render(ansi.Truncate(fmt.Sprintf("♪ %s", np.Track), inner-8, "…"))+
		muted.Render(fmt.Sprintf("  %d/%d", np.Position, np.Count)))
	lines = append(lines, fg.Render(np.Extra))
	lines = append(lines, "")

	timeStr := m.screen.progress.Current + " / " + m.screen.progress.Duration
	barWidth := inner - len(timeStr) - 1
	if barWidth < 10 {
		barWidth = 10
	}
	bar := m.zones.Mark(zoneProgress, renderProgressBar(barWidth, m.screen.progress.Percent/100, theme))
	lines = append(lines, bar+" "+fg.Render(timeStr))
	lines = append(lines, "")

	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Center,
		m.renderButtons(theme), "  ", m.renderVolume(theme)))
	lines = append(lines, "")

	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Bottom,
		muted.Render(ansi.Truncate("⤓ "+np.Download, inner-visualizerWidth-2, "…")),
		"  ",
		m.renderVisualizer(theme)))

	return box.Render(strings.Join(lines, "\n"))
}

func (m model) renderButtons(theme Theme) string {
	normal := lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Foreground)).
		Bold(true).
		Padding(0, 1)
	on := normal.
		Foreground(lipgloss.Color(theme.Background)).
		Background(lipgloss.Color(theme.Primary))

	labels := map[Action]string{
		ActionPrev:          "⏮ Prev",
		ActionPlayPause:     "▶ Play",
		ActionStop:          "⏹ Stop",
		ActionNext:          "⏭ Next",
		ActionToggleLoop:    "🔁 Loop",
		ActionToggleShuffle: "🔀 Shuffle",
	}
	if m.screen.playing {
		labels[ActionPlayPause] = "⏸ Pause"
	}

	var parts []string
	for _, b := range transportButtons {
		style := normal
		if (b.action == ActionToggleLoop && m.screen.loop) ||
			(b.action == ActionToggleShuffle && m.screen.shuffle) {
			style = on
		}
		parts = append(parts, m.zones.Mark(b.zone, style.Render(labels[b.action])))
	}
	return strings.Join(parts, " ")
}

func (m model) renderVolume(theme Theme) string {
	const width = 10
	level := m.media.Volume()
	filled := int(level*width + 0.5)

	fill := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary))
	empty := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))
	bar := fill.Render(strings.Repeat("█", filled)) + empty.Render(strings.Repeat("░", width-filled))
	return "🔊 " + m.zones.Mark(zoneVolume, bar) + fmt.Sprintf(" %3d%%", int(level*100+0.5))
}

// renderVisualizer draws the element's band levels, or a flat line when
// nothing is playing.
func (m model) renderVisualizer(theme Theme) string {
	if m.levels == nil || !m.screen.playing {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted)).Render(strings.Repeat("▁", visualizerWidth))
	}

	levels := m.levels()
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Secondary))
	data := make([]barchart.BarData, len(levels))
	for i, level := range levels {
		v := level * 3
		if v > 1 {
			v = 1
		}
		data[i] = barchart.BarData{
			Values: []barchart.BarValue{{"", v, style}},
		}
	}

	chart := barchart.New(visualizerWidth, visualizerHeight)
	chart.PushAll(data)
	chart.Draw()
	return chart.View()
}

// Color blending for the gradient progress bar
type RGB struct {
	R, G, B float64
}

func rgbToHex(rgb RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", int(rgb.R), int(rgb.G), int(rgb.B))
}

func blendColors(colorA, colorB RGB, ratio float64) RGB {
	return RGB{
		R: colorA.R + (colorB.R-colorA.R)*ratio,
		G: colorA.G + (colorB.G-colorA.G)*ratio,
		B: colorA.B + (colorB.B-colorA.B)*ratio,
	}
}

// ansiBasic holds the xterm defaults for codes 0-15.
var ansiBasic = [16]RGB{
	{0, 0, 0}, {128, 0, 0}, {0, 128, 0}, {128, 128, 0},
	{0, 0, 128}, {128, 0, 128}, {0, 128, 128}, {192, 192, 192},
	{128, 128, 128}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{0, 0, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

var cubeLevels = [6]float64{0, 95, 135, 175, 215, 255}

// colorCodeToRGB resolves a theme color, either "#rrggbb" or an ANSI 256
// code. Anything else is mid gray.
func colorCodeToRGB(code string) RGB {
	if strings.HasPrefix(code, "#") && len(code) == 7 {
		if v, err := strconv.ParseUint(code[1:], 16, 32); err == nil {
			return RGB{float64(v >> 16 & 0xff), float64(v >> 8 & 0xff), float64(v & 0xff)}
		}
	}

	n, err := strconv.Atoi(code)
	switch {
	case err != nil || n < 0 || n > 255:
		return RGB{128, 128, 128}
	case n < 16:
		return ansiBasic[n]
	case n < 232:
		n -= 16
		return RGB{cubeLevels[n/36], cubeLevels[n/6%6], cubeLevels[n%6]}
	default:
		g := float64(8 + 10*(n-232))
		return RGB{g, g, g}
	}
}

func makeProgressGradient(steps int, theme Theme) []lipgloss.Style {
	colorA := colorCodeToRGB(theme.GradientStart)
	colorB := colorCodeToRGB(theme.GradientEnd)

	styles := make([]lipgloss.Style, 0, steps)
	for i := 0; i < steps; i++ {
		ratio := 0.0
		if steps > 1 {
			ratio = float64(i) / float64(steps-1)
		}
		styles = append(styles, lipgloss.NewStyle().
			Foreground(lipgloss.Color(rgbToHex(blendColors(colorA, colorB, ratio)))).
			Bold(true))
	}
	return styles
}

var partialBlocks = []string{"", "▏", "▎", "▍", "▌", "▋", "▊", "▉"}

// renderProgressBar draws a gradient bar at eighth-of-a-cell resolution.
func renderProgressBar(width int, fraction float64, theme Theme) string {
	fraction = clamp01(fraction)

	eighths := int(float64(width*8) * fraction)
	full := eighths / 8
	remainder := eighths % 8
	if full >= width {
		full, remainder = width, 0
	}

	gradient := makeProgressGradient(width, theme)
	background := lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted))

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < full:
			b.WriteString(gradient[i].Render("█"))
		case i == full && remainder > 0:
			b.WriteString(gradient[i].Render(partialBlocks[remainder]))
		default:
			b.WriteString(background.Render("░"))
		}
	}
	return b.String()
}

// zoneRatio converts a click column into a position along a zone spanning
// startX..endX inclusive.
func zoneRatio(x, startX, endX int) float64 {
	width := endX - startX + 1
	if width <= 0 {
		return 0
	}
	return clamp01(float64(x-startX) / float64(width))
}

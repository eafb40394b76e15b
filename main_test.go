package main

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

func newTestModel(t *testing.T) (model, *fakeMedia) {
	t.Helper()
	t.Setenv("MIXTAPE_HOME", t.TempDir())
	t.Setenv("MIXTAPE_CATALOG", "")

	settings, err := NewSettingsManager()
	if err != nil {
		t.Fatalf("NewSettingsManager() error = %v", err)
	}
	media := newFakeMedia()
	m := newModel(media, &FileSource{Path: "unused.json"}, settings, zap.NewNop(),
		WithRand(rand.New(rand.NewSource(7))))
	t.Cleanup(m.zones.Close)
	return m, media
}

func update(m model, msg tea.Msg) model {
	next, _ := m.Update(msg)
	return next.(model)
}

func keyPress(k string) tea.KeyMsg {
	switch k {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func TestModelKeyboard(t *testing.T) {
	m, media := newTestModel(t)
	m = update(m, tea.WindowSizeMsg{Width: 100, Height: 50})
	m = update(m, catalogMsg{catalog: testCatalog(3, 2)})

	if m.loading || len(m.screen.grid.Visible()) != 2 {
		t.Fatalf("catalog not installed: loading=%v cards=%d", m.loading, len(m.screen.grid.Visible()))
	}
	if media.src != "audio/a1.mp3" || !media.paused {
		t.Fatalf("first track not cued: src=%q paused=%v", media.src, media.paused)
	}

	m = update(m, keyPress(" "))
	if media.paused || !m.screen.playing {
		t.Error("space did not start playback")
	}

	m = update(m, keyPress("n"))
	if cursor, _ := m.ctrl.Cursor(); cursor.Track != 1 {
		t.Errorf("n moved to %v", cursor)
	}

	m = update(m, keyPress("/"))
	if !m.filter.Focused() {
		t.Fatal("/ did not focus the filter")
	}
	m = update(m, keyPress("p"))
	if cursor, _ := m.ctrl.Cursor(); cursor.Track != 1 {
		t.Error("shortcut handled while the filter had focus")
	}
	if m.filter.Value() != "p" || m.screen.grid.Filter() != "p" {
		t.Errorf("filter = %q / %q", m.filter.Value(), m.screen.grid.Filter())
	}
	m = update(m, keyPress("esc"))
	if m.filter.Focused() || m.screen.grid.Filter() != "" {
		t.Error("esc did not clear the filter")
	}

	m = update(m, keyPress("down"))
	m = update(m, keyPress("enter"))
	if cursor, _ := m.ctrl.Cursor(); cursor != (Cursor{1, 0}) {
		t.Errorf("enter opened %v, want {1 0}", cursor)
	}
	if !m.screen.highlight || media.paused {
		t.Error("opened album should play with the transport highlighted")
	}

	m = update(m, keyPress("x"))
	if !media.paused || media.current != 0 {
		t.Error("x did not stop")
	}

	m = update(m, keyPress("l"))
	if !media.loop || !m.screen.loop {
		t.Error("l did not enable loop")
	}
	m = update(m, keyPress("s"))
	if !m.ctrl.Shuffle() || !m.screen.shuffle {
		t.Error("s did not enable shuffle")
	}

	m = update(m, keyPress("-"))
	if math.Abs(media.volume-0.95) > 1e-9 {
		t.Errorf("volume = %v, want 0.95", media.volume)
	}

	m = update(m, keyPress("t"))
	if !strings.HasPrefix(m.status, "Theme: ") {
		t.Errorf("status = %q", m.status)
	}

	m = update(m, keyPress("?"))
	if !m.help.ShowAll {
		t.Error("? did not expand help")
	}

	if _, cmd := m.Update(keyPress("q")); cmd == nil {
		t.Error("q returned no command")
	}
}

func TestModelMediaEvents(t *testing.T) {
	m, media := newTestModel(t)
	m = update(m, catalogMsg{catalog: testCatalog(3)})

	media.duration = 100
	media.current = 25
	m = update(m, tickMsg{})
	if m.screen.progress.Percent != 25 || m.screen.progress.Current != "0:25" {
		t.Errorf("progress = %+v", m.screen.progress)
	}

	next, cmd := m.Update(mediaMsg(EventEnded))
	m = next.(model)
	if cursor, _ := m.ctrl.Cursor(); cursor.Track != 1 {
		t.Errorf("ended moved to %v, want track 1", cursor)
	}
	if cmd == nil {
		t.Error("media events are no longer awaited")
	}
}

func TestModelCatalogFailure(t *testing.T) {
	m, media := newTestModel(t)
	m = update(m, catalogMsg{err: errors.New("no such file")})

	if m.loading || m.loadErr == nil {
		t.Fatalf("loading=%v loadErr=%v", m.loading, m.loadErr)
	}
	if media.loads != 0 {
		t.Error("failed load reached the media element")
	}
	if view := m.View(); !strings.Contains(view, "No mixtapes.") {
		t.Errorf("view does not report the empty grid:\n%s", view)
	}

	// Transport keys are harmless without a track.
	m = update(m, keyPress("n"))
	m = update(m, keyPress(" "))
	if _, ok := m.ctrl.Cursor(); ok {
		t.Error("cursor set without a catalog")
	}
}

func TestModelDownloadFailure(t *testing.T) {
	m, _ := newTestModel(t)
	m.downloader = NewDownloader(t.TempDir(), zap.NewNop())
	m = update(m, catalogMsg{catalog: testCatalog(1)})

	next, cmd := m.Update(keyPress("d"))
	m = next.(model)
	if cmd == nil {
		t.Fatal("d returned no command")
	}
	msg, ok := cmd().(downloadMsg)
	if !ok || msg.err == nil {
		t.Fatalf("download of a missing file = %+v", msg)
	}

	m = update(m, msg)
	if m.status != "Download failed" || !m.statusErr {
		t.Errorf("status = %q, err = %v", m.status, m.statusErr)
	}

	m = update(m, keyPress("t"))
	if m.statusErr {
		t.Error("error status survived the next key")
	}
}

func TestModelView(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(m, tea.WindowSizeMsg{Width: 120, Height: 60})

	if view := m.View(); !strings.Contains(view, "Loading catalog") {
		t.Errorf("view while loading:\n%s", view)
	}

	catalog := testCatalog(2, 1)
	catalog[0].Tracks[0].BPM = 120
	catalog[0].Tracks[0].Key = "Am"
	m = update(m, catalogMsg{catalog: catalog})

	view := m.View()
	for _, want := range []string{"Tape A", "Tape B", "Song A1", "120 BPM • Am", "0:00 / 0:00", "Open", "1/2"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}
}

func TestZoneRatio(t *testing.T) {
	tests := []struct {
		x, start, end int
		want          float64
	}{
		{x: 10, start: 10, end: 19, want: 0},
		{x: 15, start: 10, end: 19, want: 0.5},
		{x: 30, start: 10, end: 19, want: 1},
		{x: 2, start: 10, end: 19, want: 0},
		{x: 5, start: 10, end: 8, want: 0},
	}

	for _, tt := range tests {
		if got := zoneRatio(tt.x, tt.start, tt.end); got != tt.want {
			t.Errorf("zoneRatio(%d, %d, %d) = %v, want %v", tt.x, tt.start, tt.end, got, tt.want)
		}
	}
}

func TestRenderProgressBarWidth(t *testing.T) {
	theme := builtinThemes()[defaultTheme]
	for _, fraction := range []float64{0, 0.33, 0.5, 1, 1.5, nan()} {
		if w := lipgloss.Width(renderProgressBar(40, fraction, theme)); w != 40 {
			t.Errorf("renderProgressBar(40, %v) width = %d", fraction, w)
		}
	}
}

func TestColorCodeToRGB(t *testing.T) {
	tests := []struct {
		code string
		want RGB
	}{
		{"212", RGB{255, 135, 215}},
		{"117", RGB{135, 215, 255}},
		{"16", RGB{0, 0, 0}},
		{"9", RGB{255, 0, 0}},
		{"243", RGB{118, 118, 118}},
		{"#1a2b3c", RGB{26, 43, 60}},
		{"#zzzzzz", RGB{128, 128, 128}},
		{"purple", RGB{128, 128, 128}},
		{"300", RGB{128, 128, 128}},
	}

	for _, tt := range tests {
		if got := colorCodeToRGB(tt.code); got != tt.want {
			t.Errorf("colorCodeToRGB(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

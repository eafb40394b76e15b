package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"go.uber.org/zap"
)

const (
	catalogTimeout  = 20 * time.Second
	probeTimeout    = 30 * time.Second
	downloadTimeout = 5 * time.Minute
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/20, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type catalogMsg struct {
	catalog Catalog
	err     error
}

type mediaMsg MediaEvent

type downloadMsg struct {
	dest string
	err  error
}

// waitForMedia forwards the next element event into the update loop.
func waitForMedia(events <-chan MediaEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return mediaMsg(ev)
	}
}

type model struct {
	width  int
	height int

	ctrl     *Controller
	screen   *screen
	media    MediaElement
	levels   func() []float64
	settings *SettingsManager
	logger   *zap.Logger
	zones    *zone.Manager

	source     Source
	prober     *Prober
	downloader *Downloader

	keys    keyMap
	help    help.Model
	filter  textinput.Model
	spinner spinner.Model

	loading   bool
	loadErr   error
	status    string
	statusErr bool
}

func newModel(media MediaElement, source Source, settings *SettingsManager, logger *zap.Logger, opts ...ControllerOption) model {
	scr := newScreen()
	cfg := settings.GetSettings()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(settings.GetTheme().Primary))

	filter := textinput.New()
	filter.Placeholder = "filter albums"
	filter.Prompt = "/ "
	filter.CharLimit = 64

	m := model{
		ctrl:       NewController(media, scr, logger, opts...),
		screen:     scr,
		media:      media,
		settings:   settings,
		logger:     logger,
		zones:      zone.New(),
		source:     source,
		downloader: NewDownloader(cfg.DownloadDir, logger),
		keys:       newKeyMap(),
		help:       help.New(),
		filter:     filter,
		spinner:    s,
		loading:    true,
	}
	if cfg.ProbeMetadata {
		m.prober = NewProber(logger)
	}
	if lv, ok := media.(interface{ Levels() []float64 }); ok {
		m.levels = lv.Levels
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetchCatalog(),
		tickCmd(),
		waitForMedia(m.media.Events()),
	)
}

// fetchCatalog loads and probes the catalog off the event loop.
func (m model) fetchCatalog() tea.Cmd {
	source, prober, logger := m.source, m.prober, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
		defer cancel()

		catalog, err := source.Fetch(ctx)
		if err == nil && prober != nil {
			probeCtx, probeCancel := context.WithTimeout(context.Background(), probeTimeout)
			defer probeCancel()
			if err := prober.Probe(probeCtx, catalog); err != nil {
				logger.Warn("Metadata probe incomplete", zap.Error(err))
			}
		}
		return catalogMsg{catalog: catalog, err: err}
	}
}

func (m model) download() tea.Cmd {
	cursor, ok := m.ctrl.Cursor()
	if !ok {
		return nil
	}
	src := m.ctrl.Catalog()[cursor.Album].Tracks[cursor.Track].Src
	downloader := m.downloader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
		defer cancel()
		dest, err := downloader.Save(ctx, src)
		return downloadMsg{dest: dest, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case catalogMsg:
		m.loading = false
		if attempt := m.ctrl.Install(msg.catalog, msg.err); attempt.Err != nil {
			m.loadErr = attempt.Err
		}
		return m, nil

	case tickMsg:
		m.ctrl.HandleMediaEvent(EventTimeUpdate)
		return m, tickCmd()

	case mediaMsg:
		m.ctrl.HandleMediaEvent(MediaEvent(msg))
		return m, waitForMedia(m.media.Events())

	case downloadMsg:
		if msg.err != nil {
			m.logger.Warn("Download failed", zap.Error(msg.err))
			m.status = "Download failed"
			m.statusErr = true
		} else {
			m.status = "Saved " + msg.dest
			m.statusErr = false
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layoutGrid()
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *model) layoutGrid() {
	// header, filter line, status and help
	chrome := 4 + transportHeight
	rows := (m.height - chrome) / cardHeight
	m.screen.grid.SetLayout(m.gridColumns(), rows)
}

func (m model) gridColumns() int {
	columns := (m.width - 2) / cardWidth
	if columns < 1 {
		columns = 1
	}
	return columns
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Shortcuts are off while the filter has focus.
	if m.filter.Focused() {
		switch msg.String() {
		case "esc":
			m.filter.Blur()
			m.filter.SetValue("")
			m.screen.grid.SetFilter("")
		case "enter":
			m.filter.Blur()
		default:
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.screen.grid.SetFilter(m.filter.Value())
			return m, cmd
		}
		return m, nil
	}

	m.status = ""
	m.statusErr = false

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Filter):
		cmd := m.filter.Focus()
		return m, cmd

	case msg.String() == "esc":
		m.filter.SetValue("")
		m.screen.grid.SetFilter("")

	case key.Matches(msg, m.keys.Up):
		m.screen.grid.MoveUp()
		m.screen.highlight = false

	case key.Matches(msg, m.keys.Down):
		m.screen.grid.MoveDown()
		m.screen.highlight = false

	case key.Matches(msg, m.keys.Open):
		if idx, ok := m.screen.grid.Selected(); ok {
			m.ctrl.OpenAlbum(idx)
		}

	case key.Matches(msg, m.keys.Download):
		if cmd := m.download(); cmd != nil {
			m.status = "Downloading..."
			return m, cmd
		}

	case key.Matches(msg, m.keys.Theme):
		name := m.settings.CycleTheme()
		m.spinner.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(m.settings.GetTheme().Primary))
		m.status = "Theme: " + name

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	default:
		if action := m.keys.transportAction(msg); action != ActionNone {
			attempt := m.ctrl.Dispatch(action)
			if attempt.Err != nil {
				m.logger.Debug("Transport action failed",
					zap.Stringer("action", action),
					zap.Error(attempt.Err))
			}
		}
	}

	return m, nil
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	cards, _ := m.screen.grid.Window()
	for _, card := range cards {
		if _, ok := m.hit(openZone(card.Index), msg); ok {
			m.ctrl.OpenAlbum(card.Index)
			return m, nil
		}
	}

	for _, b := range transportButtons {
		if _, ok := m.hit(b.zone, msg); ok {
			m.ctrl.Dispatch(b.action)
			return m, nil
		}
	}

	if z, ok := m.hit(zoneProgress, msg); ok {
		m.ctrl.Seek(zoneRatio(msg.X, z.StartX, z.EndX))
		return m, nil
	}
	if z, ok := m.hit(zoneVolume, msg); ok {
		m.ctrl.SetVolume(zoneRatio(msg.X, z.StartX, z.EndX))
	}
	return m, nil
}

func (m model) hit(id string, msg tea.MouseMsg) (*zone.ZoneInfo, bool) {
	z := m.zones.Get(id)
	if z == nil || !z.InBounds(msg) {
		return nil, false
	}
	return z, true
}

func main() {
	settingsManager, err := NewSettingsManager()
	if err != nil {
		fmt.Printf("Error initializing settings manager: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) > 1 {
		settingsManager.SetCatalog(os.Args[1])
	}
	settings := settingsManager.GetSettings()

	logger, err := newLogger(settings.LogFile)
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	media, err := NewBeepElement(logger)
	if err != nil {
		fmt.Printf("Error initializing audio player: %v\n", err)
		os.Exit(1)
	}
	defer media.Close()
	media.SetVolume(settings.Volume)

	m := newModel(media, NewSource(settings.Catalog, logger), settingsManager, logger)
	defer m.zones.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v", err)
		os.Exit(1)
	}
}

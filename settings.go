package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	defaultCatalog = "data/mixtapes.json"
	defaultTheme   = "default"
)

// Theme is a palette of ANSI 256 color codes or #rrggbb values.
type Theme struct {
	Name          string `json:"name"`
	Primary       string `json:"primary"`
	Secondary     string `json:"secondary"`
	Background    string `json:"background"`
	Foreground    string `json:"foreground"`
	Muted         string `json:"muted"`
	Border        string `json:"border"`
	Error         string `json:"error"`
	GradientStart string `json:"gradient_start"`
	GradientEnd   string `json:"gradient_end"`
}

// Settings holds the startup configuration
type Settings struct {
	Theme         string  `json:"theme"`
	Volume        float64 `json:"volume"`         // Initial volume (0-1)
	Catalog       string  `json:"catalog"`        // Catalog file path or URL
	DownloadDir   string  `json:"download_dir"`   // Where downloaded tracks go
	ProbeMetadata bool    `json:"probe_metadata"` // Read durations and tags from local files
	LogFile       string  `json:"log_file"`       // Debug log destination, empty disables logging
}

// SettingsManager loads settings and themes from the config directory
type SettingsManager struct {
	settings   Settings
	themes     map[string]Theme
	filePath   string
	themesPath string
}

// configDir returns $MIXTAPE_HOME or ~/.mixtape
func configDir() (string, error) {
	if dir := os.Getenv("MIXTAPE_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".mixtape"), nil
}

func defaultSettings() Settings {
	downloadDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		downloadDir = filepath.Join(home, "Downloads")
	}
	return Settings{
		Theme:         defaultTheme,
		Volume:        0.8,
		Catalog:       defaultCatalog,
		DownloadDir:   downloadDir,
		ProbeMetadata: true,
		LogFile:       filepath.Join(os.TempDir(), "mixtape_debug.log"),
	}
}

// NewSettingsManager creates the config directory if needed, writes the
// default settings and themes on first run, and loads them.
func NewSettingsManager() (*SettingsManager, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	themesPath := filepath.Join(dir, "themes")
	if err := os.MkdirAll(themesPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	sm := &SettingsManager{
		settings:   defaultSettings(),
		themes:     builtinThemes(),
		filePath:   filepath.Join(dir, "settings.json"),
		themesPath: themesPath,
	}

	if err := sm.LoadSettings(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		if err := sm.SaveSettings(); err != nil {
			return nil, fmt.Errorf("failed to write default settings: %w", err)
		}
	}

	if err := sm.LoadThemes(); err != nil {
		if err := sm.CreateDefaultThemeFiles(); err != nil {
			return nil, fmt.Errorf("failed to create default themes: %w", err)
		}
		sm.themes = builtinThemes()
	}

	if catalog := os.Getenv("MIXTAPE_CATALOG"); catalog != "" {
		sm.settings.Catalog = catalog
	}
	sm.settings.Volume = clamp01(sm.settings.Volume)

	return sm, nil
}

// builtinThemes are written to the themes directory on first run.
func builtinThemes() map[string]Theme {
	return map[string]Theme{
		"default": {
			Name:          "Tape Deck",
			Primary:       "212",
			Secondary:     "117",
			Background:    "236",
			Foreground:    "254",
			Muted:         "243",
			Border:        "239",
			Error:         "203",
			GradientStart: "117",
			GradientEnd:   "212",
		},
		"cassette": {
			Name:          "Cassette",
			Primary:       "214",
			Secondary:     "179",
			Background:    "94",
			Foreground:    "230",
			Muted:         "244",
			Border:        "136",
			Error:         "167",
			GradientStart: "179",
			GradientEnd:   "214",
		},
		"midnight": {
			Name:          "Midnight",
			Primary:       "75",
			Secondary:     "61",
			Background:    "234",
			Foreground:    "189",
			Muted:         "245",
			Border:        "60",
			Error:         "168",
			GradientStart: "61",
			GradientEnd:   "75",
		},
		"forest": {
			Name:          "Forest",
			Primary:       "71",
			Secondary:     "108",
			Background:    "22",
			Foreground:    "194",
			Muted:         "242",
			Border:        "65",
			Error:         "131",
			GradientStart: "108",
			GradientEnd:   "71",
		},
	}
}

func (sm *SettingsManager) LoadSettings() error {
	data, err := os.ReadFile(sm.filePath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &sm.settings)
}

// SaveSettings writes settings.json.
func (sm *SettingsManager) SaveSettings() error {
	data, err := json.MarshalIndent(sm.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return os.WriteFile(sm.filePath, data, 0644)
}

// LoadThemes reads every themes/<name>.json. Unreadable or invalid files
// are skipped.
func (sm *SettingsManager) LoadThemes() error {
	files, err := os.ReadDir(sm.themesPath)
	if err != nil {
		return err
	}

	themes := make(map[string]Theme)
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(sm.themesPath, file.Name()))
		if err != nil {
			continue
		}

		var theme Theme
		if err := json.Unmarshal(data, &theme); err != nil {
			continue
		}
		themes[strings.TrimSuffix(file.Name(), ".json")] = theme
	}

	if len(themes) == 0 {
		return fmt.Errorf("no valid themes found")
	}

	sm.themes = themes
	return nil
}

func (sm *SettingsManager) SaveTheme(themeName string, theme Theme) error {
	data, err := json.MarshalIndent(theme, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal theme: %w", err)
	}

	return os.WriteFile(filepath.Join(sm.themesPath, themeName+".json"), data, 0644)
}

// CreateDefaultThemeFiles writes the builtin themes to the themes directory
func (sm *SettingsManager) CreateDefaultThemeFiles() error {
	for themeName, theme := range builtinThemes() {
		if err := sm.SaveTheme(themeName, theme); err != nil {
			return fmt.Errorf("failed to save theme %s: %w", themeName, err)
		}
	}
	return nil
}

func (sm *SettingsManager) GetSettings() Settings {
	return sm.settings
}

// SetCatalog overrides the catalog location for this session
func (sm *SettingsManager) SetCatalog(location string) {
	sm.settings.Catalog = location
}

// GetTheme falls back to the default theme when the configured one is
// missing.
func (sm *SettingsManager) GetTheme() Theme {
	if theme, ok := sm.themes[sm.settings.Theme]; ok {
		return theme
	}
	if theme, ok := sm.themes[defaultTheme]; ok {
		return theme
	}
	return builtinThemes()[defaultTheme]
}

// GetThemeNames returns all available theme names, sorted
func (sm *SettingsManager) GetThemeNames() []string {
	names := make([]string, 0, len(sm.themes))
	for name := range sm.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CycleTheme switches to the next theme for this session and returns its name
func (sm *SettingsManager) CycleTheme() string {
	names := sm.GetThemeNames()
	if len(names) == 0 {
		return sm.settings.Theme
	}
	next := names[0]
	for i, name := range names {
		if name == sm.settings.Theme {
			next = names[(i+1)%len(names)]
			break
		}
	}
	sm.settings.Theme = next
	return next
}

// Styles returns the text styles of the current theme.
func (sm *SettingsManager) Styles() ThemeStyles {
	theme := sm.GetTheme()
	return ThemeStyles{
		Accent: lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary)).Bold(true),
		Text:   lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground)),
		Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted)),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Error)),
	}
}

type ThemeStyles struct {
	Accent lipgloss.Style
	Text   lipgloss.Style
	Muted  lipgloss.Style
	Error  lipgloss.Style
}

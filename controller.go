package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

const (
	seekStep   = 5.0 // seconds
	volumeStep = 0.05
)

// ErrCursorOutOfRange is returned when a track position does not exist in
// the catalog.
var ErrCursorOutOfRange = errors.New("cursor out of range")

// Attempt is the outcome of a best-effort operation. Failures are recorded
// here instead of being surfaced to the user.
type Attempt struct {
	Tried bool
	Err   error
}

// OK reports whether the operation was tried and succeeded.
func (a Attempt) OK() bool {
	return a.Tried && a.Err == nil
}

// Cursor is the (album, track) position loaded into the player.
type Cursor struct {
	Album int
	Track int
}

// LoadOptions controls LoadTrack.
type LoadOptions struct {
	Autoplay bool
}

// Card is the grid representation of one album.
type Card struct {
	Index   int
	Title   string
	Year    string
	Cover   string
	Tracks  int
	Runtime float64
}

// NowPlaying is what the transport panel shows for the loaded track.
type NowPlaying struct {
	Cover    string
	Album    string
	Track    string
	Extra    string
	Download string
	Position int // 1-based within the album
	Count    int
}

// Progress is the transport's time display.
type Progress struct {
	Percent  float64
	Current  string
	Duration string
}

// View is the output side of the controller.
type View interface {
	RenderGrid(cards []Card)
	ShowTrack(np NowPlaying)
	ShowPlaying(playing bool)
	ShowProgress(p Progress)
	ShowLoop(on bool)
	ShowShuffle(on bool)
	RevealTransport()
}

// Controller owns the catalog, the playback cursor and the shuffle flag,
// and drives a single MediaElement. It is not safe for concurrent use: all
// calls must come from the UI event loop.
type Controller struct {
	logger *zap.Logger
	media  MediaElement
	view   View
	rng    *rand.Rand

	catalog   Catalog
	installed bool
	cursor    Cursor
	selected  bool
	shuffle   bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRand sets the random source used by shuffle.
func WithRand(rng *rand.Rand) ControllerOption {
	return func(c *Controller) {
		c.rng = rng
	}
}

func NewController(media MediaElement, view View, logger *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		logger: logger,
		media:  media,
		view:   view,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load fetches the catalog from source and installs it.
func (c *Controller) Load(ctx context.Context, source Source) Attempt {
	catalog, err := source.Fetch(ctx)
	return c.Install(catalog, err)
}

// Install stores a fetched catalog, renders the grid and cues the first
// track without playing it. fetchErr is the outcome of the fetch; on
// failure the grid stays empty. Only the first call has any effect.
func (c *Controller) Install(catalog Catalog, fetchErr error) Attempt {
	if c.installed {
		return Attempt{Tried: false}
	}
	if fetchErr == nil {
		fetchErr = catalog.Validate()
	}
	if fetchErr != nil {
		c.logger.Warn("Catalog load failed", zap.Error(fetchErr))
		return Attempt{Tried: true, Err: fetchErr}
	}

	c.catalog = catalog
	c.installed = true
	c.logger.Info("Catalog loaded", zap.Int("albums", len(catalog)))

	c.RenderGrid()
	if len(catalog) > 0 && len(catalog[0].Tracks) > 0 {
		c.selected = true
		c.LoadTrack(0, 0, LoadOptions{Autoplay: false})
	}
	return Attempt{Tried: true}
}

// Catalog returns the installed catalog.
func (c *Controller) Catalog() Catalog {
	return c.catalog
}

// Cursor returns the loaded position; ok is false before any track loads.
func (c *Controller) Cursor() (Cursor, bool) {
	return c.cursor, c.selected
}

func (c *Controller) Shuffle() bool {
	return c.shuffle
}

// RenderGrid replaces the view's grid with one card per album.
func (c *Controller) RenderGrid() {
	cards := make([]Card, 0, len(c.catalog))
	for i, album := range c.catalog {
		card := Card{
			Index:   i,
			Title:   album.Title,
			Cover:   album.Cover,
			Tracks:  len(album.Tracks),
			Runtime: album.Runtime(),
		}
		if album.Year != nil {
			card.Year = fmt.Sprint(*album.Year)
		}
		cards = append(cards, card)
	}
	c.view.RenderGrid(cards)
}

// OpenAlbum is the grid's "Open" action: it plays the album from its first
// track and brings the transport into view.
func (c *Controller) OpenAlbum(albumIndex int) Attempt {
	if albumIndex < 0 || albumIndex >= len(c.catalog) {
		return Attempt{Err: fmt.Errorf("album %d: %w", albumIndex, ErrCursorOutOfRange)}
	}
	c.selected = true
	attempt := c.LoadTrack(albumIndex, 0, LoadOptions{Autoplay: true})
	c.view.RevealTransport()
	return attempt
}

// LoadTrack points the media element at a track and updates the transport.
// With Autoplay it tries to start playback; a refusal leaves the player
// paused and is only reported in the returned Attempt.
func (c *Controller) LoadTrack(albumIndex, trackIndex int, opts LoadOptions) Attempt {
	if albumIndex < 0 || albumIndex >= len(c.catalog) ||
		trackIndex < 0 || trackIndex >= len(c.catalog[albumIndex].Tracks) {
		err := fmt.Errorf("track %d of album %d: %w", trackIndex, albumIndex, ErrCursorOutOfRange)
		c.logger.Error("Refusing to load track", zap.Error(err))
		return Attempt{Err: err}
	}

	album := c.catalog[albumIndex]
	track := album.Tracks[trackIndex]
	c.cursor = Cursor{Album: albumIndex, Track: trackIndex}

	c.media.SetSource(track.Src)
	c.media.SetLoop(false)
	c.media.Load()

	c.view.ShowTrack(NowPlaying{
		Cover:    album.Cover,
		Album:    album.Title,
		Track:    track.Title,
		Extra:    ExtraText(track),
		Download: track.Src,
		Position: trackIndex + 1,
		Count:    len(album.Tracks),
	})
	c.view.ShowLoop(c.media.Loop())

	var attempt Attempt
	if opts.Autoplay {
		attempt.Tried = true
		if err := c.media.Play(); err != nil {
			c.logger.Debug("Playback refused", zap.String("src", track.Src), zap.Error(err))
			attempt.Err = err
		}
	}
	c.logger.Debug("Track loaded",
		zap.Int("album", albumIndex),
		zap.Int("track", trackIndex),
		zap.Bool("autoplay", opts.Autoplay))

	c.refreshPlayState()
	c.OnTimeUpdate()
	return attempt
}

// NextTrack advances within the current album: a random different track in
// shuffle mode, otherwise the following one, wrapping at the end.
func (c *Controller) NextTrack() Attempt {
	if !c.selected {
		return Attempt{}
	}
	count := len(c.catalog[c.cursor.Album].Tracks)

	next := (c.cursor.Track + 1) % count
	if c.shuffle {
		next = c.rng.Intn(count)
		for next == c.cursor.Track && count > 1 {
			next = c.rng.Intn(count)
		}
	}
	return c.LoadTrack(c.cursor.Album, next, LoadOptions{Autoplay: true})
}

// PrevTrack steps back within the current album, wrapping to the last
// track. Shuffle does not apply.
func (c *Controller) PrevTrack() Attempt {
	if !c.selected {
		return Attempt{}
	}
	count := len(c.catalog[c.cursor.Album].Tracks)
	prev := (c.cursor.Track - 1 + count) % count
	return c.LoadTrack(c.cursor.Album, prev, LoadOptions{Autoplay: true})
}

// PlayPause toggles playback.
func (c *Controller) PlayPause() Attempt {
	var attempt Attempt
	if c.media.Paused() {
		attempt.Tried = true
		if err := c.media.Play(); err != nil {
			c.logger.Debug("Playback refused", zap.Error(err))
			attempt.Err = err
		}
	} else {
		c.media.Pause()
	}
	c.refreshPlayState()
	return attempt
}

// Stop pauses and rewinds to the start of the track.
func (c *Controller) Stop() {
	c.media.Pause()
	c.media.SetCurrentTime(0)
	c.refreshPlayState()
	c.OnTimeUpdate()
}

func (c *Controller) ToggleLoop() {
	c.media.SetLoop(!c.media.Loop())
	c.view.ShowLoop(c.media.Loop())
}

// ToggleShuffle flips shuffle for subsequent NextTrack calls; the loaded
// track is left alone.
func (c *Controller) ToggleShuffle() {
	c.shuffle = !c.shuffle
	c.view.ShowShuffle(c.shuffle)
}

// SetVolume sets the element volume from a value in [0, 1].
func (c *Controller) SetVolume(v float64) {
	c.media.SetVolume(clamp01(v))
}

// Seek moves to ratio of the track's duration; ratio is clamped to [0, 1]
// and an unknown duration seeks to 0.
func (c *Controller) Seek(ratio float64) {
	ratio = clamp01(ratio)
	duration := c.media.Duration()
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		duration = 0
	}
	c.media.SetCurrentTime(ratio * duration)
	c.OnTimeUpdate()
}

// SeekBy moves the position by delta seconds. The element is left to clamp
// the result.
func (c *Controller) SeekBy(delta float64) {
	c.media.SetCurrentTime(c.media.CurrentTime() + delta)
	c.OnTimeUpdate()
}

// OnTimeUpdate refreshes the progress bar and time display.
func (c *Controller) OnTimeUpdate() {
	current := c.media.CurrentTime()
	duration := c.media.Duration()

	var percent float64
	if duration > 0 && !math.IsInf(duration, 0) && !math.IsNaN(current) {
		percent = current / duration * 100
	}

	c.view.ShowProgress(Progress{
		Percent:  percent,
		Current:  FormatClock(current),
		Duration: FormatClock(duration),
	})
}

// OnEnded advances to the next track unless the element is looping.
func (c *Controller) OnEnded() Attempt {
	if c.media.Loop() {
		return Attempt{}
	}
	return c.NextTrack()
}

// HandleMediaEvent routes an element event to its handler.
func (c *Controller) HandleMediaEvent(ev MediaEvent) {
	switch ev {
	case EventPlay, EventPause:
		c.refreshPlayState()
	case EventEnded:
		c.OnEnded()
	case EventTimeUpdate:
		c.OnTimeUpdate()
	}
}

func (c *Controller) refreshPlayState() {
	c.view.ShowPlaying(!c.media.Paused())
}

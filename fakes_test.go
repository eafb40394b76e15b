package main

import "math"

// fakeMedia is an in-memory MediaElement.
type fakeMedia struct {
	src      string
	loads    int
	paused   bool
	loop     bool
	volume   float64
	current  float64
	duration float64
	playErr  error
	events   chan MediaEvent
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		paused:   true,
		volume:   1,
		duration: math.NaN(),
		events:   make(chan MediaEvent, 8),
	}
}

func (f *fakeMedia) SetSource(src string) { f.src = src }
func (f *fakeMedia) Source() string       { return f.src }

func (f *fakeMedia) Load() {
	f.loads++
	f.paused = true
	f.current = 0
}

func (f *fakeMedia) Play() error {
	if f.playErr != nil {
		return f.playErr
	}
	f.paused = false
	return nil
}

func (f *fakeMedia) Pause()                    { f.paused = true }
func (f *fakeMedia) Paused() bool              { return f.paused }
func (f *fakeMedia) Loop() bool                { return f.loop }
func (f *fakeMedia) SetLoop(loop bool)         { f.loop = loop }
func (f *fakeMedia) Volume() float64           { return f.volume }
func (f *fakeMedia) SetVolume(v float64)       { f.volume = v }
func (f *fakeMedia) CurrentTime() float64      { return f.current }
func (f *fakeMedia) SetCurrentTime(t float64)  { f.current = t }
func (f *fakeMedia) Duration() float64         { return f.duration }
func (f *fakeMedia) Events() <-chan MediaEvent { return f.events }

// fakeView records what the controller last showed.
type fakeView struct {
	cards     []Card
	track     NowPlaying
	shown     int
	playing   bool
	progress  Progress
	loop      bool
	shuffle   bool
	revealed  int
	gridCalls int
}

func (v *fakeView) RenderGrid(cards []Card) {
	v.cards = cards
	v.gridCalls++
}

func (v *fakeView) ShowTrack(np NowPlaying) {
	v.track = np
	v.shown++
}

func (v *fakeView) ShowPlaying(playing bool) { v.playing = playing }
func (v *fakeView) ShowProgress(p Progress)  { v.progress = p }
func (v *fakeView) ShowLoop(on bool)         { v.loop = on }
func (v *fakeView) ShowShuffle(on bool)      { v.shuffle = on }
func (v *fakeView) RevealTransport()         { v.revealed++ }

// testCatalog builds a catalog with one album per entry of trackCounts.
func testCatalog(trackCounts ...int) Catalog {
	catalog := make(Catalog, 0, len(trackCounts))
	for a, n := range trackCounts {
		year := 1990 + a
		album := Album{
			Title: "Tape " + string(rune('A'+a)),
			Year:  &year,
			Cover: "covers/" + string(rune('a'+a)) + ".jpg",
		}
		for t := 0; t < n; t++ {
			album.Tracks = append(album.Tracks, Track{
				Title: "Song " + string(rune('A'+a)) + string(rune('1'+t)),
				Src:   "audio/" + string(rune('a'+a)) + string(rune('1'+t)) + ".mp3",
			})
		}
		catalog = append(catalog, album)
	}
	return catalog
}

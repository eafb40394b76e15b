package main

import (
	"errors"
	"math/rand"
	"testing"

	"go.uber.org/zap"
)

func newTestController(t *testing.T, catalog Catalog) (*Controller, *fakeMedia, *fakeView) {
	t.Helper()
	media := newFakeMedia()
	view := &fakeView{}
	ctrl := NewController(media, view, zap.NewNop(), WithRand(rand.New(rand.NewSource(1))))
	if attempt := ctrl.Install(catalog, nil); attempt.Err != nil {
		t.Fatalf("Install() error = %v", attempt.Err)
	}
	return ctrl, media, view
}

func TestInstallCuesFirstTrack(t *testing.T) {
	ctrl, media, view := newTestController(t, testCatalog(3, 2))

	if len(view.cards) != 2 {
		t.Fatalf("rendered %d cards, want 2", len(view.cards))
	}
	if view.cards[1].Index != 1 || view.cards[1].Tracks != 2 || view.cards[1].Year != "1991" {
		t.Errorf("second card = %+v", view.cards[1])
	}

	cursor, ok := ctrl.Cursor()
	if !ok || cursor != (Cursor{0, 0}) {
		t.Errorf("Cursor() = %v, %v, want {0 0}, true", cursor, ok)
	}
	if media.src != "audio/a1.mp3" {
		t.Errorf("media source = %q", media.src)
	}
	if !media.paused || view.playing {
		t.Error("first track should be cued without playing")
	}
	if view.revealed != 0 {
		t.Error("install should not reveal the transport")
	}
}

func TestInstallOnlyOnce(t *testing.T) {
	ctrl, _, view := newTestController(t, testCatalog(1))

	attempt := ctrl.Install(testCatalog(1, 1, 1), nil)
	if attempt.Tried {
		t.Error("second Install should not be tried")
	}
	if len(ctrl.Catalog()) != 1 || view.gridCalls != 1 {
		t.Errorf("catalog replaced: %d albums, %d grid renders", len(ctrl.Catalog()), view.gridCalls)
	}
}

func TestInstallFailures(t *testing.T) {
	fetchErr := errors.New("connection refused")

	tests := []struct {
		name    string
		catalog Catalog
		err     error
		wantErr error
	}{
		{name: "fetch error", err: fetchErr, wantErr: fetchErr},
		{name: "album without tracks", catalog: testCatalog(2, 0), wantErr: ErrEmptyAlbum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media := newFakeMedia()
			view := &fakeView{}
			ctrl := NewController(media, view, zap.NewNop())

			attempt := ctrl.Install(tt.catalog, tt.err)
			if !attempt.Tried || !errors.Is(attempt.Err, tt.wantErr) {
				t.Fatalf("Install() = %+v, want error %v", attempt, tt.wantErr)
			}
			if view.gridCalls != 0 || media.loads != 0 {
				t.Error("failed install should leave the grid empty and load nothing")
			}
			if _, ok := ctrl.Cursor(); ok {
				t.Error("no track should be selected")
			}
		})
	}
}

func TestInstallEmptyCatalog(t *testing.T) {
	ctrl, media, view := newTestController(t, Catalog{})

	if view.gridCalls != 1 || len(view.cards) != 0 {
		t.Errorf("grid = %d calls, %d cards", view.gridCalls, len(view.cards))
	}
	if media.loads != 0 {
		t.Error("empty catalog should load nothing")
	}
	if attempt := ctrl.NextTrack(); attempt.Tried || attempt.Err != nil {
		t.Errorf("NextTrack() on empty catalog = %+v", attempt)
	}
}

func TestLoadTrackShowsTrack(t *testing.T) {
	tests := []struct {
		name      string
		track     Track
		wantExtra string
	}{
		{name: "no metadata", track: Track{Title: "Plain", Src: "plain.mp3"}, wantExtra: "—"},
		{name: "bpm and key", track: Track{Title: "Full", Src: "full.mp3", BPM: 120, Key: "Am"}, wantExtra: "120 BPM • Am"},
		{name: "bpm only", track: Track{Title: "Tempo", Src: "tempo.mp3", BPM: 98.5}, wantExtra: "98.5 BPM"},
		{name: "key only", track: Track{Title: "Keyed", Src: "keyed.mp3", Key: "F#m"}, wantExtra: "F#m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := testCatalog(2)
			catalog[0].Tracks[1] = tt.track
			ctrl, media, view := newTestController(t, catalog)

			if attempt := ctrl.LoadTrack(0, 1, LoadOptions{}); attempt.Tried {
				t.Errorf("LoadTrack() without autoplay tried to play")
			}

			want := NowPlaying{
				Cover:    catalog[0].Cover,
				Album:    catalog[0].Title,
				Track:    tt.track.Title,
				Extra:    tt.wantExtra,
				Download: tt.track.Src,
				Position: 2,
				Count:    2,
			}
			if view.track != want {
				t.Errorf("ShowTrack() = %+v, want %+v", view.track, want)
			}
			if media.src != tt.track.Src {
				t.Errorf("media source = %q, want %q", media.src, tt.track.Src)
			}
		})
	}
}

func TestLoadTrackResetsLoop(t *testing.T) {
	ctrl, media, view := newTestController(t, testCatalog(2))

	ctrl.ToggleLoop()
	if !media.loop || !view.loop {
		t.Fatal("loop not enabled")
	}

	ctrl.LoadTrack(0, 1, LoadOptions{})
	if media.loop || view.loop {
		t.Error("loading a track should clear loop")
	}
}

func TestLoadTrackOutOfRange(t *testing.T) {
	ctrl, media, _ := newTestController(t, testCatalog(3))
	loads := media.loads

	for _, c := range []Cursor{{-1, 0}, {1, 0}, {0, 3}, {0, -1}} {
		attempt := ctrl.LoadTrack(c.Album, c.Track, LoadOptions{Autoplay: true})
		if !errors.Is(attempt.Err, ErrCursorOutOfRange) {
			t.Errorf("LoadTrack(%d, %d) error = %v, want ErrCursorOutOfRange", c.Album, c.Track, attempt.Err)
		}
	}
	if media.loads != loads {
		t.Error("out of range loads reached the media element")
	}
	if cursor, _ := ctrl.Cursor(); cursor != (Cursor{0, 0}) {
		t.Errorf("cursor moved to %v", cursor)
	}
}

func TestAutoplayRefused(t *testing.T) {
	ctrl, media, view := newTestController(t, testCatalog(3, 2))
	media.playErr = errors.New("not allowed")

	attempt := ctrl.OpenAlbum(1)
	if !attempt.Tried || attempt.Err == nil {
		t.Fatalf("OpenAlbum() = %+v, want a refused attempt", attempt)
	}
	if view.playing {
		t.Error("view shows playing after a refused play")
	}
	if cursor, _ := ctrl.Cursor(); cursor != (Cursor{1, 0}) {
		t.Errorf("cursor = %v, want {1 0}", cursor)
	}
	if view.revealed != 1 {
		t.Error("OpenAlbum should reveal the transport")
	}
}

func TestOpenAlbumPlays(t *testing.T) {
	ctrl, media, view := newTestController(t, testCatalog(3, 2))

	if attempt := ctrl.OpenAlbum(1); !attempt.OK() {
		t.Fatalf("OpenAlbum() = %+v", attempt)
	}
	if media.paused || !view.playing {
		t.Error("opened album should be playing")
	}
	if view.track.Album != "Tape B" || view.track.Track != "Song B1" {
		t.Errorf("now playing = %+v", view.track)
	}

	if attempt := ctrl.OpenAlbum(5); !errors.Is(attempt.Err, ErrCursorOutOfRange) {
		t.Errorf("OpenAlbum(5) error = %v", attempt.Err)
	}
}

func TestNextTrackSequential(t *testing.T) {
	tests := []struct {
		from int
		want int
	}{
		{from: 0, want: 1},
		{from: 1, want: 2},
		{from: 2, want: 0},
	}

	for _, tt := range tests {
		ctrl, media, _ := newTestController(t, testCatalog(3))
		ctrl.LoadTrack(0, tt.from, LoadOptions{})

		ctrl.NextTrack()
		cursor, _ := ctrl.Cursor()
		if cursor.Track != tt.want {
			t.Errorf("NextTrack() from %d = %d, want %d", tt.from, cursor.Track, tt.want)
		}
		if media.paused {
			t.Errorf("NextTrack() from %d did not autoplay", tt.from)
		}
	}
}

func TestNextTrackShuffle(t *testing.T) {
	ctrl, _, view := newTestController(t, testCatalog(4))
	ctrl.ToggleShuffle()
	if !ctrl.Shuffle() || !view.shuffle {
		t.Fatal("shuffle not enabled")
	}

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		before, _ := ctrl.Cursor()
		ctrl.NextTrack()
		after, _ := ctrl.Cursor()
		if after.Track == before.Track {
			t.Fatalf("shuffle repeated track %d", after.Track)
		}
		if after.Album != 0 {
			t.Fatalf("shuffle left the album: %v", after)
		}
		seen[after.Track] = true
	}
	if len(seen) != 4 {
		t.Errorf("shuffle visited %d distinct tracks, want 4", len(seen))
	}
}

func TestNextTrackShuffleSingleTrack(t *testing.T) {
	ctrl, media, _ := newTestController(t, testCatalog(1))
	ctrl.ToggleShuffle()

	loads := media.loads
	ctrl.NextTrack()
	if cursor, _ := ctrl.Cursor(); cursor.Track != 0 {
		t.Errorf("cursor = %v, want track 0", cursor)
	}
	if media.loads != loads+1 {
		t.Error("single track should be reloaded")
	}
}

func TestPrevTrackWraps(t *testing.T) {
	for _, shuffle := range []bool{false, true} {
		ctrl, _, _ := newTestController(t, testCatalog(3))
		if shuffle {
			ctrl.ToggleShuffle()
		}

		ctrl.PrevTrack()
		if cursor, _ := ctrl.Cursor(); cursor.Track != 2 {
			t.Errorf("shuffle=%v: PrevTrack() from 0 = %d, want 2", shuffle, cursor.Track)
		}
		ctrl.PrevTrack()
		if cursor, _ := ctrl.Cursor(); cursor.Track != 1 {
			t.Errorf("shuffle=%v: PrevTrack() from 2 = %d, want 1", shuffle, cursor.Track)
		}
	}
}

func TestSeek(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		ratio    float64
		want     float64
	}{
		{name: "half", duration: 200, ratio: 0.5, want: 100},
		{name: "start", duration: 200, ratio: 0, want: 0},
		{name: "past end", duration: 200, ratio: 1.5, want: 200},
		{name: "before start", duration: 200, ratio: -0.2, want: 0},
		{name: "unknown duration", duration: nan(), ratio: 0.5, want: 0},
		{name: "zero duration", duration: 0, ratio: 0.5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, media, _ := newTestController(t, testCatalog(1))
			media.duration = tt.duration
			media.current = 42

			ctrl.Seek(tt.ratio)
			if media.current != tt.want {
				t.Errorf("Seek(%v) position = %v, want %v", tt.ratio, media.current, tt.want)
			}
		})
	}
}

func TestSeekBy(t *testing.T) {
	ctrl, media, view := newTestController(t, testCatalog(1))
	media.duration = 200
	media.current = 50

	ctrl.Dispatch(ActionSeekForward)
	if media.current != 55 {
		t.Errorf("position = %v, want 55", media.current)
	}
	ctrl.Dispatch(ActionSeekBackward)
	ctrl.Dispatch(ActionSeekBackward)
	if media.current != 45 {
		t.Errorf("position = %v, want 45", media.current)
	}
	if view.progress.Current != "0:45" || view.progress.Duration != "3:20" {
		t.Errorf("progress = %+v", view.progress)
	}
}

func TestEndedRespectsLoop(t *testing.T) {
	ctrl, _, _ := newTestController(t, testCatalog(3))

	ctrl.ToggleLoop()
	ctrl.HandleMediaEvent(EventEnded)
	if cursor, _ := ctrl.Cursor(); cursor.Track != 0 {
		t.Errorf("ended while looping advanced to %d", cursor.Track)
	}

	ctrl.ToggleLoop()
	ctrl.HandleMediaEvent(EventEnded)
	if cursor, _ := ctrl.Cursor(); cursor.Track != 1 {
		t.Errorf("ended without loop = %d, want 1", cursor.Track)
	}
}

func TestPlayPauseAndStop(t *testing.T) {
	ctrl, media, view := newTestController(t, testCatalog(2))
	media.duration = 120

	if attempt := ctrl.Dispatch(ActionPlayPause); !attempt.OK() {
		t.Fatalf("play = %+v", attempt)
	}
	if !view.playing {
		t.Error("view not playing after play")
	}

	media.current = 30
	ctrl.Dispatch(ActionPlayPause)
	if view.playing || !media.paused {
		t.Error("still playing after pause")
	}

	ctrl.Dispatch(ActionPlayPause)
	ctrl.Dispatch(ActionStop)
	if !media.paused || media.current != 0 {
		t.Errorf("stop left paused=%v position=%v", media.paused, media.current)
	}
	if view.playing || view.progress.Current != "0:00" {
		t.Errorf("view after stop: playing=%v progress=%+v", view.playing, view.progress)
	}
}

func TestVolumeClamped(t *testing.T) {
	ctrl, media, _ := newTestController(t, testCatalog(1))

	ctrl.Dispatch(ActionVolumeUp)
	if media.volume != 1 {
		t.Errorf("volume = %v, want 1", media.volume)
	}

	ctrl.SetVolume(0.02)
	ctrl.Dispatch(ActionVolumeDown)
	if media.volume != 0 {
		t.Errorf("volume = %v, want 0", media.volume)
	}

	ctrl.SetVolume(0.5)
	if media.volume != 0.5 {
		t.Errorf("volume = %v, want 0.5", media.volume)
	}
}

func TestTimeUpdateProgress(t *testing.T) {
	ctrl, media, view := newTestController(t, testCatalog(1))

	media.current = 65
	ctrl.HandleMediaEvent(EventTimeUpdate)
	if view.progress.Percent != 0 || view.progress.Duration != "0:00" {
		t.Errorf("unknown duration progress = %+v", view.progress)
	}

	media.duration = 260
	ctrl.HandleMediaEvent(EventTimeUpdate)
	want := Progress{Percent: 25, Current: "1:05", Duration: "4:20"}
	if view.progress != want {
		t.Errorf("progress = %+v, want %+v", view.progress, want)
	}
}

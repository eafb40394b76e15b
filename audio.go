package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
	"go.uber.org/zap"
)

const (
	userAgent  = "Mozilla/5.0 (compatible; mixtape/1.0)"
	outputRate = beep.SampleRate(44100)
	levelBands = 24
)

var (
	// ErrNoSource is returned by Play when nothing has been loaded.
	ErrNoSource = errors.New("no source loaded")
	// ErrUnsupportedFormat is returned for sources no decoder can read.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// MediaEvent is a notification emitted by a media element.
type MediaEvent int

const (
	EventPlay MediaEvent = iota + 1
	EventPause
	EventEnded
	EventTimeUpdate
)

func (e MediaEvent) String() string {
	switch e {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventTimeUpdate:
		return "timeupdate"
	default:
		return "unknown"
	}
}

// MediaElement is the single audio output the controller drives.
// Times are in seconds; Duration is NaN until a source is loaded.
type MediaElement interface {
	SetSource(src string)
	Source() string
	Load()
	Play() error
	Pause()
	Paused() bool
	Loop() bool
	SetLoop(loop bool)
	Volume() float64
	SetVolume(v float64)
	CurrentTime() float64
	SetCurrentTime(t float64)
	Duration() float64
	Events() <-chan MediaEvent
}

// outputLock serializes access to streamers read by the audio goroutine.
type outputLock interface {
	Lock()
	Unlock()
}

type speakerLock struct{}

func (speakerLock) Lock()   { speaker.Lock() }
func (speakerLock) Unlock() { speaker.Unlock() }

// loadedTrack bundles the resources of the current source.
type loadedTrack struct {
	decoder beep.StreamSeekCloser
	format  beep.Format
	reader  io.Closer
	ctrl    *beep.Ctrl
	volume  *effects.Volume
}

func (t *loadedTrack) Close() {
	if t.decoder != nil {
		t.decoder.Close()
	}
	if t.reader != nil {
		t.reader.Close()
	}
}

// BeepElement is a MediaElement that plays through the beep speaker.
type BeepElement struct {
	logger *zap.Logger
	out    outputLock
	mixer  *beep.Mixer
	close  func()

	// mu is always taken before out.
	mu          sync.Mutex
	src         string
	track       *loadedTrack
	loadErr     error
	volumeLevel float64

	// Read from the audio goroutine.
	loop  atomic.Bool
	ended atomic.Bool
	gen   atomic.Uint64

	events chan MediaEvent

	levelsMu sync.RWMutex
	levels   []float64
}

// NewBeepElement initializes the speaker and returns an element playing
// through it.
func NewBeepElement(logger *zap.Logger) (*BeepElement, error) {
	if err := speaker.Init(outputRate, outputRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	mixer := &beep.Mixer{}
	speaker.Play(mixer)

	e := newBeepElement(logger, speakerLock{}, mixer)
	e.close = speaker.Close
	logger.Debug("Speaker initialized", zap.Int("sampleRate", int(outputRate)))
	return e, nil
}

func newBeepElement(logger *zap.Logger, out outputLock, mixer *beep.Mixer) *BeepElement {
	return &BeepElement{
		logger:      logger,
		out:         out,
		mixer:       mixer,
		volumeLevel: 1,
		events:      make(chan MediaEvent, 16),
	}
}

func (e *BeepElement) Events() <-chan MediaEvent {
	return e.events
}

func (e *BeepElement) emit(ev MediaEvent) {
	select {
	case e.events <- ev:
	default:
		e.logger.Debug("Media event dropped", zap.Stringer("event", ev))
	}
}

func (e *BeepElement) SetSource(src string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = src
}

func (e *BeepElement) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Load drops the current track and decodes the source. A failure is kept
// and reported by the next Play.
func (e *BeepElement) Load() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.unloadLocked()
	e.loadErr = nil
	e.ended.Store(false)

	if e.src == "" {
		e.loadErr = ErrNoSource
		return
	}

	track, err := e.decode(e.src)
	if err != nil {
		e.logger.Warn("Failed to load source", zap.String("src", e.src), zap.Error(err))
		e.loadErr = err
		return
	}

	e.track = track
	e.attachLocked()
	e.logger.Debug("Source loaded",
		zap.String("src", e.src),
		zap.Int("sampleRate", int(track.format.SampleRate)),
		zap.Int("samples", track.decoder.Len()))
}

func (e *BeepElement) decode(src string) (*loadedTrack, error) {
	reader, contentType, err := openResource(context.Background(), src)
	if err != nil {
		return nil, err
	}

	decoder, format, err := decodeStream(reader, src, contentType)
	if err != nil {
		reader.Close()
		return nil, err
	}

	return &loadedTrack{decoder: decoder, format: format, reader: reader}, nil
}

// attachLocked builds a fresh, paused streamer chain for the current track
// and hands it to the mixer.
func (e *BeepElement) attachLocked() {
	t := e.track
	gen := e.gen.Add(1)

	looped := &loopStreamer{streamer: t.decoder, loop: &e.loop}
	resampled := beep.Resample(4, t.format.SampleRate, outputRate, looped)
	capture := newCaptureStreamer(resampled, e)

	e.out.Lock()
	defer e.out.Unlock()

	t.ctrl = &beep.Ctrl{Streamer: capture, Paused: true}
	t.volume = &effects.Volume{Streamer: t.ctrl, Base: 2}
	applyVolume(t.volume, e.volumeLevel)

	e.mixer.Add(beep.Seq(t.volume, beep.Callback(func() {
		// Runs on the audio goroutine with the output lock held.
		if e.gen.Load() != gen {
			return
		}
		e.ended.Store(true)
		e.emit(EventEnded)
	})))
}

func (e *BeepElement) unloadLocked() {
	e.gen.Add(1)
	e.out.Lock()
	e.mixer.Clear()
	e.out.Unlock()

	if e.track != nil {
		e.track.Close()
		e.track = nil
	}
	e.clearLevels()
}

// Play starts or resumes playback, rewinding first if the track ended.
func (e *BeepElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loadErr != nil {
		return e.loadErr
	}
	t := e.track
	if t == nil {
		return ErrNoSource
	}

	if e.ended.Load() {
		e.out.Lock()
		err := t.decoder.Seek(0)
		e.out.Unlock()
		if err != nil {
			return fmt.Errorf("failed to rewind: %w", err)
		}
		e.ended.Store(false)
		e.attachLocked()
	}

	e.out.Lock()
	wasPaused := t.ctrl.Paused
	t.ctrl.Paused = false
	e.out.Unlock()

	if wasPaused {
		e.emit(EventPlay)
	}
	return nil
}

func (e *BeepElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.track
	if t == nil || e.ended.Load() {
		return
	}

	e.out.Lock()
	wasPlaying := !t.ctrl.Paused
	t.ctrl.Paused = true
	e.out.Unlock()

	if wasPlaying {
		e.emit(EventPause)
	}
}

func (e *BeepElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.track == nil || e.ended.Load() {
		return true
	}

	e.out.Lock()
	defer e.out.Unlock()
	return e.track.ctrl.Paused
}

func (e *BeepElement) Loop() bool {
	return e.loop.Load()
}

func (e *BeepElement) SetLoop(loop bool) {
	e.loop.Store(loop)
}

func (e *BeepElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volumeLevel
}

// SetVolume sets a linear volume in [0, 1].
func (e *BeepElement) SetVolume(v float64) {
	v = clamp01(v)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.volumeLevel = v
	if e.track == nil || e.track.volume == nil {
		return
	}
	e.out.Lock()
	applyVolume(e.track.volume, v)
	e.out.Unlock()
}

func applyVolume(vol *effects.Volume, level float64) {
	if level <= 0 {
		vol.Silent = true
		vol.Volume = 0
		return
	}
	vol.Silent = false
	vol.Volume = math.Log2(level)
}

func (e *BeepElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.track
	if t == nil {
		return 0
	}

	e.out.Lock()
	pos := t.decoder.Position()
	e.out.Unlock()
	return t.format.SampleRate.D(pos).Seconds()
}

// SetCurrentTime seeks to sec, clamped into the track. NaN and seeks on
// unseekable streams are ignored.
func (e *BeepElement) SetCurrentTime(sec float64) {
	if math.IsNaN(sec) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.track
	if t == nil {
		return
	}

	length := t.decoder.Len()
	if length <= 0 {
		return
	}
	if sec < 0 {
		sec = 0
	}
	sample := t.format.SampleRate.N(time.Duration(sec * float64(time.Second)))
	if sample > length {
		sample = length
	}

	e.out.Lock()
	err := t.decoder.Seek(sample)
	e.out.Unlock()
	if err != nil {
		e.logger.Debug("Seek ignored", zap.String("src", e.src), zap.Error(err))
		return
	}

	if e.ended.Load() && sample < length {
		e.ended.Store(false)
		e.attachLocked()
	}
}

func (e *BeepElement) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.track
	if t == nil {
		return math.NaN()
	}
	length := t.decoder.Len()
	if length <= 0 {
		return math.NaN()
	}
	return t.format.SampleRate.D(length).Seconds()
}

// Levels returns the latest per-band amplitudes for the visualizer.
func (e *BeepElement) Levels() []float64 {
	e.levelsMu.RLock()
	defer e.levelsMu.RUnlock()

	levels := make([]float64, levelBands)
	copy(levels, e.levels)
	return levels
}

func (e *BeepElement) storeLevels(levels []float64) {
	e.levelsMu.Lock()
	e.levels = levels
	e.levelsMu.Unlock()
}

func (e *BeepElement) clearLevels() {
	e.storeLevels(nil)
}

// Close releases the track and the speaker.
func (e *BeepElement) Close() {
	e.mu.Lock()
	e.unloadLocked()
	e.mu.Unlock()

	if e.close != nil {
		e.close()
	}
}

// loopStreamer rewinds its source at the end while loop is set, so the
// element repeats without the controller's involvement.
type loopStreamer struct {
	streamer beep.StreamSeeker
	loop     *atomic.Bool
}

func (l *loopStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	rewound := false
	for n < len(samples) {
		sn, sok := l.streamer.Stream(samples[n:])
		n += sn
		if sok && sn > 0 {
			rewound = false
			continue
		}
		if rewound || !l.loop.Load() || l.streamer.Len() == 0 {
			break
		}
		if err := l.streamer.Seek(0); err != nil {
			break
		}
		rewound = true
	}
	return n, n > 0
}

func (l *loopStreamer) Err() error {
	return l.streamer.Err()
}

// captureStreamer passes samples through and records band levels.
type captureStreamer struct {
	streamer beep.Streamer
	element  *BeepElement
	buffer   []float64
	size     int
}

func newCaptureStreamer(streamer beep.Streamer, element *BeepElement) *captureStreamer {
	return &captureStreamer{
		streamer: streamer,
		element:  element,
		buffer:   make([]float64, 0, 1024),
		size:     1024,
	}
}

func (c *captureStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = c.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		c.buffer = append(c.buffer, (samples[i][0]+samples[i][1])/2)
		if len(c.buffer) >= c.size {
			c.element.storeLevels(bandLevels(c.buffer, levelBands))
			c.buffer = c.buffer[:0]
		}
	}
	return n, ok
}

func (c *captureStreamer) Err() error {
	return c.streamer.Err()
}

// bandLevels splits the buffer into equal segments and returns the RMS of
// each.
func bandLevels(buffer []float64, bands int) []float64 {
	size := len(buffer) / bands
	if size == 0 {
		return make([]float64, bands)
	}

	levels := make([]float64, bands)
	for band := 0; band < bands; band++ {
		var sum float64
		segment := buffer[band*size : (band+1)*size]
		for _, s := range segment {
			sum += s * s
		}
		levels[band] = math.Sqrt(sum / float64(len(segment)))
	}
	return levels
}

// bufferedHTTPReader wraps a buffered response body.
type bufferedHTTPReader struct {
	reader *bufio.Reader
	closer io.Closer
}

func (b *bufferedHTTPReader) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

func (b *bufferedHTTPReader) Close() error {
	return b.closer.Close()
}

var streamClient = &http.Client{
	// No overall timeout: streams are read for as long as they play.
	Transport: &http.Transport{
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: time.Second,
	},
}

// openResource opens a local file or an HTTP(S) resource. The content type
// is empty for local files.
func openResource(ctx context.Context, src string) (io.ReadCloser, string, error) {
	if !isRemote(src) {
		file, err := os.Open(src)
		if err != nil {
			return nil, "", err
		}
		return file, "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	reader := &bufferedHTTPReader{
		reader: bufio.NewReaderSize(resp.Body, 32*1024),
		closer: resp.Body,
	}
	return reader, resp.Header.Get("Content-Type"), nil
}

// sourceExt returns the lower-cased extension of a path or URL.
func sourceExt(src string) string {
	p := src
	if isRemote(src) {
		if u, err := url.Parse(src); err == nil {
			p = u.Path
		}
	}
	return strings.ToLower(path.Ext(p))
}

func decodeStream(rc io.ReadCloser, src, contentType string) (beep.StreamSeekCloser, beep.Format, error) {
	switch sourceExt(src) {
	case ".mp3":
		return mp3.Decode(rc)
	case ".wav":
		return wav.Decode(rc)
	case ".flac":
		return flac.Decode(rc)
	case ".ogg", ".oga":
		return vorbis.Decode(rc)
	}

	switch {
	case strings.Contains(contentType, "ogg"), strings.Contains(contentType, "vorbis"):
		return vorbis.Decode(rc)
	case strings.Contains(contentType, "wav"):
		return wav.Decode(rc)
	case strings.Contains(contentType, "flac"):
		return flac.Decode(rc)
	case strings.Contains(contentType, "mpeg"), isRemote(src):
		// Most streams are mp3 whatever they announce.
		return mp3.Decode(rc)
	}

	return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

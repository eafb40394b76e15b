package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const probeWorkers = 4

// Prober fills in track metadata that the catalog leaves out, reading it
// from local audio files.
type Prober struct {
	logger *zap.Logger
}

func NewProber(logger *zap.Logger) *Prober {
	return &Prober{logger: logger}
}

// Probe annotates every local track of the catalog in place. Remote tracks
// and unreadable files are left as they are.
func (p *Prober) Probe(ctx context.Context, catalog Catalog) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(probeWorkers)

	for ai := range catalog {
		for ti := range catalog[ai].Tracks {
			track := &catalog[ai].Tracks[ti]
			if isRemote(track.Src) || track.Src == "" {
				continue
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				p.probeTrack(track)
				return nil
			})
		}
	}

	return g.Wait()
}

func (p *Prober) probeTrack(track *Track) {
	if track.Duration <= 0 {
		if d := calculateDuration(track.Src); d > 0 {
			track.Duration = d
		}
	}
	if track.BPM == 0 || track.Key == "" {
		bpm, key, err := readTempoTags(track.Src)
		if err != nil {
			p.logger.Debug("No tags", zap.String("src", track.Src), zap.Error(err))
		}
		if track.BPM == 0 {
			track.BPM = bpm
		}
		if track.Key == "" {
			track.Key = key
		}
	}
}

// readTempoTags extracts BPM and musical key from ID3 or Vorbis comments.
func readTempoTags(filePath string) (float64, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, "", err
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read tags: %w", err)
	}

	raw := metadata.Raw()
	var bpm float64
	for _, name := range []string{"TBPM", "bpm", "BPM", "tmpo"} {
		if v, ok := raw[name]; ok {
			if f, ok := parseBPM(v); ok {
				bpm = f
				break
			}
		}
	}

	var key string
	for _, name := range []string{"TKEY", "initialkey", "INITIALKEY", "key"} {
		if v, ok := raw[name].(string); ok && strings.TrimSpace(v) != "" {
			key = strings.TrimSpace(v)
			break
		}
	}

	return bpm, key, nil
}

func parseBPM(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && f > 0
	case int:
		return float64(t), t > 0
	case float64:
		return t, t > 0
	}
	return 0, false
}

func calculateDuration(filePath string) float64 {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".mp3":
		return calculateMP3Duration(filePath)
	case ".flac":
		return calculateFLACDuration(filePath)
	case ".wav":
		return calculateWAVDuration(filePath)
	case ".m4a", ".mp4":
		return calculateM4ADuration(filePath)
	case ".ogg":
		return calculateOGGDuration(filePath)
	default:
		return 0
	}
}

func calculateMP3Duration(filePath string) float64 {
	file, err := os.Open(filePath)
	if err != nil {
		return 0
	}
	defer file.Close()

	decoder := mp3.NewDecoder(file)
	var total time.Duration
	var skipped int

	for {
		var frame mp3.Frame
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				break
			}
			return 0
		}
		total += frame.Duration()
	}

	return total.Seconds()
}

func calculateFLACDuration(filePath string) float64 {
	stream, err := flac.ParseFile(filePath)
	if err != nil {
		return 0
	}
	defer stream.Close()

	info := stream.Info
	if info == nil || info.SampleRate == 0 || info.NSamples == 0 {
		return 0
	}

	return float64(info.NSamples) / float64(info.SampleRate)
}

func calculateWAVDuration(filePath string) float64 {
	file, err := os.Open(filePath)
	if err != nil {
		return 0
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return 0
	}

	if err := decoder.FwdToPCM(); err != nil {
		return 0
	}

	// PCMSize is in bytes
	frameSize := int(decoder.NumChans) * int(decoder.BitDepth) / 8
	if frameSize == 0 || decoder.SampleRate == 0 {
		return 0
	}
	return float64(decoder.PCMSize/frameSize) / float64(decoder.SampleRate)
}

// calculateM4ADuration reads the movie header box for timescale and duration.
func calculateM4ADuration(filePath string) float64 {
	file, err := os.Open(filePath)
	if err != nil {
		return 0
	}
	defer file.Close()

	boxes, err := mp4.ExtractBoxWithPayload(file, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil || len(boxes) == 0 {
		return 0
	}

	mvhd, ok := boxes[0].Payload.(*mp4.Mvhd)
	if !ok || mvhd.Timescale == 0 {
		return 0
	}

	var units uint64
	if mvhd.GetVersion() == 0 {
		units = uint64(mvhd.DurationV0)
	} else {
		units = mvhd.DurationV1
	}
	return float64(units) / float64(mvhd.Timescale)
}

func calculateOGGDuration(filePath string) float64 {
	file, err := os.Open(filePath)
	if err != nil {
		return 0
	}
	defer file.Close()

	reader, err := oggvorbis.NewReader(file)
	if err != nil {
		return 0
	}

	sampleRate := reader.SampleRate()
	if sampleRate == 0 {
		return 0
	}

	return float64(reader.Length()) / float64(sampleRate)
}

// Package converter drives the DTS to UFF pipeline: decode every channel
// header and the shared descriptor, resolve the requested tracks, then
// scale and encode one Type-58 dataset per track.
package converter

import (
	"context"
	"fmt"
	"math"
	"time"

	"dts2uff/internal/dts"
	"dts2uff/internal/uff"
)

// Progress is one high-level progress update emitted during conversion.
type Progress struct {
	Completed int
	Total     int
	TrackName string
}

// Report summarizes a successful conversion.
type Report struct {
	ChannelCount    int      // channels found in the DTS folder
	TrackNameCount  int      // names supplied in the track list
	ProcessedTracks []string // names written, in file order
	Warnings        []string
}

// Options is the full conversion request surface.
type Options struct {
	InputDir   string
	TracksFile string
	OutputPath string

	Encoding   uff.Encoding
	WideFields bool
	Append     bool // append to an existing UFF file instead of replacing it

	// Slice restricts every selected track to the same half-open sample
	// range; nil exports the full range.
	Slice *dts.SampleRange

	// TrackFilter selects a subset of tracks by name; empty selects all.
	TrackFilter []string

	// Workers bounds concurrent track reads. Dataset order in the output
	// file always follows track-selection order regardless.
	Workers int

	// OnProgress, when set, receives one update per completed track.
	OnProgress func(Progress)
}

type trackResult struct {
	series *dts.ScaledSeries
	err    error
}

// Convert runs one conversion request end to end. The channel registry is
// fully built and validated, including slice bounds for every selected
// track, before the output file is touched; validation failures never leave
// a half-written UFF file behind. Cancellation is honored between tracks,
// never mid-dataset.
func Convert(ctx context.Context, opts Options) (*Report, error) {
	names, err := dts.LoadTrackNames(opts.TracksFile)
	if err != nil {
		return nil, err
	}

	reg, err := dts.OpenFolder(opts.InputDir)
	if err != nil {
		return nil, err
	}

	tracks, err := dts.SelectTracks(reg, names, opts.TrackFilter)
	if err != nil {
		return nil, err
	}

	// Co-requested tracks share a common length: the minimum point count
	// across the selection bounds ragged recordings.
	var clampTo uint64
	if len(tracks) > 1 {
		for _, track := range tracks {
			ch, err := reg.ChannelAt(track.Index)
			if err != nil {
				return nil, err
			}
			if clampTo == 0 || ch.Header.PointCount < clampTo {
				clampTo = ch.Header.PointCount
			}
		}
	}

	// Validate the slice against every selected channel up front, so range
	// errors surface before any output mutation.
	if opts.Slice != nil {
		for _, track := range tracks {
			ch, _ := reg.ChannelAt(track.Index)
			if opts.Slice.End > ch.Header.PointCount {
				return nil, fmt.Errorf("track %q (channel %d): range [%d:%d) exceeds %d points: %w",
					track.Name, ch.Index, opts.Slice.Start, opts.Slice.End,
					ch.Header.PointCount, dts.ErrRangeOutOfBounds)
			}
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	// Tracks are read concurrently; the single writer below consumes the
	// results strictly in selection order so concurrency never reorders
	// datasets in the file.
	results := make([]chan trackResult, len(tracks))
	sem := make(chan struct{}, workers)
	for i := range tracks {
		results[i] = make(chan trackResult, 1)
		go func(i int) {
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[i] <- trackResult{err: ctx.Err()}
				return
			}
			ch, err := reg.ChannelAt(tracks[i].Index)
			if err != nil {
				results[i] <- trackResult{err: err}
				return
			}
			series, err := dts.ReadScaled(ch, opts.Slice, clampTo)
			results[i] <- trackResult{series: series, err: err}
		}(i)
	}

	writer := uff.NewWriter(uff.Options{Encoding: opts.Encoding, WideFields: opts.WideFields})
	date := time.Now().Format("02-Jan-06 15:04:05")

	report := &Report{
		ChannelCount:   reg.Count(),
		TrackNameCount: len(names),
		Warnings:       append([]string(nil), reg.Warnings()...),
	}
	if len(names) != reg.Count() {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"number of track names (%d) does not match number of channels (%d)",
			len(names), reg.Count()))
	}

	for i, track := range tracks {
		// Cancellation point: between producing scaled samples and encoding,
		// never mid-write.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		res := <-results[i]
		if res.err != nil {
			return nil, fmt.Errorf("track %q: %w", track.Name, res.err)
		}

		ch, _ := reg.ChannelAt(track.Index)
		ds := &uff.Dataset{
			Label:         track.Name,
			Info:          ch.Meta.Description,
			Date:          date,
			FunctionType:  uff.FunctionTimeResponse,
			RspEntity:     track.Name,
			RspNode:       ch.Index,
			RspDir:        0,
			AbscissaFirst: res.series.StartTime,
			AbscissaInc:   1 / res.series.SampleRate,
			Values:        res.series.Values,
			OrdinateUnits: res.series.Units,
		}

		replace := !opts.Append && i == 0
		if err := writer.WriteFile(opts.OutputPath, ds, replace); err != nil {
			return nil, fmt.Errorf("track %q: %w", track.Name, err)
		}

		report.ProcessedTracks = append(report.ProcessedTracks, track.Name)
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Completed: i + 1, Total: len(tracks), TrackName: track.Name})
		}
	}

	return report, nil
}

// TrackInfo is one row of the track listing produced by ListTracks.
type TrackInfo struct {
	Channel     int     `json:"channel"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SampleRate  float64 `json:"samplingRateHz"`
	Sensitivity float64 `json:"sensitivity_mV_per_EU,omitempty"`
	Serial      string  `json:"serial,omitempty"`
	Unit        string  `json:"unit"`
	PointCount  uint64  `json:"pointCount"`
}

// ListTracks inspects a DTS folder without converting anything. When a
// track-name file is given, its entries override the per-channel names
// positionally.
func ListTracks(inputDir, tracksFile string) ([]TrackInfo, []string, error) {
	reg, err := dts.OpenFolder(inputDir)
	if err != nil {
		return nil, nil, err
	}

	var names []string
	warnings := append([]string(nil), reg.Warnings()...)
	if tracksFile != "" {
		names, err = dts.LoadTrackNames(tracksFile)
		if err != nil {
			return nil, nil, err
		}
		if len(names) != reg.Count() {
			warnings = append(warnings, fmt.Sprintf(
				"track name count (%d) differs from channel count (%d)",
				len(names), reg.Count()))
		}
	}

	infos := make([]TrackInfo, 0, reg.Count())
	for _, ch := range reg.Channels() {
		name := ch.Meta.Name
		if len(names) > 0 {
			name = dts.TrackNameAt(names, ch.Index)
		} else if name == "" {
			name = fmt.Sprintf("Track %d", ch.Index)
		}

		// NaN marks an absent sensitivity attribute; it has no JSON encoding.
		sensitivity := ch.Meta.Sensitivity
		if math.IsNaN(sensitivity) {
			sensitivity = 0
		}

		infos = append(infos, TrackInfo{
			Channel:     ch.Index,
			Name:        name,
			Description: ch.Meta.Description,
			SampleRate:  ch.Header.SampleRate,
			Sensitivity: sensitivity,
			Serial:      ch.Meta.SerialNumber,
			Unit:        ch.Meta.Eu,
			PointCount:  ch.Header.PointCount,
		})
	}

	return infos, warnings, nil
}

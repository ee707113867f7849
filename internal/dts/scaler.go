package dts

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SampleRange is a half-open [Start, End) slice in zero-based native sample
// units. A nil *SampleRange means "all samples".
type SampleRange struct {
	Start uint64
	End   uint64
}

// Len returns the number of samples the range covers.
func (r SampleRange) Len() uint64 {
	return r.End - r.Start
}

// ParseSampleRange parses the "start:end" form used by the CLI and MCP
// surfaces. The end index is exclusive; step values are not supported.
func ParseSampleRange(s string) (*SampleRange, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid sample range %q: expected start:end", s)
	}
	start, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sample range start %q: %w", parts[0], err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid sample range end %q: %w", parts[1], err)
	}
	if start > end {
		return nil, fmt.Errorf("invalid sample range %q: start exceeds end", s)
	}
	return &SampleRange{Start: start, End: end}, nil
}

// ScaledSeries is one channel's samples converted to engineering units over
// one requested range. Produced fresh per request; nothing is cached.
type ScaledSeries struct {
	Values     []float64
	SampleRate float64 // Hz
	StartTime  float64 // seconds, time of the first sample in the range
	Units      string  // engineering-unit label
}

// ReadScaled reads a channel's raw samples over rng and converts them to
// engineering units. clampTo bounds the output length when several channels
// are read as a batch (0 means no batch clamp); a range that reaches past
// the channel's point count is an error, never silently clamped.
func ReadScaled(ch *Channel, rng *SampleRange, clampTo uint64) (*ScaledSeries, error) {
	npts := ch.Header.PointCount

	var start, count uint64
	if rng != nil {
		if rng.Start > rng.End || rng.End > npts {
			return nil, fmt.Errorf("channel %d: range [%d:%d) exceeds %d points: %w",
				ch.Index, rng.Start, rng.End, npts, ErrRangeOutOfBounds)
		}
		start = rng.Start
		count = rng.Len()
	} else {
		count = npts
	}
	if clampTo > 0 && count > clampTo {
		count = clampTo
	}

	raw, err := readRawSamples(ch, start, count)
	if err != nil {
		return nil, err
	}

	// Zero offset is a three-way policy switch on the channel's zero method.
	// The effective millivolt scale factor already carries the inversion sign.
	scale := ch.EffectiveScaleMv / ch.Header.ScaleFactorEu / ch.Excitation

	var offset float64
	switch ch.Meta.ZeroMethod {
	case ZeroDiagnostic:
		offset = -float64(ch.Header.PreTestZeroLevelADC)*scale + ch.Meta.InitialEu
	case ZeroAveraged:
		offset = -float64(ch.Header.DataZeroLevelADC)*scale + ch.Meta.InitialEu
	default:
		offset = ch.Meta.InitialEu
	}

	values := make([]float64, len(raw))
	for i, adc := range raw {
		values[i] = float64(adc)*scale + offset
	}

	startTime := (ch.Meta.StartRecordSample - float64(ch.Header.FirstTriggerSample) + float64(start)) /
		ch.Header.SampleRate

	return &ScaledSeries{
		Values:     values,
		SampleRate: ch.Header.SampleRate,
		StartTime:  startTime,
		Units:      ch.Meta.Eu,
	}, nil
}

// readRawSamples reads count int16 samples starting at sample index start.
// The caller guarantees start+count never exceeds the channel's point count.
func readRawSamples(ch *Channel, start, count uint64) ([]int16, error) {
	f, err := os.Open(ch.Path)
	if err != nil {
		return nil, fmt.Errorf("channel %d: failed to open %s: %w", ch.Index, ch.Path, err)
	}
	defer f.Close()

	offset := int64(ch.Header.DataStart) + int64(start)*2
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("channel %d: failed to seek to sample data at byte %d: %w", ch.Index, offset, err)
	}

	raw := make([]int16, count)
	reader := bufio.NewReaderSize(f, 64*1024)
	if err := binary.Read(reader, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("channel %d: failed to read %d samples at byte %d: %w", ch.Index, count, offset, err)
	}
	return raw, nil
}

package converter

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dts2uff/internal/dts"
	"dts2uff/internal/uff"
)

// writeTestFolder builds a DTS folder with one channel per entry of npts,
// each channel filled with samples 1..npts[i]
func writeTestFolder(t *testing.T, npts []int) string {
	t.Helper()
	dir := t.TempDir()

	descriptor := `<?xml version="1.0"?><TestSetup><Module StartRecordSampleNumber="0">`
	for i := range npts {
		descriptor += fmt.Sprintf(
			`<AnalogInputChanel AbsoluteDisplayOrder="%d" Description="sensor %d" Eu="g"/>`, i+1, i+1)
	}
	descriptor += `</Module></TestSetup>`
	if err := os.WriteFile(filepath.Join(dir, "test.dts"), []byte(descriptor), 0644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}

	for i, n := range npts {
		hdr := &dts.ChannelHeader{
			HeaderVersion: 1,
			DataStart:     256,
			PointCount:    uint64(n),
			BitLength:     16,
			Signed:        true,
			SampleRate:    1000.0,
			ScaleFactorMv: 2.0,
			ScaleFactorEu: 4.0,
		}

		var buf bytes.Buffer
		if err := dts.WriteChannelHeader(&buf, hdr); err != nil {
			t.Fatalf("failed to encode header: %v", err)
		}
		buf.Write(make([]byte, int(hdr.DataStart)-buf.Len()))
		for s := 1; s <= n; s++ {
			if err := binary.Write(&buf, binary.LittleEndian, int16(s)); err != nil {
				t.Fatalf("failed to encode sample: %v", err)
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("CH%d.chn", i+1))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			t.Fatalf("failed to write channel file: %v", err)
		}
	}
	return dir
}

func writeTracksFile(t *testing.T, names ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.txt")
	if err := os.WriteFile(path, []byte(strings.Join(names, "\n")), 0644); err != nil {
		t.Fatalf("failed to write tracks file: %v", err)
	}
	return path
}

// countDatasets counts Type-58 marker lines in a UFF file
func countDatasets(t *testing.T, path string) int {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return bytes.Count(raw, []byte("    58"+strings.Repeat(" ", 74)+"\n"))
}

func TestConvertEndToEnd(t *testing.T) {
	dir := writeTestFolder(t, []int{4, 4, 4})
	tracks := writeTracksFile(t, "front", "middle", "rear")
	output := filepath.Join(t.TempDir(), "out.uff")

	var progress []string
	report, err := Convert(context.Background(), Options{
		InputDir:   dir,
		TracksFile: tracks,
		OutputPath: output,
		Encoding:   uff.ASCII,
		Workers:    2,
		OnProgress: func(p Progress) { progress = append(progress, p.TrackName) },
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	if report.ChannelCount != 3 || len(report.ProcessedTracks) != 3 {
		t.Fatalf("report = %+v", report)
	}
	if countDatasets(t, output) != 3 {
		t.Fatalf("expected 3 datasets in output")
	}

	// Dataset order must follow track order, concurrency notwithstanding
	raw, _ := os.ReadFile(output)
	front := bytes.Index(raw, []byte("front"))
	middle := bytes.Index(raw, []byte("middle"))
	rear := bytes.Index(raw, []byte("rear"))
	if front < 0 || middle < front || rear < middle {
		t.Errorf("datasets out of order: front=%d middle=%d rear=%d", front, middle, rear)
	}
	if len(progress) != 3 || progress[0] != "front" || progress[2] != "rear" {
		t.Errorf("progress updates = %v", progress)
	}

	// Sample 1 scales by 2/4 to 0.5
	if !bytes.Contains(raw, []byte("5.00000E-01")) {
		t.Error("scaled first sample missing from output")
	}
}

func TestConvertBatchClampsToMinimum(t *testing.T) {
	// Ragged recordings: co-requested tracks share the shortest length
	dir := writeTestFolder(t, []int{6, 2})
	tracks := writeTracksFile(t, "long", "short")
	output := filepath.Join(t.TempDir(), "out.uff")

	_, err := Convert(context.Background(), Options{
		InputDir:   dir,
		TracksFile: tracks,
		OutputPath: output,
		Encoding:   uff.ASCII,
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	raw, _ := os.ReadFile(output)
	// Both data-form lines must report 2 points
	form := "         2         2         1"
	if bytes.Count(raw, []byte(form)) != 2 {
		t.Errorf("expected both datasets clamped to 2 points")
	}
}

func TestConvertUnresolvedTrackTouchesNoOutput(t *testing.T) {
	dir := writeTestFolder(t, []int{4})
	tracks := writeTracksFile(t, "only")
	output := filepath.Join(t.TempDir(), "out.uff")

	_, err := Convert(context.Background(), Options{
		InputDir:    dir,
		TracksFile:  tracks,
		OutputPath:  output,
		TrackFilter: []string{"ghost"},
	})
	if !errors.Is(err, dts.ErrUnresolvedTrack) {
		t.Fatalf("expected ErrUnresolvedTrack, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Error("failed conversion must not create the output file")
	}
}

func TestConvertRangeValidatedBeforeOutput(t *testing.T) {
	dir := writeTestFolder(t, []int{4, 2})
	tracks := writeTracksFile(t, "a", "b")
	output := filepath.Join(t.TempDir(), "out.uff")

	// Valid for channel 1, out of bounds for channel 2
	_, err := Convert(context.Background(), Options{
		InputDir:   dir,
		TracksFile: tracks,
		OutputPath: output,
		Slice:      &dts.SampleRange{Start: 0, End: 3},
	})
	if !errors.Is(err, dts.ErrRangeOutOfBounds) {
		t.Fatalf("expected ErrRangeOutOfBounds, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Error("range validation must happen before any output mutation")
	}
}

func TestConvertSlice(t *testing.T) {
	dir := writeTestFolder(t, []int{6})
	tracks := writeTracksFile(t, "only")
	output := filepath.Join(t.TempDir(), "out.uff")

	report, err := Convert(context.Background(), Options{
		InputDir:   dir,
		TracksFile: tracks,
		OutputPath: output,
		Slice:      &dts.SampleRange{Start: 2, End: 5},
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if len(report.ProcessedTracks) != 1 {
		t.Fatalf("report = %+v", report)
	}

	raw, _ := os.ReadFile(output)
	form := "         2         3         1"
	if !bytes.Contains(raw, []byte(form)) {
		t.Error("sliced dataset should report 3 points")
	}
	// First value of the slice is sample 3 scaled by 0.5
	if !bytes.Contains(raw, []byte("1.50000E+00")) {
		t.Error("slice should start at the third sample")
	}
}

func TestConvertAppend(t *testing.T) {
	dir := writeTestFolder(t, []int{2})
	tracks := writeTracksFile(t, "only")
	output := filepath.Join(t.TempDir(), "out.uff")

	for i := 0; i < 2; i++ {
		_, err := Convert(context.Background(), Options{
			InputDir:   dir,
			TracksFile: tracks,
			OutputPath: output,
			Append:     i > 0,
		})
		if err != nil {
			t.Fatalf("conversion %d failed: %v", i, err)
		}
	}
	if got := countDatasets(t, output); got != 2 {
		t.Fatalf("expected 2 datasets after append, got %d", got)
	}

	// A replace run resets the file to a single dataset
	if _, err := Convert(context.Background(), Options{
		InputDir:   dir,
		TracksFile: tracks,
		OutputPath: output,
	}); err != nil {
		t.Fatalf("replace run failed: %v", err)
	}
	if got := countDatasets(t, output); got != 1 {
		t.Fatalf("expected 1 dataset after replace, got %d", got)
	}
}

func TestConvertCancelledContext(t *testing.T) {
	dir := writeTestFolder(t, []int{2})
	tracks := writeTracksFile(t, "only")
	output := filepath.Join(t.TempDir(), "out.uff")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Convert(ctx, Options{
		InputDir:   dir,
		TracksFile: tracks,
		OutputPath: output,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Error("cancelled conversion must not leave output behind")
	}
}

func TestListTracks(t *testing.T) {
	dir := writeTestFolder(t, []int{4, 4})
	tracks := writeTracksFile(t, "first")

	infos, warnings, err := ListTracks(dir, tracks)
	if err != nil {
		t.Fatalf("failed to list tracks: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(infos))
	}
	if infos[0].Name != "first" || infos[1].Name != "Channel_2" {
		t.Errorf("track names = %q, %q", infos[0].Name, infos[1].Name)
	}
	if infos[0].SampleRate != 1000 || infos[0].PointCount != 4 {
		t.Errorf("track info = %+v", infos[0])
	}

	// One name for two channels is a warning, not an error
	if len(warnings) == 0 {
		t.Error("expected a name-count warning")
	}
}

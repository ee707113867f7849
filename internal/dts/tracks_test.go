package dts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTrackList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write track list: %v", err)
	}
	return path
}

func TestLoadTrackNames(t *testing.T) {
	// Newline and comma separators mix freely; blanks are dropped
	names, err := LoadTrackNames(writeTrackList(t, "front left, front right\nrear left\r\n\nrear right,\n"))
	if err != nil {
		t.Fatalf("failed to load track names: %v", err)
	}
	want := []string{"front left", "front right", "rear left", "rear right"}
	if len(names) != len(want) {
		t.Fatalf("got %d names %v, want %d", len(names), names, len(want))
	}
	for i, name := range names {
		if name != want[i] {
			t.Errorf("name %d = %q, want %q", i, name, want[i])
		}
	}

	if _, err := LoadTrackNames(writeTrackList(t, " \n,\r\n")); err == nil {
		t.Error("expected error for empty track list")
	}
}

func TestTrackNameAt(t *testing.T) {
	names := []string{"one", "two"}
	if got := TrackNameAt(names, 1); got != "one" {
		t.Errorf("TrackNameAt(1) = %q", got)
	}
	// Indices beyond the list synthesize a fallback name
	if got := TrackNameAt(names, 3); got != "Channel_3" {
		t.Errorf("TrackNameAt(3) = %q, want Channel_3", got)
	}
}

func TestSelectTracksAll(t *testing.T) {
	dir := writeTestFolder(t, 3, []int16{0})
	reg, err := OpenFolder(dir)
	if err != nil {
		t.Fatalf("failed to open folder: %v", err)
	}

	tracks, err := SelectTracks(reg, []string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("failed to select tracks: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(tracks))
	}
	if tracks[0].Name != "a" || tracks[1].Name != "b" || tracks[2].Name != "Channel_3" {
		t.Errorf("track names = %v", tracks)
	}
}

func TestSelectTracksFilter(t *testing.T) {
	dir := writeTestFolder(t, 3, []int16{0})
	reg, err := OpenFolder(dir)
	if err != nil {
		t.Fatalf("failed to open folder: %v", err)
	}
	names := []string{"first", "second", "third"}

	// Filter order defines output order, independent of channel order
	tracks, err := SelectTracks(reg, names, []string{"third", "first"})
	if err != nil {
		t.Fatalf("failed to select tracks: %v", err)
	}
	if len(tracks) != 2 || tracks[0].Index != 3 || tracks[1].Index != 1 {
		t.Fatalf("filtered selection = %+v", tracks)
	}

	// Metadata description is a fallback resolution path
	tracks, err = SelectTracks(reg, names, []string{"sensor 2"})
	if err != nil {
		t.Fatalf("failed to resolve by description: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Index != 2 {
		t.Fatalf("description selection = %+v", tracks)
	}

	// Unresolved names fail the whole selection and are all reported
	_, err = SelectTracks(reg, names, []string{"first", "ghost", "phantom"})
	if !errors.Is(err, ErrUnresolvedTrack) {
		t.Fatalf("expected ErrUnresolvedTrack, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "ghost") || !strings.Contains(msg, "phantom") {
		t.Errorf("error %q should list every unresolved name", msg)
	}
}

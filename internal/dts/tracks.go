package dts

import (
	"fmt"
	"os"
	"strings"
)

// Track pairs a canonical channel index with the output name it will carry
// in the UFF file.
type Track struct {
	Index int // 1-based channel index
	Name  string
}

// LoadTrackNames reads a track-name list file. Names may be separated by
// newlines or commas; blank entries are dropped.
func LoadTrackNames(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track names from %s: %w", path, err)
	}

	var names []string
	for _, field := range strings.FieldsFunc(string(raw), func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	}) {
		if name := strings.TrimSpace(field); name != "" {
			names = append(names, name)
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("track name file %s contains no usable entries", path)
	}
	return names, nil
}

// TrackNameAt returns the output name for the 1-based channel index: the
// positional entry of the name list when present, else a synthesized
// "Channel_<n>" fallback.
func TrackNameAt(names []string, index int) string {
	if index >= 1 && index <= len(names) {
		if name := strings.TrimSpace(names[index-1]); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Channel_%d", index)
}

// SelectTracks maps the requested track names to channel indices. With no
// filter, every channel is selected in canonical order under its positional
// name. Filter names resolve first against the positional name list, then
// against channel metadata (name, description, serial); any name that
// resolves nowhere fails the whole selection.
func SelectTracks(reg *Registry, names []string, filter []string) ([]Track, error) {
	if len(filter) == 0 {
		tracks := make([]Track, reg.Count())
		for i := range tracks {
			tracks[i] = Track{Index: i + 1, Name: TrackNameAt(names, i+1)}
		}
		return tracks, nil
	}

	byName := make(map[string]int, len(names))
	for i, name := range names {
		if i < reg.Count() {
			if _, dup := byName[name]; !dup {
				byName[name] = i + 1
			}
		}
	}

	var tracks []Track
	var unresolved []string
	for _, want := range filter {
		if index, ok := byName[want]; ok {
			tracks = append(tracks, Track{Index: index, Name: want})
			continue
		}
		if ch, err := reg.ChannelByName(want); err == nil {
			tracks = append(tracks, Track{Index: ch.Index, Name: want})
			continue
		}
		unresolved = append(unresolved, want)
	}

	if len(unresolved) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedTrack, strings.Join(unresolved, ", "))
	}
	return tracks, nil
}

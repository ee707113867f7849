package dts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Channel joins one decoded .chn header with its metadata record and the
// derived calibration values the scaler needs.
type Channel struct {
	Index  int    // 1-based canonical channel number
	Path   string // .chn file path
	Header *ChannelHeader
	Meta   ChannelMetadata

	// Excitation is 1 for non-proportional channels; otherwise the factory
	// voltage when present, else the measured voltage. Never zero or NaN.
	Excitation float64

	// EffectiveScaleMv is the header's millivolt scale factor, negated for
	// inverted channels.
	EffectiveScaleMv float64
}

// Registry holds every channel of one DTS test folder, joined and validated.
// Built once per conversion; all validation happens here, before any output
// file is touched.
type Registry struct {
	Dir      string
	channels []Channel
	minNpts  uint64
	warnings []string
}

// OpenFolder reads a DTS test folder: it locates the .dts descriptor, decodes
// the header of every .chn file, and joins the two sides positionally.
// Channel numbering follows the padded-filename sort of the .chn files, which
// must line up one-to-one with the descriptor's traversal order.
func OpenFolder(dir string) (*Registry, error) {
	descriptor, err := findDescriptor(dir)
	if err != nil {
		return nil, err
	}

	metadata, err := LoadMetadata(descriptor)
	if err != nil {
		return nil, err
	}

	chnPaths, err := findChannelFiles(dir)
	if err != nil {
		return nil, err
	}

	if len(chnPaths) != len(metadata) {
		return nil, fmt.Errorf("%w: descriptor lists %d channels, folder has %d .chn files",
			ErrChannelCountMismatch, len(metadata), len(chnPaths))
	}

	reg := &Registry{Dir: dir, minNpts: math.MaxUint64}

	for i, path := range chnPaths {
		hdr, err := readHeaderFile(path)
		if err != nil {
			return nil, fmt.Errorf("channel %d (%s): %w", i+1, filepath.Base(path), err)
		}
		if hdr.SampleRate <= 0 || math.IsNaN(hdr.SampleRate) {
			return nil, fmt.Errorf("channel %d (%s): sample rate: %w", i+1, filepath.Base(path), ErrMissingAttribute)
		}
		if hdr.PointCount == 0 {
			return nil, fmt.Errorf("channel %d (%s): point count: %w", i+1, filepath.Base(path), ErrMissingAttribute)
		}

		meta := metadata[i]

		excitation, err := computeExcitation(meta)
		if err != nil {
			return nil, fmt.Errorf("channel %d (%s): %w", i+1, filepath.Base(path), err)
		}

		scaleMv := hdr.ScaleFactorMv
		if meta.Inverted {
			scaleMv = -scaleMv
		}

		if hdr.PointCount < reg.minNpts {
			reg.minNpts = hdr.PointCount
		}

		reg.channels = append(reg.channels, Channel{
			Index:            i + 1,
			Path:             path,
			Header:           hdr,
			Meta:             meta,
			Excitation:       excitation,
			EffectiveScaleMv: scaleMv,
		})
	}

	reg.validateOrdering()
	return reg, nil
}

// computeExcitation resolves the normalization voltage for a channel. A
// proportional channel with neither a usable factory nor measured voltage is
// an error; division by the result happens on every sample downstream.
func computeExcitation(meta ChannelMetadata) (float64, error) {
	if !meta.Proportional {
		return 1, nil
	}
	excitation := meta.FactoryExcitation
	if math.IsNaN(excitation) {
		excitation = meta.MeasuredExcitation
	}
	if math.IsNaN(excitation) || excitation == 0 {
		return 0, ErrZeroExcitation
	}
	return excitation, nil
}

// Count returns the number of channels in the folder.
func (r *Registry) Count() int {
	return len(r.channels)
}

// Channels returns every channel in canonical order.
func (r *Registry) Channels() []Channel {
	return r.channels
}

// MinPointCount is the smallest point count across all channels; batch reads
// are clamped to it so ragged recordings share a common length.
func (r *Registry) MinPointCount() uint64 {
	if len(r.channels) == 0 {
		return 0
	}
	return r.minNpts
}

// Warnings reports non-fatal validation findings collected while opening.
func (r *Registry) Warnings() []string {
	return r.warnings
}

// ChannelAt looks a channel up by its 1-based canonical index.
func (r *Registry) ChannelAt(index int) (*Channel, error) {
	if index < 1 || index > len(r.channels) {
		return nil, fmt.Errorf("channel index %d out of range 1..%d", index, len(r.channels))
	}
	return &r.channels[index-1], nil
}

// ChannelByName resolves a channel by its metadata name, description or
// serial number, in that precedence. Matches are exact and case-sensitive.
func (r *Registry) ChannelByName(name string) (*Channel, error) {
	for _, match := range []func(*ChannelMetadata) string{
		func(m *ChannelMetadata) string { return m.Name },
		func(m *ChannelMetadata) string { return m.Description },
		func(m *ChannelMetadata) string { return m.SerialNumber },
	} {
		for i := range r.channels {
			if match(&r.channels[i].Meta) == name && name != "" {
				return &r.channels[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnresolvedTrack, name)
}

// validateOrdering cross-checks the positional join: when the descriptor
// carries display-order attributes, they must be non-decreasing along the
// padded-filename order, or calibration would land on the wrong channel.
func (r *Registry) validateOrdering() {
	allSet := true
	for i := range r.channels {
		if r.channels[i].Meta.DisplayOrder == 0 {
			allSet = false
			break
		}
	}
	if !allSet {
		return
	}
	for i := 1; i < len(r.channels); i++ {
		if r.channels[i].Meta.DisplayOrder < r.channels[i-1].Meta.DisplayOrder {
			r.warnings = append(r.warnings, fmt.Sprintf(
				"display order of channel %d (%d) precedes channel %d (%d); descriptor and .chn ordering may disagree",
				i+1, r.channels[i].Meta.DisplayOrder, i, r.channels[i-1].Meta.DisplayOrder))
		}
	}
}

func readHeaderFile(path string) (*ChannelHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel file: %w", err)
	}
	defer f.Close()
	return ReadChannelHeader(f)
}

// findDescriptor locates the .dts file in a test folder.
func findDescriptor(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read folder %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ".dts") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no .dts descriptor found in %s", dir)
}

// findChannelFiles lists the .chn files of a folder in canonical channel
// order: names are left-padded to a common length before sorting, so "CH2"
// orders before "CH10".
func findChannelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), ".chn") {
			names = append(names, entry.Name())
		}
	}

	sortPadded(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// sortPadded sorts filenames by their left-padded form, stably.
func sortPadded(names []string) {
	longest := 0
	for _, name := range names {
		if len(name) > longest {
			longest = len(name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return padLeft(names[i], longest) < padLeft(names[j], longest)
	})
}

func padLeft(name string, width int) string {
	if len(name) >= width {
		return name
	}
	return strings.Repeat(" ", width-len(name)) + name
}

// Package dts decodes DTS data-acquisition test exports: one .dts XML
// descriptor plus one binary .chn file per sensor channel.
package dts

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MagicKey is the little-endian u32 signature at offset 0 of every .chn file.
const MagicKey uint32 = 0x2C36351F

// headerFixedSize is the byte span of the fixed header fields, excluding the
// variable trigger table and the fields that float behind it.
const headerFixedSize = 42

// ChannelHeader is the decoded fixed header of one .chn file. Constructed
// once when the file is opened and immutable afterwards.
type ChannelHeader struct {
	HeaderVersion      uint32
	DataStart          uint64 // absolute byte offset of the first raw sample
	PointCount         uint64
	BitLength          uint32
	Signed             bool
	SampleRate         float64 // Hz
	TriggerCount       uint16
	FirstTriggerSample int64

	// Fields below sit after the trigger table; their absolute offsets are
	// shifted by TriggerCount*8 bytes.
	PreTestZeroLevelADC  int32
	RemovedADC           int32
	PreTestDiagLevel     int32
	PreTestNoise         float64
	PostTestZeroLevelADC int32
	PostTestDiagLevel    int32
	DataZeroLevelADC     int32
	ScaleFactorMv        float64 // ADC counts -> millivolts
	ScaleFactorEu        float64 // millivolts -> engineering units
}

// ReadChannelHeader decodes the header of a .chn file. The reader must be
// positioned at the start of the file; the trigger table is skipped as
// opaque padding (only the first trigger's sample index is meaningful).
func ReadChannelHeader(r io.ReadSeeker) (*ChannelHeader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to header start: %w", err)
	}

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != MagicKey {
		return nil, fmt.Errorf("%w: got 0x%08X, want 0x%08X", ErrBadMagic, magic, MagicKey)
	}

	hdr := &ChannelHeader{}

	var signedFlag uint32
	fixed := []interface{}{
		&hdr.HeaderVersion,
		&hdr.DataStart,
		&hdr.PointCount,
		&hdr.BitLength,
		&signedFlag,
		&hdr.SampleRate,
		&hdr.TriggerCount,
	}
	for _, field := range fixed {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to read header field: %w", err)
		}
	}
	hdr.Signed = signedFlag != 0

	// The trigger table occupies TriggerCount entries of 8 bytes starting at
	// offset 42. Only the first entry's sample index is retained; the rest
	// are opaque padding. Every field after the table floats by
	// TriggerCount*8 bytes.
	if hdr.TriggerCount > 0 {
		if err := binary.Read(r, binary.LittleEndian, &hdr.FirstTriggerSample); err != nil {
			return nil, fmt.Errorf("failed to read first trigger sample index: %w", err)
		}
	}
	shift := int64(hdr.TriggerCount) * 8
	if _, err := r.Seek(headerFixedSize+shift, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to skip trigger table (%d entries): %w", hdr.TriggerCount, err)
	}

	shifted := []interface{}{
		&hdr.PreTestZeroLevelADC,
		&hdr.RemovedADC,
		&hdr.PreTestDiagLevel,
		&hdr.PreTestNoise,
		&hdr.PostTestZeroLevelADC,
		&hdr.PostTestDiagLevel,
		&hdr.DataZeroLevelADC,
		&hdr.ScaleFactorMv,
		&hdr.ScaleFactorEu,
	}
	for _, field := range shifted {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("failed to read header field at offset %d+: %w", headerFixedSize+shift, err)
		}
	}

	return hdr, nil
}

// WriteChannelHeader encodes hdr at its documented offsets, emitting a
// zeroed trigger table of TriggerCount entries. Used by tests and by tooling
// that synthesizes .chn fixtures; decoding a written header yields hdr again.
func WriteChannelHeader(w io.Writer, hdr *ChannelHeader) error {
	var signedFlag uint32
	if hdr.Signed {
		signedFlag = 1
	}

	fields := []interface{}{
		MagicKey,
		hdr.HeaderVersion,
		hdr.DataStart,
		hdr.PointCount,
		hdr.BitLength,
		signedFlag,
		hdr.SampleRate,
		hdr.TriggerCount,
	}
	for _, field := range fields {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write header field: %w", err)
		}
	}

	// First trigger entry carries the sample index; any further entries are
	// opaque padding.
	if hdr.TriggerCount > 0 {
		if err := binary.Write(w, binary.LittleEndian, hdr.FirstTriggerSample); err != nil {
			return fmt.Errorf("failed to write first trigger sample index: %w", err)
		}
		pad := make([]byte, (int(hdr.TriggerCount)-1)*8)
		if _, err := w.Write(pad); err != nil {
			return fmt.Errorf("failed to write trigger table padding: %w", err)
		}
	}

	shifted := []interface{}{
		hdr.PreTestZeroLevelADC,
		hdr.RemovedADC,
		hdr.PreTestDiagLevel,
		hdr.PreTestNoise,
		hdr.PostTestZeroLevelADC,
		hdr.PostTestDiagLevel,
		hdr.DataZeroLevelADC,
		hdr.ScaleFactorMv,
		hdr.ScaleFactorEu,
	}
	for _, field := range shifted {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write header field: %w", err)
		}
	}

	return nil
}

package dts

import "errors"

// Error values surfaced by the DTS decoding layer. Callers wrap these with
// channel/file context; tests and the converter match them with errors.Is.
var (
	// ErrBadMagic means a channel file did not start with the DTS signature.
	ErrBadMagic = errors.New("not a DTS channel file (magic mismatch)")

	// ErrMissingAttribute means a mandatory XML attribute was absent or unparsable.
	ErrMissingAttribute = errors.New("mandatory attribute missing or unparsable")

	// ErrChannelCountMismatch means the .dts descriptor and the .chn files disagree.
	ErrChannelCountMismatch = errors.New("channel count mismatch between descriptor and channel files")

	// ErrRangeOutOfBounds means a requested sample slice exceeds a channel's point count.
	ErrRangeOutOfBounds = errors.New("sample range out of bounds")

	// ErrUnresolvedTrack means a requested track name matched no channel.
	ErrUnresolvedTrack = errors.New("track name not found")

	// ErrZeroExcitation means a proportional channel has no usable excitation voltage.
	ErrZeroExcitation = errors.New("proportional channel has zero or missing excitation voltage")
)

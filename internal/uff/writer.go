// Package uff serializes function datasets in Universal File Format Type 58.
// The record layout is fixed-width and byte-exact so that downstream UFF
// readers (and byte-comparison tests against reference converters) accept it.
package uff

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Function type codes used by dataset 58.
const (
	FunctionTimeResponse = 1
	FunctionSpectrum     = 12
)

// Ordinate data-form codes.
const (
	ordinateRealDouble    = 2
	ordinateComplexDouble = 6
)

// Specific data-type codes for the axis-characteristics records.
const (
	dataTypeGeneral      = 0
	dataTypeAcceleration = 12
	dataTypeTime         = 17
	dataTypeFrequency    = 18
)

// Encoding selects how the data block is emitted.
type Encoding int

const (
	// ASCII emits fixed-width scientific notation, six values per line.
	ASCII Encoding = iota
	// Binary emits raw little-endian IEEE-754 doubles.
	Binary
)

// ParseEncoding maps the CLI/config spelling onto an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "ascii":
		return ASCII, nil
	case "binary":
		return Binary, nil
	default:
		return ASCII, fmt.Errorf("unsupported output encoding %q (expected ascii or binary)", s)
	}
}

// String returns the config spelling of the encoding.
func (e Encoding) String() string {
	if e == Binary {
		return "binary"
	}
	return "ascii"
}

// Dataset is one Type-58 record, constructed per track immediately before
// serialization. Imag non-nil selects the complex path (unused by the DTS
// pipeline, which is always real-valued).
type Dataset struct {
	// Identification lines 1-5. Empty fields default to "NONE".
	Label string // line 1, typically the track name
	Info  string // line 2
	Date  string // line 3
	ID4   string
	ID5   string

	FunctionType int // FunctionTimeResponse, FunctionSpectrum, ...
	LoadCase     int

	RspEntity string
	RspNode   int
	RspDir    int
	RefEntity string
	RefNode   int
	RefDir    int

	AbscissaFirst float64 // first-sample time offset (or first frequency)
	AbscissaInc   float64 // sample period (uniform spacing)
	ZValue        float64

	Values []float64 // real part / ordinate values
	Imag   []float64 // imaginary part, nil for real data

	// Optional label overrides; zero values take function-type defaults.
	AbscissaLabel string
	AbscissaUnits string
	OrdinateLabel string
	OrdinateUnits string
}

// Options configures a Writer.
type Options struct {
	Encoding Encoding
	// WideFields widens the ASCII ordinate fields from 13 to 20 characters.
	// A formatting variant, not a semantic difference.
	WideFields bool
}

// Writer appends Type-58 datasets to a UFF file.
type Writer struct {
	opts Options
}

// NewWriter returns a writer with the given options.
func NewWriter(opts Options) *Writer {
	return &Writer{opts: opts}
}

// WriteFile appends one dataset to path, or truncates first when replace is
// requested. Prior datasets in the file are never disturbed by an append.
func (w *Writer) WriteFile(path string, ds *Dataset, replace bool) error {
	flags := os.O_WRONLY | os.O_CREATE
	if replace {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open UFF file %s: %w", path, err)
	}
	defer file.Close()

	buf := bufio.NewWriterSize(file, 1<<20)
	if err := w.Encode(buf, ds); err != nil {
		return fmt.Errorf("failed to write dataset to %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// Encode serializes one complete dataset, delimiters included.
func (w *Writer) Encode(out io.Writer, ds *Dataset) error {
	ew := &errWriter{w: out}

	ew.line(fmt.Sprintf("%6d%74s", -1, ""))
	ew.line(fmt.Sprintf("%6d%74s", 58, ""))

	// Five 80-character identification lines.
	ew.line(fmt.Sprintf("%-80.80s", defaultText(ds.Label)))
	ew.line(fmt.Sprintf("%-80.80s", defaultText(ds.Info)))
	ew.line(fmt.Sprintf("%-80.80s", defaultText(ds.Date)))
	ew.line(fmt.Sprintf("%-80.80s", defaultText(ds.ID4)))
	ew.line(fmt.Sprintf("%-80.80s", defaultText(ds.ID5)))

	// DOF identification.
	ew.line(fmt.Sprintf("%5d%10d%5d%10d %-10.10s%10d%4d %-10.10s%10d%4d",
		ds.FunctionType, 0, 0, ds.LoadCase,
		defaultText(ds.RspEntity), ds.RspNode, ds.RspDir,
		defaultText(ds.RefEntity), ds.RefNode, ds.RefDir))

	// Data form: ordinate form code, count, uniform spacing, first abscissa
	// value, abscissa increment, z-axis value.
	form := ordinateRealDouble
	if ds.Imag != nil {
		form = ordinateComplexDouble
	}
	ew.line(fmt.Sprintf("%10d%10d%10d%13.5E%13.5E%13.5E",
		form, len(ds.Values), 1, ds.AbscissaFirst, ds.AbscissaInc, ds.ZValue))

	abscissaType, ordinateType, labels := w.axisDefaults(ds)

	// Abscissa, ordinate numerator, ordinate denominator, z-axis.
	ew.line(axisLine(abscissaType, labels.abscissaLabel, labels.abscissaUnits))
	ew.line(axisLine(ordinateType, labels.ordinateLabel, labels.ordinateUnits))
	ew.line(axisLine(dataTypeGeneral, "NONE", "NONE"))
	ew.line(axisLine(dataTypeGeneral, "NONE", "NONE"))

	if ew.err != nil {
		return ew.err
	}

	if w.opts.Encoding == Binary {
		if err := w.writeBinaryData(out, ds); err != nil {
			return err
		}
	} else {
		w.writeASCIIData(ew, ds)
	}
	if ew.err != nil {
		return ew.err
	}

	ew.line(fmt.Sprintf("%6d%74s", -1, ""))
	return ew.err
}

type axisLabels struct {
	abscissaLabel, abscissaUnits string
	ordinateLabel, ordinateUnits string
}

// axisDefaults fills unset labels with function-type defaults: time response
// gets time/acceleration axes, spectra get frequency/effective-acceleration
// axes, anything else a neutral placeholder.
func (w *Writer) axisDefaults(ds *Dataset) (abscissaType, ordinateType int, labels axisLabels) {
	switch ds.FunctionType {
	case FunctionTimeResponse:
		abscissaType, ordinateType = dataTypeTime, dataTypeAcceleration
		labels = axisLabels{"Time", "s", "Acceleration", "g"}
	case FunctionSpectrum:
		abscissaType, ordinateType = dataTypeFrequency, dataTypeAcceleration
		labels = axisLabels{"Frequency", "Hz", "Acceleration ESD", "g"}
	default:
		abscissaType, ordinateType = dataTypeGeneral, dataTypeGeneral
		labels = axisLabels{"NONE", "NONE", "NONE", "NONE"}
	}

	if ds.AbscissaLabel != "" {
		labels.abscissaLabel = ds.AbscissaLabel
	}
	if ds.AbscissaUnits != "" {
		labels.abscissaUnits = ds.AbscissaUnits
	}
	if ds.OrdinateLabel != "" {
		labels.ordinateLabel = ds.OrdinateLabel
	}
	if ds.OrdinateUnits != "" {
		labels.ordinateUnits = ds.OrdinateUnits
	}
	return abscissaType, ordinateType, labels
}

// axisLine formats one axis-characteristics record: data type code, unit
// exponents (unused here), reserved zero, then 20-character axis and units
// labels.
func axisLine(dataType int, label, units string) string {
	return fmt.Sprintf("%10d%5d%5d%5d %-20.20s %-20.20s", dataType, 0, 0, 0, label, units)
}

// writeASCIIData emits the ordinate values in fixed-width scientific
// notation: six per line for real data, interleaved real/imaginary pairs
// four per line for complex data. The final short line keeps its terminator.
func (w *Writer) writeASCIIData(ew *errWriter, ds *Dataset) {
	format := "%13.5E"
	if w.opts.WideFields {
		format = "%20.11E"
	}

	var flat []float64
	perLine := 6
	if ds.Imag != nil {
		perLine = 4
		flat = make([]float64, 0, len(ds.Values)*2)
		for i, re := range ds.Values {
			flat = append(flat, re, ds.Imag[i])
		}
	} else {
		flat = ds.Values
	}

	for i, v := range flat {
		ew.printf(format, v)
		if (i+1)%perLine == 0 {
			ew.printf("\n")
		}
	}
	if len(flat)%perLine != 0 {
		ew.printf("\n")
	}
}

// writeBinaryData emits the ordinate values as raw little-endian IEEE-754
// doubles, real/imaginary interleaved for complex data.
func (w *Writer) writeBinaryData(out io.Writer, ds *Dataset) error {
	if ds.Imag == nil {
		if err := binary.Write(out, binary.LittleEndian, ds.Values); err != nil {
			return fmt.Errorf("failed to write binary ordinate data: %w", err)
		}
	} else {
		flat := make([]float64, 0, len(ds.Values)*2)
		for i, re := range ds.Values {
			flat = append(flat, re, ds.Imag[i])
		}
		if err := binary.Write(out, binary.LittleEndian, flat); err != nil {
			return fmt.Errorf("failed to write binary ordinate data: %w", err)
		}
	}
	if _, err := io.WriteString(out, "\n"); err != nil {
		return fmt.Errorf("failed to terminate binary data block: %w", err)
	}
	return nil
}

func defaultText(s string) string {
	if s == "" {
		return "NONE"
	}
	return s
}

// errWriter batches formatted writes, capturing the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) line(s string) {
	e.printf("%s\n", s)
}

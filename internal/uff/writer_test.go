package uff

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func sampleDataset(values []float64) *Dataset {
	return &Dataset{
		Label:         "front axle vertical",
		Date:          "01-Jan-26 12:00:00",
		FunctionType:  FunctionTimeResponse,
		RspEntity:     "CH1",
		RspNode:       1,
		AbscissaFirst: 0.0,
		AbscissaInc:   0.001,
		Values:        values,
		OrdinateUnits: "g",
	}
}

// datasetLines encodes ds in ASCII mode and returns the emitted lines
func datasetLines(t *testing.T, ds *Dataset) []string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewWriter(Options{Encoding: ASCII}).Encode(&buf, ds); err != nil {
		t.Fatalf("failed to encode dataset: %v", err)
	}
	text := buf.String()
	if !strings.HasSuffix(text, "\n") {
		t.Fatal("dataset must end with a line terminator")
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func TestDatasetStructure(t *testing.T) {
	lines := datasetLines(t, sampleDataset([]float64{1, 2, 3}))

	delimiter := "    -1" + strings.Repeat(" ", 74)
	if lines[0] != delimiter {
		t.Errorf("opening delimiter = %q", lines[0])
	}
	if lines[len(lines)-1] != delimiter {
		t.Errorf("closing delimiter = %q", lines[len(lines)-1])
	}
	if lines[1] != "    58"+strings.Repeat(" ", 74) {
		t.Errorf("type marker line = %q", lines[1])
	}

	// Five identification lines, all exactly 80 characters
	for i := 2; i <= 6; i++ {
		if len(lines[i]) != 80 {
			t.Errorf("identification line %d is %d characters, want 80", i-1, len(lines[i]))
		}
	}
	if !strings.HasPrefix(lines[2], "front axle vertical") {
		t.Errorf("line 1 = %q, want the label", lines[2])
	}
	// Unset identifiers default to NONE
	if !strings.HasPrefix(lines[3], "NONE") || !strings.HasPrefix(lines[5], "NONE") {
		t.Errorf("unset identifiers should default to NONE: %q / %q", lines[3], lines[5])
	}

	// DOF line carries the function type and the response node
	if !strings.HasPrefix(lines[7], "    1") {
		t.Errorf("DOF line should start with function type 1: %q", lines[7])
	}

	// Data-form line: real double (2), count, uniform spacing (1)
	form := lines[8]
	if !strings.HasPrefix(form, "         2         3         1") {
		t.Errorf("data form line = %q", form)
	}
	if !strings.Contains(form, "1.00000E-03") {
		t.Errorf("data form line should carry the abscissa increment: %q", form)
	}

	// Time response defaults: time abscissa (17), acceleration ordinate (12)
	if !strings.HasPrefix(lines[9], "        17") || !strings.Contains(lines[9], "Time") {
		t.Errorf("abscissa characteristics line = %q", lines[9])
	}
	if !strings.HasPrefix(lines[10], "        12") || !strings.Contains(lines[10], "Acceleration") {
		t.Errorf("ordinate characteristics line = %q", lines[10])
	}
}

func TestASCIIDataLines(t *testing.T) {
	// Eight values: one full line of six, then a short line of two
	values := []float64{1, -2, 3.5, -4.25, 5, 6, 7, 8}
	lines := datasetLines(t, sampleDataset(values))

	// Lines 0..12 are the header records; data follows, then the delimiter
	data := lines[13 : len(lines)-1]
	if len(data) != 2 {
		t.Fatalf("expected 2 data lines, got %d: %v", len(data), data)
	}
	if len(data[0]) != 6*13 {
		t.Errorf("full data line is %d characters, want %d", len(data[0]), 6*13)
	}
	if len(data[1]) != 2*13 {
		t.Errorf("short data line is %d characters, want %d", len(data[1]), 2*13)
	}

	// Each field parses back to its value
	got, err := strconv.ParseFloat(strings.TrimSpace(data[0][13:26]), 64)
	if err != nil || got != -2 {
		t.Errorf("second field = %q (%v), want -2", data[0][13:26], err)
	}
}

func TestSpectrumLabelDefaults(t *testing.T) {
	ds := sampleDataset([]float64{1})
	ds.FunctionType = FunctionSpectrum
	lines := datasetLines(t, ds)

	if !strings.HasPrefix(lines[9], "        18") || !strings.Contains(lines[9], "Frequency") {
		t.Errorf("spectrum abscissa line = %q", lines[9])
	}

	// Caller-supplied labels override the defaults
	ds.AbscissaLabel = "Order"
	lines = datasetLines(t, ds)
	if !strings.Contains(lines[9], "Order") {
		t.Errorf("label override not applied: %q", lines[9])
	}
}

func TestComplexDataGrouping(t *testing.T) {
	ds := sampleDataset([]float64{1, 2, 3})
	ds.Imag = []float64{-1, -2, -3}
	lines := datasetLines(t, ds)

	// Complex double form code
	if !strings.HasPrefix(lines[8], "         6") {
		t.Errorf("complex form line = %q", lines[8])
	}

	// Six interleaved values, four per line: one full line plus two fields
	data := lines[13 : len(lines)-1]
	if len(data) != 2 || len(data[0]) != 4*13 || len(data[1]) != 2*13 {
		t.Fatalf("complex data lines = %v", data)
	}
}

func TestAppendPreservesExistingDatasets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.uff")
	writer := NewWriter(Options{Encoding: ASCII})

	first := sampleDataset([]float64{1, 2, 3})
	if err := writer.WriteFile(path, first, true); err != nil {
		t.Fatalf("failed to write first dataset: %v", err)
	}
	snapshot, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}

	second := sampleDataset([]float64{4, 5, 6})
	second.Label = "second track"
	if err := writer.WriteFile(path, second, false); err != nil {
		t.Fatalf("failed to append second dataset: %v", err)
	}

	combined, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read combined file: %v", err)
	}
	if !bytes.HasPrefix(combined, snapshot) {
		t.Fatal("appending must leave the first dataset byte-identical")
	}
	rest := combined[len(snapshot):]
	if !bytes.HasPrefix(rest, []byte("    -1")) {
		t.Errorf("second dataset must start directly after the first: %q", rest[:40])
	}
	if !bytes.Contains(rest, []byte("second track")) {
		t.Error("second dataset content missing")
	}

	// Replace truncates back to a single dataset
	if err := writer.WriteFile(path, first, true); err != nil {
		t.Fatalf("failed to replace: %v", err)
	}
	replaced, _ := os.ReadFile(path)
	if !bytes.Equal(replaced, snapshot) {
		t.Error("replace must produce a fresh single-dataset file")
	}
}

func TestBinaryMatchesASCIIValues(t *testing.T) {
	values := []float64{0.0, 1.5, -2.25, 1.0 / 3.0, 98765.4321, -1e-7}
	ds := sampleDataset(values)

	var binBuf bytes.Buffer
	if err := NewWriter(Options{Encoding: Binary}).Encode(&binBuf, ds); err != nil {
		t.Fatalf("failed to encode binary dataset: %v", err)
	}

	// The data block starts after the 13th header line and holds one raw
	// little-endian double per value
	raw := binBuf.Bytes()
	offset := 0
	for i := 0; i < 13; i++ {
		next := bytes.IndexByte(raw[offset:], '\n')
		if next < 0 {
			t.Fatal("truncated binary dataset")
		}
		offset += next + 1
	}
	fromBinary := make([]float64, len(values))
	if err := binary.Read(bytes.NewReader(raw[offset:offset+8*len(values)]), binary.LittleEndian, fromBinary); err != nil {
		t.Fatalf("failed to decode binary data block: %v", err)
	}

	lines := datasetLines(t, ds)
	var fromASCII []float64
	for _, line := range lines[13 : len(lines)-1] {
		for i := 0; i+13 <= len(line); i += 13 {
			v, err := strconv.ParseFloat(strings.TrimSpace(line[i:i+13]), 64)
			if err != nil {
				t.Fatalf("unparsable ASCII field %q: %v", line[i:i+13], err)
			}
			fromASCII = append(fromASCII, v)
		}
	}

	if len(fromASCII) != len(fromBinary) {
		t.Fatalf("ASCII decoded %d values, binary %d", len(fromASCII), len(fromBinary))
	}
	for i := range values {
		if fromBinary[i] != values[i] {
			t.Errorf("binary value %d = %g, want %g exactly", i, fromBinary[i], values[i])
		}
		// ASCII carries 6 significant digits
		diff := math.Abs(fromASCII[i] - values[i])
		tol := math.Abs(values[i]) * 1e-5
		if diff > tol {
			t.Errorf("ASCII value %d = %g, want %g within %g", i, fromASCII[i], values[i], tol)
		}
	}
}

package dts

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ZeroMethod selects which reference ADC code is used to compute a channel's
// zero offset.
type ZeroMethod int

const (
	// ZeroNone applies no reference code; the offset is the initial EU value alone.
	ZeroNone ZeroMethod = iota
	// ZeroDiagnostic uses the pre-test diagnostic zero-level code.
	ZeroDiagnostic
	// ZeroAveraged uses the time-averaged data zero-level code.
	ZeroAveraged
)

// String returns the schema spelling of the zero method.
func (z ZeroMethod) String() string {
	switch z {
	case ZeroDiagnostic:
		return "UsePreCalZero"
	case ZeroAveraged:
		return "AverageOverTime"
	default:
		return "None"
	}
}

// ChannelMetadata is the calibration and identity record of one channel,
// parsed from the .dts descriptor. Numeric attributes that are absent parse
// to NaN so that downstream fallback logic can tell "absent" from zero;
// InitialEu is the exception and defaults to 0.
type ChannelMetadata struct {
	DisplayOrder       uint32
	Proportional       bool // output is proportional to excitation voltage
	Inverted           bool
	MeasuredExcitation float64 // volts, NaN when absent
	FactoryExcitation  float64 // volts, NaN when absent
	InitialEu          float64 // engineering-unit offset at time zero
	ZeroMethod         ZeroMethod
	ZeroWindowStart    float64 // averaging window bounds, seconds, NaN when absent
	ZeroWindowEnd      float64
	TimeOfFirstSample  float64 // seconds, NaN when absent
	StartRecordSample  float64 // shared by all channels of a module
	SampleRate         float64 // Hz, NaN when absent
	Sensitivity        float64 // mV per EU, NaN when absent
	Name               string
	Description        string
	SerialNumber       string
	Eu                 string // engineering-unit label
}

// LoadMetadata parses a .dts descriptor file into one metadata record per
// channel. The returned order is strict document traversal order (module
// order, then channel order within each module); that position, not the
// display-order attribute, is the join key against the sorted .chn files.
func LoadMetadata(path string) ([]ChannelMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}

	text, err := decodeDescriptorText(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode descriptor %s: %w", path, err)
	}

	// Some exports carry a second XML prolog mid-file; everything from the
	// second prolog onward is a duplicate artifact and is discarded.
	text = truncateAtSecondProlog(text)

	channels, err := parseDescriptor(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", path, err)
	}
	return channels, nil
}

// decodeDescriptorText converts the raw descriptor bytes to UTF-8 text.
// UTF-16 exports are detected by BOM or, failing that, by a null byte in the
// first two positions.
func decodeDescriptorText(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return string(raw[3:]), nil
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		return transformUTF16(raw, unicode.LittleEndian)
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		return transformUTF16(raw, unicode.BigEndian)
	}

	if utf8.Valid(raw) {
		return string(raw), nil
	}

	// No BOM and not valid UTF-8: a null byte in the first pair is a strong
	// hint of BOM-less UTF-16.
	if len(raw) > 1 && raw[1] == 0 {
		return transformUTF16(raw, unicode.LittleEndian)
	}
	if len(raw) > 1 && raw[0] == 0 {
		return transformUTF16(raw, unicode.BigEndian)
	}

	return "", fmt.Errorf("unable to determine text encoding")
}

func transformUTF16(raw []byte, endianness unicode.Endianness) (string, error) {
	dec := unicode.UTF16(endianness, unicode.UseBOM).NewDecoder()
	out, _, err := transform.Bytes(dec, raw)
	if err != nil {
		return "", fmt.Errorf("invalid UTF-16 content: %w", err)
	}
	return string(out), nil
}

// truncateAtSecondProlog cuts the document just before a second "<?xml"
// marker, if one exists.
func truncateAtSecondProlog(text string) string {
	first := strings.Index(text, "<?xml")
	if first < 0 {
		return text
	}
	rest := text[first+5:]
	second := strings.Index(rest, "<?xml")
	if second < 0 {
		return text
	}
	return text[:first+5+second]
}

// parseDescriptor walks the document token by token, maintaining a stack of
// enclosing Module start-record sample numbers. A struct unmarshal would not
// preserve the module/channel interleaving that defines channel order.
func parseDescriptor(r io.Reader) ([]ChannelMetadata, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// Content is already UTF-8 regardless of the declared charset.
		return input, nil
	}

	var channels []ChannelMetadata
	var moduleStack []float64

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("XML parse error: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "Module":
				startSample := 0.0
				for _, attr := range el.Attr {
					if attr.Name.Local == "StartRecordSampleNumber" {
						startSample = parseAttrFloat(attr.Value)
					}
				}
				moduleStack = append(moduleStack, startSample)
			case "AnalogInputChanel": // sic, the schema misspells it
				startSample := 0.0
				if len(moduleStack) > 0 {
					startSample = moduleStack[len(moduleStack)-1]
				}
				channels = append(channels, decodeChannelElement(el, startSample))
			}
		case xml.EndElement:
			if el.Name.Local == "Module" && len(moduleStack) > 0 {
				moduleStack = moduleStack[:len(moduleStack)-1]
			}
		}
	}

	return channels, nil
}

// decodeChannelElement maps one AnalogInputChanel element's attributes onto
// a metadata record with every optional field defaulted up front.
func decodeChannelElement(el xml.StartElement, startSample float64) ChannelMetadata {
	meta := ChannelMetadata{
		MeasuredExcitation: math.NaN(),
		FactoryExcitation:  math.NaN(),
		InitialEu:          0,
		ZeroMethod:         ZeroNone,
		ZeroWindowStart:    math.NaN(),
		ZeroWindowEnd:      math.NaN(),
		TimeOfFirstSample:  math.NaN(),
		StartRecordSample:  startSample,
		SampleRate:         math.NaN(),
		Sensitivity:        math.NaN(),
	}

	for _, attr := range el.Attr {
		value := attr.Value
		switch attr.Name.Local {
		case "AbsoluteDisplayOrder":
			if n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32); err == nil {
				meta.DisplayOrder = uint32(n)
			}
		case "ProportionalToExcitation":
			meta.Proportional = value == "True"
		case "IsInverted":
			meta.Inverted = value == "True"
		case "MeasuredExcitationVoltage":
			meta.MeasuredExcitation = parseAttrFloat(value)
		case "FactoryExcitationVoltage":
			meta.FactoryExcitation = parseAttrFloat(value)
		case "InitialEu":
			if v := parseAttrFloat(value); !math.IsNaN(v) {
				meta.InitialEu = v
			}
		case "ZeroMethod":
			switch value {
			case "UsePreCalZero":
				meta.ZeroMethod = ZeroDiagnostic
			case "AverageOverTime":
				meta.ZeroMethod = ZeroAveraged
			default:
				meta.ZeroMethod = ZeroNone
			}
		case "ZeroStartTime":
			meta.ZeroWindowStart = parseAttrFloat(value)
		case "ZeroEndTime":
			meta.ZeroWindowEnd = parseAttrFloat(value)
		case "TimeOfFirstSample":
			meta.TimeOfFirstSample = parseAttrFloat(value)
		case "SampleRate":
			meta.SampleRate = parseAttrFloat(value)
		case "Sensitivity":
			meta.Sensitivity = parseAttrFloat(value)
		case "Name":
			meta.Name = value
		case "Description":
			meta.Description = value
		case "SerialNumber":
			meta.SerialNumber = value
		case "Eu":
			meta.Eu = value
		}
	}

	return meta
}

// parseAttrFloat parses a numeric attribute; absent or malformed values
// deliberately become NaN, never zero.
func parseAttrFloat(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

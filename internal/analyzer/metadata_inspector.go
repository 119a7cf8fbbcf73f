package analyzer

import (
	"bytes"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/rwcarlsen/goexif/exif"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// expectedTags are counted toward the metadata raw value
var expectedTags = []exif.FieldName{
	exif.Make,
	exif.Model,
	exif.DateTime,
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.Software,
}

var timestampTags = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

// signatureTags are searched for editor and generator names
var signatureTags = []exif.FieldName{
	exif.Software,
	exif.Make,
	exif.Model,
	exif.Artist,
}

// MetadataInspector reads embedded EXIF from the raw upload
type MetadataInspector struct {
	opts     AnalysisOptions
	denylist []string
}

// NewMetadataInspector creates the metadata signal analyzer
func NewMetadataInspector(opts AnalysisOptions) *MetadataInspector {
	denylist := make([]string, 0, len(opts.SuspiciousSoftware))
	for _, s := range opts.SuspiciousSoftware {
		if n := normalizeWords(s); n != "" {
			denylist = append(denylist, n)
		}
	}
	return &MetadataInspector{opts: opts, denylist: denylist}
}

func (m *MetadataInspector) Name() SignalName {
	return SignalMetadata
}

// Analyze never fails: absent, truncated and corrupt EXIF are all reported as missing
func (m *MetadataInspector) Analyze(in *Input) (SignalResult, error) {
	res := newSignalResult(SignalMetadata)
	res.Notes = make(map[string]string)

	x := readExif(in.Raw)
	if x == nil {
		res.Flags[FlagExifMissing] = true
		res.Flags[FlagTimestampMissing] = true
		res.Contribution = clamp01(m.opts.ExifMissingContribution)
		return res, nil
	}

	present := 0
	for _, name := range expectedTags {
		if v, ok := tagString(x, name); ok {
			present++
			res.Notes[strings.ToLower(string(name))] = v
		}
	}
	res.RawValue = float64(present)

	res.Flags[FlagTimestampMissing] = true
	for _, name := range timestampTags {
		if _, ok := tagString(x, name); ok {
			res.Flags[FlagTimestampMissing] = false
			break
		}
	}

	for _, name := range signatureTags {
		v, ok := tagString(x, name)
		if !ok {
			continue
		}
		if sig := m.matchSignature(v); sig != "" {
			res.Flags[FlagEditingSoftware] = true
			res.Notes["matched_signature"] = sig
			res.Notes["matched_tag"] = string(name)
			break
		}
	}

	if res.Flags[FlagEditingSoftware] {
		res.Contribution = clamp01(m.opts.EditingSoftwareContribution)
	}
	return res, nil
}

func (m *MetadataInspector) Degrade(err error) SignalResult {
	return degradedResult(SignalMetadata, err, m.opts.DegradedContribution)
}

// matchSignature returns the first denylist entry found as a whole word sequence in value
func (m *MetadataInspector) matchSignature(value string) string {
	text := " " + normalizeWords(value) + " "
	for _, sig := range m.denylist {
		if strings.Contains(text, " "+sig+" ") {
			return sig
		}
	}
	return ""
}

// normalizeWords lower-cases s and joins its alphanumeric runs with single spaces
func normalizeWords(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

func tagString(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	v, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	v = strings.TrimSpace(strings.TrimRight(v, "\x00"))
	return v, v != ""
}

// readExif returns nil when no usable EXIF block exists
func readExif(raw []byte) *exif.Exif {
	payload := raw
	if bytes.HasPrefix(raw, pngSignature) {
		payload = pngExifChunk(raw)
		if payload == nil {
			return nil
		}
	}

	x, err := exif.Decode(bytes.NewReader(payload))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return nil
	}
	return x
}

// pngExifChunk returns the TIFF payload of the first eXIf chunk
func pngExifChunk(raw []byte) []byte {
	pos := len(pngSignature)
	for pos+8 <= len(raw) {
		length := int(binary.BigEndian.Uint32(raw[pos : pos+4]))
		kind := string(raw[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if length < 0 || end+4 > len(raw) {
			return nil
		}
		switch kind {
		case "eXIf":
			return raw[start:end]
		case "IDAT", "IEND":
			// eXIf must precede image data
			return nil
		}
		pos = end + 4
	}
	return nil
}

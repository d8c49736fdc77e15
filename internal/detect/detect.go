// Package detect classifies raw statement files into a closed set of known
// bank-statement formats ahead of parsing. Detection is advisory: a
// low-confidence result still names a parser to try, and garbage input yields
// FormatUnknown rather than an error.
package detect

import (
	"path/filepath"
	"strings"
)

// Format identifies a known bank-statement format.
type Format string

const (
	FormatCSVChase   Format = "CSV_CHASE"
	FormatCSVBofA    Format = "CSV_BOFA"
	FormatCSVSpanish Format = "CSV_SPANISH"
	FormatCSVGeneric Format = "CSV_GENERIC"
	FormatOFX1SGML   Format = "OFX_1_SGML"
	FormatOFX2XML    Format = "OFX_2_XML"
	FormatQFX        Format = "QFX"
	FormatPDF        Format = "PDF_STATEMENT"
	FormatUnknown    Format = "UNKNOWN"
)

// ParserKind names the parser family able to handle a format.
type ParserKind string

const (
	ParserCSV     ParserKind = "CSV"
	ParserOFX     ParserKind = "OFX"
	ParserPDF     ParserKind = "PDF"
	ParserUnknown ParserKind = "UNKNOWN"
)

// Metadata is a closed tagged variant: each format family carries only the
// fields relevant to it.
type Metadata interface {
	isMetadata()
}

// CSVMetadata describes a detected CSV variant.
type CSVMetadata struct {
	Bank       string
	Delimiter  rune
	DateFormat string
}

// OFXMetadata describes a detected OFX variant.
type OFXMetadata struct {
	Version int // 1 or 2
}

// PDFMetadata is currently empty; PDF statements carry no pre-parse hints.
type PDFMetadata struct{}

func (CSVMetadata) isMetadata() {}
func (OFXMetadata) isMetadata() {}
func (PDFMetadata) isMetadata() {}

// Result is a single file classification. Consumed immediately by the import
// orchestrator to pick a parser; never persisted.
type Result struct {
	Format     Format
	Confidence int // 0-100, advisory only
	Parser     ParserKind
	Metadata   Metadata
}

// sampleSize bounds how much of the file is inspected as text. Signatures
// and headers live at the top; the rest of the file is irrelevant here.
const sampleSize = 2048

// Detect classifies a file by signature, then extension, then content
// heuristics, in strictly that order: a magic-byte match is near-certain, an
// extension is a strong hint, header vocabulary is a guess.
func Detect(name string, data []byte) Result {
	sample := sampleText(data)

	// 1. signature
	if strings.HasPrefix(sample, "%PDF") {
		return Result{Format: FormatPDF, Confidence: 100, Parser: ParserPDF, Metadata: PDFMetadata{}}
	}
	if r, ok := detectOFX(sample); ok {
		return r
	}

	// 2. extension
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".qfx":
		return Result{Format: FormatQFX, Confidence: 90, Parser: ParserOFX, Metadata: OFXMetadata{Version: 1}}
	case ".stmt":
		// ambiguous extension, fall through to content checks
	}

	// 3. CSV heuristics
	if ext == ".csv" || looksDelimited(sample) {
		if r, ok := classifyCSV(sample); ok {
			return r
		}
	}

	return Result{Format: FormatUnknown, Confidence: 0, Parser: ParserUnknown}
}

func sampleText(data []byte) string {
	if len(data) > sampleSize {
		data = data[:sampleSize]
	}
	return string(data)
}

func detectOFX(sample string) (Result, bool) {
	upper := strings.ToUpper(sample)
	hasToken := strings.Contains(upper, "OFXHEADER") || strings.Contains(upper, "<OFX>")
	if !hasToken {
		return Result{}, false
	}
	if strings.Contains(upper, "<?XML") || strings.Contains(upper, "OFXHEADER:200") || strings.Contains(upper, `OFXHEADER="200"`) {
		return Result{Format: FormatOFX2XML, Confidence: 95, Parser: ParserOFX, Metadata: OFXMetadata{Version: 2}}, true
	}
	return Result{Format: FormatOFX1SGML, Confidence: 95, Parser: ParserOFX, Metadata: OFXMetadata{Version: 1}}, true
}

// bank header signatures, checked against the first two lines.
type headerSignature struct {
	tokens     []string
	format     Format
	bank       string
	dateFormat string
	confidence int
}

var headerSignatures = []headerSignature{
	{tokens: []string{"posted date", "reference number", "payee"}, format: FormatCSVBofA, bank: "Bank of America", dateFormat: "MM/dd/yyyy", confidence: 90},
	{tokens: []string{"fecha", "concepto"}, format: FormatCSVSpanish, bank: "", dateFormat: "dd/MM/yyyy", confidence: 85},
	{tokens: []string{"fecha", "descripción"}, format: FormatCSVSpanish, bank: "", dateFormat: "dd/MM/yyyy", confidence: 85},
	{tokens: []string{"date", "description", "amount"}, format: FormatCSVChase, bank: "Chase", dateFormat: "MM/dd/yyyy", confidence: 80},
}

func classifyCSV(sample string) (Result, bool) {
	lines := strings.SplitN(sample, "\n", 3)
	head := strings.ToLower(lines[0])
	if len(lines) > 1 {
		head += "\n" + strings.ToLower(lines[1])
	}
	delim := pickDelimiter(head)

	for _, sig := range headerSignatures {
		if containsAll(head, sig.tokens) {
			return Result{
				Format:     sig.format,
				Confidence: sig.confidence,
				Parser:     ParserCSV,
				Metadata:   CSVMetadata{Bank: sig.bank, Delimiter: delim, DateFormat: sig.dateFormat},
			}, true
		}
	}

	if looksDelimited(sample) {
		return Result{
			Format:     FormatCSVGeneric,
			Confidence: 50,
			Parser:     ParserCSV,
			Metadata:   CSVMetadata{Delimiter: delim},
		}, true
	}
	return Result{}, false
}

func containsAll(s string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

// looksDelimited reports whether the sample has at least as many delimiter
// characters as lines, the cheapest signal that rows are column-separated.
func looksDelimited(sample string) bool {
	lines := strings.Count(sample, "\n") + 1
	commas := strings.Count(sample, ",")
	semis := strings.Count(sample, ";")
	if commas == 0 && semis == 0 {
		return false
	}
	if commas >= semis {
		return commas >= lines
	}
	return semis >= lines
}

func pickDelimiter(s string) rune {
	if strings.Count(s, ";") > strings.Count(s, ",") {
		return ';'
	}
	return ','
}

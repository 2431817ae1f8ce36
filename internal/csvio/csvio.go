// Package csvio reads and writes the delimited text files cross sections are
// stored in.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"xsection-editor/internal/section"
)

// Format describes the physical layout of a file so it can be written back
// the way it was read.
type Format struct {
	Comma rune
	CRLF  bool
}

// DefaultFormat is comma separated with LF line endings.
var DefaultFormat = Format{Comma: ','}

// ReadFile reads a section table from path.
func ReadFile(path string) (section.Table, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return section.Table{}, Format{}, err
	}
	t, f, err := Read(bytes.NewReader(data))
	if err != nil {
		return section.Table{}, Format{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, f, nil
}

// Read parses a delimited table. Rows starting with '!' are kept as comment
// rows. The delimiter is sniffed from the first data line and the header is
// detected from content.
func Read(r io.Reader) (section.Table, Format, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return section.Table{}, Format{}, err
	}
	f := Format{Comma: sniffComma(data), CRLF: bytes.Contains(data, []byte("\r\n"))}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = f.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return section.Table{}, Format{}, err
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return section.Table{}, Format{}, errors.New("empty file")
	}

	t := section.Table{Rows: rows}
	if DetectHeader(rows) {
		t.Header, t.Rows, t.HasHeader = rows[0], rows[1:], true
	}
	return t, f, nil
}

// DetectHeader reports whether the first non-comment row is a header: it
// holds more non-numeric fields than the row after it. Fewer than two
// non-comment rows means no header.
func DetectHeader(rows [][]string) bool {
	var data [][]string
	for _, r := range rows {
		if section.IsComment(r) {
			continue
		}
		data = append(data, r)
		if len(data) == 2 {
			break
		}
	}
	if len(data) < 2 {
		return false
	}
	// the header must be the first physical row to round trip
	if section.IsComment(rows[0]) {
		return false
	}
	return textFields(data[0]) > textFields(data[1])
}

func textFields(row []string) int {
	n := 0
	for _, f := range row {
		if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			n++
		}
	}
	return n
}

func sniffComma(data []byte) rune {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		best, bestN := ',', strings.Count(line, ",")
		for _, c := range []rune{'\t', ';'} {
			if n := strings.Count(line, string(c)); n > bestN {
				best, bestN = c, n
			}
		}
		return best
	}
	return ','
}

// Write serializes t using f. Fields are quoted only when they hold the
// delimiter, a quote or a line break; leading spaces are written as they were
// read so unedited rows come back byte for byte.
func Write(w io.Writer, t section.Table, f Format) error {
	if f.Comma == 0 {
		f.Comma = DefaultFormat.Comma
	}
	bw := bufio.NewWriter(w)
	eol := "\n"
	if f.CRLF {
		eol = "\r\n"
	}

	if t.HasHeader {
		writeRow(bw, t.Header, f.Comma, eol)
	}
	for _, row := range t.Rows {
		writeRow(bw, row, f.Comma, eol)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func writeRow(bw *bufio.Writer, row []string, comma rune, eol string) {
	for i, field := range row {
		if i > 0 {
			bw.WriteRune(comma)
		}
		if !needsQuotes(field, comma) {
			bw.WriteString(field)
			continue
		}
		bw.WriteByte('"')
		bw.WriteString(strings.ReplaceAll(field, `"`, `""`))
		bw.WriteByte('"')
	}
	bw.WriteString(eol)
}

func needsQuotes(field string, comma rune) bool {
	return strings.ContainsRune(field, comma) || strings.ContainsAny(field, "\"\r\n")
}

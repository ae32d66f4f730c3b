package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/fieldheat/internal/fsutil"
)

// ErrEmptyInput is returned when the input has no header line.
var ErrEmptyInput = errors.New("empty input: no header row")

// candidateDelimiters are tried in order; ties go to the earlier entry.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// Table is raw tabular input: a header and string cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// SniffDelimiter picks the delimiter that occurs most often in the header
// line, defaulting to a comma.
func SniffDelimiter(headerLine string) rune {
	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if n := strings.Count(headerLine, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ReadCSV reads delimited text with an auto-detected delimiter. Header
// names are trimmed and lower-cased; a UTF-8 BOM is ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)

	var headerLine string
	for {
		line, err := br.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			headerLine = line
			break
		}
		if err == io.EOF {
			return nil, ErrEmptyInput
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
	headerLine = strings.TrimPrefix(headerLine, "\ufeff")

	rest, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), bytes.NewReader(rest)))
	cr.Comma = SniffDelimiter(headerLine)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	t := &Table{Header: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// LoadFile reads and normalises one dataset file.
func LoadFile(fsys fsutil.FileSystem, path string) (*Dataset, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds, err := Normalize(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

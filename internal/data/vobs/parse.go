package vobs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// table is a header-indexed view over delimited rows.
type table struct {
	index map[string]int
	rows  [][]string
}

func readTable(r io.Reader, comma rune) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty table")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	t := &table{index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.index[strings.ToLower(h)] = i
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.rows)+2, err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *table) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseManifest(r io.Reader, release string) ([]SampleSet, error) {
	t, err := readTable(r, '\t')
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if !t.has("sample_set") {
		return nil, fmt.Errorf("manifest: missing sample_set column")
	}
	sets := make([]SampleSet, 0, len(t.rows))
	for _, row := range t.rows {
		id := t.get(row, "sample_set")
		if id == "" {
			continue
		}
		n, _ := strconv.Atoi(t.get(row, "sample_count"))
		sets = append(sets, SampleSet{
			SampleSet:   id,
			SampleCount: n,
			Region:      t.get(row, "region"),
			Taxon:       t.get(row, "taxon"),
			StudyID:     t.get(row, "study_id"),
			StudyURL:    t.get(row, "study_url"),
			Release:     release,
		})
	}
	return sets, nil
}

func parseSampleMetadata(r io.Reader, sampleSet string) ([]SampleRecord, error) {
	t, err := readTable(r, ',')
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", sampleSet, err)
	}
	records := make([]SampleRecord, 0, len(t.rows))
	for _, row := range t.rows {
		records = append(records, SampleRecord{
			SampleID:   t.get(row, "sample_id"),
			SampleSet:  sampleSet,
			Country:    t.get(row, "country"),
			Admin1Name: t.get(row, "admin1_name"),
			Location:   t.get(row, "location"),
			Taxon:      t.get(row, "taxon"),
			Year:       parseInt(t.get(row, "year")),
			Month:      parseInt(t.get(row, "month")),
			Latitude:   parseCoord(t.get(row, "latitude")),
			Longitude:  parseCoord(t.get(row, "longitude")),
		})
	}
	return records, nil
}

// parseInt treats blanks and garbage as 0 (unknown). Values such as "2012.0"
// written by pandas are accepted.
func parseInt(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f)
	}
	return 0
}

func parseCoord(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}

// Package vobs provides read access to the Vector Observatory Ag3 release:
// the sample-set manifest, per-sample metadata and aggregate sample counts.
package vobs

import (
	"context"
	"errors"
	"math"
)

// ErrNotFound is returned by fetchers when a release file does not exist.
var ErrNotFound = errors.New("release file not found")

// SampleSet identifies a batch of sequenced samples.
type SampleSet struct {
	SampleSet   string `json:"sample_set" db:"sample_set"`
	SampleCount int    `json:"sample_count" db:"sample_count"`
	Region      string `json:"region" db:"region"`
	Taxon       string `json:"taxon" db:"taxon"`
	StudyID     string `json:"study_id" db:"study_id"`
	StudyURL    string `json:"study_url" db:"study_url"`
	Release     string `json:"release" db:"release"`
}

// SampleRecord is one sequenced organism. Year 0 means unknown.
type SampleRecord struct {
	SampleID   string  `json:"sample_id" db:"sample_id"`
	SampleSet  string  `json:"sample_set" db:"sample_set"`
	Country    string  `json:"country" db:"country"`
	Admin1Name string  `json:"admin1_name" db:"admin1_name"`
	Location   string  `json:"location" db:"location"`
	Taxon      string  `json:"taxon" db:"taxon"`
	Year       int     `json:"year" db:"year"`
	Month      int     `json:"month" db:"month"`
	Latitude   float64 `json:"latitude" db:"latitude"`
	Longitude  float64 `json:"longitude" db:"longitude"`
}

// HasCoordinates reports whether the record can be placed on a map.
func (r SampleRecord) HasCoordinates() bool {
	return !math.IsNaN(r.Latitude) && !math.IsNaN(r.Longitude)
}

// CountRow is one cell of the sample count summary.
type CountRow struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	Year    int    `json:"year"`
	Taxon   string `json:"taxon"`
	Count   int    `json:"count"`
}

// Accessor supplies the release tables. Calls block and errors propagate to
// the caller unchanged; there is no retry policy.
type Accessor interface {
	SampleSets(ctx context.Context) ([]SampleSet, error)
	// SampleMetadata returns samples of the given sample sets, or of all
	// sample sets when the list is empty.
	SampleMetadata(ctx context.Context, sampleSets []string) ([]SampleRecord, error)
	CountSamples(ctx context.Context, sampleSets []string) ([]CountRow, error)
	Describe() string
}

package vobs

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Static serves fixed tables. It counts calls so callers can assert how often
// the upstream was hit.
type Static struct {
	Sets    []SampleSet
	Records []SampleRecord

	err         atomic.Pointer[error]
	setCalls    atomic.Int64
	recordCalls atomic.Int64
}

// SetErr makes every subsequent call fail with err. nil restores service.
func (s *Static) SetErr(err error) {
	if err == nil {
		s.err.Store(nil)
		return
	}
	s.err.Store(&err)
}

func (s *Static) failure() error {
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}

// NewStatic creates an accessor over the given tables.
func NewStatic(sets []SampleSet, records []SampleRecord) *Static {
	return &Static{Sets: sets, Records: records}
}

func (s *Static) SampleSets(ctx context.Context) ([]SampleSet, error) {
	s.setCalls.Add(1)
	if err := s.failure(); err != nil {
		return nil, err
	}
	out := make([]SampleSet, len(s.Sets))
	copy(out, s.Sets)
	return out, nil
}

func (s *Static) SampleMetadata(ctx context.Context, sampleSets []string) ([]SampleRecord, error) {
	s.recordCalls.Add(1)
	if err := s.failure(); err != nil {
		return nil, err
	}
	recs := FilterBySampleSet(s.Records, sampleSets)
	out := make([]SampleRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *Static) CountSamples(ctx context.Context, sampleSets []string) ([]CountRow, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	return CountRecords(FilterBySampleSet(s.Records, sampleSets)), nil
}

func (s *Static) Describe() string {
	return fmt.Sprintf("static tables (%d sample sets, %d samples)", len(s.Sets), len(s.Records))
}

// SampleSetCalls returns how many times SampleSets was called.
func (s *Static) SampleSetCalls() int64 { return s.setCalls.Load() }

// MetadataCalls returns how many times SampleMetadata was called.
func (s *Static) MetadataCalls() int64 { return s.recordCalls.Load() }

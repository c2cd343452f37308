package vobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// ReleaseConfig configures a Release reader.
type ReleaseConfig struct {
	Fetcher     Fetcher
	Release     string // e.g. "v3"
	Concurrency int    // parallel metadata fetches
}

// Release reads sample sets and metadata from a Vector Observatory style
// release layout:
//
//	<release>/manifest.tsv
//	<release>/metadata/general/<sample_set>/samples.meta.csv
//
// Either file may be stored zstd-compressed with a ".zst" suffix.
type Release struct {
	fetcher     Fetcher
	release     string
	concurrency int
	decoder     *zstd.Decoder
}

// NewRelease creates a release reader.
func NewRelease(cfg ReleaseConfig) (*Release, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("release fetcher required")
	}
	if cfg.Release == "" {
		cfg.Release = "v3"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Release{
		fetcher:     cfg.Fetcher,
		release:     cfg.Release,
		concurrency: cfg.Concurrency,
		decoder:     decoder,
	}, nil
}

// Close releases decoder resources.
func (r *Release) Close() {
	r.decoder.Close()
}

// Describe returns a short human-readable description of the release source.
func (r *Release) Describe() string {
	return fmt.Sprintf("Ag3 release %s at %s", r.release, r.fetcher)
}

func (r *Release) manifestPath() string {
	return path.Join(r.release, "manifest.tsv")
}

func (r *Release) metadataPath(sampleSet string) string {
	return path.Join(r.release, "metadata", "general", sampleSet, "samples.meta.csv")
}

// open reads a release file, falling back to its zstd-compressed variant.
func (r *Release) open(ctx context.Context, name string) (io.Reader, error) {
	rc, err := r.fetcher.Open(ctx, name)
	if err == nil {
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return bytes.NewReader(data), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	zrc, zerr := r.fetcher.Open(ctx, name+".zst")
	if zerr != nil {
		if errors.Is(zerr, ErrNotFound) {
			return nil, err
		}
		return nil, zerr
	}
	defer zrc.Close()
	compressed, zerr := io.ReadAll(zrc)
	if zerr != nil {
		return nil, fmt.Errorf("failed to read %s.zst: %w", name, zerr)
	}
	data, zerr := r.decoder.DecodeAll(compressed, nil)
	if zerr != nil {
		return nil, fmt.Errorf("failed to decompress %s.zst: %w", name, zerr)
	}
	return bytes.NewReader(data), nil
}

// SampleSets lists the sample sets in the release manifest.
func (r *Release) SampleSets(ctx context.Context) ([]SampleSet, error) {
	rd, err := r.open(ctx, r.manifestPath())
	if err != nil {
		return nil, err
	}
	return parseManifest(rd, r.release)
}

// SampleMetadata loads sample metadata for the given sample sets, or for the
// whole release when none are given. Results follow the order of the request
// (manifest order when loading everything).
func (r *Release) SampleMetadata(ctx context.Context, sampleSets []string) ([]SampleRecord, error) {
	if len(sampleSets) == 0 {
		sets, err := r.SampleSets(ctx)
		if err != nil {
			return nil, err
		}
		sampleSets = make([]string, len(sets))
		for i, s := range sets {
			sampleSets[i] = s.SampleSet
		}
	}

	parts := make([][]SampleRecord, len(sampleSets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range sampleSets {
		g.Go(func() error {
			rd, err := r.open(gctx, r.metadataPath(id))
			if err != nil {
				return fmt.Errorf("sample set %s: %w", id, err)
			}
			recs, err := parseSampleMetadata(rd, id)
			if err != nil {
				return err
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]SampleRecord, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	log.Printf("[Release] loaded %d samples from %d sample set(s)", len(out), len(sampleSets))
	return out, nil
}

// CountSamples aggregates sample counts for the given sample sets.
func (r *Release) CountSamples(ctx context.Context, sampleSets []string) ([]CountRow, error) {
	recs, err := r.SampleMetadata(ctx, sampleSets)
	if err != nil {
		return nil, err
	}
	return CountRecords(recs), nil
}

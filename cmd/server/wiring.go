package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ag3dash/server/internal/config"
	"github.com/ag3dash/server/internal/data/vobs"
	"github.com/ag3dash/server/internal/store"
)

func newFetcher(ctx context.Context, dc config.DataConfig) (vobs.Fetcher, error) {
	switch dc.Source {
	case "file":
		return vobs.NewFileFetcher(dc.BasePath), nil
	case "http":
		return vobs.NewHTTPFetcher(dc.BaseURL, time.Duration(dc.HTTPTimeoutSecs)*time.Second)
	case "s3":
		return vobs.NewS3Fetcher(ctx, vobs.S3Config{
			Bucket:    dc.S3.Bucket,
			Region:    dc.S3.Region,
			Endpoint:  dc.S3.Endpoint,
			Prefix:    dc.S3.Prefix,
			PathStyle: dc.S3.PathStyle,
		})
	}
	return nil, fmt.Errorf("unknown data source %q", dc.Source)
}

// accessor bundles the release reader with the optional snapshot in front
// of it.
type accessor struct {
	vobs.Accessor
	release  *vobs.Release
	snapshot *store.SnapshotAccessor
	db       *store.Store
}

func (a *accessor) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("Warning: failed to close snapshot store: %v", err)
		}
	}
	a.release.Close()
}

// newAccessor builds the data accessor described by dc. With useSnapshot and
// a configured snapshot path, reads go through the SQLite snapshot.
func newAccessor(ctx context.Context, dc config.DataConfig, useSnapshot bool) (*accessor, error) {
	fetcher, err := newFetcher(ctx, dc)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s fetcher: %w", dc.Source, err)
	}
	release, err := vobs.NewRelease(vobs.ReleaseConfig{
		Fetcher:     fetcher,
		Release:     dc.Release,
		Concurrency: dc.FetchConcurrency,
	})
	if err != nil {
		return nil, err
	}

	a := &accessor{Accessor: release, release: release}
	if !useSnapshot || dc.SnapshotPath == "" {
		return a, nil
	}

	db, err := store.NewStore(dc.SnapshotPath)
	if err != nil {
		release.Close()
		return nil, fmt.Errorf("failed to open snapshot %s: %w", dc.SnapshotPath, err)
	}
	a.db = db
	a.snapshot = store.NewSnapshotAccessor(db, release)
	a.Accessor = a.snapshot
	return a, nil
}

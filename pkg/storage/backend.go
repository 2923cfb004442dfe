// Package storage abstracts where analysis artifacts live. Snapshots and
// exported reports go through the Archive interface so the CLI can target a
// local directory or an S3 bucket with the same code path.
package storage

import (
	"context"
	"fmt"
	"path"
	"time"
)

const (
	snapshotPrefix = "snapshots"
	reportPrefix   = "reports"
)

// Archive is an abstract blob backend for analysis artifacts.
type Archive interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// SnapshotKey builds the storage key for a named snapshot.
func SnapshotKey(name string) string {
	return path.Join(snapshotPrefix, name+".json")
}

// ReportKey builds a timestamped storage key for an exported report.
func ReportKey(provider string, at time.Time, format string) string {
	return path.Join(reportPrefix, fmt.Sprintf("%s-%s.%s", provider, at.UTC().Format("20060102T150405Z"), format))
}

// ListSnapshots returns the stored snapshot keys.
func ListSnapshots(ctx context.Context, a Archive) ([]string, error) {
	return a.List(ctx, snapshotPrefix)
}

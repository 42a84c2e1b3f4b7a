// ABOUTME: Contract every remote collection binding implements
// ABOUTME: Partitions, cursor pages and creates shared by calendar and contacts
package sync

import (
	"context"
)

// Enumeration and write bounds.
const (
	MaxPagesPerPartition = 5
	PageSize             = 500
	MaxCreatesPerRun     = 200
)

// Partition is a named sub-scope of a remote collection.
type Partition struct {
	ID    string
	Label string
	// ItemCap bounds how many records one partition may contribute. Zero means no cap.
	ItemCap int
	// Optional partitions degrade to empty on failure instead of aborting.
	Optional bool
}

// Page is one response of a paginated list call.
type Page[R any] struct {
	Records    []R
	NextCursor string
}

// RemoteCollection is the capability the engine needs from a provider binding.
type RemoteCollection[R any] interface {
	ListPartitions(ctx context.Context) ([]Partition, error)
	ListPage(ctx context.Context, partition Partition, cursor string) (Page[R], error)
	Create(ctx context.Context, record R) error
}

// Limits bounds one enumeration.
type Limits[R any] struct {
	// TotalCap bounds records across all partitions. Zero means no cap.
	TotalCap int
	// MaxPages overrides MaxPagesPerPartition when positive.
	MaxPages int
	// Dedupe, when set, drops in-collection duplicates and keyless records
	// once a second partition contributes records.
	Dedupe KeyFunc[R]
}

// ABOUTME: Bounded paginated enumeration of a remote collection
// ABOUTME: Follows page cursors per partition under page, partition and total caps
package sync

import (
	"context"
	"fmt"
	"log/slog"
)

// Collect enumerates every partition of a collection into one ordered slice.
// The result is a best-effort prefix bounded by the caps, not a full export.
func Collect[R any](ctx context.Context, coll RemoteCollection[R], limits Limits[R], logger *slog.Logger) ([]R, error) {
	if logger == nil {
		logger = slog.Default()
	}

	partitions, err := coll.ListPartitions(ctx)
	if err != nil {
		return nil, fetchError("failed to list partitions", err)
	}

	var (
		all         []R
		seen        keySet
		contributed int
	)
	for _, partition := range partitions {
		records, err := collectPartition(ctx, coll, partition, limits)
		if err != nil {
			if partition.Optional {
				logger.Warn("optional partition unavailable, continuing without it",
					"partition", partition.ID,
					"error", err)
				continue
			}
			return nil, fetchError(fmt.Sprintf("failed to list %s", partition.ID), err)
		}

		if len(records) > 0 {
			contributed++
		}
		// A single contributing partition is returned as listed.
		if limits.Dedupe != nil && seen == nil && contributed > 1 {
			seen = newKeySet(len(all))
			all = dedupeRecords(all, limits.Dedupe, seen)
		}

		for _, r := range records {
			if seen != nil {
				k := limits.Dedupe(r)
				if k == "" || seen.has(k) {
					continue
				}
				seen.add(k)
			}
			all = append(all, r)
			if limits.TotalCap > 0 && len(all) >= limits.TotalCap {
				logger.Debug("total item cap reached", "cap", limits.TotalCap)
				return all, nil
			}
		}

		logger.Debug("collected partition", "partition", partition.ID, "records", len(records))
	}

	return all, nil
}

// collectPartition follows the cursor of one partition until it is exhausted,
// the page guard trips or the partition cap is reached.
func collectPartition[R any](ctx context.Context, coll RemoteCollection[R], partition Partition, limits Limits[R]) ([]R, error) {
	maxPages := limits.MaxPages
	if maxPages <= 0 {
		maxPages = MaxPagesPerPartition
	}

	var out []R
	cursor := ""
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := coll.ListPage(ctx, partition, cursor)
		if err != nil {
			return nil, err
		}

		for _, r := range resp.Records {
			out = append(out, r)
			if partition.ItemCap > 0 && len(out) >= partition.ItemCap {
				return out, nil
			}
		}

		cursor = resp.NextCursor
		if cursor == "" {
			break
		}
	}

	return out, nil
}

// dedupeRecords keeps the first record per non-empty key, marking keys in seen.
func dedupeRecords[R any](records []R, key KeyFunc[R], seen keySet) []R {
	out := records[:0]
	for _, r := range records {
		k := key(r)
		if k == "" || seen.has(k) {
			continue
		}
		seen.add(k)
		out = append(out, r)
	}
	return out
}

// Package compactor implements the bundle compactor (spec §4.4, C9):
// out-of-band defragmentation that merges small or fragmented warm-tier
// bundles into larger, live-objects-only ones, grounded on the shape of
// the teacher's modules/zeta/backend/prune.go (a maintenance pass driven
// against the object store) but built against bundles rather than loose
// packs, since spec §3 keeps the two formats and tiers separate.
package compactor

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zetavcs/zeta/bundle"
	"github.com/zetavcs/zeta/config"
	"github.com/zetavcs/zeta/hostapi"
	"github.com/zetavcs/zeta/internal/streamio"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// IsLive reports whether oid is still reachable, consulted to decide
// which objects in a fragmented bundle survive compaction (spec §4.4
// step 1 "given an isLive predicate").
type IsLive func(ctx context.Context, oid zoid.OID) (bool, error)

// Report summarizes one compaction run (spec §4.4 step 6).
type Report struct {
	SourceBundles []string
	TargetBundles []string
	ObjectsMoved  int
	BytesSaved    int64
}

// Compactor runs compaction passes over a bucket's bundles.
type Compactor struct {
	bucket hostapi.RemoteBucket
	cfg    *config.Config
	isLive IsLive
}

// New constructs a Compactor over bucket using cfg's bundle thresholds.
func New(bucket hostapi.RemoteBucket, cfg *config.Config, isLive IsLive) *Compactor {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Compactor{bucket: bucket, cfg: cfg, isLive: isLive}
}

type candidate struct {
	key     string
	header  *bundle.Header
	entries []bundle.Entry
	raw     []byte
}

// Run identifies candidate bundles, merges their live objects into new
// bundles, and deletes the sources only after every new bundle is
// durable (spec §4.4 steps 1-6).
func (c *Compactor) Run(ctx context.Context) (*Report, error) {
	keys, err := c.bucket.List(ctx, c.cfg.Bundle.KeyPrefix)
	if err != nil {
		return nil, zerr.NewIOError("compact-list", err)
	}
	sort.Strings(keys)

	candidates, err := c.loadCandidates(ctx, keys)
	if err != nil {
		return nil, err
	}
	if len(candidates) < c.cfg.Bundle.MinBundlesForCompaction {
		return &Report{}, nil
	}

	liveObjects, err := c.collectLive(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if len(liveObjects) == 0 {
		// Every candidate bundle is entirely dead: delete sources, emit
		// no target bundles.
		for _, cd := range candidates {
			if err := c.bucket.Delete(ctx, cd.key); err != nil {
				return nil, zerr.NewIOError("compact-delete", err)
			}
		}
		return &Report{SourceBundles: keysOf(candidates), ObjectsMoved: 0}, nil
	}

	targets, err := c.writeTargets(ctx, liveObjects)
	if err != nil {
		// Step 6: delete any partial outputs and surface the error;
		// sources remain intact.
		for _, key := range targets {
			_ = c.bucket.Delete(ctx, key)
		}
		return nil, err
	}

	var bytesBefore int64
	for _, cd := range candidates {
		bytesBefore += cd.header.TotalSize
	}
	var bytesAfter int64
	for _, key := range targets {
		raw, ok, err := c.bucket.Get(ctx, key)
		if err == nil && ok {
			bytesAfter += int64(len(raw))
		}
	}

	for _, cd := range candidates {
		if err := c.bucket.Delete(ctx, cd.key); err != nil {
			return nil, zerr.NewIOError("compact-delete", err)
		}
	}

	return &Report{
		SourceBundles: keysOf(candidates),
		TargetBundles: targets,
		ObjectsMoved:  len(liveObjects),
		BytesSaved:    bytesBefore - bytesAfter,
	}, nil
}

func (c *Compactor) loadCandidates(ctx context.Context, keys []string) ([]*candidate, error) {
	var out []*candidate
	for _, key := range keys {
		raw, ok, err := c.bucket.Get(ctx, key)
		if err != nil {
			return nil, zerr.NewIOError("compact-load", err)
		}
		if !ok {
			continue
		}
		h, entries, err := bundle.Parse(raw)
		if err != nil {
			return nil, err
		}
		isCandidate, err := c.isCandidate(ctx, h, entries)
		if err != nil {
			return nil, err
		}
		if isCandidate {
			out = append(out, &candidate{key: key, header: h, entries: entries, raw: raw})
		}
	}
	return out, nil
}

// isCandidate reports whether a bundle is small (below
// smallBundleThreshold) or fragmented (dead/total ratio exceeds
// deadObjectThreshold), per spec §4.4 step 1.
func (c *Compactor) isCandidate(ctx context.Context, h *bundle.Header, entries []bundle.Entry) (bool, error) {
	if h.TotalSize < c.cfg.Bundle.SmallBundleThreshold {
		return true, nil
	}
	if len(entries) == 0 {
		return false, nil
	}
	dead := 0
	for _, e := range entries {
		live, err := c.isLive(ctx, e.OID)
		if err != nil {
			return false, err
		}
		if !live {
			dead++
		}
	}
	ratio := float64(dead) / float64(len(entries))
	return ratio > c.cfg.Bundle.DeadObjectThreshold, nil
}

type liveObject struct {
	Kind    zoid.Kind
	Payload []byte
}

func (c *Compactor) collectLive(ctx context.Context, candidates []*candidate) (map[zoid.OID]liveObject, error) {
	out := make(map[zoid.OID]liveObject)
	for _, cd := range candidates {
		for _, e := range cd.entries {
			if _, seen := out[e.OID]; seen {
				continue
			}
			live, err := c.isLive(ctx, e.OID)
			if err != nil {
				return nil, err
			}
			if !live {
				continue
			}
			compressed := cd.raw[e.Offset : e.Offset+e.Size]
			payload, err := streamio.Decompress(compressed)
			if err != nil {
				return nil, zerr.NewBundleCorruptedError("payload decompress failed during compaction")
			}
			out[e.OID] = liveObject{Kind: e.Kind, Payload: payload}
		}
	}
	return out, nil
}

// writeTargets partitions liveObjects into new bundles respecting
// maxBundleSize (spec §4.4 step 4) and writes them all in parallel
// (step 5: "write all new bundles first").
func (c *Compactor) writeTargets(ctx context.Context, liveObjects map[zoid.OID]liveObject) ([]string, error) {
	oids := make([]zoid.OID, 0, len(liveObjects))
	for oid := range liveObjects {
		oids = append(oids, oid)
	}
	zoid.Sort(oids)

	var batches []string
	var group errgroup.Group
	var mu sync.Mutex

	var batch []zoid.OID
	var batchBytes int64
	flushBatch := func() {
		if len(batch) == 0 {
			return
		}
		snapshot := append([]zoid.OID(nil), batch...)
		group.Go(func() error {
			writer := bundle.NewWriter(c.bucket, c.cfg, nil)
			for _, oid := range snapshot {
				obj := liveObjects[oid]
				if err := writer.Add(ctx, oid, obj.Kind, obj.Payload); err != nil {
					return err
				}
			}
			if err := writer.Close(ctx); err != nil {
				return err
			}
			for _, ev := range writer.Sealed() {
				mu.Lock()
				batches = append(batches, ev.Key)
				mu.Unlock()
			}
			return nil
		})
		batch = nil
		batchBytes = 0
	}

	for _, oid := range oids {
		size := int64(len(liveObjects[oid].Payload))
		if batchBytes > 0 && batchBytes+size > c.cfg.Bundle.MaxSize {
			flushBatch()
		}
		batch = append(batch, oid)
		batchBytes += size
	}
	flushBatch()

	if err := group.Wait(); err != nil {
		return batches, zerr.NewIOError("compact-write", err)
	}
	return batches, nil
}

func keysOf(candidates []*candidate) []string {
	out := make([]string, len(candidates))
	for i, cd := range candidates {
		out[i] = cd.key
	}
	return out
}

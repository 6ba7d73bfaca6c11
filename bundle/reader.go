package bundle

import (
	"context"
	"errors"
	"sort"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/zetavcs/zeta/hostapi"
	"github.com/zetavcs/zeta/internal/streamio"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

var errRangeOutOfBounds = errors.New("zeta: range offset out of bounds")

// parsedBundle is one bundle's decoded header/index plus its raw bytes,
// cached by key.
type parsedBundle struct {
	header  *Header
	entries []Entry
	byOID   map[zoid.OID]Entry
	raw     []byte
}

func newParsedBundle(raw []byte) (*parsedBundle, error) {
	h, entries, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	byOID := make(map[zoid.OID]Entry, len(entries))
	for _, e := range entries {
		byOID[e.OID] = e
	}
	return &parsedBundle{header: h, entries: entries, byOID: byOID, raw: raw}, nil
}

// Reader serves reads against sealed bundles in bucket, keeping an LRU of
// parsed indices and deduplicating concurrent loads of the same key
// (spec §4.4 "Reader"). The cache is ristretto-backed, grounded on the
// teacher's odb.go metaLRU, since exact eviction accounting is not
// load-bearing here (approximate LFU/LRU is sufficient).
type Reader struct {
	bucket hostapi.RemoteBucket
	cache  *ristretto.Cache[string, *parsedBundle]
	group  singleflight.Group
}

// NewReader constructs a Reader over bucket with an LRU of up to
// maxEntries parsed bundle indices.
func NewReader(bucket hostapi.RemoteBucket, maxEntries int64) (*Reader, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *parsedBundle]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Reader{bucket: bucket, cache: cache}, nil
}

// load fetches and parses the bundle at key, deduplicating concurrent
// calls for the same key and serving from cache when present.
func (r *Reader) load(ctx context.Context, key string) (*parsedBundle, error) {
	if pb, ok := r.cache.Get(key); ok {
		return pb, nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		raw, ok, err := r.bucket.Get(ctx, key)
		if err != nil {
			return nil, zerr.NewIOError("bundle-load", err)
		}
		if !ok {
			return nil, zerr.NewNotFoundError("bundle", key)
		}
		pb, err := newParsedBundle(raw)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, pb, 1)
		return pb, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*parsedBundle), nil
}

// Get returns oid's decompressed payload from the bundle at key.
func (r *Reader) Get(ctx context.Context, key string, oid zoid.OID) ([]byte, bool, error) {
	pb, err := r.load(ctx, key)
	if err != nil {
		return nil, false, err
	}
	e, ok := pb.byOID[oid]
	if !ok {
		return nil, false, nil
	}
	compressed := pb.raw[e.Offset : e.Offset+e.Size]
	payload, err := streamio.Decompress(compressed)
	if err != nil {
		return nil, false, zerr.NewBundleCorruptedError("payload decompress failed")
	}
	return payload, true, nil
}

// GetBatch returns every requested OID's payload found within the
// bundle at key, in no particular order (spec §4.4 "batch get (multiple
// OIDs from one bundle)").
func (r *Reader) GetBatch(ctx context.Context, key string, oids []zoid.OID) (map[zoid.OID][]byte, error) {
	pb, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make(map[zoid.OID][]byte, len(oids))
	for _, oid := range oids {
		e, ok := pb.byOID[oid]
		if !ok {
			continue
		}
		compressed := pb.raw[e.Offset : e.Offset+e.Size]
		payload, err := streamio.Decompress(compressed)
		if err != nil {
			return nil, zerr.NewBundleCorruptedError("payload decompress failed")
		}
		out[oid] = payload
	}
	return out, nil
}

// GetRange returns a slice of oid's decompressed payload starting at
// offset for up to length bytes (spec §4.4 "range get (slice of one
// object's payload)").
func (r *Reader) GetRange(ctx context.Context, key string, oid zoid.OID, offset, length int64) ([]byte, error) {
	payload, ok, err := r.Get(ctx, key, oid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, zerr.NewNotFoundError("object", oid.String())
	}
	if offset < 0 || offset > int64(len(payload)) {
		return nil, zerr.NewIOError("bundle-range", errRangeOutOfBounds)
	}
	end := offset + length
	if end > int64(len(payload)) {
		end = int64(len(payload))
	}
	return payload[offset:end], nil
}

// Has reports whether oid is present in the bundle at key.
func (r *Reader) Has(ctx context.Context, key string, oid zoid.OID) (bool, error) {
	pb, err := r.load(ctx, key)
	if err != nil {
		return false, err
	}
	_, ok := pb.byOID[oid]
	return ok, nil
}

// ListOIDs returns every OID present in the bundle at key, sorted.
func (r *Reader) ListOIDs(ctx context.Context, key string) ([]zoid.OID, error) {
	pb, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]zoid.OID, len(pb.entries))
	for i, e := range pb.entries {
		out[i] = e.OID
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// Invalidate drops key from the parsed-index cache, used by the
// compactor after deleting a source bundle.
func (r *Reader) Invalidate(key string) {
	r.cache.Del(key)
}

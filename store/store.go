// Package store implements the content-addressed object store (spec §4.2
// "Object store (C4)"): durable put/get/has/delete/verify, typed
// accessors, streaming large-blob I/O, short-OID resolution, batch
// reads, WAL-backed mutation logging, and hot/warm tiering against the
// bundle writer/reader.
//
// It is grounded on the teacher's modules/zeta/backend/odb.go: the
// functional-options constructor (Option/With... pattern), the
// sync/atomic idempotent Close, and the ristretto-flavoured metadata
// cache slot (here replaced by package lru for the exact peek/TTL
// semantics spec §4.2 requires — see lru's package doc comment).
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/zetavcs/zeta/config"
	"github.com/zetavcs/zeta/hostapi"
	"github.com/zetavcs/zeta/internal/streamio"
	"github.com/zetavcs/zeta/lru"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// Tier identifies where a payload's bytes currently live (spec §3
// glossary "Tier").
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// WarmWriter is the subset of the bundle writer (C7) the store needs to
// stage an oversized payload to the warm tier. Declared locally (rather
// than importing package bundle) so store and bundle have no import
// cycle: bundle's compactor consults the store's IsLive predicate, and
// the store consults the bundle writer/reader, so the dependency must
// flow through narrow interfaces instead of a direct package import.
type WarmWriter interface {
	Add(ctx context.Context, oid zoid.OID, kind zoid.Kind, payload []byte) error
	// BundleKeyOf returns the bundle key currently holding oid, which may
	// be empty if oid's bundle has not sealed yet (still open in this
	// writer's buffer).
	BundleKeyOf(oid zoid.OID) (string, bool)
}

// WarmReader is the subset of the bundle reader (C8) the store needs to
// serve a warm-tier get. key is the bundle storage key recorded in
// object_index at put time.
type WarmReader interface {
	Get(ctx context.Context, key string, oid zoid.OID) ([]byte, bool, error)
}

// Object is a decoded object together with its identity.
type Object struct {
	OID     zoid.OID
	Kind    zoid.Kind
	Payload []byte
}

type Option func(*Store)

func WithWarmWriter(w WarmWriter) Option { return func(s *Store) { s.warmWriter = w } }
func WithWarmReader(r WarmReader) Option { return func(s *Store) { s.warmReader = r } }
func WithLogger(log *logrus.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}
func WithRegisterer(reg prometheus.Registerer) Option { return func(s *Store) { s.reg = reg } }

// Store is the object store (spec §4.2).
type Store struct {
	rows hostapi.RowStore
	cfg  *config.Config
	log  *logrus.Logger
	reg  prometheus.Registerer

	warmWriter WarmWriter
	warmReader WarmReader

	cache   *lru.Cache[zoid.OID, Object]
	metrics *metrics

	closed uint32
	mu     sync.Mutex
}

// New constructs a Store over rows (spec §6 "Row store"), applying cfg's
// cache bounds and tiering threshold.
func New(rows hostapi.RowStore, cfg *config.Config, opts ...Option) *Store {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Store{
		rows: rows,
		cfg:  cfg,
		log:  logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.metrics = newMetrics(s.reg)
	s.cache = lru.New[zoid.OID, Object](lru.Options[zoid.OID, Object]{
		MaxCount: cfg.Cache.MaxCount,
		MaxBytes: cfg.Cache.MaxBytes,
		TTL:      cfg.Cache.TTL,
	})
	return s
}

// Close marks the store closed; idempotent, second call errors (spec
// idiom grounded on odb.go's atomic.CompareAndSwapUint32 guard).
func (s *Store) Close() error {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return errors.New("zeta: store already closed")
	}
	return nil
}

// Put computes payload's OID, writes it (or confirms it already exists),
// promotes the cache, and appends a WAL entry (spec §4.2 "put").
func (s *Store) Put(ctx context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error) {
	if err := validate(kind, payload); err != nil {
		return zoid.Zero, err
	}
	oid := zoid.Hash(kind, payload)

	exists, err := s.Has(ctx, oid)
	if err != nil {
		return zoid.Zero, err
	}
	if exists {
		s.cache.Set(oid, Object{OID: oid, Kind: kind, Payload: payload}, int64(len(payload)))
		return oid, nil
	}

	tier := s.tierFor(int64(len(payload)))
	if err := s.writeTiered(ctx, oid, kind, payload, tier); err != nil {
		return zoid.Zero, err
	}
	if err := s.appendWAL(ctx, "put", oid, kind); err != nil {
		return zoid.Zero, err
	}
	s.cache.Set(oid, Object{OID: oid, Kind: kind, Payload: payload}, int64(len(payload)))
	s.metrics.puts.Inc()
	s.metrics.tierBytes.WithLabelValues(string(tier)).Add(float64(len(payload)))
	return oid, nil
}

// PutBlobStreaming consumes chunks once, buffering the whole payload in
// memory, then calls Put, which hashes it in one pass and stages it to the
// warm tier when it exceeds HotMaxSize (spec §4.2 "putBlobStreaming"). The
// OID is not computed incrementally as chunks arrive.
func (s *Store) PutBlobStreaming(ctx context.Context, next func() ([]byte, bool)) (zoid.OID, error) {
	var buf bytes.Buffer
	cr := streamio.NewChunkReader(next)
	if _, err := io.Copy(&buf, cr); err != nil {
		return zoid.Zero, zerr.NewIOError("put-blob-streaming", err)
	}
	return s.Put(ctx, zoid.Blob, buf.Bytes())
}

func validate(kind zoid.Kind, payload []byte) error {
	switch kind {
	case zoid.Blob, zoid.Tree, zoid.Commit, zoid.Tag:
	default:
		return zerr.NewInvalidObjectError("unsupported object kind")
	}
	if _, err := object.Decode(kind, payload); err != nil {
		return err
	}
	return nil
}

func (s *Store) tierFor(size int64) Tier {
	if size <= s.cfg.Store.HotMaxSize {
		return TierHot
	}
	return TierWarm
}

func (s *Store) writeTiered(ctx context.Context, oid zoid.OID, kind zoid.Kind, payload []byte, tier Tier) error {
	switch tier {
	case TierHot:
		if _, err := s.rows.Exec(ctx, `INSERT IGNORE INTO objects (oid, kind, size, data, created_at) VALUES (?, ?, ?, ?, ?)`,
			oid.String(), int8(kind), int64(len(payload)), payload, time.Now().UTC()); err != nil {
			return zerr.NewIOError("put", err)
		}
		if _, err := s.rows.Exec(ctx, `REPLACE INTO object_index (oid, kind, tier, size, bundle_key) VALUES (?, ?, ?, ?, ?)`,
			oid.String(), int8(kind), string(TierHot), int64(len(payload)), nil); err != nil {
			return zerr.NewIOError("put", err)
		}
		return nil
	case TierWarm:
		if s.warmWriter == nil {
			return zerr.NewIOError("put", errors.New("zeta: no warm-tier writer configured"))
		}
		if err := s.warmWriter.Add(ctx, oid, kind, payload); err != nil {
			return zerr.NewIOError("put", err)
		}
		bundleKey, _ := s.warmWriter.BundleKeyOf(oid)
		if _, err := s.rows.Exec(ctx, `REPLACE INTO object_index (oid, kind, tier, size, bundle_key) VALUES (?, ?, ?, ?, ?)`,
			oid.String(), int8(kind), string(TierWarm), int64(len(payload)), bundleKey); err != nil {
			return zerr.NewIOError("put", err)
		}
		return nil
	default:
		return fmt.Errorf("zeta: unsupported tier %q", tier)
	}
}

// Get resolves oidOrPrefix (full OID or a 4-39 char hex prefix) and
// returns its kind and payload, promoting the cache entry on hit (spec
// §4.2 "get").
func (s *Store) Get(ctx context.Context, oidOrPrefix string) (zoid.Kind, []byte, error) {
	oid, err := s.resolve(ctx, oidOrPrefix)
	if err != nil {
		return zoid.Invalid, nil, err
	}
	if obj, ok := s.cache.Get(oid); ok {
		s.metrics.cacheHit.Inc()
		return obj.Kind, obj.Payload, nil
	}
	s.metrics.cacheMiss.Inc()
	s.metrics.gets.Inc()

	tier, kind, bundleKey, err := s.tierOf(ctx, oid)
	if err != nil {
		return zoid.Invalid, nil, err
	}
	switch tier {
	case TierHot:
		var kindRaw int8
		var size int64
		var data []byte
		row := s.rows.QueryRow(ctx, `SELECT kind, size, data FROM objects WHERE oid = ?`, oid.String())
		if err := row.Scan(&kindRaw, &size, &data); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return zoid.Invalid, nil, nil
			}
			return zoid.Invalid, nil, zerr.NewIOError("get", err)
		}
		s.cache.Set(oid, Object{OID: oid, Kind: zoid.Kind(kindRaw), Payload: data}, size)
		return zoid.Kind(kindRaw), data, nil
	case TierWarm, TierCold:
		if s.warmReader == nil {
			return zoid.Invalid, nil, zerr.NewIOError("get", errors.New("zeta: no warm-tier reader configured"))
		}
		if bundleKey == "" {
			return zoid.Invalid, nil, zerr.NewIOError("get", errors.New("zeta: object not yet sealed into a bundle"))
		}
		data, ok, err := s.warmReader.Get(ctx, bundleKey, oid)
		if err != nil {
			return zoid.Invalid, nil, zerr.NewIOError("get", err)
		}
		if !ok {
			return zoid.Invalid, nil, nil
		}
		s.cache.Set(oid, Object{OID: oid, Kind: kind, Payload: data}, int64(len(data)))
		return kind, data, nil
	default:
		return zoid.Invalid, nil, nil
	}
}

func (s *Store) tierOf(ctx context.Context, oid zoid.OID) (Tier, zoid.Kind, string, error) {
	var kindRaw int8
	var tier, bundleKey string
	err := s.rows.QueryRow(ctx, `SELECT kind, tier, bundle_key FROM object_index WHERE oid = ?`, oid.String()).Scan(&kindRaw, &tier, &bundleKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", zoid.Invalid, "", nil
	}
	if err != nil {
		return "", zoid.Invalid, "", zerr.NewIOError("tier-lookup", err)
	}
	return Tier(tier), zoid.Kind(kindRaw), bundleKey, nil
}

// resolve turns a full or short OID into a full zoid.OID, scanning the
// row store for prefix matches (spec §4.2 "get" resolution rule; §3
// "short OID").
func (s *Store) resolve(ctx context.Context, oidOrPrefix string) (zoid.OID, error) {
	if zoid.IsValidHex(oidOrPrefix) {
		return zoid.Parse(oidOrPrefix)
	}
	if !zoid.IsValidShortHex(oidOrPrefix) {
		return zoid.Zero, zerr.NewNotFoundError("object", oidOrPrefix)
	}
	rows, err := s.rows.Query(ctx, `SELECT oid FROM objects WHERE oid LIKE ? LIMIT 2`, oidOrPrefix+"%")
	if err != nil {
		return zoid.Zero, zerr.NewIOError("resolve", err)
	}
	defer rows.Close()
	var matches []string
	for rows.Next() {
		var oid string
		if err := rows.Scan(&oid); err != nil {
			return zoid.Zero, zerr.NewIOError("resolve", err)
		}
		matches = append(matches, oid)
	}
	switch len(matches) {
	case 0:
		return zoid.Zero, zerr.NewNotFoundError("object", oidOrPrefix)
	case 1:
		return zoid.Parse(matches[0])
	default:
		return zoid.Zero, zerr.NewAmbiguousOidError(oidOrPrefix, matches)
	}
}

// GetBlobStreaming returns the size and a reader over a blob's payload
// without requiring the caller to hold the whole payload in memory at
// once (spec §4.2 "getBlobStreaming").
func (s *Store) GetBlobStreaming(ctx context.Context, oid zoid.OID) (int64, io.Reader, error) {
	kind, payload, err := s.Get(ctx, oid.String())
	if err != nil {
		return 0, nil, err
	}
	if kind == zoid.Invalid {
		return 0, nil, nil
	}
	if kind != zoid.Blob {
		return 0, nil, zerr.NewInvalidObjectError("not a blob")
	}
	return int64(len(payload)), bytes.NewReader(payload), nil
}

// Has reports whether oid is present in the store.
func (s *Store) Has(ctx context.Context, oid zoid.OID) (bool, error) {
	if _, ok := s.cache.Peek(oid); ok {
		return true, nil
	}
	var count int
	if err := s.rows.QueryRow(ctx, `SELECT COUNT(*) FROM object_index WHERE oid = ?`, oid.String()).Scan(&count); err != nil {
		return false, zerr.NewIOError("has", err)
	}
	return count > 0, nil
}

// Delete removes oid from the store and its cache, returning whether it
// was present.
func (s *Store) Delete(ctx context.Context, oid zoid.OID) (bool, error) {
	had, err := s.Has(ctx, oid)
	if err != nil {
		return false, err
	}
	if !had {
		return false, nil
	}
	if _, err := s.rows.Exec(ctx, `DELETE FROM objects WHERE oid = ?`, oid.String()); err != nil {
		return false, zerr.NewIOError("delete", err)
	}
	if _, err := s.rows.Exec(ctx, `DELETE FROM object_index WHERE oid = ?`, oid.String()); err != nil {
		return false, zerr.NewIOError("delete", err)
	}
	s.cache.Remove(oid)
	if err := s.appendWAL(ctx, "delete", oid, zoid.Invalid); err != nil {
		return false, err
	}
	return true, nil
}

// Verify recomputes oid's hash from its stored payload and compares (spec
// §4.2 "verify"); a mismatch is reported as false, not an error.
func (s *Store) Verify(ctx context.Context, oid zoid.OID) (bool, error) {
	kind, payload, err := s.Get(ctx, oid.String())
	if err != nil {
		return false, err
	}
	if kind == zoid.Invalid {
		return false, nil
	}
	return zoid.Hash(kind, payload) == oid, nil
}

// GetBatch resolves oids in input order, consulting the cache first and
// issuing a single range query for misses (spec §4.2 "getBatch").
func (s *Store) GetBatch(ctx context.Context, oids []zoid.OID) ([]*Object, error) {
	out := make([]*Object, len(oids))
	var missIdx []int
	var missOIDs []any
	for i, oid := range oids {
		if obj, ok := s.cache.Get(oid); ok {
			v := obj
			out[i] = &v
			continue
		}
		missIdx = append(missIdx, i)
		missOIDs = append(missOIDs, oid.String())
	}
	if len(missOIDs) == 0 {
		return out, nil
	}

	placeholders := make([]byte, 0, len(missOIDs)*2)
	for i := range missOIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	query := fmt.Sprintf(`SELECT oid, kind, size, data FROM objects WHERE oid IN (%s)`, placeholders)
	rows, err := s.rows.Query(ctx, query, missOIDs...)
	if err != nil {
		return nil, zerr.NewIOError("get-batch", err)
	}
	defer rows.Close()

	byOID := make(map[zoid.OID]*Object, len(missIdx))
	for rows.Next() {
		var oidStr string
		var kindRaw int8
		var size int64
		var data []byte
		if err := rows.Scan(&oidStr, &kindRaw, &size, &data); err != nil {
			return nil, zerr.NewIOError("get-batch", err)
		}
		oid, err := zoid.Parse(oidStr)
		if err != nil {
			return nil, zerr.NewIOError("get-batch", err)
		}
		obj := &Object{OID: oid, Kind: zoid.Kind(kindRaw), Payload: data}
		byOID[oid] = obj
		s.cache.Set(oid, *obj, size)
	}
	for _, i := range missIdx {
		out[i] = byOID[oids[i]]
	}
	return out, nil
}

// ListByKind returns up to limit objects of the given kind.
func (s *Store) ListByKind(ctx context.Context, kind zoid.Kind, limit int) ([]*Object, error) {
	rows, err := s.rows.Query(ctx, `SELECT oid, data FROM objects WHERE kind = ? LIMIT ?`, int8(kind), limit)
	if err != nil {
		return nil, zerr.NewIOError("list-by-kind", err)
	}
	defer rows.Close()
	var out []*Object
	for rows.Next() {
		var oidStr string
		var data []byte
		if err := rows.Scan(&oidStr, &data); err != nil {
			return nil, zerr.NewIOError("list-by-kind", err)
		}
		oid, err := zoid.Parse(oidStr)
		if err != nil {
			return nil, zerr.NewIOError("list-by-kind", err)
		}
		out = append(out, &Object{OID: oid, Kind: kind, Payload: data})
	}
	return out, nil
}

// Tree fetches and decodes the tree object at oid, satisfying
// object.TreeResolver so traversal/treediff/merge can walk trees through
// the store directly.
func (s *Store) Tree(ctx context.Context, oid zoid.OID) (*object.Tree, error) {
	kind, payload, err := s.Get(ctx, oid.String())
	if err != nil {
		return nil, err
	}
	if kind == zoid.Invalid {
		return nil, zerr.NewNotFoundError("object", oid.String())
	}
	if kind != zoid.Tree {
		return nil, zerr.NewInvalidObjectError("oid does not refer to a tree")
	}
	return object.DecodeTree(payload)
}

// Commit fetches and decodes the commit object at oid.
func (s *Store) Commit(ctx context.Context, oid zoid.OID) (*object.Commit, error) {
	kind, payload, err := s.Get(ctx, oid.String())
	if err != nil {
		return nil, err
	}
	if kind == zoid.Invalid {
		return nil, zerr.NewNotFoundError("object", oid.String())
	}
	if kind != zoid.Commit {
		return nil, zerr.NewInvalidObjectError("oid does not refer to a commit")
	}
	return object.DecodeCommit(payload)
}

func (s *Store) appendWAL(ctx context.Context, op string, oid zoid.OID, kind zoid.Kind) error {
	_, err := s.rows.Exec(ctx, `INSERT INTO wal (op, oid, kind, ts, flushed) VALUES (?, ?, ?, ?, FALSE)`,
		op, oid.String(), int8(kind), time.Now().UTC())
	if err != nil {
		return zerr.NewIOError("wal-append", err)
	}
	return nil
}

// TruncateWAL removes every WAL entry already marked flushed (spec §4.2
// "WAL").
func (s *Store) TruncateWAL(ctx context.Context) error {
	if _, err := s.rows.Exec(ctx, `DELETE FROM wal WHERE flushed = TRUE`); err != nil {
		return zerr.NewIOError("wal-truncate", err)
	}
	return nil
}

// MarkWALFlushed marks every WAL entry up to and including seq as
// flushed, called by the periodic maintenance pass (spec §4.2 "WAL
// entries are marked flushed by a periodic maintenance pass").
func (s *Store) MarkWALFlushed(ctx context.Context, seq int64) error {
	if _, err := s.rows.Exec(ctx, `UPDATE wal SET flushed = TRUE WHERE seq <= ?`, seq); err != nil {
		return zerr.NewIOError("wal-flush", err)
	}
	return nil
}

// RefLogEntry is one WAL row, surfaced read-only (SPEC_FULL.md
// "Reflog-equivalent ref history" supplemented feature).
type RefLogEntry struct {
	Seq     int64
	Op      string
	OID     string
	Kind    int8
	At      time.Time
	Flushed bool
}

// RefLog returns up to limit WAL rows, newest first, the reflog-equivalent history
// grounded on the teacher's modules/zeta/reflog shape.
func (s *Store) RefLog(ctx context.Context, limit int) ([]RefLogEntry, error) {
	rows, err := s.rows.Query(ctx, `SELECT seq, op, oid, kind, ts, flushed FROM wal ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, zerr.NewIOError("reflog", err)
	}
	defer rows.Close()
	var out []RefLogEntry
	for rows.Next() {
		var e RefLogEntry
		if err := rows.Scan(&e.Seq, &e.Op, &e.OID, &e.Kind, &e.At, &e.Flushed); err != nil {
			return nil, zerr.NewIOError("reflog", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// IsLive reports whether oid is still reachable from the row store's
// live object set, the predicate the compactor (C9) consults.
func (s *Store) IsLive(ctx context.Context, oid zoid.OID) (bool, error) {
	return s.Has(ctx, oid)
}

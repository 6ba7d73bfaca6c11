package bundle

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/zetavcs/zeta/config"
	"github.com/zetavcs/zeta/hostapi"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// errClosed is returned by Add once the writer has been closed.
var errClosed = errors.New("zeta: bundle writer closed")

// RotationEvent is fired whenever the writer seals a bundle, carrying the
// sealed bundle's key, entries, and total size (spec §4.4 writer
// "rotation event carrying sealed metadata").
type RotationEvent struct {
	Key     string
	Entries []Entry
	Size    int64
}

// Writer buffers {OID -> (kind, payload)} and seals a bundle when the
// buffer would exceed maxBundleSize, or on an explicit Close (spec §4.4
// "Writer").
type Writer struct {
	bucket    hostapi.RemoteBucket
	keyPrefix string
	maxSize   int64

	mu      sync.Mutex
	pending map[zoid.OID]object
	size    int64
	sealed  []RotationEvent
	onSeal  func(RotationEvent)

	// bundleOf tracks which sealed (or still-open) bundle key currently
	// holds each OID, consulted by Store.writeTiered/BundleKeyOf.
	bundleOf map[zoid.OID]string
	closed   bool
}

// NewWriter constructs a Writer over bucket, rotating at cfg's
// maxBundleSize. onSeal, if non-nil, is invoked synchronously every time
// a bundle seals.
func NewWriter(bucket hostapi.RemoteBucket, cfg *config.Config, onSeal func(RotationEvent)) *Writer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Writer{
		bucket:    bucket,
		keyPrefix: cfg.Bundle.KeyPrefix,
		maxSize:   cfg.Bundle.MaxSize,
		pending:   make(map[zoid.OID]object),
		bundleOf:  make(map[zoid.OID]string),
		onSeal:    onSeal,
	}
}

// Add buffers oid's payload, rotating first if it would push the open
// bundle over maxSize (spec §4.4 "if appending would exceed
// maxBundleSize and the buffer is non-empty, rotate"). Duplicate OIDs
// within the open bundle are refused.
func (w *Writer) Add(ctx context.Context, oid zoid.OID, kind zoid.Kind, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return zerr.NewIOError("bundle-add", errClosed)
	}
	if _, exists := w.pending[oid]; exists {
		return zerr.NewInvalidObjectError("duplicate OID within open bundle")
	}

	if w.size > 0 && w.size+int64(len(payload)) > w.maxSize {
		if err := w.sealLocked(ctx); err != nil {
			return err
		}
	}

	w.pending[oid] = object{OID: oid, Kind: kind, Payload: payload}
	w.size += int64(len(payload))
	w.bundleOf[oid] = "" // open bundle, not yet sealed
	return nil
}

// BundleKeyOf reports the storage key currently holding oid, which is
// empty while oid's bundle is still open.
func (w *Writer) BundleKeyOf(oid zoid.OID) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key, ok := w.bundleOf[oid]
	return key, ok
}

// Flush seals the open bundle, if non-empty (spec §4.4 "flush serialises
// concurrent calls").
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sealLocked(ctx)
}

// Close flushes any remaining buffered objects exactly once; repeated
// calls are a no-op (spec §4.4 "close flushes remaining objects exactly
// once and is idempotent after").
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	err := w.sealLocked(ctx)
	w.closed = true
	return err
}

// Sealed returns every rotation event fired so far, most recent last.
func (w *Writer) Sealed() []RotationEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]RotationEvent, len(w.sealed))
	copy(out, w.sealed)
	return out
}

func (w *Writer) sealLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	raw, entries, err := Create(w.pending)
	if err != nil {
		return zerr.NewIOError("bundle-seal", err)
	}
	key := w.keyPrefix + uuid.NewString() + ".bundle"
	if err := w.bucket.Put(ctx, key, raw); err != nil {
		return zerr.NewIOError("bundle-seal", err)
	}
	for oid := range w.pending {
		w.bundleOf[oid] = key
	}
	ev := RotationEvent{Key: key, Entries: entries, Size: int64(len(raw))}
	w.sealed = append(w.sealed, ev)
	if w.onSeal != nil {
		w.onSeal(ev)
	}
	w.pending = make(map[zoid.OID]object)
	w.size = 0
	return nil
}

package treediff

import (
	"bytes"
	"context"
)

const binarySniffLen = 8000

var binaryMagic = [][]byte{
	{0x89, 'P', 'N', 'G'},       // PNG
	{0xFF, 0xD8, 0xFF},          // JPEG
	{'G', 'I', 'F', '8', '7', 'a'}, // GIF87a
	{'G', 'I', 'F', '8', '9', 'a'}, // GIF89a
}

// markBinary sets IsBinary on every change whose new (or, absent a new
// side, old) blob content is binary (spec §4.7 "Binary detection: scan
// the first 8000 bytes; if any byte is \0, the content is binary. Known
// magic (PNG, JPEG, GIF) short-circuits to binary.").
func markBinary(ctx context.Context, r BlobResolver, changes []Change) error {
	for i := range changes {
		c := &changes[i]
		entry := c.To
		if entry == nil {
			entry = c.From
		}
		if entry == nil || entry.Mode.IsSubtree() {
			continue
		}
		blob, err := r.Blob(ctx, entry.Target)
		if err != nil {
			return err
		}
		c.IsBinary = IsBinary(blob.Data)
	}
	return nil
}

// IsBinary applies spec §4.7's binary-content heuristic: known image
// magic short-circuits to binary, otherwise a NUL byte within the first
// 8000 bytes marks the content binary. Exported so other packages (e.g.
// merge's "binary content never auto-merges" rule) can reuse the same
// check rather than re-implementing it.
func IsBinary(data []byte) bool {
	for _, magic := range binaryMagic {
		if bytes.HasPrefix(data, magic) {
			return true
		}
	}
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0
}

package object

import "github.com/zetavcs/zeta/zoid"

// Blob is an opaque byte array (spec §3). It carries no structure of its
// own; the type exists so the generic Decode dispatcher has something to
// return.
type Blob struct {
	Data []byte
}

// Hash returns the OID of the blob.
func (b *Blob) Hash() zoid.OID {
	return zoid.Hash(zoid.Blob, b.Data)
}

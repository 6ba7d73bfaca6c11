package object

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// Tag is an annotated tag object: {target, target kind, name, tagger,
// message, optional signature} (spec §3).
type Tag struct {
	Target       zoid.OID
	TargetKind   zoid.Kind
	Name         string
	Tagger       Signature
	Message      string
	GPGSignature string
}

// Encode serialises the tag to its canonical unframed payload.
func (t *Tag) Encode() ([]byte, error) {
	if t.Target.IsZero() {
		return nil, zerr.NewInvalidObjectError("tag has no target")
	}
	if t.Name == "" {
		return nil, zerr.NewInvalidObjectError("tag has no name")
	}
	var buf bytes.Buffer
	writeHeaderLine(&buf, "object", t.Target.String())
	writeHeaderLine(&buf, "type", t.TargetKind.String())
	writeHeaderLine(&buf, "tag", t.Name)
	writeHeaderLine(&buf, "tagger", t.Tagger.String())
	if t.GPGSignature != "" {
		writeMultilineHeader(&buf, "gpgsig", t.GPGSignature)
	}
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes(), nil
}

// Hash returns the OID of the encoded tag.
func (t *Tag) Hash() (zoid.OID, error) {
	payload, err := t.Encode()
	if err != nil {
		return zoid.Zero, err
	}
	return zoid.Hash(zoid.Tag, payload), nil
}

// DecodeTag parses a tag object's unframed payload.
func DecodeTag(payload []byte) (*Tag, error) {
	t := &Tag{}
	r := bufio.NewScanner(bytes.NewReader(payload))
	r.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var (
		inSig   bool
		sigLine strings.Builder
		gotObj  bool
	)
	consumed := 0
	msgStart := len(payload)
	for r.Scan() {
		line := r.Text()
		consumed += len(line) + 1
		if line == "" {
			msgStart = consumed
			break
		}
		if inSig {
			if strings.HasPrefix(line, " ") {
				sigLine.WriteByte('\n')
				sigLine.WriteString(line[1:])
				continue
			}
			inSig = false
			t.GPGSignature = sigLine.String()
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			return nil, zerr.NewInvalidObjectError("tag header missing value: " + line)
		}
		switch key {
		case "object":
			oid, err := zoid.Parse(value)
			if err != nil {
				return nil, zerr.NewInvalidObjectError("tag has malformed target oid")
			}
			t.Target = oid
			gotObj = true
		case "type":
			t.TargetKind = zoid.KindFromString(value)
		case "tag":
			t.Name = value
		case "tagger":
			sig, err := ParseSignature(value)
			if err != nil {
				return nil, zerr.NewInvalidObjectError(err.Error())
			}
			t.Tagger = sig
		case "gpgsig":
			inSig = true
			sigLine.Reset()
			sigLine.WriteString(value)
		}
	}
	if inSig {
		t.GPGSignature = sigLine.String()
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !gotObj {
		return nil, zerr.NewInvalidObjectError("tag is missing object header")
	}
	if msgStart <= len(payload) {
		t.Message = string(payload[msgStart:])
	}
	return t, nil
}

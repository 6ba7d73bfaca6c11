package zoid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashBlobHello(t *testing.T) {
	oid := Hash(Blob, []byte("hello\n"))
	require.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", oid.String())
}

func TestHashReaderMatchesHash(t *testing.T) {
	payload := strings.Repeat("a", 1<<20+17)
	direct := Hash(Blob, []byte(payload))
	streamed, err := HashReader(Blob, int64(len(payload)), strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, direct, streamed)
}

func TestParseRoundTrip(t *testing.T) {
	oid := Hash(Blob, []byte("hello\n"))
	parsed, err := Parse(oid.String())
	require.NoError(t, err)
	require.Equal(t, oid, parsed)
}

func TestIsValidShortHex(t *testing.T) {
	require.True(t, IsValidShortHex("ce01"))
	require.True(t, IsValidShortHex(strings.Repeat("a", 39)))
	require.False(t, IsValidShortHex("ce0"))
	require.False(t, IsValidShortHex(strings.Repeat("a", 40)))
	require.False(t, IsValidShortHex("zz01"))
}

func TestSortIsByteOrder(t *testing.T) {
	a := MustParse(strings.Repeat("a", 40))
	f := MustParse(strings.Repeat("f", 40))
	oids := []OID{f, a}
	Sort(oids)
	require.Equal(t, a, oids[0])
	require.Equal(t, f, oids[1])
}

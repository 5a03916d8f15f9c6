package codec

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	cases := [][]uint32{
		{},
		{0},
		{1},
		{127},
		{128},
		{16384},
		{1 << 20, 1, 2, 3},
		{0xffffffff},
	}
	for _, xs := range cases {
		enc := EncodeUvarints(xs)
		dec, err := DecodeUvarints(enc)
		require.NoError(t, err)
		require.Equal(t, xs, dec)
	}
}

func TestUvarintRoundTripRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := r.Intn(50)
		xs := make([]uint32, n)
		for j := range xs {
			xs[j] = r.Uint32()
		}
		enc := EncodeUvarints(xs)
		dec, err := DecodeUvarints(enc)
		require.NoError(t, err)
		require.Equal(t, xs, dec)
	}
}

func TestUvarintDecodeErrors(t *testing.T) {
	// continuation bit set with nothing following
	_, _, err := DecodeUvarint([]byte{0x80})
	require.Error(t, err)

	// more than 5 continuation bytes never terminates
	_, _, err = DecodeUvarint([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80})
	require.Error(t, err)
}

func TestDeltaRoundTripSortedRandom(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := r.Intn(100)
		set := map[uint32]struct{}{}
		for len(set) < n {
			set[uint32(r.Intn(1<<20))] = struct{}{}
		}
		xs := make([]uint32, 0, n)
		for v := range set {
			xs = append(xs, v)
		}
		sort.Slice(xs, func(a, b int) bool { return xs[a] < xs[b] })

		enc := EncodeDeltaSorted(xs)
		dec, err := DecodeDeltaSorted(enc)
		require.NoError(t, err)
		require.Equal(t, xs, dec)
	}
}

func TestDeltaEmpty(t *testing.T) {
	require.Equal(t, []byte{}, EncodeDeltaSorted(nil))
	dec, err := DecodeDeltaSorted([]byte{})
	require.NoError(t, err)
	require.Equal(t, []uint32{}, dec)
}

func TestDeltaDecodeStrictlyIncreasing(t *testing.T) {
	xs := []uint32{5, 6, 100, 101, 50000}
	enc := EncodeDeltaSorted(xs)
	dec, err := DecodeDeltaSorted(enc)
	require.NoError(t, err)
	for i := 1; i < len(dec); i++ {
		require.Greater(t, dec[i], dec[i-1])
	}
}

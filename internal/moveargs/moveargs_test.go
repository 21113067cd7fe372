package moveargs

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowerPrimitives(t *testing.T) {
	max256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	max128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	tests := []struct {
		arg  Arg
		kind Kind
		text string
	}{
		{U8(255), KindU8, "255u8"},
		{U16(65535), KindU16, "65535u16"},
		{U32(7), KindU32, "7u32"},
		{U64(1 << 63), KindU64, "9223372036854775808u64"},
		{U128FromBig(max128), KindU128, max128.String() + "u128"},
		{U256(Uint256FromBig(max256)), KindU256, max256.String() + "u256"},
		{Bool(true), KindBool, "true"},
		{Bytes{0x0a, 0x0b}, KindU8Vector, `x"0a0b"`},
	}
	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			lowered := test.arg.Lower()
			require.Len(t, lowered, 1)
			assert.Equal(t, test.kind, lowered[0].Kind)
			assert.Equal(t, test.text, lowered[0].String())
		})
	}
}

func TestLowerU256IsNotTruncated(t *testing.T) {
	v := U256{1, 2, 3, 4}
	lowered := v.Lower()
	require.Len(t, lowered, 1)
	assert.Equal(t, KindU256, lowered[0].Kind)
	assert.Equal(t, Uint256{1, 2, 3, 4}, lowered[0].Num)
	assert.Equal(t, 0, Uint256(v).Big().Cmp(Uint256FromBig(Uint256(v).Big()).Big()))
}

func TestLowerOrder(t *testing.T) {
	a, b, c := U8(1), U64(2), Bytes("three")
	whole := Lower(a, b, c)
	parts := append(append(a.Lower(), b.Lower()...), c.Lower()...)
	if diff := cmp.Diff(parts, whole); diff != "" {
		t.Fatalf("lowering is not compositional (-want +got):\n%s", diff)
	}

	left := List{U16(1), Bool(false)}
	right := List{U32(9), List{U8(3), U128{Lo: 4}}}
	joined := append(append(List{}, left...), right...)
	assert.Empty(t, cmp.Diff(append(left.Lower(), right.Lower()...), joined.Lower()))
}

func TestLowerNested(t *testing.T) {
	nested := List{U8(1), List{U8(2), List{U8(3)}}, List{}, U8(4)}
	var got []string
	for _, ta := range nested.Lower() {
		got = append(got, ta.String())
	}
	assert.Equal(t, []string{"1u8", "2u8", "3u8", "4u8"}, got)
}

func TestLowerEmpty(t *testing.T) {
	assert.Empty(t, Lower())
	assert.Empty(t, List{}.Lower())
	assert.Empty(t, List{List{}, List{List{}}}.Lower())
}

func TestEncode(t *testing.T) {
	args := Lower(U8(7), U64(1), Bool(true), Bytes{0xaa}, U16(0x0102))
	want := []byte{
		5,    // vector length
		0, 7, // U8
		1, 1, 0, 0, 0, 0, 0, 0, 0, // U64
		5, 1, // Bool
		4, 1, 0xaa, // U8Vector
		6, 0x02, 0x01, // U16
	}
	assert.Equal(t, want, Encode(args))

	u256 := Encode(U256{1, 0, 0, 1 << 63}.Lower())
	require.Len(t, u256, 1+1+32)
	assert.Equal(t, byte(8), u256[1])
	assert.Equal(t, byte(1), u256[2])
	assert.Equal(t, byte(0x80), u256[len(u256)-1])

	u128 := Encode(U128{Lo: 0, Hi: 1}.Lower())
	assert.Equal(t, append([]byte{1, 2}, append(make([]byte, 8), 1, 0, 0, 0, 0, 0, 0, 0)...), u128)
}

func TestDecode(t *testing.T) {
	sig, err := ParseSignature([]string{"u8", "u16", "bool", "vector<u8>", "u32", "vector<u8>"})
	require.NoError(t, err)

	data := []byte{
		0x01,       // u8
		0x02, 0x01, // u16
		0x03,             // bool, low bit set
		0x02, 0xde, 0xad, // vector with explicit length
		0x04, 0x00, 0x00, 0x00, // u32
		0xbe, 0xef, // trailing vector
	}
	want := List{U8(1), U16(0x0102), Bool(true), Bytes{0xde, 0xad}, U32(4), Bytes{0xbe, 0xef}}
	assert.Empty(t, cmp.Diff(want, Decode(sig, data)))
}

func TestDecodeShortInput(t *testing.T) {
	sig := []Kind{KindU64, KindU8Vector, KindU256, KindU8Vector}
	got := Decode(sig, []byte{0xff, 0xff})
	want := List{U64(0xffff), Bytes{}, U256{}, Bytes{}}
	assert.Empty(t, cmp.Diff(want, got))

	assert.Empty(t, Decode(nil, []byte{1, 2, 3}))
	assert.Empty(t, cmp.Diff(List{Bytes{1, 2, 3}}, Decode(DefaultSignature(), []byte{1, 2, 3})))
}

func TestDecodeVectorLengthBoundedByInput(t *testing.T) {
	got := Decode([]Kind{KindU8Vector, KindU8Vector}, []byte{200, 1, 2})
	assert.Empty(t, cmp.Diff(List{Bytes{1, 2}, Bytes{}}, got))
}

func TestParseKind(t *testing.T) {
	for k := KindU8; k <= KindU8Vector; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	k, err := ParseKind(" Vector<U8> ")
	require.NoError(t, err)
	assert.Equal(t, KindU8Vector, k)

	_, err = ParseKind("address")
	assert.Error(t, err)
	_, err = ParseSignature([]string{"u8", "signer"})
	assert.Error(t, err)
}

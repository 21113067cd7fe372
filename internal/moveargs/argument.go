package moveargs

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// Uint256 is an unsigned 256-bit integer stored as little-endian 64-bit limbs.
type Uint256 [4]uint64

func Uint256FromBig(v *big.Int) Uint256 {
	var out Uint256
	words := new(big.Int).Set(v)
	mask := new(big.Int).SetUint64(^uint64(0))
	for i := range out {
		out[i] = new(big.Int).And(words, mask).Uint64()
		words.Rsh(words, 64)
	}
	return out
}

func (u Uint256) Big() *big.Int {
	v := new(big.Int)
	for i := len(u) - 1; i >= 0; i-- {
		v.Lsh(v, 64)
		v.Or(v, new(big.Int).SetUint64(u[i]))
	}
	return v
}

func (u Uint256) String() string {
	return u.Big().String()
}

// TransactionArgument is one tagged value passed to a Move script entry point.
// Integer kinds keep their value in Num, zero-extended.
type TransactionArgument struct {
	Kind  Kind
	Num   Uint256
	Bool  bool
	Bytes []byte
}

func uintArg(kind Kind, v uint64) TransactionArgument {
	return TransactionArgument{Kind: kind, Num: Uint256{v}}
}

// String prints the argument as a Move literal, e.g. 7u8, true or x"0a0b".
func (a TransactionArgument) String() string {
	switch a.Kind {
	case KindBool:
		return fmt.Sprintf("%t", a.Bool)
	case KindU8Vector:
		return fmt.Sprintf("x%q", hex.EncodeToString(a.Bytes))
	case KindU8, KindU16, KindU32, KindU64, KindU128, KindU256:
		return a.Num.String() + a.Kind.String()
	}
	return a.Kind.String()
}

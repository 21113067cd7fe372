package moveargs

import "math/big"

// Arg is a value that can be passed to a Move script. The set of
// implementations is closed; List nests other arguments.
type Arg interface {
	// Lower returns the transaction arguments for this value, in order.
	Lower() []TransactionArgument
	arg()
}

type (
	U8    uint8
	U16   uint16
	U32   uint32
	U64   uint64
	Bool  bool
	Bytes []byte
	List  []Arg
)

// U128 is an unsigned 128-bit integer.
type U128 struct {
	Lo, Hi uint64
}

// U256 is an unsigned 256-bit integer.
type U256 Uint256

func U128FromBig(v *big.Int) U128 {
	u := Uint256FromBig(v)
	return U128{Lo: u[0], Hi: u[1]}
}

func (v U128) Big() *big.Int {
	return Uint256{v.Lo, v.Hi}.Big()
}

func (v U8) Lower() []TransactionArgument  { return []TransactionArgument{uintArg(KindU8, uint64(v))} }
func (v U16) Lower() []TransactionArgument { return []TransactionArgument{uintArg(KindU16, uint64(v))} }
func (v U32) Lower() []TransactionArgument { return []TransactionArgument{uintArg(KindU32, uint64(v))} }
func (v U64) Lower() []TransactionArgument { return []TransactionArgument{uintArg(KindU64, uint64(v))} }

func (v U128) Lower() []TransactionArgument {
	return []TransactionArgument{{Kind: KindU128, Num: Uint256{v.Lo, v.Hi}}}
}

func (v U256) Lower() []TransactionArgument {
	return []TransactionArgument{{Kind: KindU256, Num: Uint256(v)}}
}

func (v Bool) Lower() []TransactionArgument {
	return []TransactionArgument{{Kind: KindBool, Bool: bool(v)}}
}

// Lower hands the bytes through verbatim as a single vector<u8>.
func (v Bytes) Lower() []TransactionArgument {
	return []TransactionArgument{{Kind: KindU8Vector, Bytes: []byte(v)}}
}

// Lower concatenates the lowering of every element in order.
func (l List) Lower() []TransactionArgument {
	out := make([]TransactionArgument, 0, len(l))
	for _, a := range l {
		out = append(out, a.Lower()...)
	}
	return out
}

func (U8) arg()    {}
func (U16) arg()   {}
func (U32) arg()   {}
func (U64) arg()   {}
func (U128) arg()  {}
func (U256) arg()  {}
func (Bool) arg()  {}
func (Bytes) arg() {}
func (List) arg()  {}

// Lower is shorthand for List(args).Lower().
func Lower(args ...Arg) []TransactionArgument {
	return List(args).Lower()
}

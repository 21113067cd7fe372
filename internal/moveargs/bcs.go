package moveargs

import "encoding/binary"

// Variant indices of the Move TransactionArgument enum. Address (3) is never produced.
var bcsVariant = map[Kind]uint64{
	KindU8:       0,
	KindU64:      1,
	KindU128:     2,
	KindU8Vector: 4,
	KindBool:     5,
	KindU16:      6,
	KindU32:      7,
	KindU256:     8,
}

// AppendBCS appends the BCS encoding of a to buf.
func (a TransactionArgument) AppendBCS(buf []byte) []byte {
	buf = binary.AppendUvarint(buf, bcsVariant[a.Kind])
	switch a.Kind {
	case KindBool:
		if a.Bool {
			return append(buf, 1)
		}
		return append(buf, 0)
	case KindU8Vector:
		buf = binary.AppendUvarint(buf, uint64(len(a.Bytes)))
		return append(buf, a.Bytes...)
	default:
		return appendLimbs(buf, a.Num, a.Kind.width())
	}
}

// appendLimbs writes the low width bytes of u in little-endian order.
func appendLimbs(buf []byte, u Uint256, width int) []byte {
	var full [32]byte
	for i, limb := range u {
		binary.LittleEndian.PutUint64(full[i*8:], limb)
	}
	return append(buf, full[:width]...)
}

// Encode returns the BCS encoding of a vector<TransactionArgument>.
func Encode(args []TransactionArgument) []byte {
	buf := binary.AppendUvarint(nil, uint64(len(args)))
	for _, a := range args {
		buf = a.AppendBCS(buf)
	}
	return buf
}

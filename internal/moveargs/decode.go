package moveargs

import "encoding/binary"

// Decode carves raw fuzzer input into arguments following sig. It never fails:
// integers are read little-endian, a bool is the low bit of one byte, and a
// vector<u8> is a length byte followed by up to that many bytes. The last
// vector<u8> of a signature takes the rest of the input. Exhausted input reads
// as zeroes.
func Decode(sig []Kind, data []byte) List {
	r := &reader{data: data}
	out := make(List, 0, len(sig))
	for i, kind := range sig {
		switch kind {
		case KindU8:
			out = append(out, U8(r.next(1)[0]))
		case KindU16:
			out = append(out, U16(binary.LittleEndian.Uint16(r.next(2))))
		case KindU32:
			out = append(out, U32(binary.LittleEndian.Uint32(r.next(4))))
		case KindU64:
			out = append(out, U64(binary.LittleEndian.Uint64(r.next(8))))
		case KindU128:
			b := r.next(16)
			out = append(out, U128{
				Lo: binary.LittleEndian.Uint64(b[0:]),
				Hi: binary.LittleEndian.Uint64(b[8:]),
			})
		case KindU256:
			b := r.next(32)
			var v U256
			for j := range v {
				v[j] = binary.LittleEndian.Uint64(b[j*8:])
			}
			out = append(out, v)
		case KindBool:
			out = append(out, Bool(r.next(1)[0]&1 == 1))
		case KindU8Vector:
			if lastVector(sig[i+1:]) {
				out = append(out, Bytes(r.rest()))
				continue
			}
			n := int(r.next(1)[0])
			out = append(out, Bytes(r.upTo(n)))
		}
	}
	return out
}

func lastVector(remaining []Kind) bool {
	for _, k := range remaining {
		if k == KindU8Vector {
			return false
		}
	}
	return true
}

type reader struct {
	data []byte
	pos  int
}

// next returns exactly n bytes, zero padded past the end of input.
func (r *reader) next(n int) []byte {
	out := make([]byte, n)
	r.pos += copy(out, r.data[min(r.pos, len(r.data)):])
	return out
}

func (r *reader) upTo(n int) []byte {
	start := min(r.pos, len(r.data))
	end := min(start+n, len(r.data))
	r.pos = end
	return append([]byte{}, r.data[start:end]...)
}

func (r *reader) rest() []byte {
	return r.upTo(len(r.data))
}

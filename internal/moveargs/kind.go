package moveargs

import (
	"fmt"
	"strings"
)

// Kind is the wire tag of a TransactionArgument.
type Kind int

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindU64
	KindU128
	KindU256
	KindBool
	KindU8Vector
)

var kindNames = [...]string{
	KindU8:       "u8",
	KindU16:      "u16",
	KindU32:      "u32",
	KindU64:      "u64",
	KindU128:     "u128",
	KindU256:     "u256",
	KindBool:     "bool",
	KindU8Vector: "vector<u8>",
}

func (k Kind) String() string {
	if k < KindU8 || k > KindU8Vector {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// width is the encoded size of fixed-width kinds, 0 for vectors.
func (k Kind) width() int {
	switch k {
	case KindU8, KindBool:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindU64:
		return 8
	case KindU128:
		return 16
	case KindU256:
		return 32
	}
	return 0
}

func ParseKind(text string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(text)), " ", "")
	for i, name := range kindNames {
		if normalized == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown argument kind %q", text)
}

// ParseSignature parses a list of kind names such as ["u64", "vector<u8>"].
func ParseSignature(names []string) ([]Kind, error) {
	sig := make([]Kind, 0, len(names))
	for _, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		sig = append(sig, k)
	}
	return sig, nil
}

// DefaultSignature passes the whole fuzzer input as one byte vector.
func DefaultSignature() []Kind {
	return []Kind{KindU8Vector}
}

package options

import (
	"fmt"
	"strings"
)

// Sanitizer selects the compiler instrumentation linked into a fuzz target.
// The zero value is Address, which is also the default on the command line.
type Sanitizer int

const (
	Address Sanitizer = iota
	Leak
	Memory
	Thread
	None
)

var sanitizerNames = [...]string{
	Address: "address",
	Leak:    "leak",
	Memory:  "memory",
	Thread:  "thread",
	None:    "none",
}

// Sanitizers lists every sanitizer in declaration order.
func Sanitizers() []Sanitizer {
	return []Sanitizer{Address, Leak, Memory, Thread, None}
}

func (s Sanitizer) String() string {
	if s < Address || s > None {
		return fmt.Sprintf("Sanitizer(%d)", int(s))
	}
	return sanitizerNames[s]
}

// ParseSanitizer is the inverse of String.
func ParseSanitizer(text string) (Sanitizer, error) {
	for i, name := range sanitizerNames {
		if text == name {
			return Sanitizer(i), nil
		}
	}
	return Address, fmt.Errorf("unknown sanitizer %q (expected one of %s)", text, strings.Join(sanitizerNames[:], ", "))
}

func (s *Sanitizer) UnmarshalFlag(value string) error {
	parsed, err := ParseSanitizer(value)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Sanitizer) MarshalFlag() (string, error) {
	return s.String(), nil
}

// BuildMode selects the cargo subcommand used to produce a target.
type BuildMode int

const (
	Build BuildMode = iota
	Check
)

func (m BuildMode) String() string {
	switch m {
	case Build:
		return "build"
	case Check:
		return "check"
	default:
		return fmt.Sprintf("BuildMode(%d)", int(m))
	}
}

func ParseBuildMode(text string) (BuildMode, error) {
	switch text {
	case "build":
		return Build, nil
	case "check":
		return Check, nil
	}
	return Build, fmt.Errorf("unknown build mode %q", text)
}

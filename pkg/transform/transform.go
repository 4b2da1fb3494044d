package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"imgrev-go/pkg/bitops"
)

// ErrInvalidTransformation is returned for malformed or out-of-range transformations.
var ErrInvalidTransformation = errors.New("transform: invalid transformation")

// MaxBits is the largest rotation amount in the catalog.
const MaxBits = 8

type Kind uint8

const (
	Xor Kind = iota
	RotateRight
	RotateLeft
)

func (k Kind) String() string {
	switch k {
	case Xor:
		return "xor"
	case RotateRight:
		return "ror"
	case RotateLeft:
		return "rol"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Transformation is one reversible step. Bits is ignored for Xor.
type Transformation struct {
	Kind Kind
	Bits int
}

func NewXor() Transformation                 { return Transformation{Kind: Xor} }
func NewRotateRight(bits int) Transformation { return Transformation{Kind: RotateRight, Bits: bits} }
func NewRotateLeft(bits int) Transformation  { return Transformation{Kind: RotateLeft, Bits: bits} }

// String renders the short form used in configs and logs: xor, ror3, rol5.
func (t Transformation) String() string {
	if t.Kind == Xor {
		return "xor"
	}
	return t.Kind.String() + strconv.Itoa(t.Bits)
}

func (t Transformation) Validate() error {
	switch t.Kind {
	case Xor:
		return nil
	case RotateRight, RotateLeft:
		if t.Bits < 1 || t.Bits > MaxBits {
			return fmt.Errorf("%w: %s rotation by %d bits, want 1..%d", ErrInvalidTransformation, t.Kind, t.Bits, MaxBits)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown kind %d", ErrInvalidTransformation, t.Kind)
}

// Inverse returns the transformation that undoes t.
func (t Transformation) Inverse() Transformation {
	switch t.Kind {
	case RotateRight:
		return NewRotateLeft(t.Bits)
	case RotateLeft:
		return NewRotateRight(t.Bits)
	}
	return t
}

// NeedsKey reports whether applying t requires the key image.
func (t Transformation) NeedsKey() bool { return t.Kind == Xor }

// ApplyInto writes t(src) into dst. dst may alias src. key is only read for Xor.
func (t Transformation) ApplyInto(dst, src, key []byte) error {
	switch t.Kind {
	case Xor:
		return bitops.XorInto(dst, src, key)
	case RotateRight:
		bitops.RotateInto(dst, src, t.Bits, bitops.Right)
	case RotateLeft:
		bitops.RotateInto(dst, src, t.Bits, bitops.Left)
	default:
		return t.Validate()
	}
	return nil
}

// Parse reads the short form produced by String.
func Parse(s string) (Transformation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "xor" {
		return NewXor(), nil
	}
	if len(s) < 4 {
		return Transformation{}, fmt.Errorf("%w: %q", ErrInvalidTransformation, s)
	}
	bits, err := strconv.Atoi(s[3:])
	if err != nil {
		return Transformation{}, fmt.Errorf("%w: %q: %v", ErrInvalidTransformation, s, err)
	}
	var t Transformation
	switch s[:3] {
	case "ror":
		t = NewRotateRight(bits)
	case "rol":
		t = NewRotateLeft(bits)
	default:
		return Transformation{}, fmt.Errorf("%w: %q", ErrInvalidTransformation, s)
	}
	return t, t.Validate()
}

// Sequence is an ordered list of transformations in the order they were applied.
type Sequence []Transformation

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// NeedsKey reports whether any step is an Xor.
func (s Sequence) NeedsKey() bool {
	for _, t := range s {
		if t.NeedsKey() {
			return true
		}
	}
	return false
}

func (s Sequence) Validate() error {
	for i, t := range s {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// ParseSequence reads a comma separated list such as "xor,ror3,xor".
func ParseSequence(s string) (Sequence, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidTransformation)
	}
	fields := strings.Split(s, ",")
	seq := make(Sequence, 0, len(fields))
	for i, f := range fields {
		t, err := Parse(f)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		seq = append(seq, t)
	}
	return seq, nil
}

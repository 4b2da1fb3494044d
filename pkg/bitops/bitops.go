// Package bitops holds the byte-level primitives the reconstruction engine is built on.
// Every buffer operation returns a freshly allocated slice and leaves its inputs untouched.
package bitops

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch is returned when two buffers that must have equal length do not.
var ErrSizeMismatch = errors.New("bitops: buffer size mismatch")

// Direction selects the rotation applied by ApplyRotation.
type Direction uint8

const (
	Right Direction = iota
	Left
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// Opposite returns the direction that undoes d.
func (d Direction) Opposite() Direction {
	if d == Left {
		return Right
	}
	return Left
}

// XorCombine returns a new buffer holding a[i] ^ b[i].
func XorCombine(a, b []byte) ([]byte, error) {
	out := make([]byte, len(a))
	if err := XorInto(out, a, b); err != nil {
		return nil, err
	}
	return out, nil
}

// XorInto writes a[i] ^ b[i] into dst. dst may alias a.
func XorInto(dst, a, b []byte) error {
	if len(a) != len(b) || len(dst) != len(a) {
		return fmt.Errorf("%w: xor of %d and %d bytes into %d", ErrSizeMismatch, len(a), len(b), len(dst))
	}
	for i := range a {
		dst[i] = a[i] ^ b[i]
	}
	return nil
}

// RotateRight rotates v right by bits mod 8 positions.
func RotateRight(v byte, bits int) byte {
	n := uint(normalize(bits))
	return v>>n | v<<(8-n)
}

// RotateLeft rotates v left by bits mod 8 positions.
func RotateLeft(v byte, bits int) byte {
	n := uint(normalize(bits))
	return v<<n | v>>(8-n)
}

// normalize maps any bit count, negative included, onto 0..7.
func normalize(bits int) int {
	n := bits % 8
	if n < 0 {
		n += 8
	}
	return n
}

// ApplyRotation rotates every byte of buf and returns the result as a new buffer.
func ApplyRotation(buf []byte, bits int, dir Direction) []byte {
	out := make([]byte, len(buf))
	RotateInto(out, buf, bits, dir)
	return out
}

// RotateInto rotates every byte of src into dst. dst may alias src and must be at least len(src).
func RotateInto(dst, src []byte, bits int, dir Direction) {
	var table [256]byte
	for v := 0; v < 256; v++ {
		if dir == Left {
			table[v] = RotateLeft(byte(v), bits)
		} else {
			table[v] = RotateRight(byte(v), bits)
		}
	}
	for i, v := range src {
		dst[i] = table[v]
	}
}

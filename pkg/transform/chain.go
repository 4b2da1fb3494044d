// Package transform models the reversible per-byte transformations applied to an image
// and the chain that applies them forward or undoes them in reverse order.
package transform

import (
	"fmt"

	"imgrev-go/pkg/bitops"
)

// Chain binds a sequence to the key image used by its xor steps.
// Forward applies steps 0..N, Reverse undoes them N..0.
type Chain struct {
	steps Sequence
	key   []byte
}

// NewChain creates a chain over a copy of seq. key may be nil if seq has no xor step.
func NewChain(seq Sequence, key []byte) (*Chain, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if seq.NeedsKey() && key == nil {
		return nil, fmt.Errorf("%w: sequence %s needs a key image", bitops.ErrSizeMismatch, seq)
	}
	s := make(Sequence, len(seq))
	copy(s, seq)
	return &Chain{steps: s, key: key}, nil
}

func (c *Chain) Sequence() Sequence {
	s := make(Sequence, len(c.steps))
	copy(s, c.steps)
	return s
}

// Forward applies the chain in order and returns a new buffer.
func (c *Chain) Forward(src []byte) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	for i, t := range c.steps {
		if err := t.ApplyInto(out, out, c.key); err != nil {
			return nil, fmt.Errorf("forward: step %d (%s) failed: %w", i, t, err)
		}
	}
	return out, nil
}

// Reverse undoes the chain and returns a new buffer. final is not modified.
func (c *Chain) Reverse(final []byte) ([]byte, error) {
	out := make([]byte, len(final))
	if err := c.ReverseInto(out, final); err != nil {
		return nil, err
	}
	return out, nil
}

// ReverseInto undoes the chain writing the result into dst, which must have len(final) bytes.
func (c *Chain) ReverseInto(dst, final []byte) error {
	return InverseInto(dst, final, c.key, c.steps)
}

// InverseInto undoes seq on final writing into dst. It lets search workers reuse one
// candidate buffer across trials. seq is assumed valid.
func InverseInto(dst, final, key []byte, seq Sequence) error {
	if len(dst) != len(final) {
		return fmt.Errorf("reverse: %w: dst %d bytes, final %d bytes", bitops.ErrSizeMismatch, len(dst), len(final))
	}
	copy(dst, final)
	for i := len(seq) - 1; i >= 0; i-- {
		inv := seq[i].Inverse()
		if err := inv.ApplyInto(dst, dst, key); err != nil {
			return fmt.Errorf("reverse: step %d (%s) failed: %w", i, seq[i], err)
		}
	}
	return nil
}

// ApplyInverse undoes seq on final using key for xor steps.
func ApplyInverse(final, key []byte, seq Sequence) ([]byte, error) {
	c, err := NewChain(seq, key)
	if err != nil {
		return nil, err
	}
	return c.Reverse(final)
}

// ApplyForward applies seq to src using key for xor steps.
func ApplyForward(src, key []byte, seq Sequence) ([]byte, error) {
	c, err := NewChain(seq, key)
	if err != nil {
		return nil, err
	}
	return c.Forward(src)
}

package search

import (
	"fmt"
	"iter"
	"math"

	"imgrev-go/pkg/transform"
)

// Enumerator walks every ordered sequence of a fixed depth drawn from a catalog, with
// repetition. Index 0 is all-first-candidate; position 0 is the most significant digit,
// so the order matches nested loops with position 0 outermost.
type Enumerator struct {
	catalog []transform.Transformation
	depth   int
	total   int
}

func NewEnumerator(catalog []transform.Transformation, depth int) (*Enumerator, error) {
	if len(catalog) == 0 {
		return nil, fmt.Errorf("%w: empty catalog", ErrInvalidInput)
	}
	if depth < 1 {
		return nil, fmt.Errorf("%w: depth %d", ErrInvalidInput, depth)
	}
	total := 1
	for i := 0; i < depth; i++ {
		if total > math.MaxInt32/len(catalog) {
			return nil, fmt.Errorf("%w: %d^%d sequences is too many to search", ErrInvalidInput, len(catalog), depth)
		}
		total *= len(catalog)
	}
	c := make([]transform.Transformation, len(catalog))
	copy(c, catalog)
	return &Enumerator{catalog: c, depth: depth, total: total}, nil
}

// Len is the number of sequences, len(catalog)^depth.
func (e *Enumerator) Len() int { return e.total }

func (e *Enumerator) Depth() int { return e.depth }

// At decodes index i into dst, reusing its storage when it is large enough.
func (e *Enumerator) At(i int, dst transform.Sequence) transform.Sequence {
	if cap(dst) < e.depth {
		dst = make(transform.Sequence, e.depth)
	}
	dst = dst[:e.depth]
	radix := len(e.catalog)
	for pos := e.depth - 1; pos >= 0; pos-- {
		dst[pos] = e.catalog[i%radix]
		i /= radix
	}
	return dst
}

// All yields every index with its sequence in order. The yielded sequence is reused
// between iterations; copy it to keep it.
func (e *Enumerator) All() iter.Seq2[int, transform.Sequence] {
	return func(yield func(int, transform.Sequence) bool) {
		digits := make([]int, e.depth)
		seq := make(transform.Sequence, e.depth)
		for pos := range seq {
			seq[pos] = e.catalog[0]
		}
		for i := 0; i < e.total; i++ {
			if !yield(i, seq) {
				return
			}
			// odometer increment, last position fastest
			for pos := e.depth - 1; pos >= 0; pos-- {
				digits[pos]++
				if digits[pos] < len(e.catalog) {
					seq[pos] = e.catalog[digits[pos]]
					break
				}
				digits[pos] = 0
				seq[pos] = e.catalog[0]
			}
		}
	}
}

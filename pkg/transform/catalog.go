package transform

import "iter"

// CatalogSize is the number of single-step candidates: one xor plus eight rotations each way.
const CatalogSize = 1 + 2*MaxBits

// Candidates yields the catalog in its fixed order: xor, ror1..ror8, rol1..rol8.
// The sequence is restartable; each range over it starts from the beginning.
func Candidates() iter.Seq[Transformation] {
	return func(yield func(Transformation) bool) {
		if !yield(NewXor()) {
			return
		}
		for b := 1; b <= MaxBits; b++ {
			if !yield(NewRotateRight(b)) {
				return
			}
		}
		for b := 1; b <= MaxBits; b++ {
			if !yield(NewRotateLeft(b)) {
				return
			}
		}
	}
}

// Catalog returns a fresh slice holding Candidates in order.
func Catalog() []Transformation {
	out := make([]Transformation, 0, CatalogSize)
	for t := range Candidates() {
		out = append(out, t)
	}
	return out
}

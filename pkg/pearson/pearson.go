// Package pearson implements Pearson hashing ("Fast Hashing of Variable-Length Data",
// Pearson 1990). Hash64 runs eight lanes with different initial values and concatenates
// them. It is used to fingerprint inputs, not for anything security related.
package pearson

// table is a permutation of 0..255 built by a seeded Fisher-Yates shuffle.
var table [256]uint8

func init() {
	for i := range table {
		table[i] = uint8(i)
	}
	state := uint32(0x9E3779B9)
	for i := len(table) - 1; i > 0; i-- {
		// xorshift32
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		j := int(state % uint32(i+1))
		table[i], table[j] = table[j], table[i]
	}
}

// Hash computes the 8-bit Pearson hash of data. Empty data hashes to 0.
func Hash(data []byte) uint8 {
	if len(data) == 0 {
		return 0
	}
	h := table[data[0]]
	for _, b := range data[1:] {
		h = table[h^b]
	}
	return h
}

// Digest is a streaming 64-bit Pearson hash.
type Digest struct {
	lanes [8]uint8
}

func New64() *Digest {
	d := &Digest{}
	d.Reset()
	return d
}

func (d *Digest) Reset() {
	for i := range d.lanes {
		d.lanes[i] = uint8(i)
	}
}

// Write never fails.
func (d *Digest) Write(p []byte) (int, error) {
	for _, b := range p {
		for i := range d.lanes {
			d.lanes[i] = table[d.lanes[i]^b]
		}
	}
	return len(p), nil
}

func (d *Digest) Sum64() uint64 {
	var h uint64
	for _, l := range d.lanes {
		h = h<<8 | uint64(l)
	}
	return h
}

// Hash64 computes the 64-bit hash of data in one call.
func Hash64(data []byte) uint64 {
	d := New64()
	d.Write(data)
	return d.Sum64()
}

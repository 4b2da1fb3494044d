// Package mask checks candidate images against watermark checksum records.
//
// A record asserts that for every index k the byte at (seed+k) mod len(image), added
// with 8-bit wraparound to watermark[k mod len(watermark)], equals checksums[k].
package mask

// Record is one verification record: a pseudo-random offset and the checksums expected at it.
type Record struct {
	Seed      int
	Checksums []uint8
}

// Verify reports whether candidate reproduces every checksum. It stops at the first mismatch.
// An empty candidate or a negative seed never passes; otherwise an empty checksum list does.
func Verify(candidate, watermark []byte, seed int, checksums []uint8) bool {
	if len(candidate) == 0 || seed < 0 {
		return false
	}
	if len(checksums) == 0 {
		return true
	}
	if len(watermark) == 0 {
		return false
	}
	n := len(candidate)
	for k, want := range checksums {
		pos := (seed + k) % n
		if candidate[pos]+watermark[k%len(watermark)] != want {
			return false
		}
	}
	return true
}

// VerifyRecord is Verify applied to r.
func VerifyRecord(candidate, watermark []byte, r Record) bool {
	return Verify(candidate, watermark, r.Seed, r.Checksums)
}

// VerifyAll reports whether candidate passes every record, checked in order.
func VerifyAll(candidate, watermark []byte, records []Record) bool {
	for _, r := range records {
		if !VerifyRecord(candidate, watermark, r) {
			return false
		}
	}
	return true
}

// Compute produces the record an image yields for seed, one checksum per watermark byte.
// seed must be non-negative.
func Compute(image, watermark []byte, seed int) Record {
	r := Record{Seed: seed, Checksums: make([]uint8, len(watermark))}
	if len(image) == 0 {
		return r
	}
	for k := range watermark {
		r.Checksums[k] = image[(seed+k)%len(image)] + watermark[k]
	}
	return r
}

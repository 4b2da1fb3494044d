package transform

import (
	"bytes"
	"errors"
	"testing"

	"imgrev-go/pkg/bitops"
)

func TestCatalogOrder(t *testing.T) {
	cat := Catalog()
	if len(cat) != CatalogSize || CatalogSize != 17 {
		t.Fatalf("Expected 17 candidates, got %d (CatalogSize %d)", len(cat), CatalogSize)
	}
	if cat[0] != NewXor() {
		t.Errorf("First candidate should be xor, got %s", cat[0])
	}
	for b := 1; b <= 8; b++ {
		if cat[b] != NewRotateRight(b) {
			t.Errorf("Candidate %d: got %s, want ror%d", b, cat[b], b)
		}
		if cat[8+b] != NewRotateLeft(b) {
			t.Errorf("Candidate %d: got %s, want rol%d", 8+b, cat[8+b], b)
		}
	}
	seen := make(map[Transformation]bool)
	for _, c := range cat {
		if seen[c] {
			t.Errorf("Duplicate candidate %s", c)
		}
		seen[c] = true
	}
}

func TestCandidatesRestartable(t *testing.T) {
	first := Catalog()
	second := Catalog()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Enumeration differs at %d: %s vs %s", i, first[i], second[i])
		}
	}
	n := 0
	for range Candidates() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("Early break did not stop enumeration cleanly")
	}
}

func TestInverseOfRotations(t *testing.T) {
	if got := NewRotateRight(3).Inverse(); got != NewRotateLeft(3) {
		t.Errorf("Inverse of ror3 = %s", got)
	}
	if got := NewRotateLeft(5).Inverse(); got != NewRotateRight(5) {
		t.Errorf("Inverse of rol5 = %s", got)
	}
	if got := NewXor().Inverse(); got != NewXor() {
		t.Errorf("Inverse of xor = %s", got)
	}
}

func TestApplyInverseScenario(t *testing.T) {
	orig := []byte{10, 20, 30, 40, 50, 60}
	key := []byte{1, 1, 1, 1, 1, 1}
	seq := Sequence{NewXor(), NewRotateRight(3), NewXor()}

	final, err := ApplyForward(orig, key, seq)
	if err != nil {
		t.Fatalf("ApplyForward failed: %v", err)
	}
	if bytes.Equal(final, orig) {
		t.Fatalf("Forward transform left the image unchanged")
	}
	finalCopy := append([]byte(nil), final...)

	got, err := ApplyInverse(final, key, seq)
	if err != nil {
		t.Fatalf("ApplyInverse failed: %v", err)
	}
	if !bytes.Equal(got, orig) {
		t.Errorf("ApplyInverse = %v, want %v", got, orig)
	}
	if !bytes.Equal(final, finalCopy) {
		t.Errorf("ApplyInverse mutated its input")
	}

	// Manual composition of the inverse in reverse order.
	step, _ := bitops.XorCombine(final, key)
	step = bitops.ApplyRotation(step, 3, bitops.Left)
	step, _ = bitops.XorCombine(step, key)
	if !bytes.Equal(step, orig) {
		t.Errorf("Manual inverse = %v, want %v", step, orig)
	}
}

func TestEvenXorIsIdentity(t *testing.T) {
	x := []byte{7, 8, 9, 200, 201, 202}
	key := []byte{0xFF, 0x10, 0x00, 0x01, 0x80, 0x42}
	for _, seq := range []Sequence{
		{NewXor(), NewXor()},
		{NewXor(), NewXor(), NewXor(), NewXor()},
	} {
		got, err := ApplyInverse(x, key, seq)
		if err != nil {
			t.Fatalf("ApplyInverse(%s) failed: %v", seq, err)
		}
		if !bytes.Equal(got, x) {
			t.Errorf("ApplyInverse(%s) = %v, want %v", seq, got, x)
		}
	}
}

func TestApplyInverseSizeMismatch(t *testing.T) {
	_, err := ApplyInverse([]byte{1, 2, 3}, []byte{1, 2, 3, 4, 5, 6}, Sequence{NewRotateLeft(1), NewXor()})
	if !errors.Is(err, bitops.ErrSizeMismatch) {
		t.Fatalf("Expected ErrSizeMismatch, got %v", err)
	}
	// Rotation-only sequences never read the key.
	if _, err := ApplyInverse([]byte{1, 2, 3}, nil, Sequence{NewRotateLeft(1)}); err != nil {
		t.Errorf("Rotation-only inverse should not need a key: %v", err)
	}
}

func TestParseSequence(t *testing.T) {
	seq, err := ParseSequence("xor, ROR3,rol8")
	if err != nil {
		t.Fatalf("ParseSequence failed: %v", err)
	}
	want := Sequence{NewXor(), NewRotateRight(3), NewRotateLeft(8)}
	if seq.String() != want.String() {
		t.Errorf("Parsed %s, want %s", seq, want)
	}
	for _, bad := range []string{"", "ror0", "rol9", "nop", "rorx", "xor,,ror1"} {
		if _, err := ParseSequence(bad); !errors.Is(err, ErrInvalidTransformation) {
			t.Errorf("ParseSequence(%q) expected ErrInvalidTransformation, got %v", bad, err)
		}
	}
}

func TestChainReverseIntoReuse(t *testing.T) {
	key := []byte{3, 3, 3}
	c, err := NewChain(Sequence{NewRotateLeft(2), NewXor()}, key)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	src := []byte{1, 2, 3}
	final, err := c.Forward(src)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	dst := []byte{9, 9, 9}
	if err := c.ReverseInto(dst, final); err != nil {
		t.Fatalf("ReverseInto failed: %v", err)
	}
	if !bytes.Equal(dst, src) {
		t.Errorf("ReverseInto = %v, want %v", dst, src)
	}
	if err := c.ReverseInto(make([]byte, 2), final); !errors.Is(err, bitops.ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch for short dst, got %v", err)
	}
}

package search

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"imgrev-go/pkg/bitops"
	"imgrev-go/pkg/mask"
	"imgrev-go/pkg/transform"
)

// pattern fills n bytes with a fixed affine sequence so fixtures are reproducible.
func pattern(n, mul, add int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*mul + add)
	}
	return b
}

// challenge builds the final image and records for orig transformed by seq.
func challenge(t *testing.T, orig, key, watermark []byte, seq transform.Sequence, seeds ...int) Input {
	t.Helper()
	final, err := transform.ApplyForward(orig, key, seq)
	if err != nil {
		t.Fatalf("ApplyForward failed: %v", err)
	}
	in := Input{Final: final, Key: key, Watermark: watermark}
	for _, s := range seeds {
		in.Records = append(in.Records, mask.Compute(orig, watermark, s))
	}
	return in
}

func TestReconstructKnownSequenceScenario(t *testing.T) {
	orig := []byte{10, 20, 30, 40, 50, 60}
	key := []byte{1, 1, 1, 1, 1, 1}
	seq := transform.Sequence{transform.NewXor(), transform.NewRotateRight(3), transform.NewXor()}
	in := challenge(t, orig, key, []byte{5, 6, 7}, seq, 0)

	res, err := Reconstruct(context.Background(), in, Options{Workers: 1})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if res.State != StateFound {
		t.Fatalf("Expected state found, got %s", res.State)
	}
	if res.Index != -1 || res.HintTrials != 1 || res.Trials != 0 {
		t.Errorf("Expected the hint to match first: index %d, hint trials %d, trials %d", res.Index, res.HintTrials, res.Trials)
	}
	if !bytes.Equal(res.Image, orig) {
		t.Errorf("Reconstructed %v, want %v", res.Image, orig)
	}
	if res.Sequence.String() != "xor,ror3,xor" {
		t.Errorf("Unexpected sequence %s", res.Sequence)
	}
}

func TestReconstructExhaustiveScenario(t *testing.T) {
	orig := []byte{10, 20, 30, 40, 50, 60}
	key := []byte{1, 1, 1, 1, 1, 1}
	seq := transform.Sequence{transform.NewXor(), transform.NewRotateRight(3), transform.NewXor()}
	in := challenge(t, orig, key, []byte{5, 6, 7}, seq, 0)

	res, err := Reconstruct(context.Background(), in, Options{Workers: 1, Hints: []transform.Sequence{}})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if res.HintTrials != 0 {
		t.Errorf("Expected no hint trials, got %d", res.HintTrials)
	}
	// xor=0, ror3=3: index 0*289 + 3*17 + 0
	if res.Index != 51 || res.Trials != 52 {
		t.Errorf("Expected match at index 51 after 52 trials, got index %d after %d", res.Index, res.Trials)
	}
	if !bytes.Equal(res.Image, orig) {
		t.Errorf("Reconstructed %v, want %v", res.Image, orig)
	}
}

func TestReconstructFirstMatchWins(t *testing.T) {
	orig := pattern(30, 37, 11)
	key := pattern(30, 101, 7)
	watermark := pattern(9, 13, 200)
	// rol5 is the same permutation as ror3, which enumerates first.
	seq := transform.Sequence{transform.NewRotateLeft(5), transform.NewXor(), transform.NewRotateRight(2)}
	in := challenge(t, orig, key, watermark, seq, 4, 17)

	inline, err := Reconstruct(context.Background(), in, Options{Workers: 1, Hints: []transform.Sequence{}})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if got := inline.Sequence.String(); got != "ror3,xor,ror2" {
		t.Errorf("Expected the lowest equivalent sequence ror3,xor,ror2, got %s", got)
	}
	if inline.Index != 3*289+0*17+2 {
		t.Errorf("Unexpected index %d", inline.Index)
	}
	if !bytes.Equal(inline.Image, orig) {
		t.Errorf("Reconstructed image differs from the original")
	}

	for _, workers := range []int{2, 3, 8} {
		par, err := Reconstruct(context.Background(), in, Options{Workers: workers, Hints: []transform.Sequence{}})
		if err != nil {
			t.Fatalf("Reconstruct with %d workers failed: %v", workers, err)
		}
		if par.Index != inline.Index || par.Sequence.String() != inline.Sequence.String() {
			t.Errorf("%d workers found %s at %d, inline found %s at %d",
				workers, par.Sequence, par.Index, inline.Sequence, inline.Index)
		}
		if !bytes.Equal(par.Image, inline.Image) {
			t.Errorf("%d workers reconstructed a different image", workers)
		}
	}
}

func TestReconstructNotFound(t *testing.T) {
	final := pattern(12, 7, 3)
	key := pattern(12, 5, 1)
	watermark := []byte{0, 0, 0}
	// Two records with the same seed and different checksums cannot both hold.
	in := Input{
		Final:     final,
		Key:       key,
		Watermark: watermark,
		Records: []mask.Record{
			{Seed: 0, Checksums: []uint8{1, 1, 1}},
			{Seed: 0, Checksums: []uint8{2, 2, 2}},
		},
	}
	for _, workers := range []int{1, 4} {
		res, err := Reconstruct(context.Background(), in, Options{Workers: workers})
		if !errors.Is(err, ErrReconstructionNotFound) {
			t.Fatalf("Expected ErrReconstructionNotFound, got %v", err)
		}
		if res == nil || res.State != StateExhausted {
			t.Fatalf("Expected exhausted result, got %+v", res)
		}
		if res.Trials != 17*17*17 || res.HintTrials != 1 {
			t.Errorf("Expected 4913 trials and 1 hint trial, got %d and %d", res.Trials, res.HintTrials)
		}
		if res.Image != nil {
			t.Errorf("No image should be returned on exhaustion")
		}
	}
}

func TestTestSequenceDeterministic(t *testing.T) {
	orig := pattern(15, 3, 9)
	key := pattern(15, 71, 2)
	seq := transform.Sequence{transform.NewRotateLeft(1), transform.NewXor(), transform.NewRotateLeft(7)}
	in := challenge(t, orig, key, []byte{1, 2, 3}, seq, 2, 9)

	a, okA, errA := in.Test(seq)
	b, okB, errB := in.Test(seq)
	if errA != nil || errB != nil {
		t.Fatalf("Test failed: %v, %v", errA, errB)
	}
	if !okA || !okB || !bytes.Equal(a, b) {
		t.Errorf("TestSequence is not deterministic")
	}
	if !bytes.Equal(a, orig) {
		t.Errorf("TestSequence candidate = %v, want %v", a, orig)
	}

	wrong := transform.Sequence{transform.NewXor(), transform.NewXor(), transform.NewXor()}
	if img, ok, err := in.Test(wrong); err != nil || ok || img != nil {
		t.Errorf("Wrong sequence should be rejected without a candidate: %v %v %v", img, ok, err)
	}
}

func TestReconstructInvalidInput(t *testing.T) {
	good := Input{
		Final:     []byte{1, 2, 3},
		Key:       []byte{1, 2, 3},
		Watermark: []byte{1, 2, 3},
		Records:   []mask.Record{{Seed: 0, Checksums: []uint8{1, 2, 3}}},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("Valid input rejected: %v", err)
	}

	short := good
	short.Key = []byte{1, 2}
	if _, err := Reconstruct(context.Background(), short, Options{}); !errors.Is(err, bitops.ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch, got %v", err)
	}

	for name, in := range map[string]Input{
		"not rgb":    {Final: []byte{1, 2}, Key: []byte{1, 2}, Watermark: good.Watermark, Records: good.Records},
		"no records": {Final: good.Final, Key: good.Key, Watermark: good.Watermark},
		"checksums":  {Final: good.Final, Key: good.Key, Watermark: good.Watermark, Records: []mask.Record{{Checksums: []uint8{1}}}},
		"seed":       {Final: good.Final, Key: good.Key, Watermark: good.Watermark, Records: []mask.Record{{Seed: -1, Checksums: []uint8{1, 2, 3}}}},
	} {
		if _, err := Reconstruct(context.Background(), in, Options{}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestReconstructCancelled(t *testing.T) {
	in := Input{
		Final:     pattern(6, 1, 0),
		Key:       pattern(6, 1, 0),
		Watermark: []byte{0, 0, 0},
		Records:   []mask.Record{{Seed: 0, Checksums: []uint8{1, 1, 1}}, {Seed: 0, Checksums: []uint8{2, 2, 2}}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		if _, err := Reconstruct(ctx, in, Options{Workers: workers}); !errors.Is(err, context.Canceled) {
			t.Errorf("%d workers: expected context.Canceled, got %v", workers, err)
		}
	}
}

func TestEnumeratorOrder(t *testing.T) {
	enum, err := NewEnumerator(transform.Catalog(), 3)
	if err != nil {
		t.Fatalf("NewEnumerator failed: %v", err)
	}
	if enum.Len() != 4913 {
		t.Fatalf("Expected 4913 sequences, got %d", enum.Len())
	}
	n := 0
	var prev string
	seen := make(map[string]bool)
	for i, seq := range enum.All() {
		if i != n {
			t.Fatalf("Index %d out of order, expected %d", i, n)
		}
		at := enum.At(i, nil)
		if at.String() != seq.String() {
			t.Fatalf("At(%d) = %s, All yielded %s", i, at, seq)
		}
		s := seq.String()
		if seen[s] {
			t.Fatalf("Duplicate sequence %s", s)
		}
		seen[s] = true
		prev = s
		n++
	}
	if prev != "rol8,rol8,rol8" {
		t.Errorf("Last sequence = %s", prev)
	}
	if first := enum.At(0, nil).String(); first != "xor,xor,xor" {
		t.Errorf("First sequence = %s", first)
	}
	if s := enum.At(1, nil).String(); s != "xor,xor,ror1" {
		t.Errorf("Second sequence = %s, last position should vary fastest", s)
	}

	if _, err := NewEnumerator(transform.Catalog(), 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for depth 0, got %v", err)
	}
	two, err := NewEnumerator(transform.Catalog(), 2)
	if err != nil || two.Len() != 289 {
		t.Errorf("Depth 2 should have 289 sequences: %v", err)
	}
}

func TestReconstructRotationsNeedNoKey(t *testing.T) {
	var rotations []transform.Transformation
	for c := range transform.Candidates() {
		if !c.NeedsKey() {
			rotations = append(rotations, c)
		}
	}
	orig := pattern(6, 7, 3)
	wm := []byte{9, 8, 7}
	in := challenge(t, orig, nil, wm, transform.Sequence{transform.NewRotateRight(2), transform.NewRotateLeft(5), transform.NewRotateRight(1)}, 0, 3)

	opts := Options{Workers: 1, Hints: []transform.Sequence{}, Catalog: rotations}
	res, err := Reconstruct(context.Background(), in, opts)
	if err != nil {
		t.Fatalf("Reconstruct without a key failed: %v", err)
	}
	if res.State != StateFound || !bytes.Equal(res.Image, orig) {
		t.Errorf("Unexpected result %s %v", res.State, res.Image)
	}
	if res.Sequence.NeedsKey() {
		t.Errorf("Found %s, which needs a key", res.Sequence)
	}

	// An Xor hint brings the key requirement back.
	opts.Hints = []transform.Sequence{DefaultHint}
	if _, err := Reconstruct(context.Background(), in, opts); !errors.Is(err, bitops.ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch with an Xor hint, got %v", err)
	}
}

package solver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imgrev-go/pkg/codec"
	"imgrev-go/pkg/mask"
	"imgrev-go/pkg/record"
	"imgrev-go/pkg/search"
	"imgrev-go/pkg/store"
	"imgrev-go/pkg/transform"
)

func writeImage(t *testing.T, path string, w, h, mul, add int) *codec.Image {
	t.Helper()
	m := codec.New(w, h)
	for i := range m.Pix {
		m.Pix[i] = byte(i*mul + add)
	}
	if err := codec.Encode(m, path); err != nil {
		t.Fatalf("Encode %s failed: %v", path, err)
	}
	return m
}

// fixture writes a scrambled challenge and returns the job to solve it.
func fixture(t *testing.T, seq transform.Sequence) (Job, *codec.Image) {
	t.Helper()
	dir := t.TempDir()
	src := writeImage(t, filepath.Join(dir, "source.bmp"), 4, 2, 37, 11)
	writeImage(t, filepath.Join(dir, "key.bmp"), 4, 2, 101, 7)
	writeImage(t, filepath.Join(dir, "mask.png"), 2, 1, 13, 200)

	records, err := Scramble(ScrambleJob{
		Source:    filepath.Join(dir, "source.bmp"),
		Key:       filepath.Join(dir, "key.bmp"),
		Watermark: filepath.Join(dir, "mask.png"),
		Sequence:  seq,
		Seeds:     []int{3, 19},
		Output:    filepath.Join(dir, "final.bmp"),
		RecordDir: dir,
		RecordExt: ".zst",
	})
	if err != nil {
		t.Fatalf("Scramble failed: %v", err)
	}
	if len(records) != 2 || filepath.Base(records[1]) != "M2.txt.zst" {
		t.Fatalf("Unexpected record paths %v", records)
	}
	return Job{
		Final:     filepath.Join(dir, "final.bmp"),
		Key:       filepath.Join(dir, "key.bmp"),
		Watermark: filepath.Join(dir, "mask.png"),
		Records:   records,
		Output:    filepath.Join(dir, "recovered.png"),
	}, src
}

func TestSolveAndCache(t *testing.T) {
	seq := transform.Sequence{transform.NewRotateLeft(2), transform.NewXor(), transform.NewRotateRight(1)}
	job, src := fixture(t, seq)

	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer st.Close()
	svc := NewService(search.Options{Workers: 2}, st)

	out, err := svc.Solve(context.Background(), job)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if out.Cached {
		t.Errorf("First run should not be a cache hit")
	}
	if !bytes.Equal(out.Image.Pix, src.Pix) {
		t.Errorf("Reconstructed image differs from the source")
	}
	written, err := codec.Decode(job.Output)
	if err != nil {
		t.Fatalf("Decode output failed: %v", err)
	}
	if !bytes.Equal(written.Pix, src.Pix) {
		t.Errorf("Output file differs from the source")
	}
	if out.Run.Width != 4 || out.Run.Height != 2 || !out.Run.Found() {
		t.Errorf("Unexpected run %+v", out.Run)
	}

	again, err := svc.Solve(context.Background(), job)
	if err != nil {
		t.Fatalf("Second Solve failed: %v", err)
	}
	if !again.Cached || again.Result.Trials != 0 {
		t.Errorf("Second run should be served by the cached sequence: cached %v, trials %d", again.Cached, again.Result.Trials)
	}
	if again.Run.Sequence != out.Run.Sequence {
		t.Errorf("Cached sequence %s, want %s", again.Run.Sequence, out.Run.Sequence)
	}
	stats := svc.Stats()
	if stats.Jobs != 2 || stats.Found != 2 || stats.CacheHits != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestSolveNotFound(t *testing.T) {
	job, _ := fixture(t, transform.Sequence{transform.NewXor(), transform.NewRotateRight(3), transform.NewXor()})
	// Replace the second record with one that contradicts the first at the same seed.
	first, err := record.Load(job.Records[0])
	if err != nil {
		t.Fatal(err)
	}
	bad := mask.Record{Seed: first.Seed, Checksums: append([]uint8(nil), first.Checksums...)}
	bad.Checksums[0]++
	job.Records[1] = filepath.Join(filepath.Dir(job.Records[1]), "bad.txt")
	if err := record.Save(job.Records[1], bad); err != nil {
		t.Fatal(err)
	}

	svc := NewService(search.Options{Workers: 1}, nil)
	out, err := svc.Solve(context.Background(), job)
	if !errors.Is(err, search.ErrReconstructionNotFound) {
		t.Fatalf("Expected ErrReconstructionNotFound, got %v", err)
	}
	if out == nil || out.Run.State != search.StateExhausted.String() || out.Run.Trials != 4913 {
		t.Errorf("Unexpected outcome %+v", out)
	}
	if _, err := os.Stat(job.Output); !os.IsNotExist(err) {
		t.Errorf("No output should be written when nothing is found")
	}
	if s := svc.Stats(); s.NotFound != 1 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestSolveInputErrors(t *testing.T) {
	svc := NewService(search.Options{Workers: 1}, nil)
	if _, err := svc.Solve(context.Background(), Job{}); !errors.Is(err, search.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	job, _ := fixture(t, transform.Sequence{transform.NewXor()})
	job.Final = filepath.Join(t.TempDir(), "missing.bmp")
	if _, err := svc.Solve(context.Background(), job); !errors.Is(err, codec.ErrDecode) {
		t.Errorf("Expected codec.ErrDecode, got %v", err)
	}
	if s := svc.Stats(); s.Failed != 2 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

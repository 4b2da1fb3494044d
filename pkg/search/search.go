// Package search recovers the sequence of transformations that produced a final image.
//
// Reconstruct runs a small state machine: it first tries the known-sequence hints, then
// every sequence of the configured depth drawn from the transformation catalog, and stops
// at the first sequence whose inverse yields an image passing every verification record.
package search

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"imgrev-go/pkg/bitops"
	"imgrev-go/pkg/buffers"
	"imgrev-go/pkg/log"
	"imgrev-go/pkg/mask"
	"imgrev-go/pkg/transform"
)

// DefaultDepth is the length of the transformation chains searched.
const DefaultDepth = 3

// DefaultHint is tried before the exhaustive search. It is a likely chain, not a guarantee.
var DefaultHint = transform.Sequence{transform.NewXor(), transform.NewRotateRight(3), transform.NewXor()}

type State int

const (
	StateTryKnownSequence State = iota
	StateExhaustiveSearch
	StateFound
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateTryKnownSequence:
		return "try-known-sequence"
	case StateExhaustiveSearch:
		return "exhaustive-search"
	case StateFound:
		return "found"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Input is everything the engine reads. None of it is modified.
type Input struct {
	Final     []byte
	Key       []byte
	Watermark []byte
	Records   []mask.Record
}

// Validate checks the shape of the input before any trial runs, assuming Xor steps
// are possible so the key must match the final image.
func (in Input) Validate() error {
	return in.validate(true)
}

// validate checks the key only when needsKey is set.
func (in Input) validate(needsKey bool) error {
	if len(in.Final) == 0 || len(in.Final)%3 != 0 {
		return fmt.Errorf("%w: final image has %d bytes, want a non-zero multiple of 3", ErrInvalidInput, len(in.Final))
	}
	if needsKey && len(in.Key) != len(in.Final) {
		return fmt.Errorf("%w: key image has %d bytes, final image %d", bitops.ErrSizeMismatch, len(in.Key), len(in.Final))
	}
	if len(in.Watermark) == 0 || len(in.Watermark)%3 != 0 {
		return fmt.Errorf("%w: watermark has %d bytes, want a non-zero multiple of 3", ErrInvalidInput, len(in.Watermark))
	}
	if len(in.Records) == 0 {
		return fmt.Errorf("%w: no verification records", ErrInvalidInput)
	}
	for i, r := range in.Records {
		if r.Seed < 0 {
			return fmt.Errorf("%w: record %d has negative seed %d", ErrInvalidInput, i, r.Seed)
		}
		if len(r.Checksums) != len(in.Watermark) {
			return fmt.Errorf("%w: record %d has %d checksums, watermark has %d bytes", ErrInvalidInput, i, len(r.Checksums), len(in.Watermark))
		}
	}
	return nil
}

type Options struct {
	// Depth of the exhaustive search. Zero means DefaultDepth.
	Depth int
	// Workers running the exhaustive search. Zero means runtime.NumCPU(), one runs inline.
	Workers int
	// Hints are tried in order before the exhaustive search. Nil means DefaultHint.
	Hints []transform.Sequence
	// Catalog overrides transform.Catalog().
	Catalog []transform.Transformation
}

func (o Options) withDefaults() Options {
	if o.Depth == 0 {
		o.Depth = DefaultDepth
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Hints == nil {
		o.Hints = []transform.Sequence{DefaultHint}
	}
	if o.Catalog == nil {
		o.Catalog = transform.Catalog()
	}
	return o
}

// needsKey reports whether any hint or catalog entry can run an Xor step.
func (o Options) needsKey() bool {
	for _, h := range o.Hints {
		if h.NeedsKey() {
			return true
		}
	}
	for _, t := range o.Catalog {
		if t.NeedsKey() {
			return true
		}
	}
	return false
}

type Result struct {
	State    State
	Sequence transform.Sequence
	// Image is the reconstructed original, owned by the caller.
	Image []byte
	// Index is the enumeration index of Sequence, or -1 when a hint matched.
	Index      int
	HintTrials int
	Trials     int
	Elapsed    time.Duration
}

// TestSequence undoes seq and checks the single resulting candidate against every record.
// It returns the candidate and true only when all records pass.
func TestSequence(final, key, watermark []byte, records []mask.Record, seq transform.Sequence) ([]byte, bool, error) {
	candidate, err := transform.ApplyInverse(final, key, seq)
	if err != nil {
		return nil, false, err
	}
	if !mask.VerifyAll(candidate, watermark, records) {
		return nil, false, nil
	}
	return candidate, true, nil
}

// Test is TestSequence over in.
func (in Input) Test(seq transform.Sequence) ([]byte, bool, error) {
	return TestSequence(in.Final, in.Key, in.Watermark, in.Records, seq)
}

// testInto is TestSequence writing the candidate into buf.
func (in Input) testInto(buf []byte, seq transform.Sequence) (bool, error) {
	if err := transform.InverseInto(buf, in.Final, in.Key, seq); err != nil {
		return false, err
	}
	return mask.VerifyAll(buf, in.Watermark, in.Records), nil
}

// Reconstruct finds the first sequence whose inverse satisfies every record.
// When the space is exhausted it returns the Exhausted result together with
// ErrReconstructionNotFound.
func Reconstruct(ctx context.Context, in Input, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := in.validate(opts.needsKey()); err != nil {
		return nil, err
	}
	enum, err := NewEnumerator(opts.Catalog, opts.Depth)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{State: StateTryKnownSequence, Index: -1}

	for _, hint := range opts.Hints {
		if err := hint.Validate(); err != nil {
			return nil, fmt.Errorf("hint %s: %w", hint, err)
		}
		res.HintTrials++
		img, ok, err := in.Test(hint)
		if err != nil {
			return nil, fmt.Errorf("hint %s: %w", hint, err)
		}
		if ok {
			res.State = StateFound
			res.Sequence = append(transform.Sequence(nil), hint...)
			res.Image = img
			res.Elapsed = time.Since(start)
			log.Info().Str("sequence", hint.String()).Str("state", res.State.String()).
				Msg("search: known sequence matched")
			return res, nil
		}
		log.Debug().Str("sequence", hint.String()).Msg("search: known sequence rejected")
	}

	res.State = StateExhaustiveSearch
	log.Debug().Int("candidates", enum.Len()).Int("workers", opts.Workers).Int("depth", opts.Depth).
		Msg("search: starting exhaustive search")

	var found *match
	if opts.Workers == 1 {
		found, res.Trials, err = searchInline(ctx, in, enum)
	} else {
		found, res.Trials, err = searchParallel(ctx, in, enum, opts.Workers)
	}
	res.Elapsed = time.Since(start)
	if err != nil {
		return nil, err
	}
	if found == nil {
		res.State = StateExhausted
		log.Warn().Int("trials", res.Trials).Dur("elapsed", res.Elapsed).Msg("search: exhausted without a match")
		return res, ErrReconstructionNotFound
	}
	res.State = StateFound
	res.Index = found.index
	res.Sequence = found.seq
	res.Image = found.image
	log.Info().Str("sequence", found.seq.String()).Int("index", found.index).Int("trials", res.Trials).
		Dur("elapsed", res.Elapsed).Msg("search: sequence found")
	return res, nil
}

type match struct {
	index int
	seq   transform.Sequence
	image []byte
}

func searchInline(ctx context.Context, in Input, enum *Enumerator) (*match, int, error) {
	buf := make([]byte, len(in.Final))
	trials := 0
	for i, seq := range enum.All() {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, trials, err
			}
		}
		trials++
		ok, err := in.testInto(buf, seq)
		if err != nil {
			return nil, trials, fmt.Errorf("sequence %s: %w", seq, err)
		}
		if ok {
			return &match{index: i, seq: append(transform.Sequence(nil), seq...), image: buf}, trials, nil
		}
	}
	return nil, trials, nil
}

// searchParallel splits the index space by stride across workers. Workers skip indices
// above the lowest match seen so far, so the result is the lowest matching index, the
// same one searchInline returns.
func searchParallel(ctx context.Context, in Input, enum *Enumerator, workers int) (*match, int, error) {
	total := enum.Len()
	if workers > total {
		workers = total
	}
	pool := buffers.NewBufferPool(len(in.Final))

	var (
		best   atomic.Int64
		trials atomic.Int64
		mu     sync.Mutex
		found  *match
	)
	best.Store(int64(total))

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			buf := pool.Get()
			defer pool.Put(buf)
			var seq transform.Sequence
			for i := w; i < total; i += workers {
				if int64(i) >= best.Load() {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				seq = enum.At(i, seq)
				trials.Add(1)
				ok, err := in.testInto(buf, seq)
				if err != nil {
					return fmt.Errorf("sequence %s: %w", seq, err)
				}
				if !ok {
					continue
				}
				mu.Lock()
				if found == nil || i < found.index {
					found = &match{
						index: i,
						seq:   append(transform.Sequence(nil), seq...),
						image: append([]byte(nil), buf...),
					}
					best.Store(int64(i))
				}
				mu.Unlock()
				return nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, int(trials.Load()), err
	}
	return found, int(trials.Load()), nil
}

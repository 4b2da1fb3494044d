// Package solver runs reconstruction jobs end to end: it decodes the images, loads the
// verification records, consults the result store, runs the search and writes the outputs.
package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"imgrev-go/pkg/bitops"
	"imgrev-go/pkg/chaingraph"
	"imgrev-go/pkg/codec"
	"imgrev-go/pkg/log"
	"imgrev-go/pkg/record"
	"imgrev-go/pkg/search"
	"imgrev-go/pkg/store"
	"imgrev-go/pkg/transform"
)

// Job names the files of one reconstruction.
type Job struct {
	Final     string   `json:"final"`
	Key       string   `json:"key"`
	Watermark string   `json:"watermark"`
	Records   []string `json:"records"`
	// Output receives the reconstructed image when set.
	Output string `json:"output,omitempty"`
	// Graph receives an SVG of the inverse chain when set.
	Graph string `json:"graph,omitempty"`
}

func (j Job) Validate() error {
	if j.Final == "" || j.Key == "" || j.Watermark == "" {
		return fmt.Errorf("%w: final, key and watermark images are required", search.ErrInvalidInput)
	}
	if len(j.Records) == 0 {
		return fmt.Errorf("%w: at least one verification record is required", search.ErrInvalidInput)
	}
	return nil
}

// Outcome is what a job produced.
type Outcome struct {
	Run    store.Run      `json:"run"`
	Result *search.Result `json:"-"`
	Image  *codec.Image   `json:"-"`
	Cached bool           `json:"cached"`
}

type Stats struct {
	Jobs      uint64 `json:"jobs"`
	Found     uint64 `json:"found"`
	NotFound  uint64 `json:"not_found"`
	Failed    uint64 `json:"failed"`
	CacheHits uint64 `json:"cache_hits"`
}

type Service struct {
	opts  search.Options
	store *store.Store // nil disables caching

	jobs, found, notFound, failed, cacheHits atomic.Uint64
}

// NewService creates a service. st may be nil.
func NewService(opts search.Options, st *store.Store) *Service {
	return &Service{opts: opts, store: st}
}

func (s *Service) Store() *store.Store { return s.store }

func (s *Service) Stats() Stats {
	return Stats{
		Jobs:      s.jobs.Load(),
		Found:     s.found.Load(),
		NotFound:  s.notFound.Load(),
		Failed:    s.failed.Load(),
		CacheHits: s.cacheHits.Load(),
	}
}

// Load decodes and checks the job inputs.
func Load(job Job) (search.Input, *codec.Image, error) {
	if err := job.Validate(); err != nil {
		return search.Input{}, nil, err
	}
	final, err := codec.Decode(job.Final)
	if err != nil {
		return search.Input{}, nil, err
	}
	key, err := codec.Decode(job.Key)
	if err != nil {
		return search.Input{}, nil, err
	}
	if key.Width != final.Width || key.Height != final.Height {
		return search.Input{}, nil, fmt.Errorf("%w: key image is %dx%d, final image %dx%d",
			bitops.ErrSizeMismatch, key.Width, key.Height, final.Width, final.Height)
	}
	wm, err := codec.Decode(job.Watermark)
	if err != nil {
		return search.Input{}, nil, err
	}
	records, err := record.LoadAll(job.Records)
	if err != nil {
		return search.Input{}, nil, err
	}
	return search.Input{Final: final.Pix, Key: key.Pix, Watermark: wm.Pix, Records: records}, final, nil
}

// Solve runs job. A search that finds nothing returns the outcome together with
// search.ErrReconstructionNotFound.
func (s *Service) Solve(ctx context.Context, job Job) (*Outcome, error) {
	s.jobs.Add(1)
	out, err := s.solve(ctx, job)
	switch {
	case err == nil:
		s.found.Add(1)
	case errors.Is(err, search.ErrReconstructionNotFound):
		s.notFound.Add(1)
	default:
		s.failed.Add(1)
	}
	return out, err
}

func (s *Service) solve(ctx context.Context, job Job) (*Outcome, error) {
	in, final, err := Load(job)
	if err != nil {
		return nil, err
	}
	opts := s.opts
	out := &Outcome{}

	fp := store.Fingerprint(in)
	if s.store != nil {
		if cached, err := s.store.Get(fp); err == nil && cached.Found() {
			if seq, err := transform.ParseSequence(cached.Sequence); err == nil {
				log.Info().Str("fingerprint", fp).Str("sequence", cached.Sequence).Msg("solver: trying cached sequence")
				opts.Hints = append([]transform.Sequence{seq}, hintsOrDefault(opts.Hints)...)
				out.Cached = true
			}
		}
	}

	res, err := search.Reconstruct(ctx, in, opts)
	if res == nil {
		return nil, err
	}
	out.Result = res
	out.Run = store.NewRun(in, res)
	out.Run.Width, out.Run.Height = final.Width, final.Height
	if out.Cached && res.Index == -1 && res.HintTrials == 1 {
		s.cacheHits.Add(1)
	} else {
		out.Cached = false
	}
	if s.store != nil {
		if perr := s.store.Put(out.Run); perr != nil {
			log.Warn().Err(perr).Str("fingerprint", fp).Msg("solver: failed to store run")
		}
	}
	if err != nil {
		return out, err
	}

	out.Image = &codec.Image{Width: final.Width, Height: final.Height, Pix: res.Image}
	if job.Output != "" {
		if err := codec.Encode(out.Image, job.Output); err != nil {
			return out, err
		}
		log.Info().Str("output", job.Output).Msg("solver: wrote reconstructed image")
	}
	if job.Graph != "" {
		svg, err := chaingraph.SVG(ctx, res.Sequence)
		if err != nil {
			return out, err
		}
		if err := os.WriteFile(job.Graph, svg, 0o644); err != nil {
			return out, fmt.Errorf("solver: write graph: %w", err)
		}
	}
	return out, nil
}

// hintsOrDefault mirrors the engine default so prepending a cached hint keeps it.
func hintsOrDefault(h []transform.Sequence) []transform.Sequence {
	if h == nil {
		return []transform.Sequence{search.DefaultHint}
	}
	return h
}

package benchmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"time"

	"imgrev-go/pkg/log"
	"imgrev-go/pkg/mask"
	"imgrev-go/pkg/search"
	"imgrev-go/pkg/transform"
)

// LatencyResults holds the timing of one benchmarked component.
type LatencyResults struct {
	MinLatency    time.Duration
	MaxLatency    time.Duration
	AvgLatency    time.Duration
	MedianLatency time.Duration
	P95Latency    time.Duration
	P99Latency    time.Duration
	Iterations    int
	Trials        int
	TotalTime     time.Duration
	PixelBytes    int
	Component     Component
}

// TrialsPerSecond is the sequence test rate over the whole run.
func (r *LatencyResults) TrialsPerSecond() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return float64(r.Trials) / r.TotalTime.Seconds()
}

// Component specifies which stage of the search to benchmark
type Component int

const (
	ComponentVerify   Component = iota // checksum verification of one candidate
	ComponentInverse                   // one inverse chain application
	ComponentSweep                     // full exhaustive sweep on one goroutine
	ComponentParallel                  // full exhaustive sweep on every worker
)

func (c Component) String() string {
	switch c {
	case ComponentVerify:
		return "Checksum Verify"
	case ComponentInverse:
		return "Inverse Chain"
	case ComponentSweep:
		return "Sequential Sweep"
	case ComponentParallel:
		return "Parallel Sweep"
	default:
		return "Unknown"
	}
}

// ParseComponent maps a command line name onto a Component.
func ParseComponent(s string) (Component, error) {
	switch s {
	case "verify":
		return ComponentVerify, nil
	case "inverse":
		return ComponentInverse, nil
	case "sweep":
		return ComponentSweep, nil
	case "parallel":
		return ComponentParallel, nil
	default:
		return 0, fmt.Errorf("unknown component: %s", s)
	}
}

// BenchmarkOptions configures a benchmark run
type BenchmarkOptions struct {
	Component  Component
	Iterations int
	Width      int
	Height     int
	Workers    int
}

// DefaultBenchmarkOptions returns sensible defaults
func DefaultBenchmarkOptions() *BenchmarkOptions {
	return &BenchmarkOptions{
		Component:  ComponentSweep,
		Iterations: 10,
		Width:      64,
		Height:     64,
	}
}

// fixture builds a search input whose record comes from an unrelated image, so sweeps run to exhaustion.
func fixture(opts *BenchmarkOptions) search.Input {
	n := opts.Width * opts.Height * 3
	rng := rand.New(rand.NewPCG(uint64(n), 0x696d67726576))
	fill := func(b []byte) []byte {
		for i := range b {
			b[i] = byte(rng.UintN(256))
		}
		return b
	}
	final := fill(make([]byte, n))
	key := fill(make([]byte, n))
	wm := fill(make([]byte, 3*4))
	rec := mask.Compute(fill(make([]byte, n)), wm, 7)
	return search.Input{Final: final, Key: key, Watermark: wm, Records: []mask.Record{rec}}
}

// BenchmarkLatency runs the configured component opts.Iterations times.
func BenchmarkLatency(ctx context.Context, opts *BenchmarkOptions) (*LatencyResults, error) {
	if opts.Iterations <= 0 {
		return nil, fmt.Errorf("benchmark: iterations must be positive, got %d", opts.Iterations)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("benchmark: invalid image size %dx%d", opts.Width, opts.Height)
	}
	in := fixture(opts)
	seq := search.DefaultHint
	buf := make([]byte, len(in.Final))

	latencies := make([]time.Duration, 0, opts.Iterations)
	trials := 0
	start := time.Now()
	for i := 0; i < opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t0 := time.Now()
		switch opts.Component {
		case ComponentVerify:
			mask.VerifyAll(in.Final, in.Watermark, in.Records)
			trials++
		case ComponentInverse:
			if err := transform.InverseInto(buf, in.Final, in.Key, seq); err != nil {
				return nil, err
			}
			trials++
		case ComponentSweep, ComponentParallel:
			workers := 1
			if opts.Component == ComponentParallel {
				workers = opts.Workers
			}
			res, err := search.Reconstruct(ctx, in, search.Options{Workers: workers, Hints: []transform.Sequence{}})
			if res == nil || (err != nil && !errors.Is(err, search.ErrReconstructionNotFound)) {
				return nil, err
			}
			trials += res.Trials
		default:
			return nil, fmt.Errorf("benchmark: unknown component %d", opts.Component)
		}
		latencies = append(latencies, time.Since(t0))
	}

	results := calculateStats(latencies, time.Since(start))
	results.Component = opts.Component
	results.Iterations = opts.Iterations
	results.Trials = trials
	results.PixelBytes = len(in.Final)
	log.Debug().Str("component", opts.Component.String()).Dur("total", results.TotalTime).Msg("benchmark: done")
	return results, nil
}

// calculateStats calculates statistics from latency measurements
func calculateStats(latencies []time.Duration, totalTime time.Duration) *LatencyResults {
	if len(latencies) == 0 {
		return &LatencyResults{TotalTime: totalTime}
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	return &LatencyResults{
		MinLatency:    latencies[0],
		MaxLatency:    latencies[len(latencies)-1],
		AvgLatency:    sum / time.Duration(len(latencies)),
		MedianLatency: latencies[len(latencies)/2],
		P95Latency:    latencies[(len(latencies)*95)/100],
		P99Latency:    latencies[(len(latencies)*99)/100],
		TotalTime:     totalTime,
	}
}

// RunAllBenchmarks runs every component with the given options
func RunAllBenchmarks(ctx context.Context, baseOpts *BenchmarkOptions) ([]*LatencyResults, error) {
	var results []*LatencyResults
	for _, component := range []Component{ComponentVerify, ComponentInverse, ComponentSweep, ComponentParallel} {
		opts := *baseOpts
		opts.Component = component
		log.Printf("Running benchmark for %s...", component)
		result, err := BenchmarkLatency(ctx, &opts)
		if err != nil {
			if ctx.Err() != nil {
				return results, err
			}
			log.Printf("Error benchmarking %s: %v", component, err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// PrintResults writes a human readable report of one result
func PrintResults(w io.Writer, results *LatencyResults) {
	fmt.Fprintf(w, "=== Latency Benchmark: %s ===\n", results.Component)
	fmt.Fprintf(w, "Pixel Bytes: %d\n", results.PixelBytes)
	fmt.Fprintf(w, "Iterations: %d\n", results.Iterations)
	fmt.Fprintf(w, "Trials: %d (%.0f/s)\n", results.Trials, results.TrialsPerSecond())
	fmt.Fprintf(w, "Total Time: %v\n", results.TotalTime)
	fmt.Fprintf(w, "Min Latency: %v\n", results.MinLatency)
	fmt.Fprintf(w, "Avg Latency: %v\n", results.AvgLatency)
	fmt.Fprintf(w, "Median Latency: %v\n", results.MedianLatency)
	fmt.Fprintf(w, "95th Percentile: %v\n", results.P95Latency)
	fmt.Fprintf(w, "99th Percentile: %v\n", results.P99Latency)
	fmt.Fprintf(w, "Max Latency: %v\n", results.MaxLatency)
	fmt.Fprintln(w, "==========================================")
}

// WriteCSV writes results as CSV, durations in nanoseconds
func WriteCSV(w io.Writer, results []*LatencyResults) error {
	var b bytes.Buffer
	b.WriteString("Component,PixelBytes,Iterations,Trials,MinLatency,AvgLatency,MedianLatency,P95Latency,P99Latency,MaxLatency,TotalTime\n")
	for _, r := range results {
		fmt.Fprintf(&b, "%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Component,
			r.PixelBytes,
			r.Iterations,
			r.Trials,
			r.MinLatency.Nanoseconds(),
			r.AvgLatency.Nanoseconds(),
			r.MedianLatency.Nanoseconds(),
			r.P95Latency.Nanoseconds(),
			r.P99Latency.Nanoseconds(),
			r.MaxLatency.Nanoseconds(),
			r.TotalTime.Nanoseconds())
	}
	_, err := w.Write(b.Bytes())
	return err
}

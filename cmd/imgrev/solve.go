package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"imgrev-go/internal/fn"
	"imgrev-go/pkg/log"
	"imgrev-go/pkg/search"
	"imgrev-go/pkg/solver"
	"imgrev-go/pkg/store"
)

// exitNotFound distinguishes an exhausted search from a failed run.
const exitNotFound = 2

var solveCommand = &cli.Command{
	Name:      "solve",
	Usage:     "reconstruct the original image",
	UsageText: "imgrev solve --final I_D.bmp --key I_M.bmp --mask M.bmp --record M1.txt --record M2.txt -o I_O.bmp",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "final", Aliases: []string{"f"}, Usage: "transformed image `PATH`", Required: true},
		&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "key image `PATH` used by xor steps", Required: true},
		&cli.StringFlag{Name: "mask", Aliases: []string{"m"}, Usage: "watermark image `PATH`", Required: true},
		&cli.StringSliceFlag{Name: "record", Aliases: []string{"r"}, Usage: "verification record `PATH` (repeatable)", Required: true},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write the reconstructed image to `PATH`"},
		&cli.StringFlag{Name: "graph", Usage: "write an SVG of the inverse chain to `PATH`"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "search workers, 0 for one per CPU"},
		&cli.StringFlag{Name: "known", Usage: "known sequence `HINTS` tried first, e.g. xor,ror3,xor (';' separates several)"},
		&cli.BoolFlag{Name: "no-cache", Usage: "neither read nor write the result store"},
	},
	Action: solveCmd,
}

func solveCmd(c *cli.Context) error {
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("known") {
		cfg.KnownSequence = c.String("known")
	}
	if c.Bool("no-cache") {
		cfg.CacheResults = false
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	opts, err := cfg.SearchOptions()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var st *store.Store
	if cfg.CacheResults {
		st, err = store.Open(cfg.StorePath)
		if err != nil {
			log.Warn().Err(err).Msg("result store unavailable, continuing without cache")
		} else {
			defer st.Close()
		}
	}

	job := solver.Job{
		Final:     c.String("final"),
		Key:       c.String("key"),
		Watermark: c.String("mask"),
		Records:   c.StringSlice("record"),
		Output:    c.String("output"),
		Graph:     c.String("graph"),
	}
	out, err := solver.NewService(opts, st).Solve(c.Context, job)
	if errors.Is(err, search.ErrReconstructionNotFound) {
		return cli.Exit(fmt.Sprintf("no sequence reconstructs the image (%d trials)", out.Run.HintTrials+out.Run.Trials), exitNotFound)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r := out.Run
	fmt.Printf("sequence:    %s\n", r.Sequence)
	fmt.Printf("found by:    %s\n", fn.T(r.Index < 0, "known sequence", fmt.Sprintf("exhaustive search, index %d", r.Index)))
	fmt.Printf("trials:      %d known + %d exhaustive in %s\n", r.HintTrials, r.Trials, r.Elapsed)
	fmt.Printf("fingerprint: %s%s\n", r.Fingerprint, fn.T(out.Cached, " (cached)", ""))
	if job.Output != "" {
		fmt.Printf("output:      %s\n", job.Output)
	}
	return nil
}

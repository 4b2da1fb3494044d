package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"imgrev-go/pkg/benchmark"
)

var benchCommand = &cli.Command{
	Name:  "bench",
	Usage: "measure search throughput on synthetic images",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "component", Usage: "component to benchmark (verify, inverse, sweep, parallel)", Value: "sweep"},
		&cli.BoolFlag{Name: "all", Usage: "benchmark every component"},
		&cli.IntFlag{Name: "iterations", Aliases: []string{"n"}, Usage: "number of iterations", Value: 10},
		&cli.IntFlag{Name: "width", Usage: "synthetic image width", Value: 64},
		&cli.IntFlag{Name: "height", Usage: "synthetic image height", Value: 64},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write results as CSV to `PATH`"},
	},
	Action: benchCmd,
}

func benchCmd(c *cli.Context) error {
	opts := benchmark.DefaultBenchmarkOptions()
	opts.Iterations = c.Int("iterations")
	opts.Width, opts.Height = c.Int("width"), c.Int("height")
	opts.Workers = cfg.Workers

	var results []*benchmark.LatencyResults
	if c.Bool("all") {
		var err error
		if results, err = benchmark.RunAllBenchmarks(c.Context, opts); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	} else {
		comp, err := benchmark.ParseComponent(c.String("component"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		opts.Component = comp
		r, err := benchmark.BenchmarkLatency(c.Context, opts)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		results = append(results, r)
	}
	for _, r := range results {
		benchmark.PrintResults(os.Stdout, r)
	}

	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer f.Close()
		if err := benchmark.WriteCSV(f, results); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	return nil
}

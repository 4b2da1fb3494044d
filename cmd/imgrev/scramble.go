package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"imgrev-go/internal/fn"
	"imgrev-go/pkg/solver"
	"imgrev-go/pkg/transform"
)

var scrambleCommand = &cli.Command{
	Name:      "scramble",
	Usage:     "apply a transformation sequence and write a challenge to reconstruct",
	UsageText: "imgrev scramble --source I_O.bmp --key I_M.bmp --mask M.bmp --sequence xor,ror3,xor --seed 100 --seed 2000 -o I_D.bmp",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "original image `PATH`", Required: true},
		&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Usage: "key image `PATH`", Required: true},
		&cli.StringFlag{Name: "mask", Aliases: []string{"m"}, Usage: "watermark image `PATH`", Required: true},
		&cli.StringFlag{Name: "sequence", Usage: "transformation `SEQUENCE` in application order", Value: "xor,ror3,xor"},
		&cli.IntSliceFlag{Name: "seed", Usage: "record `SEED` (repeatable, one record each)", Required: true},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "transformed image `PATH`", Required: true},
		&cli.StringFlag{Name: "records-dir", Usage: "`DIR` receiving M1.txt, M2.txt, ...", Value: "."},
		&cli.BoolFlag{Name: "compress", Usage: "zstd compress the records"},
	},
	Action: scrambleCmd,
}

func scrambleCmd(c *cli.Context) error {
	seq, err := transform.ParseSequence(c.String("sequence"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	paths, err := solver.Scramble(solver.ScrambleJob{
		Source:    c.String("source"),
		Key:       c.String("key"),
		Watermark: c.String("mask"),
		Sequence:  seq,
		Seeds:     c.IntSlice("seed"),
		Output:    c.String("output"),
		RecordDir: c.String("records-dir"),
		RecordExt: fn.T(c.Bool("compress"), ".zst", ""),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("image:   %s\n", c.String("output"))
	for _, p := range paths {
		fmt.Printf("record:  %s\n", p)
	}
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"imgrev-go/internal/fn"
	"imgrev-go/pkg/store"
)

var runsCommand = &cli.Command{
	Name:  "runs",
	Usage: "list cached reconstruction results",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "print runs as JSON"},
	},
	Action: runsCmd,
}

func runsCmd(c *cli.Context) error {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()
	runs, err := st.List()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINGERPRINT\tSTATE\tSEQUENCE\tTRIALS\tSIZE\tWHEN")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dx%d\t%s\n",
			r.Fingerprint, r.State, fn.Or(r.Sequence, "-"),
			r.HintTrials+r.Trials, r.Width, r.Height, r.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

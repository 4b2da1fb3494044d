package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"imgrev-go/pkg/log"
)

var logsCommand = &cli.Command{
	Name:  "logs",
	Usage: "print events stored in the log database",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "dbfile", Aliases: []string{"f"}, Usage: "log database `PATH` (defaults to log_db)"},
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "print the last `NUMBER` events", Value: 50},
		&cli.StringFlag{Name: "since", Aliases: []string{"s"}, Usage: "print events since `TIME_SPEC` ('1h', '2024-05-01T10:00:00Z')"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "max events with --since", Value: log.DefaultLimit},
		&cli.BoolFlag{Name: "pretty", Aliases: []string{"p"}, Usage: "human readable output instead of raw JSON"},
	},
	Action: logsCmd,
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

// parseTimeSpec accepts a duration back from now ("30m") or an absolute timestamp.
func parseTimeSpec(spec string) (time.Time, error) {
	if d, err := time.ParseDuration(spec); err == nil {
		return time.Now().Add(-d), nil
	}
	for _, layout := range timeFormats {
		if ts, err := time.ParseInLocation(layout, spec, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time specification %q: use a duration such as 1h or a timestamp such as 2024-05-01T10:00:00Z", spec)
}

func logsCmd(c *cli.Context) error {
	dbFile := c.String("dbfile")
	if dbFile == "" {
		dbFile = cfg.LogDB
	}
	if _, err := os.Stat(dbFile); err != nil {
		return cli.Exit(fmt.Sprintf("log database not found at %s", dbFile), 1)
	}
	if err := log.Init(dbFile); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var entries []log.LogEntry
	var err error
	if c.IsSet("since") {
		start, perr := parseTimeSpec(c.String("since"))
		if perr != nil {
			return cli.Exit(perr.Error(), 1)
		}
		entries, err = log.GetLogsSince(start, c.Int("limit"))
	} else {
		if c.Int("count") <= 0 {
			return cli.Exit("--count must be positive", 1)
		}
		entries, err = log.GetLastNLogs(c.Int("count"))
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no log entries found")
		return nil
	}

	pretty := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: true}
	for _, e := range entries {
		if c.Bool("pretty") {
			if _, err := pretty.Write([]byte(e.LogData)); err == nil {
				continue
			}
		}
		fmt.Println(e.LogData)
	}
	return nil
}

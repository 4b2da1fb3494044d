package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"imgrev-go/pkg/config"
	"imgrev-go/pkg/log"
)

// Set at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// cfg is loaded once in the app Before hook and shared by every command.
var cfg *config.Config

func main() {
	app := &cli.App{
		Name:    "imgrev",
		Usage:   "recover an image from a chain of reversible bit transformations",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file `PATH` or name",
				EnvVars: []string{"IMGREV_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "minimum log `LEVEL` (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "no-log-db",
				Usage: "do not persist log events to the SQLite log database",
			},
		},
		Before: setup,
		After: func(c *cli.Context) error {
			log.Debug().Int64("rows", log.WrittenSinceStart()).Msg("closing log database")
			return log.Close()
		},
		Commands: []*cli.Command{
			solveCommand,
			scrambleCommand,
			serveCommand,
			runsCommand,
			logsCommand,
			benchCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) error {
	var err error
	cfg, err = config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
		if err := cfg.Validate(); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	log.SetStd()
	log.SetLevel(cfg.Level())
	// the logs command opens the database itself, read-only use
	if !c.Bool("no-log-db") && c.Args().First() != logsCommand.Name {
		if err := log.Init(cfg.LogDB); err != nil {
			fmt.Fprintf(os.Stderr, "warning: log database disabled: %v\n", err)
		}
	}
	log.Debug().Str("config", cfg.ConfigFile).Msg("configuration loaded")
	return nil
}

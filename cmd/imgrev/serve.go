package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"imgrev-go/pkg/api"
	"imgrev-go/pkg/log"
	"imgrev-go/pkg/solver"
	"imgrev-go/pkg/store"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "serve reconstructions and past runs over HTTP",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "listen `ADDRESS`"},
	},
	Action: serveCmd,
}

func serveCmd(c *cli.Context) error {
	if c.IsSet("listen") {
		cfg.APIListenAddr = c.String("listen")
	}
	opts, err := cfg.SearchOptions()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer st.Close()

	srv := api.NewServer(solver.NewService(opts, st))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %s, shutting down gracefully...", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Api.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("api: shutdown failed")
		}
	}()

	if err := srv.Run(cfg.APIListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return cli.Exit(err.Error(), 1)
	}
	log.Printf("api: stopped")
	return nil
}

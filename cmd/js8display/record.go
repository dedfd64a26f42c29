package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tuffrabit/tinygo-js8-display/pkg/capture"
	"github.com/tuffrabit/tinygo-js8-display/pkg/config"
	"github.com/tuffrabit/tinygo-js8-display/pkg/feed"
)

func newRecordCmd(g *globalFlags) *cobra.Command {
	s := config.Defaults()
	var (
		addr   string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Store every line of a JS8Call feed in a capture database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.logger(nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			db, err := capture.Open(ctx, dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			r := feed.New(feed.Config{
				Address:        addr,
				ReconnectDelay: s.ReconnectDelay(),
				Logger:         logger.With("component", "feed"),
			})

			logger.Info("recording", "addr", addr, "db", dbPath)
			n, err := db.Record(ctx, r, logger)
			logger.Info("stopped", "lines", n)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", s.Address(), "JS8Call host:port")
	f.StringVar(&dbPath, "db", "capture.db", "capture database")
	return cmd
}

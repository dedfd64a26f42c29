// Command js8display is the host-side companion to the firmware: it runs the
// display in a terminal, records a JS8Call feed and replays recordings.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	logLevel string
	logFile  string

	closeLog func()
}

// logger builds the slog logger for a command. Nil out means stderr unless
// --log-file is set.
func (g *globalFlags) logger(out io.Writer) (*slog.Logger, error) {
	level, err := log.ParseLevel(g.logLevel)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}

	if g.logFile != "" {
		f, err := os.OpenFile(g.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		g.closeLog = func() { f.Close() }
		out = f
	}
	if out == nil {
		out = os.Stderr
	}

	handler := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
	return slog.New(handler), nil
}

func (g *globalFlags) close() {
	if g.closeLog != nil {
		g.closeLog()
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "js8display",
		Short:         "JS8Call field display on the desktop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			g.close()
		},
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "append logs to this file")

	root.AddCommand(newViewCmd(g), newServeCmd(g), newRecordCmd(g))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

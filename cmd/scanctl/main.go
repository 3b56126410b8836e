// Scanctl is a command line front end for scancore: it scans files, inspects
// and builds database packages, and watches a database directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quay/scancore/toolkit/log"
)

type commonConfig struct {
	Verbose     bool
	MetricsAddr string
	DB          string
	Keyring     string
}

type subcmd func(context.Context, *commonConfig, []string) error

// ExitCode is returned by subcommands that want a specific exit status.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

func main() {
	var exit int
	defer func() {
		if exit != 0 {
			os.Exit(exit)
		}
	}()
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer done()

	var cfg commonConfig
	fs := flag.NewFlagSet("scanctl", flag.ExitOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nSubcommands\n\n")
		fmt.Fprintln(out, "scan")
		fmt.Fprintln(out, "\tscan files against a signature database")
		fmt.Fprintln(out, "info")
		fmt.Fprintln(out, "\tprint database package headers")
		fmt.Fprintln(out, "verify")
		fmt.Fprintln(out, "\tcheck database package checksums and signatures")
		fmt.Fprintln(out, "build")
		fmt.Fprintln(out, "\tbuild a database package from record files")
		fmt.Fprintln(out, "watch")
		fmt.Fprintln(out, "\treload a database directory when it changes")
		fmt.Fprintln(out)
	}
	fs.BoolVar(&cfg.Verbose, "v", false, "log at debug level")
	fs.StringVar(&cfg.MetricsAddr, "metrics", "", "serve prometheus metrics on this address")
	fs.StringVar(&cfg.DB, "d", os.Getenv("SCANCORE_DB"), "database file or directory (default $SCANCORE_DB)")
	fs.StringVar(&cfg.Keyring, "k", os.Getenv("SCANCORE_KEYRING"), "OpenPGP keyring of trusted package signers (default $SCANCORE_KEYRING)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exit = 2
		return
	}

	telemetry, err := setupTelemetry(ctx, cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		exit = 2
		return
	}
	defer func() {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := telemetry(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	var cmd subcmd
	switch n := fs.Arg(0); n {
	case "scan":
		cmd = Scan
	case "info":
		cmd = Info
	case "verify":
		cmd = Verify
	case "build":
		cmd = Build
	case "watch":
		cmd = Watch
	case "":
		fs.Usage()
		exit = 99
		return
	default:
		fs.Usage()
		fmt.Fprintf(os.Stderr, "\nunknown subcommand %q\n", n)
		exit = 99
		return
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:        cfg.MetricsAddr,
			Handler:     promhttp.Handler(),
			BaseContext: func(net.Listener) context.Context { return ctx },
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "metrics server failed", "reason", err)
			}
		}()
		defer srv.Close()
	}

	ctx = log.With(ctx, "subcommand", fs.Arg(0))
	err = cmd(ctx, &cfg, fs.Args()[1:])
	var code exitCode
	switch {
	case errors.Is(err, nil):
	case errors.As(err, &code):
		exit = int(code)
	default:
		slog.ErrorContext(ctx, "command failed", "reason", err)
		exit = 2
	}
}

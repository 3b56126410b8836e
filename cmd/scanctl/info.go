package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/quay/scancore/dbpkg"
)

// Info prints the header of each package given.
func Info(ctx context.Context, cfg *commonConfig, args []string) error {
	fs := flag.NewFlagSet("scanctl info", flag.ExitOnError)
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage:\n")
		fmt.Fprintf(out, "\tscanctl info package...\n")
	}
	fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return exitCode(2)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	defer tw.Flush()
	for _, p := range fs.Args() {
		h, err := dbpkg.Head(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "File:\t%s\n", p)
		fmt.Fprintf(tw, "Build time:\t%s\n", h.Time.Format(time.RFC1123Z))
		fmt.Fprintf(tw, "Version:\t%d\n", h.Version)
		fmt.Fprintf(tw, "Signatures:\t%d\n", h.Sigs)
		fmt.Fprintf(tw, "Functionality level:\t%d\n", h.FLevel)
		fmt.Fprintf(tw, "Builder:\t%s\n", h.Builder)
		fmt.Fprintf(tw, "Checksum:\t%s\n", h.Checksum)
		fmt.Fprintf(tw, "Signed:\t%t\n", h.DSig != "")
		fmt.Fprintln(tw)
	}
	return nil
}

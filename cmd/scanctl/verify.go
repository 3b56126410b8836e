package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/quay/scancore"
	"github.com/quay/scancore/dbpkg"
)

// Verify checks the checksum and signature of each package given.
func Verify(ctx context.Context, cfg *commonConfig, args []string) error {
	var policy dbpkg.Policy
	fs := flag.NewFlagSet("scanctl verify", flag.ExitOnError)
	fs.BoolVar(&policy.RequireSignature, "require-signature", true, "reject unsigned packages")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage:\n")
		fmt.Fprintf(out, "\tscanctl -k keyring verify [flags] package...\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return exitCode(2)
	}
	kr, err := readKeyring(cfg.Keyring)
	if err != nil {
		return err
	}
	var bad bool
	for _, p := range fs.Args() {
		var err error
		if kr != nil {
			err = dbpkg.Verify(p, kr, policy)
		} else {
			err = dbpkg.Verify(p, nil, policy)
		}
		if err != nil {
			bad = true
			fmt.Printf("%s: %v\n", p, scancore.CodeOf(err))
			continue
		}
		fmt.Printf("%s: OK\n", p)
	}
	if bad {
		return exitCode(1)
	}
	return nil
}

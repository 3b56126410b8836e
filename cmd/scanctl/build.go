package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/quay/scancore/dbpkg"
)

type buildConfig struct {
	out          string
	version      uint
	builder      string
	sign         string
	uncompressed bool
}

// Build writes a database package from record files.
func Build(ctx context.Context, cfg *commonConfig, args []string) error {
	var cmdcfg buildConfig
	fs := flag.NewFlagSet("scanctl build", flag.ExitOnError)
	fs.StringVar(&cmdcfg.out, "o", "", "output package path")
	fs.UintVar(&cmdcfg.version, "version", 1, "package version")
	fs.StringVar(&cmdcfg.builder, "builder", os.Getenv("USER"), "builder name recorded in the header")
	fs.StringVar(&cmdcfg.sign, "sign", "", "keyring holding the signing key")
	fs.BoolVar(&cmdcfg.uncompressed, "uncompressed", false, "write a plain tar body")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage:\n")
		fmt.Fprintf(out, "\tscanctl build -o out.cvd [flags] file...\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if cmdcfg.out == "" || fs.NArg() == 0 {
		fs.Usage()
		return exitCode(2)
	}

	opts := dbpkg.BuildOptions{
		Time:         time.Now(),
		Builder:      cmdcfg.builder,
		Version:      cmdcfg.version,
		Uncompressed: cmdcfg.uncompressed,
	}
	if cmdcfg.sign != "" {
		e, err := readSigner(cmdcfg.sign)
		if err != nil {
			return err
		}
		opts.Signer = e
	}
	for _, p := range fs.Args() {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		opts.Files = append(opts.Files, dbpkg.File{Name: filepath.Base(p), Data: b})
	}

	tmp := cmdcfg.out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	h, err := dbpkg.Build(f, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	if err := os.Rename(tmp, cmdcfg.out); err != nil {
		return err
	}
	slog.InfoContext(ctx, "package written",
		"path", cmdcfg.out,
		"version", h.Version,
		"signatures", h.Sigs,
		"signed", h.DSig != "")
	return nil
}

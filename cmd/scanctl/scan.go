package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/quay/scancore"
	"github.com/quay/scancore/engine"
	"github.com/quay/scancore/scan"
)

type scanConfig struct {
	all       bool
	noArchive bool
	block     bool
	official  bool
	structure bool
	maxSize   uint64
	maxFile   uint64
	maxDepth  uint
}

// Scan scans every path given, recursing into directories.
//
// The exit status is 0 if everything is clean, 1 if anything matched, and 2 if
// any scan failed.
func Scan(ctx context.Context, cfg *commonConfig, args []string) error {
	var cmdcfg scanConfig
	fs := flag.NewFlagSet("scanctl scan", flag.ExitOnError)
	fs.BoolVar(&cmdcfg.all, "all", false, "report every match instead of the first")
	fs.BoolVar(&cmdcfg.noArchive, "no-archive", false, "don't descend into archives")
	fs.BoolVar(&cmdcfg.block, "block", false, "treat broken and encrypted containers as errors")
	fs.BoolVar(&cmdcfg.official, "official", false, "only load signed database packages")
	fs.BoolVar(&cmdcfg.structure, "structured", false, "detect credit card and SSN numbers")
	fs.Uint64Var(&cmdcfg.maxSize, "max-scansize", engine.DefaultMaxScanSize, "maximum bytes attributed to one scan")
	fs.Uint64Var(&cmdcfg.maxFile, "max-filesize", engine.DefaultMaxFileSize, "maximum size of any one object")
	fs.UintVar(&cmdcfg.maxDepth, "max-recursion", engine.DefaultMaxRecursion, "maximum container nesting")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage:\n")
		fmt.Fprintf(out, "\tscanctl [-d db] [-k keyring] scan [flags] path...\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		return exitCode(2)
	}

	var dbopts scancore.DBOptions
	if cmdcfg.official {
		dbopts |= scancore.DBOfficial
	}
	eng, err := loadEngine(ctx, cfg, dbopts)
	if err != nil {
		return err
	}
	defer eng.Close()
	for f, v := range map[engine.Field]any{
		engine.MaxScanSize:  cmdcfg.maxSize,
		engine.MaxFileSize:  cmdcfg.maxFile,
		engine.MaxRecursion: uint32(cmdcfg.maxDepth),
	} {
		if err := eng.Set(f, v); err != nil {
			return err
		}
	}

	opts := scancore.ScanStdOptions
	if cmdcfg.noArchive {
		opts &^= scancore.ScanArchive
	}
	if cmdcfg.all {
		opts |= scancore.ScanAllMatches
	}
	if cmdcfg.block {
		opts |= scancore.ScanBlockBroken | scancore.ScanBlockEncrypted
	}
	if cmdcfg.structure {
		opts |= scancore.ScanStructured | scancore.ScanStructuredSSNNormal
	}

	var found, failed bool
	for _, root := range fs.Args() {
		err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err != nil {
				fmt.Printf("%s: %v ERROR\n", p, err)
				failed = true
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			res, err := scan.File(ctx, p, eng, opts)
			switch res.Verdict() {
			case scancore.VerdictMatched:
				found = true
				for _, l := range res.Labels {
					fmt.Printf("%s: %s FOUND\n", p, l)
				}
			case scancore.VerdictAborted:
				failed = true
				fmt.Printf("%s: %v ERROR\n", p, res.Code)
				slog.DebugContext(ctx, "scan failed", "path", p, "reason", err)
			default:
				fmt.Printf("%s: OK\n", p)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	switch {
	case failed:
		return exitCode(2)
	case found:
		return exitCode(1)
	}
	return nil
}

// LoadEngine returns a compiled engine built from the configured database.
func loadEngine(ctx context.Context, cfg *commonConfig, opts scancore.DBOptions) (*engine.Engine, error) {
	if cfg.DB == "" {
		return nil, errors.New("no database configured: use -d or $SCANCORE_DB")
	}
	kr, err := readKeyring(cfg.Keyring)
	if err != nil {
		return nil, err
	}
	eopts := engine.Options{SpoolDir: os.Getenv("SCANCORE_TMPDIR")}
	if kr != nil {
		eopts.Keyring = kr
	}
	eng := engine.New(&eopts)
	n, err := eng.Load(ctx, cfg.DB, opts)
	if err != nil {
		eng.Close()
		return nil, err
	}
	if err := eng.Compile(ctx); err != nil {
		eng.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "database loaded", "path", cfg.DB, "signatures", n)
	return eng, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/quay/scancore"
	"github.com/quay/scancore/dbstat"
	"github.com/quay/scancore/engine"
)

// Watch loads the database directory and reloads it whenever it changes,
// until interrupted.
func Watch(ctx context.Context, cfg *commonConfig, args []string) error {
	var debounce time.Duration
	fs := flag.NewFlagSet("scanctl watch", flag.ExitOnError)
	fs.DurationVar(&debounce, "debounce", dbstat.DefaultDebounce, "quiet period before reloading")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage:\n")
		fmt.Fprintf(out, "\tscanctl -d dir watch [flags]\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fi, err := os.Stat(cfg.DB); err != nil || !fi.IsDir() {
		fs.Usage()
		return exitCode(2)
	}

	var cur atomic.Pointer[engine.Engine]
	eng, err := loadEngine(ctx, cfg, scancore.DBStdOptions)
	if err != nil {
		return err
	}
	cur.Store(eng)
	defer func() { cur.Load().Close() }()
	report(eng)

	reload := func(ctx context.Context) {
		eng, err := loadEngine(ctx, cfg, scancore.DBStdOptions)
		if err != nil {
			// Keep serving the previous engine.
			slog.WarnContext(ctx, "reload failed", "reason", err)
			return
		}
		if old := cur.Swap(eng); old != nil {
			old.Close()
		}
		report(eng)
	}
	return dbstat.Watch(ctx, cfg.DB, reload, &dbstat.WatchOptions{Debounce: debounce})
}

func report(eng *engine.Engine) {
	m, err := eng.Matcher()
	if err != nil {
		return
	}
	ver, _ := eng.Get(engine.DBVersion)
	fmt.Printf("signatures: %d version: %v\n", m.Sigs(), ver)
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/gogpu/glass"
)

// settle is how long watch waits after the last event on a unit before
// retranslating it, so that editors writing a file in several steps
// trigger one run.
const settle = 100 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <dir>",
	Short: "Retranslate .ll files in a directory when they or their sidecars change",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	addTranslateFlags(watchCmd)
	watchCmd.Flags().StringP("out-dir", "o", "", "output directory (default: the watched directory)")
}

// unitFor maps a changed file to the .ll unit it belongs to.
func unitFor(path string) (string, bool) {
	switch filepath.Ext(path) {
	case ".ll":
		return path, true
	case ".toml":
		return strings.TrimSuffix(path, ".toml") + ".ll", true
	}
	return "", false
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := translateOptions(cmd)
	if err != nil {
		return err
	}
	dir := args[0]
	outDir, _ := cmd.Flags().GetString("out-dir")
	if outDir == "" {
		outDir = dir
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	p := newPrinter(cmd.ErrOrStderr())
	run := func(path string) {
		if _, err := os.Stat(path); err != nil {
			return
		}
		r := compileOne(ctx, glass.Unit{Path: path}, opts)
		p.unit(r)
		if r.Err != nil {
			return
		}
		out, err := writeOutput(cmd.OutOrStdout(), outDir, r)
		if err != nil {
			p.unit(glass.UnitResult{Unit: r.Unit, Err: err})
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s\n", path, out)
	}

	opts.Logger.Info("watching", "dir", dir)
	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if unit, ok := unitFor(ev.Name); ok {
				pending[unit] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch error", "err", err)
		case now := <-ticker.C:
			for unit, at := range pending {
				if now.Sub(at) < settle {
					continue
				}
				delete(pending, unit)
				run(unit)
			}
		}
	}
}

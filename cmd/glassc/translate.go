// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/glass"
	"github.com/gogpu/glass/glsl"
	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/report"
)

var translateCmd = &cobra.Command{
	Use:   "translate [flags] <file.ll|dir>...",
	Short: "Translate SSA modules to GLSL",
	Long: `Translate each .ll file (directories are searched for *.ll) to GLSL.
A file's interface metadata is read from --meta or from the .toml file next to it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranslate,
}

func init() {
	addTranslateFlags(translateCmd)
	translateCmd.Flags().StringP("meta", "m", "", "metadata sidecar (single input only)")
	translateCmd.Flags().StringP("out-dir", "o", "", "write <name>.glsl files here instead of stdout")
	translateCmd.Flags().String("report", "", "write a msgpack translation report to this path")
	translateCmd.Flags().Int("jobs", 0, "max parallel translations (0=auto)")
}

// addTranslateFlags registers the flags shared by translate and watch.
func addTranslateFlags(cmd *cobra.Command) {
	cmd.Flags().String("glsl", "330", "target GLSL version (e.g. 450, 4.5, 300es, 3.1-es)")
	cmd.Flags().String("stage", "fragment", "shader stage when the metadata names none")
	cmd.Flags().String("entry", "main", "entry point function")
	cmd.Flags().Bool("no-hoist", false, "keep anonymous blocks as one global")
	cmd.Flags().Bool("no-inline", false, "bind every value to a temporary")
	cmd.Flags().Bool("write-mask", false, "keep partial vector stores as swizzle stores")
	cmd.Flags().Bool("debug-comments", false, "annotate loops in the output")
}

func translateOptions(cmd *cobra.Command) (glass.Options, error) {
	opts := glass.DefaultOptions()
	logger, err := setupOutput(cmd)
	if err != nil {
		return opts, err
	}
	opts.Logger = logger

	flags := cmd.Flags()
	versionFlag, _ := flags.GetString("glsl")
	v, err := glsl.ParseVersion(versionFlag)
	if err != nil {
		return opts, err
	}
	opts.GLSL.LangVersion = v

	stageFlag, _ := flags.GetString("stage")
	stage, ok := ir.ParseStage(stageFlag)
	if !ok {
		return opts, fmt.Errorf("unknown stage %q", stageFlag)
	}
	opts.Stage = stage

	opts.EntryPoint, _ = flags.GetString("entry")
	noHoist, _ := flags.GetBool("no-hoist")
	opts.HoistBlocks = !noHoist
	opts.NoInline, _ = flags.GetBool("no-inline")
	opts.WriteMaskStores, _ = flags.GetBool("write-mask")
	if debug, _ := flags.GetBool("debug-comments"); debug {
		opts.GLSL.WriterFlags |= glsl.WriterFlagDebugInfo
	}
	return opts, nil
}

// collectUnits expands directories to the .ll files they contain.
func collectUnits(args []string, meta string) ([]glass.Unit, error) {
	var units []glass.Unit
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			units = append(units, glass.Unit{Path: arg})
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.ll"))
		if err != nil {
			return nil, err
		}
		slices.Sort(matches)
		for _, path := range matches {
			units = append(units, glass.Unit{Path: path})
		}
	}
	if len(units) == 0 {
		return nil, errors.New("no .ll files found")
	}
	if meta != "" {
		if len(units) != 1 {
			return nil, errors.New("--meta requires exactly one input file")
		}
		units[0].Meta = meta
	}
	return units, nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	opts, err := translateOptions(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	meta, _ := flags.GetString("meta")
	outDir, _ := flags.GetString("out-dir")
	reportPath, _ := flags.GetString("report")
	jobs, _ := flags.GetInt("jobs")

	units, err := collectUnits(args, meta)
	if err != nil {
		return err
	}

	results, err := glass.CompileAll(cmd.Context(), units, opts, jobs)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.ErrOrStderr())
	outputs := make(map[string]string, len(results))
	for _, r := range results {
		p.unit(r)
		if r.Err != nil {
			continue
		}
		path, err := writeOutput(cmd.OutOrStdout(), outDir, r)
		if err != nil {
			return err
		}
		outputs[r.Path] = path
	}

	if reportPath != "" {
		rep := glass.NewReport("glassc "+version, time.Now(), results)
		for i := range rep.Units {
			rep.Units[i].Output = outputs[rep.Units[i].Source]
		}
		if err := report.WriteFile(reportPath, rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	failed := p.summary(results)
	if failed > 0 {
		return fmt.Errorf("%d of %d units failed", failed, len(results))
	}
	return nil
}

// writeOutput writes one unit's GLSL to outDir, or to w when outDir is
// empty. It returns the path written, if any.
func writeOutput(w io.Writer, outDir string, r glass.UnitResult) (string, error) {
	if outDir == "" {
		_, err := io.WriteString(w, r.Output.GLSL)
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	name := strings.TrimSuffix(filepath.Base(r.Path), ".ll") + ".glsl"
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, []byte(r.Output.GLSL), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// compileOne is used by watch to retranslate a single unit.
func compileOne(ctx context.Context, unit glass.Unit, opts glass.Options) glass.UnitResult {
	results, err := glass.CompileAll(ctx, []glass.Unit{unit}, opts, 1)
	if err != nil {
		return glass.UnitResult{Unit: unit, Err: err}
	}
	return results[0]
}

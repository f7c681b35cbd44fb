// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glass translates LLVM-style SSA shader IR into GLSL.
//
// A translation unit is a .ll module plus an optional TOML sidecar carrying
// the interface metadata SSA cannot express (qualifiers, bindings, block
// layouts, precision). The pipeline is:
//  1. Parse the .ll text with llir/llvm
//  2. Walk every function's CFG as structured control flow (package walk)
//  3. Build an ir.Module from the walk (package translate)
//  4. Validate and print GLSL (package glsl)
//
// Example usage:
//
//	out, err := glass.CompileSource(src, meta, glass.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(out.GLSL)
//
// For access to the structured module alone, use Translate:
//
//	res, err := glass.Translate(module, table, glass.DefaultOptions())
package glass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/llir/llvm/asm"
	llir "github.com/llir/llvm/ir"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/glass/glsl"
	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
	"github.com/gogpu/glass/report"
	"github.com/gogpu/glass/translate"
	"github.com/gogpu/glass/walk"
)

// Options configures a translation.
type Options struct {
	// Stage is used when the metadata table does not name one.
	Stage ir.ShaderStage

	// EntryPoint names the entry function (default: "main").
	EntryPoint string

	// HoistBlocks declares each member of an anonymous interface block as
	// its own global.
	HoistBlocks bool

	// NoInline keeps every value in a temporary instead of folding
	// single-use values into their consumer.
	NoInline bool

	// WriteMaskStores keeps partial vector writes as swizzle stores.
	WriteMaskStores bool

	// GLSL configures the emitter.
	GLSL glsl.Options

	// Logger receives debug traces. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		Stage:       ir.StageFragment,
		EntryPoint:  "main",
		HoistBlocks: true,
		GLSL:        glsl.DefaultOptions(),
	}
}

func (o Options) translator(md *metadata.Table) (*translate.Translator, error) {
	stage := o.Stage
	if md != nil && md.Stage != "" {
		s, ok := ir.ParseStage(md.Stage)
		if !ok {
			return nil, fmt.Errorf("%w: unknown stage %q", metadata.ErrInvalid, md.Stage)
		}
		stage = s
	}
	topts := translate.Options{
		Stage:           stage,
		EntryPoint:      o.EntryPoint,
		Metadata:        md,
		WriteMaskStores: o.WriteMaskStores,
		Logger:          o.Logger,
	}
	if topts.EntryPoint == "" {
		topts.EntryPoint = "main"
	}
	if o.HoistBlocks {
		topts.Hoist = translate.HoistBlockMembers
	}
	if o.NoInline {
		topts.Inline = translate.NoInlinePolicy{}
	}
	return translate.New(topts), nil
}

// Translate builds the structured module for m. The result is returned
// alongside the error when the translator got far enough to produce one,
// so that its info log can be reported.
func Translate(m *llir.Module, md *metadata.Table, opts Options) (*translate.Result, error) {
	tr, err := opts.translator(md)
	if err != nil {
		return nil, err
	}
	walkErr := walk.Module(m, md, tr)
	res, err := tr.End()
	if walkErr != nil {
		return res, fmt.Errorf("walk error: %w", walkErr)
	}
	if err != nil {
		return res, fmt.Errorf("translation error: %w", err)
	}
	return res, nil
}

// TranslateSource parses src as .ll text and meta as a TOML sidecar (may be
// empty) and translates the result.
func TranslateSource(src, meta string, opts Options) (*translate.Result, error) {
	m, md, err := parse(src, meta)
	if err != nil {
		return nil, err
	}
	return Translate(m, md, opts)
}

func parse(src, meta string) (*llir.Module, *metadata.Table, error) {
	m, err := asm.ParseString("", src)
	if err != nil {
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}
	var md *metadata.Table
	if strings.TrimSpace(meta) != "" {
		md, err = metadata.Decode(meta)
		if err != nil {
			return nil, nil, fmt.Errorf("metadata error: %w", err)
		}
	}
	return m, md, nil
}

// Output is the outcome of a full compilation to GLSL.
type Output struct {
	Result *translate.Result
	GLSL   string
	Info   glsl.TranslationInfo
}

// CompileGLSL translates m and prints the module as GLSL.
func CompileGLSL(m *llir.Module, md *metadata.Table, opts Options) (*Output, error) {
	res, err := Translate(m, md, opts)
	out := &Output{Result: res}
	if err != nil {
		return out, err
	}
	out.GLSL, out.Info, err = glsl.Compile(res.Module, opts.GLSL)
	if err != nil {
		return out, fmt.Errorf("GLSL generation error: %w", err)
	}
	return out, nil
}

// CompileSource is CompileGLSL over .ll and TOML text.
func CompileSource(src, meta string, opts Options) (*Output, error) {
	m, md, err := parse(src, meta)
	if err != nil {
		return nil, err
	}
	return CompileGLSL(m, md, opts)
}

// SidecarPath returns the metadata file conventionally paired with a .ll
// file: shader.ll pairs with shader.toml.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, ".ll") + ".toml"
}

// CompileFile reads the .ll file at path and, when meta is empty, the
// sidecar next to it if one exists.
func CompileFile(path, meta string, opts Options) (*Output, error) {
	m, err := asm.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if meta == "" {
		if _, err := os.Stat(SidecarPath(path)); err == nil {
			meta = SidecarPath(path)
		}
	}
	var md *metadata.Table
	if meta != "" {
		md, err = metadata.LoadFile(meta)
		if err != nil {
			return nil, fmt.Errorf("metadata error: %w", err)
		}
	}
	return CompileGLSL(m, md, opts)
}

// Unit is one file of a batch.
type Unit struct {
	Path string
	Meta string // sidecar path; empty selects SidecarPath(Path) if present
}

// UnitResult is the outcome of one unit of a batch.
type UnitResult struct {
	Unit
	Output *Output
	Err    error
}

// CompileAll compiles units concurrently with at most jobs in flight
// (jobs <= 0 means GOMAXPROCS). Each unit gets its own Translator. Unit
// failures are reported in the results; the returned error is only set
// when ctx is cancelled.
func CompileAll(ctx context.Context, units []Unit, opts Options, jobs int) ([]UnitResult, error) {
	results := make([]UnitResult, len(units))
	if len(units) == 0 {
		return results, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(units)))

	for i, u := range units {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			out, err := CompileFile(u.Path, u.Meta, opts)
			results[i] = UnitResult{Unit: u, Output: out, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Failed reports whether any result carries an error.
func Failed(results []UnitResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// NewReport summarizes a batch. Units are sorted by path.
func NewReport(tool string, created time.Time, results []UnitResult) *report.Report {
	r := &report.Report{Schema: report.SchemaVersion, Tool: tool, Created: created.Unix()}
	for _, res := range results {
		var tres *translate.Result
		if res.Output != nil {
			tres = res.Output.Result
		}
		u := report.FromResult(res.Path, tres, res.Err)
		if res.Output != nil && res.Output.GLSL != "" {
			u.GLSLVersion = res.Output.Info.RequiredVersion.String()
			u.Extensions = append(u.Extensions, res.Output.Info.UsedExtensions...)
		}
		r.Units = append(r.Units, u)
	}
	r.Sort()
	return r
}

// IsTranslationError reports whether err came from the translator rather
// than from parsing or emission.
func IsTranslationError(err error) bool {
	return errors.Is(err, translate.ErrTranslation) || errors.Is(err, walk.ErrUnstructured)
}

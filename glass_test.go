// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glass

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gogpu/glass/glsl"
	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

const scaleShader = `
@color = global float 0.0
@x = global float 0.0

define void @main() {
entry:
  %0 = load float, float* @x
  %1 = fmul float %0, 2.0
  store float %1, float* @color
  ret void
}
`

const scaleMeta = `
stage = "fragment"

[globals.color]
qualifier = "out"
location = 0

[globals.x]
qualifier = "in"
location = 1
`

func TestCompileSource(t *testing.T) {
	out, err := CompileSource(scaleShader, scaleMeta, DefaultOptions())
	if err != nil {
		t.Fatalf("CompileSource: %v", err)
	}

	for _, want := range []string{"#version 330 core", "void main()", "float color;", "float x;", "color = "} {
		if !strings.Contains(out.GLSL, want) {
			t.Errorf("output missing %q:\n%s", want, out.GLSL)
		}
	}
	if out.Info.RequiredVersion != glsl.Version330 {
		t.Errorf("RequiredVersion = %v", out.Info.RequiredVersion)
	}
	if len(out.Result.Module.EntryPoints) != 1 || out.Result.Module.EntryPoints[0].Stage != ir.StageFragment {
		t.Errorf("entry points = %+v", out.Result.Module.EntryPoints)
	}
}

func TestTranslateSource_StageFromOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Stage = ir.StageVertex
	res, err := TranslateSource(scaleShader, "", opts)
	if err != nil {
		t.Fatalf("TranslateSource: %v", err)
	}
	if got := res.Module.EntryPoints[0].Stage; got != ir.StageVertex {
		t.Errorf("stage = %v, want vertex", got)
	}
}

func TestTranslateSource_Errors(t *testing.T) {
	tests := []struct {
		name        string
		src, meta   string
		entry       string
		translation bool
		wantErr     error
	}{
		{name: "bad ll", src: "define void @main( {", wantErr: nil},
		{name: "bad toml", src: scaleShader, meta: "stage = ", wantErr: nil},
		{name: "bad stage", src: scaleShader, meta: `stage = "pixel"`, wantErr: metadata.ErrInvalid},
		{name: "missing entry", src: scaleShader, entry: "frag_main", translation: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.entry != "" {
				opts.EntryPoint = tt.entry
			}
			_, err := TranslateSource(tt.src, tt.meta, opts)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if got := IsTranslationError(err); got != tt.translation {
				t.Errorf("IsTranslationError(%v) = %v, want %v", err, got, tt.translation)
			}
		})
	}
}

func TestSidecarPath(t *testing.T) {
	if got := SidecarPath("shaders/blur.ll"); got != "shaders/blur.toml" {
		t.Errorf("SidecarPath = %q", got)
	}
}

func writeUnit(t *testing.T, dir, name, src, meta string) string {
	t.Helper()
	path := filepath.Join(dir, name+".ll")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if meta != "" {
		if err := os.WriteFile(SidecarPath(path), []byte(meta), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestCompileAll(t *testing.T) {
	dir := t.TempDir()
	units := []Unit{
		{Path: writeUnit(t, dir, "b", scaleShader, scaleMeta)},
		{Path: writeUnit(t, dir, "a", scaleShader, "")},
		{Path: writeUnit(t, dir, "broken", "not llvm", "")},
		{Path: filepath.Join(dir, "missing.ll")},
	}

	results, err := CompileAll(context.Background(), units, DefaultOptions(), 2)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if len(results) != len(units) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if r.Path != units[i].Path {
			t.Errorf("result %d is for %s, want %s", i, r.Path, units[i].Path)
		}
	}
	if results[0].Err != nil || !strings.Contains(results[0].Output.GLSL, "void main()") {
		t.Errorf("unit b: err = %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("unit a without sidecar: %v", results[1].Err)
	}
	if results[2].Err == nil || results[3].Err == nil {
		t.Error("expected errors for the broken and missing units")
	}
	if !Failed(results) {
		t.Error("Failed() = false")
	}

	rep := NewReport("glassc test", time.Unix(1700000000, 0), results)
	if rep.Failed() != 2 || len(rep.Units) != 4 {
		t.Errorf("report: %d units, %d failed", len(rep.Units), rep.Failed())
	}
	if rep.Units[0].Source != units[1].Path {
		t.Errorf("report not sorted: first unit %s", rep.Units[0].Source)
	}
	if rep.Units[0].GLSLVersion != "330 core" {
		t.Errorf("GLSLVersion = %q", rep.Units[0].GLSLVersion)
	}
}

func TestCompileAll_Cancelled(t *testing.T) {
	dir := t.TempDir()
	units := []Unit{{Path: writeUnit(t, dir, "a", scaleShader, scaleMeta)}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CompileAll(ctx, units, DefaultOptions(), 1); !errors.Is(err, context.Canceled) {
		t.Errorf("CompileAll error = %v, want context.Canceled", err)
	}
}

func TestCompileAll_Empty(t *testing.T) {
	results, err := CompileAll(context.Background(), nil, DefaultOptions(), 0)
	if err != nil || len(results) != 0 {
		t.Errorf("CompileAll(nil) = %v, %v", results, err)
	}
}

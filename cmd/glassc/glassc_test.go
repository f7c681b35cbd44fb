// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/report"
)

func TestUnitFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"shaders/blur.ll", "shaders/blur.ll", true},
		{"shaders/blur.toml", "shaders/blur.ll", true},
		{"shaders/blur.glsl", "", false},
		{"shaders/.blur.ll.swp", "", false},
	}
	for _, tt := range tests {
		got, ok := unitFor(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("unitFor(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCollectUnits(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.ll", "a.ll", "a.toml", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	units, err := collectUnits([]string{dir}, "")
	if err != nil {
		t.Fatalf("collectUnits: %v", err)
	}
	if len(units) != 2 || filepath.Base(units[0].Path) != "a.ll" || filepath.Base(units[1].Path) != "b.ll" {
		t.Errorf("units = %+v", units)
	}

	if _, err := collectUnits([]string{dir}, "x.toml"); err == nil {
		t.Error("--meta with several inputs should fail")
	}
	single, err := collectUnits([]string{filepath.Join(dir, "b.ll")}, "x.toml")
	if err != nil || single[0].Meta != "x.toml" {
		t.Errorf("single = %+v, %v", single, err)
	}
	if _, err := collectUnits([]string{t.TempDir()}, ""); err == nil {
		t.Error("empty directory should fail")
	}
}

func TestParseScalar(t *testing.T) {
	m := &ir.Module{Types: []ir.Type{
		{Inner: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}},
		{Inner: ir.ScalarType{Kind: ir.ScalarSint, Width: 4}},
		{Inner: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}},
		{Inner: ir.ScalarType{Kind: ir.ScalarBool, Width: 1}},
		{Inner: ir.VectorType{Size: ir.Vec2, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
	}}
	tests := []struct {
		ty   ir.TypeHandle
		text string
		want any
	}{
		{0, "1.5", float32(1.5)},
		{1, "-7", int32(-7)},
		{2, "0x10", uint32(16)},
		{3, "true", true},
	}
	for _, tt := range tests {
		got, err := parseScalar(m, tt.ty, tt.text)
		if err != nil {
			t.Errorf("parseScalar(%d, %q): %v", tt.ty, tt.text, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseScalar(%d, %q) = %v (%T), want %v", tt.ty, tt.text, got, got, tt.want)
		}
	}
	if _, err := parseScalar(m, 4, "1"); err == nil {
		t.Error("vector argument should fail")
	}
	if _, err := parseScalar(m, 9, "1"); err == nil {
		t.Error("invalid handle should fail")
	}
}

func TestPrintReport(t *testing.T) {
	rep := &report.Report{
		Schema: report.SchemaVersion,
		Tool:   "glassc test",
		Units: []report.Unit{
			{
				Source:        "a.ll",
				Stage:         "fragment",
				GLSLVersion:   "330 core",
				Output:        "out/a.glsl",
				MaxArrayIndex: map[string]int{"weights": 4},
				Functions:     []report.Function{{Name: "main", Expressions: 12, Loops: 2}},
			},
			{Source: "b.ll", Failed: true, Error: "parse error"},
		},
	}
	var buf bytes.Buffer
	printReport(&buf, rep, true)
	out := buf.String()
	for _, want := range []string{"2 units, 1 failed", "glsl 330 core", "out/a.glsl", "weights[4]", "error: parse error", "main"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

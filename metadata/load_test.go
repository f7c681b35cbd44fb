// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sidecar = `
stage = "fragment"

[aliases]
"_dbg_color" = "color"

[globals.color]
qualifier = "out"
location = 0
precision = "mediump"

[globals.uv]
qualifier = "in"
location = 1
interpolation = "noperspective"
centroid = true

[globals.anon]
qualifier = "uniform"
layout = "std140"
type_name = "Transforms"
anonymous = true
location = 0x10002
members = [{ name = "mvp", matrix = true }, { name = "tint", precision = "highp" }]

[globals.tex]
qualifier = "uniform"
sampler = { dim = "2D", shadow = true }
`

func TestDecode(t *testing.T) {
	table, err := Decode(sidecar)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if table.Stage != "fragment" {
		t.Errorf("Stage = %q", table.Stage)
	}
	if got := table.Aliases["_dbg_color"]; got != "color" {
		t.Errorf("alias = %q", got)
	}

	color := table.Global("color")
	if color == nil || color.Qualifier != QualifierOut || color.Precision != PrecisionMedium {
		t.Fatalf("color = %+v", color)
	}
	if color.Name != "color" {
		t.Errorf("color.Name = %q, want the table key", color.Name)
	}

	uv := table.Global("uv")
	if uv.Interpolation != InterpolationNoPerspective || !uv.Centroid {
		t.Errorf("uv = %+v", uv)
	}

	anon := table.Global("anon")
	if !anon.IsBlock() || !anon.Anonymous || anon.Layout != LayoutStd140 {
		t.Errorf("anon = %+v", anon)
	}
	if set, binding, ok := anon.SetBinding(); !ok || set != 1 || binding != 2 {
		t.Errorf("SetBinding() = %d, %d, %v", set, binding, ok)
	}
	if m := anon.Member(0); m == nil || !m.Matrix || m.Name != "mvp" {
		t.Errorf("member 0 = %+v", m)
	}
	if anon.Member(5) != nil {
		t.Error("out of range member should be nil")
	}

	if tex := table.Global("tex"); tex.Sampler == nil || !tex.Sampler.Shadow || tex.Sampler.Dim != "2D" {
		t.Errorf("tex = %+v", tex)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		invalid bool
	}{
		{"bad qualifier", `[globals.x]` + "\n" + `qualifier = "inout"`, false},
		{"unknown key", `[globals.x]` + "\n" + `colour = 1`, true},
		{"anonymous without layout", `[globals.x]` + "\n" + `anonymous = true`, true},
		{"interpolated uniform", `[globals.x]` + "\n" + `qualifier = "uniform"` + "\n" + `interpolation = "flat"`, true},
		{"self alias", `[aliases]` + "\n" + `a = "a"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrInvalid); got != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalid) = %v, want %v (err: %v)", got, tt.invalid, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shader.toml")
	if err := os.WriteFile(path, []byte(sidecar), 0o600); err != nil {
		t.Fatal(err)
	}
	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(table.Globals) != 4 {
		t.Errorf("got %d globals, want 4", len(table.Globals))
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	if table.Global("x") != nil || table.Type("x") != nil {
		t.Error("nil table lookups should return nil")
	}
	var n *Node
	if n.IsBlock() || n.Member(0) != nil {
		t.Error("nil node accessors should be zero")
	}
}

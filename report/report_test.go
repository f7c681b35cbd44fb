// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/translate"
	"github.com/gogpu/glass/walk"
)

func translateModule(t *testing.T, m *llir.Module, entry string) (*translate.Result, error) {
	t.Helper()
	tr := translate.New(translate.Options{Stage: ir.StageFragment, EntryPoint: entry})
	if err := walk.Module(m, nil, tr); err != nil {
		t.Fatalf("walk.Module: %v", err)
	}
	return tr.End()
}

func voidModule(name string) *llir.Module {
	m := llir.NewModule()
	f := m.NewFunc(name, types.Void)
	f.NewBlock("entry").NewRet(nil)
	return m
}

func TestFromResult(t *testing.T) {
	res, err := translateModule(t, voidModule("main"), "main")
	if err != nil {
		t.Fatalf("End: %v", err)
	}

	u := FromResult("a.ll", res, nil)
	if u.Failed || u.Error != "" {
		t.Errorf("unit failed: %+v", u)
	}
	if u.Stage != ir.StageFragment.String() {
		t.Errorf("Stage = %q", u.Stage)
	}
	if len(u.Functions) != 1 || u.Functions[0].Name != "main" {
		t.Errorf("Functions = %+v", u.Functions)
	}
	if len(u.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %+v", u.Diagnostics)
	}
}

func TestFromResult_MissingEntry(t *testing.T) {
	res, err := translateModule(t, voidModule("helper"), "main")
	if err == nil {
		t.Fatal("expected an error for a missing entry point")
	}

	u := FromResult("b.ll", res, err)
	if !u.Failed {
		t.Error("Failed = false")
	}
	if u.Stage != "" {
		t.Errorf("Stage = %q without an entry point", u.Stage)
	}
	if len(u.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %+v", u.Diagnostics)
	}
	d := u.Diagnostics[0]
	if d.Severity != "ERROR" || d.Construct != "entry point" {
		t.Errorf("diagnostic = %+v", d)
	}
	if got := d.String(); !strings.Contains(got, `no function named "main"`) {
		t.Errorf("String() = %q", got)
	}
}

func TestFromResult_Nil(t *testing.T) {
	u := FromResult("c.ll", nil, errors.New("parse error"))
	if !u.Failed || u.Error != "parse error" {
		t.Errorf("unit = %+v", u)
	}
}

func TestWriteReadFile(t *testing.T) {
	r := &Report{
		Tool:    "glassc test",
		Created: 1700000000,
		Units: []Unit{
			{Source: "z.ll", Failed: true, Error: "boom"},
			{
				Source:        "a.ll",
				Stage:         "fragment",
				GLSLVersion:   "330 core",
				Extensions:    []string{"GL_ARB_gpu_shader_fp64"},
				Functions:     []Function{{Name: "main", Expressions: 4, Loops: 1}},
				Diagnostics:   []Diagnostic{{Severity: "WARNING", Construct: "array", Value: "lights", Message: "never indexed"}},
				MaxArrayIndex: map[string]int{"lights": 3},
			},
		},
	}
	r.Sort()

	path := filepath.Join(t.TempDir(), "out", "glass.report")
	if err := WriteFile(path, r); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if got.Schema != SchemaVersion {
		t.Errorf("Schema = %d", got.Schema)
	}
	if len(got.Units) != 2 || got.Units[0].Source != "a.ll" {
		t.Fatalf("Units = %+v", got.Units)
	}
	if got.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", got.Failed())
	}
	a := got.Units[0]
	if a.MaxArrayIndex["lights"] != 3 || a.Functions[0].Loops != 1 {
		t.Errorf("unit a = %+v", a)
	}
	if len(a.Extensions) != 1 || a.Extensions[0] != "GL_ARB_gpu_shader_fp64" {
		t.Errorf("Extensions = %v", a.Extensions)
	}
}

func TestDecode_SchemaMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&Report{Schema: SchemaVersion + 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(&buf); !errors.Is(err, ErrSchema) {
		t.Errorf("Decode error = %v, want ErrSchema", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode(strings.NewReader("\xc1\xc1")); err == nil {
		t.Error("expected an error for invalid msgpack")
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"errors"
	"testing"

	"github.com/gogpu/glass/ir"
)

// =============================================================================
// Version Tests
// =============================================================================

func TestVersion_String(t *testing.T) {
	tests := []struct {
		version Version
		want    string
	}{
		{Version150, "150 core"},
		{Version330, "330 core"},
		{Version410, "410 core"},
		{Version450, "450 core"},
		{VersionES300, "300 es"},
		{VersionES310, "310 es"},
		{Version{Major: 1, Minor: 20}, "120"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.version.String(); got != tt.want {
				t.Errorf("Version.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"450", Version450},
		{"330 core", Version330},
		{"300 es", VersionES300},
		{"300es", VersionES300},
		{"4.5", Version450},
		{"4.1", Version410},
		{"3.30", Version330},
		{"3.0-es", VersionES300},
		{"3.1 es", VersionES310},
		{"1.5", Version150},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if err != nil {
				t.Fatalf("ParseVersion(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseVersion_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "45", "10.0", "4000"} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseVersion(in); !errors.Is(err, ErrVersion) {
				t.Errorf("ParseVersion(%q) error = %v, want ErrVersion", in, err)
			}
		})
	}
}

func TestVersion_Features(t *testing.T) {
	tests := []struct {
		version   Version
		storage   bool
		binding   bool
		varyings  bool
		attribute bool
		geometry  bool
	}{
		{Version150, false, false, false, false, true},
		{Version330, false, false, false, true, true},
		{Version410, false, false, true, true, true},
		{Version420, false, true, true, true, true},
		{Version430, true, true, true, true, true},
		{VersionES300, false, false, false, true, false},
		{VersionES310, true, true, true, true, false},
		{VersionES320, true, true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			v := tt.version
			if got := v.SupportsStorageBuffers(); got != tt.storage {
				t.Errorf("SupportsStorageBuffers() = %v, want %v", got, tt.storage)
			}
			if got := v.SupportsExplicitBinding(); got != tt.binding {
				t.Errorf("SupportsExplicitBinding() = %v, want %v", got, tt.binding)
			}
			if got := v.SupportsVaryingLocations(); got != tt.varyings {
				t.Errorf("SupportsVaryingLocations() = %v, want %v", got, tt.varyings)
			}
			if got := v.SupportsAttributeLocations(); got != tt.attribute {
				t.Errorf("SupportsAttributeLocations() = %v, want %v", got, tt.attribute)
			}
			if got := v.SupportsGeometry(); got != tt.geometry {
				t.Errorf("SupportsGeometry() = %v, want %v", got, tt.geometry)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.LangVersion != Version330 {
		t.Errorf("LangVersion = %v, want %v", opts.LangVersion, Version330)
	}
	if !opts.ForceHighPrecision {
		t.Error("ForceHighPrecision should default to true")
	}
	if !opts.Validate {
		t.Error("Validate should default to true")
	}
}

// =============================================================================
// Type Name Tests
// =============================================================================

func TestScalarName(t *testing.T) {
	tests := []struct {
		scalar ir.ScalarType
		want   string
	}{
		{ir.ScalarType{Kind: ir.ScalarBool, Width: 1}, "bool"},
		{ir.ScalarType{Kind: ir.ScalarSint, Width: 4}, "int"},
		{ir.ScalarType{Kind: ir.ScalarUint, Width: 4}, "uint"},
		{ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}, "float"},
		{ir.ScalarType{Kind: ir.ScalarFloat, Width: 8}, "double"},
		{ir.ScalarType{Kind: ir.ScalarSint, Width: 8}, "int64_t"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := scalarName(tt.scalar); got != tt.want {
				t.Errorf("scalarName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVectorAndMatrixNames(t *testing.T) {
	f32 := ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	tests := []struct {
		inner ir.TypeInner
		want  string
	}{
		{ir.VectorType{Size: ir.Vec2, Scalar: f32}, "vec2"},
		{ir.VectorType{Size: ir.Vec3, Scalar: ir.ScalarType{Kind: ir.ScalarSint, Width: 4}}, "ivec3"},
		{ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarBool, Width: 1}}, "bvec4"},
		{ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}}, "uvec4"},
		{ir.VectorType{Size: ir.Vec2, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 8}}, "dvec2"},
		{ir.MatrixType{Columns: ir.Vec4, Rows: ir.Vec4, Scalar: f32}, "mat4"},
		{ir.MatrixType{Columns: ir.Vec2, Rows: ir.Vec3, Scalar: f32}, "mat2x3"},
		{ir.MatrixType{Columns: ir.Vec3, Rows: ir.Vec3, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 8}}, "dmat3"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var got string
			switch v := tt.inner.(type) {
			case ir.VectorType:
				got = vectorToGLSL(v)
			case ir.MatrixType:
				got = matrixToGLSL(v)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageToGLSL(t *testing.T) {
	tests := []struct {
		image ir.ImageType
		want  string
	}{
		{ir.ImageType{Dim: ir.Dim2D, Kind: ir.ScalarFloat}, "sampler2D"},
		{ir.ImageType{Dim: ir.Dim2D, Kind: ir.ScalarSint}, "isampler2D"},
		{ir.ImageType{Dim: ir.Dim3D, Kind: ir.ScalarUint}, "usampler3D"},
		{ir.ImageType{Dim: ir.DimCube, Kind: ir.ScalarFloat}, "samplerCube"},
		{ir.ImageType{Dim: ir.Dim2D, Arrayed: true, Kind: ir.ScalarFloat}, "sampler2DArray"},
		{ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassDepth, Kind: ir.ScalarFloat}, "sampler2DShadow"},
		{ir.ImageType{Dim: ir.Dim2D, Arrayed: true, Class: ir.ImageClassDepth, Kind: ir.ScalarFloat}, "sampler2DArrayShadow"},
		{ir.ImageType{Dim: ir.DimRect, Kind: ir.ScalarFloat}, "sampler2DRect"},
		{ir.ImageType{Dim: ir.DimBuffer, Kind: ir.ScalarFloat}, "samplerBuffer"},
		{ir.ImageType{Dim: ir.Dim2D, Multisampled: true, Kind: ir.ScalarFloat}, "sampler2DMS"},
		{ir.ImageType{Dim: ir.Dim2D, Class: ir.ImageClassStorage, Kind: ir.ScalarFloat}, "image2D"},
	}

	w := newWriter(&ir.Module{}, &Options{LangVersion: Version450})
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := w.imageToGLSL(tt.image); got != tt.want {
				t.Errorf("imageToGLSL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCubeArrayNeedsExtension(t *testing.T) {
	w := newWriter(&ir.Module{}, &Options{LangVersion: Version330})
	if got := w.imageToGLSL(ir.ImageType{Dim: ir.DimCube, Arrayed: true, Kind: ir.ScalarFloat}); got != "samplerCubeArray" {
		t.Errorf("imageToGLSL() = %q", got)
	}
	if len(w.extensions) != 1 || w.extensions[0] != "GL_ARB_texture_cube_map_array" {
		t.Errorf("extensions = %v", w.extensions)
	}
}

// =============================================================================
// Naming Tests
// =============================================================================

func TestEscapeKeyword(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"color", "color"},
		{"float", "_float"},
		{"texture", "_texture"},
		{"gl_Custom", "_gl_Custom"},
		{"", "_unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := escapeKeyword(tt.in); got != tt.want {
				t.Errorf("escapeKeyword(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"color", "color"},
		{"x.i", "x_i"},
		{"add.ptr.i.i", "add_ptr_i_i"},
		{"1tmp", "_1tmp"},
		{"a__b", "a_b"},
		{"a-.b", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitize(tt.in); got != tt.want {
				t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNamer_UniqueNames(t *testing.T) {
	n := newNamer()
	first := n.call("temp")
	second := n.call("temp")
	third := n.call("temp.1")

	if first != "temp" {
		t.Errorf("first = %q, want temp", first)
	}
	if second == first {
		t.Errorf("second name %q collides with first", second)
	}
	if second != "temp_1" {
		t.Errorf("second = %q, want temp_1", second)
	}
	if third != "temp_1_2" {
		t.Errorf("third = %q, want temp_1_2", third)
	}
}

func TestNamer_Reserve(t *testing.T) {
	n := newNamer()
	n.reserve("main")
	if got := n.call("main"); got == "main" {
		t.Errorf("call(main) = %q after reserve", got)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float32
		want string
	}{
		{1, "1.0"},
		{0.5, "0.5"},
		{-2, "-2.0"},
		{1e20, "1e+20"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.in); got != tt.want {
			t.Errorf("formatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := formatFloat64(2); got != "2.0lf" {
		t.Errorf("formatFloat64(2) = %q, want 2.0lf", got)
	}
}

func TestCompile_NilModule(t *testing.T) {
	if _, _, err := Compile(nil, DefaultOptions()); err == nil {
		t.Fatal("expected an error for a nil module")
	}
}

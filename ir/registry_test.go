// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"testing"
)

func TestTypeRegistry_ScalarDeduplication(t *testing.T) {
	registry := NewTypeRegistry()

	f32a := registry.GetOrCreate("float", ScalarType{Kind: ScalarFloat, Width: 4})
	f32b := registry.GetOrCreate("float", ScalarType{Kind: ScalarFloat, Width: 4})

	if f32a != f32b {
		t.Errorf("Expected same handle for identical scalar types, got %d and %d", f32a, f32b)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 type, got %d", registry.Count())
	}
}

func TestTypeRegistry_DifferentScalars(t *testing.T) {
	registry := NewTypeRegistry()

	handles := []TypeHandle{
		registry.GetOrCreate("", ScalarType{Kind: ScalarFloat, Width: 4}),
		registry.GetOrCreate("", ScalarType{Kind: ScalarSint, Width: 4}),
		registry.GetOrCreate("", ScalarType{Kind: ScalarUint, Width: 4}),
		registry.GetOrCreate("", ScalarType{Kind: ScalarFloat, Width: 8}),
		registry.GetOrCreate("", ScalarType{Kind: ScalarBool, Width: 1}),
	}
	for i := 0; i < len(handles); i++ {
		for j := i + 1; j < len(handles); j++ {
			if handles[i] == handles[j] {
				t.Errorf("Expected different handles for different types, got %d == %d", handles[i], handles[j])
			}
		}
	}
}

func TestTypeRegistry_StructsAreNominal(t *testing.T) {
	registry := NewTypeRegistry()
	f32 := registry.GetOrCreate("", ScalarType{Kind: ScalarFloat, Width: 4})
	members := []StructMember{{Name: "x", Type: f32}}

	a := registry.GetOrCreate("A", StructType{Members: members, Span: 4})
	b := registry.GetOrCreate("B", StructType{Members: members, Span: 4})
	a2 := registry.GetOrCreate("A", StructType{Members: members, Span: 4})

	if a == b {
		t.Errorf("structs with different names share handle %d", a)
	}
	if a != a2 {
		t.Errorf("same struct registered twice: %d and %d", a, a2)
	}
}

func TestTypeRegistry_ImageKind(t *testing.T) {
	registry := NewTypeRegistry()
	f := registry.GetOrCreate("", ImageType{Dim: Dim2D, Kind: ScalarFloat})
	i := registry.GetOrCreate("", ImageType{Dim: Dim2D, Kind: ScalarSint})
	if f == i {
		t.Errorf("sampler2D and isampler2D share handle %d", f)
	}
}

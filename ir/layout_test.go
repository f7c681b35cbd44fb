// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import "testing"

func TestLayouter(t *testing.T) {
	registry := NewTypeRegistry()
	f32 := registry.GetOrCreate("", ScalarType{Kind: ScalarFloat, Width: 4})
	vec3 := registry.GetOrCreate("", VectorType{Size: Vec3, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}})
	mat4 := registry.GetOrCreate("", MatrixType{Columns: Vec4, Rows: Vec4, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}})
	n := uint32(4)
	floats := registry.GetOrCreate("", ArrayType{Base: f32, Size: ArraySize{Constant: &n}})

	tests := []struct {
		name   string
		layout BlockLayout
		handle TypeHandle
		size   uint32
		align  uint32
	}{
		{"float", LayoutStd430, f32, 4, 4},
		{"vec3", LayoutStd430, vec3, 12, 16},
		{"mat4", LayoutStd140, mat4, 64, 16},
		{"float[4] std430", LayoutStd430, floats, 16, 4},
		{"float[4] std140", LayoutStd140, floats, 64, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLayouter(registry.GetTypes(), tt.layout).Layout(tt.handle)
			if got.Size != tt.size || got.Alignment != tt.align {
				t.Errorf("Layout() = %+v, want size %d align %d", got, tt.size, tt.align)
			}
		})
	}
}

func TestLayouter_MemberOffsets(t *testing.T) {
	registry := NewTypeRegistry()
	f32 := registry.GetOrCreate("", ScalarType{Kind: ScalarFloat, Width: 4})
	vec3 := registry.GetOrCreate("", VectorType{Size: Vec3, Scalar: ScalarType{Kind: ScalarFloat, Width: 4}})
	members := []StructMember{{Name: "a", Type: f32}, {Name: "b", Type: vec3}, {Name: "c", Type: f32}}

	span := NewLayouter(registry.GetTypes(), LayoutStd140).MemberOffsets(members)

	want := []uint32{0, 16, 28}
	for i, m := range members {
		if m.Offset != want[i] {
			t.Errorf("member %s offset = %d, want %d", m.Name, m.Offset, want[i])
		}
	}
	if span != 32 {
		t.Errorf("span = %d, want 32", span)
	}
}

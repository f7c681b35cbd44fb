// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import "testing"

func TestResolveExpressionType(t *testing.T) {
	f32 := ScalarType{Kind: ScalarFloat, Width: 4}
	module := &Module{Types: []Type{
		{Inner: f32},
		{Inner: VectorType{Size: Vec4, Scalar: f32}},
		{Inner: MatrixType{Columns: Vec4, Rows: Vec4, Scalar: f32}},
		{Inner: ImageType{Dim: Dim2D, Class: ImageClassDepth, Kind: ScalarFloat}},
	}}
	fn := &Function{
		LocalVars: []LocalVariable{{Name: "v", Type: 1}, {Name: "m", Type: 2}, {Name: "s", Type: 3}},
		Expressions: []Expression{
			{Kind: ExprLocalVariable{Variable: 0}},                    // 0
			{Kind: ExprLoad{Pointer: 0}},                              // 1 vec4
			{Kind: ExprAccessIndex{Base: 0, Index: 2}},                // 2 float
			{Kind: ExprLocalVariable{Variable: 1}},                    // 3
			{Kind: ExprBinary{Op: BinaryMultiply, Left: 3, Right: 1}}, // 4 vec4
			{Kind: ExprBinary{Op: BinaryLess, Left: 1, Right: 1}},     // 5 bvec4
			{Kind: ExprAs{Expr: 1, Kind: ScalarSint}},                 // 6 ivec4 bitcast
			{Kind: ExprLocalVariable{Variable: 2}},                    // 7
			{Kind: ExprImageSample{Image: 7, Coordinate: 1, DepthRef: &[]ExpressionHandle{2}[0], Level: SampleLevelAuto{}}}, // 8 float
			{Kind: ExprImageQuery{Image: 7, Query: ImageQuerySize{}}},                                                       // 9 ivec2
		},
	}

	tests := []struct {
		handle ExpressionHandle
		want   TypeInner
	}{
		{1, VectorType{Size: Vec4, Scalar: f32}},
		{2, f32},
		{4, VectorType{Size: Vec4, Scalar: f32}},
		{5, VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarBool, Width: 1}}},
		{6, VectorType{Size: Vec4, Scalar: ScalarType{Kind: ScalarSint, Width: 4}}},
		{8, f32},
		{9, VectorType{Size: Vec2, Scalar: ScalarType{Kind: ScalarSint, Width: 4}}},
	}
	for _, tt := range tests {
		res, err := ResolveExpressionType(module, fn, tt.handle)
		if err != nil {
			t.Errorf("expression %d: %v", tt.handle, err)
			continue
		}
		if got := res.Inner(module); got != tt.want {
			t.Errorf("expression %d: got %#v, want %#v", tt.handle, got, tt.want)
		}
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gogpu/glass/ir"
)

var (
	i32     = ir.ScalarType{Kind: ir.ScalarSint, Width: 4}
	f32     = ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	boolean = ir.ScalarType{Kind: ir.ScalarBool, Width: 1}
)

func expr(k ir.ExpressionKind) ir.Expression { return ir.Expression{Kind: k} }

func stmt(k ir.StatementKind) ir.Statement { return ir.Statement{Kind: k} }

func emit(start, end ir.ExpressionHandle) ir.Statement {
	return stmt(ir.StmtEmit{Range: ir.Range{Start: start, End: end}})
}

func ptr[T any](v T) *T { return &v }

// sumModule computes the sum of 0..9 with a counting loop.
func sumModule() *ir.Module {
	return &ir.Module{
		Types: []ir.Type{{Inner: i32}, {Inner: boolean}},
		Functions: []ir.Function{{
			Name:      "sum",
			Result:    &ir.FunctionResult{Type: 0},
			LocalVars: []ir.LocalVariable{{Name: "i", Type: 0}, {Name: "s", Type: 0}},
			Expressions: []ir.Expression{
				expr(ir.ExprLocalVariable{Variable: 0}),
				expr(ir.ExprLocalVariable{Variable: 1}),
				expr(ir.Literal{Value: ir.LiteralI32(10)}),
				expr(ir.ExprLoad{Pointer: 0}),
				expr(ir.ExprBinary{Op: ir.BinaryLess, Left: 3, Right: 2}),
				expr(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: 4}),
				expr(ir.ExprLoad{Pointer: 1}),
				expr(ir.ExprLoad{Pointer: 0}),
				expr(ir.ExprBinary{Op: ir.BinaryAdd, Left: 6, Right: 7}),
				expr(ir.ExprLoad{Pointer: 0}),
				expr(ir.Literal{Value: ir.LiteralI32(1)}),
				expr(ir.ExprBinary{Op: ir.BinaryAdd, Left: 9, Right: 10}),
				expr(ir.ExprLoad{Pointer: 1}),
			},
			Body: ir.Block{
				stmt(ir.StmtLoop{
					Body: ir.Block{
						emit(3, 6),
						stmt(ir.StmtIf{Condition: 5, Accept: ir.Block{stmt(ir.StmtBreak{})}}),
						emit(6, 9),
						stmt(ir.StmtStore{Pointer: 1, Value: 8}),
					},
					Continuing: ir.Block{
						emit(9, 12),
						stmt(ir.StmtStore{Pointer: 0, Value: 11}),
					},
				}),
				emit(12, 13),
				stmt(ir.StmtReturn{Value: ptr(ir.ExpressionHandle(12))}),
			},
		}},
	}
}

func TestRunLoop(t *testing.T) {
	mc, err := New(sumModule())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := mc.Run("sum")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != int32(45) {
		t.Errorf("sum = %v, want 45", got)
	}
}

func TestSwitchFallthrough(t *testing.T) {
	m := &ir.Module{
		Types: []ir.Type{{Inner: i32}},
		Functions: []ir.Function{{
			Name:      "pick",
			Arguments: []ir.FunctionArgument{{Name: "x", Type: 0}},
			Result:    &ir.FunctionResult{Type: 0},
			LocalVars: []ir.LocalVariable{{Name: "r", Type: 0}},
			Expressions: []ir.Expression{
				expr(ir.ExprFunctionArgument{Index: 0}),
				expr(ir.ExprLocalVariable{Variable: 0}),
				expr(ir.ExprLoad{Pointer: 1}),
				expr(ir.Literal{Value: ir.LiteralI32(1)}),
				expr(ir.ExprBinary{Op: ir.BinaryAdd, Left: 2, Right: 3}),
				expr(ir.ExprLoad{Pointer: 1}),
				expr(ir.Literal{Value: ir.LiteralI32(10)}),
				expr(ir.ExprBinary{Op: ir.BinaryAdd, Left: 5, Right: 6}),
				expr(ir.Literal{Value: ir.LiteralI32(100)}),
				expr(ir.ExprLoad{Pointer: 1}),
			},
			Body: ir.Block{
				stmt(ir.StmtSwitch{Selector: 0, Cases: []ir.SwitchCase{
					{Value: ir.SwitchValueI32(1), FallThrough: true, Body: ir.Block{
						emit(2, 5), stmt(ir.StmtStore{Pointer: 1, Value: 4}),
					}},
					{Value: ir.SwitchValueI32(2), Body: ir.Block{
						emit(5, 8), stmt(ir.StmtStore{Pointer: 1, Value: 7}),
					}},
					{Value: ir.SwitchValueDefault{}, Body: ir.Block{
						stmt(ir.StmtStore{Pointer: 1, Value: 8}),
					}},
				}}),
				emit(9, 10),
				stmt(ir.StmtReturn{Value: ptr(ir.ExpressionHandle(9))}),
			},
		}},
	}

	tests := []struct {
		x    int32
		want int32
	}{
		{1, 11},
		{2, 10},
		{5, 100},
	}
	for _, tt := range tests {
		mc, err := New(m)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		got, err := mc.Run("pick", tt.x)
		if err != nil {
			t.Fatalf("pick(%d): %v", tt.x, err)
		}
		if got != tt.want {
			t.Errorf("pick(%d) = %v, want %d", tt.x, got, tt.want)
		}
	}
}

func TestSwizzleStore(t *testing.T) {
	m := &ir.Module{
		Types: []ir.Type{
			{Inner: f32},
			{Inner: ir.VectorType{Size: ir.Vec4, Scalar: f32}},
			{Inner: ir.VectorType{Size: ir.Vec2, Scalar: f32}},
		},
		GlobalVariables: []ir.GlobalVariable{{Name: "color", Space: ir.SpaceOut, Type: 1}},
		Functions: []ir.Function{{
			Name: "main",
			Expressions: []ir.Expression{
				expr(ir.ExprGlobalVariable{Variable: 0}),
				expr(ir.ExprSwizzle{Size: ir.Vec2, Vector: 0, Pattern: [4]ir.SwizzleComponent{ir.SwizzleY, ir.SwizzleW}}),
				expr(ir.Literal{Value: ir.LiteralF32(1)}),
				expr(ir.Literal{Value: ir.LiteralF32(2)}),
				expr(ir.ExprCompose{Type: 2, Components: []ir.ExpressionHandle{2, 3}}),
			},
			Body: ir.Block{
				emit(1, 2),
				emit(4, 5),
				stmt(ir.StmtStore{Pointer: 1, Value: 4}),
			},
		}},
	}
	mc, err := New(m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := mc.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := mc.Global("color")
	if err != nil {
		t.Fatal(err)
	}
	want := Composite{float32(0), float32(1), float32(0), float32(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("color = %v, want %v", got, want)
	}
}

func TestUseBeforeEmit(t *testing.T) {
	m := &ir.Module{
		Types: []ir.Type{{Inner: i32}},
		Functions: []ir.Function{{
			Name:      "f",
			Result:    &ir.FunctionResult{Type: 0},
			LocalVars: []ir.LocalVariable{{Name: "x", Type: 0}},
			Expressions: []ir.Expression{
				expr(ir.ExprLocalVariable{Variable: 0}),
				expr(ir.ExprLoad{Pointer: 0}),
			},
			Body: ir.Block{stmt(ir.StmtReturn{Value: ptr(ir.ExpressionHandle(1))})},
		}},
	}
	mc, err := New(m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = mc.Run("f")
	if err == nil || !strings.Contains(err.Error(), "before emit") {
		t.Errorf("Run error = %v, want use before emit", err)
	}
}

func TestStepLimit(t *testing.T) {
	m := &ir.Module{
		Functions: []ir.Function{{
			Name: "spin",
			Body: ir.Block{stmt(ir.StmtLoop{})},
		}},
	}
	mc, err := New(m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mc.MaxSteps = 100
	if _, err := mc.Run("spin"); !errors.Is(err, ErrStepLimit) {
		t.Errorf("Run error = %v, want ErrStepLimit", err)
	}
}

func TestKillThroughCall(t *testing.T) {
	m := &ir.Module{
		Types:           []ir.Type{{Inner: f32}},
		GlobalVariables: []ir.GlobalVariable{{Name: "out", Space: ir.SpaceOut, Type: 0}},
		Functions: []ir.Function{
			{Name: "helper", Body: ir.Block{stmt(ir.StmtKill{})}},
			{
				Name: "main",
				Expressions: []ir.Expression{
					expr(ir.ExprGlobalVariable{Variable: 0}),
					expr(ir.Literal{Value: ir.LiteralF32(1)}),
				},
				Body: ir.Block{
					stmt(ir.StmtCall{Function: 0}),
					stmt(ir.StmtStore{Pointer: 0, Value: 1}),
				},
			},
		},
	}
	mc, err := New(m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := mc.Run("main"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !mc.Killed {
		t.Error("Killed = false after discard")
	}
	if got, _ := mc.Global("out"); got != float32(0) {
		t.Errorf("out = %v, store after discard executed", got)
	}
}

func TestMatrixProducts(t *testing.T) {
	m := Composite{
		Composite{float32(1), float32(0)},
		Composite{float32(2), float32(3)},
	}
	v := Composite{float32(1), float32(2)}

	got, err := binary(ir.BinaryMultiply, m, v)
	if err != nil {
		t.Fatal(err)
	}
	if want := (Composite{float32(5), float32(6)}); !reflect.DeepEqual(got, want) {
		t.Errorf("m * v = %v, want %v", got, want)
	}

	got, err = binary(ir.BinaryMultiply, v, m)
	if err != nil {
		t.Fatal(err)
	}
	if want := (Composite{float32(1), float32(8)}); !reflect.DeepEqual(got, want) {
		t.Errorf("v * m = %v, want %v", got, want)
	}

	got, err = binary(ir.BinaryMultiply, v, float32(3))
	if err != nil {
		t.Fatal(err)
	}
	if want := (Composite{float32(3), float32(6)}); !reflect.DeepEqual(got, want) {
		t.Errorf("v * 3 = %v, want %v", got, want)
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name  string
		in    Value
		kind  ir.ScalarKind
		width *uint8
		want  Value
	}{
		{"float to int", float32(3.7), ir.ScalarSint, ptr(uint8(4)), int32(3)},
		{"negative float to int", float32(-2.5), ir.ScalarSint, ptr(uint8(4)), int32(-2)},
		{"int to float", int32(-4), ir.ScalarFloat, ptr(uint8(4)), float32(-4)},
		{"bool to float", true, ir.ScalarFloat, ptr(uint8(4)), float32(1)},
		{"int to bool", int32(0), ir.ScalarBool, ptr(uint8(1)), false},
		{"widen", uint32(7), ir.ScalarUint, ptr(uint8(8)), uint64(7)},
		{"bitcast float", float32(1), ir.ScalarUint, nil, uint32(0x3f800000)},
		{"bitcast sign", int32(-1), ir.ScalarUint, nil, uint32(0xffffffff)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := as(tt.in, tt.kind, tt.width)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("as(%v) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestScalarOperators(t *testing.T) {
	tests := []struct {
		op   ir.BinaryOperator
		l, r Value
		want Value
	}{
		{ir.BinaryShiftRight, int32(-8), uint32(1), int32(-4)},
		{ir.BinaryShiftRight, uint32(0x80000000), int32(31), uint32(1)},
		{ir.BinaryModulo, int32(-7), int32(3), int32(-1)},
		{ir.BinaryDivide, int32(1), int32(0), int32(0)},
		{ir.BinaryLess, float32(1), float32(2), true},
		{ir.BinaryLogicalOr, false, true, true},
		{ir.BinaryExclusiveOr, uint32(6), uint32(3), uint32(5)},
	}
	for _, tt := range tests {
		got, err := scalarBinary(tt.op, tt.l, tt.r)
		if err != nil {
			t.Errorf("op %d on %v, %v: %v", tt.op, tt.l, tt.r, err)
			continue
		}
		if got != tt.want {
			t.Errorf("op %d on %v, %v = %v, want %v", tt.op, tt.l, tt.r, got, tt.want)
		}
	}
	if _, err := scalarBinary(ir.BinaryAdd, int32(1), uint32(1)); err == nil {
		t.Error("mixed operand types accepted")
	}
}

func TestMathFunctions(t *testing.T) {
	got, err := mathFunc(ir.MathClamp, []Value{Composite{float32(-1), float32(0.5), float32(2)}, float32(0), float32(1)})
	if err != nil {
		t.Fatal(err)
	}
	if want := (Composite{float32(0), float32(0.5), float32(1)}); !reflect.DeepEqual(got, want) {
		t.Errorf("clamp = %v, want %v", got, want)
	}
	got, err = mathFunc(ir.MathDot, []Value{Composite{float32(1), float32(2)}, Composite{float32(3), float32(4)}})
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(11) {
		t.Errorf("dot = %v, want 11", got)
	}
	if _, err := mathFunc(ir.MathInverse, []Value{Composite{}}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("inverse error = %v, want ErrUnsupported", err)
	}
}

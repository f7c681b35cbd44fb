// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"strings"
	"testing"
)

func minimalModule(body Block, locals []LocalVariable, exprs []Expression) *Module {
	return &Module{
		Types: []Type{
			{Name: "", Inner: ScalarType{Kind: ScalarSint, Width: 4}},
			{Name: "", Inner: ScalarType{Kind: ScalarBool, Width: 1}},
		},
		Functions: []Function{{
			Name:        "main",
			LocalVars:   locals,
			Expressions: exprs,
			Body:        body,
		}},
		EntryPoints: []EntryPoint{{Name: "main", Stage: StageFragment, Function: 0}},
	}
}

func TestValidate_ValidModule(t *testing.T) {
	module := minimalModule(Block{{Kind: StmtReturn{}}}, nil, nil)

	errors, err := Validate(module)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	for _, e := range errors {
		t.Errorf("unexpected validation error: %s", e.Error())
	}
}

func TestValidate_NilModule(t *testing.T) {
	if _, err := Validate(nil); err == nil {
		t.Error("expected error for nil module")
	}
}

func TestValidate_BreakPlacement(t *testing.T) {
	tests := []struct {
		name    string
		body    Block
		wantErr string
	}{
		{
			name:    "break at top level",
			body:    Block{{Kind: StmtBreak{}}},
			wantErr: "break outside of loop",
		},
		{
			name: "break in switch",
			body: Block{{Kind: StmtSwitch{Selector: 0, Cases: []SwitchCase{
				{Value: SwitchValueDefault{}, Body: Block{{Kind: StmtBreak{}}}},
			}}}},
		},
		{
			name: "continue in switch outside loop",
			body: Block{{Kind: StmtSwitch{Selector: 0, Cases: []SwitchCase{
				{Value: SwitchValueDefault{}, Body: Block{{Kind: StmtContinue{}}}},
			}}}},
			wantErr: "continue outside of loop",
		},
		{
			name:    "break in continuing",
			body:    Block{{Kind: StmtLoop{Continuing: Block{{Kind: StmtBreak{}}}}}},
			wantErr: "break in continuing block",
		},
	}
	exprs := []Expression{{Kind: Literal{Value: LiteralI32(0)}}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors, err := Validate(minimalModule(tt.body, nil, exprs))
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantErr == "" {
				for _, e := range errors {
					t.Errorf("unexpected error: %s", e.Error())
				}
				return
			}
			found := false
			for _, e := range errors {
				if strings.Contains(e.Error(), tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, errors)
			}
		})
	}
}

func TestValidate_LoopHeader(t *testing.T) {
	local := uint32(0)
	bound := ExpressionHandle(1)
	step := ExpressionHandle(2)
	exprs := []Expression{
		{Kind: ExprLocalVariable{Variable: 0}},
		{Kind: Literal{Value: LiteralI32(10)}},
		{Kind: Literal{Value: LiteralI32(1)}},
		{Kind: ExprLoad{Pointer: 0}},
		{Kind: ExprBinary{Op: BinaryLess, Left: 3, Right: 1}},
		{Kind: ExprUnary{Op: UnaryLogicalNot, Expr: 4}},
	}
	locals := []LocalVariable{{Name: "i", Type: 0}}
	prefix := Block{
		{Kind: StmtEmit{Range: Range{Start: 3, End: 6}}},
		{Kind: StmtIf{Condition: 5, Accept: Block{{Kind: StmtBreak{}}}}},
	}

	good := StmtLoop{Body: prefix, Header: &LoopHeader{
		Shape: LoopCounting, Test: 4, Prefix: 2, Induction: &local, Bound: &bound, Step: &step,
	}}
	errors, _ := Validate(minimalModule(Block{{Kind: good}}, locals, exprs))
	for _, e := range errors {
		t.Errorf("unexpected error: %s", e.Error())
	}

	bad := StmtLoop{Body: prefix, Header: &LoopHeader{Shape: LoopCounting, Test: 4, Prefix: 5}}
	errors, _ = Validate(minimalModule(Block{{Kind: bad}}, locals, exprs))
	if len(errors) < 3 {
		t.Errorf("expected prefix, induction, bound and step errors, got %v", errors)
	}
}

func TestValidate_IOBindings(t *testing.T) {
	module := minimalModule(nil, nil, nil)
	module.GlobalVariables = []GlobalVariable{
		{Name: "color", Space: SpaceUniform, Type: 0, Binding: LocationBinding{Location: 0}},
		{Name: "pos", Space: SpaceOut, Type: 0, Binding: BuiltinBinding{Builtin: BuiltinPosition}},
	}
	errors, _ := Validate(module)
	if len(errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", errors)
	}
	if !strings.Contains(errors[0].Error(), "location on a uniform") {
		t.Errorf("unexpected first error: %s", errors[0].Error())
	}
	if !strings.Contains(errors[1].Error(), "gl_Position") {
		t.Errorf("unexpected second error: %s", errors[1].Error())
	}
}

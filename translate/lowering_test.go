// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"errors"
	"math"
	"testing"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

func TestForeignOperandFailsStart(t *testing.T) {
	other := llir.NewModule()
	y := llir.NewParam("y", types.I32)
	ofn := other.NewFunc("other", types.I32, y)
	oentry := ofn.NewBlock("entry")
	foreign := oentry.NewAdd(y, y)
	oentry.NewRet(foreign)

	tests := []struct {
		name string
		op   func() *llir.Module
	}{
		{"instruction", func() *llir.Module {
			m := llir.NewModule()
			x := llir.NewParam("x", types.I32)
			f := m.NewFunc("main", types.I32, x)
			entry := f.NewBlock("entry")
			entry.NewRet(entry.NewAdd(x, foreign))
			return m
		}},
		{"parameter", func() *llir.Module {
			m := llir.NewModule()
			x := llir.NewParam("x", types.I32)
			f := m.NewFunc("main", types.I32, x)
			entry := f.NewBlock("entry")
			entry.NewRet(entry.NewAdd(x, y))
			return m
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(Options{EntryPoint: "main"})
			err := tr.Start(tt.op())
			var ie *InternalError
			if !errors.As(err, &ie) {
				t.Fatalf("Start = %v, want InternalError", err)
			}
			if ie.Function != "main" {
				t.Errorf("error names function %q", ie.Function)
			}
			if !tr.Failed() {
				t.Error("Failed() = false after a foreign operand")
			}
			if err := tr.StartFunctionDeclaration("main", types.I32); err == nil {
				t.Error("protocol continued after Start failed")
			}
		})
	}
}

func TestAbortedFunctionKeepsRunAlive(t *testing.T) {
	m := llir.NewModule()
	c := llir.NewParam("c", types.I1)
	f := m.NewFunc("main", types.Void, c)
	entry := f.NewBlock("entry")
	then := f.NewBlock("then")
	join := f.NewBlock("join")
	entry.NewCondBr(c, then, join)
	then.NewBr(join)
	phi := join.NewPhi(llir.NewIncoming(constant.True, entry), llir.NewIncoming(constant.False, then))
	join.NewRet(nil)
	helper := m.NewFunc("helper", types.Void)
	ret := helper.NewBlock("entry").NewRet(nil)

	tr := openBody(t, m, f, Options{})
	must(t, tr.OpenIf(c, false))
	// The copy precedes the declaration of its local.
	if err := tr.AddPhiCopy(phi, constant.True); err != nil {
		t.Fatalf("AddPhiCopy = %v, want the error deferred", err)
	}
	must(t, tr.CloseIf())
	var ie *InternalError
	if err := tr.EndFunctionBody(); !errors.As(err, &ie) {
		t.Fatalf("EndFunctionBody = %v, want InternalError", err)
	}

	must(t, tr.StartFunctionDeclaration("helper", types.Void))
	must(t, tr.EndFunctionDeclaration())
	must(t, tr.StartFunctionBody())
	must(t, tr.AddReturn(ret, true))
	must(t, tr.EndFunctionBody())

	res, err := tr.End()
	if !errors.As(err, &ie) {
		t.Fatalf("End = %v, want the internal error", err)
	}
	var cf *ControlFlowError
	if errors.As(err, &cf) {
		t.Errorf("End reports malformed control flow: %v", cf)
	}
	if res == nil || len(res.Module.Functions) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := findStmt[ir.StmtReturn](res.Module.Functions[1].Body); !ok {
		t.Errorf("helper body = %+v", res.Module.Functions[1].Body)
	}
}

func TestLaneIndexOutOfRange(t *testing.T) {
	vec4 := types.NewVector(4, types.Float)
	lane := func(k int64) *constant.Int { return constant.NewInt(types.I32, k) }
	tests := []struct {
		name  string
		build func(b *llir.Block, v *llir.Param) llir.Instruction
	}{
		{"extract negative", func(b *llir.Block, v *llir.Param) llir.Instruction {
			return b.NewExtractElement(v, lane(-1))
		}},
		{"extract past end", func(b *llir.Block, v *llir.Param) llir.Instruction {
			return b.NewExtractElement(v, lane(4))
		}},
		{"insert negative", func(b *llir.Block, v *llir.Param) llir.Instruction {
			return b.NewInsertElement(v, constant.NewFloat(types.Float, 1), lane(-1))
		}},
		{"insert past end", func(b *llir.Block, v *llir.Param) llir.Instruction {
			return b.NewInsertElement(v, constant.NewFloat(types.Float, 1), lane(7))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := llir.NewModule()
			v := llir.NewParam("v", vec4)
			f := m.NewFunc("main", types.Void, v)
			entry := f.NewBlock("entry")
			inst := tt.build(entry, v)
			ret := entry.NewRet(nil)

			tr := openBody(t, m, f, Options{})
			if err := tr.AddInstruction(inst, true, false); err != nil {
				t.Fatalf("AddInstruction = %v, want the error logged", err)
			}
			must(t, tr.AddReturn(ret, true))
			must(t, tr.EndFunctionBody())
			_, err := tr.End()
			var ue *UnsupportedError
			if !errors.As(err, &ue) {
				t.Fatalf("End = %v, want UnsupportedError", err)
			}
		})
	}
}

func TestIntrinsicWithoutArguments(t *testing.T) {
	m := llir.NewModule()
	callee := m.NewFunc("llvm.gla.fSaturate.f32", types.Float)
	f := m.NewFunc("main", types.Float)
	entry := f.NewBlock("entry")
	call := entry.NewCall(callee)
	ret := entry.NewRet(call)

	tr := openBody(t, m, f, Options{})
	if err := tr.AddInstruction(call, true, false); err != nil {
		t.Fatalf("AddInstruction = %v, want the error logged", err)
	}
	must(t, tr.AddReturn(ret, true))
	must(t, tr.EndFunctionBody())
	_, err := tr.End()
	var ue *UnsupportedError
	if !errors.As(err, &ue) {
		t.Fatalf("End = %v, want UnsupportedError", err)
	}
}

func TestLiteralRange(t *testing.T) {
	m, f := boolFunc()
	tr := openBody(t, m, f, Options{})

	tests := []struct {
		kind ir.ScalarKind
		v    int64
		want ir.LiteralValue
	}{
		{ir.ScalarSint, -1, ir.LiteralI32(-1)},
		{ir.ScalarSint, math.MaxInt32, ir.LiteralI32(math.MaxInt32)},
		{ir.ScalarSint, math.MaxInt32 + 1, nil},
		{ir.ScalarSint, math.MinInt32 - 1, nil},
		{ir.ScalarUint, math.MaxUint32, ir.LiteralU32(math.MaxUint32)},
		{ir.ScalarUint, math.MaxUint32 + 1, nil},
		{ir.ScalarUint, -1, nil},
	}
	for _, tt := range tests {
		h, err := tr.intLiteral(tt.kind, tt.v)
		if tt.want == nil {
			var ue *UnsupportedError
			if !errors.As(err, &ue) {
				t.Errorf("intLiteral(%v, %d) = %v, want UnsupportedError", tt.kind, tt.v, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("intLiteral(%v, %d): %v", tt.kind, tt.v, err)
			continue
		}
		if got := tr.fn.ir.Expressions[h].Kind.(ir.Literal).Value; got != tt.want {
			t.Errorf("intLiteral(%v, %d) = %v, want %v", tt.kind, tt.v, got, tt.want)
		}
	}

	// An i32 constant spelled unsigned keeps its bits.
	h, err := tr.constantExpr(constant.NewInt(types.I32, math.MaxUint32), true)
	must(t, err)
	if got := tr.fn.ir.Expressions[h].Kind.(ir.Literal).Value; got != ir.LiteralI32(-1) {
		t.Errorf("i32 0xffffffff = %v, want -1", got)
	}
	if _, err := tr.constantExpr(constant.NewInt(types.I32, 1<<40), true); err == nil {
		t.Error("i32 constant wider than 32 bits accepted")
	}
	if _, err := tr.translateType(types.NewArray(1<<33, types.Float), nil, true); err == nil {
		t.Error("array longer than 2^32 accepted")
	}
}

func TestCaseValueOutOfRange(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.I32)
	f := m.NewFunc("main", types.Void, x)
	f.NewBlock("entry").NewRet(nil)

	for _, v := range []int64{math.MaxInt32 + 1, math.MinInt32 - 1} {
		tr := openBody(t, m, f, Options{})
		must(t, tr.OpenSwitch(x))
		if err := tr.OpenCase(v); err != nil {
			t.Fatalf("OpenCase(%d) = %v, want the function aborted", v, err)
		}
		must(t, tr.CloseCase(false))
		must(t, tr.CloseSwitch())
		var ue *UnsupportedError
		if err := tr.EndFunctionBody(); !errors.As(err, &ue) {
			t.Errorf("EndFunctionBody after case %d = %v, want UnsupportedError", v, err)
		}
		if _, err := tr.End(); errors.As(err, new(*ControlFlowError)) {
			t.Errorf("case %d poisoned the run: %v", v, err)
		}
	}
}

func TestPlaceholderShared(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.Float)
	f := m.NewFunc("main", types.Float, x)
	entry := f.NewBlock("entry")
	a := entry.NewFMul(x, x)
	b := entry.NewFAdd(a, a)
	entry.NewRet(b)

	tr := openBody(t, m, f, Options{})
	// a is never added, so both reads of it see the placeholder.
	must(t, tr.AddInstruction(b, true, false))

	zeros := 0
	var sum ir.ExprBinary
	for _, e := range tr.fn.ir.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprZeroValue:
			zeros++
		case ir.ExprBinary:
			sum = k
		}
	}
	if zeros != 1 {
		t.Errorf("%d zero values, want one shared placeholder", zeros)
	}
	if sum.Left != sum.Right {
		t.Errorf("operands %d and %d, want the same placeholder", sum.Left, sum.Right)
	}
}

func TestSharedValueEvaluatedOnce(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.Float)
	f := m.NewFunc("main", types.Float, x)
	entry := f.NewBlock("entry")
	a := entry.NewFMul(x, x)
	b := entry.NewFAdd(a, a)
	ret := entry.NewRet(b)

	tr := openBody(t, m, f, Options{})
	must(t, tr.AddInstruction(a, true, false))
	must(t, tr.AddInstruction(b, true, false))
	must(t, tr.AddReturn(ret, true))
	must(t, tr.EndFunctionBody())
	res, err := tr.End()
	must(t, err)

	fn := res.Module.Functions[0]
	var mul ir.ExpressionHandle
	muls := 0
	for i, e := range fn.Expressions {
		if k, ok := e.Kind.(ir.ExprBinary); ok && k.Op == ir.BinaryMultiply {
			mul = ir.ExpressionHandle(i)
			muls++
		}
	}
	if muls != 1 {
		t.Fatalf("%d multiplies, want one", muls)
	}
	stores := 0
	for _, s := range fn.Body {
		if st, ok := s.Kind.(ir.StmtStore); ok && st.Value == mul {
			stores++
		}
	}
	if stores != 1 {
		t.Errorf("product stored %d times, want once", stores)
	}
	for _, e := range fn.Expressions {
		k, ok := e.Kind.(ir.ExprBinary)
		if !ok || k.Op != ir.BinaryAdd {
			continue
		}
		for _, side := range []ir.ExpressionHandle{k.Left, k.Right} {
			if _, ok := fn.Expressions[side].Kind.(ir.ExprLoad); !ok {
				t.Errorf("sum operand %T, want a load of the temporary", fn.Expressions[side].Kind)
			}
		}
	}
}

func TestStructMetadataKeysType(t *testing.T) {
	m, f := boolFunc()
	tr := openBody(t, m, f, Options{})
	shape := func() types.Type { return types.NewStruct(types.Float, types.Float) }
	node := func(name, first string) *metadata.Node {
		return &metadata.Node{TypeName: name, Members: []*metadata.Node{{Name: first}, {Name: "w"}}}
	}

	light, err := tr.translateType(shape(), node("Light", "x"), true)
	must(t, err)
	again, err := tr.translateType(shape(), node("Light", "x"), true)
	must(t, err)
	if light != again {
		t.Errorf("identical metadata gave handles %d and %d", light, again)
	}
	tests := []struct {
		name string
		md   *metadata.Node
	}{
		{"type name", node("Fog", "x")},
		{"member name", node("Light", "y")},
	}
	for _, tt := range tests {
		h, err := tr.translateType(shape(), tt.md, true)
		must(t, err)
		if h == light {
			t.Errorf("%s differs but shares handle %d", tt.name, h)
		}
	}
}

func TestIfInLoopInSwitch(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.I32)
	c := llir.NewParam("c", types.I1)
	f := m.NewFunc("main", types.Void, x, c)
	ret := f.NewBlock("entry").NewRet(nil)
	tr := openBody(t, m, f, Options{})

	must(t, tr.OpenSwitch(x))
	must(t, tr.OpenCase(3))
	must(t, tr.OpenLoop(GeneralLoop{}))
	must(t, tr.OpenIf(c, false))
	must(t, tr.AddExit(nil, false))
	must(t, tr.CloseIf())
	must(t, tr.CloseLoop())
	must(t, tr.CloseCase(false))
	must(t, tr.CloseSwitch())
	must(t, tr.AddReturn(ret, true))
	must(t, tr.EndFunctionBody())
	res, err := tr.End()
	must(t, err)

	sw, ok := findStmt[ir.StmtSwitch](res.Module.Functions[0].Body)
	if !ok {
		t.Fatal("no switch")
	}
	if v, ok := sw.Cases[0].Value.(ir.SwitchValueI32); !ok || v != 3 {
		t.Fatalf("first case = %v", sw.Cases[0].Value)
	}
	loop, ok := findStmt[ir.StmtLoop](sw.Cases[0].Body)
	if !ok {
		t.Fatalf("no loop in the case: %+v", sw.Cases[0].Body)
	}
	inner, ok := findStmt[ir.StmtIf](loop.Body)
	if !ok {
		t.Fatalf("no if in the loop: %+v", loop.Body)
	}
	if _, ok := findStmt[ir.StmtBreak](inner.Accept); !ok {
		t.Errorf("if does not leave the loop: %+v", inner.Accept)
	}
}

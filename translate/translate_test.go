// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"errors"
	"testing"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/interp"
	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// openBody starts a run over m and opens the body of f.
func openBody(t *testing.T, m *llir.Module, f *llir.Func, opts Options) *Translator {
	t.Helper()
	if opts.EntryPoint == "" {
		opts.EntryPoint = f.Name()
	}
	tr := New(opts)
	must(t, tr.Start(m))
	must(t, tr.StartFunctionDeclaration(f.Name(), f.Sig.RetType))
	for i, p := range f.Params {
		must(t, tr.AddArgument(p, i == len(f.Params)-1))
	}
	must(t, tr.EndFunctionDeclaration())
	must(t, tr.StartFunctionBody())
	return tr
}

func findStmt[T ir.StatementKind](b ir.Block) (T, bool) {
	for _, s := range b {
		if k, ok := s.Kind.(T); ok {
			return k, true
		}
	}
	var zero T
	return zero, false
}

func boolFunc() (*llir.Module, *llir.Func) {
	m := llir.NewModule()
	c := llir.NewParam("c", types.I1)
	f := m.NewFunc("main", types.Void, c)
	f.NewBlock("entry").NewRet(nil)
	return m, f
}

func TestProtocolBeforeStart(t *testing.T) {
	tr := New(Options{})
	err := tr.StartFunctionBody()
	var cf *ControlFlowError
	if !errors.As(err, &cf) {
		t.Fatalf("StartFunctionBody before Start = %v, want ControlFlowError", err)
	}
	if !errors.Is(err, ErrTranslation) {
		t.Error("control flow error does not wrap ErrTranslation")
	}
	if !tr.Failed() {
		t.Error("Failed() = false after a control flow error")
	}
	if _, err := tr.End(); !errors.As(err, &cf) {
		t.Errorf("End after poisoning = %v, want the control flow error", err)
	}
}

func TestNestedConstructs(t *testing.T) {
	m, f := boolFunc()
	c := f.Params[0]
	tr := openBody(t, m, f, Options{})

	must(t, tr.OpenIf(c, false))
	must(t, tr.OpenLoop(GeneralLoop{}))
	must(t, tr.OpenIf(c, true))
	must(t, tr.AddExit(nil, false))
	must(t, tr.CloseIf())
	must(t, tr.CloseLoop())
	must(t, tr.CloseIf())
	must(t, tr.AddReturn(f.Blocks[0].Term.(*llir.TermRet), true))
	must(t, tr.EndFunctionBody())
	res, err := tr.End()
	must(t, err)

	body := res.Module.Functions[0].Body
	outer, ok := findStmt[ir.StmtIf](body)
	if !ok {
		t.Fatalf("no if at top level: %+v", body)
	}
	loop, ok := findStmt[ir.StmtLoop](outer.Accept)
	if !ok {
		t.Fatalf("no loop in the accept block: %+v", outer.Accept)
	}
	if loop.Header != nil {
		t.Errorf("general loop has header %+v", loop.Header)
	}
	inner, ok := findStmt[ir.StmtIf](loop.Body)
	if !ok {
		t.Fatalf("no if in the loop body: %+v", loop.Body)
	}
	if _, ok := findStmt[ir.StmtBreak](inner.Accept); !ok {
		t.Errorf("inner if does not break: %+v", inner.Accept)
	}
	if len(res.Functions) != 1 || res.Functions[0].Loops != 1 {
		t.Errorf("stats = %+v", res.Functions)
	}
}

func TestMismatchedClose(t *testing.T) {
	tests := []struct {
		name string
		run  func(tr *Translator, c *llir.Param) error
	}{
		{"close if inside loop", func(tr *Translator, c *llir.Param) error {
			_ = tr.OpenIf(c, false)
			_ = tr.OpenLoop(GeneralLoop{})
			return tr.CloseIf()
		}},
		{"else twice", func(tr *Translator, c *llir.Param) error {
			_ = tr.OpenIf(c, false)
			_ = tr.OpenElse()
			return tr.OpenElse()
		}},
		{"exit outside loop", func(tr *Translator, c *llir.Param) error {
			return tr.AddExit(c, false)
		}},
		{"case outside switch", func(tr *Translator, c *llir.Param) error {
			return tr.OpenCase(1)
		}},
		{"end with open loop", func(tr *Translator, c *llir.Param) error {
			_ = tr.OpenLoop(nil)
			return tr.EndFunctionBody()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, f := boolFunc()
			tr := openBody(t, m, f, Options{})
			err := tt.run(tr, f.Params[0])
			var cf *ControlFlowError
			if !errors.As(err, &cf) {
				t.Fatalf("error = %v, want ControlFlowError", err)
			}
			if cf.Function != "main" {
				t.Errorf("Function = %q, want main", cf.Function)
			}
			if got := tr.CloseLoop(); got != err {
				t.Errorf("later call returned %v, want the first error", got)
			}
			if tr.InfoLog().Errors() == 0 {
				t.Error("info log has no error entry")
			}
		})
	}
}

func TestSwitchCases(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.I32)
	f := m.NewFunc("main", types.Void, x)
	f.NewBlock("entry").NewRet(nil)
	tr := openBody(t, m, f, Options{})

	must(t, tr.OpenSwitch(x))
	must(t, tr.OpenCase(1))
	must(t, tr.CloseCase(true))
	must(t, tr.OpenCase(2))
	must(t, tr.CloseCase(false))
	must(t, tr.CloseSwitch())
	must(t, tr.EndFunctionBody())
	res, err := tr.End()
	must(t, err)

	sw, ok := findStmt[ir.StmtSwitch](res.Module.Functions[0].Body)
	if !ok {
		t.Fatal("no switch")
	}
	if len(sw.Cases) != 3 {
		t.Fatalf("cases = %+v, want two cases and an implied default", sw.Cases)
	}
	if !sw.Cases[0].FallThrough || sw.Cases[1].FallThrough {
		t.Errorf("fallthrough flags = %v, %v", sw.Cases[0].FallThrough, sw.Cases[1].FallThrough)
	}
	if _, ok := sw.Cases[2].Value.(ir.SwitchValueDefault); !ok {
		t.Errorf("last case = %v, want default", sw.Cases[2].Value)
	}

	tr = openBody(t, m, f, Options{})
	must(t, tr.OpenSwitch(x))
	must(t, tr.OpenCase(1))
	must(t, tr.CloseCase(false))
	if err := tr.OpenCase(1); err == nil {
		t.Error("duplicate case accepted")
	}
}

func TestTypesAreShared(t *testing.T) {
	m, f := boolFunc()
	tr := openBody(t, m, f, Options{})
	vec := types.NewVector(4, types.Float)
	a, err := tr.translateType(vec, nil, true)
	must(t, err)
	b, err := tr.translateType(types.NewVector(4, types.Float), nil, true)
	must(t, err)
	if a != b {
		t.Errorf("vec4 translated to %d and %d", a, b)
	}
	inner, ok := tr.typeInner(a).(ir.VectorType)
	if !ok || inner.Size != ir.Vec4 || inner.Scalar.Kind != ir.ScalarFloat {
		t.Errorf("vec4 inner = %+v", tr.typeInner(a))
	}
	s, err := tr.translateType(types.I32, nil, true)
	must(t, err)
	u, err := tr.translateType(types.I32, nil, false)
	must(t, err)
	if s == u {
		t.Error("signed and unsigned i32 share a handle")
	}
}

func TestSignedness(t *testing.T) {
	m := llir.NewModule()
	a := llir.NewParam("a", types.I32)
	b := llir.NewParam("b", types.I32)
	f := m.NewFunc("main", types.Void, a, b)
	entry := f.NewBlock("entry")
	q := entry.NewUDiv(a, b)
	r := entry.NewAdd(q, constant.NewInt(types.I32, 1))
	s := entry.NewSDiv(a, b)
	entry.NewRet(nil)

	tr := openBody(t, m, f, Options{})
	tests := []struct {
		name string
		id   valueID
		want bool
	}{
		{"udiv", tr.mustID(t, q), true},
		{"add of udiv", tr.mustID(t, r), true},
		{"sdiv", tr.mustID(t, s), false},
		{"param", tr.mustID(t, a), false},
	}
	for _, tt := range tests {
		if got := tr.fn.unsigned[tt.id]; got != tt.want {
			t.Errorf("%s unsigned = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func (t *Translator) mustID(tb testing.TB, v value.Value) valueID {
	tb.Helper()
	for id, val := range t.refs.values {
		if val == v {
			return valueID(id)
		}
	}
	tb.Fatalf("value %v is not numbered", v)
	return 0
}

func TestUnsupportedIsLogged(t *testing.T) {
	m := llir.NewModule()
	bogus := m.NewFunc("llvm.gla.fNoSuchThing", types.Float, llir.NewParam("", types.Float))
	x := llir.NewParam("x", types.Float)
	f := m.NewFunc("main", types.Float, x)
	entry := f.NewBlock("entry")
	call := entry.NewCall(bogus, x)
	ret := entry.NewRet(call)

	tr := openBody(t, m, f, Options{})
	if err := tr.AddInstruction(call, true, false); err != nil {
		t.Fatalf("AddInstruction = %v, want the error to be logged", err)
	}
	must(t, tr.AddReturn(ret, true))
	must(t, tr.EndFunctionBody())
	res, err := tr.End()

	var ue *UnsupportedError
	if !errors.As(err, &ue) {
		t.Fatalf("End error = %v, want UnsupportedError", err)
	}
	if res == nil || res.Module == nil {
		t.Fatal("no result after an unsupported construct")
	}
	if res.InfoLog.Errors() != 1 {
		t.Errorf("info log = %v", res.InfoLog.Entries())
	}
	fn := res.Module.Functions[0]
	ret2, ok := findStmt[ir.StmtReturn](fn.Body)
	if !ok || ret2.Value == nil {
		t.Fatalf("no return value: %+v", fn.Body)
	}
	if _, ok := fn.Expressions[*ret2.Value].Kind.(ir.ExprZeroValue); !ok {
		t.Errorf("placeholder = %T, want a zero value", fn.Expressions[*ret2.Value].Kind)
	}
}

func TestAccessChains(t *testing.T) {
	m := llir.NewModule()
	vec4 := types.NewVector(4, types.Float)
	st := types.NewStruct(vec4, vec4, types.NewArray(8, types.Float))
	block := m.NewGlobal("params", st)
	table := m.NewGlobal("table", types.NewArray(8, types.Float))
	lightsTy := types.NewStruct(vec4, types.NewArray(8, vec4))
	lights := m.NewGlobal("lights", lightsTy)
	f := m.NewFunc("main", types.Void)
	entry := f.NewBlock("entry")
	i32 := func(v int64) *constant.Int { return constant.NewInt(types.I32, v) }
	member := entry.NewGetElementPtr(st, block, i32(0), i32(2), i32(5))
	low := entry.NewGetElementPtr(types.NewArray(8, types.Float), table, i32(0), i32(2))
	high := entry.NewGetElementPtr(types.NewArray(8, types.Float), table, i32(0), i32(5))
	lane := entry.NewGetElementPtr(lightsTy, lights, i32(0), i32(1), i32(5), i32(2))
	entry.NewRet(nil)

	md := metadata.New("fragment")
	md.Globals["params"] = &metadata.Node{Name: "params", Qualifier: metadata.QualifierUniform}
	tr := New(Options{Metadata: md})
	must(t, tr.Start(m))
	must(t, tr.AddGlobal(block, nil))
	must(t, tr.AddGlobal(table, nil))
	must(t, tr.AddGlobal(lights, nil))
	must(t, tr.StartFunctionDeclaration("main", types.Void))
	must(t, tr.EndFunctionDeclaration())
	must(t, tr.StartFunctionBody())
	for _, inst := range []llir.Instruction{member, low, high, lane} {
		must(t, tr.AddInstruction(inst, true, false))
	}

	n := tr.fn.values[tr.mustID(t, member)]
	if n.kind != nodePointer || n.ptr == nil {
		t.Fatalf("member access bound to %+v", n)
	}
	if n.ptr.offset != 52 {
		t.Errorf("offset of params.2[5] = %d, want 52", n.ptr.offset)
	}
	if n.ptr.root != "params" {
		t.Errorf("root = %q", n.ptr.root)
	}
	// Two AccessIndex steps below the global.
	e, ok := tr.fn.ir.Expressions[n.expr].Kind.(ir.ExprAccessIndex)
	if !ok || e.Index != 5 {
		t.Fatalf("outer step = %+v", tr.fn.ir.Expressions[n.expr].Kind)
	}
	if e2, ok := tr.fn.ir.Expressions[e.Base].Kind.(ir.ExprAccessIndex); !ok || e2.Index != 2 {
		t.Errorf("inner step = %+v", tr.fn.ir.Expressions[e.Base].Kind)
	}

	// lights.1[5].z: field, array element, vector component.
	ln := tr.fn.values[tr.mustID(t, lane)]
	var got []uint32
	for h := ln.expr; ; {
		e, ok := tr.fn.ir.Expressions[h].Kind.(ir.ExprAccessIndex)
		if !ok {
			break
		}
		got = append(got, e.Index)
		h = e.Base
	}
	if len(got) != 3 || got[0] != 2 || got[1] != 5 || got[2] != 1 {
		t.Errorf("lights chain indices (outermost first) = %v, want [2 5 1]", got)
	}
	if ln.ptr == nil || ln.ptr.offset != 16+5*16+2*4 {
		t.Errorf("lights chain pointer = %+v, want offset 104", ln.ptr)
	}

	must(t, tr.EndFunctionBody())
	res, err := tr.End()
	must(t, err)
	for name, want := range map[string]int{"table": 5, "params": 5, "lights": 5} {
		if got, ok := res.MaxArrayIndex[name]; !ok || got != want {
			t.Errorf("max index of %s = %d (recorded %v), want %d", name, got, ok, want)
		}
	}
}

func TestAliasesShareDeclaration(t *testing.T) {
	m := llir.NewModule()
	color := m.NewGlobal("color", types.Float)
	dbg := m.NewGlobal("_dbg_color", types.Float)
	f := m.NewFunc("main", types.Void)
	f.NewBlock("entry").NewRet(nil)

	md := metadata.New("fragment")
	loc := uint32(2)
	md.Globals["color"] = &metadata.Node{Name: "color", Qualifier: metadata.QualifierOut, Location: &loc}
	md.Aliases["_dbg_color"] = "color"

	tr := New(Options{Metadata: md})
	must(t, tr.Start(m))
	must(t, tr.AddIODeclaration(color, metadata.QualifierOut, md.Global("color")))
	must(t, tr.AddGlobal(dbg, nil))
	must(t, tr.StartFunctionDeclaration("main", types.Void))
	must(t, tr.EndFunctionDeclaration())
	must(t, tr.StartFunctionBody())
	must(t, tr.EndFunctionBody())
	res, err := tr.End()
	must(t, err)

	if len(res.Module.GlobalVariables) != 1 {
		t.Fatalf("globals = %+v, want one", res.Module.GlobalVariables)
	}
	gv := res.Module.GlobalVariables[0]
	if gv.Name != "color" || gv.Space != ir.SpaceOut {
		t.Errorf("global = %+v", gv)
	}
	if b, ok := gv.Binding.(ir.LocationBinding); !ok || b.Location != 2 {
		t.Errorf("binding = %+v", gv.Binding)
	}
}

func TestMathIntrinsics(t *testing.T) {
	f := func(v float64) value.Value { return constant.NewFloat(types.Float, v) }
	tests := []struct {
		callee string
		extra  []value.Value
		fun    ir.MathFunction
		x      float32
		want   float32
	}{
		{"llvm.gla.fSaturate.f32", nil, ir.MathClamp, 1.5, 1},
		{"llvm.gla.fSaturate.f32", nil, ir.MathClamp, -2, 0},
		{"llvm.gla.fClamp.f32.f32.f32", []value.Value{f(0), f(2)}, ir.MathClamp, 3, 2},
		{"llvm.gla.fMax.f32.f32", []value.Value{f(0.5)}, ir.MathMax, 0.25, 0.5},
		{"llvm.gla.fAbs.f32", nil, ir.MathAbs, -4, 4},
	}

	for _, tt := range tests {
		t.Run(intrinsicBase(tt.callee), func(t *testing.T) {
			m := llir.NewModule()
			params := []*llir.Param{llir.NewParam("", types.Float)}
			for range tt.extra {
				params = append(params, llir.NewParam("", types.Float))
			}
			callee := m.NewFunc(tt.callee, types.Float, params...)
			x := llir.NewParam("x", types.Float)
			fn := m.NewFunc("main", types.Float, x)
			entry := fn.NewBlock("entry")
			call := entry.NewCall(callee, append([]value.Value{x}, tt.extra...)...)
			ret := entry.NewRet(call)

			tr := openBody(t, m, fn, Options{})
			must(t, tr.AddInstruction(call, true, false))
			must(t, tr.AddReturn(ret, true))
			must(t, tr.EndFunctionBody())
			res, err := tr.End()
			if err != nil {
				t.Fatalf("End: %v", err)
			}

			found := false
			for _, e := range res.Module.Functions[0].Expressions {
				if k, ok := e.Kind.(ir.ExprMath); ok && k.Fun == tt.fun {
					found = true
				}
			}
			if !found {
				t.Errorf("no %v expression in %+v", tt.fun, res.Module.Functions[0].Expressions)
			}

			mc, err := interp.New(res.Module)
			if err != nil {
				t.Fatalf("interp.New: %v", err)
			}
			got, err := mc.Run("main", tt.x)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("main(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package walk

import (
	"errors"
	"testing"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/gogpu/glass/interp"
	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
	"github.com/gogpu/glass/translate"
)

func i32(v int64) *constant.Int { return constant.NewInt(types.I32, v) }

func f32(v float64) *constant.Float { return constant.NewFloat(types.Float, v) }

// lower walks m into a fresh translator and returns the result.
func lower(t *testing.T, m *llir.Module, entry string, md *metadata.Table) *translate.Result {
	t.Helper()
	tr := translate.New(translate.Options{Stage: ir.StageFragment, EntryPoint: entry, Metadata: md})
	if err := Module(m, md, tr); err != nil {
		t.Fatalf("Module: %v", err)
	}
	res, err := tr.End()
	if err != nil {
		t.Fatalf("End: %v\n%v", err, res.InfoLog.Entries())
	}
	return res
}

func machine(t *testing.T, res *translate.Result) *interp.Machine {
	t.Helper()
	mc, err := interp.New(res.Module)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	return mc
}

func function(t *testing.T, m *ir.Module, name string) *ir.Function {
	t.Helper()
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i]
		}
	}
	t.Fatalf("no function %s", name)
	return nil
}

func count[T ir.StatementKind](b ir.Block) int {
	n := 0
	for _, s := range b {
		if _, ok := s.Kind.(T); ok {
			n++
		}
	}
	return n
}

func firstLoop(t *testing.T, b ir.Block) ir.StmtLoop {
	t.Helper()
	for _, s := range b {
		if l, ok := s.Kind.(ir.StmtLoop); ok {
			return l
		}
	}
	t.Fatalf("no loop in %+v", b)
	return ir.StmtLoop{}
}

func TestIfElseInline(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.I32)
	a := llir.NewParam("a", types.I32)
	b := llir.NewParam("b", types.I32)
	f := m.NewFunc("pick", types.I32, x, a, b)
	entry := f.NewBlock("entry")
	then := f.NewBlock("then")
	els := f.NewBlock("else")
	entry.NewCondBr(entry.NewICmp(enum.IPredSLT, x, i32(0)), then, els)
	then.NewRet(then.NewAdd(a, i32(1)))
	els.NewRet(els.NewAdd(b, i32(2)))

	res := lower(t, m, "pick", nil)
	fn := function(t, res.Module, "pick")
	if len(fn.LocalVars) != 0 {
		t.Errorf("locals = %+v, want none", fn.LocalVars)
	}
	if count[ir.StmtIf](fn.Body) != 1 {
		t.Errorf("body = %+v, want one if", fn.Body)
	}

	tests := []struct {
		x, want int32
	}{
		{-1, 11},
		{5, 22},
	}
	for _, tt := range tests {
		got, err := machine(t, res).Run("pick", tt.x, int32(10), int32(20))
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("pick(%d) = %v, want %d", tt.x, got, tt.want)
		}
	}
}

func TestPhiMerge(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.I32)
	f := m.NewFunc("sel", types.I32, x)
	entry := f.NewBlock("entry")
	one := f.NewBlock("one")
	two := f.NewBlock("two")
	def := f.NewBlock("default")
	merge := f.NewBlock("merge")
	entry.NewSwitch(x, def, llir.NewCase(i32(1), one), llir.NewCase(i32(2), two))
	one.NewBr(merge)
	two.NewBr(merge)
	def.NewBr(merge)
	r := merge.NewPhi(
		llir.NewIncoming(i32(10), one),
		llir.NewIncoming(i32(20), two),
		llir.NewIncoming(i32(30), def),
	)
	merge.NewRet(r)

	res := lower(t, m, "sel", nil)
	fn := function(t, res.Module, "sel")
	if count[ir.StmtSwitch](fn.Body) != 1 {
		t.Errorf("body = %+v, want one switch", fn.Body)
	}
	if len(fn.LocalVars) != 1 {
		t.Errorf("locals = %+v, want the phi local only", fn.LocalVars)
	}
	for _, tt := range []struct{ x, want int32 }{{1, 10}, {2, 20}, {7, 30}} {
		got, err := machine(t, res).Run("sel", tt.x)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("sel(%d) = %v, want %d", tt.x, got, tt.want)
		}
	}
}

func TestCountingLoop(t *testing.T) {
	m := llir.NewModule()
	f := m.NewFunc("main", types.I32)
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	entry.NewBr(header)
	i := header.NewPhi(llir.NewIncoming(i32(0), entry))
	s := header.NewPhi(llir.NewIncoming(i32(0), entry))
	header.NewCondBr(header.NewICmp(enum.IPredSLT, i, i32(10)), body, exit)
	s2 := body.NewAdd(s, i)
	next := body.NewAdd(i, i32(1))
	body.NewBr(header)
	i.Incs = append(i.Incs, llir.NewIncoming(next, body))
	s.Incs = append(s.Incs, llir.NewIncoming(s2, body))
	exit.NewRet(s)

	res := lower(t, m, "main", nil)
	fn := function(t, res.Module, "main")
	loop := firstLoop(t, fn.Body)
	if loop.Header == nil || loop.Header.Shape != ir.LoopCounting {
		t.Fatalf("loop header = %+v, want counting", loop.Header)
	}
	if n := count[ir.StmtStore](loop.Continuing); n != 1 {
		t.Errorf("continuing = %+v, want one store", loop.Continuing)
	}
	bound := fn.Expressions[*loop.Header.Bound].Kind
	if lit, ok := bound.(ir.Literal); !ok || lit.Value != ir.LiteralI32(10) {
		t.Errorf("bound = %+v, want literal 10", bound)
	}
	step := fn.Expressions[*loop.Header.Step].Kind
	if lit, ok := step.(ir.Literal); !ok || lit.Value != ir.LiteralI32(1) {
		t.Errorf("step = %+v, want literal 1", step)
	}

	got, err := machine(t, res).Run("main")
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(45) {
		t.Errorf("sum = %v, want 45", got)
	}
}

func TestPhiSwap(t *testing.T) {
	m := llir.NewModule()
	f := m.NewFunc("main", types.I32)
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	latch := f.NewBlock("latch")
	exit := f.NewBlock("exit")

	entry.NewBr(header)
	a := header.NewPhi(llir.NewIncoming(i32(1), entry))
	b := header.NewPhi(llir.NewIncoming(i32(2), entry))
	i := header.NewPhi(llir.NewIncoming(i32(0), entry))
	header.NewCondBr(header.NewICmp(enum.IPredSLT, i, i32(3)), latch, exit)
	n := latch.NewAdd(i, i32(1))
	latch.NewBr(header)
	a.Incs = append(a.Incs, llir.NewIncoming(b, latch))
	b.Incs = append(b.Incs, llir.NewIncoming(a, latch))
	i.Incs = append(i.Incs, llir.NewIncoming(n, latch))
	exit.NewRet(exit.NewAdd(exit.NewMul(a, i32(10)), b))

	res := lower(t, m, "main", nil)
	if len(res.Functions) != 1 || res.Functions[0].Temps == 0 {
		t.Errorf("stats = %+v, want a snapshot temp for the swap", res.Functions)
	}
	got, err := machine(t, res).Run("main")
	if err != nil {
		t.Fatal(err)
	}
	// Three swaps leave a = 2, b = 1.
	if got != int32(21) {
		t.Errorf("result = %v, want 21", got)
	}
}

func TestConditionalLoop(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.Float)
	f := m.NewFunc("halve", types.Float, x)
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	entry.NewBr(header)
	v := header.NewPhi(llir.NewIncoming(x, entry))
	header.NewCondBr(header.NewFCmp(enum.FPredOGT, v, f32(1)), body, exit)
	h := body.NewFMul(v, f32(0.5))
	body.NewBr(header)
	v.Incs = append(v.Incs, llir.NewIncoming(h, body))
	exit.NewRet(v)

	res := lower(t, m, "halve", nil)
	loop := firstLoop(t, function(t, res.Module, "halve").Body)
	if loop.Header == nil || loop.Header.Shape != ir.LoopConditional {
		t.Fatalf("loop header = %+v, want conditional", loop.Header)
	}
	got, err := machine(t, res).Run("halve", float32(10))
	if err != nil {
		t.Fatal(err)
	}
	if got != float32(0.625) {
		t.Errorf("halve(10) = %v, want 0.625", got)
	}
}

func TestGeneralLoopWithBreak(t *testing.T) {
	m := llir.NewModule()
	n := llir.NewParam("n", types.I32)
	f := m.NewFunc("find", types.I32, n)
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	cont := f.NewBlock("cont")
	exit := f.NewBlock("exit")

	entry.NewBr(header)
	i := header.NewPhi(llir.NewIncoming(i32(0), entry))
	sq := header.NewMul(i, i)
	header.NewCondBr(header.NewICmp(enum.IPredSGT, sq, n), exit, cont)
	next := cont.NewAdd(i, i32(1))
	cont.NewBr(header)
	i.Incs = append(i.Incs, llir.NewIncoming(next, cont))
	exit.NewRet(i)

	res := lower(t, m, "find", nil)
	loop := firstLoop(t, function(t, res.Module, "find").Body)
	if loop.Header != nil {
		t.Errorf("loop header = %+v, want a general loop", loop.Header)
	}
	if count[ir.StmtContinue](loop.Body) != 0 {
		t.Errorf("trailing continue in %+v", loop.Body)
	}
	got, err := machine(t, res).Run("find", int32(20))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(5) {
		t.Errorf("find(20) = %v, want 5", got)
	}
}

func TestGlobalsAcrossFunctions(t *testing.T) {
	m := llir.NewModule()
	color := m.NewGlobal("color", types.Float)
	dbg := m.NewGlobal("_dbg_color", types.Float)

	helper := m.NewFunc("helper", types.Void)
	hb := helper.NewBlock("entry")
	hb.NewStore(f32(1), dbg)
	hb.NewRet(nil)

	mainFn := m.NewFunc("main", types.Void)
	mb := mainFn.NewBlock("entry")
	mb.NewCall(helper)
	v := mb.NewLoad(types.Float, color)
	mb.NewStore(mb.NewFAdd(v, f32(2)), color)
	mb.NewRet(nil)

	md := metadata.New("fragment")
	md.Globals["color"] = &metadata.Node{Name: "color", Qualifier: metadata.QualifierOut}
	md.Aliases["_dbg_color"] = "color"

	res := lower(t, m, "main", md)
	if len(res.Module.GlobalVariables) != 1 {
		t.Fatalf("globals = %+v, want one", res.Module.GlobalVariables)
	}
	for _, name := range []string{"helper", "main"} {
		fn := function(t, res.Module, name)
		found := false
		for _, e := range fn.Expressions {
			if g, ok := e.Kind.(ir.ExprGlobalVariable); ok {
				if g.Variable != 0 {
					t.Errorf("%s references global %d", name, g.Variable)
				}
				found = true
			}
		}
		if !found {
			t.Errorf("%s does not reference the global", name)
		}
	}

	mc := machine(t, res)
	if _, err := mc.Run("main"); err != nil {
		t.Fatal(err)
	}
	if got, _ := mc.Global("color"); got != float32(3) {
		t.Errorf("color = %v, want 3", got)
	}
}

func TestDiscard(t *testing.T) {
	m := llir.NewModule()
	discard := m.NewFunc("llvm.gla.discard", types.Void)
	x := llir.NewParam("x", types.Float)
	f := m.NewFunc("main", types.Void, x)
	entry := f.NewBlock("entry")
	kill := f.NewBlock("kill")
	done := f.NewBlock("done")
	entry.NewCondBr(entry.NewFCmp(enum.FPredOLT, x, f32(0)), kill, done)
	kill.NewCall(discard)
	kill.NewBr(done)
	done.NewRet(nil)

	res := lower(t, m, "main", nil)
	for _, tt := range []struct {
		x      float32
		killed bool
	}{{-1, true}, {1, false}} {
		mc := machine(t, res)
		if _, err := mc.Run("main", tt.x); err != nil {
			t.Fatal(err)
		}
		if mc.Killed != tt.killed {
			t.Errorf("main(%v) killed = %v, want %v", tt.x, mc.Killed, tt.killed)
		}
	}
}

func TestIrreducible(t *testing.T) {
	m := llir.NewModule()
	c := llir.NewParam("c", types.I1)
	f := m.NewFunc("main", types.Void, c)
	entry := f.NewBlock("entry")
	a := f.NewBlock("a")
	b := f.NewBlock("b")
	exit := f.NewBlock("exit")
	entry.NewCondBr(c, a, b)
	a.NewBr(b)
	b.NewCondBr(c, a, exit)
	exit.NewRet(nil)

	tr := translate.New(translate.Options{})
	err := Module(m, nil, tr)
	if !errors.Is(err, ErrUnstructured) {
		t.Errorf("Module = %v, want ErrUnstructured", err)
	}
}

func TestSingleBlockFunction(t *testing.T) {
	m := llir.NewModule()
	x := llir.NewParam("x", types.I32)
	f := m.NewFunc("main", types.I32, x)
	entry := f.NewBlock("entry")
	entry.NewRet(entry.NewMul(x, i32(3)))

	res := lower(t, m, "main", nil)
	got, err := machine(t, res).Run("main", int32(7))
	if err != nil {
		t.Fatal(err)
	}
	if got != int32(21) {
		t.Errorf("main(7) = %v, want 21", got)
	}
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"fortio.org/safecast"
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/ir"
)

// LoopShape describes how a loop was recognized by the walker.
type LoopShape interface {
	loopShape()
}

// GeneralLoop is a loop left only through explicit exits.
type GeneralLoop struct{}

// ConditionalLoop is a loop whose header only tests Compare and either
// continues or leaves. The loop runs while the comparison of X and Y
// holds, or while it fails when Invert is set.
type ConditionalLoop struct {
	Compare llir.Instruction // *llir.InstICmp or *llir.InstFCmp
	X, Y    value.Value
	Invert  bool
}

// CountingLoop is a loop driven by an induction variable compared
// against a constant bound and stepped by a constant.
type CountingLoop struct {
	Induction *llir.InstPhi
	Pred      enum.IPred // the loop runs while "induction Pred Bound"
	Bound     int64
	Step      int64
}

// InductiveLoop is a loop that runs Count times on a zero-based
// induction variable stepped by one.
type InductiveLoop struct {
	Induction *llir.InstPhi
	Count     value.Value
}

func (GeneralLoop) loopShape()     {}
func (ConditionalLoop) loopShape() {}
func (CountingLoop) loopShape()    {}
func (InductiveLoop) loopShape()   {}

type frameKind uint8

const (
	frameIf frameKind = iota
	frameSwitch
	frameLoop
)

var frameNames = [...]string{"if", "switch", "loop"}

// frame is one open structured construct.
type frame struct {
	kind frameKind

	cond   ir.ExpressionHandle
	accept ir.Block
	reject ir.Block
	inElse bool

	selector   ir.ExpressionHandle
	unsigned   bool
	cases      []ir.SwitchCase
	caseValue  ir.SwitchValue
	caseOpen   bool
	hasDefault bool
	body       ir.Block
	breakFlag  *uint32 // a loop exit was requested inside this switch

	header     *ir.LoopHeader
	induction  uint32
	step       ir.LiteralValue
	exitFlag   *uint32
	continuing ir.Block
}

func (t *Translator) topFrame(kind frameKind, op string) (*frame, error) {
	frames := t.fn.frames
	if len(frames) == 0 {
		return nil, t.poison(t.controlFlow(op, "no %s open", frameNames[kind]))
	}
	f := frames[len(frames)-1]
	if f.kind != kind {
		return nil, t.poison(t.controlFlow(op, "innermost construct is a %s, not a %s", frameNames[f.kind], frameNames[kind]))
	}
	return f, nil
}

func (t *Translator) openFrame(f *frame, block *ir.Block) {
	t.fn.frames = append(t.fn.frames, f)
	if block != nil {
		t.fn.blocks = append(t.fn.blocks, block)
	}
}

func (t *Translator) popFrame(popBlock bool) {
	t.fn.frames = t.fn.frames[:len(t.fn.frames)-1]
	if popBlock {
		t.fn.blocks = t.fn.blocks[:len(t.fn.blocks)-1]
	}
}

// condition lowers a branch condition, inverted if asked. A condition
// that cannot be lowered is logged and replaced by false so the
// construct stays balanced.
func (t *Translator) condition(v value.Value, invert bool) ir.ExpressionHandle {
	h, err := t.operand(v)
	if err != nil {
		_ = t.settle("condition", err)
		return t.literal(ir.LiteralBool(false))
	}
	if invert {
		return t.not(h)
	}
	return h
}

func (t *Translator) not(h ir.ExpressionHandle) ir.ExpressionHandle {
	if u, ok := t.fn.ir.Expressions[h].Kind.(ir.ExprUnary); ok && u.Op == ir.UnaryLogicalNot {
		return u.Expr
	}
	return t.addExpression(ir.ExprUnary{Op: ir.UnaryLogicalNot, Expr: h})
}

// OpenIf opens "if (cond)", or "if (!cond)" when invert is set.
func (t *Translator) OpenIf(cond value.Value, invert bool) error {
	if err := t.readyBody("OpenIf"); err != nil || t.fn.aborted != nil {
		return err
	}
	f := &frame{kind: frameIf, cond: t.condition(cond, invert)}
	t.flushEmit()
	t.openFrame(f, &f.accept)
	return nil
}

// OpenElse switches the innermost if to its else branch.
func (t *Translator) OpenElse() error {
	if err := t.readyBody("OpenElse"); err != nil || t.fn.aborted != nil {
		return err
	}
	f, err := t.topFrame(frameIf, "OpenElse")
	if err != nil {
		return err
	}
	if f.inElse {
		return t.poison(t.controlFlow("OpenElse", "if already has an else"))
	}
	t.flushEmit()
	f.inElse = true
	t.fn.blocks[len(t.fn.blocks)-1] = &f.reject
	return nil
}

// CloseIf closes the innermost if.
func (t *Translator) CloseIf() error {
	if err := t.readyBody("CloseIf"); err != nil || t.fn.aborted != nil {
		return err
	}
	f, err := t.topFrame(frameIf, "CloseIf")
	if err != nil {
		return err
	}
	t.flushEmit()
	t.popFrame(true)
	t.push(ir.StmtIf{Condition: f.cond, Accept: f.accept, Reject: f.reject})
	return nil
}

// OpenSwitch opens a switch on an integer selector.
func (t *Translator) OpenSwitch(sel value.Value) error {
	if err := t.readyBody("OpenSwitch"); err != nil || t.fn.aborted != nil {
		return err
	}
	kind := t.intKind(sel)
	h, err := t.operandAs(sel, kind)
	if err != nil {
		_ = t.settle("switch", err)
		h = t.smallInt(kind, 0)
	}
	t.flushEmit()
	t.openFrame(&frame{kind: frameSwitch, selector: h, unsigned: kind == ir.ScalarUint}, nil)
	return nil
}

// OpenCase opens the case labelled v.
func (t *Translator) OpenCase(v int64) error {
	if err := t.readyBody("OpenCase"); err != nil || t.fn.aborted != nil {
		return err
	}
	f, err := t.topFrame(frameSwitch, "OpenCase")
	if err != nil {
		return err
	}
	if f.caseOpen {
		return t.poison(t.controlFlow("OpenCase", "previous case still open"))
	}
	var sv ir.SwitchValue
	if f.unsigned {
		u, err := safecast.Conv[uint32](v)
		if err != nil {
			return t.abort("switch", t.unsupported("switch", "case %d does not fit u32", v))
		}
		sv = ir.SwitchValueU32(u)
	} else {
		i, err := safecast.Conv[int32](v)
		if err != nil {
			return t.abort("switch", t.unsupported("switch", "case %d does not fit i32", v))
		}
		sv = ir.SwitchValueI32(i)
	}
	for _, c := range f.cases {
		if c.Value == sv {
			return t.poison(t.controlFlow("OpenCase", "duplicate case %d", v))
		}
	}
	t.openCase(f, sv)
	return nil
}

// OpenDefault opens the default case.
func (t *Translator) OpenDefault() error {
	if err := t.readyBody("OpenDefault"); err != nil || t.fn.aborted != nil {
		return err
	}
	f, err := t.topFrame(frameSwitch, "OpenDefault")
	if err != nil {
		return err
	}
	if f.caseOpen {
		return t.poison(t.controlFlow("OpenDefault", "previous case still open"))
	}
	if f.hasDefault {
		return t.poison(t.controlFlow("OpenDefault", "switch already has a default"))
	}
	f.hasDefault = true
	t.openCase(f, ir.SwitchValueDefault{})
	return nil
}

func (t *Translator) openCase(f *frame, v ir.SwitchValue) {
	f.caseOpen = true
	f.caseValue = v
	f.body = nil
	t.fn.blocks = append(t.fn.blocks, &f.body)
}

// CloseCase closes the open case. A case that falls through continues
// into the next one.
func (t *Translator) CloseCase(fallsThrough bool) error {
	if err := t.readyBody("CloseCase"); err != nil || t.fn.aborted != nil {
		return err
	}
	f, err := t.topFrame(frameSwitch, "CloseCase")
	if err != nil {
		return err
	}
	if !f.caseOpen {
		return t.poison(t.controlFlow("CloseCase", "no case open"))
	}
	t.flushEmit()
	t.fn.blocks = t.fn.blocks[:len(t.fn.blocks)-1]
	f.cases = append(f.cases, ir.SwitchCase{Value: f.caseValue, Body: f.body, FallThrough: fallsThrough})
	f.caseOpen = false
	f.body = nil
	return nil
}

// CloseSwitch closes the innermost switch.
func (t *Translator) CloseSwitch() error {
	if err := t.readyBody("CloseSwitch"); err != nil || t.fn.aborted != nil {
		return err
	}
	f, err := t.topFrame(frameSwitch, "CloseSwitch")
	if err != nil {
		return err
	}
	if f.caseOpen {
		return t.poison(t.controlFlow("CloseSwitch", "case still open"))
	}
	if !f.hasDefault {
		f.cases = append(f.cases, ir.SwitchCase{Value: ir.SwitchValueDefault{}})
	}
	t.popFrame(false)
	t.push(ir.StmtSwitch{Selector: f.selector, Cases: f.cases})
	if f.breakFlag != nil {
		// A loop exit taken inside the switch only left the switch;
		// finish leaving through the enclosing construct.
		t.push(ir.StmtIf{
			Condition: t.addExpression(ir.ExprLoad{Pointer: t.localPtr(*f.breakFlag)}),
			Accept:    ir.Block{{Kind: ir.StmtBreak{}}},
		})
		if outer := t.innermostBreakable(); outer != nil && outer.kind == frameSwitch {
			outer.breakFlag = f.breakFlag
		}
	}
	return nil
}

// innermostBreakable returns the innermost open switch or loop.
func (t *Translator) innermostBreakable() *frame {
	for i := len(t.fn.frames) - 1; i >= 0; i-- {
		if k := t.fn.frames[i].kind; k == frameSwitch || k == frameLoop {
			return t.fn.frames[i]
		}
	}
	return nil
}

func (t *Translator) innermostLoop() *frame {
	for i := len(t.fn.frames) - 1; i >= 0; i-- {
		if t.fn.frames[i].kind == frameLoop {
			return t.fn.frames[i]
		}
	}
	return nil
}

// OpenLoop opens a loop of the given shape. For recognized shapes the
// exit test is synthesized at the top of the body.
func (t *Translator) OpenLoop(shape LoopShape) error {
	if err := t.readyBody("OpenLoop"); err != nil || t.fn.aborted != nil {
		return err
	}
	f := &frame{kind: frameLoop}
	t.flushEmit()
	t.openFrame(f, &f.body)
	t.fn.stats.Loops++

	test, header, err := t.loopHeader(f, shape)
	if err != nil {
		_ = t.settle("loop", err)
		return nil
	}
	if header == nil {
		return nil
	}
	t.push(ir.StmtIf{Condition: t.not(test), Accept: ir.Block{{Kind: ir.StmtBreak{}}}})
	header.Test = test
	header.Prefix = len(f.body)
	f.header = header
	return nil
}

func (t *Translator) loopHeader(f *frame, shape LoopShape) (ir.ExpressionHandle, *ir.LoopHeader, error) {
	switch s := shape.(type) {
	case nil, GeneralLoop:
		return 0, nil, nil
	case ConditionalLoop:
		var test ir.ExpressionHandle
		var err error
		switch cmp := s.Compare.(type) {
		case *llir.InstICmp:
			test, err = t.icmp(cmp.Pred, s.X, s.Y)
		case *llir.InstFCmp:
			test, err = t.fcmp(cmp.Pred, s.X, s.Y)
		default:
			return 0, nil, t.internal("conditional loop test is not a comparison")
		}
		if err != nil {
			return 0, nil, err
		}
		if s.Invert {
			test = t.not(test)
		}
		return test, &ir.LoopHeader{Shape: ir.LoopConditional}, nil
	case CountingLoop:
		lv, kind, err := t.inductionLocal(s.Induction)
		if err != nil {
			return 0, nil, err
		}
		op, ok := icmpOps[s.Pred]
		if !ok {
			return 0, nil, t.unsupported("loop", "counting predicate %s", s.Pred)
		}
		cmpKind := kind
		if unsignedPred(s.Pred) {
			cmpKind = ir.ScalarUint
		}
		i := t.coerce(t.addExpression(ir.ExprLoad{Pointer: t.localPtr(lv)}), cmpKind)
		bound, err := t.intLiteral(cmpKind, s.Bound)
		if err != nil {
			return 0, nil, err
		}
		step, err := t.intLiteral(kind, s.Step)
		if err != nil {
			return 0, nil, err
		}
		test := t.addExpression(ir.ExprBinary{Op: op, Left: i, Right: bound})
		f.induction = lv
		f.step = t.fn.ir.Expressions[step].Kind.(ir.Literal).Value
		return test, &ir.LoopHeader{Shape: ir.LoopCounting, Induction: &lv, Bound: &bound, Step: &step}, nil
	case InductiveLoop:
		lv, kind, err := t.inductionLocal(s.Induction)
		if err != nil {
			return 0, nil, err
		}
		count, err := t.operandAs(s.Count, kind)
		if err != nil {
			return 0, nil, err
		}
		i := t.addExpression(ir.ExprLoad{Pointer: t.localPtr(lv)})
		step := t.smallInt(kind, 1)
		test := t.addExpression(ir.ExprBinary{Op: ir.BinaryLess, Left: i, Right: count})
		f.induction = lv
		f.step = t.fn.ir.Expressions[step].Kind.(ir.Literal).Value
		return test, &ir.LoopHeader{Shape: ir.LoopInductive, Induction: &lv, Bound: &count, Step: &step}, nil
	}
	return 0, nil, t.internal("unknown loop shape %T", shape)
}

func (t *Translator) inductionLocal(phi *llir.InstPhi) (uint32, ir.ScalarKind, error) {
	if phi == nil {
		return 0, 0, t.internal("loop has no induction variable")
	}
	id, ok := t.refs.id(phi)
	if !ok {
		return 0, 0, t.internal("induction %s is not numbered", describe(phi))
	}
	lv, ok := t.fn.phis[id]
	if !ok {
		return 0, 0, t.internal("induction %s not declared as a phi", describe(phi))
	}
	s, _ := scalarOf(t.typeInner(t.fn.ir.LocalVars[lv].Type))
	return lv, s.Kind, nil
}

// AddExit leaves the innermost loop, when cond holds if it is non-nil.
func (t *Translator) AddExit(cond value.Value, invert bool) error {
	if err := t.readyBody("AddExit"); err != nil || t.fn.aborted != nil {
		return err
	}
	loop := t.innermostLoop()
	if loop == nil {
		return t.poison(t.controlFlow("AddExit", "no loop open"))
	}
	var stmts ir.Block
	if sw := t.innermostBreakable(); sw != loop {
		if loop.exitFlag == nil {
			ty := t.registry.GetOrCreate("", ir.ScalarType{Kind: ir.ScalarBool, Width: 1})
			flag := t.addLocal("", ty)
			loop.exitFlag = &flag
		}
		sw.breakFlag = loop.exitFlag
		stmts = append(stmts, ir.Statement{Kind: ir.StmtStore{
			Pointer: t.localPtr(*loop.exitFlag),
			Value:   t.literal(ir.LiteralBool(true)),
		}})
	}
	stmts = append(stmts, ir.Statement{Kind: ir.StmtBreak{}})
	t.guarded(cond, invert, stmts)
	return nil
}

// AddBack continues the innermost loop, when cond holds if it is non-nil.
func (t *Translator) AddBack(cond value.Value, invert bool) error {
	if err := t.readyBody("AddBack"); err != nil || t.fn.aborted != nil {
		return err
	}
	if t.innermostLoop() == nil {
		return t.poison(t.controlFlow("AddBack", "no loop open"))
	}
	t.guarded(cond, invert, ir.Block{{Kind: ir.StmtContinue{}}})
	return nil
}

func (t *Translator) guarded(cond value.Value, invert bool, stmts ir.Block) {
	if cond == nil {
		t.flushEmit()
		top := t.top()
		*top = append(*top, stmts...)
		return
	}
	t.push(ir.StmtIf{Condition: t.condition(cond, invert), Accept: stmts})
}

// CloseLoop closes the innermost loop.
func (t *Translator) CloseLoop() error {
	if err := t.readyBody("CloseLoop"); err != nil || t.fn.aborted != nil {
		return err
	}
	f, err := t.topFrame(frameLoop, "CloseLoop")
	if err != nil {
		return err
	}
	t.flushEmit()
	if f.header != nil && (f.header.Shape == ir.LoopCounting || f.header.Shape == ir.LoopInductive) {
		t.fn.blocks = append(t.fn.blocks, &f.continuing)
		ptr := t.localPtr(f.induction)
		step := t.literal(f.step)
		cur := t.addExpression(ir.ExprLoad{Pointer: ptr})
		next := t.addExpression(ir.ExprBinary{Op: ir.BinaryAdd, Left: cur, Right: step})
		t.push(ir.StmtStore{Pointer: ptr, Value: next})
		t.fn.blocks = t.fn.blocks[:len(t.fn.blocks)-1]
	}
	t.popFrame(true)
	if f.exitFlag != nil {
		t.push(ir.StmtStore{Pointer: t.localPtr(*f.exitFlag), Value: t.literal(ir.LiteralBool(false))})
	}
	t.push(ir.StmtLoop{Body: f.body, Continuing: f.continuing, Header: f.header})
	return nil
}

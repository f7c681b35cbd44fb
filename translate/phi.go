// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/ir"
)

// copyBatch tracks consecutive phi copies at the end of one block. The
// copies of a batch read their sources as of the start of the batch.
type copyBatch struct {
	block   *ir.Block
	start   int
	end     int
	written map[uint32]bool
}

// DeclarePhiCopy declares the local that carries a phi's value across
// edges. Declaring a phi twice has no effect.
func (t *Translator) DeclarePhiCopy(phi *llir.InstPhi) error {
	if err := t.readyBody("DeclarePhiCopy"); err != nil {
		return err
	}
	if t.fn.aborted != nil {
		return nil
	}
	id, ok := t.refs.id(phi)
	if !ok {
		return t.settle("phi", t.internal("phi %s is not numbered", describe(phi)))
	}
	if _, ok := t.fn.phis[id]; ok {
		return nil
	}
	ty, err := t.valueType(phi)
	if err != nil {
		return t.settle("phi", err)
	}
	lv := t.addLocal(valueName(phi), ty)
	t.fn.phis[id] = lv
	t.fn.values[id] = node{kind: nodeTemp, local: lv}
	return nil
}

// AddPhiCopy assigns src to the local of phi at the current position.
func (t *Translator) AddPhiCopy(phi, src value.Value) error {
	if err := t.readyBody("AddPhiCopy"); err != nil {
		return err
	}
	if t.fn.aborted != nil {
		return nil
	}
	return t.settle("phi", t.phiCopy(phi, src))
}

func (t *Translator) phiCopy(phi, src value.Value) error {
	fs := t.fn
	id, ok := t.refs.id(phi)
	if !ok {
		return t.internal("phi %s is not numbered", describe(phi))
	}
	lv, ok := fs.phis[id]
	if !ok {
		return t.internal("copy to phi %s before DeclarePhiCopy", describe(phi))
	}

	top := t.top()
	b := &fs.batch
	if b.block != top || len(*top) != b.end {
		*b = copyBatch{block: top, start: len(*top), end: len(*top), written: make(map[uint32]bool)}
	}

	h, err := t.operand(src)
	if err != nil {
		return err
	}
	h = t.coerceTo(h, fs.ir.LocalVars[lv].Type)

	if t.readsAny(h, b.written) {
		// An earlier copy of this batch overwrote a local the source
		// reads. Take the value from a snapshot made before the batch.
		ty, err := t.exprType(h)
		if err != nil {
			return err
		}
		snap := t.addLocal("", ty)
		ptr := t.localPtr(snap)
		var stmts []ir.Statement
		if end := len(fs.ir.Expressions); fs.emitStart < end {
			stmts = append(stmts, ir.Statement{Kind: ir.StmtEmit{Range: ir.Range{
				Start: ir.ExpressionHandle(fs.emitStart),
				End:   ir.ExpressionHandle(end),
			}}})
			fs.emitStart = end
		}
		stmts = append(stmts, ir.Statement{Kind: ir.StmtStore{Pointer: ptr, Value: h}})
		*top = insertStatements(*top, b.start, stmts)
		b.start += len(stmts)
		b.end += len(stmts)
		h = t.addExpression(ir.ExprLoad{Pointer: ptr})
		fs.stats.Temps++
	}

	t.push(ir.StmtStore{Pointer: t.localPtr(lv), Value: h})
	b.end = len(*top)
	b.written[lv] = true
	fs.stats.PhiCopies++
	return nil
}

// AddPhiAlias records that src already lives in the phi's local, as for
// a loop-carried phi that feeds itself. Any other source is copied.
func (t *Translator) AddPhiAlias(phi, src value.Value) error {
	if err := t.readyBody("AddPhiAlias"); err != nil {
		return err
	}
	if t.fn.aborted != nil {
		return nil
	}
	pid, ok := t.refs.id(phi)
	if !ok {
		return t.settle("phi", t.internal("phi %s is not numbered", describe(phi)))
	}
	lv, ok := t.fn.phis[pid]
	if !ok {
		return t.settle("phi", t.internal("alias of phi %s before DeclarePhiCopy", describe(phi)))
	}
	if sid, ok := t.refs.id(src); ok {
		if n, ok := t.fn.values[sid]; ok && n.kind == nodeTemp && n.local == lv {
			t.refs.consume(sid)
			return nil
		}
	}
	t.note(SeverityNote, "phi", describe(phi), "alias source "+describe(src)+" lowered as a copy")
	return t.settle("phi", t.phiCopy(phi, src))
}

// readsAny reports whether evaluating h loads one of the given locals.
func (t *Translator) readsAny(h ir.ExpressionHandle, locals map[uint32]bool) bool {
	if len(locals) == 0 {
		return false
	}
	exprs := t.fn.ir.Expressions
	stack := []ir.ExpressionHandle{h}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if int(e) >= len(exprs) {
			continue
		}
		if load, ok := exprs[e].Kind.(ir.ExprLoad); ok {
			if lv, ok := localRoot(exprs, load.Pointer); ok && locals[lv] {
				return true
			}
		}
		stack = append(stack, children(exprs[e].Kind)...)
	}
	return false
}

// localRoot returns the local variable an l-value expression is based on.
func localRoot(exprs []ir.Expression, h ir.ExpressionHandle) (uint32, bool) {
	for int(h) < len(exprs) {
		switch e := exprs[h].Kind.(type) {
		case ir.ExprLocalVariable:
			return e.Variable, true
		case ir.ExprAccess:
			h = e.Base
		case ir.ExprAccessIndex:
			h = e.Base
		case ir.ExprSwizzle:
			h = e.Vector
		default:
			return 0, false
		}
	}
	return 0, false
}

func insertStatements(block ir.Block, at int, stmts []ir.Statement) ir.Block {
	out := make(ir.Block, 0, len(block)+len(stmts))
	out = append(out, block[:at]...)
	out = append(out, stmts...)
	return append(out, block[at:]...)
}

// children lists the operand expressions of an expression.
func children(kind ir.ExpressionKind) []ir.ExpressionHandle {
	opt := func(hs []ir.ExpressionHandle, p *ir.ExpressionHandle) []ir.ExpressionHandle {
		if p != nil {
			hs = append(hs, *p)
		}
		return hs
	}
	switch e := kind.(type) {
	case ir.ExprCompose:
		return e.Components
	case ir.ExprAccess:
		return []ir.ExpressionHandle{e.Base, e.Index}
	case ir.ExprAccessIndex:
		return []ir.ExpressionHandle{e.Base}
	case ir.ExprSplat:
		return []ir.ExpressionHandle{e.Value}
	case ir.ExprSwizzle:
		return []ir.ExpressionHandle{e.Vector}
	case ir.ExprLoad:
		return []ir.ExpressionHandle{e.Pointer}
	case ir.ExprUnary:
		return []ir.ExpressionHandle{e.Expr}
	case ir.ExprBinary:
		return []ir.ExpressionHandle{e.Left, e.Right}
	case ir.ExprSelect:
		return []ir.ExpressionHandle{e.Condition, e.Accept, e.Reject}
	case ir.ExprDerivative:
		return []ir.ExpressionHandle{e.Expr}
	case ir.ExprRelational:
		return []ir.ExpressionHandle{e.Argument}
	case ir.ExprMath:
		hs := []ir.ExpressionHandle{e.Arg}
		hs = opt(hs, e.Arg1)
		hs = opt(hs, e.Arg2)
		return opt(hs, e.Arg3)
	case ir.ExprAs:
		return []ir.ExpressionHandle{e.Expr}
	case ir.ExprImageSample:
		hs := []ir.ExpressionHandle{e.Image, e.Coordinate}
		hs = opt(hs, e.Offset)
		hs = opt(hs, e.DepthRef)
		switch l := e.Level.(type) {
		case ir.SampleLevelExact:
			hs = append(hs, l.Level)
		case ir.SampleLevelBias:
			hs = append(hs, l.Bias)
		case ir.SampleLevelGradient:
			hs = append(hs, l.X, l.Y)
		}
		return hs
	case ir.ExprImageLoad:
		hs := []ir.ExpressionHandle{e.Image, e.Coordinate}
		hs = opt(hs, e.Sample)
		hs = opt(hs, e.Level)
		return opt(hs, e.Offset)
	case ir.ExprImageQuery:
		hs := []ir.ExpressionHandle{e.Image}
		switch q := e.Query.(type) {
		case ir.ImageQuerySize:
			hs = opt(hs, q.Level)
		case ir.ImageQueryLod:
			hs = append(hs, q.Coordinate)
		}
		return hs
	}
	return nil
}

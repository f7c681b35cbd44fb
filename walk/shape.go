// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package walk

import (
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/translate"
)

// loopPlan is the recognized shape of a loop and the instructions the
// shape absorbs into its header.
type loopPlan struct {
	shape translate.LoopShape
	body  *llir.Block // in-loop successor of the header when the test is absorbed

	skip     map[llir.Instruction]bool
	skipCopy map[*llir.InstPhi]*llir.Block // back-edge copy replaced by the step
}

var invertedPred = map[enum.IPred]enum.IPred{
	enum.IPredEQ:  enum.IPredNE,
	enum.IPredNE:  enum.IPredEQ,
	enum.IPredSGT: enum.IPredSLE,
	enum.IPredSGE: enum.IPredSLT,
	enum.IPredSLT: enum.IPredSGE,
	enum.IPredSLE: enum.IPredSGT,
	enum.IPredUGT: enum.IPredULE,
	enum.IPredUGE: enum.IPredULT,
	enum.IPredULT: enum.IPredUGE,
	enum.IPredULE: enum.IPredUGT,
}

// plan classifies l. A loop is conditional when its header holds nothing
// but phis and the comparison its branch tests, and one branch target
// leaves the loop. A conditional loop on an integer phi stepped by a
// constant in the single latch is a counting loop when the bound is a
// constant, and an inductive loop when it is a loop-invariant count.
func (w *funcWalker) plan(l *loop) loopPlan {
	general := loopPlan{shape: translate.GeneralLoop{}}
	h := l.header
	term, ok := h.Term.(*llir.TermCondBr)
	if !ok || l.exit == nil || len(h.Insts) == 0 {
		return general
	}
	cmp := h.Insts[len(h.Insts)-1]
	for _, inst := range h.Insts[:len(h.Insts)-1] {
		if _, ok := inst.(*llir.InstPhi); !ok {
			return general
		}
	}
	if cv, ok := cmp.(value.Value); !ok || term.Cond != cv || w.uses[cv] != 1 {
		return general
	}
	t, f := asBlock(term.TargetTrue), asBlock(term.TargetFalse)
	var body *llir.Block
	var invert bool
	switch {
	case f == l.exit && l.contains(t) && t != h:
		body = t
	case t == l.exit && l.contains(f) && f != h:
		body, invert = f, true
	default:
		return general
	}

	p := loopPlan{body: body, skip: map[llir.Instruction]bool{cmp: true}}
	switch cmp := cmp.(type) {
	case *llir.InstICmp:
		if shape, step, ok := w.induction(l, cmp, invert); ok {
			p.shape = shape
			p.skip[step.inst] = true
			p.skipCopy = map[*llir.InstPhi]*llir.Block{step.phi: l.latches[0]}
			return p
		}
		p.shape = translate.ConditionalLoop{Compare: cmp, X: cmp.X, Y: cmp.Y, Invert: invert}
	case *llir.InstFCmp:
		p.shape = translate.ConditionalLoop{Compare: cmp, X: cmp.X, Y: cmp.Y, Invert: invert}
	default:
		return general
	}
	return p
}

type stepInst struct {
	phi  *llir.InstPhi
	inst *llir.InstAdd
}

func (w *funcWalker) induction(l *loop, cmp *llir.InstICmp, invert bool) (translate.LoopShape, stepInst, bool) {
	phi, ok := cmp.X.(*llir.InstPhi)
	if !ok || w.defBlock[phi] != l.header || len(l.latches) != 1 || len(phi.Incs) != 2 {
		return nil, stepInst{}, false
	}
	latch := l.latches[0]
	var init, next value.Value
	for _, inc := range phi.Incs {
		if asBlock(inc.Pred) == latch {
			next = inc.X
		} else {
			init = inc.X
		}
	}
	add, ok := next.(*llir.InstAdd)
	if !ok || add.X != phi || w.defBlock[add] != latch || w.uses[add] != 1 {
		return nil, stepInst{}, false
	}
	step, ok := add.Y.(*constant.Int)
	if !ok || init == nil {
		return nil, stepInst{}, false
	}
	pred := cmp.Pred
	if invert {
		pred = invertedPred[pred]
	}
	s := stepInst{phi: phi, inst: add}
	if bound, ok := cmp.Y.(*constant.Int); ok {
		return translate.CountingLoop{
			Induction: phi,
			Pred:      pred,
			Bound:     bound.X.Int64(),
			Step:      step.X.Int64(),
		}, s, true
	}
	if step.X.Int64() != 1 || !isZeroInt(init) || (pred != enum.IPredSLT && pred != enum.IPredULT) {
		return nil, stepInst{}, false
	}
	if l.contains(w.defBlock[cmp.Y]) {
		return nil, stepInst{}, false
	}
	return translate.InductiveLoop{Induction: phi, Count: cmp.Y}, s, true
}

func isZeroInt(v value.Value) bool {
	c, ok := v.(*constant.Int)
	return ok && c.X.Sign() == 0
}

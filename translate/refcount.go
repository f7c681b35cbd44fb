// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// valueID numbers an SSA value that can be referenced by a later
// instruction: function parameters and value-producing instructions.
type valueID uint32

// useSite locates a use inside a block. Terminator uses and phi uses
// (placed at the end of the incoming block) have index len(block.Insts).
type useSite struct {
	block *llir.Block
	index int
}

// refCounter holds the per-value facts the emitter needs to decide
// between inline expressions and temporaries.
type refCounter struct {
	ids    map[value.Value]valueID
	values []value.Value

	defBlock []*llir.Block
	defIndex []int
	counts   []int
	live     []int
	site     []useSite // the only use, when counts is 1

	// multiRef marks operands whose consumer reads them more than once
	// or re-evaluates them at a later site.
	multiRef []bool
	// readsMem marks values whose inline expression reads memory.
	readsMem []bool
	// candidate marks values that may stay inline.
	candidate []bool

	fn  string // function being counted
	err error  // first operand defined outside the module
}

// countReferences numbers the values of m and counts their uses. It
// fails when an instruction uses a parameter or instruction result that
// m does not define.
func countReferences(m *llir.Module) (*refCounter, error) {
	r := &refCounter{ids: make(map[value.Value]valueID)}
	for _, f := range m.Funcs {
		for _, p := range f.Params {
			r.number(p, nil, -1)
		}
		for _, b := range f.Blocks {
			for i, inst := range b.Insts {
				if v, ok := inst.(value.Value); ok && !isVoid(v.Type()) {
					r.number(v, b, i)
				}
			}
		}
	}
	r.counts = make([]int, len(r.values))
	r.live = make([]int, len(r.values))
	r.site = make([]useSite, len(r.values))
	r.multiRef = make([]bool, len(r.values))
	r.readsMem = make([]bool, len(r.values))
	r.candidate = make([]bool, len(r.values))

	for _, f := range m.Funcs {
		r.fn = f.Name()
		for _, b := range f.Blocks {
			for i, inst := range b.Insts {
				if phi, ok := inst.(*llir.InstPhi); ok {
					for _, inc := range phi.Incs {
						pred := asBlock(inc.Pred)
						if pred == nil {
							continue
						}
						r.use(inc.X, useSite{block: pred, index: len(pred.Insts)})
					}
					continue
				}
				for _, op := range Operands(inst) {
					r.use(op, useSite{block: b, index: i})
				}
				r.markMultiRef(inst)
			}
			if b.Term != nil {
				for _, op := range TerminatorOperands(b.Term) {
					r.use(op, useSite{block: b, index: len(b.Insts)})
				}
			}
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	copy(r.live, r.counts)

	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for i, inst := range b.Insts {
				v, ok := inst.(value.Value)
				if !ok || isVoid(v.Type()) {
					continue
				}
				r.decide(r.ids[v], inst, b, i)
			}
		}
	}
	return r, nil
}

func (r *refCounter) number(v value.Value, b *llir.Block, index int) {
	r.ids[v] = valueID(len(r.values))
	r.values = append(r.values, v)
	r.defBlock = append(r.defBlock, b)
	r.defIndex = append(r.defIndex, index)
}

func (r *refCounter) use(v value.Value, at useSite) {
	id, ok := r.ids[v]
	if !ok {
		switch v.(type) {
		case *llir.Param, llir.Instruction:
			if r.err == nil {
				r.err = &InternalError{Function: r.fn, Detail: fmt.Sprintf("operand %s is not defined in the module", describe(v))}
			}
		}
		return
	}
	r.counts[id]++
	r.site[id] = at
}

func (r *refCounter) id(v value.Value) (valueID, bool) {
	id, ok := r.ids[v]
	return id, ok
}

// consume retires one use of id. A live count never goes negative.
func (r *refCounter) consume(id valueID) {
	if r.live[id] > 0 {
		r.live[id]--
	}
}

// markMultiRef flags operands that the lowering of inst references more
// than once.
func (r *refCounter) markMultiRef(inst llir.Instruction) {
	switch inst := inst.(type) {
	case *llir.InstFRem:
		r.flag(inst.X, inst.Y)
	case *llir.InstShuffleVector:
		if !isUndef(inst.Y) {
			r.flag(inst.X, inst.Y)
		}
	case *llir.InstInsertElement:
		if _, ok := inst.Index.(constant.Constant); !ok {
			return
		}
		if isUndef(inst.X) || isZero(inst.X) {
			return
		}
		if prev, ok := inst.X.(*llir.InstInsertElement); ok {
			if _, ok := prev.Index.(constant.Constant); ok {
				return
			}
		}
		r.flag(inst.X)
	case *llir.InstCall:
		if writeMasked(inst) {
			r.flag(inst.Args...)
		}
	}
}

func (r *refCounter) flag(vs ...value.Value) {
	for _, v := range vs {
		if id, ok := r.ids[v]; ok {
			r.multiRef[id] = true
		}
	}
}

// decide records whether the value defined by inst may be inlined into
// its single consumer. Operands are decided before their users.
func (r *refCounter) decide(id valueID, inst llir.Instruction, b *llir.Block, index int) {
	if isPointerProducer(inst) {
		// Pointer expressions are rebuilt at every use, so their operands
		// are only safe inline when that use is unique and nearby.
		r.readsMem[id] = r.operandsReadMemory(inst)
		return
	}
	switch inst.(type) {
	case *llir.InstPhi, *llir.InstAlloca:
		return
	case *llir.InstLoad:
		r.readsMem[id] = true
	case *llir.InstCall:
		// The call statement fixes its result; reading it later is safe.
	default:
		r.readsMem[id] = r.operandsReadMemory(inst)
	}
	if r.counts[id] != 1 || r.multiRef[id] {
		return
	}
	at, ok := r.effectiveSite(id)
	if !ok || at.block != b {
		return
	}
	if r.readsMem[id] && hasBarrier(b, index+1, at.index) {
		return
	}
	r.candidate[id] = true
}

// effectiveSite follows single-use pointer chains to the instruction that
// finally evaluates the value.
func (r *refCounter) effectiveSite(id valueID) (useSite, bool) {
	for depth := 0; depth < 64; depth++ {
		if r.counts[id] != 1 {
			return useSite{}, false
		}
		at := r.site[id]
		if at.block == nil {
			return useSite{}, false
		}
		if at.index >= len(at.block.Insts) {
			return at, true
		}
		user := at.block.Insts[at.index]
		if !isPointerProducer(user) {
			return at, true
		}
		uv, ok := user.(value.Value)
		if !ok {
			return at, true
		}
		next, ok := r.ids[uv]
		if !ok || r.defBlock[next] != at.block {
			return useSite{}, false
		}
		id = next
	}
	return useSite{}, false
}

func (r *refCounter) operandsReadMemory(inst llir.Instruction) bool {
	for _, op := range Operands(inst) {
		if id, ok := r.ids[op]; ok && r.candidate[id] && r.readsMem[id] {
			return true
		}
	}
	return false
}

// hasBarrier reports whether any instruction in b.Insts[from:to] may write
// memory.
func hasBarrier(b *llir.Block, from, to int) bool {
	if to > len(b.Insts) {
		to = len(b.Insts)
	}
	for i := from; i < to; i++ {
		switch inst := b.Insts[i].(type) {
		case *llir.InstStore:
			return true
		case *llir.InstCall:
			if !pureIntrinsic(calleeName(inst)) {
				return true
			}
		}
	}
	return false
}

func isPointerProducer(inst llir.Instruction) bool {
	switch inst := inst.(type) {
	case *llir.InstGetElementPtr:
		return true
	case *llir.InstBitCast:
		return isPointer(inst.From.Type())
	}
	return false
}

// Operands lists the SSA operands of a non-terminator instruction in
// evaluation order. Phi incomings are not included.
func Operands(inst llir.Instruction) []value.Value {
	switch inst := inst.(type) {
	case *llir.InstAdd:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstFAdd:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstSub:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstFSub:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstMul:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstFMul:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstUDiv:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstSDiv:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstFDiv:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstURem:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstSRem:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstFRem:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstShl:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstLShr:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstAShr:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstAnd:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstOr:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstXor:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstFNeg:
		return []value.Value{inst.X}
	case *llir.InstExtractElement:
		return []value.Value{inst.X, inst.Index}
	case *llir.InstInsertElement:
		return []value.Value{inst.X, inst.Elem, inst.Index}
	case *llir.InstShuffleVector:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstExtractValue:
		return []value.Value{inst.X}
	case *llir.InstInsertValue:
		return []value.Value{inst.X, inst.Elem}
	case *llir.InstAlloca:
		if inst.NElems != nil {
			return []value.Value{inst.NElems}
		}
		return nil
	case *llir.InstLoad:
		return []value.Value{inst.Src}
	case *llir.InstStore:
		return []value.Value{inst.Src, inst.Dst}
	case *llir.InstGetElementPtr:
		ops := make([]value.Value, 0, 1+len(inst.Indices))
		ops = append(ops, inst.Src)
		return append(ops, inst.Indices...)
	case *llir.InstTrunc:
		return []value.Value{inst.From}
	case *llir.InstZExt:
		return []value.Value{inst.From}
	case *llir.InstSExt:
		return []value.Value{inst.From}
	case *llir.InstFPTrunc:
		return []value.Value{inst.From}
	case *llir.InstFPExt:
		return []value.Value{inst.From}
	case *llir.InstFPToUI:
		return []value.Value{inst.From}
	case *llir.InstFPToSI:
		return []value.Value{inst.From}
	case *llir.InstUIToFP:
		return []value.Value{inst.From}
	case *llir.InstSIToFP:
		return []value.Value{inst.From}
	case *llir.InstBitCast:
		return []value.Value{inst.From}
	case *llir.InstICmp:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstFCmp:
		return []value.Value{inst.X, inst.Y}
	case *llir.InstSelect:
		return []value.Value{inst.Cond, inst.ValueTrue, inst.ValueFalse}
	case *llir.InstCall:
		return inst.Args
	}
	return nil
}

// TerminatorOperands lists the SSA operands of a terminator.
func TerminatorOperands(term llir.Terminator) []value.Value {
	switch term := term.(type) {
	case *llir.TermRet:
		if term.X != nil {
			return []value.Value{term.X}
		}
	case *llir.TermCondBr:
		return []value.Value{term.Cond}
	case *llir.TermSwitch:
		return []value.Value{term.X}
	}
	return nil
}

// asBlock returns v as a basic block, or nil.
func asBlock(v any) *llir.Block {
	b, _ := v.(*llir.Block)
	return b
}

func calleeName(call *llir.InstCall) string {
	if f, ok := call.Callee.(*llir.Func); ok {
		return f.Name()
	}
	return ""
}

func isVoid(t types.Type) bool {
	_, ok := t.(*types.VoidType)
	return ok
}

func isPointer(t types.Type) bool {
	_, ok := t.(*types.PointerType)
	return ok
}

func isUndef(v value.Value) bool {
	_, ok := v.(*constant.Undef)
	return ok
}

func isZero(v value.Value) bool {
	_, ok := v.(*constant.ZeroInitializer)
	return ok
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/metadata"
)

// inferSignedness marks the integer values of f that are unsigned. SSA
// integers carry no sign, so it follows the operations that produce or
// require unsigned operands and propagates forward through the
// sign-agnostic arithmetic.
func (t *Translator) inferSignedness(f *llir.Func) map[valueID]bool {
	unsigned := make(map[valueID]bool)
	is := func(v value.Value) bool {
		id, ok := t.refs.id(v)
		return ok && unsigned[id]
	}
	for pass := 0; pass < 3; pass++ {
		changed := false
		for _, b := range f.Blocks {
			for _, inst := range b.Insts {
				v, ok := inst.(value.Value)
				if !ok {
					continue
				}
				id, ok := t.refs.id(v)
				if !ok || unsigned[id] {
					continue
				}
				var u bool
				switch inst := inst.(type) {
				case *llir.InstUDiv, *llir.InstURem, *llir.InstLShr, *llir.InstFPToUI:
					u = true
				case *llir.InstZExt:
					u = !isBool(inst.From.Type())
				case *llir.InstAdd:
					u = is(inst.X) || is(inst.Y)
				case *llir.InstSub:
					u = is(inst.X) || is(inst.Y)
				case *llir.InstMul:
					u = is(inst.X) || is(inst.Y)
				case *llir.InstShl:
					u = is(inst.X)
				case *llir.InstAnd:
					u = is(inst.X) || is(inst.Y)
				case *llir.InstOr:
					u = is(inst.X) || is(inst.Y)
				case *llir.InstXor:
					u = is(inst.X) || is(inst.Y)
				case *llir.InstTrunc:
					u = is(inst.From)
				case *llir.InstSelect:
					u = is(inst.ValueTrue) || is(inst.ValueFalse)
				case *llir.InstPhi:
					for _, inc := range inst.Incs {
						u = u || is(inc.X)
					}
				case *llir.InstExtractElement:
					u = is(inst.X)
				case *llir.InstInsertElement:
					u = is(inst.X) || is(inst.Elem)
				case *llir.InstShuffleVector:
					u = is(inst.X)
				case *llir.InstLoad:
					u = t.unsignedMemory(inst.Src)
				case *llir.InstCall:
					for _, a := range inst.Args {
						u = u || is(a)
					}
					u = u && !isFloatType(inst.Type())
				}
				if u {
					unsigned[id] = true
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	// Operands compared unsigned are unsigned themselves when they have
	// no other evidence.
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			cmp, ok := inst.(*llir.InstICmp)
			if !ok || !unsignedPred(cmp.Pred) {
				continue
			}
			for _, op := range []value.Value{cmp.X, cmp.Y} {
				if id, ok := t.refs.id(op); ok {
					if _, isPhi := op.(*llir.InstPhi); isPhi {
						unsigned[id] = true
					}
				}
			}
		}
	}
	return unsigned
}

// unsignedMemory reports whether a pointer reaches memory declared
// unsigned by metadata.
func (t *Translator) unsignedMemory(ptr value.Value) bool {
	var md *metadata.Node
	var path []int
	for depth := 0; depth < 32; depth++ {
		switch p := ptr.(type) {
		case *llir.Global:
			md = t.globalMetadata(p.Name())
			for i := len(path) - 1; i >= 0 && md != nil; i-- {
				md = md.Member(path[i])
			}
			return md != nil && md.Unsigned
		case *llir.InstGetElementPtr:
			if len(p.Indices) > 1 {
				if k, ok := constIndex(p.Indices[1]); ok && isStructType(p.ElemType) {
					path = append(path, int(k))
				}
			}
			ptr = p.Src
		case *llir.InstBitCast:
			ptr = p.From
		default:
			return false
		}
	}
	return false
}

func unsignedPred(p enum.IPred) bool {
	switch p {
	case enum.IPredUGT, enum.IPredUGE, enum.IPredULT, enum.IPredULE:
		return true
	}
	return false
}

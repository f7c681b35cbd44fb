// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

// StepKind classifies one step of an access chain.
type StepKind uint8

const (
	StepField   StepKind = iota // struct member
	StepIndex                   // array element or matrix column
	StepSwizzle                 // vector component
)

// accessChain is a resolved address: the l-value expression plus what
// is known about the memory it designates.
type accessChain struct {
	expr  ir.ExpressionHandle
	steps []StepKind
	info  pointerInfo
	depth int // steps taken below the root object
}

// resolveAccess turns a getelementptr into an access chain rooted at a
// global, a local or another chain. Constant indices become
// AccessIndex steps and raise the max-index record of the root.
func (t *Translator) resolveAccess(gep *llir.InstGetElementPtr) (accessChain, error) {
	var chain accessChain
	if len(gep.Indices) == 0 {
		return chain, t.unsupported("access", "getelementptr without indices")
	}
	cur := gep.ElemType
	var md *metadata.Node
	indices := gep.Indices

	if g, ok := gep.Src.(*llir.Global); ok {
		name := t.canonical(g.Name())
		if members, ok := t.anon[name]; ok {
			if len(indices) < 2 {
				return chain, t.unsupported("block", "anonymous block %s used as a whole", name)
			}
			k, ok := constIndex(indices[1])
			st, isStruct := cur.(*types.StructType)
			if !ok || !isStruct || k < 0 || int(k) >= len(members) || int(k) >= len(st.Fields) {
				return chain, t.unsupported("block", "member index of %s is not a constant", name)
			}
			gv := t.module.GlobalVariables[members[k]]
			chain.expr = t.globalRef(members[k])
			chain.info = pointerInfo{root: gv.Name, md: t.globalMetadata(name).Member(int(k)), known: true}
			chain.steps = append(chain.steps, StepField)
			cur = st.Fields[k]
			md = chain.info.md
			indices = indices[2:]
			return t.walkIndices(chain, cur, md, indices)
		}
	}

	base, info, err := t.operandPointer(gep.Src)
	if err != nil {
		return chain, err
	}
	chain.expr = base
	if info != nil {
		chain.info = *info
	}
	md = chain.info.md

	first := indices[0]
	indices = indices[1:]
	if k, ok := constIndex(first); !ok || k != 0 {
		// A leading index other than zero steps over whole objects, which
		// only an array-typed pointer can express.
		idx, err := t.indexOperand(first)
		if err != nil {
			return chain, err
		}
		if ok {
			n, err := index32(t, "access", k)
			if err != nil {
				return chain, err
			}
			chain.expr = t.addExpression(ir.ExprAccessIndex{Base: chain.expr, Index: n})
			t.recordIndex(chain.info.root, k, !chain.info.inner)
		} else {
			chain.expr = t.addExpression(ir.ExprAccess{Base: chain.expr, Index: idx})
			chain.info.known = false
		}
		chain.steps = append(chain.steps, StepIndex)
	}
	return t.walkIndices(chain, cur, md, indices)
}

func (t *Translator) walkIndices(chain accessChain, cur types.Type, md *metadata.Node, indices []value.Value) (accessChain, error) {
	for _, idx := range indices {
		curHandle, err := t.translateType(cur, md, true)
		if err != nil {
			return chain, err
		}
		inner := t.registry.GetTypes()[curHandle].Inner
		k, isConst := constIndex(idx)
		if isConst && k < 0 {
			return chain, t.unsupported("access", "negative index %d", k)
		}

		switch ct := cur.(type) {
		case *types.StructType:
			if !isConst || int(k) >= len(ct.Fields) {
				return chain, t.unsupported("access", "struct member index is not a constant")
			}
			chain.expr = t.addExpression(ir.ExprAccessIndex{Base: chain.expr, Index: uint32(k)})
			if st, ok := inner.(ir.StructType); ok && int(k) < len(st.Members) {
				chain.info.offset += st.Members[k].Offset
			}
			chain.steps = append(chain.steps, StepField)
			cur = ct.Fields[k]
			if md != nil {
				md = md.Member(int(k))
			}

		case *types.ArrayType:
			stride := t.elementStride(inner, md)
			if isConst {
				n, err := index32(t, "access", k)
				if err != nil {
					return chain, err
				}
				chain.expr = t.addExpression(ir.ExprAccessIndex{Base: chain.expr, Index: n})
				chain.info.offset += n * stride
				t.recordIndex(chain.info.root, k, chain.depth == 0 && !chain.info.inner)
			} else {
				h, err := t.indexOperand(idx)
				if err != nil {
					return chain, err
				}
				chain.expr = t.addExpression(ir.ExprAccess{Base: chain.expr, Index: h})
				chain.info.known = false
			}
			chain.steps = append(chain.steps, StepIndex)
			cur = ct.ElemType

		case *types.VectorType:
			s, _ := scalarOf(inner)
			if isConst {
				n, err := index32(t, "access", k)
				if err != nil {
					return chain, err
				}
				chain.expr = t.addExpression(ir.ExprAccessIndex{Base: chain.expr, Index: n})
				chain.info.offset += n * uint32(s.Width)
			} else {
				h, err := t.indexOperand(idx)
				if err != nil {
					return chain, err
				}
				chain.expr = t.addExpression(ir.ExprAccess{Base: chain.expr, Index: h})
				chain.info.known = false
			}
			chain.steps = append(chain.steps, StepSwizzle)
			cur = ct.ElemType

		default:
			return chain, t.unsupported("access", "cannot index into %s", cur)
		}
		chain.depth++
	}
	chain.info.md = md
	if chain.depth > 0 {
		chain.info.inner = true
	}
	return chain, nil
}

// elementStride returns the byte distance between consecutive elements
// of an array or matrix type.
func (t *Translator) elementStride(inner ir.TypeInner, md *metadata.Node) uint32 {
	layouter := ir.NewLayouter(t.registry.GetTypes(), layoutOf(md))
	switch inner := inner.(type) {
	case ir.ArrayType:
		if inner.Stride != 0 {
			return inner.Stride
		}
		return layouter.ArrayStride(inner.Base)
	case ir.MatrixType:
		l := layouter.LayoutInner(inner)
		return l.Size / uint32(inner.Columns)
	}
	return 0
}

// recordIndex raises the largest constant index seen anywhere below
// root. Indices into root itself, when outer is set, also size an
// implicitly sized root array.
func (t *Translator) recordIndex(root string, k int64, outer bool) {
	if root == "" || k < 0 {
		return
	}
	raise(t.maxIndex, root, int(k))
	if outer {
		raise(t.outerIndex, root, int(k))
	}
}

func raise(table map[string]int, key string, v int) {
	if cur, ok := table[key]; !ok || v > cur {
		table[key] = v
	}
}

func (t *Translator) indexOperand(v value.Value) (ir.ExpressionHandle, error) {
	return t.operandAs(v, ir.ScalarSint)
}

// lowerGEP binds a getelementptr to its l-value.
func (t *Translator) lowerGEP(gep *llir.InstGetElementPtr) error {
	chain, err := t.resolveAccess(gep)
	if err != nil {
		return err
	}
	id, ok := t.refs.id(gep)
	if !ok {
		return t.internal("getelementptr is not numbered")
	}
	info := chain.info
	t.fn.values[id] = node{kind: nodePointer, expr: chain.expr, ptr: &info}
	return nil
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/ir"
)

// Rewrites for constructs GLSL has no direct spelling for.
//
// TODO: drop saturate and the scalar-bound splat once the front end
// decomposes fSaturate and mixed-width fClamp before they reach us.

// saturate lowers saturate(x) to clamp(x, 0.0, 1.0).
func (t *Translator) saturate(x ir.ExpressionHandle) ir.ExpressionHandle {
	s, _ := scalarOf(t.exprInner(x))
	return t.clamp(x, t.floatLiteral(s, 0), t.floatLiteral(s, 1))
}

func (t *Translator) floatLiteral(s ir.ScalarType, v float64) ir.ExpressionHandle {
	if s.Width == 8 {
		return t.literal(ir.LiteralF64(v))
	}
	return t.literal(ir.LiteralF32(float32(v)))
}

// clamp builds clamp(x, lo, hi), splatting scalar bounds of a vector x.
func (t *Translator) clamp(x, lo, hi ir.ExpressionHandle) ir.ExpressionHandle {
	if size := vectorSizeOf(t.exprInner(x)); size != 0 {
		lo = t.splat(lo, size)
		hi = t.splat(hi, size)
	}
	return t.addExpression(ir.ExprMath{Fun: ir.MathClamp, Arg: x, Arg1: &lo, Arg2: &hi})
}

func (t *Translator) splat(h ir.ExpressionHandle, size ir.VectorSize) ir.ExpressionHandle {
	if vectorSizeOf(t.exprInner(h)) != 0 {
		return h
	}
	return t.addExpression(ir.ExprSplat{Size: size, Value: h})
}

// matrixFromColumns composes a matrix from its column vectors.
func (t *Translator) matrixFromColumns(cols []value.Value) (ir.ExpressionHandle, error) {
	comps := make([]ir.ExpressionHandle, len(cols))
	for i, c := range cols {
		h, err := t.operand(c)
		if err != nil {
			return 0, err
		}
		comps[i] = h
	}
	vt, ok := t.exprInner(comps[0]).(ir.VectorType)
	if !ok {
		return 0, t.unsupported("intrinsic", "matrix column is not a vector")
	}
	ty := t.registry.GetOrCreate("", ir.MatrixType{
		Columns: ir.VectorSize(len(cols)),
		Rows:    vt.Size,
		Scalar:  vt.Scalar,
	})
	return t.addExpression(ir.ExprCompose{Type: ty, Components: comps}), nil
}

// fixLValue writes a masked insert back as a whole vector, reading the
// lanes outside the mask from the target itself.
func (t *Translator) fixLValue(ptr ir.ExpressionHandle, m *maskedInsert) error {
	cur := t.addExpression(ir.ExprLoad{Pointer: ptr})
	all := make([]ir.ExpressionHandle, m.size)
	for i := range all {
		all[i] = t.addExpression(ir.ExprAccessIndex{Base: cur, Index: uint32(i)})
	}
	for i, lane := range m.lanes {
		all[lane] = m.comps[i]
	}
	ty := t.registry.GetOrCreate("", ir.VectorType{Size: m.size, Scalar: m.scalar})
	t.push(ir.StmtStore{Pointer: ptr, Value: t.addExpression(ir.ExprCompose{Type: ty, Components: all})})
	return nil
}

// writeMasked reports whether call is a masked insert the store of
// which can be narrowed to the written lanes.
func writeMasked(call *llir.InstCall) bool {
	switch intrinsicBase(calleeName(call)) {
	case "fMultiInsert", "multiInsert":
		return true
	}
	return false
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"errors"
	"strings"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/ir"
)

// AddInstruction lowers one non-terminator instruction. lastBlock is set
// for the final block of the function at top level;
// referencedOutsideScope is set when a consumer lives in another block.
//
// Unsupported constructs are logged and replaced by a zero value of the
// right type, so the walk can continue.
func (t *Translator) AddInstruction(inst llir.Instruction, lastBlock, referencedOutsideScope bool) error {
	if err := t.readyBody("AddInstruction"); err != nil {
		return err
	}
	if t.fn.aborted != nil {
		return nil
	}
	err := t.emitInstruction(inst, referencedOutsideScope)
	if err == nil {
		return nil
	}
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		t.fallback(inst)
		return t.settle(ue.Construct, err)
	}
	return t.settle("instruction", err)
}

// fallback binds an unsupported value to a zero placeholder.
func (t *Translator) fallback(inst llir.Instruction) {
	v, ok := inst.(value.Value)
	if !ok || isVoid(v.Type()) {
		return
	}
	id, ok := t.refs.id(v)
	if !ok {
		return
	}
	if _, done := t.fn.values[id]; done {
		return
	}
	if isPointer(v.Type()) {
		return
	}
	ty, err := t.valueType(v)
	if err != nil {
		return
	}
	t.fn.values[id] = node{kind: nodeValue, expr: t.addExpression(ir.ExprZeroValue{Type: ty})}
}

func (t *Translator) emitInstruction(inst llir.Instruction, outside bool) error {
	switch inst := inst.(type) {
	case *llir.InstPhi:
		id, ok := t.refs.id(inst)
		if !ok {
			return t.internal("phi is not numbered")
		}
		if _, ok := t.fn.phis[id]; !ok {
			return t.internal("phi %s reached before DeclarePhiCopy", describe(inst))
		}
		return nil

	case *llir.InstAlloca:
		if inst.NElems != nil {
			if n, ok := constIndex(inst.NElems); !ok || n != 1 {
				return t.unsupported("alloca", "dynamic element count")
			}
		}
		ty, err := t.translateType(inst.ElemType, nil, true)
		if err != nil {
			return err
		}
		lv := t.addLocal(valueName(inst), ty)
		id, _ := t.refs.id(inst)
		t.fn.values[id] = node{kind: nodePointer, expr: t.localPtr(lv), ptr: &pointerInfo{root: t.fn.ir.LocalVars[lv].Name, known: true}}
		return nil

	case *llir.InstLoad:
		ptr, _, err := t.operandPointer(inst.Src)
		if err != nil {
			return err
		}
		return t.define(inst, t.addExpression(ir.ExprLoad{Pointer: ptr}), outside)

	case *llir.InstStore:
		return t.store(inst)

	case *llir.InstGetElementPtr:
		return t.lowerGEP(inst)

	case *llir.InstBitCast:
		return t.bitcast(inst, outside)

	case *llir.InstFNeg:
		x, err := t.operand(inst.X)
		if err != nil {
			return err
		}
		return t.define(inst, t.addExpression(ir.ExprUnary{Op: ir.UnaryNegate, Expr: x}), outside)

	case *llir.InstICmp:
		h, err := t.icmp(inst.Pred, inst.X, inst.Y)
		if err != nil {
			return err
		}
		return t.define(inst, h, outside)

	case *llir.InstFCmp:
		h, err := t.fcmp(inst.Pred, inst.X, inst.Y)
		if err != nil {
			return err
		}
		return t.define(inst, h, outside)

	case *llir.InstSelect:
		return t.selectValue(inst, outside)

	case *llir.InstExtractElement:
		return t.extractElement(inst, outside)

	case *llir.InstInsertElement:
		return t.insertElement(inst, outside)

	case *llir.InstShuffleVector:
		return t.shuffle(inst, outside)

	case *llir.InstExtractValue:
		x, err := t.operand(inst.X)
		if err != nil {
			return err
		}
		for _, k := range inst.Indices {
			idx, err := index32(t, "extractvalue", k)
			if err != nil {
				return err
			}
			x = t.addExpression(ir.ExprAccessIndex{Base: x, Index: idx})
		}
		return t.define(inst, x, outside)

	case *llir.InstInsertValue:
		return t.insertValue(inst)

	case *llir.InstCall:
		return t.call(inst, outside)
	}

	if h, ok, err := t.arithmetic(inst); ok {
		if err != nil {
			return err
		}
		return t.define(inst.(value.Value), h, outside)
	}
	if h, ok, err := t.conversion(inst); ok {
		if err != nil {
			return err
		}
		return t.define(inst.(value.Value), h, outside)
	}
	return t.unsupported("instruction", "%s", instName(inst))
}

func instName(inst llir.Instruction) string {
	s := inst.LLString()
	if i := strings.IndexByte(s, '='); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	return s
}

// store lowers a store. Partial vector writes built by masked inserts of
// the loaded target become swizzle stores.
func (t *Translator) store(inst *llir.InstStore) error {
	if m, ok := t.fn.inserts[inst.Src]; ok && m.target == inst.Dst {
		if id, ok := t.refs.id(inst.Src); ok {
			t.refs.consume(id)
		}
		ptr, _, err := t.operandPointer(inst.Dst)
		if err != nil {
			return err
		}
		return t.maskedStore(ptr, m)
	}
	val, err := t.operand(inst.Src)
	if err != nil {
		return err
	}
	ptr, _, err := t.operandPointer(inst.Dst)
	if err != nil {
		return err
	}
	if ty, err := t.pointeeType(ptr); err == nil {
		val = t.coerceTo(val, ty)
	}
	t.push(ir.StmtStore{Pointer: ptr, Value: val})
	return nil
}

// pointeeType returns the type an l-value designates.
func (t *Translator) pointeeType(ptr ir.ExpressionHandle) (ir.TypeHandle, error) {
	return t.exprType(ptr)
}

func (t *Translator) bitcast(inst *llir.InstBitCast, outside bool) error {
	if isPointer(inst.From.Type()) {
		ptr, info, err := t.operandPointer(inst.From)
		if err != nil {
			return err
		}
		id, _ := t.refs.id(inst)
		t.fn.values[id] = node{kind: nodePointer, expr: ptr, ptr: info}
		return nil
	}
	x, err := t.operand(inst.From)
	if err != nil {
		return err
	}
	to, err := t.valueType(inst)
	if err != nil {
		return err
	}
	s, ok := scalarOf(t.typeInner(to))
	if !ok {
		return t.unsupported("bitcast", "to %s", inst.To)
	}
	if from, ok := scalarOf(t.exprInner(x)); ok && from == s {
		return t.define(inst, x, outside)
	}
	return t.define(inst, t.addExpression(ir.ExprAs{Expr: x, Kind: s.Kind}), outside)
}

var binaryOps = map[string]ir.BinaryOperator{
	"add": ir.BinaryAdd, "fadd": ir.BinaryAdd,
	"sub": ir.BinarySubtract, "fsub": ir.BinarySubtract,
	"mul": ir.BinaryMultiply, "fmul": ir.BinaryMultiply,
	"udiv": ir.BinaryDivide, "sdiv": ir.BinaryDivide, "fdiv": ir.BinaryDivide,
	"urem": ir.BinaryModulo, "srem": ir.BinaryModulo,
	"shl": ir.BinaryShiftLeft, "lshr": ir.BinaryShiftRight, "ashr": ir.BinaryShiftRight,
	"and": ir.BinaryAnd, "or": ir.BinaryInclusiveOr, "xor": ir.BinaryExclusiveOr,
}

// arithmetic lowers the two-operand arithmetic and bitwise instructions.
func (t *Translator) arithmetic(inst llir.Instruction) (ir.ExpressionHandle, bool, error) {
	var op string
	var x, y value.Value
	switch inst := inst.(type) {
	case *llir.InstAdd:
		op, x, y = "add", inst.X, inst.Y
	case *llir.InstFAdd:
		op, x, y = "fadd", inst.X, inst.Y
	case *llir.InstSub:
		op, x, y = "sub", inst.X, inst.Y
	case *llir.InstFSub:
		op, x, y = "fsub", inst.X, inst.Y
	case *llir.InstMul:
		op, x, y = "mul", inst.X, inst.Y
	case *llir.InstFMul:
		op, x, y = "fmul", inst.X, inst.Y
	case *llir.InstUDiv:
		op, x, y = "udiv", inst.X, inst.Y
	case *llir.InstSDiv:
		op, x, y = "sdiv", inst.X, inst.Y
	case *llir.InstFDiv:
		op, x, y = "fdiv", inst.X, inst.Y
	case *llir.InstURem:
		op, x, y = "urem", inst.X, inst.Y
	case *llir.InstSRem:
		op, x, y = "srem", inst.X, inst.Y
	case *llir.InstFRem:
		h, err := t.floatModulo(inst.X, inst.Y)
		return h, true, err
	case *llir.InstShl:
		op, x, y = "shl", inst.X, inst.Y
	case *llir.InstLShr:
		op, x, y = "lshr", inst.X, inst.Y
	case *llir.InstAShr:
		op, x, y = "ashr", inst.X, inst.Y
	case *llir.InstAnd:
		op, x, y = "and", inst.X, inst.Y
	case *llir.InstOr:
		op, x, y = "or", inst.X, inst.Y
	case *llir.InstXor:
		op, x, y = "xor", inst.X, inst.Y
	default:
		return 0, false, nil
	}
	v := inst.(value.Value)

	if isBool(v.Type()) {
		h, err := t.logical(op, x, y, v.Type())
		return h, true, err
	}
	if op == "xor" {
		if allOnes(y) {
			h, err := t.operandAs(x, t.intKind(v))
			if err != nil {
				return 0, true, err
			}
			return t.addExpression(ir.ExprUnary{Op: ir.UnaryBitwiseNot, Expr: h}), true, nil
		}
	}

	kind := ir.ScalarFloat
	if !isFloatType(v.Type()) {
		switch op {
		case "udiv", "urem", "lshr":
			kind = ir.ScalarUint
		case "sdiv", "srem", "ashr":
			kind = ir.ScalarSint
		default:
			kind = t.intKind(v)
		}
	}
	lh, err := t.operandAs(x, kind)
	if err != nil {
		return 0, true, err
	}
	rk := kind
	if op == "shl" || op == "lshr" || op == "ashr" {
		// The shift amount may be of either signedness.
		rk = t.intKind(y)
	}
	rh, err := t.operandAs(y, rk)
	if err != nil {
		return 0, true, err
	}
	h := t.addExpression(ir.ExprBinary{Op: binaryOps[op], Left: lh, Right: rh})
	if kind != ir.ScalarFloat && kind != t.intKind(v) {
		h = t.coerce(h, t.intKind(v))
	}
	return h, true, nil
}

// logical lowers and, or and xor on booleans.
func (t *Translator) logical(op string, x, y value.Value, ty types.Type) (ir.ExpressionHandle, error) {
	if op == "xor" {
		if isTrue(y) {
			h, err := t.operand(x)
			if err != nil {
				return 0, err
			}
			return t.not(h), nil
		}
		if isTrue(x) {
			h, err := t.operand(y)
			if err != nil {
				return 0, err
			}
			return t.not(h), nil
		}
	}
	if _, vec := ty.(*types.VectorType); vec && op != "xor" {
		return 0, t.unsupported("instruction", "%s on boolean vectors", op)
	}
	lh, err := t.operand(x)
	if err != nil {
		return 0, err
	}
	rh, err := t.operand(y)
	if err != nil {
		return 0, err
	}
	bop := ir.BinaryLogicalAnd
	switch op {
	case "or":
		bop = ir.BinaryLogicalOr
	case "xor":
		bop = ir.BinaryNotEqual
	}
	return t.addExpression(ir.ExprBinary{Op: bop, Left: lh, Right: rh}), nil
}

// floatModulo lowers frem as x - y * trunc(x / y), which keeps the sign
// of the dividend.
func (t *Translator) floatModulo(x, y value.Value) (ir.ExpressionHandle, error) {
	xh, err := t.operand(x)
	if err != nil {
		return 0, err
	}
	yh, err := t.operand(y)
	if err != nil {
		return 0, err
	}
	div := t.addExpression(ir.ExprBinary{Op: ir.BinaryDivide, Left: xh, Right: yh})
	tr := t.addExpression(ir.ExprMath{Fun: ir.MathTrunc, Arg: div})
	mul := t.addExpression(ir.ExprBinary{Op: ir.BinaryMultiply, Left: yh, Right: tr})
	return t.addExpression(ir.ExprBinary{Op: ir.BinarySubtract, Left: xh, Right: mul}), nil
}

var icmpOps = map[enum.IPred]ir.BinaryOperator{
	enum.IPredEQ:  ir.BinaryEqual,
	enum.IPredNE:  ir.BinaryNotEqual,
	enum.IPredSGT: ir.BinaryGreater,
	enum.IPredSGE: ir.BinaryGreaterEqual,
	enum.IPredSLT: ir.BinaryLess,
	enum.IPredSLE: ir.BinaryLessEqual,
	enum.IPredUGT: ir.BinaryGreater,
	enum.IPredUGE: ir.BinaryGreaterEqual,
	enum.IPredULT: ir.BinaryLess,
	enum.IPredULE: ir.BinaryLessEqual,
}

// icmp lowers an integer comparison. Operands are converted to the
// signedness the predicate requires.
func (t *Translator) icmp(pred enum.IPred, x, y value.Value) (ir.ExpressionHandle, error) {
	op, ok := icmpOps[pred]
	if !ok {
		return 0, t.unsupported("icmp", "predicate %s", pred)
	}
	if isBool(x.Type()) {
		lh, err := t.operand(x)
		if err != nil {
			return 0, err
		}
		rh, err := t.operand(y)
		if err != nil {
			return 0, err
		}
		return t.addExpression(ir.ExprBinary{Op: op, Left: lh, Right: rh}), nil
	}
	kind := ir.ScalarSint
	switch pred {
	case enum.IPredUGT, enum.IPredUGE, enum.IPredULT, enum.IPredULE:
		kind = ir.ScalarUint
	case enum.IPredEQ, enum.IPredNE:
		kind = t.intKind(x)
	}
	lh, err := t.operandAs(x, kind)
	if err != nil {
		return 0, err
	}
	rh, err := t.operandAs(y, kind)
	if err != nil {
		return 0, err
	}
	return t.addExpression(ir.ExprBinary{Op: op, Left: lh, Right: rh}), nil
}

// fcmp lowers a floating-point comparison. Ordered and unordered
// variants of the same relation share an operator; ord and uno test for
// NaN explicitly.
func (t *Translator) fcmp(pred enum.FPred, x, y value.Value) (ir.ExpressionHandle, error) {
	switch pred {
	case enum.FPredTrue, enum.FPredFalse:
		return t.literal(ir.LiteralBool(pred == enum.FPredTrue)), nil
	}
	lh, err := t.operand(x)
	if err != nil {
		return 0, err
	}
	rh, err := t.operand(y)
	if err != nil {
		return 0, err
	}
	var op ir.BinaryOperator
	switch pred {
	case enum.FPredOEQ, enum.FPredUEQ:
		op = ir.BinaryEqual
	case enum.FPredONE, enum.FPredUNE:
		op = ir.BinaryNotEqual
	case enum.FPredOGT, enum.FPredUGT:
		op = ir.BinaryGreater
	case enum.FPredOGE, enum.FPredUGE:
		op = ir.BinaryGreaterEqual
	case enum.FPredOLT, enum.FPredULT:
		op = ir.BinaryLess
	case enum.FPredOLE, enum.FPredULE:
		op = ir.BinaryLessEqual
	case enum.FPredORD, enum.FPredUNO:
		xn := t.addExpression(ir.ExprRelational{Fun: ir.RelationalIsNan, Argument: lh})
		yn := t.addExpression(ir.ExprRelational{Fun: ir.RelationalIsNan, Argument: rh})
		either := t.addExpression(ir.ExprBinary{Op: ir.BinaryLogicalOr, Left: xn, Right: yn})
		if pred == enum.FPredORD {
			return t.not(either), nil
		}
		return either, nil
	default:
		return 0, t.unsupported("fcmp", "predicate %s", pred)
	}
	return t.addExpression(ir.ExprBinary{Op: op, Left: lh, Right: rh}), nil
}

func (t *Translator) selectValue(inst *llir.InstSelect, outside bool) error {
	c, err := t.operand(inst.Cond)
	if err != nil {
		return err
	}
	kind := ir.ScalarFloat
	if !isFloatType(inst.Type()) {
		kind = t.intKind(inst)
	}
	a, err := t.operandAs(inst.ValueTrue, kind)
	if err != nil {
		return err
	}
	b, err := t.operandAs(inst.ValueFalse, kind)
	if err != nil {
		return err
	}
	return t.define(inst, t.addExpression(ir.ExprSelect{Condition: c, Accept: a, Reject: b}), outside)
}

// conversion lowers the cast instructions.
func (t *Translator) conversion(inst llir.Instruction) (ir.ExpressionHandle, bool, error) {
	var from value.Value
	var to types.Type
	var kind ir.ScalarKind
	switch inst := inst.(type) {
	case *llir.InstTrunc:
		if isBool(inst.To) {
			x, err := t.operand(inst.From)
			if err != nil {
				return 0, true, err
			}
			s, _ := scalarOf(t.exprInner(x))
			one := t.smallInt(s.Kind, 1)
			zero := t.smallInt(s.Kind, 0)
			if size := vectorSizeOf(t.exprInner(x)); size != 0 {
				one = t.addExpression(ir.ExprSplat{Size: size, Value: one})
				zero = t.addExpression(ir.ExprSplat{Size: size, Value: zero})
			}
			and := t.addExpression(ir.ExprBinary{Op: ir.BinaryAnd, Left: x, Right: one})
			return t.addExpression(ir.ExprBinary{Op: ir.BinaryNotEqual, Left: and, Right: zero}), true, nil
		}
		from, to, kind = inst.From, inst.To, t.intKind(inst)
	case *llir.InstZExt:
		if isBool(inst.From.Type()) {
			h, err := t.boolToInt(inst.From, inst.To, ir.ScalarUint, 1)
			return h, true, err
		}
		from, to, kind = inst.From, inst.To, ir.ScalarUint
	case *llir.InstSExt:
		if isBool(inst.From.Type()) {
			h, err := t.boolToInt(inst.From, inst.To, ir.ScalarSint, -1)
			return h, true, err
		}
		from, to, kind = inst.From, inst.To, ir.ScalarSint
	case *llir.InstFPToUI:
		from, to, kind = inst.From, inst.To, ir.ScalarUint
	case *llir.InstFPToSI:
		from, to, kind = inst.From, inst.To, ir.ScalarSint
	case *llir.InstUIToFP:
		x, err := t.operandAs(inst.From, ir.ScalarUint)
		if err != nil {
			return 0, true, err
		}
		h, err := t.convert(x, inst.To, ir.ScalarFloat)
		return h, true, err
	case *llir.InstSIToFP:
		x, err := t.operandAs(inst.From, ir.ScalarSint)
		if err != nil {
			return 0, true, err
		}
		h, err := t.convert(x, inst.To, ir.ScalarFloat)
		return h, true, err
	case *llir.InstFPTrunc:
		from, to, kind = inst.From, inst.To, ir.ScalarFloat
	case *llir.InstFPExt:
		from, to, kind = inst.From, inst.To, ir.ScalarFloat
	case *llir.InstPtrToInt, *llir.InstIntToPtr, *llir.InstAddrSpaceCast:
		return 0, true, t.unsupported("cast", "%s", instName(inst))
	default:
		return 0, false, nil
	}
	x, err := t.operand(from)
	if err != nil {
		return 0, true, err
	}
	h, err := t.convert(x, to, kind)
	return h, true, err
}

// convert emits a value conversion of x to the scalar width of to.
func (t *Translator) convert(x ir.ExpressionHandle, to types.Type, kind ir.ScalarKind) (ir.ExpressionHandle, error) {
	s, err := t.scalarType(scalarElem(to), kind != ir.ScalarUint)
	if err != nil {
		return 0, err
	}
	if cur, ok := scalarOf(t.exprInner(x)); ok && cur.Kind == kind && cur.Width == s.Width {
		return x, nil
	}
	w := s.Width
	return t.addExpression(ir.ExprAs{Expr: x, Kind: kind, Convert: &w}), nil
}

// boolToInt lowers a boolean extension as a select between the true
// value and zero.
func (t *Translator) boolToInt(from value.Value, to types.Type, kind ir.ScalarKind, truth int8) (ir.ExpressionHandle, error) {
	c, err := t.operand(from)
	if err != nil {
		return 0, err
	}
	one := t.smallInt(kind, truth)
	zero := t.smallInt(kind, 0)
	if vt, ok := to.(*types.VectorType); ok {
		size := ir.VectorSize(vt.Len)
		one = t.addExpression(ir.ExprSplat{Size: size, Value: one})
		zero = t.addExpression(ir.ExprSplat{Size: size, Value: zero})
	}
	return t.addExpression(ir.ExprSelect{Condition: c, Accept: one, Reject: zero}), nil
}

func (t *Translator) extractElement(inst *llir.InstExtractElement, outside bool) error {
	x, err := t.operand(inst.X)
	if err != nil {
		return err
	}
	if k, ok := constIndex(inst.Index); ok {
		if vt, isVec := inst.X.Type().(*types.VectorType); k < 0 || (isVec && uint64(k) >= vt.Len) {
			return t.unsupported("extractelement", "index %d out of range", k)
		}
		if comps, ok := t.composed(x); ok && int(k) < len(comps) {
			return t.define(inst, comps[k], outside)
		}
		n, err := index32(t, "extractelement", k)
		if err != nil {
			return err
		}
		return t.define(inst, t.addExpression(ir.ExprAccessIndex{Base: x, Index: n}), outside)
	}
	idx, err := t.indexOperand(inst.Index)
	if err != nil {
		return err
	}
	return t.define(inst, t.addExpression(ir.ExprAccess{Base: x, Index: idx}), outside)
}

// composed returns the components of an inline vector construction.
func (t *Translator) composed(h ir.ExpressionHandle) ([]ir.ExpressionHandle, bool) {
	c, ok := t.fn.ir.Expressions[h].Kind.(ir.ExprCompose)
	if !ok {
		return nil, false
	}
	if _, isVec := t.typeInner(c.Type).(ir.VectorType); !isVec {
		return nil, false
	}
	return c.Components, true
}

// insertElement lowers an element insert. With a constant index the
// result is a new vector construction; otherwise the vector is copied to
// a temporary and the element written through it.
func (t *Translator) insertElement(inst *llir.InstInsertElement, outside bool) error {
	ty, err := t.valueType(inst)
	if err != nil {
		return err
	}
	vt, ok := t.typeInner(ty).(ir.VectorType)
	if !ok {
		return t.unsupported("insertelement", "into %s", inst.Type())
	}
	k, isConst := constIndex(inst.Index)
	if !isConst {
		return t.insertDynamic(inst, ty)
	}
	var comps []ir.ExpressionHandle
	switch {
	case isUndef(inst.X) || isZero(inst.X):
		zero := t.addExpression(ir.ExprZeroValue{Type: t.registry.GetOrCreate("", vt.Scalar)})
		comps = make([]ir.ExpressionHandle, vt.Size)
		for i := range comps {
			comps[i] = zero
		}
	default:
		x, err := t.operand(inst.X)
		if err != nil {
			return err
		}
		if prev, ok := t.composed(x); ok {
			comps = append([]ir.ExpressionHandle(nil), prev...)
		} else {
			comps = make([]ir.ExpressionHandle, vt.Size)
			for i := range comps {
				comps[i] = t.addExpression(ir.ExprAccessIndex{Base: x, Index: uint32(i)})
			}
		}
	}
	e, err := t.operandAs(inst.Elem, vt.Scalar.Kind)
	if err != nil {
		return err
	}
	if k < 0 || int(k) >= len(comps) {
		return t.unsupported("insertelement", "index %d out of range", k)
	}
	comps[k] = e
	return t.define(inst, t.addExpression(ir.ExprCompose{Type: ty, Components: comps}), outside)
}

func (t *Translator) insertDynamic(inst *llir.InstInsertElement, ty ir.TypeHandle) error {
	id, _ := t.refs.id(inst)
	lv := t.addLocal(valueName(inst), ty)
	ptr := t.localPtr(lv)
	if !isUndef(inst.X) {
		x, err := t.operand(inst.X)
		if err != nil {
			return err
		}
		t.push(ir.StmtStore{Pointer: ptr, Value: x})
	}
	idx, err := t.indexOperand(inst.Index)
	if err != nil {
		return err
	}
	e, err := t.operand(inst.Elem)
	if err != nil {
		return err
	}
	t.push(ir.StmtStore{Pointer: t.addExpression(ir.ExprAccess{Base: ptr, Index: idx}), Value: e})
	t.fn.values[id] = node{kind: nodeTemp, local: lv}
	t.fn.stats.Temps++
	return nil
}

func (t *Translator) insertValue(inst *llir.InstInsertValue) error {
	ty, err := t.valueType(inst)
	if err != nil {
		return err
	}
	id, _ := t.refs.id(inst)
	lv := t.addLocal(valueName(inst), ty)
	ptr := t.localPtr(lv)
	if !isUndef(inst.X) {
		x, err := t.operand(inst.X)
		if err != nil {
			return err
		}
		t.push(ir.StmtStore{Pointer: ptr, Value: x})
	}
	target := ptr
	for _, k := range inst.Indices {
		idx, err := index32(t, "insertvalue", k)
		if err != nil {
			return err
		}
		target = t.addExpression(ir.ExprAccessIndex{Base: target, Index: idx})
	}
	e, err := t.operand(inst.Elem)
	if err != nil {
		return err
	}
	if ety, err := t.exprType(target); err == nil {
		e = t.coerceTo(e, ety)
	}
	t.push(ir.StmtStore{Pointer: target, Value: e})
	t.fn.values[id] = node{kind: nodeTemp, local: lv}
	t.fn.stats.Temps++
	return nil
}

// shuffle lowers shufflevector to a swizzle of one source, or to a
// construction from both.
func (t *Translator) shuffle(inst *llir.InstShuffleVector, outside bool) error {
	mask, err := shuffleMask(inst.Mask)
	if err != nil {
		return t.unsupported("shufflevector", "%v", err)
	}
	xt, ok := inst.X.Type().(*types.VectorType)
	if !ok {
		return t.unsupported("shufflevector", "operand is not a vector")
	}
	n := int(xt.Len)
	if len(mask) > 4 || len(mask) < 1 {
		return t.unsupported("shufflevector", "%d-component result", len(mask))
	}
	fromX, fromY := false, false
	for _, m := range mask {
		switch {
		case m < 0:
		case m < n:
			fromX = true
		default:
			fromY = true
		}
	}
	x, err := t.operand(inst.X)
	if err != nil {
		return err
	}
	var y ir.ExpressionHandle
	if !isUndef(inst.Y) {
		if y, err = t.operand(inst.Y); err != nil {
			return err
		}
	}
	if !fromY || !fromX {
		src, off := x, 0
		if fromY {
			src, off = y, n
		}
		if len(mask) == 1 {
			return t.define(inst, t.addExpression(ir.ExprAccessIndex{Base: src, Index: uint32(max(mask[0]-off, 0))}), outside)
		}
		var pattern [4]ir.SwizzleComponent
		for i, m := range mask {
			if m >= off {
				pattern[i] = ir.SwizzleComponent(m - off)
			}
		}
		return t.define(inst, t.addExpression(ir.ExprSwizzle{Size: ir.VectorSize(len(mask)), Vector: src, Pattern: pattern}), outside)
	}
	ty, err := t.valueType(inst)
	if err != nil {
		return err
	}
	comps := make([]ir.ExpressionHandle, len(mask))
	for i, m := range mask {
		src, idx := x, m
		if m >= n {
			src, idx = y, m-n
		}
		if m < 0 {
			idx = 0
		}
		comps[i] = t.addExpression(ir.ExprAccessIndex{Base: src, Index: uint32(idx)})
	}
	return t.define(inst, t.addExpression(ir.ExprCompose{Type: ty, Components: comps}), outside)
}

// shuffleMask returns the mask of a shufflevector; -1 marks an undefined
// lane.
func shuffleMask(v value.Value) ([]int, error) {
	switch m := v.(type) {
	case *constant.Vector:
		out := make([]int, len(m.Elems))
		for i, e := range m.Elems {
			if k, ok := constIndex(e); ok {
				out[i] = int(k)
			} else {
				out[i] = -1
			}
		}
		return out, nil
	case *constant.ZeroInitializer:
		if vt, ok := m.Type().(*types.VectorType); ok {
			return make([]int, vt.Len), nil
		}
	case *constant.Undef:
		if vt, ok := m.Type().(*types.VectorType); ok {
			out := make([]int, vt.Len)
			for i := range out {
				out[i] = -1
			}
			return out, nil
		}
	}
	return nil, errMask
}

var errMask = &UnsupportedError{Construct: "shufflevector", Detail: "mask is not a constant vector"}

// AddReturn lowers a return. A void return closing the entry point is
// implied by the end of the function and dropped.
func (t *Translator) AddReturn(ret *llir.TermRet, lastBlock bool) error {
	if err := t.readyBody("AddReturn"); err != nil || t.fn.aborted != nil {
		return err
	}
	if ret.X == nil {
		if lastBlock && t.fn.entry && len(t.fn.frames) == 0 {
			return nil
		}
		t.push(ir.StmtReturn{})
		return nil
	}
	h, err := t.operand(ret.X)
	if err != nil {
		return t.settle("return", err)
	}
	if res := t.fn.ir.Result; res != nil {
		h = t.coerceTo(h, res.Type)
	}
	t.push(ir.StmtReturn{Value: &h})
	return nil
}

// AddDiscard lowers a fragment discard.
func (t *Translator) AddDiscard() error {
	if err := t.readyBody("AddDiscard"); err != nil || t.fn.aborted != nil {
		return err
	}
	t.push(ir.StmtKill{})
	return nil
}

func scalarElem(ty types.Type) types.Type {
	if v, ok := ty.(*types.VectorType); ok {
		return v.ElemType
	}
	return ty
}

func isTrue(v value.Value) bool {
	c, ok := v.(*constant.Int)
	return ok && c.Typ.BitSize == 1 && c.X.Sign() != 0
}

// allOnes reports whether v is an integer constant, or a splat vector of
// one, with every bit set.
func allOnes(v value.Value) bool {
	switch c := v.(type) {
	case *constant.Int:
		return c.X.Int64() == -1 || (c.Typ.BitSize < 64 && c.X.Uint64() == 1<<c.Typ.BitSize-1)
	case *constant.Vector:
		for _, e := range c.Elems {
			if !allOnes(e) {
				return false
			}
		}
		return len(c.Elems) > 0
	}
	return false
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"strings"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/ir"
)

// intrinsicPrefix marks calls to shading-language intrinsics.
const intrinsicPrefix = "llvm.gla."

// intrinsicBase strips the prefix and the overload suffixes:
// "llvm.gla.fClamp.v4f32.v4f32" is "fClamp".
func intrinsicBase(name string) string {
	name = strings.TrimPrefix(name, intrinsicPrefix)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

// pureIntrinsic reports whether a call neither writes memory nor has
// other side effects, so loads may move across it.
func pureIntrinsic(name string) bool {
	if !strings.HasPrefix(name, intrinsicPrefix) {
		return false
	}
	switch intrinsicBase(name) {
	case "emitVertex", "endPrimitive", "discardConditional", "discard":
		return false
	}
	return true
}

// Texture flag bits of the sampling intrinsics.
const (
	texProjected = 1 << iota
	texBias
	texLod
	texCompare
	texOffset
)

type mathIntrinsic struct {
	fun  ir.MathFunction
	args int
	kind ir.ScalarKind // operand signedness for integer variants
}

var mathIntrinsics = map[string]mathIntrinsic{
	"fMin": {ir.MathMin, 2, ir.ScalarFloat}, "sMin": {ir.MathMin, 2, ir.ScalarSint}, "uMin": {ir.MathMin, 2, ir.ScalarUint},
	"fMax": {ir.MathMax, 2, ir.ScalarFloat}, "sMax": {ir.MathMax, 2, ir.ScalarSint}, "uMax": {ir.MathMax, 2, ir.ScalarUint},
	"fClamp": {ir.MathClamp, 3, ir.ScalarFloat}, "sClamp": {ir.MathClamp, 3, ir.ScalarSint}, "uClamp": {ir.MathClamp, 3, ir.ScalarUint},
	"fAbs": {ir.MathAbs, 1, ir.ScalarFloat}, "sAbs": {ir.MathAbs, 1, ir.ScalarSint},
	"fSign": {ir.MathSign, 1, ir.ScalarFloat}, "sSign": {ir.MathSign, 1, ir.ScalarSint},
	"fFloor":        {ir.MathFloor, 1, ir.ScalarFloat},
	"fCeiling":      {ir.MathCeil, 1, ir.ScalarFloat},
	"fRoundEven":    {ir.MathRound, 1, ir.ScalarFloat},
	"fRoundFast":    {ir.MathRound, 1, ir.ScalarFloat},
	"fRoundZero":    {ir.MathTrunc, 1, ir.ScalarFloat},
	"fFraction":     {ir.MathFract, 1, ir.ScalarFloat},
	"fSqrt":         {ir.MathSqrt, 1, ir.ScalarFloat},
	"fInverseSqrt":  {ir.MathInverseSqrt, 1, ir.ScalarFloat},
	"fExp":          {ir.MathExp, 1, ir.ScalarFloat},
	"fExp2":         {ir.MathExp2, 1, ir.ScalarFloat},
	"fLog":          {ir.MathLog, 1, ir.ScalarFloat},
	"fLog2":         {ir.MathLog2, 1, ir.ScalarFloat},
	"fPow":          {ir.MathPow, 2, ir.ScalarFloat},
	"fSin":          {ir.MathSin, 1, ir.ScalarFloat},
	"fCos":          {ir.MathCos, 1, ir.ScalarFloat},
	"fTan":          {ir.MathTan, 1, ir.ScalarFloat},
	"fAsin":         {ir.MathAsin, 1, ir.ScalarFloat},
	"fAcos":         {ir.MathAcos, 1, ir.ScalarFloat},
	"fAtan":         {ir.MathAtan, 1, ir.ScalarFloat},
	"fAtan2":        {ir.MathAtan2, 2, ir.ScalarFloat},
	"fSinh":         {ir.MathSinh, 1, ir.ScalarFloat},
	"fCosh":         {ir.MathCosh, 1, ir.ScalarFloat},
	"fTanh":         {ir.MathTanh, 1, ir.ScalarFloat},
	"fAsinh":        {ir.MathAsinh, 1, ir.ScalarFloat},
	"fAcosh":        {ir.MathAcosh, 1, ir.ScalarFloat},
	"fAtanh":        {ir.MathAtanh, 1, ir.ScalarFloat},
	"fRadians":      {ir.MathRadians, 1, ir.ScalarFloat},
	"fDegrees":      {ir.MathDegrees, 1, ir.ScalarFloat},
	"fLength":       {ir.MathLength, 1, ir.ScalarFloat},
	"fDistance":     {ir.MathDistance, 2, ir.ScalarFloat},
	"fDot2":         {ir.MathDot, 2, ir.ScalarFloat},
	"fDot3":         {ir.MathDot, 2, ir.ScalarFloat},
	"fDot4":         {ir.MathDot, 2, ir.ScalarFloat},
	"fCross":        {ir.MathCross, 2, ir.ScalarFloat},
	"fNormalize":    {ir.MathNormalize, 1, ir.ScalarFloat},
	"fReflect":      {ir.MathReflect, 2, ir.ScalarFloat},
	"fRefract":      {ir.MathRefract, 3, ir.ScalarFloat},
	"fFaceForward":  {ir.MathFaceForward, 3, ir.ScalarFloat},
	"fMix":          {ir.MathMix, 3, ir.ScalarFloat},
	"fStep":         {ir.MathStep, 2, ir.ScalarFloat},
	"fSmoothStep":   {ir.MathSmoothStep, 3, ir.ScalarFloat},
	"fOuterProduct": {ir.MathOuter, 2, ir.ScalarFloat},
}

var derivativeIntrinsics = map[string]ir.DerivativeAxis{
	"fDFdx":        ir.DerivativeX,
	"fDFdy":        ir.DerivativeY,
	"fFilterWidth": ir.DerivativeWidth,
}

var relationalIntrinsics = map[string]ir.RelationalFunction{
	"any":    ir.RelationalAny,
	"all":    ir.RelationalAll,
	"fIsNan": ir.RelationalIsNan,
	"fIsInf": ir.RelationalIsInf,
}

// maskedInsert records a write-masked insert into a value loaded from
// target, so storing it back can write only the masked lanes.
type maskedInsert struct {
	target value.Value
	size   ir.VectorSize
	scalar ir.ScalarType
	lanes  []int
	comps  []ir.ExpressionHandle
}

// call lowers a call to a user function or an intrinsic.
func (t *Translator) call(inst *llir.InstCall, outside bool) error {
	callee, ok := inst.Callee.(*llir.Func)
	if !ok {
		return t.unsupported("call", "indirect call")
	}
	name := callee.Name()
	if strings.HasPrefix(name, intrinsicPrefix) {
		return t.intrinsic(inst, intrinsicBase(name), outside)
	}
	fh, ok := t.functions[callee]
	if !ok {
		return t.unsupported("call", "function %s has no body", name)
	}
	args := make([]ir.ExpressionHandle, len(inst.Args))
	for i, a := range inst.Args {
		h, err := t.operand(a)
		if err != nil {
			return err
		}
		if i < len(callee.Params) {
			if pt, err := t.translateType(callee.Params[i].Typ, nil, true); err == nil {
				h = t.coerceTo(h, pt)
			}
		}
		args[i] = h
	}
	if isVoid(inst.Type()) {
		t.push(ir.StmtCall{Function: fh, Arguments: args})
		return nil
	}
	t.flushEmit()
	res := t.addExpression(ir.ExprCallResult{Function: fh})
	top := t.top()
	*top = append(*top, ir.Statement{Kind: ir.StmtCall{Function: fh, Arguments: args, Result: &res}})
	t.fn.emitStart = len(t.fn.ir.Expressions)
	return t.define(inst, res, outside)
}

// intrinsic lowers a call to a shading-language intrinsic.
func (t *Translator) intrinsic(inst *llir.InstCall, base string, outside bool) error {
	if m, ok := mathIntrinsics[base]; ok {
		if len(inst.Args) < m.args {
			return t.unsupported("intrinsic", "%s takes %d arguments", base, m.args)
		}
		args := make([]ir.ExpressionHandle, m.args)
		for i := range args {
			h, err := t.operandAs(inst.Args[i], m.kind)
			if err != nil {
				return err
			}
			args[i] = h
		}
		if m.fun == ir.MathClamp {
			return t.define(inst, t.clamp(args[0], args[1], args[2]), outside)
		}
		e := ir.ExprMath{Fun: m.fun, Arg: args[0]}
		if m.args > 1 {
			e.Arg1 = &args[1]
		}
		if m.args > 2 {
			e.Arg2 = &args[2]
		}
		return t.define(inst, t.addExpression(e), outside)
	}
	if axis, ok := derivativeIntrinsics[base]; ok {
		x, err := t.firstArg(inst, base)
		if err != nil {
			return err
		}
		return t.define(inst, t.addExpression(ir.ExprDerivative{Axis: axis, Control: ir.DerivativeNone, Expr: x}), outside)
	}
	if fun, ok := relationalIntrinsics[base]; ok {
		x, err := t.firstArg(inst, base)
		if err != nil {
			return err
		}
		return t.define(inst, t.addExpression(ir.ExprRelational{Fun: fun, Argument: x}), outside)
	}

	switch {
	case base == "fSaturate":
		x, err := t.firstArg(inst, base)
		if err != nil {
			return err
		}
		return t.define(inst, t.saturate(x), outside)
	case base == "fSwizzle" || base == "swizzle":
		return t.swizzleIntrinsic(inst, outside)
	case base == "fMultiInsert" || base == "multiInsert":
		return t.multiInsert(inst, outside)
	case base == "fFixedTransform":
		return t.fixedTransform(inst, outside)
	case base == "emitVertex":
		t.push(ir.StmtPrimitive{Op: ir.PrimitiveEmitVertex})
		return nil
	case base == "endPrimitive":
		t.push(ir.StmtPrimitive{Op: ir.PrimitiveEndPrimitive})
		return nil
	case base == "discardConditional":
		c, err := t.firstArg(inst, base)
		if err != nil {
			return err
		}
		t.push(ir.StmtIf{Condition: c, Accept: ir.Block{{Kind: ir.StmtKill{}}}})
		return nil
	case base == "discard":
		t.push(ir.StmtKill{})
		return nil
	case strings.HasPrefix(base, "fTextureSample"):
		return t.textureSample(inst, base, outside)
	case strings.HasPrefix(base, "fTextureGather"):
		return t.textureGather(inst, base, outside)
	case base == "fTexelFetchOffset" || base == "fTexelFetch":
		return t.texelFetch(inst, outside)
	case strings.HasPrefix(base, "queryTexture"):
		return t.textureQuery(inst, base, outside)
	case strings.HasPrefix(base, "fMatrix") || strings.HasPrefix(base, "fVectorTimesMatrix"):
		return t.matrixProduct(inst, base, outside)
	}
	return t.unsupported("intrinsic", "%s", base)
}

// firstArg lowers the single operand of a one-argument intrinsic.
func (t *Translator) firstArg(inst *llir.InstCall, base string) (ir.ExpressionHandle, error) {
	if len(inst.Args) == 0 {
		return 0, t.unsupported("intrinsic", "%s takes 1 argument", base)
	}
	return t.operand(inst.Args[0])
}

func (t *Translator) swizzleIntrinsic(inst *llir.InstCall, outside bool) error {
	if len(inst.Args) != 2 {
		return t.unsupported("intrinsic", "swizzle takes 2 arguments")
	}
	mask, err := shuffleMask(inst.Args[1])
	if err != nil {
		return t.unsupported("intrinsic", "swizzle mask is not constant")
	}
	x, err := t.operand(inst.Args[0])
	if err != nil {
		return err
	}
	if _, vec := inst.Type().(*types.VectorType); !vec {
		return t.define(inst, t.addExpression(ir.ExprAccessIndex{Base: x, Index: uint32(max(mask[0], 0))}), outside)
	}
	if len(mask) > 4 {
		return t.unsupported("intrinsic", "%d-component swizzle", len(mask))
	}
	var pattern [4]ir.SwizzleComponent
	for i, m := range mask {
		pattern[i] = ir.SwizzleComponent(max(m, 0))
	}
	return t.define(inst, t.addExpression(ir.ExprSwizzle{Size: ir.VectorSize(len(mask)), Vector: x, Pattern: pattern}), outside)
}

// multiInsert lowers a write-masked insert: lane i of the result is
// component comp_i of src_i when bit i of the mask is set, and lane i of
// the original otherwise.
func (t *Translator) multiInsert(inst *llir.InstCall, outside bool) error {
	if len(inst.Args) != 10 {
		return t.unsupported("intrinsic", "multiInsert takes 10 arguments")
	}
	ty, err := t.valueType(inst)
	if err != nil {
		return err
	}
	vt, ok := t.typeInner(ty).(ir.VectorType)
	if !ok {
		return t.unsupported("intrinsic", "multiInsert into a non-vector")
	}
	mask, ok := constIndex(inst.Args[1])
	if !ok {
		return t.unsupported("intrinsic", "multiInsert mask is not constant")
	}

	var orig ir.ExpressionHandle
	hasOrig := !isUndef(inst.Args[0])
	if hasOrig {
		if orig, err = t.operand(inst.Args[0]); err != nil {
			return err
		}
	}
	all := make([]ir.ExpressionHandle, vt.Size)
	m := &maskedInsert{size: vt.Size, scalar: vt.Scalar}
	for i := range all {
		if mask&(1<<i) == 0 {
			if hasOrig {
				all[i] = t.addExpression(ir.ExprAccessIndex{Base: orig, Index: uint32(i)})
			} else {
				all[i] = t.addExpression(ir.ExprZeroValue{Type: t.registry.GetOrCreate("", vt.Scalar)})
			}
			continue
		}
		src := inst.Args[2+2*i]
		if isUndef(src) {
			return t.unsupported("intrinsic", "multiInsert lane %d has no source", i)
		}
		comp, _ := constIndex(inst.Args[3+2*i])
		if comp < 0 || comp > 3 {
			return t.unsupported("intrinsic", "multiInsert component %d out of range", comp)
		}
		h, err := t.operandAs(src, vt.Scalar.Kind)
		if err != nil {
			return err
		}
		if vectorSizeOf(t.exprInner(h)) != 0 {
			h = t.addExpression(ir.ExprAccessIndex{Base: h, Index: uint32(comp)})
		}
		all[i] = h
		m.lanes = append(m.lanes, i)
		m.comps = append(m.comps, h)
	}
	if load, ok := inst.Args[0].(*llir.InstLoad); ok && len(m.lanes) < int(vt.Size) {
		m.target = load.Src
		t.fn.inserts[inst] = m
	}
	return t.define(inst, t.addExpression(ir.ExprCompose{Type: ty, Components: all}), outside)
}

// maskedStore writes the masked lanes of m through ptr.
func (t *Translator) maskedStore(ptr ir.ExpressionHandle, m *maskedInsert) error {
	if !t.opts.WriteMaskStores {
		return t.fixLValue(ptr, m)
	}
	if len(m.lanes) == 1 {
		t.push(ir.StmtStore{
			Pointer: t.addExpression(ir.ExprAccessIndex{Base: ptr, Index: uint32(m.lanes[0])}),
			Value:   m.comps[0],
		})
		return nil
	}
	var pattern [4]ir.SwizzleComponent
	for i, lane := range m.lanes {
		pattern[i] = ir.SwizzleComponent(lane)
	}
	size := ir.VectorSize(len(m.lanes))
	target := t.addExpression(ir.ExprSwizzle{Size: size, Vector: ptr, Pattern: pattern})
	ty := t.registry.GetOrCreate("", ir.VectorType{Size: size, Scalar: m.scalar})
	t.push(ir.StmtStore{Pointer: target, Value: t.addExpression(ir.ExprCompose{Type: ty, Components: m.comps})})
	return nil
}

func (t *Translator) fixedTransform(inst *llir.InstCall, outside bool) error {
	mvp, err := t.builtinRef(ir.BuiltinModelViewProjectionMatrix)
	if err != nil {
		return err
	}
	var pos ir.ExpressionHandle
	if len(inst.Args) > 0 {
		if pos, err = t.operand(inst.Args[0]); err != nil {
			return err
		}
	} else {
		vtx, err := t.builtinRef(ir.BuiltinVertex)
		if err != nil {
			return err
		}
		pos = t.addExpression(ir.ExprLoad{Pointer: vtx})
	}
	m := t.addExpression(ir.ExprLoad{Pointer: mvp})
	return t.define(inst, t.addExpression(ir.ExprBinary{Op: ir.BinaryMultiply, Left: m, Right: pos}), outside)
}

// textureSample lowers the fTextureSample family:
//
//	fTextureSample(samplerType, sampler, flags, coord)
//	fTextureSampleLodRefZ(..., coord, lodOrBias, refZ)
//	fTextureSampleLodRefZOffset(..., refZ, offset)
//	fTextureSampleLodRefZOffsetGrad(..., offset, dPdx, dPdy)
func (t *Translator) textureSample(inst *llir.InstCall, base string, outside bool) error {
	if len(inst.Args) < 4 {
		return t.unsupported("texture", "%s takes at least 4 arguments", base)
	}
	flags, _ := constIndex(inst.Args[2])
	img, err := t.operand(inst.Args[1])
	if err != nil {
		return err
	}
	coord, err := t.operand(inst.Args[3])
	if err != nil {
		return err
	}
	e := ir.ExprImageSample{Image: img, Coordinate: coord, Level: ir.SampleLevelAuto{}, Projective: flags&texProjected != 0}
	args := inst.Args[4:]
	if len(args) >= 2 {
		if flags&(texBias|texLod) != 0 {
			h, err := t.operand(args[0])
			if err != nil {
				return err
			}
			if flags&texLod != 0 {
				e.Level = ir.SampleLevelExact{Level: h}
			} else {
				e.Level = ir.SampleLevelBias{Bias: h}
			}
		}
		if flags&texCompare != 0 {
			h, err := t.operand(args[1])
			if err != nil {
				return err
			}
			e.DepthRef = &h
		}
		args = args[2:]
	}
	if len(args) >= 1 {
		if flags&texOffset != 0 {
			h, err := t.operandAs(args[0], ir.ScalarSint)
			if err != nil {
				return err
			}
			e.Offset = &h
		}
		args = args[1:]
	}
	if len(args) >= 2 {
		dx, err := t.operand(args[0])
		if err != nil {
			return err
		}
		dy, err := t.operand(args[1])
		if err != nil {
			return err
		}
		e.Level = ir.SampleLevelGradient{X: dx, Y: dy}
	}
	return t.define(inst, t.addExpression(e), outside)
}

// textureGather lowers fTextureGather(samplerType, sampler, flags, coord,
// component, refZ[, offset]).
func (t *Translator) textureGather(inst *llir.InstCall, base string, outside bool) error {
	if len(inst.Args) < 6 {
		return t.unsupported("texture", "%s takes at least 6 arguments", base)
	}
	flags, _ := constIndex(inst.Args[2])
	img, err := t.operand(inst.Args[1])
	if err != nil {
		return err
	}
	coord, err := t.operand(inst.Args[3])
	if err != nil {
		return err
	}
	comp, _ := constIndex(inst.Args[4])
	gather := ir.SwizzleComponent(comp & 3)
	e := ir.ExprImageSample{Image: img, Gather: &gather, Coordinate: coord, Level: ir.SampleLevelZero{}}
	if flags&texCompare != 0 {
		h, err := t.operand(inst.Args[5])
		if err != nil {
			return err
		}
		e.DepthRef = &h
	}
	if len(inst.Args) > 6 && flags&texOffset != 0 {
		h, err := t.operandAs(inst.Args[6], ir.ScalarSint)
		if err != nil {
			return err
		}
		e.Offset = &h
	}
	return t.define(inst, t.addExpression(e), outside)
}

// texelFetch lowers fTexelFetchOffset(samplerType, sampler, coord, lod,
// sample, offset).
func (t *Translator) texelFetch(inst *llir.InstCall, outside bool) error {
	if len(inst.Args) < 3 {
		return t.unsupported("texture", "texel fetch takes at least 3 arguments")
	}
	img, err := t.operand(inst.Args[1])
	if err != nil {
		return err
	}
	coord, err := t.operandAs(inst.Args[2], ir.ScalarSint)
	if err != nil {
		return err
	}
	e := ir.ExprImageLoad{Image: img, Coordinate: coord}
	opt := func(i int) (*ir.ExpressionHandle, error) {
		if i >= len(inst.Args) || isUndef(inst.Args[i]) {
			return nil, nil
		}
		h, err := t.operandAs(inst.Args[i], ir.ScalarSint)
		if err != nil {
			return nil, err
		}
		return &h, nil
	}
	if e.Level, err = opt(3); err != nil {
		return err
	}
	if e.Sample, err = opt(4); err != nil {
		return err
	}
	if e.Offset, err = opt(5); err != nil {
		return err
	}
	return t.define(inst, t.addExpression(e), outside)
}

// textureQuery lowers queryTextureSize(samplerType, sampler, lod),
// queryTextureLod(samplerType, sampler, coord) and
// queryTextureLevels(samplerType, sampler).
func (t *Translator) textureQuery(inst *llir.InstCall, base string, outside bool) error {
	if len(inst.Args) < 2 {
		return t.unsupported("texture", "%s takes at least 2 arguments", base)
	}
	img, err := t.operand(inst.Args[1])
	if err != nil {
		return err
	}
	var q ir.ImageQuery
	switch base {
	case "queryTextureSize", "queryTextureSizeNoLod":
		size := ir.ImageQuerySize{}
		if len(inst.Args) > 2 && !isUndef(inst.Args[2]) {
			h, err := t.operandAs(inst.Args[2], ir.ScalarSint)
			if err != nil {
				return err
			}
			size.Level = &h
		}
		q = size
	case "queryTextureLod":
		if len(inst.Args) < 3 {
			return t.unsupported("texture", "queryTextureLod needs a coordinate")
		}
		h, err := t.operand(inst.Args[2])
		if err != nil {
			return err
		}
		q = ir.ImageQueryLod{Coordinate: h}
	case "queryTextureLevels":
		q = ir.ImageQueryNumLevels{}
	default:
		return t.unsupported("intrinsic", "%s", base)
	}
	return t.define(inst, t.addExpression(ir.ExprImageQuery{Image: img, Query: q}), outside)
}

// matrixProduct lowers the matrix intrinsics, which pass matrices as
// their column vectors:
//
//	fMatrix<N>TimesVector(col_0..col_N-1, v)
//	fVectorTimesMatrix<N>(v, col_0..col_N-1)
//	fMatrix<L>TimesMatrix<R>(lcol_0..lcol_L-1, rcol_0..rcol_R-1)
func (t *Translator) matrixProduct(inst *llir.InstCall, base string, outside bool) error {
	var left, right ir.ExpressionHandle
	var err error
	switch {
	case strings.HasSuffix(base, "TimesVector"):
		n := digitAt(base, len("fMatrix"))
		if n < 2 || len(inst.Args) != n+1 {
			return t.unsupported("intrinsic", "%s", base)
		}
		if left, err = t.matrixFromColumns(inst.Args[:n]); err != nil {
			return err
		}
		if right, err = t.operand(inst.Args[n]); err != nil {
			return err
		}
	case strings.HasPrefix(base, "fVectorTimesMatrix"):
		n := digitAt(base, len("fVectorTimesMatrix"))
		if n < 2 || len(inst.Args) != n+1 {
			return t.unsupported("intrinsic", "%s", base)
		}
		if left, err = t.operand(inst.Args[0]); err != nil {
			return err
		}
		if right, err = t.matrixFromColumns(inst.Args[1:]); err != nil {
			return err
		}
	default:
		l := digitAt(base, len("fMatrix"))
		r := digitAt(base, len("fMatrixNTimesMatrix"))
		if l < 2 || r < 2 || len(inst.Args) != l+r {
			return t.unsupported("intrinsic", "%s", base)
		}
		if left, err = t.matrixFromColumns(inst.Args[:l]); err != nil {
			return err
		}
		if right, err = t.matrixFromColumns(inst.Args[l:]); err != nil {
			return err
		}
	}
	return t.define(inst, t.addExpression(ir.ExprBinary{Op: ir.BinaryMultiply, Left: left, Right: right}), outside)
}

func digitAt(s string, i int) int {
	if i >= len(s) || s[i] < '0' || s[i] > '9' {
		return 0
	}
	return int(s[i] - '0')
}

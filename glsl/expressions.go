// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/glass/ir"
)

// writeExpression writes an expression and returns its GLSL representation.
// Expressions are printed inline at their use; only call results are
// bound to names.
func (w *Writer) writeExpression(handle ir.ExpressionHandle) (string, error) {
	if name, ok := w.namedExpressions[handle]; ok {
		return name, nil
	}

	if w.currentFunction == nil {
		return "", fmt.Errorf("no current function context")
	}

	if int(handle) >= len(w.currentFunction.Expressions) {
		return "", fmt.Errorf("invalid expression handle: %d", handle)
	}

	return w.writeExpressionKind(w.currentFunction.Expressions[handle].Kind, handle)
}

// writeExpressionKind writes the expression based on its kind.
//
//nolint:gocyclo,cyclop // Expression handling requires many cases
func (w *Writer) writeExpressionKind(kind ir.ExpressionKind, handle ir.ExpressionHandle) (string, error) {
	switch k := kind.(type) {
	case ir.Literal:
		return writeLiteral(k), nil
	case ir.ExprConstant:
		return w.names[nameKey{kind: nameKeyConstant, handle1: uint32(k.Constant)}], nil
	case ir.ExprZeroValue:
		return w.zeroValue(k.Type), nil
	case ir.ExprCompose:
		return w.writeCompose(k)
	case ir.ExprAccess:
		return w.writeAccess(k)
	case ir.ExprAccessIndex:
		return w.writeAccessIndex(k)
	case ir.ExprSplat:
		return w.writeSplat(k)
	case ir.ExprSwizzle:
		return w.writeSwizzle(k)
	case ir.ExprFunctionArgument:
		return w.names[nameKey{kind: nameKeyFunctionArgument, handle1: uint32(w.currentFuncHandle), handle2: k.Index}], nil
	case ir.ExprGlobalVariable:
		return w.names[nameKey{kind: nameKeyGlobalVariable, handle1: uint32(k.Variable)}], nil
	case ir.ExprLocalVariable:
		if name, ok := w.localNames[k.Variable]; ok {
			return name, nil
		}
		return fmt.Sprintf("local%d", k.Variable), nil
	case ir.ExprLoad:
		// Loading is implicit in GLSL.
		return w.writeExpression(k.Pointer)
	case ir.ExprUnary:
		return w.writeUnary(k)
	case ir.ExprBinary:
		return w.writeBinary(k)
	case ir.ExprSelect:
		return w.writeSelect(k)
	case ir.ExprRelational:
		return w.writeRelational(k)
	case ir.ExprMath:
		return w.writeMath(k)
	case ir.ExprDerivative:
		return w.writeDerivative(k)
	case ir.ExprImageSample:
		return w.writeImageSample(k)
	case ir.ExprImageLoad:
		return w.writeImageLoad(k)
	case ir.ExprImageQuery:
		return w.writeImageQuery(k)
	case ir.ExprAs:
		return w.writeAs(k)
	case ir.ExprCallResult:
		return "", fmt.Errorf("call result %d used before its call", handle)
	default:
		return "", fmt.Errorf("unsupported expression kind: %T", kind)
	}
}

// exprInner returns the value type of an expression, looking through
// pointers.
func (w *Writer) exprInner(handle ir.ExpressionHandle) ir.TypeInner {
	res, ok := w.exprResolution(handle)
	if !ok {
		return nil
	}
	inner := res.Inner(w.module)
	if ptr, ok := inner.(ir.PointerType); ok && int(ptr.Base) < len(w.module.Types) {
		return w.module.Types[ptr.Base].Inner
	}
	return inner
}

// exprTypeHandle returns the module type of an expression when it has one.
func (w *Writer) exprTypeHandle(handle ir.ExpressionHandle) (ir.TypeHandle, bool) {
	res, ok := w.exprResolution(handle)
	if !ok || res.Handle == nil {
		return 0, false
	}
	h := *res.Handle
	if int(h) < len(w.module.Types) {
		if ptr, ok := w.module.Types[h].Inner.(ir.PointerType); ok {
			return ptr.Base, true
		}
	}
	return h, true
}

func (w *Writer) exprResolution(handle ir.ExpressionHandle) (ir.TypeResolution, bool) {
	fn := w.currentFunction
	if fn == nil {
		return ir.TypeResolution{}, false
	}
	if int(handle) < len(fn.ExpressionTypes) {
		res := fn.ExpressionTypes[handle]
		if res.Handle != nil || res.Value != nil {
			return res, true
		}
	}
	res, err := ir.ResolveExpressionType(w.module, fn, handle)
	if err != nil {
		return ir.TypeResolution{}, false
	}
	return res, true
}

func writeLiteral(lit ir.Literal) string {
	switch v := lit.Value.(type) {
	case ir.LiteralBool:
		if v {
			return "true"
		}
		return "false"
	case ir.LiteralI32:
		return fmt.Sprintf("%d", int32(v))
	case ir.LiteralU32:
		return fmt.Sprintf("%du", uint32(v))
	case ir.LiteralI64:
		return fmt.Sprintf("%dl", int64(v))
	case ir.LiteralU64:
		return fmt.Sprintf("%dul", uint64(v))
	case ir.LiteralF32:
		return formatFloat(float32(v))
	case ir.LiteralF64:
		return formatFloat64(float64(v))
	default:
		return "0"
	}
}

func (w *Writer) writeArgs(handles ...ir.ExpressionHandle) ([]string, error) {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		s, err := w.writeExpression(h)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// writeCompose writes a composite construction expression.
func (w *Writer) writeCompose(c ir.ExprCompose) (string, error) {
	components, err := w.writeArgs(c.Components...)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s(%s)", w.getTypeName(c.Type), strings.Join(components, ", ")), nil
}

// writeAccess writes an array, vector or matrix access with a dynamic index.
func (w *Writer) writeAccess(a ir.ExprAccess) (string, error) {
	base, err := w.writeExpression(a.Base)
	if err != nil {
		return "", err
	}
	index, err := w.writeExpression(a.Index)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s[%s]", base, index), nil
}

// writeAccessIndex writes a constant-index access expression.
func (w *Writer) writeAccessIndex(a ir.ExprAccessIndex) (string, error) {
	base, err := w.writeExpression(a.Base)
	if err != nil {
		return "", err
	}

	switch t := w.exprInner(a.Base).(type) {
	case ir.StructType:
		if h, ok := w.exprTypeHandle(a.Base); ok {
			if name, ok := w.names[nameKey{kind: nameKeyStructMember, handle1: uint32(h), handle2: a.Index}]; ok {
				return fmt.Sprintf("%s.%s", base, name), nil
			}
		}
		if int(a.Index) < len(t.Members) && t.Members[a.Index].Name != "" {
			return fmt.Sprintf("%s.%s", base, escapeKeyword(sanitize(t.Members[a.Index].Name))), nil
		}
	case ir.VectorType:
		if a.Index < 4 {
			return fmt.Sprintf("%s.%c", base, "xyzw"[a.Index]), nil
		}
	}

	return fmt.Sprintf("%s[%d]", base, a.Index), nil
}

// writeSplat writes a splat expression (scalar to vector).
func (w *Writer) writeSplat(s ir.ExprSplat) (string, error) {
	value, err := w.writeExpression(s.Value)
	if err != nil {
		return "", err
	}
	scalar, ok := scalarOf(w.exprInner(s.Value))
	if !ok {
		scalar = ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}
	}
	return fmt.Sprintf("%s(%s)", vectorToGLSL(ir.VectorType{Size: s.Size, Scalar: scalar}), value), nil
}

// writeSwizzle writes a swizzle expression.
func (w *Writer) writeSwizzle(s ir.ExprSwizzle) (string, error) {
	vector, err := w.writeExpression(s.Vector)
	if err != nil {
		return "", err
	}

	const components = "xyzw"
	var swizzle strings.Builder
	for i := ir.VectorSize(0); i < s.Size && i < 4; i++ {
		if int(s.Pattern[i]) < len(components) {
			swizzle.WriteByte(components[s.Pattern[i]])
		}
	}

	return fmt.Sprintf("%s.%s", vector, swizzle.String()), nil
}

// writeUnary writes a unary expression.
func (w *Writer) writeUnary(u ir.ExprUnary) (string, error) {
	operand, err := w.writeExpression(u.Expr)
	if err != nil {
		return "", err
	}

	inner := w.exprInner(u.Expr)
	switch u.Op {
	case ir.UnaryNegate:
		return fmt.Sprintf("-(%s)", operand), nil
	case ir.UnaryLogicalNot, ir.UnaryBitwiseNot:
		if s, ok := scalarOf(inner); ok && s.Kind == ir.ScalarBool {
			if _, vec := inner.(ir.VectorType); vec {
				return fmt.Sprintf("not(%s)", operand), nil
			}
			return fmt.Sprintf("!(%s)", operand), nil
		}
		return fmt.Sprintf("~(%s)", operand), nil
	default:
		return "", fmt.Errorf("unsupported unary operator: %v", u.Op)
	}
}

var binaryOps = [...]string{
	ir.BinaryAdd:          "+",
	ir.BinarySubtract:     "-",
	ir.BinaryMultiply:     "*",
	ir.BinaryDivide:       "/",
	ir.BinaryModulo:       "%",
	ir.BinaryEqual:        "==",
	ir.BinaryNotEqual:     "!=",
	ir.BinaryLess:         "<",
	ir.BinaryLessEqual:    "<=",
	ir.BinaryGreater:      ">",
	ir.BinaryGreaterEqual: ">=",
	ir.BinaryAnd:          "&",
	ir.BinaryExclusiveOr:  "^",
	ir.BinaryInclusiveOr:  "|",
	ir.BinaryLogicalAnd:   "&&",
	ir.BinaryLogicalOr:    "||",
	ir.BinaryShiftLeft:    "<<",
	ir.BinaryShiftRight:   ">>",
}

var vectorCompare = map[ir.BinaryOperator]string{
	ir.BinaryEqual:        "equal",
	ir.BinaryNotEqual:     "notEqual",
	ir.BinaryLess:         "lessThan",
	ir.BinaryLessEqual:    "lessThanEqual",
	ir.BinaryGreater:      "greaterThan",
	ir.BinaryGreaterEqual: "greaterThanEqual",
}

// writeBinary writes a binary expression.
//
//nolint:gocyclo,cyclop // Binary operators depend on operand shape and kind
func (w *Writer) writeBinary(b ir.ExprBinary) (string, error) {
	left, err := w.writeExpression(b.Left)
	if err != nil {
		return "", err
	}
	right, err := w.writeExpression(b.Right)
	if err != nil {
		return "", err
	}
	if int(b.Op) >= len(binaryOps) {
		return "", fmt.Errorf("unsupported binary operator: %v", b.Op)
	}

	inner := w.exprInner(b.Left)
	vec, isVector := inner.(ir.VectorType)
	scalar, _ := scalarOf(inner)

	if fun, ok := vectorCompare[b.Op]; ok && isVector {
		return fmt.Sprintf("%s(%s, %s)", fun, left, right), nil
	}

	if scalar.Kind == ir.ScalarBool {
		switch b.Op {
		case ir.BinaryAnd, ir.BinaryLogicalAnd, ir.BinaryInclusiveOr, ir.BinaryLogicalOr, ir.BinaryExclusiveOr:
			if isVector {
				// Component-wise logic on bvecN goes through uvecN.
				u := vectorToGLSL(ir.VectorType{Size: vec.Size, Scalar: ir.ScalarType{Kind: ir.ScalarUint, Width: 4}})
				op := binaryOps[b.Op]
				switch b.Op {
				case ir.BinaryLogicalAnd:
					op = "&"
				case ir.BinaryLogicalOr:
					op = "|"
				}
				return fmt.Sprintf("%s(%s(%s) %s %s(%s))", vectorToGLSL(vec), u, left, op, u, right), nil
			}
			switch b.Op {
			case ir.BinaryAnd, ir.BinaryLogicalAnd:
				return fmt.Sprintf("(%s && %s)", left, right), nil
			case ir.BinaryInclusiveOr, ir.BinaryLogicalOr:
				return fmt.Sprintf("(%s || %s)", left, right), nil
			default:
				return fmt.Sprintf("(%s ^^ %s)", left, right), nil
			}
		}
	}

	if b.Op == ir.BinaryModulo {
		switch scalar.Kind {
		case ir.ScalarFloat:
			// Truncated remainder; GLSL mod() floors.
			return fmt.Sprintf("(%s - %s * trunc(%s / %s))", left, right, left, right), nil
		case ir.ScalarSint:
			// GLSL leaves % undefined for negative operands.
			return fmt.Sprintf("(%s - %s * (%s / %s))", left, right, left, right), nil
		}
	}

	return fmt.Sprintf("(%s %s %s)", left, binaryOps[b.Op], right), nil
}

// writeSelect writes a select (ternary) expression.
func (w *Writer) writeSelect(s ir.ExprSelect) (string, error) {
	args, err := w.writeArgs(s.Condition, s.Accept, s.Reject)
	if err != nil {
		return "", err
	}
	if _, ok := w.exprInner(s.Condition).(ir.VectorType); ok {
		return fmt.Sprintf("mix(%s, %s, %s)", args[2], args[1], args[0]), nil
	}
	return fmt.Sprintf("(%s ? %s : %s)", args[0], args[1], args[2]), nil
}

// writeRelational writes a relational expression.
func (w *Writer) writeRelational(r ir.ExprRelational) (string, error) {
	argument, err := w.writeExpression(r.Argument)
	if err != nil {
		return "", err
	}

	switch r.Fun {
	case ir.RelationalAll:
		if _, ok := w.exprInner(r.Argument).(ir.VectorType); !ok {
			return argument, nil
		}
		return fmt.Sprintf("all(%s)", argument), nil
	case ir.RelationalAny:
		if _, ok := w.exprInner(r.Argument).(ir.VectorType); !ok {
			return argument, nil
		}
		return fmt.Sprintf("any(%s)", argument), nil
	case ir.RelationalIsNan:
		return fmt.Sprintf("isnan(%s)", argument), nil
	case ir.RelationalIsInf:
		return fmt.Sprintf("isinf(%s)", argument), nil
	default:
		return "", fmt.Errorf("unsupported relational function: %v", r.Fun)
	}
}

var mathNames = map[ir.MathFunction]string{
	ir.MathAbs:         "abs",
	ir.MathMin:         "min",
	ir.MathMax:         "max",
	ir.MathClamp:       "clamp",
	ir.MathCos:         "cos",
	ir.MathCosh:        "cosh",
	ir.MathSin:         "sin",
	ir.MathSinh:        "sinh",
	ir.MathTan:         "tan",
	ir.MathTanh:        "tanh",
	ir.MathAcos:        "acos",
	ir.MathAsin:        "asin",
	ir.MathAtan:        "atan",
	ir.MathAtan2:       "atan",
	ir.MathAsinh:       "asinh",
	ir.MathAcosh:       "acosh",
	ir.MathAtanh:       "atanh",
	ir.MathRadians:     "radians",
	ir.MathDegrees:     "degrees",
	ir.MathCeil:        "ceil",
	ir.MathFloor:       "floor",
	ir.MathRound:       "roundEven",
	ir.MathFract:       "fract",
	ir.MathTrunc:       "trunc",
	ir.MathExp:         "exp",
	ir.MathExp2:        "exp2",
	ir.MathLog:         "log",
	ir.MathLog2:        "log2",
	ir.MathPow:         "pow",
	ir.MathDot:         "dot",
	ir.MathOuter:       "outerProduct",
	ir.MathCross:       "cross",
	ir.MathDistance:    "distance",
	ir.MathLength:      "length",
	ir.MathNormalize:   "normalize",
	ir.MathFaceForward: "faceforward",
	ir.MathReflect:     "reflect",
	ir.MathRefract:     "refract",
	ir.MathSign:        "sign",
	ir.MathMix:         "mix",
	ir.MathStep:        "step",
	ir.MathSmoothStep:  "smoothstep",
	ir.MathSqrt:        "sqrt",
	ir.MathInverseSqrt: "inversesqrt",
	ir.MathInverse:     "inverse",
	ir.MathTranspose:   "transpose",
	ir.MathDeterminant: "determinant",
}

// writeMath writes a math function expression.
func (w *Writer) writeMath(m ir.ExprMath) (string, error) {
	handles := []ir.ExpressionHandle{m.Arg}
	for _, a := range []*ir.ExpressionHandle{m.Arg1, m.Arg2, m.Arg3} {
		if a != nil {
			handles = append(handles, *a)
		}
	}
	args, err := w.writeArgs(handles...)
	if err != nil {
		return "", err
	}

	if m.Fun == ir.MathSaturate {
		zero, one := "0.0", "1.0"
		if s, ok := scalarOf(w.exprInner(m.Arg)); ok && s.Width == 8 {
			zero, one = "0.0lf", "1.0lf"
		}
		return fmt.Sprintf("clamp(%s, %s, %s)", args[0], zero, one), nil
	}
	name, ok := mathNames[m.Fun]
	if !ok {
		return "", fmt.Errorf("unsupported math function: %v", m.Fun)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", ")), nil
}

// writeDerivative writes a derivative expression.
func (w *Writer) writeDerivative(d ir.ExprDerivative) (string, error) {
	expr, err := w.writeExpression(d.Expr)
	if err != nil {
		return "", err
	}

	var name string
	switch d.Axis {
	case ir.DerivativeX:
		name = "dFdx"
	case ir.DerivativeY:
		name = "dFdy"
	case ir.DerivativeWidth:
		name = "fwidth"
	default:
		return "", fmt.Errorf("unsupported derivative axis: %v", d.Axis)
	}
	if !w.options.LangVersion.ES && w.options.LangVersion.AtLeast("4.5", "") {
		switch d.Control {
		case ir.DerivativeCoarse:
			name += "Coarse"
		case ir.DerivativeFine:
			name += "Fine"
		}
	}
	return fmt.Sprintf("%s(%s)", name, expr), nil
}

func (w *Writer) imageOf(h ir.ExpressionHandle) (ir.ImageType, error) {
	img, ok := w.exprInner(h).(ir.ImageType)
	if !ok {
		return img, fmt.Errorf("expression %d is not an image", h)
	}
	return img, nil
}

// writeImageSample writes a texture lookup.
//
//nolint:gocognit,gocyclo,cyclop,funlen // GLSL has a separate builtin per lookup variant
func (w *Writer) writeImageSample(s ir.ExprImageSample) (string, error) {
	img, err := w.imageOf(s.Image)
	if err != nil {
		return "", err
	}
	image, err := w.writeExpression(s.Image)
	if err != nil {
		return "", err
	}
	coordinate, err := w.writeExpression(s.Coordinate)
	if err != nil {
		return "", err
	}
	var offset string
	if s.Offset != nil {
		if offset, err = w.writeExpression(*s.Offset); err != nil {
			return "", err
		}
	}

	if s.Gather != nil {
		if !w.options.LangVersion.AtLeast("4.0", "3.1") {
			w.require("GL_ARB_texture_gather")
		}
		args := []string{image, coordinate}
		if s.DepthRef != nil {
			ref, err := w.writeExpression(*s.DepthRef)
			if err != nil {
				return "", err
			}
			args = append(args, ref)
		}
		fun := "textureGather"
		if s.Offset != nil {
			fun = "textureGatherOffset"
			args = append(args, offset)
		}
		if s.DepthRef == nil && *s.Gather != ir.SwizzleX {
			args = append(args, fmt.Sprintf("%d", *s.Gather))
		}
		return fmt.Sprintf("%s(%s)", fun, strings.Join(args, ", ")), nil
	}

	var extra string
	if s.DepthRef != nil {
		ref, err := w.writeExpression(*s.DepthRef)
		if err != nil {
			return "", err
		}
		n := ir.ImageCoordinateSize(img)
		if s.Projective {
			n++
		}
		switch {
		case n >= 4:
			// samplerCubeArrayShadow takes the reference separately.
			extra = ref
		case n == 1:
			coordinate = fmt.Sprintf("vec3(%s, 0.0, %s)", coordinate, ref)
		default:
			coordinate = fmt.Sprintf("vec%d(%s, %s)", n+1, coordinate, ref)
		}
	}

	fun := "texture"
	if s.Projective {
		fun = "textureProj"
	}
	args := []string{image, coordinate}
	if extra != "" {
		args = append(args, extra)
	}

	switch level := s.Level.(type) {
	case ir.SampleLevelExact:
		lod, err := w.writeExpression(level.Level)
		if err != nil {
			return "", err
		}
		fun += "Lod"
		args = append(args, lod)
	case ir.SampleLevelZero:
		fun += "Lod"
		args = append(args, "0.0")
	case ir.SampleLevelGradient:
		grads, err := w.writeArgs(level.X, level.Y)
		if err != nil {
			return "", err
		}
		fun += "Grad"
		args = append(args, grads...)
	}
	if s.Offset != nil {
		fun += "Offset"
		args = append(args, offset)
	}
	if level, ok := s.Level.(ir.SampleLevelBias); ok {
		bias, err := w.writeExpression(level.Bias)
		if err != nil {
			return "", err
		}
		args = append(args, bias)
	}
	return fmt.Sprintf("%s(%s)", fun, strings.Join(args, ", ")), nil
}

// writeImageLoad writes a texel fetch.
func (w *Writer) writeImageLoad(l ir.ExprImageLoad) (string, error) {
	img, err := w.imageOf(l.Image)
	if err != nil {
		return "", err
	}
	args, err := w.writeArgs(l.Image, l.Coordinate)
	if err != nil {
		return "", err
	}
	if img.Class == ir.ImageClassStorage {
		return fmt.Sprintf("imageLoad(%s)", strings.Join(args, ", ")), nil
	}

	switch {
	case l.Sample != nil:
		sample, err := w.writeExpression(*l.Sample)
		if err != nil {
			return "", err
		}
		args = append(args, sample)
	case l.Level != nil:
		level, err := w.writeExpression(*l.Level)
		if err != nil {
			return "", err
		}
		args = append(args, level)
	case img.Dim != ir.DimBuffer && img.Dim != ir.DimRect && !img.Multisampled:
		args = append(args, "0")
	}

	fun := "texelFetch"
	if l.Offset != nil {
		offset, err := w.writeExpression(*l.Offset)
		if err != nil {
			return "", err
		}
		fun = "texelFetchOffset"
		args = append(args, offset)
	}
	return fmt.Sprintf("%s(%s)", fun, strings.Join(args, ", ")), nil
}

// writeImageQuery writes an image query expression.
func (w *Writer) writeImageQuery(q ir.ExprImageQuery) (string, error) {
	img, err := w.imageOf(q.Image)
	if err != nil {
		return "", err
	}
	image, err := w.writeExpression(q.Image)
	if err != nil {
		return "", err
	}

	switch query := q.Query.(type) {
	case ir.ImageQuerySize:
		if img.Dim == ir.DimBuffer || img.Dim == ir.DimRect || img.Multisampled {
			return fmt.Sprintf("textureSize(%s)", image), nil
		}
		if query.Level != nil {
			level, err := w.writeExpression(*query.Level)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("textureSize(%s, %s)", image, level), nil
		}
		return fmt.Sprintf("textureSize(%s, 0)", image), nil
	case ir.ImageQueryNumLevels:
		return fmt.Sprintf("textureQueryLevels(%s)", image), nil
	case ir.ImageQueryLod:
		if !w.options.LangVersion.AtLeast("4.0", "") {
			w.require("GL_ARB_texture_query_lod")
		}
		coordinate, err := w.writeExpression(query.Coordinate)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("textureQueryLod(%s, %s)", image, coordinate), nil
	default:
		return "", fmt.Errorf("unsupported image query: %T", q.Query)
	}
}

// writeAs writes a conversion or bitcast.
func (w *Writer) writeAs(a ir.ExprAs) (string, error) {
	expr, err := w.writeExpression(a.Expr)
	if err != nil {
		return "", err
	}

	inner := w.exprInner(a.Expr)
	src, ok := scalarOf(inner)
	if !ok {
		return "", fmt.Errorf("cannot convert expression %d", a.Expr)
	}

	if a.Convert != nil {
		return fmt.Sprintf("%s(%s)", w.typeInnerToGLSL(withKind(inner, a.Kind, *a.Convert)), expr), nil
	}

	// Bitcast
	if src.Kind == a.Kind {
		return expr, nil
	}
	dst := withKind(inner, a.Kind, src.Width)
	switch {
	case src.Kind == ir.ScalarFloat && a.Kind == ir.ScalarSint:
		return fmt.Sprintf("floatBitsToInt(%s)", expr), nil
	case src.Kind == ir.ScalarFloat && a.Kind == ir.ScalarUint:
		return fmt.Sprintf("floatBitsToUint(%s)", expr), nil
	case src.Kind == ir.ScalarSint && a.Kind == ir.ScalarFloat:
		return fmt.Sprintf("intBitsToFloat(%s)", expr), nil
	case src.Kind == ir.ScalarUint && a.Kind == ir.ScalarFloat:
		return fmt.Sprintf("uintBitsToFloat(%s)", expr), nil
	default:
		return fmt.Sprintf("%s(%s)", w.typeInnerToGLSL(dst), expr), nil
	}
}

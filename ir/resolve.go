// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import "fmt"

var (
	boolScalar  = ScalarType{Kind: ScalarBool, Width: 1}
	floatScalar = ScalarType{Kind: ScalarFloat, Width: 4}
	intScalar   = ScalarType{Kind: ScalarSint, Width: 4}
)

// ResolveExpressionType resolves the type of an expression in a function.
// The result either references a module type or carries an inline type.
//
// Variable references and access chains resolve to the type they refer to;
// an ExprLoad through them resolves to the same type.
func ResolveExpressionType(module *Module, fn *Function, handle ExpressionHandle) (TypeResolution, error) {
	r := resolver{module: module, fn: fn}
	return r.resolve(handle)
}

type resolver struct {
	module *Module
	fn     *Function
}

func handleOf(h TypeHandle) TypeResolution { return TypeResolution{Handle: &h} }

func inline(t TypeInner) TypeResolution { return TypeResolution{Value: t} }

// inner returns the type res describes, failing on a dangling handle.
func (r resolver) inner(res TypeResolution) (TypeInner, error) {
	if res.Handle != nil && int(*res.Handle) >= len(r.module.Types) {
		return nil, fmt.Errorf("type handle %d out of range", *res.Handle)
	}
	return res.Inner(r.module), nil
}

// operand resolves an operand and returns both the resolution and the
// type it describes.
func (r resolver) operand(what string, h ExpressionHandle) (TypeResolution, TypeInner, error) {
	res, err := r.resolve(h)
	if err != nil {
		return res, nil, fmt.Errorf("%s: %w", what, err)
	}
	inner, err := r.inner(res)
	return res, inner, err
}

func (r resolver) resolve(handle ExpressionHandle) (TypeResolution, error) {
	m, fn := r.module, r.fn
	if int(handle) >= len(fn.Expressions) {
		return TypeResolution{}, fmt.Errorf("expression handle %d out of range (max %d)", handle, len(fn.Expressions))
	}

	switch kind := fn.Expressions[handle].Kind.(type) {
	case Literal:
		return literalType(kind)
	case ExprConstant:
		if int(kind.Constant) >= len(m.Constants) {
			return TypeResolution{}, fmt.Errorf("constant %d out of range", kind.Constant)
		}
		return handleOf(m.Constants[kind.Constant].Type), nil
	case ExprZeroValue:
		return handleOf(kind.Type), nil
	case ExprCompose:
		return handleOf(kind.Type), nil
	case ExprFunctionArgument:
		if int(kind.Index) >= len(fn.Arguments) {
			return TypeResolution{}, fmt.Errorf("function argument index %d out of range", kind.Index)
		}
		return handleOf(fn.Arguments[kind.Index].Type), nil
	case ExprGlobalVariable:
		if int(kind.Variable) >= len(m.GlobalVariables) {
			return TypeResolution{}, fmt.Errorf("global variable %d out of range", kind.Variable)
		}
		return handleOf(m.GlobalVariables[kind.Variable].Type), nil
	case ExprLocalVariable:
		if int(kind.Variable) >= len(fn.LocalVars) {
			return TypeResolution{}, fmt.Errorf("local variable %d out of range", kind.Variable)
		}
		return handleOf(fn.LocalVars[kind.Variable].Type), nil
	case ExprCallResult:
		if int(kind.Function) >= len(m.Functions) {
			return TypeResolution{}, fmt.Errorf("function %d out of range", kind.Function)
		}
		result := m.Functions[kind.Function].Result
		if result == nil {
			return TypeResolution{}, fmt.Errorf("function has no return type")
		}
		return handleOf(result.Type), nil

	case ExprAccess:
		return r.access(kind.Base, nil)
	case ExprAccessIndex:
		return r.access(kind.Base, &kind.Index)
	case ExprSplat:
		_, inner, err := r.operand("splat value", kind.Value)
		if err != nil {
			return TypeResolution{}, err
		}
		s, ok := inner.(ScalarType)
		if !ok {
			return TypeResolution{}, fmt.Errorf("splat value must be scalar, got %T", inner)
		}
		return inline(VectorType{Size: kind.Size, Scalar: s}), nil
	case ExprSwizzle:
		_, inner, err := r.operand("swizzle vector", kind.Vector)
		if err != nil {
			return TypeResolution{}, err
		}
		v, ok := inner.(VectorType)
		if !ok {
			return TypeResolution{}, fmt.Errorf("swizzle base must be vector, got %T", inner)
		}
		return inline(VectorType{Size: kind.Size, Scalar: v.Scalar}), nil
	case ExprLoad:
		res, inner, err := r.operand("load pointer", kind.Pointer)
		if err != nil {
			return TypeResolution{}, err
		}
		if ptr, ok := inner.(PointerType); ok {
			return handleOf(ptr.Base), nil
		}
		return res, nil

	case ExprImageSample:
		img, err := r.image("image sample", kind.Image)
		if err != nil {
			return TypeResolution{}, err
		}
		// Shadow lookups return a single float; gathers always return vec4.
		if img.Class == ImageClassDepth && kind.DepthRef != nil && kind.Gather == nil {
			return inline(floatScalar), nil
		}
		return inline(VectorType{Size: Vec4, Scalar: ScalarType{Kind: sampledKind(img), Width: 4}}), nil
	case ExprImageLoad:
		img, err := r.image("image load", kind.Image)
		if err != nil {
			return TypeResolution{}, err
		}
		return inline(VectorType{Size: Vec4, Scalar: ScalarType{Kind: sampledKind(img), Width: 4}}), nil
	case ExprImageQuery:
		return r.imageQuery(kind)

	case ExprUnary:
		res, _, err := r.operand("unary operand", kind.Expr)
		return res, err
	case ExprBinary:
		return r.binary(kind)
	case ExprSelect:
		res, _, err := r.operand("select accept", kind.Accept)
		return res, err
	case ExprDerivative:
		res, _, err := r.operand("derivative expr", kind.Expr)
		return res, err
	case ExprRelational:
		_, inner, err := r.operand("relational argument", kind.Argument)
		if err != nil {
			return TypeResolution{}, err
		}
		// isnan and isinf are component-wise; all and any reduce.
		if vec, ok := inner.(VectorType); ok && (kind.Fun == RelationalIsNan || kind.Fun == RelationalIsInf) {
			return inline(VectorType{Size: vec.Size, Scalar: boolScalar}), nil
		}
		return inline(boolScalar), nil
	case ExprMath:
		return r.math(kind)
	case ExprAs:
		return r.as(kind)
	default:
		return TypeResolution{}, fmt.Errorf("unsupported expression kind: %T", kind)
	}
}

func literalType(lit Literal) (TypeResolution, error) {
	switch v := lit.Value.(type) {
	case LiteralF64:
		return inline(ScalarType{Kind: ScalarFloat, Width: 8}), nil
	case LiteralF32:
		return inline(floatScalar), nil
	case LiteralU32:
		return inline(ScalarType{Kind: ScalarUint, Width: 4}), nil
	case LiteralI32:
		return inline(intScalar), nil
	case LiteralU64:
		return inline(ScalarType{Kind: ScalarUint, Width: 8}), nil
	case LiteralI64:
		return inline(ScalarType{Kind: ScalarSint, Width: 8}), nil
	case LiteralBool:
		return inline(boolScalar), nil
	default:
		return TypeResolution{}, fmt.Errorf("unknown literal type: %T", v)
	}
}

// access resolves an index into base. A nil member means a dynamic index,
// which cannot select a struct member.
func (r resolver) access(base ExpressionHandle, member *uint32) (TypeResolution, error) {
	_, inner, err := r.operand("access base", base)
	if err != nil {
		return TypeResolution{}, err
	}
	if ptr, ok := inner.(PointerType); ok {
		if int(ptr.Base) >= len(r.module.Types) {
			return TypeResolution{}, fmt.Errorf("pointer base type %d out of range", ptr.Base)
		}
		inner = r.module.Types[ptr.Base].Inner
	}
	if st, ok := inner.(StructType); ok && member != nil {
		if int(*member) >= len(st.Members) {
			return TypeResolution{}, fmt.Errorf("struct member index %d out of range", *member)
		}
		return handleOf(st.Members[*member].Type), nil
	}
	return elementType(inner)
}

// elementType returns the type of one element of an indexable type.
func elementType(inner TypeInner) (TypeResolution, error) {
	switch t := inner.(type) {
	case ArrayType:
		return handleOf(t.Base), nil
	case VectorType:
		return inline(t.Scalar), nil
	case MatrixType:
		return inline(VectorType{Size: t.Rows, Scalar: t.Scalar}), nil
	default:
		return TypeResolution{}, fmt.Errorf("cannot index into type %T", t)
	}
}

func (r resolver) image(what string, h ExpressionHandle) (ImageType, error) {
	_, inner, err := r.operand(what+" image", h)
	if err != nil {
		return ImageType{}, err
	}
	img, ok := inner.(ImageType)
	if !ok {
		return ImageType{}, fmt.Errorf("%s requires image type, got %T", what, inner)
	}
	return img, nil
}

func sampledKind(img ImageType) ScalarKind {
	if img.Class == ImageClassDepth {
		return ScalarFloat
	}
	return img.Kind
}

// ImageCoordinateSize returns the number of coordinates needed to address
// a texel of img, including the array layer.
func ImageCoordinateSize(img ImageType) uint8 {
	var n uint8
	switch img.Dim {
	case Dim1D, DimBuffer:
		n = 1
	case Dim2D, DimRect:
		n = 2
	case Dim3D, DimCube:
		n = 3
	}
	if img.Arrayed {
		n++
	}
	return n
}

func (r resolver) imageQuery(q ExprImageQuery) (TypeResolution, error) {
	switch q.Query.(type) {
	case ImageQuerySize:
		img, err := r.image("image query", q.Image)
		if err != nil {
			return TypeResolution{}, err
		}
		// textureSize of a cube returns the face size.
		n := ImageCoordinateSize(img)
		if img.Dim == DimCube {
			n--
		}
		if n == 1 {
			return inline(intScalar), nil
		}
		return inline(VectorType{Size: VectorSize(n), Scalar: intScalar}), nil
	case ImageQueryNumLevels:
		return inline(intScalar), nil
	case ImageQueryLod:
		return inline(VectorType{Size: Vec2, Scalar: floatScalar}), nil
	default:
		return TypeResolution{}, fmt.Errorf("unknown image query type: %T", q.Query)
	}
}

func (r resolver) binary(b ExprBinary) (TypeResolution, error) {
	left, leftInner, err := r.operand("binary left", b.Left)
	if err != nil {
		return TypeResolution{}, err
	}

	switch b.Op {
	case BinaryEqual, BinaryNotEqual, BinaryLess, BinaryLessEqual, BinaryGreater, BinaryGreaterEqual:
		if vec, ok := leftInner.(VectorType); ok {
			return inline(VectorType{Size: vec.Size, Scalar: boolScalar}), nil
		}
		return inline(boolScalar), nil
	case BinaryLogicalAnd, BinaryLogicalOr:
		return inline(boolScalar), nil
	}

	right, rightInner, err := r.operand("binary right", b.Right)
	if err != nil {
		if b.Op == BinaryMultiply {
			return TypeResolution{}, err
		}
		return left, nil
	}
	if b.Op == BinaryMultiply {
		return mulResult(left, leftInner, right, rightInner), nil
	}
	// A scalar left operand broadcasts against a vector.
	_, leftScalar := leftInner.(ScalarType)
	_, rightVec := rightInner.(VectorType)
	if leftScalar && rightVec {
		return right, nil
	}
	return left, nil
}

// mulResult gives the type of a GLSL "*": scalars broadcast, mat*vec is a
// vector of the matrix rows and vec*mat a vector of its columns.
func mulResult(left TypeResolution, l TypeInner, right TypeResolution, rt TypeInner) TypeResolution {
	switch lt := l.(type) {
	case ScalarType:
		switch rt.(type) {
		case VectorType, MatrixType:
			return right
		}
	case MatrixType:
		if _, ok := rt.(VectorType); ok {
			return inline(VectorType{Size: lt.Rows, Scalar: lt.Scalar})
		}
	case VectorType:
		if m, ok := rt.(MatrixType); ok {
			return inline(VectorType{Size: m.Columns, Scalar: m.Scalar})
		}
	}
	return left
}

func (r resolver) math(k ExprMath) (TypeResolution, error) {
	arg, argInner, err := r.operand("math argument", k.Arg)
	if err != nil {
		return TypeResolution{}, err
	}

	switch k.Fun {
	case MathDot:
		if vec, ok := argInner.(VectorType); ok {
			return inline(vec.Scalar), nil
		}
	case MathLength, MathDistance, MathDeterminant:
		return inline(floatScalar), nil
	case MathMix, MathStep, MathSmoothStep, MathClamp:
		// A scalar first argument broadcasts against vector operands.
		if _, ok := argInner.(ScalarType); !ok {
			break
		}
		for _, h := range []*ExpressionHandle{k.Arg1, k.Arg2} {
			if h == nil {
				continue
			}
			if other, inner, err := r.operand("math argument", *h); err == nil {
				if _, vec := inner.(VectorType); vec {
					return other, nil
				}
			}
		}
	}
	return arg, nil
}

func (r resolver) as(k ExprAs) (TypeResolution, error) {
	res, inner, err := r.operand("as expr", k.Expr)
	if err != nil {
		return TypeResolution{}, err
	}

	width := func(s ScalarType) uint8 {
		if k.Convert != nil {
			return *k.Convert
		}
		return s.Width
	}
	switch t := inner.(type) {
	case ScalarType:
		return inline(ScalarType{Kind: k.Kind, Width: width(t)}), nil
	case VectorType:
		return inline(VectorType{Size: t.Size, Scalar: ScalarType{Kind: k.Kind, Width: width(t.Scalar)}}), nil
	}
	if k.Convert != nil {
		return inline(ScalarType{Kind: k.Kind, Width: *k.Convert}), nil
	}
	return res, nil
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// Expression represents an expression in the IR.
// An expression is evaluated where the statement that uses it executes, so
// the translator only leaves an expression inline when nothing between its
// definition and its use can change the values it reads.
type Expression struct {
	Kind ExpressionKind
}

// ExpressionKind represents the different kinds of expressions.
type ExpressionKind interface {
	expressionKind()
}

// Literal represents a literal constant value.
type Literal struct {
	Value LiteralValue
}

func (Literal) expressionKind() {}

// LiteralValue represents the value of a literal.
type LiteralValue interface {
	literalValue()
}

// LiteralF64 represents a 64-bit float literal (may not be NaN or infinity).
type LiteralF64 float64

func (LiteralF64) literalValue() {}

// LiteralF32 represents a 32-bit float literal (may not be NaN or infinity).
type LiteralF32 float32

func (LiteralF32) literalValue() {}

// LiteralU32 represents a 32-bit unsigned integer literal.
type LiteralU32 uint32

func (LiteralU32) literalValue() {}

// LiteralI32 represents a 32-bit signed integer literal.
type LiteralI32 int32

func (LiteralI32) literalValue() {}

// LiteralU64 represents a 64-bit unsigned integer literal.
type LiteralU64 uint64

func (LiteralU64) literalValue() {}

// LiteralI64 represents a 64-bit signed integer literal.
type LiteralI64 int64

func (LiteralI64) literalValue() {}

// LiteralBool represents a boolean literal.
type LiteralBool bool

func (LiteralBool) literalValue() {}

// ExprConstant references a module-scope constant.
type ExprConstant struct {
	Constant ConstantHandle
}

func (ExprConstant) expressionKind() {}

// ExprZeroValue represents a zero-initialized value of a given type.
type ExprZeroValue struct {
	Type TypeHandle
}

func (ExprZeroValue) expressionKind() {}

// ExprCompose constructs a composite value (vector, matrix, array, or struct).
type ExprCompose struct {
	Type       TypeHandle
	Components []ExpressionHandle
}

func (ExprCompose) expressionKind() {}

// ExprAccess performs array/vector/matrix access with a computed index.
// The index operand must be an integer type (signed or unsigned).
type ExprAccess struct {
	Base  ExpressionHandle
	Index ExpressionHandle
}

func (ExprAccess) expressionKind() {}

// ExprAccessIndex performs access with a compile-time constant index.
// Can access arrays, vectors, matrices, and struct fields.
type ExprAccessIndex struct {
	Base  ExpressionHandle
	Index uint32
}

func (ExprAccessIndex) expressionKind() {}

// ExprSplat broadcasts a scalar value to all components of a vector.
type ExprSplat struct {
	Size  VectorSize
	Value ExpressionHandle
}

func (ExprSplat) expressionKind() {}

// ExprSwizzle reorders or duplicates vector components.
type ExprSwizzle struct {
	Size    VectorSize
	Vector  ExpressionHandle
	Pattern [4]SwizzleComponent
}

func (ExprSwizzle) expressionKind() {}

// SwizzleComponent represents a single component in a vector swizzle.
type SwizzleComponent uint8

const (
	SwizzleX SwizzleComponent = 0
	SwizzleY SwizzleComponent = 1
	SwizzleZ SwizzleComponent = 2
	SwizzleW SwizzleComponent = 3
)

// ExprFunctionArgument references a function parameter by its index.
type ExprFunctionArgument struct {
	Index uint32
}

func (ExprFunctionArgument) expressionKind() {}

// ExprGlobalVariable references a global variable.
// For handle address space, produces the variable's value directly.
// For other address spaces, produces a pointer to the variable.
type ExprGlobalVariable struct {
	Variable GlobalVariableHandle
}

func (ExprGlobalVariable) expressionKind() {}

// ExprLocalVariable references a local variable.
// Produces a pointer to the variable's value.
type ExprLocalVariable struct {
	Variable uint32 // Index into Function.LocalVars
}

func (ExprLocalVariable) expressionKind() {}

// ExprLoad loads a value indirectly through a pointer.
type ExprLoad struct {
	Pointer ExpressionHandle
}

func (ExprLoad) expressionKind() {}

// ExprImageSample samples a point from a combined texture and sampler.
// The array layer, when the image is arrayed, is the last coordinate
// component.
type ExprImageSample struct {
	Image      ExpressionHandle
	Gather     *SwizzleComponent // If set, perform a gather operation
	Coordinate ExpressionHandle
	Offset     *ExpressionHandle
	Level      SampleLevel
	DepthRef   *ExpressionHandle
	Projective bool
}

func (ExprImageSample) expressionKind() {}

// SampleLevel controls the level of detail for texture sampling.
type SampleLevel interface {
	sampleLevel()
}

// SampleLevelAuto uses automatic level of detail.
type SampleLevelAuto struct{}

func (SampleLevelAuto) sampleLevel() {}

// SampleLevelZero uses mipmap level 0.
type SampleLevelZero struct{}

func (SampleLevelZero) sampleLevel() {}

// SampleLevelExact uses an explicit level of detail.
type SampleLevelExact struct {
	Level ExpressionHandle
}

func (SampleLevelExact) sampleLevel() {}

// SampleLevelBias uses automatic level of detail with a bias.
type SampleLevelBias struct {
	Bias ExpressionHandle
}

func (SampleLevelBias) sampleLevel() {}

// SampleLevelGradient uses explicit gradients for level of detail.
type SampleLevelGradient struct {
	X ExpressionHandle
	Y ExpressionHandle
}

func (SampleLevelGradient) sampleLevel() {}

// ExprImageLoad fetches a single texel (texelFetch).
type ExprImageLoad struct {
	Image      ExpressionHandle
	Coordinate ExpressionHandle
	Sample     *ExpressionHandle // For multisampled images
	Level      *ExpressionHandle // For mipmapped images
	Offset     *ExpressionHandle
}

func (ExprImageLoad) expressionKind() {}

// ExprImageQuery queries information from an image.
type ExprImageQuery struct {
	Image ExpressionHandle
	Query ImageQuery
}

func (ExprImageQuery) expressionKind() {}

// ImageQuery represents the type of image query.
type ImageQuery interface {
	imageQuery()
}

// ImageQuerySize gets the image size at a specified level.
type ImageQuerySize struct {
	Level *ExpressionHandle // If nil, uses base level
}

func (ImageQuerySize) imageQuery() {}

// ImageQueryNumLevels gets the number of mipmap levels.
type ImageQueryNumLevels struct{}

func (ImageQueryNumLevels) imageQuery() {}

// ImageQueryLod computes the level of detail that would be used at a
// coordinate.
type ImageQueryLod struct {
	Coordinate ExpressionHandle
}

func (ImageQueryLod) imageQuery() {}

// ExprUnary applies a unary operator to an expression.
type ExprUnary struct {
	Op   UnaryOperator
	Expr ExpressionHandle
}

func (ExprUnary) expressionKind() {}

// UnaryOperator is a prefix GLSL operator.
type UnaryOperator uint8

const (
	UnaryNegate     UnaryOperator = iota // -
	UnaryLogicalNot                      // !, not() for bool vectors
	UnaryBitwiseNot                      // ~
)

// ExprBinary applies a binary operator to two expressions.
type ExprBinary struct {
	Op    BinaryOperator
	Left  ExpressionHandle
	Right ExpressionHandle
}

func (ExprBinary) expressionKind() {}

// BinaryOperator is an infix GLSL operator. Comparisons of vectors are
// printed as lessThan, equal and the other relational built-ins.
type BinaryOperator uint8

const (
	BinaryAdd          BinaryOperator = iota // +
	BinarySubtract                           // -
	BinaryMultiply                           // *
	BinaryDivide                             // /
	BinaryModulo                             // truncated remainder, % only for unsigned
	BinaryEqual                              // ==
	BinaryNotEqual                           // !=
	BinaryLess                               // <
	BinaryLessEqual                          // <=
	BinaryGreater                            // >
	BinaryGreaterEqual                       // >=
	BinaryAnd                                // &
	BinaryExclusiveOr                        // ^
	BinaryInclusiveOr                        // |
	BinaryLogicalAnd                         // &&
	BinaryLogicalOr                          // ||
	BinaryShiftLeft                          // <<
	BinaryShiftRight                         // >>, arithmetic when the left operand is signed
)

// ExprSelect selects between two values based on a boolean condition.
// Equivalent to the ternary operator (condition ? accept : reject).
type ExprSelect struct {
	Condition ExpressionHandle
	Accept    ExpressionHandle
	Reject    ExpressionHandle
}

func (ExprSelect) expressionKind() {}

// ExprDerivative computes the derivative of an expression.
type ExprDerivative struct {
	Axis    DerivativeAxis
	Control DerivativeControl
	Expr    ExpressionHandle
}

func (ExprDerivative) expressionKind() {}

type DerivativeAxis uint8

const (
	DerivativeX     DerivativeAxis = iota // dFdx
	DerivativeY                           // dFdy
	DerivativeWidth                       // fwidth
)

// DerivativeControl selects the Fine and Coarse variants, which need
// GLSL 4.50.
type DerivativeControl uint8

const (
	DerivativeCoarse DerivativeControl = iota
	DerivativeFine
	DerivativeNone
)

// ExprRelational applies a relational function.
type ExprRelational struct {
	Fun      RelationalFunction
	Argument ExpressionHandle
}

func (ExprRelational) expressionKind() {}

type RelationalFunction uint8

const (
	RelationalAll RelationalFunction = iota
	RelationalAny
	RelationalIsNan // isnan
	RelationalIsInf // isinf
)

// ExprMath applies a mathematical function.
type ExprMath struct {
	Fun  MathFunction
	Arg  ExpressionHandle
	Arg1 *ExpressionHandle
	Arg2 *ExpressionHandle
	Arg3 *ExpressionHandle
}

func (ExprMath) expressionKind() {}

// MathFunction is a GLSL built-in function. The comment gives the GLSL
// spelling where it differs from the lower-cased name.
type MathFunction uint8

const (
	MathAbs MathFunction = iota
	MathMin
	MathMax
	MathClamp
	MathSaturate // clamp(x, 0.0, 1.0)

	MathCos
	MathCosh
	MathSin
	MathSinh
	MathTan
	MathTanh
	MathAcos
	MathAsin
	MathAtan
	MathAtan2 // atan(y, x)
	MathAsinh
	MathAcosh
	MathAtanh

	MathRadians
	MathDegrees

	MathCeil
	MathFloor
	MathRound
	MathFract
	MathTrunc

	MathExp
	MathExp2
	MathLog
	MathLog2
	MathPow

	MathDot
	MathOuter // outerProduct
	MathCross
	MathDistance
	MathLength
	MathNormalize
	MathFaceForward // faceforward
	MathReflect
	MathRefract

	MathSign
	MathMix
	MathStep
	MathSmoothStep // smoothstep
	MathSqrt
	MathInverseSqrt // inversesqrt
	MathInverse
	MathTranspose
	MathDeterminant
)

// ExprAs performs a type cast or conversion.
type ExprAs struct {
	Expr    ExpressionHandle
	Kind    ScalarKind
	Convert *uint8 // If set, convert to this byte width; otherwise bitcast
}

func (ExprAs) expressionKind() {}

// ExprCallResult represents the result of a function call.
type ExprCallResult struct {
	Function FunctionHandle
}

func (ExprCallResult) expressionKind() {}

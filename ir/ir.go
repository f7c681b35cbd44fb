// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// Module represents a translated shader in structured AST form.
type Module struct {
	// Types holds all type definitions
	Types []Type

	// Constants holds module-scope constants
	Constants []Constant

	// GlobalVariables holds uniforms, pipeline inputs and outputs, and
	// private globals
	GlobalVariables []GlobalVariable

	// Functions holds all function definitions
	Functions []Function

	// EntryPoints holds shader entry points
	EntryPoints []EntryPoint

	// AnonBlocks lists the type names of anonymous interface blocks whose
	// members were hoisted to individual globals.
	AnonBlocks []string
}

// EntryPoint represents a shader entry point.
type EntryPoint struct {
	Name     string
	Stage    ShaderStage
	Function FunctionHandle
}

// ShaderStage represents a shader stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageTessControl
	StageTessEvaluation
	StageGeometry
	StageFragment
	StageCompute
)

var stageNames = [...]string{"vertex", "tess_control", "tess_evaluation", "geometry", "fragment", "compute"}

func (s ShaderStage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// ParseStage returns the stage named s.
func ParseStage(s string) (ShaderStage, bool) {
	for i, name := range stageNames {
		if name == s {
			return ShaderStage(i), true
		}
	}
	switch s {
	case "vert":
		return StageVertex, true
	case "frag":
		return StageFragment, true
	case "geom":
		return StageGeometry, true
	case "comp":
		return StageCompute, true
	}
	return 0, false
}

// Handle types for referencing IR objects
type (
	TypeHandle           uint32
	FunctionHandle       uint32
	GlobalVariableHandle uint32
	ConstantHandle       uint32
	ExpressionHandle     uint32
)

// Type represents a type in the IR.
type Type struct {
	Name  string
	Inner TypeInner
}

// TypeInner represents the inner type kind.
type TypeInner interface {
	typeInner()
}

// ScalarType represents scalar types.
type ScalarType struct {
	Kind  ScalarKind
	Width uint8 // in bytes
}

func (ScalarType) typeInner() {}

// ScalarKind represents scalar type kinds.
type ScalarKind uint8

const (
	ScalarSint  ScalarKind = iota // Signed integer
	ScalarUint                    // Unsigned integer
	ScalarFloat                   // Floating point
	ScalarBool                    // Boolean
)

// VectorType represents vector types.
type VectorType struct {
	Size   VectorSize
	Scalar ScalarType
}

func (VectorType) typeInner() {}

// VectorSize represents vector sizes.
type VectorSize uint8

const (
	Vec2 VectorSize = 2
	Vec3 VectorSize = 3
	Vec4 VectorSize = 4
)

// MatrixType represents matrix types. Matrices are column-major.
type MatrixType struct {
	Columns VectorSize
	Rows    VectorSize
	Scalar  ScalarType
}

func (MatrixType) typeInner() {}

// ArrayType represents array types.
type ArrayType struct {
	Base   TypeHandle
	Size   ArraySize
	Stride uint32
}

func (ArrayType) typeInner() {}

// ArraySize represents array size.
type ArraySize struct {
	Constant *uint32 // nil for runtime-sized arrays
}

// StructType represents struct types.
type StructType struct {
	Members []StructMember
	Span    uint32 // Size in bytes
}

func (StructType) typeInner() {}

// StructMember represents a struct member.
type StructMember struct {
	Name      string
	Type      TypeHandle
	Offset    uint32
	Precision Precision
	RowMajor  bool
}

// PointerType represents pointer types.
type PointerType struct {
	Base  TypeHandle
	Space AddressSpace
}

func (PointerType) typeInner() {}

// AddressSpace represents the storage qualifier of a variable.
type AddressSpace uint8

const (
	SpaceFunction AddressSpace = iota
	SpacePrivate
	SpaceWorkGroup
	SpaceUniform
	SpaceStorage
	SpaceIn
	SpaceOut
	SpaceHandle
)

var spaceNames = [...]string{"function", "private", "shared", "uniform", "buffer", "in", "out", "handle"}

func (s AddressSpace) String() string {
	if int(s) < len(spaceNames) {
		return spaceNames[s]
	}
	return "unknown"
}

// ImageType represents a combined texture and sampler.
type ImageType struct {
	Dim          ImageDimension
	Arrayed      bool
	Class        ImageClass
	Multisampled bool
	Kind         ScalarKind // sampled component kind for ImageClassSampled
}

func (ImageType) typeInner() {}

// ImageDimension represents image dimensions.
type ImageDimension uint8

const (
	Dim1D ImageDimension = iota
	Dim2D
	Dim3D
	DimCube
	DimRect
	DimBuffer
)

// ImageClass represents image classification.
type ImageClass uint8

const (
	ImageClassSampled ImageClass = iota
	ImageClassDepth
	ImageClassStorage
)

// Constant represents a constant value.
type Constant struct {
	Name  string
	Type  TypeHandle
	Value ConstantValue
}

// ConstantValue represents constant values.
type ConstantValue interface {
	constantValue()
}

// ScalarValue represents a scalar constant.
type ScalarValue struct {
	Bits uint64 // Bit representation
	Kind ScalarKind
}

func (ScalarValue) constantValue() {}

// CompositeValue represents a composite constant.
type CompositeValue struct {
	Components []ConstantHandle
}

func (CompositeValue) constantValue() {}

// GlobalVariable represents a global variable.
type GlobalVariable struct {
	Name      string
	Space     AddressSpace
	Binding   Binding // pipeline IO only
	Resource  *ResourceBinding
	Type      TypeHandle
	Init      *ConstantHandle
	Precision Precision
	Layout    BlockLayout  // set for globals declared as a named interface block
	Block     *BlockMember // set for members hoisted out of an anonymous block
}

// ResourceBinding represents a descriptor set and binding.
type ResourceBinding struct {
	Group   uint32
	Binding uint32
}

// BlockLayout is the memory layout of an interface block.
type BlockLayout uint8

const (
	LayoutNone BlockLayout = iota
	LayoutStd140
	LayoutStd430
	LayoutShared
	LayoutPacked
)

// BlockMember records that a global was hoisted from an anonymous block.
type BlockMember struct {
	Block  string // block type name
	Layout BlockLayout
	Index  uint32
}

// Precision is a GLSL ES precision qualifier.
type Precision uint8

const (
	PrecisionNone Precision = iota
	PrecisionLow
	PrecisionMedium
	PrecisionHigh
)

// Function represents a function definition.
type Function struct {
	Name            string
	Arguments       []FunctionArgument
	Result          *FunctionResult
	LocalVars       []LocalVariable
	Expressions     []Expression
	ExpressionTypes []TypeResolution // Type of each expression (parallel to Expressions)
	Body            Block
}

// FunctionArgument represents a function argument.
type FunctionArgument struct {
	Name string
	Type TypeHandle
}

// FunctionResult represents a function return type.
type FunctionResult struct {
	Type TypeHandle
}

// LocalVariable represents a function-local variable.
type LocalVariable struct {
	Name string
	Type TypeHandle
	Init *ExpressionHandle
}

// Binding represents pipeline IO bindings.
type Binding interface {
	binding()
}

// BuiltinBinding represents a built-in binding.
type BuiltinBinding struct {
	Builtin BuiltinValue
}

func (BuiltinBinding) binding() {}

// LocationBinding represents a location binding.
type LocationBinding struct {
	Location      uint32
	Interpolation *Interpolation
}

func (LocationBinding) binding() {}

// Interpolation represents interpolation settings.
type Interpolation struct {
	Kind     InterpolationKind
	Sampling InterpolationSampling
}

// InterpolationKind represents interpolation kinds.
type InterpolationKind uint8

const (
	InterpolationSmooth InterpolationKind = iota
	InterpolationFlat
	InterpolationNoPerspective
)

// InterpolationSampling represents interpolation sampling.
type InterpolationSampling uint8

const (
	SamplingCenter InterpolationSampling = iota
	SamplingCentroid
	SamplingSample
)

// TypeResolution represents the resolved type of an expression.
// It can either reference a type in the module's type arena (Handle)
// or represent an inline/computed type (Value).
type TypeResolution struct {
	Handle *TypeHandle // If set, references a module type
	Value  TypeInner   // If Handle is nil, this is the inline type
}

// Inner returns the type the resolution describes.
func (r TypeResolution) Inner(m *Module) TypeInner {
	if r.Handle != nil {
		if int(*r.Handle) < len(m.Types) {
			return m.Types[*r.Handle].Inner
		}
		return nil
	}
	return r.Value
}

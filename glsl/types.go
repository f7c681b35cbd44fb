// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"

	"github.com/gogpu/glass/ir"
)

// GLSL type name constants for repeated use.
const (
	glslTypeInt   = "int"
	glslTypeUint  = "uint"
	glslTypeFloat = "float"
)

// typeInnerToGLSL returns the GLSL name for a TypeInner.
func (w *Writer) typeInnerToGLSL(inner ir.TypeInner) string {
	switch t := inner.(type) {
	case ir.ScalarType:
		return w.scalarToGLSL(t)
	case ir.VectorType:
		w.requireWidth(t.Scalar)
		return vectorToGLSL(t)
	case ir.MatrixType:
		return matrixToGLSL(t)
	case ir.ArrayType:
		if t.Size.Constant != nil {
			return fmt.Sprintf("%s[%d]", w.getTypeName(t.Base), *t.Size.Constant)
		}
		return w.getTypeName(t.Base) + "[]"
	case ir.StructType:
		for handle, regTyp := range w.module.Types {
			if st, ok := regTyp.Inner.(ir.StructType); ok && structsEqual(st, t) {
				if name, ok := w.typeNames[ir.TypeHandle(handle)]; ok { //nolint:gosec // G115: handle is valid slice index
					return name
				}
			}
		}
		return "struct_unknown"
	case ir.ImageType:
		return w.imageToGLSL(t)
	case ir.PointerType:
		// GLSL has no pointers; a pointer is spelled as its pointee.
		return w.getTypeName(t.Base)
	default:
		return "unknown_type"
	}
}

// scalarToGLSL returns the GLSL name for a scalar type.
func (w *Writer) scalarToGLSL(t ir.ScalarType) string {
	w.requireWidth(t)
	return scalarName(t)
}

// requireWidth records the extension a 64-bit integer type needs.
func (w *Writer) requireWidth(t ir.ScalarType) {
	if t.Width == 8 && (t.Kind == ir.ScalarSint || t.Kind == ir.ScalarUint) {
		w.require("GL_ARB_gpu_shader_int64")
	}
}

func scalarName(t ir.ScalarType) string {
	switch t.Kind {
	case ir.ScalarBool:
		return "bool"
	case ir.ScalarSint:
		if t.Width == 8 {
			return "int64_t"
		}
		return glslTypeInt
	case ir.ScalarUint:
		if t.Width == 8 {
			return "uint64_t"
		}
		return glslTypeUint
	case ir.ScalarFloat:
		if t.Width == 8 {
			return "double"
		}
		return glslTypeFloat
	}
	return glslTypeInt
}

// vectorToGLSL returns the GLSL name for a vector type.
func vectorToGLSL(t ir.VectorType) string {
	size := t.Size
	if size < 2 || size > 4 {
		size = 4
	}

	switch t.Scalar.Kind {
	case ir.ScalarBool:
		return fmt.Sprintf("bvec%d", size)
	case ir.ScalarSint:
		if t.Scalar.Width == 8 {
			return fmt.Sprintf("i64vec%d", size)
		}
		return fmt.Sprintf("ivec%d", size)
	case ir.ScalarUint:
		if t.Scalar.Width == 8 {
			return fmt.Sprintf("u64vec%d", size)
		}
		return fmt.Sprintf("uvec%d", size)
	default:
		if t.Scalar.Width == 8 {
			return fmt.Sprintf("dvec%d", size)
		}
		return fmt.Sprintf("vec%d", size)
	}
}

// matrixToGLSL returns the GLSL name for a matrix type.
func matrixToGLSL(t ir.MatrixType) string {
	cols := t.Columns
	rows := t.Rows

	if cols < 2 || cols > 4 {
		cols = 4
	}
	if rows < 2 || rows > 4 {
		rows = 4
	}

	prefix := "mat"
	if t.Scalar.Width == 8 {
		prefix = "dmat"
	}
	if cols == rows {
		return fmt.Sprintf("%s%d", prefix, cols)
	}
	return fmt.Sprintf("%s%dx%d", prefix, cols, rows)
}

// imageToGLSL returns the GLSL name for a combined texture and sampler.
func (w *Writer) imageToGLSL(t ir.ImageType) string {
	prefix := "sampler"
	if t.Class == ir.ImageClassStorage {
		prefix = "image"
	}
	if t.Class != ir.ImageClassDepth {
		switch t.Kind {
		case ir.ScalarSint:
			prefix = "i" + prefix
		case ir.ScalarUint:
			prefix = "u" + prefix
		}
	}

	var dim string
	switch t.Dim {
	case ir.Dim1D:
		dim = "1D"
	case ir.Dim2D:
		dim = "2D"
		if t.Multisampled {
			dim = "2DMS"
		}
	case ir.Dim3D:
		dim = "3D"
	case ir.DimCube:
		dim = "Cube"
		if t.Arrayed && !w.options.LangVersion.AtLeast("4.0", "3.2") {
			w.require("GL_ARB_texture_cube_map_array")
		}
	case ir.DimRect:
		dim = "2DRect"
	case ir.DimBuffer:
		dim = "Buffer"
	}

	name := prefix + dim
	if t.Arrayed {
		name += "Array"
	}
	if t.Class == ir.ImageClassDepth {
		name += "Shadow"
	}
	return name
}

// structsEqual compares two struct types for equality.
func structsEqual(a, b ir.StructType) bool {
	if len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i].Name != b.Members[i].Name || a.Members[i].Type != b.Members[i].Type {
			return false
		}
	}
	return true
}

// scalarOf returns the scalar component type of a scalar, vector or
// matrix type.
func scalarOf(inner ir.TypeInner) (ir.ScalarType, bool) {
	switch t := inner.(type) {
	case ir.ScalarType:
		return t, true
	case ir.VectorType:
		return t.Scalar, true
	case ir.MatrixType:
		return t.Scalar, true
	}
	return ir.ScalarType{}, false
}

// withKind returns inner with its scalar kind and width replaced.
func withKind(inner ir.TypeInner, kind ir.ScalarKind, width uint8) ir.TypeInner {
	s := ir.ScalarType{Kind: kind, Width: width}
	switch t := inner.(type) {
	case ir.VectorType:
		return ir.VectorType{Size: t.Size, Scalar: s}
	case ir.MatrixType:
		return ir.MatrixType{Columns: t.Columns, Rows: t.Rows, Scalar: s}
	}
	return s
}

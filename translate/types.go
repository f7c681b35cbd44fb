// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir/types"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

type typeKey struct {
	t      types.Type
	md     *metadata.Node
	signed bool
}

// translateType converts an SSA type, refined by its metadata node, into
// a registered ir type. Pointers translate to their pointee. Results are
// cached, so a (type, metadata) pair always yields the same handle.
func (t *Translator) translateType(ty types.Type, md *metadata.Node, signed bool) (ir.TypeHandle, error) {
	if md != nil && md.Unsigned {
		signed = false
	}
	key := typeKey{t: ty, md: md, signed: signed}
	if h, ok := t.typeCache[key]; ok {
		return h, nil
	}
	h, err := t.convertType(ty, md, signed)
	if err != nil {
		return 0, err
	}
	t.typeCache[key] = h
	return h, nil
}

func (t *Translator) convertType(ty types.Type, md *metadata.Node, signed bool) (ir.TypeHandle, error) {
	if md != nil && md.Sampler != nil {
		img, err := samplerType(md.Sampler)
		if err != nil {
			return 0, err
		}
		return t.registry.GetOrCreate("", img), nil
	}

	switch ty := ty.(type) {
	case *types.IntType, *types.FloatType:
		s, err := t.scalarType(ty, signed)
		if err != nil {
			return 0, err
		}
		return t.registry.GetOrCreate("", s), nil

	case *types.VectorType:
		s, err := t.scalarType(ty.ElemType, signed)
		if err != nil {
			return 0, err
		}
		switch {
		case ty.Len == 1:
			return t.registry.GetOrCreate("", s), nil
		case ty.Len > 4:
			return 0, t.unsupported("type", "vector of %d components", ty.Len)
		}
		return t.registry.GetOrCreate("", ir.VectorType{Size: ir.VectorSize(ty.Len), Scalar: s}), nil

	case *types.ArrayType:
		if md != nil && md.Matrix {
			if col, ok := ty.ElemType.(*types.VectorType); ok {
				s, err := t.scalarType(col.ElemType, signed)
				if err != nil {
					return 0, err
				}
				if ty.Len < 2 || ty.Len > 4 || col.Len < 2 || col.Len > 4 || s.Kind != ir.ScalarFloat {
					return 0, t.unsupported("type", "matrix of %d columns of %s", ty.Len, col)
				}
				return t.registry.GetOrCreate("", ir.MatrixType{
					Columns: ir.VectorSize(ty.Len),
					Rows:    ir.VectorSize(col.Len),
					Scalar:  s,
				}), nil
			}
		}
		base, err := t.translateType(ty.ElemType, md, signed)
		if err != nil {
			return 0, err
		}
		arr := ir.ArrayType{Base: base}
		if ty.Len > 0 {
			n, err := index32(t, "array", ty.Len)
			if err != nil {
				return 0, err
			}
			arr.Size = ir.ArraySize{Constant: &n}
		}
		arr.Stride = ir.NewLayouter(t.registry.GetTypes(), layoutOf(md)).ArrayStride(base)
		return t.registry.GetOrCreate("", arr), nil

	case *types.StructType:
		return t.structType(ty, md, signed)

	case *types.PointerType:
		if ty.ElemType == nil {
			return 0, t.unsupported("type", "opaque pointer without a known pointee")
		}
		return t.translateType(ty.ElemType, md, signed)
	}
	return 0, t.unsupported("type", "%s", ty)
}

func (t *Translator) scalarType(ty types.Type, signed bool) (ir.ScalarType, error) {
	switch ty := ty.(type) {
	case *types.IntType:
		kind := ir.ScalarSint
		if !signed {
			kind = ir.ScalarUint
		}
		switch {
		case ty.BitSize == 1:
			return ir.ScalarType{Kind: ir.ScalarBool, Width: 1}, nil
		case ty.BitSize <= 32:
			return ir.ScalarType{Kind: kind, Width: 4}, nil
		case ty.BitSize == 64:
			return ir.ScalarType{Kind: kind, Width: 8}, nil
		}
		return ir.ScalarType{}, t.unsupported("type", "%d-bit integer", ty.BitSize)
	case *types.FloatType:
		switch ty.Kind {
		case types.FloatKindHalf:
			return ir.ScalarType{Kind: ir.ScalarFloat, Width: 2}, nil
		case types.FloatKindFloat:
			return ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}, nil
		case types.FloatKindDouble:
			return ir.ScalarType{Kind: ir.ScalarFloat, Width: 8}, nil
		}
		return ir.ScalarType{}, t.unsupported("type", "floating-point kind %s", ty)
	}
	return ir.ScalarType{}, t.unsupported("type", "%s is not a scalar", ty)
}

// structType declares a struct. Member names, precision and layout come
// from the metadata; anonymous structs are named struct<N>.
func (t *Translator) structType(ty *types.StructType, md *metadata.Node, signed bool) (ir.TypeHandle, error) {
	if md == nil {
		md = t.structMD[ty]
	}
	if md == nil && ty.Name() != "" {
		md = t.meta.Type(ty.Name())
	}
	name := ""
	if md != nil {
		name = md.TypeName
	}
	if name == "" {
		name = ty.Name()
	}
	if name == "" {
		name = fmt.Sprintf("struct%d", t.structSeq)
		t.structSeq++
	}

	members := make([]ir.StructMember, len(ty.Fields))
	for i, f := range ty.Fields {
		var mmd *metadata.Node
		if md != nil {
			mmd = md.Member(i)
		}
		h, err := t.translateType(f, mmd, signed)
		if err != nil {
			return 0, err
		}
		members[i] = ir.StructMember{Name: fmt.Sprintf("f%d", i), Type: h}
		if mmd != nil {
			if mmd.Name != "" {
				members[i].Name = mmd.Name
			}
			members[i].Precision = precisionOf(mmd.Precision)
			members[i].RowMajor = mmd.RowMajor
		}
	}
	layouter := ir.NewLayouter(t.registry.GetTypes(), layoutOf(md))
	span := layouter.MemberOffsets(members)
	return t.registry.GetOrCreate(name, ir.StructType{Members: members, Span: span}), nil
}

func samplerType(s *metadata.Sampler) (ir.ImageType, error) {
	img := ir.ImageType{Arrayed: s.Arrayed, Multisampled: s.MS, Kind: ir.ScalarFloat}
	switch strings.ToLower(s.Dim) {
	case "1d":
		img.Dim = ir.Dim1D
	case "", "2d":
		img.Dim = ir.Dim2D
	case "3d":
		img.Dim = ir.Dim3D
	case "cube":
		img.Dim = ir.DimCube
	case "rect":
		img.Dim = ir.DimRect
	case "buffer":
		img.Dim = ir.DimBuffer
	default:
		return img, &UnsupportedError{Construct: "sampler", Detail: "dimension " + s.Dim}
	}
	switch s.Kind {
	case "", "float":
		img.Kind = ir.ScalarFloat
	case "int":
		img.Kind = ir.ScalarSint
	case "uint":
		img.Kind = ir.ScalarUint
	default:
		return img, &UnsupportedError{Construct: "sampler", Detail: "component kind " + s.Kind}
	}
	if s.Shadow {
		img.Class = ir.ImageClassDepth
	}
	return img, nil
}

func layoutOf(md *metadata.Node) ir.BlockLayout {
	if md == nil {
		return ir.LayoutNone
	}
	switch md.Layout {
	case metadata.LayoutStd140:
		return ir.LayoutStd140
	case metadata.LayoutStd430:
		return ir.LayoutStd430
	case metadata.LayoutShared:
		return ir.LayoutShared
	case metadata.LayoutPacked:
		return ir.LayoutPacked
	}
	return ir.LayoutNone
}

func precisionOf(p metadata.Precision) ir.Precision {
	switch p {
	case metadata.PrecisionLow:
		return ir.PrecisionLow
	case metadata.PrecisionMedium:
		return ir.PrecisionMedium
	case metadata.PrecisionHigh:
		return ir.PrecisionHigh
	}
	return ir.PrecisionNone
}

func isBool(ty types.Type) bool {
	if v, ok := ty.(*types.VectorType); ok {
		ty = v.ElemType
	}
	it, ok := ty.(*types.IntType)
	return ok && it.BitSize == 1
}

func isFloatType(ty types.Type) bool {
	if v, ok := ty.(*types.VectorType); ok {
		ty = v.ElemType
	}
	_, ok := ty.(*types.FloatType)
	return ok
}

func isStructType(ty types.Type) bool {
	_, ok := ty.(*types.StructType)
	return ok
}

// scalarOf returns the scalar kind of a scalar or vector ir type.
func scalarOf(inner ir.TypeInner) (ir.ScalarType, bool) {
	switch inner := inner.(type) {
	case ir.ScalarType:
		return inner, true
	case ir.VectorType:
		return inner.Scalar, true
	case ir.MatrixType:
		return inner.Scalar, true
	}
	return ir.ScalarType{}, false
}

func vectorSizeOf(inner ir.TypeInner) ir.VectorSize {
	if v, ok := inner.(ir.VectorType); ok {
		return v.Size
	}
	return 0
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// Layouter computes the size and alignment of types under a block layout.
type Layouter struct {
	types  []Type
	layout BlockLayout
}

// NewLayouter returns a layouter over types. LayoutNone uses std430 rules.
func NewLayouter(types []Type, layout BlockLayout) *Layouter {
	return &Layouter{types: types, layout: layout}
}

// TypeLayout is the size and alignment of a type, in bytes.
type TypeLayout struct {
	Size      uint32
	Alignment uint32
}

// Layout returns the layout of the type with the given handle.
func (l *Layouter) Layout(h TypeHandle) TypeLayout {
	if int(h) >= len(l.types) {
		return TypeLayout{Size: 4, Alignment: 4}
	}
	return l.LayoutInner(l.types[h].Inner)
}

// LayoutInner returns the layout of inner.
func (l *Layouter) LayoutInner(inner TypeInner) TypeLayout {
	switch t := inner.(type) {
	case ScalarType:
		w := uint32(t.Width)
		if t.Kind == ScalarBool {
			w = 4
		}
		return TypeLayout{Size: w, Alignment: w}
	case VectorType:
		w := uint32(t.Scalar.Width)
		if t.Scalar.Kind == ScalarBool {
			w = 4
		}
		size := uint32(t.Size) * w
		align := size
		if t.Size == Vec3 {
			align = 4 * w
		}
		return TypeLayout{Size: size, Alignment: align}
	case MatrixType:
		col := l.LayoutInner(VectorType{Size: t.Rows, Scalar: t.Scalar})
		stride := l.roundArray(alignTo(col.Size, col.Alignment))
		return TypeLayout{Size: stride * uint32(t.Columns), Alignment: l.roundArray(col.Alignment)}
	case ArrayType:
		elem := l.Layout(t.Base)
		stride := t.Stride
		if stride == 0 {
			stride = l.ArrayStride(t.Base)
		}
		n := uint32(1)
		if t.Size.Constant != nil {
			n = *t.Size.Constant
		}
		return TypeLayout{Size: stride * n, Alignment: l.roundArray(elem.Alignment)}
	case StructType:
		align := uint32(1)
		for _, m := range t.Members {
			ml := l.Layout(m.Type)
			if ml.Alignment > align {
				align = ml.Alignment
			}
		}
		align = l.roundArray(align)
		span := t.Span
		if span == 0 {
			span = l.StructSpan(t.Members)
		}
		return TypeLayout{Size: alignTo(span, align), Alignment: align}
	default:
		return TypeLayout{Size: 4, Alignment: 4}
	}
}

// ArrayStride returns the stride of an array of elem.
func (l *Layouter) ArrayStride(elem TypeHandle) uint32 {
	el := l.Layout(elem)
	return l.roundArray(alignTo(el.Size, el.Alignment))
}

// MemberOffsets assigns offsets to members in declaration order and returns
// the unpadded span.
func (l *Layouter) MemberOffsets(members []StructMember) uint32 {
	var offset uint32
	for i := range members {
		ml := l.Layout(members[i].Type)
		offset = alignTo(offset, ml.Alignment)
		members[i].Offset = offset
		offset += ml.Size
	}
	return offset
}

// StructSpan returns the end of the last member.
func (l *Layouter) StructSpan(members []StructMember) uint32 {
	if len(members) == 0 {
		return 0
	}
	last := members[len(members)-1]
	return last.Offset + l.Layout(last.Type).Size
}

// roundArray applies the std140 rule that array and struct alignment is
// rounded up to a vec4.
func (l *Layouter) roundArray(a uint32) uint32 {
	if l.layout == LayoutStd140 {
		return alignTo(a, 16)
	}
	return a
}

func alignTo(v, a uint32) uint32 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

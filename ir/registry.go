// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"fmt"
	"strings"
)

// TypeRegistry deduplicates types so that each distinct type is declared
// exactly once in a Module.
//
// Structs are nominal: two structs with the same members but different
// names get different handles. Every other type is structural and the name
// of its first registration wins.
type TypeRegistry struct {
	types []Type
	index map[string]TypeHandle
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{index: make(map[string]TypeHandle, 16)}
}

// GetOrCreate returns the handle of inner, registering it under name the
// first time it is seen.
func (r *TypeRegistry) GetOrCreate(name string, inner TypeInner) TypeHandle {
	var b strings.Builder
	if _, ok := inner.(StructType); ok {
		b.WriteString(name)
		b.WriteByte('#')
	}
	writeTypeKey(&b, inner)
	key := b.String()

	if h, ok := r.index[key]; ok {
		return h
	}
	h := TypeHandle(len(r.types))
	r.types = append(r.types, Type{Name: name, Inner: inner})
	r.index[key] = h
	return h
}

// GetTypes returns all registered types in handle order.
func (r *TypeRegistry) GetTypes() []Type {
	return r.types
}

// Lookup finds a type by its handle.
func (r *TypeRegistry) Lookup(handle TypeHandle) (Type, bool) {
	if int(handle) >= len(r.types) {
		return Type{}, false
	}
	return r.types[handle], true
}

// Count returns the number of registered types.
func (r *TypeRegistry) Count() int {
	return len(r.types)
}

// writeTypeKey writes a key that is equal for structurally identical
// types. Component types are referenced by handle, so they must already be
// registered.
func writeTypeKey(b *strings.Builder, inner TypeInner) {
	switch t := inner.(type) {
	case ScalarType:
		fmt.Fprintf(b, "s%d.%d", t.Kind, t.Width)
	case VectorType:
		fmt.Fprintf(b, "v%d.", t.Size)
		writeTypeKey(b, t.Scalar)
	case MatrixType:
		fmt.Fprintf(b, "m%dx%d.", t.Columns, t.Rows)
		writeTypeKey(b, t.Scalar)
	case ArrayType:
		fmt.Fprintf(b, "a%d[", t.Base)
		if t.Size.Constant != nil {
			fmt.Fprintf(b, "%d", *t.Size.Constant)
		}
		fmt.Fprintf(b, "]%d", t.Stride)
	case StructType:
		fmt.Fprintf(b, "st%d{", t.Span)
		for _, m := range t.Members {
			fmt.Fprintf(b, "%s:%d@%d:%d:%t;", m.Name, m.Type, m.Offset, m.Precision, m.RowMajor)
		}
		b.WriteByte('}')
	case PointerType:
		fmt.Fprintf(b, "p%d.%d", t.Base, t.Space)
	case ImageType:
		fmt.Fprintf(b, "i%d.%t.%d.%t.%d", t.Dim, t.Arrayed, t.Class, t.Multisampled, t.Kind)
	default:
		fmt.Fprintf(b, "?%T", inner)
	}
}

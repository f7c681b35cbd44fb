// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"fmt"
	"math"

	"github.com/gogpu/glass/ir"
)

// ref is a pointer value: a variable slot, a path of component indices
// into it and, for swizzled store targets, the selected lanes.
type ref struct {
	slot  *Value
	path  []int
	lanes []int
}

func (r *ref) index(i int) *ref {
	path := make([]int, len(r.path), len(r.path)+1)
	copy(path, r.path)
	return &ref{slot: r.slot, path: append(path, i)}
}

func (r *ref) target() (Value, error) {
	v := *r.slot
	for _, p := range r.path {
		c, ok := v.(Composite)
		if !ok || p < 0 || p >= len(c) {
			return nil, fmt.Errorf("index %d out of range", p)
		}
		v = c[p]
	}
	return v, nil
}

func (r *ref) load() (Value, error) {
	v, err := r.target()
	if err != nil {
		return nil, err
	}
	if r.lanes == nil {
		return clone(v), nil
	}
	c, ok := v.(Composite)
	if !ok {
		return nil, fmt.Errorf("swizzle of %T", v)
	}
	out := make(Composite, len(r.lanes))
	for i, l := range r.lanes {
		if l >= len(c) {
			return nil, fmt.Errorf("lane %d out of range", l)
		}
		out[i] = c[l]
	}
	return out, nil
}

func (r *ref) store(v Value) error {
	if r.lanes != nil {
		t, err := r.target()
		if err != nil {
			return err
		}
		c, ok := t.(Composite)
		if !ok {
			return fmt.Errorf("swizzle store to %T", t)
		}
		src, ok := v.(Composite)
		if !ok {
			src = Composite{v}
		}
		if len(src) != len(r.lanes) {
			return fmt.Errorf("swizzle store of %d components to %d lanes", len(src), len(r.lanes))
		}
		for i, l := range r.lanes {
			if l >= len(c) {
				return fmt.Errorf("lane %d out of range", l)
			}
			c[l] = clone(src[i])
		}
		return nil
	}
	if len(r.path) == 0 {
		*r.slot = clone(v)
		return nil
	}
	parent := &ref{slot: r.slot, path: r.path[:len(r.path)-1]}
	t, err := parent.target()
	if err != nil {
		return err
	}
	c, ok := t.(Composite)
	last := r.path[len(r.path)-1]
	if !ok || last >= len(c) {
		return fmt.Errorf("index %d out of range", last)
	}
	c[last] = clone(v)
	return nil
}

func (fr *frame) store(p, v Value) error {
	r, ok := p.(*ref)
	if !ok {
		return fmt.Errorf("store through %T", p)
	}
	return r.store(v)
}

// clone deep-copies composites.
func clone(v Value) Value {
	c, ok := v.(Composite)
	if !ok {
		return v
	}
	out := make(Composite, len(c))
	for i := range c {
		out[i] = clone(c[i])
	}
	return out
}

// eval returns the value of an expression at the current point of
// execution.
func (fr *frame) eval(h ir.ExpressionHandle) (Value, error) {
	if v, ok := fr.values[h]; ok {
		return v, nil
	}
	if int(h) >= len(fr.fn.Expressions) {
		return nil, fmt.Errorf("expression %d out of range", h)
	}
	switch k := fr.fn.Expressions[h].Kind.(type) {
	case ir.Literal, ir.ExprConstant, ir.ExprZeroValue, ir.ExprGlobalVariable,
		ir.ExprLocalVariable, ir.ExprFunctionArgument:
		return fr.compute(h)
	case ir.ExprCallResult:
		if v, ok := fr.results[h]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("result of call to function %d used before the call", k.Function)
	}
	return nil, fmt.Errorf("expression %d used before emit", h)
}

func (fr *frame) compute(h ir.ExpressionHandle) (Value, error) {
	if int(h) >= len(fr.fn.Expressions) {
		return nil, fmt.Errorf("expression %d out of range", h)
	}
	mc := fr.mc
	switch k := fr.fn.Expressions[h].Kind.(type) {
	case ir.Literal:
		return literal(k.Value)
	case ir.ExprConstant:
		return mc.constant(k.Constant)
	case ir.ExprZeroValue:
		return mc.zero(k.Type)
	case ir.ExprGlobalVariable:
		if int(k.Variable) >= len(mc.globals) {
			return nil, fmt.Errorf("global %d out of range", k.Variable)
		}
		return &ref{slot: &mc.globals[k.Variable]}, nil
	case ir.ExprLocalVariable:
		if int(k.Variable) >= len(fr.locals) {
			return nil, fmt.Errorf("local %d out of range", k.Variable)
		}
		return &ref{slot: &fr.locals[k.Variable]}, nil
	case ir.ExprFunctionArgument:
		if int(k.Index) >= len(fr.args) {
			return nil, fmt.Errorf("argument %d out of range", k.Index)
		}
		return fr.args[k.Index], nil
	case ir.ExprCallResult:
		return fr.eval(h)
	case ir.ExprLoad:
		p, err := fr.eval(k.Pointer)
		if err != nil {
			return nil, err
		}
		r, ok := p.(*ref)
		if !ok {
			return nil, fmt.Errorf("load through %T", p)
		}
		return r.load()
	case ir.ExprAccessIndex:
		base, err := fr.eval(k.Base)
		if err != nil {
			return nil, err
		}
		return access(base, int(k.Index))
	case ir.ExprAccess:
		base, err := fr.eval(k.Base)
		if err != nil {
			return nil, err
		}
		idx, err := fr.eval(k.Index)
		if err != nil {
			return nil, err
		}
		i, ok := toInt(idx)
		if !ok {
			return nil, fmt.Errorf("index of type %T", idx)
		}
		return access(base, i)
	case ir.ExprSwizzle:
		v, err := fr.eval(k.Vector)
		if err != nil {
			return nil, err
		}
		lanes := make([]int, k.Size)
		for i := range lanes {
			lanes[i] = int(k.Pattern[i])
		}
		if r, ok := v.(*ref); ok {
			return &ref{slot: r.slot, path: r.path, lanes: lanes}, nil
		}
		c, ok := v.(Composite)
		if !ok {
			return nil, fmt.Errorf("swizzle of %T", v)
		}
		out := make(Composite, len(lanes))
		for i, l := range lanes {
			if l >= len(c) {
				return nil, fmt.Errorf("swizzle lane %d of %d-component vector", l, len(c))
			}
			out[i] = c[l]
		}
		return out, nil
	case ir.ExprSplat:
		v, err := fr.eval(k.Value)
		if err != nil {
			return nil, err
		}
		out := make(Composite, k.Size)
		for i := range out {
			out[i] = v
		}
		return out, nil
	case ir.ExprCompose:
		return fr.compose(k)
	case ir.ExprUnary:
		v, err := fr.eval(k.Expr)
		if err != nil {
			return nil, err
		}
		return unary(k.Op, v)
	case ir.ExprBinary:
		l, err := fr.eval(k.Left)
		if err != nil {
			return nil, err
		}
		r, err := fr.eval(k.Right)
		if err != nil {
			return nil, err
		}
		return binary(k.Op, l, r)
	case ir.ExprSelect:
		c, err := fr.eval(k.Condition)
		if err != nil {
			return nil, err
		}
		a, err := fr.eval(k.Accept)
		if err != nil {
			return nil, err
		}
		r, err := fr.eval(k.Reject)
		if err != nil {
			return nil, err
		}
		return selectValue(c, a, r)
	case ir.ExprAs:
		v, err := fr.eval(k.Expr)
		if err != nil {
			return nil, err
		}
		return as(v, k.Kind, k.Convert)
	case ir.ExprMath:
		args := []ir.ExpressionHandle{k.Arg}
		for _, a := range []*ir.ExpressionHandle{k.Arg1, k.Arg2, k.Arg3} {
			if a != nil {
				args = append(args, *a)
			}
		}
		vals := make([]Value, len(args))
		for i, a := range args {
			v, err := fr.eval(a)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return mathFunc(k.Fun, vals)
	case ir.ExprRelational:
		v, err := fr.eval(k.Argument)
		if err != nil {
			return nil, err
		}
		return relational(k.Fun, v)
	default:
		return nil, fmt.Errorf("%w expression %T", ErrUnsupported, k)
	}
}

func access(base Value, i int) (Value, error) {
	if r, ok := base.(*ref); ok {
		if r.lanes != nil {
			if i < 0 || i >= len(r.lanes) {
				return nil, fmt.Errorf("index %d out of range", i)
			}
			return r.index(r.lanes[i]), nil
		}
		return r.index(i), nil
	}
	c, ok := base.(Composite)
	if !ok {
		return nil, fmt.Errorf("index into %T", base)
	}
	if i < 0 || i >= len(c) {
		return nil, fmt.Errorf("index %d out of range [0, %d)", i, len(c))
	}
	return c[i], nil
}

func (fr *frame) compose(k ir.ExprCompose) (Value, error) {
	vals := make([]Value, len(k.Components))
	for i, h := range k.Components {
		v, err := fr.eval(h)
		if err != nil {
			return nil, err
		}
		vals[i] = clone(v)
	}
	if int(k.Type) >= len(fr.mc.Module.Types) {
		return Composite(vals), nil
	}
	if _, ok := fr.mc.Module.Types[k.Type].Inner.(ir.VectorType); ok {
		var out Composite
		for _, v := range vals {
			if c, ok := v.(Composite); ok {
				out = append(out, c...)
			} else {
				out = append(out, v)
			}
		}
		return out, nil
	}
	return Composite(vals), nil
}

func literal(v ir.LiteralValue) (Value, error) {
	switch l := v.(type) {
	case ir.LiteralF32:
		return float32(l), nil
	case ir.LiteralF64:
		return float64(l), nil
	case ir.LiteralI32:
		return int32(l), nil
	case ir.LiteralU32:
		return uint32(l), nil
	case ir.LiteralI64:
		return int64(l), nil
	case ir.LiteralU64:
		return uint64(l), nil
	case ir.LiteralBool:
		return bool(l), nil
	}
	return nil, fmt.Errorf("%w literal %T", ErrUnsupported, v)
}

func scalarZero(s ir.ScalarType) Value {
	switch s.Kind {
	case ir.ScalarSint:
		if s.Width == 8 {
			return int64(0)
		}
		return int32(0)
	case ir.ScalarUint:
		if s.Width == 8 {
			return uint64(0)
		}
		return uint32(0)
	case ir.ScalarFloat:
		if s.Width == 8 {
			return float64(0)
		}
		return float32(0)
	}
	return false
}

func vectorZero(n ir.VectorSize, s ir.ScalarType) Composite {
	out := make(Composite, n)
	for i := range out {
		out[i] = scalarZero(s)
	}
	return out
}

// zero returns the zero value of a type. Images have no runtime value.
func (mc *Machine) zero(h ir.TypeHandle) (Value, error) {
	if int(h) >= len(mc.Module.Types) {
		return nil, fmt.Errorf("type %d out of range", h)
	}
	switch t := mc.Module.Types[h].Inner.(type) {
	case ir.ScalarType:
		return scalarZero(t), nil
	case ir.VectorType:
		return vectorZero(t.Size, t.Scalar), nil
	case ir.MatrixType:
		out := make(Composite, t.Columns)
		for i := range out {
			out[i] = vectorZero(t.Rows, t.Scalar)
		}
		return out, nil
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return Composite{}, nil
		}
		out := make(Composite, *t.Size.Constant)
		for i := range out {
			z, err := mc.zero(t.Base)
			if err != nil {
				return nil, err
			}
			out[i] = z
		}
		return out, nil
	case ir.StructType:
		out := make(Composite, len(t.Members))
		for i, m := range t.Members {
			z, err := mc.zero(m.Type)
			if err != nil {
				return nil, err
			}
			out[i] = z
		}
		return out, nil
	case ir.ImageType:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w zero value of %T", ErrUnsupported, t)
	}
}

func (mc *Machine) constant(h ir.ConstantHandle) (Value, error) {
	if int(h) >= len(mc.Module.Constants) {
		return nil, fmt.Errorf("constant %d out of range", h)
	}
	c := mc.Module.Constants[h]
	switch v := c.Value.(type) {
	case ir.ScalarValue:
		width := uint8(4)
		if int(c.Type) < len(mc.Module.Types) {
			if s, ok := mc.Module.Types[c.Type].Inner.(ir.ScalarType); ok {
				width = s.Width
			}
		}
		return fromBits(v.Bits, ir.ScalarType{Kind: v.Kind, Width: width}), nil
	case ir.CompositeValue:
		out := make(Composite, len(v.Components))
		for i, ch := range v.Components {
			e, err := mc.constant(ch)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w constant %T", ErrUnsupported, c.Value)
}

func fromBits(bits uint64, s ir.ScalarType) Value {
	switch s.Kind {
	case ir.ScalarSint:
		if s.Width == 8 {
			return int64(bits)
		}
		return int32(uint32(bits))
	case ir.ScalarUint:
		if s.Width == 8 {
			return bits
		}
		return uint32(bits)
	case ir.ScalarFloat:
		if s.Width == 8 {
			return math.Float64frombits(bits)
		}
		return math.Float32frombits(uint32(bits))
	}
	return bits != 0
}

func toInt(v Value) (int, bool) {
	switch x := v.(type) {
	case int32:
		return int(x), true
	case uint32:
		return int(x), true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	}
	return 0, false
}

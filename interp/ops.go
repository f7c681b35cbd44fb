// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package interp

import (
	"fmt"
	"math"

	"github.com/gogpu/glass/ir"
)

type integer interface {
	~int32 | ~uint32 | ~int64 | ~uint64
}

type number interface {
	integer | ~float32 | ~float64
}

func isMatrix(v Value) bool {
	c, ok := v.(Composite)
	if !ok || len(c) == 0 {
		return false
	}
	_, ok = c[0].(Composite)
	return ok
}

func isVector(v Value) bool {
	c, ok := v.(Composite)
	return ok && !isMatrix(c)
}

// componentwise applies f lane by lane, splatting a scalar operand.
func componentwise(l, r Value, f func(a, b Value) (Value, error)) (Value, error) {
	lc, lok := l.(Composite)
	rc, rok := r.(Composite)
	switch {
	case lok && rok:
		if len(lc) != len(rc) {
			return nil, fmt.Errorf("operands of %d and %d components", len(lc), len(rc))
		}
		out := make(Composite, len(lc))
		for i := range lc {
			v, err := componentwise(lc[i], rc[i], f)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case lok:
		out := make(Composite, len(lc))
		for i := range lc {
			v, err := componentwise(lc[i], r, f)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case rok:
		out := make(Composite, len(rc))
		for i := range rc {
			v, err := componentwise(l, rc[i], f)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return f(l, r)
}

func each(v Value, f func(Value) (Value, error)) (Value, error) {
	c, ok := v.(Composite)
	if !ok {
		return f(v)
	}
	out := make(Composite, len(c))
	for i := range c {
		x, err := each(c[i], f)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func binary(op ir.BinaryOperator, l, r Value) (Value, error) {
	if op == ir.BinaryMultiply && (isMatrix(l) || isMatrix(r)) {
		switch {
		case isMatrix(l) && isVector(r):
			return matTimesVec(l.(Composite), r.(Composite))
		case isVector(l) && isMatrix(r):
			return vecTimesMat(l.(Composite), r.(Composite))
		case isMatrix(l) && isMatrix(r):
			rc := r.(Composite)
			out := make(Composite, len(rc))
			for j := range rc {
				col, err := matTimesVec(l.(Composite), rc[j].(Composite))
				if err != nil {
					return nil, err
				}
				out[j] = col
			}
			return out, nil
		}
	}
	return componentwise(l, r, func(a, b Value) (Value, error) {
		return scalarBinary(op, a, b)
	})
}

func dot(a, b Composite) (Value, error) {
	if len(a) != len(b) || len(a) == 0 {
		return nil, fmt.Errorf("dot of %d and %d components", len(a), len(b))
	}
	sum, err := scalarBinary(ir.BinaryMultiply, a[0], b[0])
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(a); i++ {
		p, err := scalarBinary(ir.BinaryMultiply, a[i], b[i])
		if err != nil {
			return nil, err
		}
		if sum, err = scalarBinary(ir.BinaryAdd, sum, p); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// matTimesVec multiplies a column-major matrix by a column vector.
func matTimesVec(m, v Composite) (Value, error) {
	if len(m) != len(v) {
		return nil, fmt.Errorf("matrix of %d columns times %d-component vector", len(m), len(v))
	}
	rows := len(m[0].(Composite))
	out := make(Composite, rows)
	for row := range rows {
		r := make(Composite, len(m))
		for c := range m {
			r[c] = m[c].(Composite)[row]
		}
		s, err := dot(r, v)
		if err != nil {
			return nil, err
		}
		out[row] = s
	}
	return out, nil
}

func vecTimesMat(v, m Composite) (Value, error) {
	out := make(Composite, len(m))
	for c := range m {
		s, err := dot(v, m[c].(Composite))
		if err != nil {
			return nil, err
		}
		out[c] = s
	}
	return out, nil
}

func scalarBinary(op ir.BinaryOperator, a, b Value) (Value, error) {
	if op == ir.BinaryShiftLeft || op == ir.BinaryShiftRight {
		n, ok := toInt(b)
		if !ok {
			return nil, fmt.Errorf("shift amount of type %T", b)
		}
		switch x := a.(type) {
		case int32:
			return shift(op, x, uint(n)), nil
		case uint32:
			return shift(op, x, uint(n)), nil
		case int64:
			return shift(op, x, uint(n)), nil
		case uint64:
			return shift(op, x, uint(n)), nil
		}
		return nil, fmt.Errorf("shift of %T", a)
	}
	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		if !ok {
			break
		}
		switch op {
		case ir.BinaryLogicalAnd, ir.BinaryAnd:
			return x && y, nil
		case ir.BinaryLogicalOr, ir.BinaryInclusiveOr:
			return x || y, nil
		case ir.BinaryExclusiveOr, ir.BinaryNotEqual:
			return x != y, nil
		case ir.BinaryEqual:
			return x == y, nil
		}
		return nil, fmt.Errorf("%w boolean operator %d", ErrUnsupported, op)
	case int32:
		if y, ok := b.(int32); ok {
			return intBinary(op, x, y)
		}
	case uint32:
		if y, ok := b.(uint32); ok {
			return intBinary(op, x, y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return intBinary(op, x, y)
		}
	case uint64:
		if y, ok := b.(uint64); ok {
			return intBinary(op, x, y)
		}
	case float32:
		if y, ok := b.(float32); ok {
			return arith(op, x, y, func(p, q float32) float32 {
				return float32(math.Mod(float64(p), float64(q)))
			})
		}
	case float64:
		if y, ok := b.(float64); ok {
			return arith(op, x, y, math.Mod)
		}
	}
	return nil, fmt.Errorf("operator %d on %T and %T", op, a, b)
}

func shift[T integer](op ir.BinaryOperator, x T, n uint) T {
	if op == ir.BinaryShiftLeft {
		return x << n
	}
	return x >> n
}

func intBinary[T integer](op ir.BinaryOperator, x, y T) (Value, error) {
	switch op {
	case ir.BinaryAnd:
		return x & y, nil
	case ir.BinaryInclusiveOr:
		return x | y, nil
	case ir.BinaryExclusiveOr:
		return x ^ y, nil
	case ir.BinaryDivide, ir.BinaryModulo:
		// Undefined in the shading language; keep running.
		if y == 0 {
			return T(0), nil
		}
	}
	return arith(op, x, y, func(p, q T) T { return p % q })
}

func arith[T number](op ir.BinaryOperator, x, y T, mod func(T, T) T) (Value, error) {
	switch op {
	case ir.BinaryAdd:
		return x + y, nil
	case ir.BinarySubtract:
		return x - y, nil
	case ir.BinaryMultiply:
		return x * y, nil
	case ir.BinaryDivide:
		return x / y, nil
	case ir.BinaryModulo:
		return mod(x, y), nil
	case ir.BinaryEqual:
		return x == y, nil
	case ir.BinaryNotEqual:
		return x != y, nil
	case ir.BinaryLess:
		return x < y, nil
	case ir.BinaryLessEqual:
		return x <= y, nil
	case ir.BinaryGreater:
		return x > y, nil
	case ir.BinaryGreaterEqual:
		return x >= y, nil
	}
	return nil, fmt.Errorf("%w operator %d on %T", ErrUnsupported, op, x)
}

func unary(op ir.UnaryOperator, v Value) (Value, error) {
	return each(v, func(x Value) (Value, error) {
		switch op {
		case ir.UnaryLogicalNot:
			if b, ok := x.(bool); ok {
				return !b, nil
			}
		case ir.UnaryNegate:
			switch n := x.(type) {
			case int32:
				return -n, nil
			case int64:
				return -n, nil
			case uint32:
				return -n, nil
			case uint64:
				return -n, nil
			case float32:
				return -n, nil
			case float64:
				return -n, nil
			}
		case ir.UnaryBitwiseNot:
			switch n := x.(type) {
			case bool:
				return !n, nil
			case int32:
				return ^n, nil
			case int64:
				return ^n, nil
			case uint32:
				return ^n, nil
			case uint64:
				return ^n, nil
			}
		}
		return nil, fmt.Errorf("unary operator %d on %T", op, x)
	})
}

func selectValue(c, a, r Value) (Value, error) {
	if b, ok := c.(bool); ok {
		if b {
			return clone(a), nil
		}
		return clone(r), nil
	}
	cc, ok := c.(Composite)
	ac, aok := a.(Composite)
	rc, rok := r.(Composite)
	if !ok || !aok || !rok || len(cc) != len(ac) || len(cc) != len(rc) {
		return nil, fmt.Errorf("select on %T", c)
	}
	out := make(Composite, len(cc))
	for i := range cc {
		v, err := selectValue(cc[i], ac[i], rc[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// as converts (width != nil) or bitcasts each component.
func as(v Value, kind ir.ScalarKind, width *uint8) (Value, error) {
	return each(v, func(x Value) (Value, error) {
		if width == nil {
			return bitcast(x, kind)
		}
		return convert(x, ir.ScalarType{Kind: kind, Width: *width})
	})
}

func bitcast(x Value, kind ir.ScalarKind) (Value, error) {
	var bits uint64
	var w uint8 = 4
	switch n := x.(type) {
	case int32:
		bits = uint64(uint32(n))
	case uint32:
		bits = uint64(n)
	case float32:
		bits = uint64(math.Float32bits(n))
	case int64:
		bits, w = uint64(n), 8
	case uint64:
		bits, w = n, 8
	case float64:
		bits, w = math.Float64bits(n), 8
	default:
		return nil, fmt.Errorf("bitcast of %T", x)
	}
	return fromBits(bits, ir.ScalarType{Kind: kind, Width: w}), nil
}

func convert(x Value, to ir.ScalarType) (Value, error) {
	var f float64
	var i int64
	var u uint64
	isFloat := false
	switch n := x.(type) {
	case bool:
		if n {
			i, u, f = 1, 1, 1
		}
	case int32:
		i, u, f = int64(n), uint64(n), float64(n)
	case int64:
		i, u, f = n, uint64(n), float64(n)
	case uint32:
		i, u, f = int64(n), uint64(n), float64(n)
	case uint64:
		i, u, f = int64(n), n, float64(n)
	case float32:
		f, isFloat = float64(n), true
	case float64:
		f, isFloat = n, true
	default:
		return nil, fmt.Errorf("conversion of %T", x)
	}
	if isFloat {
		i, u = int64(f), uint64(int64(f))
		if f >= 0 {
			u = uint64(f)
		}
	}
	switch to.Kind {
	case ir.ScalarBool:
		if isFloat {
			return f != 0, nil
		}
		return u != 0, nil
	case ir.ScalarSint:
		if to.Width == 8 {
			return i, nil
		}
		return int32(i), nil
	case ir.ScalarUint:
		if to.Width == 8 {
			return u, nil
		}
		return uint32(u), nil
	}
	if to.Width == 8 {
		return f, nil
	}
	return float32(f), nil
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

// like returns f in the scalar type of v.
func like(v Value, f float64) Value {
	switch v.(type) {
	case float32:
		return float32(f)
	case int32:
		return int32(f)
	case uint32:
		return uint32(f)
	case int64:
		return int64(f)
	case uint64:
		return uint64(f)
	}
	return f
}

func map1(v Value, f func(float64) float64) (Value, error) {
	return each(v, func(x Value) (Value, error) {
		a, ok := toFloat(x)
		if !ok {
			return nil, fmt.Errorf("math on %T", x)
		}
		return like(x, f(a)), nil
	})
}

func map2(a, b Value, f func(x, y float64) float64) (Value, error) {
	return componentwise(a, b, func(x, y Value) (Value, error) {
		p, ok1 := toFloat(x)
		q, ok2 := toFloat(y)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("math on %T and %T", x, y)
		}
		return like(x, f(p, q)), nil
	})
}

func floats(v Value) ([]float64, error) {
	c, ok := v.(Composite)
	if !ok {
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("math on %T", v)
		}
		return []float64{f}, nil
	}
	out := make([]float64, len(c))
	for i := range c {
		f, ok := toFloat(c[i])
		if !ok {
			return nil, fmt.Errorf("math on %T", c[i])
		}
		out[i] = f
	}
	return out, nil
}

func length(v Value) (float64, error) {
	fs, err := floats(v)
	if err != nil {
		return 0, err
	}
	var s float64
	for _, f := range fs {
		s += f * f
	}
	return math.Sqrt(s), nil
}

func first(v Value) Value {
	if c, ok := v.(Composite); ok && len(c) > 0 {
		return first(c[0])
	}
	return v
}

var unaryMath = map[ir.MathFunction]func(float64) float64{
	ir.MathCos:   math.Cos,
	ir.MathCosh:  math.Cosh,
	ir.MathSin:   math.Sin,
	ir.MathSinh:  math.Sinh,
	ir.MathTan:   math.Tan,
	ir.MathTanh:  math.Tanh,
	ir.MathAcos:  math.Acos,
	ir.MathAsin:  math.Asin,
	ir.MathAtan:  math.Atan,
	ir.MathAsinh: math.Asinh,
	ir.MathAcosh: math.Acosh,
	ir.MathAtanh: math.Atanh,
	ir.MathCeil:  math.Ceil,
	ir.MathFloor: math.Floor,
	ir.MathRound: math.RoundToEven,
	ir.MathTrunc: math.Trunc,
	ir.MathExp:   math.Exp,
	ir.MathExp2:  math.Exp2,
	ir.MathLog:   math.Log,
	ir.MathLog2:  math.Log2,
	ir.MathSqrt:  math.Sqrt,
	ir.MathAbs:   math.Abs,
	ir.MathFract: func(x float64) float64 { return x - math.Floor(x) },
	ir.MathInverseSqrt: func(x float64) float64 {
		return 1 / math.Sqrt(x)
	},
	ir.MathRadians: func(x float64) float64 { return x * math.Pi / 180 },
	ir.MathDegrees: func(x float64) float64 { return x * 180 / math.Pi },
	ir.MathSign: func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	},
	ir.MathSaturate: func(x float64) float64 { return math.Min(math.Max(x, 0), 1) },
}

var binaryMath = map[ir.MathFunction]func(x, y float64) float64{
	ir.MathMin:   math.Min,
	ir.MathMax:   math.Max,
	ir.MathAtan2: math.Atan2,
	ir.MathPow:   math.Pow,
	ir.MathStep: func(edge, x float64) float64 {
		if x < edge {
			return 0
		}
		return 1
	},
}

func mathFunc(fun ir.MathFunction, args []Value) (Value, error) {
	if f, ok := unaryMath[fun]; ok {
		if fun == ir.MathAbs {
			if i, ok := args[0].(int32); ok {
				if i < 0 {
					return -i, nil
				}
				return i, nil
			}
		}
		return map1(args[0], f)
	}
	if f, ok := binaryMath[fun]; ok {
		if len(args) < 2 {
			return nil, fmt.Errorf("math function %d takes 2 arguments", fun)
		}
		return map2(args[0], args[1], f)
	}
	need := map[ir.MathFunction]int{
		ir.MathClamp: 3, ir.MathMix: 3, ir.MathSmoothStep: 3,
		ir.MathDot: 2, ir.MathCross: 2, ir.MathDistance: 2, ir.MathOuter: 2,
	}
	if n, ok := need[fun]; ok && len(args) < n {
		return nil, fmt.Errorf("math function %d takes %d arguments", fun, n)
	}
	switch fun {
	case ir.MathClamp:
		lo, err := map2(args[0], args[1], math.Max)
		if err != nil {
			return nil, err
		}
		return map2(lo, args[2], math.Min)
	case ir.MathMix:
		// x + (y - x) * a
		d, err := binary(ir.BinarySubtract, args[1], args[0])
		if err != nil {
			return nil, err
		}
		if d, err = binary(ir.BinaryMultiply, d, args[2]); err != nil {
			return nil, err
		}
		return binary(ir.BinaryAdd, args[0], d)
	case ir.MathSmoothStep:
		e0, e1 := args[0], args[1]
		return each(args[2], func(x Value) (Value, error) {
			p, _ := toFloat(x)
			a, _ := toFloat(first(e0))
			b, _ := toFloat(first(e1))
			t := math.Min(math.Max((p-a)/(b-a), 0), 1)
			return like(x, t*t*(3-2*t)), nil
		})
	case ir.MathDot:
		a, ok1 := args[0].(Composite)
		b, ok2 := args[1].(Composite)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("dot of %T and %T", args[0], args[1])
		}
		return dot(a, b)
	case ir.MathCross:
		a, err := floats(args[0])
		if err != nil {
			return nil, err
		}
		b, err := floats(args[1])
		if err != nil {
			return nil, err
		}
		if len(a) != 3 || len(b) != 3 {
			return nil, fmt.Errorf("cross of %d and %d components", len(a), len(b))
		}
		proto := first(args[0])
		return Composite{
			like(proto, a[1]*b[2]-a[2]*b[1]),
			like(proto, a[2]*b[0]-a[0]*b[2]),
			like(proto, a[0]*b[1]-a[1]*b[0]),
		}, nil
	case ir.MathLength:
		l, err := length(args[0])
		if err != nil {
			return nil, err
		}
		return like(first(args[0]), l), nil
	case ir.MathDistance:
		d, err := binary(ir.BinarySubtract, args[0], args[1])
		if err != nil {
			return nil, err
		}
		l, err := length(d)
		if err != nil {
			return nil, err
		}
		return like(first(args[0]), l), nil
	case ir.MathNormalize:
		l, err := length(args[0])
		if err != nil {
			return nil, err
		}
		return map1(args[0], func(x float64) float64 { return x / l })
	case ir.MathOuter:
		a, ok1 := args[0].(Composite)
		b, ok2 := args[1].(Composite)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("outer product of %T and %T", args[0], args[1])
		}
		out := make(Composite, len(b))
		for c := range b {
			col, err := binary(ir.BinaryMultiply, clone(a), b[c])
			if err != nil {
				return nil, err
			}
			out[c] = col
		}
		return out, nil
	case ir.MathTranspose:
		m, ok := args[0].(Composite)
		if !ok || !isMatrix(m) {
			return nil, fmt.Errorf("transpose of %T", args[0])
		}
		rows := len(m[0].(Composite))
		out := make(Composite, rows)
		for r := range rows {
			col := make(Composite, len(m))
			for c := range m {
				col[c] = m[c].(Composite)[r]
			}
			out[r] = col
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w math function %d", ErrUnsupported, fun)
}

func relational(fun ir.RelationalFunction, v Value) (Value, error) {
	switch fun {
	case ir.RelationalAll, ir.RelationalAny:
		c, ok := v.(Composite)
		if !ok {
			c = Composite{v}
		}
		want := fun == ir.RelationalAny
		for _, x := range c {
			b, ok := x.(bool)
			if !ok {
				return nil, fmt.Errorf("all/any of %T", x)
			}
			if b == want {
				return want, nil
			}
		}
		return !want, nil
	case ir.RelationalIsNan, ir.RelationalIsInf:
		return each(v, func(x Value) (Value, error) {
			f, ok := toFloat(x)
			if !ok {
				return nil, fmt.Errorf("isnan/isinf of %T", x)
			}
			if fun == ir.RelationalIsNan {
				return math.IsNaN(f), nil
			}
			return math.IsInf(f, 0), nil
		})
	}
	return nil, fmt.Errorf("%w relational function %d", ErrUnsupported, fun)
}

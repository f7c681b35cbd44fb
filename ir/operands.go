// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import "strconv"

// Operand is one expression referenced by an expression or a statement.
type Operand struct {
	Role   string
	Handle ExpressionHandle
}

type operands []Operand

func (o *operands) add(role string, h ExpressionHandle) {
	*o = append(*o, Operand{Role: role, Handle: h})
}

func (o *operands) opt(role string, h *ExpressionHandle) {
	if h != nil {
		o.add(role, *h)
	}
}

// ExpressionOperands lists the expressions k reads, in evaluation order.
func ExpressionOperands(k ExpressionKind) []Operand {
	var o operands
	switch k := k.(type) {
	case ExprCompose:
		for i, c := range k.Components {
			o.add("component "+strconv.Itoa(i), c)
		}
	case ExprAccess:
		o.add("base", k.Base)
		o.add("index", k.Index)
	case ExprAccessIndex:
		o.add("base", k.Base)
	case ExprSplat:
		o.add("value", k.Value)
	case ExprSwizzle:
		o.add("vector", k.Vector)
	case ExprLoad:
		o.add("pointer", k.Pointer)
	case ExprImageSample:
		o.add("image", k.Image)
		o.add("coordinate", k.Coordinate)
		o.opt("offset", k.Offset)
		switch l := k.Level.(type) {
		case SampleLevelExact:
			o.add("level", l.Level)
		case SampleLevelBias:
			o.add("bias", l.Bias)
		case SampleLevelGradient:
			o.add("gradient x", l.X)
			o.add("gradient y", l.Y)
		}
		o.opt("depth ref", k.DepthRef)
	case ExprImageLoad:
		o.add("image", k.Image)
		o.add("coordinate", k.Coordinate)
		o.opt("sample", k.Sample)
		o.opt("level", k.Level)
		o.opt("offset", k.Offset)
	case ExprImageQuery:
		o.add("image", k.Image)
		switch q := k.Query.(type) {
		case ImageQuerySize:
			o.opt("level", q.Level)
		case ImageQueryLod:
			o.add("coordinate", q.Coordinate)
		}
	case ExprUnary:
		o.add("operand", k.Expr)
	case ExprBinary:
		o.add("left", k.Left)
		o.add("right", k.Right)
	case ExprSelect:
		o.add("condition", k.Condition)
		o.add("accept", k.Accept)
		o.add("reject", k.Reject)
	case ExprDerivative:
		o.add("operand", k.Expr)
	case ExprRelational:
		o.add("argument", k.Argument)
	case ExprMath:
		o.add("arg", k.Arg)
		o.opt("arg1", k.Arg1)
		o.opt("arg2", k.Arg2)
		o.opt("arg3", k.Arg3)
	case ExprAs:
		o.add("operand", k.Expr)
	}
	return o
}

// StatementOperands lists the expressions s reads directly. Nested blocks
// are not visited.
func StatementOperands(s StatementKind) []Operand {
	var o operands
	switch s := s.(type) {
	case StmtIf:
		o.add("condition", s.Condition)
	case StmtSwitch:
		o.add("selector", s.Selector)
	case StmtLoop:
		o.opt("break-if", s.BreakIf)
	case StmtReturn:
		o.opt("return value", s.Value)
	case StmtStore:
		o.add("pointer", s.Pointer)
		o.add("value", s.Value)
	case StmtCall:
		for i, a := range s.Arguments {
			o.add("argument "+strconv.Itoa(i), a)
		}
		o.opt("result", s.Result)
	}
	return o
}

// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package interp executes an ir.Module directly.
//
// It exists to check translations: a test runs the translated AST and
// compares the results with what the SSA program computes. Values are
// plain Go values:
//
//	bool, int32, uint32, int64, uint64, float32, float64   scalars
//	Composite                                              vectors, matrices (columns), arrays, structs
//
// Texture operations are not supported.
package interp

import (
	"errors"
	"fmt"

	"github.com/gogpu/glass/ir"
)

// Value is a runtime value.
type Value any

// Composite holds the components of a vector, the columns of a matrix,
// the elements of an array or the members of a struct.
type Composite []Value

var (
	// ErrStepLimit is returned when a run executes more loop iterations
	// than Machine.MaxSteps.
	ErrStepLimit = errors.New("interp: step limit exceeded")

	// ErrUnsupported is returned for expressions the interpreter cannot
	// evaluate.
	ErrUnsupported = errors.New("interp: unsupported")
)

// Machine holds the global state of one module.
type Machine struct {
	Module *ir.Module

	// MaxSteps bounds the number of loop iterations of a run.
	MaxSteps int

	// Killed is set when a fragment discard executed.
	Killed bool

	// Primitives counts EmitVertex and EndPrimitive statements executed.
	Primitives [2]int

	globals []Value
	steps   int
}

// New returns a machine with every global initialized.
func New(m *ir.Module) (*Machine, error) {
	mc := &Machine{Module: m, MaxSteps: 1 << 20}
	mc.globals = make([]Value, len(m.GlobalVariables))
	for i, gv := range m.GlobalVariables {
		var err error
		if gv.Init != nil {
			mc.globals[i], err = mc.constant(*gv.Init)
		} else {
			mc.globals[i], err = mc.zero(gv.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("interp: global %s: %w", gv.Name, err)
		}
	}
	return mc, nil
}

func (mc *Machine) globalIndex(name string) (int, error) {
	for i, gv := range mc.Module.GlobalVariables {
		if gv.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("interp: no global %q", name)
}

// SetGlobal assigns a global by name.
func (mc *Machine) SetGlobal(name string, v Value) error {
	i, err := mc.globalIndex(name)
	if err != nil {
		return err
	}
	mc.globals[i] = clone(v)
	return nil
}

// Global returns the current value of a global.
func (mc *Machine) Global(name string) (Value, error) {
	i, err := mc.globalIndex(name)
	if err != nil {
		return nil, err
	}
	return clone(mc.globals[i]), nil
}

// Run calls the named function.
func (mc *Machine) Run(name string, args ...Value) (Value, error) {
	for i := range mc.Module.Functions {
		if mc.Module.Functions[i].Name == name {
			return mc.Call(ir.FunctionHandle(i), args...)
		}
	}
	return nil, fmt.Errorf("interp: no function %q", name)
}

// Call executes a function and returns its result, or nil for void
// functions.
func (mc *Machine) Call(h ir.FunctionHandle, args ...Value) (Value, error) {
	if int(h) >= len(mc.Module.Functions) {
		return nil, fmt.Errorf("interp: function %d out of range", h)
	}
	fn := &mc.Module.Functions[h]
	if len(args) != len(fn.Arguments) {
		return nil, fmt.Errorf("interp: %s takes %d arguments, got %d", fn.Name, len(fn.Arguments), len(args))
	}
	fr := &frame{
		mc:      mc,
		fn:      fn,
		args:    args,
		locals:  make([]Value, len(fn.LocalVars)),
		values:  make(map[ir.ExpressionHandle]Value),
		results: make(map[ir.ExpressionHandle]Value),
	}
	for i, lv := range fn.LocalVars {
		z, err := mc.zero(lv.Type)
		if err != nil {
			return nil, fmt.Errorf("interp: %s: local %s: %w", fn.Name, lv.Name, err)
		}
		fr.locals[i] = z
		if lv.Init != nil {
			v, err := fr.eval(*lv.Init)
			if err != nil {
				return nil, err
			}
			fr.locals[i] = clone(v)
		}
	}
	flow, err := fr.block(fn.Body)
	if err != nil {
		return nil, fmt.Errorf("interp: %s: %w", fn.Name, err)
	}
	if flow == flowReturn {
		return fr.ret, nil
	}
	return nil, nil
}

type flow uint8

const (
	flowNext flow = iota
	flowBreak
	flowContinue
	flowReturn
	flowKill
)

// frame is one function activation.
type frame struct {
	mc      *Machine
	fn      *ir.Function
	args    []Value
	locals  []Value
	values  map[ir.ExpressionHandle]Value // evaluated by Emit
	results map[ir.ExpressionHandle]Value // call results
	ret     Value
}

func (fr *frame) block(b ir.Block) (flow, error) {
	for i := range b {
		f, err := fr.statement(&b[i])
		if err != nil || f != flowNext {
			return f, err
		}
	}
	return flowNext, nil
}

func (fr *frame) statement(s *ir.Statement) (flow, error) {
	switch k := s.Kind.(type) {
	case ir.StmtEmit:
		for h := k.Range.Start; h < k.Range.End; h++ {
			delete(fr.values, h)
		}
		for h := k.Range.Start; h < k.Range.End; h++ {
			v, err := fr.compute(h)
			if err != nil {
				return 0, err
			}
			fr.values[h] = v
		}
	case ir.StmtBlock:
		return fr.block(k.Block)
	case ir.StmtIf:
		c, err := fr.eval(k.Condition)
		if err != nil {
			return 0, err
		}
		b, ok := c.(bool)
		if !ok {
			return 0, fmt.Errorf("if condition is %T", c)
		}
		if b {
			return fr.block(k.Accept)
		}
		return fr.block(k.Reject)
	case ir.StmtSwitch:
		return fr.switchStmt(k)
	case ir.StmtLoop:
		return fr.loop(k)
	case ir.StmtBreak:
		return flowBreak, nil
	case ir.StmtContinue:
		return flowContinue, nil
	case ir.StmtReturn:
		if k.Value != nil {
			v, err := fr.eval(*k.Value)
			if err != nil {
				return 0, err
			}
			fr.ret = clone(v)
		}
		return flowReturn, nil
	case ir.StmtKill:
		fr.mc.Killed = true
		return flowKill, nil
	case ir.StmtStore:
		p, err := fr.eval(k.Pointer)
		if err != nil {
			return 0, err
		}
		v, err := fr.eval(k.Value)
		if err != nil {
			return 0, err
		}
		return flowNext, fr.store(p, v)
	case ir.StmtCall:
		args := make([]Value, len(k.Arguments))
		for i, a := range k.Arguments {
			v, err := fr.eval(a)
			if err != nil {
				return 0, err
			}
			args[i] = clone(v)
		}
		r, err := fr.mc.Call(k.Function, args...)
		if err != nil {
			return 0, err
		}
		if fr.mc.Killed {
			return flowKill, nil
		}
		if k.Result != nil {
			fr.results[*k.Result] = r
		}
	case ir.StmtPrimitive:
		if int(k.Op) < len(fr.mc.Primitives) {
			fr.mc.Primitives[k.Op]++
		}
	default:
		return 0, fmt.Errorf("%w statement %T", ErrUnsupported, k)
	}
	return flowNext, nil
}

func (fr *frame) switchStmt(k ir.StmtSwitch) (flow, error) {
	sel, err := fr.eval(k.Selector)
	if err != nil {
		return 0, err
	}
	var want int64
	switch s := sel.(type) {
	case int32:
		want = int64(s)
	case uint32:
		want = int64(s)
	default:
		return 0, fmt.Errorf("switch selector is %T", sel)
	}
	start := -1
	for i, c := range k.Cases {
		switch v := c.Value.(type) {
		case ir.SwitchValueI32:
			if int64(v) == want {
				start = i
			}
		case ir.SwitchValueU32:
			if int64(v) == want {
				start = i
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		for i, c := range k.Cases {
			if _, ok := c.Value.(ir.SwitchValueDefault); ok {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return flowNext, nil
	}
	for i := start; i < len(k.Cases); i++ {
		f, err := fr.block(k.Cases[i].Body)
		if err != nil {
			return 0, err
		}
		switch f {
		case flowBreak:
			return flowNext, nil
		case flowNext:
			if k.Cases[i].FallThrough {
				continue
			}
			return flowNext, nil
		default:
			return f, nil
		}
	}
	return flowNext, nil
}

func (fr *frame) loop(k ir.StmtLoop) (flow, error) {
	for {
		fr.mc.steps++
		if fr.mc.MaxSteps > 0 && fr.mc.steps > fr.mc.MaxSteps {
			return 0, ErrStepLimit
		}
		f, err := fr.block(k.Body)
		if err != nil {
			return 0, err
		}
		switch f {
		case flowBreak:
			return flowNext, nil
		case flowReturn, flowKill:
			return f, nil
		}
		f, err = fr.block(k.Continuing)
		if err != nil {
			return 0, err
		}
		if f == flowReturn || f == flowKill {
			return f, nil
		}
		if k.BreakIf != nil {
			c, err := fr.eval(*k.BreakIf)
			if err != nil {
				return 0, err
			}
			if b, _ := c.(bool); b {
				return flowNext, nil
			}
		}
	}
}

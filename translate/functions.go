// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/gogpu/glass/ir"
)

// StartFunctionDeclaration opens the signature of the named function.
func (t *Translator) StartFunctionDeclaration(name string, ret types.Type) error {
	if err := t.ready("StartFunctionDeclaration"); err != nil {
		return err
	}
	if t.fn != nil || t.decl != nil {
		return t.poison(t.controlFlow("StartFunctionDeclaration", "function %s still open", t.funcName()))
	}
	f := t.lookupFunc(name)
	if f == nil {
		return t.poison(t.controlFlow("StartFunctionDeclaration", "no function %s with a body", name))
	}
	t.decl = f
	fn := &t.module.Functions[t.functions[f]]
	fn.Arguments = fn.Arguments[:0]
	fn.Result = nil
	if ret != nil && !isVoid(ret) {
		th, err := t.translateType(ret, nil, true)
		if err != nil {
			return t.settle("function", err)
		}
		fn.Result = &ir.FunctionResult{Type: th}
	}
	return nil
}

// AddArgument appends a parameter to the open declaration.
func (t *Translator) AddArgument(p *llir.Param, last bool) error {
	if err := t.ready("AddArgument"); err != nil {
		return err
	}
	if t.decl == nil {
		return t.poison(t.controlFlow("AddArgument", "no declaration open"))
	}
	fn := &t.module.Functions[t.functions[t.decl]]
	th, err := t.translateType(p.Typ, nil, true)
	if err != nil {
		return t.settle("argument", err)
	}
	name := valueName(p)
	if name == "" {
		name = fmt.Sprintf("arg%d", len(fn.Arguments))
	}
	fn.Arguments = append(fn.Arguments, ir.FunctionArgument{Name: name, Type: th})
	if last && len(fn.Arguments) != len(t.decl.Params) {
		return t.settle("argument", t.internal("declared %d of %d parameters", len(fn.Arguments), len(t.decl.Params)))
	}
	return nil
}

// EndFunctionDeclaration closes the signature.
func (t *Translator) EndFunctionDeclaration() error {
	if err := t.ready("EndFunctionDeclaration"); err != nil {
		return err
	}
	if t.decl == nil {
		return t.poison(t.controlFlow("EndFunctionDeclaration", "no declaration open"))
	}
	t.pending = t.decl
	t.decl = nil
	return nil
}

// StartFunctionBody opens the body of the function just declared.
func (t *Translator) StartFunctionBody() error {
	if err := t.ready("StartFunctionBody"); err != nil {
		return err
	}
	if t.pending == nil || t.fn != nil {
		return t.poison(t.controlFlow("StartFunctionBody", "no declaration to define"))
	}
	f := t.pending
	t.pending = nil
	fs := t.newFuncState(f, t.functions[f])
	t.fn = fs
	fs.unsigned = t.inferSignedness(f)
	fs.ir.LocalVars = fs.ir.LocalVars[:0]
	fs.ir.Expressions = fs.ir.Expressions[:0]
	fs.ir.ExpressionTypes = fs.ir.ExpressionTypes[:0]
	fs.ir.Body = fs.ir.Body[:0]

	for i, p := range f.Params {
		id, ok := t.refs.id(p)
		if !ok {
			continue
		}
		fs.values[id] = node{kind: nodeValue, expr: t.addExpression(ir.ExprFunctionArgument{Index: uint32(i)})}
	}
	if fs.entry {
		for _, init := range t.prologue {
			ptr := t.globalRef(init.global)
			t.push(ir.StmtStore{Pointer: ptr, Value: t.constRef(init.value)})
		}
	}
	t.log.Debug("function body started", "function", f.Name(), "entry", fs.entry)
	return nil
}

// EndFunctionBody closes the function body. It returns the internal
// error that aborted the function, if any.
func (t *Translator) EndFunctionBody() error {
	if err := t.readyBody("EndFunctionBody"); err != nil {
		return err
	}
	fs := t.fn
	if fs.aborted != nil {
		// Constructs opened before the abort were never closed; only
		// this function is lost.
		fs.frames = nil
		fs.blocks = fs.blocks[:1]
		t.endBody(fs)
		t.errs = append(t.errs, fs.aborted)
		return fs.aborted
	}
	if len(fs.frames) > 0 {
		return t.poison(t.controlFlow("EndFunctionBody", "%d constructs still open", len(fs.frames)))
	}
	t.flushEmit()
	t.endBody(fs)
	return nil
}

func (t *Translator) endBody(fs *funcState) {
	fs.stats.Expressions = len(fs.ir.Expressions)
	fs.stats.Locals = len(fs.ir.LocalVars)
	t.stats = append(t.stats, fs.stats)
	t.fn = nil
}

func (t *Translator) lookupFunc(name string) *llir.Func {
	for f := range t.functions {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

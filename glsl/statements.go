// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glsl

import (
	"fmt"
	"strings"

	"github.com/gogpu/glass/ir"
)

// writeBlock writes a block of statements.
func (w *Writer) writeBlock(block ir.Block) error {
	for _, stmt := range block {
		if err := w.writeStatement(stmt.Kind); err != nil {
			return err
		}
	}
	return nil
}

// writeStatement writes a statement based on its kind.
func (w *Writer) writeStatement(kind ir.StatementKind) error {
	switch k := kind.(type) {
	case ir.StmtEmit:
		// Emitted expressions are printed where they are used.
		return nil

	case ir.StmtBlock:
		w.writeLine("{")
		w.pushIndent()
		if err := w.writeBlock(k.Block); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
		return nil

	case ir.StmtIf:
		return w.writeIf(k)

	case ir.StmtSwitch:
		return w.writeSwitch(k)

	case ir.StmtLoop:
		return w.writeLoop(k)

	case ir.StmtBreak:
		w.writeLine("break;")
		return nil

	case ir.StmtContinue:
		w.writeLine("continue;")
		return nil

	case ir.StmtReturn:
		return w.writeReturn(k)

	case ir.StmtKill:
		w.writeLine("discard;")
		return nil

	case ir.StmtStore:
		return w.writeStore(k)

	case ir.StmtCall:
		return w.writeCall(k)

	case ir.StmtPrimitive:
		return w.writePrimitive(k)

	default:
		return fmt.Errorf("unsupported statement kind: %T", kind)
	}
}

// writeIf writes an if statement.
func (w *Writer) writeIf(ifStmt ir.StmtIf) error {
	condition, err := w.writeExpression(ifStmt.Condition)
	if err != nil {
		return err
	}

	if len(ifStmt.Accept) == 0 && len(ifStmt.Reject) > 0 {
		w.writeLine("if (!(%s)) {", condition)
		w.pushIndent()
		if err := w.writeBlock(ifStmt.Reject); err != nil {
			return err
		}
		w.popIndent()
		w.writeLine("}")
		return nil
	}

	w.writeLine("if (%s) {", condition)
	w.pushIndent()
	if err := w.writeBlock(ifStmt.Accept); err != nil {
		return err
	}
	w.popIndent()

	if len(ifStmt.Reject) > 0 {
		w.writeLine("} else {")
		w.pushIndent()
		if err := w.writeBlock(ifStmt.Reject); err != nil {
			return err
		}
		w.popIndent()
	}

	w.writeLine("}")
	return nil
}

// writeSwitch writes a switch statement.
func (w *Writer) writeSwitch(switchStmt ir.StmtSwitch) error {
	selector, err := w.writeExpression(switchStmt.Selector)
	if err != nil {
		return err
	}

	w.writeLine("switch (%s) {", selector)
	w.pushIndent()

	for _, switchCase := range switchStmt.Cases {
		switch v := switchCase.Value.(type) {
		case ir.SwitchValueI32:
			w.writeLine("case %d:", int32(v))
		case ir.SwitchValueU32:
			w.writeLine("case %du:", uint32(v))
		case ir.SwitchValueDefault:
			w.writeLine("default:")
		}

		if switchCase.FallThrough && len(switchCase.Body) == 0 {
			continue
		}
		w.pushIndent()
		if err := w.writeBlock(switchCase.Body); err != nil {
			return err
		}
		if !switchCase.FallThrough && !endsInJump(switchCase.Body) {
			w.writeLine("break;")
		}
		w.popIndent()
	}

	w.popIndent()
	w.writeLine("}")
	return nil
}

func endsInJump(b ir.Block) bool {
	if len(b) == 0 {
		return false
	}
	switch b[len(b)-1].Kind.(type) {
	case ir.StmtBreak, ir.StmtContinue, ir.StmtReturn, ir.StmtKill:
		return true
	}
	return false
}

// writeLoop writes a loop statement. Recognized loops print their exit
// test in the loop header instead of as the first statements of the body.
func (w *Writer) writeLoop(loop ir.StmtLoop) error {
	if w.options.WriterFlags&WriterFlagDebugInfo != 0 {
		shape := ir.LoopGeneral
		if loop.Header != nil {
			shape = loop.Header.Shape
		}
		w.writeLine("// %s loop", shape)
	}

	if h := loop.Header; h != nil && h.Shape != ir.LoopGeneral && loop.BreakIf == nil {
		switch h.Shape {
		case ir.LoopCounting, ir.LoopInductive:
			if step, ok := w.forStep(loop.Continuing); ok {
				test, err := w.writeExpression(h.Test)
				if err != nil {
					return err
				}
				w.writeLine("for (; %s; %s) {", test, step)
				return w.writeLoopBody(loop.Body[h.Prefix:])
			}
		case ir.LoopConditional:
			if len(loop.Continuing) == 0 {
				test, err := w.writeExpression(h.Test)
				if err != nil {
					return err
				}
				w.writeLine("while (%s) {", test)
				return w.writeLoopBody(loop.Body[h.Prefix:])
			}
		}
	}

	if len(loop.Continuing) > 0 || loop.BreakIf != nil {
		return w.writeGuardedLoop(loop)
	}

	w.writeLine("while (true) {")
	return w.writeLoopBody(loop.Body)
}

func (w *Writer) writeLoopBody(body ir.Block) error {
	w.pushIndent()
	if err := w.writeBlock(body); err != nil {
		return err
	}
	w.popIndent()
	w.writeLine("}")
	return nil
}

// forStep returns the increment clause of a for loop when the continuing
// block is a single store.
func (w *Writer) forStep(continuing ir.Block) (string, bool) {
	var store *ir.StmtStore
	for _, stmt := range continuing {
		switch k := stmt.Kind.(type) {
		case ir.StmtEmit:
		case ir.StmtStore:
			if store != nil {
				return "", false
			}
			store = &k
		default:
			return "", false
		}
	}
	if store == nil {
		return "", false
	}
	ptr, err := w.writeExpression(store.Pointer)
	if err != nil {
		return "", false
	}
	value, err := w.writeExpression(store.Value)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s = %s", ptr, value), true
}

// writeGuardedLoop writes a loop whose continuing block runs before every
// iteration but the first, so that continue statements reach it.
func (w *Writer) writeGuardedLoop(loop ir.StmtLoop) error {
	guard := w.namer.call("loop_init")
	w.writeLine("bool %s = true;", guard)
	w.writeLine("while (true) {")
	w.pushIndent()
	w.writeLine("if (!%s) {", guard)
	w.pushIndent()
	if err := w.writeBlock(loop.Continuing); err != nil {
		return err
	}
	if loop.BreakIf != nil {
		condition, err := w.writeExpression(*loop.BreakIf)
		if err != nil {
			return err
		}
		w.writeLine("if (%s) {", condition)
		w.pushIndent()
		w.writeLine("break;")
		w.popIndent()
		w.writeLine("}")
	}
	w.popIndent()
	w.writeLine("}")
	w.writeLine("%s = false;", guard)
	return w.writeLoopBody(loop.Body)
}

// writeReturn writes a return statement.
func (w *Writer) writeReturn(ret ir.StmtReturn) error {
	if ret.Value == nil || w.isEntry(w.currentFuncHandle) {
		w.writeLine("return;")
		return nil
	}
	value, err := w.writeExpression(*ret.Value)
	if err != nil {
		return err
	}
	w.writeLine("return %s;", value)
	return nil
}

// writeStore writes a store statement.
func (w *Writer) writeStore(store ir.StmtStore) error {
	pointer, err := w.writeExpression(store.Pointer)
	if err != nil {
		return err
	}
	value, err := w.writeExpression(store.Value)
	if err != nil {
		return err
	}
	w.writeLine("%s = %s;", pointer, value)
	return nil
}

// writeCall writes a function call statement, binding the result to a
// fresh temporary.
func (w *Writer) writeCall(call ir.StmtCall) error {
	funcName := w.names[nameKey{kind: nameKeyFunction, handle1: uint32(call.Function)}]

	args, err := w.writeArgs(call.Arguments...)
	if err != nil {
		return err
	}
	callExpr := fmt.Sprintf("%s(%s)", funcName, strings.Join(args, ", "))

	if call.Result == nil {
		w.writeLine("%s;", callExpr)
		return nil
	}

	if int(call.Function) >= len(w.module.Functions) || w.module.Functions[call.Function].Result == nil {
		return fmt.Errorf("call to %s binds a result but the function returns void", funcName)
	}
	resultType := w.module.Functions[call.Function].Result.Type
	tempName := w.namer.call(fmt.Sprintf("_fc%d", *call.Result))
	w.namedExpressions[*call.Result] = tempName
	w.writeLine("%s %s%s = %s;", w.getBaseTypeName(resultType), tempName, w.getArraySuffix(resultType), callExpr)
	return nil
}

// writePrimitive writes a geometry shader vertex emission or primitive end.
func (w *Writer) writePrimitive(p ir.StmtPrimitive) error {
	if !w.options.LangVersion.SupportsGeometry() {
		if w.options.LangVersion.ES {
			w.raise(VersionES320)
		} else {
			w.raise(Version150)
		}
	}
	switch p.Op {
	case ir.PrimitiveEmitVertex:
		w.writeLine("EmitVertex();")
	case ir.PrimitiveEndPrimitive:
		w.writeLine("EndPrimitive();")
	default:
		return fmt.Errorf("unsupported primitive operation: %d", p.Op)
	}
	return nil
}

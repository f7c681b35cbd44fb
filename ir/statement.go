// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

// Statement represents a statement in the IR.
// Statements have side effects and structured control flow, but do not produce values.
// The function body is represented as a tree of statements, with references to expressions.
type Statement struct {
	Kind StatementKind
}

// StatementKind represents the different kinds of statements.
type StatementKind interface {
	statementKind()
}

// Block represents a sequence of statements executed in order.
type Block []Statement

// Range represents a range of expression handles for Emit statements.
type Range struct {
	Start ExpressionHandle
	End   ExpressionHandle // Exclusive
}

// StmtEmit emits a range of expressions, making them visible to all statements that follow.
// This is used to mark when expressions should be evaluated in SSA form.
// See module-level IR documentation for details on expression evaluation timing.
type StmtEmit struct {
	Range Range
}

func (StmtEmit) statementKind() {}

// StmtBlock contains a sequence of statements to be executed in order.
type StmtBlock struct {
	Block Block
}

func (StmtBlock) statementKind() {}

// StmtIf conditionally executes one of two blocks based on the condition value.
// The IR has no phi instructions: values merged after an If live in a
// LocalVariable written on each path.
type StmtIf struct {
	Condition ExpressionHandle // Must be a bool expression
	Accept    Block
	Reject    Block
}

func (StmtIf) statementKind() {}

// StmtSwitch conditionally executes one of multiple blocks based on the selector value.
// Each case must have a distinct value, and exactly one must be Default.
// The Default may appear at any position and covers all values not explicitly listed.
type StmtSwitch struct {
	Selector ExpressionHandle
	Cases    []SwitchCase
}

func (StmtSwitch) statementKind() {}

// SwitchCase represents a case in a switch statement.
type SwitchCase struct {
	Value       SwitchValue
	Body        Block
	FallThrough bool // If true, execution continues to next case
}

// SwitchValue represents the value that triggers a switch case.
type SwitchValue interface {
	switchValue()
}

// SwitchValueI32 represents a signed 32-bit integer switch value.
type SwitchValueI32 int32

func (SwitchValueI32) switchValue() {}

// SwitchValueU32 represents an unsigned 32-bit integer switch value.
type SwitchValueU32 uint32

func (SwitchValueU32) switchValue() {}

// SwitchValueDefault represents the default case in a switch statement.
type SwitchValueDefault struct{}

func (SwitchValueDefault) switchValue() {}

// StmtLoop executes a block repeatedly.
// Each iteration executes the Body block, followed by the Continuing block.
// The Continuing block is used for loop increment expressions (like C for-loop's third expression).
// Break, Return, or Kill statements exit the loop.
// Continue statements in Body jump to the Continuing block.
type StmtLoop struct {
	Body       Block
	Continuing Block
	BreakIf    *ExpressionHandle // Optional break-if expression evaluated after continuing

	// Header describes the shape the loop was recognized as. It is nil for
	// loops that are only ever exited by explicit breaks.
	Header *LoopHeader
}

// LoopShape classifies a reconstructed loop.
type LoopShape uint8

const (
	LoopGeneral     LoopShape = iota // while (true) with explicit exits
	LoopConditional                  // exit test at the top
	LoopCounting                     // induction variable against a constant bound
	LoopInductive                    // induction variable against a runtime count
)

var loopShapeNames = [...]string{"general", "conditional", "counting", "inductive"}

func (s LoopShape) String() string {
	if int(s) < len(loopShapeNames) {
		return loopShapeNames[s]
	}
	return "unknown"
}

// LoopHeader records the recognized shape of a loop.
//
// For every shape but LoopGeneral, the first Prefix statements of the body
// are the synthesized exit test (an Emit followed by "if (!test) break;").
// A writer that prints the test in the loop header skips them.
type LoopHeader struct {
	Shape     LoopShape
	Test      ExpressionHandle
	Prefix    int
	Induction *uint32 // local variable index
	Bound     *ExpressionHandle
	Step      *ExpressionHandle
}

func (StmtLoop) statementKind() {}

// StmtBreak exits the innermost enclosing Loop or Switch statement.
// May not break out of a Loop from within its continuing block.
type StmtBreak struct{}

func (StmtBreak) statementKind() {}

// StmtContinue skips to the continuing block of the innermost enclosing Loop.
// May only appear within the body block of a Loop (not in the continuing block).
type StmtContinue struct{}

func (StmtContinue) statementKind() {}

// StmtReturn returns from the function, possibly with a value.
// Forbidden within the continuing block of a Loop statement.
type StmtReturn struct {
	Value *ExpressionHandle
}

func (StmtReturn) statementKind() {}

// StmtKill aborts the current shader execution (fragment shader discard).
// Forbidden within the continuing block of a Loop statement.
type StmtKill struct{}

func (StmtKill) statementKind() {}

// StmtStore stores a value at an address through a pointer.
// For types behind pointer<T>, the value is T.
// This acts as a barrier for operations on the underlying variable.
type StmtStore struct {
	Pointer ExpressionHandle
	Value   ExpressionHandle
}

func (StmtStore) statementKind() {}

// StmtPrimitive emits a geometry shader vertex or ends a primitive.
type StmtPrimitive struct {
	Op PrimitiveOp
}

func (StmtPrimitive) statementKind() {}

// PrimitiveOp selects the geometry shader operation.
type PrimitiveOp uint8

const (
	PrimitiveEmitVertex PrimitiveOp = iota
	PrimitiveEndPrimitive
)

// StmtCall calls a function.
// If Result is set, it must be a CallResult expression.
// The Call statement acts as a barrier for operations on the result expression.
type StmtCall struct {
	Function  FunctionHandle
	Arguments []ExpressionHandle
	Result    *ExpressionHandle
}

func (StmtCall) statementKind() {}

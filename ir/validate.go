// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"fmt"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Function   string
	Expression *ExpressionHandle
	Statement  int
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Function != "" {
		if e.Expression != nil {
			return fmt.Sprintf("in function %s, expression %d: %s", e.Function, *e.Expression, e.Message)
		}
		if e.Statement >= 0 {
			return fmt.Sprintf("in function %s, statement %d: %s", e.Function, e.Statement, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// Validator validates IR modules.
type Validator struct {
	module  *Module
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	function     *Function
	functionName string
	loopDepth    int
	switchDepth  int
	inContinuing bool
}

// Validate checks the IR module for correctness.
// Returns validation errors if any, or nil if module is valid.
func Validate(module *Module) ([]ValidationError, error) {
	if module == nil {
		return nil, fmt.Errorf("module is nil")
	}

	v := &Validator{
		module: module,
		errors: make([]ValidationError, 0),
	}

	v.ValidateModule()

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateModule validates the complete module.
func (v *Validator) ValidateModule() {
	// Validate types
	v.validateTypes()

	// Validate constants
	v.validateConstants()

	// Validate global variables
	v.validateGlobalVariables()

	// Validate functions
	v.validateFunctions()

	// Validate entry points
	v.validateEntryPoints()
}

func (v *Validator) validateTypes() {
	for i := range v.module.Types {
		v.validateType(TypeHandle(i), &v.module.Types[i])
	}
}

func validWidth(w uint8) bool {
	return w == 1 || w == 2 || w == 4 || w == 8
}

// validateType checks one type. Only direct self-reference is detected;
// the registry never creates longer cycles.
func (v *Validator) validateType(handle TypeHandle, typ *Type) {
	errf := func(format string, args ...any) {
		v.addError(fmt.Sprintf("type %d: ", handle) + fmt.Sprintf(format, args...))
	}
	if typ.Inner == nil {
		v.addError(fmt.Sprintf("type %d has nil inner type", handle))
		return
	}

	switch inner := typ.Inner.(type) {
	case ScalarType:
		if !validWidth(inner.Width) {
			errf("scalar width must be 1, 2, 4, or 8 bytes, got %d", inner.Width)
		}

	case VectorType:
		if !validSize(inner.Size) {
			errf("vector size must be 2, 3, or 4, got %d", inner.Size)
		}
		if !validWidth(inner.Scalar.Width) {
			errf("vector scalar width must be 1, 2, 4, or 8 bytes, got %d", inner.Scalar.Width)
		}

	case MatrixType:
		if !validSize(inner.Columns) || !validSize(inner.Rows) {
			errf("matrix must have 2 to 4 columns and rows, got %dx%d", inner.Columns, inner.Rows)
		}
		if inner.Scalar.Kind != ScalarFloat {
			errf("matrix scalar must be float, got %v", inner.Scalar.Kind)
		}

	case ArrayType:
		switch {
		case inner.Base == handle:
			errf("array has circular reference to itself")
		case !v.isValidTypeHandle(inner.Base):
			errf("array base type %d does not exist", inner.Base)
		}

	case StructType:
		seen := make(map[string]bool, len(inner.Members))
		for j, member := range inner.Members {
			switch {
			case member.Name == "":
				errf("struct member %d has empty name", j)
			case seen[member.Name]:
				errf("duplicate struct member name %q", member.Name)
			}
			seen[member.Name] = true

			switch {
			case member.Type == handle:
				errf("struct member %q has circular reference", member.Name)
			case !v.isValidTypeHandle(member.Type):
				errf("struct member %q type %d does not exist", member.Name, member.Type)
			}
		}

	case PointerType:
		if !v.isValidTypeHandle(inner.Base) {
			errf("pointer base type %d does not exist", inner.Base)
		}
	}
}

// validateConstants checks all constants.
func (v *Validator) validateConstants() {
	for i, c := range v.module.Constants {
		if !v.isValidTypeHandle(c.Type) {
			v.addError(fmt.Sprintf("constant %d (%s): type %d does not exist", i, c.Name, c.Type))
		}
	}
}

// validateGlobalVariables checks all global variables.
func (v *Validator) validateGlobalVariables() {
	bindings := make(map[string]bool) // Track binding uniqueness (group:binding)
	names := make(map[string]bool)

	for i, gv := range v.module.GlobalVariables {
		if gv.Name != "" {
			if names[gv.Name] {
				v.addError(fmt.Sprintf("duplicate global variable name %q", gv.Name))
			}
			names[gv.Name] = true
		}

		if !v.isValidTypeHandle(gv.Type) {
			v.addError(fmt.Sprintf("global variable %d (%s): type %d does not exist", i, gv.Name, gv.Type))
		}

		// Members hoisted out of one block share the block's binding.
		if gv.Resource != nil && (gv.Block == nil || gv.Block.Index == 0) {
			key := fmt.Sprintf("%d:%d", gv.Resource.Group, gv.Resource.Binding)
			if bindings[key] {
				v.addError(fmt.Sprintf("global variable %q: duplicate binding set=%d binding=%d",
					gv.Name, gv.Resource.Group, gv.Resource.Binding))
			}
			bindings[key] = true
		}

		switch b := gv.Binding.(type) {
		case LocationBinding:
			if gv.Space != SpaceIn && gv.Space != SpaceOut {
				v.addError(fmt.Sprintf("global variable %q: location on a %s variable", gv.Name, gv.Space))
			}
		case BuiltinBinding:
			if b.Builtin.Info().Name != gv.Name {
				v.addError(fmt.Sprintf("global variable %q: bound to builtin %s", gv.Name, b.Builtin))
			}
		}

		if gv.Init != nil {
			if !v.isValidConstantHandle(*gv.Init) {
				v.addError(fmt.Sprintf("global variable %q: init constant %d does not exist", gv.Name, *gv.Init))
			}
		}
	}
}

func (v *Validator) validateFunctions() {
	names := make(map[string]bool)
	for i := range v.module.Functions {
		fn := &v.module.Functions[i]
		if fn.Name != "" && names[fn.Name] {
			v.addError(fmt.Sprintf("duplicate function name %q", fn.Name))
		}
		names[fn.Name] = true

		v.context = validationContext{function: fn, functionName: fn.Name}
		v.validateFunction(fn)
	}
}

func (v *Validator) validateFunction(fn *Function) {
	for i, arg := range fn.Arguments {
		if !v.isValidTypeHandle(arg.Type) {
			v.addErrorInFunction(fmt.Sprintf("argument %d (%s): type %d does not exist", i, arg.Name, arg.Type))
		}
	}
	if fn.Result != nil && !v.isValidTypeHandle(fn.Result.Type) {
		v.addErrorInFunction(fmt.Sprintf("result type %d does not exist", fn.Result.Type))
	}
	for i, lv := range fn.LocalVars {
		if !v.isValidTypeHandle(lv.Type) {
			v.addErrorInFunction(fmt.Sprintf("local variable %d (%s): type %d does not exist", i, lv.Name, lv.Type))
		}
		if lv.Init != nil && !v.isValidExpressionHandle(*lv.Init) {
			v.addErrorInFunction(fmt.Sprintf("local variable %q: init expression %d does not exist", lv.Name, *lv.Init))
		}
	}
	for i := range fn.Expressions {
		v.validateExpression(ExpressionHandle(i), &fn.Expressions[i])
	}
	v.validateBlock(fn.Body)
}

// validateExpression checks the handles an expression refers to and the
// few constraints that do not depend on types.
func (v *Validator) validateExpression(handle ExpressionHandle, expr *Expression) {
	if expr.Kind == nil {
		v.addErrorInExpression(handle, "expression has nil kind")
		return
	}

	for _, op := range ExpressionOperands(expr.Kind) {
		if !v.isValidExpressionHandle(op.Handle) {
			v.addErrorInExpression(handle, fmt.Sprintf("%s expression %d does not exist", op.Role, op.Handle))
		}
	}

	fn := v.context.function
	switch kind := expr.Kind.(type) {
	case ExprConstant:
		if !v.isValidConstantHandle(kind.Constant) {
			v.addErrorInExpression(handle, fmt.Sprintf("constant %d does not exist", kind.Constant))
		}

	case ExprZeroValue:
		if !v.isValidTypeHandle(kind.Type) {
			v.addErrorInExpression(handle, fmt.Sprintf("type %d does not exist", kind.Type))
		}

	case ExprCompose:
		if !v.isValidTypeHandle(kind.Type) {
			v.addErrorInExpression(handle, fmt.Sprintf("type %d does not exist", kind.Type))
		}

	case ExprSplat:
		if !validSize(kind.Size) {
			v.addErrorInExpression(handle, fmt.Sprintf("splat size must be 2, 3, or 4, got %d", kind.Size))
		}

	case ExprSwizzle:
		if !validSize(kind.Size) {
			v.addErrorInExpression(handle, fmt.Sprintf("swizzle size must be 2, 3, or 4, got %d", kind.Size))
			break
		}
		for i, c := range kind.Pattern[:kind.Size] {
			if c > SwizzleW {
				v.addErrorInExpression(handle, fmt.Sprintf("pattern[%d] invalid component %d", i, c))
			}
		}

	case ExprFunctionArgument:
		if fn != nil && int(kind.Index) >= len(fn.Arguments) {
			v.addErrorInExpression(handle, fmt.Sprintf("argument index %d out of range (function has %d args)",
				kind.Index, len(fn.Arguments)))
		}

	case ExprGlobalVariable:
		if !v.isValidGlobalVariableHandle(kind.Variable) {
			v.addErrorInExpression(handle, fmt.Sprintf("global variable %d does not exist", kind.Variable))
		}

	case ExprLocalVariable:
		if fn != nil && int(kind.Variable) >= len(fn.LocalVars) {
			v.addErrorInExpression(handle, fmt.Sprintf("local variable index %d out of range (function has %d vars)",
				kind.Variable, len(fn.LocalVars)))
		}

	case ExprCallResult:
		if !v.isValidFunctionHandle(kind.Function) {
			v.addErrorInExpression(handle, fmt.Sprintf("function %d does not exist", kind.Function))
		}
	}
}

func validSize(s VectorSize) bool {
	return s == Vec2 || s == Vec3 || s == Vec4
}

func (v *Validator) validateBlock(block Block) {
	for i := range block {
		v.validateStatement(i, &block[i])
	}
}

// validateStatement checks operand handles and the placement rules for
// jumps: break leaves the innermost loop or switch, continue the innermost
// loop, and no jump may leave a continuing block.
func (v *Validator) validateStatement(index int, stmt *Statement) {
	if stmt.Kind == nil {
		v.addErrorInStatement(index, "statement has nil kind")
		return
	}

	for _, op := range StatementOperands(stmt.Kind) {
		if !v.isValidExpressionHandle(op.Handle) {
			v.addErrorInStatement(index, fmt.Sprintf("%s expression %d does not exist", op.Role, op.Handle))
		}
	}

	ctx := &v.context
	switch kind := stmt.Kind.(type) {
	case StmtEmit:
		if ctx.function == nil {
			break
		}
		n := ExpressionHandle(len(ctx.function.Expressions))
		switch {
		case kind.Range.Start >= kind.Range.End:
			v.addErrorInStatement(index, fmt.Sprintf("emit range start %d >= end %d", kind.Range.Start, kind.Range.End))
		case kind.Range.End > n:
			v.addErrorInStatement(index, fmt.Sprintf("emit range end %d out of range", kind.Range.End))
		}

	case StmtBlock:
		v.validateBlock(kind.Block)

	case StmtIf:
		v.validateBlock(kind.Accept)
		v.validateBlock(kind.Reject)

	case StmtSwitch:
		defaults := 0
		for _, c := range kind.Cases {
			if _, ok := c.Value.(SwitchValueDefault); ok {
				defaults++
			}
			ctx.switchDepth++
			v.validateBlock(c.Body)
			ctx.switchDepth--
		}
		switch {
		case defaults == 0:
			v.addErrorInStatement(index, "switch missing default case")
		case defaults > 1:
			v.addErrorInStatement(index, "switch has multiple default cases")
		}

	case StmtLoop:
		saved := *ctx
		ctx.loopDepth++
		ctx.switchDepth = 0
		if h := kind.Header; h != nil {
			v.validateLoopHeader(index, h, len(kind.Body))
		}
		v.validateBlock(kind.Body)
		ctx.inContinuing = true
		v.validateBlock(kind.Continuing)
		ctx.loopDepth, ctx.switchDepth, ctx.inContinuing = saved.loopDepth, saved.switchDepth, saved.inContinuing

	case StmtBreak:
		if ctx.loopDepth == 0 && ctx.switchDepth == 0 {
			v.addErrorInStatement(index, "break outside of loop")
		}
		v.noJumpInContinuing(index, "break")

	case StmtContinue:
		if ctx.loopDepth == 0 {
			v.addErrorInStatement(index, "continue outside of loop")
		}
		v.noJumpInContinuing(index, "continue")

	case StmtReturn:
		v.noJumpInContinuing(index, "return")

	case StmtKill:
		v.noJumpInContinuing(index, "kill")

	case StmtCall:
		if !v.isValidFunctionHandle(kind.Function) {
			v.addErrorInStatement(index, fmt.Sprintf("function %d does not exist", kind.Function))
		}
	}
}

func (v *Validator) noJumpInContinuing(index int, what string) {
	if v.context.inContinuing {
		v.addErrorInStatement(index, what+" in continuing block")
	}
}

// validateLoopHeader checks the recognized shape of a loop against its body.
func (v *Validator) validateLoopHeader(index int, h *LoopHeader, bodyLen int) {
	if h.Shape != LoopGeneral && !v.isValidExpressionHandle(h.Test) {
		v.addErrorInStatement(index, fmt.Sprintf("loop test expression %d does not exist", h.Test))
	}
	if h.Prefix < 0 || h.Prefix > bodyLen {
		v.addErrorInStatement(index, fmt.Sprintf("loop test prefix %d exceeds body length %d", h.Prefix, bodyLen))
	}
	switch h.Shape {
	case LoopCounting, LoopInductive:
		if h.Induction == nil || v.context.function == nil || int(*h.Induction) >= len(v.context.function.LocalVars) {
			v.addErrorInStatement(index, "induction loop without a valid induction variable")
		}
		if h.Bound == nil || !v.isValidExpressionHandle(*h.Bound) {
			v.addErrorInStatement(index, "induction loop without a valid bound")
		}
		if h.Step == nil || !v.isValidExpressionHandle(*h.Step) {
			v.addErrorInStatement(index, "induction loop without a valid step")
		}
	}
}

// validateEntryPoints checks all entry points.
func (v *Validator) validateEntryPoints() {
	names := make(map[string]bool)

	for i, ep := range v.module.EntryPoints {
		if ep.Name == "" {
			v.addError(fmt.Sprintf("entry point %d has empty name", i))
		}
		if names[ep.Name] {
			v.addError(fmt.Sprintf("duplicate entry point name %q", ep.Name))
		}
		names[ep.Name] = true

		if !v.isValidFunctionHandle(ep.Function) {
			v.addError(fmt.Sprintf("entry point %q: function %d does not exist", ep.Name, ep.Function))
			continue
		}

		fn := &v.module.Functions[ep.Function]
		if fn.Result != nil || len(fn.Arguments) != 0 {
			v.addError(fmt.Sprintf("entry point %q (%s): must take no arguments and return void", ep.Name, ep.Stage))
		}
	}
}

// Helper methods for validation

func (v *Validator) isValidTypeHandle(handle TypeHandle) bool {
	return int(handle) < len(v.module.Types)
}

func (v *Validator) isValidConstantHandle(handle ConstantHandle) bool {
	return int(handle) < len(v.module.Constants)
}

func (v *Validator) isValidGlobalVariableHandle(handle GlobalVariableHandle) bool {
	return int(handle) < len(v.module.GlobalVariables)
}

func (v *Validator) isValidFunctionHandle(handle FunctionHandle) bool {
	return int(handle) < len(v.module.Functions)
}

func (v *Validator) isValidExpressionHandle(handle ExpressionHandle) bool {
	if v.context.function == nil {
		return false
	}
	return int(handle) < len(v.context.function.Expressions)
}

func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Statement: -1,
	})
}

func (v *Validator) addErrorInFunction(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Function:  v.context.functionName,
		Statement: -1,
	})
}

func (v *Validator) addErrorInExpression(handle ExpressionHandle, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:    msg,
		Function:   v.context.functionName,
		Expression: &handle,
		Statement:  -1,
	})
}

func (v *Validator) addErrorInStatement(index int, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Function:  v.context.functionName,
		Statement: index,
	})
}

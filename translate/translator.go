// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"errors"
	"fmt"
	"log/slog"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

// Options configures a Translator.
type Options struct {
	// Stage is the shader stage of the entry point.
	Stage ir.ShaderStage

	// EntryPoint names the entry function. Defaults to "main".
	EntryPoint string

	// Metadata carries the qualifiers the SSA form cannot express.
	// A nil table is treated as empty.
	Metadata *metadata.Table

	// Hoist lowers anonymous interface blocks. When nil, an anonymous
	// block is declared as a single global of the block type.
	Hoist HoistFunc

	// Inline decides which single-use values stay inline. Defaults to
	// SingleUsePolicy.
	Inline InlinePolicy

	// WriteMaskStores keeps partial vector writes as swizzle stores
	// ("v.xy = ...") instead of rewriting them to full-vector stores.
	WriteMaskStores bool

	// Logger receives debug traces. Defaults to a discarding logger.
	Logger *slog.Logger
}

// FunctionStats summarizes the lowering of one function.
type FunctionStats struct {
	Name        string
	Expressions int
	Locals      int
	Temps       int
	PhiCopies   int
	Loops       int
	Inlined     int
}

// Result is the outcome of a translation run.
type Result struct {
	Module        *ir.Module
	InfoLog       *InfoLog
	MaxArrayIndex map[string]int
	Functions     []FunctionStats
}

// Translator receives the protocol calls of a structured walk over an SSA
// module and builds an ir.Module.
//
// A Translator is used for exactly one module. Calls must follow the
// order Start, declarations, function bodies, End.
type Translator struct {
	opts   Options
	log    *slog.Logger
	meta   *metadata.Table
	inline InlinePolicy

	src      *llir.Module
	module   *ir.Module
	registry *ir.TypeRegistry

	refs      *refCounter
	typeCache map[typeKey]ir.TypeHandle
	structMD  map[types.Type]*metadata.Node
	structSeq int

	bindings  map[string]ir.GlobalVariableHandle
	globalMD  map[string]*metadata.Node
	aliases   map[string]string
	anon      map[string][]ir.GlobalVariableHandle
	consts    map[string]ir.ConstantHandle
	functions map[*llir.Func]ir.FunctionHandle
	locations map[ir.AddressSpace]uint32
	prologue  []globalInit
	maxIndex  map[string]int
	// outerIndex covers indices into the root object only.
	outerIndex map[string]int

	info  *InfoLog
	stats []FunctionStats
	errs  []error
	fatal error

	started bool
	ended   bool

	decl    *llir.Func
	pending *llir.Func
	fn      *funcState
}

type globalInit struct {
	global ir.GlobalVariableHandle
	value  ir.ConstantHandle
}

// New returns a Translator configured by opts.
func New(opts Options) *Translator {
	if opts.EntryPoint == "" {
		opts.EntryPoint = "main"
	}
	if opts.Inline == nil {
		opts.Inline = SingleUsePolicy{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	meta := opts.Metadata
	if meta == nil {
		meta = metadata.New(opts.Stage.String())
	}
	return &Translator{
		opts:       opts,
		log:        logger,
		meta:       meta,
		inline:     opts.Inline,
		registry:   ir.NewTypeRegistry(),
		typeCache:  make(map[typeKey]ir.TypeHandle),
		structMD:   make(map[types.Type]*metadata.Node),
		bindings:   make(map[string]ir.GlobalVariableHandle),
		globalMD:   make(map[string]*metadata.Node),
		aliases:    make(map[string]string),
		anon:       make(map[string][]ir.GlobalVariableHandle),
		consts:     make(map[string]ir.ConstantHandle),
		functions:  make(map[*llir.Func]ir.FunctionHandle),
		locations:  make(map[ir.AddressSpace]uint32),
		maxIndex:   make(map[string]int),
		outerIndex: make(map[string]int),
		info:       &InfoLog{},
	}
}

// Start begins translation of m. Every function that has a body is given
// a handle up front so calls may precede the callee's definition.
func (t *Translator) Start(m *llir.Module) error {
	if t.started {
		return t.poison(t.controlFlow("Start", "translator already started"))
	}
	if m == nil {
		return t.poison(t.controlFlow("Start", "nil module"))
	}
	refs, err := countReferences(m)
	if err != nil {
		t.fatal = err
		t.note(SeverityError, "module", "", err.Error())
		return err
	}
	t.started = true
	t.src = m
	t.module = &ir.Module{}
	t.refs = refs

	for name, target := range t.meta.Aliases {
		t.aliases[name] = target
	}

	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		t.functions[f] = ir.FunctionHandle(len(t.module.Functions))
		t.module.Functions = append(t.module.Functions, ir.Function{Name: f.Name()})
	}
	t.log.Debug("translation started", "functions", len(t.module.Functions), "values", len(t.refs.values))
	return nil
}

// End finishes the run and returns the translated module. The returned
// error joins every unsupported or internal error reported during the
// run; the Result is still returned so the info log can be inspected.
func (t *Translator) End() (*Result, error) {
	if t.fatal != nil {
		return t.result(), t.fatal
	}
	if !t.started {
		return nil, t.poison(t.controlFlow("End", "translator not started"))
	}
	if t.ended {
		return nil, t.poison(t.controlFlow("End", "End called twice"))
	}
	if t.fn != nil || t.decl != nil || t.pending != nil {
		return t.result(), t.poison(t.controlFlow("End", "function %s still open", t.funcName()))
	}
	t.ended = true

	t.sizeImplicitArrays()
	t.module.Types = t.registry.GetTypes()

	entry := -1
	for i := range t.module.Functions {
		if t.module.Functions[i].Name == t.opts.EntryPoint {
			entry = i
			break
		}
	}
	if entry < 0 {
		t.errs = append(t.errs, &InternalError{Detail: fmt.Sprintf("entry point %q not defined", t.opts.EntryPoint)})
		t.note(SeverityError, "entry point", "", fmt.Sprintf("no function named %q", t.opts.EntryPoint))
	} else {
		t.module.EntryPoints = append(t.module.EntryPoints, ir.EntryPoint{
			Name:     t.opts.EntryPoint,
			Stage:    t.opts.Stage,
			Function: ir.FunctionHandle(entry),
		})
	}

	t.log.Debug("translation finished",
		"types", len(t.module.Types),
		"globals", len(t.module.GlobalVariables),
		"diagnostics", len(t.info.entries))
	return t.result(), errors.Join(t.errs...)
}

func (t *Translator) result() *Result {
	return &Result{
		Module:        t.module,
		InfoLog:       t.info,
		MaxArrayIndex: t.maxIndex,
		Functions:     t.stats,
	}
}

// InfoLog returns the diagnostics recorded so far.
func (t *Translator) InfoLog() *InfoLog {
	return t.info
}

// Failed reports whether any error has been recorded.
func (t *Translator) Failed() bool {
	return t.fatal != nil || len(t.errs) > 0
}

// ready checks that a protocol call may proceed.
func (t *Translator) ready(op string) error {
	if t.fatal != nil {
		return t.fatal
	}
	if !t.started {
		return t.poison(t.controlFlow(op, "translator not started"))
	}
	if t.ended {
		return t.poison(t.controlFlow(op, "translator already ended"))
	}
	return nil
}

// readyBody checks that a call inside a function body may proceed.
func (t *Translator) readyBody(op string) error {
	if err := t.ready(op); err != nil {
		return err
	}
	if t.fn == nil {
		return t.poison(t.controlFlow(op, "no function body open"))
	}
	return nil
}

// poison records a fatal error. Every later call returns it.
func (t *Translator) poison(err error) error {
	if t.fatal == nil {
		t.fatal = err
		t.note(SeverityError, "control flow", "", err.Error())
	}
	return t.fatal
}

// settle classifies an error raised while lowering one call. Unsupported
// constructs are logged and lowering continues; internal errors abort the
// current function; control-flow errors poison the run.
func (t *Translator) settle(construct string, err error) error {
	if err == nil {
		return nil
	}
	var cf *ControlFlowError
	if errors.As(err, &cf) {
		return t.poison(err)
	}
	var ue *UnsupportedError
	if errors.As(err, &ue) {
		t.errs = append(t.errs, err)
		t.note(SeverityError, ue.Construct, "", ue.Detail)
		return nil
	}
	if t.fn != nil {
		return t.abort(construct, err)
	}
	t.errs = append(t.errs, err)
	t.note(SeverityError, construct, "", err.Error())
	return nil
}

// abort gives up on the current function. Later calls on it are no-ops
// until EndFunctionBody reports err.
func (t *Translator) abort(construct string, err error) error {
	if t.fn.aborted == nil {
		t.fn.aborted = err
		t.note(SeverityError, construct, "", err.Error())
		t.log.Debug("function lowering aborted", "function", t.funcName(), "err", err)
	}
	return nil
}

func (t *Translator) note(sev Severity, construct, value, msg string) {
	t.info.add(Diagnostic{
		Severity:  sev,
		Function:  t.funcName(),
		Construct: construct,
		Value:     value,
		Message:   msg,
	})
}

func (t *Translator) funcName() string {
	switch {
	case t.fn != nil:
		return t.fn.src.Name()
	case t.decl != nil:
		return t.decl.Name()
	}
	return ""
}

// sizeImplicitArrays gives unsized arrays outside buffer blocks the size
// implied by the largest constant index used on them.
func (t *Translator) sizeImplicitArrays() {
	types := t.registry.GetTypes()
	for i := range t.module.GlobalVariables {
		gv := &t.module.GlobalVariables[i]
		if gv.Space == ir.SpaceStorage || int(gv.Type) >= len(types) {
			continue
		}
		arr, ok := types[gv.Type].Inner.(ir.ArrayType)
		if !ok || arr.Size.Constant != nil {
			continue
		}
		max, ok := t.outerIndex[gv.Name]
		if !ok {
			t.note(SeverityWarning, "array", gv.Name, "implicitly sized array never indexed with a constant")
			continue
		}
		n, err := index32(t, "array", max+1)
		if err != nil {
			t.note(SeverityWarning, "array", gv.Name, err.Error())
			continue
		}
		arr.Size = ir.ArraySize{Constant: &n}
		gv.Type = t.registry.GetOrCreate(types[gv.Type].Name, arr)
	}
}

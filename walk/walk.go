// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package walk

import (
	"errors"
	"fmt"
	"slices"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/metadata"
	"github.com/gogpu/glass/translate"
)

const discardIntrinsic = "llvm.gla.discard"

// Module issues the declarations of m and the structured walk of every
// function with a body on h. The caller ends the run.
//
// Errors returned by h abort the walk, except those returned from
// EndFunctionBody, which are collected and joined into the result.
func Module(m *llir.Module, md *metadata.Table, h Handler) error {
	if md == nil {
		md = metadata.New("")
	}
	if err := h.Start(m); err != nil {
		return err
	}
	if err := declare(m, md, h); err != nil {
		return err
	}
	var errs []error
	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		err := Function(f, h)
		var body *bodyError
		switch {
		case errors.As(err, &body):
			errs = append(errs, body.err)
		case err != nil:
			return err
		}
	}
	return errors.Join(errs...)
}

// bodyError marks an error reported when a function body was closed.
type bodyError struct{ err error }

func (e *bodyError) Error() string { return e.err.Error() }
func (e *bodyError) Unwrap() error { return e.err }

func declare(m *llir.Module, md *metadata.Table, h Handler) error {
	aliases := make([]string, 0, len(md.Aliases))
	for name := range md.Aliases {
		aliases = append(aliases, name)
	}
	slices.Sort(aliases)
	for _, name := range aliases {
		if err := h.AddAlias(name, md.Aliases[name]); err != nil {
			return err
		}
	}

	for _, td := range m.TypeDefs {
		st, ok := td.(*types.StructType)
		if !ok || st.Name() == "" {
			continue
		}
		if err := h.AddStructType(st.Name(), st, md.Type(st.Name())); err != nil {
			return err
		}
	}

	for _, g := range m.Globals {
		node := md.Global(g.Name())
		var err error
		switch {
		case node != nil && node.Qualifier.IsIO():
			err = h.AddIODeclaration(g, node.Qualifier, node)
		case g.Immutable && g.Init != nil && (node == nil || node.Qualifier == metadata.QualifierNone):
			err = h.AddGlobalConst(g)
		default:
			err = h.AddGlobal(g, node)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Function walks one function with a body.
func Function(f *llir.Func, h Handler) error {
	g, err := buildGraph(f)
	if err != nil {
		return fmt.Errorf("walk: %s: %w", f.Name(), err)
	}
	g.computeDominators()
	if err := g.findLoops(); err != nil {
		return fmt.Errorf("walk: %s: %w", f.Name(), err)
	}
	w := newFuncWalker(f, g, h)

	if err := h.StartFunctionDeclaration(f.Name(), f.Sig.RetType); err != nil {
		return err
	}
	for i, p := range f.Params {
		if err := h.AddArgument(p, i == len(f.Params)-1); err != nil {
			return err
		}
	}
	if err := h.EndFunctionDeclaration(); err != nil {
		return err
	}
	if err := h.StartFunctionBody(); err != nil {
		return err
	}
	for i, b := range f.Blocks {
		if g.idom[i] < 0 {
			continue
		}
		for _, inst := range b.Insts {
			phi, ok := inst.(*llir.InstPhi)
			if !ok {
				break
			}
			if err := h.DeclarePhiCopy(phi); err != nil {
				return err
			}
		}
	}
	if len(f.Blocks) > 0 {
		if err := w.region(f.Blocks[0], nil); err != nil {
			return fmt.Errorf("walk: %s: %w", f.Name(), err)
		}
	}
	if err := h.EndFunctionBody(); err != nil {
		return &bodyError{err}
	}
	return nil
}

type edgeKind uint8

const (
	edgeForward edgeKind = iota
	edgeBack             // to the header of the innermost loop
	edgeExit             // to the exit of the innermost loop
)

type loopCtx struct {
	l    *loop
	plan loopPlan
	nest int // constructs open inside the loop body
}

type funcWalker struct {
	h    Handler
	f    *llir.Func
	g    *graph
	last *llir.Block

	defBlock map[value.Value]*llir.Block
	uses     map[value.Value]int
	outside  map[value.Value]bool

	emitted map[*llir.Block]bool
	loops   []*loopCtx
}

func newFuncWalker(f *llir.Func, g *graph, h Handler) *funcWalker {
	w := &funcWalker{
		h:        h,
		f:        f,
		g:        g,
		defBlock: make(map[value.Value]*llir.Block),
		uses:     make(map[value.Value]int),
		outside:  make(map[value.Value]bool),
		emitted:  make(map[*llir.Block]bool),
	}
	if len(f.Blocks) > 0 {
		w.last = f.Blocks[len(f.Blocks)-1]
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if v, ok := inst.(value.Value); ok {
				w.defBlock[v] = b
			}
		}
	}
	use := func(v value.Value, at *llir.Block) {
		w.uses[v]++
		if def, ok := w.defBlock[v]; ok && def != at {
			w.outside[v] = true
		}
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if phi, ok := inst.(*llir.InstPhi); ok {
				for _, inc := range phi.Incs {
					use(inc.X, asBlock(inc.Pred))
				}
				continue
			}
			for _, op := range translate.Operands(inst) {
				use(op, b)
			}
		}
		for _, op := range translate.TerminatorOperands(b.Term) {
			use(op, b)
		}
	}
	return w
}

func unstructured(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnstructured)
}

func (w *funcWalker) innermost() *loopCtx {
	if len(w.loops) == 0 {
		return nil
	}
	return w.loops[len(w.loops)-1]
}

func (w *funcWalker) innermostLoop() *loop {
	if c := w.innermost(); c != nil {
		return c.l
	}
	return nil
}

func (w *funcWalker) active(l *loop) bool {
	for _, c := range w.loops {
		if c.l == l {
			return true
		}
	}
	return false
}

func (w *funcWalker) enter() {
	if c := w.innermost(); c != nil {
		c.nest++
	}
}

func (w *funcWalker) leave() {
	if c := w.innermost(); c != nil {
		c.nest--
	}
}

func (w *funcWalker) lastBlock(b *llir.Block) bool {
	return b == w.last && len(w.loops) == 0
}

// region emits the blocks from b on until control reaches stop or leaves
// the region through a return, break or continue.
func (w *funcWalker) region(b, stop *llir.Block) error {
	for b != nil && b != stop {
		next, err := w.block(b)
		if err != nil {
			return err
		}
		b = next
	}
	return nil
}

// block emits b and returns the block that follows it in the same region.
func (w *funcWalker) block(b *llir.Block) (*llir.Block, error) {
	if w.emitted[b] {
		return nil, unstructured("block %s reached twice", blockName(b))
	}
	if l := w.g.loops[b]; l != nil && !w.active(l) {
		return w.loop(l)
	}
	w.emitted[b] = true

	for _, inst := range b.Insts {
		switch inst := inst.(type) {
		case *llir.InstPhi:
			continue
		case *llir.InstCall:
			if f, ok := inst.Callee.(*llir.Func); ok && f.Name() == discardIntrinsic {
				if err := w.h.AddDiscard(); err != nil {
					return nil, err
				}
				continue
			}
		}
		if w.skipped(inst) {
			continue
		}
		out := false
		if v, ok := inst.(value.Value); ok {
			out = w.outside[v]
		}
		if err := w.h.AddInstruction(inst, w.lastBlock(b), out); err != nil {
			return nil, err
		}
	}
	return w.terminator(b)
}

// skipped reports whether inst was absorbed into the header of an
// enclosing loop.
func (w *funcWalker) skipped(inst llir.Instruction) bool {
	for _, c := range w.loops {
		if c.plan.skip[inst] {
			return true
		}
	}
	return false
}

func (w *funcWalker) terminator(b *llir.Block) (*llir.Block, error) {
	switch term := b.Term.(type) {
	case *llir.TermRet:
		return nil, w.h.AddReturn(term, w.lastBlock(b))
	case *llir.TermUnreachable:
		return nil, nil
	case *llir.TermBr:
		return w.jump(b, asBlock(term.Target))
	case *llir.TermCondBr:
		if c := w.innermost(); c != nil && c.l.header == b && c.plan.body != nil {
			return w.jump(b, c.plan.body)
		}
		return w.branch(b, term)
	case *llir.TermSwitch:
		return w.switchOn(b, term)
	}
	return nil, unstructured("terminator of %s", blockName(b))
}

func (w *funcWalker) edge(s *llir.Block) (edgeKind, error) {
	l := w.innermostLoop()
	switch {
	case l == nil:
		return edgeForward, nil
	case s == l.header:
		return edgeBack, nil
	case s == l.exit:
		return edgeExit, nil
	case l.contains(s):
		return edgeForward, nil
	}
	return 0, unstructured("branch from the loop at %s to %s", blockName(l.header), blockName(s))
}

type phiCopy struct {
	phi *llir.InstPhi
	src value.Value
}

// copyPlan lists the phi copies on the edge from b to s.
func (w *funcWalker) copyPlan(b, s *llir.Block) []phiCopy {
	var out []phiCopy
	for _, inst := range s.Insts {
		phi, ok := inst.(*llir.InstPhi)
		if !ok {
			break
		}
		if w.skipCopy(phi, b) {
			continue
		}
		for _, inc := range phi.Incs {
			if asBlock(inc.Pred) == b {
				out = append(out, phiCopy{phi: phi, src: inc.X})
				break
			}
		}
	}
	return out
}

func (w *funcWalker) skipCopy(phi *llir.InstPhi, from *llir.Block) bool {
	for _, c := range w.loops {
		if latch, ok := c.plan.skipCopy[phi]; ok && latch == from {
			return true
		}
	}
	return false
}

// copies emits the phi copies on the edge from b to s.
func (w *funcWalker) copies(b, s *llir.Block) error {
	for _, c := range w.copyPlan(b, s) {
		var err error
		if c.src == value.Value(c.phi) {
			err = w.h.AddPhiAlias(c.phi, c.src)
		} else {
			err = w.h.AddPhiCopy(c.phi, c.src)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// jump transfers control from b to s at the current position.
func (w *funcWalker) jump(b, s *llir.Block) (*llir.Block, error) {
	kind, err := w.edge(s)
	if err != nil {
		return nil, err
	}
	if err := w.copies(b, s); err != nil {
		return nil, err
	}
	switch kind {
	case edgeBack:
		if w.innermost().nest > 0 {
			return nil, w.h.AddBack(nil, false)
		}
		return nil, nil
	case edgeExit:
		return nil, w.h.AddExit(nil, false)
	}
	return s, nil
}

// leaveIf exits or continues the innermost loop when cond (inverted if
// asked) holds.
func (w *funcWalker) leaveIf(b, s *llir.Block, kind edgeKind, cond value.Value, invert bool) error {
	if len(w.copyPlan(b, s)) == 0 {
		if kind == edgeExit {
			return w.h.AddExit(cond, invert)
		}
		return w.h.AddBack(cond, invert)
	}
	if err := w.h.OpenIf(cond, invert); err != nil {
		return err
	}
	w.enter()
	if _, err := w.jump(b, s); err != nil {
		return err
	}
	w.leave()
	return w.h.CloseIf()
}

func (w *funcWalker) branch(b *llir.Block, term *llir.TermCondBr) (*llir.Block, error) {
	t, f := asBlock(term.TargetTrue), asBlock(term.TargetFalse)
	if t == f {
		return w.jump(b, t)
	}
	kt, err := w.edge(t)
	if err != nil {
		return nil, err
	}
	kf, err := w.edge(f)
	if err != nil {
		return nil, err
	}
	switch {
	case kt != edgeForward && kf == edgeForward:
		if err := w.leaveIf(b, t, kt, term.Cond, false); err != nil {
			return nil, err
		}
		return w.jump(b, f)
	case kf != edgeForward && kt == edgeForward:
		if err := w.leaveIf(b, f, kf, term.Cond, true); err != nil {
			return nil, err
		}
		return w.jump(b, t)
	}

	var merge *llir.Block
	if kt == edgeForward && kf == edgeForward {
		merge = w.g.merge(b, w.innermostLoop())
	}
	invert := false
	if merge != nil && t == merge {
		t, f = f, t
		invert = true
	}
	if err := w.h.OpenIf(term.Cond, invert); err != nil {
		return nil, err
	}
	w.enter()
	if err := w.arm(b, t, merge); err != nil {
		return nil, err
	}
	if f != merge || len(w.copyPlan(b, f)) > 0 {
		if err := w.h.OpenElse(); err != nil {
			return nil, err
		}
		if err := w.arm(b, f, merge); err != nil {
			return nil, err
		}
	}
	w.leave()
	if err := w.h.CloseIf(); err != nil {
		return nil, err
	}
	return merge, nil
}

// arm emits the edge from b to s and the region that follows it up to
// merge.
func (w *funcWalker) arm(b, s, merge *llir.Block) error {
	next, err := w.jump(b, s)
	if err != nil || next == nil {
		return err
	}
	return w.region(next, merge)
}

type caseGroup struct {
	target *llir.Block
	values []int64
	def    bool
}

func (w *funcWalker) switchOn(b *llir.Block, term *llir.TermSwitch) (*llir.Block, error) {
	var groups []*caseGroup
	byTarget := make(map[*llir.Block]*caseGroup)
	group := func(t *llir.Block) *caseGroup {
		if g, ok := byTarget[t]; ok {
			return g
		}
		g := &caseGroup{target: t}
		byTarget[t] = g
		groups = append(groups, g)
		return g
	}
	for _, c := range term.Cases {
		ci, ok := c.X.(*constant.Int)
		if !ok {
			return nil, unstructured("switch case in %s is not an integer constant", blockName(b))
		}
		g := group(asBlock(c.Target))
		g.values = append(g.values, ci.X.Int64())
	}
	group(asBlock(term.TargetDefault)).def = true

	merge := w.g.merge(b, w.innermostLoop())
	if err := w.h.OpenSwitch(term.X); err != nil {
		return nil, err
	}
	w.enter()
	for _, g := range groups {
		labels := len(g.values)
		if g.def {
			labels++
		}
		for i, v := range g.values {
			if err := w.h.OpenCase(v); err != nil {
				return nil, err
			}
			if i < labels-1 {
				if err := w.h.CloseCase(true); err != nil {
					return nil, err
				}
			}
		}
		if g.def {
			if err := w.h.OpenDefault(); err != nil {
				return nil, err
			}
		}
		if err := w.arm(b, g.target, merge); err != nil {
			return nil, err
		}
		if err := w.h.CloseCase(false); err != nil {
			return nil, err
		}
	}
	w.leave()
	if err := w.h.CloseSwitch(); err != nil {
		return nil, err
	}
	return merge, nil
}

// loop emits l and returns the block after it.
func (w *funcWalker) loop(l *loop) (*llir.Block, error) {
	plan := w.plan(l)
	if err := w.h.OpenLoop(plan.shape); err != nil {
		return nil, err
	}
	w.loops = append(w.loops, &loopCtx{l: l, plan: plan})
	if err := w.region(l.header, nil); err != nil {
		return nil, err
	}
	w.loops = w.loops[:len(w.loops)-1]
	if err := w.h.CloseLoop(); err != nil {
		return nil, err
	}
	if l.exit == nil {
		return nil, nil
	}
	// The exit edges already carried their phi copies.
	kind, err := w.edge(l.exit)
	if err != nil {
		return nil, err
	}
	switch kind {
	case edgeBack:
		if w.innermost().nest > 0 {
			return nil, w.h.AddBack(nil, false)
		}
		return nil, nil
	case edgeExit:
		return nil, w.h.AddExit(nil, false)
	}
	return l.exit, nil
}

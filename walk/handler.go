// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package walk

import (
	"errors"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/metadata"
	"github.com/gogpu/glass/translate"
)

// ErrUnstructured is returned for control flow that has no structured
// form: irreducible loops, loops with more than one exit target, and
// branches that leave several constructs at once.
var ErrUnstructured = errors.New("unstructured control flow")

// Handler receives the structured walk of a module. *translate.Translator
// implements it.
type Handler interface {
	Start(m *llir.Module) error

	AddStructType(name string, ty types.Type, md *metadata.Node) error
	AddGlobal(g *llir.Global, md *metadata.Node) error
	AddGlobalConst(g *llir.Global) error
	AddIODeclaration(g *llir.Global, q metadata.Qualifier, md *metadata.Node) error
	AddAlias(alias, canonical string) error

	StartFunctionDeclaration(name string, ret types.Type) error
	AddArgument(p *llir.Param, last bool) error
	EndFunctionDeclaration() error
	StartFunctionBody() error
	EndFunctionBody() error

	AddInstruction(inst llir.Instruction, lastBlock, referencedOutsideScope bool) error
	DeclarePhiCopy(phi *llir.InstPhi) error
	AddPhiCopy(phi, src value.Value) error
	AddPhiAlias(phi, src value.Value) error

	OpenIf(cond value.Value, invert bool) error
	OpenElse() error
	CloseIf() error

	OpenSwitch(sel value.Value) error
	OpenCase(v int64) error
	OpenDefault() error
	CloseCase(fallsThrough bool) error
	CloseSwitch() error

	OpenLoop(shape translate.LoopShape) error
	AddExit(cond value.Value, invert bool) error
	AddBack(cond value.Value, invert bool) error
	CloseLoop() error

	AddReturn(ret *llir.TermRet, lastBlock bool) error
	AddDiscard() error
}

var _ Handler = (*translate.Translator)(nil)

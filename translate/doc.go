// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package translate lowers an SSA control-flow graph to the structured
// ir.Module.
//
// A Translator does not walk the CFG itself. A middle-end that has already
// recognized the structure of each function (see package walk) drives it
// through a fixed sequence of calls:
//
//	Start(m)
//	  AddStructType | AddGlobal | AddGlobalConst | AddIODeclaration | AddAlias ...
//	  for each function with a body:
//	    StartFunctionDeclaration(name, ret)
//	    AddArgument(p, last) ...
//	    EndFunctionDeclaration()
//	    StartFunctionBody()
//	      AddInstruction | DeclarePhiCopy | AddPhiCopy | AddPhiAlias
//	      OpenIf | OpenElse | CloseIf
//	      OpenSwitch | OpenCase | OpenDefault | CloseCase | CloseSwitch
//	      OpenLoop | AddExit | AddBack | CloseLoop
//	      AddReturn | AddDiscard ...
//	    EndFunctionBody()
//	End()
//
// # Values
//
// Every SSA value becomes either an inline expression, consumed where its
// single user is lowered, or a local temp written once by a Store and read
// by a Load at each use. Which one is decided before lowering starts: the
// reference counter numbers every value, counts its uses and marks it
// inlinable when it has one use in its own block and no write to memory
// can come between its definition and that use. An InlinePolicy may veto
// inlining further.
//
// Phi nodes are lowered to locals. DeclarePhiCopy declares the local and
// AddPhiCopy writes it at the end of each predecessor edge. Consecutive
// copies behave as a parallel assignment.
//
// # Intrinsics
//
// Calls to functions named "llvm.gla.<name>[.<overload>...]" are lowered
// to built-in operations. The texture intrinsics take the sampler type and
// the sampler first, then a flags word with the bits
//
//	1  projected
//	2  bias
//	4  explicit level of detail
//	8  depth comparison
//	16 offset
//
// followed by the coordinate and the operands the flags select. Write-masked
// component inserts (multiInsert) carry the original vector, a lane mask and
// a (source, component) pair per lane.
//
// # Errors
//
// Unsupported constructs are reported as *UnsupportedError, recorded in the
// info log and replaced by a zero value. An *InternalError aborts the
// current function. A *ControlFlowError means the call sequence itself is
// malformed; it is returned from every later call. All three wrap
// ErrTranslation.
package translate

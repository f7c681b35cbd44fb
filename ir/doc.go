// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package ir defines the structured shader AST that glass produces.
//
// The AST is the output of lowering an SSA control-flow graph: there are no
// phi nodes and no branches, only structured statements (If, Switch, Loop)
// over arenas of expressions.
//
// # Structure
//
// A Module contains:
//   - Types: All type definitions used in the shader
//   - Constants: Module-scope constant values
//   - GlobalVariables: Uniforms, pipeline inputs and outputs, and private globals
//   - Functions: All function definitions, each owning its expression arena
//   - EntryPoints: The entry function with its shader stage
//
// Every object is addressed by a uint32 handle into the arena that owns it.
//
// # Evaluation
//
// Expressions are pure trees. An expression is evaluated where the statement
// that refers to it executes. Values that must be computed once and read
// several times live in a LocalVariable written by a StmtStore; each reader
// loads it with an ExprLoad. Emit statements mark where a range of
// expressions became available and carry no runtime meaning.
package ir

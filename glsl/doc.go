// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glsl prints an ir.Module as GLSL source.
//
// The writer targets desktop GLSL 1.50 through 4.60 and GLSL ES 3.00
// through 3.20:
//
//   - GLSL ES 3.00: WebGL 2.0, OpenGL ES 3.0
//   - GLSL 3.30 Core: Desktop OpenGL 3.3+
//   - GLSL ES 3.10 / 4.30 Core: storage blocks
//
// # Basic Usage
//
//	source, info, err := glsl.Compile(module, glsl.Options{
//	    LangVersion: glsl.Version330,
//	})
//
// Features the requested version lacks either add an #extension line or
// raise the #version directive; TranslationInfo reports both.
//
// # Interface Blocks
//
// Globals that belong to a named block are printed as a block with an
// instance name. Globals hoisted out of an anonymous block are regrouped
// into one block declaration carrying the shared layout and binding.
//
// # Loops
//
// Loops whose header the translator recognized print their exit test in a
// for or while header. Other loops with a continuing block run it at the
// top of every iteration but the first, behind a guard flag.
//
// # Reserved Words
//
// Identifiers that collide with GLSL keywords or use the gl_ prefix are
// escaped with a leading underscore; SSA names are reduced to valid GLSL
// identifiers first.
package glsl

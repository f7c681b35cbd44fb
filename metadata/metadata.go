// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package metadata describes the shader interface that an SSA module does
// not carry in its types: qualifiers, layouts, locations, precisions,
// interpolation and member names.
//
// A Table is usually loaded from a TOML sidecar next to the .ll file:
//
//	stage = "fragment"
//
//	[aliases]
//	"_dbg_position" = "gl_Position"
//
//	[globals.color]
//	qualifier = "out"
//	location = 0
//
//	[globals.Transforms]
//	qualifier = "uniform"
//	layout = "std140"
//	type_name = "Transforms"
//	anonymous = true
//	members = [{ name = "mvp", matrix = true }, { name = "tint" }]
package metadata

import (
	"fmt"
	"strings"
)

// Qualifier is the storage qualifier of a global.
type Qualifier uint8

const (
	QualifierNone Qualifier = iota
	QualifierIn
	QualifierOut
	QualifierUniform
	QualifierBuffer
	QualifierShared
)

var qualifierNames = [...]string{"", "in", "out", "uniform", "buffer", "shared"}

func (q Qualifier) String() string { return qualifierNames[q] }

// IsIO reports whether q declares a pipeline input or output.
func (q Qualifier) IsIO() bool { return q == QualifierIn || q == QualifierOut }

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Qualifier) UnmarshalText(text []byte) error {
	v, err := lookup("qualifier", qualifierNames[:], string(text))
	*q = Qualifier(v)
	return err
}

// Layout is the memory layout of an aggregate.
type Layout uint8

const (
	LayoutNone Layout = iota
	LayoutStd140
	LayoutStd430
	LayoutShared
	LayoutPacked
)

var layoutNames = [...]string{"", "std140", "std430", "shared", "packed"}

func (l Layout) String() string { return layoutNames[l] }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Layout) UnmarshalText(text []byte) error {
	v, err := lookup("layout", layoutNames[:], string(text))
	*l = Layout(v)
	return err
}

// Precision is a GLSL ES precision qualifier.
type Precision uint8

const (
	PrecisionNone Precision = iota
	PrecisionLow
	PrecisionMedium
	PrecisionHigh
)

var precisionNames = [...]string{"", "lowp", "mediump", "highp"}

func (p Precision) String() string { return precisionNames[p] }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Precision) UnmarshalText(text []byte) error {
	v, err := lookup("precision", precisionNames[:], string(text))
	*p = Precision(v)
	return err
}

// Interpolation is the interpolation qualifier of a varying.
type Interpolation uint8

const (
	InterpolationDefault Interpolation = iota
	InterpolationSmooth
	InterpolationFlat
	InterpolationNoPerspective
)

var interpolationNames = [...]string{"", "smooth", "flat", "noperspective"}

func (i Interpolation) String() string { return interpolationNames[i] }

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Interpolation) UnmarshalText(text []byte) error {
	v, err := lookup("interpolation", interpolationNames[:], string(text))
	*i = Interpolation(v)
	return err
}

// Sampler describes an opaque sampler type.
type Sampler struct {
	Dim     string `toml:"dim"` // 1D, 2D, 3D, Cube, Rect, Buffer
	Arrayed bool   `toml:"arrayed"`
	Shadow  bool   `toml:"shadow"`
	MS      bool   `toml:"multisampled"`
	Kind    string `toml:"kind"` // float, int, uint
}

// Node annotates a global, a type or a struct member.
type Node struct {
	Name          string        `toml:"name"`
	TypeName      string        `toml:"type_name"`
	Qualifier     Qualifier     `toml:"qualifier"`
	Layout        Layout        `toml:"layout"`
	Precision     Precision     `toml:"precision"`
	Interpolation Interpolation `toml:"interpolation"`
	Centroid      bool          `toml:"centroid"`
	Sample        bool          `toml:"sample"`
	Builtin       string        `toml:"builtin"`
	Matrix        bool          `toml:"matrix"`
	RowMajor      bool          `toml:"row_major"`
	Unsigned      bool          `toml:"unsigned"`
	Anonymous     bool          `toml:"anonymous"`
	Sampler       *Sampler      `toml:"sampler"`
	Members       []*Node       `toml:"members"`

	// Location is the IO location, or for blocks and samplers the packed
	// set<<16 | binding.
	Location *uint32 `toml:"location"`
}

// Member returns the node of member i, or nil.
func (n *Node) Member(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Members) {
		return nil
	}
	return n.Members[i]
}

// IsBlock reports whether n describes an interface block.
func (n *Node) IsBlock() bool {
	return n != nil && n.Layout != LayoutNone
}

// SetBinding unpacks a block or sampler location into set and binding.
func (n *Node) SetBinding() (set, binding uint32, ok bool) {
	if n == nil || n.Location == nil {
		return 0, 0, false
	}
	return *n.Location >> 16, *n.Location & 0xffff, true
}

// Table holds the metadata of one translation unit.
type Table struct {
	Stage   string            `toml:"stage"`
	Globals map[string]*Node  `toml:"globals"`
	Types   map[string]*Node  `toml:"types"`
	Aliases map[string]string `toml:"aliases"`
}

// New returns an empty table for the given stage.
func New(stage string) *Table {
	return &Table{
		Stage:   stage,
		Globals: map[string]*Node{},
		Types:   map[string]*Node{},
		Aliases: map[string]string{},
	}
}

// Global returns the node of the named global, or nil.
func (t *Table) Global(name string) *Node {
	if t == nil {
		return nil
	}
	return t.Globals[name]
}

// Type returns the node of the named struct type, or nil.
func (t *Table) Type(name string) *Node {
	if t == nil {
		return nil
	}
	return t.Types[name]
}

func lookup(what string, names []string, s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, name := range names {
		if name == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}

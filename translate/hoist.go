// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import "github.com/gogpu/glass/ir"

// AnonBlock describes an anonymous interface block whose members are
// referenced without an instance name.
type AnonBlock struct {
	Global   string // SSA global holding the block
	TypeName string
	Space    ir.AddressSpace
	Layout   ir.BlockLayout
	Resource *ir.ResourceBinding
	Type     ir.TypeHandle
	Members  []ir.StructMember
}

// HoistFunc lowers an anonymous block to the globals that declare it,
// one per member and in member order.
type HoistFunc func(b AnonBlock) []ir.GlobalVariable

// HoistBlockMembers declares each member of b as its own global tagged
// with the block it came from, so a writer can regroup them.
func HoistBlockMembers(b AnonBlock) []ir.GlobalVariable {
	out := make([]ir.GlobalVariable, len(b.Members))
	for i, m := range b.Members {
		out[i] = ir.GlobalVariable{
			Name:      m.Name,
			Space:     b.Space,
			Resource:  b.Resource,
			Type:      m.Type,
			Precision: m.Precision,
			Block: &ir.BlockMember{
				Block:  b.TypeName,
				Layout: b.Layout,
				Index:  uint32(i),
			},
		}
	}
	return out
}

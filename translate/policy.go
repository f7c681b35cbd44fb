// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

// Use summarizes how an SSA value is consumed.
type Use struct {
	Count     int  // number of consumers
	SameBlock bool // the only consumer is in the defining block
	Outside   bool // the middle-end flagged a use outside the current scope
	Memory    bool // the value reads memory
}

// InlinePolicy decides whether a value stays an inline expression.
//
// The translator only asks about values with exactly one consumer in the
// defining block; values read more than once are always kept in a
// temporary.
type InlinePolicy interface {
	Inline(u Use) bool
}

// SingleUsePolicy inlines every value the translator offers.
type SingleUsePolicy struct{}

// Inline implements InlinePolicy.
func (SingleUsePolicy) Inline(u Use) bool {
	return u.Count == 1 && u.SameBlock && !u.Outside
}

// NoInlinePolicy keeps every value in a temporary.
type NoInlinePolicy struct{}

// Inline implements InlinePolicy.
func (NoInlinePolicy) Inline(Use) bool { return false }

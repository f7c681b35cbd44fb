// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package walk

import (
	"testing"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

func TestDominators(t *testing.T) {
	m := llir.NewModule()
	c := llir.NewParam("c", types.I1)
	f := m.NewFunc("main", types.Void, c)
	entry := f.NewBlock("entry")
	a := f.NewBlock("a")
	b := f.NewBlock("b")
	merge := f.NewBlock("merge")
	entry.NewCondBr(c, a, b)
	a.NewBr(merge)
	b.NewBr(merge)
	merge.NewRet(nil)

	g, err := buildGraph(f)
	if err != nil {
		t.Fatal(err)
	}
	g.computeDominators()

	tests := []struct {
		block       *llir.Block
		idom, ipdom *llir.Block
	}{
		{a, entry, merge},
		{b, entry, merge},
		{merge, entry, nil},
		{entry, entry, merge},
	}
	for _, tt := range tests {
		i := g.index[tt.block]
		if got := g.blocks[g.idom[i]]; got != tt.idom {
			t.Errorf("idom(%s) = %s, want %s", blockName(tt.block), blockName(got), blockName(tt.idom))
		}
		p := g.ipdom[i]
		switch {
		case tt.ipdom == nil && p != g.exit():
			t.Errorf("ipdom(%s) = %d, want the exit", blockName(tt.block), p)
		case tt.ipdom != nil && (p == g.exit() || g.blocks[p] != tt.ipdom):
			t.Errorf("ipdom(%s) = %d, want %s", blockName(tt.block), p, blockName(tt.ipdom))
		}
	}
	if got := g.merge(entry, nil); got != merge {
		t.Errorf("merge(entry) = %v, want merge", got)
	}
	if !g.dominates(0, g.index[merge]) || g.dominates(g.index[a], g.index[merge]) {
		t.Error("dominates disagrees with idom")
	}
}

func TestSingleBlockReturn(t *testing.T) {
	m := llir.NewModule()
	f := m.NewFunc("main", types.Void)
	f.NewBlock("entry").NewRet(nil)

	g, err := buildGraph(f)
	if err != nil {
		t.Fatal(err)
	}
	g.computeDominators()
	if len(g.idom) != 1 || g.idom[0] != 0 {
		t.Errorf("idom = %v, want [0]", g.idom)
	}
	if g.ipdom[0] != g.exit() {
		t.Errorf("ipdom(entry) = %d, want the exit", g.ipdom[0])
	}
}

func TestFindLoops(t *testing.T) {
	m := llir.NewModule()
	c := llir.NewParam("c", types.I1)
	f := m.NewFunc("main", types.Void, c)
	entry := f.NewBlock("entry")
	outer := f.NewBlock("outer")
	inner := f.NewBlock("inner")
	latch := f.NewBlock("latch")
	exit := f.NewBlock("exit")
	entry.NewBr(outer)
	outer.NewCondBr(c, inner, exit)
	inner.NewCondBr(c, inner, latch)
	latch.NewBr(outer)
	exit.NewRet(nil)

	g, err := buildGraph(f)
	if err != nil {
		t.Fatal(err)
	}
	g.computeDominators()
	if err := g.findLoops(); err != nil {
		t.Fatal(err)
	}

	lo := g.loops[outer]
	li := g.loops[inner]
	if lo == nil || li == nil {
		t.Fatalf("loops = %v", g.loops)
	}
	if li.parent != lo {
		t.Error("inner loop is not nested in the outer loop")
	}
	if lo.exit != exit || li.exit != latch {
		t.Errorf("exits = %s, %s", blockName(lo.exit), blockName(li.exit))
	}
	for _, b := range []*llir.Block{outer, inner, latch} {
		if !lo.contains(b) {
			t.Errorf("outer loop does not contain %s", blockName(b))
		}
	}
	if li.contains(latch) || lo.contains(exit) {
		t.Error("loop bodies too large")
	}
}

func TestMultipleExitsRejected(t *testing.T) {
	m := llir.NewModule()
	c := llir.NewParam("c", types.I1)
	f := m.NewFunc("main", types.Void, c)
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	out1 := f.NewBlock("out1")
	out2 := f.NewBlock("out2")
	entry.NewBr(header)
	header.NewCondBr(c, body, out1)
	body.NewCondBr(c, header, out2)
	out1.NewRet(nil)
	out2.NewRet(nil)

	g, err := buildGraph(f)
	if err != nil {
		t.Fatal(err)
	}
	g.computeDominators()
	if err := g.findLoops(); err == nil {
		t.Error("loop with two exit targets accepted")
	}
}

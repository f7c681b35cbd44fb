// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package walk

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
)

// graph is the control-flow graph of one function. Nodes are block
// indices; node len(blocks) is a virtual exit that every returning block
// flows into.
type graph struct {
	blocks []*llir.Block
	index  map[*llir.Block]int
	succs  [][]int
	preds  [][]int

	idom  []int // immediate dominator, -1 when unreachable
	ipdom []int // immediate post-dominator, -1 when no path to the exit

	loops  map[*llir.Block]*loop
	loopOf []*loop // innermost loop containing each block
}

func (g *graph) exit() int { return len(g.blocks) }

func buildGraph(f *llir.Func) (*graph, error) {
	g := &graph{
		blocks: f.Blocks,
		index:  make(map[*llir.Block]int, len(f.Blocks)),
		succs:  make([][]int, len(f.Blocks)+1),
		preds:  make([][]int, len(f.Blocks)+1),
	}
	for i, b := range f.Blocks {
		g.index[b] = i
	}
	for i, b := range f.Blocks {
		targets, err := successors(b.Term)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", blockName(b), err)
		}
		if len(targets) == 0 {
			g.edge(i, g.exit())
			continue
		}
		seen := make(map[int]bool, len(targets))
		for _, t := range targets {
			j, ok := g.index[t]
			if !ok {
				return nil, fmt.Errorf("block %s branches outside its function", blockName(b))
			}
			if !seen[j] {
				seen[j] = true
				g.edge(i, j)
			}
		}
	}
	return g, nil
}

func (g *graph) edge(from, to int) {
	g.succs[from] = append(g.succs[from], to)
	g.preds[to] = append(g.preds[to], from)
}

func successors(term llir.Terminator) ([]*llir.Block, error) {
	switch term := term.(type) {
	case *llir.TermRet, *llir.TermUnreachable:
		return nil, nil
	case *llir.TermBr:
		return []*llir.Block{asBlock(term.Target)}, nil
	case *llir.TermCondBr:
		return []*llir.Block{asBlock(term.TargetTrue), asBlock(term.TargetFalse)}, nil
	case *llir.TermSwitch:
		out := []*llir.Block{asBlock(term.TargetDefault)}
		for _, c := range term.Cases {
			out = append(out, asBlock(c.Target))
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("missing terminator: %w", ErrUnstructured)
	}
	return nil, fmt.Errorf("terminator %s: %w", term.LLString(), ErrUnstructured)
}

func asBlock(v any) *llir.Block {
	b, _ := v.(*llir.Block)
	return b
}

func blockName(b *llir.Block) string {
	return b.Ident()
}

// dominators computes immediate dominators of the graph given by succs
// and preds, rooted at entry, with the iterative algorithm of Cooper,
// Harvey and Kennedy.
func dominators(n, entry int, succs, preds [][]int) []int {
	order := postorder(n, entry, succs)
	rank := make([]int, n)
	for i := range rank {
		rank[i] = -1
	}
	for i, b := range order {
		rank[b] = i
	}
	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	idom[entry] = entry

	intersect := func(a, b int) int {
		for a != b {
			for rank[a] < rank[b] {
				a = idom[a]
			}
			for rank[b] < rank[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for i := len(order) - 1; i >= 0; i-- {
			b := order[i]
			if b == entry {
				continue
			}
			next := -1
			for _, p := range preds[b] {
				if idom[p] < 0 {
					continue
				}
				if next < 0 {
					next = p
				} else {
					next = intersect(p, next)
				}
			}
			if next >= 0 && idom[b] != next {
				idom[b] = next
				changed = true
			}
		}
	}
	return idom
}

// postorder lists the nodes reachable from entry in depth-first
// postorder.
func postorder(n, entry int, succs [][]int) []int {
	order := make([]int, 0, n)
	seen := make([]bool, n)
	type item struct{ node, next int }
	stack := []item{{entry, 0}}
	seen[entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(succs[top.node]) {
			s := succs[top.node][top.next]
			top.next++
			if !seen[s] {
				seen[s] = true
				stack = append(stack, item{s, 0})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

func (g *graph) computeDominators() {
	n := len(g.blocks)
	// Returning blocks have an edge to the exit, so both passes run over
	// all n+1 nodes; the exit's own dominator is dropped afterwards.
	g.idom = dominators(n+1, 0, g.succs, g.preds)[:n]
	// Post-dominators are the dominators of the reversed graph rooted at
	// the virtual exit.
	g.ipdom = dominators(n+1, g.exit(), g.preds, g.succs)
}

// dominates reports whether a dominates b.
func (g *graph) dominates(a, b int) bool {
	for {
		if a == b {
			return true
		}
		next := g.idom[b]
		if next < 0 || next == b {
			return false
		}
		b = next
	}
}

// loop is a natural loop: a header and every block that reaches one of
// its back edges without passing through the header.
type loop struct {
	header  *llir.Block
	body    map[*llir.Block]bool
	latches []*llir.Block
	exit    *llir.Block // nil when the loop is only left by returning
	parent  *loop
}

func (l *loop) contains(b *llir.Block) bool { return l.body[b] }

// findLoops builds the loop nest. A retreating edge whose target does not
// dominate its source makes the graph irreducible.
func (g *graph) findLoops() error {
	n := len(g.blocks)
	g.loops = make(map[*llir.Block]*loop)
	g.loopOf = make([]*loop, n)

	onStack := make([]bool, n)
	seen := make([]bool, n)
	var headers []int
	var dfs func(b int) error
	dfs = func(b int) error {
		seen[b] = true
		onStack[b] = true
		for _, s := range g.succs[b] {
			if s == g.exit() {
				continue
			}
			if onStack[s] {
				if !g.dominates(s, b) {
					return fmt.Errorf("irreducible loop at %s: %w", blockName(g.blocks[s]), ErrUnstructured)
				}
				h := g.blocks[s]
				l := g.loops[h]
				if l == nil {
					l = &loop{header: h, body: map[*llir.Block]bool{h: true}}
					g.loops[h] = l
					headers = append(headers, s)
				}
				l.latches = append(l.latches, g.blocks[b])
				continue
			}
			if !seen[s] {
				if err := dfs(s); err != nil {
					return err
				}
			}
		}
		onStack[b] = false
		return nil
	}
	if n > 0 {
		if err := dfs(0); err != nil {
			return err
		}
	}

	for _, h := range headers {
		l := g.loops[g.blocks[h]]
		work := make([]int, 0, len(l.latches))
		for _, latch := range l.latches {
			work = append(work, g.index[latch])
		}
		for len(work) > 0 {
			b := work[len(work)-1]
			work = work[:len(work)-1]
			if l.body[g.blocks[b]] {
				continue
			}
			l.body[g.blocks[b]] = true
			for _, p := range g.preds[b] {
				if g.idom[p] >= 0 {
					work = append(work, p)
				}
			}
		}
	}

	// Nest: the parent of a loop is the smallest other loop containing
	// its header.
	for _, l := range g.loops {
		for _, o := range g.loops {
			if o == l || !o.body[l.header] || len(o.body) <= len(l.body) {
				continue
			}
			if l.parent == nil || len(o.body) < len(l.parent.body) {
				l.parent = o
			}
		}
	}
	for i, b := range g.blocks {
		for _, l := range g.loops {
			if l.body[b] && (g.loopOf[i] == nil || len(l.body) < len(g.loopOf[i].body)) {
				g.loopOf[i] = l
			}
		}
	}

	for _, l := range g.loops {
		for b := range l.body {
			for _, s := range g.succs[g.index[b]] {
				if s == g.exit() || l.body[g.blocks[s]] {
					continue
				}
				t := g.blocks[s]
				if l.exit != nil && l.exit != t {
					return fmt.Errorf("loop at %s exits to both %s and %s: %w",
						blockName(l.header), blockName(l.exit), blockName(t), ErrUnstructured)
				}
				l.exit = t
			}
		}
	}
	return nil
}

// merge returns the block where the branches leaving b join again, or
// nil if they never do inside the enclosing loop.
func (g *graph) merge(b *llir.Block, in *loop) *llir.Block {
	p := g.ipdom[g.index[b]]
	if p < 0 || p == g.exit() {
		return nil
	}
	m := g.blocks[p]
	if in != nil && (!in.contains(m) || m == in.header) {
		return nil
	}
	return m
}

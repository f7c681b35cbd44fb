// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"fortio.org/safecast"
	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/gogpu/glass/ir"
	"github.com/gogpu/glass/metadata"
)

type nodeKind uint8

const (
	nodeValue   nodeKind = iota // inline expression
	nodeTemp                    // stored in a local, read with a load
	nodePointer                 // an l-value expression
)

// node is what an SSA value has been lowered to.
type node struct {
	kind  nodeKind
	expr  ir.ExpressionHandle
	local uint32
	ptr   *pointerInfo
}

// pointerInfo describes the memory an l-value expression designates.
type pointerInfo struct {
	root   string
	md     *metadata.Node
	offset uint32
	known  bool // offset is a compile-time constant
	inner  bool // designates something below the root object
}

// funcState is the lowering state of the function body being translated.
type funcState struct {
	src      *llir.Func
	handle   ir.FunctionHandle
	ir       *ir.Function
	entry    bool
	unsigned map[valueID]bool

	values      map[valueID]node
	phis        map[valueID]uint32
	globalExprs map[ir.GlobalVariableHandle]ir.ExpressionHandle
	constExprs  map[ir.ConstantHandle]ir.ExpressionHandle
	localExprs  map[uint32]ir.ExpressionHandle
	inserts     map[value.Value]*maskedInsert
	zeros       map[ir.TypeHandle]ir.ExpressionHandle

	emitStart int
	blocks    []*ir.Block
	frames    []*frame
	batch     copyBatch
	flags     int

	aborted error
	stats   FunctionStats
}

func (t *Translator) newFuncState(f *llir.Func, h ir.FunctionHandle) *funcState {
	fn := &t.module.Functions[h]
	fs := &funcState{
		src:         f,
		handle:      h,
		ir:          fn,
		entry:       f.Name() == t.opts.EntryPoint,
		values:      make(map[valueID]node),
		phis:        make(map[valueID]uint32),
		globalExprs: make(map[ir.GlobalVariableHandle]ir.ExpressionHandle),
		constExprs:  make(map[ir.ConstantHandle]ir.ExpressionHandle),
		localExprs:  make(map[uint32]ir.ExpressionHandle),
		inserts:     make(map[value.Value]*maskedInsert),
		zeros:       make(map[ir.TypeHandle]ir.ExpressionHandle),
		stats:       FunctionStats{Name: f.Name()},
	}
	fs.blocks = []*ir.Block{&fn.Body}
	return fs
}

// addExpression appends an expression to the current function and
// records its resolved type.
func (t *Translator) addExpression(kind ir.ExpressionKind) ir.ExpressionHandle {
	fn := t.fn.ir
	handle := ir.ExpressionHandle(len(fn.Expressions))
	fn.Expressions = append(fn.Expressions, ir.Expression{Kind: kind})
	t.module.Types = t.registry.GetTypes()
	exprType, err := ir.ResolveExpressionType(t.module, fn, handle)
	if err != nil {
		t.log.Debug("expression type unresolved", "function", fn.Name, "expr", handle, "err", err)
		exprType = ir.TypeResolution{}
	}
	fn.ExpressionTypes = append(fn.ExpressionTypes, exprType)
	return handle
}

// flushEmit covers the expressions added since the last statement with
// an Emit in the current block.
func (t *Translator) flushEmit() {
	fs := t.fn
	end := len(fs.ir.Expressions)
	if fs.emitStart >= end {
		return
	}
	top := fs.blocks[len(fs.blocks)-1]
	*top = append(*top, ir.Statement{Kind: ir.StmtEmit{Range: ir.Range{
		Start: ir.ExpressionHandle(fs.emitStart),
		End:   ir.ExpressionHandle(end),
	}}})
	fs.emitStart = end
}

// push appends a statement to the innermost open block.
func (t *Translator) push(kind ir.StatementKind) {
	t.flushEmit()
	top := t.fn.blocks[len(t.fn.blocks)-1]
	*top = append(*top, ir.Statement{Kind: kind})
}

func (t *Translator) top() *ir.Block {
	return t.fn.blocks[len(t.fn.blocks)-1]
}

// typeInner returns the inner type of a registered type.
func (t *Translator) typeInner(h ir.TypeHandle) ir.TypeInner {
	t.module.Types = t.registry.GetTypes()
	return t.module.Types[h].Inner
}

// exprInner returns the resolved type of h.
func (t *Translator) exprInner(h ir.ExpressionHandle) ir.TypeInner {
	return t.fn.ir.ExpressionTypes[h].Inner(t.module)
}

// exprType returns a type handle for the resolved type of h.
func (t *Translator) exprType(h ir.ExpressionHandle) (ir.TypeHandle, error) {
	res := t.fn.ir.ExpressionTypes[h]
	if res.Handle != nil {
		return *res.Handle, nil
	}
	switch res.Value.(type) {
	case nil:
		return 0, t.internal("expression %d has no resolved type", h)
	case ir.PointerType:
		return 0, t.internal("expression %d is a pointer", h)
	}
	return t.registry.GetOrCreate("", res.Value), nil
}

func (t *Translator) literal(v ir.LiteralValue) ir.ExpressionHandle {
	return t.addExpression(ir.Literal{Value: v})
}

// intLiteral is a 32-bit literal holding v, which must fit the kind.
func (t *Translator) intLiteral(kind ir.ScalarKind, v int64) (ir.ExpressionHandle, error) {
	if kind == ir.ScalarUint {
		u, err := safecast.Conv[uint32](v)
		if err != nil {
			return 0, t.unsupported("constant", "%d does not fit u32", v)
		}
		return t.literal(ir.LiteralU32(u)), nil
	}
	i, err := safecast.Conv[int32](v)
	if err != nil {
		return 0, t.unsupported("constant", "%d does not fit i32", v)
	}
	return t.literal(ir.LiteralI32(i)), nil
}

// smallInt is a literal for the fixed constants the lowering introduces.
func (t *Translator) smallInt(kind ir.ScalarKind, v int8) ir.ExpressionHandle {
	if kind == ir.ScalarUint {
		if v < 0 {
			return t.literal(ir.LiteralU32(math.MaxUint32))
		}
		return t.literal(ir.LiteralU32(uint32(v)))
	}
	return t.literal(ir.LiteralI32(int32(v)))
}

// index32 narrows a constant index, length or case value.
func index32[T safecast.Integer](t *Translator, what string, k T) (uint32, error) {
	n, err := safecast.Conv[uint32](k)
	if err != nil {
		return 0, t.unsupported(what, "%d out of range", k)
	}
	return n, nil
}

// addLocal declares a function-local variable.
func (t *Translator) addLocal(name string, ty ir.TypeHandle) uint32 {
	fn := t.fn.ir
	idx := uint32(len(fn.LocalVars))
	if name == "" {
		name = fmt.Sprintf("temp%d", idx)
	}
	fn.LocalVars = append(fn.LocalVars, ir.LocalVariable{Name: name, Type: ty})
	return idx
}

func (t *Translator) localPtr(idx uint32) ir.ExpressionHandle {
	if h, ok := t.fn.localExprs[idx]; ok {
		return h
	}
	h := t.addExpression(ir.ExprLocalVariable{Variable: idx})
	t.fn.localExprs[idx] = h
	return h
}

// define binds the value produced by v to h, either inline or through a
// temporary.
func (t *Translator) define(v value.Value, h ir.ExpressionHandle, outside bool) error {
	id, ok := t.refs.id(v)
	if !ok {
		return t.internal("value %s is not numbered", describe(v))
	}
	if t.refs.counts[id] == 0 {
		t.fn.values[id] = node{kind: nodeValue, expr: h}
		return nil
	}
	if t.refs.candidate[id] && t.inline.Inline(Use{
		Count:     t.refs.counts[id],
		SameBlock: true,
		Outside:   outside,
		Memory:    t.refs.readsMem[id],
	}) {
		t.fn.values[id] = node{kind: nodeValue, expr: h}
		t.fn.stats.Inlined++
		return nil
	}
	return t.materialize(id, h, valueName(v))
}

// materialize stores h into a fresh temporary of its own type.
func (t *Translator) materialize(id valueID, h ir.ExpressionHandle, name string) error {
	ty, err := t.exprType(h)
	if err != nil {
		return err
	}
	lv := t.addLocal(name, ty)
	t.push(ir.StmtStore{Pointer: t.localPtr(lv), Value: h})
	t.fn.values[id] = node{kind: nodeTemp, local: lv}
	t.fn.stats.Temps++
	return nil
}

// operand returns an expression for v and retires one of its uses.
func (t *Translator) operand(v value.Value) (ir.ExpressionHandle, error) {
	switch v := v.(type) {
	case *llir.Global:
		h, _, err := t.globalPointer(v)
		return h, err
	case *llir.Func:
		return 0, t.unsupported("operand", "function %s used as a value", v.Name())
	case constant.Constant:
		return t.constantExpr(v, true)
	}
	id, ok := t.refs.id(v)
	if !ok {
		return 0, t.internal("operand %s is not numbered", describe(v))
	}
	t.refs.consume(id)
	n, ok := t.fn.values[id]
	if !ok {
		return t.placeholder(v)
	}
	if n.kind == nodeTemp {
		return t.addExpression(ir.ExprLoad{Pointer: t.localPtr(n.local)}), nil
	}
	return n.expr, nil
}

// operandAs returns an operand converted to the given integer kind.
// Integer constants are emitted directly as literals of that kind.
func (t *Translator) operandAs(v value.Value, kind ir.ScalarKind) (ir.ExpressionHandle, error) {
	if c, ok := v.(constant.Constant); ok {
		if _, isGlobal := v.(*llir.Global); !isGlobal {
			return t.constantExpr(c, kind != ir.ScalarUint)
		}
	}
	h, err := t.operand(v)
	if err != nil {
		return 0, err
	}
	return t.coerce(h, kind), nil
}

// operandPointer returns the l-value expression of a pointer operand.
func (t *Translator) operandPointer(v value.Value) (ir.ExpressionHandle, *pointerInfo, error) {
	if g, ok := v.(*llir.Global); ok {
		return t.globalPointer(g)
	}
	id, ok := t.refs.id(v)
	if !ok {
		return 0, nil, t.unsupported("pointer", "%s is not addressable", describe(v))
	}
	t.refs.consume(id)
	n, ok := t.fn.values[id]
	if !ok || n.kind != nodePointer {
		return 0, nil, t.internal("pointer %s has no l-value", describe(v))
	}
	return n.expr, n.ptr, nil
}

// placeholder stands in for a value read before it was defined. One
// zero value per type is shared within a function.
func (t *Translator) placeholder(v value.Value) (ir.ExpressionHandle, error) {
	t.note(SeverityWarning, "value", describe(v), "read before definition; using zero")
	ty, err := t.translateType(v.Type(), nil, true)
	if err != nil {
		return 0, err
	}
	if h, ok := t.fn.zeros[ty]; ok {
		return h, nil
	}
	h := t.addExpression(ir.ExprZeroValue{Type: ty})
	t.fn.zeros[ty] = h
	return h, nil
}

// coerce converts an integer expression to kind when its signedness
// differs. Other expressions are returned unchanged.
func (t *Translator) coerce(h ir.ExpressionHandle, kind ir.ScalarKind) ir.ExpressionHandle {
	if kind != ir.ScalarSint && kind != ir.ScalarUint {
		return h
	}
	s, ok := scalarOf(t.exprInner(h))
	if !ok || s.Kind == kind || (s.Kind != ir.ScalarSint && s.Kind != ir.ScalarUint) {
		return h
	}
	w := s.Width
	return t.addExpression(ir.ExprAs{Expr: h, Kind: kind, Convert: &w})
}

// coerceTo converts h to the integer signedness of ty.
func (t *Translator) coerceTo(h ir.ExpressionHandle, ty ir.TypeHandle) ir.ExpressionHandle {
	inner := t.typeInner(ty)
	s, ok := scalarOf(inner)
	if !ok {
		return h
	}
	return t.coerce(h, s.Kind)
}

// intKind returns the signedness an integer result of v is lowered with.
func (t *Translator) intKind(v value.Value) ir.ScalarKind {
	if id, ok := t.refs.id(v); ok && t.fn.unsigned[id] {
		return ir.ScalarUint
	}
	return ir.ScalarSint
}

func (t *Translator) valueType(v value.Value) (ir.TypeHandle, error) {
	return t.translateType(v.Type(), nil, t.intKind(v) != ir.ScalarUint)
}

// constantExpr lowers a constant to an expression tree of literals.
func (t *Translator) constantExpr(c constant.Constant, signed bool) (ir.ExpressionHandle, error) {
	switch c := c.(type) {
	case *constant.Int:
		return t.intConstant(c, signed)
	case *constant.Float:
		return t.floatConstant(c), nil
	case *constant.Undef:
		ty, err := t.translateType(c.Type(), nil, signed)
		if err != nil {
			return 0, err
		}
		return t.addExpression(ir.ExprZeroValue{Type: ty}), nil
	case *constant.ZeroInitializer:
		ty, err := t.translateType(c.Type(), nil, signed)
		if err != nil {
			return 0, err
		}
		return t.addExpression(ir.ExprZeroValue{Type: ty}), nil
	case *constant.Vector:
		return t.composeConstant(c.Type(), c.Elems, signed)
	case *constant.Array:
		return t.composeConstant(c.Type(), c.Elems, signed)
	case *constant.Struct:
		return t.composeConstant(c.Type(), c.Fields, signed)
	}
	return 0, t.unsupported("constant", "%s", c.Ident())
}

func (t *Translator) composeConstant(ty types.Type, elems []constant.Constant, signed bool) (ir.ExpressionHandle, error) {
	th, err := t.translateType(ty, nil, signed)
	if err != nil {
		return 0, err
	}
	comps := make([]ir.ExpressionHandle, len(elems))
	for i, e := range elems {
		if comps[i], err = t.constantExpr(e, signed); err != nil {
			return 0, err
		}
	}
	return t.addExpression(ir.ExprCompose{Type: th, Components: comps}), nil
}

func (t *Translator) intConstant(c *constant.Int, signed bool) (ir.ExpressionHandle, error) {
	bits := c.Typ.BitSize
	switch {
	case bits == 1:
		return t.literal(ir.LiteralBool(c.X.Sign() != 0)), nil
	case bits == 64 && signed:
		return t.literal(ir.LiteralI64(c.X.Int64())), nil
	case bits == 64:
		return t.literal(ir.LiteralU64(wrapUint64(c.X))), nil
	case bits > 32:
		return 0, t.unsupported("constant", "i%d", bits)
	}
	x := c.X.Int64()
	// The same 32 bits may be spelled signed or unsigned in the input.
	if signed {
		if v, err := safecast.Conv[int32](x); err == nil {
			return t.literal(ir.LiteralI32(v)), nil
		}
		if u, err := safecast.Conv[uint32](x); err == nil {
			return t.literal(ir.LiteralI32(int32(u))), nil
		}
	} else {
		if u, err := safecast.Conv[uint32](x); err == nil {
			return t.literal(ir.LiteralU32(u)), nil
		}
		if v, err := safecast.Conv[int32](x); err == nil {
			return t.literal(ir.LiteralU32(uint32(v))), nil
		}
	}
	return 0, t.unsupported("constant", "%s does not fit i%d", c.X, bits)
}

func wrapUint64(x *big.Int) uint64 {
	if x.Sign() >= 0 {
		return x.Uint64()
	}
	return uint64(x.Int64())
}

func (t *Translator) floatConstant(c *constant.Float) ir.ExpressionHandle {
	f, _ := c.X.Float64()
	if c.Typ.Kind == types.FloatKindDouble {
		return t.literal(ir.LiteralF64(f))
	}
	return t.literal(ir.LiteralF32(float32(f)))
}

// constantValue declares a module-scope constant for c.
func (t *Translator) constantValue(name string, c constant.Constant, md *metadata.Node) (ir.ConstantHandle, error) {
	ty, err := t.translateType(c.Type(), md, true)
	if err != nil {
		return 0, err
	}
	var val ir.ConstantValue
	switch c := c.(type) {
	case *constant.Int:
		kind := ir.ScalarSint
		if c.Typ.BitSize == 1 {
			kind = ir.ScalarBool
		} else if md != nil && md.Unsigned {
			kind = ir.ScalarUint
		}
		val = ir.ScalarValue{Bits: wrapUint64(c.X), Kind: kind}
	case *constant.Float:
		f, _ := c.X.Float64()
		bits := uint64(math.Float32bits(float32(f)))
		if c.Typ.Kind == types.FloatKindDouble {
			bits = math.Float64bits(f)
		}
		val = ir.ScalarValue{Bits: bits, Kind: ir.ScalarFloat}
	case *constant.Vector:
		val, err = t.compositeValue(c.Elems, nil)
	case *constant.Array:
		val, err = t.compositeValue(c.Elems, md)
	case *constant.Struct:
		var comps []ir.ConstantHandle
		for i, f := range c.Fields {
			var mmd *metadata.Node
			if md != nil {
				mmd = md.Member(i)
			}
			h, err := t.constantValue("", f, mmd)
			if err != nil {
				return 0, err
			}
			comps = append(comps, h)
		}
		val = ir.CompositeValue{Components: comps}
	case *constant.ZeroInitializer:
		val, err = t.zeroValue(c.Type(), md)
	default:
		return 0, t.unsupported("constant", "initializer %s", c.Ident())
	}
	if err != nil {
		return 0, err
	}
	h := ir.ConstantHandle(len(t.module.Constants))
	t.module.Constants = append(t.module.Constants, ir.Constant{Name: name, Type: ty, Value: val})
	return h, nil
}

func (t *Translator) compositeValue(elems []constant.Constant, md *metadata.Node) (ir.ConstantValue, error) {
	comps := make([]ir.ConstantHandle, len(elems))
	for i, e := range elems {
		h, err := t.constantValue("", e, md)
		if err != nil {
			return nil, err
		}
		comps[i] = h
	}
	return ir.CompositeValue{Components: comps}, nil
}

// zeroValue expands a zero initializer into explicit components.
func (t *Translator) zeroValue(ty types.Type, md *metadata.Node) (ir.ConstantValue, error) {
	zero := func(et types.Type) (ir.ConstantHandle, error) {
		return t.constantValue("", constant.NewZeroInitializer(et), md)
	}
	switch ty := ty.(type) {
	case *types.IntType:
		kind := ir.ScalarSint
		if ty.BitSize == 1 {
			kind = ir.ScalarBool
		}
		return ir.ScalarValue{Kind: kind}, nil
	case *types.FloatType:
		return ir.ScalarValue{Kind: ir.ScalarFloat}, nil
	case *types.VectorType:
		comps := make([]ir.ConstantHandle, ty.Len)
		for i := range comps {
			h, err := zero(ty.ElemType)
			if err != nil {
				return nil, err
			}
			comps[i] = h
		}
		return ir.CompositeValue{Components: comps}, nil
	case *types.ArrayType:
		comps := make([]ir.ConstantHandle, ty.Len)
		for i := range comps {
			h, err := zero(ty.ElemType)
			if err != nil {
				return nil, err
			}
			comps[i] = h
		}
		return ir.CompositeValue{Components: comps}, nil
	case *types.StructType:
		comps := make([]ir.ConstantHandle, len(ty.Fields))
		for i, f := range ty.Fields {
			var mmd *metadata.Node
			if md != nil {
				mmd = md.Member(i)
			}
			h, err := t.constantValue("", constant.NewZeroInitializer(f), mmd)
			if err != nil {
				return nil, err
			}
			comps[i] = h
		}
		return ir.CompositeValue{Components: comps}, nil
	}
	return nil, t.unsupported("constant", "zero value of %s", ty)
}

// constIndex returns the value of an integer constant operand.
func constIndex(v value.Value) (int64, bool) {
	c, ok := v.(*constant.Int)
	if !ok {
		return 0, false
	}
	return c.X.Int64(), true
}

// valueName returns a declarable name for v, or "" for unnamed values.
func valueName(v value.Value) string {
	named, ok := v.(interface{ Name() string })
	if !ok {
		return ""
	}
	name := named.Name()
	if name == "" || isDigits(name) {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func describe(v value.Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.Ident()
}

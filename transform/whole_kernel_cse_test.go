package transform

import (
	"testing"

	"github.com/hashicorp/go-set/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessel-lang/tessel/ir"
	"github.com/tessel-lang/tessel/util"
)

func countKind(k *ir.Kernel, kind ir.Kind) int {
	n := 0
	ir.Walk(k.Body, func(s ir.Stmt) {
		if s.Kind() == kind {
			n++
		}
	})
	return n
}

func TestMergesTopLevelDuplicate(t *testing.T) {
	k := ir.NewKernel("dup", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	a := k.NewBinary(ir.BinMul, x, y)
	b := k.NewBinary(ir.BinMul, x, y)
	sum := k.NewBinary(ir.BinAdd, a, b)
	for _, s := range []ir.Stmt{x, y, a, sum} {
		k.Body.Append(s)
	}
	k.Body.InsertBefore(sum, b)

	res := Eliminate(k)

	assert.True(t, res.Modified)
	assert.True(t, res.Eliminated.Has(b.ID()))
	assert.Equal(t, 1, res.Eliminated.Len())
	assert.Equal(t, 4, k.Body.Len())
	// both operands of the consumer now point at the survivor
	assert.Same(t, a, sum.Lhs())
	assert.Same(t, a, sum.Rhs())
}

func TestDistinctStatementsSurvive(t *testing.T) {
	k := ir.NewKernel("distinct", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	a := k.NewBinary(ir.BinMul, x, y)
	b := k.NewBinary(ir.BinMul, y, x) // operand order matters
	for _, s := range []ir.Stmt{x, y, a, b} {
		k.Body.Append(s)
	}

	assert.False(t, WholeKernelCSE(k))
	assert.Equal(t, 4, k.Body.Len())
}

// a statement defined inside one arm must never be reused by the
// sibling arm: the arms are sibling scopes.
func TestArmScopesDoNotLeak(t *testing.T) {
	k := ir.NewKernel("scoped", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	k.Body.Append(x)
	k.Body.Append(y)
	cond := k.NewBinary(ir.BinLt, x, y)
	k.Body.Append(cond)
	ifStmt := k.NewIf(cond)
	k.Body.Append(ifStmt)
	ifStmt.SetThen(&ir.Block{})
	ifStmt.SetElse(&ir.Block{})
	// position the duplicates so neither end of the arms lines up and
	// the hoister stays out of the picture
	ifStmt.Then.Append(k.NewConst(7))
	ifStmt.Then.Append(k.NewBinary(ir.BinMul, x, y))
	ifStmt.Else.Append(k.NewBinary(ir.BinMul, x, y))
	ifStmt.Else.Append(k.NewConst(9))

	assert.False(t, WholeKernelCSE(k))
	assert.Equal(t, 3, countKind(k, ir.KindBinary)) // cond plus both muls
	assert.Equal(t, 2, ifStmt.Then.Len())
	assert.Equal(t, 2, ifStmt.Else.Len())
}

func TestSiblingBlocksDoNotLeak(t *testing.T) {
	k := ir.NewKernel("siblings", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	zero := k.NewConst(0)
	loopA := k.NewRangeFor(zero, x)
	loopB := k.NewRangeFor(zero, x)
	for _, s := range []ir.Stmt{x, y, zero, loopA, loopB} {
		k.Body.Append(s)
	}
	loopA.Body.Append(k.NewBinary(ir.BinAdd, x, y))
	loopB.Body.Append(k.NewBinary(ir.BinAdd, x, y))

	// the loops are distinct statements and each body is its own
	// scope, so the adds must both survive
	assert.False(t, WholeKernelCSE(k))
	assert.Equal(t, 1, loopA.Body.Len())
	assert.Equal(t, 1, loopB.Body.Len())
}

func TestOuterScopeVisibleInsideLoop(t *testing.T) {
	k := ir.NewKernel("nested", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	outer := k.NewBinary(ir.BinMul, x, y)
	zero := k.NewConst(0)
	loop := k.NewRangeFor(zero, x)
	for _, s := range []ir.Stmt{x, y, outer, zero, loop} {
		k.Body.Append(s)
	}
	inner := k.NewBinary(ir.BinMul, x, y)
	user := k.NewBinary(ir.BinAdd, inner, x)
	loop.Body.Append(inner)
	loop.Body.Append(user)

	assert.True(t, WholeKernelCSE(k))
	assert.Equal(t, 1, loop.Body.Len())
	assert.Same(t, outer, user.Lhs())
}

func TestAddressSubsumption(t *testing.T) {
	build := func(prevActivate, thisActivate bool) (*ir.Kernel, *ir.Address, *ir.Address) {
		k := ir.NewKernel("addr", 1)
		k.DeclareField("f0")
		idx := k.NewArgLoad(0)
		k.Body.Append(idx)
		prev := k.NewAddress("f0", prevActivate, idx)
		this := k.NewAddress("f0", thisActivate, idx)
		k.Body.Append(prev)
		k.Body.Append(this)
		val := k.NewLoad(this)
		k.Body.Append(val)
		return k, prev, this
	}

	t.Run("earlier activation subsumes later plain access", func(t *testing.T) {
		k, prev, _ := build(true, false)
		assert.True(t, WholeKernelCSE(k))
		assert.Equal(t, 1, countKind(k, ir.KindAddress))
		load := k.Body.At(k.Body.Len() - 1).(*ir.Load)
		assert.Same(t, prev, load.Address())
	})

	t.Run("earlier activation subsumes later activation", func(t *testing.T) {
		k, _, _ := build(true, true)
		assert.True(t, WholeKernelCSE(k))
		assert.Equal(t, 1, countKind(k, ir.KindAddress))
	})

	t.Run("matching plain accesses fuse", func(t *testing.T) {
		k, _, _ := build(false, false)
		assert.True(t, WholeKernelCSE(k))
		assert.Equal(t, 1, countKind(k, ir.KindAddress))
	})

	t.Run("later activation is never subsumed", func(t *testing.T) {
		k, _, _ := build(false, true)
		assert.False(t, WholeKernelCSE(k))
		assert.Equal(t, 2, countKind(k, ir.KindAddress))
	})
}

func TestCoverageUnionOnMerge(t *testing.T) {
	k := ir.NewKernel("covers", 2)
	k.DeclareField("f0")
	k.DeclareField("f1")
	x := k.NewArgLoad(0)
	k.Body.Append(x)
	u1 := k.NewLoopUnique(x, set.From([]ir.FieldID{"f0"}))
	u2 := k.NewLoopUnique(x, set.From([]ir.FieldID{"f1"}))
	k.Body.Append(u1)
	k.Body.Append(u2)

	assert.True(t, WholeKernelCSE(k))
	assert.Equal(t, 1, countKind(k, ir.KindLoopUnique))
	assert.True(t, u1.Covers.Equal(set.From([]ir.FieldID{"f0", "f1"})))
}

func TestHoistsSharedLeadingStatement(t *testing.T) {
	k := ir.NewKernel("hoist", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	cond := k.NewBinary(ir.BinLt, x, y)
	ifStmt := k.NewIf(cond)
	for _, s := range []ir.Stmt{x, y, cond, ifStmt} {
		k.Body.Append(s)
	}
	ifStmt.SetThen(&ir.Block{})
	ifStmt.SetElse(&ir.Block{})
	b1 := k.NewBinary(ir.BinMul, x, y)
	p1 := k.NewBinary(ir.BinAdd, b1, x)
	ifStmt.Then.Append(b1)
	ifStmt.Then.Append(p1)
	b2 := k.NewBinary(ir.BinMul, x, y)
	p2 := k.NewBinary(ir.BinSub, b2, y)
	ifStmt.Else.Append(b2)
	ifStmt.Else.Append(p2)

	assert.True(t, WholeKernelCSE(k))

	// the shared mul now sits right before the conditional and both
	// arms reference it
	idx := k.Body.IndexOf(ifStmt)
	require.Greater(t, idx, 0)
	assert.Same(t, b1, k.Body.At(idx-1))
	assert.Equal(t, 1, ifStmt.Then.Len())
	assert.Equal(t, 1, ifStmt.Else.Len())
	assert.Same(t, b1, p1.Lhs())
	assert.Same(t, b1, p2.Lhs())
}

func TestHoistsSharedTrailingStatement(t *testing.T) {
	k := ir.NewKernel("hoistTail", 2)
	k.DeclareField("f0")
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	cond := k.NewBinary(ir.BinLt, x, y)
	addr := k.NewAddress("f0", false, x)
	ifStmt := k.NewIf(cond)
	for _, s := range []ir.Stmt{x, y, cond, addr, ifStmt} {
		k.Body.Append(s)
	}
	ifStmt.SetThen(&ir.Block{})
	ifStmt.SetElse(&ir.Block{})
	// arms differ in their leading store, agree in their trailing one
	ifStmt.Then.Append(k.NewStore(addr, x))
	tail1 := k.NewStore(addr, y)
	ifStmt.Then.Append(tail1)
	ifStmt.Else.Append(k.NewStore(addr, y))
	tail2 := k.NewStore(addr, y)
	ifStmt.Else.Append(tail2)

	assert.True(t, WholeKernelCSE(k))

	idx := k.Body.IndexOf(ifStmt)
	assert.Same(t, tail1, k.Body.At(idx+1))
	assert.Equal(t, 1, ifStmt.Then.Len())
	assert.Equal(t, 1, ifStmt.Else.Len())
}

// the worked example: a hoist in one iteration exposes a merge in the
// next, collapsing three structurally identical muls into one.
func TestHoistThenMergeAcrossIterations(t *testing.T) {
	k := ir.NewKernel("fixpoint", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	a := k.NewBinary(ir.BinMul, x, y)
	use := k.NewBinary(ir.BinAdd, a, a)
	cond := k.NewBinary(ir.BinLt, x, y)
	ifStmt := k.NewIf(cond)
	for _, s := range []ir.Stmt{x, y, a, use, cond, ifStmt} {
		k.Body.Append(s)
	}
	ifStmt.SetThen(&ir.Block{})
	ifStmt.SetElse(&ir.Block{})
	b1 := k.NewBinary(ir.BinMul, x, y)
	p1 := k.NewBinary(ir.BinAdd, b1, x)
	ifStmt.Then.Append(b1)
	ifStmt.Then.Append(p1)
	b2 := k.NewBinary(ir.BinMul, x, y)
	p2 := k.NewBinary(ir.BinSub, b2, y)
	ifStmt.Else.Append(b2)
	ifStmt.Else.Append(p2)

	res := Eliminate(k)

	require.True(t, res.Modified)
	muls := 0
	ir.Walk(k.Body, func(s ir.Stmt) {
		if bin, ok := s.(*ir.Binary); ok && bin.Op == ir.BinMul {
			muls++
			assert.Same(t, a, bin)
		}
	})
	assert.Equal(t, 1, muls)
	assert.Same(t, a, p1.Lhs())
	assert.Same(t, a, p2.Lhs())
	assert.True(t, res.Eliminated.Has(b2.ID()))
	assert.True(t, res.Eliminated.Has(b1.ID()))
}

func TestEmptyArmsArePruned(t *testing.T) {
	k := ir.NewKernel("empty", 1)
	x := k.NewArgLoad(0)
	ifStmt := k.NewIf(x)
	k.Body.Append(x)
	k.Body.Append(ifStmt)
	ifStmt.SetThen(&ir.Block{})
	ifStmt.SetElse(&ir.Block{})
	ifStmt.Else.Append(k.NewBinary(ir.BinAdd, x, x))

	WholeKernelCSE(k)
	assert.Nil(t, ifStmt.Then)
	assert.NotNil(t, ifStmt.Else)
}

func TestIdempotent(t *testing.T) {
	k := ir.NewKernel("idem", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	a := k.NewBinary(ir.BinMul, x, y)
	b := k.NewBinary(ir.BinMul, x, y)
	u := k.NewBinary(ir.BinAdd, a, b)
	for _, s := range []ir.Stmt{x, y, a, b, u} {
		k.Body.Append(s)
	}

	assert.True(t, WholeKernelCSE(k))
	assert.False(t, WholeKernelCSE(k))
}

func TestOracleRejectsMismatchedKinds(t *testing.T) {
	k := ir.NewKernel("mismatch", 1)
	x := k.NewArgLoad(0)
	c := k.NewConst(3)
	assert.Panics(t, func() {
		commonStatementEliminable(x, c)
	})
}

func TestMarkUndoneClearsDependents(t *testing.T) {
	k := ir.NewKernel("undone", 2)
	x := k.NewArgLoad(0)
	y := k.NewArgLoad(1)
	m := k.NewBinary(ir.BinMul, x, y)
	user := k.NewBinary(ir.BinAdd, m, y)
	ifStmt := k.NewIf(m) // container reading m, checked before descent
	for _, s := range []ir.Stmt{x, y, m, user, ifStmt} {
		k.Body.Append(s)
	}
	ifStmt.SetThen(&ir.Block{})
	inner := k.NewBinary(ir.BinSub, m, x)
	ifStmt.Then.Append(inner)

	done := util.NewSetOf([]ir.StmtID{x.ID(), y.ID(), m.ID(), user.ID(), ifStmt.ID(), inner.ID()})
	markUndone(k.Body, done, m)

	assert.True(t, done.Contains(x.ID()))
	assert.True(t, done.Contains(y.ID()))
	assert.True(t, done.Contains(m.ID()))
	assert.False(t, done.Contains(user.ID()))
	assert.False(t, done.Contains(ifStmt.ID()))
	assert.False(t, done.Contains(inner.ID()))
}

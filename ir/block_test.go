package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockInsertAndErase(t *testing.T) {
	k := NewKernel("k", 1)
	a := k.NewConst(1)
	b := k.NewConst(2)
	c := k.NewConst(3)
	k.Body.Append(a)
	k.Body.Append(c)
	k.Body.InsertAfter(a, b)
	assert.Equal(t, []Stmt{a, b, c}, k.Body.Stmts())

	d := k.NewConst(4)
	k.Body.InsertBefore(a, d)
	assert.Equal(t, []Stmt{d, a, b, c}, k.Body.Stmts())
	assert.Same(t, k.Body, d.Parent())

	k.Body.Erase(k.Body.IndexOf(b))
	assert.Equal(t, []Stmt{d, a, c}, k.Body.Stmts())
	assert.Nil(t, b.Parent())
}

func TestExtractDetaches(t *testing.T) {
	k := NewKernel("k", 1)
	a := k.NewConst(1)
	b := k.NewConst(2)
	k.Body.Append(a)
	k.Body.Append(b)

	got := k.Body.Extract(0)
	assert.Same(t, a, got)
	assert.Nil(t, a.Parent())
	assert.Equal(t, []Stmt{b}, k.Body.Stmts())

	// a detached statement can be re-attached elsewhere
	k.Body.InsertAfter(b, a)
	assert.Equal(t, []Stmt{b, a}, k.Body.Stmts())
}

func TestBlockPanicsOnForeignStatement(t *testing.T) {
	k := NewKernel("k", 1)
	a := k.NewConst(1)
	stray := k.NewConst(2)
	k.Body.Append(a)

	assert.Panics(t, func() { k.Body.IndexOf(stray) })
	assert.Panics(t, func() { k.Body.Append(a) }) // already attached
}

func TestStmtIDsAreNeverReused(t *testing.T) {
	k := NewKernel("k", 1)
	seen := map[StmtID]bool{}
	for i := 0; i < 100; i++ {
		s := k.NewConst(int64(i))
		assert.False(t, seen[s.ID()])
		seen[s.ID()] = true
	}
}

package ir

import "fmt"

// Block is an ordered statement list nested inside a container statement,
// or at the kernel root (container nil). Statements are owned by exactly
// one block at a time.
type Block struct {
	container Stmt
	stmts     []Stmt
}

func (b *Block) Container() Stmt { return b.container }
func (b *Block) Len() int        { return len(b.stmts) }

// Stmts returns the block contents. Callers must not mutate the slice.
func (b *Block) Stmts() []Stmt { return b.stmts }

func (b *Block) At(i int) Stmt { return b.stmts[i] }

// Append attaches a detached statement at the end of the block.
func (b *Block) Append(s Stmt) {
	if s.base().parent != nil {
		panic(fmt.Sprintf("ir: statement $%d already belongs to a block", s.ID()))
	}
	s.base().parent = b
	b.stmts = append(b.stmts, s)
}

// Extract detaches and returns the statement at index i. References held
// by other statements are left intact; the caller is responsible for
// re-attaching or rewiring.
func (b *Block) Extract(i int) Stmt {
	s := b.stmts[i]
	b.stmts = append(b.stmts[:i], b.stmts[i+1:]...)
	s.base().parent = nil
	return s
}

// Erase drops the statement at index i.
func (b *Block) Erase(i int) {
	b.Extract(i)
}

// IndexOf locates s inside this block, panicking when absent: a
// statement whose parent link disagrees with block membership means the
// tree is corrupt and continuing would miscompile.
func (b *Block) IndexOf(s Stmt) int {
	for i, st := range b.stmts {
		if st == s {
			return i
		}
	}
	panic(fmt.Sprintf("ir: statement $%d not found in its block", s.ID()))
}

// InsertBefore attaches node immediately before mark, which must be a
// member of this block.
func (b *Block) InsertBefore(mark, node Stmt) {
	b.insertAt(b.IndexOf(mark), node)
}

// InsertAfter attaches node immediately after mark, which must be a
// member of this block.
func (b *Block) InsertAfter(mark, node Stmt) {
	b.insertAt(b.IndexOf(mark)+1, node)
}

func (b *Block) insertAt(i int, node Stmt) {
	if node.base().parent != nil {
		panic(fmt.Sprintf("ir: statement $%d already belongs to a block", node.ID()))
	}
	node.base().parent = b
	b.stmts = append(b.stmts, nil)
	copy(b.stmts[i+1:], b.stmts[i:])
	b.stmts[i] = node
}

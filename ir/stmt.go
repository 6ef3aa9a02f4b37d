package ir

import "fmt"

// StmtID identifies a statement for the lifetime of its kernel.
// IDs are allocated by the owning Kernel and are never reused, so sets
// keyed by StmtID stay unambiguous across repeated passes over the tree.
type StmtID int

// FieldID names a sparse field declared by a kernel.
type FieldID string

// Kind is the closed set of statement shapes. Every dispatch over kinds
// in this repository is an exhaustive switch; a new kind must be given a
// case everywhere the compiler points at one.
type Kind int

const (
	KindConst Kind = iota
	KindArgLoad
	KindUnary
	KindBinary
	KindLoopIndex
	KindAddress
	KindLoopUnique
	KindLoad
	KindStore
	KindIf
	KindRangeFor
)

func (k Kind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindArgLoad:
		return "arg"
	case KindUnary:
		return "unary"
	case KindBinary:
		return "binary"
	case KindLoopIndex:
		return "index"
	case KindAddress:
		return "addr"
	case KindLoopUnique:
		return "unique"
	case KindLoad:
		return "load"
	case KindStore:
		return "store"
	case KindIf:
		return "if"
	case KindRangeFor:
		return "for"
	default:
		panic(fmt.Sprintf("ir: unknown statement kind %d", int(k)))
	}
}

// Stmt is a statement node of the kernel tree. All implementations live
// in this package; the unexported methods keep the kind set closed.
type Stmt interface {
	ID() StmtID
	Kind() Kind
	// Operands returns the ordered statements this one reads. Callers
	// must not mutate the returned slice.
	Operands() []Stmt
	// Parent is the block currently holding this statement, nil while
	// detached.
	Parent() *Block

	base() *stmtBase
}

type stmtBase struct {
	id     StmtID
	parent *Block
	ops    []Stmt
}

func (b *stmtBase) ID() StmtID       { return b.id }
func (b *stmtBase) Operands() []Stmt { return b.ops }
func (b *stmtBase) Parent() *Block   { return b.parent }
func (b *stmtBase) base() *stmtBase  { return b }

// Eligible reports whether a statement is pure and may be merged with an
// equivalent earlier statement. Effectful and container statements never
// are; an Address is, because its activation side effect is accounted
// for by the subsumption rule applied when two addresses are compared.
func Eligible(s Stmt) bool {
	switch s.Kind() {
	case KindConst, KindArgLoad, KindUnary, KindBinary, KindLoopIndex, KindAddress, KindLoopUnique:
		return true
	case KindLoad, KindStore, KindIf, KindRangeFor:
		return false
	default:
		panic(fmt.Sprintf("ir: unknown statement kind %v", s.Kind()))
	}
}

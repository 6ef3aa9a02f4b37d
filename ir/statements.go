package ir

import (
	"github.com/hashicorp/go-set/v3"
)

type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryNeg:
		return "neg"
	default:
		panic("ir: unknown unary op")
	}
}

type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinMin
	BinMax
	BinLt
	BinLe
	BinEq
	BinNe
)

func (op BinaryOp) String() string {
	switch op {
	case BinAdd:
		return "add"
	case BinSub:
		return "sub"
	case BinMul:
		return "mul"
	case BinDiv:
		return "div"
	case BinMod:
		return "mod"
	case BinMin:
		return "min"
	case BinMax:
		return "max"
	case BinLt:
		return "lt"
	case BinLe:
		return "le"
	case BinEq:
		return "eq"
	case BinNe:
		return "ne"
	default:
		panic("ir: unknown binary op")
	}
}

// Const is an integer literal.
type Const struct {
	stmtBase
	Value int64
}

func (*Const) Kind() Kind { return KindConst }

// ArgLoad reads one of the kernel's scalar arguments.
type ArgLoad struct {
	stmtBase
	Arg int
}

func (*ArgLoad) Kind() Kind { return KindArgLoad }

type Unary struct {
	stmtBase
	Op UnaryOp
}

func (*Unary) Kind() Kind { return KindUnary }
func (s *Unary) X() Stmt  { return s.ops[0] }

type Binary struct {
	stmtBase
	Op BinaryOp
}

func (*Binary) Kind() Kind  { return KindBinary }
func (s *Binary) Lhs() Stmt { return s.ops[0] }
func (s *Binary) Rhs() Stmt { return s.ops[1] }

// LoopIndex reads the induction variable of an enclosing RangeFor, which
// it references as its single operand.
type LoopIndex struct {
	stmtBase
	Dim int
}

func (*LoopIndex) Kind() Kind  { return KindLoopIndex }
func (s *LoopIndex) Loop() Stmt { return s.ops[0] }

// Address names a cell of a sparse field; its operands are the index
// expressions. Activate marks that touching the cell must first
// materialize its backing storage, which is an observable effect.
type Address struct {
	stmtBase
	Field    FieldID
	Activate bool
}

func (*Address) Kind() Kind        { return KindAddress }
func (s *Address) Indices() []Stmt { return s.ops }

// LoopUnique wraps a value known to take distinct values across the
// iterations of its loop. Covers is the set of fields the value is known
// to uniquely index; merging two equivalent LoopUniques unions it.
type LoopUnique struct {
	stmtBase
	Covers *set.Set[FieldID]
}

func (*LoopUnique) Kind() Kind   { return KindLoopUnique }
func (s *LoopUnique) Input() Stmt { return s.ops[0] }

type Load struct {
	stmtBase
}

func (*Load) Kind() Kind      { return KindLoad }
func (s *Load) Address() Stmt { return s.ops[0] }

type Store struct {
	stmtBase
}

func (*Store) Kind() Kind       { return KindStore }
func (s *Store) Address() Stmt  { return s.ops[0] }
func (s *Store) Value() Stmt    { return s.ops[1] }

// If is a two-armed conditional; either arm may be nil (absent).
type If struct {
	stmtBase
	Then *Block
	Else *Block
}

func (*If) Kind() Kind     { return KindIf }
func (s *If) Cond() Stmt   { return s.ops[0] }

// SetThen replaces the true arm; a nil block detaches it.
func (s *If) SetThen(b *Block) {
	if b != nil {
		b.container = s
	}
	s.Then = b
}

// SetElse replaces the false arm; a nil block detaches it.
func (s *If) SetElse(b *Block) {
	if b != nil {
		b.container = s
	}
	s.Else = b
}

// RangeFor iterates an induction variable over [Begin, End).
type RangeFor struct {
	stmtBase
	Body *Block
}

func (*RangeFor) Kind() Kind    { return KindRangeFor }
func (s *RangeFor) Begin() Stmt { return s.ops[0] }
func (s *RangeFor) End() Stmt   { return s.ops[1] }

package ir

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-set/v3"
)

// Kernel is the root of one kernel's statement tree, and the allocator
// of statement ids within it.
type Kernel struct {
	Name   string
	Args   int
	Fields []FieldID
	Body   *Block

	nextID StmtID
}

func NewKernel(name string, args int) *Kernel {
	return &Kernel{
		Name: name,
		Args: args,
		Body: &Block{},
	}
}

// DeclareField registers a sparse field. Declaring the same field twice
// is a front-end bug.
func (k *Kernel) DeclareField(f FieldID) {
	if slices.Contains(k.Fields, f) {
		panic(fmt.Sprintf("ir: field %s declared twice", f))
	}
	k.Fields = append(k.Fields, f)
}

func (k *Kernel) allocID() StmtID {
	k.nextID++
	return k.nextID
}

func (k *Kernel) newBase(ops ...Stmt) stmtBase {
	return stmtBase{id: k.allocID(), ops: ops}
}

// The constructors below allocate detached statements; attach them with
// Block.Append or the insertion methods.

func (k *Kernel) NewConst(v int64) *Const {
	return &Const{stmtBase: k.newBase(), Value: v}
}

func (k *Kernel) NewArgLoad(arg int) *ArgLoad {
	if arg < 0 || arg >= k.Args {
		panic(fmt.Sprintf("ir: kernel %s has no argument %d", k.Name, arg))
	}
	return &ArgLoad{stmtBase: k.newBase(), Arg: arg}
}

func (k *Kernel) NewUnary(op UnaryOp, x Stmt) *Unary {
	return &Unary{stmtBase: k.newBase(x), Op: op}
}

func (k *Kernel) NewBinary(op BinaryOp, lhs, rhs Stmt) *Binary {
	return &Binary{stmtBase: k.newBase(lhs, rhs), Op: op}
}

func (k *Kernel) NewLoopIndex(loop Stmt, dim int) *LoopIndex {
	if loop.Kind() != KindRangeFor {
		panic(fmt.Sprintf("ir: loop index over non-loop statement $%d", loop.ID()))
	}
	return &LoopIndex{stmtBase: k.newBase(loop), Dim: dim}
}

func (k *Kernel) NewAddress(field FieldID, activate bool, indices ...Stmt) *Address {
	if !slices.Contains(k.Fields, field) {
		panic(fmt.Sprintf("ir: kernel %s has no field %s", k.Name, field))
	}
	return &Address{stmtBase: k.newBase(indices...), Field: field, Activate: activate}
}

func (k *Kernel) NewLoopUnique(input Stmt, covers *set.Set[FieldID]) *LoopUnique {
	if covers == nil {
		covers = set.New[FieldID](0)
	}
	return &LoopUnique{stmtBase: k.newBase(input), Covers: covers}
}

func (k *Kernel) NewLoad(addr Stmt) *Load {
	return &Load{stmtBase: k.newBase(addr)}
}

func (k *Kernel) NewStore(addr, value Stmt) *Store {
	return &Store{stmtBase: k.newBase(addr, value)}
}

// NewIf allocates a conditional with both arms absent.
func (k *Kernel) NewIf(cond Stmt) *If {
	return &If{stmtBase: k.newBase(cond)}
}

func (k *Kernel) NewRangeFor(begin, end Stmt) *RangeFor {
	s := &RangeFor{stmtBase: k.newBase(begin, end)}
	s.Body = &Block{container: s}
	return s
}

package ir

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-set/v3"
	"github.com/tessel-lang/tessel/util"
)

// Walk visits every statement under b in program order, visiting a
// container statement before descending into its nested blocks.
func Walk(b *Block, visit func(Stmt)) {
	if b == nil {
		return
	}
	for _, s := range b.stmts {
		visit(s)
		switch s := s.(type) {
		case *If:
			Walk(s.Then, visit)
			Walk(s.Else, visit)
		case *RangeFor:
			Walk(s.Body, visit)
		}
	}
}

// HasOperand reports whether s reads candidate directly.
func HasOperand(s Stmt, candidate Stmt) bool {
	for _, op := range s.base().ops {
		if op == candidate {
			return true
		}
	}
	return false
}

// ReplaceAllUsages rewires every reference to old under b to point at
// replacement instead.
func ReplaceAllUsages(b *Block, old, replacement Stmt) {
	Walk(b, func(s Stmt) {
		ops := s.base().ops
		for i, op := range ops {
			if op == old {
				ops[i] = replacement
			}
		}
	})
}

// FieldsReferenced collects the fields addressed anywhere in the kernel.
func FieldsReferenced(k *Kernel) *set.Set[FieldID] {
	var fields []FieldID
	Walk(k.Body, func(s Stmt) {
		if addr, ok := s.(*Address); ok {
			fields = append(fields, addr.Field)
		}
	})
	return util.SetFromSeq(slices.Values(fields), len(fields))
}

func sameOperands(a, b []Stmt) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SameStatements reports structural equivalence between two statements,
// ignoring their identity: same shape, same payload, and operands that
// are the very same nodes. Container statements are only equivalent to
// themselves.
func SameStatements(a, b Stmt) bool {
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Const:
		return a.Value == b.(*Const).Value
	case *ArgLoad:
		return a.Arg == b.(*ArgLoad).Arg
	case *Unary:
		return a.Op == b.(*Unary).Op && sameOperands(a.ops, b.base().ops)
	case *Binary:
		return a.Op == b.(*Binary).Op && sameOperands(a.ops, b.base().ops)
	case *LoopIndex:
		return a.Dim == b.(*LoopIndex).Dim && sameOperands(a.ops, b.base().ops)
	case *Address:
		other := b.(*Address)
		return a.Field == other.Field && a.Activate == other.Activate && sameOperands(a.ops, other.ops)
	case *LoopUnique:
		return sameOperands(a.ops, b.base().ops) && a.Covers.Equal(b.(*LoopUnique).Covers)
	case *Load:
		return sameOperands(a.ops, b.base().ops)
	case *Store:
		return sameOperands(a.ops, b.base().ops)
	case *If, *RangeFor:
		return false
	default:
		panic(fmt.Sprintf("ir: unknown statement kind %v", a.Kind()))
	}
}

// SameValue reports whether two pure statements provably compute the
// same value, comparing their operand trees recursively rather than by
// identity.
func SameValue(a, b Stmt) bool {
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Const:
		return a.Value == b.(*Const).Value
	case *ArgLoad:
		return a.Arg == b.(*ArgLoad).Arg
	case *Unary:
		return a.Op == b.(*Unary).Op && sameValues(a.ops, b.base().ops)
	case *Binary:
		return a.Op == b.(*Binary).Op && sameValues(a.ops, b.base().ops)
	case *LoopIndex:
		// distinct loops produce unrelated index values, so the loop
		// operand must be the same node
		return a.Dim == b.(*LoopIndex).Dim && sameOperands(a.ops, b.base().ops)
	case *Address:
		other := b.(*Address)
		return a.Field == other.Field && a.Activate == other.Activate && sameValues(a.ops, other.ops)
	case *LoopUnique:
		return sameValues(a.ops, b.base().ops)
	case *Load, *Store, *If, *RangeFor:
		// loads depend on memory state, the rest are not values
		return false
	default:
		panic(fmt.Sprintf("ir: unknown statement kind %v", a.Kind()))
	}
}

func sameValues(a, b []Stmt) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !SameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

// SameAddress reports whether two address statements provably name the
// same cell, regardless of their activation flags.
func SameAddress(a, b *Address) bool {
	return a.Field == b.Field && sameValues(a.ops, b.ops)
}

// Package transform holds the optimization passes run over kernel IR.
package transform

import (
	"fmt"
	"log/slog"

	"github.com/benbjohnson/immutable"
	"github.com/tessel-lang/tessel/internal/log"
	"github.com/tessel-lang/tessel/ir"
	"github.com/tessel-lang/tessel/util"
)

var logger = log.DefaultLogger.With(slog.String("section", "transform"))

// table maps each statement kind to the candidates visible for reuse at
// one lexical scope.
type table map[ir.Kind]util.MSet[ir.Stmt]

// Result describes one full run of whole-kernel CSE over a kernel.
type Result struct {
	Modified   bool
	Iterations int
	// Eliminated holds the ids of every statement removed across all
	// fixpoint iterations.
	Eliminated immutable.Set[ir.StmtID]
}

// WholeKernelCSE eliminates duplicated side-effect-free computations
// across the whole kernel body, destructively. It reports whether the
// tree changed.
func WholeKernelCSE(k *ir.Kernel) bool {
	return Eliminate(k).Modified
}

// Eliminate is WholeKernelCSE with a detailed result. The pass repeats
// whole-tree traversals until one commits no edits: a merge or hoist can
// reshape the tree so that further statements become equivalent, so a
// single traversal is not enough.
func Eliminate(k *ir.Kernel) Result {
	pass := &wholeKernelCSE{
		root:    k.Body,
		visited: util.NewEmptySet[ir.StmtID](),
		removed: util.NewEmptySet[ir.StmtID](),
	}
	var res Result
	for {
		// candidate tables are rebuilt from scratch each traversal as
		// blocks are entered; only the done set carries over
		pass.visitBlock(k.Body)
		res.Iterations++
		if !pass.mod.apply() {
			break
		}
		res.Modified = true
	}
	res.Eliminated = pass.removed.Immutable(stmtIDHasher{})
	logger.Debug("whole-kernel CSE finished",
		slog.String("kernel", k.Name),
		slog.Int("iterations", res.Iterations),
		slog.Int("eliminated", res.Eliminated.Len()))
	return res
}

type stmtIDHasher struct{}

func (stmtIDHasher) Hash(id ir.StmtID) uint32 { return uint32(id) }
func (stmtIDHasher) Equal(a, b ir.StmtID) bool { return a == b }

type wholeKernelCSE struct {
	root *ir.Block
	// visited is the done set: ids already compared against every
	// enclosing scope and registered as candidates
	visited util.MSet[ir.StmtID]
	scopes  util.Stack[table]
	mod     delayedModifier
	removed util.MSet[ir.StmtID]
}

func (p *wholeKernelCSE) visitBlock(b *ir.Block) {
	p.scopes.Push(table{})
	for _, s := range b.Stmts() {
		switch s := s.(type) {
		case *ir.If:
			p.visitIf(s)
		case *ir.RangeFor:
			p.visitBlock(s.Body)
		default:
			p.visitLeaf(s)
		}
	}
	p.scopes.Pop()
}

func (p *wholeKernelCSE) visitLeaf(s ir.Stmt) {
	if !ir.Eligible(s) {
		return
	}
	if p.visited.Contains(s.ID()) {
		// settled in an earlier traversal, but the tables are fresh so
		// it must be made visible again
		p.register(s)
		return
	}
	for scope := range p.scopes.FromBottom() {
		for prev := range scope[s.Kind()].All() {
			if !commonStatementEliminable(s, prev) {
				continue
			}
			// matching may have mutated prev's metadata and will
			// remove s: every dependent must be re-examined
			markUndone(p.root, p.visited, s)
			ir.ReplaceAllUsages(p.root, s, prev)
			p.mod.erase(s)
			p.removed.Add(s.ID())
			logger.Debug("merged duplicate statement",
				slog.Any("dup", ir.SlogStmt(s)), slog.Any("into", ir.SlogStmt(prev)))
			return
		}
	}
	p.register(s)
	p.visited.Add(s.ID())
}

func (p *wholeKernelCSE) register(s ir.Stmt) {
	top, ok := p.scopes.Peek()
	if !ok {
		panic("transform: statement visited outside any scope")
	}
	cands, ok := top[s.Kind()]
	if !ok {
		cands = util.NewEmptySet[ir.Stmt]()
		top[s.Kind()] = cands
	}
	cands.Add(s)
}

// commonStatementEliminable decides whether this may be eliminated in
// favour of prev, given that prev appears before it and shares its kind.
func commonStatementEliminable(this, prev ir.Stmt) bool {
	if this.Kind() != prev.Kind() {
		panic(fmt.Sprintf("transform: comparing %v against %v candidate", this.Kind(), prev.Kind()))
	}
	switch this := this.(type) {
	case *ir.Address:
		prevAddr := prev.(*ir.Address)
		// an earlier activating access subsumes either flag on the
		// later one; a later activation is never subsumed by an
		// earlier plain access
		return ir.SameAddress(this, prevAddr) &&
			(this.Activate == prevAddr.Activate || prevAddr.Activate)
	case *ir.LoopUnique:
		prevUnique := prev.(*ir.LoopUnique)
		if ir.SameValue(this.Input(), prevUnique.Input()) {
			// merge coverage into the survivor; this.Covers is dead
			// once the match erases the statement
			prevUnique.Covers.InsertSlice(this.Covers.Slice())
			return true
		}
		return false
	default:
		return ir.SameStatements(this, prev)
	}
}

// visitIf prunes empty arms, hoists one shared leading and one shared
// trailing statement out of the arms, then descends. Deeper shared
// prefixes surface across later fixpoint iterations.
func (p *wholeKernelCSE) visitIf(s *ir.If) {
	if s.Then != nil && s.Then.Len() == 0 {
		s.SetThen(nil)
	}
	if s.Else != nil && s.Else.Len() == 0 {
		s.SetElse(nil)
	}

	if s.Then != nil && s.Else != nil {
		if ir.SameStatements(s.Then.At(0), s.Else.At(0)) {
			// mutating the arms directly is safe here: only the
			// insertion into the enclosing block must be deferred
			common := s.Then.Extract(0)
			dup := s.Else.At(0)
			ir.ReplaceAllUsages(s.Else, dup, common)
			p.mod.insertBefore(s, common)
			s.Else.Erase(0)
			p.removed.Add(dup.ID())
			logger.Debug("hoisted shared statement before conditional",
				slog.Any("stmt", ir.SlogStmt(common)))
		}
		if s.Then.Len() > 0 && s.Else.Len() > 0 &&
			ir.SameStatements(s.Then.At(s.Then.Len()-1), s.Else.At(s.Else.Len()-1)) {
			common := s.Then.Extract(s.Then.Len() - 1)
			dup := s.Else.At(s.Else.Len() - 1)
			ir.ReplaceAllUsages(s.Else, dup, common)
			p.mod.insertAfter(s, common)
			s.Else.Erase(s.Else.Len() - 1)
			p.removed.Add(dup.ID())
			logger.Debug("hoisted shared statement after conditional",
				slog.Any("stmt", ir.SlogStmt(common)))
		}
	}

	if s.Then != nil {
		p.visitBlock(s.Then)
	}
	if s.Else != nil {
		p.visitBlock(s.Else)
	}
}

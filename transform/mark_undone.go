package transform

import (
	"github.com/tessel-lang/tessel/ir"
	"github.com/tessel-lang/tessel/util"
)

// markUndone clears the done status of every statement that reads
// modified, container statements included. Matching mutates the retained
// statement's metadata and removes the duplicate, so any conclusion a
// dependent statement reached about either is stale and must be redrawn
// on its next visit. The walk spans the whole kernel: dependents are not
// confined to the scope the match happened in.
func markUndone(root *ir.Block, done util.MSet[ir.StmtID], modified ir.Stmt) {
	ir.Walk(root, func(s ir.Stmt) {
		if ir.HasOperand(s, modified) {
			done.Remove(s.ID())
		}
	})
}

package transform

import "github.com/tessel-lang/tessel/ir"

type editKind int

const (
	editErase editKind = iota
	editInsertBefore
	editInsertAfter
)

type edit struct {
	kind editKind
	// target is the statement being erased, or the one insertions are
	// anchored to.
	target ir.Stmt
	node   ir.Stmt
}

// delayedModifier buffers structural edits found during a traversal so
// the traversal never mutates a block it is iterating. Edits are located
// by statement identity when applied, so earlier edits cannot shift the
// positions later ones resolve to.
type delayedModifier struct {
	edits []edit
}

func (m *delayedModifier) erase(s ir.Stmt) {
	m.edits = append(m.edits, edit{kind: editErase, target: s})
}

func (m *delayedModifier) insertBefore(anchor, node ir.Stmt) {
	m.edits = append(m.edits, edit{kind: editInsertBefore, target: anchor, node: node})
}

func (m *delayedModifier) insertAfter(anchor, node ir.Stmt) {
	m.edits = append(m.edits, edit{kind: editInsertAfter, target: anchor, node: node})
}

// apply commits the buffered batch and reports whether it held anything.
func (m *delayedModifier) apply() bool {
	if len(m.edits) == 0 {
		return false
	}
	for _, e := range m.edits {
		parent := e.target.Parent()
		switch e.kind {
		case editErase:
			parent.Erase(parent.IndexOf(e.target))
		case editInsertBefore:
			parent.InsertBefore(e.target, e.node)
		case editInsertAfter:
			parent.InsertAfter(e.target, e.node)
		}
	}
	m.edits = m.edits[:0]
	return true
}

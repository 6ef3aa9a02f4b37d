package ir

import (
	"fmt"
	"slices"
	"strings"
)

// KernelString renders the kernel in the textual form understood by the
// parser package.
func KernelString(k *Kernel) string {
	ctx := newShowContext()
	ctx.WriteString(fmt.Sprintf("kernel %s(args = %d) {\n", k.Name, k.Args))
	ctx.indent++
	for _, f := range k.Fields {
		ctx.WriteString(ctx.currentIndent())
		ctx.WriteString(fmt.Sprintf("field %s\n", f))
	}
	ctx.showBlock(k.Body)
	ctx.indent--
	ctx.WriteString("}\n")
	return ctx.String()
}

// StmtString renders a single statement on one line, for logs and test
// failures.
func StmtString(s Stmt) string {
	ctx := newShowContext()
	ctx.showStmt(s)
	return strings.TrimRight(ctx.String(), "\n")
}

type showContext struct {
	*strings.Builder
	indent    int
	indentStr string
}

func newShowContext() *showContext {
	return &showContext{
		Builder:   &strings.Builder{},
		indentStr: "  ",
	}
}

func (ctx *showContext) currentIndent() string {
	return strings.Repeat(ctx.indentStr, ctx.indent)
}

func (ctx *showContext) showBlock(b *Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts() {
		ctx.WriteString(ctx.currentIndent())
		ctx.showStmt(s)
	}
}

func ref(s Stmt) string {
	return fmt.Sprintf("$%d", s.ID())
}

func (ctx *showContext) showStmt(s Stmt) {
	switch s := s.(type) {
	case *Const:
		ctx.WriteString(fmt.Sprintf("%s = const %d\n", ref(s), s.Value))
	case *ArgLoad:
		ctx.WriteString(fmt.Sprintf("%s = arg %d\n", ref(s), s.Arg))
	case *Unary:
		ctx.WriteString(fmt.Sprintf("%s = %s %s\n", ref(s), s.Op, ref(s.X())))
	case *Binary:
		ctx.WriteString(fmt.Sprintf("%s = %s %s %s\n", ref(s), s.Op, ref(s.Lhs()), ref(s.Rhs())))
	case *LoopIndex:
		ctx.WriteString(fmt.Sprintf("%s = index %s %d\n", ref(s), ref(s.Loop()), s.Dim))
	case *Address:
		ctx.WriteString(fmt.Sprintf("%s = addr %s[%s]", ref(s), s.Field, refList(s.Indices())))
		if s.Activate {
			ctx.WriteString(" activate")
		}
		ctx.WriteString("\n")
	case *LoopUnique:
		covers := s.Covers.Slice()
		slices.Sort(covers)
		names := make([]string, len(covers))
		for i, f := range covers {
			names[i] = string(f)
		}
		ctx.WriteString(fmt.Sprintf("%s = unique %s covers(%s)\n", ref(s), ref(s.Input()), strings.Join(names, ", ")))
	case *Load:
		ctx.WriteString(fmt.Sprintf("%s = load %s\n", ref(s), ref(s.Address())))
	case *Store:
		ctx.WriteString(fmt.Sprintf("store %s, %s\n", ref(s.Address()), ref(s.Value())))
	case *If:
		ctx.WriteString(fmt.Sprintf("if %s {\n", ref(s.Cond())))
		ctx.indent++
		ctx.showBlock(s.Then)
		ctx.indent--
		if s.Else != nil {
			ctx.WriteString(ctx.currentIndent() + "} else {\n")
			ctx.indent++
			ctx.showBlock(s.Else)
			ctx.indent--
		}
		ctx.WriteString(ctx.currentIndent() + "}\n")
	case *RangeFor:
		ctx.WriteString(fmt.Sprintf("for %s in range(%s, %s) {\n", ref(s), ref(s.Begin()), ref(s.End())))
		ctx.indent++
		ctx.showBlock(s.Body)
		ctx.indent--
		ctx.WriteString(ctx.currentIndent() + "}\n")
	default:
		panic(fmt.Sprintf("ir: unknown statement kind %v", s.Kind()))
	}
}

func refList(stmts []Stmt) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = ref(s)
	}
	return strings.Join(parts, ", ")
}

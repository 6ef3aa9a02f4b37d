// Package backend lowers kernel IR to Go and executes it with yaegi.
// Fields become map globals, so which cells exist after a run is
// observable and sparse-activation bugs show up as differing outcomes.
package backend

import (
	"fmt"
	goast "go/ast"
	"go/token"
	"strconv"

	"github.com/tessel-lang/tessel/ir"
)

const goVersion = "1.23.3"

// Program is a kernel plus the concrete inputs of one run.
type Program struct {
	Kernel *ir.Kernel
	Args   []int64
	// Fields holds initial cell contents per field; fields left out
	// start empty.
	Fields map[ir.FieldID]map[int64]int64
}

type Transpiler struct{}

// TranspileProgram lowers the program to a self-contained `package main`
// file: field and activation-record globals, the kernel as a function of
// its scalar arguments, and a global initializer that invokes it.
func (tp *Transpiler) TranspileProgram(p Program) (*goast.File, error) {
	if len(p.Args) != p.Kernel.Args {
		return nil, fmt.Errorf("kernel %s takes %d arguments, got %d", p.Kernel.Name, p.Kernel.Args, len(p.Args))
	}

	var decls []goast.Decl
	for _, f := range p.Kernel.Fields {
		decls = append(decls,
			varDecl(fieldVar(f), mapLit(p.Fields[f])),
			varDecl(activationVar(f), &goast.CompositeLit{Type: actMapType()}),
		)
	}
	decls = append(decls, b2iDecl())

	body, err := tp.transpileBlock(p.Kernel.Body)
	if err != nil {
		return nil, err
	}
	decls = append(decls, kernelDecl(p.Kernel.Args, body), runDecl(p.Args),
		varDecl("Done", &goast.CallExpr{Fun: goast.NewIdent("run")}))

	return &goast.File{
		Name:      goast.NewIdent("main"),
		GoVersion: goVersion,
		Decls:     decls,
	}, nil
}

func (tp *Transpiler) transpileBlock(b *ir.Block) ([]goast.Stmt, error) {
	var out []goast.Stmt
	if b == nil {
		return out, nil
	}
	for _, s := range b.Stmts() {
		stmts, err := tp.transpileStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (tp *Transpiler) transpileStmt(s ir.Stmt) ([]goast.Stmt, error) {
	switch s := s.(type) {
	case *ir.Const:
		return defineDiscarded(s, &goast.CallExpr{
			Fun:  goast.NewIdent("int64"),
			Args: []goast.Expr{intLit(s.Value)},
		}), nil

	case *ir.ArgLoad:
		return defineDiscarded(s, goast.NewIdent(argVar(s.Arg))), nil

	case *ir.Unary:
		switch s.Op {
		case ir.UnaryNeg:
			return defineDiscarded(s, &goast.UnaryExpr{Op: token.SUB, X: local(s.X())}), nil
		default:
			return nil, fmt.Errorf("unary op %v not lowered", s.Op)
		}

	case *ir.Binary:
		return tp.transpileBinary(s)

	case *ir.LoopIndex:
		if s.Dim != 0 {
			return nil, fmt.Errorf("loop index dimension %d not lowered: range loops are one-dimensional", s.Dim)
		}
		return defineDiscarded(s, goast.NewIdent(loopVar(s.Loop()))), nil

	case *ir.Address:
		return tp.transpileAddress(s)

	case *ir.LoopUnique:
		return defineDiscarded(s, local(s.Input())), nil

	case *ir.Load:
		field, err := addressField(s.Address())
		if err != nil {
			return nil, err
		}
		return defineDiscarded(s, &goast.IndexExpr{
			X:     goast.NewIdent(fieldVar(field)),
			Index: local(s.Address()),
		}), nil

	case *ir.Store:
		field, err := addressField(s.Address())
		if err != nil {
			return nil, err
		}
		return []goast.Stmt{&goast.AssignStmt{
			Lhs: []goast.Expr{&goast.IndexExpr{
				X:     goast.NewIdent(fieldVar(field)),
				Index: local(s.Address()),
			}},
			Tok: token.ASSIGN,
			Rhs: []goast.Expr{local(s.Value())},
		}}, nil

	case *ir.If:
		return tp.transpileIf(s)

	case *ir.RangeFor:
		body, err := tp.transpileBlock(s.Body)
		if err != nil {
			return nil, err
		}
		v := loopVar(s)
		return []goast.Stmt{&goast.ForStmt{
			Init: define(v, local(s.Begin())),
			Cond: &goast.BinaryExpr{X: goast.NewIdent(v), Op: token.LSS, Y: local(s.End())},
			Post: &goast.IncDecStmt{X: goast.NewIdent(v), Tok: token.INC},
			Body: &goast.BlockStmt{List: body},
		}}, nil

	default:
		return nil, fmt.Errorf("statement kind %v not lowered", s.Kind())
	}
}

var binaryTokens = map[ir.BinaryOp]token.Token{
	ir.BinAdd: token.ADD,
	ir.BinSub: token.SUB,
	ir.BinMul: token.MUL,
	ir.BinDiv: token.QUO,
	ir.BinMod: token.REM,
	ir.BinLt:  token.LSS,
	ir.BinLe:  token.LEQ,
	ir.BinEq:  token.EQL,
	ir.BinNe:  token.NEQ,
}

func (tp *Transpiler) transpileBinary(s *ir.Binary) ([]goast.Stmt, error) {
	lhs, rhs := local(s.Lhs()), local(s.Rhs())
	switch s.Op {
	case ir.BinAdd, ir.BinSub, ir.BinMul, ir.BinDiv, ir.BinMod:
		return defineDiscarded(s, &goast.BinaryExpr{X: lhs, Op: binaryTokens[s.Op], Y: rhs}), nil

	case ir.BinLt, ir.BinLe, ir.BinEq, ir.BinNe:
		return defineDiscarded(s, &goast.CallExpr{
			Fun:  goast.NewIdent("b2i"),
			Args: []goast.Expr{&goast.BinaryExpr{X: lhs, Op: binaryTokens[s.Op], Y: rhs}},
		}), nil

	case ir.BinMin, ir.BinMax:
		cmp := token.LSS
		if s.Op == ir.BinMax {
			cmp = token.GTR
		}
		v := local(s)
		stmts := []goast.Stmt{
			define(v.Name, lhs),
			&goast.IfStmt{
				Cond: &goast.BinaryExpr{X: rhs, Op: cmp, Y: v},
				Body: &goast.BlockStmt{List: []goast.Stmt{&goast.AssignStmt{
					Lhs: []goast.Expr{v},
					Tok: token.ASSIGN,
					Rhs: []goast.Expr{rhs},
				}}},
			},
		}
		return append(stmts, discard(v.Name)), nil

	default:
		return nil, fmt.Errorf("binary op %v not lowered", s.Op)
	}
}

// transpileAddress lowers an address statement to its cell index and, if
// activating, materializes the cell and records the activation.
func (tp *Transpiler) transpileAddress(s *ir.Address) ([]goast.Stmt, error) {
	if len(s.Indices()) != 1 {
		return nil, fmt.Errorf("address with %d indices not lowered: fields are one-dimensional", len(s.Indices()))
	}
	stmts := defineDiscarded(s, local(s.Indices()[0]))
	if !s.Activate {
		return stmts, nil
	}
	fld := goast.NewIdent(fieldVar(s.Field))
	cell := func() *goast.IndexExpr { return &goast.IndexExpr{X: fld, Index: local(s)} }
	stmts = append(stmts,
		// materialize the cell on first touch
		&goast.IfStmt{
			Init: &goast.AssignStmt{
				Lhs: []goast.Expr{goast.NewIdent("_"), goast.NewIdent("ok")},
				Tok: token.DEFINE,
				Rhs: []goast.Expr{cell()},
			},
			Cond: &goast.UnaryExpr{Op: token.NOT, X: goast.NewIdent("ok")},
			Body: &goast.BlockStmt{List: []goast.Stmt{&goast.AssignStmt{
				Lhs: []goast.Expr{cell()},
				Tok: token.ASSIGN,
				Rhs: []goast.Expr{intLit(0)},
			}}},
		},
		&goast.AssignStmt{
			Lhs: []goast.Expr{&goast.IndexExpr{
				X:     goast.NewIdent(activationVar(s.Field)),
				Index: local(s),
			}},
			Tok: token.ASSIGN,
			Rhs: []goast.Expr{goast.NewIdent("true")},
		},
	)
	return stmts, nil
}

func (tp *Transpiler) transpileIf(s *ir.If) ([]goast.Stmt, error) {
	thenStmts, err := tp.transpileBlock(s.Then)
	if err != nil {
		return nil, err
	}
	elseStmts, err := tp.transpileBlock(s.Else)
	if err != nil {
		return nil, err
	}
	ifStmt := &goast.IfStmt{
		Cond: &goast.BinaryExpr{X: local(s.Cond()), Op: token.NEQ, Y: intLit(0)},
		Body: &goast.BlockStmt{List: thenStmts},
	}
	if len(elseStmts) > 0 {
		ifStmt.Else = &goast.BlockStmt{List: elseStmts}
	}
	return []goast.Stmt{ifStmt}, nil
}

func addressField(s ir.Stmt) (ir.FieldID, error) {
	addr, ok := s.(*ir.Address)
	if !ok {
		return "", fmt.Errorf("memory access through non-address statement $%d", s.ID())
	}
	return addr.Field, nil
}

// naming helpers

func local(s ir.Stmt) *goast.Ident     { return goast.NewIdent(fmt.Sprintf("s%d", s.ID())) }
func loopVar(s ir.Stmt) string         { return fmt.Sprintf("i%d", s.ID()) }
func argVar(n int) string              { return fmt.Sprintf("a%d", n) }
func fieldVar(f ir.FieldID) string     { return "fld_" + string(f) }
func activationVar(f ir.FieldID) string { return "act_" + string(f) }

// ast helpers

func intLit(v int64) goast.Expr {
	if v < 0 {
		return &goast.UnaryExpr{Op: token.SUB, X: intLit(-v)}
	}
	return &goast.BasicLit{Kind: token.INT, Value: strconv.FormatInt(v, 10)}
}

func define(name string, rhs goast.Expr) *goast.AssignStmt {
	return &goast.AssignStmt{
		Lhs: []goast.Expr{goast.NewIdent(name)},
		Tok: token.DEFINE,
		Rhs: []goast.Expr{rhs},
	}
}

// discard keeps a generated local alive: Go refuses to compile an unused
// variable, and whether a statement still has users after optimization
// is none of the generated code's business.
func discard(name string) *goast.AssignStmt {
	return &goast.AssignStmt{
		Lhs: []goast.Expr{goast.NewIdent("_")},
		Tok: token.ASSIGN,
		Rhs: []goast.Expr{goast.NewIdent(name)},
	}
}

func defineDiscarded(s ir.Stmt, rhs goast.Expr) []goast.Stmt {
	name := local(s).Name
	return []goast.Stmt{define(name, rhs), discard(name)}
}

func varDecl(name string, value goast.Expr) goast.Decl {
	return &goast.GenDecl{
		Tok: token.VAR,
		Specs: []goast.Spec{&goast.ValueSpec{
			Names:  []*goast.Ident{goast.NewIdent(name)},
			Values: []goast.Expr{value},
		}},
	}
}

func fieldMapType() *goast.MapType {
	return &goast.MapType{Key: goast.NewIdent("int64"), Value: goast.NewIdent("int64")}
}

func actMapType() *goast.MapType {
	return &goast.MapType{Key: goast.NewIdent("int64"), Value: goast.NewIdent("bool")}
}

func mapLit(contents map[int64]int64) goast.Expr {
	lit := &goast.CompositeLit{Type: fieldMapType()}
	for _, k := range sortedKeys(contents) {
		lit.Elts = append(lit.Elts, &goast.KeyValueExpr{
			Key:   intLit(k),
			Value: intLit(contents[k]),
		})
	}
	return lit
}

func sortedKeys(m map[int64]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func b2iDecl() goast.Decl {
	return &goast.FuncDecl{
		Name: goast.NewIdent("b2i"),
		Type: &goast.FuncType{
			Params: &goast.FieldList{List: []*goast.Field{{
				Names: []*goast.Ident{goast.NewIdent("b")},
				Type:  goast.NewIdent("bool"),
			}}},
			Results: &goast.FieldList{List: []*goast.Field{{Type: goast.NewIdent("int64")}}},
		},
		Body: &goast.BlockStmt{List: []goast.Stmt{
			&goast.IfStmt{
				Cond: goast.NewIdent("b"),
				Body: &goast.BlockStmt{List: []goast.Stmt{
					&goast.ReturnStmt{Results: []goast.Expr{intLit(1)}},
				}},
			},
			&goast.ReturnStmt{Results: []goast.Expr{intLit(0)}},
		}},
	}
}

func kernelDecl(args int, body []goast.Stmt) goast.Decl {
	params := &goast.FieldList{}
	for i := 0; i < args; i++ {
		params.List = append(params.List, &goast.Field{
			Names: []*goast.Ident{goast.NewIdent(argVar(i))},
			Type:  goast.NewIdent("int64"),
		})
	}
	return &goast.FuncDecl{
		Name: goast.NewIdent("kernel"),
		Type: &goast.FuncType{Params: params},
		Body: &goast.BlockStmt{List: body},
	}
}

// runDecl emits the run function invoked by the `Done` global, so
// evaluating the file in yaegi executes the kernel as part of global
// initialization.
func runDecl(args []int64) goast.Decl {
	callArgs := make([]goast.Expr, len(args))
	for i, v := range args {
		callArgs[i] = &goast.CallExpr{Fun: goast.NewIdent("int64"), Args: []goast.Expr{intLit(v)}}
	}
	return &goast.FuncDecl{
		Name: goast.NewIdent("run"),
		Type: &goast.FuncType{
			Results: &goast.FieldList{List: []*goast.Field{{Type: goast.NewIdent("bool")}}},
		},
		Body: &goast.BlockStmt{List: []goast.Stmt{
			&goast.ExprStmt{X: &goast.CallExpr{Fun: goast.NewIdent("kernel"), Args: callArgs}},
			&goast.ReturnStmt{Results: []goast.Expr{goast.NewIdent("true")}},
		}},
	}
}

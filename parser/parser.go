package parser

import (
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"github.com/tessel-lang/tessel/ir"
)

var binaryOps = map[string]ir.BinaryOp{
	"add": ir.BinAdd,
	"sub": ir.BinSub,
	"mul": ir.BinMul,
	"div": ir.BinDiv,
	"mod": ir.BinMod,
	"min": ir.BinMin,
	"max": ir.BinMax,
	"lt":  ir.BinLt,
	"le":  ir.BinLe,
	"eq":  ir.BinEq,
	"ne":  ir.BinNe,
}

var unaryOps = map[string]ir.UnaryOp{
	"neg": ir.UnaryNeg,
}

type parser struct {
	lines []string
	pos   int // zero-based index of the next line
	k     *ir.Kernel
	named map[string]ir.Stmt
	// introduced records definition order so names fall out of scope
	// when the block that defined them closes
	introduced []string
}

func (p *parser) errf(format string, args ...interface{}) error {
	return errors.Errorf("line %d: "+format, append([]interface{}{p.pos}, args...)...)
}

// next returns the tokens of the next non-blank line.
func (p *parser) next() ([]string, error) {
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		p.pos++
		toks := tokenize(line)
		if len(toks) > 0 {
			return toks, nil
		}
	}
	return nil, errors.New("unexpected end of input")
}

func isIdent(s string) bool {
	for i, c := range s {
		letter := c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
		digit := '0' <= c && c <= '9'
		if !letter && !(digit && i > 0) {
			return false
		}
	}
	return len(s) > 0
}

func tokenize(line string) []string {
	const punct = "(){}[],="
	var toks []string
	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case strings.IndexByte(punct, c) >= 0:
			toks = append(toks, string(c))
			i++
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != '\r' &&
				strings.IndexByte(punct, line[j]) < 0 {
				j++
			}
			toks = append(toks, line[i:j])
			i = j
		}
	}
	return toks
}

func (p *parser) parseKernel() (*ir.Kernel, error) {
	header, err := p.next()
	if err != nil {
		return nil, err
	}
	if len(header) != 8 || header[0] != "kernel" || header[2] != "(" ||
		header[3] != "args" || header[4] != "=" || header[6] != ")" || header[7] != "{" {
		return nil, p.errf("expected `kernel name(args = N) {`")
	}
	args, err := strconv.Atoi(header[5])
	if err != nil {
		return nil, errors.Wrapf(err, "line %d: bad argument count", p.pos)
	}
	p.k = ir.NewKernel(header[1], args)

	closer, err := p.parseBlock(p.k.Body, true)
	if err != nil {
		return nil, err
	}
	if len(closer) != 1 {
		return nil, p.errf("unexpected tokens after kernel body `}`")
	}
	for p.pos < len(p.lines) {
		if len(tokenize(p.lines[p.pos])) > 0 {
			return nil, p.errf("unexpected input after kernel")
		}
		p.pos++
	}
	return p.k, nil
}

// parseBlock fills b until the closing brace, returning the tokens of
// the closing line so `} else {` can be told apart from a plain `}`.
// Names defined inside the block go out of scope when it closes.
func (p *parser) parseBlock(b *ir.Block, top bool) ([]string, error) {
	mark := len(p.introduced)
	defer func() {
		for _, name := range p.introduced[mark:] {
			delete(p.named, name)
		}
		p.introduced = p.introduced[:mark]
	}()
	for {
		toks, err := p.next()
		if err != nil {
			return nil, err
		}
		if toks[0] == "}" {
			return toks, nil
		}
		if err := p.parseStmt(b, toks, top); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseStmt(b *ir.Block, toks []string, top bool) error {
	switch toks[0] {
	case "field":
		if !top {
			return p.errf("fields may only be declared at the top of the kernel")
		}
		if len(toks) != 2 {
			return p.errf("expected `field name`")
		}
		if !isIdent(toks[1]) {
			return p.errf("field names must be identifiers, got %q", toks[1])
		}
		f := ir.FieldID(toks[1])
		if slices.Contains(p.k.Fields, f) {
			return p.errf("field %s declared twice", f)
		}
		p.k.DeclareField(f)
		return nil

	case "store":
		// store $addr, $value
		if len(toks) != 4 || toks[2] != "," {
			return p.errf("expected `store $addr, $value`")
		}
		addr, err := p.lookup(toks[1])
		if err != nil {
			return err
		}
		value, err := p.lookup(toks[3])
		if err != nil {
			return err
		}
		b.Append(p.k.NewStore(addr, value))
		return nil

	case "if":
		// if $cond {
		if len(toks) != 3 || toks[2] != "{" {
			return p.errf("expected `if $cond {`")
		}
		cond, err := p.lookup(toks[1])
		if err != nil {
			return err
		}
		ifStmt := p.k.NewIf(cond)
		b.Append(ifStmt)
		ifStmt.SetThen(&ir.Block{})
		closer, err := p.parseBlock(ifStmt.Then, false)
		if err != nil {
			return err
		}
		if len(closer) == 3 && closer[1] == "else" && closer[2] == "{" {
			ifStmt.SetElse(&ir.Block{})
			closer, err = p.parseBlock(ifStmt.Else, false)
			if err != nil {
				return err
			}
		}
		if len(closer) != 1 {
			return p.errf("unexpected tokens after `}`")
		}
		return nil

	case "for":
		// for $n in range($begin, $end) {
		if len(toks) != 10 || toks[2] != "in" || toks[3] != "range" || toks[4] != "(" ||
			toks[6] != "," || toks[8] != ")" || toks[9] != "{" {
			return p.errf("expected `for $n in range($begin, $end) {`")
		}
		begin, err := p.lookup(toks[5])
		if err != nil {
			return err
		}
		end, err := p.lookup(toks[7])
		if err != nil {
			return err
		}
		loop := p.k.NewRangeFor(begin, end)
		if err := p.define(toks[1], loop); err != nil {
			return err
		}
		b.Append(loop)
		closer, err := p.parseBlock(loop.Body, false)
		if err != nil {
			return err
		}
		if len(closer) != 1 {
			return p.errf("unexpected tokens after `}`")
		}
		return nil
	}

	// $name = op ...
	if len(toks) < 3 || toks[1] != "=" {
		return p.errf("expected a statement, got %q", strings.Join(toks, " "))
	}
	s, err := p.parseAssign(toks[0], toks[2], toks[3:])
	if err != nil {
		return err
	}
	b.Append(s)
	return nil
}

func (p *parser) parseAssign(name, op string, rest []string) (ir.Stmt, error) {
	var s ir.Stmt
	switch {
	case op == "const":
		if len(rest) != 1 {
			return nil, p.errf("expected `const N`")
		}
		v, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: bad constant", p.pos)
		}
		s = p.k.NewConst(v)

	case op == "arg":
		if len(rest) != 1 {
			return nil, p.errf("expected `arg N`")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: bad argument index", p.pos)
		}
		if n < 0 || n >= p.k.Args {
			return nil, p.errf("kernel %s has no argument %d", p.k.Name, n)
		}
		s = p.k.NewArgLoad(n)

	case op == "index":
		if len(rest) != 2 {
			return nil, p.errf("expected `index $loop N`")
		}
		loop, err := p.lookup(rest[0])
		if err != nil {
			return nil, err
		}
		if loop.Kind() != ir.KindRangeFor {
			return nil, p.errf("%s is not a loop", rest[0])
		}
		dim, err := strconv.Atoi(rest[1])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: bad index dimension", p.pos)
		}
		s = p.k.NewLoopIndex(loop, dim)

	case op == "addr":
		return p.parseAddr(name, rest)

	case op == "unique":
		return p.parseUnique(name, rest)

	case op == "load":
		if len(rest) != 1 {
			return nil, p.errf("expected `load $addr`")
		}
		addr, err := p.lookup(rest[0])
		if err != nil {
			return nil, err
		}
		s = p.k.NewLoad(addr)

	default:
		if unOp, ok := unaryOps[op]; ok {
			if len(rest) != 1 {
				return nil, p.errf("expected `%s $x`", op)
			}
			x, err := p.lookup(rest[0])
			if err != nil {
				return nil, err
			}
			s = p.k.NewUnary(unOp, x)
			break
		}
		binOp, ok := binaryOps[op]
		if !ok {
			return nil, p.errf("unknown operation %q", op)
		}
		if len(rest) != 2 {
			return nil, p.errf("expected `%s $a $b`", op)
		}
		lhs, err := p.lookup(rest[0])
		if err != nil {
			return nil, err
		}
		rhs, err := p.lookup(rest[1])
		if err != nil {
			return nil, err
		}
		s = p.k.NewBinary(binOp, lhs, rhs)
	}

	if err := p.define(name, s); err != nil {
		return nil, err
	}
	return s, nil
}

// parseAddr parses `addr field[$i, $j] activate?`.
func (p *parser) parseAddr(name string, rest []string) (ir.Stmt, error) {
	if len(rest) < 4 || rest[1] != "[" {
		return nil, p.errf("expected `addr field[$i, ...]`")
	}
	field := ir.FieldID(rest[0])
	if !slices.Contains(p.k.Fields, field) {
		return nil, p.errf("unknown field %s", field)
	}
	var indices []ir.Stmt
	i := 2
	for ; i < len(rest) && rest[i] != "]"; i++ {
		if rest[i] == "," {
			continue
		}
		idx, err := p.lookup(rest[i])
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	if i >= len(rest) || len(indices) == 0 {
		return nil, p.errf("unterminated address index list")
	}
	activate := false
	switch {
	case i == len(rest)-1:
	case i == len(rest)-2 && rest[i+1] == "activate":
		activate = true
	default:
		return nil, p.errf("unexpected tokens after address")
	}
	s := p.k.NewAddress(field, activate, indices...)
	if err := p.define(name, s); err != nil {
		return nil, err
	}
	return s, nil
}

// parseUnique parses `unique $v covers(f0, f1)`.
func (p *parser) parseUnique(name string, rest []string) (ir.Stmt, error) {
	if len(rest) < 4 || rest[1] != "covers" || rest[2] != "(" || rest[len(rest)-1] != ")" {
		return nil, p.errf("expected `unique $v covers(...)`")
	}
	input, err := p.lookup(rest[0])
	if err != nil {
		return nil, err
	}
	covers := set.New[ir.FieldID](0)
	for _, tok := range rest[3 : len(rest)-1] {
		if tok == "," {
			continue
		}
		f := ir.FieldID(tok)
		if !slices.Contains(p.k.Fields, f) {
			return nil, p.errf("unknown field %s in covers", f)
		}
		covers.Insert(f)
	}
	s := p.k.NewLoopUnique(input, covers)
	if err := p.define(name, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) lookup(tok string) (ir.Stmt, error) {
	if !strings.HasPrefix(tok, "$") {
		return nil, p.errf("expected a statement reference, got %q", tok)
	}
	s, ok := p.named[tok]
	if !ok {
		return nil, p.errf("reference to undefined statement %s", tok)
	}
	return s, nil
}

func (p *parser) define(name string, s ir.Stmt) error {
	if !strings.HasPrefix(name, "$") {
		return p.errf("statement names start with $, got %q", name)
	}
	if _, taken := p.named[name]; taken {
		return p.errf("statement %s defined twice", name)
	}
	p.named[name] = s
	p.introduced = append(p.introduced, name)
	return nil
}

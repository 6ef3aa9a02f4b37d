package backend

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"log/slog"

	"github.com/tessel-lang/tessel/internal/log"
	"github.com/tessel-lang/tessel/ir"
	"github.com/traefik/yaegi/interp"
)

var logger = log.DefaultLogger.With(slog.String("section", "backend"))

// Outcome is the observable result of one kernel run: the final cell
// contents of every field plus which cells were activated.
type Outcome struct {
	Fields      map[ir.FieldID]map[int64]int64
	Activations map[ir.FieldID]map[int64]bool
}

// Source returns the generated Go for the program, formatted.
func Source(p Program) (string, error) {
	tp := Transpiler{}
	file, err := tp.TranspileProgram(p)
	if err != nil {
		return "", err
	}
	buf := bytes.NewBuffer(nil)
	if err := format.Node(buf, token.NewFileSet(), file); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Exec lowers the program to Go, evaluates it in a yaegi interpreter and
// reads the outcome back out of the interpreter globals.
func Exec(p Program) (Outcome, error) {
	src, err := Source(p)
	if err != nil {
		return Outcome{}, err
	}
	i := interp.New(interp.Options{})
	if _, err := i.Eval(src); err != nil {
		logger.Warn("had errors while evaluating", "err", err.Error(), "body", src)
		return Outcome{}, err
	}

	out := Outcome{
		Fields:      map[ir.FieldID]map[int64]int64{},
		Activations: map[ir.FieldID]map[int64]bool{},
	}
	globals := i.Globals()
	for _, f := range p.Kernel.Fields {
		g, ok := globals[fieldVar(f)]
		if !ok {
			return Outcome{}, fmt.Errorf("field %s missing from interpreter globals", f)
		}
		cells, ok := g.Interface().(map[int64]int64)
		if !ok {
			return Outcome{}, fmt.Errorf("field %s has unexpected type %T", f, g.Interface())
		}
		g, ok = globals[activationVar(f)]
		if !ok {
			return Outcome{}, fmt.Errorf("activation record of %s missing from interpreter globals", f)
		}
		acts, ok := g.Interface().(map[int64]bool)
		if !ok {
			return Outcome{}, fmt.Errorf("activation record of %s has unexpected type %T", f, g.Interface())
		}
		out.Fields[f] = cells
		out.Activations[f] = acts
	}
	return out, nil
}

// Equal compares two outcomes field by field.
func (o Outcome) Equal(other Outcome) bool {
	if len(o.Fields) != len(other.Fields) {
		return false
	}
	for f, cells := range o.Fields {
		otherCells, ok := other.Fields[f]
		if !ok || len(cells) != len(otherCells) {
			return false
		}
		for k, v := range cells {
			if w, ok := otherCells[k]; !ok || v != w {
				return false
			}
		}
	}
	for f, acts := range o.Activations {
		otherActs, ok := other.Activations[f]
		if !ok || len(acts) != len(otherActs) {
			return false
		}
		for k := range acts {
			if !otherActs[k] {
				return false
			}
		}
	}
	return true
}

// Package parser reads the textual kernel form produced by
// ir.KernelString. The syntax is line oriented: one statement per line,
// statements named $n, nested blocks delimited by braces.
package parser

import (
	"log/slog"
	"strings"

	"github.com/tessel-lang/tessel/internal/log"
	"github.com/tessel-lang/tessel/ir"
)

var logger = log.DefaultLogger.With(slog.String("section", "parser"))

// Parse parses the given kernel source and returns its IR.
func Parse(data string) (*ir.Kernel, error) {
	p := &parser{
		lines: strings.Split(data, "\n"),
		named: map[string]ir.Stmt{},
	}
	k, err := p.parseKernel()
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed kernel", "kernel", k.Name, "fields", len(k.Fields))
	return k, nil
}
